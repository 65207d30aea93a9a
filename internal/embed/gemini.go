package embed

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiModels is the part of genai.Models the embedder needs.
type GeminiModels interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content,
		config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// GeminiEmbedder embeds with a Gemini embedding model.
type GeminiEmbedder struct {
	models GeminiModels
	model  string
}

// NewGeminiEmbedder dials the Gemini API with apiKey.
func NewGeminiEmbedder(ctx context.Context, apiKey, model string) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini embedder: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embedder: %w", err)
	}
	return &GeminiEmbedder{models: client.Models, model: model}, nil
}

// NewGeminiEmbedderWithModels wraps an existing Models implementation.
func NewGeminiEmbedderWithModels(models GeminiModels, model string) *GeminiEmbedder {
	return &GeminiEmbedder{models: models, model: model}
}

// Model returns the embedding model name.
func (e *GeminiEmbedder) Model() string { return e.model }

// Embed implements Embedder.
func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	resp, err := e.models.EmbedContent(ctx, e.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embed %s: %w", e.model, err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embed %s: embedding count mismatch", e.model)
	}
	out := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil {
			return nil, fmt.Errorf("gemini embed %s: empty embedding at %d", e.model, i)
		}
		out[i] = emb.Values
	}
	return out, nil
}
