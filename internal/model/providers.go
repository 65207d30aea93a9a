package model

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// #region codec
// CodecGenerator is the slice of codec.CodecClient used for locally hosted models.
type CodecGenerator interface {
	Generate(ctx context.Context, model, prompt, systemPrompt string, temperature float64) (string, error)
}

// Codec serves models hosted by the Python inference service.
type Codec struct {
	svc   CodecGenerator
	model string
}

// NewCodec binds the codec service to modelID.
func NewCodec(svc CodecGenerator, modelID string) *Codec {
	return &Codec{svc: svc, model: modelID}
}

// Generate implements Client.
func (c *Codec) Generate(ctx context.Context, prompt, systemPrompt string, temperature float64) (string, error) {
	text, err := c.svc.Generate(ctx, c.model, prompt, systemPrompt, temperature)
	if err != nil {
		return "", classify("codec generate", err, 0)
	}
	if strings.TrimSpace(text) == "" {
		return "", emptyReply("codec generate", c.model)
	}
	return text, nil
}

// #endregion codec

// #region gemini
// GeminiModels is the part of genai.Models the client needs.
type GeminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content,
		config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini calls the Gemini API.
type Gemini struct {
	models    GeminiModels
	model     string
	maxTokens int
}

// NewGemini dials the Gemini API.
func NewGemini(ctx context.Context, apiKey, modelID string, maxTokens int) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return NewGeminiWithModels(client.Models, modelID, maxTokens), nil
}

// NewGeminiWithModels wraps an existing Models implementation.
func NewGeminiWithModels(models GeminiModels, modelID string, maxTokens int) *Gemini {
	return &Gemini{models: models, model: modelID, maxTokens: maxTokens}
}

// Generate implements Client.
func (g *Gemini) Generate(ctx context.Context, prompt, systemPrompt string, temperature float64) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(temperature)),
	}
	if g.maxTokens > 0 {
		cfg.MaxOutputTokens = int32(g.maxTokens)
	}
	if systemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		var apiErr genai.APIError
		code := 0
		if errors.As(err, &apiErr) {
			code = apiErr.Code
		}
		return "", classify("gemini generate", err, code)
	}
	text := ""
	if resp != nil {
		text = resp.Text()
	}
	if strings.TrimSpace(text) == "" {
		return "", emptyReply("gemini generate", g.model)
	}
	return text, nil
}

// #endregion gemini

// #region openai
// OpenAI calls the OpenAI (or Azure OpenAI) chat completions API.
type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAI creates a client for api.openai.com or a compatible baseURL.
func NewOpenAI(apiKey, baseURL, modelID string, maxTokens int) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.New("openai: OPENAI_API_KEY is not set")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: modelID, maxTokens: maxTokens}, nil
}

// NewAzure creates a client for an Azure OpenAI deployment named modelID.
func NewAzure(apiKey, endpoint, apiVersion, modelID string, maxTokens int) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.New("azure: AZURE_OPENAI_API_KEY is not set")
	}
	if endpoint == "" {
		return nil, errors.New("azure: model.base_url must name the resource endpoint")
	}
	cfg := openai.DefaultAzureConfig(apiKey, endpoint)
	if apiVersion != "" {
		cfg.APIVersion = apiVersion
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: modelID, maxTokens: maxTokens}, nil
}

// Generate implements Client.
func (o *OpenAI) Generate(ctx context.Context, prompt, systemPrompt string, temperature float64) (string, error) {
	var msgs []openai.ChatCompletionMessage
	if systemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	temp := float32(temperature)
	if temp == 0 {
		// a zero temperature is dropped by omitempty and the API default of 1 applies
		temp = math.SmallestNonzeroFloat32
	}
	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    msgs,
		Temperature: temp,
	}
	if o.maxTokens > 0 {
		req.MaxCompletionTokens = o.maxTokens
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classify("openai generate", err, openAIStatus(err))
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", emptyReply("openai generate", o.model)
	}
	return resp.Choices[0].Message.Content, nil
}

func openAIStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// #endregion openai

// #region anthropic
// Anthropic calls the Anthropic Messages API.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

// NewAnthropic creates a Messages API client. SDK retries are disabled.
func NewAnthropic(apiKey, baseURL, modelID string, maxTokens int) (*Anthropic, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: ANTHROPIC_API_KEY is not set")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Anthropic{client: anthropic.NewClient(opts...), model: modelID, maxTokens: maxTokens}, nil
}

// Generate implements Client.
func (a *Anthropic) Generate(ctx context.Context, prompt, systemPrompt string, temperature float64) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   int64(a.maxTokens),
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(temperature),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		code := 0
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			code = apiErr.StatusCode
		}
		return "", classify("anthropic generate", err, code)
	}
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", emptyReply("anthropic generate", a.model)
	}
	return b.String(), nil
}

// #endregion anthropic
