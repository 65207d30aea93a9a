package retrieval

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/danielpatrickdp/kgrag-mcq/internal/log"
)

// EntityExtractor pulls entity names out of a question.
type EntityExtractor interface {
	Extract(ctx context.Context, question string) ([]string, error)
}

// Generator is the chat call the extractor needs; model.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt, systemPrompt string, temperature float64) (string, error)
}

// #region llm-extractor
// LLMEntityExtractor asks a chat model for the diseases named in a question.
type LLMEntityExtractor struct {
	gen          Generator
	systemPrompt string
}

// NewLLMEntityExtractor uses systemPrompt to request {"Diseases": [...]}.
func NewLLMEntityExtractor(gen Generator, systemPrompt string) *LLMEntityExtractor {
	return &LLMEntityExtractor{gen: gen, systemPrompt: systemPrompt}
}

// Extract returns the extracted names. A reply that does not parse yields
// no names, which sends the caller back to searching with the question.
func (x *LLMEntityExtractor) Extract(ctx context.Context, question string) ([]string, error) {
	reply, err := x.gen.Generate(ctx, question, x.systemPrompt, 0)
	if err != nil {
		return nil, err
	}
	names, ok := ParseEntities(reply)
	if !ok {
		log.Debugf("entity extraction reply not parseable, searching with question: %q", reply)
	}
	return names, nil
}

// #endregion llm-extractor

// #region parse
// ParseEntities reads {"Diseases": [...]} from reply, optionally wrapped in a
// markdown code fence. Blank names are dropped.
func ParseEntities(reply string) ([]string, bool) {
	body := stripFence(reply)
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end < start {
		return nil, false
	}
	var parsed struct {
		Diseases []string `json:"Diseases"`
	}
	if err := json.Unmarshal([]byte(body[start:end+1]), &parsed); err != nil {
		return nil, false
	}
	var names []string
	for _, n := range parsed.Diseases {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names, true
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}

// #endregion parse
