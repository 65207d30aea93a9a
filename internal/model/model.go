// Package model wraps the chat model providers behind one narrow call.
// Clients classify failures but never retry; the batch loop owns retries.
package model

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"google.golang.org/grpc/status"

	"github.com/danielpatrickdp/kgrag-mcq/internal/config"
	"github.com/danielpatrickdp/kgrag-mcq/internal/failure"
)

// Client generates one answer for a prompt.
type Client interface {
	Generate(ctx context.Context, prompt, systemPrompt string, temperature float64) (string, error)
}

// Provider names.
const (
	ProviderCodec     = "codec"
	ProviderOpenAI    = "openai"
	ProviderAzure     = "azure"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// #region select
// InferProvider maps a chat model id to a provider by prefix. Ids without a
// known prefix are served by the codec service.
func InferProvider(modelID string) string {
	id := strings.ToLower(modelID)
	switch {
	case strings.HasPrefix(id, "gemini-"):
		return ProviderGemini
	case strings.HasPrefix(id, "gpt-"), strings.HasPrefix(id, "o1"), strings.HasPrefix(id, "o3"), strings.HasPrefix(id, "o4"):
		return ProviderOpenAI
	case strings.HasPrefix(id, "claude-"):
		return ProviderAnthropic
	default:
		return ProviderCodec
	}
}

// New builds the client for modelID. cfg.Provider wins over the prefix
// rule. API keys are read from the environment; a missing key is a
// configuration error.
func New(ctx context.Context, cfg config.ModelConfig, modelID string, codec CodecGenerator) (Client, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = InferProvider(modelID)
	}

	var c Client
	var err error
	switch provider {
	case ProviderGemini:
		c, err = NewGemini(ctx, config.APIKey("GEMINI_API_KEY", "GOOGLE_API_KEY"), modelID, cfg.MaxOutputTokens)
	case ProviderOpenAI:
		c, err = NewOpenAI(config.APIKey("OPENAI_API_KEY"), cfg.BaseURL, modelID, cfg.MaxOutputTokens)
	case ProviderAzure:
		c, err = NewAzure(config.APIKey("AZURE_OPENAI_API_KEY", "OPENAI_API_KEY"), cfg.BaseURL, cfg.AzureAPIVersion, modelID, cfg.MaxOutputTokens)
	case ProviderAnthropic:
		c, err = NewAnthropic(config.APIKey("ANTHROPIC_API_KEY"), cfg.BaseURL, modelID, cfg.MaxOutputTokens)
	case ProviderCodec:
		if codec == nil {
			return nil, failure.Configf("model client", "provider codec needs a codec connection")
		}
		c = NewCodec(codec, modelID)
	default:
		return nil, failure.Configf("model client", "unknown provider %q", provider)
	}
	if err != nil {
		return nil, failure.New(failure.Configuration, "model client", err)
	}
	return WithTimeout(c, cfg.Timeout), nil
}

// #endregion select

// #region timeout
type timeoutClient struct {
	Client
	timeout time.Duration
}

// WithTimeout bounds every Generate call by d. Non-positive d returns c.
func WithTimeout(c Client, d time.Duration) Client {
	if d <= 0 {
		return c
	}
	return &timeoutClient{Client: c, timeout: d}
}

func (t *timeoutClient) Generate(ctx context.Context, prompt, systemPrompt string, temperature float64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Client.Generate(ctx, prompt, systemPrompt, temperature)
}

// #endregion timeout

// #region classify
// classify wraps a provider error as ModelUnavailable when a retry may
// succeed and as ModelError otherwise. httpStatus is 0 when unknown.
func classify(op string, err error, httpStatus int) error {
	if err == nil {
		return nil
	}
	if _, ok := failure.KindOf(err); ok {
		return err
	}
	if unavailable(err, httpStatus) {
		return failure.New(failure.ModelUnavailable, op, err)
	}
	return failure.New(failure.ModelError, op, err)
}

func unavailable(err error, httpStatus int) bool {
	if httpStatus != 0 {
		return failure.TransientHTTP(httpStatus)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if s, ok := status.FromError(err); ok {
		return failure.TransientCode(s.Code())
	}
	var ne net.Error
	return errors.As(err, &ne)
}

func emptyReply(op, modelID string) error {
	return failure.New(failure.ModelError, op, fmt.Errorf("model %s returned no text", modelID))
}

// #endregion classify
