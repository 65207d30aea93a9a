package model

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/danielpatrickdp/kgrag-mcq/internal/config"
	"github.com/danielpatrickdp/kgrag-mcq/internal/failure"
)

// #region fakes
type fakeCodec struct {
	text string
	err  error

	model, prompt, system string
	temperature           float64
	deadline              bool
}

func (f *fakeCodec) Generate(ctx context.Context, model, prompt, system string, temperature float64) (string, error) {
	f.model, f.prompt, f.system, f.temperature = model, prompt, system, temperature
	_, f.deadline = ctx.Deadline()
	return f.text, f.err
}

type fakeGemini struct {
	resp *genai.GenerateContentResponse
	err  error
	cfg  *genai.GenerateContentConfig
}

func (f *fakeGemini) GenerateContent(_ context.Context, _ string, _ []*genai.Content,
	cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.cfg = cfg
	return f.resp, f.err
}

func geminiReply(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
	}}}
}

// #endregion fakes

// #region select-tests
func TestInferProvider(t *testing.T) {
	cases := map[string]string{
		"gemini-2.0-flash":  ProviderGemini,
		"gpt-4o":            ProviderOpenAI,
		"o3-mini":           ProviderOpenAI,
		"claude-sonnet-4-5": ProviderAnthropic,
		"llama-3-8b":        ProviderCodec,
		"":                  ProviderCodec,
	}
	for id, want := range cases {
		assert.Equal(t, want, InferProvider(id), id)
	}
}

func TestNewMissingKeyIsConfigurationError(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	for _, id := range []string{"gemini-2.0-flash", "gpt-4", "claude-3-haiku"} {
		_, err := New(context.Background(), config.ModelConfig{}, id, nil)
		require.Error(t, err, id)
		assert.True(t, failure.Is(err, failure.Configuration), id)
	}
}

func TestNewCodecProvider(t *testing.T) {
	_, err := New(context.Background(), config.ModelConfig{}, "llama-3", nil)
	assert.True(t, failure.Is(err, failure.Configuration))

	svc := &fakeCodec{text: "ok"}
	c, err := New(context.Background(), config.ModelConfig{Timeout: time.Minute}, "llama-3", svc)
	require.NoError(t, err)
	out, err := c.Generate(context.Background(), "p", "s", 0.3)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, "llama-3", svc.model)
	assert.True(t, svc.deadline, "timeout should bound the call")
}

func TestNewExplicitProviderWins(t *testing.T) {
	svc := &fakeCodec{text: "ok"}
	c, err := New(context.Background(), config.ModelConfig{Provider: ProviderCodec}, "gpt-4", svc)
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), "p", "", 0)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4", svc.model)

	_, err = New(context.Background(), config.ModelConfig{Provider: "bedrock"}, "m", svc)
	assert.True(t, failure.Is(err, failure.Configuration))
}

// #endregion select-tests

// #region codec-tests
func TestCodecClassifiesErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind failure.Kind
	}{
		{"unavailable", status.Error(codes.Unavailable, "down"), failure.ModelUnavailable},
		{"exhausted", status.Error(codes.ResourceExhausted, "busy"), failure.ModelUnavailable},
		{"deadline", context.DeadlineExceeded, failure.ModelUnavailable},
		{"invalid", status.Error(codes.InvalidArgument, "bad"), failure.ModelError},
		{"canceled", context.Canceled, failure.ModelError},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := NewCodec(&fakeCodec{err: c.err}, "m").Generate(context.Background(), "p", "", 0)
			require.Error(t, err)
			assert.True(t, failure.Is(err, c.kind), "got %v", err)
			assert.ErrorIs(t, err, c.err)
		})
	}
}

func TestCodecEmptyReply(t *testing.T) {
	_, err := NewCodec(&fakeCodec{text: "  "}, "m").Generate(context.Background(), "p", "", 0)
	assert.True(t, failure.Is(err, failure.ModelError))
}

// #endregion codec-tests

// #region gemini-tests
func TestGeminiGenerate(t *testing.T) {
	models := &fakeGemini{resp: geminiReply(`{"answer": "IL13"}`)}
	g := NewGeminiWithModels(models, "gemini-2.0-flash", 256)

	out, err := g.Generate(context.Background(), "prompt", "be brief", 0.7)
	require.NoError(t, err)
	assert.Equal(t, `{"answer": "IL13"}`, out)
	require.NotNil(t, models.cfg.Temperature)
	assert.InDelta(t, 0.7, *models.cfg.Temperature, 1e-6)
	assert.Equal(t, int32(256), models.cfg.MaxOutputTokens)
	require.NotNil(t, models.cfg.SystemInstruction)
	assert.Equal(t, "be brief", models.cfg.SystemInstruction.Parts[0].Text)
}

func TestGeminiClassifiesAPIErrors(t *testing.T) {
	_, err := NewGeminiWithModels(&fakeGemini{err: genai.APIError{Code: 429, Message: "quota"}}, "g", 0).
		Generate(context.Background(), "p", "", 0)
	assert.True(t, failure.Is(err, failure.ModelUnavailable))

	_, err = NewGeminiWithModels(&fakeGemini{err: genai.APIError{Code: 400, Message: "bad"}}, "g", 0).
		Generate(context.Background(), "p", "", 0)
	assert.True(t, failure.Is(err, failure.ModelError))

	_, err = NewGeminiWithModels(&fakeGemini{resp: &genai.GenerateContentResponse{}}, "g", 0).
		Generate(context.Background(), "p", "", 0)
	assert.True(t, failure.Is(err, failure.ModelError))
}

// #endregion gemini-tests

// #region openai-tests
func TestOpenAIGenerate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","model":"gpt-4",
			"choices":[{"index":0,"message":{"role":"assistant","content":"{\"answer\": \"TP53\"}"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	c, err := NewOpenAI("sk-test", srv.URL, "gpt-4", 0)
	require.NoError(t, err)
	out, err := c.Generate(context.Background(), "prompt", "system", 0)
	require.NoError(t, err)
	assert.Equal(t, `{"answer": "TP53"}`, out)

	msgs, _ := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Contains(t, got, "temperature", "zero temperature must still be sent")
}

func TestOpenAIClassifiesStatus(t *testing.T) {
	for code, kind := range map[int]failure.Kind{
		http.StatusTooManyRequests:    failure.ModelUnavailable,
		http.StatusServiceUnavailable: failure.ModelUnavailable,
		http.StatusBadRequest:         failure.ModelError,
		http.StatusUnauthorized:       failure.ModelError,
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(code)
			_, _ = io.WriteString(w, `{"error":{"message":"nope","type":"x"}}`)
		}))
		c, err := NewOpenAI("sk-test", srv.URL, "gpt-4", 0)
		require.NoError(t, err)
		_, err = c.Generate(context.Background(), "p", "", 0)
		assert.True(t, failure.Is(err, kind), "status %d: %v", code, err)
		srv.Close()
	}
}

func TestAzureRequiresEndpoint(t *testing.T) {
	_, err := NewAzure("key", "", "", "gpt-35-turbo", 0)
	assert.Error(t, err)
	c, err := NewAzure("key", "https://example.openai.azure.com", "2024-02-01", "gpt-35-turbo", 0)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

// #endregion openai-tests

// #region anthropic-tests
func TestAnthropicGenerate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-haiku",
			"content":[{"type":"text","text":"{\"answer\": \"asthma\"}"}],
			"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":4}}`)
	}))
	defer srv.Close()

	c, err := NewAnthropic("key", srv.URL, "claude-3-haiku", 0)
	require.NoError(t, err)
	out, err := c.Generate(context.Background(), "prompt", "system", 0)
	require.NoError(t, err)
	assert.Equal(t, `{"answer": "asthma"}`, out)
	assert.Equal(t, float64(1024), got["max_tokens"])
	assert.NotNil(t, got["system"])
}

func TestAnthropicServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"api_error","message":"boom"}}`)
	}))
	defer srv.Close()

	c, err := NewAnthropic("key", srv.URL, "claude-3-haiku", 0)
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), "p", "", 0)
	assert.True(t, failure.Is(err, failure.ModelUnavailable), "got %v", err)
	assert.True(t, failure.IsTransient(err))
}

// #endregion anthropic-tests

func TestClassifyKeepsExistingKind(t *testing.T) {
	inner := failure.New(failure.ModelError, "inner", errors.New("x"))
	assert.Same(t, inner, classify("outer", inner, 503))
	assert.Nil(t, classify("op", nil, 0))
}
