package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/kgrag-mcq/internal/failure"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

// #region load-tests
func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), true)
	require.NoError(t, err)
	assert.Equal(t, 305, cfg.Run.EndIndex)
	assert.Equal(t, 10*time.Second, cfg.Run.FailureBackoff)
	assert.True(t, cfg.Run.EmitErrorRows)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFileRequired(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), false)
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.Configuration))
}

func TestLoadOverridesDefaults(t *testing.T) {
	p := writeFile(t, "config.yaml", `
retrieval:
  context_volume: 400
  percentile_threshold: 90
  minimum_similarity: 0.3
run:
  end_index: 10
  failure_backoff: 250ms
  emit_error_rows: false
`)
	cfg, err := Load(p, false)
	require.NoError(t, err)
	assert.Equal(t, 400, cfg.Retrieval.ContextVolume)
	assert.Equal(t, 90.0, cfg.Retrieval.PercentileThreshold)
	assert.Equal(t, 0.3, cfg.Retrieval.MinimumSimilarity)
	assert.Equal(t, 10, cfg.Run.EndIndex)
	assert.Equal(t, 250*time.Millisecond, cfg.Run.FailureBackoff)
	assert.False(t, cfg.Run.EmitErrorRows)
	// untouched keys keep defaults
	assert.Equal(t, 5, cfg.Retrieval.NodeTopK)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CODEC_ADDR", "inference:6000")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), true)
	require.NoError(t, err)
	assert.Equal(t, "inference:6000", cfg.Codec.Addr)
}

func TestLoadBadYAML(t *testing.T) {
	p := writeFile(t, "config.yaml", "retrieval: [unterminated")
	_, err := Load(p, false)
	assert.True(t, failure.Is(err, failure.Configuration))
}

// #endregion load-tests

// #region validate-tests
func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"percentile high", func(c *Config) { c.Retrieval.PercentileThreshold = 101 }},
		{"percentile negative", func(c *Config) { c.Retrieval.PercentileThreshold = -1 }},
		{"zero volume", func(c *Config) { c.Retrieval.ContextVolume = 0 }},
		{"bad backend", func(c *Config) { c.Retrieval.IndexBackend = "faiss" }},
		{"bad embed provider", func(c *Config) { c.Embedding.Provider = "local" }},
		{"bad model provider", func(c *Config) { c.Model.Provider = "mystery" }},
		{"negative start", func(c *Config) { c.Run.StartIndex = -1 }},
		{"end before start", func(c *Config) { c.Run.StartIndex = 5; c.Run.EndIndex = 2 }},
		{"zero attempts", func(c *Config) { c.Run.MaxAttempts = 0 }},
		{"edge evidence without table", func(c *Config) { c.Retrieval.EdgeEvidence = true }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := DefaultConfig()
			c.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, failure.Is(err, failure.Configuration))
		})
	}
}

// #endregion validate-tests

// #region prompt-tests
func TestLoadSystemPromptsDefaults(t *testing.T) {
	prompts, err := LoadSystemPrompts("")
	require.NoError(t, err)
	assert.Contains(t, prompts[PromptMCQ], `"answer"`)
	assert.Contains(t, prompts[PromptEntityExtraction], "Diseases")
}

func TestLoadSystemPromptsOverride(t *testing.T) {
	p := writeFile(t, "prompts.yaml", "MCQ_QUESTION: answer with one letter\n")
	prompts, err := LoadSystemPrompts(p)
	require.NoError(t, err)
	assert.Equal(t, "answer with one letter", prompts[PromptMCQ])
	assert.NotEmpty(t, prompts[PromptEntityExtraction])
}

func TestLoadPriorKnowledgePathWins(t *testing.T) {
	p := writeFile(t, "prior.txt", "from file")
	literal := "from flag"

	got, err := LoadPriorKnowledge(&literal, p)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "from file", *got)
}

func TestLoadPriorKnowledgeLiteralOnly(t *testing.T) {
	literal := "from flag"
	got, err := LoadPriorKnowledge(&literal, "")
	require.NoError(t, err)
	assert.Equal(t, "from flag", *got)

	none, err := LoadPriorKnowledge(nil, "")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestLoadPriorKnowledgeUnreadable(t *testing.T) {
	_, err := LoadPriorKnowledge(nil, filepath.Join(t.TempDir(), "missing.txt"))
	assert.True(t, failure.Is(err, failure.Configuration))
}

// #endregion prompt-tests
