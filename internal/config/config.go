package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/kgrag-mcq/internal/failure"
)

// #region types
// Config is built once at process start and handed to every component that
// needs a tunable. Nothing reads configuration from package state.
type Config struct {
	Paths     PathsConfig     `yaml:"paths"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Model     ModelConfig     `yaml:"model"`
	Codec     CodecConfig     `yaml:"codec"`
	Run       RunConfig       `yaml:"run"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// PathsConfig locates every input and output on disk.
type PathsConfig struct {
	Questions      string `yaml:"questions"`
	NodeContext    string `yaml:"node_context"`
	EdgeContext    string `yaml:"edge_context"`
	VectorDB       string `yaml:"vector_db"`
	OutputDir      string `yaml:"output_dir"`
	LedgerDB       string `yaml:"ledger_db"`
	EmbeddingCache string `yaml:"embedding_cache"`
	SystemPrompts  string `yaml:"system_prompts"`
}

// RetrievalConfig holds the context assembly tunables.
type RetrievalConfig struct {
	ContextVolume       int     `yaml:"context_volume"`       // max context size in characters
	PercentileThreshold float64 `yaml:"percentile_threshold"` // 0..100
	MinimumSimilarity   float64 `yaml:"minimum_similarity"`   // absolute floor
	NodeTopK            int     `yaml:"node_top_k"`           // entities searched when no extraction
	EdgeEvidence        bool    `yaml:"edge_evidence"`
	EntityExtraction    bool    `yaml:"entity_extraction"`
	IndexBackend        string  `yaml:"index_backend"` // "sqlite" | "codec"
}

// EmbeddingConfig names the two sentence embedding models.
type EmbeddingConfig struct {
	Provider     string `yaml:"provider"` // "codec" | "openai" | "gemini"
	NodeModel    string `yaml:"node_model"`
	ContextModel string `yaml:"context_model"`
}

// ModelConfig configures the chat model client. API keys come from env only.
type ModelConfig struct {
	Provider        string        `yaml:"provider"` // empty = infer from model id
	Temperature     float64       `yaml:"temperature"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	BaseURL         string        `yaml:"base_url"`
	AzureAPIVersion string        `yaml:"azure_api_version"`
}

// CodecConfig points at the Python retrieval/inference gRPC service.
type CodecConfig struct {
	Addr string `yaml:"addr"`
}

// RunConfig drives the batch loop.
type RunConfig struct {
	StartIndex         int           `yaml:"start_index"`
	EndIndex           int           `yaml:"end_index"` // inclusive
	EmitErrorRows      bool          `yaml:"emit_error_rows"`
	LegacySkipBoundary bool          `yaml:"legacy_skip_boundary"`
	FailureBackoff     time.Duration `yaml:"failure_backoff"`
	MaxAttempts        int           `yaml:"max_attempts"`
	RetryInitial       time.Duration `yaml:"retry_initial"`
	RetryMax           time.Duration `yaml:"retry_max"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig sets the logger level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// #endregion types

// #region defaults
// DefaultConfig returns the defaults used when a key is absent from the file.
func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			Questions:   "data/mcq_questions.csv",
			NodeContext: "data/node_context.csv",
			VectorDB:    "data/node_index.db",
			OutputDir:   "results",
			LedgerDB:    "results/ledger.db",
		},
		Retrieval: RetrievalConfig{
			ContextVolume:       1500,
			PercentileThreshold: 75,
			MinimumSimilarity:   0.5,
			NodeTopK:            5,
			IndexBackend:        "sqlite",
		},
		Embedding: EmbeddingConfig{
			Provider:     "codec",
			NodeModel:    "all-MiniLM-L6-v2",
			ContextModel: "pritamdeka/S-PubMedBert-MS-MARCO",
		},
		Model: ModelConfig{
			Temperature:     0,
			Timeout:         60 * time.Second,
			MaxOutputTokens: 1024,
		},
		Codec: CodecConfig{Addr: "localhost:50051"},
		Run: RunConfig{
			StartIndex:     0,
			EndIndex:       305,
			EmitErrorRows:  true,
			FailureBackoff: 10 * time.Second,
			MaxAttempts:    1,
			RetryInitial:   2 * time.Second,
			RetryMax:       30 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// #endregion defaults

// #region load
// Load reads path over DefaultConfig and applies env overrides. A missing
// file is not an error when allowMissing is set; defaults are used instead.
func Load(path string, allowMissing bool) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, failure.Configf("load config", "parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && allowMissing:
	default:
		return Config{}, failure.Configf("load config", "read %s: %w", path, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Codec.Addr = envOr("CODEC_ADDR", c.Codec.Addr)
	c.Paths.OutputDir = envOr("KGRAG_OUTPUT_DIR", c.Paths.OutputDir)
	c.Log.Level = envOr("KGRAG_LOG_LEVEL", c.Log.Level)
}

// #endregion load

// #region validate
// Validate rejects settings that would make every question fail.
func (c Config) Validate() error {
	r := c.Retrieval
	if r.PercentileThreshold < 0 || r.PercentileThreshold > 100 {
		return failure.Configf("validate", "percentile_threshold %.2f outside [0,100]", r.PercentileThreshold)
	}
	if r.ContextVolume <= 0 {
		return failure.Configf("validate", "context_volume must be positive, got %d", r.ContextVolume)
	}
	if r.NodeTopK <= 0 {
		return failure.Configf("validate", "node_top_k must be positive, got %d", r.NodeTopK)
	}
	switch r.IndexBackend {
	case "sqlite", "codec":
	default:
		return failure.Configf("validate", "unknown index_backend %q", r.IndexBackend)
	}
	switch c.Embedding.Provider {
	case "codec", "openai", "gemini":
	default:
		return failure.Configf("validate", "unknown embedding provider %q", c.Embedding.Provider)
	}
	switch c.Model.Provider {
	case "", "codec", "openai", "azure", "gemini", "anthropic":
	default:
		return failure.Configf("validate", "unknown model provider %q", c.Model.Provider)
	}
	if c.Run.StartIndex < 0 {
		return failure.Configf("validate", "start_index must be >= 0, got %d", c.Run.StartIndex)
	}
	if c.Run.EndIndex < c.Run.StartIndex {
		return failure.Configf("validate", "end_index %d before start_index %d", c.Run.EndIndex, c.Run.StartIndex)
	}
	if c.Run.MaxAttempts < 1 {
		return failure.Configf("validate", "max_attempts must be >= 1, got %d", c.Run.MaxAttempts)
	}
	if r.EdgeEvidence && c.Paths.EdgeContext == "" {
		return failure.Configf("validate", "edge_evidence requires paths.edge_context")
	}
	return nil
}

// #endregion validate

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// APIKey returns the first non-empty env var among keys.
func APIKey(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// String renders the settings that shape a run, for the startup banner.
func (c Config) String() string {
	return fmt.Sprintf("volume=%d percentile=%.1f min_sim=%.2f top_k=%d index=%s embed=%s temp=%.2f",
		c.Retrieval.ContextVolume, c.Retrieval.PercentileThreshold, c.Retrieval.MinimumSimilarity,
		c.Retrieval.NodeTopK, c.Retrieval.IndexBackend, c.Embedding.Provider, c.Model.Temperature)
}

// #endregion helpers
