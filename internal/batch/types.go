// Package batch drives the sequential question loop: skip, assemble, prompt,
// generate, record, and flush the full result set after every question.
package batch

import (
	"context"
	"time"

	"github.com/danielpatrickdp/kgrag-mcq/internal/backoff"
	"github.com/danielpatrickdp/kgrag-mcq/internal/config"
	"github.com/danielpatrickdp/kgrag-mcq/internal/retrieval"
)

// Answer markers written in place of a model reply.
const (
	SkippedAnswer = "Skipped"
	ErrorAnswer   = "Error"
)

// Status is the per-question outcome.
type Status string

const (
	StatusAnswered Status = "answered"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
)

// #region types
// Question is one row of the question file.
type Question struct {
	Text          string
	CorrectAnswer string
}

// Row is one line of the result file.
type Row struct {
	Question      string
	CorrectAnswer string
	Answer        string
}

// Outcome is what happened to one question. Observers receive it after the
// result set has been flushed.
type Outcome struct {
	Index    int
	Status   Status
	Row      Row
	Attempts int
	Context  retrieval.Context
	Err      error

	AssembleTime time.Duration
	GenerateTime time.Duration
	PersistErr   error // set when the flush for this iteration failed
}

// Observer receives every Outcome. Returned errors are persistence
// failures: logged and counted, never fatal.
type Observer interface {
	Observe(ctx context.Context, o Outcome) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, o Outcome) error

// Observe implements Observer.
func (f ObserverFunc) Observe(ctx context.Context, o Outcome) error { return f(ctx, o) }

// Assembler builds the context for one question.
type Assembler interface {
	Assemble(ctx context.Context, question string, opts retrieval.Options) (retrieval.Context, error)
}

// Writer persists the full result set. Each call replaces the previous file.
type Writer interface {
	Write(rows []Row) error
	Path() string
}

// RunConfig holds the loop settings for one run.
type RunConfig struct {
	StartIndex         int
	EndIndex           int // inclusive
	LegacySkipBoundary bool
	EmitErrorRows      bool
	FailureBackoff     time.Duration
	Retry              backoff.Policy

	Volume       int
	Threshold    retrieval.Threshold
	SystemPrompt string
	Temperature  float64
}

// DefaultRunConfig mirrors config.DefaultConfig.
func DefaultRunConfig() RunConfig {
	return RunConfigFrom(config.DefaultConfig(), "")
}

// RunConfigFrom lifts the loop settings out of the process configuration.
func RunConfigFrom(cfg config.Config, systemPrompt string) RunConfig {
	retry := backoff.DefaultPolicy()
	if cfg.Run.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.Run.MaxAttempts
	}
	if cfg.Run.RetryInitial > 0 {
		retry.Initial = cfg.Run.RetryInitial
	}
	if cfg.Run.RetryMax > 0 {
		retry.Max = cfg.Run.RetryMax
	}
	return RunConfig{
		StartIndex:         cfg.Run.StartIndex,
		EndIndex:           cfg.Run.EndIndex,
		LegacySkipBoundary: cfg.Run.LegacySkipBoundary,
		EmitErrorRows:      cfg.Run.EmitErrorRows,
		FailureBackoff:     cfg.Run.FailureBackoff,
		Retry:              retry,
		Volume:             cfg.Retrieval.ContextVolume,
		Threshold: retrieval.Threshold{
			Percentile:        cfg.Retrieval.PercentileThreshold,
			MinimumSimilarity: cfg.Retrieval.MinimumSimilarity,
		},
		SystemPrompt: systemPrompt,
		Temperature:  cfg.Model.Temperature,
	}
}

// Summary aggregates one run.
type Summary struct {
	Answered      int
	Skipped       int
	Failed        int
	Rows          int
	Elapsed       time.Duration
	OutputPath    string
	PersistErrors int
}

// #endregion types
