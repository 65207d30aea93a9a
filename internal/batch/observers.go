package batch

import (
	"context"
	"database/sql"

	"github.com/danielpatrickdp/kgrag-mcq/internal/failure"
	"github.com/danielpatrickdp/kgrag-mcq/internal/logging"
	"github.com/danielpatrickdp/kgrag-mcq/internal/metrics"
	"github.com/danielpatrickdp/kgrag-mcq/internal/state"
)

// #region ledger
// LedgerObserver upserts every outcome into the run ledger.
func LedgerObserver(store *state.Store, runID string) Observer {
	return ObserverFunc(func(ctx context.Context, o Outcome) error {
		err := store.RecordResult(ctx, state.ResultRecord{
			RunID:         runID,
			Index:         o.Index,
			Question:      o.Row.Question,
			CorrectAnswer: o.Row.CorrectAnswer,
			Answer:        o.Row.Answer,
			Status:        string(o.Status),
			Attempts:      o.Attempts,
			ContextChars:  o.Context.Len(),
		})
		if err != nil {
			return failure.New(failure.Persistence, "ledger", err)
		}
		return nil
	})
}

// #endregion ledger

// #region provenance
// ProvenanceObserver writes one provenance_log row per outcome.
func ProvenanceObserver(db *sql.DB, runID string, config RunConfig) Observer {
	return ObserverFunc(func(ctx context.Context, o Outcome) error {
		entry := logging.ProvenanceEntry{
			RunID:       runID,
			QuestionIdx: o.Index,
			Status:      string(o.Status),
		}
		switch o.Status {
		case StatusSkipped:
			entry.Reason = "before start index"
		case StatusFailed:
			if o.Err != nil {
				entry.Reason = o.Err.Error()
			}
		}
		if o.Status != StatusSkipped {
			entry.ContextHash = logging.HashContext(o.Context.String())
			entry.EvidenceRefs = logging.JoinRefs(o.Context.Entities)
			details, err := logging.MarshalRecord(logging.ContextRecord{
				Entities:          o.Context.Entities,
				Candidates:        o.Context.Candidates,
				Kept:              len(o.Context.Items),
				Cutoff:            o.Context.Cutoff,
				Chars:             o.Context.Len(),
				Structured:        o.Context.Structured,
				Percentile:        config.Threshold.Percentile,
				MinimumSimilarity: config.Threshold.MinimumSimilarity,
				Volume:            config.Volume,
				Attempts:          o.Attempts,
				AssembleMsec:      o.AssembleTime.Milliseconds(),
				GenerateMsec:      o.GenerateTime.Milliseconds(),
			})
			if err != nil {
				return failure.New(failure.Persistence, "provenance", err)
			}
			entry.DetailsJSON = details
		}
		if err := logging.LogDecision(ctx, db, entry); err != nil {
			return failure.New(failure.Persistence, "provenance", err)
		}
		return nil
	})
}

// #endregion provenance

// #region metrics
// MetricsObserver feeds the Prometheus collectors.
func MetricsObserver(m *metrics.Metrics) Observer {
	return ObserverFunc(func(_ context.Context, o Outcome) error {
		m.RecordQuestion(string(o.Status))
		if o.PersistErr != nil {
			m.RecordPersistError()
		}
		if o.Status == StatusSkipped {
			return nil
		}
		m.RecordStage(metrics.StageAssemble, o.AssembleTime)
		if o.GenerateTime > 0 {
			m.RecordStage(metrics.StageGenerate, o.GenerateTime)
		}
		if o.Status == StatusAnswered {
			m.RecordContext(o.Context.Len())
		}
		return nil
	})
}

// #endregion metrics
