package state

import "time"

// #region run-record
// RunRecord is one invocation of the batch CLI.
type RunRecord struct {
	RunID      string
	ParentID   string // run this one resumes, empty for a fresh run
	Model      string
	Mode       string
	StartIndex int
	EndIndex   int
	OutputPath string
	StartedAt  time.Time
	FinishedAt time.Time // zero while the run is in progress

	Answered      int
	Skipped       int
	Failed        int
	PersistErrors int
}

// Finished reports whether FinishRun was recorded.
func (r RunRecord) Finished() bool { return !r.FinishedAt.IsZero() }

// #endregion run-record

// #region result-record
// ResultRecord is one question's row in a run.
type ResultRecord struct {
	RunID         string
	Index         int
	Question      string
	CorrectAnswer string
	Answer        string
	Status        string // "answered" | "skipped" | "failed"
	Attempts      int
	ContextChars  int
	RecordedAt    time.Time
}

// #endregion result-record

// #region run-totals
// RunTotals are the counters written by FinishRun.
type RunTotals struct {
	Answered      int
	Skipped       int
	Failed        int
	PersistErrors int
}

// #endregion run-totals
