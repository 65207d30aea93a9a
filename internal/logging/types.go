package logging

import "time"

// #region provenance-entry
// ProvenanceEntry is a single row in the provenance_log table.
type ProvenanceEntry struct {
	RunID        string
	QuestionIdx  int
	Status       string // "answered" | "skipped" | "failed"
	ContextHash  string
	EvidenceRefs string
	DetailsJSON  string
	Reason       string
	CreatedAt    time.Time
}

// #endregion provenance-entry

// #region context-record
// ContextRecord captures how one question's context was assembled.
// Serialized as JSON into provenance_log.details_json.
type ContextRecord struct {
	Entities   []string `json:"entities"`
	Candidates int      `json:"candidates"`
	Kept       int      `json:"kept"`
	Cutoff     float64  `json:"cutoff"`
	Chars      int      `json:"chars"`
	Structured bool     `json:"structured"`

	// Thresholds active at decision time
	Percentile        float64 `json:"percentile"`
	MinimumSimilarity float64 `json:"minimum_similarity"`
	Volume            int     `json:"volume"`

	Attempts     int   `json:"attempts"`
	AssembleMsec int64 `json:"assemble_ms"`
	GenerateMsec int64 `json:"generate_ms"`
}

// #endregion context-record
