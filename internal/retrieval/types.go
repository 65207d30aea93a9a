package retrieval

import "github.com/danielpatrickdp/kgrag-mcq/internal/evidence"

// #region config
// Threshold sets the adaptive relevance cutoff for one run.
type Threshold struct {
	Percentile        float64 // 0..100, over the question's candidate scores
	MinimumSimilarity float64 // absolute floor
}

// Options shape one Assemble call.
type Options struct {
	Volume     int // max rendered context size in code points
	Threshold  Threshold
	Structured bool // JSON records instead of flat text
	GeneFilter bool // keep statements naming a gene token from the question
}

// AssemblerConfig holds the settings fixed for the life of an Assembler.
type AssemblerConfig struct {
	NodeTopK  int             // entities searched when no extraction applies
	Extractor EntityExtractor // optional; nil searches with the question text
}

// DefaultAssemblerConfig returns the settings used by the batch CLI.
func DefaultAssemblerConfig() AssemblerConfig {
	return AssemblerConfig{NodeTopK: 5}
}

// #endregion config

// #region context
// Scored is a candidate statement with its relevance to the question.
type Scored struct {
	evidence.Item
	Score float64
}

// Record is one element of a structured context.
type Record struct {
	Entity     string `json:"entity"`
	Statement  string `json:"statement"`
	Provenance string `json:"provenance,omitempty"`
	Evidence   string `json:"evidence,omitempty"`
}

// Context is the assembled, budget-bounded context for one question.
type Context struct {
	Items      []Scored // retained items in descending score order, after truncation
	Entities   []string // matched graph entities
	Candidates int      // statements scored before thresholding
	Cutoff     float64
	Structured bool

	text string
}

// String returns the rendered context exactly as it was measured against
// the volume budget.
func (c Context) String() string { return c.text }

// Len is the rendered size in code points.
func (c Context) Len() int { return runeLen(c.text) }

// #endregion context
