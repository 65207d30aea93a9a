// Package prompt selects the retrieval shape and prompt template for a mode
// and composes the final prompt text.
package prompt

import (
	"strconv"
	"strings"

	"github.com/danielpatrickdp/kgrag-mcq/internal/failure"
	"github.com/danielpatrickdp/kgrag-mcq/internal/retrieval"
)

// #region mode
// Mode selects context shape and prompt template.
type Mode int

const (
	ModeFlat            Mode = iota // 0: flat context
	ModeStructured                  // 1: JSON records
	ModeFlatPrior                   // 2: flat context plus prior knowledge
	ModeStructuredPrior             // 3: JSON records plus prior knowledge
	ModeGeneFiltered                // 4: flat context limited to genes named in the question
)

type modeSpec struct {
	name       string
	structured bool
	geneFilter bool
	prior      bool
}

// modes is the single dispatch table every mode decision reads from.
var modes = map[Mode]modeSpec{
	ModeFlat:            {name: "flat"},
	ModeStructured:      {name: "structured", structured: true},
	ModeFlatPrior:       {name: "flat+prior", prior: true},
	ModeStructuredPrior: {name: "structured+prior", structured: true, prior: true},
	ModeGeneFiltered:    {name: "gene-filtered", geneFilter: true},
}

// ParseMode reads a mode id "0".."4". Empty or unknown ids are
// configuration errors.
func ParseMode(s string) (Mode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, failure.Configf("parse mode", "mode is required, choose from 0, 1, 2, 3 or 4")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, failure.Configf("parse mode", "invalid mode %q, choose from 0, 1, 2, 3 or 4", s)
	}
	m := Mode(n)
	if !m.Valid() {
		return 0, failure.Configf("parse mode", "invalid mode %q, choose from 0, 1, 2, 3 or 4", s)
	}
	return m, nil
}

// Valid reports whether m is one of the five known modes.
func (m Mode) Valid() bool {
	_, ok := modes[m]
	return ok
}

// ID is the numeric form used on the command line and in output names.
func (m Mode) ID() string { return strconv.Itoa(int(m)) }

func (m Mode) String() string {
	if s, ok := modes[m]; ok {
		return m.ID() + " (" + s.name + ")"
	}
	return "invalid(" + m.ID() + ")"
}

// Structured reports whether the mode uses JSON records.
func (m Mode) Structured() bool { return modes[m].structured }

// GeneFilter reports whether the mode restricts context to question genes.
func (m Mode) GeneFilter() bool { return modes[m].geneFilter }

// NeedsPriorKnowledge reports whether the prompt carries IMPORTANT NOTES.
func (m Mode) NeedsPriorKnowledge() bool { return modes[m].prior }

// RetrievalOptions derives the assembler options for the mode.
func (m Mode) RetrievalOptions(volume int, threshold retrieval.Threshold) retrieval.Options {
	return retrieval.Options{
		Volume:     volume,
		Threshold:  threshold,
		Structured: m.Structured(),
		GeneFilter: m.GeneFilter(),
	}
}

// #endregion mode

// #region builder
// Builder composes prompts for one mode. It carries no per-call state.
type Builder struct {
	mode  Mode
	prior string
}

// NewBuilder validates the mode against the prior knowledge up front, so a
// misconfigured run fails before any retrieval or model call.
func NewBuilder(mode Mode, prior *string) (*Builder, error) {
	if !mode.Valid() {
		return nil, failure.Configf("prompt builder", "invalid mode %d", int(mode))
	}
	b := &Builder{mode: mode}
	if mode.NeedsPriorKnowledge() {
		if prior == nil {
			return nil, failure.Configf("prompt builder", "mode %s needs prior knowledge (--prior_knowledge or --prior_knowledge_path)", mode.ID())
		}
		b.prior = *prior
	}
	return b, nil
}

// Mode returns the builder's mode.
func (b *Builder) Mode() Mode { return b.mode }

// Build returns the prompt for one question.
func (b *Builder) Build(context, question string) string {
	if b.mode.NeedsPriorKnowledge() {
		return "Context: " + context + "\n" + "IMPORTANT NOTES:\n" + b.prior + "\n" + "Question: " + question
	}
	return "Context: " + context + "\n" + "Question: " + question
}

// #endregion builder
