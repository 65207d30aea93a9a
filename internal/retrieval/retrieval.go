// Package retrieval assembles the bounded, relevance-filtered context for a
// question from the node index and the evidence table.
package retrieval

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/kgrag-mcq/internal/embed"
	"github.com/danielpatrickdp/kgrag-mcq/internal/evidence"
	"github.com/danielpatrickdp/kgrag-mcq/internal/failure"
	"github.com/danielpatrickdp/kgrag-mcq/internal/index"
	"github.com/danielpatrickdp/kgrag-mcq/internal/log"
)

// #region assembler
// Assembler turns a question into a Context. It holds only read-only
// collaborators, so one instance serves a whole run.
type Assembler struct {
	index    index.Index
	table    *evidence.Table
	embedder embed.Embedder // context model, scores statements
	config   AssemblerConfig
}

// NewAssembler wires the index, evidence table and context embedder.
func NewAssembler(idx index.Index, table *evidence.Table, embedder embed.Embedder, config AssemblerConfig) *Assembler {
	if config.NodeTopK <= 0 {
		config.NodeTopK = DefaultAssemblerConfig().NodeTopK
	}
	return &Assembler{index: idx, table: table, embedder: embedder, config: config}
}

// #endregion assembler

// #region assemble
// Assemble runs the retrieval pipeline:
//  1. Locate: nearest graph entities to the question (or to each extracted entity)
//  2. Gather: every statement of those entities, deduplicated
//  3. Score: cosine similarity of question and statement under the context model
//  4. Threshold: keep score >= max(floor, percentile); never empty when candidates exist
//  5. Gene filter (optional): keep statements naming a gene from the question
//  6. Budget: descending score until the rendered size reaches opts.Volume
func (a *Assembler) Assemble(ctx context.Context, question string, opts Options) (Context, error) {
	out := Context{Structured: opts.Structured}

	entities, err := a.locate(ctx, question)
	if err != nil {
		return out, err
	}
	out.Entities = entities

	candidates := a.gather(entities)
	out.Candidates = len(candidates)
	if len(candidates) == 0 {
		out.Items, out.text = a.pack(nil, opts)
		return out, nil
	}

	scored, err := a.score(ctx, question, candidates)
	if err != nil {
		return out, err
	}

	scores := make([]float64, len(scored))
	for i, s := range scored {
		scores[i] = s.Score
	}
	out.Cutoff = Cutoff(scores, opts.Threshold)
	kept := selectRelevant(scored, out.Cutoff)
	if opts.GeneFilter {
		kept = filterGenes(kept, question)
	}
	sortByScore(kept)

	out.Items, out.text = a.pack(kept, opts)
	log.Debugf("assembled context: entities=%d candidates=%d cutoff=%.4f kept=%d chars=%d",
		len(entities), len(candidates), out.Cutoff, len(out.Items), out.Len())
	return out, nil
}

// #endregion assemble

// #region stages
func (a *Assembler) locate(ctx context.Context, question string) ([]string, error) {
	var names []string
	if a.config.Extractor != nil {
		extracted, err := a.config.Extractor.Extract(ctx, question)
		if err != nil {
			return nil, retrievalErr("extract entities", err)
		}
		names = extracted
	}

	var hits []index.Hit
	if len(names) > 0 {
		for _, name := range names {
			h, err := a.index.Nearest(ctx, name, 1)
			if err != nil {
				return nil, retrievalErr("node search", err)
			}
			hits = append(hits, h...)
		}
	} else {
		h, err := a.index.Nearest(ctx, question, a.config.NodeTopK)
		if err != nil {
			return nil, retrievalErr("node search", err)
		}
		hits = h
	}

	seen := make(map[string]bool, len(hits))
	entities := make([]string, 0, len(hits))
	for _, h := range hits {
		if seen[h.Entity] {
			continue
		}
		seen[h.Entity] = true
		entities = append(entities, h.Entity)
	}
	return entities, nil
}

// gather collects the entities' statements, dropping empty and repeated ones.
func (a *Assembler) gather(entities []string) []evidence.Item {
	seen := make(map[string]bool)
	var items []evidence.Item
	for _, e := range entities {
		for _, it := range a.table.Items(e) {
			if it.Statement == "" || seen[it.Statement] {
				continue
			}
			seen[it.Statement] = true
			items = append(items, it)
		}
	}
	return items
}

func (a *Assembler) score(ctx context.Context, question string, items []evidence.Item) ([]Scored, error) {
	texts := make([]string, 0, len(items)+1)
	texts = append(texts, question)
	for _, it := range items {
		texts = append(texts, it.Statement)
	}
	vecs, err := a.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, retrievalErr("embed statements", err)
	}
	if len(vecs) != len(texts) {
		return nil, retrievalErr("embed statements",
			fmt.Errorf("got %d vectors for %d texts", len(vecs), len(texts)))
	}
	q := vecs[0]
	scored := make([]Scored, len(items))
	for i, it := range items {
		scored[i] = Scored{Item: it, Score: embed.Cosine(q, vecs[i+1])}
	}
	return scored, nil
}

func (a *Assembler) pack(items []Scored, opts Options) ([]Scored, string) {
	if opts.Structured {
		return packStructured(items, opts.Volume)
	}
	return packFlat(items, opts.Volume)
}

// retrievalErr keeps an existing failure kind and tags everything else as a
// Retrieval failure.
func retrievalErr(op string, err error) error {
	if _, ok := failure.KindOf(err); ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	return failure.New(failure.Retrieval, op, err)
}

// #endregion stages
