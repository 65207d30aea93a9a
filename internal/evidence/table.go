// Package evidence maps knowledge-graph entities to the statements that
// describe them.
package evidence

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/danielpatrickdp/kgrag-mcq/internal/graph"
)

// StatementSeparator splits a node's context paragraph into statements.
const StatementSeparator = ". "

// #region types
// Item is one candidate statement for the context.
type Item struct {
	Entity    string
	Statement string
	Edge      *graph.Edge // set when edge evidence is attached
}

// Text is the statement as it appears in a prompt. Items backed by an edge
// carry its provenance and attributes.
func (it Item) Text() string {
	if it.Edge != nil {
		return graph.Render(*it.Edge)
	}
	return it.Statement
}

// Table is loaded once and never mutated afterwards.
type Table struct {
	items map[string][]Item
}

// #endregion types

// #region load
// LoadCSV reads a node context table with columns node_name,node_context.
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open node context: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses a node context table from r. Rows repeating a node name add to
// that node's statements.
func Read(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("node context header: %w", err)
	}
	nameCol, ctxCol := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case "node_name":
			nameCol = i
		case "node_context":
			ctxCol = i
		}
	}
	if nameCol < 0 || ctxCol < 0 {
		return nil, fmt.Errorf("node context: need node_name and node_context columns, got %v", header)
	}

	t := &Table{items: map[string][]Item{}}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("node context line %d: %w", line, err)
		}
		if nameCol >= len(rec) || ctxCol >= len(rec) {
			continue
		}
		name := rec[nameCol]
		for _, s := range strings.Split(rec[ctxCol], StatementSeparator) {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			t.items[name] = append(t.items[name], Item{Entity: name, Statement: s})
		}
	}
	return t, nil
}

// #endregion load

// #region query
// Items returns the statements for entity. Unknown entities give nil.
func (t *Table) Items(entity string) []Item {
	src := t.items[entity]
	if len(src) == 0 {
		return nil
	}
	out := make([]Item, len(src))
	copy(out, src)
	return out
}

// Len is the number of entities with at least one statement.
func (t *Table) Len() int { return len(t.items) }

// AttachEdges links every statement that is the sentence form of an edge to
// that edge, and returns how many were linked.
func (t *Table) AttachEdges(edges *graph.Table) int {
	n := 0
	for name, items := range t.items {
		for i := range items {
			if e, ok := edges.Lookup(items[i].Statement); ok {
				edge := e
				items[i].Edge = &edge
				n++
			}
		}
		t.items[name] = items
	}
	return n
}

// #endregion query
