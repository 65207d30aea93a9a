// Package graph holds the edge evidence of the knowledge graph: the
// provenance and attribute JSON behind each relationship sentence.
package graph

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// #region types
// Edge is one knowledge-graph relationship with its provenance.
type Edge struct {
	Source     string
	Predicate  string
	Target     string
	Provenance string
	Evidence   string // JSON attributes
	Context    string // the sentence form that appears in node context
}

// Table maps a relationship sentence to its edge. Read-only after load.
type Table struct {
	byContext map[string]Edge
}

// #endregion types

// #region load
var requiredColumns = []string{"source", "predicate", "target", "provenance", "evidence", "context"}

// LoadCSV reads an edge evidence table with columns
// source,predicate,target,provenance,evidence,context. Extra columns are ignored.
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open edge table: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses an edge table from r.
func Read(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("edge table header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	for _, name := range requiredColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("edge table: missing column %q", name)
		}
	}

	t := &Table{byContext: map[string]Edge{}}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("edge table line %d: %w", line, err)
		}
		get := func(name string) string {
			if i := col[name]; i < len(rec) {
				return rec[i]
			}
			return ""
		}
		e := Edge{
			Source:     get("source"),
			Predicate:  get("predicate"),
			Target:     get("target"),
			Provenance: get("provenance"),
			Evidence:   get("evidence"),
			Context:    strings.TrimSpace(get("context")),
		}
		if _, dup := t.byContext[e.Context]; !dup {
			t.byContext[e.Context] = e
		}
	}
	return t, nil
}

// #endregion load

// #region lookup
// Lookup returns the edge whose sentence form is statement.
func (t *Table) Lookup(statement string) (Edge, bool) {
	if t == nil {
		return Edge{}, false
	}
	e, ok := t.byContext[strings.TrimSpace(statement)]
	return e, ok
}

// Len is the number of distinct relationship sentences.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.byContext)
}

// #endregion lookup

// #region render
// Render writes the edge as the prompt sentence carrying its provenance and
// attribute JSON.
func Render(e Edge) string {
	return e.Source + " " + strings.ToLower(e.Predicate) + " " + e.Target +
		" and Provenance of this association is " + e.Provenance +
		" and attributes associated with this association is in the following JSON format:\n " + e.Evidence
}

// #endregion render
