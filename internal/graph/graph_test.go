package graph

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const edgeCSV = `source,predicate,target,provenance,evidence,context
Disease asthma,ASSOCIATES_DaG,Gene IL13,GWAS,"{""p_value"": 1e-8}",Disease asthma associates Gene IL13
Disease asthma,RESEMBLES_DrD,Disease COPD,NCBI PubMed,"{""enrichment"": 3.1}",Disease asthma resembles Disease COPD
Disease asthma,ASSOCIATES_DaG,Gene IL13,DISEASES,{},Disease asthma associates Gene IL13
`

// #region load-tests
func TestReadBuildsLookups(t *testing.T) {
	table, err := Read(strings.NewReader(edgeCSV))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("expected 2 distinct sentences, got %d", table.Len())
	}

	e, ok := table.Lookup(" Disease asthma associates Gene IL13 ")
	if !ok {
		t.Fatal("expected lookup hit")
	}
	if e.Provenance != "GWAS" {
		t.Errorf("first occurrence should win, got provenance %q", e.Provenance)
	}
	if e.Evidence != `{"p_value": 1e-8}` {
		t.Errorf("unexpected evidence %q", e.Evidence)
	}

	if _, ok := table.Lookup("unknown sentence"); ok {
		t.Error("unexpected lookup hit")
	}
}

func TestReadMissingColumn(t *testing.T) {
	_, err := Read(strings.NewReader("source,target\na,b\n"))
	if err == nil {
		t.Fatal("expected error for missing columns")
	}
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edges.csv")
	if err := os.WriteFile(path, []byte(edgeCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	table, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if table.Len() != 2 {
		t.Errorf("expected 2 sentences, got %d", table.Len())
	}

	if _, err := LoadCSV(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestNilTable(t *testing.T) {
	var table *Table
	if _, ok := table.Lookup("x"); ok {
		t.Error("nil table should never hit")
	}
	if table.Len() != 0 {
		t.Error("nil table should be empty")
	}
}

// #endregion load-tests

// #region render-tests
func TestRender(t *testing.T) {
	e := Edge{
		Source:     "Disease asthma",
		Predicate:  "ASSOCIATES_DaG",
		Target:     "Gene IL13",
		Provenance: "GWAS",
		Evidence:   `{"p_value": 1e-8}`,
	}
	want := "Disease asthma associates_dag Gene IL13 and Provenance of this association is GWAS" +
		" and attributes associated with this association is in the following JSON format:\n {\"p_value\": 1e-8}"
	if got := Render(e); got != want {
		t.Errorf("render mismatch:\n got %q\nwant %q", got, want)
	}
}

// #endregion render-tests
