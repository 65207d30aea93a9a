package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/kgrag-mcq/internal/logging"
	"github.com/danielpatrickdp/kgrag-mcq/internal/state"
)

func seedLedger(t *testing.T) (string, string) {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	store, err := state.NewStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	run, err := store.StartRun(ctx, state.RunRecord{Model: "gpt-4o", Mode: "1", EndIndex: 2, OutputPath: "results/out.csv"})
	require.NoError(t, err)

	results := []state.ResultRecord{
		{Index: 0, Question: "q0", CorrectAnswer: "IL13", Answer: "Skipped", Status: "skipped"},
		{Index: 1, Question: "q1", CorrectAnswer: "TP53", Answer: `{"answer": "TP53"}`, Status: "answered", Attempts: 1, ContextChars: 420},
		{Index: 2, Question: "q2", CorrectAnswer: "HLA-B", Answer: "Error", Status: "failed", Attempts: 2},
	}
	for _, r := range results {
		r.RunID = run.RunID
		require.NoError(t, store.RecordResult(ctx, r))
	}
	details, err := logging.MarshalRecord(logging.ContextRecord{Candidates: 12, Kept: 3, Cutoff: 0.61, Chars: 420})
	require.NoError(t, err)
	require.NoError(t, logging.LogDecision(ctx, store.DB(), logging.ProvenanceEntry{
		RunID:        run.RunID,
		QuestionIdx:  1,
		Status:       "answered",
		ContextHash:  logging.HashContext("ctx"),
		EvidenceRefs: "Disease psoriasis",
		DetailsJSON:  details,
	}))
	require.NoError(t, logging.LogDecision(ctx, store.DB(), logging.ProvenanceEntry{
		RunID:       run.RunID,
		QuestionIdx: 2,
		Status:      "failed",
		Reason:      "model unavailable",
	}))
	require.NoError(t, store.FinishRun(ctx, run.RunID, state.RunTotals{Answered: 1, Skipped: 1, Failed: 1}))
	return dbPath, run.RunID
}

func TestListModeJSON(t *testing.T) {
	dbPath, runID := seedLedger(t)
	var out, errOut bytes.Buffer

	require.Equal(t, 0, run(context.Background(), []string{"--db", dbPath, "--json"}, &out, &errOut), errOut.String())

	var rows []listRow
	require.NoError(t, json.Unmarshal(out.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, runID, rows[0].RunID)
	assert.Equal(t, "0-2", rows[0].Window)
	assert.Equal(t, 1, rows[0].Failed)
	assert.True(t, rows[0].Finished)
}

func TestListModeTable(t *testing.T) {
	dbPath, runID := seedLedger(t)
	var out, errOut bytes.Buffer

	require.Equal(t, 0, run(context.Background(), []string{"--db", dbPath}, &out, &errOut))
	assert.Contains(t, out.String(), shortID(runID))
	assert.Contains(t, out.String(), "gpt-4o")
}

func TestDetailModeScoresAndProvenance(t *testing.T) {
	dbPath, runID := seedLedger(t)
	var out, errOut bytes.Buffer

	code := run(context.Background(), []string{"--db", dbPath, "--run", runID, "--provenance", "--json"}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())

	var detail detailOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &detail))
	assert.Equal(t, "results/out.csv", detail.OutputPath)
	assert.NotEmpty(t, detail.FinishedAt)
	require.Len(t, detail.Results, 3)
	assert.True(t, detail.Results[1].Correct)
	assert.Equal(t, "TP53", detail.Results[1].Answer)
	assert.False(t, detail.Results[2].Correct)
	assert.Equal(t, 1, detail.Score.Correct)
	assert.Equal(t, 1.0, detail.Score.Accuracy)

	require.Len(t, detail.Provenance, 2)
	require.NotNil(t, detail.Provenance[0].Record)
	assert.Equal(t, 3, detail.Provenance[0].Record.Kept)
	assert.Nil(t, detail.Provenance[1].Record)
	assert.Equal(t, "model unavailable", detail.Provenance[1].Reason)
}

func TestDetailModeTable(t *testing.T) {
	dbPath, runID := seedLedger(t)
	var out, errOut bytes.Buffer

	require.Equal(t, 0, run(context.Background(), []string{"--db", dbPath, "--run", runID, "--provenance"}, &out, &errOut))
	text := out.String()
	assert.Contains(t, text, "Accuracy: 1.0000 (1/1 attempted, 1 skipped, 1 errors)")
	assert.Contains(t, text, "reason: model unavailable")
	assert.True(t, strings.Contains(text, "kept 3 of 12"))
}

func TestUnknownRunFails(t *testing.T) {
	dbPath, _ := seedLedger(t)
	var out, errOut bytes.Buffer

	assert.Equal(t, 1, run(context.Background(), []string{"--db", dbPath, "--run", "nope"}, &out, &errOut))
	assert.Contains(t, errOut.String(), "not found")
}

func TestMissingDBIsUsageError(t *testing.T) {
	var out, errOut bytes.Buffer
	assert.Equal(t, 2, run(context.Background(), nil, &out, &errOut))
	assert.Equal(t, 2, run(context.Background(), []string{"--bogus"}, &out, &errOut))
}
