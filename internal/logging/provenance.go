// Package logging writes the per-question provenance trail that links each
// recorded answer to the evidence it was given.
package logging

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// #region log-decision
// LogDecision writes a provenance entry to the provenance_log table.
func LogDecision(ctx context.Context, db *sql.DB, entry ProvenanceEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO provenance_log (run_id, question_idx, status, context_hash, evidence_refs, details_json, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.QuestionIdx,
		entry.Status,
		nullIfEmpty(entry.ContextHash),
		nullIfEmpty(entry.EvidenceRefs),
		nullIfEmpty(entry.DetailsJSON),
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region entries
// Entries returns a run's provenance rows in insertion order.
func Entries(ctx context.Context, db *sql.DB, runID string) ([]ProvenanceEntry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT run_id, question_idx, status, context_hash, evidence_refs, details_json, reason, created_at
		 FROM provenance_log WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query provenance: %w", err)
	}
	defer rows.Close()

	var out []ProvenanceEntry
	for rows.Next() {
		var e ProvenanceEntry
		var hash, refs, details, reason sql.NullString
		var created string
		if err := rows.Scan(&e.RunID, &e.QuestionIdx, &e.Status, &hash, &refs, &details, &reason, &created); err != nil {
			return nil, fmt.Errorf("scan provenance: %w", err)
		}
		e.ContextHash, e.EvidenceRefs, e.DetailsJSON, e.Reason = hash.String, refs.String, details.String, reason.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion entries

// #region helpers
// HashContext is the hex sha256 of the rendered context. Empty text hashes
// to the empty string.
func HashContext(text string) string {
	if text == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// JoinRefs renders evidence references as one comma separated column,
// dropping duplicates and keeping first-seen order.
func JoinRefs(refs []string) string {
	seen := make(map[string]bool, len(refs))
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return strings.Join(out, ",")
}

// MarshalRecord renders rec for the details_json column.
func MarshalRecord(rec ContextRecord) (string, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal context record: %w", err)
	}
	return string(b), nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
