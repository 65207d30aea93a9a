// Package state keeps the run ledger: one row per batch run and one per
// question recorded in it, alongside the provenance log.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id         TEXT PRIMARY KEY,
	parent_id      TEXT,
	model          TEXT NOT NULL,
	mode           TEXT NOT NULL,
	start_index    INTEGER NOT NULL,
	end_index      INTEGER NOT NULL,
	output_path    TEXT NOT NULL,
	started_at     TEXT NOT NULL,
	finished_at    TEXT,
	answered       INTEGER NOT NULL DEFAULT 0,
	skipped        INTEGER NOT NULL DEFAULT 0,
	failed         INTEGER NOT NULL DEFAULT 0,
	persist_errors INTEGER NOT NULL DEFAULT 0,
	FOREIGN KEY (parent_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS results (
	run_id         TEXT NOT NULL,
	idx            INTEGER NOT NULL,
	question       TEXT NOT NULL,
	correct_answer TEXT NOT NULL,
	llm_answer     TEXT NOT NULL,
	status         TEXT NOT NULL,
	attempts       INTEGER NOT NULL DEFAULT 0,
	context_chars  INTEGER NOT NULL DEFAULT 0,
	recorded_at    TEXT NOT NULL,
	PRIMARY KEY (run_id, idx),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS provenance_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	question_idx  INTEGER NOT NULL,
	status        TEXT NOT NULL,
	context_hash  TEXT,
	evidence_refs TEXT,
	details_json  TEXT,
	reason        TEXT,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`

// #endregion schema

// #region store-struct
// Store manages the run ledger in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations. ":memory:" gives a
// private in-memory ledger.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for the provenance logger.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion db-accessor

// #region start-run
// StartRun inserts a new run and returns it with a fresh RunID and StartedAt.
func (s *Store) StartRun(ctx context.Context, rec RunRecord) (RunRecord, error) {
	rec.RunID = uuid.New().String()
	if rec.StartedAt.IsZero() {
		rec.StartedAt = s.now()
	}
	rec.StartedAt = rec.StartedAt.UTC()
	rec.FinishedAt = time.Time{}
	rec.Answered, rec.Skipped, rec.Failed, rec.PersistErrors = 0, 0, 0, 0

	var parent any
	if rec.ParentID != "" {
		parent = rec.ParentID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, parent_id, model, mode, start_index, end_index, output_path, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, parent, rec.Model, rec.Mode, rec.StartIndex, rec.EndIndex, rec.OutputPath,
		rec.StartedAt.Format(timeLayout),
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("insert run: %w", err)
	}
	return rec, nil
}

// #endregion start-run

// #region record-result
// RecordResult upserts one question's row, keyed by run and index.
func (s *Store) RecordResult(ctx context.Context, rec ResultRecord) error {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (run_id, idx, question, correct_answer, llm_answer, status, attempts, context_chars, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, idx) DO UPDATE SET
			question = excluded.question,
			correct_answer = excluded.correct_answer,
			llm_answer = excluded.llm_answer,
			status = excluded.status,
			attempts = excluded.attempts,
			context_chars = excluded.context_chars,
			recorded_at = excluded.recorded_at`,
		rec.RunID, rec.Index, rec.Question, rec.CorrectAnswer, rec.Answer, rec.Status,
		rec.Attempts, rec.ContextChars, rec.RecordedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("record result %s/%d: %w", rec.RunID, rec.Index, err)
	}
	return nil
}

// #endregion record-result

// #region finish-run
// FinishRun stamps the run's end time and totals.
func (s *Store) FinishRun(ctx context.Context, runID string, totals RunTotals) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, answered = ?, skipped = ?, failed = ?, persist_errors = ?
		 WHERE run_id = ?`,
		s.now().UTC().Format(timeLayout),
		totals.Answered, totals.Skipped, totals.Failed, totals.PersistErrors, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrNotFound)
	}
	return nil
}

// #endregion finish-run

// #region get-run
// GetRun retrieves one run by id.
func (s *Store) GetRun(ctx context.Context, runID string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("get run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return rec, nil
}

// LatestRun returns the most recent run for model and mode, the natural
// parent when a run is resumed.
func (s *Store) LatestRun(ctx context.Context, model, mode string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE model = ? AND mode = ?
		 ORDER BY started_at DESC LIMIT 1`, model, mode)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, ErrNotFound
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("latest run: %w", err)
	}
	return rec, nil
}

// #endregion get-run

// #region list-runs
// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion list-runs

// #region results
// Results returns a run's rows in question order.
func (s *Store) Results(ctx context.Context, runID string) ([]ResultRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, idx, question, correct_answer, llm_answer, status, attempts, context_chars, recorded_at
		 FROM results WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("results: %w", err)
	}
	defer rows.Close()

	var records []ResultRecord
	for rows.Next() {
		var rec ResultRecord
		var recorded string
		if err := rows.Scan(&rec.RunID, &rec.Index, &rec.Question, &rec.CorrectAnswer, &rec.Answer,
			&rec.Status, &rec.Attempts, &rec.ContextChars, &recorded); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec.RecordedAt, _ = time.Parse(timeLayout, recorded)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion results

// #region scan
const runColumns = `run_id, parent_id, model, mode, start_index, end_index, output_path,
	started_at, finished_at, answered, skipped, failed, persist_errors`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (RunRecord, error) {
	var rec RunRecord
	var parentID, finished sql.NullString
	var started string
	err := sc.Scan(&rec.RunID, &parentID, &rec.Model, &rec.Mode, &rec.StartIndex, &rec.EndIndex,
		&rec.OutputPath, &started, &finished, &rec.Answered, &rec.Skipped, &rec.Failed, &rec.PersistErrors)
	if err != nil {
		return RunRecord{}, err
	}
	if parentID.Valid {
		rec.ParentID = parentID.String
	}
	rec.StartedAt, _ = time.Parse(timeLayout, started)
	if finished.Valid {
		rec.FinishedAt, _ = time.Parse(timeLayout, finished.String)
	}
	return rec, nil
}

// #endregion scan
