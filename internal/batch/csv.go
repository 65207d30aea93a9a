package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/danielpatrickdp/kgrag-mcq/internal/failure"
	"github.com/danielpatrickdp/kgrag-mcq/internal/prompt"
)

// Column names of the question and result files.
const (
	ColText          = "text"
	ColCorrectNode   = "correct_node"
	ColQuestion      = "question"
	ColCorrectAnswer = "correct_answer"
	ColLLMAnswer     = "llm_answer"
)

// #region questions
// LoadQuestions reads the question file. Extra columns are ignored.
func LoadQuestions(path string) ([]Question, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, failure.Configf("load questions", "open %s: %w", path, err)
	}
	defer f.Close()
	qs, err := ReadQuestions(f)
	if err != nil {
		return nil, failure.Configf("load questions", "%s: %w", path, err)
	}
	return qs, nil
}

// ReadQuestions parses question CSV with a header naming text and correct_node.
func ReadQuestions(r io.Reader) ([]Question, error) {
	records, cols, err := readTable(r, ColText, ColCorrectNode)
	if err != nil {
		return nil, err
	}
	qs := make([]Question, 0, len(records))
	for _, rec := range records {
		qs = append(qs, Question{Text: rec[cols[0]], CorrectAnswer: rec[cols[1]]})
	}
	return qs, nil
}

// #endregion questions

// #region results
// ReadRows parses a result file written by CSVWriter.
func ReadRows(r io.Reader) ([]Row, error) {
	records, cols, err := readTable(r, ColQuestion, ColCorrectAnswer, ColLLMAnswer)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, Row{Question: rec[cols[0]], CorrectAnswer: rec[cols[1]], Answer: rec[cols[2]]})
	}
	return rows, nil
}

// LoadRows reads a result file from disk.
func LoadRows(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadRows(f)
}

// OutputName is the result file name for a run started at startedAt.
func OutputName(modelID string, mode prompt.Mode, startedAt time.Time) string {
	return strings.Join(strings.Split(modelID, "-"), "_") +
		"_kg_rag_based_mcq_" + mode.ID() + "_" + strconv.FormatInt(startedAt.UnixNano(), 10) + ".csv"
}

// CSVWriter rewrites the whole result file on every Write. The file is
// replaced by rename, so readers never see a partial write.
type CSVWriter struct {
	path string
}

// NewCSVWriter writes to dir/name.
func NewCSVWriter(dir, name string) *CSVWriter {
	return &CSVWriter{path: filepath.Join(dir, name)}
}

// Path implements Writer.
func (w *CSVWriter) Path() string { return w.path }

// Write implements Writer.
func (w *CSVWriter) Write(rows []Row) error {
	if err := w.write(rows); err != nil {
		return failure.New(failure.Persistence, "write results", err)
	}
	return nil
}

func (w *CSVWriter) write(rows []Row) error {
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(w.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	cw := csv.NewWriter(tmp)
	_ = cw.Write([]string{ColQuestion, ColCorrectAnswer, ColLLMAnswer})
	for _, row := range rows {
		_ = cw.Write([]string{row.Question, row.CorrectAnswer, row.Answer})
	}
	cw.Flush()
	if err := errors.Join(cw.Error(), tmp.Close()); err != nil {
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return fmt.Errorf("rename to %s: %w", w.path, err)
	}
	return nil
}

// #endregion results

// #region table
// readTable returns the data records and the index of each wanted column.
func readTable(r io.Reader, want ...string) ([][]string, []int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, errors.New("empty file, want a header row")
		}
		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}
	cols := make([]int, len(want))
	for i, name := range want {
		p, ok := pos[name]
		if !ok {
			return nil, nil, fmt.Errorf("missing column %q", name)
		}
		cols[i] = p
	}

	var records [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read record: %w", err)
		}
		for _, c := range cols {
			if c >= len(rec) {
				line, _ := cr.FieldPos(0)
				return nil, nil, fmt.Errorf("line %d: %d fields, want at least %d", line, len(rec), c+1)
			}
		}
		records = append(records, rec)
	}
	return records, cols, nil
}

// #endregion table
