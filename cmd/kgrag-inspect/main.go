// Command kgrag-inspect prints the run ledger written by kgrag-mcq: recent
// runs, and for one run its per-question results and provenance.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/kgrag-mcq/internal/batch"
	"github.com/danielpatrickdp/kgrag-mcq/internal/eval"
	"github.com/danielpatrickdp/kgrag-mcq/internal/failure"
	"github.com/danielpatrickdp/kgrag-mcq/internal/logging"
	"github.com/danielpatrickdp/kgrag-mcq/internal/state"
)

// #region main
func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		if failure.Is(err, failure.Configuration) {
			return 2
		}
		return 1
	}
	return 0
}

type options struct {
	dbPath     string
	last       int
	runID      string
	provenance bool
	jsonOut    bool
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "kgrag-inspect --db results/ledger.db [--run id]",
		Short: "Show kgrag-mcq runs, results and provenance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.dbPath == "" {
				return failure.Configf("flags", "--db is required")
			}
			store, err := state.NewStore(opts.dbPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if opts.runID != "" {
				return runDetailMode(cmd.Context(), out, store, opts.runID, opts.provenance, opts.jsonOut)
			}
			return runListMode(cmd.Context(), out, store, opts.last, opts.jsonOut)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return failure.New(failure.Configuration, "flags", err)
	})

	f := cmd.Flags()
	f.StringVar(&opts.dbPath, "db", "", "path to the run ledger (ledger.db)")
	f.IntVar(&opts.last, "last", 20, "show N most recent runs")
	f.StringVar(&opts.runID, "run", "", "show single run detail")
	f.BoolVar(&opts.provenance, "provenance", false, "include per-question provenance in run detail")
	f.BoolVar(&opts.jsonOut, "json", false, "output as JSON instead of table")
	return cmd
}

// #endregion main

// #region list-mode

type listRow struct {
	RunID         string `json:"run_id"`
	ParentID      string `json:"parent_id,omitempty"`
	Model         string `json:"model"`
	Mode          string `json:"mode"`
	Window        string `json:"window"`
	Answered      int    `json:"answered"`
	Skipped       int    `json:"skipped"`
	Failed        int    `json:"failed"`
	PersistErrors int    `json:"persist_errors"`
	StartedAt     string `json:"started_at"`
	Finished      bool   `json:"finished"`
}

func runListMode(ctx context.Context, w io.Writer, store *state.Store, last int, jsonOut bool) error {
	runs, err := store.ListRuns(ctx, last)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs found")
		return nil
	}

	// Store returns DESC, reverse for chronological
	rows := make([]listRow, len(runs))
	for i, r := range runs {
		rows[len(runs)-1-i] = listRow{
			RunID:         r.RunID,
			ParentID:      r.ParentID,
			Model:         r.Model,
			Mode:          r.Mode,
			Window:        fmt.Sprintf("%d-%d", r.StartIndex, r.EndIndex),
			Answered:      r.Answered,
			Skipped:       r.Skipped,
			Failed:        r.Failed,
			PersistErrors: r.PersistErrors,
			StartedAt:     r.StartedAt.Format("2006-01-02T15:04:05Z"),
			Finished:      r.Finished(),
		}
	}

	if jsonOut {
		return printJSON(w, rows)
	}
	printListTable(w, rows)
	return nil
}

func printListTable(w io.Writer, rows []listRow) {
	fmt.Fprintf(w, "%-8s  %-8s  %-24s  %-4s  %-9s  %8s  %7s  %6s  %-6s  %s\n",
		"Run", "Parent", "Model", "Mode", "Window", "Answered", "Skipped", "Failed", "Done", "Started")
	fmt.Fprintf(w, "%-8s+-%-8s+-%-24s+-%-4s+-%-9s+-%8s+-%7s+-%6s+-%-6s+-%s\n",
		"--------", "--------", "------------------------", "----", "---------", "--------", "-------", "------", "------", "--------------------")
	for _, r := range rows {
		parent := "-"
		if r.ParentID != "" {
			parent = shortID(r.ParentID)
		}
		fmt.Fprintf(w, "%-8s  %-8s  %-24s  %-4s  %-9s  %8d  %7d  %6d  %-6v  %s\n",
			shortID(r.RunID), parent, r.Model, r.Mode, r.Window, r.Answered, r.Skipped, r.Failed, r.Finished, r.StartedAt)
	}
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	RunID      string             `json:"run_id"`
	ParentID   string             `json:"parent_id"`
	Model      string             `json:"model"`
	Mode       string             `json:"mode"`
	OutputPath string             `json:"output_path"`
	StartedAt  string             `json:"started_at"`
	FinishedAt string             `json:"finished_at,omitempty"`
	Score      eval.EvalResult    `json:"score"`
	Results    []resultRow        `json:"results"`
	Provenance []provenanceDetail `json:"provenance,omitempty"`
}

type resultRow struct {
	Index        int    `json:"index"`
	Status       string `json:"status"`
	Attempts     int    `json:"attempts"`
	ContextChars int    `json:"context_chars"`
	Correct      bool   `json:"correct"`
	Answer       string `json:"answer"`
}

type provenanceDetail struct {
	QuestionIdx  int                    `json:"question_idx"`
	Status       string                 `json:"status"`
	ContextHash  string                 `json:"context_hash,omitempty"`
	EvidenceRefs string                 `json:"evidence_refs,omitempty"`
	Reason       string                 `json:"reason,omitempty"`
	Record       *logging.ContextRecord `json:"record,omitempty"`
}

func runDetailMode(ctx context.Context, w io.Writer, store *state.Store, runID string, withProvenance, jsonOut bool) error {
	r, err := store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	results, err := store.Results(ctx, runID)
	if err != nil {
		return err
	}

	out := detailOutput{
		RunID:      r.RunID,
		ParentID:   r.ParentID,
		Model:      r.Model,
		Mode:       r.Mode,
		OutputPath: r.OutputPath,
		StartedAt:  r.StartedAt.Format("2006-01-02T15:04:05Z"),
		Results:    make([]resultRow, len(results)),
	}
	if r.Finished() {
		out.FinishedAt = r.FinishedAt.Format("2006-01-02T15:04:05Z")
	}
	rows := make([]batch.Row, len(results))
	for i, res := range results {
		rows[i] = batch.Row{Question: res.Question, CorrectAnswer: res.CorrectAnswer, Answer: res.Answer}
		out.Results[i] = resultRow{
			Index:        res.Index,
			Status:       res.Status,
			Attempts:     res.Attempts,
			ContextChars: res.ContextChars,
			Correct:      res.Status == string(batch.StatusAnswered) && eval.Match(eval.ParseAnswer(res.Answer), res.CorrectAnswer),
			Answer:       eval.ParseAnswer(res.Answer),
		}
	}
	out.Score = eval.Score(rows)

	if withProvenance {
		entries, err := logging.Entries(ctx, store.DB(), runID)
		if err != nil {
			return err
		}
		for _, e := range entries {
			out.Provenance = append(out.Provenance, provenanceDetail{
				QuestionIdx:  e.QuestionIdx,
				Status:       e.Status,
				ContextHash:  e.ContextHash,
				EvidenceRefs: e.EvidenceRefs,
				Reason:       e.Reason,
				Record:       parseContextRecord(e.DetailsJSON),
			})
		}
	}

	if jsonOut {
		return printJSON(w, out)
	}

	fmt.Fprintf(w, "Run:      %s\n", out.RunID)
	fmt.Fprintf(w, "Parent:   %s\n", out.ParentID)
	fmt.Fprintf(w, "Model:    %s (mode %s)\n", out.Model, out.Mode)
	fmt.Fprintf(w, "Output:   %s\n", out.OutputPath)
	fmt.Fprintf(w, "Started:  %s\n", out.StartedAt)
	fmt.Fprintf(w, "Finished: %s\n", out.FinishedAt)
	fmt.Fprintf(w, "Accuracy: %.4f (%d/%d attempted, %d skipped, %d errors)\n",
		out.Score.Accuracy, out.Score.Correct, out.Score.Attempted, out.Score.Skipped, out.Score.Errors)

	fmt.Fprintf(w, "\nResults:\n")
	for _, res := range out.Results {
		mark := " "
		if res.Correct {
			mark = "*"
		}
		fmt.Fprintf(w, "  %4d  %-8s %s %2d  %5d  %s\n",
			res.Index, res.Status, mark, res.Attempts, res.ContextChars, res.Answer)
	}

	if len(out.Provenance) > 0 {
		fmt.Fprintf(w, "\nProvenance:\n")
		for _, p := range out.Provenance {
			fmt.Fprintf(w, "  %4d  %-8s %-12s %s\n", p.QuestionIdx, p.Status, shortID(p.ContextHash), p.EvidenceRefs)
			if p.Reason != "" {
				fmt.Fprintf(w, "        reason: %s\n", p.Reason)
			}
			if p.Record != nil {
				fmt.Fprintf(w, "        kept %d of %d, cutoff %.4f, %d chars\n",
					p.Record.Kept, p.Record.Candidates, p.Record.Cutoff, p.Record.Chars)
			}
		}
	}
	return nil
}

// #endregion detail-mode

// #region output

func parseContextRecord(detailsJSON string) *logging.ContextRecord {
	if detailsJSON == "" {
		return nil
	}
	var rec logging.ContextRecord
	if err := json.Unmarshal([]byte(detailsJSON), &rec); err != nil {
		return nil
	}
	return &rec
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
