// Command kgrag-score scores kgrag-mcq result files and exits nonzero when a
// file misses the accuracy or error-rate thresholds.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/kgrag-mcq/internal/batch"
	"github.com/danielpatrickdp/kgrag-mcq/internal/eval"
	"github.com/danielpatrickdp/kgrag-mcq/internal/failure"
)

// #region main
func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// errThresholds marks a scored run that did not pass; it exits 1 without a
// second error line.
var errThresholds = errors.New("thresholds not met")

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errThresholds):
		return 1
	case failure.Is(err, failure.Configuration):
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	default:
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
}

type options struct {
	minAccuracy  float64
	maxErrorRate float64
	rows         bool
	jsonOut      bool
}

func newRootCmd() *cobra.Command {
	var opts options
	defaults := eval.DefaultEvalConfig()

	cmd := &cobra.Command{
		Use:   "kgrag-score <results.csv>...",
		Short: "Score kgrag-mcq result files",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 {
				return failure.Configf("arguments", "expected at least one result file")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			h := eval.NewEvalHarness(eval.EvalConfig{MinAccuracy: opts.minAccuracy, MaxErrorRate: opts.maxErrorRate})
			return scoreFiles(cmd.OutOrStdout(), h, args, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return failure.New(failure.Configuration, "flags", err)
	})

	f := cmd.Flags()
	f.Float64Var(&opts.minAccuracy, "min_accuracy", defaults.MinAccuracy, "fail if accuracy over attempted rows is below this")
	f.Float64Var(&opts.maxErrorRate, "max_error_rate", defaults.MaxErrorRate, "fail if Error rows exceed this share of processed rows")
	f.BoolVar(&opts.rows, "rows", false, "print a per-row comparison table")
	f.BoolVar(&opts.jsonOut, "json", false, "output as JSON instead of table")
	return cmd
}

// #endregion main

// #region score

type fileScore struct {
	Path string `json:"path"`
	eval.EvalResult
}

func scoreFiles(w io.Writer, h *eval.EvalHarness, paths []string, opts options) error {
	scores := make([]fileScore, 0, len(paths))
	passed := true
	for _, path := range paths {
		rows, err := batch.LoadRows(path)
		if err != nil {
			return err
		}
		res := h.Run(rows)
		passed = passed && res.Passed
		scores = append(scores, fileScore{Path: path, EvalResult: res})

		if opts.rows && !opts.jsonOut {
			printComparison(w, rows)
		}
	}

	if opts.jsonOut {
		if err := printJSON(w, scores); err != nil {
			return err
		}
	} else {
		printSummary(w, scores)
	}
	if !passed {
		return errThresholds
	}
	return nil
}

// #endregion score

// #region output

func printComparison(w io.Writer, rows []batch.Row) {
	fmt.Fprintf(w, "%-5s| %-24s| %-24s| %s\n", "Row", "Expected", "Answered", "Match")
	fmt.Fprintf(w, "%-5s+%-25s+%-25s+%s\n",
		"-----", "-------------------------", "-------------------------", "------")
	for i, r := range rows {
		got := eval.ParseAnswer(r.Answer)
		match := "DIFF"
		switch {
		case r.Answer == batch.SkippedAnswer:
			match = "SKIP"
		case r.Answer == batch.ErrorAnswer:
			match = "ERR"
		case eval.Match(got, r.CorrectAnswer):
			match = "OK"
		}
		fmt.Fprintf(w, "%-5d| %-24s| %-24s| %s\n", i, truncate(r.CorrectAnswer, 24), truncate(got, 24), match)
	}
	fmt.Fprintln(w)
}

func printSummary(w io.Writer, scores []fileScore) {
	for _, s := range scores {
		fmt.Fprintf(w, "%s\n", s.Path)
		fmt.Fprintf(w, "  Summary: %d total, %d attempted, %d correct, %d skipped, %d errors\n",
			s.Total, s.Attempted, s.Correct, s.Skipped, s.Errors)
		fmt.Fprintf(w, "  Accuracy: %.4f\n", s.Accuracy)
		fmt.Fprintf(w, "  Result: %s\n", s.Reason)
	}
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "~"
}

// #endregion output
