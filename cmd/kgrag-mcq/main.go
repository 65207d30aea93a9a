// Command kgrag-mcq answers a multiple-choice biomedical question set with a
// chat model, grounding each prompt in context retrieved from a knowledge
// graph.
//
// # Basic Usage
//
//	kgrag-mcq gemini-2.0-flash --mode 0
//	kgrag-mcq gpt-4o --mode 3 --prior_knowledge_path notes.txt --start_index 120
//
// # Environment Variables
//
//   - KGRAG_CONFIG: configuration file (default: config.yaml)
//   - CODEC_ADDR: address of the retrieval/inference gRPC service
//   - GEMINI_API_KEY, OPENAI_API_KEY, AZURE_OPENAI_API_KEY, ANTHROPIC_API_KEY
//
// Configuration errors exit with status 2 before any model call.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/kgrag-mcq/internal/config"
	"github.com/danielpatrickdp/kgrag-mcq/internal/failure"
	"github.com/danielpatrickdp/kgrag-mcq/internal/log"
)

// #region main
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		log.Errorf("%v", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case failure.Is(err, failure.Configuration):
		return 2
	case errors.Is(err, context.Canceled):
		return 130
	default:
		return 1
	}
}

// #endregion main

// #region command
type options struct {
	configPath     string
	mode           string
	startIndex     int
	endIndex       int
	prior          string
	priorPath      string
	dropFailedRows bool
	legacyBoundary bool
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "kgrag-mcq <chat_model_id>",
		Short: "Answer MCQ questions with knowledge-graph retrieved context",
		Long: `Answer every question in the configured question file with a chat model.

For each question:
1. Find the graph entities nearest to the question
2. Score their evidence statements against the question and keep the relevant ones
3. Pack them into a context of at most context_volume characters
4. Ask the model and append its reply to the result file

The result file is rewritten after every question. Use --start_index to
resume an interrupted run.

Modes:
  0  flat context
  1  structured (JSON) context
  2  flat context with prior knowledge
  3  structured context with prior knowledge
  4  flat context limited to genes named in the question`,
		Example: `  # Flat context over the default question window
  kgrag-mcq gemini-2.0-flash --mode 0

  # Resume a structured run with prior knowledge
  kgrag-mcq gpt-4o --mode 3 --prior_knowledge_path notes.txt --start_index 120`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return failure.Configf("arguments", "expected exactly one chat model id, got %d", len(args))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCQ(cmd.Context(), cmd, args[0], opts)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return failure.New(failure.Configuration, "flags", err)
	})

	defaults := config.DefaultConfig()
	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", envOr("KGRAG_CONFIG", "config.yaml"), "Path to YAML configuration file")
	f.StringVar(&opts.mode, "mode", "", "Context/prompt mode: 0, 1, 2, 3 or 4 (required)")
	f.IntVar(&opts.startIndex, "start_index", defaults.Run.StartIndex, "First question index to process; earlier rows are written as Skipped")
	f.IntVar(&opts.endIndex, "end_index", defaults.Run.EndIndex, "Last question index to process (inclusive); overrides run.end_index")
	f.StringVar(&opts.prior, "prior_knowledge", "", "Prior knowledge text for modes 2 and 3")
	f.StringVar(&opts.priorPath, "prior_knowledge_path", "", "File holding prior knowledge for modes 2 and 3; wins over --prior_knowledge")
	f.BoolVar(&opts.dropFailedRows, "drop_failed_rows", false, "Leave failed questions out of the result file instead of writing Error rows")
	f.BoolVar(&opts.legacyBoundary, "legacy_skip_boundary", false, "Skip only indices below start_index-1, repeating the last question of the previous run")

	return cmd
}

// #endregion command

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

// #endregion helpers
