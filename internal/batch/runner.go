package batch

import (
	"context"
	"time"

	"github.com/danielpatrickdp/kgrag-mcq/internal/backoff"
	"github.com/danielpatrickdp/kgrag-mcq/internal/log"
	"github.com/danielpatrickdp/kgrag-mcq/internal/model"
	"github.com/danielpatrickdp/kgrag-mcq/internal/prompt"
	"github.com/danielpatrickdp/kgrag-mcq/internal/retrieval"
)

// #region runner
// Runner owns the result set for one run. It is not safe for concurrent use.
type Runner struct {
	assembler Assembler
	builder   *prompt.Builder
	client    model.Client
	writer    Writer
	config    RunConfig
	observers []Observer

	sleep func(context.Context, time.Duration) error
	now   func() time.Time
}

// NewRunner wires the loop. observers are notified in order after each flush.
func NewRunner(assembler Assembler, builder *prompt.Builder, client model.Client, writer Writer,
	config RunConfig, observers ...Observer) *Runner {
	return &Runner{
		assembler: assembler,
		builder:   builder,
		client:    client,
		writer:    writer,
		config:    config,
		observers: observers,
		sleep:     backoff.Sleep,
		now:       time.Now,
	}
}

// #endregion runner

// #region run
// Run processes questions in order:
//
//	i below the start boundary → "Skipped" row, no retrieval or model call
//	i > EndIndex               → stop
//	otherwise                  → assemble → build → generate, retried while transient
//
// A question that still fails is logged, followed by FailureBackoff, and
// recorded as an "Error" row when EmitErrorRows is set. The full result set
// is rewritten after every iteration. Run returns a non-nil error only when
// ctx ends; the in-flight question is then not recorded.
func (r *Runner) Run(ctx context.Context, questions []Question) (Summary, error) {
	started := r.now()
	sum := Summary{OutputPath: r.writer.Path()}
	rows := make([]Row, 0, len(questions))
	last := min(len(questions), r.config.EndIndex+1)

	log.Infof("run started: questions=%d window=[%d,%d] mode=%s",
		len(questions), r.config.StartIndex, r.config.EndIndex, r.builder.Mode())

	for i, q := range questions {
		if err := ctx.Err(); err != nil {
			return r.finish(sum, rows, started), err
		}

		if r.skipped(i) {
			out := Outcome{Index: i, Status: StatusSkipped,
				Row: Row{Question: q.Text, CorrectAnswer: q.CorrectAnswer, Answer: SkippedAnswer}}
			rows = append(rows, out.Row)
			sum.Skipped++
			r.complete(ctx, &sum, rows, out)
			continue
		}
		if i > r.config.EndIndex {
			break
		}

		out := r.answer(ctx, i, q)
		if out.Err != nil {
			if err := ctx.Err(); err != nil {
				return r.finish(sum, rows, started), err
			}
			sum.Failed++
			log.Errorf("question %d failed after %d attempt(s): %q: %v", i, out.Attempts, q.Text, out.Err)
			if r.config.EmitErrorRows {
				rows = append(rows, out.Row)
			}
			r.complete(ctx, &sum, rows, out)
			if err := r.sleep(ctx, r.config.FailureBackoff); err != nil {
				return r.finish(sum, rows, started), err
			}
			continue
		}

		sum.Answered++
		rows = append(rows, out.Row)
		r.complete(ctx, &sum, rows, out)
		log.Infof("question %d/%d answered: context=%d chars, assemble=%s, generate=%s",
			i+1, last, out.Context.Len(), out.AssembleTime.Round(time.Millisecond), out.GenerateTime.Round(time.Millisecond))
	}

	sum = r.finish(sum, rows, started)
	log.Infof("run finished in %s: answered=%d skipped=%d failed=%d rows=%d output=%s",
		sum.Elapsed.Round(time.Millisecond), sum.Answered, sum.Skipped, sum.Failed, sum.Rows, sum.OutputPath)
	return sum, nil
}

// skipped reports whether index i falls before the resume point.
func (r *Runner) skipped(i int) bool {
	if r.config.LegacySkipBoundary {
		return i < r.config.StartIndex-1
	}
	return i < r.config.StartIndex
}

// #endregion run

// #region answer
func (r *Runner) answer(ctx context.Context, i int, q Question) Outcome {
	out := Outcome{Index: i, Row: Row{Question: q.Text, CorrectAnswer: q.CorrectAnswer}}
	for attempt := 1; ; attempt++ {
		out.Attempts = attempt
		reply, err := r.attempt(ctx, q.Text, &out)
		if err == nil {
			out.Status = StatusAnswered
			out.Row.Answer = reply
			out.Err = nil
			return out
		}
		out.Status = StatusFailed
		out.Row.Answer = ErrorAnswer
		out.Err = err
		if ctx.Err() != nil || !r.config.Retry.ShouldRetry(err, attempt) {
			return out
		}
		delay := r.config.Retry.Delay(attempt)
		log.Warnf("question %d attempt %d failed, retrying in %s: %v", i, attempt, delay, err)
		if r.sleep(ctx, delay) != nil {
			return out
		}
	}
}

// attempt runs one assemble and generate pass. out only ever describes the
// latest attempt.
func (r *Runner) attempt(ctx context.Context, question string, out *Outcome) (string, error) {
	out.Context = retrieval.Context{}
	out.AssembleTime, out.GenerateTime = 0, 0
	opts := r.builder.Mode().RetrievalOptions(r.config.Volume, r.config.Threshold)

	t0 := r.now()
	qctx, err := r.assembler.Assemble(ctx, question, opts)
	out.AssembleTime = r.now().Sub(t0)
	if err != nil {
		return "", err
	}
	out.Context = qctx

	text := r.builder.Build(qctx.String(), question)
	t1 := r.now()
	reply, err := r.client.Generate(ctx, text, r.config.SystemPrompt, r.config.Temperature)
	out.GenerateTime = r.now().Sub(t1)
	return reply, err
}

// #endregion answer

// #region persist
// complete flushes rows and notifies observers. Failures are counted, not returned.
func (r *Runner) complete(ctx context.Context, sum *Summary, rows []Row, out Outcome) {
	if err := r.writer.Write(rows); err != nil {
		sum.PersistErrors++
		out.PersistErr = err
		log.Errorf("flush after question %d: %v", out.Index, err)
	}
	octx := context.WithoutCancel(ctx)
	for _, o := range r.observers {
		if err := o.Observe(octx, out); err != nil {
			sum.PersistErrors++
			log.Errorf("record question %d: %v", out.Index, err)
		}
	}
}

func (r *Runner) finish(sum Summary, rows []Row, started time.Time) Summary {
	if err := r.writer.Write(rows); err != nil {
		sum.PersistErrors++
		log.Errorf("final flush: %v", err)
	}
	sum.Rows = len(rows)
	sum.Elapsed = r.now().Sub(started)
	return sum
}

// #endregion persist
