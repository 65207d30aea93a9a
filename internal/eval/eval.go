// Package eval scores result files: it pulls the chosen answer out of each
// model reply and compares it with the correct answer.
package eval

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/danielpatrickdp/kgrag-mcq/internal/batch"
)

// #region eval-harness
// EvalHarness scores result rows against its thresholds.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run scores rows. Skipped and Error rows are counted but never attempted.
func (h *EvalHarness) Run(rows []batch.Row) EvalResult {
	res := Score(rows)
	var failReasons []string

	// 1. Accuracy over attempted rows
	accPass := res.Accuracy >= h.config.MinAccuracy
	res.Metrics = append(res.Metrics, EvalMetric{Name: "accuracy", Value: res.Accuracy, Pass: accPass})
	if !accPass {
		failReasons = append(failReasons, fmt.Sprintf("accuracy %.4f below %.4f", res.Accuracy, h.config.MinAccuracy))
	}

	// 2. Error rate over processed rows
	errRate := 0.0
	if processed := res.Total - res.Skipped; processed > 0 {
		errRate = float64(res.Errors) / float64(processed)
	}
	errPass := errRate <= h.config.MaxErrorRate
	res.Metrics = append(res.Metrics, EvalMetric{Name: "error_rate", Value: errRate, Pass: errPass})
	if !errPass {
		failReasons = append(failReasons, fmt.Sprintf("error rate %.4f exceeds %.4f", errRate, h.config.MaxErrorRate))
	}

	res.Passed = len(failReasons) == 0
	res.Reason = "all checks passed"
	if !res.Passed {
		res.Reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			res.Reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}
	return res
}

// #endregion eval-harness

// #region score
// Score counts rows and correct answers without applying thresholds.
func Score(rows []batch.Row) EvalResult {
	res := EvalResult{Total: len(rows)}
	for _, r := range rows {
		switch strings.TrimSpace(r.Answer) {
		case batch.SkippedAnswer:
			res.Skipped++
			continue
		case batch.ErrorAnswer:
			res.Errors++
			continue
		}
		res.Attempted++
		if Match(ParseAnswer(r.Answer), r.CorrectAnswer) {
			res.Correct++
		}
	}
	if res.Attempted > 0 {
		res.Accuracy = float64(res.Correct) / float64(res.Attempted)
	}
	return res
}

// Match compares answers ignoring case and runs of whitespace.
func Match(got, want string) bool {
	return normalize(got) == normalize(want)
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// #endregion score

// #region parse
// ParseAnswer returns the "answer" field of a JSON reply, optionally fenced
// or surrounded by prose. The exact key wins over other casings, which are
// tried in sorted order. Replies without one are returned trimmed.
func ParseAnswer(raw string) string {
	body := trimFence(raw)
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start >= 0 && end > start {
		var obj map[string]any
		if json.Unmarshal([]byte(body[start:end+1]), &obj) == nil {
			if v, ok := answerField(obj); ok {
				if s, ok := v.(string); ok {
					return strings.TrimSpace(s)
				}
				return strings.TrimSpace(fmt.Sprint(v))
			}
		}
	}
	return body
}

func answerField(obj map[string]any) (any, bool) {
	if v, ok := obj["answer"]; ok {
		return v, true
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		if strings.EqualFold(k, "answer") {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, false
	}
	sort.Strings(keys)
	return obj[keys[0]], true
}

func trimFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// #endregion parse
