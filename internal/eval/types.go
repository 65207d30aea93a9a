package eval

// #region eval-config
// EvalConfig holds the thresholds a scored result file must meet.
type EvalConfig struct {
	MinAccuracy  float64 // fail if accuracy over attempted rows is below this
	MaxErrorRate float64 // fail if Error rows exceed this share of processed rows
}

// DefaultEvalConfig reports without gating.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		MinAccuracy:  0,
		MaxErrorRate: 1,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single check result.
type EvalMetric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Pass  bool    `json:"pass"`
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the score of one result file.
type EvalResult struct {
	Total     int     `json:"total"`
	Attempted int     `json:"attempted"`
	Correct   int     `json:"correct"`
	Skipped   int     `json:"skipped"`
	Errors    int     `json:"errors"`
	Accuracy  float64 `json:"accuracy"` // correct / attempted, 0 when nothing was attempted

	Passed  bool         `json:"passed"`
	Metrics []EvalMetric `json:"metrics"`
	Reason  string       `json:"reason"`
}

// #endregion eval-result
