package eval

// #region eval-config
// EvalConfig holds thresholds for judging a finished mission.
type EvalConfig struct {
	MinFinalHealth   int     `yaml:"min_final_health" json:"min_final_health"`     // fail if health ends below this
	MaxTimeSpent     int     `yaml:"max_time_spent" json:"max_time_spent"`         // fail if more time was spent; 0 disables
	MaxTrackingError float64 `yaml:"max_tracking_error" json:"max_tracking_error"` // mean |estimated trust - feedback|
	MinCompliance    float64 `yaml:"min_compliance" json:"min_compliance"`         // informational only
}

// DefaultEvalConfig returns lenient defaults.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		MinFinalHealth:   0,
		MaxTimeSpent:     0,
		MaxTrackingError: 0.5,
		MinCompliance:    0.5,
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
// EvalResult is the outcome of evaluating one mission history.
type EvalResult struct {
	Passed  bool         `json:"passed"`
	Metrics []EvalMetric `json:"metrics"`
	Reason  string       `json:"reason"`
}

// Metric returns the named metric and whether it exists.
func (r EvalResult) Metric(name string) (EvalMetric, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return EvalMetric{}, false
}

// #endregion eval-result
