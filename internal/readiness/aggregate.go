package readiness

import (
	"context"

	"go.uber.org/zap"
)

// StepReport is the outcome of one readiness step. Every configured step is
// run and reported; the first failure never short-circuits the rest.
type StepReport struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// AggregateResult combines the per-step reports with one overall flag.
type AggregateResult struct {
	OK    bool         `json:"ok"`
	Steps []StepReport `json:"steps"`
}

// Step is one named readiness check.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// RunAll executes every step in order and aggregates the outcomes so the
// operator sees the full diagnostic picture, not just the first failure.
func RunAll(ctx context.Context, log *zap.Logger, steps []Step) AggregateResult {
	res := AggregateResult{OK: true}
	for _, s := range steps {
		report := StepReport{Name: s.Name, OK: true, Message: "ok"}
		if err := s.Run(ctx); err != nil {
			report.OK = false
			report.Message = err.Error()
			res.OK = false
			log.Warn("readiness step failed", zap.String("step", s.Name), zap.Error(err))
		} else {
			log.Info("readiness step passed", zap.String("step", s.Name))
		}
		res.Steps = append(res.Steps, report)
	}
	return res
}
