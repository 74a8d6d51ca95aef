package blackbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/nvandessel/vpgen/internal/constants"
	"github.com/nvandessel/vpgen/internal/metrics"
	"github.com/nvandessel/vpgen/internal/model"
	"github.com/nvandessel/vpgen/internal/patient"
)

// DefaultPenalty fills every objective slot of a failed evaluation.
const DefaultPenalty = constants.DefaultPenalty

// Evaluation is the record of one objective call.
type Evaluation struct {
	Time       time.Time          `json:"time"`
	Assignment patient.Assignment `json:"assignment"`
	Objectives []float64          `json:"objectives"`
	Cost       Cost               `json:"cost"`
	Failed     bool               `json:"failed"`
	Error      string             `json:"error,omitempty"`
	DurationMS float64            `json:"duration_ms"`
}

// Recorder persists evaluations.
type Recorder interface {
	Record(ctx context.Context, e Evaluation) error
}

// Objective is the function handed to an optimizer. Failed evaluations are
// replaced by PenaltyCost so the optimizer always receives a vector of
// NumObjectives entries.
type Objective struct {
	Model   *model.ReactionModel
	Config  Config
	Penalty float64

	Metrics  *metrics.Metrics
	Recorder Recorder
	Logger   *slog.Logger
}

// NewObjective returns an objective over m with the default configuration
// and penalty.
func NewObjective(m *model.ReactionModel) *Objective {
	return &Objective{Model: m, Config: DefaultConfig(), Penalty: DefaultPenalty}
}

// Evaluate scores one assignment and reports whether the evaluation
// succeeded. The returned cost is the penalty cost on failure.
func (o *Objective) Evaluate(ctx context.Context, a patient.Assignment) (Cost, bool) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()
	cost, err := Evaluate(ctx, o.Model, a, o.Config)
	elapsed := time.Since(start)
	o.Metrics.ObserveEvaluation(elapsed, err)

	rec := Evaluation{
		Time:       start.UTC(),
		Assignment: a,
		DurationMS: float64(elapsed.Microseconds()) / 1000,
	}
	if err != nil {
		logger.Debug("evaluation failed, substituting penalty", "error", err)
		cost = PenaltyCost(o.Model, o.Penalty)
		rec.Failed = true
		rec.Error = err.Error()
	}
	rec.Cost = cost
	rec.Objectives = cost.Flatten()

	if o.Recorder != nil {
		if rerr := o.Recorder.Record(ctx, rec); rerr != nil {
			logger.Warn("failed to record evaluation", "error", rerr)
		}
	}
	return cost, err == nil
}

// Observe returns the multi-objective vector for a.
func (o *Objective) Observe(ctx context.Context, a patient.Assignment) []float64 {
	cost, _ := o.Evaluate(ctx, a)
	return cost.Flatten()
}

// ObserveSum returns the single-objective value for a.
func (o *Objective) ObserveSum(ctx context.Context, a patient.Assignment) float64 {
	cost, _ := o.Evaluate(ctx, a)
	return cost.Sum()
}
