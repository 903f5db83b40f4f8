package criteria

import (
	"github.com/jakechorley/shiftplanner/pkg/core/model"
	"github.com/jakechorley/shiftplanner/pkg/core/modelbuilder"
)

// FromWeights returns the standard soft-constraint criteria for a weight set,
// in scorecard order. Overtime shares the hour_imbalance bucket with fairness.
func FromWeights(w model.Weights) []modelbuilder.Criterion {
	return []modelbuilder.Criterion{
		NewUnderstaffingCriterion(w.Understaffing),
		NewRoleCoverageCriterion(w.Role),
		NewClopenCriterion(w.Clopen),
		NewFairnessCriterion(w.Fairness),
		NewOvertimeCriterion(w.Overtime),
	}
}
