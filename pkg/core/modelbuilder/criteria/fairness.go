package criteria

import (
	"fmt"

	"github.com/jakechorley/shiftplanner/pkg/core/modelbuilder"
)

// FairnessCriterion penalises uneven weekly hours.
//
// Penalty:
//   - Employees with TargetHours: |hours - target|
//   - Every other employee is compared with a shared team level:
//     |hours - level|. The level is free and settles at the median of the
//     group's hours, so moving one shift changes the group's cost by at
//     most ShiftHours and fairness never outweighs a filled slot
//   - A group of one employee has nobody to be compared with and gets no term
//
// Example with hours (8, 4, 0):
//   - level = 4
//   - deviations: 4, 0, 4
//   - penalty: weight × 8
type FairnessCriterion struct {
	weight int
}

// NewFairnessCriterion creates a new FairnessCriterion with the given weight
func NewFairnessCriterion(weight int) *FairnessCriterion {
	return &FairnessCriterion{weight: weight}
}

func (c *FairnessCriterion) Name() string {
	return "Fairness"
}

func (c *FairnessCriterion) Category() modelbuilder.Category {
	return modelbuilder.CategoryHourImbalance
}

func (c *FairnessCriterion) Weight() int {
	return c.weight
}

func (c *FairnessCriterion) Apply(b *modelbuilder.Builder) error {
	var pool []int

	for e, emp := range b.Employees() {
		if emp.TargetHours == nil {
			pool = append(pool, e)
			continue
		}

		b.AddDeviation(modelbuilder.PenaltyInfo{
			Name:     fmt.Sprintf("hours_vs_target[%s]", emp.ID),
			Category: c.Category(),
			Weight:   c.weight,
			Slot:     -1,
			Employee: e,
		}, b.HoursExpr(e, 1), *emp.TargetHours)
	}

	if len(pool) < 2 {
		return nil
	}

	infos := make([]modelbuilder.PenaltyInfo, len(pool))
	exprs := make([]modelbuilder.LinearExpr, len(pool))
	for i, e := range pool {
		infos[i] = modelbuilder.PenaltyInfo{
			Name:     fmt.Sprintf("hours_vs_team[%s]", b.Employees()[e].ID),
			Category: c.Category(),
			Weight:   c.weight,
			Slot:     -1,
			Employee: e,
		}
		exprs[i] = b.HoursExpr(e, 1)
	}

	maxHours := b.Request().ShiftHours * len(b.Slots())
	b.AddLevelGroup("team_hours", maxHours, infos, exprs)

	return nil
}
