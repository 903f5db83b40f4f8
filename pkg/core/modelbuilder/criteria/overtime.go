package criteria

import (
	"fmt"

	"github.com/jakechorley/shiftplanner/pkg/core/modelbuilder"
)

// OvertimeCriterion penalises hours above an employee's MaxHours.
//
// Penalty:
//   - One excess term per employee with MaxHours: max(0, hours - MaxHours)
//   - Reported with the other hour terms in the hour_imbalance bucket
//   - Employees without MaxHours are uncapped
type OvertimeCriterion struct {
	weight int
}

// NewOvertimeCriterion creates a new OvertimeCriterion with the given weight
func NewOvertimeCriterion(weight int) *OvertimeCriterion {
	return &OvertimeCriterion{weight: weight}
}

func (c *OvertimeCriterion) Name() string {
	return "Overtime"
}

func (c *OvertimeCriterion) Category() modelbuilder.Category {
	return modelbuilder.CategoryHourImbalance
}

func (c *OvertimeCriterion) Weight() int {
	return c.weight
}

func (c *OvertimeCriterion) Apply(b *modelbuilder.Builder) error {
	for e, emp := range b.Employees() {
		if emp.MaxHours == nil {
			continue
		}
		b.AddExcess(modelbuilder.PenaltyInfo{
			Name:     fmt.Sprintf("overtime[%s]", emp.ID),
			Category: c.Category(),
			Weight:   c.weight,
			Slot:     -1,
			Employee: e,
		}, b.HoursExpr(e, 1), *emp.MaxHours)
	}
	return nil
}
