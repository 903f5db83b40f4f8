package criteria

import (
	"fmt"

	"github.com/jakechorley/shiftplanner/pkg/core/modelbuilder"
)

// ClopenCriterion penalises an employee closing one day and opening the next.
//
// Penalty:
//   - The closing period is the last period of the enumeration and the
//     opening period the first
//   - One indicator per employee and adjacent horizon day pair that has both
//     slots; the indicator is true iff the employee works both
//   - No terms when the enumeration has fewer than two periods
type ClopenCriterion struct {
	weight int
}

// NewClopenCriterion creates a new ClopenCriterion with the given weight
func NewClopenCriterion(weight int) *ClopenCriterion {
	return &ClopenCriterion{weight: weight}
}

func (c *ClopenCriterion) Name() string {
	return "Clopen"
}

func (c *ClopenCriterion) Category() modelbuilder.Category {
	return modelbuilder.CategoryClopen
}

func (c *ClopenCriterion) Weight() int {
	return c.weight
}

func (c *ClopenCriterion) Apply(b *modelbuilder.Builder) error {
	periods := b.Request().Periods
	if len(periods) < 2 {
		return nil
	}
	opening := periods[0]
	closing := periods[len(periods)-1]

	for day := 0; day+1 < b.NumDays(); day++ {
		closeSlot, okClose := b.SlotAt(day, closing)
		openSlot, okOpen := b.SlotAt(day+1, opening)
		if !okClose || !okOpen {
			continue
		}

		for e, emp := range b.Employees() {
			b.AddConjunction(modelbuilder.PenaltyInfo{
				Name:     fmt.Sprintf("clopen[%s,%s>%s]", emp.ID, b.Slots()[closeSlot], b.Slots()[openSlot]),
				Category: c.Category(),
				Weight:   c.weight,
				Slot:     closeSlot,
				Employee: e,
			}, b.Decision(e, closeSlot), b.Decision(e, openSlot))
		}
	}
	return nil
}
