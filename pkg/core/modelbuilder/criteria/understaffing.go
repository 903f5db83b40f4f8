package criteria

import (
	"fmt"

	"github.com/jakechorley/shiftplanner/pkg/core/modelbuilder"
)

// UnderstaffingCriterion penalises every missing head below a slot's demand.
//
// Penalty:
//   - One shortfall term per slot with positive, non-mandatory headcount
//   - slack = max(0, headcount - assigned), cost = weight × slack
//   - Mandatory slots are hard rows owned by the builder and get no term
//
// The terms of each day are registered as a cover group so the solver can
// bound the day by its total capacity.
type UnderstaffingCriterion struct {
	weight int
}

// NewUnderstaffingCriterion creates a new UnderstaffingCriterion with the given weight
func NewUnderstaffingCriterion(weight int) *UnderstaffingCriterion {
	return &UnderstaffingCriterion{weight: weight}
}

func (c *UnderstaffingCriterion) Name() string {
	return "Understaffing"
}

func (c *UnderstaffingCriterion) Category() modelbuilder.Category {
	return modelbuilder.CategoryUnderstaffing
}

func (c *UnderstaffingCriterion) Weight() int {
	return c.weight
}

func (c *UnderstaffingCriterion) Apply(b *modelbuilder.Builder) error {
	byDay := make([][]int, b.NumDays())

	for s, slot := range b.Slots() {
		headcount := b.Headcount(s)
		if headcount <= 0 || b.IsMandatory(s) {
			continue
		}

		p := b.AddShortfall(modelbuilder.PenaltyInfo{
			Name:     fmt.Sprintf("understaffing[%s]", slot),
			Category: c.Category(),
			Weight:   c.weight,
			Slot:     s,
			Employee: -1,
		}, b.SlotExpr(s, nil), headcount)

		day := b.SlotDay(s)
		byDay[day] = append(byDay[day], p)
	}

	for day, penalties := range byDay {
		b.AddCoverGroup(day, penalties)
	}

	return nil
}
