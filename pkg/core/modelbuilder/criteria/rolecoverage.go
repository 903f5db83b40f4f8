package criteria

import (
	"fmt"

	"github.com/jakechorley/shiftplanner/pkg/core/model"
	"github.com/jakechorley/shiftplanner/pkg/core/modelbuilder"
)

// RoleCoverageCriterion penalises missing role holders on a slot.
//
// Penalty:
//   - One shortfall term per (slot, role) requirement
//   - An employee counts toward every role they hold
//   - Requirements nobody can fill stay in the model, so their shortfall is
//     reported rather than silently dropped
type RoleCoverageCriterion struct {
	weight int
}

// NewRoleCoverageCriterion creates a new RoleCoverageCriterion with the given weight
func NewRoleCoverageCriterion(weight int) *RoleCoverageCriterion {
	return &RoleCoverageCriterion{weight: weight}
}

func (c *RoleCoverageCriterion) Name() string {
	return "RoleCoverage"
}

func (c *RoleCoverageCriterion) Category() modelbuilder.Category {
	return modelbuilder.CategoryRoleShortfall
}

func (c *RoleCoverageCriterion) Weight() int {
	return c.weight
}

func (c *RoleCoverageCriterion) Apply(b *modelbuilder.Builder) error {
	for s, slot := range b.Slots() {
		for _, need := range b.RoleNeeds(s) {
			role := need.Role
			expr := b.SlotExpr(s, func(emp model.Employee) bool {
				return emp.HasRole(role)
			})

			b.AddShortfall(modelbuilder.PenaltyInfo{
				Name:     fmt.Sprintf("role_shortfall[%s,%s]", slot, role),
				Category: c.Category(),
				Weight:   c.weight,
				Slot:     s,
				Employee: -1,
				Role:     role,
			}, expr, need.Count)
		}
	}
	return nil
}
