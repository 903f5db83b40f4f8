// Package scorecard explains a solution: how much each soft rule cost and
// how the hours ended up spread across the team.
package scorecard

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jakechorley/shiftplanner/pkg/core/modelbuilder"
	"github.com/montanaflynn/stats"
)

// ErrDecomposition is returned when the recomputed penalties do not add up
// to the solver's objective
var ErrDecomposition = errors.New("penalty breakdown does not sum to the objective")

// Breakdown maps each penalty category to its weighted total
type Breakdown map[modelbuilder.Category]int

// Total returns the sum over every category
func (b Breakdown) Total() int {
	total := 0
	for _, v := range b {
		total += v
	}
	return total
}

// LineItem is one penalty that was actually incurred
type LineItem struct {
	Category   modelbuilder.Category `json:"category"`
	Name       string                `json:"name"`
	Weight     int                   `json:"weight"`
	Violation  int                   `json:"violation"`
	Penalty    int                   `json:"penalty"`
	EmployeeID string                `json:"employee_id,omitempty"`
	Slot       string                `json:"slot,omitempty"`
	Role       string                `json:"role,omitempty"`
}

// EmployeeHours summarises one employee's week
type EmployeeHours struct {
	EmployeeID  string `json:"employee_id"`
	Name        string `json:"name"`
	Shifts      int    `json:"shifts"`
	Hours       int    `json:"hours"`
	TargetHours *int   `json:"target_hours,omitempty"`
	MaxHours    *int   `json:"max_hours,omitempty"`
}

// Scorecard is the explanation of one solve
type Scorecard struct {
	Breakdown Breakdown       `json:"breakdown"`
	Total     int             `json:"total"`
	Items     []LineItem      `json:"items"`
	Hours     []EmployeeHours `json:"hours"`

	// ShortHeads counts unfilled positions across all slots
	ShortHeads int `json:"short_heads"`

	// Clopens counts close-then-open pairs worked by the same employee
	Clopens int `json:"clopens"`

	// OverstaffedShifts counts assignments above a slot's headcount. Extra
	// heads are free, so the solver adds them when that evens out hours.
	OverstaffedShifts int `json:"overstaffed_shifts"`

	// HoursStdDev is the population standard deviation of weekly hours
	HoursStdDev float64 `json:"hours_std_dev"`
}

// Generate recomputes every penalty of m from the decision values and
// groups them by category. It fails with ErrDecomposition if the total
// differs from objective.
func Generate(m *modelbuilder.Model, values []int, objective int) (*Scorecard, error) {
	if len(values) != len(m.Vars) {
		return nil, fmt.Errorf("expected %d variable values, got %d", len(m.Vars), len(values))
	}

	card := &Scorecard{
		Breakdown: make(Breakdown),
		Items:     []LineItem{},
	}
	for _, c := range modelbuilder.Categories() {
		card.Breakdown[c] = 0
	}

	for _, p := range m.Penalties {
		violation := p.Violation(values)
		if violation == 0 {
			continue
		}

		penalty := p.Weight * violation
		card.Breakdown[p.Category] += penalty

		switch p.Category {
		case modelbuilder.CategoryUnderstaffing:
			card.ShortHeads += violation
		case modelbuilder.CategoryClopen:
			card.Clopens += violation
		}

		if penalty == 0 {
			continue
		}
		item := LineItem{
			Category:  p.Category,
			Name:      p.Name,
			Weight:    p.Weight,
			Violation: violation,
			Penalty:   penalty,
			Role:      p.Role,
		}
		if p.Employee >= 0 && p.Employee < len(m.Employees) {
			item.EmployeeID = m.Employees[p.Employee].ID
		}
		if p.Slot >= 0 && p.Slot < len(m.Slots) {
			item.Slot = m.Slots[p.Slot].String()
		}
		card.Items = append(card.Items, item)
	}

	sort.SliceStable(card.Items, func(i, j int) bool {
		return card.Items[i].Penalty > card.Items[j].Penalty
	})

	card.Total = card.Breakdown.Total()
	if card.Total != objective {
		return nil, fmt.Errorf("%w: breakdown sums to %d, objective is %d", ErrDecomposition, card.Total, objective)
	}

	hours := make([]float64, len(m.Employees))
	for e, emp := range m.Employees {
		shifts := 0
		for s := range m.Slots {
			shifts += values[m.Decisions[e][s]]
		}
		h := EmployeeHours{
			EmployeeID:  emp.ID,
			Name:        emp.Name,
			Shifts:      shifts,
			Hours:       shifts * m.Request.ShiftHours,
			TargetHours: emp.TargetHours,
			MaxHours:    emp.MaxHours,
		}
		card.Hours = append(card.Hours, h)
		hours[e] = float64(h.Hours)
	}

	for s := range m.Slots {
		assigned := 0
		for e := range m.Employees {
			assigned += values[m.Decisions[e][s]]
		}
		card.OverstaffedShifts += max(0, assigned-m.Headcount[s])
	}

	if len(hours) > 0 {
		stdDev, err := stats.StandardDeviation(hours)
		if err != nil {
			return nil, fmt.Errorf("failed to compute hours spread: %w", err)
		}
		card.HoursStdDev = stdDev
	}

	return card, nil
}
