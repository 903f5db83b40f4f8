// Package assembler turns solver values into a schedule grouped by slot
package assembler

import (
	"time"

	"github.com/jakechorley/shiftplanner/pkg/core/model"
	"github.com/jakechorley/shiftplanner/pkg/core/modelbuilder"
)

// AssignedEmployee is one employee working a slot
type AssignedEmployee struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Role is the role the employee is shown as covering
	Role string `json:"role,omitempty"`
}

// SlotAssignment lists who works one slot
type SlotAssignment struct {
	Slot      model.Slot         `json:"slot"`
	Headcount int                `json:"headcount"`
	Employees []AssignedEmployee `json:"employees"`
}

// Understaffed returns true if fewer employees work the slot than demanded
func (s SlotAssignment) Understaffed() bool {
	return len(s.Employees) < s.Headcount
}

// Schedule is the ordered list of every slot in the horizon
type Schedule struct {
	WeekStart time.Weekday     `json:"week_start"`
	Slots     []SlotAssignment `json:"slots"`
}

// Assignments flattens the schedule into (employee, slot) pairs
func (s Schedule) Assignments() []model.Assignment {
	var out []model.Assignment
	for _, sa := range s.Slots {
		for _, emp := range sa.Employees {
			out = append(out, model.Assignment{EmployeeID: emp.ID, Slot: sa.Slot})
		}
	}
	return out
}

// Day returns the slots of one weekday in period order
func (s Schedule) Day(day time.Weekday) []SlotAssignment {
	var out []SlotAssignment
	for _, sa := range s.Slots {
		if sa.Slot.Day == day {
			out = append(out, sa)
		}
	}
	return out
}

// Assemble keeps the decisions set in values and groups them by slot in
// horizon order. Every slot of the model appears, including empty ones.
func Assemble(m *modelbuilder.Model, values []int) Schedule {
	schedule := Schedule{
		WeekStart: m.Request.WeekStart,
		Slots:     make([]SlotAssignment, 0, len(m.Slots)),
	}

	for s, slot := range m.Slots {
		sa := SlotAssignment{
			Slot:      slot,
			Headcount: m.Headcount[s],
			Employees: []AssignedEmployee{},
		}

		remaining := make(map[string]int)
		for _, need := range m.RoleNeeds[s] {
			remaining[need.Role] += need.Count
		}

		for e, emp := range m.Employees {
			if values[m.Decisions[e][s]] != 1 {
				continue
			}
			sa.Employees = append(sa.Employees, AssignedEmployee{
				ID:   emp.ID,
				Name: emp.Name,
				Role: displayRole(emp, remaining),
			})
		}

		schedule.Slots = append(schedule.Slots, sa)
	}

	return schedule
}

// displayRole picks the first of the employee's roles the slot still needs,
// falling back to their primary role
func displayRole(emp model.Employee, remaining map[string]int) string {
	for _, role := range emp.Roles {
		if remaining[role] > 0 {
			remaining[role]--
			return role
		}
	}
	return emp.PrimaryRole()
}
