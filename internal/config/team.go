package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jakechorley/shiftplanner/pkg/core/model"
)

// TeamMember is one employee in the team file. Unavailable and Pinned hold
// slots in "Day-Period" form, e.g. "Mon-Dinner".
type TeamMember struct {
	ID          string   `yaml:"id" validate:"required"`
	Name        string   `yaml:"name" validate:"required"`
	Roles       []string `yaml:"roles,omitempty"`
	TargetHours *int     `yaml:"targetHours,omitempty" validate:"omitempty,min=0"`
	MaxHours    *int     `yaml:"maxHours,omitempty" validate:"omitempty,min=0"`
	Unavailable []string `yaml:"unavailable,omitempty"`
	Pinned      []string `yaml:"pinned,omitempty"`
}

// DemandEntry sets the demand of a single slot, replacing the configured default
type DemandEntry struct {
	Slot      string              `yaml:"slot" validate:"required"`
	Headcount int                 `yaml:"headcount" validate:"min=0"`
	Roles     []model.RoleMinimum `yaml:"roles,omitempty" validate:"dive"`
	Mandatory bool                `yaml:"mandatory,omitempty"`
}

// Team is the saved team configuration: staff, their availability and the
// week's demand
type Team struct {
	Members []TeamMember  `yaml:"members" validate:"dive"`
	Demand  []DemandEntry `yaml:"demand,omitempty" validate:"dive"`
}

// LoadTeam reads and validates a team file
func LoadTeam(path string) (*Team, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read team file: %w", err)
	}

	var team Team
	if err := yaml.Unmarshal(data, &team); err != nil {
		return nil, fmt.Errorf("failed to parse team file: %w", err)
	}

	if err := ValidateTeam(&team); err != nil {
		return nil, err
	}

	return &team, nil
}

// SaveTeam validates the team and writes it to path
func SaveTeam(path string, team *Team) error {
	if err := ValidateTeam(team); err != nil {
		return err
	}

	data, err := yaml.Marshal(team)
	if err != nil {
		return fmt.Errorf("failed to encode team file: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write team file: %w", err)
	}
	return nil
}

// ValidateTeam checks required fields, unique member IDs and slot syntax
func ValidateTeam(team *Team) error {
	if err := validate.Struct(team); err != nil {
		return fmt.Errorf("team validation failed: %w", err)
	}

	seen := make(map[string]bool)
	for _, m := range team.Members {
		if seen[m.ID] {
			return fmt.Errorf("duplicate member id %q", m.ID)
		}
		seen[m.ID] = true

		for _, s := range append(append([]string{}, m.Unavailable...), m.Pinned...) {
			if _, err := model.ParseSlot(s); err != nil {
				return fmt.Errorf("member %s: %w", m.ID, err)
			}
		}
	}

	for i, d := range team.Demand {
		if _, err := model.ParseSlot(d.Slot); err != nil {
			return fmt.Errorf("demand[%d]: %w", i, err)
		}
	}

	return nil
}

// Employees converts the members into domain employees
func (t *Team) Employees() []model.Employee {
	employees := make([]model.Employee, 0, len(t.Members))
	for _, m := range t.Members {
		employees = append(employees, model.Employee{
			ID:          m.ID,
			Name:        m.Name,
			Roles:       m.Roles,
			TargetHours: m.TargetHours,
			MaxHours:    m.MaxHours,
		})
	}
	return employees
}

// Exceptions returns every unavailable block of every member
func (t *Team) Exceptions() []model.AvailabilityException {
	var out []model.AvailabilityException
	for _, m := range t.Members {
		for _, s := range m.Unavailable {
			slot, err := model.ParseSlot(s)
			if err != nil {
				continue
			}
			out = append(out, model.AvailabilityException{EmployeeID: m.ID, Slot: slot})
		}
	}
	return out
}

// Pins returns every pinned shift of every member
func (t *Team) Pins() []model.Assignment {
	var out []model.Assignment
	for _, m := range t.Members {
		for _, s := range m.Pinned {
			slot, err := model.ParseSlot(s)
			if err != nil {
				continue
			}
			out = append(out, model.Assignment{EmployeeID: m.ID, Slot: slot})
		}
	}
	return out
}

// Demands returns the slot-specific demand entries
func (t *Team) Demands() []model.Demand {
	var out []model.Demand
	for _, d := range t.Demand {
		slot, err := model.ParseSlot(d.Slot)
		if err != nil {
			continue
		}
		out = append(out, model.Demand{
			Slot:      slot,
			Headcount: d.Headcount,
			Roles:     d.Roles,
			Mandatory: d.Mandatory,
		})
	}
	return out
}

// ExampleTeam returns a small starter team used by `team init`
func ExampleTeam() *Team {
	target := 16
	maxHours := 24
	return &Team{
		Members: []TeamMember{
			{ID: "alice", Name: "Alice", Roles: []string{"cook", "server"}, TargetHours: &target},
			{ID: "bob", Name: "Bob", Roles: []string{"server"}, Unavailable: []string{"Sat-Dinner", "Sun-Dinner"}},
			{ID: "carol", Name: "Carol", Roles: []string{"server", "cashier"}, MaxHours: &maxHours},
			{ID: "dan", Name: "Dan", Roles: []string{"cook"}, Pinned: []string{"Fri-Dinner"}},
		},
		Demand: []DemandEntry{
			{Slot: "Fri-Dinner", Headcount: 3, Roles: []model.RoleMinimum{{Role: "cook", Count: 1}}},
			{Slot: "Sat-Dinner", Headcount: 3, Roles: []model.RoleMinimum{{Role: "cook", Count: 1}}},
		},
	}
}
