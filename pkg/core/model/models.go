package model

import (
	"fmt"
	"strings"
	"time"
)

// Default shift periods, in the order they occur within a day
const (
	PeriodMorning = "Morning"
	PeriodLunch   = "Lunch"
	PeriodDinner  = "Dinner"
)

// DefaultShiftHours is the length of one shift period in hours
const DefaultShiftHours = 4

// DefaultPeriods returns the default ordered period enumeration
func DefaultPeriods() []string {
	return []string{PeriodMorning, PeriodLunch, PeriodDinner}
}

// Employee represents a member of staff who can be scheduled
type Employee struct {
	ID   string
	Name string

	// Roles the employee is eligible to cover, in order of preference.
	// The first role is used for display when no required role applies.
	Roles []string

	// TargetHours is the preferred number of hours this week (nil if the
	// employee should simply be kept close to the team average)
	TargetHours *int

	// MaxHours caps the week before overtime is penalised (nil for no cap)
	MaxHours *int
}

// HasRole returns true if the employee is eligible for the given role
func (e Employee) HasRole(role string) bool {
	for _, r := range e.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// PrimaryRole returns the employee's first role, or an empty string
func (e Employee) PrimaryRole() string {
	if len(e.Roles) == 0 {
		return ""
	}
	return e.Roles[0]
}

// Slot is the atomic schedulable unit: one shift period on one day
type Slot struct {
	Day    time.Weekday
	Period string
}

// String returns the slot in "Mon-Morning" form
func (s Slot) String() string {
	return fmt.Sprintf("%s-%s", s.Day.String()[:3], s.Period)
}

// MarshalText encodes the slot as "Mon-Morning" for JSON and YAML
func (s Slot) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a "Day-Period" slot
func (s *Slot) UnmarshalText(text []byte) error {
	parsed, err := ParseSlot(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// AvailabilityException marks an employee as unavailable for a slot
type AvailabilityException struct {
	EmployeeID string
	Slot       Slot
}

// RoleMinimum is the minimum number of employees holding Role
type RoleMinimum struct {
	Role  string `yaml:"role" json:"role" validate:"required"`
	Count int    `yaml:"count" json:"count" validate:"min=0"`
}

// Demand is the staffing requirement for a single slot
type Demand struct {
	Slot Slot

	// Headcount is the minimum number of employees for the slot
	Headcount int

	// Roles are slot specific role minimums. A role listed here replaces
	// any request-wide role rule for the same role.
	Roles []RoleMinimum

	// Mandatory turns Headcount into a hard constraint instead of a
	// penalised one
	Mandatory bool
}

// Assignment is an (employee, slot) pair worked in the schedule.
// Requests also use it for pins (assignments fixed before solving).
type Assignment struct {
	EmployeeID string
	Slot       Slot
}

// PeriodPair names two periods that may be worked on the same day
type PeriodPair struct {
	First  string `yaml:"first" json:"first" validate:"required"`
	Second string `yaml:"second" json:"second" validate:"required"`
}

// ParseDay parses a weekday name ("Mon", "monday", "MON") into a time.Weekday
func ParseDay(value string) (time.Weekday, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if len(v) < 3 {
		return 0, fmt.Errorf("unknown day %q", value)
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if v == name || v == name[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown day %q", value)
}

// ParseSlot parses a "Day-Period" string (e.g. "Mon-Dinner") as used by
// team files and availability lists
func ParseSlot(value string) (Slot, error) {
	parts := strings.SplitN(value, "-", 2)
	if len(parts) != 2 {
		return Slot{}, fmt.Errorf("slot %q must be in Day-Period form", value)
	}
	day, err := ParseDay(parts[0])
	if err != nil {
		return Slot{}, err
	}
	return Slot{Day: day, Period: strings.TrimSpace(parts[1])}, nil
}

// HorizonDays returns the seven days of the week starting at weekStart
func HorizonDays(weekStart time.Weekday) []time.Weekday {
	days := make([]time.Weekday, 7)
	for i := range days {
		days[i] = (weekStart + time.Weekday(i)) % 7
	}
	return days
}

// DayIndex returns the position of day within a horizon starting at weekStart
func DayIndex(weekStart, day time.Weekday) int {
	return int((day - weekStart + 7) % 7)
}
