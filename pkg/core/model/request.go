package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Default penalty weights. Understaffing and role coverage dominate the
// quality terms so that fairness never costs a filled shift.
const (
	DefaultUnderstaffingWeight = 100
	DefaultRoleWeight          = 80
	DefaultClopenWeight        = 10
	DefaultFairnessWeight      = 1

	// DefaultOvertimeWeight is per hour above MaxHours; one extra shift
	// still costs less than an unfilled slot
	DefaultOvertimeWeight = 5
)

// Weights sets the relative priority of the soft penalties.
// All weights are integers so the objective is computed exactly.
type Weights struct {
	Understaffing int `yaml:"understaffing" json:"understaffing_weight" validate:"min=0"`
	Role          int `yaml:"role" json:"role_weight" validate:"min=0"`
	Clopen        int `yaml:"clopen" json:"clopen_weight" validate:"min=0"`
	Fairness      int `yaml:"fairness" json:"fairness_weight" validate:"min=0"`
	Overtime      int `yaml:"overtime" json:"overtime_weight" validate:"min=0"`
}

// DefaultWeights returns the default weight configuration
func DefaultWeights() Weights {
	return Weights{
		Understaffing: DefaultUnderstaffingWeight,
		Role:          DefaultRoleWeight,
		Clopen:        DefaultClopenWeight,
		Fairness:      DefaultFairnessWeight,
		Overtime:      DefaultOvertimeWeight,
	}
}

// Request holds everything a single solve needs. Records are expected to
// arrive pre-validated by their producers (no duplicate employee IDs,
// non-negative demand); Validate only checks configuration.
type Request struct {
	Employees  []Employee
	Slots      []Slot
	Exceptions []AvailabilityException
	Demands    []Demand

	// RoleRules apply to every slot with positive headcount
	RoleRules []RoleMinimum

	// Pins are assignments that must appear in the schedule
	Pins []Assignment

	// Weights for the soft penalties (nil uses DefaultWeights)
	Weights *Weights

	// TimeLimit bounds the wall-clock time of the solver
	TimeLimit time.Duration `validate:"gt=0"`

	// Periods is the ordered shift period enumeration (empty uses DefaultPeriods)
	Periods []string `validate:"omitempty,max=16,unique,dive,required"`

	// ShiftHours is the length of each period in hours (0 uses DefaultShiftHours)
	ShiftHours int `validate:"min=0"`

	// WeekStart is the first day of the planning horizon
	WeekStart time.Weekday `validate:"min=0,max=6"`

	// CompatiblePeriods lists pairs of periods one employee may work on the
	// same day. Every other pair is mutually exclusive, so by default an
	// employee works at most one period per day.
	CompatiblePeriods []PeriodPair
}

// WithDefaults returns a copy of the request with unset options filled in
func (r Request) WithDefaults() Request {
	if len(r.Periods) == 0 {
		r.Periods = DefaultPeriods()
	}
	if r.ShiftHours == 0 {
		r.ShiftHours = DefaultShiftHours
	}
	if r.Weights == nil {
		w := DefaultWeights()
		r.Weights = &w
	}
	return r
}

// PeriodIndex returns the position of period in the request's enumeration, or -1
func (r Request) PeriodIndex(period string) int {
	for i, p := range r.Periods {
		if p == period {
			return i
		}
	}
	return -1
}

// InputValidationError reports malformed configuration. The solve never
// starts when one is returned.
type InputValidationError struct {
	Field  string
	Reason string
}

func (e *InputValidationError) Error() string {
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate checks weights, time limit and period tokens. Call it on a
// request that has been through WithDefaults.
func Validate(r Request) error {
	if err := validate.Struct(r); err != nil {
		return toInputError(err, "")
	}

	checkSlot := func(field string, slot Slot) error {
		if slot.Day < time.Sunday || slot.Day > time.Saturday {
			return &InputValidationError{Field: field + ".day", Reason: fmt.Sprintf("unknown day %d", slot.Day)}
		}
		if r.PeriodIndex(slot.Period) < 0 {
			return &InputValidationError{Field: field + ".period", Reason: fmt.Sprintf("unknown shift period %q", slot.Period)}
		}
		return nil
	}

	for i, e := range r.Employees {
		if e.MaxHours != nil && *e.MaxHours < 0 {
			return &InputValidationError{Field: fmt.Sprintf("employees[%d].maxHours", i), Reason: "must not be negative"}
		}
	}
	for i, slot := range r.Slots {
		if err := checkSlot(fmt.Sprintf("slots[%d]", i), slot); err != nil {
			return err
		}
	}
	for i, exc := range r.Exceptions {
		if err := checkSlot(fmt.Sprintf("exceptions[%d].slot", i), exc.Slot); err != nil {
			return err
		}
	}
	for i, d := range r.Demands {
		if err := checkSlot(fmt.Sprintf("demands[%d].slot", i), d.Slot); err != nil {
			return err
		}
		if d.Headcount < 0 {
			return &InputValidationError{Field: fmt.Sprintf("demands[%d].headcount", i), Reason: "must not be negative"}
		}
		for j, rm := range d.Roles {
			if err := validate.Struct(rm); err != nil {
				return toInputError(err, fmt.Sprintf("demands[%d].roles[%d]", i, j))
			}
		}
	}
	for i, rm := range r.RoleRules {
		if err := validate.Struct(rm); err != nil {
			return toInputError(err, fmt.Sprintf("roleRules[%d]", i))
		}
	}
	for i, pin := range r.Pins {
		if err := checkSlot(fmt.Sprintf("pins[%d].slot", i), pin.Slot); err != nil {
			return err
		}
	}
	for i, pair := range r.CompatiblePeriods {
		for _, p := range []string{pair.First, pair.Second} {
			if r.PeriodIndex(p) < 0 {
				return &InputValidationError{
					Field:  fmt.Sprintf("compatiblePeriods[%d]", i),
					Reason: fmt.Sprintf("unknown shift period %q", p),
				}
			}
		}
	}

	return nil
}

// toInputError converts a validator error into an InputValidationError
// naming the first failing field. An empty prefix keeps the validator's
// full namespace (e.g. "Request.Weights.Clopen").
func toInputError(err error, prefix string) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.Namespace()
		if prefix != "" {
			field = prefix + "." + fe.Field()
		}
		return &InputValidationError{
			Field:  field,
			Reason: fmt.Sprintf("failed %q rule (value %v)", fe.Tag(), fe.Value()),
		}
	}
	return &InputValidationError{Field: prefix, Reason: err.Error()}
}
