package api

import (
	"fmt"
	"time"

	"github.com/jakechorley/shiftplanner/pkg/core/assembler"
	"github.com/jakechorley/shiftplanner/pkg/core/model"
	"github.com/jakechorley/shiftplanner/pkg/core/scheduler"
	"github.com/jakechorley/shiftplanner/pkg/core/scorecard"
)

// EmployeeInput is an employee in a solve request
type EmployeeInput struct {
	ID          string   `json:"id" binding:"required"`
	Name        string   `json:"name"`
	Roles       []string `json:"roles"`
	TargetHours *int     `json:"target_hours"`
	MaxHours    *int     `json:"max_hours"`
}

// AssignmentInput pairs an employee with a slot ("Mon-Dinner"). It is used
// for both availability exceptions and pins.
type AssignmentInput struct {
	EmployeeID string     `json:"employee_id" binding:"required"`
	Slot       model.Slot `json:"slot"`
}

// DemandInput is the staffing requirement of one slot
type DemandInput struct {
	Slot      model.Slot          `json:"slot"`
	Headcount int                 `json:"headcount"`
	Roles     []model.RoleMinimum `json:"roles"`
	Mandatory bool                `json:"mandatory"`
}

// SolveRequest is the body of POST /v1/solve
type SolveRequest struct {
	Employees         []EmployeeInput     `json:"employees" binding:"dive"`
	Slots             []model.Slot        `json:"slots"`
	Exceptions        []AssignmentInput   `json:"exceptions" binding:"dive"`
	Demands           []DemandInput       `json:"demands"`
	RoleRules         []model.RoleMinimum `json:"role_rules"`
	Pins              []AssignmentInput   `json:"pins" binding:"dive"`
	Weights           *model.Weights      `json:"weights"`
	TimeLimitSeconds  float64             `json:"time_limit_seconds"`
	Periods           []string            `json:"periods"`
	ShiftHours        int                 `json:"shift_hours"`
	WeekStart         string              `json:"week_start"`
	CompatiblePeriods []model.PeriodPair  `json:"compatible_periods"`
}

// VariantInput is one named weight configuration of a compare request
type VariantInput struct {
	Name    string        `json:"name" binding:"required"`
	Weights model.Weights `json:"weights"`
}

// CompareRequest is the body of POST /v1/compare
type CompareRequest struct {
	Request  SolveRequest   `json:"request"`
	Variants []VariantInput `json:"variants" binding:"required,min=1,dive"`
}

// toModel converts the request, applying the server's time limit policy
func (r SolveRequest) toModel(defaultLimit, maxLimit time.Duration) (model.Request, error) {
	req := model.Request{
		Slots:             r.Slots,
		RoleRules:         r.RoleRules,
		Weights:           r.Weights,
		Periods:           r.Periods,
		ShiftHours:        r.ShiftHours,
		CompatiblePeriods: r.CompatiblePeriods,
	}

	if r.WeekStart != "" {
		day, err := model.ParseDay(r.WeekStart)
		if err != nil {
			return model.Request{}, &model.InputValidationError{Field: "week_start", Reason: err.Error()}
		}
		req.WeekStart = day
	}

	if r.TimeLimitSeconds < 0 {
		return model.Request{}, &model.InputValidationError{
			Field:  "time_limit_seconds",
			Reason: "must not be negative",
		}
	}
	req.TimeLimit = defaultLimit
	if r.TimeLimitSeconds > 0 {
		req.TimeLimit = time.Duration(r.TimeLimitSeconds * float64(time.Second))
	}
	if maxLimit > 0 && req.TimeLimit > maxLimit {
		return model.Request{}, &model.InputValidationError{
			Field:  "time_limit_seconds",
			Reason: fmt.Sprintf("must not exceed %s", maxLimit),
		}
	}

	for _, e := range r.Employees {
		req.Employees = append(req.Employees, model.Employee{
			ID:          e.ID,
			Name:        e.Name,
			Roles:       e.Roles,
			TargetHours: e.TargetHours,
			MaxHours:    e.MaxHours,
		})
	}
	for _, e := range r.Exceptions {
		req.Exceptions = append(req.Exceptions, model.AvailabilityException{EmployeeID: e.EmployeeID, Slot: e.Slot})
	}
	for _, p := range r.Pins {
		req.Pins = append(req.Pins, model.Assignment{EmployeeID: p.EmployeeID, Slot: p.Slot})
	}
	for _, d := range r.Demands {
		req.Demands = append(req.Demands, model.Demand{
			Slot:      d.Slot,
			Headcount: d.Headcount,
			Roles:     d.Roles,
			Mandatory: d.Mandatory,
		})
	}

	return req, nil
}

// SolveResponse is the JSON result of a solve. Schedule, Breakdown and
// Scorecard are omitted when the status is INFEASIBLE.
type SolveResponse struct {
	RunID         string               `json:"run_id"`
	Name          string               `json:"name,omitempty"`
	Status        model.Status         `json:"status"`
	Objective     int                  `json:"objective"`
	LowerBound    int                  `json:"lower_bound"`
	ElapsedMillis int64                `json:"elapsed_ms"`
	Weights       model.Weights        `json:"weights"`
	Breakdown     scorecard.Breakdown  `json:"breakdown,omitempty"`
	Schedule      *assembler.Schedule  `json:"schedule,omitempty"`
	Scorecard     *scorecard.Scorecard `json:"scorecard,omitempty"`
}

func newSolveResponse(res *scheduler.Result) SolveResponse {
	resp := SolveResponse{
		RunID:         res.RunID.String(),
		Status:        res.Status,
		Objective:     res.Objective,
		LowerBound:    res.LowerBound,
		ElapsedMillis: res.Elapsed.Milliseconds(),
		Weights:       res.Weights,
	}
	if res.Status.HasSchedule() {
		schedule := res.Schedule
		resp.Schedule = &schedule
		resp.Breakdown = res.Breakdown()
		resp.Scorecard = res.Scorecard
	}
	return resp
}
