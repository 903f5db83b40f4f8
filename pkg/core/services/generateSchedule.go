package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/jakechorley/shiftplanner/internal/config"
	"github.com/jakechorley/shiftplanner/pkg/core/assembler"
	"github.com/jakechorley/shiftplanner/pkg/core/model"
	"github.com/jakechorley/shiftplanner/pkg/core/modelbuilder"
	"github.com/jakechorley/shiftplanner/pkg/core/scheduler"
	"github.com/jakechorley/shiftplanner/pkg/db"
)

// ScheduleSolver runs solves for the services
type ScheduleSolver interface {
	Solve(req model.Request) (*scheduler.Result, error)
	SolveVariants(ctx context.Context, req model.Request, weights ...model.Weights) ([]*scheduler.Result, error)
}

// GenerateScheduleStore defines the database operations needed to save a run
type GenerateScheduleStore interface {
	InsertScheduleRunWithAssignments(ctx context.Context, run *db.ScheduleRun, assignments []db.AssignmentRecord) error
}

// GenerateScheduleResult contains the solve outcome for one planned week
type GenerateScheduleResult struct {
	WeekOf time.Time
	Result *scheduler.Result
	Saved  bool
}

// GenerateSchedule builds the week's request from the config and team file,
// solves it and, unless dryRun is set or no store is given, saves the run.
// Infeasible runs are saved without assignments.
func GenerateSchedule(
	ctx context.Context,
	store GenerateScheduleStore,
	solver ScheduleSolver,
	cfg *config.Config,
	team *config.Team,
	logger *zap.Logger,
	weekOf time.Time,
	dryRun bool,
) (*GenerateScheduleResult, error) {
	weekOf = time.Date(weekOf.Year(), weekOf.Month(), weekOf.Day(), 0, 0, 0, 0, time.UTC)
	logger.Debug("Generating schedule",
		zap.String("week_of", weekOf.Format("2006-01-02")),
		zap.Bool("dry_run", dryRun))

	req, err := BuildRequest(cfg, team, weekOf, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("Running solver",
		zap.Int("employees", len(req.Employees)),
		zap.Int("demands", len(req.Demands)),
		zap.Duration("time_limit", req.TimeLimit))

	result, err := solver.Solve(req)
	if err != nil {
		return nil, fmt.Errorf("failed to solve schedule: %w", err)
	}

	out := &GenerateScheduleResult{
		WeekOf: weekOf,
		Result: result,
	}

	if result.Status == model.StatusInfeasible {
		logger.Warn("No schedule satisfies the hard constraints")
	}

	if dryRun || store == nil {
		logger.Info("Dry run mode - schedule not saved")
		return out, nil
	}

	if err := saveRun(ctx, store, weekOf, result); err != nil {
		return nil, err
	}
	out.Saved = true

	logger.Info("Schedule saved", zap.String("run_id", result.RunID.String()))
	return out, nil
}

// BuildRequest turns the configuration and team into a solve request for
// the week starting at weekOf, which must fall on the configured week start
func BuildRequest(cfg *config.Config, team *config.Team, weekOf time.Time, logger *zap.Logger) (model.Request, error) {
	weekOf = time.Date(weekOf.Year(), weekOf.Month(), weekOf.Day(), 0, 0, 0, 0, time.UTC)
	weekStart := cfg.StartDay()
	if weekOf.Weekday() != weekStart {
		return model.Request{}, fmt.Errorf("week must start on a %s, got %s (%s)",
			weekStart, weekOf.Format("2006-01-02"), weekOf.Weekday())
	}

	periods := cfg.PeriodNames()
	days := model.HorizonDays(weekStart)

	slots := make([]model.Slot, 0, len(days)*len(periods))
	for _, day := range days {
		for _, p := range periods {
			slots = append(slots, model.Slot{Day: day, Period: p})
		}
	}

	demands := make(map[model.Slot]model.Demand)
	for _, slot := range slots {
		if n := cfg.DefaultHeadcount[slot.Period]; n > 0 {
			demands[slot] = model.Demand{Slot: slot, Headcount: n}
		}
	}
	for _, d := range team.Demands() {
		demands[d.Slot] = d
	}

	overrides, err := convertDemandOverrides(cfg.DemandOverrides, weekOf, periods, logger)
	if err != nil {
		return model.Request{}, fmt.Errorf("failed to convert demand overrides: %w", err)
	}
	for _, o := range overrides {
		d, ok := demands[o.slot]
		if !ok {
			d = model.Demand{Slot: o.slot}
		}
		if o.src.Headcount != nil {
			d.Headcount = *o.src.Headcount
		}
		if o.src.Mandatory != nil {
			d.Mandatory = *o.src.Mandatory
		}
		if o.src.Roles != nil {
			d.Roles = o.src.Roles
		}
		demands[o.slot] = d
	}

	demandList := make([]model.Demand, 0, len(demands))
	for _, d := range demands {
		demandList = append(demandList, d)
	}
	sort.Slice(demandList, func(i, j int) bool {
		return slotLess(weekStart, periods, demandList[i].Slot, demandList[j].Slot)
	})

	return model.Request{
		Employees:         team.Employees(),
		Slots:             slots,
		Exceptions:        team.Exceptions(),
		Demands:           demandList,
		RoleRules:         cfg.RoleRules,
		Pins:              team.Pins(),
		Weights:           cfg.Weights,
		TimeLimit:         cfg.TimeLimit,
		Periods:           periods,
		ShiftHours:        cfg.ShiftHours,
		WeekStart:         weekStart,
		CompatiblePeriods: cfg.CompatiblePeriods,
	}, nil
}

// NextWeekStart returns the first date strictly after from that falls on weekStart
func NextWeekStart(from time.Time, weekStart time.Weekday) time.Time {
	// Normalize to start of day to avoid time-of-day issues
	normalized := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)

	days := (int(weekStart) - int(normalized.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return normalized.AddDate(0, 0, days)
}

// overrideSlot is one slot of the week touched by a demand override
type overrideSlot struct {
	slot model.Slot
	src  config.DemandOverride
}

// convertDemandOverrides expands each override's RRule over the planned week
// and returns the slots it applies to, in override order
func convertDemandOverrides(overrides []config.DemandOverride, weekOf time.Time, periods []string, logger *zap.Logger) ([]overrideSlot, error) {
	var result []overrideSlot

	weekDates := make(map[string]time.Weekday, 7)
	for i := 0; i < 7; i++ {
		date := weekOf.AddDate(0, 0, i)
		weekDates[date.Format("2006-01-02")] = date.Weekday()
	}

	// Search a week either side so rules anchored before the week still match
	searchStart := weekOf.AddDate(0, 0, -7)
	searchEnd := weekOf.AddDate(0, 0, 14)

	for i, override := range overrides {
		rule, err := rrule.StrToRRule(override.RRule)
		if err != nil {
			return nil, fmt.Errorf("failed to parse rrule for override %d: %w", i, err)
		}
		rule.DTStart(searchStart)

		targets := override.Periods
		if len(targets) == 0 {
			targets = periods
		}

		matched := 0
		for _, occurrence := range rule.Between(searchStart, searchEnd, true) {
			day, ok := weekDates[occurrence.Format("2006-01-02")]
			if !ok {
				continue
			}
			matched++
			for _, p := range targets {
				result = append(result, overrideSlot{slot: model.Slot{Day: day, Period: p}, src: override})
			}
		}

		logger.Debug("Converted override",
			zap.Int("index", i),
			zap.String("rrule", override.RRule),
			zap.Int("matched_days", matched))
	}

	return result, nil
}

// slotLess orders slots by horizon day then period
func slotLess(weekStart time.Weekday, periods []string, a, b model.Slot) bool {
	ia, ib := model.DayIndex(weekStart, a.Day), model.DayIndex(weekStart, b.Day)
	if ia != ib {
		return ia < ib
	}
	return periodIndex(periods, a.Period) < periodIndex(periods, b.Period)
}

func periodIndex(periods []string, period string) int {
	for i, p := range periods {
		if p == period {
			return i
		}
	}
	return len(periods)
}

// saveRun stores the run record together with its assignments (none when
// infeasible) in one store call
func saveRun(ctx context.Context, store GenerateScheduleStore, weekOf time.Time, result *scheduler.Result) error {
	breakdown := result.Breakdown()
	run := &db.ScheduleRun{
		ID:            result.RunID.String(),
		WeekOf:        weekOf.Format("2006-01-02"),
		Status:        result.Status.String(),
		Objective:     result.Objective,
		LowerBound:    result.LowerBound,
		Understaffing: breakdown[modelbuilder.CategoryUnderstaffing],
		RoleShortfall: breakdown[modelbuilder.CategoryRoleShortfall],
		Clopen:        breakdown[modelbuilder.CategoryClopen],
		HourImbalance: breakdown[modelbuilder.CategoryHourImbalance],
		ElapsedMillis: result.Elapsed.Milliseconds(),
	}

	var assignments []db.AssignmentRecord
	if result.Status.HasSchedule() {
		assignments = convertToDBAssignments(run.ID, weekOf, result.Schedule)
	}

	if err := store.InsertScheduleRunWithAssignments(ctx, run, assignments); err != nil {
		return fmt.Errorf("failed to save schedule run: %w", err)
	}
	return nil
}

// convertToDBAssignments flattens a schedule into assignment records with
// concrete shift dates
func convertToDBAssignments(runID string, weekOf time.Time, schedule assembler.Schedule) []db.AssignmentRecord {
	var records []db.AssignmentRecord
	for _, sa := range schedule.Slots {
		date := weekOf.AddDate(0, 0, model.DayIndex(schedule.WeekStart, sa.Slot.Day))
		for _, emp := range sa.Employees {
			records = append(records, db.AssignmentRecord{
				ID:         uuid.New().String(),
				RunID:      runID,
				ShiftDate:  date.Format("2006-01-02"),
				Period:     sa.Slot.Period,
				EmployeeID: emp.ID,
				Role:       emp.Role,
			})
		}
	}
	return records
}
