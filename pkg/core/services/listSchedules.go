package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/jakechorley/shiftplanner/pkg/db"
)

// ScheduleHistoryStore defines the database operations needed to read past runs
type ScheduleHistoryStore interface {
	GetScheduleRuns(ctx context.Context) ([]db.ScheduleRun, error)
	GetAssignments(ctx context.Context, runID string) ([]db.AssignmentRecord, error)
}

// RunDetail is one saved run with its assignments
type RunDetail struct {
	Run         db.ScheduleRun
	Assignments []db.AssignmentRecord
}

// ListSchedules returns the most recent runs, newest first. A limit of zero
// or less returns every run.
func ListSchedules(ctx context.Context, store ScheduleHistoryStore, logger *zap.Logger, limit int) ([]db.ScheduleRun, error) {
	runs, err := store.GetScheduleRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch schedule runs: %w", err)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].CreatedAt > runs[j].CreatedAt
	})

	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}

	logger.Debug("Fetched schedule runs", zap.Int("count", len(runs)))
	return runs, nil
}

// GetSchedule returns one saved run and its assignments ordered by date,
// then by position in periods, then by employee. The run id may be given as
// a unique prefix.
func GetSchedule(ctx context.Context, store ScheduleHistoryStore, logger *zap.Logger, runID string, periods []string) (*RunDetail, error) {
	runs, err := store.GetScheduleRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch schedule runs: %w", err)
	}

	run, err := findRun(runs, runID)
	if err != nil {
		return nil, err
	}

	assignments, err := store.GetAssignments(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch assignments: %w", err)
	}

	sort.SliceStable(assignments, func(i, j int) bool {
		a, b := assignments[i], assignments[j]
		if a.ShiftDate != b.ShiftDate {
			return a.ShiftDate < b.ShiftDate
		}
		if pa, pb := periodIndex(periods, a.Period), periodIndex(periods, b.Period); pa != pb {
			return pa < pb
		}
		return a.EmployeeID < b.EmployeeID
	})

	logger.Debug("Fetched schedule",
		zap.String("run_id", run.ID),
		zap.Int("assignments", len(assignments)))

	return &RunDetail{Run: *run, Assignments: assignments}, nil
}

// findRun finds the run whose id equals or uniquely starts with id
func findRun(runs []db.ScheduleRun, id string) (*db.ScheduleRun, error) {
	var match *db.ScheduleRun
	for i := range runs {
		if runs[i].ID == id {
			return &runs[i], nil
		}
		if id != "" && strings.HasPrefix(runs[i].ID, id) {
			if match != nil {
				return nil, fmt.Errorf("run id %q is ambiguous", id)
			}
			match = &runs[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("schedule run %q not found", id)
	}
	return match, nil
}
