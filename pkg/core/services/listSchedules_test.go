package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/shiftplanner/pkg/core/model"
	"github.com/jakechorley/shiftplanner/pkg/db"
)

func historyStore() *mockScheduleStore {
	return &mockScheduleStore{
		runs: []db.ScheduleRun{
			{ID: "aaaa-1111", WeekOf: "2026-10-04", Status: "OPTIMAL", CreatedAt: "2026-10-01T09:00:00Z"},
			{ID: "bbbb-2222", WeekOf: "2026-10-18", Status: "FEASIBLE_SUBOPTIMAL", CreatedAt: "2026-10-15T09:00:00Z"},
			{ID: "aaab-3333", WeekOf: "2026-10-11", Status: "INFEASIBLE", CreatedAt: "2026-10-08T09:00:00Z"},
		},
		assignments: []db.AssignmentRecord{
			{ID: "a1", RunID: "bbbb-2222", ShiftDate: "2026-10-19", Period: "Morning", EmployeeID: "alice"},
			{ID: "a2", RunID: "aaaa-1111", ShiftDate: "2026-10-05", Period: "Dinner", EmployeeID: "bob"},
		},
	}
}

func TestListSchedules_NewestFirst(t *testing.T) {
	runs, err := ListSchedules(context.Background(), historyStore(), zap.NewNop(), 0)
	require.NoError(t, err)

	require.Len(t, runs, 3)
	assert.Equal(t, "bbbb-2222", runs[0].ID)
	assert.Equal(t, "aaab-3333", runs[1].ID)
	assert.Equal(t, "aaaa-1111", runs[2].ID)
}

func TestListSchedules_Limit(t *testing.T) {
	runs, err := ListSchedules(context.Background(), historyStore(), zap.NewNop(), 2)
	require.NoError(t, err)

	require.Len(t, runs, 2)
	assert.Equal(t, "bbbb-2222", runs[0].ID)
}

func TestListSchedules_StoreError(t *testing.T) {
	store := &mockScheduleStore{getRunsErr: errors.New("boom")}

	_, err := ListSchedules(context.Background(), store, zap.NewNop(), 0)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch schedule runs")
}

func TestGetSchedule(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantRun string
		errMsg  string
	}{
		{name: "exact id", id: "aaaa-1111", wantRun: "aaaa-1111"},
		{name: "unique prefix", id: "bb", wantRun: "bbbb-2222"},
		{name: "ambiguous prefix", id: "aaa", errMsg: "ambiguous"},
		{name: "unknown", id: "zzz", errMsg: "not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detail, err := GetSchedule(context.Background(), historyStore(), zap.NewNop(), tt.id, model.DefaultPeriods())
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRun, detail.Run.ID)
			require.Len(t, detail.Assignments, 1)
			assert.Equal(t, tt.wantRun, detail.Assignments[0].RunID)
		})
	}
}

func TestGetSchedule_PeriodOrder(t *testing.T) {
	store := &mockScheduleStore{
		runs: []db.ScheduleRun{{ID: "cccc-4444", WeekOf: "2026-10-18"}},
		// Name order, as the database returns them
		assignments: []db.AssignmentRecord{
			{ID: "a1", RunID: "cccc-4444", ShiftDate: "2026-10-19", Period: "Dinner", EmployeeID: "carol"},
			{ID: "a2", RunID: "cccc-4444", ShiftDate: "2026-10-19", Period: "Lunch", EmployeeID: "bob"},
			{ID: "a3", RunID: "cccc-4444", ShiftDate: "2026-10-19", Period: "Morning", EmployeeID: "alice"},
			{ID: "a4", RunID: "cccc-4444", ShiftDate: "2026-10-20", Period: "Dinner", EmployeeID: "alice"},
			{ID: "a5", RunID: "cccc-4444", ShiftDate: "2026-10-19", Period: "Morning", EmployeeID: "ann"},
		},
	}

	detail, err := GetSchedule(context.Background(), store, zap.NewNop(), "cccc", model.DefaultPeriods())
	require.NoError(t, err)

	var ids []string
	for _, a := range detail.Assignments {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"a3", "a5", "a2", "a1", "a4"}, ids)
}
