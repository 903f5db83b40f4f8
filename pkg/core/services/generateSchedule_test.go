package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/shiftplanner/internal/config"
	"github.com/jakechorley/shiftplanner/pkg/core/model"
	"github.com/jakechorley/shiftplanner/pkg/core/scheduler"
	"github.com/jakechorley/shiftplanner/pkg/db"
)

// Sunday
var weekOf = time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

// mockScheduleStore implements GenerateScheduleStore and ScheduleHistoryStore for testing
type mockScheduleStore struct {
	runs              []db.ScheduleRun
	assignments       []db.AssignmentRecord
	insertRunErr      error
	insertAssignErr   error
	getRunsErr        error
	getAssignmentsErr error
	saveCalls         int
}

// InsertScheduleRunWithAssignments keeps nothing when either part fails,
// like the transaction it stands in for
func (m *mockScheduleStore) InsertScheduleRunWithAssignments(ctx context.Context, run *db.ScheduleRun, assignments []db.AssignmentRecord) error {
	m.saveCalls++
	if m.insertRunErr != nil {
		return m.insertRunErr
	}
	if len(assignments) > 0 && m.insertAssignErr != nil {
		return m.insertAssignErr
	}
	m.runs = append(m.runs, *run)
	m.assignments = append(m.assignments, assignments...)
	return nil
}

func (m *mockScheduleStore) GetScheduleRuns(ctx context.Context) ([]db.ScheduleRun, error) {
	if m.getRunsErr != nil {
		return nil, m.getRunsErr
	}
	return m.runs, nil
}

func (m *mockScheduleStore) GetAssignments(ctx context.Context, runID string) ([]db.AssignmentRecord, error) {
	if m.getAssignmentsErr != nil {
		return nil, m.getAssignmentsErr
	}
	var out []db.AssignmentRecord
	for _, a := range m.assignments {
		if a.RunID == runID {
			out = append(out, a)
		}
	}
	return out, nil
}

func intPtr(v int) *int {
	return &v
}

func boolPtr(v bool) *bool {
	return &v
}

func testConfig() *config.Config {
	return &config.Config{
		TeamFile:  "team.yaml",
		TimeLimit: 5 * time.Second,
	}
}

func twoPersonTeam() *config.Team {
	return &config.Team{
		Members: []config.TeamMember{
			{ID: "alice", Name: "Alice", Roles: []string{"server"}},
			{ID: "bob", Name: "Bob", Roles: []string{"server"}},
		},
		Demand: []config.DemandEntry{
			{Slot: "Mon-Morning", Headcount: 1},
			{Slot: "Tue-Dinner", Headcount: 1},
		},
	}
}

func findDemand(t *testing.T, req model.Request, slot string) model.Demand {
	t.Helper()
	s, err := model.ParseSlot(slot)
	require.NoError(t, err)
	for _, d := range req.Demands {
		if d.Slot == s {
			return d
		}
	}
	t.Fatalf("no demand for %s", slot)
	return model.Demand{}
}

func hasDemand(req model.Request, slot string) bool {
	s, _ := model.ParseSlot(slot)
	for _, d := range req.Demands {
		if d.Slot == s {
			return true
		}
	}
	return false
}

func TestBuildRequest_DemandLayers(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultHeadcount = map[string]int{"Morning": 1, "Dinner": 2}
	cfg.RoleRules = []model.RoleMinimum{{Role: "cook", Count: 1}}
	cfg.DemandOverrides = []config.DemandOverride{
		{
			RRule:     "FREQ=WEEKLY;BYDAY=SA",
			Periods:   []string{"Dinner"},
			Headcount: intPtr(4),
			Mandatory: boolPtr(true),
		},
	}

	team := &config.Team{
		Members: []config.TeamMember{
			{ID: "alice", Name: "Alice", Unavailable: []string{"Mon-Dinner"}, Pinned: []string{"Wed-Lunch"}},
		},
		Demand: []config.DemandEntry{
			{Slot: "Fri-Dinner", Headcount: 3, Roles: []model.RoleMinimum{{Role: "server", Count: 2}}},
		},
	}

	req, err := BuildRequest(cfg, team, weekOf, zap.NewNop())
	require.NoError(t, err)

	assert.Len(t, req.Slots, 21)
	assert.Equal(t, time.Sunday, req.WeekStart)
	assert.Equal(t, model.DefaultPeriods(), req.Periods)
	assert.Equal(t, cfg.RoleRules, req.RoleRules)
	assert.Equal(t, 5*time.Second, req.TimeLimit)

	// Morning and Dinner on every day
	assert.Len(t, req.Demands, 14)
	assert.Equal(t, model.Slot{Day: time.Sunday, Period: model.PeriodMorning}, req.Demands[0].Slot)
	assert.False(t, hasDemand(req, "Mon-Lunch"))

	assert.Equal(t, 1, findDemand(t, req, "Mon-Morning").Headcount)
	assert.Equal(t, 2, findDemand(t, req, "Thu-Dinner").Headcount)

	fri := findDemand(t, req, "Fri-Dinner")
	assert.Equal(t, 3, fri.Headcount)
	assert.Equal(t, []model.RoleMinimum{{Role: "server", Count: 2}}, fri.Roles)

	sat := findDemand(t, req, "Sat-Dinner")
	assert.Equal(t, 4, sat.Headcount)
	assert.True(t, sat.Mandatory)
	assert.False(t, findDemand(t, req, "Sat-Morning").Mandatory)

	assert.Equal(t, []model.AvailabilityException{
		{EmployeeID: "alice", Slot: model.Slot{Day: time.Monday, Period: model.PeriodDinner}},
	}, req.Exceptions)
	assert.Equal(t, []model.Assignment{
		{EmployeeID: "alice", Slot: model.Slot{Day: time.Wednesday, Period: model.PeriodLunch}},
	}, req.Pins)
}

func TestBuildRequest_MonthlyOverride(t *testing.T) {
	tests := []struct {
		name     string
		rrule    string
		expected bool
	}{
		{name: "date inside week", rrule: "FREQ=MONTHLY;BYMONTHDAY=20", expected: true},
		{name: "date outside week", rrule: "FREQ=MONTHLY;BYMONTHDAY=1", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.DemandOverrides = []config.DemandOverride{
				{RRule: tt.rrule, Periods: []string{"Lunch"}, Headcount: intPtr(2)},
			}

			req, err := BuildRequest(cfg, &config.Team{}, weekOf, zap.NewNop())
			require.NoError(t, err)

			// 20 October 2026 is a Tuesday
			assert.Equal(t, tt.expected, hasDemand(req, "Tue-Lunch"))
		})
	}
}

func TestBuildRequest_OverrideAllPeriods(t *testing.T) {
	cfg := testConfig()
	cfg.DemandOverrides = []config.DemandOverride{
		{RRule: "FREQ=WEEKLY;BYDAY=SU", Headcount: intPtr(1)},
	}

	req, err := BuildRequest(cfg, &config.Team{}, weekOf, zap.NewNop())
	require.NoError(t, err)

	require.Len(t, req.Demands, 3)
	for _, d := range req.Demands {
		assert.Equal(t, time.Sunday, d.Slot.Day)
		assert.Equal(t, 1, d.Headcount)
	}
}

func TestBuildRequest_WrongWeekday(t *testing.T) {
	monday := weekOf.AddDate(0, 0, 1)

	_, err := BuildRequest(testConfig(), &config.Team{}, monday, zap.NewNop())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "week must start on a Sunday")

	cfg := testConfig()
	cfg.WeekStart = "Monday"
	req, err := BuildRequest(cfg, &config.Team{}, monday, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, time.Monday, req.Slots[0].Day)
}

func TestNextWeekStart(t *testing.T) {
	friday := time.Date(2026, 10, 16, 15, 30, 0, 0, time.UTC)

	assert.Equal(t, weekOf, NextWeekStart(friday, time.Sunday))
	assert.Equal(t, weekOf.AddDate(0, 0, 7), NextWeekStart(weekOf, time.Sunday))
	assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), NextWeekStart(friday, time.Monday))
}

func TestGenerateSchedule_SavesRun(t *testing.T) {
	store := &mockScheduleStore{}

	result, err := GenerateSchedule(context.Background(), store, scheduler.New(nil, nil),
		testConfig(), twoPersonTeam(), zap.NewNop(), weekOf, false)
	require.NoError(t, err)

	assert.True(t, result.Saved)
	assert.Equal(t, model.StatusOptimal, result.Result.Status)

	assert.Equal(t, 1, store.saveCalls)
	require.Len(t, store.runs, 1)
	run := store.runs[0]
	assert.Equal(t, result.Result.RunID.String(), run.ID)
	assert.Equal(t, "2026-10-18", run.WeekOf)
	assert.Equal(t, "OPTIMAL", run.Status)
	assert.Equal(t, 0, run.Objective)

	require.Len(t, store.assignments, 2)
	dates := map[string]string{}
	for _, a := range store.assignments {
		assert.Equal(t, run.ID, a.RunID)
		assert.Equal(t, "server", a.Role)
		dates[a.Period] = a.ShiftDate
	}
	assert.Equal(t, map[string]string{"Morning": "2026-10-19", "Dinner": "2026-10-20"}, dates)
}

func TestGenerateSchedule_DryRun(t *testing.T) {
	store := &mockScheduleStore{}

	result, err := GenerateSchedule(context.Background(), store, scheduler.New(nil, nil),
		testConfig(), twoPersonTeam(), zap.NewNop(), weekOf, true)
	require.NoError(t, err)

	assert.False(t, result.Saved)
	assert.Len(t, result.Result.Schedule.Assignments(), 2)
	assert.Empty(t, store.runs)
	assert.Empty(t, store.assignments)
}

func TestGenerateSchedule_InfeasibleSavedWithoutAssignments(t *testing.T) {
	store := &mockScheduleStore{}
	team := &config.Team{
		Members: []config.TeamMember{
			{ID: "alice", Name: "Alice", Unavailable: []string{"Mon-Morning"}},
		},
		Demand: []config.DemandEntry{
			{Slot: "Mon-Morning", Headcount: 1, Mandatory: true},
		},
	}

	result, err := GenerateSchedule(context.Background(), store, scheduler.New(nil, nil),
		testConfig(), team, zap.NewNop(), weekOf, false)
	require.NoError(t, err)

	assert.Equal(t, model.StatusInfeasible, result.Result.Status)
	require.Len(t, store.runs, 1)
	assert.Equal(t, "INFEASIBLE", store.runs[0].Status)
	assert.Empty(t, store.assignments)
}

func TestGenerateSchedule_StoreError(t *testing.T) {
	store := &mockScheduleStore{insertRunErr: errors.New("connection refused")}

	_, err := GenerateSchedule(context.Background(), store, scheduler.New(nil, nil),
		testConfig(), twoPersonTeam(), zap.NewNop(), weekOf, false)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save schedule run")
}

func TestGenerateSchedule_AssignmentInsertFails(t *testing.T) {
	store := &mockScheduleStore{insertAssignErr: errors.New("violates foreign key constraint")}

	result, err := GenerateSchedule(context.Background(), store, scheduler.New(nil, nil),
		testConfig(), twoPersonTeam(), zap.NewNop(), weekOf, false)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "violates foreign key constraint")

	// Run and assignments go through one call, so no orphan run is left
	assert.Equal(t, 1, store.saveCalls)
	assert.Empty(t, store.runs)
	assert.Empty(t, store.assignments)
}

func TestGenerateSchedule_InvalidWeights(t *testing.T) {
	cfg := testConfig()
	cfg.Weights = &model.Weights{Understaffing: -1}

	_, err := GenerateSchedule(context.Background(), nil, scheduler.New(nil, nil),
		cfg, twoPersonTeam(), zap.NewNop(), weekOf, false)

	var inputErr *model.InputValidationError
	assert.True(t, errors.As(err, &inputErr))
}
