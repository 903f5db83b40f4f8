package modelbuilder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/shiftplanner/pkg/core/model"
)

var (
	sunLunch   = model.Slot{Day: time.Sunday, Period: model.PeriodLunch}
	monMorning = model.Slot{Day: time.Monday, Period: model.PeriodMorning}
	monLunch   = model.Slot{Day: time.Monday, Period: model.PeriodLunch}
	monDinner  = model.Slot{Day: time.Monday, Period: model.PeriodDinner}
)

func buildModel(t *testing.T, req model.Request) *Model {
	t.Helper()
	req.TimeLimit = time.Second
	m, err := NewBuilder(req).Build(nil)
	require.NoError(t, err)
	return m
}

func constraintsOf(m *Model, family Family) []Constraint {
	var out []Constraint
	for _, c := range m.Constraints {
		if c.Family == family {
			out = append(out, c)
		}
	}
	return out
}

func TestBuild_CollectsSlotsInHorizonOrder(t *testing.T) {
	m := buildModel(t, model.Request{
		Employees: []model.Employee{{ID: "alice"}},
		Slots:     []model.Slot{sunLunch},
		Demands: []model.Demand{
			{Slot: monDinner, Headcount: 1},
			{Slot: model.Slot{Day: time.Monday, Period: "Brunch"}, Headcount: 1},
		},
		Pins: []model.Assignment{{EmployeeID: "alice", Slot: monMorning}},
	})

	// Unknown periods are skipped
	assert.Equal(t, []model.Slot{sunLunch, monMorning, monDinner}, m.Slots)
	assert.Equal(t, []int{0, 1, 1}, m.SlotDay)
	assert.Len(t, m.Days, 7)
	assert.Equal(t, time.Sunday, m.Days[0])
}

func TestBuild_WeekStartShiftsHorizon(t *testing.T) {
	m := buildModel(t, model.Request{
		Employees: []model.Employee{{ID: "alice"}},
		Slots:     []model.Slot{sunLunch, monMorning},
		WeekStart: time.Monday,
	})

	// Sunday is the last day of a Monday week
	assert.Equal(t, []model.Slot{monMorning, sunLunch}, m.Slots)
	assert.Equal(t, []int{0, 6}, m.SlotDay)
}

func TestBuild_DecisionsComeFirst(t *testing.T) {
	m := buildModel(t, model.Request{
		Employees: []model.Employee{{ID: "alice"}, {ID: "bob"}},
		Demands:   []model.Demand{{Slot: monMorning, Headcount: 1}, {Slot: monDinner, Headcount: 1}},
	})

	require.Equal(t, 4, m.NumDecisions())
	for e := range m.Employees {
		for s := range m.Slots {
			id := m.Decisions[e][s]
			assert.True(t, m.IsDecision(id))
			assert.Equal(t, KindBool, m.Vars[id].Kind)
		}
	}
	assert.Equal(t, "works[bob,Mon-Dinner]", m.Vars[m.Decisions[1][1]].Name)
}

func TestBuild_LaterDemandWins(t *testing.T) {
	m := buildModel(t, model.Request{
		Employees: []model.Employee{{ID: "alice"}},
		Demands: []model.Demand{
			{Slot: monMorning, Headcount: 3, Mandatory: true},
			{Slot: monMorning, Headcount: 1},
		},
	})

	require.Len(t, m.Slots, 1)
	assert.Equal(t, 1, m.Headcount[0])
	assert.False(t, m.Mandatory[0])
	assert.Empty(t, constraintsOf(m, FamilyCoverage))
}

func TestBuild_RoleNeeds(t *testing.T) {
	m := buildModel(t, model.Request{
		Employees: []model.Employee{{ID: "alice"}},
		Slots:     []model.Slot{sunLunch},
		Demands: []model.Demand{
			{Slot: monMorning, Headcount: 2, Roles: []model.RoleMinimum{{Role: "cook", Count: 2}}},
			{Slot: monDinner, Headcount: 2, Roles: []model.RoleMinimum{{Role: "server", Count: 0}}},
		},
		RoleRules: []model.RoleMinimum{{Role: "cook", Count: 1}, {Role: "server", Count: 1}},
	})

	// No demand, so no request-wide rules
	assert.Empty(t, m.RoleNeeds[0])

	// The slot's own cook minimum replaces the rule
	assert.Equal(t, []model.RoleMinimum{{Role: "cook", Count: 2}, {Role: "server", Count: 1}}, m.RoleNeeds[1])

	// A zero slot minimum switches the server rule off
	assert.Equal(t, []model.RoleMinimum{{Role: "cook", Count: 1}}, m.RoleNeeds[2])
}

func TestBuild_AvailabilityAndPins(t *testing.T) {
	m := buildModel(t, model.Request{
		Employees: []model.Employee{{ID: "alice"}, {ID: "bob"}},
		Demands:   []model.Demand{{Slot: monMorning, Headcount: 1}, {Slot: monDinner, Headcount: 1}},
		Exceptions: []model.AvailabilityException{
			{EmployeeID: "alice", Slot: monMorning},
			{EmployeeID: "alice", Slot: monMorning},
			{EmployeeID: "ghost", Slot: monMorning},
		},
		Pins: []model.Assignment{{EmployeeID: "bob", Slot: monDinner}},
	})

	unavailable := constraintsOf(m, FamilyAvailability)
	require.Len(t, unavailable, 1)
	assert.True(t, unavailable[0].Hard)
	assert.Equal(t, 0, m.Vars[m.Decisions[0][0]].Upper)

	pins := constraintsOf(m, FamilyPin)
	require.Len(t, pins, 1)
	assert.Equal(t, "pinned[bob,Mon-Dinner]", pins[0].Name)
	assert.Equal(t, 1, m.Vars[m.Decisions[1][1]].Lower)
	assert.True(t, m.Vars[m.Decisions[1][1]].Fixed())
}

func TestBuild_OnePeriodPerDay(t *testing.T) {
	m := buildModel(t, model.Request{
		Employees: []model.Employee{{ID: "alice"}, {ID: "bob"}},
		Demands: []model.Demand{
			{Slot: sunLunch, Headcount: 1},
			{Slot: monMorning, Headcount: 1},
			{Slot: monLunch, Headcount: 1},
			{Slot: monDinner, Headcount: 1},
		},
	})

	// Sunday has a single slot and needs no row
	rows := constraintsOf(m, FamilySameDay)
	require.Len(t, rows, 2)
	assert.Equal(t, "one_period_per_day[alice,Monday]", rows[0].Name)
	assert.Len(t, rows[0].Expr.Terms, 3)
	assert.Equal(t, LessEq, rows[0].Sense)
	assert.Equal(t, 1, rows[0].RHS)
}

func TestBuild_CompatiblePeriods(t *testing.T) {
	m := buildModel(t, model.Request{
		Employees: []model.Employee{{ID: "alice"}},
		Demands: []model.Demand{
			{Slot: monMorning, Headcount: 1},
			{Slot: monLunch, Headcount: 1},
			{Slot: monDinner, Headcount: 1},
		},
		CompatiblePeriods: []model.PeriodPair{{First: model.PeriodMorning, Second: model.PeriodDinner}},
	})

	// Morning+Dinner is allowed, both pairs with Lunch are not
	rows := constraintsOf(m, FamilySameDay)
	require.Len(t, rows, 2)

	require.Len(t, m.Blocks, 1)
	assert.Equal(t, []uint32{0, 1, 2, 4, 5}, m.Blocks[0].Patterns)
}

func TestBuild_MandatoryCoverage(t *testing.T) {
	m := buildModel(t, model.Request{
		Employees: []model.Employee{{ID: "alice"}, {ID: "bob"}},
		Demands: []model.Demand{
			{Slot: monMorning, Headcount: 2, Mandatory: true},
			{Slot: monDinner, Headcount: 0, Mandatory: true},
		},
	})

	rows := constraintsOf(m, FamilyCoverage)
	require.Len(t, rows, 1)
	assert.Equal(t, GreaterEq, rows[0].Sense)
	assert.Equal(t, 2, rows[0].RHS)
	assert.Len(t, rows[0].Expr.Terms, 2)
}

func TestBuild_BlockPatterns(t *testing.T) {
	m := buildModel(t, model.Request{
		Employees: []model.Employee{{ID: "alice"}, {ID: "bob"}, {ID: "carol"}},
		Demands: []model.Demand{
			{Slot: monMorning, Headcount: 1},
			{Slot: monDinner, Headcount: 1},
		},
		Exceptions: []model.AvailabilityException{{EmployeeID: "bob", Slot: monMorning}},
		Pins:       []model.Assignment{{EmployeeID: "carol", Slot: monDinner}},
	})

	require.Len(t, m.Blocks, 3)

	// Day off first, then one period at a time
	assert.Equal(t, []uint32{0, 1, 2}, m.Blocks[0].Patterns)
	assert.Equal(t, []uint32{0, 2}, m.Blocks[1].Patterns)
	assert.Equal(t, []uint32{2}, m.Blocks[2].Patterns)

	assert.Equal(t, 2, m.Blocks[2].Employee)
	assert.Equal(t, 1, m.Blocks[2].Day)
	assert.Equal(t, []VarID{m.Decisions[2][0], m.Decisions[2][1]}, m.Blocks[2].Vars)
}

func TestBuild_TooManyPeriods(t *testing.T) {
	periods := make([]string, 17)
	var slots []model.Slot
	for i := range periods {
		periods[i] = string(rune('A' + i))
		slots = append(slots, model.Slot{Day: time.Monday, Period: periods[i]})
	}

	_, err := NewBuilder(model.Request{
		Employees: []model.Employee{{ID: "alice"}},
		Slots:     slots,
		Periods:   periods,
	}).Build(nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "at most 16")
}

func TestModel_HardViolations(t *testing.T) {
	m := buildModel(t, model.Request{
		Employees:  []model.Employee{{ID: "alice"}},
		Demands:    []model.Demand{{Slot: monMorning, Headcount: 1}, {Slot: monDinner, Headcount: 1}},
		Exceptions: []model.AvailabilityException{{EmployeeID: "alice", Slot: monMorning}},
	})

	values := make([]int, len(m.Vars))
	assert.Empty(t, m.HardViolations(values))

	values[m.Decisions[0][0]] = 1
	values[m.Decisions[0][1]] = 1
	assert.ElementsMatch(t, []string{
		"unavailable[alice,Mon-Morning]",
		"one_period_per_day[alice,Monday]",
	}, m.HardViolations(values))
}

func TestBuilder_PenaltyHelpers(t *testing.T) {
	b := NewBuilder(model.Request{
		Employees: []model.Employee{{ID: "alice"}, {ID: "bob"}},
		Demands:   []model.Demand{{Slot: monMorning, Headcount: 2}, {Slot: model.Slot{Day: time.Tuesday, Period: model.PeriodMorning}, Headcount: 1}},
		TimeLimit: time.Second,
	})
	m, err := b.Build(nil)
	require.NoError(t, err)

	short := b.AddShortfall(PenaltyInfo{Name: "short", Weight: 3, Slot: 0, Employee: -1}, b.SlotExpr(0, nil), 2)
	both := b.AddConjunction(PenaltyInfo{Name: "both", Weight: 5, Slot: 0, Employee: 0}, b.Decision(0, 0), b.Decision(0, 1))
	dev := b.AddDeviation(PenaltyInfo{Name: "dev", Weight: 1, Slot: -1, Employee: 0}, b.HoursExpr(0, 1), 4)

	values := make([]int, len(m.Vars))
	values[b.Decision(0, 0)] = 1
	values[b.Decision(0, 1)] = 1

	assert.Equal(t, 1, m.Penalties[short].Violation(values))
	assert.Equal(t, 1, m.Penalties[both].Violation(values))
	assert.Equal(t, 4, m.Penalties[dev].Violation(values))
	assert.Equal(t, 3+5+4, m.Objective(values))

	// Tight slack values satisfy every linearisation row
	for _, p := range m.Penalties {
		aux := p.AuxValues(p.Expr.Eval(values))
		for i, v := range p.Aux {
			values[v] = aux[i]
		}
	}
	for _, c := range m.Constraints {
		assert.True(t, c.Satisfied(values), c.Name)
	}
}

func TestPenalty_ViolationOf(t *testing.T) {
	tests := []struct {
		name  string
		shape Shape
		value int
		want  int
	}{
		{name: "shortfall below target", shape: ShapeShortfall, value: 1, want: 2},
		{name: "shortfall above target", shape: ShapeShortfall, value: 5, want: 0},
		{name: "excess above target", shape: ShapeExcess, value: 5, want: 2},
		{name: "excess below target", shape: ShapeExcess, value: 1, want: 0},
		{name: "deviation over", shape: ShapeDeviation, value: 7, want: 4},
		{name: "deviation under", shape: ShapeDeviation, value: 0, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Penalty{Shape: tt.shape, Target: 3}
			assert.Equal(t, tt.want, p.ViolationOf(tt.value))
		})
	}
}

func TestBestLevel(t *testing.T) {
	tests := []struct {
		name      string
		lo, hi    []int
		wantTotal int
		wantLevel int
	}{
		{name: "empty", wantTotal: 0, wantLevel: 0},
		{name: "points", lo: []int{8, 4, 0}, hi: []int{8, 4, 0}, wantTotal: 8, wantLevel: 4},
		{name: "pair", lo: []int{8, 0}, hi: []int{8, 0}, wantTotal: 8, wantLevel: 0},
		{name: "overlapping ranges", lo: []int{0, 4}, hi: []int{8, 4}, wantTotal: 0, wantLevel: 4},
		{name: "disjoint ranges", lo: []int{0, 12, 12}, hi: []int{4, 16, 20}, wantTotal: 8, wantLevel: 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, level := BestLevel(tt.lo, tt.hi, nil)
			assert.Equal(t, tt.wantTotal, total)
			assert.Equal(t, tt.wantLevel, level)
		})
	}
}

func TestModel_SettleLevels(t *testing.T) {
	b := NewBuilder(model.Request{
		Employees: []model.Employee{{ID: "alice"}, {ID: "bob"}, {ID: "carol"}},
		Demands:   []model.Demand{{Slot: monMorning, Headcount: 1}, {Slot: monLunch, Headcount: 1}},
		TimeLimit: time.Second,
	})
	m, err := b.Build(nil)
	require.NoError(t, err)

	infos := make([]PenaltyInfo, 3)
	exprs := make([]LinearExpr, 3)
	for e := range infos {
		infos[e] = PenaltyInfo{Name: m.Employees[e].ID, Weight: 2, Slot: -1, Employee: e}
		exprs[e] = b.HoursExpr(e, 1)
	}
	b.AddLevelGroup("team", 8, infos, exprs)
	require.Len(t, m.LevelGroups, 1)

	values := make([]int, len(m.Vars))
	values[m.Decisions[0][0]] = 1
	values[m.Decisions[1][1]] = 1
	m.SettleLevels(values)

	// Hours (4, 4, 0): level 4, carol is 4 off
	assert.Equal(t, 4, values[m.LevelGroups[0].Level])
	assert.Equal(t, 8, m.Objective(values))
}
