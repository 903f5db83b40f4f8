package scorecard

import (
	"testing"
	"time"

	"github.com/jakechorley/shiftplanner/pkg/core/model"
	"github.com/jakechorley/shiftplanner/pkg/core/modelbuilder"
	"github.com/jakechorley/shiftplanner/pkg/core/modelbuilder/criteria"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildModel(t *testing.T, req model.Request) *modelbuilder.Model {
	t.Helper()
	req = req.WithDefaults()
	m, err := modelbuilder.NewBuilder(req).Build(criteria.FromWeights(*req.Weights))
	require.NoError(t, err)
	return m
}

// valuesFor sets the listed decisions and derives every slack from them
func valuesFor(m *modelbuilder.Model, assignments []model.Assignment) []int {
	values := make([]int, len(m.Vars))
	for _, a := range assignments {
		for e, emp := range m.Employees {
			for s, sl := range m.Slots {
				if emp.ID == a.EmployeeID && sl == a.Slot {
					values[m.Decisions[e][s]] = 1
				}
			}
		}
	}
	m.SettleLevels(values)
	for _, p := range m.Penalties {
		aux := p.AuxValues(p.Expr.Eval(values))
		for i, v := range p.Aux {
			values[v] = aux[i]
		}
	}
	return values
}

func TestGenerate_Understaffing(t *testing.T) {
	monMorning := model.Slot{Day: time.Monday, Period: model.PeriodMorning}
	m := buildModel(t, model.Request{
		Employees: []model.Employee{{ID: "alice", Name: "Alice"}},
		Demands:   []model.Demand{{Slot: monMorning, Headcount: 2}},
		TimeLimit: time.Second,
	})
	values := valuesFor(m, []model.Assignment{{EmployeeID: "alice", Slot: monMorning}})

	card, err := Generate(m, values, 100)
	require.NoError(t, err)

	assert.Equal(t, Breakdown{
		modelbuilder.CategoryUnderstaffing: 100,
		modelbuilder.CategoryRoleShortfall: 0,
		modelbuilder.CategoryClopen:        0,
		modelbuilder.CategoryHourImbalance: 0,
	}, card.Breakdown)
	assert.Equal(t, 100, card.Total)
	assert.Equal(t, 1, card.ShortHeads)
	require.Len(t, card.Items, 1)
	assert.Equal(t, "Mon-Morning", card.Items[0].Slot)
	assert.Equal(t, 1, card.Items[0].Violation)
	assert.Equal(t, []EmployeeHours{{EmployeeID: "alice", Name: "Alice", Shifts: 1, Hours: 4}}, card.Hours)
	assert.Zero(t, card.HoursStdDev)
}

func TestGenerate_ObjectiveMismatch(t *testing.T) {
	m := buildModel(t, model.Request{
		Employees: []model.Employee{{ID: "alice", Name: "Alice"}},
		Demands:   []model.Demand{{Slot: model.Slot{Day: time.Monday, Period: model.PeriodMorning}, Headcount: 1}},
		TimeLimit: time.Second,
	})

	_, err := Generate(m, valuesFor(m, nil), 0)

	assert.ErrorIs(t, err, ErrDecomposition)
}

func TestGenerate_WrongValueCount(t *testing.T) {
	m := buildModel(t, model.Request{
		Employees: []model.Employee{{ID: "alice", Name: "Alice"}},
		TimeLimit: time.Second,
	})

	_, err := Generate(m, []int{1, 2, 3}, 0)

	assert.Error(t, err)
}

func TestGenerate_ClopenAndHours(t *testing.T) {
	sunDinner := model.Slot{Day: time.Sunday, Period: model.PeriodDinner}
	monMorning := model.Slot{Day: time.Monday, Period: model.PeriodMorning}
	m := buildModel(t, model.Request{
		Employees: []model.Employee{
			{ID: "bob", Name: "Bob"},
			{ID: "carol", Name: "Carol"},
		},
		Demands: []model.Demand{
			{Slot: sunDinner, Headcount: 1},
			{Slot: monMorning, Headcount: 1},
		},
		TimeLimit: time.Second,
	})
	values := valuesFor(m, []model.Assignment{
		{EmployeeID: "bob", Slot: sunDinner},
		{EmployeeID: "bob", Slot: monMorning},
	})

	// Pool of two with hours (8, 0): the team level settles at 0, Bob is 8 off
	expected := model.DefaultClopenWeight + 8*model.DefaultFairnessWeight
	card, err := Generate(m, values, expected)
	require.NoError(t, err)

	assert.Equal(t, 1, card.Clopens)
	assert.Equal(t, model.DefaultClopenWeight, card.Breakdown[modelbuilder.CategoryClopen])
	assert.Equal(t, 8, card.Breakdown[modelbuilder.CategoryHourImbalance])
	assert.Equal(t, 0, card.ShortHeads)
	assert.InDelta(t, 4.0, card.HoursStdDev, 1e-9)
	assert.Equal(t, 8, card.Hours[0].Hours)
	assert.Equal(t, 0, card.Hours[1].Hours)

	// Items are sorted by penalty, largest first
	for i := 1; i < len(card.Items); i++ {
		assert.GreaterOrEqual(t, card.Items[i-1].Penalty, card.Items[i].Penalty)
	}
}

func TestGenerate_OverstaffedAndOvertime(t *testing.T) {
	monMorning := model.Slot{Day: time.Monday, Period: model.PeriodMorning}
	tueMorning := model.Slot{Day: time.Tuesday, Period: model.PeriodMorning}
	maxHours := 4
	m := buildModel(t, model.Request{
		Employees: []model.Employee{
			{ID: "alice", Name: "Alice", MaxHours: &maxHours},
			{ID: "bob", Name: "Bob"},
		},
		Demands: []model.Demand{
			{Slot: monMorning, Headcount: 1},
			{Slot: tueMorning, Headcount: 1},
		},
		TimeLimit: time.Second,
	})
	values := valuesFor(m, []model.Assignment{
		{EmployeeID: "alice", Slot: monMorning},
		{EmployeeID: "alice", Slot: tueMorning},
		{EmployeeID: "bob", Slot: monMorning},
	})

	// Hours (8, 4): team level 4, Alice is 4 off and 4 over her cap
	expected := 4*model.DefaultFairnessWeight + 4*model.DefaultOvertimeWeight
	card, err := Generate(m, values, expected)
	require.NoError(t, err)

	assert.Equal(t, 1, card.OverstaffedShifts)
	assert.Equal(t, expected, card.Breakdown[modelbuilder.CategoryHourImbalance])
	assert.Equal(t, &maxHours, card.Hours[0].MaxHours)

	var names []string
	for _, item := range card.Items {
		names = append(names, item.Name)
	}
	assert.Contains(t, names, "overtime[alice]")
}
