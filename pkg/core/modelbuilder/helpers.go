package modelbuilder

import (
	"fmt"

	"github.com/jakechorley/shiftplanner/pkg/core/model"
)

// NewBoolVar adds a 0/1 variable
func (b *Builder) NewBoolVar(name string) VarID {
	return b.newVar(Var{Name: name, Kind: KindBool, Lower: 0, Upper: 1})
}

// NewIntVar adds an integer variable with the given bounds
func (b *Builder) NewIntVar(name string, lower, upper int) VarID {
	return b.newVar(Var{Name: name, Kind: KindInt, Lower: lower, Upper: upper})
}

func (b *Builder) newVar(v Var) VarID {
	b.m.Vars = append(b.m.Vars, v)
	return VarID(len(b.m.Vars) - 1)
}

// AddConstraint appends a linear row to the model
func (b *Builder) AddConstraint(c Constraint) {
	b.m.Constraints = append(b.m.Constraints, c)
}

// Request returns the defaulted request the model is built from
func (b *Builder) Request() model.Request {
	return b.m.Request
}

// Employees returns the employees in request order
func (b *Builder) Employees() []model.Employee {
	return b.m.Employees
}

// Slots returns the ordered slot set
func (b *Builder) Slots() []model.Slot {
	return b.m.Slots
}

// NumDays returns the length of the horizon
func (b *Builder) NumDays() int {
	return len(b.m.Days)
}

// SlotDay returns the horizon day index of slot s
func (b *Builder) SlotDay(s int) int {
	return b.m.SlotDay[s]
}

// SlotAt returns the index of the slot for a horizon day and period
func (b *Builder) SlotAt(day int, period string) (int, bool) {
	if day < 0 || day >= len(b.m.Days) {
		return 0, false
	}
	s, ok := b.slotIndex[model.Slot{Day: b.m.Days[day], Period: period}]
	return s, ok
}

// Decision returns the variable for employee e working slot s
func (b *Builder) Decision(e, s int) VarID {
	return b.m.Decisions[e][s]
}

// Headcount returns the demanded headcount of slot s
func (b *Builder) Headcount(s int) int {
	return b.m.Headcount[s]
}

// IsMandatory returns true if slot s has a hard headcount
func (b *Builder) IsMandatory(s int) bool {
	return b.m.Mandatory[s]
}

// RoleNeeds returns the effective role minimums of slot s
func (b *Builder) RoleNeeds(s int) []model.RoleMinimum {
	return b.m.RoleNeeds[s]
}

// SlotExpr sums the decisions of slot s over employees accepted by include
// (nil includes everyone)
func (b *Builder) SlotExpr(s int, include func(model.Employee) bool) LinearExpr {
	expr := LinearExpr{}
	for e, emp := range b.m.Employees {
		if include != nil && !include(emp) {
			continue
		}
		expr.Terms = append(expr.Terms, Term{Var: b.m.Decisions[e][s], Coef: 1})
	}
	return expr
}

// HoursExpr returns the scheduled hours of employee e scaled by factor
func (b *Builder) HoursExpr(e int, factor int) LinearExpr {
	hours := b.m.Request.ShiftHours * factor
	expr := LinearExpr{}
	for s := range b.m.Slots {
		expr.Terms = append(expr.Terms, Term{Var: b.m.Decisions[e][s], Coef: hours})
	}
	return expr
}

// PenaltyInfo locates a penalty for explanations
type PenaltyInfo struct {
	Name     string
	Category Category
	Weight   int
	Slot     int
	Employee int
	Role     string
}

// AddShortfall adds a penalty on max(0, target - expr) linearised as
// expr + slack >= target with 0 <= slack <= target.
// Returns the penalty index.
func (b *Builder) AddShortfall(info PenaltyInfo, expr LinearExpr, target int) int {
	slack := b.NewIntVar(fmt.Sprintf("shortfall[%s]", info.Name), 0, max(0, target))

	row := cloneExpr(expr)
	row.Terms = append(row.Terms, Term{Var: slack, Coef: 1})
	b.AddConstraint(Constraint{
		Name:   fmt.Sprintf("shortfall_def[%s]", info.Name),
		Family: FamilyLinearization,
		Expr:   row,
		Sense:  GreaterEq,
		RHS:    target,
	})

	return b.addPenalty(info, ShapeShortfall, expr, target, []VarID{slack})
}

// AddExcess adds a penalty on max(0, expr - target) linearised as
// expr - slack <= target with slack >= 0.
// Returns the penalty index.
func (b *Builder) AddExcess(info PenaltyInfo, expr LinearExpr, target int) int {
	reach := expr.Constant
	for _, t := range expr.Terms {
		reach += max(0, t.Coef)
	}
	slack := b.NewIntVar(fmt.Sprintf("excess[%s]", info.Name), 0, max(0, reach-target))

	row := cloneExpr(expr)
	row.Terms = append(row.Terms, Term{Var: slack, Coef: -1})
	b.AddConstraint(Constraint{
		Name:   fmt.Sprintf("excess_def[%s]", info.Name),
		Family: FamilyLinearization,
		Expr:   row,
		Sense:  LessEq,
		RHS:    target,
	})

	return b.addPenalty(info, ShapeExcess, expr, target, []VarID{slack})
}

// AddConjunction adds a penalty on an indicator that is true iff both a and
// b are true. The indicator z satisfies z <= a, z <= b and z >= a + b - 1.
// Returns the penalty index.
func (b *Builder) AddConjunction(info PenaltyInfo, first, second VarID) int {
	z := b.NewBoolVar(fmt.Sprintf("both[%s]", info.Name))

	for i, v := range []VarID{first, second} {
		b.AddConstraint(Constraint{
			Name:   fmt.Sprintf("both_upper%d[%s]", i, info.Name),
			Family: FamilyLinearization,
			Expr:   LinearExpr{Terms: []Term{{Var: z, Coef: 1}, {Var: v, Coef: -1}}},
			Sense:  LessEq,
			RHS:    0,
		})
	}
	b.AddConstraint(Constraint{
		Name:   fmt.Sprintf("both_lower[%s]", info.Name),
		Family: FamilyLinearization,
		Expr: LinearExpr{Terms: []Term{
			{Var: first, Coef: 1},
			{Var: second, Coef: 1},
			{Var: z, Coef: -1},
		}},
		Sense: LessEq,
		RHS:   1,
	})

	expr := LinearExpr{Terms: []Term{{Var: first, Coef: 1}, {Var: second, Coef: 1}}}
	return b.addPenalty(info, ShapeExcess, expr, 1, []VarID{z})
}

// AddDeviation adds a penalty on |expr - target| linearised with two
// non-negative slacks: expr - over + under == target.
// Returns the penalty index.
func (b *Builder) AddDeviation(info PenaltyInfo, expr LinearExpr, target int) int {
	bound := abs(target) + abs(expr.Constant)
	for _, t := range expr.Terms {
		bound += abs(t.Coef)
	}

	over := b.NewIntVar(fmt.Sprintf("over[%s]", info.Name), 0, bound)
	under := b.NewIntVar(fmt.Sprintf("under[%s]", info.Name), 0, bound)

	row := cloneExpr(expr)
	row.Terms = append(row.Terms, Term{Var: over, Coef: -1}, Term{Var: under, Coef: 1})
	b.AddConstraint(Constraint{
		Name:   fmt.Sprintf("deviation_def[%s]", info.Name),
		Family: FamilyLinearization,
		Expr:   row,
		Sense:  Equal,
		RHS:    target,
	})

	return b.addPenalty(info, ShapeDeviation, expr, target, []VarID{over, under})
}

// AddLevelGroup adds one deviation penalty per expression, all measured
// against a shared free level variable bounded by [0, upper].
// Returns the penalty indices.
func (b *Builder) AddLevelGroup(name string, upper int, infos []PenaltyInfo, exprs []LinearExpr) []int {
	level := b.NewIntVar(fmt.Sprintf("level[%s]", name), 0, max(0, upper))

	group := LevelGroup{Level: level}
	for i, expr := range exprs {
		row := cloneExpr(expr)
		row.Terms = append(row.Terms, Term{Var: level, Coef: -1})
		group.Penalties = append(group.Penalties, b.AddDeviation(infos[i], row, 0))
	}
	b.m.LevelGroups = append(b.m.LevelGroups, group)
	return group.Penalties
}

// AddCoverGroup registers the understaffing penalties of one horizon day
func (b *Builder) AddCoverGroup(day int, penalties []int) {
	if len(penalties) == 0 {
		return
	}
	b.m.CoverGroups = append(b.m.CoverGroups, CoverGroup{Day: day, Penalties: penalties})
}

func (b *Builder) addPenalty(info PenaltyInfo, shape Shape, expr LinearExpr, target int, aux []VarID) int {
	b.m.Penalties = append(b.m.Penalties, Penalty{
		Name:     info.Name,
		Category: info.Category,
		Weight:   info.Weight,
		Shape:    shape,
		Expr:     expr,
		Target:   target,
		Aux:      aux,
		Slot:     info.Slot,
		Employee: info.Employee,
		Role:     info.Role,
	})
	return len(b.m.Penalties) - 1
}

func cloneExpr(e LinearExpr) LinearExpr {
	terms := make([]Term, len(e.Terms), len(e.Terms)+2)
	copy(terms, e.Terms)
	return LinearExpr{Terms: terms, Constant: e.Constant}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
