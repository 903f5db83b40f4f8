package modelbuilder

import (
	"sort"
	"time"

	"github.com/jakechorley/shiftplanner/pkg/core/model"
)

// VarID indexes Model.Vars
type VarID int

// VarKind distinguishes boolean decision/indicator variables from integer slacks
type VarKind int

const (
	KindBool VarKind = iota
	KindInt
)

// Var is a bounded non-negative integer variable
type Var struct {
	Name  string
	Kind  VarKind
	Lower int
	Upper int
}

// Fixed returns true if the bounds leave a single value
func (v Var) Fixed() bool {
	return v.Lower == v.Upper
}

// Term is one coefficient/variable product of a linear expression
type Term struct {
	Var  VarID
	Coef int
}

// LinearExpr is Σ Coef·Var + Constant
type LinearExpr struct {
	Terms    []Term
	Constant int
}

// Eval evaluates the expression against a full value vector
func (e LinearExpr) Eval(values []int) int {
	total := e.Constant
	for _, t := range e.Terms {
		total += t.Coef * values[t.Var]
	}
	return total
}

// Sense is the comparison of a linear constraint
type Sense int

const (
	LessEq Sense = iota
	GreaterEq
	Equal
)

func (s Sense) String() string {
	switch s {
	case LessEq:
		return "<="
	case GreaterEq:
		return ">="
	default:
		return "=="
	}
}

// Family groups constraints by the rule they express
type Family string

const (
	FamilyAvailability  Family = "availability"
	FamilySameDay       Family = "same_day"
	FamilyPin           Family = "pin"
	FamilyCoverage      Family = "mandatory_coverage"
	FamilyLinearization Family = "linearization"
)

// Constraint is a linear row Expr (<=|>=|==) RHS.
// Hard rows are business rules a schedule must satisfy; the remaining rows
// tie slack variables to the decisions they measure.
type Constraint struct {
	Name   string
	Family Family
	Expr   LinearExpr
	Sense  Sense
	RHS    int
	Hard   bool
}

// Satisfied returns true if values satisfy the row
func (c Constraint) Satisfied(values []int) bool {
	lhs := c.Expr.Eval(values)
	switch c.Sense {
	case LessEq:
		return lhs <= c.RHS
	case GreaterEq:
		return lhs >= c.RHS
	default:
		return lhs == c.RHS
	}
}

// Category names a penalty bucket of the scorecard
type Category string

const (
	CategoryUnderstaffing Category = "understaffing"
	CategoryRoleShortfall Category = "role_shortfall"
	CategoryClopen        Category = "clopen"
	CategoryHourImbalance Category = "hour_imbalance"
)

// Categories returns every penalty category in reporting order
func Categories() []Category {
	return []Category{
		CategoryUnderstaffing,
		CategoryRoleShortfall,
		CategoryClopen,
		CategoryHourImbalance,
	}
}

// Shape is the violation function of a penalty
type Shape int

const (
	// ShapeShortfall measures max(0, Target - Expr)
	ShapeShortfall Shape = iota

	// ShapeExcess measures max(0, Expr - Target)
	ShapeExcess

	// ShapeDeviation measures |Expr - Target| through an over/under pair
	ShapeDeviation
)

// Penalty is one weighted soft-constraint term of the objective.
// Expr only references decision variables, plus the level variable for
// members of a LevelGroup; Aux holds the slack variables
// that linearise the shape (one for shortfall/excess, over then under for
// deviation).
type Penalty struct {
	Name     string
	Category Category
	Weight   int
	Shape    Shape
	Expr     LinearExpr
	Target   int
	Aux      []VarID

	// Slot and Employee locate the penalty for explanations (-1 if not applicable)
	Slot     int
	Employee int
	Role     string
}

// ViolationOf returns the violation magnitude for a given expression value
func (p Penalty) ViolationOf(exprValue int) int {
	switch p.Shape {
	case ShapeShortfall:
		return max(0, p.Target-exprValue)
	case ShapeExcess:
		return max(0, exprValue-p.Target)
	default:
		if exprValue > p.Target {
			return exprValue - p.Target
		}
		return p.Target - exprValue
	}
}

// Violation returns the violation magnitude for a full value vector
func (p Penalty) Violation(values []int) int {
	return p.ViolationOf(p.Expr.Eval(values))
}

// AuxValues returns the slack values that make the penalty's linearisation
// rows tight for the given expression value
func (p Penalty) AuxValues(exprValue int) []int {
	switch p.Shape {
	case ShapeDeviation:
		return []int{max(0, exprValue-p.Target), max(0, p.Target-exprValue)}
	default:
		return []int{p.ViolationOf(exprValue)}
	}
}

// Block holds the decision variables of one employee on one day together
// with every day pattern that respects the hard rules local to that day
// (availability, same-day exclusivity and pins). Bit i of a pattern means
// the employee works Slots[i].
type Block struct {
	Employee int
	Day      int
	Slots    []int
	Vars     []VarID
	Patterns []uint32
}

// CoverGroup lists the understaffing penalties of one day. All of them share
// a weight and count unit assignments of their slot, which lets a solver
// bound the group by the day's total capacity.
type CoverGroup struct {
	Day       int
	Penalties []int
}

// LevelGroup ties deviation penalties to one shared reference level. Each
// member's Expr is its own measure minus Level, so the group costs
// Σ |measure - Level|. Level is free: it settles wherever that sum is
// smallest, which is the median of the measures.
type LevelGroup struct {
	Level     VarID
	Penalties []int
}

// Model is the formal decision model for one solve
type Model struct {
	// Request is the defaulted copy the model was built from
	Request model.Request

	Employees []model.Employee
	Slots     []model.Slot

	// Days is the planning horizon in order; SlotDay maps a slot to its index
	Days    []time.Weekday
	SlotDay []int

	// Headcount and RoleNeeds are the effective per-slot requirements
	Headcount []int
	Mandatory []bool
	RoleNeeds [][]model.RoleMinimum

	Vars        []Var
	Constraints []Constraint
	Penalties   []Penalty

	// Decisions[e][s] is the variable meaning "employee e works slot s"
	Decisions [][]VarID

	// Blocks are ordered by day, then employee
	Blocks      []Block
	CoverGroups []CoverGroup
	LevelGroups []LevelGroup
}

// NumDecisions returns the number of (employee, slot) decision variables
func (m *Model) NumDecisions() int {
	return len(m.Employees) * len(m.Slots)
}

// IsDecision returns true if id is one of the decision variables. Decision
// variables are created first, so they occupy the lowest IDs.
func (m *Model) IsDecision(id VarID) bool {
	return int(id) < m.NumDecisions()
}

// Objective evaluates the weighted penalty sum for a full value vector
func (m *Model) Objective(values []int) int {
	total := 0
	for _, p := range m.Penalties {
		total += p.Weight * p.Violation(values)
	}
	return total
}

// SettleLevels sets every level variable to the value that minimises its
// group's deviations for the decision values already in values
func (m *Model) SettleLevels(values []int) {
	for _, g := range m.LevelGroups {
		values[g.Level] = 0
		measures := make([]int, len(g.Penalties))
		for i, pi := range g.Penalties {
			measures[i] = m.Penalties[pi].Expr.Eval(values)
		}
		_, values[g.Level] = BestLevel(measures, measures, nil)
	}
}

// BestLevel returns the smallest total distance from one integer level to
// the ranges [lo[i], hi[i]], and that level. The sum of distances is
// convex in the level and minimised at the median of all range ends.
// buf is reused when it has room.
func BestLevel(lo, hi []int, buf []int) (total, level int) {
	if len(lo) == 0 {
		return 0, 0
	}
	ends := append(buf[:0], lo...)
	ends = append(ends, hi...)
	sort.Ints(ends)
	level = ends[len(lo)-1]

	for i := range lo {
		switch {
		case level < lo[i]:
			total += lo[i] - level
		case level > hi[i]:
			total += level - hi[i]
		}
	}
	return total, level
}

// HardViolations returns the names of hard constraints that values break
func (m *Model) HardViolations(values []int) []string {
	var broken []string
	for _, c := range m.Constraints {
		if c.Hard && !c.Satisfied(values) {
			broken = append(broken, c.Name)
		}
	}
	return broken
}
