package modelbuilder

import (
	"fmt"
	"math/bits"
	"sort"

	"github.com/jakechorley/shiftplanner/pkg/core/model"
)

// Criterion contributes one family of soft penalties to the model.
// Criteria only add variables, linearisation rows and penalties; the hard
// rules are owned by the builder itself.
type Criterion interface {
	// Name returns a human-readable identifier for this criterion
	Name() string

	// Category returns the scorecard bucket the criterion's penalties fall in
	Category() Category

	// Weight returns the multiplier applied to each unit of violation
	Weight() int

	// Apply adds the criterion's penalties to the model under construction
	Apply(b *Builder) error
}

// Builder translates a request into a Model. A Builder is single use and
// must not be shared between solves.
type Builder struct {
	m *Model

	employeeIndex map[string]int
	slotIndex     map[model.Slot]int
	periodIndex   map[string]int

	// compatible[i][j] is true if periods i and j may be worked on the same day
	compatible [][]bool

	unavailable map[[2]int]bool
	pinned      map[[2]int]bool
}

// NewBuilder prepares a builder for the given request. The request is
// copied with defaults applied; the caller's records are never modified.
func NewBuilder(req model.Request) *Builder {
	req = req.WithDefaults()

	b := &Builder{
		m: &Model{
			Request:   req,
			Employees: req.Employees,
			Days:      model.HorizonDays(req.WeekStart),
		},
		employeeIndex: make(map[string]int),
		slotIndex:     make(map[model.Slot]int),
		periodIndex:   make(map[string]int),
		unavailable:   make(map[[2]int]bool),
		pinned:        make(map[[2]int]bool),
	}

	for i, emp := range req.Employees {
		// Duplicate IDs are not expected; the first occurrence wins lookups
		if _, exists := b.employeeIndex[emp.ID]; !exists {
			b.employeeIndex[emp.ID] = i
		}
	}

	for i, p := range req.Periods {
		b.periodIndex[p] = i
	}

	b.compatible = make([][]bool, len(req.Periods))
	for i := range b.compatible {
		b.compatible[i] = make([]bool, len(req.Periods))
	}
	for _, pair := range req.CompatiblePeriods {
		i, okI := b.periodIndex[pair.First]
		j, okJ := b.periodIndex[pair.Second]
		if okI && okJ {
			b.compatible[i][j] = true
			b.compatible[j][i] = true
		}
	}

	return b
}

// Build creates the decision variables, hard constraints and blocks, then
// lets every criterion add its soft penalties.
func (b *Builder) Build(criteria []Criterion) (*Model, error) {
	b.collectSlots()
	b.collectDemand()
	b.createDecisions()
	b.addAvailability()
	b.addPins()
	b.addSameDayExclusivity()
	b.addMandatoryCoverage()

	if err := b.buildBlocks(); err != nil {
		return nil, err
	}

	for _, criterion := range criteria {
		if err := criterion.Apply(b); err != nil {
			return nil, fmt.Errorf("failed to apply criterion %s: %w", criterion.Name(), err)
		}
	}

	return b.m, nil
}

// collectSlots builds the ordered slot set from declared slots, demand and pins
func (b *Builder) collectSlots() {
	req := b.m.Request
	seen := make(map[model.Slot]bool)
	var slots []model.Slot

	add := func(slot model.Slot) {
		if _, ok := b.periodIndex[slot.Period]; !ok {
			return
		}
		if !seen[slot] {
			seen[slot] = true
			slots = append(slots, slot)
		}
	}

	for _, slot := range req.Slots {
		add(slot)
	}
	for _, d := range req.Demands {
		add(d.Slot)
	}
	for _, pin := range req.Pins {
		add(pin.Slot)
	}

	// Order by horizon day, then by period
	sort.SliceStable(slots, func(i, j int) bool {
		di := model.DayIndex(req.WeekStart, slots[i].Day)
		dj := model.DayIndex(req.WeekStart, slots[j].Day)
		if di != dj {
			return di < dj
		}
		return b.periodIndex[slots[i].Period] < b.periodIndex[slots[j].Period]
	})

	b.m.Slots = slots
	b.m.SlotDay = make([]int, len(slots))
	for i, slot := range slots {
		b.slotIndex[slot] = i
		b.m.SlotDay[i] = model.DayIndex(req.WeekStart, slot.Day)
	}
}

// collectDemand resolves the effective headcount and role needs per slot.
// A later demand for the same slot replaces an earlier one.
func (b *Builder) collectDemand() {
	req := b.m.Request
	n := len(b.m.Slots)
	b.m.Headcount = make([]int, n)
	b.m.Mandatory = make([]bool, n)
	b.m.RoleNeeds = make([][]model.RoleMinimum, n)

	slotRoles := make([][]model.RoleMinimum, n)
	for _, d := range req.Demands {
		s, ok := b.slotIndex[d.Slot]
		if !ok {
			continue
		}
		b.m.Headcount[s] = d.Headcount
		b.m.Mandatory[s] = d.Mandatory
		slotRoles[s] = d.Roles
	}

	for s := range b.m.Slots {
		named := make(map[string]bool)
		var needs []model.RoleMinimum
		for _, rm := range slotRoles[s] {
			named[rm.Role] = true
			if rm.Count > 0 {
				needs = append(needs, rm)
			}
		}
		// Request-wide role rules only apply to demand-positive slots
		if b.m.Headcount[s] > 0 {
			for _, rm := range req.RoleRules {
				if named[rm.Role] || rm.Count <= 0 {
					continue
				}
				named[rm.Role] = true
				needs = append(needs, rm)
			}
		}
		b.m.RoleNeeds[s] = needs
	}
}

// createDecisions adds one boolean variable per (employee, slot) pair.
// They are created before any other variable so IsDecision can test IDs.
func (b *Builder) createDecisions() {
	b.m.Decisions = make([][]VarID, len(b.m.Employees))
	for e, emp := range b.m.Employees {
		b.m.Decisions[e] = make([]VarID, len(b.m.Slots))
		for s, slot := range b.m.Slots {
			b.m.Decisions[e][s] = b.NewBoolVar(fmt.Sprintf("works[%s,%s]", emp.ID, slot))
		}
	}
}

// addAvailability forces every excepted (employee, slot) decision to false
func (b *Builder) addAvailability() {
	for _, exc := range b.m.Request.Exceptions {
		e, okE := b.employeeIndex[exc.EmployeeID]
		s, okS := b.slotIndex[exc.Slot]
		if !okE || !okS || b.unavailable[[2]int{e, s}] {
			continue
		}
		b.unavailable[[2]int{e, s}] = true

		v := b.m.Decisions[e][s]
		b.m.Vars[v].Upper = 0
		b.AddConstraint(Constraint{
			Name:   fmt.Sprintf("unavailable[%s,%s]", exc.EmployeeID, exc.Slot),
			Family: FamilyAvailability,
			Expr:   LinearExpr{Terms: []Term{{Var: v, Coef: 1}}},
			Sense:  Equal,
			RHS:    0,
			Hard:   true,
		})
	}
}

// addPins forces every pinned (employee, slot) decision to true
func (b *Builder) addPins() {
	for _, pin := range b.m.Request.Pins {
		e, okE := b.employeeIndex[pin.EmployeeID]
		s, okS := b.slotIndex[pin.Slot]
		if !okE || !okS || b.pinned[[2]int{e, s}] {
			continue
		}
		b.pinned[[2]int{e, s}] = true

		v := b.m.Decisions[e][s]
		b.m.Vars[v].Lower = 1
		b.AddConstraint(Constraint{
			Name:   fmt.Sprintf("pinned[%s,%s]", pin.EmployeeID, pin.Slot),
			Family: FamilyPin,
			Expr:   LinearExpr{Terms: []Term{{Var: v, Coef: 1}}},
			Sense:  Equal,
			RHS:    1,
			Hard:   true,
		})
	}
}

// addSameDayExclusivity limits how many periods an employee works per day.
// Without compatible pairs a single row caps the day at one period;
// otherwise every exclusive pair gets its own row.
func (b *Builder) addSameDayExclusivity() {
	anyCompatible := len(b.m.Request.CompatiblePeriods) > 0

	for e, emp := range b.m.Employees {
		for day := range b.m.Days {
			daySlots := b.slotsOnDay(day)
			if len(daySlots) < 2 {
				continue
			}

			if !anyCompatible {
				expr := LinearExpr{}
				for _, s := range daySlots {
					expr.Terms = append(expr.Terms, Term{Var: b.m.Decisions[e][s], Coef: 1})
				}
				b.AddConstraint(Constraint{
					Name:   fmt.Sprintf("one_period_per_day[%s,%s]", emp.ID, b.m.Days[day]),
					Family: FamilySameDay,
					Expr:   expr,
					Sense:  LessEq,
					RHS:    1,
					Hard:   true,
				})
				continue
			}

			for i := 0; i < len(daySlots); i++ {
				for j := i + 1; j < len(daySlots); j++ {
					si, sj := daySlots[i], daySlots[j]
					if b.periodsCompatible(si, sj) {
						continue
					}
					b.AddConstraint(Constraint{
						Name:   fmt.Sprintf("exclusive_periods[%s,%s,%s]", emp.ID, b.m.Slots[si], b.m.Slots[sj].Period),
						Family: FamilySameDay,
						Expr: LinearExpr{Terms: []Term{
							{Var: b.m.Decisions[e][si], Coef: 1},
							{Var: b.m.Decisions[e][sj], Coef: 1},
						}},
						Sense: LessEq,
						RHS:   1,
						Hard:  true,
					})
				}
			}
		}
	}
}

// addMandatoryCoverage turns mandatory headcounts into hard rows
func (b *Builder) addMandatoryCoverage() {
	for s, slot := range b.m.Slots {
		if !b.m.Mandatory[s] || b.m.Headcount[s] <= 0 {
			continue
		}
		b.AddConstraint(Constraint{
			Name:   fmt.Sprintf("mandatory_headcount[%s]", slot),
			Family: FamilyCoverage,
			Expr:   b.SlotExpr(s, nil),
			Sense:  GreaterEq,
			RHS:    b.m.Headcount[s],
			Hard:   true,
		})
	}
}

// buildBlocks enumerates the feasible day patterns of every employee-day
func (b *Builder) buildBlocks() error {
	for day := range b.m.Days {
		daySlots := b.slotsOnDay(day)
		if len(daySlots) == 0 {
			continue
		}
		if len(daySlots) > 16 {
			return fmt.Errorf("day %s has %d periods, at most 16 are supported", b.m.Days[day], len(daySlots))
		}

		for e := range b.m.Employees {
			block := Block{
				Employee: e,
				Day:      day,
				Slots:    daySlots,
				Vars:     make([]VarID, len(daySlots)),
			}
			for i, s := range daySlots {
				block.Vars[i] = b.m.Decisions[e][s]
			}
			block.Patterns = b.enumeratePatterns(e, daySlots)
			b.m.Blocks = append(b.m.Blocks, block)
		}
	}
	return nil
}

// enumeratePatterns lists the allowed subsets of daySlots for employee e.
// Patterns are ordered by the number of periods worked, so the day off
// (when allowed) comes first.
func (b *Builder) enumeratePatterns(e int, daySlots []int) []uint32 {
	var required uint32
	for i, s := range daySlots {
		if b.pinned[[2]int{e, s}] {
			required |= 1 << i
		}
	}

	var patterns []uint32
	limit := uint32(1) << len(daySlots)
	for mask := uint32(0); mask < limit; mask++ {
		if mask&required != required {
			continue
		}
		if !b.patternAllowed(e, daySlots, mask) {
			continue
		}
		patterns = append(patterns, mask)
	}

	sort.SliceStable(patterns, func(i, j int) bool {
		pi, pj := patterns[i], patterns[j]
		ci, cj := bits.OnesCount32(pi), bits.OnesCount32(pj)
		if ci != cj {
			return ci < cj
		}
		return pi < pj
	})

	return patterns
}

func (b *Builder) patternAllowed(e int, daySlots []int, mask uint32) bool {
	for i, si := range daySlots {
		if mask&(1<<i) == 0 {
			continue
		}
		if b.unavailable[[2]int{e, si}] {
			return false
		}
		for j := i + 1; j < len(daySlots); j++ {
			if mask&(1<<j) != 0 && !b.periodsCompatible(si, daySlots[j]) {
				return false
			}
		}
	}
	return true
}

func (b *Builder) periodsCompatible(si, sj int) bool {
	pi := b.periodIndex[b.m.Slots[si].Period]
	pj := b.periodIndex[b.m.Slots[sj].Period]
	return b.compatible[pi][pj]
}

// slotsOnDay returns the slot indices of a horizon day in period order
func (b *Builder) slotsOnDay(day int) []int {
	var out []int
	for s, d := range b.m.SlotDay {
		if d == day {
			out = append(out, s)
		}
	}
	return out
}
