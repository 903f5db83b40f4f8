package solver

import (
	"fmt"
	"math"
	"math/bits"
	"sort"
	"time"

	"github.com/jakechorley/shiftplanner/pkg/core/modelbuilder"
)

// deadlineCheckInterval is how many evaluations pass between clock reads
const deadlineCheckInterval = 256

// tracker follows one linear expression over decision variables while
// blocks are decided. Undecided variables that can still be 1 contribute
// their coefficient to posRem (positive) or negRem (negative), which gives
// the range [min, max] the expression can still reach.
type tracker struct {
	cur    int
	posRem int
	negRem int
}

func (t *tracker) min() int { return t.cur + t.negRem }
func (t *tracker) max() int { return t.cur + t.posRem }

type ref struct {
	tracker int
	coef    int
}

// hardRow is a hard constraint that block patterns do not already encode
type hardRow struct {
	sense modelbuilder.Sense
	rhs   int
}

// search holds the state of one solve. It is never shared between solves.
type search struct {
	m *modelbuilder.Model

	// trackers[0:len(penalties)] follow penalty expressions, the rest follow hardRows
	trackers []tracker
	hardRows []hardRow
	refs     [][]ref // per decision variable
	canBeOne []bool  // per decision variable

	// cover group bookkeeping
	inGroup      []bool // per penalty
	groupOfDay   []int  // horizon day -> cover group index, or -1
	groupMaxOnes []int  // per block: max assignments a block can add to its day's group
	groupRemCap  []int  // per group: capacity of undecided blocks
	groupTarget  []int  // per group: Σ targets

	// level group bookkeeping: member trackers follow the measure only
	inLevel  []bool // per penalty
	levelBuf []int

	// patternIndex[b] maps a pattern mask to its index in Blocks[b].Patterns
	patternIndex []map[uint32]int

	deadline time.Time
	evals    int
	timedOut bool
	stop     bool
	nodes    int

	rootBound int
	best      []int // pattern index per block
	bestObj   int
}

func newSearch(m *modelbuilder.Model, deadline time.Time) (*search, error) {
	s := &search{
		m:        m,
		deadline: deadline,
		bestObj:  math.MaxInt,
	}

	numDecisions := m.NumDecisions()
	s.refs = make([][]ref, numDecisions)
	s.canBeOne = make([]bool, numDecisions)

	for _, block := range m.Blocks {
		var union uint32
		for _, p := range block.Patterns {
			union |= p
		}
		for i, v := range block.Vars {
			s.canBeOne[v] = union&(1<<i) != 0
		}
	}

	s.inLevel = make([]bool, len(m.Penalties))
	levelOf := make([]modelbuilder.VarID, len(m.Penalties))
	for _, g := range m.LevelGroups {
		for _, pi := range g.Penalties {
			s.inLevel[pi] = true
			levelOf[pi] = g.Level
		}
	}

	// One tracker per penalty
	for pi, p := range m.Penalties {
		expr := p.Expr
		if s.inLevel[pi] {
			expr = withoutVar(expr, levelOf[pi])
		}
		if err := s.addTracker(pi, expr); err != nil {
			return nil, fmt.Errorf("penalty %s: %w", p.Name, err)
		}
	}

	// Hard rows that patterns do not encode (mandatory coverage)
	for _, c := range m.Constraints {
		if !c.Hard || encodedInBlocks(c.Family) {
			continue
		}
		idx := len(m.Penalties) + len(s.hardRows)
		s.hardRows = append(s.hardRows, hardRow{sense: c.Sense, rhs: c.RHS})
		if err := s.addTracker(idx, c.Expr); err != nil {
			return nil, fmt.Errorf("constraint %s: %w", c.Name, err)
		}
	}

	s.patternIndex = make([]map[uint32]int, len(m.Blocks))
	for b, block := range m.Blocks {
		s.patternIndex[b] = make(map[uint32]int, len(block.Patterns))
		for i, p := range block.Patterns {
			s.patternIndex[b][p] = i
		}
	}

	s.initCoverGroups()

	return s, nil
}

// encodedInBlocks returns true for hard families the block patterns enforce
func encodedInBlocks(f modelbuilder.Family) bool {
	return f == modelbuilder.FamilyAvailability || f == modelbuilder.FamilySameDay || f == modelbuilder.FamilyPin
}

// withoutVar drops the terms of v from expr
func withoutVar(expr modelbuilder.LinearExpr, v modelbuilder.VarID) modelbuilder.LinearExpr {
	out := modelbuilder.LinearExpr{Constant: expr.Constant}
	for _, t := range expr.Terms {
		if t.Var != v {
			out.Terms = append(out.Terms, t)
		}
	}
	return out
}

func (s *search) addTracker(idx int, expr modelbuilder.LinearExpr) error {
	for len(s.trackers) <= idx {
		s.trackers = append(s.trackers, tracker{})
	}
	t := &s.trackers[idx]
	t.cur = expr.Constant

	for _, term := range expr.Terms {
		if !s.m.IsDecision(term.Var) {
			return fmt.Errorf("term references non-decision variable %s", s.m.Vars[term.Var].Name)
		}
		s.refs[term.Var] = append(s.refs[term.Var], ref{tracker: idx, coef: term.Coef})
		if !s.canBeOne[term.Var] {
			continue
		}
		if term.Coef > 0 {
			t.posRem += term.Coef
		} else {
			t.negRem += term.Coef
		}
	}
	return nil
}

func (s *search) initCoverGroups() {
	m := s.m
	s.inGroup = make([]bool, len(m.Penalties))
	s.groupOfDay = make([]int, len(m.Days))
	for d := range s.groupOfDay {
		s.groupOfDay[d] = -1
	}
	s.groupRemCap = make([]int, len(m.CoverGroups))
	s.groupTarget = make([]int, len(m.CoverGroups))
	s.groupMaxOnes = make([]int, len(m.Blocks))

	groupSlots := make([]map[int]bool, len(m.CoverGroups))
	for g, group := range m.CoverGroups {
		s.groupOfDay[group.Day] = g
		groupSlots[g] = make(map[int]bool)
		for _, pi := range group.Penalties {
			s.inGroup[pi] = true
			s.groupTarget[g] += m.Penalties[pi].Target
			groupSlots[g][m.Penalties[pi].Slot] = true
		}
	}

	for b, block := range m.Blocks {
		g := s.groupOfDay[block.Day]
		if g < 0 {
			continue
		}
		var mask uint32
		for i, slot := range block.Slots {
			if groupSlots[g][slot] {
				mask |= 1 << i
			}
		}
		best := 0
		for _, p := range block.Patterns {
			best = max(best, bits.OnesCount32(p&mask))
		}
		s.groupMaxOnes[b] = best
		s.groupRemCap[g] += best
	}
}

// apply records that block b works the given pattern
func (s *search) apply(b int, pattern uint32) {
	block := &s.m.Blocks[b]
	for i, v := range block.Vars {
		if !s.canBeOne[v] {
			continue
		}
		on := pattern&(1<<i) != 0
		for _, r := range s.refs[v] {
			t := &s.trackers[r.tracker]
			if r.coef > 0 {
				t.posRem -= r.coef
			} else {
				t.negRem -= r.coef
			}
			if on {
				t.cur += r.coef
			}
		}
	}
	if g := s.groupOfDay[block.Day]; g >= 0 {
		s.groupRemCap[g] -= s.groupMaxOnes[b]
	}
}

// undo reverses apply for the same block and pattern
func (s *search) undo(b int, pattern uint32) {
	block := &s.m.Blocks[b]
	for i, v := range block.Vars {
		if !s.canBeOne[v] {
			continue
		}
		on := pattern&(1<<i) != 0
		for _, r := range s.refs[v] {
			t := &s.trackers[r.tracker]
			if r.coef > 0 {
				t.posRem += r.coef
			} else {
				t.negRem += r.coef
			}
			if on {
				t.cur -= r.coef
			}
		}
	}
	if g := s.groupOfDay[block.Day]; g >= 0 {
		s.groupRemCap[g] += s.groupMaxOnes[b]
	}
}

// hardFeasible returns false if a tracked hard row can no longer be met
func (s *search) hardFeasible() bool {
	offset := len(s.m.Penalties)
	for i, row := range s.hardRows {
		t := &s.trackers[offset+i]
		switch row.sense {
		case modelbuilder.GreaterEq:
			if t.max() < row.rhs {
				return false
			}
		case modelbuilder.LessEq:
			if t.min() > row.rhs {
				return false
			}
		default:
			if t.max() < row.rhs || t.min() > row.rhs {
				return false
			}
		}
	}
	return true
}

// penaltyBound returns the smallest violation penalty p can still reach
func (s *search) penaltyBound(pi int) int {
	p := &s.m.Penalties[pi]
	t := &s.trackers[pi]
	switch p.Shape {
	case modelbuilder.ShapeShortfall:
		return max(0, p.Target-t.max())
	case modelbuilder.ShapeExcess:
		return max(0, t.min()-p.Target)
	default:
		return max(0, t.min()-p.Target, p.Target-t.max())
	}
}

// lowerBound returns a bound on the objective of every completion of the
// current partial assignment. On a complete assignment it is the objective.
func (s *search) lowerBound() int {
	total := 0
	for pi := range s.m.Penalties {
		if s.inGroup[pi] || s.inLevel[pi] {
			continue
		}
		total += s.m.Penalties[pi].Weight * s.penaltyBound(pi)
	}

	for g, group := range s.m.CoverGroups {
		sumBound := 0
		assigned := 0
		for _, pi := range group.Penalties {
			sumBound += s.penaltyBound(pi)
			assigned += s.trackers[pi].cur
		}
		// Every missing head below the day's total demand is a shortfall
		// somewhere that day, whichever slot it lands in
		capacityBound := s.groupTarget[g] - assigned - s.groupRemCap[g]
		weight := s.m.Penalties[group.Penalties[0]].Weight
		total += weight * max(sumBound, capacityBound)
	}

	for _, group := range s.m.LevelGroups {
		n := len(group.Penalties)
		if n == 0 {
			continue
		}
		if cap(s.levelBuf) < 4*n {
			s.levelBuf = make([]int, 4*n)
		}
		lo, hi := s.levelBuf[:n], s.levelBuf[n:2*n]
		for i, pi := range group.Penalties {
			lo[i] = s.trackers[pi].min()
			hi[i] = s.trackers[pi].max()
		}
		cost, _ := modelbuilder.BestLevel(lo, hi, s.levelBuf[2*n:2*n])
		total += s.m.Penalties[group.Penalties[0]].Weight * cost
	}

	return total
}

// tick counts an evaluation and reads the clock periodically
func (s *search) tick() bool {
	s.evals++
	if s.evals%deadlineCheckInterval == 0 && time.Now().After(s.deadline) {
		s.timedOut = true
		s.stop = true
	}
	return s.stop
}

type child struct {
	pattern int
	bound   int
}

// children evaluates every pattern of block b and returns the hard-feasible
// ones whose bound beats the incumbent, best bound first
func (s *search) children(b int) []child {
	block := &s.m.Blocks[b]
	out := make([]child, 0, len(block.Patterns))
	for pi, pat := range block.Patterns {
		s.apply(b, pat)
		if s.hardFeasible() {
			if lb := s.lowerBound(); lb < s.bestObj {
				out = append(out, child{pattern: pi, bound: lb})
			}
		}
		s.undo(b, pat)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].bound < out[j].bound
	})
	return out
}

// branch is a depth-first branch and bound over blocks in model order
func (s *search) branch(depth int, choice []int) {
	if s.tick() {
		return
	}
	s.nodes++

	if depth == len(s.m.Blocks) {
		s.record(choice, s.lowerBound())
		return
	}

	block := &s.m.Blocks[depth]
	for _, c := range s.children(depth) {
		if c.bound >= s.bestObj {
			break
		}
		pat := block.Patterns[c.pattern]
		s.apply(depth, pat)
		choice[depth] = c.pattern
		s.branch(depth+1, choice)
		s.undo(depth, pat)
		if s.stop {
			return
		}
	}
	choice[depth] = -1
}

// dive follows the best-bound child at every level without backtracking.
// It leaves the trackers at the root state and returns false if it ran
// into a dead end.
func (s *search) dive() ([]int, int, bool) {
	choice := make([]int, len(s.m.Blocks))
	applied := 0
	defer func() {
		for b := applied - 1; b >= 0; b-- {
			s.undo(b, s.m.Blocks[b].Patterns[choice[b]])
		}
	}()

	for b := range s.m.Blocks {
		s.tick()
		kids := s.children(b)
		if len(kids) == 0 {
			return nil, 0, false
		}
		choice[b] = kids[0].pattern
		s.apply(b, s.m.Blocks[b].Patterns[choice[b]])
		applied++
	}
	return choice, s.lowerBound(), true
}

// record keeps a complete assignment if it beats the incumbent and stops
// the search once the incumbent meets the root bound
func (s *search) record(choice []int, objective int) {
	if objective >= s.bestObj {
		return
	}
	s.bestObj = objective
	s.best = append(s.best[:0], choice...)
	if s.bestObj <= s.rootBound {
		s.stop = true
	}
}

// values expands a pattern choice into a full variable vector, setting every
// slack to the value that makes its linearisation rows tight
func (s *search) values(choice []int) []int {
	vals := make([]int, len(s.m.Vars))
	for b, block := range s.m.Blocks {
		pat := block.Patterns[choice[b]]
		for i, v := range block.Vars {
			if pat&(1<<i) != 0 {
				vals[v] = 1
			}
		}
	}
	s.m.SettleLevels(vals)
	for _, p := range s.m.Penalties {
		aux := p.AuxValues(p.Expr.Eval(vals))
		for i, v := range p.Aux {
			vals[v] = aux[i]
		}
	}
	return vals
}
