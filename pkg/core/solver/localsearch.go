package solver

import "math/bits"

// improve runs first-improvement local search from a complete choice. It
// tries every alternative pattern for each block, then swaps the day
// patterns of two employees, and repeats until no move helps or time runs
// out. Trackers are back at the root state when it returns.
func (s *search) improve(choice []int, objective int) ([]int, int) {
	for b := range s.m.Blocks {
		s.apply(b, s.m.Blocks[b].Patterns[choice[b]])
	}
	defer func() {
		for b := range s.m.Blocks {
			s.undo(b, s.m.Blocks[b].Patterns[choice[b]])
		}
	}()

	improved := true
	for improved && !s.stop {
		improved = false

		for b := range s.m.Blocks {
			if s.stop {
				break
			}
			if obj, ok := s.tryReassign(b, choice, objective); ok {
				objective = obj
				improved = true
			}
		}

		for b1 := range s.m.Blocks {
			for b2 := b1 + 1; b2 < len(s.m.Blocks) && !s.stop; b2++ {
				if s.m.Blocks[b1].Day != s.m.Blocks[b2].Day {
					break
				}
				if obj, ok := s.trySwap(b1, b2, choice, objective); ok {
					objective = obj
					improved = true
				}
			}
		}
	}

	return choice, objective
}

// tryReassign moves block b to the first pattern that lowers the objective
func (s *search) tryReassign(b int, choice []int, objective int) (int, bool) {
	block := &s.m.Blocks[b]
	current := choice[b]
	for pi, pat := range block.Patterns {
		if pi == current || s.tick() {
			continue
		}
		s.undo(b, block.Patterns[current])
		s.apply(b, pat)
		if s.hardFeasible() {
			if obj := s.lowerBound(); obj < objective {
				choice[b] = pi
				return obj, true
			}
		}
		s.undo(b, pat)
		s.apply(b, block.Patterns[current])
	}
	return objective, false
}

// trySwap exchanges the day patterns of two blocks on the same day when
// both employees are allowed to work each other's pattern
func (s *search) trySwap(b1, b2 int, choice []int, objective int) (int, bool) {
	p1 := s.m.Blocks[b1].Patterns[choice[b1]]
	p2 := s.m.Blocks[b2].Patterns[choice[b2]]
	if p1 == p2 || s.tick() {
		return objective, false
	}
	i1, ok1 := s.patternIndex[b1][p2]
	i2, ok2 := s.patternIndex[b2][p1]
	if !ok1 || !ok2 {
		return objective, false
	}

	s.undo(b1, p1)
	s.undo(b2, p2)
	s.apply(b1, p2)
	s.apply(b2, p1)
	if s.hardFeasible() {
		if obj := s.lowerBound(); obj < objective {
			choice[b1] = i1
			choice[b2] = i2
			return obj, true
		}
	}
	s.undo(b1, p2)
	s.undo(b2, p1)
	s.apply(b1, p1)
	s.apply(b2, p2)
	return objective, false
}

// trim drops shifts whose removal does not raise the objective, so among
// schedules with equal penalty the one with fewer shifts wins
func (s *search) trim(choice []int, objective int) ([]int, int) {
	for b := range s.m.Blocks {
		s.apply(b, s.m.Blocks[b].Patterns[choice[b]])
	}
	defer func() {
		for b := range s.m.Blocks {
			s.undo(b, s.m.Blocks[b].Patterns[choice[b]])
		}
	}()

	for b := range s.m.Blocks {
		block := &s.m.Blocks[b]
		for pi, pat := range block.Patterns {
			cur := block.Patterns[choice[b]]
			if pat&^cur != 0 || bits.OnesCount32(pat) >= bits.OnesCount32(cur) {
				continue
			}
			s.undo(b, cur)
			s.apply(b, pat)
			if s.hardFeasible() {
				if obj := s.lowerBound(); obj <= objective {
					choice[b] = pi
					objective = obj
					continue
				}
			}
			s.undo(b, pat)
			s.apply(b, cur)
		}
	}

	return choice, objective
}
