// Package solver searches a built model for a minimum-penalty assignment
// within a wall-clock limit and reports how good the answer is.
package solver

import (
	"errors"
	"fmt"
	"time"

	"github.com/jakechorley/shiftplanner/pkg/core/model"
	"github.com/jakechorley/shiftplanner/pkg/core/modelbuilder"
	"go.uber.org/zap"
)

// ErrNoSolution is returned when the time limit passes before any schedule
// satisfying the hard rules is found and infeasibility was not proven
var ErrNoSolution = errors.New("no feasible schedule found within the time limit")

// Options tunes a solve
type Options struct {
	// TimeLimit bounds the search; zero means no limit
	TimeLimit time.Duration

	// MaxRelaxationRows caps the size of the root LP (0 uses DefaultMaxRelaxationRows)
	MaxRelaxationRows int

	Logger *zap.Logger
}

// Solution is the outcome of a solve. Values is nil when Status is INFEASIBLE.
type Solution struct {
	Status     model.Status
	Objective  int
	Values     []int
	LowerBound int
	Nodes      int
	Elapsed    time.Duration
}

// Solve returns the best assignment of m found within the time limit.
//
// The search decides one employee-day block at a time in day order. A greedy
// dive and a local search produce an early incumbent; a depth-first branch
// and bound then either proves it optimal or improves it until time runs
// out. The root bound combines the LP relaxation with a per-day capacity
// bound on understaffing.
func Solve(m *modelbuilder.Model, opts Options) (*Solution, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	start := time.Now()
	deadline := start.Add(opts.TimeLimit)
	if opts.TimeLimit <= 0 {
		deadline = start.Add(100 * 365 * 24 * time.Hour)
	}

	infeasible := func(reason string) (*Solution, error) {
		logger.Debug("Model is infeasible", zap.String("reason", reason))
		return &Solution{Status: model.StatusInfeasible, Elapsed: time.Since(start)}, nil
	}

	for _, block := range m.Blocks {
		if len(block.Patterns) == 0 {
			return infeasible(fmt.Sprintf("%s has no valid shifts on %s",
				m.Employees[block.Employee].ID, m.Days[block.Day]))
		}
	}

	s, err := newSearch(m, deadline)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare search: %w", err)
	}
	if !s.hardFeasible() {
		return infeasible("hard coverage cannot be met by available employees")
	}

	s.rootBound = s.lowerBound()
	rel, err := relax(m, opts.MaxRelaxationRows)
	if err != nil {
		logger.Debug("LP relaxation failed", zap.Error(err))
	}
	switch {
	case rel.Infeasible && len(s.hardRows) > 0:
		return infeasible("LP relaxation is infeasible")
	case rel.Solved:
		s.rootBound = max(s.rootBound, rel.Bound)
	}
	logger.Debug("Root bound",
		zap.Int("bound", s.rootBound),
		zap.Bool("lpSolved", rel.Solved),
		zap.Int("blocks", len(m.Blocks)),
		zap.Int("penalties", len(m.Penalties)))

	if choice, obj, ok := s.dive(); ok {
		s.record(choice, obj)
		logger.Debug("Dive found incumbent", zap.Int("objective", obj))

		if !s.stop {
			choice, obj = s.improve(append([]int(nil), choice...), obj)
			s.record(choice, obj)
			logger.Debug("Local search finished", zap.Int("objective", s.bestObj))
		}
	}

	if !s.stop {
		choice := make([]int, len(m.Blocks))
		s.branch(0, choice)
	}

	sol := &Solution{
		LowerBound: s.rootBound,
		Nodes:      s.nodes,
		Elapsed:    time.Since(start),
	}

	if s.best == nil {
		if s.timedOut {
			return nil, ErrNoSolution
		}
		return infeasible("search exhausted without a schedule")
	}

	s.best, s.bestObj = s.trim(s.best, s.bestObj)
	sol.Objective = s.bestObj
	sol.Values = s.values(s.best)
	switch {
	case !s.timedOut, s.bestObj <= s.rootBound:
		sol.Status = model.StatusOptimal
		sol.LowerBound = s.bestObj
	default:
		sol.Status = model.StatusFeasibleSuboptimal
	}

	logger.Debug("Search finished",
		zap.String("status", sol.Status.String()),
		zap.Int("objective", sol.Objective),
		zap.Int("lowerBound", sol.LowerBound),
		zap.Int("nodes", sol.Nodes),
		zap.Duration("elapsed", sol.Elapsed))

	return sol, nil
}
