// Package scheduler is the entry point for producing a weekly schedule.
// It validates a request, builds the constraint model, runs the solver and
// turns the result into a schedule and a scorecard.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jakechorley/shiftplanner/pkg/core/assembler"
	"github.com/jakechorley/shiftplanner/pkg/core/model"
	"github.com/jakechorley/shiftplanner/pkg/core/modelbuilder"
	"github.com/jakechorley/shiftplanner/pkg/core/modelbuilder/criteria"
	"github.com/jakechorley/shiftplanner/pkg/core/scorecard"
	"github.com/jakechorley/shiftplanner/pkg/core/solver"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrInvariant is returned when the solver's answer breaks a hard
// constraint or its penalties do not add up. It always indicates a bug.
var ErrInvariant = errors.New("internal invariant violated")

// Recorder receives one event per finished solve
type Recorder interface {
	RecordSolve(status model.Status, objective int, elapsed time.Duration)
}

// Result is the outcome of one solve. Schedule and Scorecard are empty when
// Status is INFEASIBLE.
type Result struct {
	RunID     uuid.UUID
	Status    model.Status
	Schedule  assembler.Schedule
	Scorecard *scorecard.Scorecard
	Weights   model.Weights

	// Objective is the total weighted penalty; LowerBound is the best proven
	// bound on it (equal to Objective when Status is OPTIMAL)
	Objective  int
	LowerBound int

	Elapsed time.Duration
}

// Breakdown returns the per-category penalties (nil when infeasible)
func (r *Result) Breakdown() scorecard.Breakdown {
	if r.Scorecard == nil {
		return nil
	}
	return r.Scorecard.Breakdown
}

// Scheduler runs solves. It holds no per-solve state and is safe for
// concurrent use.
type Scheduler struct {
	logger   *zap.Logger
	recorder Recorder

	// MaxRelaxationRows is passed to the solver (0 uses its default)
	MaxRelaxationRows int
}

// New creates a Scheduler. A nil logger or recorder disables that output.
func New(logger *zap.Logger, recorder Recorder) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{logger: logger, recorder: recorder}
}

// Solve produces a schedule with a nil logger and no metrics
func Solve(req model.Request) (*Result, error) {
	return New(nil, nil).Solve(req)
}

// Solve validates req and returns the best schedule found within its time
// limit. Infeasible requests are not an error: they come back with
// StatusInfeasible and no schedule.
func (s *Scheduler) Solve(req model.Request) (*Result, error) {
	runID := uuid.New()
	logger := s.logger.With(zap.String("runID", runID.String()))

	req = req.WithDefaults()
	if err := model.Validate(req); err != nil {
		return nil, err
	}

	logger.Debug("Building model",
		zap.Int("employees", len(req.Employees)),
		zap.Int("demands", len(req.Demands)),
		zap.Int("exceptions", len(req.Exceptions)),
		zap.Int("pins", len(req.Pins)))

	m, err := modelbuilder.NewBuilder(req).Build(criteria.FromWeights(*req.Weights))
	if err != nil {
		return nil, fmt.Errorf("failed to build model: %w", err)
	}

	sol, err := solver.Solve(m, solver.Options{
		TimeLimit:         req.TimeLimit,
		MaxRelaxationRows: s.MaxRelaxationRows,
		Logger:            logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to solve: %w", err)
	}

	result := &Result{
		RunID:      runID,
		Status:     sol.Status,
		Weights:    *req.Weights,
		Objective:  sol.Objective,
		LowerBound: sol.LowerBound,
		Elapsed:    sol.Elapsed,
	}

	if sol.Status.HasSchedule() {
		if broken := m.HardViolations(sol.Values); len(broken) > 0 {
			return nil, fmt.Errorf("%w: hard constraints broken: %s", ErrInvariant, strings.Join(broken, ", "))
		}

		card, err := scorecard.Generate(m, sol.Values, sol.Objective)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvariant, err)
		}

		result.Scorecard = card
		result.Schedule = assembler.Assemble(m, sol.Values)
	}

	logger.Info("Solved schedule",
		zap.String("status", result.Status.String()),
		zap.Int("objective", result.Objective),
		zap.Int("lowerBound", result.LowerBound),
		zap.Int("nodes", sol.Nodes),
		zap.Duration("elapsed", result.Elapsed))

	if s.recorder != nil {
		s.recorder.RecordSolve(result.Status, result.Objective, result.Elapsed)
	}

	return result, nil
}

// SolveVariants solves req once per weight configuration, concurrently.
// Each variant builds its own model. Results keep the order of weights;
// the first error cancels variants that have not started yet.
func (s *Scheduler) SolveVariants(ctx context.Context, req model.Request, weights ...model.Weights) ([]*Result, error) {
	results := make([]*Result, len(weights))
	g, ctx := errgroup.WithContext(ctx)

	for i, w := range weights {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			variant := req
			variant.Weights = &w
			res, err := s.Solve(variant)
			if err != nil {
				return fmt.Errorf("variant %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
