package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/shiftplanner/internal/config"
	"github.com/jakechorley/shiftplanner/pkg/core/model"
	"github.com/jakechorley/shiftplanner/pkg/core/scheduler"
)

// WeightVariant is a named weight configuration to compare
type WeightVariant struct {
	Name    string
	Weights model.Weights
}

// WeightComparison is the outcome of solving the week with one variant
type WeightComparison struct {
	Variant WeightVariant
	Result  *scheduler.Result
}

// DefaultVariants returns the configured weights plus variants that favour
// rest between shifts and even hours
func DefaultVariants(base model.Weights) []WeightVariant {
	restful := base
	restful.Clopen = base.Clopen * 5
	even := base
	even.Fairness = base.Fairness * 10

	return []WeightVariant{
		{Name: "configured", Weights: base},
		{Name: "restful", Weights: restful},
		{Name: "even-hours", Weights: even},
	}
}

// ParseWeightVariant parses "name=understaffing,role,clopen,fairness"
func ParseWeightVariant(value string) (WeightVariant, error) {
	name, rest, ok := strings.Cut(value, "=")
	if !ok || strings.TrimSpace(name) == "" {
		return WeightVariant{}, fmt.Errorf("variant %q must be in name=u,r,c,f form", value)
	}

	parts := strings.Split(rest, ",")
	if len(parts) != 4 {
		return WeightVariant{}, fmt.Errorf("variant %q needs four weights, got %d", name, len(parts))
	}

	nums := make([]int, 4)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return WeightVariant{}, fmt.Errorf("variant %q: weight %d is not a number: %w", name, i+1, err)
		}
		nums[i] = n
	}

	return WeightVariant{
		Name: strings.TrimSpace(name),
		Weights: model.Weights{
			Understaffing: nums[0],
			Role:          nums[1],
			Clopen:        nums[2],
			Fairness:      nums[3],
		},
	}, nil
}

// CompareWeights solves the same week once per variant, concurrently, and
// returns the results in variant order. Nothing is saved.
func CompareWeights(
	ctx context.Context,
	solver ScheduleSolver,
	cfg *config.Config,
	team *config.Team,
	logger *zap.Logger,
	weekOf time.Time,
	variants []WeightVariant,
) ([]WeightComparison, error) {
	if len(variants) == 0 {
		return nil, fmt.Errorf("no weight variants to compare")
	}

	req, err := BuildRequest(cfg, team, weekOf, logger)
	if err != nil {
		return nil, err
	}

	weights := make([]model.Weights, len(variants))
	for i, v := range variants {
		weights[i] = v.Weights
	}

	logger.Info("Comparing weight variants", zap.Int("variants", len(variants)))

	results, err := solver.SolveVariants(ctx, req, weights...)
	if err != nil {
		return nil, fmt.Errorf("failed to compare weights: %w", err)
	}

	comparisons := make([]WeightComparison, len(variants))
	for i, v := range variants {
		comparisons[i] = WeightComparison{Variant: v, Result: results[i]}
		logger.Debug("Variant solved",
			zap.String("name", v.Name),
			zap.String("status", results[i].Status.String()),
			zap.Int("objective", results[i].Objective))
	}

	return comparisons, nil
}
