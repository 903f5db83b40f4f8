package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/jakechorley/shiftplanner/pkg/core/model"
	"github.com/jakechorley/shiftplanner/pkg/core/modelbuilder"
	"github.com/jakechorley/shiftplanner/pkg/core/scheduler"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBold   = "\033[1m"
)

// statusColor returns the colour a status is printed in
func statusColor(status string) string {
	switch status {
	case model.StatusOptimal.String():
		return colorGreen
	case model.StatusFeasibleSuboptimal.String():
		return colorYellow
	default:
		return colorRed
	}
}

// printResultSummary writes the status line and the penalty breakdown
func printResultSummary(w io.Writer, result *scheduler.Result) {
	status := result.Status.String()
	fmt.Fprintf(w, "Run ID:      %s\n", result.RunID)
	fmt.Fprintf(w, "Status:      %s%s%s\n", statusColor(status), status, colorReset)
	fmt.Fprintf(w, "Elapsed:     %s\n", result.Elapsed.Round(time.Millisecond))

	if !result.Status.HasSchedule() {
		fmt.Fprintf(w, "\nNo schedule satisfies the hard constraints (availability, pins, mandatory headcount).\n")
		return
	}

	fmt.Fprintf(w, "Penalty:     %d", result.Objective)
	if result.LowerBound < result.Objective {
		fmt.Fprintf(w, " (lower bound %d)", result.LowerBound)
	}
	fmt.Fprintln(w)

	breakdown := result.Breakdown()
	fmt.Fprintf(w, "\n%sPenalty breakdown%s\n", colorBold, colorReset)
	for _, cat := range modelbuilder.Categories() {
		fmt.Fprintf(w, "  %-16s %6d\n", cat, breakdown[cat])
	}

	card := result.Scorecard
	fmt.Fprintf(w, "\nShort heads: %d   Extra heads: %d   Clopens: %d   Hours std dev: %.2f\n",
		card.ShortHeads, card.OverstaffedShifts, card.Clopens, card.HoursStdDev)
}
