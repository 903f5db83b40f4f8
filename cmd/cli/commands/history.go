package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/shiftplanner/pkg/core/services"
)

// HistoryCmd creates the history command
func HistoryCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run_id]",
		Short: "List saved schedule runs, or show the assignments of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireDatabase(); err != nil {
				return err
			}

			if len(args) == 1 {
				return showRun(app, args[0])
			}

			limit, _ := cmd.Flags().GetInt("limit")
			app.Logger.Debug("history command", zap.Int("limit", limit))

			runs, err := services.ListSchedules(app.Ctx, app.Database, app.Logger, limit)
			if err != nil {
				return err
			}

			if len(runs) == 0 {
				fmt.Println("No schedule runs saved yet.")
				return nil
			}

			fmt.Printf("\n%-10s  %-10s  %-21s  %8s  %s\n", "RUN", "WEEK OF", "STATUS", "PENALTY", "CREATED")
			for _, r := range runs {
				fmt.Printf("%-10s  %-10s  %s%-21s%s  %8d  %s\n",
					shortID(r.ID), r.WeekOf,
					statusColor(r.Status), r.Status, colorReset,
					r.Objective, r.CreatedAt)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().Int("limit", 10, "Number of runs to list (0 for all)")

	return cmd
}

func showRun(app *AppContext, runID string) error {
	app.Logger.Debug("history command", zap.String("run_id", runID))

	detail, err := services.GetSchedule(app.Ctx, app.Database, app.Logger, runID, app.Cfg.PeriodNames())
	if err != nil {
		return err
	}

	r := detail.Run
	fmt.Printf("\nRun ID:      %s\n", r.ID)
	fmt.Printf("Week Of:     %s\n", r.WeekOf)
	fmt.Printf("Status:      %s%s%s\n", statusColor(r.Status), r.Status, colorReset)
	fmt.Printf("Penalty:     %d (understaffing %d, role %d, clopen %d, hours %d)\n\n",
		r.Objective, r.Understaffing, r.RoleShortfall, r.Clopen, r.HourImbalance)

	if len(detail.Assignments) == 0 {
		fmt.Println("No assignments.")
		return nil
	}

	lastDate := ""
	for _, a := range detail.Assignments {
		if a.ShiftDate != lastDate {
			fmt.Printf("%s\n", a.ShiftDate)
			lastDate = a.ShiftDate
		}
		role := ""
		if a.Role != "" {
			role = fmt.Sprintf(" (%s)", a.Role)
		}
		fmt.Printf("  %-10s %s%s\n", a.Period, a.EmployeeID, role)
	}
	fmt.Println()
	return nil
}

// shortID returns the first eight characters of a run id
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
