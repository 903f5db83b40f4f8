package commands

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/shiftplanner/internal/config"
	"github.com/jakechorley/shiftplanner/pkg/core/services"
	"github.com/jakechorley/shiftplanner/pkg/export"
)

// SolveCmd creates the solve command
func SolveCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Generate the schedule for a week",
		Long: `Build the week's demand from the configuration and team file, solve it and print the roster.
The run is saved to the database when one is configured, unless --dry-run is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireConfig(); err != nil {
				return err
			}

			weekFlag, _ := cmd.Flags().GetString("week")
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			format, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")
			timeLimit, _ := cmd.Flags().GetDuration("time-limit")

			if err := validateSolveFlags(format, output, timeLimit); err != nil {
				return err
			}

			weekOf, err := parseWeek(weekFlag, app.Cfg)
			if err != nil {
				return err
			}

			app.Logger.Debug("solve command",
				zap.String("week", weekOf.Format("2006-01-02")),
				zap.Bool("dry_run", dryRun),
				zap.String("format", format))

			team, err := config.LoadTeam(app.Cfg.TeamFile)
			if err != nil {
				return err
			}

			cfg := *app.Cfg
			if timeLimit > 0 {
				cfg.TimeLimit = timeLimit
			}

			var store services.GenerateScheduleStore
			if app.Database != nil {
				store = app.Database
			}

			result, err := services.GenerateSchedule(app.Ctx, store, app.Scheduler, &cfg, team, app.Logger, weekOf, dryRun)
			if err != nil {
				return fmt.Errorf("schedule generation failed: %w", err)
			}

			out := os.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				out = f
			}

			switch format {
			case "csv":
				return export.WriteCSV(out, result.Result.Schedule)
			case "markdown":
				_, err := fmt.Fprint(out, export.Markdown(result.Result.Schedule, "Weekly Roster"))
				return err
			case "html":
				_, err := out.Write(export.HTML(result.Result.Schedule, "Weekly Roster"))
				return err
			case "xlsx":
				return export.WriteXLSX(out, result.Result.Schedule, result.Result.Scorecard)
			}

			fmt.Printf("\n%sSchedule for week of %s%s\n\n", colorBold, weekOf.Format("Mon 2 Jan 2006"), colorReset)
			printResultSummary(os.Stdout, result.Result)
			switch {
			case dryRun || app.Database == nil:
				fmt.Printf("Saved:       no (dry run)\n\n")
			case result.Saved:
				fmt.Printf("Saved:       yes\n\n")
			}

			if result.Result.Status.HasSchedule() {
				fmt.Fprint(out, export.Text(result.Result.Schedule, "Weekly Roster"))
			}
			return nil
		},
	}

	cmd.Flags().String("week", "", "First date of the week to plan (YYYY-MM-DD, default next week)")
	cmd.Flags().Bool("dry-run", false, "Solve without saving to database")
	cmd.Flags().String("format", "text", "Roster format: text, markdown, html, csv or xlsx")
	cmd.Flags().StringP("output", "o", "", "Write the roster to a file instead of stdout")
	cmd.Flags().Duration("time-limit", 0, "Override the configured solver time limit")

	return cmd
}

// solveFormats are the values accepted by --format
var solveFormats = []string{"text", "markdown", "html", "csv", "xlsx"}

// validateSolveFlags rejects flag combinations before any solving starts
func validateSolveFlags(format, output string, timeLimit time.Duration) error {
	if !slices.Contains(solveFormats, format) {
		return fmt.Errorf("unknown format %q: must be one of %s", format, strings.Join(solveFormats, ", "))
	}
	if format == "xlsx" && output == "" {
		return fmt.Errorf("xlsx output needs --output")
	}
	if timeLimit < 0 {
		return fmt.Errorf("time limit must not be negative, got %s", timeLimit)
	}
	return nil
}

// parseWeek parses a YYYY-MM-DD week flag, defaulting to the next week start
func parseWeek(value string, cfg *config.Config) (time.Time, error) {
	if value == "" {
		return services.NextWeekStart(time.Now(), cfg.StartDay()), nil
	}
	weekOf, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("week must be a date in YYYY-MM-DD form: %w", err)
	}
	return weekOf, nil
}
