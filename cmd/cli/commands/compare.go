package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/shiftplanner/internal/config"
	"github.com/jakechorley/shiftplanner/pkg/core/model"
	"github.com/jakechorley/shiftplanner/pkg/core/modelbuilder"
	"github.com/jakechorley/shiftplanner/pkg/core/services"
)

// CompareCmd creates the compare command
func CompareCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Solve a week with several weight configurations side by side",
		Long: `Solve the same week once per weight variant and print the penalties of each.
Variants are given as name=understaffing,role,clopen,fairness. Without --variant the
configured weights are compared with a rest-first and an even-hours variant. Nothing is saved.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireConfig(); err != nil {
				return err
			}

			weekFlag, _ := cmd.Flags().GetString("week")
			variantFlags, _ := cmd.Flags().GetStringArray("variant")

			weekOf, err := parseWeek(weekFlag, app.Cfg)
			if err != nil {
				return err
			}

			var variants []services.WeightVariant
			for _, v := range variantFlags {
				variant, err := services.ParseWeightVariant(v)
				if err != nil {
					return err
				}
				variants = append(variants, variant)
			}
			if len(variants) == 0 {
				base := model.DefaultWeights()
				if app.Cfg.Weights != nil {
					base = *app.Cfg.Weights
				}
				variants = services.DefaultVariants(base)
			}

			app.Logger.Debug("compare command",
				zap.String("week", weekOf.Format("2006-01-02")),
				zap.Int("variants", len(variants)))

			team, err := config.LoadTeam(app.Cfg.TeamFile)
			if err != nil {
				return err
			}

			comparisons, err := services.CompareWeights(app.Ctx, app.Scheduler, app.Cfg, team, app.Logger, weekOf, variants)
			if err != nil {
				return err
			}

			fmt.Printf("\n%sWeight comparison for week of %s%s\n\n", colorBold, weekOf.Format("Mon 2 Jan 2006"), colorReset)

			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprint(tw, "VARIANT\tWEIGHTS\tSTATUS\tTOTAL")
			for _, cat := range modelbuilder.Categories() {
				fmt.Fprintf(tw, "\t%s", cat)
			}
			fmt.Fprint(tw, "\tSHORT\tCLOPENS\tSTDDEV\n")

			for _, c := range comparisons {
				w := c.Variant.Weights
				res := c.Result
				fmt.Fprintf(tw, "%s\t%d,%d,%d,%d\t%s\t%d",
					c.Variant.Name, w.Understaffing, w.Role, w.Clopen, w.Fairness,
					res.Status, res.Objective)

				if !res.Status.HasSchedule() {
					fmt.Fprint(tw, "\t-\t-\t-\t-\t-\t-\t-\n")
					continue
				}
				breakdown := res.Breakdown()
				for _, cat := range modelbuilder.Categories() {
					fmt.Fprintf(tw, "\t%d", breakdown[cat])
				}
				fmt.Fprintf(tw, "\t%d\t%d\t%.2f\n",
					res.Scorecard.ShortHeads, res.Scorecard.Clopens, res.Scorecard.HoursStdDev)
			}

			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().String("week", "", "First date of the week to plan (YYYY-MM-DD, default next week)")
	cmd.Flags().StringArray("variant", nil, "Weight variant as name=understaffing,role,clopen,fairness (repeatable)")

	return cmd
}
