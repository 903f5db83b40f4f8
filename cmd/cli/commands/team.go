package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/shiftplanner/internal/config"
)

// TeamCmd creates the team command group
func TeamCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "team",
		Short: "Manage the team file",
	}

	cmd.AddCommand(teamInitCmd(app))
	cmd.AddCommand(teamCheckCmd(app))
	cmd.AddCommand(teamImportCmd(app))

	return cmd
}

func teamInitCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter team file",
		Args:  cobra.MaximumNArgs(1),
		Annotations: map[string]string{
			annotationConfig: configOptional,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")

			path := teamPath(app, args)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			app.Logger.Debug("team init command", zap.String("path", path))

			if err := config.SaveTeam(path, config.ExampleTeam()); err != nil {
				return err
			}

			fmt.Printf("\nTeam file written to %s\n\n", path)
			return nil
		},
	}

	cmd.Flags().Bool("force", false, "Overwrite an existing file")

	return cmd
}

func teamCheckCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check [path]",
		Short: "Validate a team file and summarise it",
		Args:  cobra.MaximumNArgs(1),
		Annotations: map[string]string{
			annotationConfig: configOptional,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := teamPath(app, args)
			team, err := config.LoadTeam(path)
			if err != nil {
				return err
			}

			fmt.Printf("\n%s is valid\n\n", path)
			fmt.Printf("Members:        %d\n", len(team.Members))
			fmt.Printf("Unavailable:    %d blocks\n", len(team.Exceptions()))
			fmt.Printf("Pinned shifts:  %d\n", len(team.Pins()))
			fmt.Printf("Demand entries: %d\n\n", len(team.Demands()))
			return nil
		},
	}
}

func teamImportCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <csv> [path]",
		Short: "Add staff from a \"Name, Role, MaxHours\" CSV to the team file",
		Long: `Read staff rows from a CSV file and merge them into the team file.
Members are matched by an id derived from their name; existing members keep
their availability and pins. The team file is created if it does not exist.`,
		Args: cobra.RangeArgs(1, 2),
		Annotations: map[string]string{
			annotationConfig: configOptional,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := teamPath(app, args[1:])
			app.Logger.Debug("team import command",
				zap.String("csv", args[0]),
				zap.String("path", path))

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open staff csv: %w", err)
			}
			defer f.Close()

			members, err := config.ParseStaffCSV(f)
			if err != nil {
				return err
			}

			team := &config.Team{}
			if _, err := os.Stat(path); err == nil {
				if team, err = config.LoadTeam(path); err != nil {
					return err
				}
			}

			added, updated := team.MergeMembers(members)
			if err := config.SaveTeam(path, team); err != nil {
				return err
			}

			fmt.Printf("\nImported %d staff into %s (%d added, %d updated)\n\n", len(members), path, added, updated)
			return nil
		},
	}
}

// teamPath picks the path argument, then the configured team file
func teamPath(app *AppContext, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	if app.Cfg != nil && app.Cfg.TeamFile != "" {
		return app.Cfg.TeamFile
	}
	return "team.yaml"
}

// Commands annotated with configOptional run without a config file
const (
	annotationConfig = "config"
	configOptional   = "optional"
)

// ConfigOptional returns true if cmd can run without a loaded config
func ConfigOptional(cmd *cobra.Command) bool {
	return cmd.Annotations[annotationConfig] == configOptional
}
