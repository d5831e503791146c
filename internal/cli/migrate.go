package cli

import (
	"fmt"

	"ms-registration/internal/database/migrations"

	"github.com/spf13/cobra"
)

type migrationStatus struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

// NewMigrateCommand creates the migrate command group.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back PostgreSQL schema migrations",
	}

	run := func(action string, fn func(*migrations.Runner) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.loadConfig()
			runner := migrations.NewRunner(cfg.Database.DSN, commandLogger(rootOpts, cmd.ErrOrStderr()))
			defer runner.Close()
			if err := fn(runner); err != nil {
				return fmt.Errorf("migrate %s: %w", action, err)
			}
			version, dirty, err := runner.Version()
			if err != nil {
				return err
			}
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return out.Print(fmt.Sprintf("migrate %s: schema at version %d (dirty=%t)", action, version, dirty),
				migrationStatus{Version: version, Dirty: dirty})
		}
	}

	up := &cobra.Command{
		Use:          "up",
		Short:        "Apply all pending migrations",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         run("up", (*migrations.Runner).MigrateUp),
	}
	down := &cobra.Command{
		Use:          "down",
		Short:        "Roll back every migration",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         run("down", (*migrations.Runner).MigrateDown),
	}
	version := &cobra.Command{
		Use:          "version",
		Short:        "Print the current schema version",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         run("version", func(*migrations.Runner) error { return nil }),
	}

	cmd.AddCommand(up, down, version)
	return cmd
}
