package cli

import (
	"fmt"
	"time"

	"ms-registration/internal/database"

	"github.com/spf13/cobra"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "seed",
		Short:        "Insert sample events into an empty database",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.loadConfig()
			log := commandLogger(rootOpts, cmd.ErrOrStderr())
			db, err := database.Connect(cmd.Context(), cfg.Database, log)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := database.Seed(cmd.Context(), db, time.Now().UTC())
			if err != nil {
				return err
			}
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return out.Print(fmt.Sprintf("Seeded %d event(s).", n), map[string]int{"seeded": n})
		},
	}
}
