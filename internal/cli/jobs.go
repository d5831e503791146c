package cli

import (
	"context"
	"fmt"

	"ms-registration/internal/cache"
	"ms-registration/internal/config"
	"ms-registration/internal/database"
	eventdb "ms-registration/internal/events/db"
	"ms-registration/internal/jobs"
	"ms-registration/internal/logger"
	"ms-registration/internal/notify"

	"github.com/spf13/cobra"
)

// NewJobsCommand runs the scheduled jobs once, for cron or manual use.
func NewJobsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Run a scheduled job once",
	}

	cmd.AddCommand(&cobra.Command{
		Use:          "mark-completed",
		Short:        "Mark past published events as completed",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cmd.Context(), rootOpts, cmd, func(r *jobs.Runner) error {
				n, err := r.MarkCompleted(cmd.Context())
				if err != nil {
					return err
				}
				out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
				return out.Print(fmt.Sprintf("Marked %d event(s) as completed.", n), map[string]int64{"completed": n})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:          "send-reminders",
		Short:        "Remind confirmed registrants of events starting in about a day",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cmd.Context(), rootOpts, cmd, func(r *jobs.Runner) error {
				report, err := r.SendReminders(cmd.Context())
				if err != nil {
					return err
				}
				out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
				return out.Print(fmt.Sprintf("Sent %d reminder(s) for %d event(s).", report.Sent, report.Events), report)
			})
		},
	})
	return cmd
}

func withRunner(ctx context.Context, rootOpts *RootOptions, cmd *cobra.Command, fn func(*jobs.Runner) error) error {
	cfg := rootOpts.loadConfig()
	log := commandLogger(rootOpts, cmd.ErrOrStderr())

	db, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer db.Close()

	publisher, closePublisher := notify.NewPublisher(ctx, cfg.Kafka, log)
	defer closePublisher()
	dispatcher := notify.NewDispatcher(publisher, cfg.Kafka.Topics, cfg.Notify.PublishTimeout, log)
	// Drain queued notifications before the process exits.
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Notify.PublishTimeout)
		defer cancel()
		_ = dispatcher.Close(drainCtx)
	}()

	runner := jobs.NewRunner(eventdb.New(db), dispatcher, reminderGuard(ctx, cfg, log), cfg.Jobs, log)
	return fn(runner)
}

// reminderGuard returns nil when Redis is disabled or unreachable.
func reminderGuard(ctx context.Context, cfg *config.Config, log *logger.Logger) jobs.ReminderGuard {
	if !cfg.Redis.Enabled {
		return nil
	}
	client, err := cache.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Warn("REDIS", fmt.Sprintf("reminders will not be deduplicated: %v", err))
		return nil
	}
	return cache.NewReminderGuard(client, cfg.Redis.ReminderTTL)
}
