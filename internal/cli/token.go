package cli

import (
	"time"

	"ms-registration/internal/auth"

	"github.com/spf13/cobra"
)

type tokenOptions struct {
	Subject string
	Email   string
	Name    string
	Role    string
	TTL     time.Duration
}

// NewTokenCommand signs a bearer token with the configured secret, for local testing.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &tokenOptions{}
	cmd := &cobra.Command{
		Use:          "token",
		Short:        "Issue a signed bearer token",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.loadConfig()
			subject := opts.Subject
			if subject == "" {
				subject = opts.Email
			}
			tok, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer).Issue(subject, opts.Email, opts.Name, opts.Role, opts.TTL)
			if err != nil {
				return err
			}
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return out.Print(tok, map[string]string{"token": tok})
		},
	}

	cmd.Flags().StringVar(&opts.Subject, "sub", "", "subject (defaults to the email)")
	cmd.Flags().StringVar(&opts.Email, "email", "", "attendee email")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	cmd.Flags().StringVar(&opts.Role, "role", "", "role claim, e.g. admin")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
