package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"quiz-practice/internal/config"
	"quiz-practice/internal/identity"
)

// NewTokenCmd signs a bearer token with the configured secret. Meant for
// local development against /ws and /admin/progress.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		subject string
		roles   []string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwtSecret not configured")
			}
			token, err := identity.NewVerifier(cfg.Auth.JWTSecret).SignToken(subject, roles, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "dev", "token subject")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "roles to grant, e.g. "+identity.RoleAdminRead)
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
