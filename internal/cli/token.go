package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-overrides/internal/auth"
)

func newTokenCmd(opts *globalOptions, stdout io.Writer) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the HTTP API",
		Long: `token signs an API token with api.auth.jwt_secret (or GRAYLOGIC_JWT_SECRET).
The token is printed on stdout, ready for "Authorization: Bearer <token>".`,
		Example: `  entity-overrides token --subject backup-cron --ttl 24h
  curl -H "Authorization: Bearer $(entity-overrides token)" -X POST localhost:8095/api/v1/overrides/export`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("ttl") {
				ttl = cfg.API.Auth.TokenLifetime()
			}

			token, err := auth.GenerateToken(subject, cfg.API.Auth.JWTSecret, ttl)
			if err != nil {
				return fmt.Errorf("minting token: %w", err)
			}
			if opts.jsonOutput {
				return printJSON(stdout, map[string]any{
					"token":      token,
					"subject":    subject,
					"expires_in": int(ttl.Seconds()),
				})
			}
			fmt.Fprintln(stdout, token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "cli", "who the token is issued to")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default: api.auth.token_ttl)")

	return cmd
}
