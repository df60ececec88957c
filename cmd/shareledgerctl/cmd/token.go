package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/timmy/shareledger/internal/auth"
	"github.com/timmy/shareledger/internal/config"
)

func tokenCmd() *cobra.Command {
	var (
		subject    string
		secret     string
		issuer     string
		ttl        time.Duration
		configPath string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local development",
		Long: `Signs a token with the server's JWT secret. The secret comes from --secret,
or from the server configuration (--config, CONFIG_PATH, JWT_SECRET).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				secret = cfg.Auth.JWTSecret
				if !cmd.Flags().Changed("issuer") {
					issuer = cfg.Auth.Issuer
				}
			}
			if secret == "" {
				return errors.New("no JWT secret: pass --secret or set JWT_SECRET")
			}

			tokens, err := auth.NewTokenManager(secret, issuer, ttl)
			if err != nil {
				return err
			}
			token, err := tokens.Issue(subject)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Identity carried by the token")
	cmd.Flags().StringVar(&secret, "secret", "", "HMAC secret (defaults to the server configuration)")
	cmd.Flags().StringVar(&issuer, "issuer", "shareledger", "Token issuer")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to the server config file")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
