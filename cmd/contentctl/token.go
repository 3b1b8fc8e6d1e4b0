package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"websites-content-system/pkg/config"
	"websites-content-system/pkg/models"
	"websites-content-system/pkg/utils"
)

func newTokenCmd() *cobra.Command {
	var (
		email  string
		name   string
		secret string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for calling the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return errors.New("--email is required")
			}
			if secret == "" {
				secret = config.GetCached().JWTSecret
			}
			token, exp, err := utils.NewJWTService(secret).GenerateAccessToken(
				&models.User{ID: email, Name: name, Email: email}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			cmd.PrintErrf("expires %s\n", time.Unix(exp, 0).UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "user email")
	cmd.Flags().StringVar(&name, "name", "", "user display name")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (defaults to JWT_SECRET)")
	cmd.Flags().DurationVar(&ttl, "ttl", utils.DefaultTokenTTL, "token lifetime")
	return cmd
}
