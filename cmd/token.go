package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"auto_wordpress_post_publisher/server"
)

var (
	tokenUser string
	tokenTTL  time.Duration
)

// tokenCmd stands in for the identity provider during development.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API bearer token for a user id",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if tokenUser == "" {
			return errors.New("--user is required")
		}
		cfg, _, err := loadRuntime()
		if err != nil {
			return err
		}
		if err := cfg.ValidateServer(); err != nil {
			return err
		}
		auth, err := server.NewAuthenticator(cfg.JWTSecret)
		if err != nil {
			return err
		}
		tok, err := auth.Issue(tokenUser, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id (token subject)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
}
