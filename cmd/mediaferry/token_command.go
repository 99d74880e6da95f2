package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mediaferry/internal/auth"
	"mediaferry/internal/catalog"
)

func newTokenCommand(ctx *commandContext) *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Session token utilities",
	}
	tokenCmd.AddCommand(newTokenIssueCommand(ctx))
	return tokenCmd
}

func newTokenIssueCommand(ctx *commandContext) *cobra.Command {
	var ttl time.Duration
	var verifyUser bool

	cmd := &cobra.Command{
		Use:   "issue USER_ID",
		Short: "Mint a session token for a catalog user",
		Long: "Mint a session token signed with server.session_secret. Clients send it\n" +
			"as the session cookie when opening the transfer socket.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			userID := strings.TrimSpace(args[0])
			if verifyUser {
				err := ctx.withCatalog(cmd, func(c context.Context, cat *catalog.Catalog) error {
					_, err := cat.Users.GetByID(c, userID)
					return err
				})
				if err != nil {
					return fmt.Errorf("look up user %q: %w", userID, err)
				}
			}

			token, err := auth.NewIssuer(cfg.Server.SessionSecret).Issue(userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime; 0 issues a token without expiry")
	cmd.Flags().BoolVar(&verifyUser, "verify", false, "Check that the user exists in the catalog first")
	return cmd
}
