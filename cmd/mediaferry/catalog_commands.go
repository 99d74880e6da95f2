package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mediaferry/internal/catalog"
	"mediaferry/internal/media"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Maintain the entity and user catalog (daemon must be stopped)",
	}
	catalogCmd.AddCommand(newCatalogImportCommand(ctx))
	catalogCmd.AddCommand(newCatalogUsersCommand(ctx))
	return catalogCmd
}

func newCatalogImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Load entities and users from a JSON fixture (- reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var reader io.Reader
			if args[0] == "-" {
				reader = cmd.InOrStdin()
			} else {
				file, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open fixture: %w", err)
				}
				defer file.Close()
				reader = file
			}

			return ctx.withCatalog(cmd, func(c context.Context, cat *catalog.Catalog) error {
				result, err := cat.Import(c, reader)
				if err != nil {
					return fmt.Errorf("import %s: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d entities and %d users\n", result.Entities, result.Users)
				return nil
			})
		},
	}
}

func newCatalogUsersCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "users",
		Short: "List catalog users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCatalog(cmd, func(c context.Context, cat *catalog.Catalog) error {
				users, err := cat.Users.List(c)
				if err != nil {
					return err
				}
				if asJSON {
					if users == nil {
						users = []*media.User{}
					}
					return writeJSON(cmd, users)
				}
				if len(users) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No users")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]column{{Header: "ID"}, {Header: "Name"}, {Header: "Role"}, {Header: "Entities", Right: true}, {Header: "Entity IDs", MaxWidth: 40}},
					buildUserRows(users),
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print users as JSON")
	return cmd
}

func buildUserRows(users []*media.User) [][]string {
	rows := make([][]string, 0, len(users))
	for _, user := range users {
		rows = append(rows, []string{
			user.ID,
			orDash(user.Name),
			string(user.Role),
			strconv.Itoa(len(user.EntityIDs)),
			truncate(strings.Join(user.EntityIDs, ", "), 80),
		})
	}
	return rows
}
