package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mediaferry/internal/api"
)

func newSocketsCommand(ctx *commandContext) *cobra.Command {
	socketsCmd := &cobra.Command{
		Use:     "sockets",
		Aliases: []string{"socket", "clients"},
		Short:   "Inspect and disconnect transfer clients",
	}

	socketsCmd.AddCommand(newSocketsListCommand(ctx))
	socketsCmd.AddCommand(newSocketsKickCommand(ctx))
	return socketsCmd
}

func newSocketsListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List connected clients and locked entities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.AdminClient) error {
				view, err := client.TaskManager(cmd.Context(), []string{api.FieldClients, api.FieldUploading, api.FieldDownloading})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, view)
				}

				out := cmd.OutOrStdout()
				clients := derefSlice(view.Clients)
				if len(clients) == 0 {
					fmt.Fprintln(out, "No connected clients")
				} else {
					fmt.Fprint(out, renderTable(clientColumns(), buildClientRows(clients, time.Now())))
				}
				fmt.Fprintf(out, "Uploading: %s\n", joinOrNone(derefSlice(view.Uploading)))
				fmt.Fprintf(out, "Downloading: %s\n", joinOrNone(derefSlice(view.Downloading)))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the snapshot as JSON")
	return cmd
}

func newSocketsKickCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "kick ID",
		Short: "Disconnect a client and release its locks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *api.AdminClient) error {
				if err := client.KickSocket(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Client %s disconnected\n", id)
				return nil
			})
		},
	}
}

func clientColumns() []column {
	return []column{
		{Header: "ID"},
		{Header: "User"},
		{Header: "State"},
		{Header: "Target", MaxWidth: 40},
		{Header: "Buffered", Right: true},
		{Header: "Remote"},
		{Header: "Connected"},
	}
}

func buildClientRows(clients []api.Client, now time.Time) [][]string {
	rows := make([][]string, 0, len(clients))
	for _, c := range clients {
		target := "-"
		switch {
		case c.Target != nil:
			target = c.Target.MainID + "/" + c.Target.MediaID + "/" + c.Target.SourceID
		case len(c.Downloading) > 0:
			target = strings.Join(c.Downloading, ", ")
		}
		rows = append(rows, []string{
			c.ID,
			orDash(c.UserID),
			c.State,
			target,
			formatBytes(int64(c.BufferedBytes)),
			orDash(c.RemoteAddr),
			formatWhen(c.ConnectedAt, now),
		})
	}
	return rows
}

func derefSlice[T any](values *[]T) []T {
	if values == nil {
		return nil
	}
	return *values
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "none"
	}
	return strings.Join(values, ", ") + " (" + strconv.Itoa(len(values)) + ")"
}
