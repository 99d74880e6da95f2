package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mediaferry/internal/api"
	"mediaferry/internal/queue"
)

func newTasksCommand(ctx *commandContext) *cobra.Command {
	tasksCmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task"},
		Short:   "Inspect and manage post-upload processing tasks",
	}

	tasksCmd.AddCommand(newTasksListCommand(ctx))
	tasksCmd.AddCommand(newTasksShowCommand(ctx))
	tasksCmd.AddCommand(newTasksCancelCommand(ctx))
	tasksCmd.AddCommand(newTasksRestartCommand(ctx))
	tasksCmd.AddCommand(newTasksClearCommand(ctx))
	return tasksCmd
}

func newTasksListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, optionally filtered by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatusFlags(statusFlags)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.AdminClient) error {
				view, err := client.TaskManager(cmd.Context(), []string{api.FieldTasks}, statuses...)
				if err != nil {
					return err
				}
				var tasks []api.Task
				if view.Tasks != nil {
					tasks = *view.Tasks
				}
				if asJSON {
					if tasks == nil {
						tasks = []api.Task{}
					}
					return writeJSON(cmd, tasks)
				}
				if len(tasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tasks")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(taskColumns(), buildTaskRows(tasks, time.Now())))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status: inactive, active, delayed, complete, failed (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print tasks as JSON")
	return cmd
}

func newTasksShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show one task in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.AdminClient) error {
				task, err := client.Task(cmd.Context(), id)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, task)
				}
				renderTaskDetail(newStatusPrinter(cmd.OutOrStdout()), task, time.Now())
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the task as JSON")
	return cmd
}

func newTasksCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Remove a task; a running task stops at its next checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.AdminClient) error {
				if err := client.CancelTask(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Task %d removed\n", id)
				return nil
			})
		},
	}
}

func newTasksRestartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "restart ID",
		Short: "Reset a finished or waiting task so it runs again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.AdminClient) error {
				task, err := client.StartTask(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Task %d restarted (%s)\n", task.ID, task.Status)
				return nil
			})
		},
	}
}

func newTasksClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove completed tasks from the queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.AdminClient) error {
				removed, err := client.ClearCompleted(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d completed tasks\n", removed)
				return nil
			})
		},
	}
}

func parseTaskID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", value)
	}
	return id, nil
}

func parseStatusFlags(values []string) ([]queue.Status, error) {
	statuses := make([]queue.Status, 0, len(values))
	for _, value := range values {
		status, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown task status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func taskColumns() []column {
	return []column{
		{Header: "ID", Right: true},
		{Header: "Kind"},
		{Header: "Status"},
		{Header: "Attempts", Right: true},
		{Header: "Progress", Right: true},
		{Header: "Destination", MaxWidth: 48},
		{Header: "Updated"},
	}
}

func buildTaskRows(tasks []api.Task, now time.Time) [][]string {
	rows := make([][]string, 0, len(tasks))
	for _, task := range tasks {
		rows = append(rows, []string{
			strconv.FormatInt(task.ID, 10),
			task.Kind,
			task.Status,
			fmt.Sprintf("%d/%d", task.Attempts, task.AttemptsAllowed),
			fmt.Sprintf("%.0f%%", task.Progress.Percent),
			task.Payload.Dest,
			formatWhen(task.UpdatedAt, now),
		})
	}
	return rows
}

func renderTaskDetail(p *statusPrinter, task api.Task, now time.Time) {
	p.section(fmt.Sprintf("Task %d", task.ID))
	kind := statusInfo
	switch queue.Status(task.Status) {
	case queue.StatusComplete:
		kind = statusOK
	case queue.StatusFailed:
		kind = statusError
	case queue.StatusDelayed:
		kind = statusWarn
	}
	p.line("Status", kind, task.Status)
	p.line("Kind", statusInfo, task.Kind)
	p.line("Attempts", statusInfo, fmt.Sprintf("%d of %d", task.Attempts, task.AttemptsAllowed))
	progress := fmt.Sprintf("%.0f%%", task.Progress.Percent)
	if task.Progress.Message != "" {
		progress += " " + task.Progress.Message
	}
	p.line("Progress", statusInfo, progress)
	p.line("Input", statusInfo, task.Payload.Data)
	p.line("Destination", statusInfo, task.Payload.Dest)
	if task.Payload.FallbackDest != "" {
		p.line("Poster", statusInfo, task.Payload.FallbackDest)
	}
	if task.Payload.EntityID != "" {
		p.line("Source", statusInfo, strings.Join([]string{task.Payload.EntityID, task.Payload.MediaID, task.Payload.SourceID}, "/"))
	}
	if task.ErrorMessage != "" {
		p.line("Error", statusError, task.ErrorMessage)
	}
	if task.RunAfter != "" && queue.Status(task.Status) == queue.StatusDelayed {
		p.line("Next attempt", statusWarn, formatWhen(task.RunAfter, now))
	}
	p.line("Created", statusInfo, formatWhen(task.CreatedAt, now))
	p.line("Updated", statusInfo, formatWhen(task.UpdatedAt, now))
}
