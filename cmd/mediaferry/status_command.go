package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mediaferry/internal/api"
	"mediaferry/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, staging, dependency and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status api.DaemonStatus
			err := ctx.withClient(func(client *api.AdminClient) error {
				var err error
				status, err = client.Status(cmd.Context())
				return err
			})
			if asJSON {
				if err != nil {
					return err
				}
				return writeJSON(cmd, status)
			}

			p := newStatusPrinter(cmd.OutOrStdout())
			p.section("System Status")
			if err != nil {
				p.line("Daemon", statusError, err.Error())
				return nil
			}
			renderSystemLines(p, status, time.Now())
			p.blank()

			p.section("Staging")
			renderStagingLines(p, status.Staging, time.Now())
			p.blank()

			p.section("Dependencies")
			for _, line := range dependencyLines(status.Dependencies) {
				p.line(line.label, line.kind, line.message)
			}
			p.blank()

			p.section("Workers")
			renderWorkerLines(p, status.Workflow)
			p.blank()

			p.section("Queue Status")
			rows := buildQueueStatusRows(status.Workflow.QueueStats)
			if len(rows) == 0 {
				fmt.Fprintln(p.out, "Queue is empty")
				return nil
			}
			fmt.Fprint(p.out, renderTable([]column{{Header: "Status"}, {Header: "Count", Right: true}}, rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw status document")
	return cmd
}

func renderSystemLines(p *statusPrinter, status api.DaemonStatus, now time.Time) {
	if !status.Running {
		p.line("Daemon", statusWarn, "Reachable but not running")
	} else {
		p.line("Daemon", statusOK, fmt.Sprintf("Running (pid %d, started %s)", status.PID, formatWhen(status.StartedAt, now)))
	}
	p.line("Storage", statusInfo, status.Storage)
	p.line("Connections", statusInfo, strconv.Itoa(status.Connections))
	p.line("Task database", statusInfo, status.QueueDBPath)
	p.line("Catalog", statusInfo, status.CatalogPath)
	if msg := strings.TrimSpace(status.Workflow.LastError); msg != "" {
		p.line("Last error", statusWarn, msg)
	}
}

func renderStagingLines(p *statusPrinter, staging api.StagingStatus, now time.Time) {
	p.line("Directory", statusInfo, staging.Dir)
	p.line("Pending files", statusInfo, fmt.Sprintf("%d (%s)", staging.Entries, formatBytes(staging.Bytes)))
	if staging.Oldest != "" {
		p.line("Oldest", statusInfo, formatWhen(staging.Oldest, now))
	}
	kind := statusOK
	if staging.FreeBytes < 1<<30 {
		kind = statusWarn
	}
	p.line("Free space", kind, humanize.IBytes(staging.FreeBytes))
}

func renderWorkerLines(p *statusPrinter, workflow api.WorkflowStatus) {
	if !workflow.Running {
		p.line("Workflow", statusWarn, "Stopped")
	}
	for _, lane := range workflow.Lanes {
		p.line(lane.Kind, statusInfo, fmt.Sprintf("%d/%d busy", lane.Busy, lane.Workers))
	}
	for _, health := range workflow.Health {
		if health.Ready {
			continue
		}
		p.line(health.Name+" handler", statusError, orDash(health.Detail))
	}
}

type dependencyLine struct {
	label   string
	kind    statusKind
	message string
}

func dependencyLines(deps []api.DependencyStatus) []dependencyLine {
	lines := make([]dependencyLine, 0, len(deps)+1)
	var missing []string
	for _, dep := range deps {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, dependencyLine{dep.Name, statusOK, message})
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, dependencyLine{dep.Name, kind, detail})
		if !dep.Optional {
			missing = append(missing, dep.Name)
		}
	}
	if len(missing) > 0 {
		lines = append(lines, dependencyLine{"Missing", statusError, strings.Join(missing, ", ") + " (video and image tasks will fail)"})
	}
	return lines
}

// buildQueueStatusRows orders counts by task lifecycle and drops empty
// statuses. Unknown statuses sort last by name.
func buildQueueStatusRows(stats map[string]int) [][]string {
	order := make(map[string]int)
	for i, status := range queue.AllStatuses() {
		order[string(status)] = i
	}
	keys := make([]string, 0, len(stats))
	for key, count := range stats {
		if count > 0 {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		oi, iok := order[keys[i]]
		oj, jok := order[keys[j]]
		switch {
		case iok && jok:
			return oi < oj
		case iok != jok:
			return iok
		default:
			return keys[i] < keys[j]
		}
	})
	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{titleCase(key), strconv.Itoa(stats[key])})
	}
	return rows
}

func titleCase(value string) string {
	if value == "" {
		return value
	}
	return strings.ToUpper(value[:1]) + value[1:]
}
