package api

import (
	"slices"

	"mediaferry/internal/deps"
	"mediaferry/internal/queue"
	"mediaferry/internal/registry"
	"mediaferry/internal/workflow"
)

// FromTask converts a queue record to its API representation.
func FromTask(task *queue.Task) Task {
	if task == nil {
		return Task{}
	}
	return Task{
		ID:     task.ID,
		Kind:   string(task.Kind),
		Status: string(task.Status),
		Payload: TaskPayload{
			Data:         task.Payload.Data,
			Dest:         task.Payload.Dest,
			FallbackDest: task.Payload.FallbackDest,
			EntityID:     task.Payload.EntityID,
			MediaID:      task.Payload.MediaID,
			SourceID:     task.Payload.SourceID,
		},
		Attempts:        task.Attempts,
		AttemptsAllowed: task.AttemptsAllowed,
		Progress: TaskProgress{
			Percent: task.ProgressPercent,
			Message: task.ProgressMessage,
		},
		ErrorMessage: task.ErrorMessage,
		RunAfter:     FormatTimePtr(task.RunAfter),
		StartedAt:    FormatTimePtr(task.StartedAt),
		CompletedAt:  FormatTimePtr(task.CompletedAt),
		CreatedAt:    FormatTime(task.CreatedAt),
		UpdatedAt:    FormatTime(task.UpdatedAt),
	}
}

// FromTasks converts a slice of queue records. The result is never nil.
func FromTasks(tasks []*queue.Task) []Task {
	out := make([]Task, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, FromTask(task))
	}
	return out
}

// FromClients converts registry snapshots. The result is never nil.
func FromClients(infos []registry.Info) []Client {
	out := make([]Client, 0, len(infos))
	for _, info := range infos {
		client := Client{
			ID:            info.ID,
			RemoteAddr:    info.RemoteAddr,
			UserID:        info.UserID,
			State:         info.State,
			ConnectedAt:   FormatTime(info.ConnectedAt),
			Downloading:   info.Downloading,
			Filename:      info.Filename,
			BufferedBytes: info.BufferedBytes,
		}
		if client.Downloading == nil {
			client.Downloading = []string{}
		}
		if info.Target != nil {
			client.Target = &ClientTarget{
				MainID:   info.Target.MainID,
				MediaID:  info.Target.MediaID,
				SourceID: info.Target.SourceID,
			}
		}
		out = append(out, client)
	}
	return out
}

// MergeQueueStats keys counts by status string and fills every status.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		out[string(status)] = stats[status]
	}
	return out
}

// FromStatusSummary converts a workflow status summary to API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	kinds := make([]queue.Kind, 0, len(summary.HandlerHealth))
	for kind := range summary.HandlerHealth {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)

	health := make([]HandlerHealth, 0, len(kinds))
	for _, kind := range kinds {
		h := summary.HandlerHealth[kind]
		health = append(health, HandlerHealth{Name: string(kind), Ready: h.Ready, Detail: h.Detail})
	}

	lanes := make([]LaneStatus, 0, len(summary.Lanes))
	for _, lane := range summary.Lanes {
		lanes = append(lanes, LaneStatus{Kind: string(lane.Kind), Workers: lane.Workers, Busy: lane.Busy})
	}

	wf := WorkflowStatus{
		Running:    summary.Running,
		QueueStats: MergeQueueStats(summary.QueueStats),
		LastError:  summary.LastError,
		Lanes:      lanes,
		Health:     health,
	}
	if summary.LastTask != nil {
		last := FromTask(summary.LastTask)
		wf.LastTask = &last
	}
	return wf
}

// FromDependencies converts binary checks to API payload.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, dep := range statuses {
		out = append(out, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return out
}
