package main

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"

	"mediaferry/internal/api"
	"mediaferry/internal/queue"
	"mediaferry/internal/testsupport"
)

func seedFailedTask(t *testing.T, id *int64) func(*queue.Store) {
	return func(store *queue.Store) {
		ctx := context.Background()
		task := testsupport.Enqueue(t, store, queue.KindImage, queue.Payload{Data: "cover.png", Dest: "categories/films/cover.webp"}, 1)
		testsupport.Claim(t, store, queue.KindImage)
		if _, err := store.Fail(ctx, task.ID, errors.New("encoder exploded"), false, 0); err != nil {
			t.Fatalf("Fail: %v", err)
		}
		*id = task.ID
	}
}

func TestTasksListShowsFailedTask(t *testing.T) {
	var id int64
	env := setupCLITestEnv(t, seedFailedTask(t, &id))

	out, err := runCLI(t, env.configPath, "tasks", "list", "--status", "failed")
	if err != nil {
		t.Fatalf("tasks list: %v", err)
	}
	requireContains(t, out, "categories/films/cover.webp")
	requireContains(t, out, "failed")
	requireContains(t, out, "1/1")

	out, err = runCLI(t, env.configPath, "tasks", "list", "--status", "complete")
	if err != nil {
		t.Fatalf("tasks list complete: %v", err)
	}
	requireContains(t, out, "No tasks")

	out, err = runCLI(t, env.configPath, "tasks", "list", "--json")
	if err != nil {
		t.Fatalf("tasks list --json: %v", err)
	}
	var tasks []api.Task
	if err := json.Unmarshal([]byte(out), &tasks); err != nil {
		t.Fatalf("decode json: %v\n%s", err, out)
	}
	if len(tasks) != 1 || tasks[0].ID != id || tasks[0].ErrorMessage == "" {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}

func TestTasksListRejectsUnknownStatus(t *testing.T) {
	env := setupCLITestEnv(t, nil)
	_, err := runCLI(t, env.configPath, "tasks", "list", "--status", "pending")
	if err == nil || !strings.Contains(err.Error(), "unknown task status") {
		t.Fatalf("expected unknown status error, got %v", err)
	}
}

func TestTasksShowRestartCancel(t *testing.T) {
	var id int64
	env := setupCLITestEnv(t, seedFailedTask(t, &id))
	idArg := strconv.FormatInt(id, 10)

	out, err := runCLI(t, env.configPath, "tasks", "show", idArg)
	if err != nil {
		t.Fatalf("tasks show: %v", err)
	}
	requireContains(t, out, "Task "+idArg)
	requireContains(t, out, "encoder exploded")

	out, err = runCLI(t, env.configPath, "tasks", "restart", idArg)
	if err != nil {
		t.Fatalf("tasks restart: %v", err)
	}
	requireContains(t, out, "Task "+idArg+" restarted")

	out, err = runCLI(t, env.configPath, "tasks", "cancel", idArg)
	if err != nil {
		t.Fatalf("tasks cancel: %v", err)
	}
	requireContains(t, out, "removed")

	if _, err := runCLI(t, env.configPath, "tasks", "cancel", idArg); err == nil {
		t.Fatal("expected second cancel to fail")
	}
	if _, err := runCLI(t, env.configPath, "tasks", "show", "abc"); err == nil || !strings.Contains(err.Error(), "invalid task id") {
		t.Fatalf("expected invalid id error, got %v", err)
	}
}

func TestTasksClearRemovesOnlyCompleted(t *testing.T) {
	var failedID int64
	env := setupCLITestEnv(t, func(store *queue.Store) {
		seedFailedTask(t, &failedID)(store)
		done := testsupport.Enqueue(t, store, queue.KindUpload, queue.Payload{Data: "a.png", Dest: "categories/films/a.png"}, 1)
		testsupport.Claim(t, store, queue.KindUpload)
		if err := store.Complete(context.Background(), done.ID); err != nil {
			t.Fatalf("Complete: %v", err)
		}
	})

	out, err := runCLI(t, env.configPath, "tasks", "clear")
	if err != nil {
		t.Fatalf("tasks clear: %v", err)
	}
	requireContains(t, out, "Removed 1 completed tasks")

	out, err = runCLI(t, env.configPath, "tasks", "list")
	if err != nil {
		t.Fatalf("tasks list: %v", err)
	}
	requireContains(t, out, "failed")
	if strings.Contains(out, "categories/films/a.png") {
		t.Fatalf("completed task still listed:\n%s", out)
	}
}

func TestTasksUnreachableDaemon(t *testing.T) {
	_, configPath := offlineConfig(t)
	_, err := runCLI(t, configPath, "tasks", "list")
	if err == nil || !strings.Contains(err.Error(), "not reachable") {
		t.Fatalf("expected unreachable error, got %v", err)
	}
}

func TestWrongTokenIsReported(t *testing.T) {
	env := setupCLITestEnv(t, nil)
	fileCfg := *env.cfg
	fileCfg.Server.AdminBind = env.daemon.Addr("admin")
	fileCfg.Server.Bind = "127.0.0.1:1"
	fileCfg.Server.APIToken = "wrong"
	path := writeTestConfig(t, &fileCfg)

	_, err := runCLI(t, path, "sockets", "list")
	if err == nil || !strings.Contains(err.Error(), "rejected the token") {
		t.Fatalf("expected token error, got %v", err)
	}
}
