package main

import (
	"encoding/json"
	"strings"
	"testing"

	"mediaferry/internal/api"
)

func TestSocketsListEmpty(t *testing.T) {
	env := setupCLITestEnv(t, nil)

	out, err := runCLI(t, env.configPath, "sockets", "list")
	if err != nil {
		t.Fatalf("sockets list: %v", err)
	}
	requireContains(t, out, "No connected clients")
	requireContains(t, out, "Uploading: none")
	requireContains(t, out, "Downloading: none")

	out, err = runCLI(t, env.configPath, "sockets", "list", "--json")
	if err != nil {
		t.Fatalf("sockets list --json: %v", err)
	}
	var view api.TaskManagerView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.Clients == nil || view.Uploading == nil || view.Downloading == nil || view.Tasks != nil {
		t.Fatalf("unexpected sections: %s", out)
	}
}

func TestSocketsKickUnknown(t *testing.T) {
	env := setupCLITestEnv(t, nil)
	_, err := runCLI(t, env.configPath, "sockets", "kick", "nope")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestJoinOrNone(t *testing.T) {
	if got := joinOrNone(nil); got != "none" {
		t.Fatalf("joinOrNone(nil) = %q", got)
	}
	if got := joinOrNone([]string{"a", "b"}); got != "a, b (2)" {
		t.Fatalf("joinOrNone = %q", got)
	}
}
