package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInitAndValidate(t *testing.T) {
	_, configPath := offlineConfig(t)

	out, err := runCLI(t, configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "Admin API auth: yes")

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, err = runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	_, err = runCLI(t, "", "config", "init", "--path", target)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected existing file error, got %v", err)
	}
	if _, err := runCLI(t, "", "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigValidateReportsErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[storage]\nbackend = \"ftp\"\n[server]\nsession_secret = \"x\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := runCLI(t, path, "config", "validate")
	if err == nil || !strings.Contains(err.Error(), "storage.backend") {
		t.Fatalf("expected storage backend error, got %v", err)
	}
}

func TestNotifyTestWithoutTopic(t *testing.T) {
	_, configPath := offlineConfig(t)
	out, err := runCLI(t, configPath, "notify", "test")
	if err != nil {
		t.Fatalf("notify test: %v", err)
	}
	requireContains(t, out, "ntfy_topic is not set")
}

func TestConfigSummaryNamesBucketForS3(t *testing.T) {
	cfg, _ := offlineConfig(t)
	cfg.Storage.Backend = "s3"
	cfg.Storage.Bucket = "media"
	cfg.Notifications.NtfyTopic = "https://ntfy.example/ferry"

	got := map[string]string{}
	for _, pair := range configSummary(cfg) {
		got[pair[0]] = pair[1]
	}
	if got["Storage"] != "s3 s3://media" {
		t.Fatalf("storage line = %q", got["Storage"])
	}
	if got["Notifications"] != "https://ntfy.example/ferry" {
		t.Fatalf("notifications line = %q", got["Notifications"])
	}
}
