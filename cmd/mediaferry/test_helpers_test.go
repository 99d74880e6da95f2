package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"mediaferry/internal/config"
	"mediaferry/internal/daemon"
	"mediaferry/internal/daemonrun"
	"mediaferry/internal/queue"
	"mediaferry/internal/testsupport"
)

const cliTestToken = "cli-token"

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	configPath string
}

// setupCLITestEnv starts an in-process daemon after seed has populated its
// task store, and writes a config file pointing the CLI at its admin API.
func setupCLITestEnv(t *testing.T, seed func(*queue.Store)) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken(cliTestToken))
	cfg.Server.Bind = "127.0.0.1:0"
	cfg.Server.AdminBind = "127.0.0.1:0"
	cfg.Tasks.PollInterval = 3600

	if seed != nil {
		store := testsupport.MustOpenStore(t, cfg)
		seed(store)
		if err := store.Close(); err != nil {
			t.Fatalf("close seeded store: %v", err)
		}
	}

	d, err := daemonrun.Assemble(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon start: %v", err)
	}

	fileCfg := *cfg
	fileCfg.Server.AdminBind = d.Addr("admin")
	fileCfg.Server.Bind = "127.0.0.1:1"
	configPath := writeTestConfig(t, &fileCfg)

	return &cliTestEnv{cfg: cfg, daemon: d, configPath: configPath}
}

// offlineConfig writes a config for commands that do not need a daemon.
func offlineConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken(cliTestToken))
	cfg.Server.Bind = "127.0.0.1:1"
	cfg.Server.AdminBind = "127.0.0.1:2"
	return cfg, writeTestConfig(t, cfg)
}

func writeTestConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
