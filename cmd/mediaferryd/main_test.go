package main

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"mediaferry/internal/config"
	"mediaferry/internal/testsupport"
)

func writeConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	cfg.Server.Bind = freeAddr(t)
	cfg.Server.AdminBind = freeAddr(t)
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

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func execute(args ...string) (string, error) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCheckReportsTools(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	path := writeConfig(t, cfg)

	out, err := execute("--config", path, "--check")
	if err != nil {
		t.Fatalf("--check: %v\n%s", err, out)
	}
	for _, want := range []string{"config: " + path, "admin api: " + cfg.Server.AdminBind + " (available)", "storage (fs):", "ffmpeg: ok", "ffprobe: ok"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCheckFailsWithoutFFmpeg(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Encoding.FFmpegBinary = "mediaferry-missing-ffmpeg"
	path := writeConfig(t, cfg)

	_, err := execute("--config", path, "--check")
	if err == nil || !strings.Contains(err.Error(), "mediaferry-missing-ffmpeg") {
		t.Fatalf("expected missing binary error, got %v", err)
	}
}

func TestInvalidConfigIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[server]\nsession_secret = \"\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MEDIAFERRY_SESSION_SECRET", "")
	_, err := execute("--config", path)
	if err == nil || !strings.Contains(err.Error(), "session_secret") {
		t.Fatalf("expected session secret error, got %v", err)
	}
}

func TestRejectsPositionalArgs(t *testing.T) {
	if _, err := execute("serve"); err == nil {
		t.Fatal("expected positional args to be rejected")
	}
}
