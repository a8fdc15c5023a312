package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
}

func TestDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	mgr, err := NewManager("")
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), mgr.Get()); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
	if mgr.File() != "" {
		t.Errorf("File() = %q, want none", mgr.File())
	}
}

func TestNewManager(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "annobox.yaml")
	writeFile(t, configFile, `
server_url: http://annotate.internal:5000
batch_file: batch.json
testing: true
submit:
  timeout: 5s
  attempts: 3
log:
  level: debug
  format: json
`)

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	want := DefaultConfig()
	want.ServerURL = "http://annotate.internal:5000"
	want.BatchFile = "batch.json"
	want.Testing = true
	want.Submit.Timeout = 5 * time.Second
	want.Submit.Attempts = 3
	want.Log = LogConfig{Level: "debug", Format: "json"}
	if diff := cmp.Diff(want, mgr.Get()); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestEnvOverrides(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "annobox.yaml")
	writeFile(t, configFile, "listen: 127.0.0.1:9000\n")
	t.Setenv("ANNOBOX_LISTEN", "0.0.0.0:8000")
	t.Setenv("ANNOBOX_SUBMIT_ATTEMPTS", "4")

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	cfg := mgr.Get()
	if cfg.Listen != "0.0.0.0:8000" {
		t.Errorf("Listen = %q, want env value", cfg.Listen)
	}
	if cfg.Submit.Attempts != 4 {
		t.Errorf("Submit.Attempts = %d, want 4", cfg.Submit.Attempts)
	}
}

func TestSet(t *testing.T) {
	t.Chdir(t.TempDir())
	mgr, err := NewManager("")
	if err != nil {
		t.Fatal(err)
	}
	if err := mgr.Set("log.level", "warn"); err != nil {
		t.Fatal(err)
	}
	if got := mgr.Get().Log.Level; got != "warn" {
		t.Errorf("Log.Level = %q, want warn", got)
	}
	if err := mgr.Set("log.level", "loud"); err == nil {
		t.Error("expected error for unknown level")
	}
	if got := mgr.Get().Log.Level; got != "warn" {
		t.Errorf("bad Set replaced config: Log.Level = %q", got)
	}
}

func TestManager_WatchConfig(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "annobox.yaml")
	writeFile(t, configFile, "log:\n  level: info\n")

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	var calls atomic.Int32
	var lastLevel atomic.Value
	mgr.OnChange(func(cfg *Config) {
		calls.Add(1)
		lastLevel.Store(cfg.Log.Level)
	})
	mgr.WatchConfig(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	// Give fsnotify time to set up the watcher
	time.Sleep(100 * time.Millisecond)
	writeFile(t, configFile, "log:\n  level: debug\n")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && calls.Load() == 0 {
		time.Sleep(50 * time.Millisecond)
	}
	if calls.Load() == 0 {
		t.Fatal("callback was not invoked after config file change")
	}
	if got := mgr.Get().Log.Level; got != "debug" {
		t.Errorf("config not updated: Log.Level = %q", got)
	}
	if v := lastLevel.Load(); v != "debug" {
		t.Errorf("callback received %v, want debug", v)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	var level slog.LevelVar

	logger, err := NewLogger(&buf, LogConfig{Level: "warn", Format: "json"}, &level)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "item", 3)
	if strings.Contains(buf.String(), "hidden") {
		t.Error("info record written at warn level")
	}
	if !strings.Contains(buf.String(), `"msg":"shown","item":3`) {
		t.Errorf("unexpected output %q", buf.String())
	}

	level.Set(slog.LevelDebug)
	logger.Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Error("level change not applied")
	}

	if _, err := NewLogger(&buf, LogConfig{Level: "info", Format: "xml"}, &level); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, err := NewLogger(&buf, LogConfig{Level: "chatty"}, &level); err == nil {
		t.Error("expected error for unknown level")
	}
}
