package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kya.dev/kya/storage"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.jsonc")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadJSONCWithComments(t *testing.T) {
	path := writeConfig(t, `{
  // keys
  "key_dir": "/tmp/keys",
  /* outbox */
  "outbox_dir": "/tmp/outbox",
  "workspace_id": "w-1",
  "log_level": "debug",
  "log_format": "json",
}`)
	t.Setenv("KYA_KEY_DIR", "")
	t.Setenv("KYA_OUTBOX_DIR", "")
	t.Setenv("KYA_LOG_LEVEL", "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.KeyDir != "/tmp/keys" || cfg.OutboxDir != "/tmp/outbox" || cfg.WorkspaceID != "w-1" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Fatalf("unexpected logging config: %+v", cfg)
	}
}

func TestLoadKeepsDefaultsForAbsentFields(t *testing.T) {
	path := writeConfig(t, `{"agent_id": "a-1"}`)
	t.Setenv("KYA_KEY_DIR", "")
	t.Setenv("KYA_OUTBOX_DIR", "")
	t.Setenv("KYA_LOG_LEVEL", "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if cfg.KeyDir != def.KeyDir || cfg.LogLevel != def.LogLevel || cfg.AgentID != "a-1" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("KYA_KEY_DIR", "/env/keys")
	t.Setenv("KYA_OUTBOX_DIR", "/env/outbox")
	t.Setenv("KYA_LOG_LEVEL", "warn")
	cfg, err := Load(writeConfig(t, `{"key_dir": "/file/keys"}`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.KeyDir != "/env/keys" || cfg.OutboxDir != "/env/outbox" || cfg.LogLevel != "warn" {
		t.Fatalf("env did not override: %+v", cfg)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("KYA_LOG_LEVEL", "")
	cases := map[string]string{
		"level":   `{"log_level": "loud"}`,
		"format":  `{"log_format": "xml"}`,
		"unknown": `{"key_directory": "/x"}`,
		"syntax":  `{"key_dir": }`,
		"dup":     `{"outbox_dir": "/a", "outbox_mirrors": ["/a"]}`,
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.jsonc")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	t.Setenv("KYA_KEY_DIR", "")
	t.Setenv("KYA_OUTBOX_DIR", "")
	t.Setenv("KYA_LOG_LEVEL", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.KeyDir != "~/.kya/keys" || cfg.OutboxDir != "~/.kya/outbox" || cfg.LogLevel != "info" || cfg.LogFormat != "text" || len(cfg.OutboxMirrors) != 0 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{"debug": slog.LevelDebug, "": slog.LevelInfo, "WARN": slog.LevelWarn, "error": slog.LevelError}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	got, err := ExpandPath("~/.kya/keys")
	if err != nil {
		t.Fatalf("ExpandPath: %v", err)
	}
	if got != filepath.Join(home, ".kya", "keys") {
		t.Fatalf("ExpandPath = %s", got)
	}
	if got, _ := ExpandPath("/abs/~x"); got != "/abs/~x" {
		t.Fatalf("absolute path changed: %s", got)
	}
}

func TestOpenOutboxCASWithMirrors(t *testing.T) {
	primary := filepath.Join(t.TempDir(), "primary")
	mirror := filepath.Join(t.TempDir(), "mirror")
	cfg := Config{OutboxDir: primary, OutboxMirrors: []string{mirror}}
	cas, err := cfg.OpenOutboxCAS()
	if err != nil {
		t.Fatalf("OpenOutboxCAS: %v", err)
	}
	if _, ok := cas.(storage.ReplicatingCAS); !ok {
		t.Fatalf("expected ReplicatingCAS, got %T", cas)
	}
	id, err := cas.Put([]byte(`{"x":1}`))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	single, err := (Config{OutboxDir: mirror}).OpenOutboxCAS()
	if err != nil {
		t.Fatalf("OpenOutboxCAS: %v", err)
	}
	if !single.Has(id) {
		t.Fatalf("mirror did not receive the object")
	}
	if _, err := (Config{}).OpenOutboxCAS(); err == nil || !strings.Contains(err.Error(), "outbox_dir") {
		t.Fatalf("expected outbox_dir error, got %v", err)
	}
}
