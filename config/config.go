// Package config loads the kya CLI configuration.
//
// The file is JSON with comments and trailing commas allowed:
//
//	{
//	  // where agent keys live
//	  "key_dir": "~/.kya/keys",
//	  "outbox_dir": "~/.kya/outbox",
//	  "outbox_mirrors": ["/mnt/backup/kya-outbox"],
//	  "workspace_id": "22222222-2222-2222-2222-222222222222",
//	  "agent_id": "11111111-1111-1111-1111-111111111111",
//	  "log_level": "info",
//	  "log_format": "text",
//	}
//
// KYA_KEY_DIR, KYA_OUTBOX_DIR and KYA_LOG_LEVEL override the file.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"

	"kya.dev/kya/storage"
	"kya.dev/kya/storage/localfs"
)

type Config struct {
	KeyDir        string   `json:"key_dir,omitempty"`
	OutboxDir     string   `json:"outbox_dir,omitempty"`
	OutboxMirrors []string `json:"outbox_mirrors,omitempty"`
	// WorkspaceID and AgentID fill request fields left empty on the command line.
	WorkspaceID string `json:"workspace_id,omitempty"`
	AgentID     string `json:"agent_id,omitempty"`
	LogLevel    string `json:"log_level,omitempty"`
	LogFormat   string `json:"log_format,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		KeyDir:    "~/.kya/keys",
		OutboxDir: "~/.kya/outbox",
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads path over Default and applies environment overrides. An empty
// path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		if err := Parse(b, &cfg); err != nil {
			return cfg, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse decodes JSONC data into cfg, leaving fields absent from data as they are.
func Parse(data []byte, cfg *Config) error {
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("KYA_KEY_DIR"); v != "" {
		c.KeyDir = v
	}
	if v := getenv("KYA_OUTBOX_DIR"); v != "" {
		c.OutboxDir = v
	}
	if v := getenv("KYA_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func (c Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: invalid log_format %q (want text or json)", c.LogFormat)
	}
	seen := map[string]struct{}{}
	for _, dir := range append([]string{c.OutboxDir}, c.OutboxMirrors...) {
		if dir == "" {
			continue
		}
		if _, dup := seen[dir]; dup {
			return fmt.Errorf("config: outbox directory %q listed twice", dir)
		}
		seen[dir] = struct{}{}
	}
	return nil
}

// ParseLevel maps debug|info|warn|error to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("config: invalid log_level %q (want debug, info, warn or error)", s)
	}
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

// OpenOutboxCAS opens the outbox directory. With mirrors configured, writes
// go to every directory and reads fall back in order.
func (c Config) OpenOutboxCAS() (storage.CAS, error) {
	if c.OutboxDir == "" {
		return nil, errors.New("config: outbox_dir is not set")
	}
	dirs := append([]string{c.OutboxDir}, c.OutboxMirrors...)
	named := make([]storage.NamedCAS, 0, len(dirs))
	for _, dir := range dirs {
		path, err := ExpandPath(dir)
		if err != nil {
			return nil, err
		}
		cas, err := localfs.New(path)
		if err != nil {
			return nil, err
		}
		named = append(named, storage.NamedCAS{Name: path, CAS: cas})
	}
	if len(named) == 1 {
		return named[0].CAS, nil
	}
	return storage.ReplicatingCAS{Backends: named}, nil
}
