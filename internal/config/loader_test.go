package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "livedash.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultMatchesObservedBehaviour(t *testing.T) {
	cfg := Default()
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	r := cfg.Stream.Reconnect
	if r.Initial != time.Second || r.Max != time.Second || r.Multiplier != 1 || r.MaxAttempts != 0 {
		t.Fatalf("expected constant 1s unlimited reconnect, got %+v", r)
	}
	if cfg.Stream.Path != "/logger" {
		t.Fatalf("expected stream path /logger, got %q", cfg.Stream.Path)
	}
	if cfg.Poller.Interval != time.Minute {
		t.Fatalf("expected 60s poll interval, got %s", cfg.Poller.Interval)
	}
	if len(cfg.Poller.Targets) != 2 {
		t.Fatalf("expected 2 default targets, got %d", len(cfg.Poller.Targets))
	}
	if cfg.Poller.Targets[0].Path != "/devices/status" || cfg.Poller.Targets[1].Path != "/cameras/status" {
		t.Fatalf("unexpected default targets: %+v", cfg.Poller.Targets)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
origin: https://middleware.example.org
stream:
  transport: grpc
  reconnect:
    initial: 500ms
    max: 8s
    multiplier: 2
poller:
  interval: 15s
ui:
  mode: web
log:
  level: debug
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Origin != "https://middleware.example.org" {
		t.Fatalf("unexpected origin %q", cfg.Origin)
	}
	if cfg.Stream.Transport != TransportGRPC {
		t.Fatalf("expected grpc transport, got %q", cfg.Stream.Transport)
	}
	if cfg.Stream.Reconnect.Initial != 500*time.Millisecond || cfg.Stream.Reconnect.Max != 8*time.Second {
		t.Fatalf("unexpected reconnect policy %+v", cfg.Stream.Reconnect)
	}
	if cfg.Poller.Interval != 15*time.Second {
		t.Fatalf("expected 15s interval, got %s", cfg.Poller.Interval)
	}
	if cfg.UI.Listen != DefaultWebListen {
		t.Fatalf("expected web mode to default listen to %s, got %q", DefaultWebListen, cfg.UI.Listen)
	}
	if cfg.Stream.Path != "/logger" {
		t.Fatalf("expected default stream path, got %q", cfg.Stream.Path)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"scheme":     "origin: ftp://host\n",
		"transport":  "stream:\n  transport: sse\n",
		"multiplier": "stream:\n  reconnect:\n    multiplier: 0.5\n",
		"max":        "stream:\n  reconnect:\n    initial: 5s\n    max: 1s\n",
		"panel":      "poller:\n  targets:\n    - {name: x, path: /x, panel: nowhere}\n",
		"duplicate":  "poller:\n  targets:\n    - {name: x, path: /x, panel: devices-status-container}\n    - {name: x, path: /y, panel: camera-status-container}\n",
		"mode":       "ui:\n  mode: gui\n",
		"level":      "log:\n  level: loud\n",
	}
	for name, body := range cases {
		if _, err := LoadConfig(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		} else if !strings.Contains(err.Error(), "validation") {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestFinalizeAppliesOverrides(t *testing.T) {
	cfg := Default()
	cfg.UI.Mode = ModeWeb
	cfg.UI.Listen = ""
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if cfg.UI.Listen != DefaultWebListen {
		t.Fatalf("expected listen default after finalize, got %q", cfg.UI.Listen)
	}
	cfg.Origin = "localhost"
	if err := cfg.Finalize(); err == nil {
		t.Fatalf("expected invalid origin to fail")
	}
}
