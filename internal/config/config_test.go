package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DOORCTL_CONFIG", "BROKER_HOST", "BROKER_PORT", "BROKER_USERNAME", "BROKER_PASSWORD",
		"BROKER_CLIENT_ID", "GPIO_BACKEND", "HTTP_ADDR", "DB_PATH", "LOG_LEVEL", "LOG_FILE", "DOOR_DWELL",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doorctl.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Broker.Port != 1884 {
		t.Fatalf("expected broker port 1884, got %d", cfg.Broker.Port)
	}
	if cfg.Dwell != 2*time.Second {
		t.Fatalf("expected 2s dwell, got %s", cfg.Dwell)
	}
	if len(cfg.Pods) != 1 || cfg.Pods[0].ID != "TD01" || cfg.Pods[0].Zone != "zone1" {
		t.Fatalf("unexpected default pods: %+v", cfg.Pods)
	}
	if cfg.Pods[0].ExpandPin != 23 || cfg.Pods[0].RetractPin != 24 {
		t.Fatalf("unexpected pod pins: %+v", cfg.Pods[0])
	}
	if len(cfg.Ports) != 1 || cfg.Ports[0].ID != "P01" || cfg.Ports[0].AddressableLeaves[0] != "A" {
		t.Fatalf("unexpected default ports: %+v", cfg.Ports)
	}
	if cfg.Ports[0].NumericSignal {
		t.Fatalf("numeric signal must be off by default")
	}
	if cfg.Level() != slog.LevelInfo {
		t.Fatalf("expected info level, got %s", cfg.Level())
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
broker:
  host: 192.168.68.106
  port: 1883
gpio_backend: simulated
dwell: 1500ms
pods:
  - id: TD02
    zone: zone2
    expand_pin: 5
    retract_pin: 6
ports:
  - id: P02
    numeric_signal: true
    addressable_leaves: [A]
    leaves:
      - name: A
        expand_pin: 17
        retract_pin: 27
      - name: B
        expand_pin: 20
        retract_pin: 21
`)
	t.Setenv("BROKER_PORT", "1999")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Broker.Host != "192.168.68.106" || cfg.Broker.Port != 1999 {
		t.Fatalf("unexpected broker config: %+v", cfg.Broker)
	}
	if cfg.Broker.ClientID != defaultClientID {
		t.Fatalf("expected default client id, got %q", cfg.Broker.ClientID)
	}
	if cfg.Dwell != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s dwell, got %s", cfg.Dwell)
	}
	if cfg.GPIOBackend != BackendSimulated {
		t.Fatalf("expected simulated backend, got %q", cfg.GPIOBackend)
	}
	if len(cfg.Pods) != 1 || cfg.Pods[0].ID != "TD02" {
		t.Fatalf("file pods must replace defaults: %+v", cfg.Pods)
	}
	if len(cfg.Ports) != 1 || len(cfg.Ports[0].Leaves) != 2 || !cfg.Ports[0].NumericSignal {
		t.Fatalf("unexpected ports: %+v", cfg.Ports)
	}
	if cfg.Level() != slog.LevelDebug {
		t.Fatalf("expected debug level, got %s", cfg.Level())
	}
}

func TestLoadEnvSelectsFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "http_addr: \":9000\"\n")
	t.Setenv("DOORCTL_CONFIG", path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.HTTPAddr != ":9000" {
		t.Fatalf("expected http addr from file, got %q", cfg.HTTPAddr)
	}
	if len(cfg.Pods) != 1 || len(cfg.Ports) != 1 {
		t.Fatalf("file without doors keeps default doors")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "brokr:\n  host: x\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:      "empty broker host",
			mutate:    func(c *Config) { c.Broker.Host = " " },
			wantField: "broker.host",
		},
		{
			name:      "broker port out of range",
			mutate:    func(c *Config) { c.Broker.Port = 70000 },
			wantField: "broker.port",
		},
		{
			name:      "unknown backend",
			mutate:    func(c *Config) { c.GPIOBackend = "sysfs" },
			wantField: "gpio_backend",
		},
		{
			name:      "zero dwell",
			mutate:    func(c *Config) { c.Dwell = 0 },
			wantField: "dwell",
		},
		{
			name:      "no doors",
			mutate:    func(c *Config) { c.Pods, c.Ports = nil, nil },
			wantField: "doors",
		},
		{
			name:      "invalid pin",
			mutate:    func(c *Config) { c.Pods[0].ExpandPin = 40 },
			wantField: "pods[0].expand_pin",
		},
		{
			name:      "pin shared between doors",
			mutate:    func(c *Config) { c.Ports[0].Leaves[0].ExpandPin = 23 },
			wantField: "ports[0].leaves[0].expand_pin",
		},
		{
			name:      "missing zone",
			mutate:    func(c *Config) { c.Pods[0].Zone = "" },
			wantField: "pods[0].zone",
		},
		{
			name:      "addressable leaf not configured",
			mutate:    func(c *Config) { c.Ports[0].AddressableLeaves = []string{"B"} },
			wantField: "ports[0].addressable_leaves",
		},
		{
			name: "duplicate topic",
			mutate: func(c *Config) {
				c.Pods = append(c.Pods, PodConfig{ID: "TD01", Zone: "zone1", ExpandPin: 5, RetractPin: 6})
			},
			wantField: "pods[1]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if !strings.Contains(err.Error(), "invalid "+tt.wantField+":") {
				t.Fatalf("expected error for %s, got %v", tt.wantField, err)
			}
		})
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() error: %v", err)
	}
}

func TestLoadExampleConfig(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join("..", "..", "config", "doorctl.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(cfg.Ports) != 1 || len(cfg.Ports[0].Leaves) != 2 {
		t.Fatalf("expected port with two leaves, got %+v", cfg.Ports)
	}
	if cfg.DBPath != "/data/doorctl.db" {
		t.Fatalf("unexpected db path %q", cfg.DBPath)
	}
}
