// Package config loads static process configuration from an optional YAML
// file and environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/micro-ha/pod-door-controller/internal/gpio"
	"github.com/micro-ha/pod-door-controller/internal/model"
)

const (
	defaultBrokerHost = "localhost"
	defaultBrokerPort = 1884
	defaultClientID   = "pod-door-controller"
	defaultHTTPAddr   = ":8099"
	defaultDwell      = 2 * time.Second
	defaultQueueSize  = 64

	BackendPeriph    = "periph"
	BackendSimulated = "simulated"
)

// Config stores runtime settings. It is built once at startup and passed by
// value; nothing reloads it.
type Config struct {
	Broker      model.BrokerConfig `yaml:"broker"`
	GPIOBackend string             `yaml:"gpio_backend"`
	HTTPAddr    string             `yaml:"http_addr"`
	DBPath      string             `yaml:"db_path"`
	LogLevel    string             `yaml:"log_level"`
	LogFile     string             `yaml:"log_file"`
	Dwell       time.Duration      `yaml:"dwell"`
	QueueSize   int                `yaml:"queue_size"`
	Pods        []PodConfig        `yaml:"pods"`
	Ports       []PortConfig       `yaml:"ports"`
}

// PodConfig describes one pod door. Its topic is Zone followed by ID.
type PodConfig struct {
	ID         string `yaml:"id"`
	Zone       string `yaml:"zone"`
	ExpandPin  int    `yaml:"expand_pin"`
	RetractPin int    `yaml:"retract_pin"`
	FullTravel bool   `yaml:"full_travel"`
}

// PortConfig describes one port door and its leaves.
type PortConfig struct {
	ID                string       `yaml:"id"`
	Leaves            []LeafConfig `yaml:"leaves"`
	AddressableLeaves []string     `yaml:"addressable_leaves"`
	NumericSignal     bool         `yaml:"numeric_signal"`
}

// LeafConfig is one physical panel of a port door.
type LeafConfig struct {
	Name       string `yaml:"name"`
	ExpandPin  int    `yaml:"expand_pin"`
	RetractPin int    `yaml:"retract_pin"`
	FullTravel bool   `yaml:"full_travel"`
}

// ValidationError describes a user-supplied invalid value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "validation error"
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Default returns the stock deployment layout: one pod door and one port
// door with a single addressable leaf.
func Default() Config {
	cfg := base()
	cfg.Pods, cfg.Ports = defaultDoors()
	return cfg
}

func base() Config {
	return Config{
		Broker: model.BrokerConfig{
			Host:     defaultBrokerHost,
			Port:     defaultBrokerPort,
			ClientID: defaultClientID,
		},
		GPIOBackend: BackendPeriph,
		HTTPAddr:    defaultHTTPAddr,
		LogLevel:    "info",
		Dwell:       defaultDwell,
		QueueSize:   defaultQueueSize,
	}
}

func defaultDoors() ([]PodConfig, []PortConfig) {
	pods := []PodConfig{
		{ID: "TD01", Zone: "zone1", ExpandPin: 23, RetractPin: 24},
	}
	ports := []PortConfig{
		{
			ID:                "P01",
			Leaves:            []LeafConfig{{Name: "A", ExpandPin: 17, RetractPin: 27}},
			AddressableLeaves: []string{"A"},
		},
	}
	return pods, ports
}

// Load builds Config from defaults, the YAML file at path (optional) and
// environment variables, then validates it. An empty path falls back to
// DOORCTL_CONFIG. A file that defines no doors keeps the default doors.
func Load(path string) (Config, error) {
	cfg := base()
	if path == "" {
		path = getenv("DOORCTL_CONFIG", "")
	}
	if path != "" {
		if err := loadFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	if cfg.Pods == nil && cfg.Ports == nil {
		cfg.Pods, cfg.Ports = defaultDoors()
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Broker.Host = getenv("BROKER_HOST", cfg.Broker.Host)
	cfg.Broker.Port = parseInt("BROKER_PORT", cfg.Broker.Port)
	cfg.Broker.Username = getenv("BROKER_USERNAME", cfg.Broker.Username)
	cfg.Broker.Password = getenv("BROKER_PASSWORD", cfg.Broker.Password)
	cfg.Broker.ClientID = getenv("BROKER_CLIENT_ID", cfg.Broker.ClientID)
	cfg.GPIOBackend = getenv("GPIO_BACKEND", cfg.GPIOBackend)
	cfg.HTTPAddr = getenv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.DBPath = getenv("DB_PATH", cfg.DBPath)
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = getenv("LOG_FILE", cfg.LogFile)
	cfg.Dwell = parseDuration("DOOR_DWELL", cfg.Dwell)
}

// Validate checks the door layout and connection settings. Every problem is
// reported; each one is a *ValidationError.
func (c Config) Validate() error {
	var errs []error
	fail := func(field, reason string) {
		errs = append(errs, &ValidationError{Field: field, Reason: reason})
	}

	if strings.TrimSpace(c.Broker.Host) == "" {
		fail("broker.host", "is required")
	}
	if c.Broker.Port <= 0 || c.Broker.Port > 65535 {
		fail("broker.port", fmt.Sprintf("%d is out of range", c.Broker.Port))
	}
	if c.Broker.QoS > 2 {
		fail("broker.qos", "must be 0, 1 or 2")
	}
	switch c.GPIOBackend {
	case BackendPeriph, BackendSimulated:
	default:
		fail("gpio_backend", fmt.Sprintf("unknown backend %q", c.GPIOBackend))
	}
	if c.Dwell <= 0 {
		fail("dwell", "must be positive")
	}
	if c.QueueSize <= 0 {
		fail("queue_size", "must be positive")
	}
	if len(c.Pods) == 0 && len(c.Ports) == 0 {
		fail("doors", "at least one pod or port door is required")
	}

	pins := map[int]string{}
	claim := func(field string, pin int) {
		if !gpio.ValidPin(pin) {
			fail(field, fmt.Sprintf("%d is not a valid BCM pin", pin))
			return
		}
		if owner, taken := pins[pin]; taken {
			fail(field, fmt.Sprintf("pin %d already assigned to %s", pin, owner))
			return
		}
		pins[pin] = field
	}

	topics := map[string]string{}
	claimTopic := func(field, topic string) {
		if owner, taken := topics[topic]; taken {
			fail(field, fmt.Sprintf("topic %q already used by %s", topic, owner))
			return
		}
		topics[topic] = field
	}

	for i, pod := range c.Pods {
		prefix := "pods[" + strconv.Itoa(i) + "]"
		if strings.TrimSpace(pod.ID) == "" {
			fail(prefix+".id", "is required")
		}
		if strings.TrimSpace(pod.Zone) == "" {
			fail(prefix+".zone", "is required")
		}
		claimTopic(prefix, pod.Zone+pod.ID)
		claim(prefix+".expand_pin", pod.ExpandPin)
		claim(prefix+".retract_pin", pod.RetractPin)
	}

	for i, port := range c.Ports {
		prefix := "ports[" + strconv.Itoa(i) + "]"
		if strings.TrimSpace(port.ID) == "" {
			fail(prefix+".id", "is required")
		}
		claimTopic(prefix, port.ID+"portControl")
		if len(port.Leaves) == 0 {
			fail(prefix+".leaves", "at least one leaf is required")
		}
		names := map[string]bool{}
		for j, leaf := range port.Leaves {
			leafPrefix := prefix + ".leaves[" + strconv.Itoa(j) + "]"
			if strings.TrimSpace(leaf.Name) == "" {
				fail(leafPrefix+".name", "is required")
			} else if names[leaf.Name] {
				fail(leafPrefix+".name", fmt.Sprintf("duplicate leaf %q", leaf.Name))
			}
			names[leaf.Name] = true
			claim(leafPrefix+".expand_pin", leaf.ExpandPin)
			claim(leafPrefix+".retract_pin", leaf.RetractPin)
		}
		if len(port.AddressableLeaves) == 0 {
			fail(prefix+".addressable_leaves", "at least one leaf must be addressable")
		}
		for _, name := range port.AddressableLeaves {
			if !names[name] {
				fail(prefix+".addressable_leaves", fmt.Sprintf("leaf %q is not configured", name))
			}
		}
	}

	return errors.Join(errs...)
}

// Level returns the configured slog level.
func (c Config) Level() slog.Level {
	return parseLogLevel(c.LogLevel)
}

// DBDir returns the target directory for DBPath.
func (c Config) DBDir() string {
	return filepath.Dir(c.DBPath)
}

func getenv(key string, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func parseInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
