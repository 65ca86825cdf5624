// Package config loads the pipeline configuration from a YAML file.
// Unknown keys are rejected so typos fail at startup, not in production
// behavior.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "2500ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Bus configures the Pub/Sub topic the batches travel on.
type Bus struct {
	Project      string `yaml:"project"`
	Topic        string `yaml:"topic"`
	Subscription string `yaml:"subscription"`
}

// Redis configures the correlation store connection.
type Redis struct {
	Addr     string `yaml:"addr"`
	DB       int    `yaml:"db"`
	Password string `yaml:"password"`
}

// Database configures the MySQL connection.
type Database struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// Worker configures the consumer loop.
type Worker struct {
	// StaleAfter is the age past which a pulled message is shed without
	// executing: its producer has already given up waiting.
	StaleAfter Duration `yaml:"stale_after"`

	// ResultTTL bounds the result envelope's lifetime in the store.
	ResultTTL Duration `yaml:"result_ttl"`

	// Atomic rolls the whole batch back on the first statement error
	// instead of the default skip-and-continue policy.
	Atomic bool `yaml:"atomic"`

	// WarnEvery rate-limits the no-message warning.
	WarnEvery Duration `yaml:"warn_every"`
}

// Builder configures statement generation.
type Builder struct {
	// Strict drops non-schema fields instead of passing them through.
	Strict bool `yaml:"strict"`
}

// Poll configures the producer's wait for a correlated result.
type Poll struct {
	InitialWait Duration `yaml:"initial_wait"`
	Multiplier  float64  `yaml:"multiplier"`
	MaxWait     Duration `yaml:"max_wait"`
	Deadline    Duration `yaml:"deadline"`
}

// Slow configures slow-call reporting.
type Slow struct {
	Threshold Duration `yaml:"threshold"`
	LogPath   string   `yaml:"log_path"`
}

// Log configures the process logger. Both fields are optional; flags
// set the level when Level is empty, and output defaults to stderr.
type Log struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// Config is the root configuration.
type Config struct {
	ServerID string   `yaml:"server_id"`
	Bus      Bus      `yaml:"bus"`
	Redis    Redis    `yaml:"redis"`
	Database Database `yaml:"database"`
	Worker   Worker   `yaml:"worker"`
	Builder  Builder  `yaml:"builder"`
	Poll     Poll     `yaml:"poll"`
	Slow     Slow     `yaml:"slow"`
	Log      Log      `yaml:"log"`
}

// Default returns the configuration used when a field is not set.
func Default() Config {
	return Config{
		Bus: Bus{
			Topic:        "queriestoprocess",
			Subscription: "dbworkersub",
		},
		Redis: Redis{
			Addr: "127.0.0.1:6379",
		},
		Database: Database{
			Host: "127.0.0.1",
			Port: 3306,
			Name: "pipeline",
		},
		Worker: Worker{
			StaleAfter: Duration(30 * time.Second),
			ResultTTL:  Duration(30 * time.Second),
			WarnEvery:  Duration(10 * time.Second),
		},
		Poll: Poll{
			InitialWait: Duration(100 * time.Millisecond),
			Multiplier:  2,
			MaxWait:     Duration(2500 * time.Millisecond),
			Deadline:    Duration(30 * time.Second),
		},
		Slow: Slow{
			Threshold: Duration(10 * time.Second),
		},
	}
}

// Load reads path and overlays it on the defaults. Unknown fields are
// an error.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the fields no component can default sensibly.
func (c Config) Validate() error {
	if c.ServerID == "" {
		return fmt.Errorf("server_id is required")
	}
	if c.Bus.Project == "" {
		return fmt.Errorf("bus.project is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if c.Poll.Multiplier < 1 {
		return fmt.Errorf("poll.multiplier must be >= 1, got %v", c.Poll.Multiplier)
	}
	if c.Poll.InitialWait <= 0 || c.Poll.MaxWait <= 0 || c.Poll.Deadline <= 0 {
		return fmt.Errorf("poll waits and deadline must be positive")
	}
	if c.Worker.StaleAfter <= 0 || c.Worker.ResultTTL <= 0 {
		return fmt.Errorf("worker.stale_after and worker.result_ttl must be positive")
	}
	return nil
}
