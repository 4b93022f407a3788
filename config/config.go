// Package config loads agent configuration from a YAML file.
//
// The file is the single source of truth. The only expansion performed is ${VAR} and
// ${VAR:-default} in path-like fields, so one file can be shared across machines.
//
//	agent_id: support
//	state_dir: ${HOME}/.agentcore/state
//	log:
//	  level: debug
//	checkpoint:
//	  store: sqlite
//	  dsn: ${STATE_DIR}/checkpoints.db
//	  timeout: 10m
//	  auto_approve: [draft_outline]
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rickchristie/agentcore/checkpoint"
	"github.com/rickchristie/agentcore/statestore"
)

// Checkpoint store kinds.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config is the file configuration for one agent process.
type Config struct {
	// AgentID identifies the agent. Required.
	AgentID string `yaml:"agent_id"`

	// StateDir holds persisted session documents.
	StateDir string `yaml:"state_dir"`

	// PauseReasons are the interrupt reasons that pause a run.
	PauseReasons []string `yaml:"pause_reasons"`

	Log        LogConfig        `yaml:"log"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Model      ModelConfig      `yaml:"model"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default: info
	Level string `yaml:"level"`

	// Format is text or json. Default: text
	Format string `yaml:"format"`

	// DumpPayloads writes step inputs and outputs as YAML to stderr.
	DumpPayloads bool `yaml:"dump_payloads"`
}

// CheckpointConfig configures human approval checkpoints.
type CheckpointConfig struct {
	// Store is memory or sqlite. Default: memory
	Store string `yaml:"store"`

	// DSN is the SQLite database path. Required when Store is sqlite.
	DSN string `yaml:"dsn"`

	// Timeout bounds how long a checkpoint waits. Zero waits indefinitely.
	Timeout time.Duration `yaml:"timeout"`

	// PollInterval re-reads the store while waiting, for decisions made by other
	// processes. Default: 1s
	PollInterval time.Duration `yaml:"poll_interval"`

	// AutoApprove lists checkpoint names approved without waiting.
	AutoApprove []string `yaml:"auto_approve"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP/HTTP collector host:port. Default: localhost:4318
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure"`

	// ServiceName is reported as service.name. Default: agentcore
	ServiceName string `yaml:"service_name"`
}

// ModelConfig selects the language model used by generation steps.
type ModelConfig struct {
	// Provider is openai or echo. echo repeats the prompt and needs no credentials.
	// Default: echo
	Provider string `yaml:"provider"`

	// Name is the provider's model name.
	Name string `yaml:"name"`

	// BaseURL points an OpenAI-compatible provider at another host.
	BaseURL string `yaml:"base_url"`

	// TokenEnv names the environment variable holding the API token.
	// Default: OPENAI_API_KEY
	TokenEnv string `yaml:"token_env"`
}

// Default returns the configuration every file is merged into.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		StateDir:     filepath.Join(homeDir, ".agentcore", "state"),
		PauseReasons: []string{statestore.DefaultPauseReason},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Checkpoint: CheckpointConfig{
			Store:        StoreMemory,
			PollInterval: time.Second,
		},
		Tracing: TracingConfig{
			Endpoint:    "localhost:4318",
			ServiceName: "agentcore",
		},
		Model: ModelConfig{
			Provider: "echo",
			TokenEnv: "OPENAI_API_KEY",
		},
	}
}

// LoadFile reads and validates the configuration at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over Default, expands variables and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns. STATE_DIR refers to
// the expanded state directory.
func (c *Config) expandVariables() {
	vars := map[string]string{"HOME": os.Getenv("HOME")}

	c.StateDir = expandVars(c.StateDir, vars)
	vars["STATE_DIR"] = c.StateDir
	c.Checkpoint.DSN = expandVars(c.Checkpoint.DSN, vars)
	c.Tracing.Endpoint = expandVars(c.Tracing.Endpoint, vars)
	c.Model.BaseURL = expandVars(c.Model.BaseURL, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, fallback := parts[1], parts[2]

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return fallback
	})
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	if c.AgentID == "" {
		errs = append(errs, errors.New("agent_id is required"))
	}
	if c.StateDir == "" {
		errs = append(errs, errors.New("state_dir is required"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if !slices.Contains([]string{"text", "json"}, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}

	switch c.Checkpoint.Store {
	case StoreMemory:
	case StoreSQLite:
		if c.Checkpoint.DSN == "" {
			errs = append(errs, errors.New("checkpoint.dsn is required for the sqlite store"))
		}
	default:
		errs = append(errs, fmt.Errorf("checkpoint.store: unknown store %q", c.Checkpoint.Store))
	}
	if c.Checkpoint.Timeout < 0 {
		errs = append(errs, errors.New("checkpoint.timeout must not be negative"))
	}
	if c.Checkpoint.PollInterval < 0 {
		errs = append(errs, errors.New("checkpoint.poll_interval must not be negative"))
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		errs = append(errs, errors.New("tracing.endpoint is required when tracing is enabled"))
	}

	switch c.Model.Provider {
	case "echo":
	case "openai":
		if c.Model.TokenEnv == "" {
			errs = append(errs, errors.New("model.token_env is required for the openai provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("model.provider: unknown provider %q", c.Model.Provider))
	}

	return errors.Join(errs...)
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.Log.Level)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// OpenCheckpointStore opens the configured checkpoint store. The returned close
// function releases it and is never nil.
func (c *Config) OpenCheckpointStore() (checkpoint.Store, func() error, error) {
	if c.Checkpoint.Store != StoreSQLite {
		return checkpoint.NewMemoryStore(), func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(c.Checkpoint.DSN), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create checkpoint store dir: %w", err)
	}
	store, err := checkpoint.NewSQLiteStore(c.Checkpoint.DSN)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

// CheckpointManagerConfig maps the checkpoint section onto checkpoint.Config. The
// caller supplies the store and any notifier.
func (c *Config) CheckpointManagerConfig(store checkpoint.Store, logger *slog.Logger) checkpoint.Config {
	return checkpoint.Config{
		Store:        store,
		Timeout:      c.Checkpoint.Timeout,
		PollInterval: c.Checkpoint.PollInterval,
		AutoApprove:  slices.Clone(c.Checkpoint.AutoApprove),
		Logger:       logger,
	}
}

// OpenStateStore creates the session state manager rooted at StateDir.
func (c *Config) OpenStateStore(logger *slog.Logger) (*statestore.Manager, error) {
	return statestore.New(c.StateDir,
		statestore.WithPauseReasons(c.PauseReasons...),
		statestore.WithLogger(logger),
	)
}
