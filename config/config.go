// Package config handles agencyd configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from --config flag) is checked first.
// Then: ./agency.yaml, ~/.config/agency/agency.yaml, /etc/agency/agency.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"agency.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "agency", "agency.yaml"))
	}

	paths = append(paths, "/etc/agency/agency.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all agencyd configuration.
type Config struct {
	Listen    ListenConfig   `yaml:"listen"`
	Model     ModelConfig    `yaml:"model"`
	Turn      TurnConfig     `yaml:"turn"`
	Shell     ShellConfig    `yaml:"shell"`
	Snapshots SnapshotConfig `yaml:"snapshots"`
	Agents    []AgentConfig  `yaml:"agents"`
	LogLevel  string         `yaml:"log_level"`
	LogFormat string         `yaml:"log_format"` // json or text
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// Addr returns the host:port string for the HTTP listener.
func (l ListenConfig) Addr() string {
	return fmt.Sprintf("%s:%d", l.Address, l.Port)
}

// ModelConfig selects and configures the reasoning backend.
type ModelConfig struct {
	// Provider is one of anthropic, openai or mock.
	Provider string `yaml:"provider"`
	// Name is the provider-specific model identifier.
	Name string `yaml:"name"`
	// APIKey overrides the provider's environment variable lookup.
	APIKey string `yaml:"api_key"`
}

// TurnConfig tunes per-agent turn processing.
type TurnConfig struct {
	// MaxSteps caps model generations in one turn (default 10).
	MaxSteps int `yaml:"max_steps"`
	// MaxAttempts caps retries of a failing generation (default 3).
	MaxAttempts int `yaml:"max_attempts"`
	// BaseDelayMS is the initial retry backoff in milliseconds (default 500).
	BaseDelayMS int `yaml:"base_delay_ms"`
	// ToolTimeoutSec bounds one tool invocation in seconds (default 60).
	ToolTimeoutSec int `yaml:"tool_timeout_sec"`
}

// BaseDelay returns the backoff base as a duration.
func (t TurnConfig) BaseDelay() time.Duration {
	return time.Duration(t.BaseDelayMS) * time.Millisecond
}

// ToolTimeout returns the tool bound as a duration.
func (t TurnConfig) ToolTimeout() time.Duration {
	return time.Duration(t.ToolTimeoutSec) * time.Second
}

// ShellConfig defines shell execution capabilities for agents.
type ShellConfig struct {
	// Enabled allows shell command execution. Disabled by default for safety.
	Enabled bool `yaml:"enabled"`
	// WorkingDir sets the default working directory for commands.
	WorkingDir string `yaml:"working_dir"`
	// DeniedPatterns are command patterns to block (e.g., "rm -rf /").
	DeniedPatterns []string `yaml:"denied_patterns"`
	// AllowedPrefixes limits commands to those starting with these prefixes.
	// Empty means all commands are allowed (subject to denied patterns).
	AllowedPrefixes []string `yaml:"allowed_prefixes"`
	// DefaultTimeoutSec is the default timeout in seconds (default 30).
	DefaultTimeoutSec int `yaml:"default_timeout_sec"`
}

// SnapshotConfig selects where agency snapshots are persisted.
type SnapshotConfig struct {
	// Backend is "file" or "sqlite".
	Backend string `yaml:"backend"`
	// Dir is the snapshot directory for the file backend.
	Dir string `yaml:"dir"`
	// Path is the database file for the sqlite backend.
	Path string `yaml:"path"`
}

// AgentConfig describes one agent in the initial roster.
type AgentConfig struct {
	Name        string `yaml:"name"`
	Instruction string `yaml:"instruction"`
}

// Load reads configuration from a YAML file, expanding environment variables
// so secrets can be referenced as ${ANTHROPIC_API_KEY}.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a configuration suitable for local development: mock
// backend, file snapshots, one assistant agent.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Port: 8080},
		Model: ModelConfig{
			Provider: "mock",
			Name:     "mock-model",
		},
		Turn: TurnConfig{
			MaxSteps:       10,
			MaxAttempts:    3,
			BaseDelayMS:    500,
			ToolTimeoutSec: 60,
		},
		Snapshots: SnapshotConfig{
			Backend: "file",
			Dir:     "snapshots",
			Path:    "snapshots.db",
		},
		Agents: []AgentConfig{
			{Name: "Assistant", Instruction: "You are a helpful AI assistant."},
		},
		LogLevel:  "info",
		LogFormat: "json",
	}
}
