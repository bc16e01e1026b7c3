package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for SafeShell.
type Config struct {
	Shell       ShellConfig       `mapstructure:"shell" yaml:"shell"`
	Translation TranslationConfig `mapstructure:"translation" yaml:"translation"`
	Safety      SafetyConfig      `mapstructure:"safety" yaml:"safety"`
	AI          AIConfig          `mapstructure:"ai" yaml:"ai"`
	Exec        ExecConfig        `mapstructure:"exec" yaml:"exec"`
	History     HistoryConfig     `mapstructure:"history" yaml:"history"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
}

// ShellConfig controls target shell selection.
type ShellConfig struct {
	// Preferred pins the target shell ("pwsh", "powershell", "cmd", "bash",
	// "zsh", "sh"). Empty means probe and pick the best available.
	Preferred string `mapstructure:"preferred" yaml:"preferred"`
	// ProbeTimeout bounds each capability probe.
	ProbeTimeout time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
}

// TranslationConfig controls cross-platform alias translation.
type TranslationConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// AliasesPath points to the user alias table; entries there win over the
	// built-in table on collision.
	AliasesPath string `mapstructure:"aliases_path" yaml:"aliases_path"`
}

// SafetyConfig controls tier assignment.
type SafetyConfig struct {
	// TiersPath points to the user tier override table.
	TiersPath string `mapstructure:"tiers_path" yaml:"tiers_path"`
	// CorrectionEnabled toggles the advisory nearest-command suggestion for
	// tier 2 commands.
	CorrectionEnabled bool `mapstructure:"correction_enabled" yaml:"correction_enabled"`
}

// AIConfig configures the translation and validation collaborators.
type AIConfig struct {
	// Provider selects the backend: "ollama" or "openai".
	Provider string `mapstructure:"provider" yaml:"provider"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	Model    string `mapstructure:"model" yaml:"model"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key"`
	// TranslateTimeout bounds the natural-language translation round trip.
	TranslateTimeout time.Duration `mapstructure:"translate_timeout" yaml:"translate_timeout"`
	// ValidateTimeout bounds the tier-3 validation round trip. On expiry the
	// command is denied.
	ValidateTimeout time.Duration `mapstructure:"validate_timeout" yaml:"validate_timeout"`
	// MinConfidence rejects natural-language translations the model itself
	// is unsure about.
	MinConfidence float64 `mapstructure:"min_confidence" yaml:"min_confidence"`
}

// ExecConfig configures subprocess execution.
type ExecConfig struct {
	// Timeout is the mandatory per-command execution bound.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// MaxOutputBytes caps captured stdout/stderr per stream.
	MaxOutputBytes int `mapstructure:"max_output_bytes" yaml:"max_output_bytes"`
}

// HistoryConfig configures the invocation history store.
type HistoryConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// DataDir holds history.db. Defaults to the SafeShell data directory.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
	// RetentionDays prunes records older than this on startup. Zero keeps
	// everything.
	RetentionDays int `mapstructure:"retention_days" yaml:"retention_days"`
}

// LoggingConfig configures session logging.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	// Dir receives one timestamped log file per session.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Shell: ShellConfig{
			Preferred:    "",
			ProbeTimeout: 3 * time.Second,
		},
		Translation: TranslationConfig{
			Enabled:     true,
			AliasesPath: "~/.safeshell/aliases.yaml",
		},
		Safety: SafetyConfig{
			TiersPath:         "~/.safeshell/tiers.yaml",
			CorrectionEnabled: true,
		},
		AI: AIConfig{
			Provider:         "ollama",
			Endpoint:         "http://127.0.0.1:11434",
			Model:            "llama3.2",
			TranslateTimeout: 15 * time.Second,
			ValidateTimeout:  10 * time.Second,
			MinConfidence:    0.7,
		},
		Exec: ExecConfig{
			Timeout:        30 * time.Second,
			MaxOutputBytes: 1 << 20, // 1 MiB per stream
		},
		History: HistoryConfig{
			Enabled:       true,
			DataDir:       "~/.safeshell",
			RetentionDays: 90,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "~/.safeshell/logs",
		},
	}
}

// Load reads configuration from the default location (~/.safeshell/config.yaml),
// creating it with defaults if missing.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".safeshell", "config.yaml")
	return LoadFromPath(configPath)
}

// LoadFromPath reads configuration from a specific file path and merges with
// environment variables. If the file doesn't exist, it creates one with
// default values.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := writeConfigFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}

	// Environment overrides use the SAFESHELL prefix, e.g.
	// SAFESHELL_AI_ENDPOINT or SAFESHELL_EXEC_TIMEOUT.
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SAFESHELL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Translation.AliasesPath = expandPath(cfg.Translation.AliasesPath)
	cfg.Safety.TiersPath = expandPath(cfg.Safety.TiersPath)
	cfg.History.DataDir = expandPath(cfg.History.DataDir)
	cfg.Logging.Dir = expandPath(cfg.Logging.Dir)

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults fills zero values that would otherwise disable mandatory
// bounds. Execution and collaborator timeouts must never be unlimited.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.Exec.Timeout <= 0 {
		c.Exec.Timeout = defaults.Exec.Timeout
	}
	if c.Exec.MaxOutputBytes <= 0 {
		c.Exec.MaxOutputBytes = defaults.Exec.MaxOutputBytes
	}
	if c.Shell.ProbeTimeout <= 0 {
		c.Shell.ProbeTimeout = defaults.Shell.ProbeTimeout
	}
	if c.AI.TranslateTimeout <= 0 {
		c.AI.TranslateTimeout = defaults.AI.TranslateTimeout
	}
	if c.AI.ValidateTimeout <= 0 {
		c.AI.ValidateTimeout = defaults.AI.ValidateTimeout
	}
	if c.AI.MinConfidence <= 0 {
		c.AI.MinConfidence = defaults.AI.MinConfidence
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = expandPath(defaults.Logging.Dir)
	}
	if c.History.DataDir == "" {
		c.History.DataDir = expandPath(defaults.History.DataDir)
	}
}

// Save writes the configuration to the default location.
func (c *Config) Save() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".safeshell", "config.yaml")
	return c.SaveToPath(configPath)
}

// SaveToPath writes the current configuration to a specific file path.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return writeConfigFile(path, c)
}

// DataDir returns the SafeShell data directory path (~/.safeshell).
func DataDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".safeshell")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.yaml")
}

// EnsureDirectories creates all directories SafeShell writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		DataDir(),
		c.Logging.Dir,
		c.History.DataDir,
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// Validate checks the configuration for common errors and inconsistencies.
func (c *Config) Validate() error {
	validShells := map[string]bool{
		"": true, "pwsh": true, "powershell": true, "cmd": true,
		"bash": true, "zsh": true, "sh": true,
	}
	if !validShells[c.Shell.Preferred] {
		return fmt.Errorf("invalid shell.preferred '%s', must be one of: pwsh, powershell, cmd, bash, zsh, sh", c.Shell.Preferred)
	}

	validProviders := map[string]bool{"ollama": true, "openai": true}
	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("invalid ai.provider '%s', must be 'ollama' or 'openai'", c.AI.Provider)
	}

	if c.AI.MinConfidence < 0 || c.AI.MinConfidence > 1 {
		return fmt.Errorf("ai.min_confidence must be between 0 and 1, got %v", c.AI.MinConfidence)
	}

	if c.Exec.Timeout <= 0 {
		return fmt.Errorf("exec.timeout must be positive")
	}

	if c.History.RetentionDays < 0 {
		return fmt.Errorf("history.retention_days cannot be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level '%s', must be one of: debug, info, warn, error", c.Logging.Level)
	}

	return nil
}

// writeConfigFile writes a Config struct to a YAML file.
// Uses gopkg.in/yaml.v3 directly to ensure proper tag-based serialization.
func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// expandPath expands ~ to the user's home directory in a path string.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
