package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Shell.Preferred != "" {
		t.Errorf("expected empty preferred shell (probe), got '%s'", cfg.Shell.Preferred)
	}

	if !cfg.Translation.Enabled {
		t.Error("expected translation enabled by default")
	}

	if cfg.AI.Provider != "ollama" {
		t.Errorf("expected default provider 'ollama', got '%s'", cfg.AI.Provider)
	}

	if cfg.AI.Endpoint != "http://127.0.0.1:11434" {
		t.Errorf("expected ollama endpoint 'http://127.0.0.1:11434', got '%s'", cfg.AI.Endpoint)
	}

	if cfg.AI.MinConfidence != 0.7 {
		t.Errorf("expected min confidence 0.7, got %v", cfg.AI.MinConfidence)
	}

	if cfg.Exec.Timeout != 30*time.Second {
		t.Errorf("expected 30s exec timeout, got %v", cfg.Exec.Timeout)
	}

	if !cfg.History.Enabled {
		t.Error("expected history enabled by default")
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got '%s'", cfg.Logging.Level)
	}
}

func TestLoadFromPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, ".safeshell", "config.yaml")

	t.Run("creates default config when missing", func(t *testing.T) {
		cfg, err := LoadFromPath(configPath)
		if err != nil {
			t.Fatalf("LoadFromPath failed: %v", err)
		}

		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			t.Error("config file was not created")
		}

		if cfg.AI.Provider != "ollama" {
			t.Errorf("expected default provider, got '%s'", cfg.AI.Provider)
		}
	})

	t.Run("reads existing values", func(t *testing.T) {
		content := `
shell:
  preferred: bash
ai:
  provider: openai
  endpoint: https://api.example.com/v1
  model: gpt-4o-mini
exec:
  timeout: 45s
logging:
  level: debug
`
		path := filepath.Join(tempDir, "custom.yaml")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}

		cfg, err := LoadFromPath(path)
		if err != nil {
			t.Fatalf("LoadFromPath failed: %v", err)
		}

		if cfg.Shell.Preferred != "bash" {
			t.Errorf("expected preferred shell 'bash', got '%s'", cfg.Shell.Preferred)
		}
		if cfg.AI.Provider != "openai" {
			t.Errorf("expected provider 'openai', got '%s'", cfg.AI.Provider)
		}
		if cfg.Exec.Timeout != 45*time.Second {
			t.Errorf("expected 45s timeout, got %v", cfg.Exec.Timeout)
		}
		if cfg.Logging.Level != "debug" {
			t.Errorf("expected level 'debug', got '%s'", cfg.Logging.Level)
		}
	})

	t.Run("zero timeouts restored to defaults", func(t *testing.T) {
		content := `
exec:
  timeout: 0s
ai:
  provider: ollama
`
		path := filepath.Join(tempDir, "zeroes.yaml")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}

		cfg, err := LoadFromPath(path)
		if err != nil {
			t.Fatalf("LoadFromPath failed: %v", err)
		}

		if cfg.Exec.Timeout != 30*time.Second {
			t.Errorf("zero timeout should fall back to default, got %v", cfg.Exec.Timeout)
		}
		if cfg.AI.ValidateTimeout != 10*time.Second {
			t.Errorf("missing validate timeout should default, got %v", cfg.AI.ValidateTimeout)
		}
	})
}

func TestSaveToPath(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "saved.yaml")

	cfg := Default()
	cfg.Shell.Preferred = "zsh"

	if err := cfg.SaveToPath(path); err != nil {
		t.Fatalf("SaveToPath failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved config: %v", err)
	}

	if !strings.Contains(string(data), "preferred: zsh") {
		t.Errorf("saved config missing preferred shell, got:\n%s", data)
	}

	// Round-trip through LoadFromPath.
	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if loaded.Shell.Preferred != "zsh" {
		t.Errorf("round-trip lost preferred shell, got '%s'", loaded.Shell.Preferred)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "default is valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "bad preferred shell",
			mutate:  func(c *Config) { c.Shell.Preferred = "fish" },
			wantErr: "shell.preferred",
		},
		{
			name:    "bad provider",
			mutate:  func(c *Config) { c.AI.Provider = "other" },
			wantErr: "ai.provider",
		},
		{
			name:    "confidence out of range",
			mutate:  func(c *Config) { c.AI.MinConfidence = 1.5 },
			wantErr: "min_confidence",
		},
		{
			name:    "non-positive exec timeout",
			mutate:  func(c *Config) { c.Exec.Timeout = 0 },
			wantErr: "exec.timeout",
		},
		{
			name:    "negative retention",
			mutate:  func(c *Config) { c.History.RetentionDays = -1 },
			wantErr: "retention_days",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "trace" },
			wantErr: "log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory available")
	}

	got := expandPath("~/.safeshell/aliases.yaml")
	want := filepath.Join(home, ".safeshell", "aliases.yaml")
	if got != want {
		t.Errorf("expandPath = %q, want %q", got, want)
	}

	if got := expandPath("/absolute/path"); got != "/absolute/path" {
		t.Errorf("absolute path should be unchanged, got %q", got)
	}
}
