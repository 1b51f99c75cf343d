package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Run.Timeout != 30 {
		t.Errorf("expected default timeout 30, got %g", cfg.Run.Timeout)
	}
	if cfg.Run.Budget() != 30*time.Second {
		t.Errorf("expected default budget 30s, got %v", cfg.Run.Budget())
	}
	if cfg.Run.MaxDepth != 10000 {
		t.Errorf("expected default max_depth 10000, got %d", cfg.Run.MaxDepth)
	}
	if cfg.Emit.Dialect != "js" {
		t.Errorf("expected default dialect 'js', got %q", cfg.Emit.Dialect)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestInterpolateEnv(t *testing.T) {
	getenv := func(key string) string {
		switch key {
		case "KOTO_TIMEOUT":
			return "5"
		case "DATA_DIR":
			return "/srv/data"
		default:
			return ""
		}
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple substitution",
			input:    "timeout: ${KOTO_TIMEOUT}",
			expected: "timeout: 5",
		},
		{
			name:     "with default (env set)",
			input:    "timeout: ${KOTO_TIMEOUT:-30}",
			expected: "timeout: 5",
		},
		{
			name:     "with default (env not set)",
			input:    "dialect: ${UNSET_VAR:-py}",
			expected: "dialect: py",
		},
		{
			name:     "multiple substitutions",
			input:    "seed: ${DATA_DIR}/${KOTO_TIMEOUT}.yaml",
			expected: "seed: /srv/data/5.yaml",
		},
		{
			name:     "unset without default",
			input:    "seed: ${UNSET_VAR}",
			expected: "seed: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := string(interpolateEnv([]byte(tt.input), getenv))
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "koto.yaml")

	configContent := `
run:
  timeout: 2.5
  max_depth: 500
  stats: true

emit:
  dialect: py
  indent: 1

seed: ./data.yaml

repl:
  history: ""
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath, os.Getenv)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Run.Budget() != 2500*time.Millisecond {
		t.Errorf("expected budget 2.5s, got %v", cfg.Run.Budget())
	}
	if cfg.Run.MaxDepth != 500 || !cfg.Run.Stats {
		t.Errorf("unexpected run config %+v", cfg.Run)
	}
	if cfg.Emit.Dialect != "py" || cfg.Emit.Indent != 1 {
		t.Errorf("unexpected emit config %+v", cfg.Emit)
	}
	if expected := filepath.Join(dir, "data.yaml"); cfg.Seed != expected {
		t.Errorf("expected seed %q, got %q", expected, cfg.Seed)
	}
	if cfg.REPL.History != "" {
		t.Errorf("expected history disabled, got %q", cfg.REPL.History)
	}
	if cfg.BaseDir != dir {
		t.Errorf("expected base dir %q, got %q", dir, cfg.BaseDir)
	}
}

func TestLoadWithEnvInterpolation(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "koto.yaml")

	configContent := `
emit:
  dialect: ${KOTO_DIALECT:-js}
seed: ${SEED_FILE}
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	getenv := func(key string) string {
		switch key {
		case "KOTO_DIALECT":
			return "py"
		case "SEED_FILE":
			return "/tmp/scores.csv"
		}
		return ""
	}

	cfg, err := Load(configPath, getenv)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Emit.Dialect != "py" {
		t.Errorf("expected dialect 'py', got %q", cfg.Emit.Dialect)
	}
	if cfg.Seed != "/tmp/scores.csv" {
		t.Errorf("expected seed '/tmp/scores.csv', got %q", cfg.Seed)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "koto.yaml")
	if err := os.WriteFile(configPath, []byte("run:\n  stats: true\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath, os.Getenv)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Run.Timeout != 30 || cfg.Run.MaxDepth != 10000 || cfg.Emit.Dialect != "js" {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	t.Setenv("HOME", dir)

	cfg, path, err := LoadWithPath("", func(string) string { return "" })
	if err != nil {
		t.Fatalf("LoadWithPath failed: %v", err)
	}
	if path != "" {
		t.Errorf("expected no config path, got %q", path)
	}
	if cfg.Run.Timeout != 30 {
		t.Errorf("expected defaults, got %+v", cfg.Run)
	}
	if cfg.REPL.History != filepath.Join(dir, ".koto_history") {
		t.Errorf("expected history in home, got %q", cfg.REPL.History)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "koto.yaml")
	if err := os.WriteFile(configPath, []byte("run: [\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	if _, err := Load(configPath, os.Getenv); err == nil || !strings.Contains(err.Error(), "failed to parse config") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{"negative timeout", func(c *Config) { c.Run.Timeout = -1 }, "run.timeout"},
		{"zero max depth", func(c *Config) { c.Run.MaxDepth = 0 }, "run.max_depth"},
		{"unknown dialect", func(c *Config) { c.Emit.Dialect = "ruby" }, "emit.dialect"},
		{"negative indent", func(c *Config) { c.Emit.Indent = -2 }, "emit.indent"},
		{"bad seed extension", func(c *Config) { c.Seed = "data.json" }, "seed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("expected error containing %q, got %q", tt.errMsg, err)
			}
		})
	}
}

func TestResolveConfigPath(t *testing.T) {
	noenv := func(string) string { return "" }

	if _, err := resolveConfigPath("/nonexistent/path/koto.yaml", noenv); err == nil {
		t.Error("expected error for nonexistent path")
	}

	dir := t.TempDir()
	configPath := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(configPath, []byte(""), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	resolved, err := resolveConfigPath(configPath, noenv)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if resolved != configPath {
		t.Errorf("expected %q, got %q", configPath, resolved)
	}

	fromEnv := func(key string) string {
		if key == "KOTO_CONFIG" {
			return configPath
		}
		return ""
	}
	resolved, err = resolveConfigPath("", fromEnv)
	if err != nil || resolved != configPath {
		t.Errorf("KOTO_CONFIG: got %q, %v", resolved, err)
	}

	missingEnv := func(string) string { return "/nonexistent/koto.yaml" }
	if _, err := resolveConfigPath("", missingEnv); err == nil {
		t.Error("expected error for missing KOTO_CONFIG file")
	}
}
