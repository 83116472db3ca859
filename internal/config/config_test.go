package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OPENING_PREP_CONFIG", "OPENING_PREP_ENGINE", "OPENING_PREP_BOARD_IMAGE", "REDIS_URL", "DATABASE_URL"} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
my_book: books/mine.bin
opp_book: books/theirs.bin
use_lines: true
lines:
  - "$gambit e4 e5 f4 [w]"
  - queens gambit
known_lines: lines.yml
opening_styles: styles.yml
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Analysis.Depth != 20 || cfg.Analysis.Lines != 3 || cfg.Analysis.Threshold != 0.4 || cfg.Analysis.Ratio != 0.70 {
		t.Fatalf("analysis defaults not applied: %+v", cfg.Analysis)
	}
	if cfg.DeviationThreshold != 60 {
		t.Fatalf("deviation threshold: %d", cfg.DeviationThreshold)
	}
	if cfg.KnownLines != "lines.yml" || cfg.OpeningStyles != "styles.yml" {
		t.Fatalf("paths: %q %q", cfg.KnownLines, cfg.OpeningStyles)
	}
	if !cfg.UseLines || len(cfg.Lines) != 2 || cfg.AnalysisEnabled() {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "my_book: a.bin\nopp_book: b.bin\nmy_bok: typo\n")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "my_bok") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
}

func TestLoadSyntaxError(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "my_book: [unterminated\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected syntax error")
	}
}

func TestValidateMissingBooks(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	var fe *FieldError
	if !errors.As(err, &fe) || fe.Field != "my_book" {
		t.Fatalf("expected my_book field error, got %v", err)
	}
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("field error should wrap ErrInvalid")
	}

	cfg.MyBook = "a.bin"
	if err := cfg.Validate(); !errors.As(err, &fe) || fe.Field != "opp_book" {
		t.Fatalf("expected opp_book field error, got %v", err)
	}
}

func TestValidateRanges(t *testing.T) {
	cases := []struct {
		field  string
		mutate func(*Config)
	}{
		{"analysis.depth", func(c *Config) { c.Analysis.Depth = 0 }},
		{"analysis.lines", func(c *Config) { c.Analysis.Lines = 9 }},
		{"analysis.threshold", func(c *Config) { c.Analysis.Threshold = 0 }},
		{"analysis.ratio", func(c *Config) { c.Analysis.Ratio = 1.5 }},
		{"analysis.hash_mb", func(c *Config) { c.Analysis.HashMB = 0 }},
		{"deviation_threshold", func(c *Config) { c.DeviationThreshold = -1 }},
		{"history", func(c *Config) { c.History = History{RedisURL: "redis://x", DatabaseURL: "postgres://y"} }},
	}
	for _, tc := range cases {
		cfg := Default()
		cfg.MyBook, cfg.OppBook = "a.bin", "b.bin"
		tc.mutate(&cfg)
		var fe *FieldError
		if err := cfg.Validate(); !errors.As(err, &fe) || fe.Field != tc.field {
			t.Fatalf("%s: got %v", tc.field, err)
		}
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "my_book: a.bin\nopp_book: b.bin\n")
	t.Setenv("OPENING_PREP_CONFIG", path)
	t.Setenv("OPENING_PREP_ENGINE", "/usr/bin/stockfish")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	if PathFromEnv() != path {
		t.Fatalf("PathFromEnv: %q", PathFromEnv())
	}
	cfg, err := Load(PathFromEnv())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine != "/usr/bin/stockfish" || !cfg.AnalysisEnabled() {
		t.Fatalf("engine override: %q", cfg.Engine)
	}
	if cfg.History.RedisURL != "redis://localhost:6379/0" {
		t.Fatalf("redis override: %q", cfg.History.RedisURL)
	}
}

func TestPathFromEnvDefault(t *testing.T) {
	clearEnv(t)
	if PathFromEnv() != DefaultPath {
		t.Fatalf("default path: %q", PathFromEnv())
	}
}
