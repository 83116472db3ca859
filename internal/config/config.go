package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

const DefaultPath = "config.yml"

var ErrInvalid = errors.New("invalid configuration")

// FieldError names the configuration key that failed validation.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrInvalid }

type Analysis struct {
	Depth     int     `yaml:"depth"`
	Lines     int     `yaml:"lines"`
	Threshold float64 `yaml:"threshold"`
	Ratio     float64 `yaml:"ratio"`
	Threads   int     `yaml:"threads"`
	HashMB    int     `yaml:"hash_mb"`
}

type History struct {
	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`
}

type Config struct {
	MyBook             string   `yaml:"my_book"`
	OppBook            string   `yaml:"opp_book"`
	Engine             string   `yaml:"engine"`
	UseLines           bool     `yaml:"use_lines"`
	Lines              []string `yaml:"lines"`
	KnownLines         string   `yaml:"known_lines"`
	OpeningStyles      string   `yaml:"opening_styles"`
	Analysis           Analysis `yaml:"analysis"`
	DeviationThreshold int      `yaml:"deviation_threshold"`
	BoardImage         string   `yaml:"board_image"`
	History            History  `yaml:"history"`
}

// Default returns the configuration used for keys absent from the file.
func Default() Config {
	return Config{
		Analysis: Analysis{
			Depth:     20,
			Lines:     3,
			Threshold: 0.4,
			Ratio:     0.70,
			Threads:   1,
			HashMB:    64,
		},
		DeviationThreshold: 60,
	}
}

// PathFromEnv resolves the config file location.
func PathFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("OPENING_PREP_CONFIG")); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads path, applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode parses YAML on top of Default. Unknown keys are rejected.
func Decode(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if len(bytes.TrimSpace(raw)) == 0 {
		return &cfg, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("OPENING_PREP_ENGINE")); v != "" {
		cfg.Engine = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENING_PREP_BOARD_IMAGE")); v != "" {
		cfg.BoardImage = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.History.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.History.DatabaseURL = v
	}
}

// Validate reports the first failing field.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.MyBook) == "":
		return &FieldError{Field: "my_book", Reason: "is required"}
	case strings.TrimSpace(c.OppBook) == "":
		return &FieldError{Field: "opp_book", Reason: "is required"}
	case c.Analysis.Depth <= 0:
		return &FieldError{Field: "analysis.depth", Reason: fmt.Sprintf("must be > 0, got %d", c.Analysis.Depth)}
	case c.Analysis.Lines < 1 || c.Analysis.Lines > 8:
		return &FieldError{Field: "analysis.lines", Reason: fmt.Sprintf("must be within 1..8, got %d", c.Analysis.Lines)}
	case c.Analysis.Threshold <= 0:
		return &FieldError{Field: "analysis.threshold", Reason: "must be > 0"}
	case c.Analysis.Ratio <= 0 || c.Analysis.Ratio > 1:
		return &FieldError{Field: "analysis.ratio", Reason: "must be within (0, 1]"}
	case c.Analysis.Threads < 0:
		return &FieldError{Field: "analysis.threads", Reason: "must not be negative"}
	case c.Analysis.HashMB <= 0:
		return &FieldError{Field: "analysis.hash_mb", Reason: "must be > 0"}
	case c.DeviationThreshold < 0:
		return &FieldError{Field: "deviation_threshold", Reason: "must not be negative"}
	case c.History.RedisURL != "" && c.History.DatabaseURL != "":
		return &FieldError{Field: "history", Reason: "set only one of redis_url and database_url"}
	}
	return nil
}

// AnalysisEnabled reports whether an engine path is configured.
func (c *Config) AnalysisEnabled() bool {
	return strings.TrimSpace(c.Engine) != ""
}
