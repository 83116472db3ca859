package obslog

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesJSONToConsoleSink(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := New(Options{Level: "debug", Format: "json", Console: true, Stderr: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("session_end")
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !strings.Contains(buf.String(), `"msg":"session_end"`) {
		t.Fatalf("missing json line: %q", buf.String())
	}
}

func TestNewFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := New(Options{Level: "warn", Format: "legacy", Console: true, Stderr: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closeFn()
	logger.Info("hidden")
	logger.Warn("line_skipped")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "WARN | ") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestNewFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prep.log")
	logger, closeFn, err := New(Options{Format: "console", ToFile: true, File: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("book_open_failed")
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(raw), "book_open_failed") {
		t.Fatalf("file log missing entry: %q", raw)
	}
}

func TestNewWithoutSinksIsNop(t *testing.T) {
	logger, closeFn, err := New(Options{})
	if err != nil || logger == nil {
		t.Fatalf("New: %v", err)
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestOptionsFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"LOG_LEVEL", "LOG_FORMAT", "LOG_TO_CONSOLE", "LOG_TO_FILE", "LOG_FILE", "LOG_CALLER"} {
		t.Setenv(k, "")
	}
	opt := OptionsFromEnv()
	if !opt.Console || opt.ToFile || opt.Format != "legacy" || opt.Level != "info" {
		t.Fatalf("unexpected defaults: %+v", opt)
	}
	t.Setenv("LOG_TO_FILE", "true")
	if !OptionsFromEnv().ToFile {
		t.Fatalf("LOG_TO_FILE ignored")
	}
}
