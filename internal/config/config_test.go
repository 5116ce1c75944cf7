package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	// Load from an empty directory so no opsight.yaml is found.
	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	v, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := v.GetInt("server.port"); got != 8080 {
		t.Errorf("server.port = %d, want 8080", got)
	}
	if got := v.GetInt("analysis.scoring_max_lag"); got != 360 {
		t.Errorf("analysis.scoring_max_lag = %d, want 360", got)
	}
	if got := v.GetInt("analysis.diagnostic_max_lag"); got != 40 {
		t.Errorf("analysis.diagnostic_max_lag = %d, want 40", got)
	}
	if got := v.GetFloat64("analysis.threshold_multiplier"); got != 3.0 {
		t.Errorf("analysis.threshold_multiplier = %v, want 3.0", got)
	}
	if v.GetBool("auth.enabled") {
		t.Error("auth.enabled should default to false")
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "opsight.yaml")
	content := []byte("server:\n  port: 9191\nanalysis:\n  min_series_length: 20\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	v, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := v.GetInt("server.port"); got != 9191 {
		t.Errorf("server.port = %d, want 9191", got)
	}
	if got := v.GetInt("analysis.min_series_length"); got != 20 {
		t.Errorf("analysis.min_series_length = %d, want 20", got)
	}
	// Unset keys still fall back to defaults.
	if got := v.GetInt("analysis.scoring_max_lag"); got != 360 {
		t.Errorf("analysis.scoring_max_lag = %d, want 360", got)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load("/nonexistent/opsight.yaml"); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestNewLogger_Defaults(t *testing.T) {
	v := viper.New()
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	logger, err := NewLogger(v)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNewLogger_ConsoleFormat(t *testing.T) {
	v := viper.New()
	v.Set("logging.level", "warn")
	v.Set("logging.format", "console")

	logger, err := NewLogger(v)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	v := viper.New()
	v.Set("logging.level", "banana")
	v.Set("logging.format", "json")

	if _, err := NewLogger(v); err == nil {
		t.Fatal("expected error for invalid level")
	}
}

func TestNewLogger_InvalidFormat(t *testing.T) {
	v := viper.New()
	v.Set("logging.level", "info")
	v.Set("logging.format", "xml")

	if _, err := NewLogger(v); err == nil {
		t.Fatal("expected error for invalid format")
	}
}
