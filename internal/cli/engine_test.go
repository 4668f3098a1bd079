package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/topicast/topicast/pkg/config"
	"github.com/topicast/topicast/pkg/topicast/pipeline"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Database: config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "test.db")},
		Pipeline: config.PipelineConfig{
			Workers:          2,
			MinCharsForOCR:   50,
			DefaultYear:      2020,
			MaxQuestionChars: 1000,
			CacheTTLSec:      300,
		},
		Logging: config.LoggingConfig{Level: "info", Format: "console", OutputPath: "stdout"},
	}
}

// TestNewEngine tests that newEngine assembles a working instance
func TestNewEngine(t *testing.T) {
	ctx := context.Background()
	cfg = testConfig(t)

	eng, err := newEngine(ctx, pipeline.Hooks{})
	if err != nil {
		t.Fatalf("newEngine failed: %v", err)
	}
	defer eng.Close()

	if err := eng.Seed(ctx); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	stats, err := eng.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Exams != 3 {
		t.Errorf("Exams = %d, want 3", stats.Exams)
	}
}

// TestNewEngineBadCurriculum tests that a missing curriculum file fails
func TestNewEngineBadCurriculum(t *testing.T) {
	cfg = testConfig(t)
	cfg.Curriculum.Path = filepath.Join(t.TempDir(), "missing.yaml")

	if _, err := newEngine(context.Background(), pipeline.Hooks{}); err == nil {
		t.Error("newEngine should fail with a missing curriculum file")
	}
}

// TestNewEngineOCRRequiresKey tests that enabling OCR without a key fails
func TestNewEngineOCRRequiresKey(t *testing.T) {
	cfg = testConfig(t)
	cfg.OCR.Enabled = true

	if _, err := newEngine(context.Background(), pipeline.Hooks{}); err == nil {
		t.Error("newEngine should fail when OCR is enabled without an API key")
	}
}

func TestCommandTree(t *testing.T) {
	want := []string{"seed", "process", "analyze", "predict", "exams", "stats", "serve", "version"}
	registered := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		registered[c.Name()] = true
	}
	for _, name := range want {
		if !registered[name] {
			t.Errorf("command %q not registered", name)
		}
	}
}
