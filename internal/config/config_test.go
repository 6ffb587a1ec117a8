package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
target:
  base_url: http://localhost:9999
  max_retries: 2
evaluation:
  iterations: 3
  modes: [fixtures, live-judge]
storage:
  type: sqlite
  path: data/reports.db
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Target.BaseURL != "http://localhost:9999" {
		t.Fatalf("base_url: got %q", cfg.Target.BaseURL)
	}
	if cfg.Target.MaxRetries != 2 {
		t.Fatalf("max_retries: got %d", cfg.Target.MaxRetries)
	}
	if cfg.Evaluation.Iterations != 3 {
		t.Fatalf("iterations: got %d", cfg.Evaluation.Iterations)
	}
	if len(cfg.Evaluation.Modes) != 2 || cfg.Evaluation.Modes[1] != "live-judge" {
		t.Fatalf("modes: got %#v", cfg.Evaluation.Modes)
	}

	// Defaults fill in unset fields.
	if cfg.Target.ChatPath != "/api/chat" {
		t.Fatalf("chat_path default: got %q", cfg.Target.ChatPath)
	}
	if cfg.Target.Timeout != 60*time.Second {
		t.Fatalf("timeout default: got %v", cfg.Target.Timeout)
	}
	if cfg.Evaluation.JudgeBatchSize != 10 {
		t.Fatalf("judge_batch_size default: got %d", cfg.Evaluation.JudgeBatchSize)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Evaluation.Iterations != 1 {
		t.Fatalf("iterations: got %d", cfg.Evaluation.Iterations)
	}
	if cfg.Evaluation.ProblemCutoff != 0.5 {
		t.Fatalf("problem_cutoff: got %v", cfg.Evaluation.ProblemCutoff)
	}
	if cfg.Judge.DefaultProvider != "claude" {
		t.Fatalf("default_provider: got %q", cfg.Judge.DefaultProvider)
	}
}

func TestModeByName(t *testing.T) {
	t.Parallel()

	m, err := ModeByName("fixtures-judge")
	if err != nil {
		t.Fatalf("ModeByName: %v", err)
	}
	if !m.UseFixtures || !m.Judge || m.Serial {
		t.Fatalf("fixtures-judge: got %+v", m)
	}

	m, err = ModeByName("")
	if err != nil {
		t.Fatalf("ModeByName(empty): %v", err)
	}
	if m.Name != DefaultMode {
		t.Fatalf("default mode: got %q", m.Name)
	}

	if _, err := ModeByName("bogus"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestModesByName(t *testing.T) {
	t.Parallel()

	modes, err := ModesByName([]string{"live", "fixtures-serial"})
	if err != nil {
		t.Fatalf("ModesByName: %v", err)
	}
	if len(modes) != 2 || modes[0].Name != "live" || !modes[1].Serial {
		t.Fatalf("got %+v", modes)
	}

	if _, err := ModesByName([]string{"live", "bogus"}); err == nil {
		t.Fatalf("expected error for unknown mode in list")
	}
}
