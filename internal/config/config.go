package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	Target     TargetConfig     `yaml:"target"`
	Judge      JudgeConfig      `yaml:"judge"`
	Registry   RegistryConfig   `yaml:"registry"`
	Fixtures   FixturesConfig   `yaml:"fixtures"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Storage    StorageConfig    `yaml:"storage"`
}

// TargetConfig locates the diagnostic assistant under test.
type TargetConfig struct {
	BaseURL     string        `yaml:"base_url"`
	ChatPath    string        `yaml:"chat_path,omitempty"`
	HealthPath  string        `yaml:"health_path,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	MaxRetries  int           `yaml:"max_retries,omitempty"`
	StartCmd    string        `yaml:"start_cmd,omitempty"`
	StartCmdDir string        `yaml:"start_cmd_dir,omitempty"`
}

type JudgeConfig struct {
	DefaultProvider string                    `yaml:"default_provider,omitempty"`
	Providers       map[string]ProviderConfig `yaml:"providers,omitempty"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model,omitempty"`
}

type RegistryConfig struct {
	CatalogPath string `yaml:"catalog_path,omitempty"`
	CasesDir    string `yaml:"cases_dir,omitempty"`
}

type FixturesConfig struct {
	BasePath string `yaml:"base_path,omitempty"`
	Dir      string `yaml:"dir,omitempty"`
}

type EvaluationConfig struct {
	Iterations     int           `yaml:"iterations,omitempty"`
	Modes          []string      `yaml:"modes,omitempty"`
	SerialPause    time.Duration `yaml:"serial_pause,omitempty"`
	Timeout        time.Duration `yaml:"timeout,omitempty"`
	ProblemCutoff  float64       `yaml:"problem_cutoff,omitempty"`
	JudgeBatchSize int           `yaml:"judge_batch_size,omitempty"`
}

type StorageConfig struct {
	Type string `yaml:"type,omitempty"` // "sqlite" or "memory"
	Path string `yaml:"path,omitempty"` // SQLite file path
}

// Selection filters the case catalog for a run.
type Selection struct {
	IDs        []string `yaml:"ids,omitempty"`
	Categories []string `yaml:"categories,omitempty"`
	Tags       []string `yaml:"tags,omitempty"`
	Limit      int      `yaml:"limit,omitempty"`
}

func Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

// Default returns a config with defaults applied and no file loaded.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Target.BaseURL) == "" {
		c.Target.BaseURL = "http://localhost:3000"
	}
	if strings.TrimSpace(c.Target.ChatPath) == "" {
		c.Target.ChatPath = "/api/chat"
	}
	if strings.TrimSpace(c.Target.HealthPath) == "" {
		c.Target.HealthPath = "/api/health"
	}
	if c.Target.Timeout <= 0 {
		c.Target.Timeout = 60 * time.Second
	}
	if c.Target.MaxRetries < 0 {
		c.Target.MaxRetries = 0
	}

	if c.Judge.Providers == nil {
		c.Judge.Providers = make(map[string]ProviderConfig)
	}
	if strings.TrimSpace(c.Judge.DefaultProvider) == "" {
		c.Judge.DefaultProvider = "claude"
	}

	if strings.TrimSpace(c.Registry.CatalogPath) == "" {
		c.Registry.CatalogPath = "cases/catalog.yaml"
	}
	if strings.TrimSpace(c.Registry.CasesDir) == "" {
		c.Registry.CasesDir = "cases"
	}
	if strings.TrimSpace(c.Fixtures.Dir) == "" {
		c.Fixtures.Dir = "fixtures"
	}
	if strings.TrimSpace(c.Fixtures.BasePath) == "" {
		c.Fixtures.BasePath = "fixtures/base.json"
	}

	if c.Evaluation.Iterations <= 0 {
		c.Evaluation.Iterations = 1
	}
	if c.Evaluation.SerialPause <= 0 {
		c.Evaluation.SerialPause = 500 * time.Millisecond
	}
	if c.Evaluation.Timeout <= 0 {
		c.Evaluation.Timeout = 90 * time.Second
	}
	if c.Evaluation.ProblemCutoff <= 0 {
		c.Evaluation.ProblemCutoff = 0.5
	}
	if c.Evaluation.JudgeBatchSize <= 0 {
		c.Evaluation.JudgeBatchSize = 10
	}
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		p := c.Judge.Providers["claude"]
		p.APIKey = v
		c.Judge.Providers["claude"] = p
	} else if v := strings.TrimSpace(os.Getenv("ANTHROPIC_AUTH_TOKEN")); v != "" {
		p := c.Judge.Providers["claude"]
		p.APIKey = v
		c.Judge.Providers["claude"] = p
	}

	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		p := c.Judge.Providers["openai"]
		p.APIKey = v
		c.Judge.Providers["openai"] = p
	}

	if v := strings.TrimSpace(os.Getenv("DIAG_EVAL_TARGET_URL")); v != "" {
		c.Target.BaseURL = strings.TrimRight(v, "/")
	}
}
