package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stellarlinkco/diag-eval/internal/config"
)

func NewRegistryFromConfig(cfg *config.JudgeConfig) (*Registry, error) {
	if cfg == nil {
		return nil, errors.New("llm: nil config")
	}

	r := NewRegistry()
	for name, pcfg := range cfg.Providers {
		key := strings.ToLower(strings.TrimSpace(name))
		switch key {
		case "":
			continue
		case "claude", "anthropic":
			r.Register(NewClaudeProvider(pcfg.APIKey, pcfg.BaseURL, pcfg.Model))
		case "openai":
			r.Register(NewOpenAIProvider(pcfg.APIKey, pcfg.BaseURL, pcfg.Model))
		default:
			return nil, fmt.Errorf("llm: unknown provider %q", name)
		}
	}

	return r, nil
}

func DefaultProviderFromConfig(cfg *config.JudgeConfig) (Provider, error) {
	if cfg == nil {
		return nil, errors.New("llm: nil config")
	}
	reg, err := NewRegistryFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(cfg.DefaultProvider)
	if name == "" {
		name = "claude"
	}
	if p, ok := reg.Get(name); ok {
		return p, nil
	}

	if reg.Len() == 1 {
		only := reg.Names()[0]
		if p, ok := reg.Get(only); ok {
			return p, nil
		}
	}

	return nil, fmt.Errorf("llm: default provider %q not configured (available: %s)", name, strings.Join(reg.Names(), ", "))
}
