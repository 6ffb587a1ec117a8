package llm

import (
	"context"
	"testing"

	"github.com/stellarlinkco/diag-eval/internal/config"
)

type stubProvider struct {
	name string
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Complete(context.Context, *Request) (*Response, error) {
	return &Response{Text: "ok"}, nil
}

func TestRegistryRegisterGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubProvider{name: "Claude"})

	if _, ok := r.Get("claude"); !ok {
		t.Fatal("expected case-insensitive lookup to find provider")
	}
	if _, ok := r.Get("openai"); ok {
		t.Fatal("unexpected provider for unregistered name")
	}
	if _, ok := r.Get(""); ok {
		t.Fatal("empty name should not resolve")
	}
}

func TestNewRegistryFromConfig(t *testing.T) {
	cfg := &config.JudgeConfig{
		DefaultProvider: "openai",
		Providers: map[string]config.ProviderConfig{
			"openai": {APIKey: "sk-test", Model: "gpt-4o"},
			"claude": {APIKey: "sk-ant-test"},
		},
	}

	p, err := DefaultProviderFromConfig(cfg)
	if err != nil {
		t.Fatalf("DefaultProviderFromConfig: %v", err)
	}
	if p.Name() != "openai" {
		t.Errorf("provider = %q, want openai", p.Name())
	}
}

func TestNewRegistryFromConfigUnknownProvider(t *testing.T) {
	cfg := &config.JudgeConfig{
		Providers: map[string]config.ProviderConfig{
			"mystery": {APIKey: "x"},
		},
	}
	if _, err := NewRegistryFromConfig(cfg); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestDefaultProviderFallsBackToSingle(t *testing.T) {
	cfg := &config.JudgeConfig{
		DefaultProvider: "claude",
		Providers: map[string]config.ProviderConfig{
			"openai": {APIKey: "sk-test"},
		},
	}
	p, err := DefaultProviderFromConfig(cfg)
	if err != nil {
		t.Fatalf("DefaultProviderFromConfig: %v", err)
	}
	if p.Name() != "openai" {
		t.Errorf("provider = %q, want openai", p.Name())
	}
}
