package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/stellarlinkco/diag-eval/internal/chat"
	"github.com/stellarlinkco/diag-eval/internal/config"
	"github.com/stellarlinkco/diag-eval/internal/llm"
	"github.com/stellarlinkco/diag-eval/internal/orchestrator"
	"github.com/stellarlinkco/diag-eval/internal/registry"
	"github.com/stellarlinkco/diag-eval/internal/store"
)

func buildLogger() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func targetURL(cfg *config.Config, path string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.Target.BaseURL), "/")
	if base == "" {
		return "", fmt.Errorf("diageval: target base_url not configured")
	}
	u, err := url.Parse(base + path)
	if err != nil {
		return "", fmt.Errorf("diageval: invalid target url: %w", err)
	}
	return u.String(), nil
}

func buildChatClient(cfg *config.Config, logger *zap.Logger) (*chat.Client, error) {
	chatURL, err := targetURL(cfg, cfg.Target.ChatPath)
	if err != nil {
		return nil, err
	}
	return chat.NewClient(chatURL,
		chat.WithRetry(cfg.Target.MaxRetries),
		chat.WithHTTPClient(&http.Client{Timeout: cfg.Target.Timeout}),
		chat.WithLogger(logger),
	), nil
}

func buildProbe(cfg *config.Config, logger *zap.Logger) (*chat.Probe, error) {
	healthURL, err := targetURL(cfg, cfg.Target.HealthPath)
	if err != nil {
		return nil, err
	}
	return chat.NewProbe(healthURL, logger), nil
}

func loadCatalog(cfg *config.Config) (*registry.Registry, error) {
	return registry.Load(cfg.Registry.CatalogPath, cfg.Registry.CasesDir)
}

// buildOrchestrator wires the sweep collaborators. The judge provider is
// created only when a requested mode re-scores, so fixture-only sweeps never
// need model credentials.
func buildOrchestrator(cfg *config.Config, modes []config.RunMode, logger *zap.Logger) (*orchestrator.Orchestrator, store.Store, error) {
	client, err := buildChatClient(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	probe, err := buildProbe(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	var provider llm.Provider
	for _, mode := range modes {
		if mode.Judge {
			provider, err = llm.DefaultProviderFromConfig(&cfg.Judge)
			if err != nil {
				return nil, nil, err
			}
			break
		}
	}

	st, err := store.Open(cfg)
	if err != nil {
		return nil, nil, err
	}

	var svc orchestrator.Service
	if es := orchestrator.NewExecService(cfg.Target, logger); es != nil {
		svc = es
	}

	o, err := orchestrator.New(cfg, client, orchestrator.Options{
		Probe:         probe,
		Service:       svc,
		JudgeProvider: provider,
		Writer:        st,
		Logger:        logger,
	})
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	return o, st, nil
}
