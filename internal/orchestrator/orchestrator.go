// Package orchestrator sweeps run-mode × iteration configurations over the
// case catalog. The target service is shared process-wide state: it starts
// once before the sweep and stops once after, and runs never overlap.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stellarlinkco/diag-eval/internal/config"
	"github.com/stellarlinkco/diag-eval/internal/fixture"
	"github.com/stellarlinkco/diag-eval/internal/judge"
	"github.com/stellarlinkco/diag-eval/internal/llm"
	"github.com/stellarlinkco/diag-eval/internal/registry"
	"github.com/stellarlinkco/diag-eval/internal/runner"
	"github.com/stellarlinkco/diag-eval/internal/store"
)

// Readiness gates the first run on the target answering its liveness probe.
type Readiness interface {
	WaitReady(ctx context.Context) error
}

// FailedRun records a run that could not produce results.
type FailedRun struct {
	Mode      string `json:"mode"`
	Iteration int    `json:"iteration"`
	Err       string `json:"error"`
}

// SweepResult is the outcome of one full sweep.
type SweepResult struct {
	Runs   []runner.SingleRunResult `json:"runs"`
	Failed []FailedRun              `json:"failed,omitempty"`
}

type Orchestrator struct {
	cfg           *config.Config
	client        runner.ChatClient
	probe         Readiness
	service       Service
	judgeProvider llm.Provider
	writer        store.RunWriter
	logger        *zap.Logger
}

// Options carries the optional collaborators.
type Options struct {
	Probe         Readiness       // nil skips the readiness gate
	Service       Service         // nil assumes the target is already up
	JudgeProvider llm.Provider    // required only for judging modes
	Writer        store.RunWriter // nil skips persistence
	Logger        *zap.Logger
}

func New(cfg *config.Config, client runner.ChatClient, opts Options) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("orchestrator: nil config")
	}
	if client == nil {
		return nil, errors.New("orchestrator: nil chat client")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:           cfg,
		client:        client,
		probe:         opts.Probe,
		service:       opts.Service,
		judgeProvider: opts.JudgeProvider,
		writer:        opts.Writer,
		logger:        logger,
	}, nil
}

// Sweep executes every (mode, iteration) pair once over the selected cases.
// Per-run failures are recorded, never propagated; only sweep setup can
// return an error.
func (o *Orchestrator) Sweep(ctx context.Context, modes []config.RunMode, iterations int, reg *registry.Registry, cases []registry.Case) (*SweepResult, error) {
	if o == nil {
		return nil, errors.New("orchestrator: nil orchestrator")
	}
	if reg == nil {
		return nil, errors.New("orchestrator: nil registry")
	}
	if len(modes) == 0 {
		return nil, errors.New("orchestrator: no run modes")
	}
	if iterations <= 0 {
		iterations = 1
	}

	for _, mode := range modes {
		if mode.Judge && o.judgeProvider == nil {
			return nil, fmt.Errorf("orchestrator: mode %q needs a judge provider", mode.Name)
		}
	}

	if o.service != nil {
		if err := o.service.Start(ctx); err != nil {
			return nil, err
		}
		defer func() {
			if err := o.service.Stop(); err != nil {
				o.logger.Warn("target service stop failed", zap.Error(err))
			}
		}()
	}

	if o.probe != nil {
		if err := o.probe.WaitReady(ctx); err != nil {
			return nil, fmt.Errorf("orchestrator: target never became ready: %w", err)
		}
	}

	out := &SweepResult{}
	for _, mode := range modes {
		for iter := 1; iter <= iterations; iter++ {
			if err := ctx.Err(); err != nil {
				return out, err
			}

			run, err := o.runOnce(ctx, mode, iter, reg, cases)
			if err != nil {
				o.logger.Error("run failed",
					zap.String("mode", mode.Name),
					zap.Int("iteration", iter),
					zap.Error(err))
				out.Failed = append(out.Failed, FailedRun{
					Mode:      mode.Name,
					Iteration: iter,
					Err:       err.Error(),
				})
				continue
			}

			o.logger.Info("run complete",
				zap.String("run_id", run.RunID),
				zap.String("mode", mode.Name),
				zap.Int("iteration", iter),
				zap.Int("passed", run.Summary.Passed),
				zap.Int("failed", run.Summary.Failed),
				zap.Int("errored", run.Summary.Errored))

			if o.writer != nil {
				if err := o.writer.SaveRun(ctx, run); err != nil {
					o.logger.Warn("run not persisted",
						zap.String("run_id", run.RunID),
						zap.Error(err))
				}
			}
			out.Runs = append(out.Runs, *run)
		}
	}

	return out, nil
}

// runOnce builds a fresh runner from the mode preset and executes the
// selected cases. A panic escaping the run is caught and reported as the
// run's error.
func (o *Orchestrator) runOnce(ctx context.Context, mode config.RunMode, iteration int, reg *registry.Registry, cases []registry.Case) (run *runner.SingleRunResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			run = nil
			err = fmt.Errorf("orchestrator: run panicked: %v", r)
		}
	}()

	composer := fixture.NewComposer(o.cfg.Fixtures, mode.UseFixtures)

	var j *judge.Judge
	if mode.Judge {
		j = judge.New(o.judgeProvider, o.cfg.Evaluation.JudgeBatchSize, o.logger)
	}

	r := runner.New(o.client, composer, j, mode, runner.Config{
		CaseTimeout: o.cfg.Evaluation.Timeout,
		Serial:      mode.Serial,
		SerialPause: o.cfg.Evaluation.SerialPause,
	}, o.logger)

	started := time.Now()
	reports, summary, err := r.Sweep(ctx, cases, reg.Prompts)
	if err != nil {
		return nil, err
	}

	return &runner.SingleRunResult{
		RunID:      uuid.NewString(),
		Mode:       mode.Name,
		Iteration:  iteration,
		Reports:    reports,
		Summary:    summary,
		StartedAt:  started,
		DurationMs: time.Since(started).Milliseconds(),
	}, nil
}
