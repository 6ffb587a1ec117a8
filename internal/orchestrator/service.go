package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/stellarlinkco/diag-eval/internal/config"
)

// Service controls the target service's lifecycle. The orchestrator starts
// it once before a sweep and stops it once after.
type Service interface {
	Start(ctx context.Context) error
	Stop() error
}

// ExecService launches the target via a shell command.
type ExecService struct {
	command string
	dir     string
	logger  *zap.Logger

	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewExecService builds a Service from the target config. Returns nil when
// no start command is configured; the orchestrator then assumes the target
// is already running.
func NewExecService(cfg config.TargetConfig, logger *zap.Logger) *ExecService {
	command := strings.TrimSpace(cfg.StartCmd)
	if command == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecService{
		command: command,
		dir:     strings.TrimSpace(cfg.StartCmdDir),
		logger:  logger,
	}
}

func (s *ExecService) Start(ctx context.Context) error {
	if s == nil {
		return errors.New("orchestrator: nil service")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil {
		return errors.New("orchestrator: service already started")
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", s.command)
	if s.dir != "" {
		cmd.Dir = s.dir
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("orchestrator: start target: %w", err)
	}

	s.logger.Info("target service started",
		zap.String("command", s.command),
		zap.Int("pid", cmd.Process.Pid))
	s.cmd = cmd
	return nil
}

func (s *ExecService) Stop() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	cmd := s.cmd
	s.cmd = nil
	s.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	if err := cmd.Process.Kill(); err != nil {
		return fmt.Errorf("orchestrator: stop target: %w", err)
	}
	_ = cmd.Wait()
	s.logger.Info("target service stopped")
	return nil
}
