// Package runner executes evaluation cases against the target chat service
// and scores the replies. A case is one conversation: single-turn cases send
// one prompt, multi-turn cases replay a scripted sequence of user turns in
// strict order. Every execution yields an EvalReport; transport failures
// surface as status "error", assertion failures as status "fail".
package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stellarlinkco/diag-eval/internal/chat"
	"github.com/stellarlinkco/diag-eval/internal/config"
	"github.com/stellarlinkco/diag-eval/internal/evaluator"
	"github.com/stellarlinkco/diag-eval/internal/fixture"
	"github.com/stellarlinkco/diag-eval/internal/judge"
	"github.com/stellarlinkco/diag-eval/internal/registry"
)

// ChatClient delivers one conversation to the target service.
type ChatClient interface {
	Send(ctx context.Context, req *chat.Request) (*chat.Reply, error)
}

type Runner struct {
	client   ChatClient
	composer *fixture.Composer
	judge    *judge.Judge // nil when the mode does not re-score
	mode     config.RunMode
	cfg      Config
	logger   *zap.Logger
}

func New(client ChatClient, composer *fixture.Composer, j *judge.Judge, mode config.RunMode, cfg Config, logger *zap.Logger) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		client:   client,
		composer: composer,
		judge:    j,
		mode:     mode,
		cfg:      cfg,
		logger:   logger,
	}
}

// RunCase executes one case and returns its report. Failures are reported
// through the report's status, never as a Go error.
func (r *Runner) RunCase(ctx context.Context, c registry.Case, basePrompt string) *EvalReport {
	start := time.Now()
	report := &EvalReport{
		CaseID:    c.ID,
		Title:     c.Title,
		Category:  c.Category,
		Mode:      r.mode.Name,
		Timestamp: start,
	}

	if r.cfg.CaseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.CaseTimeout)
		defer cancel()
	}

	if strings.TrimSpace(basePrompt) == "" {
		if len(c.Conversation) > 0 {
			basePrompt = c.Conversation[0]
		} else {
			basePrompt = synthesizePrompt(c)
		}
	}

	if c.Mode == registry.ModeMultiTurn {
		r.runMultiTurn(ctx, c, basePrompt, report)
	} else {
		r.runSingleTurn(ctx, c, basePrompt, report)
	}

	report.DurationMs = time.Since(start).Milliseconds()
	return report
}

func (r *Runner) runSingleTurn(ctx context.Context, c registry.Case, basePrompt string, report *EvalReport) {
	prompt, err := r.composer.BuildPrompt(basePrompt, c.Fixtures, r.mode.UseFixtures)
	if err != nil {
		report.Status = StatusError
		report.Err = err.Error()
		return
	}
	report.Prompt = prompt

	fixtures, err := r.fixturePayload(c)
	if err != nil {
		report.Status = StatusError
		report.Err = err.Error()
		return
	}

	reply, err := r.client.Send(ctx, &chat.Request{
		Messages: []chat.Message{{Role: "user", Content: prompt}},
		Fixtures: fixtures,
	})
	if err != nil {
		report.Status = StatusError
		report.Err = err.Error()
		return
	}

	report.ResponseText = reply.Text
	report.ResponseKind = reply.Kind.String()
	report.Metadata = reply.Metadata
	report.ToolCalls = reply.ToolCalls

	r.score(c, report, reply.Text, reply.Metadata, reply.ToolCalls, nil)
}

// runMultiTurn replays the conversation script strictly in order. A
// transport failure at turn k terminates the conversation with a
// "Turn k:" tagged error; completed turns stay in the report.
func (r *Runner) runMultiTurn(ctx context.Context, c registry.Case, basePrompt string, report *EvalReport) {
	report.Conversation = c.Conversation

	fixtures, err := r.fixturePayload(c)
	if err != nil {
		report.Status = StatusError
		report.Err = err.Error()
		return
	}

	messages := make([]chat.Message, 0, len(c.Conversation)*2)
	var (
		transcript   []string
		allToolCalls []string
		seenTools    = map[string]struct{}{}
		lastReply    *chat.Reply
		failedTurns  []string
	)

	for i, utterance := range c.Conversation {
		turn := i + 1
		prompt := utterance
		if turn == 1 {
			prompt, err = r.composer.BuildPrompt(basePrompt, c.Fixtures, r.mode.UseFixtures)
			if err != nil {
				report.Status = StatusError
				report.Err = err.Error()
				return
			}
			report.Prompt = prompt
		}

		messages = append(messages, chat.Message{Role: "user", Content: prompt})
		reply, err := r.client.Send(ctx, &chat.Request{
			Messages: messages,
			Fixtures: fixtures,
		})
		if err != nil {
			report.Status = StatusError
			report.Err = fmt.Sprintf("Turn %d: %v", turn, err)
			return
		}

		lastReply = reply
		transcript = append(transcript, reply.Text)
		for _, name := range reply.ToolCalls {
			if _, ok := seenTools[name]; ok {
				continue
			}
			seenTools[name] = struct{}{}
			allToolCalls = append(allToolCalls, name)
		}
		messages = append(messages, chat.Message{Role: "assistant", Content: reply.Text})

		tr := TurnResult{
			Turn:      turn,
			Prompt:    prompt,
			Response:  reply.Text,
			ToolCalls: reply.ToolCalls,
			Passed:    true,
		}
		if issues := checkTurn(c, turn, reply); len(issues) > 0 {
			tr.Issues = issues
			tr.Passed = false
			failedTurns = append(failedTurns, fmt.Sprintf("Turn %d: %s", turn, strings.Join(issues, "; ")))
		}
		report.Turns = append(report.Turns, tr)
	}

	text := strings.Join(transcript, "\n")
	var metadata map[string]any
	if lastReply != nil {
		metadata = lastReply.Metadata
		report.ResponseKind = lastReply.Kind.String()
	}
	report.ResponseText = text
	report.Metadata = metadata
	report.ToolCalls = allToolCalls

	r.score(c, report, text, metadata, allToolCalls, failedTurns)
}

// checkTurn evaluates one turn's declared assertions against that turn's
// reply only.
func checkTurn(c registry.Case, turn int, reply *chat.Reply) []string {
	var issues []string
	for _, ta := range c.TurnAssertions {
		if ta.Turn != turn {
			continue
		}
		if res := (evaluator.ToolCallChecker{Required: ta.RequiredTools}).Check(reply.ToolCalls); !res.Passed {
			issues = append(issues, res.Message)
		}
		if res := (evaluator.EvidenceChecker{Required: ta.RequiredEvidence}).Check(reply.Text, reply.Metadata); !res.Passed {
			issues = append(issues, res.Message)
		}
	}
	return issues
}

// score runs the case-level checkers and sets the final status. Rubric
// gates only when the case declares one.
func (r *Runner) score(c registry.Case, report *EvalReport, text string, metadata map[string]any, toolCalls []string, failedTurns []string) {
	report.Assertions = map[string]evaluator.Result{
		CheckSchema:    (evaluator.SchemaChecker{ExpectedKeys: c.ExpectedSchema}).Check(text, metadata),
		CheckEvidence:  (evaluator.EvidenceChecker{Required: c.RequiredEvidence}).Check(text, metadata),
		CheckForbidden: (evaluator.ForbiddenEvidenceChecker{Forbidden: c.ForbiddenEvidence}).Check(text, metadata),
		CheckTools:     (evaluator.ToolCallChecker{Required: c.RequiredTools}).Check(toolCalls),
	}

	passed := true
	for _, res := range report.Assertions {
		if !res.Passed {
			passed = false
		}
	}

	if c.Rubric != nil {
		rr := (evaluator.RubricChecker{Criteria: c.Rubric.Criteria, MinScore: c.Rubric.MinScore}).Check(text)
		report.Rubric = &rr
		if !rr.Passed {
			passed = false
		}
	}

	if len(failedTurns) > 0 {
		passed = false
		report.Err = strings.Join(failedTurns, " | ")
	}

	if passed {
		report.Status = StatusPass
	} else {
		report.Status = StatusFail
	}
}

func (r *Runner) fixturePayload(c registry.Case) (map[string]any, error) {
	if !r.mode.InjectFixtures {
		return nil, nil
	}
	return r.composer.Load(c.Fixtures)
}

func synthesizePrompt(c registry.Case) string {
	return fmt.Sprintf("A workspace administrator reports the following issue: %s. Diagnose the likely root cause and recommend next steps.", c.Title)
}
