// Package judge re-scores evidence misses with an LLM reviewer. A checker
// that matches on normalized substrings cannot tell "the printer driver is
// stale" from "outdated print driver"; the judge can. Verdicts only ever
// upgrade a miss to a pass, never the other way around.
package judge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/stellarlinkco/diag-eval/internal/llm"
)

const (
	defaultBatchSize = 10
	maxBatchSize     = 10

	judgeMaxTokens = 2000
)

const systemPrompt = `You are reviewing the output of an automated evaluation of a workspace-administration diagnostic assistant. For each case you receive the assistant's response and a list of evidence items that a literal substring matcher failed to find in it.

An evidence item counts as present when the response expresses the same fact or recommendation, even with different wording. "Outdated print driver" satisfies "driver is stale". Pure topic overlap is not enough: the response must actually state the expected fact.

Reply with a JSON object only, no prose:
{"verdicts": [{"id": "<case id>", "passed": true|false, "matched": ["<evidence items the response does express>"], "missing": ["<evidence items it does not>"], "rationale": "<one sentence>"}]}

A case passes only when every listed evidence item is expressed. Include every case id you were given exactly once.`

// Candidate is a failed evidence check submitted for semantic review.
type Candidate struct {
	ID       string   `json:"id"`
	Title    string   `json:"title,omitempty"`
	Prompt   string   `json:"prompt"`
	Response string   `json:"response"`
	Missing  []string `json:"missing_evidence"`
}

// Verdict is the reviewer's ruling on one candidate.
type Verdict struct {
	ID        string   `json:"id"`
	Passed    bool     `json:"passed"`
	Matched   []string `json:"matched,omitempty"`
	Missing   []string `json:"missing,omitempty"`
	Rationale string   `json:"rationale,omitempty"`
}

type verdictEnvelope struct {
	Verdicts []Verdict `json:"verdicts"`
}

type Judge struct {
	provider  llm.Provider
	batchSize int
	logger    *zap.Logger
}

func New(provider llm.Provider, batchSize int, logger *zap.Logger) *Judge {
	if batchSize <= 0 || batchSize > maxBatchSize {
		batchSize = defaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Judge{
		provider:  provider,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Review scores every candidate and returns a verdict per case ID. The
// returned map always covers all candidates: when a batch cannot be scored,
// its candidates keep their failing verdict and the batch error is joined
// into the returned error.
func (j *Judge) Review(ctx context.Context, candidates []Candidate) (map[string]Verdict, error) {
	if j == nil || j.provider == nil {
		return nil, errors.New("judge: nil provider")
	}
	if len(candidates) == 0 {
		return map[string]Verdict{}, nil
	}

	verdicts := make(map[string]Verdict, len(candidates))
	var errs []error

	for start := 0; start < len(candidates); start += j.batchSize {
		end := start + j.batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]

		got, err := j.reviewBatch(ctx, batch)
		if err != nil {
			j.logger.Warn("judge batch failed",
				zap.Int("batch_start", start),
				zap.Int("batch_size", len(batch)),
				zap.Error(err))
			for _, c := range batch {
				verdicts[c.ID] = failedVerdict(c, err)
			}
			errs = append(errs, err)
			continue
		}

		for _, c := range batch {
			v, ok := got[c.ID]
			if !ok {
				verdicts[c.ID] = failedVerdict(c, fmt.Errorf("judge: no verdict for case %q", c.ID))
				continue
			}
			verdicts[c.ID] = v
		}
	}

	return verdicts, errors.Join(errs...)
}

func (j *Judge) reviewBatch(ctx context.Context, batch []Candidate) (map[string]Verdict, error) {
	payload, err := json.Marshal(map[string]any{"cases": batch})
	if err != nil {
		return nil, fmt.Errorf("judge: marshal batch: %w", err)
	}

	resp, err := j.provider.Complete(ctx, &llm.Request{
		System: systemPrompt,
		Messages: []llm.Message{
			{Role: "user", Content: string(payload)},
		},
		MaxTokens: judgeMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("judge: %s: %w", j.provider.Name(), err)
	}

	var env verdictEnvelope
	if err := llm.ParseJSON(resp.Text, &env); err != nil {
		return nil, fmt.Errorf("judge: parse verdicts: %w", err)
	}

	out := make(map[string]Verdict, len(env.Verdicts))
	for _, v := range env.Verdicts {
		id := strings.TrimSpace(v.ID)
		if id == "" {
			continue
		}
		v.ID = id
		out[id] = v
	}
	return out, nil
}

func failedVerdict(c Candidate, err error) Verdict {
	return Verdict{
		ID:        c.ID,
		Passed:    false,
		Missing:   c.Missing,
		Rationale: fmt.Sprintf("judge unavailable: %v", err),
	}
}
