package evaluator

import (
	"fmt"
	"strings"
)

// keyRenames maps alternate metadata key spellings onto the canonical form
// the catalog uses.
var keyRenames = map[string]string{
	"next_steps": "nextSteps",
	"steps":      "nextSteps",
	"root_cause": "diagnosis",
	"rootCause":  "diagnosis",
	"analysis":   "diagnosis",
}

// signalWords indicate diagnostic structure in free text when no parsed
// metadata is available.
var signalWords = []string{
	"diagnosis",
	"root cause",
	"likely cause",
	"next step",
	"recommend",
	"issue",
	"check",
}

// SchemaChecker verifies that the response carries the expected structure:
// all expected keys present in the parsed metadata, or a free-text fallback.
type SchemaChecker struct {
	ExpectedKeys []string
}

func (c SchemaChecker) Check(text string, metadata map[string]any) Result {
	if len(c.ExpectedKeys) == 0 {
		if strings.TrimSpace(text) == "" && len(metadata) == 0 {
			return Result{Passed: false, Message: "empty response"}
		}
		return Result{Passed: true, Message: "no schema expected"}
	}

	if len(metadata) > 0 {
		canonical := make(map[string]struct{}, len(metadata))
		for k := range metadata {
			if renamed, ok := keyRenames[k]; ok {
				k = renamed
			}
			canonical[k] = struct{}{}
		}

		var missing []string
		for _, key := range c.ExpectedKeys {
			if _, ok := canonical[key]; !ok {
				missing = append(missing, key)
			}
		}
		if len(missing) == 0 {
			return Result{
				Passed:  true,
				Message: fmt.Sprintf("all %d expected keys present", len(c.ExpectedKeys)),
			}
		}
		// Metadata was parsed but incomplete; the text fallback below may
		// still recognize diagnostic structure.
		if r := c.textFallback(text); r.Passed {
			r.Details = map[string]any{"missingKeys": missing, "fallback": true}
			return r
		}
		return Result{
			Passed:  false,
			Message: fmt.Sprintf("missing keys: %s", strings.Join(missing, ", ")),
			Details: map[string]any{"missingKeys": missing},
		}
	}

	return c.textFallback(text)
}

func (c SchemaChecker) textFallback(text string) Result {
	lower := strings.ToLower(text)
	for _, w := range signalWords {
		if strings.Contains(lower, w) {
			return Result{
				Passed:  true,
				Message: fmt.Sprintf("no structured metadata; diagnostic signal %q present in text", w),
			}
		}
	}
	return Result{
		Passed:  false,
		Message: "no structured metadata and no diagnostic structure in text",
	}
}
