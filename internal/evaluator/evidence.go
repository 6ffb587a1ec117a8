package evaluator

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EvidenceChecker verifies that every required phrase appears, after
// normalization, in the response text or its serialized metadata.
type EvidenceChecker struct {
	Required []string
}

func (c EvidenceChecker) Check(text string, metadata map[string]any) Result {
	if len(c.Required) == 0 {
		return Result{Passed: true, Message: "no required evidence"}
	}

	haystack := evidenceHaystack(text, metadata)

	var matched, missing []string
	for _, phrase := range c.Required {
		if ContainsNormalized(haystack, phrase) {
			matched = append(matched, phrase)
			continue
		}
		missing = append(missing, phrase)
	}

	details := map[string]any{
		"matched": matched,
		"total":   len(c.Required),
	}
	if len(missing) > 0 {
		details["missing"] = missing
		return Result{
			Passed:  false,
			Message: fmt.Sprintf("missing evidence: %s", strings.Join(missing, ", ")),
			Details: details,
		}
	}

	return Result{
		Passed:  true,
		Message: fmt.Sprintf("matched %d/%d evidence phrases", len(matched), len(c.Required)),
		Details: details,
	}
}

// ForbiddenEvidenceChecker verifies that none of the forbidden phrases
// appear under the same normalization. Used for negative cases.
type ForbiddenEvidenceChecker struct {
	Forbidden []string
}

func (c ForbiddenEvidenceChecker) Check(text string, metadata map[string]any) Result {
	if len(c.Forbidden) == 0 {
		return Result{Passed: true, Message: "no forbidden evidence"}
	}

	haystack := evidenceHaystack(text, metadata)

	var found []string
	for _, phrase := range c.Forbidden {
		if ContainsNormalized(haystack, phrase) {
			found = append(found, phrase)
		}
	}

	if len(found) > 0 {
		return Result{
			Passed:  false,
			Message: fmt.Sprintf("forbidden evidence present: %s", strings.Join(found, ", ")),
			Details: map[string]any{"found": found},
		}
	}
	return Result{
		Passed:  true,
		Message: fmt.Sprintf("none of %d forbidden phrases present", len(c.Forbidden)),
	}
}

func evidenceHaystack(text string, metadata map[string]any) string {
	if len(metadata) == 0 {
		return text
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return text
	}
	return text + " " + string(b)
}
