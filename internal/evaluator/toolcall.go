package evaluator

import (
	"fmt"
	"strings"
)

// ToolCallChecker verifies that every required tool name appears in the
// observed tool-call set. Membership only; order is not checked.
type ToolCallChecker struct {
	Required []string
}

func (c ToolCallChecker) Check(observed []string) Result {
	if len(c.Required) == 0 {
		return Result{Passed: true, Message: "no required tool calls"}
	}

	seen := make(map[string]struct{}, len(observed))
	for _, name := range observed {
		seen[strings.TrimSpace(name)] = struct{}{}
	}

	var missing []string
	for _, name := range c.Required {
		if _, ok := seen[strings.TrimSpace(name)]; !ok {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return Result{
			Passed:  false,
			Message: fmt.Sprintf("missing tools: %s", strings.Join(missing, ", ")),
			Details: map[string]any{
				"missing":  missing,
				"observed": observed,
			},
		}
	}
	return Result{
		Passed:  true,
		Message: fmt.Sprintf("all %d required tools called", len(c.Required)),
		Details: map[string]any{"observed": observed},
	}
}
