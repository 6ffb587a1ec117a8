package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type catalog struct {
	Cases []Case `yaml:"cases"`
}

// Load reads the case catalog and every referenced case body. A malformed
// entry fails the whole load: a corrupt catalog must not silently drop
// cases.
func Load(catalogPath string, casesDir string) (*Registry, error) {
	b, err := os.ReadFile(catalogPath)
	if err != nil {
		return nil, fmt.Errorf("registry: read %q: %w", catalogPath, err)
	}

	var cat catalog
	if err := yaml.Unmarshal(b, &cat); err != nil {
		return nil, fmt.Errorf("registry: parse %q: %w", catalogPath, err)
	}
	if err := validate(&cat); err != nil {
		return nil, fmt.Errorf("registry: validate %q: %w", catalogPath, err)
	}

	reg := &Registry{
		Cases:   cat.Cases,
		Prompts: make(map[string]string, len(cat.Cases)),
	}

	for _, c := range cat.Cases {
		if strings.TrimSpace(c.File) == "" {
			continue
		}
		body, err := os.ReadFile(filepath.Join(casesDir, c.File))
		if err != nil {
			if os.IsNotExist(err) {
				// A case may exist in the catalog before its body is
				// written; it simply stays promptless.
				continue
			}
			return nil, fmt.Errorf("registry: read case body for %q: %w", c.ID, err)
		}
		if prompt := ExtractPrompt(string(body)); prompt != "" {
			reg.Prompts[c.ID] = prompt
		}
	}

	return reg, nil
}

func validate(cat *catalog) error {
	if cat == nil {
		return fmt.Errorf("nil catalog")
	}
	if len(cat.Cases) == 0 {
		return fmt.Errorf("no cases")
	}

	seenIDs := make(map[string]struct{}, len(cat.Cases))
	for i, c := range cat.Cases {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			return fmt.Errorf("cases[%d]: missing id", i)
		}
		if _, ok := seenIDs[id]; ok {
			return fmt.Errorf("cases[%d] (%s): duplicate id", i, id)
		}
		seenIDs[id] = struct{}{}

		if strings.TrimSpace(c.Title) == "" {
			return fmt.Errorf("cases[%d] (%s): missing title", i, id)
		}
		if strings.TrimSpace(c.Category) == "" {
			return fmt.Errorf("cases[%d] (%s): missing category", i, id)
		}

		switch c.Mode {
		case ModeSingleTurn:
			if len(c.Conversation) > 0 {
				return fmt.Errorf("cases[%d] (%s): single-turn case has conversation script", i, id)
			}
			if len(c.TurnAssertions) > 0 {
				return fmt.Errorf("cases[%d] (%s): single-turn case has turn_assertions", i, id)
			}
		case ModeMultiTurn:
			if len(c.Conversation) == 0 {
				return fmt.Errorf("cases[%d] (%s): multi-turn case has no conversation script", i, id)
			}
			for j, turn := range c.Conversation {
				if strings.TrimSpace(turn) == "" {
					return fmt.Errorf("cases[%d] (%s): conversation[%d]: empty turn", i, id, j)
				}
			}
			// Turns are numbered 1..len(conversation), matching the runner.
			for j, ta := range c.TurnAssertions {
				if ta.Turn < 1 || ta.Turn > len(c.Conversation) {
					return fmt.Errorf("cases[%d] (%s): turn_assertions[%d]: turn %d out of range 1..%d", i, id, j, ta.Turn, len(c.Conversation))
				}
				if len(ta.RequiredTools) == 0 && len(ta.RequiredEvidence) == 0 {
					return fmt.Errorf("cases[%d] (%s): turn_assertions[%d]: empty assertion", i, id, j)
				}
			}
		default:
			return fmt.Errorf("cases[%d] (%s): invalid mode %q", i, id, c.Mode)
		}

		for j, s := range c.RequiredEvidence {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("cases[%d] (%s): required_evidence[%d]: empty string", i, id, j)
			}
		}
		for j, s := range c.ForbiddenEvidence {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("cases[%d] (%s): forbidden_evidence[%d]: empty string", i, id, j)
			}
		}
		for j, s := range c.RequiredTools {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("cases[%d] (%s): required_tools[%d]: empty string", i, id, j)
			}
		}

		if c.Rubric != nil {
			if len(c.Rubric.Criteria) == 0 {
				return fmt.Errorf("cases[%d] (%s): rubric: no criteria", i, id)
			}
			if c.Rubric.MinScore < 1 || c.Rubric.MinScore > len(c.Rubric.Criteria) {
				return fmt.Errorf("cases[%d] (%s): rubric: min_score %d out of range 1..%d", i, id, c.Rubric.MinScore, len(c.Rubric.Criteria))
			}
		}
	}
	return nil
}

// ExtractPrompt lifts the first user utterance from a case body's
// "## Conversation" section. Returns "" when the body has no such section
// or no user marker.
func ExtractPrompt(body string) string {
	lines := strings.Split(body, "\n")

	inConversation := false
	var collecting []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "#") {
			if len(collecting) > 0 {
				break
			}
			heading := strings.ToLower(strings.TrimSpace(strings.TrimLeft(trimmed, "#")))
			inConversation = heading == "conversation"
			continue
		}
		if !inConversation {
			continue
		}

		if rest, ok := strings.CutPrefix(trimmed, "**User:**"); ok {
			if len(collecting) > 0 {
				break
			}
			if rest = strings.TrimSpace(rest); rest != "" {
				collecting = append(collecting, rest)
			} else {
				collecting = append(collecting, "")
			}
			continue
		}

		if len(collecting) == 0 {
			continue
		}
		// A blank line or the next speaker ends the utterance.
		if trimmed == "" || strings.HasPrefix(trimmed, "**") {
			break
		}
		collecting = append(collecting, trimmed)
	}

	out := strings.TrimSpace(strings.Join(collecting, " "))
	return out
}
