package fixture

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stellarlinkco/diag-eval/internal/config"
	"github.com/stellarlinkco/diag-eval/internal/registry"
)

// ResponseFormatInstruction is appended to every prompt so the assistant
// answers in the structure the schema checker expects.
const ResponseFormatInstruction = "Respond with a JSON object containing a \"diagnosis\" field (root cause analysis) and a \"nextSteps\" field (ordered remediation steps). If you cannot diagnose the issue, set an \"error\" field explaining why."

// Composer loads and merges fixture documents for cases. Fixtures are pure
// opt-in: a disabled composer loads nothing.
type Composer struct {
	basePath string
	dir      string
	enabled  bool
}

func NewComposer(cfg config.FixturesConfig, enabled bool) *Composer {
	return &Composer{
		basePath: cfg.BasePath,
		dir:      cfg.Dir,
		enabled:  enabled,
	}
}

// Enabled reports whether fixture composition is active.
func (c *Composer) Enabled() bool {
	return c != nil && c.enabled
}

// Load returns the deep merge of the base document and the case's overrides
// document, or nil when fixtures are disabled. Missing files are treated as
// empty documents, not errors.
func (c *Composer) Load(refs registry.FixtureRefs) (map[string]any, error) {
	if !c.Enabled() {
		return nil, nil
	}

	base, err := c.readDocument(c.basePath)
	if err != nil {
		return nil, err
	}

	var overrides map[string]any
	if path := strings.TrimSpace(refs.Overrides); path != "" {
		overrides, err = c.readDocument(filepath.Join(c.dir, path))
		if err != nil {
			return nil, err
		}
	}

	merged := DeepMerge(base, overrides)
	if merged == nil {
		merged = map[string]any{}
	}
	return merged, nil
}

// BuildPrompt appends the response-format instruction and, when inject is
// true, labeled fixture blocks: the merged base/overrides document first,
// then each extra fixture file in the order listed.
func (c *Composer) BuildPrompt(basePrompt string, refs registry.FixtureRefs, inject bool) (string, error) {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(basePrompt))
	sb.WriteString("\n\n")
	sb.WriteString(ResponseFormatInstruction)

	if !inject || !c.Enabled() {
		return sb.String(), nil
	}

	merged, err := c.Load(refs)
	if err != nil {
		return "", err
	}
	if len(merged) > 0 {
		if err := writeFixtureBlock(&sb, "Workspace fixture data", merged); err != nil {
			return "", err
		}
	}

	for _, extra := range refs.Extra {
		extra = strings.TrimSpace(extra)
		if extra == "" {
			continue
		}
		doc, err := c.readDocument(filepath.Join(c.dir, extra))
		if err != nil {
			return "", err
		}
		if len(doc) == 0 {
			continue
		}
		if err := writeFixtureBlock(&sb, fmt.Sprintf("Fixture: %s", extra), doc); err != nil {
			return "", err
		}
	}

	return sb.String(), nil
}

func writeFixtureBlock(sb *strings.Builder, label string, doc map[string]any) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("fixture: marshal %q: %w", label, err)
	}
	sb.WriteString("\n\n### ")
	sb.WriteString(label)
	sb.WriteString("\n```json\n")
	sb.Write(b)
	sb.WriteString("\n```")
	return nil
}

func (c *Composer) readDocument(path string) (map[string]any, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return map[string]any{}, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("fixture: read %q: %w", path, err)
	}

	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("fixture: parse %q: %w", path, err)
	}
	return doc, nil
}
