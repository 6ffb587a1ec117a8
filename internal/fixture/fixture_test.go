package fixture

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/stellarlinkco/diag-eval/internal/config"
	"github.com/stellarlinkco/diag-eval/internal/registry"
)

func TestDeepMerge(t *testing.T) {
	t.Parallel()

	base := map[string]any{
		"orgUnits": map[string]any{
			"root": map[string]any{"name": "Acme", "members": 120},
		},
		"dlpRules": []any{"rule-a", "rule-b"},
		"region":   "us-east",
	}
	override := map[string]any{
		"orgUnits": map[string]any{
			"root": map[string]any{"members": 5},
		},
		"dlpRules": []any{"rule-c"},
	}

	got := DeepMerge(base, override)

	// Object leaves merge recursively.
	root := got["orgUnits"].(map[string]any)["root"].(map[string]any)
	if root["name"] != "Acme" || root["members"] != 5 {
		t.Fatalf("recursive merge: got %#v", root)
	}
	// Arrays are replaced wholesale by the override.
	if !reflect.DeepEqual(got["dlpRules"], []any{"rule-c"}) {
		t.Fatalf("array replace: got %#v", got["dlpRules"])
	}
	// Keys only in base survive.
	if got["region"] != "us-east" {
		t.Fatalf("base key: got %#v", got["region"])
	}
	// Inputs are not mutated.
	if base["orgUnits"].(map[string]any)["root"].(map[string]any)["members"] != 120 {
		t.Fatalf("base mutated: %#v", base)
	}
}

func TestDeepMergeNilIdentity(t *testing.T) {
	t.Parallel()

	base := map[string]any{"a": 1}
	override := map[string]any{"b": 2}

	if got := DeepMerge(base, nil); !reflect.DeepEqual(got, base) {
		t.Fatalf("DeepMerge(base, nil): got %#v", got)
	}
	if got := DeepMerge(nil, override); !reflect.DeepEqual(got, override) {
		t.Fatalf("DeepMerge(nil, override): got %#v", got)
	}
	if got := DeepMerge(nil, nil); got != nil {
		t.Fatalf("DeepMerge(nil, nil): got %#v", got)
	}
}

func writeFixtures(t *testing.T) config.FixturesConfig {
	t.Helper()
	dir := t.TempDir()

	base := `{"orgUnits": {"root": {"name": "Acme"}}, "auditEvents": []}`
	override := `{"orgUnits": {"root": {"suspended": true}}}`
	extra := `{"connectorPolicies": {"printGateway": "enforced"}}`

	basePath := filepath.Join(dir, "base.json")
	if err := os.WriteFile(basePath, []byte(base), 0o644); err != nil {
		t.Fatalf("write base: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "case.json"), []byte(override), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "connectors.json"), []byte(extra), 0o644); err != nil {
		t.Fatalf("write extra: %v", err)
	}

	return config.FixturesConfig{BasePath: basePath, Dir: dir}
}

func TestComposerLoad(t *testing.T) {
	cfg := writeFixtures(t)

	c := NewComposer(cfg, true)
	got, err := c.Load(registry.FixtureRefs{Overrides: "case.json"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	root := got["orgUnits"].(map[string]any)["root"].(map[string]any)
	if root["name"] != "Acme" || root["suspended"] != true {
		t.Fatalf("merged doc: got %#v", root)
	}
}

func TestComposerDisabled(t *testing.T) {
	cfg := writeFixtures(t)

	c := NewComposer(cfg, false)
	got, err := c.Load(registry.FixtureRefs{Overrides: "case.json"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != nil {
		t.Fatalf("disabled composer: got %#v", got)
	}
}

func TestComposerMissingFiles(t *testing.T) {
	c := NewComposer(config.FixturesConfig{
		BasePath: filepath.Join(t.TempDir(), "missing.json"),
		Dir:      t.TempDir(),
	}, true)

	got, err := c.Load(registry.FixtureRefs{Overrides: "also-missing.json"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("missing files should merge to empty doc, got %#v", got)
	}
}

func TestBuildPrompt(t *testing.T) {
	cfg := writeFixtures(t)
	c := NewComposer(cfg, true)

	refs := registry.FixtureRefs{Overrides: "case.json", Extra: []string{"connectors.json"}}
	got, err := c.BuildPrompt("My printer is offline.", refs, true)
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}

	if !strings.HasPrefix(got, "My printer is offline.") {
		t.Fatalf("prompt prefix: got %q", got)
	}
	if !strings.Contains(got, ResponseFormatInstruction) {
		t.Fatalf("missing response-format instruction")
	}

	// Base/overrides block comes before the extra fixture block.
	mergedIdx := strings.Index(got, "### Workspace fixture data")
	extraIdx := strings.Index(got, "### Fixture: connectors.json")
	if mergedIdx < 0 || extraIdx < 0 || mergedIdx > extraIdx {
		t.Fatalf("block order: merged=%d extra=%d", mergedIdx, extraIdx)
	}
	if !strings.Contains(got, `"suspended": true`) {
		t.Fatalf("merged block missing override value:\n%s", got)
	}
	if !strings.Contains(got, `"printGateway": "enforced"`) {
		t.Fatalf("extra block missing:\n%s", got)
	}
}

func TestBuildPromptWithoutInjection(t *testing.T) {
	cfg := writeFixtures(t)
	c := NewComposer(cfg, true)

	got, err := c.BuildPrompt("Help.", registry.FixtureRefs{Overrides: "case.json"}, false)
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	if strings.Contains(got, "### ") {
		t.Fatalf("unexpected fixture block:\n%s", got)
	}
	if !strings.Contains(got, ResponseFormatInstruction) {
		t.Fatalf("missing response-format instruction")
	}
}
