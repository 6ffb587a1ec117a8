package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stellarlinkco/diag-eval/internal/config"
)

const testCatalog = `
cases:
  - id: printer-offline
    title: Printer shows offline
    category: Devices
    tags: [printing, connectivity]
    mode: single-turn
    file: printer-offline.md
    expected_schema: [diagnosis, nextSteps]
    required_evidence: [printer, offline]
    required_tools: [listDevices]
  - id: dlp-rule-block
    title: DLP rule blocks external sharing
    category: security
    tags: [dlp]
    mode: single-turn
    file: dlp-rule-block.md
    required_evidence: [sharing]
    rubric:
      min_score: 2
      criteria: [identifies the rule, recommends a scoped exception, warns about audit impact]
  - id: wifi-deauth
    title: Managed laptop drops Wi-Fi
    category: devices
    tags: [connectivity]
    mode: multi-turn
    file: wifi-deauth.md
    conversation:
      - My laptop keeps dropping Wi-Fi.
      - It happens right after I log in.
    turn_assertions:
      - turn: 1
        required_tools: [getAuditEvents]
`

const testBody = `# Printer shows offline

## Setup

Fleet of managed printers.

## Conversation

**User:** Our floor printer shows offline in the admin console but it is
powered on.

**Assistant:** expected to diagnose connectivity.
`

func writeCatalog(t *testing.T, catalogYAML string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(path, []byte(catalogYAML), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "printer-offline.md"), []byte(testBody), 0o644); err != nil {
		t.Fatalf("write body: %v", err)
	}
	return path, dir
}

func TestLoad(t *testing.T) {
	path, dir := writeCatalog(t, testCatalog)

	reg, err := Load(path, dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(reg.Cases) != 3 {
		t.Fatalf("cases: got %d", len(reg.Cases))
	}

	prompt, ok := reg.Prompt("printer-offline")
	if !ok {
		t.Fatalf("expected extracted prompt for printer-offline")
	}
	want := "Our floor printer shows offline in the admin console but it is powered on."
	if prompt != want {
		t.Fatalf("prompt: got %q want %q", prompt, want)
	}

	// Missing body file leaves the case promptless, not failed.
	if _, ok := reg.Prompt("dlp-rule-block"); ok {
		t.Fatalf("expected no prompt for case without body file")
	}
}

func TestLoadRejectsBadEntries(t *testing.T) {
	t.Parallel()

	bad := []struct {
		name    string
		catalog string
	}{
		{"missing id", "cases:\n  - title: x\n    category: c\n    mode: single-turn\n"},
		{"missing title", "cases:\n  - id: a\n    category: c\n    mode: single-turn\n"},
		{"bad mode", "cases:\n  - id: a\n    title: x\n    category: c\n    mode: conversational\n"},
		{"duplicate id", "cases:\n  - id: a\n    title: x\n    category: c\n    mode: single-turn\n  - id: a\n    title: y\n    category: c\n    mode: single-turn\n"},
		{"multi-turn without script", "cases:\n  - id: a\n    title: x\n    category: c\n    mode: multi-turn\n"},
		{"turn assertion out of range", "cases:\n  - id: a\n    title: x\n    category: c\n    mode: multi-turn\n    conversation: [hello]\n    turn_assertions:\n      - turn: 3\n        required_tools: [t]\n"},
		{"turn assertion zero", "cases:\n  - id: a\n    title: x\n    category: c\n    mode: multi-turn\n    conversation: [hello]\n    turn_assertions:\n      - turn: 0\n        required_tools: [t]\n"},
		{"rubric min_score too high", "cases:\n  - id: a\n    title: x\n    category: c\n    mode: single-turn\n    rubric:\n      min_score: 5\n      criteria: [one, two]\n"},
		{"empty catalog", "cases: []\n"},
	}

	for _, tc := range bad {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "catalog.yaml")
			if err := os.WriteFile(path, []byte(tc.catalog), 0o644); err != nil {
				t.Fatalf("write catalog: %v", err)
			}
			if _, err := Load(path, dir); err == nil {
				t.Fatalf("expected load failure")
			}
		})
	}
}

func TestLoadAcceptsLastTurnAssertion(t *testing.T) {
	t.Parallel()

	// Turns are 1-based, so the last valid turn equals the script length.
	catalog := "cases:\n  - id: a\n    title: x\n    category: c\n    mode: multi-turn\n    conversation: [first, second]\n    turn_assertions:\n      - turn: 2\n        required_tools: [t]\n"
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(path, []byte(catalog), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	reg, err := Load(path, dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := reg.Cases[0].TurnAssertions[0].Turn; got != 2 {
		t.Fatalf("turn: got %d", got)
	}
}

func TestExtractPrompt(t *testing.T) {
	t.Parallel()

	{
		got := ExtractPrompt("# Title\n\n## Conversation\n\n**User:** single line question\n")
		if got != "single line question" {
			t.Fatalf("got %q", got)
		}
	}
	{
		// Only the first user utterance is lifted.
		got := ExtractPrompt("## Conversation\n**User:** first\n\n**User:** second\n")
		if got != "first" {
			t.Fatalf("got %q", got)
		}
	}
	{
		// No conversation section.
		got := ExtractPrompt("# Title\n\n**User:** not in a conversation section\n")
		if got != "" {
			t.Fatalf("got %q", got)
		}
	}
	{
		// Utterance ends at the next speaker.
		got := ExtractPrompt("## Conversation\n**User:** line one\ncontinues here\n**Assistant:** reply\n")
		if got != "line one continues here" {
			t.Fatalf("got %q", got)
		}
	}
}

func TestFilter(t *testing.T) {
	path, dir := writeCatalog(t, testCatalog)
	reg, err := Load(path, dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	{
		got := reg.Filter(config.Selection{IDs: []string{"wifi-deauth"}})
		if len(got) != 1 || got[0].ID != "wifi-deauth" {
			t.Fatalf("id filter: got %#v", got)
		}
	}
	{
		// Category matching is case-insensitive.
		got := reg.Filter(config.Selection{Categories: []string{"DEVICES"}})
		if len(got) != 2 {
			t.Fatalf("category filter: got %d cases", len(got))
		}
	}
	{
		// A case matches if any tag matches.
		got := reg.Filter(config.Selection{Tags: []string{"Connectivity"}})
		if len(got) != 2 || got[0].ID != "printer-offline" {
			t.Fatalf("tag filter: got %#v", got)
		}
	}
	{
		// Limit applies after the other filters, in catalog order.
		got := reg.Filter(config.Selection{Categories: []string{"devices"}, Limit: 1})
		if len(got) != 1 || got[0].ID != "printer-offline" {
			t.Fatalf("limit: got %#v", got)
		}
	}
	{
		got := reg.Filter(config.Selection{})
		if len(got) != 3 {
			t.Fatalf("no filters: got %d cases", len(got))
		}
	}
}
