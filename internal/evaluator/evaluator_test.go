package evaluator

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"Wi-Fi", "wifi"},
		{"wifi", "wifi"},
		{"  Printer   is\tOffline! ", "printer is offline"},
		{"error_code: DLP-403", "errorcode dlp403"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Fatalf("Normalize(%q): got %q want %q", tc.in, got, tc.want)
		}
	}
}

func TestContainsNormalizedEquivalence(t *testing.T) {
	t.Parallel()

	// Phrases that normalize identically are interchangeable.
	if !ContainsNormalized("enable Wi-Fi on the device", "wifi") {
		t.Fatalf("Wi-Fi should match wifi")
	}
	if !ContainsNormalized("enable wifi on the device", "Wi-Fi") {
		t.Fatalf("wifi should match Wi-Fi")
	}
	if ContainsNormalized("the network is fine", "wifi") {
		t.Fatalf("unexpected match")
	}
}

func TestSchemaCheckerMetadata(t *testing.T) {
	t.Parallel()

	c := SchemaChecker{ExpectedKeys: []string{"diagnosis", "nextSteps"}}

	{
		r := c.Check("", map[string]any{"diagnosis": "x", "nextSteps": []any{"a"}})
		if !r.Passed {
			t.Fatalf("all keys present: %+v", r)
		}
	}
	{
		// Renamed keys count as canonical.
		r := c.Check("", map[string]any{"root_cause": "x", "next_steps": []any{"a"}})
		if !r.Passed {
			t.Fatalf("renamed keys: %+v", r)
		}
	}
	{
		r := c.Check("plain text with no structure words at all", map[string]any{"diagnosis": "x"})
		if r.Passed {
			t.Fatalf("missing key should fail: %+v", r)
		}
		if !strings.Contains(r.Message, "nextSteps") {
			t.Fatalf("message: %q", r.Message)
		}
	}
}

func TestSchemaCheckerTextFallback(t *testing.T) {
	t.Parallel()

	c := SchemaChecker{ExpectedKeys: []string{"diagnosis"}}

	{
		r := c.Check("The likely cause is a stale driver.", nil)
		if !r.Passed {
			t.Fatalf("signal word fallback: %+v", r)
		}
	}
	{
		r := c.Check("hello there", nil)
		if r.Passed {
			t.Fatalf("no signal words should fail: %+v", r)
		}
	}

	// No expected schema: any non-empty response passes.
	none := SchemaChecker{}
	if r := none.Check("anything", nil); !r.Passed {
		t.Fatalf("no schema expected: %+v", r)
	}
	if r := none.Check("", nil); r.Passed {
		t.Fatalf("empty response should fail: %+v", r)
	}
}

func TestEvidenceChecker(t *testing.T) {
	t.Parallel()

	c := EvidenceChecker{Required: []string{"printer", "offline"}}

	{
		// Case-insensitive substring match.
		r := c.Check("The Printer is Offline due to driver issues", nil)
		if !r.Passed {
			t.Fatalf("case-insensitive match: %+v", r)
		}
	}
	{
		r := c.Check("The device is unreachable", nil)
		if r.Passed {
			t.Fatalf("expected failure: %+v", r)
		}
		missing := r.Details["missing"].([]string)
		if len(missing) != 2 {
			t.Fatalf("missing: %#v", missing)
		}
	}
	{
		// Evidence may live in the metadata, not the text.
		r := c.Check("see details", map[string]any{"diagnosis": "printer offline"})
		if !r.Passed {
			t.Fatalf("metadata evidence: %+v", r)
		}
	}

	// Hyphenation-insensitive matching.
	wifi := EvidenceChecker{Required: []string{"Wi-Fi"}}
	if r := wifi.Check("re-enable wifi on the laptop", nil); !r.Passed {
		t.Fatalf("Wi-Fi vs wifi: %+v", r)
	}
}

func TestForbiddenEvidenceChecker(t *testing.T) {
	t.Parallel()

	c := ForbiddenEvidenceChecker{Forbidden: []string{"factory reset", "reinstall"}}

	if r := c.Check("Check the print queue first.", nil); !r.Passed {
		t.Fatalf("clean response: %+v", r)
	}

	r := c.Check("You should factory-reset the device.", nil)
	if r.Passed {
		t.Fatalf("forbidden phrase should fail: %+v", r)
	}
	if found := r.Details["found"].([]string); len(found) != 1 || found[0] != "factory reset" {
		t.Fatalf("found: %#v", found)
	}
}

func TestToolCallChecker(t *testing.T) {
	t.Parallel()

	c := ToolCallChecker{Required: []string{"listDevices", "getAuditEvents"}}

	{
		// Unordered membership; extras are fine.
		r := c.Check([]string{"getAuditEvents", "searchDocs", "listDevices"})
		if !r.Passed {
			t.Fatalf("all present: %+v", r)
		}
	}
	{
		r := c.Check([]string{"listDevices"})
		if r.Passed {
			t.Fatalf("missing tool should fail: %+v", r)
		}
		if !strings.Contains(r.Message, "getAuditEvents") {
			t.Fatalf("message: %q", r.Message)
		}
	}

	none := ToolCallChecker{}
	if r := none.Check(nil); !r.Passed {
		t.Fatalf("no requirements: %+v", r)
	}
}

func TestRubricChecker(t *testing.T) {
	t.Parallel()

	c := RubricChecker{
		MinScore: 2,
		Criteria: []string{
			"identifies the driver issue",
			"recommend updating the driver",
			"verify the print queue",
		},
	}

	text := "The driver issue identifies an outdated package; you should try updating the driver and check the print queue."
	r := c.Check(text)
	if r.Score < 2 || !r.Passed {
		t.Fatalf("score=%d passed=%v matched=%v missed=%v", r.Score, r.Passed, r.Matched, r.Missed)
	}

	// Synonyms: "recommend" matched by "suggest".
	syn := RubricChecker{MinScore: 1, Criteria: []string{"recommend restart"}}
	if got := syn.Check("I suggest you reboot the printer."); !got.Passed {
		t.Fatalf("synonym match failed: %+v", got)
	}

	low := c.Check("No relevant content here.")
	if low.Passed || low.Score != 0 {
		t.Fatalf("expected score 0: %+v", low)
	}
	if len(low.Missed) != 3 {
		t.Fatalf("missed: %#v", low.Missed)
	}
}
