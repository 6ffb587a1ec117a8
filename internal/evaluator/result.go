package evaluator

// Result is the uniform contract returned by every checker. Assertion
// outcomes are values, never errors: a checker reports failure through
// Passed, not by returning an error.
type Result struct {
	Passed  bool           `json:"passed"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// RubricResult scores a response against a qualitative checklist.
type RubricResult struct {
	Score    int      `json:"score"`
	MinScore int      `json:"minScore"`
	Matched  []string `json:"matched,omitempty"`
	Missed   []string `json:"missed,omitempty"`
	Passed   bool     `json:"passed"`
}
