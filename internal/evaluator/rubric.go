package evaluator

import "strings"

// criterionSynonyms lets a rubric criterion match common paraphrases of its
// action words.
var criterionSynonyms = map[string][]string{
	"recommend": {"enable", "configure", "suggest", "try", "apply"},
	"verify":    {"check", "confirm", "ensure", "validate"},
	"disable":   {"turn off", "deactivate", "remove"},
	"escalate":  {"contact support", "open a ticket", "file a ticket"},
	"restart":   {"reboot", "power cycle"},
}

// stopwords excluded from word-level criterion matching.
var rubricStopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {},
	"to": {}, "for": {}, "with": {}, "that": {}, "this": {}, "about": {},
}

// RubricChecker scores a response against a criteria checklist. A criterion
// matches as a whole normalized substring, or word-by-word where each
// significant word may match through the synonym table.
type RubricChecker struct {
	Criteria []string
	MinScore int
}

func (c RubricChecker) Check(text string) RubricResult {
	out := RubricResult{MinScore: c.MinScore}
	if len(c.Criteria) == 0 {
		out.Passed = true
		return out
	}

	normText := Normalize(text)
	for _, criterion := range c.Criteria {
		if criterionMatches(normText, criterion) {
			out.Matched = append(out.Matched, criterion)
			continue
		}
		out.Missed = append(out.Missed, criterion)
	}

	out.Score = len(out.Matched)
	out.Passed = out.Score >= c.MinScore
	return out
}

func criterionMatches(normText string, criterion string) bool {
	normCriterion := Normalize(criterion)
	if normCriterion == "" {
		return true
	}
	if strings.Contains(normText, normCriterion) {
		return true
	}

	words := strings.Fields(normCriterion)
	significant := 0
	for _, w := range words {
		if _, stop := rubricStopwords[w]; stop {
			continue
		}
		significant++
		if !wordMatches(normText, w) {
			return false
		}
	}
	return significant > 0
}

func wordMatches(normText string, word string) bool {
	if strings.Contains(normText, word) {
		return true
	}
	for _, syn := range criterionSynonyms[word] {
		if strings.Contains(normText, Normalize(syn)) {
			return true
		}
	}
	return false
}
