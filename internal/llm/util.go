package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ParseJSON unmarshals the first JSON object found in raw model output.
// Models asked for bare JSON still wrap it in markdown fences or prose often
// enough that the caller cannot assume a clean document.
func ParseJSON(raw string, out any) error {
	s := stripFences(strings.TrimSpace(raw))
	if s == "" {
		return errors.New("llm: empty output")
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return errors.New("llm: no JSON object in output")
	}

	return json.Unmarshal([]byte(s[start:end+1]), out)
}

// stripFences removes a surrounding ``` or ```json code fence, if any.
func stripFences(s string) string {
	rest, ok := strings.CutPrefix(s, "```")
	if !ok {
		return s
	}
	rest = strings.TrimSpace(strings.TrimPrefix(rest, "json"))
	if idx := strings.LastIndex(rest, "```"); idx >= 0 {
		rest = rest[:idx]
	}
	return strings.TrimSpace(rest)
}
