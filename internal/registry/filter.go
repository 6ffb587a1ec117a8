package registry

import (
	"strings"

	"github.com/stellarlinkco/diag-eval/internal/config"
)

// Filter applies a selection to the catalog: id allow-list, then
// case-insensitive category and tag allow-lists, then the limit, preserving
// catalog order throughout.
func (r *Registry) Filter(sel config.Selection) []Case {
	if r == nil {
		return nil
	}

	ids := stringSet(sel.IDs, false)
	categories := stringSet(sel.Categories, true)
	tags := stringSet(sel.Tags, true)

	out := make([]Case, 0, len(r.Cases))
	for _, c := range r.Cases {
		if len(ids) > 0 {
			if _, ok := ids[c.ID]; !ok {
				continue
			}
		}
		if len(categories) > 0 {
			if _, ok := categories[strings.ToLower(c.Category)]; !ok {
				continue
			}
		}
		if len(tags) > 0 && !anyTagMatches(c.Tags, tags) {
			continue
		}
		out = append(out, c)
	}

	if sel.Limit > 0 && len(out) > sel.Limit {
		out = out[:sel.Limit]
	}
	return out
}

func anyTagMatches(caseTags []string, allowed map[string]struct{}) bool {
	for _, t := range caseTags {
		if _, ok := allowed[strings.ToLower(strings.TrimSpace(t))]; ok {
			return true
		}
	}
	return false
}

func stringSet(values []string, fold bool) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if fold {
			v = strings.ToLower(v)
		}
		out[v] = struct{}{}
	}
	return out
}
