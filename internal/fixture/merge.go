package fixture

// DeepMerge merges override into base without mutating either. Object keys
// merge recursively; non-object values (arrays, scalars) are replaced by the
// override. A nil side yields the other side unchanged.
func DeepMerge(base map[string]any, override map[string]any) map[string]any {
	if base == nil && override == nil {
		return nil
	}
	if base == nil {
		return cloneMap(override)
	}
	if override == nil {
		return cloneMap(base)
	}

	out := cloneMap(base)
	for k, ov := range override {
		bv, ok := out[k]
		if !ok {
			out[k] = cloneValue(ov)
			continue
		}
		bMap, bIsMap := bv.(map[string]any)
		oMap, oIsMap := ov.(map[string]any)
		if bIsMap && oIsMap {
			out[k] = DeepMerge(bMap, oMap)
			continue
		}
		out[k] = cloneValue(ov)
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}
