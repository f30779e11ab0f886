package model

// CloneProperties deep copies a free-form JSON map. A nil map stays nil.
func CloneProperties(m map[string]any) map[string]any {
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
		return CloneProperties(t)
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []string:
		if t == nil {
			return t
		}
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}
