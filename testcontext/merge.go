package testcontext

// merge returns src merged over dst without modifying either. Objects are
// merged key by key and arrays index by index; any other src value replaces
// dst.
func merge(dst, src any) any {
	switch s := src.(type) {
	case map[string]any:
		d, ok := dst.(map[string]any)
		if !ok {
			return merge(map[string]any{}, s)
		}
		out := make(map[string]any, len(d)+len(s))
		for k, v := range d {
			out[k] = clone(v)
		}
		for k, v := range s {
			out[k] = merge(out[k], v)
		}
		return out
	case []any:
		d, ok := dst.([]any)
		if !ok {
			d = nil
		}
		out := make([]any, max(len(d), len(s)))
		for i := range out {
			switch {
			case i < len(s) && i < len(d):
				out[i] = merge(d[i], s[i])
			case i < len(s):
				out[i] = clone(s[i])
			default:
				out[i] = clone(d[i])
			}
		}
		return out
	default:
		return src
	}
}

func clone(v any) any {
	switch t := v.(type) {
	case map[string]any, []any:
		return merge(nil, t)
	default:
		return v
	}
}

// fold merges fragments left to right into a new object.
func fold(fragments ...map[string]any) map[string]any {
	var acc any = map[string]any{}
	for _, f := range fragments {
		if f == nil {
			continue
		}
		acc = merge(acc, f)
	}
	return acc.(map[string]any)
}
