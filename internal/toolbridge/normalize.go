package toolbridge

// normalizeArgs rewrites built-in tool arguments to their canonical
// spelling. Models produce loosely named keys; downstream consumers expect
// exactly one shape per tool:
//
//	read_file:  {"path"|"uri": P}         -> {"uri": P}
//	write_file: {"path": P, "content": C} -> {"uri": P, "contents": C}
//	search:     {"query": Q}              -> {"query": Q}
//
// Unknown tools and argument objects missing the expected keys pass through
// unchanged.
func normalizeArgs(name string, args map[string]any) map[string]any {
	switch name {
	case "read_file":
		if v, ok := firstPresent(args, "path", "uri"); ok {
			return map[string]any{"uri": v}
		}

	case "write_file":
		v, ok := firstPresent(args, "path", "uri")
		if !ok {
			break
		}
		out := map[string]any{"uri": v}
		if c, ok := firstPresent(args, "content", "contents"); ok {
			out["contents"] = c
		}
		return out
	}

	return args
}

// firstPresent returns the value of the first listed key holding a non-empty
// value.
func firstPresent(args map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		v, ok := args[key]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && s == "" {
			continue
		}
		return v, true
	}
	return nil, false
}
