package mcp

import "path/filepath"

// stringParam extracts an optional string parameter.
func stringParam(params map[string]interface{}, key string) string {
	v, _ := params[key].(string)
	return v
}

// intParam extracts an integer parameter; JSON numbers arrive as float64.
func intParam(params map[string]interface{}, key string) (int, bool) {
	switch v := params[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

// stringSliceParam extracts an optional array-of-strings parameter.
func stringSliceParam(params map[string]interface{}, key string) []string {
	raw, ok := params[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// resolveInRoot makes a client-supplied path absolute against the
// workspace root.
func (s *MCPServer) resolveInRoot(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.root, path)
}
