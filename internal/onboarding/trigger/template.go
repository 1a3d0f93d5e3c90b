package trigger

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-$]+)\s*\}\}`)

// render replaces {{name}} placeholders with context values. Unresolved
// placeholders are left as they are.
func render(s string, vars *runContext) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		if v, ok := vars.get(name); ok {
			return v
		}
		return m
	})
}

// renderValue walks a decoded JSON body and renders every string in it.
func renderValue(v interface{}, vars *runContext) interface{} {
	switch t := v.(type) {
	case string:
		return render(t, vars)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[render(k, vars)] = renderValue(val, vars)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = renderValue(val, vars)
		}
		return out
	default:
		return v
	}
}

// lookupPath resolves a dotted path such as "data.tasks.0.taskId" in a
// decoded JSON document.
func lookupPath(doc interface{}, path string) (interface{}, error) {
	cur := doc
	if path == "" || path == "." {
		return cur, nil
	}
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]interface{}:
			next, ok := node[seg]
			if !ok {
				return nil, fmt.Errorf("path %q: key %q not found", path, seg)
			}
			cur = next
		case []interface{}:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("path %q: index %q out of range", path, seg)
			}
			cur = node[idx]
		default:
			return nil, fmt.Errorf("path %q: cannot descend into %T at %q", path, cur, seg)
		}
	}
	return cur, nil
}
