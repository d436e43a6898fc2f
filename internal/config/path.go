package config

import (
	"sort"
	"strings"
)

const pathSpecial = `.*?|#@!\`

// EscapeKey escapes a single key so it can be used as one path segment,
// e.g. a file pattern like "*.go".
func EscapeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		if strings.ContainsRune(pathSpecial, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// JoinPath joins already escaped segments.
func JoinPath(parts ...string) string {
	return strings.Join(parts, ".")
}

// validPath reports whether path is a plain dotted key path: non-empty
// segments and no unescaped query characters.
func validPath(path string) bool {
	if path == "" {
		return false
	}

	segment := 0
	for i := 0; i < len(path); i++ {
		c := path[i]
		switch {
		case c == '\\':
			if i+1 >= len(path) {
				return false
			}
			i++
			segment++
		case c == '.':
			if segment == 0 {
				return false
			}
			segment = 0
		case strings.IndexByte(pathSpecial, c) >= 0:
			return false
		default:
			segment++
		}
	}
	return segment > 0
}

// flatten maps every leaf of m to its escaped key path. Arrays are leaves.
func flatten(m map[string]any, prefix string, out map[string]any) {
	for k, v := range m {
		path := EscapeKey(k)
		if prefix != "" {
			path = prefix + "." + path
		}
		if nested, ok := v.(map[string]any); ok && len(nested) > 0 {
			flatten(nested, path, out)
			continue
		}
		out[path] = v
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
