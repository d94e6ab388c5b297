package pipeline

import (
	"regexp"
	"sort"
)

// placeholderPattern matches literal {{name}} tokens. Names are simple
// identifiers; this is deliberate template substitution, not a template
// language.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}`)

// Substitute replaces {{name}} tokens in s with entries from the value
// map. Unresolved placeholders are left verbatim and their names are
// returned so the caller can report them; they are never silently dropped.
func Substitute(s string, values map[string]string) (string, []string) {
	if s == "" {
		return s, nil
	}

	unresolved := map[string]struct{}{}
	out := placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if v, ok := values[name]; ok {
			return v
		}
		unresolved[name] = struct{}{}
		return match
	})

	if len(unresolved) == 0 {
		return out, nil
	}
	names := make([]string, 0, len(unresolved))
	for name := range unresolved {
		names = append(names, name)
	}
	sort.Strings(names)
	return out, names
}

// SubstituteMap applies Substitute to every value of a string map,
// returning the resolved copy and the union of unresolved placeholder
// names.
func SubstituteMap(m map[string]string, values map[string]string) (map[string]string, []string) {
	if len(m) == 0 {
		return m, nil
	}
	out := make(map[string]string, len(m))
	seen := map[string]struct{}{}
	var unresolved []string
	for k, v := range m {
		resolved, missing := Substitute(v, values)
		out[k] = resolved
		for _, name := range missing {
			if _, dup := seen[name]; !dup {
				seen[name] = struct{}{}
				unresolved = append(unresolved, name)
			}
		}
	}
	sort.Strings(unresolved)
	return out, unresolved
}
