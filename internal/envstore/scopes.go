package envstore

import "strings"

const maxExpandDepth = 8

// storedVar is one persisted variable. Expand marks values that may
// reference other variables as %NAME%.
type storedVar struct {
	Value  string
	Expand bool
}

// mergeScopes combines machine and user variables the way Windows builds a
// new logon environment: user values win, except Path, which lists machine
// entries before user entries. Expandable values resolve against the merged
// set first and base second. Keys in the result are upper case.
func mergeScopes(machine, user map[string]storedVar, base EnvironmentSnapshot) map[string]string {
	merged := make(map[string]storedVar, len(machine)+len(user))
	for name, v := range machine {
		merged[strings.ToUpper(name)] = v
	}
	for name, v := range user {
		key := strings.ToUpper(name)
		if prev, ok := merged[key]; ok && key == "PATH" {
			v = storedVar{Value: prev.Value + ";" + v.Value, Expand: prev.Expand || v.Expand}
		}
		merged[key] = v
	}

	var resolve func(key string, depth int) string
	resolve = func(key string, depth int) string {
		v := merged[key]
		if !v.Expand || depth > maxExpandDepth {
			return v.Value
		}
		return expandPercent(v.Value, func(name string) (string, bool) {
			upper := strings.ToUpper(name)
			if _, ok := merged[upper]; ok && upper != key {
				return resolve(upper, depth+1), true
			}
			return base.Get(name)
		})
	}

	out := make(map[string]string, len(merged))
	for key := range merged {
		out[key] = resolve(key, 0)
	}
	return out
}

// expandPercent replaces %NAME% references using lookup. Unknown names and
// unpaired percent signs are kept as written.
func expandPercent(s string, lookup func(string) (string, bool)) string {
	var b strings.Builder
	for {
		start := strings.IndexByte(s, '%')
		if start < 0 {
			break
		}
		end := strings.IndexByte(s[start+1:], '%')
		if end < 0 {
			break
		}
		end += start + 1
		b.WriteString(s[:start])
		name := s[start+1 : end]
		if value, ok := lookup(name); ok && name != "" {
			b.WriteString(value)
		} else {
			b.WriteString(s[start : end+1])
		}
		s = s[end+1:]
	}
	b.WriteString(s)
	return b.String()
}
