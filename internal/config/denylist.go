package config

import "strings"

// DefaultIgnoredSchemes returns the schemes listed in a fresh config. The
// tracker rejects these two regardless; configured schemes only add to them.
func DefaultIgnoredSchemes() []string {
	return []string{
		"chrome",
		"chrome-extension",
	}
}

// NormalizeList lowercases entries, strips a trailing ':' and drops blanks
// and duplicates. Used for schemes and excluded domains read from YAML or env.
func NormalizeList(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(v), ":"))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
