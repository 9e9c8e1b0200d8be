package template

import "regexp"

var (
	// tokenPattern tolerates whitespace inside the braces: {{ key }} and
	// {{key}} both reference "key". Keys are a contiguous [A-Za-z0-9_] run, so
	// unbalanced or nested braces never match.
	tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

	// rawTokenPattern is the strict form with no whitespace tolerance. It
	// matches whole tokens, braces included.
	rawTokenPattern = regexp.MustCompile(`\{\{[a-zA-Z0-9_]+\}\}`)
)

// Scan extracts the variable keys referenced as {{key}} in text, deduplicated
// in first-occurrence order. Returns an empty slice when text has no tokens.
func Scan(text string) []string {
	matches := tokenPattern.FindAllStringSubmatch(text, -1)
	keys := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		k := m[1]
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

// ScanRaw extracts strict {{key}} tokens verbatim (braces included, no
// internal whitespace), deduplicated in first-occurrence order. Callers use it
// to check that tokens survived an external text transformation untouched.
func ScanRaw(text string) []string {
	matches := rawTokenPattern.FindAllString(text, -1)
	tokens := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		tokens = append(tokens, m)
	}
	return tokens
}
