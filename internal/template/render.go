package template

import (
	"strings"

	"github.com/hostwell/mailgate/internal/model"
)

// Render substitutes {{key}} tokens in text. Overrides win over declared
// variables; declared variables without an override render from their example
// value; tokens matching neither are left as literal text.
//
// Substitution is a single pass over the original text: an inserted value is
// never re-scanned, so a value containing "{{" lands verbatim. HTML bodies go
// through the same path as subjects and plain text; the function has no HTML
// awareness.
func Render(text string, vars []model.VariableDecl, overrides map[string]string) string {
	values := make(map[string]string, len(vars)+len(overrides))
	for _, vd := range model.DedupeVariables(vars) {
		values[vd.Key] = vd.Example
	}
	for k, v := range overrides {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		values[k] = v
	}

	return rawTokenPattern.ReplaceAllStringFunc(text, func(tok string) string {
		key := tok[2 : len(tok)-2]
		if v, ok := values[key]; ok {
			return v
		}
		return tok
	})
}
