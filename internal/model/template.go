package model

import "time"

// VariableDecl declares a substitution variable on a template: the key
// referenced as {{key}} in subject/body, a label shown to the agent, and an
// example value used when no override is supplied at send time.
type VariableDecl struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Example string `json:"example"`
}

// Template is an email template owned by an agent. Subject and both bodies may
// contain {{key}} placeholders. Variables is stored as a JSON column.
type Template struct {
	ID         int64          `db:"id" json:"id"`
	AgentID    int64          `db:"agent_id" json:"-"`
	Name       string         `db:"name" json:"name"`
	Subject    string         `db:"subject" json:"subject"`
	BodyText   string         `db:"body_text" json:"body_text"`
	BodyHTML   string         `db:"body_html" json:"body_html"`
	SenderName *string        `db:"sender_name" json:"sender_name,omitempty"`
	Variables  []VariableDecl `db:"-" json:"variables"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// DedupeVariables collapses duplicate keys, keeping the last declaration
// (last-write-wins) while preserving the position of the first occurrence.
func DedupeVariables(vars []VariableDecl) []VariableDecl {
	if len(vars) < 2 {
		return vars
	}
	idx := make(map[string]int, len(vars))
	out := make([]VariableDecl, 0, len(vars))
	for _, v := range vars {
		if i, ok := idx[v.Key]; ok {
			out[i] = v
			continue
		}
		idx[v.Key] = len(out)
		out = append(out, v)
	}
	return out
}
