// Package query turns free text into an intent and, for relational intents,
// into a parameterized statement against a discovered schema.
package query

import "strings"

// Type is the intent of a query.
type Type string

const (
	Structured   Type = "structured"
	Unstructured Type = "unstructured"
	Hybrid       Type = "hybrid"
)

// WantsSQL reports whether the relational path runs for t.
func (t Type) WantsSQL() bool { return t == Structured || t == Hybrid }

// WantsDocs reports whether the document path runs for t.
func (t Type) WantsDocs() bool { return t == Unstructured || t == Hybrid }

// Checked in order. Matching is plain substring containment on the
// lower-cased text, so "stop" contains "top".
var (
	unstructuredWords = []string{"who", "what", "when", "where", "summary", "describe", "details"}
	structuredWords   = []string{"count", "sum", "average", "list", "how many", "top", "highest", "lowest"}
)

// Classify maps text to an intent. It is deterministic and stateless.
func Classify(text string) Type {
	q := strings.ToLower(text)
	if containsAny(q, unstructuredWords) {
		return Unstructured
	}
	if containsAny(q, structuredWords) {
		return Structured
	}
	return Hybrid
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
