// Package vocabulary holds the ordered catalog of editing tools the detector
// can recognize and the matcher that maps recognized screen text to a tool.
//
// A Vocabulary is an ordered sequence, not a set. When recognized text names
// more than one tool, the entry declared first wins, so reordering entries
// changes detection results. Never sort a Vocabulary.
package vocabulary

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicate is returned by New when the same tool name appears twice.
var ErrDuplicate = errors.New("duplicate tool name")

// Tool is a detected tool name. The zero value means no tool was detected.
type Tool string

// None is the result of a match that found no vocabulary entry.
const None Tool = ""

// IsNone reports whether no tool was detected.
func (t Tool) IsNone() bool {
	return t == None
}

// Vocabulary is an immutable ordered list of tool names.
type Vocabulary struct {
	names   []string
	lowered []string
}

// New builds a Vocabulary preserving the given order. Empty names and
// case-sensitive duplicates are rejected.
func New(names []string) (*Vocabulary, error) {
	seen := make(map[string]struct{}, len(names))
	v := &Vocabulary{
		names:   make([]string, 0, len(names)),
		lowered: make([]string, 0, len(names)),
	}
	for i, name := range names {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("tool name at position %d is empty", i)
		}
		if _, ok := seen[name]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicate, name)
		}
		seen[name] = struct{}{}
		v.names = append(v.names, name)
		v.lowered = append(v.lowered, strings.ToLower(name))
	}
	return v, nil
}

// MustNew is New for package-level literals; it panics on invalid input.
func MustNew(names []string) *Vocabulary {
	v, err := New(names)
	if err != nil {
		panic(err)
	}
	return v
}

// Names returns a copy of the tool names in declaration order.
func (v *Vocabulary) Names() []string {
	out := make([]string, len(v.names))
	copy(out, v.names)
	return out
}

// Len returns the number of tools.
func (v *Vocabulary) Len() int {
	return len(v.names)
}

// Match returns the first tool, in declaration order, whose name appears in
// text as a case-insensitive substring. Empty or noisy text yields None.
func (v *Vocabulary) Match(text string) Tool {
	if text == "" {
		return None
	}
	haystack := strings.ToLower(text)
	for i, needle := range v.lowered {
		if strings.Contains(haystack, needle) {
			return Tool(v.names[i])
		}
	}
	return None
}
