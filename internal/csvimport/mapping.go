package csvimport

import (
	"fmt"
	"strings"
)

// Field is a semantic target a CSV column can be mapped to.
type Field string

const (
	FieldDate        Field = "date"
	FieldDescription Field = "description"
	FieldAmount      Field = "amount"
	FieldType        Field = "type"
	FieldCategory    Field = "category"
	FieldIgnore      Field = "ignore"
)

// Fields lists the legal targets in the order offered to users.
var Fields = []Field{FieldDate, FieldDescription, FieldAmount, FieldType, FieldCategory, FieldIgnore}

// ParseField validates a mapping target.
func ParseField(s string) (Field, error) {
	switch f := Field(strings.ToLower(strings.TrimSpace(s))); f {
	case FieldDate, FieldDescription, FieldAmount, FieldType, FieldCategory, FieldIgnore:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown column target %q", ErrInvalidMapping, s)
	}
}

// Mapping assigns a target to each CSV header. Headers absent from the
// mapping are ignored.
type Mapping map[string]Field

// ParseMapping validates a user-submitted header -> target mapping.
func ParseMapping(raw map[string]string) (Mapping, error) {
	if len(raw) == 0 {
		return nil, ErrIncompleteMapping
	}
	m := make(Mapping, len(raw))
	for header, target := range raw {
		f, err := ParseField(target)
		if err != nil {
			return nil, err
		}
		m[header] = f
	}
	if !m.covers(FieldDate) || !m.covers(FieldAmount) {
		return nil, ErrIncompleteMapping
	}
	return m, nil
}

func (m Mapping) covers(target Field) bool {
	for _, f := range m {
		if f == target {
			return true
		}
	}
	return false
}

// Strings converts the mapping back to its wire form.
func (m Mapping) Strings() map[string]string {
	out := make(map[string]string, len(m))
	for h, f := range m {
		out[h] = string(f)
	}
	return out
}

type suggestionRule struct {
	target  Field
	matches func(key string) bool
}

func containsAny(words ...string) func(string) bool {
	return func(key string) bool {
		for _, w := range words {
			if strings.Contains(key, w) {
				return true
			}
		}
		return false
	}
}

// suggestionRules are tried in order; the first match decides a header.
var suggestionRules = []suggestionRule{
	{FieldDate, func(key string) bool {
		return strings.Contains(key, "date") && !strings.Contains(key, "updated")
	}},
	{FieldAmount, containsAny("amount", "value", "total")},
	{FieldDescription, containsAny("desc", "memo", "note")},
	{FieldType, containsAny("type", "credit", "debit")},
	{FieldCategory, containsAny("category", "group")},
}

// SuggestMapping guesses targets from header text. Each target is given
// to the first header that matches it; later matches stay unmapped.
func SuggestMapping(headers []string) Mapping {
	suggested := make(Mapping)
	taken := make(map[Field]bool)
	for _, header := range headers {
		key := strings.ToLower(strings.TrimSpace(header))
		if key == "" {
			continue
		}
		if _, seen := suggested[header]; seen {
			continue
		}
		for _, rule := range suggestionRules {
			if !rule.matches(key) {
				continue
			}
			if !taken[rule.target] {
				suggested[header] = rule.target
				taken[rule.target] = true
			}
			break
		}
	}
	return suggested
}
