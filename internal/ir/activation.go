package ir

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Payload is a decoded bus signal payload.
type Payload map[string]any

// Lookup resolves a dotted path ("a.b.c") through nested objects.
func (p Payload) Lookup(path string) (any, bool) {
	if p == nil || path == "" {
		return nil, false
	}
	var cur any = map[string]any(p)
	for _, part := range strings.Split(path, ".") {
		obj, ok := asObject(cur)
		if !ok {
			return nil, false
		}
		cur, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// String resolves path to a non-empty string.
func (p Payload) String(path string) (string, bool) {
	v, ok := p.Lookup(path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func asObject(v any) (map[string]any, bool) {
	switch obj := v.(type) {
	case map[string]any:
		return obj, true
	case Payload:
		return obj, true
	default:
		return nil, false
	}
}

// FieldMatch is a declarative payload predicate.
// With Equals unset it tests the field for a truthy value; otherwise it tests
// equality. Not inverts the outcome.
type FieldMatch struct {
	Field  string `json:"field"`
	Equals any    `json:"equals,omitempty"`
	Not    bool   `json:"not,omitempty"`
}

// Eval evaluates the predicate against a payload.
func (m FieldMatch) Eval(p Payload) bool {
	v, ok := p.Lookup(m.Field)
	var result bool
	if m.Equals == nil {
		result = ok && truthy(v)
	} else {
		result = ok && scalarEqual(v, m.Equals)
	}
	if m.Not {
		return !result
	}
	return result
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	default:
		if f, ok := toFloat(val); ok {
			return f != 0
		}
		return true
	}
}

func scalarEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Activation is a tagged union deciding whether a signal activates:
// a literal boolean, a declarative FieldMatch, or an arbitrary evaluator.
type Activation struct {
	literal bool
	match   *FieldMatch
	fn      func(Payload) bool
}

// Literal returns an Activation that always resolves to b.
func Literal(b bool) Activation {
	return Activation{literal: b}
}

// WhenField returns an Activation evaluated by a FieldMatch.
func WhenField(m FieldMatch) Activation {
	return Activation{match: &m}
}

// When returns an Activation evaluated by fn.
func When(fn func(Payload) bool) Activation {
	return Activation{fn: fn}
}

// Resolve evaluates the activation for one payload.
func (a Activation) Resolve(p Payload) bool {
	switch {
	case a.fn != nil:
		return a.fn(p)
	case a.match != nil:
		return a.match.Eval(p)
	default:
		return a.literal
	}
}

// IsLiteral reports whether the activation ignores the payload.
func (a Activation) IsLiteral() bool {
	return a.fn == nil && a.match == nil
}

// Match returns the declarative predicate, if any.
func (a Activation) Match() (FieldMatch, bool) {
	if a.match == nil {
		return FieldMatch{}, false
	}
	return *a.match, true
}

// MarshalJSON encodes literals as booleans and matches as objects.
// Go evaluators have no JSON form.
func (a Activation) MarshalJSON() ([]byte, error) {
	switch {
	case a.fn != nil:
		return nil, errors.New("activation evaluator function cannot be encoded")
	case a.match != nil:
		return json.Marshal(a.match)
	default:
		return json.Marshal(a.literal)
	}
}

// UnmarshalJSON accepts a boolean or a FieldMatch object.
func (a *Activation) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*a = Literal(b)
		return nil
	}
	var m FieldMatch
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("activation must be a boolean or a field match: %w", err)
	}
	if m.Field == "" {
		return errors.New("field match requires a field")
	}
	*a = WhenField(m)
	return nil
}
