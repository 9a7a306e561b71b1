package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadLookup(t *testing.T) {
	p := Payload{
		"id":  "doc-1",
		"doc": map[string]any{"meta": map[string]any{"id": "nested"}},
		"n":   3,
	}

	v, ok := p.Lookup("id")
	require.True(t, ok)
	assert.Equal(t, "doc-1", v)

	v, ok = p.Lookup("doc.meta.id")
	require.True(t, ok)
	assert.Equal(t, "nested", v)

	_, ok = p.Lookup("doc.missing")
	assert.False(t, ok)

	_, ok = p.Lookup("id.deeper")
	assert.False(t, ok)

	_, ok = p.Lookup("")
	assert.False(t, ok)
}

func TestPayloadString(t *testing.T) {
	p := Payload{"id": "doc-1", "empty": "", "n": 3}

	s, ok := p.String("id")
	assert.True(t, ok)
	assert.Equal(t, "doc-1", s)

	_, ok = p.String("empty")
	assert.False(t, ok, "empty string is not an element id")

	_, ok = p.String("n")
	assert.False(t, ok)
}

func TestFieldMatchEval(t *testing.T) {
	p := Payload{"state": "open", "count": float64(2), "flag": false, "nested": map[string]any{"on": true}}

	tests := []struct {
		name  string
		match FieldMatch
		want  bool
	}{
		{"equals string", FieldMatch{Field: "state", Equals: "open"}, true},
		{"not equals string", FieldMatch{Field: "state", Equals: "closed"}, false},
		{"numeric across types", FieldMatch{Field: "count", Equals: int64(2)}, true},
		{"truthy nested", FieldMatch{Field: "nested.on"}, true},
		{"falsy bool", FieldMatch{Field: "flag"}, false},
		{"missing", FieldMatch{Field: "absent"}, false},
		{"negated missing", FieldMatch{Field: "absent", Not: true}, true},
		{"negated equals", FieldMatch{Field: "state", Equals: "open", Not: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.match.Eval(p))
		})
	}
}

func TestActivationResolve(t *testing.T) {
	p := Payload{"open": true}

	assert.True(t, Literal(true).Resolve(p))
	assert.False(t, Literal(false).Resolve(p))
	assert.True(t, WhenField(FieldMatch{Field: "open"}).Resolve(p))
	assert.False(t, When(func(p Payload) bool { return len(p) == 0 }).Resolve(p))

	var zero Activation
	assert.False(t, zero.Resolve(p), "zero activation is literal false")
	assert.True(t, zero.IsLiteral())
}

func TestActivationJSON(t *testing.T) {
	data, err := json.Marshal(Literal(true))
	require.NoError(t, err)
	assert.Equal(t, "true", string(data))

	data, err = json.Marshal(WhenField(FieldMatch{Field: "state", Equals: "open"}))
	require.NoError(t, err)
	assert.Equal(t, `{"field":"state","equals":"open"}`, string(data))

	var got Activation
	require.NoError(t, json.Unmarshal(data, &got))
	m, ok := got.Match()
	require.True(t, ok)
	assert.Equal(t, "state", m.Field)

	_, err = json.Marshal(When(func(Payload) bool { return true }))
	assert.Error(t, err)

	assert.Error(t, json.Unmarshal([]byte(`{"equals":1}`), &got))
}
