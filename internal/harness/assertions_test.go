package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *Result {
	r := NewResult()
	r.Polls = []string{
		`[{"activities":["editing"],"element":"doc"}]`,
		`[]`,
	}
	r.Broadcasts = []string{
		`[{"activities":[{"type":"editing","user":"ana"}],"element":"doc"}]`,
	}
	return r
}

func TestEvaluateAssertions_AllPass(t *testing.T) {
	errs := EvaluateAssertions(sampleResult(), []Assertion{
		{Type: AssertPollCount, Count: 2},
		{Type: AssertPollBody, Index: 0, Body: []any{
			map[string]any{"element": "doc", "activities": []any{"editing"}},
		}},
		{Type: AssertLastPollBody, Body: []any{}},
		{Type: AssertBroadcastCount, Count: 1},
		{Type: AssertBroadcastBody, Body: []any{
			map[string]any{
				"element":    "doc",
				"activities": []any{map[string]any{"user": "ana", "type": "editing"}},
			},
		}},
	})
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_CountMismatch(t *testing.T) {
	errs := EvaluateAssertions(sampleResult(), []Assertion{{Type: AssertPollCount, Count: 3}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Assertion failed: poll_count")
	assert.Contains(t, errs[0], "Expected: 3")
	assert.Contains(t, errs[0], "Actual: 2")
}

func TestEvaluateAssertions_BodyMismatch(t *testing.T) {
	errs := EvaluateAssertions(sampleResult(), []Assertion{
		{Type: AssertPollBody, Index: 1, Body: []any{map[string]any{"element": "x", "activities": []any{"y"}}}},
	})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], `Expected: [{"activities":["y"],"element":"x"}]`)
	assert.Contains(t, errs[0], "Actual: []")
}

func TestEvaluateAssertions_IndexOutOfRange(t *testing.T) {
	errs := EvaluateAssertions(sampleResult(), []Assertion{
		{Type: AssertBroadcastBody, Index: 4, Body: []any{}},
		{Type: AssertPollBody, Index: -3, Body: []any{}},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "only 1 recorded")
	assert.Contains(t, errs[1], "only 2 recorded")
}

func TestEvaluateAssertions_NegativeIndex(t *testing.T) {
	errs := EvaluateAssertions(sampleResult(), []Assertion{
		{Type: AssertPollBody, Index: -2, Body: []any{
			map[string]any{"element": "doc", "activities": []any{"editing"}},
		}},
	})
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_LastPollWithNoPolls(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{{Type: AssertLastPollBody, Body: []any{}}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "only 0 recorded")
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	errs := EvaluateAssertions(sampleResult(), []Assertion{{Type: "final_state"}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], `unknown assertion type "final_state"`)
}

func TestAssertionError_IncludesRecorded(t *testing.T) {
	err := &AssertionError{Type: "poll_count", Expected: "1", Actual: "2", Context: []string{"[]", "[]"}}
	msg := err.Error()
	assert.Contains(t, msg, "Recorded:")
	assert.Contains(t, msg, "[1] []")
}
