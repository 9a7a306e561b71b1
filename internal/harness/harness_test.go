package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const editorCUE = `
activity: focus: {element: "id", type: "editing"}
activity: blur:  {element: "id", type: "editing", active: false}
`

func TestRun_PublishPolls(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "publish",
		Description: "one publish, one poll",
		CUE:         editorCUE,
		Steps:       []Step{{Publish: "focus", Payload: map[string]any{"id": "doc"}}},
		Assertions: []Assertion{
			{Type: AssertPollCount, Count: 1},
			{Type: AssertBroadcastCount, Count: 1},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, []string{`[{"activities":["editing"],"element":"doc"}]`}, result.Polls)
	assert.Equal(t, []string{`[]`}, result.Broadcasts)

	require.Len(t, result.Trace, 2)
	assert.Equal(t, TraceSignal, result.Trace[0].Type)
	assert.Equal(t, "focus", result.Trace[0].Event)
	assert.Equal(t, TracePoll, result.Trace[1].Type)
	assert.Equal(t, "poll-1", result.Trace[1].PollID)
	assert.Equal(t, "cadence", result.Trace[1].Reason)
}

func TestRun_NoStopExcludesSignOff(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "nostop",
		Description: "implicit stop is not recorded",
		CUE:         editorCUE,
		Steps:       []Step{{Publish: "focus", Payload: map[string]any{"id": "doc"}}},
		Assertions:  []Assertion{{Type: AssertPollCount, Count: 1}},
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Len(t, result.Polls, 1)
}

func TestRun_FailingAssertions(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "failing",
		Description: "assertion mismatch is a result, not an error",
		CUE:         editorCUE,
		Steps:       []Step{{Publish: "focus", Payload: map[string]any{"id": "doc"}}},
		Assertions: []Assertion{
			{Type: AssertPollCount, Count: 7},
			{Type: AssertLastPollBody, Body: []any{}},
		},
	})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Len(t, result.Errors, 2)
}

func TestRun_FailedPollsAreTraced(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "failures",
		Description: "errors are journaled and never broadcast",
		CUE:         editorCUE,
		Responses:   []Response{{Error: "service unavailable"}},
		Steps: []Step{
			{Publish: "focus", Payload: map[string]any{"id": "doc"}},
			{Stop: true},
		},
		Assertions: []Assertion{
			{Type: AssertPollCount, Count: 2},
			{Type: AssertBroadcastCount, Count: 0},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)

	last := result.Trace[len(result.Trace)-1]
	assert.Equal(t, "signoff", last.Reason)
	assert.Equal(t, "failed", last.Status)
	assert.Equal(t, "service unavailable", last.Error)
	assert.Nil(t, last.Response)
}

func TestRun_MalformedSignalIsTraced(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "malformed",
		Description: "payload without element is dropped",
		CUE:         editorCUE,
		Steps:       []Step{{Publish: "focus", Payload: map[string]any{"other": "doc"}}},
		Assertions:  []Assertion{{Type: AssertPollCount, Count: 0}},
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, "malformed", result.Trace[0].Outcome)
}

func TestRun_UnknownEventIsIgnored(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "unknown",
		Description: "no descriptor listens",
		CUE:         editorCUE,
		Steps:       []Step{{Publish: "nobody.listens", Payload: map[string]any{"id": "doc"}}},
		Assertions:  []Assertion{{Type: AssertPollCount, Count: 0}},
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Empty(t, result.Trace)
}

func TestRun_InvalidDescriptors(t *testing.T) {
	_, err := Run(&Scenario{
		Name:        "invalid",
		Description: "timeout on transitions",
		CUE:         `activity: r: {element: "id", type: [{to: "a"}], timeout: 5}`,
		Steps:       []Step{{Stop: true}},
		Assertions:  []Assertion{{Type: AssertPollCount}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid descriptors")
	assert.Contains(t, err.Error(), "E105")
}

func TestRun_CompileError(t *testing.T) {
	_, err := Run(&Scenario{
		Name:        "compile",
		Description: "missing element",
		CUE:         `activity: r: {type: "t"}`,
		Steps:       []Step{{Stop: true}},
		Assertions:  []Assertion{{Type: AssertPollCount}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile descriptors")
}

func TestRun_InvalidScenario(t *testing.T) {
	_, err := Run(&Scenario{Name: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid scenario")
}

func TestRun_ScenarioFiles(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, result.Errors)
		})
	}
}

func TestRespondFrom_RepeatsLast(t *testing.T) {
	respond := respondFrom([]Response{{Body: []any{}}, {Error: "boom"}})

	_, err := respond(recorded())
	assert.NoError(t, err)
	_, err = respond(recorded())
	assert.EqualError(t, err, "boom")
	_, err = respond(recorded())
	assert.EqualError(t, err, "boom")
}
