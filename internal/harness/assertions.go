package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/activitysync/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Context  []string // Polls or broadcasts seen, for debugging
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Context) > 0 {
		fmt.Fprintf(&buf, "\nRecorded:\n")
		for i, body := range e.Context {
			fmt.Fprintf(&buf, "  [%d] %s\n", i, body)
		}
	}

	return buf.String()
}

func assertCount(kind string, recorded []string, want int) error {
	if len(recorded) == want {
		return nil
	}
	return &AssertionError{
		Type:     kind,
		Expected: fmt.Sprintf("%d", want),
		Actual:   fmt.Sprintf("%d", len(recorded)),
		Context:  recorded,
	}
}

// assertBody compares recorded[index] with the expected value as canonical
// JSON. Negative indexes count from the end.
func assertBody(kind string, recorded []string, index int, expected any) error {
	want, err := ir.MarshalCanonical(expected)
	if err != nil {
		return fmt.Errorf("%s: encode expected body: %w", kind, err)
	}

	i := index
	if i < 0 {
		i += len(recorded)
	}
	if i < 0 || i >= len(recorded) {
		return &AssertionError{
			Type:     kind,
			Expected: fmt.Sprintf("index %d: %s", index, want),
			Actual:   fmt.Sprintf("only %d recorded", len(recorded)),
			Context:  recorded,
		}
	}

	if recorded[i] != string(want) {
		return &AssertionError{
			Type:     kind,
			Expected: string(want),
			Actual:   recorded[i],
			Context:  recorded,
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against a result.
// Returns one message per failed assertion.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertPollCount:
			err = assertCount(assertion.Type, result.Polls, assertion.Count)
		case AssertPollBody:
			err = assertBody(assertion.Type, result.Polls, assertion.Index, assertion.Body)
		case AssertLastPollBody:
			err = assertBody(assertion.Type, result.Polls, -1, assertion.Body)
		case AssertBroadcastCount:
			err = assertCount(assertion.Type, result.Broadcasts, assertion.Count)
		case AssertBroadcastBody:
			err = assertBody(assertion.Type, result.Broadcasts, assertion.Index, assertion.Body)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
