package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are named after it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Descriptors is a CUE file or directory, relative to the scenario file.
	Descriptors string `yaml:"descriptors,omitempty"`

	// CUE holds inline descriptor source. Exactly one of Descriptors and CUE is set.
	CUE string `yaml:"cue,omitempty"`

	// Interval overrides the poll cadence. Zero means the engine default.
	Interval time.Duration `yaml:"interval,omitempty"`

	// Responses are served to polls in order; the last one repeats.
	Responses []Response `yaml:"responses,omitempty"`

	// Steps drive the engine.
	Steps []Step `yaml:"steps"`

	// Assertions validate the polls and broadcasts.
	Assertions []Assertion `yaml:"assertions"`
}

// Response is the remote endpoint's answer to one poll.
type Response struct {
	// Body is the element activity list returned on success.
	Body any `yaml:"body,omitempty"`

	// Error fails the poll with this message.
	Error string `yaml:"error,omitempty"`
}

// Step is one scenario action. Exactly one of Publish, Advance and Stop is set.
type Step struct {
	// Publish is the bus event to publish.
	Publish string `yaml:"publish,omitempty"`

	// Payload is published with the event.
	Payload any `yaml:"payload,omitempty"`

	// Advance moves the fake clock forward.
	Advance time.Duration `yaml:"advance,omitempty"`

	// Stop stops the engine, sending the sign-off poll.
	Stop bool `yaml:"stop,omitempty"`
}

// Assertion validates polls or broadcasts.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Count is the expected number (poll_count, broadcast_count).
	Count int `yaml:"count,omitempty"`

	// Index selects the poll or broadcast (poll_body, broadcast_body).
	// Negative values count from the end.
	Index int `yaml:"index,omitempty"`

	// Body is the expected JSON value (poll_body, last_poll_body, broadcast_body).
	Body any `yaml:"body,omitempty"`
}

// Assertion type constants.
const (
	AssertPollCount      = "poll_count"
	AssertPollBody       = "poll_body"
	AssertLastPollBody   = "last_poll_body"
	AssertBroadcastCount = "broadcast_count"
	AssertBroadcastBody  = "broadcast_body"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	// Resolve the descriptor path relative to the scenario file BEFORE validation
	if scenario.Descriptors != "" && !filepath.IsAbs(scenario.Descriptors) {
		scenario.Descriptors = filepath.Join(filepath.Dir(path), scenario.Descriptors)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario decodes a scenario with strict field checking. Descriptor
// paths are left as written and not validated.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml and *.yml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Descriptors == "" && s.CUE == "":
		return fmt.Errorf("one of descriptors or cue is required")
	case s.Descriptors != "" && s.CUE != "":
		return fmt.Errorf("descriptors and cue are mutually exclusive")
	case s.Descriptors != "":
		if _, err := os.Stat(s.Descriptors); os.IsNotExist(err) {
			return fmt.Errorf("descriptors not found: %s", s.Descriptors)
		}
	}

	if s.Interval < 0 {
		return fmt.Errorf("interval must not be negative")
	}

	for i, r := range s.Responses {
		if r.Body != nil && r.Error != "" {
			return fmt.Errorf("responses[%d]: body and error are mutually exclusive", i)
		}
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, step Step) error {
	actions := 0
	if step.Publish != "" {
		actions++
	}
	if step.Advance != 0 {
		actions++
	}
	if step.Stop {
		actions++
	}
	if actions != 1 {
		return fmt.Errorf("steps[%d]: exactly one of publish, advance or stop is required", index)
	}
	if step.Advance < 0 {
		return fmt.Errorf("steps[%d]: advance must be positive", index)
	}
	if step.Payload != nil && step.Publish == "" {
		return fmt.Errorf("steps[%d]: payload requires publish", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertPollCount, AssertBroadcastCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertPollBody, AssertLastPollBody, AssertBroadcastBody:
		if a.Body == nil {
			return fmt.Errorf("assertions[%d]: body is required for %s", index, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
