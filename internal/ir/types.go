package ir

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActivityDescriptor binds one bus event to an activity update.
// Descriptors are immutable once handed to the engine.
type ActivityDescriptor struct {
	// ID is the configuration label the descriptor was compiled from.
	ID string `json:"id,omitempty"`

	// Name is the bus event name the descriptor subscribes to.
	Name string `json:"name"`

	// ElementKey is the payload field (dotted path allowed) holding the element id.
	ElementKey string `json:"element_key"`

	// Type is either a plain activity type or an ordered transition list.
	Type ActivityType `json:"type"`

	// Active decides whether the signal activates or deactivates Type.
	Active Activation `json:"active"`

	// Timeout auto-deactivates a plain activity after the given duration.
	// Zero means no timeout.
	Timeout time.Duration `json:"timeout,omitempty"`

	// Group is the mutual-exclusion namespace. Empty means the default group
	// (the type itself for plain types, the descriptor name for transitions).
	Group string `json:"group,omitempty"`

	// RenameToKey names the payload field holding the element's new id.
	RenameToKey string `json:"rename_to_key,omitempty"`
}

// GroupFor returns the group an activation of activityType lands in.
func (d ActivityDescriptor) GroupFor(activityType string) string {
	if d.Group != "" {
		return d.Group
	}
	if d.Type.IsTransitions() {
		return d.Name
	}
	return activityType
}

// Transition swaps the active type of a group from From to To.
// An empty From matches a group with no active type.
type Transition struct {
	From string `json:"from,omitempty"`
	To   string `json:"to"`
}

// ActivityType is a tagged union: a plain type name or a transition list.
type ActivityType struct {
	plain       string
	transitions []Transition
}

// PlainType creates a plain ActivityType.
func PlainType(name string) ActivityType {
	return ActivityType{plain: name}
}

// Transitions creates a transition-list ActivityType. The slice is copied.
func Transitions(ts ...Transition) ActivityType {
	cp := make([]Transition, len(ts))
	copy(cp, ts)
	return ActivityType{transitions: cp}
}

// IsTransitions reports whether the type is a transition list.
func (t ActivityType) IsTransitions() bool {
	return t.transitions != nil
}

// Plain returns the plain type name (empty for transition lists).
func (t ActivityType) Plain() string {
	return t.plain
}

// TransitionList returns the transitions in declaration order.
func (t ActivityType) TransitionList() []Transition {
	return t.transitions
}

// IsZero reports whether neither variant is set.
func (t ActivityType) IsZero() bool {
	return t.plain == "" && len(t.transitions) == 0
}

// MarshalJSON encodes a plain type as a string and transitions as an array.
func (t ActivityType) MarshalJSON() ([]byte, error) {
	if t.IsTransitions() {
		return json.Marshal(t.transitions)
	}
	return json.Marshal(t.plain)
}

// UnmarshalJSON accepts either a string or an array of transitions.
func (t *ActivityType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = PlainType(s)
		return nil
	}
	var ts []Transition
	if err := json.Unmarshal(data, &ts); err != nil {
		return fmt.Errorf("activity type must be a string or a transition list: %w", err)
	}
	*t = Transitions(ts...)
	return nil
}

// ElementSnapshot is one entry of the outbound poll body.
type ElementSnapshot struct {
	Element    string   `json:"element"`
	Activities []string `json:"activities"`
}

// UserActivity is one collaborator activity reported by the remote endpoint.
type UserActivity struct {
	User      string `json:"user"`
	Type      string `json:"type"`
	Timestamp *float64 `json:"timestamp,omitempty"` // any JSON number
}

// ElementActivity groups collaborator activities by element. It is both the
// remote response entry and the broadcast payload entry.
type ElementActivity struct {
	Element    string         `json:"element"`
	Activities []UserActivity `json:"activities"`
}
