package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/activitysync/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrNameRequired         = "E101" // event name is required
	ErrElementKeyRequired   = "E102" // element key is required
	ErrTypeRequired         = "E103" // activity type is required
	ErrTransitionTarget     = "E104" // transition has no "to"
	ErrTimeoutOnTransitions = "E105" // timeout set on a transition list
	ErrNegativeTimeout      = "E106" // timeout below zero
	ErrDuplicateID          = "E107" // duplicate descriptor id
	ErrShadowedTransition   = "E108" // transition can never fire
	ErrRenameSameKey        = "E109" // rename key equals element key
	ErrInvalidPath          = "E110" // malformed dotted path
)

// ValidationError represents a descriptor validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a descriptor set. Returns all errors found (does not fail-fast).
func Validate(descs []ir.ActivityDescriptor) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]int)
	for i, d := range descs {
		label := descriptorLabel(d, i)
		errs = append(errs, validateDescriptor(d, label)...)

		if d.ID == "" {
			continue
		}
		if first, ok := seen[d.ID]; ok {
			errs = append(errs, ValidationError{
				Field:   label,
				Message: fmt.Sprintf("duplicate descriptor id (first declared at index %d)", first),
				Code:    ErrDuplicateID,
			})
			continue
		}
		seen[d.ID] = i
	}
	return errs
}

func descriptorLabel(d ir.ActivityDescriptor, i int) string {
	switch {
	case d.ID != "":
		return "activity." + d.ID
	case d.Name != "":
		return "activity." + d.Name
	default:
		return fmt.Sprintf("activity[%d]", i)
	}
}

func validateDescriptor(d ir.ActivityDescriptor, label string) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(d.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   label + ".event",
			Message: "event name is required",
			Code:    ErrNameRequired,
		})
	}

	if d.ElementKey == "" {
		errs = append(errs, ValidationError{
			Field:   label + ".element",
			Message: "element key is required",
			Code:    ErrElementKeyRequired,
		})
	} else if !isValidPath(d.ElementKey) {
		errs = append(errs, ValidationError{
			Field:   label + ".element",
			Message: fmt.Sprintf("invalid dotted path %q", d.ElementKey),
			Code:    ErrInvalidPath,
		})
	}

	if d.RenameToKey != "" {
		if !isValidPath(d.RenameToKey) {
			errs = append(errs, ValidationError{
				Field:   label + ".rename_to",
				Message: fmt.Sprintf("invalid dotted path %q", d.RenameToKey),
				Code:    ErrInvalidPath,
			})
		} else if d.RenameToKey == d.ElementKey {
			errs = append(errs, ValidationError{
				Field:   label + ".rename_to",
				Message: "rename key must differ from the element key",
				Code:    ErrRenameSameKey,
			})
		}
	}

	if d.Timeout < 0 {
		errs = append(errs, ValidationError{
			Field:   label + ".timeout",
			Message: "timeout must not be negative",
			Code:    ErrNegativeTimeout,
		})
	}

	switch {
	case d.Type.IsZero():
		errs = append(errs, ValidationError{
			Field:   label + ".type",
			Message: "activity type is required",
			Code:    ErrTypeRequired,
		})
	case d.Type.IsTransitions():
		errs = append(errs, validateTransitions(d, label)...)
	}

	return errs
}

func validateTransitions(d ir.ActivityDescriptor, label string) []ValidationError {
	var errs []ValidationError

	if d.Timeout > 0 {
		errs = append(errs, ValidationError{
			Field:   label + ".timeout",
			Message: "timeout has no effect on a transition list",
			Code:    ErrTimeoutOnTransitions,
		})
	}

	// The first transition whose From matches wins, so a repeated From is dead.
	from := make(map[string]int)
	for i, t := range d.Type.TransitionList() {
		field := fmt.Sprintf("%s.type[%d]", label, i)
		if t.To == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".to",
				Message: "transition target is required",
				Code:    ErrTransitionTarget,
			})
		}
		if first, ok := from[t.From]; ok {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("unreachable: shadowed by transition %d with the same from", first),
				Code:    ErrShadowedTransition,
			})
			continue
		}
		from[t.From] = i
	}
	return errs
}

// isValidPath rejects empty segments ("a..b", ".a", "a.").
func isValidPath(path string) bool {
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			return false
		}
	}
	return true
}
