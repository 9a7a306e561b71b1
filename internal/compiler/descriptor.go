package compiler

import (
	"fmt"
	"math"
	"time"

	"cuelang.org/go/cue"

	"github.com/roach88/activitysync/internal/ir"
)

// descriptorFields lists the accepted fields of one activity block.
var descriptorFields = map[string]bool{
	"event":     true,
	"element":   true,
	"type":      true,
	"active":    true,
	"timeout":   true,
	"group":     true,
	"rename_to": true,
}

// CompileDescriptors compiles every block under the top-level "activity"
// struct, in declaration order. All compile errors are returned.
//
//	activity: editing: {
//		event:   "editor.focus"
//		element: "document.path"
//		type:    "editing"
//		active:  {field: "focused", equals: true}
//		timeout: 30
//	}
func CompileDescriptors(v cue.Value) ([]ir.ActivityDescriptor, []error) {
	if err := v.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}

	activities := v.LookupPath(cue.ParsePath("activity"))
	if !activities.Exists() {
		return nil, []error{&CompileError{
			Field:   "activity",
			Message: "no activity descriptors declared",
			Pos:     v.Pos(),
		}}
	}

	iter, err := activities.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var descs []ir.ActivityDescriptor
	var errs []error
	for iter.Next() {
		d, err := CompileDescriptor(iter.Value())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		descs = append(descs, *d)
	}
	return descs, errs
}

// CompileDescriptor parses one activity block. The block's label is the
// descriptor ID and, unless "event" is set, its bus event name.
func CompileDescriptor(v cue.Value) (*ir.ActivityDescriptor, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	d := &ir.ActivityDescriptor{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		d.ID = labels[len(labels)-1].Unquoted()
	}
	prefix := "activity." + d.ID

	if err := checkFields(v, prefix); err != nil {
		return nil, err
	}

	var err error
	d.Name = d.ID
	if d.Name, err = optionalString(v, "event", prefix, d.Name); err != nil {
		return nil, err
	}

	elementVal := v.LookupPath(cue.ParsePath("element"))
	if !elementVal.Exists() {
		return nil, &CompileError{Field: prefix + ".element", Message: "element is required", Pos: v.Pos()}
	}
	if d.ElementKey, err = nonEmptyString(elementVal, prefix+".element"); err != nil {
		return nil, err
	}

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return nil, &CompileError{Field: prefix + ".type", Message: "type is required", Pos: v.Pos()}
	}
	if d.Type, err = parseActivityType(typeVal, prefix+".type"); err != nil {
		return nil, err
	}

	d.Active = ir.Literal(true)
	if activeVal := v.LookupPath(cue.ParsePath("active")); activeVal.Exists() {
		if d.Active, err = parseActivation(activeVal, prefix+".active"); err != nil {
			return nil, err
		}
	}

	if timeoutVal := v.LookupPath(cue.ParsePath("timeout")); timeoutVal.Exists() {
		if d.Timeout, err = parseTimeout(timeoutVal, prefix+".timeout"); err != nil {
			return nil, err
		}
	}

	if d.Group, err = optionalString(v, "group", prefix, ""); err != nil {
		return nil, err
	}
	if d.RenameToKey, err = optionalString(v, "rename_to", prefix, ""); err != nil {
		return nil, err
	}

	return d, nil
}

func checkFields(v cue.Value, prefix string) error {
	iter, err := v.Fields()
	if err != nil {
		return &CompileError{Field: prefix, Message: "activity must be a struct", Pos: v.Pos()}
	}
	for iter.Next() {
		label := iter.Selector().Unquoted()
		if !descriptorFields[label] {
			return &CompileError{
				Field:   prefix + "." + label,
				Message: fmt.Sprintf("unknown field %q", label),
				Pos:     iter.Value().Pos(),
			}
		}
	}
	return nil
}

func optionalString(v cue.Value, field, prefix, fallback string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return fallback, nil
	}
	return nonEmptyString(fv, prefix+"."+field)
}

func nonEmptyString(v cue.Value, field string) (string, error) {
	s, err := v.String()
	if err != nil {
		return "", &CompileError{Field: field, Message: "must be a string", Pos: v.Pos()}
	}
	if s == "" {
		return "", &CompileError{Field: field, Message: "must not be empty", Pos: v.Pos()}
	}
	return s, nil
}

// parseActivityType accepts a type name or a list of {from?, to} transitions.
func parseActivityType(v cue.Value, field string) (ir.ActivityType, error) {
	if v.Kind() == cue.StringKind {
		s, err := nonEmptyString(v, field)
		if err != nil {
			return ir.ActivityType{}, err
		}
		return ir.PlainType(s), nil
	}

	list, err := v.List()
	if err != nil {
		return ir.ActivityType{}, &CompileError{
			Field:   field,
			Message: "must be a type name or a list of transitions",
			Pos:     v.Pos(),
		}
	}

	var transitions []ir.Transition
	for i := 0; list.Next(); i++ {
		item := list.Value()
		itemField := fmt.Sprintf("%s[%d]", field, i)

		toVal := item.LookupPath(cue.ParsePath("to"))
		if !toVal.Exists() {
			return ir.ActivityType{}, &CompileError{Field: itemField + ".to", Message: "to is required", Pos: item.Pos()}
		}
		to, err := nonEmptyString(toVal, itemField+".to")
		if err != nil {
			return ir.ActivityType{}, err
		}
		from, err := optionalString(item, "from", itemField, "")
		if err != nil {
			return ir.ActivityType{}, err
		}
		transitions = append(transitions, ir.Transition{From: from, To: to})
	}

	if len(transitions) == 0 {
		return ir.ActivityType{}, &CompileError{Field: field, Message: "transition list must not be empty", Pos: v.Pos()}
	}
	return ir.Transitions(transitions...), nil
}

// parseActivation accepts a bool or {field, equals?, not?}.
func parseActivation(v cue.Value, field string) (ir.Activation, error) {
	if b, err := v.Bool(); err == nil {
		return ir.Literal(b), nil
	}

	fieldVal := v.LookupPath(cue.ParsePath("field"))
	if !fieldVal.Exists() {
		return ir.Activation{}, &CompileError{
			Field:   field,
			Message: "must be a bool or a {field, equals?, not?} match",
			Pos:     v.Pos(),
		}
	}

	var m ir.FieldMatch
	var err error
	if m.Field, err = nonEmptyString(fieldVal, field+".field"); err != nil {
		return ir.Activation{}, err
	}

	if eqVal := v.LookupPath(cue.ParsePath("equals")); eqVal.Exists() {
		if err := eqVal.Decode(&m.Equals); err != nil {
			return ir.Activation{}, &CompileError{Field: field + ".equals", Message: "must be a concrete value", Pos: eqVal.Pos()}
		}
	}

	if notVal := v.LookupPath(cue.ParsePath("not")); notVal.Exists() {
		if m.Not, err = notVal.Bool(); err != nil {
			return ir.Activation{}, &CompileError{Field: field + ".not", Message: "must be a bool", Pos: notVal.Pos()}
		}
	}

	return ir.WhenField(m), nil
}

// parseTimeout reads a positive number of seconds.
func parseTimeout(v cue.Value, field string) (time.Duration, error) {
	secs, err := v.Float64()
	if err != nil {
		return 0, &CompileError{Field: field, Message: "must be a number of seconds", Pos: v.Pos()}
	}
	if secs <= 0 || math.IsInf(secs, 0) || math.IsNaN(secs) {
		return 0, &CompileError{Field: field, Message: "must be positive", Pos: v.Pos()}
	}
	return time.Duration(secs * float64(time.Second)), nil
}
