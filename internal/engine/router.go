package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/activitysync/internal/ir"
)

// handleSignal is the bus handler of one descriptor.
func (e *Engine) handleSignal(d ir.ActivityDescriptor, raw any) {
	e.turn(func() { e.applySignal(d, raw) })
}

// applySignal resolves one payload and applies it.
//
// Order within the turn:
//  1. resolve element, rename target and activation (drop malformed)
//  2. rename element -> new element
//  3. dispatch to store / transitions / timeouts
//  4. restart the cadence, whose immediate tick snapshots the updated store
//
// Called only inside a turn.
func (e *Engine) applySignal(d ir.ActivityDescriptor, raw any) {
	payload, err := toPayload(raw)
	if err != nil {
		e.rejectSignal(d, raw, err.Error())
		return
	}

	element, ok := payload.String(d.ElementKey)
	if !ok {
		e.rejectSignal(d, raw, fmt.Sprintf("payload has no element at %q", d.ElementKey))
		return
	}

	active := d.Active.Resolve(payload)
	outcome := ir.SignalApplied

	if d.RenameToKey != "" {
		if to, ok := payload.String(d.RenameToKey); ok {
			if to != element {
				// Handles on to only go when the store replaced its activities.
				if e.store.Rename(element, to) {
					e.timeouts.Rename(element, to)
				}
				outcome = ir.SignalRenamed
				e.logger.Debug("element renamed", "event", d.Name, "from", element, "to", to)
			}
			element = to
		} else {
			e.logger.Warn("rename target missing, applying to original element",
				"event", d.Name,
				"element", element,
				"rename_key", d.RenameToKey,
			)
		}
	}

	e.dispatch(d, element, active)
	e.recordSignal(ir.SignalRecord{
		Event:   d.Name,
		Element: element,
		Payload: encodePayload(payload),
		Outcome: outcome,
	})
	e.scheduler.Restart()

	e.logger.Debug("signal processed",
		"event", d.Name,
		"element", element,
		"active", active,
		"generation", e.scheduler.Generation(),
	)
}

// dispatch applies a resolved signal to the store.
func (e *Engine) dispatch(d ir.ActivityDescriptor, element string, active bool) {
	if d.Type.IsTransitions() {
		// Inactive transition signals are inert.
		if !active {
			return
		}
		group := d.GroupFor("")
		current, has := e.store.Active(element, group)
		t, ok := evaluateTransition(d.Type.TransitionList(), current, has)
		if !ok {
			e.logger.Debug("no transition matched", "event", d.Name, "element", element, "current", current)
			return
		}
		e.store.Set(element, group, t.To)
		return
	}

	typ := d.Type.Plain()
	if !active {
		e.store.Clear(element, typ)
		e.timeouts.Cancel(element, typ)
		return
	}

	group := d.GroupFor(typ)
	prev, replaced := e.store.Active(element, group)
	e.store.Set(element, group, typ)
	if replaced && prev != typ && !e.store.Has(element, prev) {
		e.timeouts.Cancel(element, prev)
	}
	if d.Timeout > 0 {
		e.timeouts.Arm(element, typ, d.Timeout)
	}
}

// expire is the timeout registry callback. Called only inside a turn.
func (e *Engine) expire(element, typ string) {
	e.store.Clear(element, typ)
	e.logger.Debug("activity timed out", "element", element, "type", typ)
	e.recordSignal(ir.SignalRecord{Element: element, Outcome: ir.SignalTimeout})
}

func (e *Engine) rejectSignal(d ir.ActivityDescriptor, raw any, reason string) {
	err := NewMalformedSignalError(d.Name, reason)
	e.logger.Error("dropping malformed signal",
		"event", d.Name,
		"element_key", d.ElementKey,
		"error", err,
	)
	var encoded []byte
	if raw != nil {
		encoded, _ = json.Marshal(raw)
	}
	e.recordSignal(ir.SignalRecord{Event: d.Name, Payload: encoded, Outcome: ir.SignalMalformed})
}

func (e *Engine) recordSignal(rec ir.SignalRecord) {
	if e.journal == nil {
		return
	}
	rec.Seq = e.seq.Next()
	if err := e.journal.RecordSignal(context.Background(), rec); err != nil {
		e.logger.Warn("journal signal write failed", "seq", rec.Seq, "error", err)
	}
}

// toPayload accepts decoded JSON objects directly and round-trips anything
// else (structs, raw JSON) through encoding/json.
func toPayload(raw any) (ir.Payload, error) {
	switch p := raw.(type) {
	case nil:
		return nil, fmt.Errorf("payload is absent")
	case ir.Payload:
		return p, nil
	case map[string]any:
		return ir.Payload(p), nil
	case json.RawMessage:
		return decodePayload(p)
	case []byte:
		return decodePayload(p)
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("payload is not JSON encodable: %w", err)
	}
	return decodePayload(data)
}

func decodePayload(data []byte) (ir.Payload, error) {
	var p ir.Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("payload is not a JSON object: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("payload is absent")
	}
	return p, nil
}

// encodePayload prefers canonical JSON; payloads with fractional numbers
// fall back to encoding/json.
func encodePayload(p ir.Payload) []byte {
	if data, err := ir.MarshalCanonical(map[string]any(p)); err == nil {
		return data
	}
	data, _ := json.Marshal(p)
	return data
}
