package engine

import "github.com/roach88/activitysync/internal/ir"

// evaluateTransition returns the first transition, in list order, that applies
// to a group whose active type is current (hasCurrent false: nothing active).
//
// A transition applies when its From equals the current type, or when From is
// empty and nothing is active. Later applicable transitions are ignored.
func evaluateTransition(transitions []ir.Transition, current string, hasCurrent bool) (ir.Transition, bool) {
	for _, t := range transitions {
		if hasCurrent && t.From == current {
			return t, true
		}
		if !hasCurrent && t.From == "" {
			return t, true
		}
	}
	return ir.Transition{}, false
}
