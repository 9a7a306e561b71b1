package activity

import (
	"slices"

	"github.com/roach88/activitysync/internal/ir"
)

// slot is one group entry of an element.
type slot struct {
	group string
	typ   string
}

// Store is an insertion-ordered element -> group -> type map.
type Store struct {
	order    []string           // Element ids in insertion order
	elements map[string][]slot // Groups in insertion order
}

// New creates an empty Store.
func New() *Store {
	return &Store{elements: make(map[string][]slot)}
}

// Set makes typ the active type of group for element.
// Any previously active type of the group is replaced in place.
func (s *Store) Set(element, group, typ string) {
	slots, ok := s.elements[element]
	if !ok {
		s.order = append(s.order, element)
	}
	for i := range slots {
		if slots[i].group == group {
			slots[i].typ = typ
			return
		}
	}
	s.elements[element] = append(slots, slot{group: group, typ: typ})
}

// Clear removes typ from whichever group of element holds it.
// Empty groups and elements are pruned. No-op if absent.
func (s *Store) Clear(element, typ string) {
	slots, ok := s.elements[element]
	if !ok {
		return
	}
	slots = slices.DeleteFunc(slots, func(sl slot) bool { return sl.typ == typ })
	if len(slots) > 0 {
		s.elements[element] = slots
		return
	}
	s.remove(element)
}

// Active returns the active type of group for element.
func (s *Store) Active(element, group string) (string, bool) {
	for _, sl := range s.elements[element] {
		if sl.group == group {
			return sl.typ, true
		}
	}
	return "", false
}

// Has reports whether typ is active in any group of element.
func (s *Store) Has(element, typ string) bool {
	return slices.ContainsFunc(s.elements[element], func(sl slot) bool { return sl.typ == typ })
}

// Rename moves all groups of from to to.
//
// If to already has activities they are replaced and to keeps its position;
// otherwise to is appended. No-op if from is absent or equal to to.
// Reports whether anything moved.
func (s *Store) Rename(from, to string) bool {
	if from == to {
		return false
	}
	slots, ok := s.elements[from]
	if !ok {
		return false
	}
	s.remove(from)
	if _, exists := s.elements[to]; !exists {
		s.order = append(s.order, to)
	}
	s.elements[to] = slots
	return true
}

// Snapshot returns the poll body: one entry per element, never empty lists.
// The result is never nil so it encodes as [] when the store is empty.
func (s *Store) Snapshot() []ir.ElementSnapshot {
	out := make([]ir.ElementSnapshot, 0, len(s.order))
	for _, element := range s.order {
		slots := s.elements[element]
		activities := make([]string, len(slots))
		for i, sl := range slots {
			activities[i] = sl.typ
		}
		out = append(out, ir.ElementSnapshot{Element: element, Activities: activities})
	}
	return out
}

// Reset removes every entry.
func (s *Store) Reset() {
	s.order = nil
	clear(s.elements)
}

// Len returns the number of elements with at least one activity.
func (s *Store) Len() int {
	return len(s.order)
}

func (s *Store) remove(element string) {
	delete(s.elements, element)
	s.order = slices.DeleteFunc(s.order, func(e string) bool { return e == element })
}
