// Package bus defines the publish/subscribe surface the engine runs against
// and an in-memory implementation.
package bus

import "sync"

// Handler receives one published payload.
type Handler func(payload any)

// Subscription cancels a handler registration.
type Subscription interface {
	Unsubscribe()
}

// Bus delivers named events to subscribed handlers.
type Bus interface {
	Subscribe(event string, h Handler) Subscription
	Publish(event string, payload any)
}

// Memory is a synchronous in-process Bus.
//
// Publish calls handlers on the publishing goroutine in subscription order.
// Handlers may subscribe, unsubscribe or publish without deadlocking.
//
// Thread-safety: Memory is safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[string][]registration
}

type registration struct {
	id uint64
	h  Handler
}

// NewMemory creates an empty in-memory bus.
func NewMemory() *Memory {
	return &Memory{handlers: make(map[string][]registration)}
}

// Subscribe registers h for event.
func (m *Memory) Subscribe(event string, h Handler) Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.handlers[event] = append(m.handlers[event], registration{id: id, h: h})
	return &memorySubscription{bus: m, event: event, id: id}
}

// Publish delivers payload to every handler subscribed to event.
// The handler list is copied first, so a handler removed mid-publish may
// still receive this one payload.
func (m *Memory) Publish(event string, payload any) {
	m.mu.RLock()
	regs := make([]registration, len(m.handlers[event]))
	copy(regs, m.handlers[event])
	m.mu.RUnlock()

	for _, r := range regs {
		r.h(payload)
	}
}

// SubscriberCount returns the number of handlers registered for event.
func (m *Memory) SubscriberCount(event string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[event])
}

func (m *Memory) unsubscribe(event string, id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	regs := m.handlers[event]
	for i, r := range regs {
		if r.id == id {
			m.handlers[event] = append(regs[:i:i], regs[i+1:]...)
			break
		}
	}
	if len(m.handlers[event]) == 0 {
		delete(m.handlers, event)
	}
}

type memorySubscription struct {
	bus   *Memory
	event string
	id    uint64
	once  sync.Once
}

// Unsubscribe is idempotent.
func (s *memorySubscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.unsubscribe(s.event, s.id)
	})
}
