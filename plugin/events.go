package plugin

import "sync"

type subscriber struct {
	owner string
	fn    func(payload interface{})
}

// EventBus is the synchronous, registration-order, engine-scoped bus
// plugins use to emit and subscribe to arbitrary named events (spec
// §4.10, §5: "scoped to a single engine").
type EventBus struct {
	mu   sync.Mutex
	subs map[string][]subscriber
}

func newEventBus() *EventBus {
	return &EventBus{subs: make(map[string][]subscriber)}
}

// Subscribe registers fn to run, in registration order, whenever event is
// emitted.
func (b *EventBus) Subscribe(owner, event string, fn func(payload interface{})) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[event] = append(b.subs[event], subscriber{owner: owner, fn: fn})
}

// Emit delivers payload synchronously to every subscriber of event, in
// the order they subscribed.
func (b *EventBus) Emit(event string, payload interface{}) {
	b.mu.Lock()
	subs := append([]subscriber(nil), b.subs[event]...)
	b.mu.Unlock()
	for _, s := range subs {
		func() {
			defer func() { recover() }()
			s.fn(payload)
		}()
	}
}
