package types

// Event represents a structured state change recorded by the sale ledger.
// Attributes are flat string pairs so downstream indexers can consume them
// without schema knowledge.
type Event struct {
	Type       string
	Attributes map[string]string
}

// Copy returns a deep copy so stored events cannot be mutated by callers.
func (e *Event) Copy() Event {
	attrs := make(map[string]string, len(e.Attributes))
	for k, v := range e.Attributes {
		attrs[k] = v
	}
	return Event{Type: e.Type, Attributes: attrs}
}
