package filter

// Connection identifies a session opened by a user of interest.
type Connection struct {
	User         string
	PrivUser     string
	ConnectionID string
}

// ConnectionTrace is the ordered list of connections observed during one
// pass. It only grows.
type ConnectionTrace struct {
	conns []Connection
}

// Add appends c to the trace.
func (t *ConnectionTrace) Add(c Connection) {
	t.conns = append(t.conns, c)
}

// Lookup returns the most recently traced connection with the given id.
// Connection ids are reused after a server restart, so the latest wins.
func (t *ConnectionTrace) Lookup(id string) (Connection, bool) {
	for i := len(t.conns) - 1; i >= 0; i-- {
		if t.conns[i].ConnectionID == id {
			return t.conns[i], true
		}
	}
	return Connection{}, false
}

// Len returns the number of traced connections.
func (t *ConnectionTrace) Len() int {
	return len(t.conns)
}

// All returns a copy of the traced connections in the order they were seen.
func (t *ConnectionTrace) All() []Connection {
	out := make([]Connection, len(t.conns))
	copy(out, t.conns)
	return out
}
