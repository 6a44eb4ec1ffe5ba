package cats

import "sync"

// AllChannel is the implicit channel every connection joins once it reaches
// READY — after a successful handshake when one is configured, right after
// the connect phase otherwise (spec.md §4.7).
const AllChannel = "__all__"

// channelRegistry is the Application-owned channel_name → set of
// connections table (spec.md §4.7). It is the one piece of state shared
// mutably across connections, so mutation is a short critical section and
// iteration hands back a snapshot slice so a concurrent attach/detach can't
// invalidate a broadcast in progress.
type channelRegistry struct {
	mu       sync.RWMutex
	channels map[string]map[*Connection]struct{}
}

func newChannelRegistry() *channelRegistry {
	return &channelRegistry{channels: make(map[string]map[*Connection]struct{})}
}

// attach adds conn to name in both the Application table and the
// connection's own local set.
func (r *channelRegistry) attach(conn *Connection, name string) {
	r.mu.Lock()
	set, ok := r.channels[name]
	if !ok {
		set = make(map[*Connection]struct{})
		r.channels[name] = set
	}
	set[conn] = struct{}{}
	r.mu.Unlock()

	conn.channelsMu.Lock()
	conn.channels[name] = struct{}{}
	conn.channelsMu.Unlock()
}

// detach removes conn from name in both tables.
func (r *channelRegistry) detach(conn *Connection, name string) {
	r.mu.Lock()
	if set, ok := r.channels[name]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(r.channels, name)
		}
	}
	r.mu.Unlock()

	conn.channelsMu.Lock()
	delete(conn.channels, name)
	conn.channelsMu.Unlock()
}

// detachAll removes conn from every channel it belongs to, called once
// during Connection.Close (spec.md §4.7, §5).
func (r *channelRegistry) detachAll(conn *Connection) {
	conn.channelsMu.Lock()
	names := make([]string, 0, len(conn.channels))
	for name := range conn.channels {
		names = append(names, name)
	}
	conn.channels = make(map[string]struct{})
	conn.channelsMu.Unlock()

	r.mu.Lock()
	for _, name := range names {
		if set, ok := r.channels[name]; ok {
			delete(set, conn)
			if len(set) == 0 {
				delete(r.channels, name)
			}
		}
	}
	r.mu.Unlock()
}

// snapshot returns the connections currently in name, safe to range over
// without holding any lock (spec.md §4.7 "iteration returns a snapshot").
func (r *channelRegistry) snapshot(name string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.channels[name]
	out := make([]*Connection, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// Publish sends resp to every connection currently in channel name.
// Delivery is best-effort per recipient: a slow or closed receiver never
// blocks others (spec.md §4.7) — each send runs on its own goroutine,
// taking that recipient's write mutex, so one stuck peer cannot stall the
// broadcast loop. Publish returns without waiting for the sends, and their
// write errors are discarded.
func (a *Server) Publish(channel string, messageID uint16, resp *Response) {
	for _, conn := range a.channels.snapshot(channel) {
		c := conn
		go func() {
			_ = c.writeResponse(messageID, resp)
		}()
	}
}
