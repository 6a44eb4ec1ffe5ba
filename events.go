package cats

import (
	"log/slog"
	"sync"
)

// Event names the named lifecycle hooks in spec.md §4.8.
type Event string

const (
	EventServerStart   Event = "SERVER_START"
	EventServerClose   Event = "SERVER_CLOSE"
	EventConnStart     Event = "CONN_START"
	EventConnClose     Event = "CONN_CLOSE"
	EventHandshakePass Event = "HANDSHAKE_PASS"
	EventHandshakeFail Event = "HANDSHAKE_FAIL"
	EventBeforeRequest  Event = "BEFORE_REQUEST"
	EventAfterRequest   Event = "AFTER_REQUEST"
	EventBeforeResponse Event = "BEFORE_RESPONSE"
	EventAfterResponse  Event = "AFTER_RESPONSE"
	EventHandleError    Event = "HANDLE_ERROR"
)

// Listener observes or, for BEFORE_* and HANDLE_ERROR, rewrites a value
// flowing through the event point. Returning a non-nil replacement swaps
// out for the remainder of the pipeline; returning nil leaves the value
// unchanged. A non-HANDLE_ERROR listener that panics or returns an error is
// logged and swallowed — it never reaches the reactor (spec.md §4.8, §7).
type Listener func(ctx *EventContext) (replacement any, err error)

// EventContext carries the payload a listener may inspect or replace.
// Conn is set for every connection-scoped event. Value holds a *Request for
// BEFORE_REQUEST/AFTER_REQUEST/HANDLE_ERROR and a *Response for
// BEFORE_RESPONSE/AFTER_RESPONSE. Err holds the handler error for
// HANDLE_ERROR, the failure for HANDSHAKE_FAIL, and the close cause (nil
// for a plain close) for CONN_CLOSE.
type EventContext struct {
	Event Event
	Conn  *Connection
	Value any
	Err   error
}

// EventBus is the synchronous, named-hook fan-out described in spec.md
// §4.8. The zero value is ready to use.
type EventBus struct {
	mu        sync.RWMutex
	listeners map[Event][]Listener
	logger    *slog.Logger
}

// NewEventBus returns a ready-to-use EventBus. Use setLogger (wired
// automatically by NewServer) to have swallowed listener failures logged.
func NewEventBus() *EventBus { return &EventBus{listeners: make(map[Event][]Listener)} }

// setLogger attaches l so Fire can log listener panics/errors it swallows
// instead of dropping them silently (spec.md §4.8 "logged and swallowed").
func (b *EventBus) setLogger(l *slog.Logger) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = l
}

// On registers fn to run whenever ev fires. Registration is expected to
// happen during setup, before Server.Serve; it is safe to call concurrently
// with Fire but new listeners only affect subsequent fires.
func (b *EventBus) On(ev Event, fn Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listeners == nil {
		b.listeners = make(map[Event][]Listener)
	}
	b.listeners[ev] = append(b.listeners[ev], fn)
}

// Fire runs every listener registered for ev synchronously and in
// registration order, feeding each listener's replacement (if any) into the
// EventContext seen by the next listener. It returns the final value (the
// original ctx.Value if no listener replaced it) and, for HANDLE_ERROR
// only, propagates the listener's returned error so the caller can re-enter
// the error path with a different error (spec.md §4.8). For every other
// event, Fire logs a listener error at Warn (when the bus has a logger) and
// otherwise ignores it.
func (b *EventBus) Fire(ctx *EventContext) (any, error) {
	b.mu.RLock()
	fns := append([]Listener(nil), b.listeners[ctx.Event]...)
	logger := b.logger
	b.mu.RUnlock()

	value := ctx.Value
	for _, fn := range fns {
		replacement, err := safeCall(logger, ctx.Event, fn, ctx)
		if err != nil {
			if ctx.Event == EventHandleError {
				return value, err
			}
			if logger != nil {
				logger.Warn("cats: event listener returned error",
					slog.String("event", string(ctx.Event)), slog.Any("error", err))
			}
			continue
		}
		if replacement != nil {
			value = replacement
			ctx.Value = replacement
		}
	}
	return value, nil
}

// safeCall recovers a panicking listener so it cannot take down the
// reactor goroutine, logging what it swallowed via logger when one is
// configured (spec.md §4.8: "listener exceptions ... are logged and
// swallowed").
func safeCall(logger *slog.Logger, ev Event, fn Listener, ctx *EventContext) (replacement any, err error) {
	defer func() {
		if r := recover(); r != nil {
			if logger != nil {
				logger.Error("cats: event listener panicked",
					slog.String("event", string(ev)), slog.Any("panic", r))
			}
			err = nil
			replacement = nil
		}
	}()
	return fn(ctx)
}
