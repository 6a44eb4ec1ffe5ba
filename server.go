// Package cats implements the CATS connection-scoped protocol engine:
// framing, the per-connection state machine, handler dispatch, payload
// codecs, flow control, and the channel registry (spec.md §§1–4).
package cats

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cifrazia/cats/handshake"
)

// Server is the Application of spec.md §4.7/§2.7: a collection of routers
// (here, one Router shared by every connection), the channel directory,
// and the connection acceptor. ServerID is a UUID generated by NewServer
// and attached as the server_id attribute of Connection.Logger, for
// correlation across connections handled by the same Server.
type Server struct {
	ServerID uuid.UUID

	router   *Router
	events   *EventBus
	channels *channelRegistry
	logger   *slog.Logger

	handshake        handshake.Plugin
	idleTimeout      time.Duration
	inputTimeout     time.Duration
	maxPlainDataSize int64
	defaultDLSpeed   uint32
	pingInterval     time.Duration

	mu    sync.Mutex
	conns map[*Connection]struct{}

	listener net.Listener
}

// Option configures a Server, generalizing the functional-option pattern
// the teacher applies throughout options.go/netopts.go.
type Option func(*Server)

func WithRouter(r *Router) Option             { return func(s *Server) { s.router = r } }
func WithEventBusOption(b *EventBus) Option    { return func(s *Server) { s.events = b } }
func WithLogger(l *slog.Logger) Option         { return func(s *Server) { s.logger = l } }
func WithHandshake(p handshake.Plugin) Option  { return func(s *Server) { s.handshake = p } }
func WithIdleTimeout(d time.Duration) Option   { return func(s *Server) { s.idleTimeout = d } }
func WithInputTimeout(d time.Duration) Option  { return func(s *Server) { s.inputTimeout = d } }
func WithMaxPlainDataSize(n int64) Option      { return func(s *Server) { s.maxPlainDataSize = n } }
func WithDefaultDownloadSpeed(v uint32) Option { return func(s *Server) { s.defaultDLSpeed = v } }
func WithPingInterval(d time.Duration) Option  { return func(s *Server) { s.pingInterval = d } }

// Defaults per spec.md §6.
const (
	DefaultIdleTimeout      = 120 * time.Second
	DefaultInputTimeout     = 120 * time.Second
	DefaultMaxPlainDataSize = 16 << 20 // 16 MiB
	DefaultDownloadSpeed    = 32 << 20 // 32 MiB/s
	DefaultPingInterval     = 30 * time.Second
)

// NewServer builds a Server. A Router must be supplied via WithRouter (and
// already Build() before the first Serve call); everything else defaults
// per spec.md §6.
func NewServer(opts ...Option) *Server {
	s := &Server{
		ServerID:         uuid.New(),
		events:           NewEventBus(),
		channels:         newChannelRegistry(),
		logger:           slog.Default(),
		idleTimeout:      DefaultIdleTimeout,
		inputTimeout:     DefaultInputTimeout,
		maxPlainDataSize: DefaultMaxPlainDataSize,
		defaultDLSpeed:   DefaultDownloadSpeed,
		pingInterval:     DefaultPingInterval,
		conns:            make(map[*Connection]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.router == nil {
		s.router = NewRouter()
		s.router.Build()
	}
	s.events.setLogger(s.logger)
	return s
}

// Events returns the Server's EventBus for registering listeners.
func (s *Server) Events() *EventBus { return s.events }

// Serve accepts connections on ln until Accept fails; cancelling ctx alone
// does not stop it, so callers also close ln. An Accept error after ctx is
// cancelled is returned as nil. Before returning, Serve waits for every
// accepted connection to finish. Each accepted connection is handled on its
// own goroutine (spec.md §5: "parallelism across connections is permitted").
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.listener = ln
	s.events.Fire(&EventContext{Event: EventServerStart})

	var wg sync.WaitGroup
	defer func() {
		wg.Wait()
		s.events.Fire(&EventContext{Event: EventServerClose})
	}()

	for {
		netConn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		conn := newConnection(s, netConn)
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				s.mu.Lock()
				delete(s.conns, conn)
				s.mu.Unlock()
			}()
			conn.run(ctx)
		}()
	}
}

// Shutdown closes the listener and waits (bounded by ctx) for in-flight
// connections to close on their own, force-closing any still open once ctx
// is done (SPEC_FULL.md §C.2.1).
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener != nil {
		_ = s.listener.Close()
	}
	done := make(chan struct{})
	go func() {
		for {
			s.mu.Lock()
			n := len(s.conns)
			s.mu.Unlock()
			if n == 0 {
				close(done)
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(50 * time.Millisecond):
			}
		}
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		conns := make([]*Connection, 0, len(s.conns))
		for c := range s.conns {
			conns = append(conns, c)
		}
		s.mu.Unlock()
		for _, c := range conns {
			_ = c.Close(ctx.Err())
		}
		return ctx.Err()
	}
}

// Attach adds conn to channel name (spec.md §4.7).
func (s *Server) Attach(conn *Connection, name string) { s.channels.attach(conn, name) }

// Detach removes conn from channel name (spec.md §4.7).
func (s *Server) Detach(conn *Connection, name string) { s.channels.detach(conn, name) }
