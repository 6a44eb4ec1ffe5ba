package cats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cifrazia/cats/codec"
	"github.com/cifrazia/cats/internal/wire"
	"github.com/cifrazia/cats/router"
)

// connState is the lifecycle state machine of spec.md §4.3: "States:
// ACCEPTED → HANDSHAKING → READY → CLOSED."
type connState int32

const (
	stateAccepted connState = iota
	stateHandshaking
	stateReady
	stateClosed
)

// Connection is the per-socket reactor described in spec.md §4.3: it owns
// the net.Conn, the pending-inputs table, the outbound message-id pool, the
// channel membership set, and the single in-flight top-level exchange.
// Exactly one goroutine runs its read loop; everything else (ping loop,
// handler tasks, Input() awaits) hangs off that goroutine via channels.
type Connection struct {
	server *Server
	raw    net.Conn

	remoteAddr       string
	apiVersion       uint32
	maxPlainDataSize int64
	Identity         any // opaque slot a handshake.Plugin or handler may populate

	reader *wire.Reader
	writer *wire.Writer
	rl     *wire.RateLimitedWriter
	writeMu sync.Mutex

	pending *pendingTable
	ids     *idPool

	channelsMu sync.Mutex
	channels   map[string]struct{}

	handlerRunning atomic.Bool
	downloadSpeed  atomic.Uint32

	state atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	idleTimer *time.Timer

	closeOnce sync.Once
	closeErr  error
}

func newConnection(s *Server, raw net.Conn) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		server:           s,
		raw:              raw,
		remoteAddr:       raw.RemoteAddr().String(),
		maxPlainDataSize: s.maxPlainDataSize,
		pending:          newPendingTable(),
		ids:              newIDPool(),
		channels:         make(map[string]struct{}),
		ctx:              ctx,
		cancel:           cancel,
	}
	c.rl = wire.NewRateLimitedWriter(ctx, raw)
	c.rl.SetLimit(s.defaultDLSpeed)
	c.reader = wire.NewReader(raw)
	c.writer = wire.NewWriter(c.rl)
	return c
}

// run drives the connection end to end: connect phase, optional handshake,
// then the read loop, until close (spec.md §4.3). It never returns an
// error to the caller — Server.Serve only needs the goroutine to finish.
func (c *Connection) run(ctx context.Context) {
	defer c.Close(nil)

	group, gctx := errgroup.WithContext(c.ctx)
	c.group = group

	if err := c.connectPhase(); err != nil {
		c.Close(err)
		return
	}

	if c.server.handshake != nil {
		c.state.Store(int32(stateHandshaking))
		if err := c.runHandshake(); err != nil {
			c.server.events.Fire(&EventContext{Event: EventHandshakeFail, Conn: c, Err: err})
			c.Close(err)
			return
		}
		c.server.events.Fire(&EventContext{Event: EventHandshakePass, Conn: c})
	}

	c.state.Store(int32(stateReady))
	c.server.Attach(c, AllChannel)
	c.server.events.Fire(&EventContext{Event: EventConnStart, Conn: c})

	c.resetIdleTimer()
	if c.server.pingInterval > 0 {
		group.Go(func() error { return c.pingLoop(gctx) })
	}
	group.Go(func() error { return c.readLoop(gctx) })

	_ = group.Wait()
}

// connectPhase implements spec.md §4.3's ACCEPTED step: read the 4-byte
// client api_version, reply with an 8-byte server timestamp.
func (c *Connection) connectPhase() error {
	v, err := c.reader.ReadU32()
	if err != nil {
		return fmt.Errorf("cats: connect phase: %w", err)
	}
	c.apiVersion = v
	return c.writer.WriteU64(uint64(time.Now().UnixMilli()))
}

func (c *Connection) runHandshake() error {
	timeout := c.server.inputTimeout
	ctx := c.ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return c.server.handshake.Perform(ctx, handshakeConn{c.raw})
}

// handshakeConn hands the plugin the raw net.Conn as a handshake.Conn, so
// the handshake package never imports cats (spec.md §9 design note).
type handshakeConn struct{ net.Conn }

// pingLoop emits 0xFF frames at pingInterval until ctx is done, matching
// spec.md §4.3 "a ping loop emits 0xFF frames at an interval below
// idle_timeout".
func (c *Connection) pingLoop(ctx context.Context) error {
	t := time.NewTicker(c.server.pingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			c.writeMu.Lock()
			err := writePing(c.writer, uint64(time.Now().UnixMilli()))
			c.writeMu.Unlock()
			if err != nil {
				return err
			}
		}
	}
}

// readLoop is the single-threaded cooperative dispatcher of spec.md §4.3.
func (c *Connection) readLoop(ctx context.Context) error {
	for {
		frameType, err := c.reader.ReadU8()
		if err != nil {
			return err
		}
		c.resetIdleTimer()

		switch FrameType(frameType) {
		case FrameRequest:
			req, err := readRequest(c, c.reader)
			if err != nil {
				return err
			}
			if !c.handlerRunning.CompareAndSwap(false, true) {
				return fmt.Errorf("%w", ErrConcurrentRequest)
			}
			c.group.Go(func() error {
				defer c.handlerRunning.Store(false)
				c.dispatch(req.HandlerID, req.MessageID, req)
				return nil
			})

		case FrameStreamRequest:
			sreq, err := readStreamRequest(c, c.reader)
			if err != nil {
				return err
			}
			if !c.handlerRunning.CompareAndSwap(false, true) {
				sreq.Close()
				return fmt.Errorf("%w", ErrConcurrentRequest)
			}
			c.group.Go(func() error {
				defer c.handlerRunning.Store(false)
				req := sreq.asRequest()
				defer req.Close()
				c.dispatch(req.HandlerID, req.MessageID, req)
				return nil
			})

		case FrameInputRequest:
			ireq, err := readInputRequest(c, c.reader)
			if err != nil {
				return err
			}
			if !c.pending.resolve(ireq.MessageID, pendingResult{req: ireq}) {
				return fmt.Errorf("%w: %d", ErrUnknownMessageID, ireq.MessageID)
			}

		case FrameDownloadSpeed:
			ds, err := readDownloadSpeed(c.reader)
			if err != nil {
				return err
			}
			c.downloadSpeed.Store(ds.BytesPerSec)
			c.rl.SetLimit(ds.BytesPerSec)

		case FrameCancelInput:
			ci, err := readCancelInput(c.reader)
			if err != nil {
				return err
			}
			c.pending.resolve(ci.MessageID, pendingResult{err: ErrCancelled})

		case FramePing:
			p, err := readPing(c.reader)
			if err != nil {
				return err
			}
			c.writeMu.Lock()
			err = writePing(c.writer, p.TimestampMS)
			c.writeMu.Unlock()
			if err != nil {
				return err
			}

		default:
			return protocolErrorf(frameType, "%v", ErrUnknownFrameType)
		}
	}
}

// dispatch implements spec.md §4.4 end to end for one Request-shaped
// exchange: router lookup, BEFORE_REQUEST/AFTER_REQUEST, handler
// invocation, BEFORE_RESPONSE/AFTER_RESPONSE, HANDLE_ERROR, and the final
// write. It never returns an error — failures become either a protocol
// close (write failure) or a logged, swallowed event-listener failure.
func (c *Connection) dispatch(handlerID, messageID uint16, req *Request) {
	fn, err := c.server.router.lookup(handlerID, c.apiVersion)
	if err != nil {
		if errors.Is(err, router.ErrNotFound) {
			_ = c.sendResponseFrame(handlerID, messageID, &Response{
				DataType: codec.Binary,
				Headers:  codec.Header{"Status": 404},
				Data:     []byte{},
			})
			return
		}
		c.Close(err)
		return
	}

	if v, _ := c.server.events.Fire(&EventContext{Event: EventBeforeRequest, Conn: c, Value: req}); v != nil {
		if replaced, ok := v.(*Request); ok {
			req = replaced
		}
	}

	resp, handlerErr := c.invoke(fn, req)
	if handlerErr != nil {
		resp = c.handleError(req, handlerErr)
	}
	if resp == nil {
		return
	}

	if v, _ := c.server.events.Fire(&EventContext{Event: EventBeforeResponse, Conn: c, Value: resp}); v != nil {
		if replaced, ok := v.(*Response); ok {
			resp = replaced
		}
	}

	if err := c.sendResponseFrame(handlerID, messageID, resp); err != nil {
		c.Close(err)
		return
	}

	c.server.events.Fire(&EventContext{Event: EventAfterResponse, Conn: c, Value: resp})
	c.server.events.Fire(&EventContext{Event: EventAfterRequest, Conn: c, Value: req})
}

// invoke calls fn, converting a handler panic into an error so it reaches
// HANDLE_ERROR instead of taking down the connection's goroutine group
// (mirrors the panic-recovery discipline events.go applies to listeners).
func (c *Connection) invoke(fn HandlerFunc, req *Request) (resp *Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cats: handler panic: %v", r)
		}
	}()
	return fn(c.ctx, req)
}

// handleError implements spec.md §4.4's last paragraph: fire HANDLE_ERROR,
// letting a listener substitute a different error to re-enter the path; the
// default maps to a non-200 JSON error body.
func (c *Connection) handleError(req *Request, handlerErr error) *Response {
	ctx := &EventContext{Event: EventHandleError, Conn: c, Value: req, Err: handlerErr}
	_, err := c.server.events.Fire(ctx)
	if err != nil {
		handlerErr = err
	}
	body, _ := json.Marshal(map[string]string{"error": handlerErr.Error()})
	return &Response{
		DataType: codec.JSON,
		Headers:  codec.Header{"Status": 500},
		Data:     json.RawMessage(body),
	}
}

// sendResponseFrame encodes resp via its codec and writes it back as a
// 0x00 Request frame carrying handlerID/messageID, per spec.md §6 example 1
// ("Server emits 0x00 | 0 | 513 | ..."): responses are symmetric with
// requests on the wire, distinguished only by direction. A resp with Next
// set is instead framed as 0x01 StreamRequest, one chunk at a time
// (spec.md §9 "generators for streaming responses").
func (c *Connection) sendResponseFrame(handlerID, messageID uint16, resp *Response) error {
	if resp.Headers == nil {
		resp.Headers = codec.Header{}
	}
	if _, ok := resp.Headers["Status"]; !ok {
		resp.Headers["Status"] = 200
	}

	if resp.Next != nil {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return writeStreamRequest(c.writer, handlerID, messageID, time.Now(), resp.DataType, resp.Compression, resp.Headers, resp.Next)
	}

	cd, err := codec.Lookup(resp.DataType)
	if err != nil {
		return err
	}
	payload, err := cd.Encode(resp.Data, resp.Headers)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return writeRequest(c.writer, handlerID, messageID, time.Now(), resp.DataType, resp.Compression, resp.Headers, payload)
}

// writeResponse is the entry point Server.Publish uses to push resp to a
// connection outside of any request/response exchange (spec.md §4.7);
// handler_id 0 marks it as not-a-reply.
func (c *Connection) writeResponse(messageID uint16, resp *Response) error {
	return c.sendResponseFrame(0, messageID, resp)
}

// awaitInput implements Request.Input (spec.md §4.4): allocate a pending
// entry keyed by messageID, send prompt as an InputRequest, block until the
// peer answers, cancels, or the wait times out/ctx is cancelled.
func (c *Connection) awaitInput(ctx context.Context, messageID uint16, prompt any) (*InputRequest, error) {
	c.ids.Reserve(messageID)
	defer c.ids.Release(messageID)

	pend := c.pending.register(messageID, c.server.inputTimeout)

	cd, err := codec.Lookup(codec.JSON)
	if err != nil {
		return nil, err
	}
	headers := codec.Header{}
	payload, err := cd.Encode(prompt, headers)
	if err != nil {
		return nil, err
	}

	c.writeMu.Lock()
	err = writeInputRequest(c.writer, messageID, codec.JSON, codec.CompressionNone, headers, payload)
	c.writeMu.Unlock()
	if err != nil {
		c.pending.resolve(messageID, pendingResult{err: err})
		return nil, err
	}

	select {
	case result := <-pend.ch:
		if result.err != nil {
			return nil, result.err
		}
		return result.req, nil
	case <-ctx.Done():
		c.pending.resolve(messageID, pendingResult{err: ctx.Err()})
		return nil, ctx.Err()
	case <-c.ctx.Done():
		return nil, ErrClosed
	}
}

// resetIdleTimer restarts the idle-close timer (spec.md §4.3 "each inbound
// frame resets it"). idle_timeout<=0 disables it.
func (c *Connection) resetIdleTimer() {
	if c.server.idleTimeout <= 0 {
		return
	}
	if c.idleTimer == nil {
		c.idleTimer = time.AfterFunc(c.server.idleTimeout, func() {
			c.Close(fmt.Errorf("cats: idle timeout after %s", c.server.idleTimeout))
		})
		return
	}
	c.idleTimer.Reset(c.server.idleTimeout)
}

// Close tears the connection down exactly once: cancels the reactor
// context, resolves every pending input with exc (or ErrClosed), detaches
// from every channel, closes the socket, and fires CONN_CLOSE (spec.md
// §4.3 "close(exc?) releases all resources and fires CONN_CLOSE").
func (c *Connection) Close(exc error) error {
	c.closeOnce.Do(func() {
		c.closeErr = exc
		c.state.Store(int32(stateClosed))
		c.cancel()
		if c.idleTimer != nil {
			c.idleTimer.Stop()
		}
		reason := exc
		if reason == nil {
			reason = ErrClosed
		}
		c.pending.closeAll(reason)
		c.server.channels.detachAll(c)
		_ = c.raw.Close()
		c.server.events.Fire(&EventContext{Event: EventConnClose, Conn: c, Err: exc})
	})
	return c.closeErr
}

// RemoteAddr returns the peer's network address string.
func (c *Connection) RemoteAddr() string { return c.remoteAddr }

// APIVersion returns the client's api_version read during the connect
// phase (spec.md §4.3).
func (c *Connection) APIVersion() uint32 { return c.apiVersion }

// Logger returns the server's logger, for handlers that want to emit
// connection-scoped structured log lines (SPEC_FULL.md §A.1).
func (c *Connection) Logger() *slog.Logger {
	return c.server.logger.With(slog.String("remote_addr", c.remoteAddr), slog.String("server_id", c.server.ServerID.String()))
}

// Attach subscribes this connection to channel (spec.md §4.7).
func (c *Connection) Attach(channel string) { c.server.Attach(c, channel) }

// Detach unsubscribes this connection from channel (spec.md §4.7).
func (c *Connection) Detach(channel string) { c.server.Detach(c, channel) }
