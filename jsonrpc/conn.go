package jsonrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// RequestHandler handles a server-originated request (has id + method) and
// returns the result to send back, or an error to convert into an error
// response (§4.3). Handlers run in a dedicated goroutine per inbound request
// so a handler that itself issues RPCs on this connection cannot deadlock
// the inbound loop (§5, §9).
type RequestHandler func(ctx context.Context, params json.RawMessage) (result any, err error)

// NotificationHandler handles a server-originated notification (method, no
// id). Errors are routed to the connection's error callback; notifications
// never produce a reply (§4.3).
type NotificationHandler func(params json.RawMessage)

// pendingCall is an outbound request awaiting a response (§3: "Pending
// call"). Removed from the table on response, timeout, or teardown.
type pendingCall struct {
	method string
	ch     chan *Message
}

// Conn pairs a Decoder with a transport byte stream and dispatches messages
// in both directions (§4.3). All outbound writes are serialized through a
// single mutex (the "write lane", §5) so handler replies, calls, and
// notifications never interleave at the byte level.
type Conn struct {
	id     string
	w      io.Writer
	logger *slog.Logger

	writeMu sync.Mutex

	nextID  atomic.Int64
	pendMu  sync.Mutex
	pending map[string]*pendingCall

	methods       map[string]RequestHandler
	notifications map[string]NotificationHandler

	onError func(error)

	closeOnce sync.Once
	closed    chan struct{}

	// handlerWG tracks in-flight dispatched request/notification handler
	// goroutines so Close can wait for them to stop touching the connection.
	handlerWG sync.WaitGroup
}

// Option configures a Conn at construction time.
type Option func(*Conn)

// WithLogger sets the structured logger used for protocol-error and
// handler-error diagnostics (§7, ambient logging — see SPEC_FULL.md).
func WithLogger(l *slog.Logger) Option {
	return func(c *Conn) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithErrorCallback registers the callback invoked for protocol errors that
// don't abort the connection (unknown response id, dispatch failures) and,
// by convention, is also where fatal framing/transport errors are routed by
// whoever owns the read loop (§4.3 "Wiring").
func WithErrorCallback(f func(error)) Option {
	return func(c *Conn) { c.onError = f }
}

// New creates a Conn that writes framed messages to w. Call Feed with bytes
// from a transport's receive stream to drive inbound dispatch; register
// handlers via OnMethod/OnNotification before the first Feed call.
func New(w io.Writer, opts ...Option) *Conn {
	c := &Conn{
		id:            uuid.New().String(),
		w:             w,
		logger:        slog.Default(),
		pending:       make(map[string]*pendingCall),
		methods:       make(map[string]RequestHandler),
		notifications: make(map[string]NotificationHandler),
		closed:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns this connection's log-correlation identifier (ambient stack;
// never used as a JSON-RPC id — see SPEC_FULL.md DOMAIN STACK).
func (c *Conn) ID() string { return c.id }

// OnMethod registers the handler for a server-originated request method.
// Must be called before the first Feed.
func (c *Conn) OnMethod(method string, h RequestHandler) {
	c.methods[method] = h
}

// OnNotification registers the handler for a server-originated notification
// method. Must be called before the first Feed.
func (c *Conn) OnNotification(method string, h NotificationHandler) {
	c.notifications[method] = h
}

// Call sends a request and blocks until the matching response arrives, ctx
// is done, or the connection closes (§4.3). result may be nil to discard
// the response body.
func (c *Conn) Call(ctx context.Context, method string, params, result any) error {
	id := NewIntID(c.nextID.Add(1))
	ch := make(chan *Message, 1)

	c.pendMu.Lock()
	c.pending[id.String()] = &pendingCall{method: method, ch: ch}
	c.pendMu.Unlock()

	req, err := NewRequest(id, method, params)
	if err != nil {
		c.dropPending(id)
		return fmt.Errorf("jsonrpc: build request %s: %w", method, err)
	}
	if err := c.send(req); err != nil {
		c.dropPending(id)
		return fmt.Errorf("jsonrpc: send %s: %w", method, err)
	}

	select {
	case resp, ok := <-ch:
		return c.resolveCall(resp, ok, method, result)
	case <-c.closed:
		c.dropPending(id)
		return fmt.Errorf("jsonrpc: %s: %w", method, ErrClosed)
	case <-ctx.Done():
		c.dropPending(id)
		// A response may have landed between select wakeups — drain once
		// more so a genuine success isn't discarded for a late ctx check.
		select {
		case resp, ok := <-ch:
			return c.resolveCall(resp, ok, method, result)
		default:
			return ctx.Err()
		}
	}
}

func (c *Conn) dropPending(id ID) {
	c.pendMu.Lock()
	delete(c.pending, id.String())
	c.pendMu.Unlock()
}

func (c *Conn) resolveCall(resp *Message, ok bool, method string, result any) error {
	if !ok {
		return fmt.Errorf("jsonrpc: %s: %w", method, ErrClosed)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if result != nil && resp.Result != nil {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("jsonrpc: unmarshal %s result: %w", method, err)
		}
	}
	return nil
}

// Notify sends a fire-and-forget notification (§4.3). No id is allocated
// and no response is expected.
func (c *Conn) Notify(method string, params any) error {
	msg, err := NewNotification(method, params)
	if err != nil {
		return fmt.Errorf("jsonrpc: build notification %s: %w", method, err)
	}
	return c.send(msg)
}

// send serializes and writes msg through the single write lane (§5).
func (c *Conn) send(msg *Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return Encode(c.w, msg)
}

// Feed delivers a chunk of inbound bytes to the decoder and dispatches any
// messages that became complete. The caller (typically the transport's
// receive loop owner) calls Feed repeatedly as bytes arrive; a non-nil
// returned error is a fatal framing error (§4.1, §7) — the caller must stop
// feeding and call Close.
func (c *Conn) Feed(dec *Decoder, chunk []byte) error {
	msgs, err := dec.Write(chunk)
	for _, raw := range msgs {
		c.dispatchRaw(raw)
	}
	if err != nil {
		return err
	}
	return nil
}

// dispatchRaw unmarshals one frame body and routes it by shape (§4.3).
func (c *Conn) dispatchRaw(raw json.RawMessage) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.reportError(fmt.Errorf("jsonrpc: malformed message: %w", err))
		return
	}
	c.dispatch(&msg)
}

func (c *Conn) dispatch(msg *Message) {
	switch {
	case msg.IsResponse():
		c.handleResponse(msg)
	case msg.IsRequest():
		c.handleRequest(msg)
	case msg.IsNotification():
		c.handleNotification(msg)
	default:
		c.reportError(fmt.Errorf("jsonrpc: message has neither id nor method"))
	}
}

func (c *Conn) handleResponse(msg *Message) {
	key := msg.ID.String()
	c.pendMu.Lock()
	pc, ok := c.pending[key]
	if ok {
		delete(c.pending, key)
	}
	c.pendMu.Unlock()

	if !ok {
		c.reportError(fmt.Errorf("jsonrpc: response for unknown id %s", key))
		return
	}
	pc.ch <- msg
}

// handleRequest dispatches a server-originated request in its own goroutine
// so a slow or RPC-issuing handler never blocks inbound dispatch (§5, §9).
func (c *Conn) handleRequest(msg *Message) {
	h, ok := c.methods[msg.Method]
	if !ok {
		_ = c.send(NewErrorResponse(*msg.ID, CodeMethodNotFound, "method not found: "+msg.Method))
		return
	}

	id := *msg.ID
	method := msg.Method
	params := msg.Params

	c.handlerWG.Add(1)
	go func() {
		defer c.handlerWG.Done()
		result, err := h(context.Background(), params)
		if err != nil {
			_ = c.send(NewErrorResponse(id, CodeApplicationError, err.Error()))
			return
		}
		resp, err := NewResultResponse(id, result)
		if err != nil {
			c.logger.Error("jsonrpc: marshal handler result", "method", method, "error", err)
			_ = c.send(NewErrorResponse(id, CodeInternalError, "marshal result: "+err.Error()))
			return
		}
		_ = c.send(resp) // best-effort: connection may be closing
	}()
}

func (c *Conn) handleNotification(msg *Message) {
	h, ok := c.notifications[msg.Method]
	if !ok {
		return // unrecognized notification — per §4.3, drop silently (no reply possible anyway)
	}
	params := msg.Params
	c.handlerWG.Add(1)
	go func() {
		defer c.handlerWG.Done()
		h(params)
	}()
}

func (c *Conn) reportError(err error) {
	if c.onError != nil {
		c.onError(err)
	} else {
		c.logger.Warn("jsonrpc: protocol error", "conn", c.id, "error", err)
	}
}

// Close marks the connection closed: every pending Call fails with
// ErrClosed (§4.3, §5), and in-flight handler goroutines are allowed to
// finish (their replies are best-effort once closed). Idempotent.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.pendMu.Lock()
		for id, pc := range c.pending {
			close(pc.ch)
			delete(c.pending, id)
		}
		c.pendMu.Unlock()
	})
}

// WaitHandlers blocks until all dispatched request/notification handler
// goroutines have returned, or ctx is done. Used during shutdown so a
// transport can be torn down only after in-flight handlers stop touching it.
func (c *Conn) WaitHandlers(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.handlerWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel closed when Close is called.
func (c *Conn) Done() <-chan struct{} { return c.closed }

// defaultHandshakeBudget backs DefaultHandshakeTimeout, for callers that want a sane default
// deadline when calling a handshake-style method (e.g. "ping") without
// hardcoding a magic number at each call site.
const defaultHandshakeBudget = 5 * time.Second

// DefaultHandshakeTimeout returns the default deadline client implementations
// should use for their startup handshake call (§4.4).
func DefaultHandshakeTimeout() time.Duration { return defaultHandshakeBudget }
