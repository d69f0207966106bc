// Package wstransport implements the WebSocket transport variant (§4.2).
// Content-Length framing (package jsonrpc) is still used *inside* the WS
// payload — each WS message carries exactly one complete framed JSON-RPC
// message — so the same jsonrpc.Decoder works unmodified regardless of
// transport (§4.2 note).
package wstransport

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"

	"github.com/copilot-cli/acp-sdk-go/transport"
)

// Option configures a Transport at construction time.
type Option func(*Transport)

// WithDialTimeout bounds how long Start waits for the WebSocket handshake.
func WithDialTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.dialTimeout = d
		}
	}
}

// Transport is the WebSocket implementation of transport.Transport. One WS
// message == one Content-Length-framed JSON-RPC message.
type Transport struct {
	url         string
	dialTimeout time.Duration

	conn *websocket.Conn

	sendMu sync.Mutex

	pr *io.PipeReader
	pw *io.PipeWriter

	onErrorMu sync.Mutex
	onError   func(error)
	onCloseMu sync.Mutex
	onClose   func(error)

	closeOnce sync.Once
	started   atomic.Bool
}

// New constructs a WebSocket transport dialing url at Start.
func New(url string, opts ...Option) *Transport {
	t := &Transport{url: url, dialTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start dials the WebSocket endpoint and begins pumping inbound frames into
// the byte stream exposed by Receive.
func (t *Transport) Start(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, t.dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, t.url, nil)
	if err != nil {
		return &transport.ErrStartFailed{Reason: "dial " + t.url, Err: err}
	}
	// Unbounded message size: a single frame may legitimately carry a large
	// framed body (§4.1 regression case applies here too).
	conn.SetReadLimit(-1)

	t.conn = conn
	t.pr, t.pw = io.Pipe()
	t.started.Store(true)

	go t.pumpInbound()
	return nil
}

// pumpInbound reads whole WebSocket messages and writes their bytes into
// the internal pipe, so Receive presents a plain ordered byte stream like
// every other transport variant.
func (t *Transport) pumpInbound() {
	ctx := context.Background()
	for {
		_, data, err := t.conn.Read(ctx)
		if err != nil {
			t.finish(err)
			return
		}
		if _, err := t.pw.Write(data); err != nil {
			t.finish(err)
			return
		}
	}
}

func (t *Transport) finish(err error) {
	_ = t.pw.CloseWithError(io.EOF)
	code := websocket.CloseStatus(err)
	if code == -1 {
		t.reportError(err)
	}
	t.fireClose(err)
}

// Send writes b as a single WebSocket binary message, preserving message
// boundaries at the byte level as the contract requires (§4.2).
func (t *Transport) Send(b []byte) error {
	if !t.started.Load() {
		return transport.ErrNotStarted
	}
	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	return t.conn.Write(context.Background(), websocket.MessageBinary, b)
}

// Receive returns the reader fed by inbound WebSocket frames.
func (t *Transport) Receive() io.Reader {
	return t.pr
}

// Close closes the WebSocket connection with a normal-closure status.
// Idempotent.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		if t.conn != nil {
			err = t.conn.Close(websocket.StatusNormalClosure, "")
		}
	})
	return err
}

func (t *Transport) OnError(f func(error)) {
	t.onErrorMu.Lock()
	t.onError = f
	t.onErrorMu.Unlock()
}

func (t *Transport) OnClose(f func(error)) {
	t.onCloseMu.Lock()
	t.onClose = f
	t.onCloseMu.Unlock()
}

func (t *Transport) reportError(err error) {
	t.onErrorMu.Lock()
	cb := t.onError
	t.onErrorMu.Unlock()
	if cb != nil {
		cb(err)
	}
}

func (t *Transport) fireClose(err error) {
	t.onCloseMu.Lock()
	cb := t.onClose
	t.onCloseMu.Unlock()
	if cb != nil {
		cb(err)
	}
}

var _ transport.Transport = (*Transport)(nil)
