// Package tcp implements the raw TCP transport variant (§4.2): a
// full-duplex byte stream to host:port with a connect timeout.
package tcp

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/copilot-cli/acp-sdk-go/transport"
)

// defaultConnectTimeout bounds how long Start waits for the TCP handshake.
const defaultConnectTimeout = 10 * time.Second

// Option configures a Transport at construction time.
type Option func(*Transport)

// WithConnectTimeout overrides the connect deadline. Default 10s.
func WithConnectTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.connectTimeout = d
		}
	}
}

// Transport is the TCP implementation of transport.Transport.
type Transport struct {
	addr           string
	connectTimeout time.Duration

	conn net.Conn

	sendMu sync.Mutex

	onErrorMu sync.Mutex
	onError   func(error)
	onCloseMu sync.Mutex
	onClose   func(error)

	closeOnce sync.Once
	started   atomic.Bool
	closed    atomic.Bool
}

// New constructs a TCP transport dialing addr ("host:port") at Start.
func New(addr string, opts ...Option) *Transport {
	t := &Transport{addr: addr, connectTimeout: defaultConnectTimeout}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start dials the configured address with the connect timeout.
func (t *Transport) Start(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, t.connectTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", t.addr)
	if err != nil {
		return &transport.ErrStartFailed{Reason: "dial " + t.addr, Err: err}
	}
	t.conn = conn
	t.started.Store(true)
	return nil
}

// Send writes b, serializing concurrent writers (§4.2 "writes are serialized").
func (t *Transport) Send(b []byte) error {
	if !t.started.Load() {
		return transport.ErrNotStarted
	}
	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	_, err := t.conn.Write(b)
	if err != nil && !t.closed.Load() {
		t.reportError(err)
	}
	return err
}

// Receive returns the underlying connection as the inbound byte stream.
func (t *Transport) Receive() io.Reader {
	return t.conn
}

// Close closes the TCP connection. Idempotent; causes Receive's reader to
// return io.EOF/use-of-closed-connection on the next read.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		if t.conn != nil {
			err = t.conn.Close()
		}
		t.fireClose(nil)
	})
	return err
}

func (t *Transport) OnError(f func(error)) {
	t.onErrorMu.Lock()
	t.onError = f
	t.onErrorMu.Unlock()
}

// OnClose registers the callback that Close fires once, with a nil error.
// A remote EOF or a read error on Receive's reader does not fire it.
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

var errUnexpectedEOF = errors.New("tcp transport: unexpected EOF")

var _ transport.Transport = (*Transport)(nil)
