// Package transport defines the byte-stream contract (§4.2) that the
// jsonrpc.Conn layer is driven over, and provides three implementations:
// stdio (child process), TCP, and WebSocket. Every implementation exposes
// the same capability set so a Client can be pointed at any of them without
// caring which one is underneath.
package transport

import (
	"context"
	"errors"
	"io"
)

// ErrStartFailed wraps a transport-specific start failure (executable not
// found, spawn error, dial failure) into a distinct, recognizable kind
// (§4.2 "Start failures ... surface as a distinct error kind").
type ErrStartFailed struct {
	Reason string
	Err    error
}

func (e *ErrStartFailed) Error() string {
	return "transport: start failed: " + e.Reason + ": " + e.Err.Error()
}

func (e *ErrStartFailed) Unwrap() error { return e.Err }

// ErrNotStarted is returned by Send when called before Start.
var ErrNotStarted = errors.New("transport: not started")

// ErrClosed reports a Send on a closed transport. The stdio, tcp and
// wstransport implementations do not return it: their Send after Close
// returns the underlying write error, and none delivers it to OnClose.
var ErrClosed = errors.New("transport: closed")

// Transport owns a bidirectional byte stream to the agent process (§4.2).
// Send must preserve message boundaries at the byte level — concurrent
// Send calls are serialized internally by each implementation. Receive
// delivers bytes in order via io.Reader semantics; Close is idempotent and
// causes Receive to return io.EOF.
type Transport interface {
	// Start begins the connection (spawns the process, dials the socket,
	// opens the WebSocket). Must be called exactly once before Send/Receive.
	Start(ctx context.Context) error

	// Send writes a chunk of bytes, preserving write order (§4.2 "writes are
	// serialized").
	Send(b []byte) error

	// Receive returns a reader that yields inbound bytes in order. The
	// reader's Read returns io.EOF once Close is called or the remote end
	// closes the stream.
	Receive() io.Reader

	// Close shuts down the transport. Idempotent; causes Receive's reader
	// to end and triggers OnClose.
	Close() error

	// OnError registers a callback for transport-level errors observed
	// after Start (§4.2). At most one callback is active at a time.
	OnError(func(error))

	// OnClose registers a callback invoked exactly once when the transport
	// ends, whether via Close, remote EOF, or a fatal error.
	OnClose(func(error))
}
