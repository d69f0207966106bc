package copilot

import (
	"errors"
	"fmt"

	"github.com/copilot-cli/acp-sdk-go/internal/errfmt"
)

// Sentinel errors for client and session operations (§7).
var (
	// ErrNotStarted is returned by Session/Client operations invoked before
	// Start has completed.
	ErrNotStarted = errors.New("copilot: not started")

	// ErrAlreadyStarted is returned by Start when called more than once.
	ErrAlreadyStarted = errors.New("copilot: already started")

	// ErrDestroyed is returned by any Session operation after Destroy has
	// completed (§4.6 lifecycle: Destroyed is terminal).
	ErrDestroyed = errors.New("copilot: session destroyed")

	// ErrClosed is returned by in-flight calls when the underlying
	// connection is closed out from under them (process exit, transport
	// error).
	ErrClosed = errors.New("copilot: connection closed")

	// ErrTimeout is returned when a call exceeds its context deadline
	// without a matching response (§7 "Timeout").
	ErrTimeout = errors.New("copilot: call timed out")
)

// ErrorKind classifies a Error by which layer of §7's taxonomy produced it:
// Framing, Transport, Protocol, RPC, Timeout, Handler, or Lifecycle.
type ErrorKind string

const (
	KindFraming   ErrorKind = "framing"
	KindTransport ErrorKind = "transport"
	KindProtocol  ErrorKind = "protocol"
	KindRPC       ErrorKind = "rpc"
	KindTimeout   ErrorKind = "timeout"
	KindHandler   ErrorKind = "handler"
	KindLifecycle ErrorKind = "lifecycle"
)

// Error is the SDK's wrapped error type, tagging the originating layer so
// callers can branch on Kind without string matching (§7 "errors should be
// classifiable by layer, not just by message").
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("copilot: %s: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("copilot: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrapErr(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// RPCError reports a JSON-RPC error response from the agent (§7 "RPC"
// layer), preserving the wire code and a UTF-8-safe, length-capped message —
// the message text originates from an untrusted agent process and may end
// up in logs or rendered UI (§7, ambient stack).
type RPCError struct {
	Code    int
	Message string
	Data    []byte
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("copilot: rpc error %d: %s", e.Code, errfmt.Truncate(e.Message))
}

// HandlerError wraps a panic or error recovered from a user-supplied tool,
// hook, permission, or user-input handler, so a bug in client code cannot
// take down the read loop or stay unattributed (§5, §7 "Handler").
type HandlerError struct {
	Source string // "tool:<name>", "hook:<kind>", "permission", "userInput"
	Err    error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("copilot: handler error (%s): %v", e.Source, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }
