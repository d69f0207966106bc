package jsonrpc

import "errors"

// ErrClosed indicates the connection was closed — either locally via Close
// or because the underlying transport ended. Every outstanding pending call
// fails with this error (§4.3 "On close").
var ErrClosed = errors.New("jsonrpc: connection closed")
