// Package jsonrpc implements the framed JSON-RPC 2.0 duplex connection that
// drives an agent process: Content-Length framing (§6), request/response
// correlation, and inbound dispatch to registered method/notification
// handlers (§4.3). It is transport-agnostic — see package transport for the
// byte-stream implementations (stdio, TCP, WebSocket).
package jsonrpc

import "encoding/json"

// ID is a JSON-RPC request identifier. Per spec §3, ids the connection
// allocates for outbound calls are always integers; ids echoed back for
// server-originated requests may be any JSON scalar, so ID preserves the
// raw wire representation for those.
type ID struct {
	raw json.RawMessage
}

// NewIntID builds an ID from an int64, the allocation scheme this
// connection uses for its own outbound requests (§4.3, §9).
func NewIntID(n int64) ID {
	b, _ := json.Marshal(n) // marshaling an int64 cannot fail
	return ID{raw: b}
}

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.raw == nil {
		return []byte("null"), nil
	}
	return id.raw, nil
}

// UnmarshalJSON implements json.Unmarshaler, preserving the raw scalar
// verbatim so it can be echoed back exactly (§3: "must be echoed verbatim").
func (id *ID) UnmarshalJSON(data []byte) error {
	id.raw = append(json.RawMessage(nil), data...)
	return nil
}

// IsZero reports whether id was never set (distinguishes a notification,
// which has no id, from a request with id 0 or id "0").
func (id ID) IsZero() bool {
	return len(id.raw) == 0
}

// String returns the id's raw JSON text, for logging/correlation.
func (id ID) String() string {
	if id.raw == nil {
		return ""
	}
	return string(id.raw)
}

// Equal reports whether two ids carry the same raw JSON scalar.
func (id ID) Equal(other ID) bool {
	return string(id.raw) == string(other.raw)
}

// Error is a JSON-RPC 2.0 error object (§3). Codes below -32000 are the
// reserved protocol range; application errors use -32000 and above per the
// connection's own convention (§4.3).
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

// Reserved JSON-RPC 2.0 protocol error codes (§3, §4.3).
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	// CodeApplicationError is this connection's convention for handler
	// failures that aren't protocol errors (§4.3).
	CodeApplicationError = -32000
)

// Message is the wire shape of any JSON-RPC 2.0 message: request, response,
// or notification (§3). Decoding never needs to know in advance which shape
// it is — dispatch inspects the populated fields (§4.3).
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *ID             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// IsRequest reports whether msg has both an id and a method (a request,
// either outbound-originated-by-us-as-response or server→client request).
func (m *Message) IsRequest() bool {
	return m.ID != nil && m.Method != ""
}

// IsResponse reports whether msg has an id and no method (a response to a
// call this side made).
func (m *Message) IsResponse() bool {
	return m.ID != nil && m.Method == ""
}

// IsNotification reports whether msg has a method and no id.
func (m *Message) IsNotification() bool {
	return m.ID == nil && m.Method != ""
}

// NewRequest builds an outbound request message.
func NewRequest(id ID, method string, params any) (*Message, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Message{JSONRPC: "2.0", ID: &id, Method: method, Params: raw}, nil
}

// NewNotification builds an outbound notification message (no id).
func NewNotification(method string, params any) (*Message, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Message{JSONRPC: "2.0", Method: method, Params: raw}, nil
}

// NewResultResponse builds a success response to a server-originated request.
func NewResultResponse(id ID, result any) (*Message, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &Message{JSONRPC: "2.0", ID: &id, Result: raw}, nil
}

// NewErrorResponse builds an error response to a server-originated request.
func NewErrorResponse(id ID, code int, message string) *Message {
	return &Message{JSONRPC: "2.0", ID: &id, Error: &Error{Code: code, Message: message}}
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	return json.Marshal(params)
}
