package copilot

import "context"

// ToolInvocation carries the arguments and correlation metadata for a
// single tool.execute call from the agent (§6).
type ToolInvocation struct {
	ToolCallID string
	Name       string
	Arguments  map[string]any
}

// ToolResult is the sealed variant set a ToolHandler returns: exactly one
// of a text result, a binary result with a MIME type, or a failure (§6
// "{success, content}" / "{success, content, mimeType}" / "{success: false,
// error}").
type ToolResult struct {
	success bool
	text    string
	binary  []byte
	mime    string
	errMsg  string
}

// ToolText builds a successful text ToolResult.
func ToolText(content string) ToolResult {
	return ToolResult{success: true, text: content}
}

// ToolBinary builds a successful binary ToolResult carrying an explicit
// MIME type (§6).
func ToolBinary(content []byte, mimeType string) ToolResult {
	return ToolResult{success: true, binary: content, mime: mimeType}
}

// ToolFailure builds a failed ToolResult carrying an error message visible
// to the agent.
func ToolFailure(message string) ToolResult {
	return ToolResult{success: false, errMsg: message}
}

// wire renders the result as the §6 tool.execute response shape.
func (r ToolResult) wire() toolResultWire {
	if !r.success {
		return toolResultWire{Success: false, Error: r.errMsg}
	}
	if r.binary != nil {
		return toolResultWire{Success: true, Content: r.binary, MimeType: r.mime}
	}
	return toolResultWire{Success: true, Content: r.text}
}

type toolResultWire struct {
	Success  bool   `json:"success"`
	Content  any    `json:"content,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ToolHandler implements a single registered tool's behavior. ctx is the
// connection's dispatch context; it is not cancelled when the owning
// session is destroyed or the turn is aborted.
type ToolHandler func(ctx context.Context, call ToolInvocation) ToolResult

// Tool is a client-side function exposed to the agent over tool.execute
// (§6). Schema is a JSON Schema object describing Arguments' shape.
type Tool struct {
	Name        string         `validate:"required"`
	Description string         `validate:"required"`
	Schema      map[string]any
	Handler     ToolHandler `validate:"required"`
}
