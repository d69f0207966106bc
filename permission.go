package copilot

import "context"

// PermissionDecision is the caller's answer to a PermissionRequest (§6).
type PermissionDecision string

const (
	PermissionAllow PermissionDecision = "allow"
	PermissionDeny  PermissionDecision = "deny"
)

// PermissionRequest describes a single permission.request call from the
// agent, asking whether a tool call may proceed (§6).
type PermissionRequest struct {
	Kind       string
	ToolCallID string
	ToolName   string
	Arguments  map[string]any
	Reason     string
}

// PermissionResponse is returned by a PermissionHandler. ModifiedArgs, when
// non-nil, replaces Arguments before the tool call proceeds.
type PermissionResponse struct {
	Decision     PermissionDecision
	Reason       string
	ModifiedArgs map[string]any
}

// PermissionHandler decides whether a tool call may proceed. If a session
// has none registered, every request is denied with a fixed reason (§4.5
// "default-deny when unregistered").
type PermissionHandler func(ctx context.Context, req PermissionRequest) PermissionResponse

// unregisteredPermissionReason is the reason reported when a session has no
// permission handler registered and an agent asks for one anyway.
const unregisteredPermissionReason = "no permission handler registered for this session"

func defaultDenyPermission(context.Context, PermissionRequest) PermissionResponse {
	return PermissionResponse{Decision: PermissionDeny, Reason: unregisteredPermissionReason}
}

// wire renders a decision for the permission.request RPC response. The
// wire field is "permissionDecision", not "decision" (§6, §8 naming trap).
func (r PermissionResponse) wire() permissionResponseWire {
	return permissionResponseWire{
		PermissionDecision: string(r.Decision),
		Reason:             r.Reason,
		ModifiedArgs:       r.ModifiedArgs,
	}
}

type permissionResponseWire struct {
	PermissionDecision string         `json:"permissionDecision"`
	Reason             string         `json:"reason,omitempty"`
	ModifiedArgs       map[string]any `json:"modifiedArgs,omitempty"`
}
