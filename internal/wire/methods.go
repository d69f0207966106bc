// Package wire holds the JSON-RPC method name constants and wire-format
// param/result structs for the Copilot CLI protocol (§6). Keeping these
// separate from the public session/client API mirrors the teacher's split
// between engine/acp/protocol.go (wire shapes) and the public handler types
// in engine/acp/options.go (PermissionRequest, etc.) — the wire shapes are
// an implementation detail, not part of the SDK's public surface.
package wire

// Client → server RPC methods (§6).
const (
	MethodPing    = "ping"
	MethodStatus  = "status"
	MethodAuth    = "auth.status"
	MethodModels  = "models.list"
	MethodTools   = "tools.list"
	MethodQuota   = "account.quota"
	MethodSessLs  = "sessions.list"
	MethodSessDel = "sessions.delete"
	MethodAgLs    = "agents.list"
	MethodAgCur   = "agents.current"
	MethodAgSel   = "agents.select"
	MethodAgDesel = "agents.deselect"

	MethodSessionCreate      = "session.create"
	MethodSessionResume      = "session.resume"
	MethodSessionStart       = "session.start"
	MethodSessionSendMessage = "session.sendMessage"
	MethodSessionAbort       = "session.abort"
	MethodSessionDestroy     = "session.destroy"
	MethodSessionCompact     = "session.compact"
	MethodSessionGetModel    = "session.getModel"
	MethodSessionSwitchModel = "session.switchModel"
	MethodSessionSetMode     = "session.setMode"
	MethodSessionReadPlan    = "session.readPlan"
	MethodSessionUpdatePlan  = "session.updatePlan"
	MethodSessionListFiles   = "session.listWorkspaceFiles"
	MethodSessionReadFile    = "session.readWorkspaceFile"
	MethodSessionStartFleet  = "session.startFleet"

	MethodClientForceStop     = "client.forceStop"
	MethodClientLastSession   = "client.getLastSessionId"
	MethodClientGetForeground = "client.getForegroundSessionId"
	MethodClientSetForeground = "client.setForegroundSessionId"
)

// Server → client request methods (§6).
const (
	MethodToolExecute       = "tool.execute"
	MethodPermissionRequest = "permission.request"
	MethodUserInputRequest  = "userInput.request"
	MethodHookPreToolUse    = "hook.preToolUse"
	MethodHookPostToolUse   = "hook.postToolUse"
	MethodHookUserPrompt    = "hook.userPromptSubmitted"
	MethodHookSessionStart  = "hook.sessionStart"
	MethodHookSessionEnd    = "hook.sessionEnd"
	MethodHookErrorOccurred = "hook.errorOccurred"
)

// Server → client notification method (§6). All 46+ event kinds arrive
// under this single method, discriminated by the payload's "type" field.
const MethodSessionEvent = "session.event"
