package wire

import "encoding/json"

// PingResult is the result of the ping RPC, used during the handshake and
// as a liveness probe (§6, §8 scenario 1).
type PingResult struct {
	OK bool `json:"ok"`
}

// StatusResult is the result of the status RPC.
type StatusResult struct {
	Version string `json:"version"`
	Ready   bool   `json:"ready"`
}

// AuthStatusResult is the result of auth.status. The core only observes
// this; it never performs authentication itself (§1 Non-goals).
type AuthStatusResult struct {
	Authenticated bool   `json:"authenticated"`
	Account       string `json:"account,omitempty"`
}

// Model describes one entry from models.list.
type Model struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type ModelsListResult struct {
	Models []Model `json:"models"`
}

// ToolDescriptor describes one entry from tools.list (server-known tools,
// distinct from client-registered Tool values).
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema,omitempty"`
}

type ToolsListResult struct {
	Tools []ToolDescriptor `json:"tools"`
}

// QuotaResult is the result of account.quota.
type QuotaResult struct {
	Used  int `json:"used"`
	Limit int `json:"limit"`
}

// SessionSummary describes one entry from sessions.list.
type SessionSummary struct {
	SessionID string `json:"sessionId"`
	Title     string `json:"title,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

type SessionsListResult struct {
	Sessions []SessionSummary `json:"sessions"`
}

type SessionsDeleteParams struct {
	SessionID string `json:"sessionId"`
}

// Agent describes one entry from agents.list.
type Agent struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type AgentsListResult struct {
	Agents []Agent `json:"agents"`
}

type AgentsCurrentResult struct {
	AgentID string `json:"agentId,omitempty"`
}

type AgentsSelectParams struct {
	AgentID string `json:"agentId"`
}

// SessionCreateParams is the session.create request body (§6). McpServers
// is always present, even when empty, per the wire contract (§8).
type SessionCreateParams struct {
	Model           string              `json:"model,omitempty"`
	Mode            string              `json:"mode,omitempty"`
	McpServers      json.RawMessage     `json:"mcpServers"`
	Capabilities    json.RawMessage     `json:"capabilities,omitempty"`
	InfiniteSess    json.RawMessage     `json:"infiniteSessions,omitempty"`
	AutoStart       bool                `json:"autoStart"`
	EnvValueMode    string              `json:"envValueMode,omitempty"`
	ProviderConfig  json.RawMessage     `json:"providerConfig,omitempty"`
	ReasoningEffort string              `json:"reasoningEffort,omitempty"`
	WorkspacePath   string              `json:"workspacePath,omitempty"`
	ToolNames       []string            `json:"toolNames,omitempty"`
}

type SessionCreateResult struct {
	SessionID string `json:"sessionId"`
}

// SessionResumeParams is the session.resume request body (§6). It mirrors
// SessionCreateParams field-for-field plus the resumed SessionID, so the
// client forwards every configured field, not only the id (§4.4).
type SessionResumeParams struct {
	SessionID string `json:"sessionId"`
	SessionCreateParams
}

type SessionResumeResult struct {
	SessionID string `json:"sessionId"`
}

type SessionSendMessageParams struct {
	SessionID   string          `json:"sessionId"`
	Message     string          `json:"message"`
	Mode        string          `json:"mode,omitempty"`
	Attachments json.RawMessage `json:"attachments,omitempty"`
}

type SessionIDParams struct {
	SessionID string `json:"sessionId"`
}

type SessionGetModelResult struct {
	Model string `json:"model"`
}

type SessionSwitchModelParams struct {
	SessionID string `json:"sessionId"`
	Model     string `json:"model"`
}

type SessionSetModeParams struct {
	SessionID string `json:"sessionId"`
	Mode      string `json:"mode"`
}

type SessionReadPlanResult struct {
	Plan string `json:"plan"`
}

type SessionUpdatePlanParams struct {
	SessionID string `json:"sessionId"`
	Plan      string `json:"plan"`
}

type SessionListFilesResult struct {
	Files []string `json:"files"`
}

type SessionReadFileParams struct {
	SessionID string `json:"sessionId"`
	Path      string `json:"path"`
}

type SessionReadFileResult struct {
	Content string `json:"content"`
}

type SessionStartFleetParams struct {
	SessionID string   `json:"sessionId"`
	AgentIDs  []string `json:"agentIds"`
	Task      string   `json:"task"`
}

type SessionStartFleetResult struct {
	FleetID string `json:"fleetId"`
}

// SessionCompactResult is the response body for session.compact (§4.5
// "compact ... returns a compaction result").
type SessionCompactResult struct {
	TokensBefore int    `json:"tokensBefore"`
	TokensAfter  int    `json:"tokensAfter"`
	Summary      string `json:"summary,omitempty"`
}

type ClientForceStopResult struct {
	Stopped bool `json:"stopped"`
}

type ClientLastSessionResult struct {
	SessionID string `json:"sessionId,omitempty"`
}

type ClientForegroundResult struct {
	SessionID string `json:"sessionId,omitempty"`
}

type ClientSetForegroundParams struct {
	SessionID string `json:"sessionId"`
}

// ToolExecuteParams is the inbound tool.execute request body from the
// agent (§6).
type ToolExecuteParams struct {
	SessionID  string         `json:"sessionId"`
	ToolCallID string         `json:"toolCallId"`
	Name       string         `json:"name"`
	Arguments  map[string]any `json:"arguments"`
}

// PermissionRequestParams is the inbound permission.request body.
type PermissionRequestParams struct {
	SessionID  string         `json:"sessionId"`
	Kind       string         `json:"kind"`
	ToolCallID string         `json:"toolCallId"`
	ToolName   string         `json:"toolName"`
	Arguments  map[string]any `json:"arguments"`
	Reason     string         `json:"reason,omitempty"`
}

// UserInputRequestParams is the inbound userInput.request body.
type UserInputRequestParams struct {
	SessionID string   `json:"sessionId"`
	Prompt    string   `json:"prompt"`
	Kind      string   `json:"kind,omitempty"`
	Options   []string `json:"options,omitempty"`
}

// HookParams is the inbound body shared by every hook.* request method
// (§6: "hook inputs carry timestamp/cwd").
type HookParams struct {
	SessionID string         `json:"sessionId"`
	Timestamp string         `json:"timestamp,omitempty"`
	Cwd       string         `json:"cwd,omitempty"`
	ToolName  string         `json:"toolName,omitempty"`
	ToolArgs  map[string]any `json:"toolArgs,omitempty"`
	Prompt    string         `json:"prompt,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// HookResultWire is the response body for every hook.* request method (§4.5:
// "{modifiedArgs|modifiedResult|modifiedPrompt, additionalContext?,
// suppressOutput?, permissionDecision?}").
type HookResultWire struct {
	Block              bool           `json:"block,omitempty"`
	BlockReason        string         `json:"blockReason,omitempty"`
	ModifiedArgs       map[string]any `json:"modifiedArgs,omitempty"`
	ModifiedResult     map[string]any `json:"modifiedResult,omitempty"`
	ModifiedPrompt     string         `json:"modifiedPrompt,omitempty"`
	AdditionalContext  string         `json:"additionalContext,omitempty"`
	SuppressOutput     bool           `json:"suppressOutput,omitempty"`
	PermissionDecision string         `json:"permissionDecision,omitempty"`
}

// SessionEventParams is the inbound session.event notification envelope.
// The Payload is re-decoded by the event parser to pick out kind-specific
// fields; Type/SessionID/Timestamp are lifted here only for routing.
type SessionEventParams struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Timestamp string `json:"timestamp,omitempty"`
}
