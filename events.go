package copilot

import (
	"encoding/json"
	"strings"
	"time"
)

// Event is the sealed variant set for session.event notifications (§6): a
// closed set of ~46 kinds plus an Unknown fallback for forward
// compatibility. Every concrete event type embeds EventMeta and implements
// the unexported marker method, so a type switch over Event is exhaustive
// in practice while still open to new wire variants arriving as Unknown
// (§8: "unrecognized types become Unknown events, never discarded").
type Event interface {
	isEvent()
	Meta() EventMeta
}

// EventMeta carries the fields common to every event (§6: "timestamp plus
// kind-specific fields... all events carry the sessionId").
type EventMeta struct {
	SessionID string
	Type      string
	Timestamp time.Time
}

func (m EventMeta) Meta() EventMeta { return m }

// --- session lifecycle -----------------------------------------------------

type SessionStart struct {
	EventMeta
}
type SessionResume struct {
	EventMeta
}
type SessionIdle struct {
	EventMeta
}
type SessionShutdown struct {
	EventMeta
	Reason string
}
type SessionError struct {
	EventMeta
	Message string
}
type SessionInfo struct {
	EventMeta
	Message string
}
type SessionWarning struct {
	EventMeta
	Message string
}
type TaskComplete struct {
	EventMeta
}

func (SessionStart) isEvent()    {}
func (SessionResume) isEvent()   {}
func (SessionIdle) isEvent()     {}
func (SessionShutdown) isEvent() {}
func (SessionError) isEvent()    {}
func (SessionInfo) isEvent()     {}
func (SessionWarning) isEvent()  {}
func (TaskComplete) isEvent()    {}

// --- session state ----------------------------------------------------------

type TitleChanged struct {
	EventMeta
	Title string
}
type ModelChange struct {
	EventMeta
	Model string
}
type ModeChanged struct {
	EventMeta
	Mode string
}
type PlanChanged struct {
	EventMeta
	Plan string
}
type Truncation struct {
	EventMeta
	Reason string
}
type ContextChanged struct {
	EventMeta
}
type UsageInfo struct {
	EventMeta
	InputTokens  int
	OutputTokens int
}
type SnapshotRewind struct {
	EventMeta
	SnapshotID string
}
type Handoff struct {
	EventMeta
	ToAgent string
}
type WorkspaceFileChanged struct {
	EventMeta
	Path string
}
type CompactionStart struct {
	EventMeta
}
type CompactionComplete struct {
	EventMeta
}

func (TitleChanged) isEvent()         {}
func (ModelChange) isEvent()          {}
func (ModeChanged) isEvent()          {}
func (PlanChanged) isEvent()          {}
func (Truncation) isEvent()           {}
func (ContextChanged) isEvent()       {}
func (UsageInfo) isEvent()            {}
func (SnapshotRewind) isEvent()       {}
func (Handoff) isEvent()              {}
func (WorkspaceFileChanged) isEvent() {}
func (CompactionStart) isEvent()      {}
func (CompactionComplete) isEvent()   {}

// --- messages ----------------------------------------------------------------

// AssistantMessage is a terminal (non-delta) assistant reply — the event
// sendAndWait waits for (§4.5).
type AssistantMessage struct {
	EventMeta
	Content string
}
type AssistantMessageDelta struct {
	EventMeta
	Delta string
}
type AssistantStreamingDelta struct {
	EventMeta
	Delta string
}
type ReasoningMessage struct {
	EventMeta
	Content string
}
type ReasoningDelta struct {
	EventMeta
	Delta string
}
type Intent struct {
	EventMeta
	Description string
}
type Usage struct {
	EventMeta
	InputTokens  int
	OutputTokens int
}
type TurnStart struct {
	EventMeta
}
type TurnEnd struct {
	EventMeta
}
type UserMessage struct {
	EventMeta
	Content string
}
type PendingMessagesModified struct {
	EventMeta
	Count int
}
type SystemMessage struct {
	EventMeta
	Content string
}
type Abort struct {
	EventMeta
	Reason string
}

func (AssistantMessage) isEvent()        {}
func (AssistantMessageDelta) isEvent()   {}
func (AssistantStreamingDelta) isEvent() {}
func (ReasoningMessage) isEvent()        {}
func (ReasoningDelta) isEvent()          {}
func (Intent) isEvent()                  {}
func (Usage) isEvent()                   {}
func (TurnStart) isEvent()               {}
func (TurnEnd) isEvent()                 {}
func (UserMessage) isEvent()             {}
func (PendingMessagesModified) isEvent() {}
func (SystemMessage) isEvent()           {}
func (Abort) isEvent()                   {}

// --- tools ---------------------------------------------------------------

type ToolUserRequested struct {
	EventMeta
	ToolCallID string
	ToolName   string
}
type ToolExecutionStart struct {
	EventMeta
	ToolCallID string
	ToolName   string
	Arguments  map[string]any
}
type ToolExecutionPartialResult struct {
	EventMeta
	ToolCallID string
	Partial    string
}
type ToolExecutionProgress struct {
	EventMeta
	ToolCallID string
	Progress   string
}
type ToolExecutionComplete struct {
	EventMeta
	ToolCallID string
	Success    bool
	Result     string
}

func (ToolUserRequested) isEvent()          {}
func (ToolExecutionStart) isEvent()         {}
func (ToolExecutionPartialResult) isEvent() {}
func (ToolExecutionProgress) isEvent()      {}
func (ToolExecutionComplete) isEvent()      {}

// --- skills / agents -------------------------------------------------------

type SkillInvoked struct {
	EventMeta
	Skill string
}
type SubagentStarted struct {
	EventMeta
	AgentID string
}
type SubagentCompleted struct {
	EventMeta
	AgentID string
}
type SubagentFailed struct {
	EventMeta
	AgentID string
	Reason  string
}
type SubagentSelected struct {
	EventMeta
	AgentID string
}

func (SkillInvoked) isEvent()      {}
func (SubagentStarted) isEvent()   {}
func (SubagentCompleted) isEvent() {}
func (SubagentFailed) isEvent()    {}
func (SubagentSelected) isEvent()  {}

// --- hooks -----------------------------------------------------------------

type HookStart struct {
	EventMeta
	Hook HookKind
}
type HookEnd struct {
	EventMeta
	Hook HookKind
}

func (HookStart) isEvent() {}
func (HookEnd) isEvent()   {}

// --- forward-compatibility fallback ----------------------------------------

// Unknown preserves an unrecognized event type's original string and raw
// payload, so nothing is ever silently discarded (§8).
type Unknown struct {
	EventMeta
	Raw json.RawMessage
}

func (Unknown) isEvent() {}

// eventTypeWire is the wire envelope shared by every session.event payload.
type eventTypeWire struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Timestamp string          `json:"timestamp"`
	Payload   json.RawMessage `json:"-"`
}

// normalizeEventType strips a "session." prefix so "session.created" and
// "created" both select the same variant (§8: "must both dispatch to the
// SessionStart variant").
func normalizeEventType(t string) string {
	return strings.TrimPrefix(t, "session.")
}

// parseTimestamp tolerates a missing/malformed timestamp by falling back to
// the zero time rather than failing the whole event (§6 forward-compat
// posture extends to malformed auxiliary fields, not just unknown types).
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ParseEvent deserializes one session.event payload into its Event variant
// (§6 "Event ingestion"). Unrecognized or malformed types deserialize to
// Unknown rather than returning an error: the core's contract is that
// events are never discarded and ingestion never fails the connection.
func ParseEvent(raw json.RawMessage) Event {
	var env eventTypeWire
	if err := json.Unmarshal(raw, &env); err != nil {
		return Unknown{EventMeta: EventMeta{Type: "", Timestamp: time.Time{}}, Raw: raw}
	}
	meta := EventMeta{
		SessionID: env.SessionID,
		Type:      env.Type,
		Timestamp: parseTimestamp(env.Timestamp),
	}

	var f fields
	_ = json.Unmarshal(raw, &f)

	switch normalizeEventType(env.Type) {
	case "created", "start":
		return SessionStart{EventMeta: meta}
	case "resumed", "resume":
		return SessionResume{EventMeta: meta}
	case "idle":
		return SessionIdle{EventMeta: meta}
	case "shutdown":
		return SessionShutdown{EventMeta: meta, Reason: f.Reason}
	case "error":
		return SessionError{EventMeta: meta, Message: f.Message}
	case "info":
		return SessionInfo{EventMeta: meta, Message: f.Message}
	case "warning":
		return SessionWarning{EventMeta: meta, Message: f.Message}
	case "taskComplete":
		return TaskComplete{EventMeta: meta}

	case "titleChanged":
		return TitleChanged{EventMeta: meta, Title: f.Title}
	case "modelChange":
		return ModelChange{EventMeta: meta, Model: f.Model}
	case "modeChanged":
		return ModeChanged{EventMeta: meta, Mode: f.Mode}
	case "planChanged":
		return PlanChanged{EventMeta: meta, Plan: f.Plan}
	case "truncation":
		return Truncation{EventMeta: meta, Reason: f.Reason}
	case "contextChanged":
		return ContextChanged{EventMeta: meta}
	case "usageInfo":
		return UsageInfo{EventMeta: meta, InputTokens: f.InputTokens, OutputTokens: f.OutputTokens}
	case "snapshotRewind":
		return SnapshotRewind{EventMeta: meta, SnapshotID: f.SnapshotID}
	case "handoff":
		return Handoff{EventMeta: meta, ToAgent: f.ToAgent}
	case "workspaceFileChanged":
		return WorkspaceFileChanged{EventMeta: meta, Path: f.Path}
	case "compactionStart":
		return CompactionStart{EventMeta: meta}
	case "compactionComplete":
		return CompactionComplete{EventMeta: meta}

	case "assistantMessage":
		return AssistantMessage{EventMeta: meta, Content: f.Content}
	case "assistantMessageDelta":
		return AssistantMessageDelta{EventMeta: meta, Delta: f.Delta}
	case "streamingDelta":
		return AssistantStreamingDelta{EventMeta: meta, Delta: f.Delta}
	case "reasoning":
		return ReasoningMessage{EventMeta: meta, Content: f.Content}
	case "reasoningDelta":
		return ReasoningDelta{EventMeta: meta, Delta: f.Delta}
	case "intent":
		return Intent{EventMeta: meta, Description: f.Description}
	case "usage":
		return Usage{EventMeta: meta, InputTokens: f.InputTokens, OutputTokens: f.OutputTokens}
	case "turnStart":
		return TurnStart{EventMeta: meta}
	case "turnEnd":
		return TurnEnd{EventMeta: meta}
	case "userMessage":
		return UserMessage{EventMeta: meta, Content: f.Content}
	case "pendingMessagesModified":
		return PendingMessagesModified{EventMeta: meta, Count: f.Count}
	case "systemMessage":
		return SystemMessage{EventMeta: meta, Content: f.Content}
	case "abort":
		return Abort{EventMeta: meta, Reason: f.Reason}

	case "toolUserRequested":
		return ToolUserRequested{EventMeta: meta, ToolCallID: f.ToolCallID, ToolName: f.ToolName}
	case "toolExecutionStart":
		return ToolExecutionStart{EventMeta: meta, ToolCallID: f.ToolCallID, ToolName: f.ToolName, Arguments: f.Arguments}
	case "toolExecutionPartialResult":
		return ToolExecutionPartialResult{EventMeta: meta, ToolCallID: f.ToolCallID, Partial: f.Partial}
	case "toolExecutionProgress":
		return ToolExecutionProgress{EventMeta: meta, ToolCallID: f.ToolCallID, Progress: f.Progress}
	case "toolExecutionComplete":
		return ToolExecutionComplete{EventMeta: meta, ToolCallID: f.ToolCallID, Success: f.Success, Result: f.Result}

	case "skillInvoked":
		return SkillInvoked{EventMeta: meta, Skill: f.Skill}
	case "subagentStarted":
		return SubagentStarted{EventMeta: meta, AgentID: f.AgentID}
	case "subagentCompleted":
		return SubagentCompleted{EventMeta: meta, AgentID: f.AgentID}
	case "subagentFailed":
		return SubagentFailed{EventMeta: meta, AgentID: f.AgentID, Reason: f.Reason}
	case "subagentSelected":
		return SubagentSelected{EventMeta: meta, AgentID: f.AgentID}

	case "hookStart":
		return HookStart{EventMeta: meta, Hook: HookKind(f.Hook)}
	case "hookEnd":
		return HookEnd{EventMeta: meta, Hook: HookKind(f.Hook)}

	default:
		return Unknown{EventMeta: meta, Raw: raw}
	}
}

// fields is a superset scratch struct used to pull out whichever
// kind-specific fields a given payload carries, avoiding 46 one-off
// unmarshal targets for what is explicitly mechanical schema work (§2
// "excluding the exhaustive event/type schema which is mechanical").
type fields struct {
	Reason       string         `json:"reason"`
	Message      string         `json:"message"`
	Title        string         `json:"title"`
	Model        string         `json:"model"`
	Mode         string         `json:"mode"`
	Plan         string         `json:"plan"`
	InputTokens  int            `json:"inputTokens"`
	OutputTokens int            `json:"outputTokens"`
	SnapshotID   string         `json:"snapshotId"`
	ToAgent      string         `json:"toAgent"`
	Path         string         `json:"path"`
	Content      string         `json:"content"`
	Delta        string         `json:"delta"`
	Description  string         `json:"description"`
	Count        int            `json:"count"`
	ToolCallID   string         `json:"toolCallId"`
	ToolName     string         `json:"toolName"`
	Arguments    map[string]any `json:"arguments"`
	Partial      string         `json:"partial"`
	Progress     string         `json:"progress"`
	Success      bool           `json:"success"`
	Result       string         `json:"result"`
	Skill        string         `json:"skill"`
	AgentID      string         `json:"agentId"`
	Hook         string         `json:"hook"`
}
