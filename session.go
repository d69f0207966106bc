package copilot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/copilot-cli/acp-sdk-go/internal/wire"
)

// Session owns one agent sessionId: its model/mode/plan/workspace state,
// registered tools/hooks/handlers, and the broadcast event stream (§4.5).
// State is mutated only by incoming events and user-initiated RPCs, never
// directly by a caller (§4.5).
type Session struct {
	client    *Client
	sessionID string
	lifecycle *sessionLifecycle

	stateMu   sync.RWMutex
	model     string
	mode      string
	plan      string
	workspace string

	regMu   sync.RWMutex
	tools   map[string]Tool
	hooks   map[HookKind][]HookHandler
	onPerm  PermissionHandler
	onInput UserInputHandler

	subMu       sync.Mutex
	subscribers []chan Event
	events      chan Event // the default single-consumer stream

	destroyOnce sync.Once
}

// SessionID returns the agent-assigned session identifier.
func (s *Session) SessionID() string { return s.sessionID }

// State returns the session's current lifecycle state (§4.6).
func (s *Session) State() SessionState { return s.lifecycle.current() }

func newSession(c *Client, sessionID string, cfg SessionConfig) *Session {
	s := &Session{
		client:    c,
		sessionID: sessionID,
		lifecycle: newSessionLifecycle(),
		model:     cfg.Model,
		mode:      cfg.Mode,
		workspace: cfg.WorkspacePath,
		tools:     make(map[string]Tool, len(cfg.Tools)),
		hooks:     make(map[HookKind][]HookHandler),
		onPerm:    cfg.OnPermission,
		onInput:   cfg.OnUserInput,
		events:    make(chan Event, 64),
	}
	for _, t := range cfg.Tools {
		s.tools[t.Name] = t
	}
	for kind, handlers := range cfg.Hooks {
		s.hooks[kind] = append([]HookHandler(nil), handlers...)
	}
	return s
}

// --- registries --------------------------------------------------------------

// RegisterTools adds to (or replaces, by name) this session's client-side
// tool registry.
func (s *Session) RegisterTools(tools ...Tool) {
	s.regMu.Lock()
	defer s.regMu.Unlock()
	for _, t := range tools {
		s.tools[t.Name] = t
	}
}

// RegisterPermissionHandler sets the handler consulted for permission.request.
// A nil handler restores default-deny behavior.
func (s *Session) RegisterPermissionHandler(h PermissionHandler) {
	s.regMu.Lock()
	s.onPerm = h
	s.regMu.Unlock()
}

// RegisterUserInputHandler sets the handler consulted for userInput.request.
// A nil handler restores default-cancel behavior.
func (s *Session) RegisterUserInputHandler(h UserInputHandler) {
	s.regMu.Lock()
	s.onInput = h
	s.regMu.Unlock()
}

// RegisterHooks appends handlers for the given kind, preserving registration
// order for merge purposes (§6 "handler registration in order").
func (s *Session) RegisterHooks(kind HookKind, handlers ...HookHandler) {
	s.regMu.Lock()
	s.hooks[kind] = append(s.hooks[kind], handlers...)
	s.regMu.Unlock()
}

// --- server→client dispatch (invoked from dispatch.go) ----------------------

func (s *Session) dispatchTool(ctx context.Context, p wire.ToolExecuteParams) (result ToolResult) {
	s.regMu.RLock()
	t, ok := s.tools[p.Name]
	s.regMu.RUnlock()
	if !ok {
		return ToolFailure(fmt.Sprintf("no handler registered for tool %q", p.Name))
	}
	defer func() {
		if r := recover(); r != nil {
			s.client.logger.Error("tool handler panicked", "tool", p.Name, "panic", r)
			result = ToolFailure(fmt.Sprintf("tool %q panicked: %v", p.Name, r))
		}
	}()
	return t.Handler(ctx, ToolInvocation{ToolCallID: p.ToolCallID, Name: p.Name, Arguments: p.Arguments})
}

func (s *Session) dispatchPermission(ctx context.Context, req PermissionRequest) (resp PermissionResponse) {
	s.regMu.RLock()
	h := s.onPerm
	s.regMu.RUnlock()
	if h == nil {
		return defaultDenyPermission(ctx, req)
	}
	defer func() {
		if r := recover(); r != nil {
			s.client.logger.Error("permission handler panicked", "panic", r)
			resp = PermissionResponse{Decision: PermissionDeny, Reason: "permission handler panicked"}
		}
	}()
	return h(ctx, req)
}

func (s *Session) dispatchUserInput(ctx context.Context, req UserInputRequest) (value string, err error) {
	s.regMu.RLock()
	h := s.onInput
	s.regMu.RUnlock()
	if h == nil {
		return defaultCancelUserInput(ctx, req)
	}
	defer func() {
		if r := recover(); r != nil {
			s.client.logger.Error("user input handler panicked", "panic", r)
			value, err = "", ErrUserInputCancelled
		}
	}()
	return h(ctx, req)
}

func (s *Session) dispatchHooks(ctx context.Context, kind HookKind, in HookInput) HookResult {
	s.regMu.RLock()
	handlers := append([]HookHandler(nil), s.hooks[kind]...)
	s.regMu.RUnlock()
	if len(handlers) == 0 {
		return HookResult{}
	}
	results := make([]HookResult, 0, len(handlers))
	for _, h := range handlers {
		results = append(results, s.safeRunHook(ctx, h, in))
	}
	return mergeHookResults(results)
}

func (s *Session) safeRunHook(ctx context.Context, h HookHandler, in HookInput) (res HookResult) {
	defer func() {
		if r := recover(); r != nil {
			s.client.logger.Error("hook handler panicked", "kind", in.Kind, "panic", r)
			res = HookResult{}
		}
	}()
	return h(ctx, in)
}

// --- event ingestion + broadcast ---------------------------------------------

// ingest is called by the connection's inbound loop (via Client.handleSessionEvent)
// for each event addressed to this session. It updates cached state, advances
// the lifecycle state machine, and fans the event out to every subscriber in
// wire order without blocking on a slow one (§4.5, §5).
func (s *Session) ingest(e Event) {
	s.applyState(e)
	s.lifecycle.observeEvent(e)
	s.broadcast(e)
}

func (s *Session) applyState(e Event) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	switch ev := e.(type) {
	case ModelChange:
		s.model = ev.Model
	case ModeChanged:
		s.mode = ev.Mode
	case PlanChanged:
		s.plan = ev.Plan
	case WorkspaceFileChanged:
		_ = ev.Path // per-file change; workspace root itself is unaffected
	}
}

// broadcast delivers e to the default stream and every registered
// subscriber. The default stream is bounded (64); a subscriber that falls
// behind never blocks ingestion — its oldest buffered event is dropped
// instead, with a warning, per the documented multi-consumer policy (§8
// "Broadcast event stream... drops-oldest with warnings").
func (s *Session) broadcast(e Event) {
	trySendDropOldest(s.events, e, s.client.logger, "default")

	s.subMu.Lock()
	subs := append([]chan Event(nil), s.subscribers...)
	s.subMu.Unlock()
	for _, ch := range subs {
		trySendDropOldest(ch, e, s.client.logger, "subscriber")
	}
}

func trySendDropOldest(ch chan Event, e Event, logger interface {
	Warn(msg string, args ...any)
}, label string) {
	select {
	case ch <- e:
	default:
		select {
		case <-ch:
			logger.Warn("event stream overflow, dropping oldest", "stream", label)
		default:
		}
		select {
		case ch <- e:
		default:
		}
	}
}

// Events returns the session's default broadcast stream.
func (s *Session) Events() <-chan Event { return s.events }

// Subscribe registers an additional bounded-capacity subscriber to the
// broadcast stream. The returned channel is never closed by the session
// except on Destroy; callers that stop reading should discard their
// reference (the session has no unsubscribe).
func (s *Session) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)
	s.subMu.Lock()
	s.subscribers = append(s.subscribers, ch)
	s.subMu.Unlock()
	return ch
}

// On registers callback to run for every event via a dedicated goroutine
// reading a private subscription; a panic in callback is recovered and
// logged rather than propagated (§4.5 "on(callback): convenience
// subscription").
func (s *Session) On(callback func(Event)) {
	ch := s.Subscribe(64)
	go func() {
		for e := range ch {
			s.safeCallback(callback, e)
		}
	}()
}

// OnLifecycleEvent returns a channel carrying only session-lifecycle events
// (SessionStart/Resume/Idle/Shutdown/Error/Info/Warning/TaskComplete),
// filtered from a dedicated subscription (§4.5 "onLifecycleEvent(filter):
// typed filtered lifecycle-event stream").
func (s *Session) OnLifecycleEvent() <-chan Event {
	sub := s.Subscribe(32)
	out := make(chan Event, 32)
	go func() {
		defer close(out)
		for e := range sub {
			if isLifecycleEvent(e) {
				out <- e
			}
		}
	}()
	return out
}

func isLifecycleEvent(e Event) bool {
	switch e.(type) {
	case SessionStart, SessionResume, SessionIdle, SessionShutdown,
		SessionError, SessionInfo, SessionWarning, TaskComplete:
		return true
	default:
		return false
	}
}

func (s *Session) safeCallback(callback func(Event), e Event) {
	defer func() {
		if r := recover(); r != nil {
			s.client.logger.Error("event callback panicked", "panic", r)
		}
	}()
	callback(e)
}

// --- accessors ---------------------------------------------------------------

func (s *Session) Model() string {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.model
}

func (s *Session) Mode() string {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.mode
}

func (s *Session) Plan() string {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.plan
}

func (s *Session) Workspace() string {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.workspace
}

// --- send / sendAndWait -------------------------------------------------------

// Send delivers a message to the session without waiting for a reply (§4.5).
func (s *Session) Send(ctx context.Context, message string, opts SendOptions) error {
	if s.lifecycle.destroyed() {
		return ErrDestroyed
	}
	mode := opts.Mode
	if mode == "" {
		mode = ModeEnqueue
	}
	atts, err := marshalAttachmentsJSON(opts.Attachments)
	if err != nil {
		return wrapErr(KindProtocol, "session.sendMessage", err)
	}
	params := wire.SessionSendMessageParams{
		SessionID: s.sessionID, Message: message, Mode: string(mode), Attachments: atts,
	}
	return s.call(ctx, wire.MethodSessionSendMessage, params, nil)
}

// SendAndWait sends message, then awaits the next terminal AssistantMessage
// event or SessionIdle, subject to ctx's deadline (§4.5). It concurrently
// drains the event stream while Send is in flight, mirroring the
// send+drain concurrency pattern RPC-driven turns require (Send itself
// blocks on an RPC round trip, so both must run concurrently to avoid
// missing fast-arriving events). Returns "", nil on timeout/idle-without-reply.
func (s *Session) SendAndWait(ctx context.Context, message string, opts SendOptions) (string, error) {
	if s.lifecycle.destroyed() {
		return "", ErrDestroyed
	}
	sub := s.Subscribe(256)

	sendErrCh := make(chan error, 1)
	go func() { sendErrCh <- s.Send(ctx, message, opts) }()

	for {
		select {
		case e, ok := <-sub:
			if !ok {
				return "", collectSendErr(sendErrCh)
			}
			switch ev := e.(type) {
			case AssistantMessage:
				return ev.Content, collectSendErr(sendErrCh)
			case SessionIdle:
				return "", collectSendErr(sendErrCh)
			}
		case err := <-sendErrCh:
			if err != nil {
				return "", err
			}
			sendErrCh = nil
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", nil
			}
			return "", ctx.Err()
		}
	}
}

func collectSendErr(ch <-chan error) error {
	select {
	case err := <-ch:
		return err
	default:
		return nil
	}
}

func marshalAttachmentsJSON(atts []Attachment) ([]byte, error) {
	if len(atts) == 0 {
		return nil, nil
	}
	return json.Marshal(marshalAttachments(atts))
}

// --- session-scoped RPCs (§6) -------------------------------------------------

func (s *Session) idParams() wire.SessionIDParams {
	return wire.SessionIDParams{SessionID: s.sessionID}
}

// call forwards to the Client's RPC call, short-circuiting with
// ErrDestroyed once this session has been torn down rather than waiting on
// a connection that will never answer about it again (§4.6: "In Destroyed,
// all further calls return an error").
func (s *Session) call(ctx context.Context, method string, params, result any) error {
	if s.lifecycle.destroyed() {
		return ErrDestroyed
	}
	return s.client.call(ctx, method, params, result)
}

// GetModel returns the session's current model id from the agent.
func (s *Session) GetModel(ctx context.Context) (string, error) {
	var res wire.SessionGetModelResult
	err := s.call(ctx, wire.MethodSessionGetModel, s.idParams(), &res)
	return res.Model, err
}

// SwitchModel changes the session's active model.
func (s *Session) SwitchModel(ctx context.Context, model string) error {
	return s.call(ctx, wire.MethodSessionSwitchModel, wire.SessionSwitchModelParams{SessionID: s.sessionID, Model: model}, nil)
}

// SetMode changes the session's active mode.
func (s *Session) SetMode(ctx context.Context, mode string) error {
	return s.call(ctx, wire.MethodSessionSetMode, wire.SessionSetModeParams{SessionID: s.sessionID, Mode: mode}, nil)
}

// ReadPlan returns the session's current plan text.
func (s *Session) ReadPlan(ctx context.Context) (string, error) {
	var res wire.SessionReadPlanResult
	err := s.call(ctx, wire.MethodSessionReadPlan, s.idParams(), &res)
	return res.Plan, err
}

// UpdatePlan replaces the session's plan text.
func (s *Session) UpdatePlan(ctx context.Context, plan string) error {
	return s.call(ctx, wire.MethodSessionUpdatePlan, wire.SessionUpdatePlanParams{SessionID: s.sessionID, Plan: plan}, nil)
}

// ListWorkspaceFiles lists files in the session's workspace.
func (s *Session) ListWorkspaceFiles(ctx context.Context) ([]string, error) {
	var res wire.SessionListFilesResult
	err := s.call(ctx, wire.MethodSessionListFiles, s.idParams(), &res)
	return res.Files, err
}

// ReadWorkspaceFile returns the content of a file in the session's workspace.
func (s *Session) ReadWorkspaceFile(ctx context.Context, path string) (string, error) {
	var res wire.SessionReadFileResult
	err := s.call(ctx, wire.MethodSessionReadFile, wire.SessionReadFileParams{SessionID: s.sessionID, Path: path}, &res)
	return res.Content, err
}

// StartFleet launches a group of subagents against task, returning a fleet id.
func (s *Session) StartFleet(ctx context.Context, agentIDs []string, task string) (string, error) {
	var res wire.SessionStartFleetResult
	err := s.call(ctx, wire.MethodSessionStartFleet, wire.SessionStartFleetParams{SessionID: s.sessionID, AgentIDs: agentIDs, Task: task}, &res)
	return res.FleetID, err
}

// Abort cancels the session's in-flight turn, if any.
func (s *Session) Abort(ctx context.Context) error {
	return s.call(ctx, wire.MethodSessionAbort, s.idParams(), nil)
}

// CompactionResult reports the outcome of a session.compact call (§4.5).
type CompactionResult struct {
	TokensBefore int
	TokensAfter  int
	Summary      string
}

// Compact requests context compaction for a long-running session, returning
// the resulting token accounting and summary (§4.5 "compact ... returns a
// compaction result").
func (s *Session) Compact(ctx context.Context) (CompactionResult, error) {
	var res wire.SessionCompactResult
	if err := s.call(ctx, wire.MethodSessionCompact, s.idParams(), &res); err != nil {
		return CompactionResult{}, err
	}
	return CompactionResult{
		TokensBefore: res.TokensBefore,
		TokensAfter:  res.TokensAfter,
		Summary:      res.Summary,
	}, nil
}

// Destroy terminates the session (§4.6: terminal state; all further calls
// return ErrDestroyed). Idempotent.
func (s *Session) Destroy(ctx context.Context) error {
	if s.lifecycle.destroyed() {
		return nil
	}
	var callErr error
	s.destroyOnce.Do(func() {
		callErr = s.client.call(ctx, wire.MethodSessionDestroy, s.idParams(), nil)
		s.lifecycle.transition(StateDestroyed)
		s.client.unregisterSession(s.sessionID)
		s.closeSubscribers()
	})
	return callErr
}

func (s *Session) closeSubscribers() {
	close(s.events)
	s.subMu.Lock()
	subs := s.subscribers
	s.subscribers = nil
	s.subMu.Unlock()
	for _, ch := range subs {
		close(ch)
	}
}

// closeDueToTransport marks the session destroyed in response to the
// underlying connection closing (process exit, transport error), so
// callers blocked in SendAndWait or iterating Events unblock instead of
// hanging forever (§5, §7).
func (s *Session) closeDueToTransport(err error) {
	s.destroyOnce.Do(func() {
		s.lifecycle.transition(StateDestroyed)
		s.client.unregisterSession(s.sessionID)
		s.closeSubscribers()
	})
	_ = err
}
