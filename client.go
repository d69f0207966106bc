// Package copilot implements the client side of the Copilot CLI agent
// protocol: a framed JSON-RPC 2.0 connection to a long-running agent
// process, wrapped in a typed, event-driven session abstraction. See
// SPEC_FULL.md for the full component breakdown.
package copilot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/copilot-cli/acp-sdk-go/internal/wire"
	"github.com/copilot-cli/acp-sdk-go/jsonrpc"
	"github.com/copilot-cli/acp-sdk-go/transport"
)

// Client owns one transport + connection to an agent process, performs
// top-level (session-independent) RPCs, and tracks live Sessions (§4.4).
type Client struct {
	id        string
	transport transport.Transport
	conn      *jsonrpc.Conn
	logger    *slog.Logger

	handshakeTimeout time.Duration
	callTimeout      time.Duration

	sessMu   sync.RWMutex
	sessions map[string]*Session

	startOnce sync.Once
	started   bool
	startErr  error

	closeOnce sync.Once
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithLogger sets the structured logger used for connection and lifecycle
// diagnostics. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHandshakeTimeout bounds how long Start's handshake (first ping) may
// take. Defaults to jsonrpc.DefaultHandshakeTimeout() (5s).
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.handshakeTimeout = d
		}
	}
}

// WithCallTimeout sets the default deadline applied to top-level and
// session RPCs when the caller's context carries no deadline of its own.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// New constructs a Client over the given transport. The transport is not
// started until Start is called.
func New(t transport.Transport, opts ...Option) *Client {
	c := &Client{
		id:               uuid.New().String(),
		transport:        t,
		logger:           slog.Default(),
		handshakeTimeout: jsonrpc.DefaultHandshakeTimeout(),
		callTimeout:      60 * time.Second,
		sessions:         make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches the transport, wires the JSON-RPC connection over it, and
// confirms liveness with a ping before returning (§4.4, §8 scenario 1).
// Calling Start more than once returns ErrAlreadyStarted.
func (c *Client) Start(ctx context.Context) error {
	var startedNow bool
	c.startOnce.Do(func() {
		startedNow = true
		c.startErr = c.doStart(ctx)
	})
	if !startedNow {
		return ErrAlreadyStarted
	}
	return c.startErr
}

func (c *Client) doStart(ctx context.Context) error {
	if err := c.transport.Start(ctx); err != nil {
		return wrapErr(KindTransport, "start", err)
	}

	c.conn = jsonrpc.New(writerFromTransport{c.transport}, jsonrpc.WithLogger(c.logger), jsonrpc.WithErrorCallback(func(err error) {
		c.logger.Error("connection error", "client", c.id, "error", err)
	}))

	c.registerServerMethods()

	go c.pumpInbound()

	c.transport.OnClose(func(err error) {
		c.logger.Warn("transport closed", "client", c.id, "error", err)
		c.conn.Close()
		c.failAllSessions(cmp(err, ErrClosed))
	})

	hctx, cancel := context.WithTimeout(ctx, c.handshakeTimeout)
	defer cancel()
	var pong wire.PingResult
	if err := c.conn.Call(hctx, wire.MethodPing, nil, &pong); err != nil {
		return wrapErr(KindProtocol, "handshake", err)
	}
	c.started = true
	return nil
}

func cmp(err, fallback error) error {
	if err != nil {
		return err
	}
	return fallback
}

// writerFromTransport adapts transport.Transport.Send to io.Writer so the
// jsonrpc.Conn can write frames without knowing about transports.
type writerFromTransport struct{ t transport.Transport }

func (w writerFromTransport) Write(p []byte) (int, error) {
	if err := w.t.Send(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// pumpInbound reads raw bytes from the transport and feeds them through a
// fresh framing Decoder into the connection's dispatcher (§4.1/§4.3
// boundary: the decoder is a distinct, reusable layer from the connection).
func (c *Client) pumpInbound() {
	dec := jsonrpc.NewDecoder()
	buf := make([]byte, 32*1024)
	r := c.transport.Receive()
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if ferr := c.conn.Feed(dec, buf[:n]); ferr != nil {
				c.logger.Error("framing error", "client", c.id, "error", ferr)
				c.conn.Close()
				c.failAllSessions(wrapErr(KindFraming, "decode", ferr))
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.logger.Error("transport read error", "client", c.id, "error", err)
			}
			return
		}
	}
}

func (c *Client) callTimeoutCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.callTimeout)
}

func (c *Client) call(ctx context.Context, method string, params, result any) error {
	if !c.started {
		return ErrNotStarted
	}
	cctx, cancel := c.callTimeoutCtx(ctx)
	defer cancel()
	err := c.conn.Call(cctx, method, params, result)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return wrapErr(KindTimeout, method, ErrTimeout)
		}
		var rpcErr *jsonrpc.Error
		if errors.As(err, &rpcErr) {
			return wrapErr(KindRPC, method, &RPCError{Code: rpcErr.Code, Message: rpcErr.Message, Data: rpcErr.Data})
		}
		if errors.Is(err, jsonrpc.ErrClosed) {
			return wrapErr(KindTransport, method, ErrClosed)
		}
		return wrapErr(KindTransport, method, err)
	}
	return nil
}

// --- top-level RPCs (§6) ---------------------------------------------------

// Status returns the agent process's version/readiness.
func (c *Client) Status(ctx context.Context) (wire.StatusResult, error) {
	var res wire.StatusResult
	err := c.call(ctx, wire.MethodStatus, nil, &res)
	return res, err
}

// AuthStatus reports whether the agent currently has an authenticated
// account. The core only observes this; it never drives auth UX (§1).
func (c *Client) AuthStatus(ctx context.Context) (wire.AuthStatusResult, error) {
	var res wire.AuthStatusResult
	err := c.call(ctx, wire.MethodAuth, nil, &res)
	return res, err
}

// ListModels returns the models the agent currently offers.
func (c *Client) ListModels(ctx context.Context) ([]wire.Model, error) {
	var res wire.ModelsListResult
	err := c.call(ctx, wire.MethodModels, nil, &res)
	return res.Models, err
}

// ListTools returns the agent's server-known tools (distinct from
// client-registered Tool values passed via SessionConfig).
func (c *Client) ListTools(ctx context.Context) ([]wire.ToolDescriptor, error) {
	var res wire.ToolsListResult
	err := c.call(ctx, wire.MethodTools, nil, &res)
	return res.Tools, err
}

// AccountQuota reports the authenticated account's usage quota.
func (c *Client) AccountQuota(ctx context.Context) (wire.QuotaResult, error) {
	var res wire.QuotaResult
	err := c.call(ctx, wire.MethodQuota, nil, &res)
	return res, err
}

// ListSessions lists sessions known to the agent (including ones this
// Client instance did not itself create).
func (c *Client) ListSessions(ctx context.Context) ([]wire.SessionSummary, error) {
	var res wire.SessionsListResult
	err := c.call(ctx, wire.MethodSessLs, nil, &res)
	return res.Sessions, err
}

// DeleteSession removes the given session from the agent's session store.
// It does not require a live local Session handle.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.call(ctx, wire.MethodSessDel, wire.SessionsDeleteParams{SessionID: sessionID}, nil)
}

// ListAgents lists the agents/personas the CLI can select among.
func (c *Client) ListAgents(ctx context.Context) ([]wire.Agent, error) {
	var res wire.AgentsListResult
	err := c.call(ctx, wire.MethodAgLs, nil, &res)
	return res.Agents, err
}

// CurrentAgent returns the currently selected agent, if any.
func (c *Client) CurrentAgent(ctx context.Context) (string, error) {
	var res wire.AgentsCurrentResult
	err := c.call(ctx, wire.MethodAgCur, nil, &res)
	return res.AgentID, err
}

// SelectAgent selects the given agent as current.
func (c *Client) SelectAgent(ctx context.Context, agentID string) error {
	return c.call(ctx, wire.MethodAgSel, wire.AgentsSelectParams{AgentID: agentID}, nil)
}

// DeselectAgent clears the current agent selection.
func (c *Client) DeselectAgent(ctx context.Context) error {
	return c.call(ctx, wire.MethodAgDesel, nil, nil)
}

// ForceStop asks the agent to abandon all in-flight work immediately.
func (c *Client) ForceStop(ctx context.Context) error {
	return c.call(ctx, wire.MethodClientForceStop, nil, nil)
}

// LastSessionID returns the id of the most recently active session.
func (c *Client) LastSessionID(ctx context.Context) (string, error) {
	var res wire.ClientLastSessionResult
	err := c.call(ctx, wire.MethodClientLastSession, nil, &res)
	return res.SessionID, err
}

// ForegroundSessionID returns the id of the session currently in the
// foreground, if any.
func (c *Client) ForegroundSessionID(ctx context.Context) (string, error) {
	var res wire.ClientForegroundResult
	err := c.call(ctx, wire.MethodClientGetForeground, nil, &res)
	return res.SessionID, err
}

// SetForegroundSessionID marks the given session as foreground.
func (c *Client) SetForegroundSessionID(ctx context.Context, sessionID string) error {
	return c.call(ctx, wire.MethodClientSetForeground, wire.ClientSetForegroundParams{SessionID: sessionID}, nil)
}

// --- session creation -------------------------------------------------------

// CreateSession starts a new agent session with the given configuration
// (§4.4, §6). The returned Session is registered with this Client and
// receives every session.event notification addressed to its id.
func (c *Client) CreateSession(ctx context.Context, cfg SessionConfig) (*Session, error) {
	if err := validateSessionConfig(cfg); err != nil {
		return nil, wrapErr(KindProtocol, "session.create", err)
	}
	params, err := sessionCreateParams(cfg)
	if err != nil {
		return nil, wrapErr(KindProtocol, "session.create", err)
	}
	var res wire.SessionCreateResult
	if err := c.call(ctx, wire.MethodSessionCreate, params, &res); err != nil {
		return nil, err
	}
	sess := c.registerSession(res.SessionID, cfg)
	if cfg.autoStart() {
		if err := c.startSession(ctx, res.SessionID); err != nil {
			c.unregisterSession(res.SessionID)
			return nil, err
		}
	}
	return sess, nil
}

// ResumeSession reattaches to a previously created session, forwarding
// every configured field (not only the id) per §4.4.
func (c *Client) ResumeSession(ctx context.Context, cfg ResumeSessionConfig) (*Session, error) {
	if err := validateSessionConfig(cfg.SessionConfig); err != nil {
		return nil, wrapErr(KindProtocol, "session.resume", err)
	}
	createParams, err := sessionCreateParams(cfg.SessionConfig)
	if err != nil {
		return nil, wrapErr(KindProtocol, "session.resume", err)
	}
	params := wire.SessionResumeParams{SessionID: cfg.SessionID, SessionCreateParams: createParams}
	var res wire.SessionResumeResult
	if err := c.call(ctx, wire.MethodSessionResume, params, &res); err != nil {
		return nil, err
	}
	sess := c.registerSession(res.SessionID, cfg.SessionConfig)
	if cfg.SessionConfig.autoStart() {
		if err := c.startSession(ctx, res.SessionID); err != nil {
			c.unregisterSession(res.SessionID)
			return nil, err
		}
	}
	return sess, nil
}

// startSession issues the follow-up session.start RPC (§4.4 "If autoStart is
// true (default), immediately send session.start"), mirroring the
// spawn-then-handshake-then-start sequencing of the engine this client is
// modeled on.
func (c *Client) startSession(ctx context.Context, sessionID string) error {
	return c.call(ctx, wire.MethodSessionStart, wire.SessionIDParams{SessionID: sessionID}, nil)
}

func sessionCreateParams(cfg SessionConfig) (wire.SessionCreateParams, error) {
	mcp, err := marshalMcpServers(cfg.McpServers)
	if err != nil {
		return wire.SessionCreateParams{}, fmt.Errorf("marshal mcpServers: %w", err)
	}
	caps, err := json.Marshal(cfg.capabilityFlags())
	if err != nil {
		return wire.SessionCreateParams{}, fmt.Errorf("marshal capabilities: %w", err)
	}
	var infinite json.RawMessage
	if cfg.InfiniteSess != nil {
		infinite, err = json.Marshal(cfg.InfiniteSess)
		if err != nil {
			return wire.SessionCreateParams{}, fmt.Errorf("marshal infiniteSessions: %w", err)
		}
	}
	var provider json.RawMessage
	if cfg.ProviderConfig != nil {
		provider, err = json.Marshal(cfg.ProviderConfig)
		if err != nil {
			return wire.SessionCreateParams{}, fmt.Errorf("marshal providerConfig: %w", err)
		}
	}
	toolNames := make([]string, 0, len(cfg.Tools))
	for _, t := range cfg.Tools {
		toolNames = append(toolNames, t.Name)
	}
	return wire.SessionCreateParams{
		Model:           cfg.Model,
		Mode:            cfg.Mode,
		McpServers:      mcp,
		Capabilities:    caps,
		InfiniteSess:    infinite,
		AutoStart:       cfg.autoStart(),
		EnvValueMode:    string(cfg.EnvValueMode),
		ProviderConfig:  provider,
		ReasoningEffort: string(cfg.ReasoningEffort),
		WorkspacePath:   cfg.WorkspacePath,
		ToolNames:       toolNames,
	}, nil
}

func (c *Client) registerSession(sessionID string, cfg SessionConfig) *Session {
	s := newSession(c, sessionID, cfg)
	c.sessMu.Lock()
	c.sessions[sessionID] = s
	c.sessMu.Unlock()
	return s
}

func (c *Client) sessionByID(id string) (*Session, bool) {
	c.sessMu.RLock()
	defer c.sessMu.RUnlock()
	s, ok := c.sessions[id]
	return s, ok
}

func (c *Client) unregisterSession(id string) {
	c.sessMu.Lock()
	delete(c.sessions, id)
	c.sessMu.Unlock()
}

func (c *Client) failAllSessions(err error) {
	c.sessMu.RLock()
	sessions := make([]*Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		sessions = append(sessions, s)
	}
	c.sessMu.RUnlock()
	for _, s := range sessions {
		s.closeDueToTransport(err)
	}
}

// Stop closes the connection and tears down the transport (§5 "always
// reap"). Idempotent.
func (c *Client) Stop() error {
	var err error
	c.closeOnce.Do(func() {
		if c.conn != nil {
			c.conn.Close()
		}
		if c.transport != nil {
			err = c.transport.Close()
		}
	})
	return err
}
