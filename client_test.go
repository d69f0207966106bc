package copilot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/copilot-cli/acp-sdk-go/jsonrpc"
	"github.com/copilot-cli/acp-sdk-go/transport"
)

// pipeTransport is an in-process transport.Transport backed by io.Pipe
// pairs, standing in for a real agent subprocess or socket in tests (§4.2:
// any Transport implementation is interchangeable from the connection's
// point of view).
type pipeTransport struct {
	toAgent   *io.PipeWriter
	fromAgent *io.PipeReader
	closed    atomic.Bool
	onClose   func(error)
}

func (p *pipeTransport) Start(context.Context) error { return nil }
func (p *pipeTransport) Send(b []byte) error {
	if p.closed.Load() {
		return transport.ErrClosed
	}
	_, err := p.toAgent.Write(b)
	return err
}
func (p *pipeTransport) Receive() io.Reader { return p.fromAgent }
func (p *pipeTransport) Close() error {
	p.closed.Store(true)
	_ = p.toAgent.Close()
	return nil
}
func (p *pipeTransport) OnError(func(error)) {}
func (p *pipeTransport) OnClose(f func(error)) { p.onClose = f }

var _ transport.Transport = (*pipeTransport)(nil)

// fakeAgent is the scripted "remote side" used by end-to-end tests: it
// decodes whatever the Client writes and lets the test script respond.
type fakeAgent struct {
	t   *testing.T
	dec *jsonrpc.Decoder
	in  *io.PipeReader
	out *io.PipeWriter
}

func newPipePair(t *testing.T) (*Client, *fakeAgent) {
	t.Helper()
	clientToAgentR, clientToAgentW := io.Pipe()
	agentToClientR, agentToClientW := io.Pipe()

	pt := &pipeTransport{toAgent: clientToAgentW, fromAgent: agentToClientR}
	agent := &fakeAgent{t: t, dec: jsonrpc.NewDecoder(), in: clientToAgentR, out: agentToClientW}

	c := New(pt, WithHandshakeTimeout(2*time.Second), WithCallTimeout(2*time.Second))
	return c, agent
}

// next blocks until the client sends one framed message and returns it.
func (a *fakeAgent) next() jsonrpc.Message {
	a.t.Helper()
	buf := make([]byte, 4096)
	for {
		n, err := a.in.Read(buf)
		if err != nil {
			a.t.Fatalf("fakeAgent: read: %v", err)
		}
		msgs, err := a.dec.Write(buf[:n])
		if err != nil {
			a.t.Fatalf("fakeAgent: decode: %v", err)
		}
		if len(msgs) > 0 {
			var m jsonrpc.Message
			if err := json.Unmarshal(msgs[0], &m); err != nil {
				a.t.Fatalf("fakeAgent: unmarshal: %v", err)
			}
			return m
		}
	}
}

// expectSessionStart consumes and acknowledges the session.start RPC that
// CreateSession/ResumeSession issue automatically when autoStart is true
// (§4.4).
func (a *fakeAgent) expectSessionStart() {
	a.t.Helper()
	req := a.next()
	if req.Method != "session.start" {
		a.t.Fatalf("method = %q, want session.start", req.Method)
	}
	a.replyResult(req.ID, nil)
}

func (a *fakeAgent) replyResult(id *jsonrpc.ID, result any) {
	msg, err := jsonrpc.NewResultResponse(*id, result)
	if err != nil {
		a.t.Fatalf("fakeAgent: build response: %v", err)
	}
	if err := jsonrpc.Encode(a.out, msg); err != nil {
		a.t.Fatalf("fakeAgent: encode response: %v", err)
	}
}

func (a *fakeAgent) notify(method string, params any) {
	raw, err := json.Marshal(params)
	if err != nil {
		a.t.Fatalf("fakeAgent: marshal params: %v", err)
	}
	msg := map[string]any{"jsonrpc": "2.0", "method": method, "params": json.RawMessage(raw)}
	if err := jsonrpc.Encode(a.out, msg); err != nil {
		a.t.Fatalf("fakeAgent: encode notification: %v", err)
	}
}

// startWithPing runs the client's Start handshake (ping) in the background,
// replying on the fake agent side, and returns once Start has completed.
func startWithPing(t *testing.T, c *Client, agent *fakeAgent) {
	t.Helper()
	startErr := make(chan error, 1)
	go func() { startErr <- c.Start(context.Background()) }()

	req := agent.next()
	if req.Method != "ping" {
		t.Fatalf("first request = %q, want ping", req.Method)
	}
	agent.replyResult(req.ID, map[string]any{"ok": true})

	if err := <-startErr; err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func TestClient_HandshakePing(t *testing.T) {
	c, agent := newPipePair(t)
	startWithPing(t, c, agent)
	defer c.Stop()
}

func TestClient_SendAndWaitHappyPath(t *testing.T) {
	c, agent := newPipePair(t)
	startWithPing(t, c, agent)
	defer c.Stop()

	var sess *Session
	createDone := make(chan error, 1)
	go func() {
		s, err := c.CreateSession(context.Background(), SessionConfig{})
		sess = s
		createDone <- err
	}()

	createReq := agent.next()
	if createReq.Method != "session.create" {
		t.Fatalf("method = %q, want session.create", createReq.Method)
	}
	agent.replyResult(createReq.ID, map[string]any{"sessionId": "sess-1"})
	agent.expectSessionStart()
	if err := <-createDone; err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	answerDone := make(chan struct {
		content string
		err     error
	}, 1)
	go func() {
		content, err := sess.SendAndWait(context.Background(), "What is 2+2?", SendOptions{})
		answerDone <- struct {
			content string
			err     error
		}{content, err}
	}()

	sendReq := agent.next()
	if sendReq.Method != "session.sendMessage" {
		t.Fatalf("method = %q, want session.sendMessage", sendReq.Method)
	}
	agent.replyResult(sendReq.ID, nil)

	agent.notify("session.event", map[string]any{"type": "assistantMessageDelta", "sessionId": "sess-1", "delta": "4"})
	agent.notify("session.event", map[string]any{"type": "assistantMessage", "sessionId": "sess-1", "content": "4"})
	agent.notify("session.event", map[string]any{"type": "idle", "sessionId": "sess-1"})

	select {
	case res := <-answerDone:
		if res.err != nil {
			t.Fatalf("SendAndWait: %v", res.err)
		}
		if res.content != "4" {
			t.Fatalf("content = %q, want %q", res.content, "4")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for SendAndWait")
	}
}

func TestClient_ToolDispatch(t *testing.T) {
	c, agent := newPipePair(t)
	startWithPing(t, c, agent)
	defer c.Stop()

	called := make(chan ToolInvocation, 1)
	tool := Tool{
		Name:        "add",
		Description: "adds two numbers",
		Handler: func(_ context.Context, call ToolInvocation) ToolResult {
			called <- call
			return ToolText("7")
		},
	}

	var sess *Session
	createDone := make(chan error, 1)
	go func() {
		s, err := c.CreateSession(context.Background(), SessionConfig{Tools: []Tool{tool}})
		sess = s
		createDone <- err
	}()
	createReq := agent.next()
	agent.replyResult(createReq.ID, map[string]any{"sessionId": "sess-2"})
	agent.expectSessionStart()
	if err := <-createDone; err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	_ = sess

	// Simulate the agent invoking the registered tool.
	toolReqRaw := map[string]any{
		"jsonrpc": "2.0", "id": 999, "method": "tool.execute",
		"params": map[string]any{
			"sessionId": "sess-2", "toolCallId": "call-1", "name": "add",
			"arguments": map[string]any{"a": 3, "b": 4},
		},
	}
	if err := jsonrpc.Encode(agent.out, toolReqRaw); err != nil {
		t.Fatalf("encode tool.execute: %v", err)
	}

	select {
	case call := <-called:
		if call.Name != "add" || call.ToolCallID != "call-1" {
			t.Fatalf("unexpected invocation: %+v", call)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("tool handler was never invoked")
	}

	resp := agent.next()
	if resp.Result == nil {
		t.Fatalf("expected a tool.execute result response, got %+v", resp)
	}
	var result map[string]any
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatal(err)
	}
	if result["success"] != true {
		t.Fatalf("result.success = %v, want true", result["success"])
	}
	if result["content"] != "7" {
		t.Fatalf("result.content = %v, want %q", result["content"], "7")
	}
}

func TestClient_PermissionDeniedByDefault(t *testing.T) {
	c, agent := newPipePair(t)
	startWithPing(t, c, agent)
	defer c.Stop()

	createDone := make(chan error, 1)
	go func() {
		_, err := c.CreateSession(context.Background(), SessionConfig{}) // no permission handler registered
		createDone <- err
	}()
	createReq := agent.next()
	agent.replyResult(createReq.ID, map[string]any{"sessionId": "sess-3"})
	agent.expectSessionStart()
	if err := <-createDone; err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	permReqRaw := map[string]any{
		"jsonrpc": "2.0", "id": 1000, "method": "permission.request",
		"params": map[string]any{
			"sessionId": "sess-3", "kind": "shell", "toolCallId": "call-9", "toolName": "bash",
		},
	}
	if err := jsonrpc.Encode(agent.out, permReqRaw); err != nil {
		t.Fatalf("encode permission.request: %v", err)
	}

	resp := agent.next()
	var result map[string]any
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatal(err)
	}
	if result["permissionDecision"] != "deny" {
		t.Fatalf("permissionDecision = %v, want deny", result["permissionDecision"])
	}
}

func TestClient_StartTwiceReturnsAlreadyStarted(t *testing.T) {
	c, agent := newPipePair(t)
	startWithPing(t, c, agent)
	defer c.Stop()

	if err := c.Start(context.Background()); err != ErrAlreadyStarted {
		t.Fatalf("second Start = %v, want ErrAlreadyStarted", err)
	}
}

func TestClient_RPCBeforeStartReturnsNotStarted(t *testing.T) {
	pt := &pipeTransport{}
	c := New(pt)
	_, err := c.Status(context.Background())
	if err != ErrNotStarted {
		t.Fatalf("err = %v, want ErrNotStarted", err)
	}
}

func ExampleClient_basicUsage() {
	fmt.Println("see SPEC_FULL.md §4.4/§4.5 for the full CreateSession + Send flow")
	// Output: see SPEC_FULL.md §4.4/§4.5 for the full CreateSession + Send flow
}
