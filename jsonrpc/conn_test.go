package jsonrpc

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"
)

const testTimeout = 5 * time.Second

// testPeer simulates the remote side of a connection: it decodes whatever
// the Conn writes, and can push raw framed bytes into the Conn's feed loop.
type testPeer struct {
	t       *testing.T
	conn    *Conn
	dec     *Decoder
	inbound chan Message // messages the Conn wrote, decoded by the peer
	pw      io.WriteCloser
}

// newTestConn wires a Conn to an in-process peer via io.Pipe, with a
// goroutine feeding bytes from the pipe into conn.Feed — standing in for a
// transport's receive loop (§4.2/§4.3 boundary).
func newTestConn(t *testing.T, opts ...Option) (*Conn, *testPeer) {
	t.Helper()

	// Conn writes to pw2; the peer reads pr2 and decodes what Conn sent.
	pr2, pw2 := io.Pipe()
	// The peer writes to pw1; a feed goroutine reads pr1 and drives conn.Feed.
	pr1, pw1 := io.Pipe()

	conn := New(pw2, opts...)

	feedDone := make(chan struct{})
	go func() {
		defer close(feedDone)
		dec := NewDecoder()
		buf := make([]byte, 4096)
		for {
			n, err := pr1.Read(buf)
			if n > 0 {
				_ = conn.Feed(dec, buf[:n])
			}
			if err != nil {
				conn.Close()
				return
			}
		}
	}()

	peer := &testPeer{t: t, conn: conn, dec: NewDecoder(), inbound: make(chan Message, 32), pw: pw1}

	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := pr2.Read(buf)
			if n > 0 {
				msgs, _ := peer.dec.Write(buf[:n])
				for _, raw := range msgs {
					var m Message
					if json.Unmarshal(raw, &m) == nil {
						peer.inbound <- m
					}
				}
			}
			if err != nil {
				return
			}
		}
	}()

	t.Cleanup(func() {
		pw1.Close()
		pw2.Close()
		pr1.Close()
		pr2.Close()
	})

	return conn, peer
}

func (p *testPeer) send(t *testing.T, v any) {
	t.Helper()
	if err := Encode(p.pw, v); err != nil {
		t.Fatalf("peer send: %v", err)
	}
}

func (p *testPeer) recv(t *testing.T) Message {
	t.Helper()
	select {
	case m := <-p.inbound:
		return m
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for message from Conn")
		return Message{}
	}
}

func TestConn_CallSuccess(t *testing.T) {
	conn, peer := newTestConn(t)

	type pingResult struct {
		OK bool `json:"ok"`
	}

	resultCh := make(chan error, 1)
	var result pingResult
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()
		resultCh <- conn.Call(ctx, "ping", nil, &result)
	}()

	req := peer.recv(t)
	if req.Method != "ping" {
		t.Fatalf("method = %q, want ping", req.Method)
	}
	peer.send(t, &Message{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(`{"ok":true}`)})

	if err := <-resultCh; err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if !result.OK {
		t.Errorf("result.OK = false, want true")
	}
}

func TestConn_CallErrorResponse(t *testing.T) {
	conn, peer := newTestConn(t)

	resultCh := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()
		resultCh <- conn.Call(ctx, "boom", nil, nil)
	}()

	req := peer.recv(t)
	peer.send(t, &Message{JSONRPC: "2.0", ID: req.ID, Error: &Error{Code: -32000, Message: "kaboom"}})

	err := <-resultCh
	if err == nil {
		t.Fatal("expected error")
	}
	var rpcErr *Error
	if e, ok := err.(*Error); ok {
		rpcErr = e
	}
	if rpcErr == nil || rpcErr.Message != "kaboom" {
		t.Errorf("expected RPC error 'kaboom', got %v", err)
	}
}

func TestConn_CallTimeout(t *testing.T) {
	conn, _ := newTestConn(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := conn.Call(ctx, "never-replied", nil, nil)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestConn_NotifyHasNoID(t *testing.T) {
	conn, peer := newTestConn(t)
	if err := conn.Notify("event", map[string]int{"n": 1}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	msg := peer.recv(t)
	if msg.ID != nil {
		t.Errorf("notification carried an id: %v", msg.ID)
	}
	if msg.Method != "event" {
		t.Errorf("method = %q, want event", msg.Method)
	}
}

func TestConn_InboundMethodCall_Success(t *testing.T) {
	conn, peer := newTestConn(t)
	conn.OnMethod("tool.execute", func(_ context.Context, params json.RawMessage) (any, error) {
		var p struct {
			Name string `json:"name"`
		}
		_ = json.Unmarshal(params, &p)
		return map[string]any{"success": true, "content": "ran " + p.Name}, nil
	})

	id := NewIntID(7)
	peer.send(t, &Message{JSONRPC: "2.0", ID: &id, Method: "tool.execute", Params: json.RawMessage(`{"name":"get_weather"}`)})

	resp := peer.recv(t)
	if resp.Error != nil {
		t.Fatalf("unexpected error response: %v", resp.Error)
	}
	var result map[string]any
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result["content"] != "ran get_weather" {
		t.Errorf("content = %v, want 'ran get_weather'", result["content"])
	}
}

func TestConn_InboundMethodCall_HandlerError(t *testing.T) {
	conn, peer := newTestConn(t)
	conn.OnMethod("tool.execute", func(_ context.Context, _ json.RawMessage) (any, error) {
		return nil, errBoom
	})

	id := NewIntID(9)
	peer.send(t, &Message{JSONRPC: "2.0", ID: &id, Method: "tool.execute"})

	resp := peer.recv(t)
	if resp.Error == nil {
		t.Fatal("expected error response")
	}
	if resp.Error.Code != CodeApplicationError {
		t.Errorf("code = %d, want %d", resp.Error.Code, CodeApplicationError)
	}
}

func TestConn_InboundMethodCall_NoHandler(t *testing.T) {
	conn, peer := newTestConn(t)

	id := NewIntID(3)
	peer.send(t, &Message{JSONRPC: "2.0", ID: &id, Method: "unknown.method"})

	resp := peer.recv(t)
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("expected method-not-found error, got %v", resp.Error)
	}
}

func TestConn_InboundNotification(t *testing.T) {
	conn, peer := newTestConn(t)
	got := make(chan string, 1)
	conn.OnNotification("session.event", func(params json.RawMessage) {
		var p struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal(params, &p)
		got <- p.Type
	})

	peer.send(t, &Message{JSONRPC: "2.0", Method: "session.event", Params: json.RawMessage(`{"type":"idle"}`)})

	select {
	case typ := <-got:
		if typ != "idle" {
			t.Errorf("type = %q, want idle", typ)
		}
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for notification dispatch")
	}
}

func TestConn_CloseFailsPendingCalls(t *testing.T) {
	conn, _ := newTestConn(t)

	resultCh := make(chan error, 1)
	go func() {
		resultCh <- conn.Call(context.Background(), "stuck", nil, nil)
	}()

	time.Sleep(20 * time.Millisecond) // let the call register as pending
	conn.Close()

	select {
	case err := <-resultCh:
		if err == nil {
			t.Fatal("expected error after Close")
		}
	case <-time.After(testTimeout):
		t.Fatal("Call did not unblock after Close")
	}
}

type boomErr struct{}

func (boomErr) Error() string { return "boom" }

var errBoom error = boomErr{}
