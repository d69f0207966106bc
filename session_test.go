package copilot

import (
	"context"
	"testing"

	"github.com/copilot-cli/acp-sdk-go/internal/wire"
)

func newTestSession() *Session {
	c := &Client{logger: testLogger()}
	return newSession(c, "sess-test", SessionConfig{})
}

func TestSession_DispatchToolPanicRecovered(t *testing.T) {
	s := newTestSession()
	s.RegisterTools(Tool{
		Name:        "boom",
		Description: "panics",
		Handler: func(context.Context, ToolInvocation) ToolResult {
			panic("kaboom")
		},
	})

	result := s.dispatchTool(context.Background(), wire.ToolExecuteParams{Name: "boom", ToolCallID: "c1"})
	out := result.wire()
	if out.Success {
		t.Fatal("expected success=false after handler panic")
	}
}

func TestSession_DispatchToolUnknownName(t *testing.T) {
	s := newTestSession()
	result := s.dispatchTool(context.Background(), wire.ToolExecuteParams{Name: "missing"})
	if result.wire().Success {
		t.Fatal("expected failure for unregistered tool")
	}
}

func TestSession_DispatchPermissionDefaultDeny(t *testing.T) {
	s := newTestSession()
	resp := s.dispatchPermission(context.Background(), PermissionRequest{ToolName: "bash"})
	if resp.Decision != PermissionDeny {
		t.Fatalf("decision = %s, want deny", resp.Decision)
	}
}

func TestSession_DispatchPermissionRegisteredAllows(t *testing.T) {
	s := newTestSession()
	s.RegisterPermissionHandler(func(context.Context, PermissionRequest) PermissionResponse {
		return PermissionResponse{Decision: PermissionAllow}
	})
	resp := s.dispatchPermission(context.Background(), PermissionRequest{ToolName: "bash"})
	if resp.Decision != PermissionAllow {
		t.Fatalf("decision = %s, want allow", resp.Decision)
	}
}

func TestSession_DispatchHooksMergesInRegistrationOrder(t *testing.T) {
	s := newTestSession()
	s.RegisterHooks(HookPreToolUse, func(context.Context, HookInput) HookResult {
		return HookResult{AdditionalContext: "a"}
	})
	s.RegisterHooks(HookPreToolUse, func(context.Context, HookInput) HookResult {
		return HookResult{AdditionalContext: "b"}
	})

	res := s.dispatchHooks(context.Background(), HookPreToolUse, HookInput{Kind: HookPreToolUse})
	if res.AdditionalContext != "a\nb" {
		t.Fatalf("AdditionalContext = %q, want %q", res.AdditionalContext, "a\nb")
	}
}

func TestSession_IngestUpdatesCachedState(t *testing.T) {
	s := newTestSession()
	s.ingest(ModelChange{Model: "gpt-5"})
	if s.Model() != "gpt-5" {
		t.Fatalf("Model() = %q", s.Model())
	}
	s.ingest(PlanChanged{Plan: "step 1"})
	if s.Plan() != "step 1" {
		t.Fatalf("Plan() = %q", s.Plan())
	}
}

func TestSession_CloseDueToTransportIsIdempotentAndClosesEventsChannel(t *testing.T) {
	s := newTestSession()
	s.client.sessions = map[string]*Session{s.sessionID: s}

	s.closeDueToTransport(nil)
	s.closeDueToTransport(nil) // must not panic on double-close

	if !s.lifecycle.destroyed() {
		t.Fatal("expected session to be destroyed")
	}
	if _, ok := <-s.events; ok {
		t.Fatal("events channel should be closed")
	}
}
