package copilot

import (
	"encoding/json"
	"testing"
)

func TestParseEvent_SessionPrefixAndBareBothDispatchToSessionStart(t *testing.T) {
	prefixed := ParseEvent(json.RawMessage(`{"type":"session.created","sessionId":"s1"}`))
	bare := ParseEvent(json.RawMessage(`{"type":"created","sessionId":"s1"}`))

	if _, ok := prefixed.(SessionStart); !ok {
		t.Fatalf("prefixed type = %T, want SessionStart", prefixed)
	}
	if _, ok := bare.(SessionStart); !ok {
		t.Fatalf("bare type = %T, want SessionStart", bare)
	}
}

func TestParseEvent_UnknownTypePreservesRawPayload(t *testing.T) {
	raw := json.RawMessage(`{"type":"totallyNewThing","sessionId":"s1","weird":42}`)
	e := ParseEvent(raw)

	u, ok := e.(Unknown)
	if !ok {
		t.Fatalf("type = %T, want Unknown", e)
	}
	if u.Meta().Type != "totallyNewThing" {
		t.Fatalf("Type = %q", u.Meta().Type)
	}
	if string(u.Raw) != string(raw) {
		t.Fatalf("Raw payload not preserved: got %s want %s", u.Raw, raw)
	}
}

func TestParseEvent_AssistantMessageCarriesContent(t *testing.T) {
	raw := json.RawMessage(`{"type":"assistantMessage","sessionId":"s1","content":"4"}`)
	e := ParseEvent(raw)

	am, ok := e.(AssistantMessage)
	if !ok {
		t.Fatalf("type = %T, want AssistantMessage", e)
	}
	if am.Content != "4" {
		t.Fatalf("Content = %q, want %q", am.Content, "4")
	}
	if am.Meta().SessionID != "s1" {
		t.Fatalf("SessionID = %q", am.Meta().SessionID)
	}
}

func TestParseEvent_MalformedJSONBecomesUnknown(t *testing.T) {
	e := ParseEvent(json.RawMessage(`not json`))
	if _, ok := e.(Unknown); !ok {
		t.Fatalf("type = %T, want Unknown", e)
	}
}

func TestMergeHookResults_LastWriterWinsScalarsConcatenatesContext(t *testing.T) {
	results := []HookResult{
		{AdditionalContext: "first"},
		{ModifiedPrompt: "edited once", AdditionalContext: "second"},
		{ModifiedPrompt: "edited twice"},
	}
	merged := mergeHookResults(results)

	if merged.ModifiedPrompt != "edited twice" {
		t.Fatalf("ModifiedPrompt = %q, want last writer", merged.ModifiedPrompt)
	}
	if merged.AdditionalContext != "first\nsecond" {
		t.Fatalf("AdditionalContext = %q", merged.AdditionalContext)
	}
}

func TestMergeHookResults_BlockLatches(t *testing.T) {
	merged := mergeHookResults([]HookResult{
		{Block: true, BlockReason: "policy"},
		{},
	})
	if !merged.Block || merged.BlockReason != "policy" {
		t.Fatalf("expected block to latch with reason, got %+v", merged)
	}
}

func TestMergeHookResults_PermissionDecisionLastWriterWins(t *testing.T) {
	merged := mergeHookResults([]HookResult{
		{PermissionDecision: PermissionDeny},
		{},
		{PermissionDecision: PermissionAllow},
	})
	if merged.PermissionDecision != PermissionAllow {
		t.Fatalf("PermissionDecision = %q, want last writer %q", merged.PermissionDecision, PermissionAllow)
	}
}

func TestMergeHookResults_SuppressOutputLatches(t *testing.T) {
	merged := mergeHookResults([]HookResult{
		{},
		{SuppressOutput: true},
		{},
	})
	if !merged.SuppressOutput {
		t.Fatal("expected SuppressOutput to latch true once any handler sets it")
	}
}
