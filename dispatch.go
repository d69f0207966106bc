package copilot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/copilot-cli/acp-sdk-go/internal/wire"
)

// registerServerMethods wires every server→client request/notification
// method to a dispatcher that locates the addressed Session and forwards
// to its registries (§4.3 "inbound dispatch", §6 "server→client requests").
// A request for a session this Client has no record of (already destroyed,
// or belonging to a different Client) is answered with a default-deny /
// not-found response rather than left unanswered.
func (c *Client) registerServerMethods() {
	c.conn.OnMethod(wire.MethodToolExecute, c.handleToolExecute)
	c.conn.OnMethod(wire.MethodPermissionRequest, c.handlePermissionRequest)
	c.conn.OnMethod(wire.MethodUserInputRequest, c.handleUserInputRequest)
	c.conn.OnMethod(wire.MethodHookPreToolUse, c.hookHandlerFor(HookPreToolUse))
	c.conn.OnMethod(wire.MethodHookPostToolUse, c.hookHandlerFor(HookPostToolUse))
	c.conn.OnMethod(wire.MethodHookUserPrompt, c.hookHandlerFor(HookUserPromptSubmitted))
	c.conn.OnMethod(wire.MethodHookSessionStart, c.hookHandlerFor(HookSessionStart))
	c.conn.OnMethod(wire.MethodHookSessionEnd, c.hookHandlerFor(HookSessionEnd))
	c.conn.OnMethod(wire.MethodHookErrorOccurred, c.hookHandlerFor(HookErrorOccurred))
	c.conn.OnNotification(wire.MethodSessionEvent, c.handleSessionEvent)
}

func (c *Client) handleToolExecute(ctx context.Context, raw json.RawMessage) (any, error) {
	var p wire.ToolExecuteParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("tool.execute: decode params: %w", err)
	}
	sess, ok := c.sessionByID(p.SessionID)
	if !ok {
		return ToolFailure("unknown session").wire(), nil
	}
	return sess.dispatchTool(ctx, p).wire(), nil
}

func (c *Client) handlePermissionRequest(ctx context.Context, raw json.RawMessage) (any, error) {
	var p wire.PermissionRequestParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("permission.request: decode params: %w", err)
	}
	sess, ok := c.sessionByID(p.SessionID)
	if !ok {
		return defaultDenyPermission(ctx, PermissionRequest{}).wire(), nil
	}
	req := PermissionRequest{Kind: p.Kind, ToolCallID: p.ToolCallID, ToolName: p.ToolName, Arguments: p.Arguments, Reason: p.Reason}
	return sess.dispatchPermission(ctx, req).wire(), nil
}

func (c *Client) handleUserInputRequest(ctx context.Context, raw json.RawMessage) (any, error) {
	var p wire.UserInputRequestParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("userInput.request: decode params: %w", err)
	}
	sess, ok := c.sessionByID(p.SessionID)
	if !ok {
		return userInputResponseWire{Cancelled: true}, nil
	}
	req := UserInputRequest{Prompt: p.Prompt, Kind: p.Kind, Options: p.Options}
	value, err := sess.dispatchUserInput(ctx, req)
	if err != nil {
		return userInputResponseWire{Cancelled: true}, nil
	}
	return userInputResponseWire{Value: value}, nil
}

func (c *Client) hookHandlerFor(kind HookKind) func(context.Context, json.RawMessage) (any, error) {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p wire.HookParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("hook.%s: decode params: %w", kind, err)
		}
		sess, ok := c.sessionByID(p.SessionID)
		if !ok {
			return wire.HookResultWire{}, nil
		}
		in := HookInput{
			Kind: kind, Timestamp: p.Timestamp, Cwd: p.Cwd,
			ToolName: p.ToolName, ToolArgs: p.ToolArgs,
			Prompt: p.Prompt, ErrorMessage: p.Error,
		}
		res := sess.dispatchHooks(ctx, kind, in)
		return wire.HookResultWire{
			Block: res.Block, BlockReason: res.BlockReason,
			ModifiedArgs: res.ModifiedArgs, ModifiedResult: res.ModifiedResult,
			ModifiedPrompt: res.ModifiedPrompt, AdditionalContext: res.AdditionalContext,
			SuppressOutput: res.SuppressOutput, PermissionDecision: string(res.PermissionDecision),
		}, nil
	}
}

// handleSessionEvent routes one session.event notification to its Session's
// broadcast sink (§6, §4.5 "single broadcast event sink; multiple
// subscribers receive the same ordered stream").
func (c *Client) handleSessionEvent(raw json.RawMessage) {
	var env wire.SessionEventParams
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.Error("session.event: decode envelope", "error", err)
		return
	}
	sess, ok := c.sessionByID(env.SessionID)
	if !ok {
		return // event for a session this Client no longer tracks; nothing to deliver to
	}
	event := ParseEvent(raw)
	sess.ingest(event)
}
