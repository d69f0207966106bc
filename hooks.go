package copilot

import "context"

// HookKind identifies the lifecycle point a hook observes (§6).
type HookKind string

const (
	HookPreToolUse          HookKind = "preToolUse"
	HookPostToolUse         HookKind = "postToolUse"
	HookUserPromptSubmitted HookKind = "userPromptSubmitted"
	HookSessionStart        HookKind = "sessionStart"
	HookSessionEnd          HookKind = "sessionEnd"
	HookErrorOccurred       HookKind = "errorOccurred"
)

// HookInput carries the event payload passed to a hook, common across all
// kinds plus kind-specific fields populated as applicable (§6: "hook inputs
// carry timestamp/cwd").
type HookInput struct {
	Kind      HookKind
	Timestamp string
	Cwd       string

	ToolName string
	ToolArgs map[string]any

	Prompt string

	ErrorMessage string
}

// HookResult is what a hook handler may return to influence the agent's
// behavior. Fields are merged across multiple handlers registered for the
// same kind: scalars are last-writer-wins, AdditionalContext is
// concatenated in registration order (§6 "merge semantics"). A handler may
// also set PermissionDecision to resolve a pending permission check inline
// (§4.5); when more than one handler sets it, the last registered handler's
// decision wins, consistent with every other scalar field here (§9).
type HookResult struct {
	Block              bool
	BlockReason        string
	ModifiedArgs       map[string]any
	ModifiedResult     map[string]any
	ModifiedPrompt     string
	AdditionalContext  string
	SuppressOutput     bool
	PermissionDecision PermissionDecision
}

// HookHandler observes or influences one hook invocation.
type HookHandler func(ctx context.Context, in HookInput) HookResult

// mergeHookResults folds an ordered list of handler results per the §6
// merge rule: later non-zero scalars win, AdditionalContext accumulates.
func mergeHookResults(results []HookResult) HookResult {
	var merged HookResult
	var ctxParts []string
	for _, r := range results {
		if r.Block {
			merged.Block = true
			merged.BlockReason = r.BlockReason
		}
		if r.ModifiedArgs != nil {
			merged.ModifiedArgs = r.ModifiedArgs
		}
		if r.ModifiedResult != nil {
			merged.ModifiedResult = r.ModifiedResult
		}
		if r.ModifiedPrompt != "" {
			merged.ModifiedPrompt = r.ModifiedPrompt
		}
		if r.AdditionalContext != "" {
			ctxParts = append(ctxParts, r.AdditionalContext)
		}
		if r.SuppressOutput {
			merged.SuppressOutput = true
		}
		if r.PermissionDecision != "" {
			merged.PermissionDecision = r.PermissionDecision
		}
	}
	for i, part := range ctxParts {
		if i > 0 {
			merged.AdditionalContext += "\n"
		}
		merged.AdditionalContext += part
	}
	return merged
}
