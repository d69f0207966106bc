// Package eventfilter provides composable channel middleware for filtering
// session event streams. Consumers wrap Session.Events() with these
// functions to select the granularity they need without each call site
// re-implementing its own select loop.
package eventfilter

import (
	"context"
	"strings"

	"github.com/copilot-cli/acp-sdk-go"
)

// ByType returns a channel that only passes events whose Meta().Type
// (normalized, "session." prefix stripped) is in types. Spawns a goroutine
// that exits when ctx is cancelled or ch is closed; the returned channel is
// closed when the goroutine exits.
func ByType(ctx context.Context, ch <-chan copilot.Event, types ...string) <-chan copilot.Event {
	allowed := make(map[string]struct{}, len(types))
	for _, t := range types {
		allowed[strings.TrimPrefix(t, "session.")] = struct{}{}
	}
	return pipe(ctx, ch, func(e copilot.Event) bool {
		_, ok := allowed[strings.TrimPrefix(e.Meta().Type, "session.")]
		return ok
	})
}

// NoDeltas drops every delta/streaming event type, passing only complete
// messages and non-message events. The dropped set is the one IsDelta
// lists: the three "Delta" types plus ToolExecutionPartialResult and
// ToolExecutionProgress. This is implemented by type switch rather than a
// string suffix since event Type strings don't share a uniform naming
// convention the way agentrun's MessageType did.
func NoDeltas(ctx context.Context, ch <-chan copilot.Event) <-chan copilot.Event {
	return pipe(ctx, ch, func(e copilot.Event) bool {
		return !IsDelta(e)
	})
}

// IsDelta reports whether e is a streaming/partial variant that a
// non-streaming consumer would normally want to skip.
func IsDelta(e copilot.Event) bool {
	switch e.(type) {
	case copilot.AssistantMessageDelta, copilot.AssistantStreamingDelta, copilot.ReasoningDelta,
		copilot.ToolExecutionPartialResult, copilot.ToolExecutionProgress:
		return true
	default:
		return false
	}
}

// Lifecycle returns a channel passing only session-lifecycle events
// (SessionStart/Resume/Idle/Shutdown/Error/Info/Warning/TaskComplete), for
// Session.OnLifecycleEvent-style consumers.
func Lifecycle(ctx context.Context, ch <-chan copilot.Event) <-chan copilot.Event {
	return pipe(ctx, ch, func(e copilot.Event) bool {
		switch e.(type) {
		case copilot.SessionStart, copilot.SessionResume, copilot.SessionIdle, copilot.SessionShutdown,
			copilot.SessionError, copilot.SessionInfo, copilot.SessionWarning, copilot.TaskComplete:
			return true
		default:
			return false
		}
	})
}

// pipe spawns a goroutine that reads from ch, passes events matching the
// predicate to the returned channel, and closes it when ch closes or ctx
// is cancelled. Callers must either drain the returned channel or cancel
// ctx to avoid goroutine leaks.
func pipe(ctx context.Context, ch <-chan copilot.Event, accept func(copilot.Event) bool) <-chan copilot.Event {
	out := make(chan copilot.Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-ch:
				if !ok {
					return
				}
				if accept(e) && !trySend(ctx, out, e) {
					return
				}
			}
		}
	}()
	return out
}

func trySend(ctx context.Context, out chan<- copilot.Event, e copilot.Event) bool {
	select {
	case out <- e:
		return true
	case <-ctx.Done():
		return false
	}
}
