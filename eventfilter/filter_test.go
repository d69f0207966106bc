package eventfilter

import (
	"context"
	"testing"
	"time"

	"github.com/copilot-cli/acp-sdk-go"
)

func TestNoDeltas_DropsDeltaVariants(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan copilot.Event, 4)
	in <- copilot.AssistantMessageDelta{Delta: "he"}
	in <- copilot.AssistantMessage{Content: "hello"}
	close(in)

	out := NoDeltas(ctx, in)

	select {
	case e := <-out:
		if _, ok := e.(copilot.AssistantMessage); !ok {
			t.Fatalf("got %T, want AssistantMessage (delta should have been dropped)", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for filtered event")
	}

	if _, ok := <-out; ok {
		t.Fatal("expected channel to close after source closes")
	}
}

func TestLifecycle_PassesOnlyLifecycleEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan copilot.Event, 4)
	in <- copilot.AssistantMessage{Content: "noise"}
	in <- copilot.SessionIdle{}
	close(in)

	out := Lifecycle(ctx, in)

	select {
	case e := <-out:
		if _, ok := e.(copilot.SessionIdle); !ok {
			t.Fatalf("got %T, want SessionIdle", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for lifecycle event")
	}
}

func TestByType_FiltersByNormalizedType(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan copilot.Event, 4)
	in <- copilot.SessionStart{EventMeta: copilot.EventMeta{Type: "session.created"}}
	in <- copilot.SessionIdle{EventMeta: copilot.EventMeta{Type: "idle"}}
	close(in)

	out := ByType(ctx, in, "created")

	select {
	case e := <-out:
		if _, ok := e.(copilot.SessionStart); !ok {
			t.Fatalf("got %T, want SessionStart", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}

	if _, ok := <-out; ok {
		t.Fatal("expected only one matching event before close")
	}
}
