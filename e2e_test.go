package copilot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestE2E_DestroyThenOperationsFail exercises the full Created->Running->
// Destroyed path against the fake in-process agent, using testify for the
// higher-level assertions (ambient stack: plain testing for codec/conn unit
// tests, testify for scenario-level flows — see SPEC_FULL.md).
func TestE2E_DestroyThenOperationsFail(t *testing.T) {
	c, agent := newPipePair(t)
	startWithPing(t, c, agent)
	defer c.Stop()

	createDone := make(chan error, 1)
	var sess *Session
	go func() {
		s, err := c.CreateSession(context.Background(), SessionConfig{})
		sess = s
		createDone <- err
	}()
	createReq := agent.next()
	agent.replyResult(createReq.ID, map[string]any{"sessionId": "sess-e2e"})
	agent.expectSessionStart()
	require.NoError(t, <-createDone)
	require.Equal(t, StateCreated, sess.State())

	agent.notify("session.event", map[string]any{"type": "session.created", "sessionId": "sess-e2e"})

	// Give the broadcast goroutine a beat to apply the lifecycle transition.
	require.Eventually(t, func() bool {
		return sess.State() == StateRunning
	}, 2*time.Second, 10*time.Millisecond)

	destroyDone := make(chan error, 1)
	go func() { destroyDone <- sess.Destroy(context.Background()) }()
	destroyReq := agent.next()
	require.Equal(t, "session.destroy", destroyReq.Method)
	agent.replyResult(destroyReq.ID, nil)
	require.NoError(t, <-destroyDone)

	require.Equal(t, StateDestroyed, sess.State())
	_, err := sess.GetModel(context.Background())
	require.Error(t, err) // Session.call short-circuits with ErrDestroyed; nothing is sent to the agent
}

// TestE2E_TransportCloseUnblocksSendAndWait confirms that a transport going
// away (process exit, socket reset) unblocks any in-flight SendAndWait
// instead of hanging forever (§5, §7).
func TestE2E_TransportCloseUnblocksSendAndWait(t *testing.T) {
	c, agent := newPipePair(t)
	startWithPing(t, c, agent)

	createDone := make(chan error, 1)
	var sess *Session
	go func() {
		s, err := c.CreateSession(context.Background(), SessionConfig{})
		sess = s
		createDone <- err
	}()
	createReq := agent.next()
	agent.replyResult(createReq.ID, map[string]any{"sessionId": "sess-close"})
	agent.expectSessionStart()
	require.NoError(t, <-createDone)

	waitDone := make(chan error, 1)
	go func() {
		_, err := sess.SendAndWait(context.Background(), "hello", SendOptions{})
		waitDone <- err
	}()

	sendReq := agent.next()
	require.Equal(t, "session.sendMessage", sendReq.Method)
	agent.replyResult(sendReq.ID, nil)

	sess.closeDueToTransport(ErrClosed)

	select {
	case <-waitDone:
	case <-time.After(3 * time.Second):
		t.Fatal("SendAndWait did not unblock after transport close")
	}
}
