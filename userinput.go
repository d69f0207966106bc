package copilot

import (
	"context"
	"errors"
)

// UserInputRequest describes a single userInput.request call from the
// agent, asking the client to collect free-form input from a human (§6).
type UserInputRequest struct {
	Prompt  string
	Kind    string
	Options []string
}

// ErrUserInputCancelled is returned by a UserInputHandler to report that
// the human declined to answer, rather than supplying a value (§6
// "response-or-cancellation").
var ErrUserInputCancelled = errors.New("copilot: user input cancelled")

// UserInputHandler collects input for a single UserInputRequest. Returning
// ErrUserInputCancelled reports cancellation to the agent rather than an
// empty answer.
type UserInputHandler func(ctx context.Context, req UserInputRequest) (string, error)

// unregisteredUserInputReason mirrors the permission default-deny behavior:
// a session with no handler reports cancellation, never blocks (§4.5).
const unregisteredUserInputReason = "no user input handler registered for this session"

func defaultCancelUserInput(context.Context, UserInputRequest) (string, error) {
	return "", ErrUserInputCancelled
}

type userInputResponseWire struct {
	Cancelled bool   `json:"cancelled,omitempty"`
	Value     string `json:"value,omitempty"`
}
