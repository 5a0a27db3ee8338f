package agent

import (
	"context"
	"fmt"

	"aichat/model"
)

// DummyAgent never contacts a provider. It echoes the last user message,
// which makes the full request path exercisable without API keys.
type DummyAgent struct{}

func NewDummyAgent() *DummyAgent {
	return &DummyAgent{}
}

func (a *DummyAgent) Model() string {
	return "dummy"
}

// Streamable is false: the dummy reply arrives in one piece.
func (a *DummyAgent) Streamable() bool {
	return false
}

func (a *DummyAgent) Request(ctx context.Context, messages []model.Message) (string, error) {
	return a.RequestStreaming(ctx, messages, nil)
}

func (a *DummyAgent) RequestStreaming(ctx context.Context, messages []model.Message, onFragment StreamFunc) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	text := "Hello from the dummy model."
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].IsUserMessage() && !messages[i].IsBlank() {
			text = fmt.Sprintf("You said: %s", messages[i].DisplayContent)
			break
		}
	}

	if onFragment != nil {
		onFragment(text)
	}
	return text, nil
}
