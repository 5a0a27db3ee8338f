package agent

import (
	"context"
	"errors"
	"testing"

	"aichat/model"
)

func TestDeepSeekRejectsImages(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "test-key")

	agent, err := NewDeepSeekAgent("deepseek-chat", "", nil, "")
	if err != nil {
		t.Fatalf("NewDeepSeekAgent failed: %v", err)
	}

	messages := []model.Message{
		model.NewUserMessage("chat-1", "what is in this picture?"),
		model.NewFileMessage("chat-1", "photo.png", "aGVsbG8=", model.ContentTypePNG),
	}

	_, err = agent.Request(context.Background(), messages)
	if !errors.Is(err, ErrImageUnsupported) {
		t.Fatalf("expected ErrImageUnsupported, got %v", err)
	}
}
