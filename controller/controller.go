// Package controller orchestrates chat turns: it guards when an agent may
// run, feeds it the stored history, and persists what comes back.
package controller

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"aichat/agent"
	globalconfig "aichat/config"
	"aichat/model"
)

// MessageStore is the slice of the storage layer the controller needs.
// Satisfied by *storage.Store.
type MessageStore interface {
	InsertMessage(msg model.Message) error
	MessagesByChatID(chatID string) ([]model.Message, error)
}

// AgentSource resolves model names to agents. Satisfied by *agent.Factory.
type AgentSource interface {
	Agent(modelName string) (agent.Agent, error)
}

// Listener receives chat events as they happen. Fragments stream in during
// an agent turn; OnMessage fires once per persisted message. Implementations
// must not block.
type Listener interface {
	OnFragment(chatID, fragment string)
	OnMessage(msg model.Message)
}

// Controller coordinates one user's chats. Methods are safe to call from
// the UI goroutine; agent turns block until the reply is complete.
type Controller struct {
	store    MessageStore
	agents   AgentSource
	listener Listener
}

func New(store MessageStore, agents AgentSource, listener Listener) *Controller {
	return &Controller{store: store, agents: agents, listener: listener}
}

// SubmitUserMessage persists a user-typed message. Blank input is dropped
// without error.
func (c *Controller) SubmitUserMessage(chatID, text string) (*model.Message, error) {
	msg := model.NewUserMessage(chatID, text)
	if msg.IsBlank() {
		return nil, nil
	}

	if err := c.store.InsertMessage(msg); err != nil {
		return nil, fmt.Errorf("failed to persist user message: %w", err)
	}
	c.notify(msg)
	return &msg, nil
}

// RequestResponse runs one agent turn for a chat. It is a no-op (nil, nil)
// unless the newest stored message was typed by the user and is non-blank;
// that guard is what keeps an agent from replying to itself or to file
// attachments.
func (c *Controller) RequestResponse(ctx context.Context, chatID, modelName string) (*model.Message, error) {
	history, err := c.store.MessagesByChatID(chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}

	if len(history) == 0 {
		return nil, nil
	}
	last := history[len(history)-1]
	if !last.IsUserMessage() || last.IsBlank() {
		if globalconfig.DebugLog != nil {
			globalconfig.DebugLog.Printf("[Controller] Skipping agent turn for chat %s: last message not a user prompt", chatID)
		}
		return nil, nil
	}

	a, err := c.agents.Agent(modelName)
	if err != nil {
		return nil, err
	}

	var text string
	if a.Streamable() {
		text, err = a.RequestStreaming(ctx, history, func(fragment string) {
			if c.listener != nil {
				c.listener.OnFragment(chatID, fragment)
			}
		})
	} else {
		text, err = a.Request(ctx, history)
	}
	if err != nil {
		return nil, err
	}

	reply := model.NewAgentMessage(chatID, text, model.AgentRole(a.Model()))
	if err := c.store.InsertMessage(reply); err != nil {
		return nil, fmt.Errorf("failed to persist agent message: %w", err)
	}
	c.notify(reply)
	return &reply, nil
}

// AttachFile ingests a file into the chat as an app-authored message. Images
// are stored base64-encoded, recognized text formats travel as-is; anything
// else is rejected.
func (c *Controller) AttachFile(chatID, path string) (*model.Message, error) {
	contentType, err := contentTypeForFile(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	systemContent := string(data)
	if contentType.IsImage() {
		systemContent = base64.StdEncoding.EncodeToString(data)
	}

	name := filepath.Base(path)
	msg := model.NewFileMessage(chatID, fmt.Sprintf("File Uploaded: %s", name), systemContent, contentType)
	if err := c.store.InsertMessage(msg); err != nil {
		return nil, fmt.Errorf("failed to persist file message: %w", err)
	}
	c.notify(msg)
	return &msg, nil
}

func (c *Controller) notify(msg model.Message) {
	if c.listener != nil {
		c.listener.OnMessage(msg)
	}
}

func contentTypeForFile(path string) (model.ContentType, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".png":
		return model.ContentTypePNG, nil
	case ".jpg", ".jpeg":
		return model.ContentTypeJPEG, nil
	case ".txt", ".md", ".csv", ".json", ".log":
		return model.ContentTypeText, nil
	default:
		return model.ContentTypeUnknown, fmt.Errorf("unsupported file type %q", ext)
	}
}
