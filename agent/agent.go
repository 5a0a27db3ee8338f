// Package agent implements the chat agents for each supported LLM provider
// behind one interface. Each agent streams a reply for a conversation
// history; when tool servers are connected the agent runs the shared
// tool-use loop, feeding tool results back to the model until it produces a
// final text answer.
package agent

import (
	"context"
	"errors"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"aichat/model"
)

// StreamFunc receives text fragments as the model produces them. Fragments
// concatenated in order equal the final reply text for that turn.
type StreamFunc func(fragment string)

// Agent is a chat agent bound to one model. Both request methods run the
// full tool-use loop and return the final reply text. Transport failures are
// folded into the returned text so the conversation survives them; a non-nil
// error means the request could not be attempted at all (misconfiguration)
// or was cancelled. Streamable reports whether RequestStreaming delivers
// incremental fragments; callers fall back to Request when it is false.
type Agent interface {
	Model() string
	Streamable() bool
	Request(ctx context.Context, messages []model.Message) (string, error)
	RequestStreaming(ctx context.Context, messages []model.Message, onFragment StreamFunc) (string, error)
}

// ToolRunner is the slice of the tool connector the agents need. Satisfied
// by *mcp.Connector.
type ToolRunner interface {
	Tools() []mcptypes.Tool
	HasTools() bool
	CallTool(ctx context.Context, qualifiedName string, args map[string]any, callID string) model.ToolCallResult
}

// ErrImageUnsupported is returned when a conversation contains image content
// and the selected model cannot accept images.
var ErrImageUnsupported = errors.New("model does not support image input")

// noTools is used when no tool connector is wired in.
type noTools struct{}

func (noTools) Tools() []mcptypes.Tool { return nil }
func (noTools) HasTools() bool         { return false }
func (noTools) CallTool(ctx context.Context, qualifiedName string, args map[string]any, callID string) model.ToolCallResult {
	return model.ErrorResult(callID, "Error: no tool servers connected")
}

func orNoTools(tools ToolRunner) ToolRunner {
	if tools == nil {
		return noTools{}
	}
	return tools
}

func hasImageContent(messages []model.Message) bool {
	for _, msg := range messages {
		if msg.ContentType.IsImage() {
			return true
		}
	}
	return false
}
