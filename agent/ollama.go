package agent

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/ollama/ollama/api"

	globalconfig "aichat/config"
	"aichat/mcp"
	"aichat/model"
)

// OllamaAgent talks to a local Ollama server. Any model pulled into Ollama
// can be used; which ones appear in the catalog is driven by settings.
type OllamaAgent struct {
	client *api.Client
	model  string
	tools  ToolRunner
	system string
}

// NewOllamaAgent creates an agent for one local model served by Ollama at
// the configured host.
func NewOllamaAgent(modelName, host string, tools ToolRunner, system string) (*OllamaAgent, error) {
	if host == "" {
		host = "http://localhost:11434"
	}
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama host %q: %w", host, err)
	}

	return &OllamaAgent{
		client: api.NewClient(base, http.DefaultClient),
		model:  modelName,
		tools:  orNoTools(tools),
		system: system,
	}, nil
}

func (a *OllamaAgent) Model() string {
	return a.model
}

func (a *OllamaAgent) Streamable() bool {
	return true
}

func (a *OllamaAgent) Request(ctx context.Context, messages []model.Message) (string, error) {
	return a.RequestStreaming(ctx, messages, nil)
}

func (a *OllamaAgent) RequestStreaming(ctx context.Context, messages []model.Message, onFragment StreamFunc) (string, error) {
	conv := &ollamaConversation{
		agent:    a,
		messages: convertToOllamaMessages(messages, a.system),
	}
	return runToolLoop(ctx, conv, a.tools, onFragment)
}

type ollamaConversation struct {
	agent    *OllamaAgent
	messages []api.Message
}

func (c *ollamaConversation) send(ctx context.Context, onFragment StreamFunc) (turn, error) {
	// One timeout per provider round, not per conversation.
	ctx, cancel := context.WithTimeout(ctx, globalconfig.RequestTimeout)
	defer cancel()

	streaming := true
	req := &api.ChatRequest{
		Model:    c.agent.model,
		Messages: c.messages,
		Stream:   &streaming,
	}
	if c.agent.tools.HasTools() {
		req.Tools = mcp.ToOllamaFormat(c.agent.tools.Tools())
	}

	var text strings.Builder
	var calls []model.ToolCallRequest
	var rawCalls []api.ToolCall
	var stopReason string

	err := c.agent.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		if resp.Message.Content != "" {
			text.WriteString(resp.Message.Content)
			if onFragment != nil {
				onFragment(resp.Message.Content)
			}
		}
		for _, toolCall := range resp.Message.ToolCalls {
			// Ollama delivers complete tool calls without IDs.
			rawCalls = append(rawCalls, toolCall)
			calls = append(calls, model.ToolCallRequest{
				ID:        uuid.New().String(),
				Name:      toolCall.Function.Name,
				Arguments: map[string]any(toolCall.Function.Arguments),
			})
		}
		if resp.Done {
			stopReason = resp.DoneReason
		}
		return nil
	})
	if err != nil {
		return turn{}, err
	}

	c.messages = append(c.messages, api.Message{
		Role:      "assistant",
		Content:   text.String(),
		ToolCalls: rawCalls,
	})

	return turn{
		text:       text.String(),
		toolCalls:  calls,
		stopReason: stopReason,
	}, nil
}

func (c *ollamaConversation) addToolResults(calls []model.ToolCallRequest, results []model.ToolCallResult) {
	for _, result := range results {
		c.messages = append(c.messages, api.Message{Role: "tool", Content: result.Content})
	}
}

// convertToOllamaMessages maps the stored history to Ollama's format. Image
// payloads are decoded from base64 into raw image bytes.
func convertToOllamaMessages(messages []model.Message, system string) []api.Message {
	result := make([]api.Message, 0, len(messages)+1)

	if system != "" {
		result = append(result, api.Message{Role: "system", Content: system})
	}

	for _, msg := range messages {
		switch {
		case msg.IsAssistantMessage():
			if msg.IsBlank() {
				continue
			}
			result = append(result, api.Message{Role: "assistant", Content: msg.SystemContent})

		case msg.ContentType.IsImage():
			data, err := base64.StdEncoding.DecodeString(msg.SystemContent)
			if err != nil {
				if globalconfig.DebugLog != nil {
					globalconfig.DebugLog.Printf("[Agent] Skipping undecodable image message %s: %v", msg.ID, err)
				}
				continue
			}
			result = append(result, api.Message{
				Role:   "user",
				Images: []api.ImageData{data},
			})

		default:
			result = append(result, api.Message{Role: "user", Content: msg.SystemContent})
		}
	}

	return result
}
