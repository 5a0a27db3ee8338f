package agent

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/genai"

	globalconfig "aichat/config"
	"aichat/mcp"
	"aichat/model"
)

// GeminiAgent talks to Google's Gemini models over the GenAI API with
// streaming function calling.
type GeminiAgent struct {
	model  string
	tools  ToolRunner
	system string
	apiKey string

	mu     sync.Mutex
	client *genai.Client
}

// NewGeminiAgent creates an agent for one Gemini model. The API key comes
// from GEMINI_API_KEY. The underlying client is created lazily on the first
// request since its construction needs a context.
func NewGeminiAgent(modelName string, tools ToolRunner, system string) (*GeminiAgent, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required for model %s", modelName)
	}

	return &GeminiAgent{
		model:  modelName,
		tools:  orNoTools(tools),
		system: system,
		apiKey: apiKey,
	}, nil
}

func (a *GeminiAgent) Model() string {
	return a.model
}

func (a *GeminiAgent) Streamable() bool {
	return true
}

func (a *GeminiAgent) getClient(ctx context.Context) (*genai.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		return a.client, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  a.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	a.client = client
	return client, nil
}

func (a *GeminiAgent) Request(ctx context.Context, messages []model.Message) (string, error) {
	return a.RequestStreaming(ctx, messages, nil)
}

func (a *GeminiAgent) RequestStreaming(ctx context.Context, messages []model.Message, onFragment StreamFunc) (string, error) {
	client, err := a.getClient(ctx)
	if err != nil {
		return "", err
	}

	conv := &geminiConversation{
		agent:    a,
		client:   client,
		contents: convertToGeminiContents(messages),
	}
	return runToolLoop(ctx, conv, a.tools, onFragment)
}

type geminiConversation struct {
	agent    *GeminiAgent
	client   *genai.Client
	contents []*genai.Content
}

func (c *geminiConversation) send(ctx context.Context, onFragment StreamFunc) (turn, error) {
	// One timeout per provider round, not per conversation.
	ctx, cancel := context.WithTimeout(ctx, globalconfig.RequestTimeout)
	defer cancel()

	cfg := &genai.GenerateContentConfig{}
	if c.agent.system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(c.agent.system, genai.RoleUser)
	}
	if c.agent.tools.HasTools() {
		cfg.Tools = mcp.ToGeminiFormat(c.agent.tools.Tools())
	}

	var text strings.Builder
	var calls []model.ToolCallRequest
	var modelParts []*genai.Part
	var stopReason string

	for chunk, err := range c.client.Models.GenerateContentStream(ctx, c.agent.model, c.contents, cfg) {
		if err != nil {
			return turn{}, err
		}

		for _, cand := range chunk.Candidates {
			if cand.FinishReason != "" {
				stopReason = string(cand.FinishReason)
			}
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if part.Text != "" {
					text.WriteString(part.Text)
					if onFragment != nil {
						onFragment(part.Text)
					}
					modelParts = append(modelParts, genai.NewPartFromText(part.Text))
				}
				if part.FunctionCall != nil {
					// Gemini does not assign call IDs, so we mint one to
					// correlate the result.
					id := part.FunctionCall.ID
					if id == "" {
						id = uuid.New().String()
					}
					calls = append(calls, model.ToolCallRequest{
						ID:        id,
						Name:      part.FunctionCall.Name,
						Arguments: part.FunctionCall.Args,
					})
					modelParts = append(modelParts, &genai.Part{FunctionCall: part.FunctionCall})
				}
			}
		}
	}

	if len(modelParts) > 0 {
		c.contents = append(c.contents, &genai.Content{Role: genai.RoleModel, Parts: modelParts})
	}

	return turn{
		text:       text.String(),
		toolCalls:  calls,
		stopReason: stopReason,
	}, nil
}

func (c *geminiConversation) addToolResults(calls []model.ToolCallRequest, results []model.ToolCallResult) {
	parts := make([]*genai.Part, 0, len(results))
	for i, result := range results {
		name := ""
		if i < len(calls) {
			name = calls[i].Name
		}
		response := map[string]any{"output": result.Content}
		if result.IsError {
			response = map[string]any{"error": result.Content}
		}
		parts = append(parts, genai.NewPartFromFunctionResponse(name, response))
	}
	c.contents = append(c.contents, &genai.Content{Role: genai.RoleUser, Parts: parts})
}

// convertToGeminiContents maps the stored history to Gemini's format. Image
// payloads are decoded from base64 into inline data parts.
func convertToGeminiContents(messages []model.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))

	for _, msg := range messages {
		switch {
		case msg.IsAssistantMessage():
			if msg.IsBlank() {
				continue
			}
			contents = append(contents, genai.NewContentFromText(msg.SystemContent, genai.RoleModel))

		case msg.ContentType.IsImage():
			data, err := base64.StdEncoding.DecodeString(msg.SystemContent)
			if err != nil {
				if globalconfig.DebugLog != nil {
					globalconfig.DebugLog.Printf("[Agent] Skipping undecodable image message %s: %v", msg.ID, err)
				}
				continue
			}
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{genai.NewPartFromBytes(data, msg.ContentType.MIMEType())},
			})

		default:
			contents = append(contents, genai.NewContentFromText(msg.SystemContent, genai.RoleUser))
		}
	}

	return contents
}
