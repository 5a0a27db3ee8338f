package agent

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"aichat/model"
)

const defaultDeepSeekBaseURL = "https://api.deepseek.com"

// DeepSeekAgent talks to DeepSeek's OpenAI-compatible API. It reuses the
// OpenAI conversation wiring under a different base URL. DeepSeek models are
// text-only, so conversations carrying image content are rejected before any
// request goes out.
type DeepSeekAgent struct {
	client openai.Client
	model  string
	tools  ToolRunner
	system string
}

// NewDeepSeekAgent creates an agent for one DeepSeek model. The API key
// comes from DEEPSEEK_API_KEY; the base URL can be overridden in settings.
func NewDeepSeekAgent(modelName, baseURL string, tools ToolRunner, system string) (*DeepSeekAgent, error) {
	apiKey := os.Getenv("DEEPSEEK_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("DEEPSEEK_API_KEY is required for model %s", modelName)
	}
	if baseURL == "" {
		baseURL = defaultDeepSeekBaseURL
	}

	return &DeepSeekAgent{
		client: openai.NewClient(
			option.WithBaseURL(baseURL),
			option.WithAPIKey(apiKey),
		),
		model:  modelName,
		tools:  orNoTools(tools),
		system: system,
	}, nil
}

func (a *DeepSeekAgent) Model() string {
	return a.model
}

func (a *DeepSeekAgent) Streamable() bool {
	return true
}

func (a *DeepSeekAgent) Request(ctx context.Context, messages []model.Message) (string, error) {
	return a.RequestStreaming(ctx, messages, nil)
}

func (a *DeepSeekAgent) RequestStreaming(ctx context.Context, messages []model.Message, onFragment StreamFunc) (string, error) {
	if hasImageContent(messages) {
		return "", fmt.Errorf("%w: %s", ErrImageUnsupported, a.model)
	}

	conv := &openaiConversation{
		client:   a.client,
		model:    a.model,
		tools:    a.tools,
		messages: convertToOpenAIMessages(messages, a.system),
	}
	return runToolLoop(ctx, conv, a.tools, onFragment)
}
