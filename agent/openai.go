package agent

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	globalconfig "aichat/config"
	"aichat/mcp"
	"aichat/model"
)

// GPTAgent talks to the OpenAI chat completions API with streaming tool use.
type GPTAgent struct {
	client openai.Client
	model  string
	tools  ToolRunner
	system string
}

// NewGPTAgent creates an agent for one OpenAI model. The API key comes from
// OPENAI_API_KEY.
func NewGPTAgent(modelName string, tools ToolRunner, system string) (*GPTAgent, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required for model %s", modelName)
	}

	return &GPTAgent{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  modelName,
		tools:  orNoTools(tools),
		system: system,
	}, nil
}

func (a *GPTAgent) Model() string {
	return a.model
}

func (a *GPTAgent) Streamable() bool {
	return true
}

func (a *GPTAgent) Request(ctx context.Context, messages []model.Message) (string, error) {
	return a.RequestStreaming(ctx, messages, nil)
}

func (a *GPTAgent) RequestStreaming(ctx context.Context, messages []model.Message, onFragment StreamFunc) (string, error) {
	conv := &openaiConversation{
		client:   a.client,
		model:    a.model,
		tools:    a.tools,
		messages: convertToOpenAIMessages(messages, a.system),
	}
	return runToolLoop(ctx, conv, a.tools, onFragment)
}

// openaiConversation drives the OpenAI wire format. It is shared with the
// DeepSeek agent, which speaks the same API under a different base URL.
type openaiConversation struct {
	client   openai.Client
	model    string
	tools    ToolRunner
	messages []openai.ChatCompletionMessageParamUnion
}

func (c *openaiConversation) send(ctx context.Context, onFragment StreamFunc) (turn, error) {
	// One timeout per provider round, not per conversation.
	ctx, cancel := context.WithTimeout(ctx, globalconfig.RequestTimeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Messages: c.messages,
		Model:    openai.ChatModel(c.model),
	}
	if c.tools.HasTools() {
		params.Tools = mcp.ToOpenAIFormat(c.tools.Tools())
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	acc := openai.ChatCompletionAccumulator{}
	var text strings.Builder

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			text.WriteString(chunk.Choices[0].Delta.Content)
			if onFragment != nil {
				onFragment(chunk.Choices[0].Delta.Content)
			}
		}
	}

	if err := stream.Err(); err != nil {
		return turn{}, err
	}

	if len(acc.Choices) == 0 {
		return turn{text: text.String()}, nil
	}

	choice := acc.Choices[0]

	var calls []model.ToolCallRequest
	for _, toolCall := range choice.Message.ToolCalls {
		calls = append(calls, model.ToolCallRequest{
			ID:        toolCall.ID,
			Name:      toolCall.Function.Name,
			Arguments: parseToolArguments(toolCall.Function.Arguments),
		})
	}

	// Keep the assistant turn (including its tool_calls) in the exchange.
	c.messages = append(c.messages, choice.Message.ToParam())

	return turn{
		text:       text.String(),
		toolCalls:  calls,
		stopReason: choice.FinishReason,
	}, nil
}

func (c *openaiConversation) addToolResults(calls []model.ToolCallRequest, results []model.ToolCallResult) {
	for _, result := range results {
		c.messages = append(c.messages, openai.ToolMessage(result.Content, result.ID))
	}
}

// convertToOpenAIMessages maps the stored history to OpenAI's format. Image
// payloads travel as data-URL image parts.
func convertToOpenAIMessages(messages []model.Message, system string) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)

	if system != "" {
		result = append(result, openai.SystemMessage(system))
	}

	for _, msg := range messages {
		switch {
		case msg.IsAssistantMessage():
			if msg.IsBlank() {
				continue
			}
			result = append(result, openai.AssistantMessage(msg.SystemContent))

		case msg.ContentType.IsImage():
			dataURL := fmt.Sprintf("data:%s;base64,%s", msg.ContentType.MIMEType(), msg.SystemContent)
			result = append(result, openai.UserMessage(
				[]openai.ChatCompletionContentPartUnionParam{
					openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
				},
			))

		default:
			result = append(result, openai.UserMessage(msg.SystemContent))
		}
	}

	return result
}
