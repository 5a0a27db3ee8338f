package agent

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	globalconfig "aichat/config"
	"aichat/mcp"
	"aichat/model"
)

const claudeMaxTokens = 4096

// ClaudeAgent talks to Anthropic's Claude models over the Messages API with
// streaming tool use.
type ClaudeAgent struct {
	client anthropic.Client
	model  string
	tools  ToolRunner
	system string
}

// NewClaudeAgent creates an agent for one Claude model. The API key comes
// from ANTHROPIC_API_KEY.
func NewClaudeAgent(modelName string, tools ToolRunner, system string) (*ClaudeAgent, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for model %s", modelName)
	}

	return &ClaudeAgent{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  modelName,
		tools:  orNoTools(tools),
		system: system,
	}, nil
}

func (a *ClaudeAgent) Model() string {
	return a.model
}

func (a *ClaudeAgent) Streamable() bool {
	return true
}

func (a *ClaudeAgent) Request(ctx context.Context, messages []model.Message) (string, error) {
	return a.RequestStreaming(ctx, messages, nil)
}

func (a *ClaudeAgent) RequestStreaming(ctx context.Context, messages []model.Message, onFragment StreamFunc) (string, error) {
	conv := &claudeConversation{
		agent:    a,
		messages: convertToClaudeMessages(messages),
	}
	return runToolLoop(ctx, conv, a.tools, onFragment)
}

type claudeConversation struct {
	agent    *ClaudeAgent
	messages []anthropic.MessageParam
}

func (c *claudeConversation) send(ctx context.Context, onFragment StreamFunc) (turn, error) {
	// One timeout per provider round, not per conversation: a turn with
	// several tool rounds gets the full window for each round.
	ctx, cancel := context.WithTimeout(ctx, globalconfig.RequestTimeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.agent.model),
		Messages:  c.messages,
		MaxTokens: claudeMaxTokens,
	}
	if c.agent.system != "" {
		params.System = []anthropic.TextBlockParam{{Text: c.agent.system}}
	}
	if c.agent.tools.HasTools() {
		params.Tools = mcp.ToAnthropicFormat(c.agent.tools.Tools())
	}

	stream := c.agent.client.Messages.NewStreaming(ctx, params)

	msg := anthropic.Message{}
	acc := newToolCallAccumulator()
	var text strings.Builder
	var calls []model.ToolCallRequest

	for stream.Next() {
		event := stream.Current()

		if err := msg.Accumulate(event); err != nil {
			return turn{}, fmt.Errorf("error accumulating message: %w", err)
		}

		switch eventVariant := event.AsAny().(type) {
		case anthropic.ContentBlockStartEvent:
			if toolUse, ok := eventVariant.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
				acc.Start(int(eventVariant.Index), toolUse.ID, toolUse.Name)
			}

		case anthropic.ContentBlockDeltaEvent:
			switch deltaVariant := eventVariant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				text.WriteString(deltaVariant.Text)
				if onFragment != nil {
					onFragment(deltaVariant.Text)
				}
			case anthropic.InputJSONDelta:
				acc.AppendJSON(int(eventVariant.Index), deltaVariant.PartialJSON)
			}

		case anthropic.ContentBlockStopEvent:
			if call, ok := acc.Finish(int(eventVariant.Index)); ok {
				calls = append(calls, call)
			}
		}
	}

	if err := stream.Err(); err != nil {
		return turn{}, err
	}

	if acc.Pending() && globalconfig.DebugLog != nil {
		// A tool_use block opened but its stop event never arrived; its
		// partial arguments are unusable and the call is dropped.
		globalconfig.DebugLog.Printf("[Agent] Stream ended with unterminated tool call blocks")
	}

	// Carry the assistant turn forward so tool results reference its
	// tool_use blocks.
	c.messages = append(c.messages, msg.ToParam())

	return turn{
		text:       text.String(),
		toolCalls:  calls,
		stopReason: string(msg.StopReason),
	}, nil
}

func (c *claudeConversation) addToolResults(calls []model.ToolCallRequest, results []model.ToolCallResult) {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(results))
	for _, result := range results {
		blocks = append(blocks, anthropic.NewToolResultBlock(result.ID, result.Content, result.IsError))
	}
	c.messages = append(c.messages, anthropic.NewUserMessage(blocks...))
}

// convertToClaudeMessages maps the stored history to Anthropic's format.
// App-authored messages (file content) travel as user turns; image payloads
// become base64 image blocks.
func convertToClaudeMessages(messages []model.Message) []anthropic.MessageParam {
	result := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		switch {
		case msg.IsAssistantMessage():
			if msg.IsBlank() {
				continue
			}
			result = append(result, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.SystemContent)))

		case msg.ContentType.IsImage():
			result = append(result, anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(msg.ContentType.MIMEType(), msg.SystemContent),
			))

		default:
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.SystemContent)))
		}
	}

	return result
}
