package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	globalconfig "aichat/config"
	"aichat/model"
)

// turn is the outcome of one provider round: streamed text, any tool calls
// the model requested, and the provider's stop reason.
type turn struct {
	text       string
	toolCalls  []model.ToolCallRequest
	stopReason string
}

// conversation is one in-flight exchange with a provider. Implementations
// hold the provider-native message list and grow it as rounds complete.
type conversation interface {
	// send performs one model request over the accumulated exchange,
	// streaming text fragments through onFragment.
	send(ctx context.Context, onFragment StreamFunc) (turn, error)
	// addToolResults appends executed tool results to the exchange, paired
	// with the calls that produced them.
	addToolResults(calls []model.ToolCallRequest, results []model.ToolCallResult)
}

// runToolLoop drives a conversation through up to MaxToolRounds provider
// rounds, executing requested tools between rounds. Text from every round is
// accumulated, so narration produced alongside tool calls stays in the final
// reply. Provider transport failures (timeouts included) become diagnostic
// text rather than errors so a flaky network never kills the chat; only
// cancellation surfaces as an error.
func runToolLoop(ctx context.Context, conv conversation, tools ToolRunner, onFragment StreamFunc) (string, error) {
	var textParts []string
	var lastStop string

	for round := 0; round < globalconfig.MaxToolRounds; round++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		t, err := conv.send(ctx, onFragment)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return "", err
			}
			diag := fmt.Sprintf("API Connection Error: %v", err)
			if onFragment != nil {
				onFragment("\n" + diag)
			}
			textParts = append(textParts, diag)
			return strings.Join(textParts, "\n"), nil
		}

		if t.text != "" {
			textParts = append(textParts, t.text)
		}
		lastStop = t.stopReason

		if globalconfig.DebugLog != nil {
			globalconfig.DebugLog.Printf("[Agent] Round %d: %d chars, %d tool calls, stop=%s",
				round+1, len(t.text), len(t.toolCalls), t.stopReason)
		}

		if len(t.toolCalls) == 0 {
			if isToolUseStop(t.stopReason) && globalconfig.DebugLog != nil {
				// Providers occasionally signal tool use without any
				// tool-call content. Exit the loop rather than spin.
				globalconfig.DebugLog.Printf("[Agent] Stop reason %q with no tool calls, ending turn", t.stopReason)
			}
			final := strings.Join(textParts, "\n")
			if strings.TrimSpace(final) == "" {
				return fmt.Sprintf("No response generated (stop: %s)", lastStop), nil
			}
			return final, nil
		}

		results := make([]model.ToolCallResult, 0, len(t.toolCalls))
		for _, call := range t.toolCalls {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			results = append(results, tools.CallTool(ctx, call.Name, call.Arguments, call.ID))
		}
		conv.addToolResults(t.toolCalls, results)
	}

	// Round budget exhausted while the model still wanted tools. Surface
	// whatever text it produced so far rather than an empty reply.
	final := strings.Join(textParts, "\n")
	if strings.TrimSpace(final) == "" {
		return "[Tool use completed]", nil
	}
	return final, nil
}

func isToolUseStop(stopReason string) bool {
	return stopReason == "tool_use" || stopReason == "tool_calls"
}
