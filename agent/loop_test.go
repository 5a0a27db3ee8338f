package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"aichat/model"
)

// scriptedConversation replays a fixed sequence of turns.
type scriptedConversation struct {
	turns   []turn
	errs    []error
	sends   int
	results [][]model.ToolCallResult
}

func (s *scriptedConversation) send(ctx context.Context, onFragment StreamFunc) (turn, error) {
	i := s.sends
	s.sends++
	if i < len(s.errs) && s.errs[i] != nil {
		return turn{}, s.errs[i]
	}
	t := s.turns[i]
	if onFragment != nil && t.text != "" {
		onFragment(t.text)
	}
	return t, nil
}

func (s *scriptedConversation) addToolResults(calls []model.ToolCallRequest, results []model.ToolCallResult) {
	s.results = append(s.results, results)
}

// recordingRunner answers every tool call with a fixed result.
type recordingRunner struct {
	calls   []model.ToolCallRequest
	content string
	isError bool
}

func (r *recordingRunner) Tools() []mcptypes.Tool { return nil }
func (r *recordingRunner) HasTools() bool         { return true }
func (r *recordingRunner) CallTool(ctx context.Context, name string, args map[string]any, callID string) model.ToolCallResult {
	r.calls = append(r.calls, model.ToolCallRequest{ID: callID, Name: name, Arguments: args})
	return model.ToolCallResult{ID: callID, Content: r.content, IsError: r.isError}
}

func TestRunToolLoopPlainText(t *testing.T) {
	conv := &scriptedConversation{
		turns: []turn{{text: "hello there", stopReason: "end_turn"}},
	}

	var streamed strings.Builder
	got, err := runToolLoop(context.Background(), conv, &recordingRunner{}, func(f string) {
		streamed.WriteString(f)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello there" {
		t.Errorf("expected reply text, got %q", got)
	}
	if streamed.String() != "hello there" {
		t.Errorf("fragments must reassemble to the reply, got %q", streamed.String())
	}
	if conv.sends != 1 {
		t.Errorf("expected 1 round, got %d", conv.sends)
	}
}

func TestRunToolLoopExecutesToolsThenFinishes(t *testing.T) {
	conv := &scriptedConversation{
		turns: []turn{
			{
				text:       "Let me check.",
				stopReason: "tool_use",
				toolCalls: []model.ToolCallRequest{
					{ID: "call-1", Name: "stub__echo", Arguments: map[string]any{"text": "hi"}},
				},
			},
			{text: "The echo said hi.", stopReason: "end_turn"},
		},
	}
	runner := &recordingRunner{content: "hi"}

	var streamed strings.Builder
	got, err := runToolLoop(context.Background(), conv, runner, func(f string) {
		streamed.WriteString(f)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Narration from the tool-call round stays in the reply.
	if got != "Let me check.\nThe echo said hi." {
		t.Errorf("expected text from every round, got %q", got)
	}
	if streamed.String() != "Let me check.The echo said hi." {
		t.Errorf("fragments lost: %q", streamed.String())
	}
	if conv.sends != 2 {
		t.Errorf("expected 2 rounds, got %d", conv.sends)
	}

	if len(runner.calls) != 1 || runner.calls[0].Name != "stub__echo" {
		t.Fatalf("tool not executed: %+v", runner.calls)
	}
	if runner.calls[0].ID != "call-1" {
		t.Errorf("call ID not forwarded: %q", runner.calls[0].ID)
	}

	if len(conv.results) != 1 || len(conv.results[0]) != 1 {
		t.Fatalf("tool results not handed back: %+v", conv.results)
	}
	if conv.results[0][0].Content != "hi" {
		t.Errorf("expected tool output in result, got %q", conv.results[0][0].Content)
	}
}

func TestRunToolLoopErrorResultsKeepGoing(t *testing.T) {
	conv := &scriptedConversation{
		turns: []turn{
			{
				stopReason: "tool_use",
				toolCalls:  []model.ToolCallRequest{{ID: "c1", Name: "ghost__foo"}},
			},
			{text: "That tool is unavailable.", stopReason: "end_turn"},
		},
	}
	runner := &recordingRunner{content: "Error: tool server not found: ghost", isError: true}

	got, err := runToolLoop(context.Background(), conv, runner, nil)
	if err != nil {
		t.Fatalf("tool errors must not abort the loop: %v", err)
	}
	if got != "That tool is unavailable." {
		t.Errorf("unexpected reply: %q", got)
	}
	if !conv.results[0][0].IsError {
		t.Error("error result lost its IsError flag")
	}
}

func TestRunToolLoopRoundBudget(t *testing.T) {
	// The model asks for a tool every round and never stops.
	var turns []turn
	for i := 0; i < 10; i++ {
		turns = append(turns, turn{
			stopReason: "tool_use",
			toolCalls:  []model.ToolCallRequest{{ID: fmt.Sprintf("c%d", i), Name: "stub__echo"}},
		})
	}
	conv := &scriptedConversation{turns: turns}
	runner := &recordingRunner{content: "ok"}

	got, err := runToolLoop(context.Background(), conv, runner, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conv.sends != 5 {
		t.Errorf("expected exactly 5 rounds, got %d", conv.sends)
	}
	if got != "[Tool use completed]" {
		t.Errorf("expected completion marker for text-less run, got %q", got)
	}
}

func TestRunToolLoopRoundBudgetKeepsAccumulatedText(t *testing.T) {
	// Every round narrates before asking for another tool; when the budget
	// runs out the narration survives instead of the completion marker.
	var turns []turn
	for i := 0; i < 10; i++ {
		turns = append(turns, turn{
			text:       fmt.Sprintf("step %d", i+1),
			stopReason: "tool_use",
			toolCalls:  []model.ToolCallRequest{{ID: fmt.Sprintf("c%d", i), Name: "stub__echo"}},
		})
	}
	conv := &scriptedConversation{turns: turns}

	got, err := runToolLoop(context.Background(), conv, &recordingRunner{content: "ok"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "step 1\nstep 2\nstep 3\nstep 4\nstep 5" {
		t.Errorf("accumulated narration lost at round budget, got %q", got)
	}
}

func TestRunToolLoopEmptyReply(t *testing.T) {
	conv := &scriptedConversation{
		turns: []turn{{text: "   ", stopReason: "max_tokens"}},
	}

	got, err := runToolLoop(context.Background(), conv, &recordingRunner{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "No response generated (stop: max_tokens)" {
		t.Errorf("expected empty-reply diagnostic, got %q", got)
	}
}

func TestRunToolLoopTransportErrorBecomesText(t *testing.T) {
	conv := &scriptedConversation{
		errs:  []error{errors.New("connection refused")},
		turns: []turn{{}},
	}

	var streamed strings.Builder
	got, err := runToolLoop(context.Background(), conv, &recordingRunner{}, func(f string) {
		streamed.WriteString(f)
	})
	if err != nil {
		t.Fatalf("transport errors must fold into text, got error: %v", err)
	}
	if !strings.Contains(got, "API Connection Error") || !strings.Contains(got, "connection refused") {
		t.Errorf("unexpected diagnostic: %q", got)
	}
	if !strings.Contains(streamed.String(), "API Connection Error") {
		t.Errorf("diagnostic must reach the fragment stream, got %q", streamed.String())
	}
}

func TestRunToolLoopTransportErrorAfterProgress(t *testing.T) {
	// Round 1 streams narration and calls a tool; round 2 dies on the wire.
	// Both the narration and the diagnostic must survive in the reply and in
	// the fragment stream.
	conv := &scriptedConversation{
		turns: []turn{
			{
				text:       "Checking the weather...",
				stopReason: "tool_use",
				toolCalls:  []model.ToolCallRequest{{ID: "c1", Name: "stub__weather"}},
			},
			{},
		},
		errs: []error{nil, errors.New("connection reset")},
	}

	var streamed strings.Builder
	got, err := runToolLoop(context.Background(), conv, &recordingRunner{content: "sunny"}, func(f string) {
		streamed.WriteString(f)
	})
	if err != nil {
		t.Fatalf("transport errors must fold into text, got error: %v", err)
	}
	if !strings.Contains(got, "Checking the weather...") {
		t.Errorf("earlier narration lost from reply: %q", got)
	}
	if !strings.Contains(got, "API Connection Error") {
		t.Errorf("diagnostic missing from reply: %q", got)
	}
	if !strings.Contains(streamed.String(), "API Connection Error") {
		t.Errorf("diagnostic must reach the fragment stream, got %q", streamed.String())
	}
}

func TestRunToolLoopDeadlineBecomesText(t *testing.T) {
	// A timed-out provider round reads as a transport failure, not a Go
	// error, so earlier progress still gets persisted.
	conv := &scriptedConversation{
		turns: []turn{
			{
				text:       "Working on it.",
				stopReason: "tool_use",
				toolCalls:  []model.ToolCallRequest{{ID: "c1", Name: "stub__slow"}},
			},
			{},
		},
		errs: []error{nil, fmt.Errorf("streaming: %w", context.DeadlineExceeded)},
	}

	got, err := runToolLoop(context.Background(), conv, &recordingRunner{content: "ok"}, nil)
	if err != nil {
		t.Fatalf("deadline expiry must fold into text, got error: %v", err)
	}
	if !strings.Contains(got, "Working on it.") || !strings.Contains(got, "API Connection Error") {
		t.Errorf("expected narration plus diagnostic, got %q", got)
	}
}

func TestRunToolLoopCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conv := &scriptedConversation{turns: []turn{{text: "never sent"}}}
	_, err := runToolLoop(ctx, conv, &recordingRunner{}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if conv.sends != 0 {
		t.Error("cancelled loop must not contact the provider")
	}
}
