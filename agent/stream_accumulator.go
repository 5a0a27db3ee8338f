package agent

import (
	"encoding/json"
	"strings"

	globalconfig "aichat/config"
	"aichat/model"
)

// toolCallAccumulator reassembles tool calls from a streamed response. Tool
// call arguments arrive as partial JSON fragments keyed by content block
// index; fragments are buffered per index and parsed once, when the block
// closes. Not safe for concurrent use.
type toolCallAccumulator struct {
	blocks map[int]*partialToolCall
}

type partialToolCall struct {
	id   string
	name string
	json strings.Builder
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{blocks: make(map[int]*partialToolCall)}
}

// Start opens a tool call block at the given stream index.
func (a *toolCallAccumulator) Start(index int, id, name string) {
	a.blocks[index] = &partialToolCall{id: id, name: name}
}

// AppendJSON buffers an argument fragment for an open block. Fragments for
// unknown indices (text blocks, or indices never started) are ignored.
func (a *toolCallAccumulator) AppendJSON(index int, fragment string) {
	if block, ok := a.blocks[index]; ok {
		block.json.WriteString(fragment)
	}
}

// Finish closes the block at index and parses its buffered arguments. The
// second return is false when no tool call block was open at that index. An
// empty buffer means a no-argument call; malformed JSON degrades to empty
// arguments so the call still gets routed and answered.
func (a *toolCallAccumulator) Finish(index int) (model.ToolCallRequest, bool) {
	block, ok := a.blocks[index]
	if !ok {
		return model.ToolCallRequest{}, false
	}
	delete(a.blocks, index)

	args := map[string]any{}
	if raw := block.json.String(); strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			if globalconfig.DebugLog != nil {
				globalconfig.DebugLog.Printf("[Agent] Malformed tool arguments for %s: %v", block.name, err)
			}
			args = map[string]any{}
		}
	}

	return model.ToolCallRequest{ID: block.id, Name: block.name, Arguments: args}, true
}

// Pending reports whether any tool call blocks are still open.
func (a *toolCallAccumulator) Pending() bool {
	return len(a.blocks) > 0
}

// parseToolArguments decodes a complete JSON argument string, as delivered by
// providers that hand over finished tool calls. Empty or malformed input
// yields an empty map.
func parseToolArguments(raw string) map[string]any {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		if globalconfig.DebugLog != nil {
			globalconfig.DebugLog.Printf("[Agent] Malformed tool arguments: %v", err)
		}
		return map[string]any{}
	}
	return args
}
