package model

// ToolCallRequest is a single tool invocation requested by a model. ID
// correlates the call with its eventual result within one provider turn;
// Name is the registry-qualified tool name.
type ToolCallRequest struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToolCallResult is the outcome of executing one tool call. Content is
// provider-agnostic text (structured payloads are flattened before they get
// here). IsError is always set explicitly: true on any failure, false only on
// confirmed success.
type ToolCallResult struct {
	ID      string
	Content string
	IsError bool
}

// ErrorResult builds a failed result carrying a human-readable message.
func ErrorResult(id, message string) ToolCallResult {
	return ToolCallResult{ID: id, Content: message, IsError: true}
}
