package mcp

import (
	"testing"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

func sampleTool() mcptypes.Tool {
	return mcptypes.Tool{
		Name:        "files__search",
		Description: "Search for files in a directory",
		InputSchema: mcptypes.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Directory path to search",
				},
				"recursive": map[string]any{
					"type":    "boolean",
					"default": false,
				},
			},
			Required: []string{"path"},
		},
	}
}

func TestToOpenAIFormat(t *testing.T) {
	result := ToOpenAIFormat([]mcptypes.Tool{sampleTool()})

	if len(result) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(result))
	}

	fn := result[0].OfFunction
	if fn == nil {
		t.Fatal("expected function tool")
	}
	if fn.Function.Name != "files__search" {
		t.Errorf("expected qualified name preserved, got %q", fn.Function.Name)
	}

	params := fn.Function.Parameters
	if params["type"] != "object" {
		t.Errorf("expected object type, got %v", params["type"])
	}
	props, ok := params["properties"].(map[string]any)
	if !ok || len(props) != 2 {
		t.Errorf("expected 2 properties, got %v", params["properties"])
	}
	required, ok := params["required"].([]string)
	if !ok || len(required) != 1 || required[0] != "path" {
		t.Errorf("expected required [path], got %v", params["required"])
	}
}

func TestToOpenAIFormatEmpty(t *testing.T) {
	if result := ToOpenAIFormat(nil); result != nil {
		t.Errorf("expected nil for no tools, got %v", result)
	}
}

func TestToOpenAIFormatSynthesizesProperties(t *testing.T) {
	tool := mcptypes.Tool{
		Name: "clock__now",
		InputSchema: mcptypes.ToolInputSchema{
			Type: "object",
		},
	}

	result := ToOpenAIFormat([]mcptypes.Tool{tool})
	params := result[0].OfFunction.Function.Parameters

	props, ok := params["properties"].(map[string]any)
	if !ok {
		t.Fatalf("expected properties map, got %T", params["properties"])
	}
	if len(props) != 0 {
		t.Errorf("expected empty properties, got %v", props)
	}
}

func TestToAnthropicFormat(t *testing.T) {
	result := ToAnthropicFormat([]mcptypes.Tool{sampleTool()})

	if len(result) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(result))
	}

	tool := result[0].OfTool
	if tool == nil {
		t.Fatal("expected tool variant")
	}
	if tool.Name != "files__search" {
		t.Errorf("expected qualified name preserved, got %q", tool.Name)
	}
	if tool.Description.Value != "Search for files in a directory" {
		t.Errorf("description mismatch: %q", tool.Description.Value)
	}

	props, ok := tool.InputSchema.Properties.(map[string]any)
	if !ok || len(props) != 2 {
		t.Errorf("expected 2 properties, got %v", tool.InputSchema.Properties)
	}
}

func TestToAnthropicFormatSynthesizesProperties(t *testing.T) {
	tool := mcptypes.Tool{
		Name:        "clock__now",
		InputSchema: mcptypes.ToolInputSchema{Type: "object"},
	}

	result := ToAnthropicFormat([]mcptypes.Tool{tool})
	props, ok := result[0].OfTool.InputSchema.Properties.(map[string]any)
	if !ok {
		t.Fatalf("expected properties map, got %T", result[0].OfTool.InputSchema.Properties)
	}
	if len(props) != 0 {
		t.Errorf("expected empty properties, got %v", props)
	}
}

func TestToGeminiFormat(t *testing.T) {
	result := ToGeminiFormat([]mcptypes.Tool{sampleTool()})

	if len(result) != 1 {
		t.Fatalf("expected 1 tool group, got %d", len(result))
	}
	decls := result[0].FunctionDeclarations
	if len(decls) != 1 {
		t.Fatalf("expected 1 declaration, got %d", len(decls))
	}
	if decls[0].Name != "files__search" {
		t.Errorf("expected qualified name preserved, got %q", decls[0].Name)
	}

	schema, ok := decls[0].ParametersJsonSchema.(map[string]any)
	if !ok {
		t.Fatalf("expected schema map, got %T", decls[0].ParametersJsonSchema)
	}
	props := schema["properties"].(map[string]any)
	recursive := props["recursive"].(map[string]any)
	if _, found := recursive["default"]; found {
		t.Error("expected default to be stripped from nested property")
	}
}

func TestSanitizeGeminiSchemaNested(t *testing.T) {
	schema := map[string]any{
		"type":                 "object",
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"additionalProperties": false,
		"properties": map[string]any{
			"filters": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"tag": map[string]any{"type": "string", "default": ""},
				},
			},
			"items_list": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": true,
				},
			},
		},
	}

	cleaned := sanitizeGeminiSchema(schema)

	if _, found := cleaned["$schema"]; found {
		t.Error("$schema not stripped at top level")
	}
	if _, found := cleaned["additionalProperties"]; found {
		t.Error("additionalProperties not stripped at top level")
	}

	filters := cleaned["properties"].(map[string]any)["filters"].(map[string]any)
	if _, found := filters["additionalProperties"]; found {
		t.Error("additionalProperties not stripped one level down")
	}
	tag := filters["properties"].(map[string]any)["tag"].(map[string]any)
	if _, found := tag["default"]; found {
		t.Error("default not stripped two levels down")
	}

	items := cleaned["properties"].(map[string]any)["items_list"].(map[string]any)["items"].(map[string]any)
	if _, found := items["additionalProperties"]; found {
		t.Error("additionalProperties not stripped inside items")
	}

	// Input must be left alone.
	if _, found := schema["$schema"]; !found {
		t.Error("sanitizer modified its input")
	}
}

func TestToOllamaFormat(t *testing.T) {
	result := ToOllamaFormat([]mcptypes.Tool{sampleTool()})

	if len(result) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(result))
	}
	if result[0].Type != "function" {
		t.Errorf("expected type 'function', got %q", result[0].Type)
	}
	if result[0].Function.Name != "files__search" {
		t.Errorf("name mismatch: %q", result[0].Function.Name)
	}

	params := result[0].Function.Parameters
	if params.Type != "object" {
		t.Errorf("parameters type mismatch: %q", params.Type)
	}
	if len(params.Properties) != 2 {
		t.Errorf("expected 2 properties, got %d", len(params.Properties))
	}
	pathProp, ok := params.Properties["path"]
	if !ok {
		t.Fatal("path property not found")
	}
	if len(pathProp.Type) != 1 || pathProp.Type[0] != "string" {
		t.Errorf("path type mismatch: %v", pathProp.Type)
	}
}

// Adapters must not mutate the shared tool list: converting twice for
// different providers has to give identical results.
func TestAdaptersArePure(t *testing.T) {
	tools := []mcptypes.Tool{sampleTool()}

	ToOpenAIFormat(tools)
	ToGeminiFormat(tools)
	ToAnthropicFormat(tools)
	ToOllamaFormat(tools)

	recursive := tools[0].InputSchema.Properties["recursive"].(map[string]any)
	if _, found := recursive["default"]; !found {
		t.Error("adapter mutated the source schema")
	}
	if tools[0].Name != "files__search" {
		t.Errorf("adapter mutated the tool name: %q", tools[0].Name)
	}
}
