package mcp

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"
)

// ToOpenAIFormat converts tools to the OpenAI function-calling format. The
// same format is used for DeepSeek since it speaks the OpenAI API.
//
// MCP Tool structure:
//
//	{
//	  "name": "get_weather",
//	  "description": "Get weather data",
//	  "inputSchema": {"type": "object", "properties": {...}, "required": [...]}
//	}
//
// OpenAI Tool structure:
//
//	{
//	  "type": "function",
//	  "function": {"name": ..., "description": ..., "parameters": {...}}
//	}
func ToOpenAIFormat(tools []mcptypes.Tool) []openai.ChatCompletionToolUnionParam {
	if len(tools) == 0 {
		return nil
	}

	result := make([]openai.ChatCompletionToolUnionParam, len(tools))

	for i, tool := range tools {
		params := openai.FunctionParameters{
			"type":       tool.InputSchema.Type,
			"properties": ensureObjectProperties(tool.InputSchema),
		}

		if len(tool.InputSchema.Required) > 0 {
			params["required"] = tool.InputSchema.Required
		}

		if tool.InputSchema.Defs != nil {
			params["$defs"] = tool.InputSchema.Defs
		}

		result[i] = openai.ChatCompletionFunctionTool(
			openai.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  params,
			},
		)
	}

	return result
}

// ToAnthropicFormat converts tools to Anthropic's tool-use format, which
// carries the JSON schema under input_schema.
func ToAnthropicFormat(tools []mcptypes.Tool) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}

	result := make([]anthropic.ToolUnionParam, len(tools))

	for i, tool := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			// Type defaults to "object" when omitted
			Properties: ensureObjectProperties(tool.InputSchema),
		}

		if len(tool.InputSchema.Required) > 0 {
			inputSchema.Required = tool.InputSchema.Required
		}

		if tool.InputSchema.Defs != nil {
			inputSchema.ExtraFields = map[string]any{
				"$defs": tool.InputSchema.Defs,
			}
		}

		result[i] = anthropic.ToolUnionParamOfTool(inputSchema, tool.Name)

		if tool.Description != "" {
			result[i].OfTool.Description = anthropic.String(tool.Description)
		}
	}

	return result
}

// ToGeminiFormat converts tools to Gemini function declarations. Gemini's
// schema validator rejects several standard JSON Schema keywords, so the
// schema is sanitized before handing it over.
func ToGeminiFormat(tools []mcptypes.Tool) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}

	declarations := make([]*genai.FunctionDeclaration, len(tools))

	for i, tool := range tools {
		schema := map[string]any{
			"type":       tool.InputSchema.Type,
			"properties": ensureObjectProperties(tool.InputSchema),
		}
		if len(tool.InputSchema.Required) > 0 {
			schema["required"] = tool.InputSchema.Required
		}

		declarations[i] = &genai.FunctionDeclaration{
			Name:                 tool.Name,
			Description:          tool.Description,
			ParametersJsonSchema: sanitizeGeminiSchema(schema),
		}
	}

	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// ToOllamaFormat converts tools to the Ollama API tool format.
func ToOllamaFormat(tools []mcptypes.Tool) []api.Tool {
	ollamaTools := make([]api.Tool, 0, len(tools))

	for _, tool := range tools {
		ollamaTools = append(ollamaTools, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  convertInputSchemaToParameters(tool.InputSchema),
			},
		})
	}

	return ollamaTools
}

// ensureObjectProperties returns the schema's properties map, synthesizing an
// empty one for object schemas that omit it. Several providers reject an
// object schema with no properties key.
func ensureObjectProperties(schema mcptypes.ToolInputSchema) map[string]any {
	if schema.Properties != nil {
		return schema.Properties
	}
	return map[string]any{}
}

// geminiUnsupportedKeys are JSON Schema keywords Gemini's API rejects.
var geminiUnsupportedKeys = map[string]bool{
	"additionalProperties": true,
	"$schema":              true,
	"default":              true,
}

// sanitizeGeminiSchema strips unsupported keywords from a JSON schema at every
// nesting level, descending into properties, items, and combinator lists. The
// input is not modified.
func sanitizeGeminiSchema(schema map[string]any) map[string]any {
	out := make(map[string]any, len(schema))

	for key, value := range schema {
		if geminiUnsupportedKeys[key] {
			continue
		}

		switch key {
		case "properties":
			if props, ok := value.(map[string]any); ok {
				cleaned := make(map[string]any, len(props))
				for name, prop := range props {
					cleaned[name] = sanitizeGeminiValue(prop)
				}
				out[key] = cleaned
				continue
			}
		case "items":
			out[key] = sanitizeGeminiValue(value)
			continue
		case "anyOf", "oneOf", "allOf":
			if list, ok := value.([]any); ok {
				cleaned := make([]any, len(list))
				for i, item := range list {
					cleaned[i] = sanitizeGeminiValue(item)
				}
				out[key] = cleaned
				continue
			}
		}

		out[key] = value
	}

	return out
}

func sanitizeGeminiValue(value any) any {
	if m, ok := value.(map[string]any); ok {
		return sanitizeGeminiSchema(m)
	}
	return value
}

// convertInputSchemaToParameters converts an MCP input schema to Ollama's
// typed parameter struct.
func convertInputSchemaToParameters(inputSchema mcptypes.ToolInputSchema) api.ToolFunctionParameters {
	params := api.ToolFunctionParameters{
		Type:       inputSchema.Type,
		Required:   inputSchema.Required,
		Properties: make(map[string]api.ToolProperty),
	}

	if inputSchema.Defs != nil {
		params.Defs = inputSchema.Defs
	}

	for propName, propValue := range inputSchema.Properties {
		params.Properties[propName] = convertPropertyValue(propValue)
	}

	return params
}

// convertPropertyValue converts one schema property to Ollama's ToolProperty.
func convertPropertyValue(propValue any) api.ToolProperty {
	toolProp := api.ToolProperty{}

	propMap, ok := propValue.(map[string]any)
	if !ok {
		bytes, err := json.Marshal(propValue)
		if err != nil {
			return toolProp
		}
		var m map[string]any
		if err := json.Unmarshal(bytes, &m); err != nil {
			return toolProp
		}
		propMap = m
	}

	// Type can be a string or a list of strings.
	if typeVal, ok := propMap["type"]; ok {
		switch t := typeVal.(type) {
		case string:
			toolProp.Type = api.PropertyType{t}
		case []string:
			toolProp.Type = api.PropertyType(t)
		case []any:
			types := make([]string, 0, len(t))
			for _, v := range t {
				if s, ok := v.(string); ok {
					types = append(types, s)
				}
			}
			toolProp.Type = api.PropertyType(types)
		}
	}

	if desc, ok := propMap["description"].(string); ok {
		toolProp.Description = desc
	}

	if enumVal, ok := propMap["enum"]; ok {
		if enumSlice, ok := enumVal.([]any); ok {
			toolProp.Enum = enumSlice
		}
	}

	if items, ok := propMap["items"]; ok {
		toolProp.Items = items
	}

	if anyOfVal, ok := propMap["anyOf"]; ok {
		if anyOfSlice, ok := anyOfVal.([]any); ok {
			anyOfProps := make([]api.ToolProperty, 0, len(anyOfSlice))
			for _, item := range anyOfSlice {
				anyOfProps = append(anyOfProps, convertPropertyValue(item))
			}
			toolProp.AnyOf = anyOfProps
		}
	}

	return toolProp
}
