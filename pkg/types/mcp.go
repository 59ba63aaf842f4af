package types

import "encoding/json"

// ToolInputSchema describes the input schema of a tool as exposed
// over the MCP facade.
type ToolInputSchema struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	Required   []string       `json:"required,omitempty"`
}

// ToolSchemaResponse is the response body of the schema lookup
// operation.
type ToolSchemaResponse struct {
	ToolName    string          `json:"tool_name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}
