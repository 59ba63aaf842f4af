package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// ExecutionStatus is the recorded outcome of a single tool call.
type ExecutionStatus string

const (
	ExecutionStatusSuccess ExecutionStatus = "SUCCESS"
	ExecutionStatusError   ExecutionStatus = "ERROR"
	ExecutionStatusTimeout ExecutionStatus = "TIMEOUT"
)

// ValidateExecutionStatus validates the given string as an execution
// status and converts it into an ExecutionStatus.
func ValidateExecutionStatus(s string) (ExecutionStatus, error) {
	switch es := ExecutionStatus(s); es {
	case ExecutionStatusSuccess, ExecutionStatusError, ExecutionStatusTimeout:
		return es, nil
	default:
		return "", fmt.Errorf(
			"invalid execution status: %s, acceptable values are: %s, %s, %s",
			s, ExecutionStatusSuccess, ExecutionStatusError, ExecutionStatusTimeout,
		)
	}
}

// CallToolRequest is the request body for executing a tool.
type CallToolRequest struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`

	// Metadata is recorded alongside the execution, never interpreted.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// CallToolResult is the response body for a tool execution.
type CallToolResult struct {
	ToolName string          `json:"tool_name"`
	Status   ExecutionStatus `json:"status"`

	// Output is the backend result. JSON-structured output is carried
	// as-is; plain text is carried as a JSON string.
	Output json.RawMessage `json:"output,omitempty"`

	// Error is set when Status is not SUCCESS. Safe to show to the
	// caller.
	Error string `json:"error,omitempty"`

	// Suggestions carries names of similar tools when the requested
	// tool was not found.
	Suggestions []string `json:"suggestions,omitempty"`

	DurationMs int64 `json:"duration_ms"`
}

// CallToolSummarizedRequest is the request body for the summarized
// execution variant.
type CallToolSummarizedRequest struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
	Metadata  map[string]any `json:"metadata,omitempty"`

	// MaxTokens is the output budget; outputs estimated above it are
	// summarized. Zero means the server default.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Hint tells the summarizer what the caller cares about.
	Hint string `json:"summarize_hint,omitempty"`
}

// CallToolSummarizedResult is the response body for the summarized
// execution variant.
type CallToolSummarizedResult struct {
	CallToolResult

	// WasSummarized is true when the output was compacted, either by
	// the gateway or by truncation fallback.
	WasSummarized bool `json:"was_summarized"`
}

// ExecutionRecord is the wire representation of one recorded
// execution, served by the admin execution log.
type ExecutionRecord struct {
	ID         uint            `json:"id"`
	ToolID     uint            `json:"tool_id"`
	ToolName   string          `json:"tool_name"`
	Status     ExecutionStatus `json:"status"`
	DurationMs int64           `json:"duration_ms"`
	Error      string          `json:"error,omitempty"`
	Arguments  json.RawMessage `json:"arguments,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
