package types

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// ImplementationType determines how the execution router dispatches a
// call_tool request for a given tool.
type ImplementationType string

const (
	// ImplPythonCallable routes calls to a callable registered in the
	// in-process callable table, addressed by module path.
	ImplPythonCallable ImplementationType = "PYTHON_CALLABLE"

	// ImplHTTPEndpoint routes calls to a plain HTTP endpoint, passing
	// arguments as query params (GET) or a JSON body (POST/PUT/PATCH).
	ImplHTTPEndpoint ImplementationType = "HTTP_ENDPOINT"

	// ImplMCPServer proxies calls to a tool hosted by an upstream MCP
	// server via JSON-RPC tools/call.
	ImplMCPServer ImplementationType = "MCP_SERVER"

	// ImplLLMGateway sends the call arguments to the LLM gateway's
	// chat completions API and returns the model output.
	ImplLLMGateway ImplementationType = "LLM_GATEWAY"

	// ImplCommandLine runs a templated command as a child process,
	// without a shell.
	ImplCommandLine ImplementationType = "COMMAND_LINE"
)

// toolNamePattern is the only charset allowed in tool names. The colon
// is reserved as the namespace separator for discovered tools
// ("{source}:{remote_name}").
var toolNamePattern = regexp.MustCompile(`^[A-Za-z0-9:_-]+$`)

// ValidateImplementationType validates the given string as an
// implementation type and converts it into an ImplementationType.
func ValidateImplementationType(t string) (ImplementationType, error) {
	switch it := ImplementationType(t); it {
	case ImplPythonCallable, ImplHTTPEndpoint, ImplMCPServer, ImplLLMGateway, ImplCommandLine:
		return it, nil
	default:
		return "", fmt.Errorf(
			"invalid implementation type: %s, acceptable values are: %s, %s, %s, %s, %s",
			t, ImplPythonCallable, ImplHTTPEndpoint, ImplMCPServer, ImplLLMGateway, ImplCommandLine,
		)
	}
}

// ValidateToolName checks that a tool name is non-empty, at most 255
// characters, and uses only letters, digits, ':', '_' and '-'.
func ValidateToolName(name string) error {
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if len(name) > 255 {
		return fmt.Errorf("tool name cannot exceed 255 characters, got %d", len(name))
	}
	if !toolNamePattern.MatchString(name) {
		return fmt.Errorf(
			"invalid tool name %q: only letters, digits, ':', '_' and '-' are allowed", name,
		)
	}
	return nil
}

// Tool is the wire representation of a registered tool.
type Tool struct {
	ID uint `json:"id"`

	// Name uniquely identifies the tool. Discovered tools are
	// namespaced as "{source}:{remote_name}".
	Name        string `json:"name"`
	Description string `json:"description"`

	// Version is a semver string, defaulting to "1.0.0".
	Version string `json:"version"`

	ImplementationType ImplementationType `json:"implementation_type"`

	// ImplementationCode is the type-specific routing config. Its shape
	// depends on ImplementationType: a module path string for
	// PYTHON_CALLABLE, a JSON object for the other kinds.
	ImplementationCode json.RawMessage `json:"implementation_code,omitempty"`

	// InputSchema is the JSON Schema the router validates call
	// arguments against before dispatch.
	InputSchema json.RawMessage `json:"input_schema,omitempty"`

	Tags     []string       `json:"tags"`
	Category string         `json:"category,omitempty"`
	IsActive bool           `json:"is_active"`
	Metadata map[string]any `json:"metadata,omitempty"`

	// HasEmbedding reports whether the tool is currently indexed for
	// semantic search.
	HasEmbedding bool `json:"has_embedding"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RegisterToolInput is the request body for registering a tool.
type RegisterToolInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version,omitempty"`

	ImplementationType string          `json:"implementation_type"`
	ImplementationCode json.RawMessage `json:"implementation_code,omitempty"`

	InputSchema json.RawMessage `json:"input_schema,omitempty"`

	Tags     []string       `json:"tags,omitempty"`
	Category string         `json:"category,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`

	// AutoEmbed controls whether an embedding is generated as part of
	// the registration transaction. Defaults to true.
	AutoEmbed *bool `json:"auto_embed,omitempty"`
}

// UpdateToolInput is the request body for partially updating a tool.
// Nil fields are left unchanged.
type UpdateToolInput struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Version     *string `json:"version,omitempty"`

	ImplementationType *string         `json:"implementation_type,omitempty"`
	ImplementationCode json.RawMessage `json:"implementation_code,omitempty"`

	InputSchema json.RawMessage `json:"input_schema,omitempty"`

	Tags     []string       `json:"tags,omitempty"`
	Category *string        `json:"category,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// HTTPEndpointConfig is the implementation code shape for
// HTTP_ENDPOINT tools.
type HTTPEndpointConfig struct {
	URL string `json:"url"`

	// Method defaults to POST when empty.
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`

	// Timeout overrides the global per-call deadline, in seconds.
	// Clamped to the configured ceiling.
	Timeout float64 `json:"timeout,omitempty"`
}

// MCPServerConfig is the implementation code shape for MCP_SERVER
// tools.
type MCPServerConfig struct {
	URL string `json:"url"`

	// ToolName is the tool's name on the upstream server, without the
	// local source namespace prefix.
	ToolName string `json:"tool_name"`

	BearerToken string  `json:"bearer_token,omitempty"`
	Timeout     float64 `json:"timeout,omitempty"`
}

// LLMGatewayConfig is the implementation code shape for LLM_GATEWAY
// tools. Two flavors share it: model-backed tools send the arguments
// to a chat completion (Model set), gateway-hosted tools proxy a tool
// the gateway itself exposes over MCP (ToolName set, URL optionally
// overriding the configured gateway).
type LLMGatewayConfig struct {
	Model        string  `json:"model,omitempty"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
	Temperature  float32 `json:"temperature,omitempty"`
	Timeout      float64 `json:"timeout,omitempty"`

	// ToolName is the tool's name on the gateway's MCP endpoint.
	ToolName string `json:"tool_name,omitempty"`

	// URL overrides the globally configured gateway URL.
	URL string `json:"url,omitempty"`
}

// CommandLineConfig is the implementation code shape for COMMAND_LINE
// tools.
type CommandLineConfig struct {
	// Command is a template string. Occurrences of "{key}" are replaced
	// with the corresponding call argument before tokenization.
	Command string `json:"command"`

	WorkingDir string  `json:"working_dir,omitempty"`
	Timeout    float64 `json:"timeout,omitempty"`

	// AllowedCommands restricts which executables the template may
	// resolve to. An empty list rejects every command.
	AllowedCommands []string `json:"allowed_commands,omitempty"`

	Env map[string]string `json:"env,omitempty"`
}

// ToolStats summarizes the recorded executions of a single tool.
type ToolStats struct {
	ToolID         uint       `json:"tool_id"`
	ToolName       string     `json:"tool_name"`
	TotalCalls     int64      `json:"total_calls"`
	SuccessCount   int64      `json:"success_count"`
	ErrorCount     int64      `json:"error_count"`
	TimeoutCount   int64      `json:"timeout_count"`
	AvgDurationMs  float64    `json:"avg_duration_ms"`
	LastExecutedAt *time.Time `json:"last_executed_at,omitempty"`
}
