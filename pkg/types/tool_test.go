package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestValidateImplementationType(t *testing.T) {
	t.Parallel()

	valid := []string{
		"PYTHON_CALLABLE", "HTTP_ENDPOINT", "MCP_SERVER", "LLM_GATEWAY", "COMMAND_LINE",
	}
	for _, v := range valid {
		it, err := ValidateImplementationType(v)
		if err != nil {
			t.Errorf("Expected %s to be valid, got error: %v", v, err)
		}
		if string(it) != v {
			t.Errorf("Expected %s, got %s", v, it)
		}
	}

	invalid := []string{"", "python_callable", "HTTP", "GRPC_ENDPOINT", "LLM"}
	for _, v := range invalid {
		if _, err := ValidateImplementationType(v); err == nil {
			t.Errorf("Expected %q to be invalid, got no error", v)
		}
	}
}

func TestValidateToolName(t *testing.T) {
	t.Parallel()

	valid := []string{
		"calculator",
		"github:create_issue",
		"web-search",
		"string_reverse",
		"Tool123",
		"a",
		strings.Repeat("x", 255),
	}
	for _, name := range valid {
		if err := ValidateToolName(name); err != nil {
			t.Errorf("Expected %q to be valid, got error: %v", name, err)
		}
	}

	invalid := []string{
		"",
		"has space",
		"semi;colon",
		"slash/name",
		"dot.name",
		"tab\tname",
		strings.Repeat("x", 256),
	}
	for _, name := range invalid {
		if err := ValidateToolName(name); err == nil {
			t.Errorf("Expected %q to be invalid, got no error", name)
		}
	}
}

func TestToolJSONRoundTrip(t *testing.T) {
	t.Parallel()

	tool := Tool{
		ID:                 42,
		Name:               "calculator",
		Description:        "Performs basic arithmetic",
		Version:            "1.0.0",
		ImplementationType: ImplPythonCallable,
		ImplementationCode: json.RawMessage(`"builtin.calculator"`),
		Tags:               []string{"math", "arithmetic"},
		Category:           "math",
		IsActive:           true,
		HasEmbedding:       true,
	}

	data, err := json.Marshal(tool)
	if err != nil {
		t.Fatalf("Failed to marshal Tool: %v", err)
	}

	var decoded Tool
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal Tool: %v", err)
	}

	if decoded.Name != tool.Name {
		t.Errorf("Expected Name %q, got %q", tool.Name, decoded.Name)
	}
	if decoded.ImplementationType != ImplPythonCallable {
		t.Errorf("Expected ImplementationType %s, got %s", ImplPythonCallable, decoded.ImplementationType)
	}
	if string(decoded.ImplementationCode) != `"builtin.calculator"` {
		t.Errorf("Expected ImplementationCode to round-trip, got %s", decoded.ImplementationCode)
	}
	if len(decoded.Tags) != 2 {
		t.Errorf("Expected 2 tags, got %d", len(decoded.Tags))
	}
	if !decoded.HasEmbedding {
		t.Error("Expected HasEmbedding to survive the round trip")
	}
}

func TestRegisterToolInputDefaults(t *testing.T) {
	t.Parallel()

	jsonData := `{"name":"fetch","description":"Fetches a URL","implementation_type":"HTTP_ENDPOINT","implementation_code":{"url":"https://api.example.com/run"}}`

	var input RegisterToolInput
	if err := json.Unmarshal([]byte(jsonData), &input); err != nil {
		t.Fatalf("Failed to unmarshal RegisterToolInput: %v", err)
	}

	if input.AutoEmbed != nil {
		t.Error("Expected AutoEmbed to be nil when missing from JSON")
	}
	if input.Version != "" {
		t.Errorf("Expected empty Version, got %s", input.Version)
	}

	var cfg HTTPEndpointConfig
	if err := json.Unmarshal(input.ImplementationCode, &cfg); err != nil {
		t.Fatalf("Failed to decode implementation code: %v", err)
	}
	if cfg.URL != "https://api.example.com/run" {
		t.Errorf("Expected config URL to decode, got %s", cfg.URL)
	}
	if cfg.Method != "" {
		t.Errorf("Expected Method to default empty, got %s", cfg.Method)
	}
}

func TestCommandLineConfigDecoding(t *testing.T) {
	t.Parallel()

	jsonData := `{"command":"echo {message}","working_dir":"/tmp","timeout":5,"allowed_commands":["echo","date"],"env":{"LC_ALL":"C"}}`

	var cfg CommandLineConfig
	if err := json.Unmarshal([]byte(jsonData), &cfg); err != nil {
		t.Fatalf("Failed to unmarshal CommandLineConfig: %v", err)
	}

	if cfg.Command != "echo {message}" {
		t.Errorf("Expected command template, got %s", cfg.Command)
	}
	if cfg.Timeout != 5 {
		t.Errorf("Expected timeout 5, got %v", cfg.Timeout)
	}
	if len(cfg.AllowedCommands) != 2 || cfg.AllowedCommands[0] != "echo" {
		t.Errorf("Expected allowed commands [echo date], got %v", cfg.AllowedCommands)
	}
	if cfg.Env["LC_ALL"] != "C" {
		t.Errorf("Expected env LC_ALL=C, got %v", cfg.Env)
	}
}
