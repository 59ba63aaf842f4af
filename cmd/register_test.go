package cmd

import (
	"encoding/json"
	"testing"

	"github.com/spf13/afero"
	"github.com/toolscout/toolscout/pkg/testhelpers"
)

func TestReadToolDefinitionsYAMLList(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	content := `tools:
  - name: weather-lookup
    description: Look up the current weather for a city
    implementation_type: HTTP_ENDPOINT
    implementation_code:
      url: https://weather.example.com/current
      method: GET
    input_schema:
      type: object
      properties:
        city:
          type: string
      required:
        - city
    category: weather
    tags:
      - external
  - name: echo-command
    description: Echo back the given text
    implementation_type: COMMAND_LINE
    implementation_code:
      command_template: "echo {text}"
`
	testhelpers.AssertNoError(t, afero.WriteFile(fs, "/tools.yaml", []byte(content), 0o644))

	inputs, err := readToolDefinitions(fs, "/tools.yaml")
	testhelpers.AssertNoError(t, err)
	if len(inputs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(inputs))
	}

	if inputs[0].Name != "weather-lookup" {
		t.Errorf("expected first tool 'weather-lookup', got %s", inputs[0].Name)
	}
	if inputs[0].ImplementationType != "HTTP_ENDPOINT" {
		t.Errorf("unexpected implementation type %s", inputs[0].ImplementationType)
	}

	var implCode map[string]any
	testhelpers.AssertNoError(t, json.Unmarshal(inputs[0].ImplementationCode, &implCode))
	if implCode["url"] != "https://weather.example.com/current" {
		t.Errorf("unexpected implementation code: %v", implCode)
	}

	var schema map[string]any
	testhelpers.AssertNoError(t, json.Unmarshal(inputs[0].InputSchema, &schema))
	if schema["type"] != "object" {
		t.Errorf("unexpected input schema: %v", schema)
	}

	if inputs[1].Name != "echo-command" {
		t.Errorf("expected second tool 'echo-command', got %s", inputs[1].Name)
	}
}

func TestReadToolDefinitionsSingleJSON(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	content := `{
  "name": "calculator",
  "description": "arithmetic",
  "implementation_type": "PYTHON_CALLABLE",
  "implementation_code": "builtin.calculator"
}`
	testhelpers.AssertNoError(t, afero.WriteFile(fs, "/tool.json", []byte(content), 0o644))

	inputs, err := readToolDefinitions(fs, "/tool.json")
	testhelpers.AssertNoError(t, err)
	if len(inputs) != 1 {
		t.Fatalf("expected 1 definition, got %d", len(inputs))
	}
	if inputs[0].Name != "calculator" {
		t.Errorf("expected tool 'calculator', got %s", inputs[0].Name)
	}
	if string(inputs[0].ImplementationCode) != `"builtin.calculator"` {
		t.Errorf("unexpected implementation code: %s", inputs[0].ImplementationCode)
	}
}

func TestReadToolDefinitionsMissingFile(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	_, err := readToolDefinitions(fs, "/does-not-exist.yaml")
	testhelpers.AssertError(t, err)
}

func TestReadToolDefinitionsNoTools(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	testhelpers.AssertNoError(t, afero.WriteFile(fs, "/empty.yaml", []byte("description: no name here\n"), 0o644))

	_, err := readToolDefinitions(fs, "/empty.yaml")
	testhelpers.AssertError(t, err)
}

func TestReadToolDefinitionsInvalidYAML(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	testhelpers.AssertNoError(t, afero.WriteFile(fs, "/bad.yaml", []byte(":\n  - ["), 0o644))

	_, err := readToolDefinitions(fs, "/bad.yaml")
	testhelpers.AssertError(t, err)
}

func TestNormalizeYAMLNestedKeys(t *testing.T) {
	t.Parallel()

	in := map[any]any{
		"outer": map[any]any{"inner": []any{map[any]any{"k": "v"}}},
	}
	out, err := json.Marshal(normalizeYAML(in))
	testhelpers.AssertNoError(t, err)
	if string(out) != `{"outer":{"inner":[{"k":"v"}]}}` {
		t.Errorf("unexpected normalized output: %s", out)
	}
}
