package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/toolscout/toolscout/pkg/types"
	"gopkg.in/yaml.v3"
)

var registerCmdFilePath string

// cmdFS is the filesystem commands read definition files from.
// Swapped for an in-memory FS in tests.
var cmdFS = afero.NewOsFs()

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register tools from a definition file",
	Long: "Register one or more tools from a YAML or JSON definition file.\n" +
		"The file contains either a single tool definition or a list under a 'tools' key:\n\n" +
		"    tools:\n" +
		"      - name: weather-lookup\n" +
		"        description: Look up the current weather for a city\n" +
		"        implementation_type: HTTP_ENDPOINT\n" +
		"        implementation_code:\n" +
		"          url: https://weather.example.com/current\n" +
		"          method: GET\n\n" +
		"Registering requires the admin access token.",
	RunE: runRegisterTools,
	Annotations: map[string]string{
		"group": string(subCommandGroupBasic),
		"order": "2",
	},
}

func init() {
	registerCmd.Flags().StringVarP(
		&registerCmdFilePath,
		"file",
		"f",
		"",
		"Path to a YAML or JSON tool definition file",
	)
	_ = registerCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(registerCmd)
}

// toolDefinition is the YAML shape of one tool in a definition file.
// Nested structures are re-marshaled to JSON for the wire type.
type toolDefinition struct {
	Name               string         `yaml:"name"`
	Description        string         `yaml:"description"`
	Version            string         `yaml:"version"`
	ImplementationType string         `yaml:"implementation_type"`
	ImplementationCode any            `yaml:"implementation_code"`
	InputSchema        any            `yaml:"input_schema"`
	Tags               []string       `yaml:"tags"`
	Category           string         `yaml:"category"`
	Metadata           map[string]any `yaml:"metadata"`
}

func (d *toolDefinition) toInput() (*types.RegisterToolInput, error) {
	input := &types.RegisterToolInput{
		Name:               d.Name,
		Description:        d.Description,
		Version:            d.Version,
		ImplementationType: d.ImplementationType,
		Tags:               d.Tags,
		Category:           d.Category,
		Metadata:           d.Metadata,
	}
	if d.ImplementationCode != nil {
		raw, err := json.Marshal(normalizeYAML(d.ImplementationCode))
		if err != nil {
			return nil, fmt.Errorf("invalid implementation_code for tool '%s': %w", d.Name, err)
		}
		input.ImplementationCode = raw
	}
	if d.InputSchema != nil {
		raw, err := json.Marshal(normalizeYAML(d.InputSchema))
		if err != nil {
			return nil, fmt.Errorf("invalid input_schema for tool '%s': %w", d.Name, err)
		}
		input.InputSchema = raw
	}
	return input, nil
}

// normalizeYAML rewrites map[any]any keys (which yaml.v3 can produce
// for nested mappings) into string keys so the value is JSON-encodable.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeYAML(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeYAML(item)
		}
		return out
	default:
		return v
	}
}

// readToolDefinitions parses a definition file. YAML is a superset of
// JSON, so a single decoder covers both formats.
func readToolDefinitions(fs afero.Fs, filePath string) ([]types.RegisterToolInput, error) {
	data, err := afero.ReadFile(fs, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition file %s: %w", filePath, err)
	}

	var defs []toolDefinition
	var wrapper struct {
		Tools []toolDefinition `yaml:"tools"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err == nil && len(wrapper.Tools) > 0 {
		defs = wrapper.Tools
	} else {
		var single toolDefinition
		if err := yaml.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("failed to parse definition file: %w", err)
		}
		if single.Name == "" {
			return nil, fmt.Errorf("definition file %s contains no tool definitions", filePath)
		}
		defs = []toolDefinition{single}
	}

	inputs := make([]types.RegisterToolInput, 0, len(defs))
	for i := range defs {
		input, err := defs[i].toInput()
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, *input)
	}
	return inputs, nil
}

func runRegisterTools(cmd *cobra.Command, args []string) error {
	inputs, err := readToolDefinitions(cmdFS, registerCmdFilePath)
	if err != nil {
		return err
	}

	var failed int
	for i := range inputs {
		tool, err := apiClient.RegisterTool(&inputs[i])
		if err != nil {
			cmd.Printf("Failed to register tool '%s': %v\n", inputs[i].Name, err)
			failed++
			continue
		}
		cmd.Printf("Registered tool '%s' (id %d)\n", tool.Name, tool.ID)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d tools failed to register", failed, len(inputs))
	}
	cmd.Printf("\n%d tool(s) registered successfully\n", len(inputs))
	return nil
}
