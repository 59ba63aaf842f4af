package cmd

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/toolscout/toolscout/pkg/types"
)

var usageCmd = &cobra.Command{
	Use:   "usage <name>",
	Short: "Get usage information for a tool",
	Args:  cobra.ExactArgs(1),
	RunE:  runGetToolUsage,
	Annotations: map[string]string{
		"group": string(subCommandGroupBasic),
		"order": "6",
	},
}

func init() {
	rootCmd.AddCommand(usageCmd)
}

// findToolByName resolves a tool through the public list endpoint,
// paging until the name matches.
func findToolByName(name string) (*types.Tool, error) {
	const pageSize = 100
	for offset := 0; ; offset += pageSize {
		resp, err := apiClient.ListTools(&types.ListToolsRequest{Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		for i := range resp.Tools {
			if resp.Tools[i].Name == name {
				return &resp.Tools[i], nil
			}
		}
		if offset+len(resp.Tools) >= int(resp.Total) || len(resp.Tools) == 0 {
			return nil, fmt.Errorf("tool '%s' is not registered", name)
		}
	}
}

func runGetToolUsage(cmd *cobra.Command, args []string) error {
	t, err := findToolByName(args[0])
	if err != nil {
		return fmt.Errorf("failed to get tool '%s': %w", args[0], err)
	}

	cmd.Println(t.Name)
	cmd.Println(t.Description)

	var schema struct {
		Properties map[string]any `json:"properties"`
		Required   []string       `json:"required"`
	}
	if len(t.InputSchema) > 0 {
		if err := json.Unmarshal(t.InputSchema, &schema); err != nil {
			return fmt.Errorf("failed to parse the tool's input schema: %w", err)
		}
	}

	if len(schema.Properties) == 0 {
		cmd.Println("This tool does not require any input parameters.")
		return nil
	}

	cmd.Println()
	cmd.Println("Input Parameters:")
	for k, v := range schema.Properties {
		requiredOrOptional := "optional"
		if slices.Contains(schema.Required, k) {
			requiredOrOptional = "required"
		}

		boundary := strings.Repeat("=", len(k)+len(requiredOrOptional)+20)

		cmd.Println(boundary)
		cmd.Printf("%s (%s)\n", k, requiredOrOptional)

		j, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			// Simply print the raw object if we fail to marshal it
			cmd.Println(v)
		} else {
			cmd.Println(string(j))
		}
		cmd.Println(boundary)

		cmd.Println()
	}

	return nil
}
