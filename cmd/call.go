package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/toolscout/toolscout/pkg/types"
)

var (
	callCmdArgs      string
	callCmdSummarize bool
	callCmdMaxTokens int
	callCmdHint      string
)

var callCmd = &cobra.Command{
	Use:   "call <tool-name>",
	Short: "Execute a tool by name",
	Long: "Execute a registered tool, passing arguments as a JSON object.\n" +
		"eg: toolscout call calculator --args '{\"operation\": \"add\", \"a\": 2, \"b\": 3}'\n\n" +
		"Use --summarize to let the server compact oversized output before returning it.",
	Args: cobra.ExactArgs(1),
	RunE: runCallTool,
	Annotations: map[string]string{
		"group": string(subCommandGroupBasic),
		"order": "4",
	},
}

func init() {
	callCmd.Flags().StringVarP(&callCmdArgs, "args", "a", "", "JSON object of tool arguments")
	callCmd.Flags().BoolVar(&callCmdSummarize, "summarize", false, "summarize oversized output")
	callCmd.Flags().IntVar(&callCmdMaxTokens, "max-tokens", 0, "output token budget for --summarize (server default if 0)")
	callCmd.Flags().StringVar(&callCmdHint, "hint", "", "tells the summarizer what to focus on")

	rootCmd.AddCommand(callCmd)
}

func runCallTool(cmd *cobra.Command, args []string) error {
	var toolArgs map[string]any
	if strings.TrimSpace(callCmdArgs) != "" {
		if err := json.Unmarshal([]byte(callCmdArgs), &toolArgs); err != nil {
			return fmt.Errorf("--args must be a valid JSON object: %w", err)
		}
	}

	if callCmdSummarize {
		result, err := apiClient.CallToolSummarized(&types.CallToolSummarizedRequest{
			ToolName:  args[0],
			Arguments: toolArgs,
			MaxTokens: callCmdMaxTokens,
			Hint:      callCmdHint,
		})
		if err != nil {
			return fmt.Errorf("failed to call tool '%s': %w", args[0], err)
		}
		printCallResult(cmd, &result.CallToolResult)
		if result.WasSummarized {
			cmd.Println("\n(output was summarized)")
		}
		return nil
	}

	result, err := apiClient.CallTool(&types.CallToolRequest{
		ToolName:  args[0],
		Arguments: toolArgs,
	})
	if err != nil {
		return fmt.Errorf("failed to call tool '%s': %w", args[0], err)
	}
	printCallResult(cmd, result)
	return nil
}

func printCallResult(cmd *cobra.Command, result *types.CallToolResult) {
	cmd.Printf("Status: %s (%d ms)\n\n", result.Status, result.DurationMs)

	if result.Status != types.ExecutionStatusSuccess {
		if result.Error != "" {
			cmd.Println(result.Error)
		}
		return
	}

	var pretty map[string]any
	if err := json.Unmarshal(result.Output, &pretty); err == nil {
		if out, err := json.MarshalIndent(pretty, "", "  "); err == nil {
			cmd.Println(string(out))
			return
		}
	}
	cmd.Println(string(result.Output))
}
