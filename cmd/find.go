package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/toolscout/toolscout/pkg/types"
)

var (
	findCmdLimit     int
	findCmdThreshold float64
	findCmdCategory  string
)

var findCmd = &cobra.Command{
	Use:   "find <query>",
	Short: "Find tools with a natural-language query",
	Long: "Search the registry for tools matching a natural-language description of what you need.\n" +
		"eg: toolscout find \"convert a timestamp to a human readable date\"",
	Args: cobra.ExactArgs(1),
	RunE: runFindTool,
	Annotations: map[string]string{
		"group": string(subCommandGroupBasic),
		"order": "3",
	},
}

func init() {
	findCmd.Flags().IntVar(&findCmdLimit, "limit", 0, "maximum number of results (server default if 0)")
	findCmd.Flags().Float64Var(
		&findCmdThreshold,
		"threshold",
		-1,
		"minimum semantic similarity between 0 and 1 (server default if unset)",
	)
	findCmd.Flags().StringVar(&findCmdCategory, "category", "", "restrict results to one category")

	rootCmd.AddCommand(findCmd)
}

func runFindTool(cmd *cobra.Command, args []string) error {
	req := &types.FindToolRequest{
		Query:    args[0],
		Limit:    findCmdLimit,
		Category: findCmdCategory,
	}
	if findCmdThreshold >= 0 {
		threshold := findCmdThreshold
		req.Threshold = &threshold
	}

	resp, err := apiClient.FindTool(req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if resp.Degraded {
		cmd.Println("NOTE: semantic search is unavailable, showing lexical matches only.")
		cmd.Println()
	}
	if len(resp.Results) == 0 {
		cmd.Println("No matching tools found.")
		return nil
	}

	for i, result := range resp.Results {
		cmd.Printf("%d. %s (score %.2f)\n", i+1, result.Tool.Name, result.Score)
		cmd.Printf("   %s\n", result.Tool.Description)
		if result.Tool.Category != "" {
			cmd.Printf("   category: %s\n", result.Tool.Category)
		}
		if len(result.Tool.Tags) > 0 {
			cmd.Printf("   tags: %s\n", strings.Join(result.Tool.Tags, ", "))
		}
		cmd.Println()
	}
	cmd.Printf("Run 'toolscout usage <name>' to see a tool's input parameters.\n")
	return nil
}
