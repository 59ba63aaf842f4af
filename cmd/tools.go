package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/toolscout/toolscout/pkg/types"
)

var (
	toolsCmdCategory   string
	toolsCmdActiveOnly bool
	toolsCmdLimit      int
	toolsCmdOffset     int
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List registered tools",
	RunE:  runListTools,
	Annotations: map[string]string{
		"group": string(subCommandGroupBasic),
		"order": "5",
	},
}

func init() {
	toolsCmd.Flags().StringVar(&toolsCmdCategory, "category", "", "only list tools in this category")
	toolsCmd.Flags().BoolVar(&toolsCmdActiveOnly, "active-only", false, "only list active tools")
	toolsCmd.Flags().IntVar(&toolsCmdLimit, "limit", 0, "maximum number of tools to list (server default if 0)")
	toolsCmd.Flags().IntVar(&toolsCmdOffset, "offset", 0, "number of tools to skip")

	rootCmd.AddCommand(toolsCmd)
}

func runListTools(cmd *cobra.Command, args []string) error {
	req := &types.ListToolsRequest{
		Category: toolsCmdCategory,
		Limit:    toolsCmdLimit,
		Offset:   toolsCmdOffset,
	}
	if toolsCmdActiveOnly {
		active := true
		req.ActiveOnly = &active
	}

	resp, err := apiClient.ListTools(req)
	if err != nil {
		return fmt.Errorf("failed to list tools: %w", err)
	}

	if len(resp.Tools) == 0 {
		cmd.Println("No tools registered.")
		return nil
	}

	for _, t := range resp.Tools {
		state := "active"
		if !t.IsActive {
			state = "inactive"
		}
		cmd.Printf("%d. %s [%s, %s]\n", t.ID, t.Name, t.ImplementationType, state)
		cmd.Printf("   %s\n", t.Description)
	}
	cmd.Printf("\nShowing %d of %d tools\n", len(resp.Tools), resp.Total)
	return nil
}
