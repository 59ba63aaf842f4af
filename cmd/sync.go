package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync [source]",
	Short: "Sync tools from configured MCP sources",
	Long: "Trigger catalog discovery on the server: fetch each configured MCP source's tool list\n" +
		"and reconcile it into the registry. Pass a source name to sync only that source.\n" +
		"Syncing requires the admin access token.",
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
	Annotations: map[string]string{
		"group": string(subCommandGroupAdvanced),
		"order": "6",
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	source := ""
	if len(args) > 0 {
		source = args[0]
	}

	resp, err := apiClient.Sync(source)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	for _, summary := range resp.Summaries {
		cmd.Printf(
			"%s: %d fetched, %d created, %d updated, %d deactivated\n",
			summary.Source, summary.Fetched, summary.Created, summary.Updated, summary.Deactivated,
		)
		for _, e := range summary.Errors {
			cmd.Printf("  error: %s\n", e)
		}
	}
	return nil
}
