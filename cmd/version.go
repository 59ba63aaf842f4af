package cmd

import (
	"github.com/spf13/cobra"
	"github.com/toolscout/toolscout/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the toolscout version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("toolscout " + version.Version)
	},
	Annotations: map[string]string{
		"group": string(subCommandGroupAdvanced),
		"order": "9",
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
