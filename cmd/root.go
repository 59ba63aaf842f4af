// Package cmd implements the toolscout CLI.
package cmd

import (
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"github.com/toolscout/toolscout/client"
)

// subCommandGroup buckets subcommands in the help output.
type subCommandGroup string

const (
	subCommandGroupBasic    subCommandGroup = "basic"
	subCommandGroupAdvanced subCommandGroup = "advanced"
)

const (
	// RegistryURLEnvVar configures the server the client-side commands
	// talk to.
	RegistryURLEnvVar = "TOOLSCOUT_REGISTRY_URL"

	// AccessTokenEnvVar carries the admin access token for commands
	// that hit the admin API.
	AccessTokenEnvVar = "TOOLSCOUT_ACCESS_TOKEN"

	registryURLDefault = "http://127.0.0.1:8080"
)

var (
	rootCmdRegistryURL string
	rootCmdAccessToken string

	// apiClient is shared by all client-side subcommands. It is
	// initialized before any subcommand runs.
	apiClient *client.Client
)

const asciiArt = `
 _              _                 _
| |_ ___  ___ | |___ __ ___ _  _| |_
|  _/ _ \/ _ \| / __/ _/ _ \ || |  _|
 \__\___/\___/|_|___/\__\___/\_,_|\__|
`

var rootCmd = &cobra.Command{
	Use:   "toolscout",
	Short: "toolscout is a tool registry and discovery gateway for LLM agents",
	Long: "toolscout maintains a searchable registry of tools, lets agents discover them with\n" +
		"natural-language queries and executes them across HTTP, command, MCP, gateway and\n" +
		"built-in backends.\n\n" +
		"Run 'toolscout start' to launch the server, then use the other commands to manage\n" +
		"and query it.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		registryURL := rootCmdRegistryURL
		if registryURL == "" {
			registryURL = os.Getenv(RegistryURLEnvVar)
		}
		if registryURL == "" {
			registryURL = registryURLDefault
		}
		accessToken := rootCmdAccessToken
		if accessToken == "" {
			accessToken = os.Getenv(AccessTokenEnvVar)
		}
		apiClient = client.NewClient(registryURL, accessToken, &http.Client{})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&rootCmdRegistryURL,
		"registry",
		"",
		"Base URL of the toolscout server (overrides env var "+RegistryURLEnvVar+")",
	)
	rootCmd.PersistentFlags().StringVar(
		&rootCmdAccessToken,
		"access-token",
		"",
		"Admin access token for admin commands (overrides env var "+AccessTokenEnvVar+")",
	)
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}
