package types

import "fmt"

// McpSource describes one upstream catalog the discovery service
// mirrors into the registry. Sources are declared via configuration.
type McpSource struct {
	// Name becomes the namespace prefix of discovered tools
	// ("{name}:{remote_name}"). Same charset rules as tool names,
	// minus the colon.
	Name string `json:"name" yaml:"name"`

	// URL is the upstream MCP server's streamable HTTP endpoint, or
	// the gateway's MCP proxy endpoint for gateway sources.
	URL string `json:"url" yaml:"url"`

	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Category and Tags are defaults applied to discovered tools that
	// carry none of their own.
	Category string   `json:"category,omitempty" yaml:"category,omitempty"`
	Tags     []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// BearerToken, when set, is sent as an Authorization header on
	// every request to the source.
	BearerToken string `json:"bearer_token,omitempty" yaml:"bearer_token,omitempty"`
}

// Validate checks that the source can serve as a discovery upstream.
func (s McpSource) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("source name cannot be empty")
	}
	if err := ValidateToolName(s.Name); err != nil {
		return fmt.Errorf("invalid source name: %w", err)
	}
	for _, r := range s.Name {
		if r == ':' {
			return fmt.Errorf("source name %q cannot contain ':'", s.Name)
		}
	}
	if s.URL == "" {
		return fmt.Errorf("source %s: url cannot be empty", s.Name)
	}
	return nil
}

// SyncRequest is the request body for triggering discovery.
type SyncRequest struct {
	// Source restricts the run to one configured source. Empty means
	// all sources.
	Source string `json:"source,omitempty"`
}

// SourceSyncSummary is the per-source outcome of one discovery run.
type SourceSyncSummary struct {
	Source      string   `json:"source"`
	Fetched     int      `json:"fetched"`
	Created     int      `json:"created"`
	Updated     int      `json:"updated"`
	Deactivated int      `json:"deactivated"`
	Errors      []string `json:"errors"`
}

// SyncResponse is the response body for a discovery run: one summary
// per source, in the order the sources were processed.
type SyncResponse struct {
	Summaries []SourceSyncSummary `json:"summaries"`
}
