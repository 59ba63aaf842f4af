package types

// FindToolRequest is the request body for semantic tool discovery.
type FindToolRequest struct {
	// Query is natural-language text describing the capability the
	// caller is looking for. 1 to 2000 characters.
	Query string `json:"query"`

	// Limit caps the number of results (1 to 100). Zero means the
	// server default.
	Limit int `json:"limit,omitempty"`

	// Threshold is the minimum semantic similarity in [0, 1]. Nil
	// means the server default.
	Threshold *float64 `json:"threshold,omitempty"`

	Category string `json:"category,omitempty"`

	// UseHybrid selects blended vector + lexical ranking. Nil means
	// the server default (enabled).
	UseHybrid *bool `json:"use_hybrid,omitempty"`
}

// ScoredTool is one retrieval result: a tool plus its relevance
// scores for the query.
type ScoredTool struct {
	Tool Tool `json:"tool"`

	// Score is the final ranking score: the blended score in hybrid
	// mode, otherwise the semantic score.
	Score float64 `json:"score"`

	// SemanticScore is 1 - cosine distance, clamped to [0, 1]. Zero
	// when the result came from the lexical leg only.
	SemanticScore float64 `json:"semantic_score"`

	// LexicalScore is the normalized full-text rank in [0, 1].
	LexicalScore float64 `json:"lexical_score"`
}

// FindToolResponse is the response body for semantic tool discovery.
type FindToolResponse struct {
	Results []ScoredTool `json:"results"`
	Count   int          `json:"count"`
	Query   string       `json:"query"`

	// SearchMode reports how the results were ranked: "hybrid",
	// "semantic" or "lexical".
	SearchMode string `json:"search_mode"`

	// Degraded is true when the embedding backend was unavailable and
	// the server fell back to pure lexical ranking.
	Degraded bool `json:"degraded,omitempty"`
}

// Search modes reported in FindToolResponse.
const (
	SearchModeHybrid   = "hybrid"
	SearchModeSemantic = "semantic"
	SearchModeLexical  = "lexical"
)

// ListToolsRequest is the request body for the paginated tool list.
type ListToolsRequest struct {
	Category   string `json:"category,omitempty"`
	ActiveOnly *bool  `json:"active_only,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

// ListToolsResponse is the response body for the paginated tool list.
type ListToolsResponse struct {
	Tools  []Tool `json:"tools"`
	Total  int64  `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// RegistryStats is the aggregate view of the catalog, served by the
// stats resource and the admin stats endpoint.
type RegistryStats struct {
	TotalTools      int64 `json:"total_tools"`
	ActiveTools     int64 `json:"active_tools"`
	IndexedTools    int64 `json:"indexed_tools"`
	TotalExecutions int64 `json:"total_executions"`

	ByCategory           map[string]int64 `json:"by_category"`
	ByImplementationType map[string]int64 `json:"by_implementation_type"`
}
