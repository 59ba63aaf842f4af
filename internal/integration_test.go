package internal_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toolscout/toolscout/internal/builtin"
	"github.com/toolscout/toolscout/internal/config"
	"github.com/toolscout/toolscout/internal/embedding"
	"github.com/toolscout/toolscout/internal/service/executor"
	"github.com/toolscout/toolscout/internal/service/registry"
	"github.com/toolscout/toolscout/internal/service/retrieval"
	"github.com/toolscout/toolscout/internal/store"
	"github.com/toolscout/toolscout/pkg/testhelpers"
	"github.com/toolscout/toolscout/pkg/types"
)

type stack struct {
	registry  *registry.Service
	retrieval *retrieval.Service
	executor  *executor.Service
}

func newStack(t *testing.T) *stack {
	t.Helper()
	db := testhelpers.SetupTestDB(t)
	st := store.NewToolStore(db, testhelpers.TestEmbeddingDimension)

	embedder, err := embedding.NewService(&embedding.ServiceConfig{})
	require.NoError(t, err)

	reg, err := registry.NewToolRegistryService(&registry.ServiceConfig{
		DB: db, Store: st, Embedder: embedder,
	})
	require.NoError(t, err)

	ret, err := retrieval.NewRetrievalService(&retrieval.ServiceConfig{
		Store:    st,
		Embedder: embedder,
		Config:   config.RetrievalConfig{DefaultThreshold: 0.7, DefaultLimit: 5, UseHybrid: true, HybridAlpha: 0.7},
	})
	require.NoError(t, err)

	table := executor.NewCallableTable()
	builtin.RegisterAll(table)
	exec, err := executor.NewToolExecutorService(&executor.ServiceConfig{
		Registry:  reg,
		Retrieval: ret,
		Config: config.ExecutionConfig{
			DefaultTimeout:              5 * time.Second,
			TimeoutCeiling:              10 * time.Second,
			PythonExecutorEnabled:       true,
			PythonAllowedModulePrefixes: []string{"builtin."},
			MaxArgBytes:                 262144,
		},
		Callables: table,
	})
	require.NoError(t, err)

	return &stack{registry: reg, retrieval: ret, executor: exec}
}

// The full register-discover-execute loop over an HTTP tool.
func TestRegisterDiscoverExecute(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		city := r.URL.Query().Get("city")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"city": city, "temp_c": 21.5})
	}))
	defer upstream.Close()

	implCode, err := json.Marshal(map[string]any{"url": upstream.URL, "method": "GET"})
	require.NoError(t, err)

	tool, err := s.registry.RegisterTool(ctx, &types.RegisterToolInput{
		Name:               "weather-lookup",
		Description:        "Look up the current weather for a city",
		ImplementationType: string(types.ImplHTTPEndpoint),
		ImplementationCode: implCode,
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {"city": {"type": "string"}},
			"required": ["city"]
		}`),
		Category: "weather",
		Tags:     []string{"external"},
	})
	require.NoError(t, err)
	require.NotZero(t, tool.ID)

	// Discover it with a lexical query (no embedder configured).
	found, err := s.retrieval.FindTool(ctx, &types.FindToolRequest{Query: "weather for a city"})
	require.NoError(t, err)
	require.NotEmpty(t, found.Results)
	assert.Equal(t, "weather-lookup", found.Results[0].Tool.Name)

	// Execute it.
	result, err := s.executor.CallTool(ctx, &types.CallToolRequest{
		ToolName:  "weather-lookup",
		Arguments: map[string]any{"city": "Lisbon"},
	})
	require.NoError(t, err)
	assert.Equal(t, types.ExecutionStatusSuccess, result.Status)

	var output map[string]any
	require.NoError(t, json.Unmarshal(result.Output, &output))
	assert.Equal(t, "Lisbon", output["city"])

	// The call landed in the audit trail.
	records, err := s.registry.ListExecutions(ctx, tool.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, types.ExecutionStatusSuccess, records[0].Status)
}

// Deactivation takes a tool out of rotation without losing it.
func TestDeactivationLifecycle(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	for _, input := range builtin.SeedDefinitions() {
		seed := input
		_, err := s.registry.RegisterTool(ctx, &seed)
		require.NoError(t, err)
	}

	tool, err := s.registry.GetToolByName(ctx, "calculator")
	require.NoError(t, err)

	_, err = s.registry.SetToolActive(ctx, tool.ID, false)
	require.NoError(t, err)

	_, err = s.executor.CallTool(ctx, &types.CallToolRequest{
		ToolName:  "calculator",
		Arguments: map[string]any{"operation": "add", "a": 1, "b": 1},
	})
	require.ErrorIs(t, err, executor.ErrToolInactive)

	// Inactive tools are excluded from discovery by default.
	found, err := s.retrieval.FindTool(ctx, &types.FindToolRequest{Query: "arithmetic calculator"})
	require.NoError(t, err)
	for _, r := range found.Results {
		assert.NotEqual(t, "calculator", r.Tool.Name)
	}

	// Reactivate and verify the tool works again.
	_, err = s.registry.SetToolActive(ctx, tool.ID, true)
	require.NoError(t, err)

	result, err := s.executor.CallTool(ctx, &types.CallToolRequest{
		ToolName:  "calculator",
		Arguments: map[string]any{"operation": "add", "a": 1, "b": 1},
	})
	require.NoError(t, err)
	assert.Equal(t, types.ExecutionStatusSuccess, result.Status)
	assert.JSONEq(t, `{"result":2}`, string(result.Output))
}

// Registry stats aggregate across the whole flow.
func TestStatsReflectActivity(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	for _, input := range builtin.SeedDefinitions() {
		seed := input
		_, err := s.registry.RegisterTool(ctx, &seed)
		require.NoError(t, err)
	}

	_, err := s.executor.CallTool(ctx, &types.CallToolRequest{
		ToolName:  "string-utils",
		Arguments: map[string]any{"operation": "upper", "text": "hello"},
	})
	require.NoError(t, err)

	stats, err := s.registry.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalTools)
	assert.Equal(t, int64(3), stats.ActiveTools)
	assert.Equal(t, int64(1), stats.TotalExecutions)
	assert.Equal(t, int64(3), stats.ByImplementationType[string(types.ImplPythonCallable)])
}
