package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toolscout/toolscout/internal/builtin"
	"github.com/toolscout/toolscout/internal/config"
	"github.com/toolscout/toolscout/internal/embedding"
	"github.com/toolscout/toolscout/internal/mcpserver"
	"github.com/toolscout/toolscout/internal/service/executor"
	"github.com/toolscout/toolscout/internal/service/registry"
	"github.com/toolscout/toolscout/internal/service/retrieval"
	"github.com/toolscout/toolscout/internal/store"
	"github.com/toolscout/toolscout/pkg/testhelpers"
	"github.com/toolscout/toolscout/pkg/types"
)

const testAdminKey = "test-admin-key-123"

func newTestServer(t *testing.T) *Server {
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

	for _, input := range builtin.SeedDefinitions() {
		seed := input
		_, err := reg.RegisterTool(context.Background(), &seed)
		require.NoError(t, err)
	}

	facade, err := mcpserver.NewMCPFacade(&mcpserver.ServiceConfig{
		Registry: reg, Retrieval: ret, Executor: exec,
	})
	require.NoError(t, err)

	srv, err := NewServer(&ServerOptions{
		Port:             "0",
		DB:               db,
		Embedder:         embedder,
		RegistryService:  reg,
		RetrievalService: ret,
		ExecutorService:  exec,
		Facade:           facade,
		AdminAPIKey:      testAdminKey,
		MaxBodyBytes:     1 << 20,
	})
	require.NoError(t, err)
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path string, body any, adminKey string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if adminKey != "" {
		req.Header.Set("Authorization", "Bearer "+adminKey)
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestProbes(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/live", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/ready", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["database"])
	assert.Equal(t, "not_configured", health["embedding"])
}

func TestFindToolEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/mcp/find_tool", types.FindToolRequest{
		Query: "arithmetic calculator",
	}, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp types.FindToolResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "calculator", resp.Results[0].Tool.Name)
	assert.False(t, resp.Degraded)
}

func TestFindToolRejectsEmptyQuery(t *testing.T) {
	srv := newTestServer(t)
	w := doJSON(t, srv, http.MethodPost, "/mcp/find_tool", types.FindToolRequest{Query: "   "}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCallToolEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/mcp/call_tool", types.CallToolRequest{
		ToolName:  "calculator",
		Arguments: map[string]any{"operation": "add", "a": 2, "b": 3},
	}, "")
	require.Equal(t, http.StatusOK, w.Code)

	var result types.CallToolResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, types.ExecutionStatusSuccess, result.Status)
	assert.JSONEq(t, `{"result":5}`, string(result.Output))
}

func TestCallToolUnknownReturnsSuggestions(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/mcp/call_tool", types.CallToolRequest{
		ToolName: "calculator v2",
	}, "")
	require.Equal(t, http.StatusNotFound, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp["suggestions"], "calculator")
}

func TestCallToolValidationFailure(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/mcp/call_tool", types.CallToolRequest{
		ToolName:  "calculator",
		Arguments: map[string]any{"operation": "add", "a": 1},
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCallToolSummarizedWithoutSummarizer(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/mcp/call_tool_summarized", types.CallToolSummarizedRequest{
		ToolName:  "calculator",
		Arguments: map[string]any{"operation": "add", "a": 1, "b": 1},
	}, "")
	require.Equal(t, http.StatusOK, w.Code)

	var result types.CallToolSummarizedResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, types.ExecutionStatusSuccess, result.Status)
	assert.False(t, result.WasSummarized)
}

func TestAdminRequiresKey(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/admin/stats", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/admin/stats", nil, "wrong-key-entirely")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/admin/stats", nil, testAdminKey)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminToolLifecycle(t *testing.T) {
	srv := newTestServer(t)

	// Register.
	w := doJSON(t, srv, http.MethodPost, "/admin/tools", types.RegisterToolInput{
		Name:               "http-echo",
		Description:        "echoes requests back",
		ImplementationType: string(types.ImplHTTPEndpoint),
		ImplementationCode: json.RawMessage(`{"url":"http://example.com/echo"}`),
		Category:           "testing",
	}, testAdminKey)
	require.Equal(t, http.StatusCreated, w.Code)
	var created types.Tool
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotZero(t, created.ID)

	// Duplicate name conflicts.
	w = doJSON(t, srv, http.MethodPost, "/admin/tools", types.RegisterToolInput{
		Name:               "http-echo",
		Description:        "duplicate",
		ImplementationType: string(types.ImplHTTPEndpoint),
		ImplementationCode: json.RawMessage(`{"url":"http://example.com/echo"}`),
	}, testAdminKey)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Update.
	newDesc := "echoes HTTP requests back verbatim"
	w = doJSON(t, srv, http.MethodPut, "/admin/tools/"+itoa(created.ID), types.UpdateToolInput{
		Description: &newDesc,
	}, testAdminKey)
	require.Equal(t, http.StatusOK, w.Code)
	var updated types.Tool
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, newDesc, updated.Description)

	// Deactivate, then calling it conflicts.
	w = doJSON(t, srv, http.MethodPost, "/admin/tools/"+itoa(created.ID)+"/deactivate", nil, testAdminKey)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, srv, http.MethodPost, "/mcp/call_tool", types.CallToolRequest{ToolName: "http-echo"}, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	// Reactivate and delete.
	w = doJSON(t, srv, http.MethodPost, "/admin/tools/"+itoa(created.ID)+"/activate", nil, testAdminKey)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, srv, http.MethodDelete, "/admin/tools/"+itoa(created.ID), nil, testAdminKey)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, srv, http.MethodGet, "/admin/tools/"+itoa(created.ID), nil, testAdminKey)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminExecutionsLog(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/mcp/call_tool", types.CallToolRequest{
		ToolName:  "calculator",
		Arguments: map[string]any{"operation": "add", "a": 1, "b": 2},
	}, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/admin/executions", nil, testAdminKey)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Executions []types.ExecutionRecord `json:"executions"`
		Count      int                     `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "calculator", resp.Executions[0].ToolName)
}

func TestSyncWithoutDiscovery(t *testing.T) {
	srv := newTestServer(t)
	w := doJSON(t, srv, http.MethodPost, "/admin/mcp/sync", nil, testAdminKey)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
