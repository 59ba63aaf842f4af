package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toolscout/toolscout/internal/model"
	"github.com/toolscout/toolscout/pkg/types"
)

func httpTool(t *testing.T, serverURL, method string) *model.Tool {
	t.Helper()
	cfg := fmt.Sprintf(`{"url":%q,"method":%q,"headers":{"X-Api-Key":"secret"}}`, serverURL, method)
	tool, err := model.NewTool(&types.RegisterToolInput{
		Name:               "http-tool",
		Description:        "http tool under test",
		ImplementationType: string(types.ImplHTTPEndpoint),
		ImplementationCode: json.RawMessage(cfg),
	})
	require.NoError(t, err)
	return tool
}

func TestHTTPBackendGetSendsQueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "hello", r.URL.Query().Get("message"))
		assert.Equal(t, "[1,2]", r.URL.Query().Get("items"))
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	backend := newHTTPBackend()
	output, err := backend.Execute(context.Background(), httpTool(t, srv.URL, "GET"), map[string]any{
		"message": "hello",
		"items":   []int{1, 2},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(output.(json.RawMessage)))
}

func TestHTTPBackendPostSendsJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"a":1}`, string(body))
		fmt.Fprint(w, `{"sum":1}`)
	}))
	defer srv.Close()

	backend := newHTTPBackend()
	output, err := backend.Execute(context.Background(), httpTool(t, srv.URL, "POST"), map[string]any{"a": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"sum":1}`, string(output.(json.RawMessage)))
}

func TestHTTPBackendWrapsPlainTextResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "just text")
	}))
	defer srv.Close()

	backend := newHTTPBackend()
	output, err := backend.Execute(context.Background(), httpTool(t, srv.URL, "POST"), nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"response": "just text"}, output)
}

func TestHTTPBackendNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream broke", http.StatusBadGateway)
	}))
	defer srv.Close()

	backend := newHTTPBackend()
	_, err := backend.Execute(context.Background(), httpTool(t, srv.URL, "POST"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream broke")
}

func TestHTTPBackendRejectsUnsupportedMethod(t *testing.T) {
	backend := newHTTPBackend()
	_, err := backend.Execute(context.Background(), httpTool(t, "http://example.com", "DELETE"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported HTTP method")
}

func TestStringifyArg(t *testing.T) {
	assert.Equal(t, "plain", stringifyArg("plain"))
	assert.Equal(t, "", stringifyArg(nil))
	assert.Equal(t, "3", stringifyArg(3))
	assert.Equal(t, `{"k":"v"}`, stringifyArg(map[string]string{"k": "v"}))
}
