package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toolscout/toolscout/internal/config"
)

func testConfig() config.SummarizationConfig {
	return config.SummarizationConfig{
		Enabled:       true,
		Model:         "test-model",
		MaxTokens:     1000,
		MaxInputChars: 32000,
	}
}

func TestSerializeOutput(t *testing.T) {
	assert.Equal(t, "", SerializeOutput(nil))
	assert.Equal(t, "hello", SerializeOutput("hello"))
	assert.Equal(t, "hello", SerializeOutput(json.RawMessage(`"hello"`)))
	assert.Equal(t, `{"a":1}`, SerializeOutput(json.RawMessage(`{"a":1}`)))
	assert.Equal(t, `{"a":1}`, SerializeOutput(map[string]any{"a": 1}))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 25, EstimateTokens(strings.Repeat("x", 100)))
}

func TestSummarizeIfNeededPassThrough(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	svc := NewSummarizerService(&ServiceConfig{
		Gateway: config.GatewayConfig{URL: srv.URL, Model: "test-model"},
		Config:  testConfig(),
	})

	text, summarized := svc.SummarizeIfNeeded(context.Background(), "short output", 100, "", "calculator")
	assert.Equal(t, "short output", text)
	assert.False(t, summarized)
	// Within budget means the gateway is never contacted.
	assert.Equal(t, int64(0), calls.Load())
}

func TestSummarizeIfNeededCallsGateway(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var req struct {
			Model       string  `json:"model"`
			MaxTokens   int     `json:"max_tokens"`
			Temperature float32 `json:"temperature"`
			Messages    []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		// Budget of 120 tokens: floored to the minimum summary size.
		assert.Equal(t, 500, req.MaxTokens)
		assert.InDelta(t, 0.1, req.Temperature, 0.001)
		require.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[1].Content, "calculator")
		assert.Contains(t, req.Messages[1].Content, "focusing on: error counts")

		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"the summary"}}]}`)
	}))
	defer srv.Close()

	svc := NewSummarizerService(&ServiceConfig{
		Gateway: config.GatewayConfig{URL: srv.URL, Model: "test-model"},
		Config:  testConfig(),
	})

	big := strings.Repeat("data ", 200)
	text, summarized := svc.SummarizeIfNeeded(context.Background(), big, 120, "error counts", "calculator")
	assert.Equal(t, "the summary", text)
	assert.True(t, summarized)
}

func TestSummarizeIfNeededTruncatesWhenGatewayFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	svc := NewSummarizerService(&ServiceConfig{
		Gateway: config.GatewayConfig{URL: srv.URL, Model: "test-model"},
		Config:  testConfig(),
	})

	big := strings.Repeat("data ", 200)
	text, summarized := svc.SummarizeIfNeeded(context.Background(), big, 100, "", "calculator")
	assert.True(t, summarized)
	assert.True(t, strings.HasSuffix(text, truncationMarker))
	assert.LessOrEqual(t, len(text), 100*charsPerToken+len(truncationMarker))
}

func TestSummarizeIfNeededWithoutGateway(t *testing.T) {
	svc := NewSummarizerService(&ServiceConfig{Config: testConfig()})
	assert.False(t, svc.Enabled())

	big := strings.Repeat("data ", 200)
	text, summarized := svc.SummarizeIfNeeded(context.Background(), big, 100, "", "calculator")
	assert.True(t, summarized)
	assert.True(t, strings.HasSuffix(text, truncationMarker))
}

func TestSummarizeIfNeededDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	svc := NewSummarizerService(&ServiceConfig{
		Gateway: config.GatewayConfig{URL: "http://localhost:1", Model: "m"},
		Config:  cfg,
	})
	assert.False(t, svc.Enabled())

	// Disabled summarization still respects the budget via truncation.
	big := strings.Repeat("data ", 200)
	text, summarized := svc.SummarizeIfNeeded(context.Background(), big, 100, "", "t")
	assert.True(t, summarized)
	assert.Contains(t, text, "[Output truncated due to length]")
}
