package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

var (
	// ErrNotConfigured means no embedding backend was set up; callers
	// degrade to lexical search.
	ErrNotConfigured = errors.New("embedding service is not configured")

	// ErrShape means the backend answered 2xx but the payload did not
	// match any accepted response shape, or count/dimension were off.
	ErrShape = errors.New("unexpected embedding response shape")
)

// Client produces dense vectors for text. Implementations must be safe
// for concurrent use.
type Client interface {
	// Embed returns the vector for one text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Health checks backend reachability.
	Health(ctx context.Context) error

	// Dimension is the vector length this client is configured for.
	Dimension() int
}

// ClientConfig configures the HTTP embedding client.
type ClientConfig struct {
	// BaseURL of an OpenAI-compatible service exposing /v1/embeddings.
	BaseURL string
	// APIKey is sent as a bearer token. Never logged.
	APIKey    string
	Model     string
	Dimension int
	Timeout   time.Duration
	// MaxRetries bounds attempts per request, transient failures only.
	MaxRetries int
}

// HTTPClient talks to an OpenAI-compatible embeddings endpoint. The
// ecosystem around such endpoints is loose about the response payload,
// so the decoder accepts every shape seen in the wild:
//
//	{"data": [{"embedding": [...], "index": 0}, ...]}
//	{"embeddings": [[...], ...]}
//	{"embedding": [...]}
//	[[...], ...]
type HTTPClient struct {
	baseURL    string
	apiKey     string
	model      string
	dimension  int
	maxRetries int
	httpClient *http.Client
}

// NewHTTPClient builds a client from config. The base URL is required.
func NewHTTPClient(cfg *ClientConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Dimension < 1 {
		return nil, fmt.Errorf("invalid embedding dimension: %d", cfg.Dimension)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimension:  cfg.Dimension,
		maxRetries: maxRetries,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (c *HTTPClient) Dimension() int {
	return c.dimension
}

// Embed requests a single vector. The input is sent as a plain string,
// the form every compatible backend accepts for single texts.
func (c *HTTPClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.request(ctx, text, 1)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch requests one vector per text in one call. Backends that
// refuse array input (the error body mentions "batch" or "array") are
// retried text by text.
func (c *HTTPClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	vecs, err := c.request(ctx, texts, len(texts))
	if err != nil {
		var reqErr *requestError
		if len(texts) > 1 && errors.As(err, &reqErr) && reqErr.batchRefusal() {
			log.Printf("[WARN] embedding backend refused batch input, falling back to sequential requests\n")
			return c.embedSequential(ctx, texts)
		}
		return nil, err
	}
	return vecs, nil
}

// Health checks that the backend answers. /v1/models is the cheapest
// endpoint every OpenAI-compatible service exposes.
func (c *HTTPClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/models", nil)
	if err != nil {
		return err
	}
	c.setAuth(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("embedding service unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("embedding service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) embedSequential(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("sequential embedding failed at input %d: %w", i, err)
		}
		vecs[i] = vec
	}
	return vecs, nil
}

// request performs one embeddings call with retries. input is either a
// string or a []string; want is the expected vector count.
func (c *HTTPClient) request(ctx context.Context, input any, want int) ([][]float32, error) {
	operation := func() ([][]float32, error) {
		vecs, err := c.doRequest(ctx, input, want)
		if err != nil {
			var reqErr *requestError
			if errors.As(err, &reqErr) && !reqErr.transient() {
				return nil, backoff.Permanent(err)
			}
			if errors.Is(err, ErrShape) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return vecs, nil
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 500 * time.Millisecond
	expBackoff.MaxInterval = 5 * time.Second

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(uint(c.maxRetries)),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Printf("[WARN] embedding request failed, retrying in %s: %v\n", next.Round(time.Millisecond), err)
		}),
	)
}

func (c *HTTPClient) doRequest(ctx context.Context, input any, want int) ([][]float32, error) {
	payload, err := json.Marshal(map[string]any{
		"input": input,
		"model": c.model,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &requestError{status: resp.StatusCode, body: string(body)}
	}

	vecs, err := parseEmbeddingsResponse(body)
	if err != nil {
		return nil, err
	}
	if len(vecs) != want {
		return nil, fmt.Errorf("%w: expected %d vectors, got %d", ErrShape, want, len(vecs))
	}
	for i, vec := range vecs {
		if len(vec) != c.dimension {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, expected %d", ErrShape, i, len(vec), c.dimension)
		}
	}
	return vecs, nil
}

func (c *HTTPClient) setAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// requestError is a non-2xx embeddings response. 4xx is permanent and
// never retried; 5xx is transient.
type requestError struct {
	status int
	body   string
}

func (e *requestError) Error() string {
	snippet := e.body
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	return fmt.Sprintf("embedding service returned status %d: %s", e.status, snippet)
}

func (e *requestError) transient() bool {
	return e.status >= 500
}

// batchRefusal detects backends that only take single-string input.
func (e *requestError) batchRefusal() bool {
	if e.status < 400 || e.status >= 500 {
		return false
	}
	body := strings.ToLower(e.body)
	return strings.Contains(body, "batch") || strings.Contains(body, "array")
}

// parseEmbeddingsResponse decodes any of the accepted payload shapes
// into vectors, ordered by index when the backend provides one.
func parseEmbeddingsResponse(body []byte) ([][]float32, error) {
	var openAI struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     *int      `json:"index"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &openAI); err == nil && len(openAI.Data) > 0 {
		indexed := true
		for _, d := range openAI.Data {
			if d.Index == nil {
				indexed = false
				break
			}
		}
		if indexed {
			sort.SliceStable(openAI.Data, func(i, j int) bool {
				return *openAI.Data[i].Index < *openAI.Data[j].Index
			})
		}
		vecs := make([][]float32, 0, len(openAI.Data))
		for _, d := range openAI.Data {
			if len(d.Embedding) == 0 {
				return nil, fmt.Errorf("%w: empty embedding in data entry", ErrShape)
			}
			vecs = append(vecs, d.Embedding)
		}
		return vecs, nil
	}

	var plural struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.Unmarshal(body, &plural); err == nil && len(plural.Embeddings) > 0 {
		return plural.Embeddings, nil
	}

	var single struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.Unmarshal(body, &single); err == nil && len(single.Embedding) > 0 {
		return [][]float32{single.Embedding}, nil
	}

	var bare [][]float32
	if err := json.Unmarshal(body, &bare); err == nil && len(bare) > 0 {
		return bare, nil
	}

	return nil, ErrShape
}
