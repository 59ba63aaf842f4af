package executor

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/toolscout/toolscout/internal/model"
)

// customCABundlePath is picked up when present so deployments behind
// a corporate proxy can call internal endpoints over TLS.
const customCABundlePath = "/etc/ssl/certs/ca-custom.pem"

// maxHTTPResponseBytes caps how much of a backend response is read.
const maxHTTPResponseBytes = 16 << 20

// httpBackend calls HTTP_ENDPOINT tools. GET sends arguments as query
// parameters, POST/PUT/PATCH as a JSON body.
type httpBackend struct {
	client *http.Client
}

func newHTTPBackend() *httpBackend {
	return &httpBackend{client: &http.Client{Transport: newHTTPTransport()}}
}

// newHTTPTransport clones the default transport, extending the root
// CA pool with the custom bundle when one is installed.
func newHTTPTransport() *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	pem, err := os.ReadFile(customCABundlePath)
	if err != nil {
		return transport
	}
	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		log.Printf("[WARN] custom CA bundle %s contains no usable certificates\n", customCABundlePath)
		return transport
	}
	log.Printf("[INFO] loaded custom CA bundle from %s\n", customCABundlePath)
	transport.TLSClientConfig = &tls.Config{RootCAs: pool}
	return transport
}

func (b *httpBackend) Execute(ctx context.Context, tool *model.Tool, args map[string]any) (any, error) {
	cfg, err := tool.GetHTTPEndpointConfig()
	if err != nil {
		return nil, err
	}

	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = http.MethodPost
	}

	var req *http.Request
	switch method {
	case http.MethodGet:
		endpoint, err := appendQueryArgs(cfg.URL, args)
		if err != nil {
			return nil, err
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}

	case http.MethodPost, http.MethodPut, http.MethodPatch:
		body, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("failed to encode arguments: %w", err)
		}
		req, err = http.NewRequestWithContext(ctx, method, cfg.URL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

	default:
		return nil, fmt.Errorf("unsupported HTTP method for tool %s: %s", tool.Name, method)
	}

	for key, value := range cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHTTPResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > 500 {
			snippet = snippet[:500]
		}
		return nil, fmt.Errorf("endpoint returned status %d: %s", resp.StatusCode, snippet)
	}

	// JSON responses pass through structured; anything else is wrapped
	// as text.
	if json.Valid(body) {
		return json.RawMessage(body), nil
	}
	return map[string]any{"response": string(body)}, nil
}

// appendQueryArgs encodes call arguments as query parameters on the
// endpoint URL. Non-scalar values are sent as compact JSON.
func appendQueryArgs(endpoint string, args map[string]any) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint URL: %w", err)
	}
	q := u.Query()
	for key, value := range args {
		q.Set(key, stringifyArg(value))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func stringifyArg(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(raw)
	}
}
