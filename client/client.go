// Package client is a Go client for the toolscout HTTP API, used by
// the CLI and usable as a library.
package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Client talks to a toolscout server. The access token, when set, is
// sent as a bearer token and is required for admin endpoints.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

func NewClient(baseURL, accessToken string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		httpClient:  httpClient,
	}
}

// constructAPIEndpoint joins the base URL with an API path.
func (c *Client) constructAPIEndpoint(path string) (string, error) {
	return url.JoinPath(c.baseURL, path)
}

// newRequest creates a request with the bearer token attached.
func (c *Client) newRequest(method, u string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequest(method, u, body)
	if err != nil {
		return nil, err
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
	return req, nil
}

// parseErrorResponse converts a non-2xx response into an error,
// preferring the server's JSON error message over the raw body.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("request failed with status: %d", resp.StatusCode)
	}
	message := strings.TrimSpace(string(raw))
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		message = body.Error
	}
	return fmt.Errorf("request failed with status: %d, message: %s", resp.StatusCode, message)
}
