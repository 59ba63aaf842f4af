package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/toolscout/toolscout/pkg/types"
)

// ListTools lists registered tools through the public endpoint.
func (c *Client) ListTools(req *types.ListToolsRequest) (*types.ListToolsResponse, error) {
	if req == nil {
		req = &types.ListToolsRequest{}
	}
	var resp types.ListToolsResponse
	if err := c.postJSON("/mcp/list_tools", req, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FindTool searches the registry with a natural-language query.
func (c *Client) FindTool(req *types.FindToolRequest) (*types.FindToolResponse, error) {
	var resp types.FindToolResponse
	if err := c.postJSON("/mcp/find_tool", req, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CallTool executes a tool by name.
func (c *Client) CallTool(req *types.CallToolRequest) (*types.CallToolResult, error) {
	var result types.CallToolResult
	if err := c.postJSON("/mcp/call_tool", req, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CallToolSummarized executes a tool and lets the server compact
// oversized output.
func (c *Client) CallToolSummarized(req *types.CallToolSummarizedRequest) (*types.CallToolSummarizedResult, error) {
	var result types.CallToolSummarizedResult
	if err := c.postJSON("/mcp/call_tool_summarized", req, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// postJSON sends a JSON body and decodes a JSON response, shared by
// all POST endpoints.
func (c *Client) postJSON(path string, body any, wantStatus int, out any) error {
	u, err := c.constructAPIEndpoint(path)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := c.newRequest(http.MethodPost, u, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to create request to %s: %w", u, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return c.parseErrorResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// getJSON sends a GET request and decodes a JSON response.
func (c *Client) getJSON(path string, query map[string]string, out any) error {
	u, err := c.constructAPIEndpoint(path)
	if err != nil {
		return err
	}

	req, err := c.newRequest(http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request to %s: %w", u, err)
	}
	if len(query) > 0 {
		q := req.URL.Query()
		for k, v := range query {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
