package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/toolscout/toolscout/pkg/types"
)

// RegisterTool registers a new tool. Requires the admin access token.
func (c *Client) RegisterTool(input *types.RegisterToolInput) (*types.Tool, error) {
	var tool types.Tool
	if err := c.postJSON("/admin/tools", input, http.StatusCreated, &tool); err != nil {
		return nil, err
	}
	return &tool, nil
}

// GetTool fetches a tool by id.
func (c *Client) GetTool(id uint) (*types.Tool, error) {
	var tool types.Tool
	if err := c.getJSON(toolPath(id), nil, &tool); err != nil {
		return nil, err
	}
	return &tool, nil
}

// UpdateTool applies a partial update to a tool.
func (c *Client) UpdateTool(id uint, input *types.UpdateToolInput) (*types.Tool, error) {
	u, err := c.constructAPIEndpoint(toolPath(id))
	if err != nil {
		return nil, err
	}
	var tool types.Tool
	if err := c.sendJSON(http.MethodPut, u, input, &tool); err != nil {
		return nil, err
	}
	return &tool, nil
}

// DeleteTool removes a tool and its execution history.
func (c *Client) DeleteTool(id uint) error {
	u, err := c.constructAPIEndpoint(toolPath(id))
	if err != nil {
		return err
	}
	return c.sendJSON(http.MethodDelete, u, nil, nil)
}

// SetToolActive activates or deactivates a tool.
func (c *Client) SetToolActive(id uint, active bool) (*types.Tool, error) {
	action := "deactivate"
	if active {
		action = "activate"
	}
	var tool types.Tool
	if err := c.postJSON(toolPath(id)+"/"+action, nil, http.StatusOK, &tool); err != nil {
		return nil, err
	}
	return &tool, nil
}

// ReindexTool recomputes a tool's embedding.
func (c *Client) ReindexTool(id uint) error {
	return c.postJSON(toolPath(id)+"/reindex", nil, http.StatusOK, nil)
}

// GetToolStats fetches per-tool execution statistics.
func (c *Client) GetToolStats(id uint) (*types.ToolStats, error) {
	var stats types.ToolStats
	if err := c.getJSON(toolPath(id)+"/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// FindSimilar lists tools semantically close to the given one.
func (c *Client) FindSimilar(id uint, limit int) ([]types.ScoredTool, error) {
	query := map[string]string{}
	if limit > 0 {
		query["limit"] = strconv.Itoa(limit)
	}
	var resp struct {
		Results []types.ScoredTool `json:"results"`
	}
	if err := c.getJSON(toolPath(id)+"/similar", query, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Stats fetches registry-wide statistics.
func (c *Client) Stats() (*types.RegistryStats, error) {
	var stats types.RegistryStats
	if err := c.getJSON("/admin/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// ListExecutions fetches the execution audit trail, newest first.
// toolID zero means all tools.
func (c *Client) ListExecutions(toolID uint, limit, offset int) ([]types.ExecutionRecord, error) {
	query := map[string]string{}
	if toolID > 0 {
		query["tool_id"] = strconv.FormatUint(uint64(toolID), 10)
	}
	if limit > 0 {
		query["limit"] = strconv.Itoa(limit)
	}
	if offset > 0 {
		query["offset"] = strconv.Itoa(offset)
	}
	var resp struct {
		Executions []types.ExecutionRecord `json:"executions"`
	}
	if err := c.getJSON("/admin/executions", query, &resp); err != nil {
		return nil, err
	}
	return resp.Executions, nil
}

// Sync triggers catalog discovery. An empty source syncs every
// configured source.
func (c *Client) Sync(source string) (*types.SyncResponse, error) {
	var resp types.SyncResponse
	if err := c.postJSON("/admin/mcp/sync", &types.SyncRequest{Source: source}, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// sendJSON issues a request with an optional JSON body, expecting 200.
func (c *Client) sendJSON(method, u string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := c.newRequest(method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create request to %s: %w", u, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
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

func toolPath(id uint) string {
	return "/admin/tools/" + strconv.FormatUint(uint64(id), 10)
}
