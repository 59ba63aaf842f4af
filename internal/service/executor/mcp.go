package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/toolscout/toolscout/internal/model"
	"github.com/toolscout/toolscout/pkg/version"
)

// mcpBackend proxies MCP_SERVER tools to their upstream server via
// JSON-RPC tools/call over streamable HTTP. A fresh session per call
// keeps the backend stateless; upstreams that need session reuse can
// front this with their own pooling.
type mcpBackend struct{}

func newMCPBackend() *mcpBackend {
	return &mcpBackend{}
}

func (b *mcpBackend) Execute(ctx context.Context, tool *model.Tool, args map[string]any) (any, error) {
	cfg, err := tool.GetMCPServerConfig()
	if err != nil {
		return nil, err
	}
	return b.callRemote(ctx, cfg.URL, cfg.BearerToken, cfg.ToolName, args)
}

// callRemote opens a session with the upstream server and invokes one
// tool. Also used by the gateway backend for gateway-hosted tools.
func (b *mcpBackend) callRemote(
	ctx context.Context, serverURL, bearerToken, toolName string, args map[string]any,
) (any, error) {
	c, err := newUpstreamSession(ctx, serverURL, bearerToken)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	req := mcp.CallToolRequest{}
	req.Params.Name = toolName
	req.Params.Arguments = args

	result, err := c.CallTool(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, context.DeadlineExceeded
		}
		return nil, fmt.Errorf("upstream tool call failed: %w", err)
	}
	if result.IsError {
		return nil, fmt.Errorf("upstream tool returned an error: %s", flattenContent(result.Content))
	}
	return decodeContent(result.Content), nil
}

// newUpstreamSession creates and initializes a streamable HTTP MCP
// client session.
func newUpstreamSession(ctx context.Context, serverURL, bearerToken string) (*client.Client, error) {
	var opts []transport.StreamableHTTPCOption
	if bearerToken != "" {
		opts = append(opts, transport.WithHTTPHeaders(map[string]string{
			"Authorization": "Bearer " + bearerToken,
		}))
	}

	c, err := client.NewStreamableHttpClient(serverURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create MCP client: %v", ErrBackendUnavailable, err)
	}

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    "toolscout",
		Version: version.Version,
	}
	initRequest.Params.Capabilities = mcp.ClientCapabilities{}

	if _, err := c.Initialize(ctx, initRequest); err != nil {
		c.Close()
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, context.DeadlineExceeded
		}
		return nil, fmt.Errorf("%w: failed to initialize MCP session with %s: %v", ErrBackendUnavailable, serverURL, err)
	}
	return c, nil
}

// decodeContent converts MCP result content into a plain value: a
// single text block becomes its text (parsed as JSON when possible),
// anything else is returned as a list of blocks.
func decodeContent(content []mcp.Content) any {
	texts := make([]string, 0, len(content))
	for _, block := range content {
		if text, ok := block.(mcp.TextContent); ok {
			texts = append(texts, text.Text)
		}
	}
	if len(texts) != len(content) {
		// Non-text blocks present: hand the raw content back.
		return content
	}
	switch len(texts) {
	case 0:
		return nil
	case 1:
		var structured any
		if err := json.Unmarshal([]byte(texts[0]), &structured); err == nil {
			return structured
		}
		return texts[0]
	default:
		return texts
	}
}

func flattenContent(content []mcp.Content) string {
	raw, err := json.Marshal(decodeContent(content))
	if err != nil {
		return fmt.Sprintf("%v", content)
	}
	return string(raw)
}
