// Package mcpserver exposes the registry to MCP clients: discovery and
// execution as MCP tools, catalog views as resources, and short usage
// guides as prompts. The same server instance is mounted over
// streamable HTTP and SSE by the API layer.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/toolscout/toolscout/internal/service/executor"
	"github.com/toolscout/toolscout/internal/service/registry"
	"github.com/toolscout/toolscout/internal/service/retrieval"
	"github.com/toolscout/toolscout/internal/service/summarizer"
	"github.com/toolscout/toolscout/pkg/types"
	"github.com/toolscout/toolscout/pkg/version"
)

const serverName = "toolscout"

// categoryResourcePrefix is the URI prefix of the per-category tool
// listing resource.
const categoryResourcePrefix = "tools://tools/"

// ServiceConfig holds the configuration parameters for building the
// MCP facade.
type ServiceConfig struct {
	Registry   *registry.Service
	Retrieval  *retrieval.Service
	Executor   *executor.Service
	Summarizer *summarizer.Service

	// SummaryMaxTokens is the default output budget for
	// call_tool_summarized when the caller passes none.
	SummaryMaxTokens int
}

// Service is the MCP-facing facade over the registry services.
type Service struct {
	registry   *registry.Service
	retrieval  *retrieval.Service
	executor   *executor.Service
	summarizer *summarizer.Service

	summaryMaxTokens int

	server *server.MCPServer
}

// NewMCPFacade builds the MCP server and registers all tools,
// resources and prompts.
func NewMCPFacade(c *ServiceConfig) (*Service, error) {
	if c.Registry == nil || c.Retrieval == nil || c.Executor == nil {
		return nil, errors.New("registry, retrieval and executor services are required")
	}
	maxTokens := c.SummaryMaxTokens
	if maxTokens <= 0 {
		maxTokens = 1000
	}

	s := &Service{
		registry:         c.Registry,
		retrieval:        c.Retrieval,
		executor:         c.Executor,
		summarizer:       c.Summarizer,
		summaryMaxTokens: maxTokens,
	}

	s.server = server.NewMCPServer(
		serverName,
		version.Version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(false),
		server.WithRecovery(),
	)
	s.registerTools()
	s.registerResources()
	s.registerPrompts()
	return s, nil
}

// Server returns the underlying MCP server for mounting.
func (s *Service) Server() *server.MCPServer {
	return s.server
}

func (s *Service) registerTools() {
	s.server.AddTool(mcp.NewTool("list_tools",
		mcp.WithDescription("List registered tools, optionally filtered by category. Returns tools with pagination info."),
		mcp.WithString("category", mcp.Description("Only return tools in this category")),
		mcp.WithBoolean("active_only", mcp.Description("Only return active tools (default true)")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of tools to return (default 50, max 200)")),
		mcp.WithNumber("offset", mcp.Description("Number of tools to skip")),
	), s.handleListTools)

	s.server.AddTool(mcp.NewTool("find_tool",
		mcp.WithDescription("Find tools matching a natural-language description of a capability. "+
			"Results are ranked by relevance; check the score before calling a tool."),
		mcp.WithString("query", mcp.Required(),
			mcp.Description("What the tool should be able to do, in plain language")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5, max 100)")),
		mcp.WithNumber("threshold", mcp.Description("Minimum semantic similarity in [0, 1]")),
		mcp.WithString("category", mcp.Description("Only search within this category")),
	), s.handleFindTool)

	s.server.AddTool(mcp.NewTool("call_tool",
		mcp.WithDescription("Execute a registered tool by name with the given arguments."),
		mcp.WithString("tool_name", mcp.Required(), mcp.Description("Exact name of the tool to call")),
		mcp.WithObject("arguments", mcp.Description("Arguments matching the tool's input schema")),
	), s.handleCallTool)

	s.server.AddTool(mcp.NewTool("call_tool_summarized",
		mcp.WithDescription("Execute a tool and summarize its output when it exceeds the token budget. "+
			"Always reports whether summarization happened."),
		mcp.WithString("tool_name", mcp.Required(), mcp.Description("Exact name of the tool to call")),
		mcp.WithObject("arguments", mcp.Description("Arguments matching the tool's input schema")),
		mcp.WithNumber("max_tokens", mcp.Description("Output token budget; larger outputs are summarized")),
		mcp.WithString("summarize_hint", mcp.Description("What to focus on when summarizing")),
	), s.handleCallToolSummarized)

	s.server.AddTool(mcp.NewTool("get_tool_schema",
		mcp.WithDescription("Get a tool's description and JSON input schema before calling it."),
		mcp.WithString("tool_name", mcp.Required(), mcp.Description("Exact name of the tool")),
	), s.handleGetToolSchema)
}

func (s *Service) handleListTools(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	listReq := &types.ListToolsRequest{
		Category: req.GetString("category", ""),
		Limit:    req.GetInt("limit", 0),
		Offset:   req.GetInt("offset", 0),
	}
	if args := req.GetArguments(); args != nil {
		if raw, ok := args["active_only"]; ok {
			if b, ok := raw.(bool); ok {
				listReq.ActiveOnly = &b
			}
		}
	}

	resp, err := s.registry.ListTools(ctx, listReq)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list tools: %v", err)), nil
	}
	return jsonResult(resp)
}

func (s *Service) handleFindTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	findReq := &types.FindToolRequest{
		Query:    query,
		Limit:    req.GetInt("limit", 0),
		Category: req.GetString("category", ""),
	}
	if args := req.GetArguments(); args != nil {
		if raw, ok := args["threshold"]; ok {
			if f, ok := raw.(float64); ok {
				findReq.Threshold = &f
			}
		}
	}

	resp, err := s.retrieval.FindTool(ctx, findReq)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	return jsonResult(resp)
}

func (s *Service) handleCallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	toolName, err := req.RequireString("tool_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.executor.CallTool(ctx, &types.CallToolRequest{
		ToolName:  toolName,
		Arguments: objectArg(req, "arguments"),
	})
	if err != nil {
		return callErrorResult(err), nil
	}
	return jsonResult(result)
}

func (s *Service) handleCallToolSummarized(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	toolName, err := req.RequireString("tool_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.executor.CallTool(ctx, &types.CallToolRequest{
		ToolName:  toolName,
		Arguments: objectArg(req, "arguments"),
	})
	if err != nil {
		return callErrorResult(err), nil
	}

	summarized := &types.CallToolSummarizedResult{CallToolResult: *result}
	if result.Status == types.ExecutionStatusSuccess && s.summarizer != nil {
		maxTokens := req.GetInt("max_tokens", s.summaryMaxTokens)
		text, wasSummarized := s.summarizer.SummarizeIfNeeded(
			ctx, result.Output, maxTokens, req.GetString("summarize_hint", ""), toolName,
		)
		summarized.WasSummarized = wasSummarized
		if wasSummarized {
			raw, err := json.Marshal(text)
			if err == nil {
				summarized.Output = raw
			}
		}
	}
	return jsonResult(summarized)
}

func (s *Service) handleGetToolSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	toolName, err := req.RequireString("tool_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tool, err := s.registry.GetToolByName(ctx, toolName)
	if err != nil {
		if errors.Is(err, registry.ErrToolNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("tool not found: %s", toolName)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to load tool: %v", err)), nil
	}
	return jsonResult(&types.ToolSchemaResponse{
		ToolName:    tool.Name,
		Description: tool.Description,
		InputSchema: json.RawMessage(tool.InputSchema),
	})
}

func (s *Service) registerResources() {
	s.server.AddResource(mcp.NewResource(
		"tools://categories",
		"Tool categories",
		mcp.WithResourceDescription("All categories that currently have registered tools"),
		mcp.WithMIMEType("application/json"),
	), s.handleCategoriesResource)

	s.server.AddResource(mcp.NewResource(
		"tools://stats",
		"Registry statistics",
		mcp.WithResourceDescription("Aggregate counts: totals, active, indexed, executions, breakdowns"),
		mcp.WithMIMEType("application/json"),
	), s.handleStatsResource)

	s.server.AddResourceTemplate(mcp.NewResourceTemplate(
		categoryResourcePrefix+"{category}",
		"Tools by category",
		mcp.WithTemplateDescription("Active tools registered under one category"),
		mcp.WithTemplateMIMEType("application/json"),
	), s.handleCategoryResource)
}

func (s *Service) handleCategoriesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	categories, err := s.registry.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return jsonResourceContents(req.Params.URI, map[string]any{"categories": categories})
}

func (s *Service) handleStatsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	stats, err := s.registry.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	return jsonResourceContents(req.Params.URI, stats)
}

func (s *Service) handleCategoryResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	category := strings.TrimPrefix(req.Params.URI, categoryResourcePrefix)
	if category == "" || category == req.Params.URI {
		return nil, fmt.Errorf("invalid category resource URI: %s", req.Params.URI)
	}
	resp, err := s.registry.ListTools(ctx, &types.ListToolsRequest{Category: category})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools in category %s: %w", category, err)
	}
	return jsonResourceContents(req.Params.URI, resp)
}

func (s *Service) registerPrompts() {
	s.server.AddPrompt(mcp.NewPrompt("tool_discovery_guide",
		mcp.WithPromptDescription("How to find the right tool for a task"),
		mcp.WithArgument("task", mcp.ArgumentDescription("The task you want a tool for")),
	), func(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		task := req.Params.Arguments["task"]
		text := "To find a tool, call find_tool with a plain-language description of the capability you need. " +
			"Describe what the tool should do, not how. Check each result's score: results below 0.5 are " +
			"usually poor matches. Use get_tool_schema on the best match to learn its arguments before calling it."
		if task != "" {
			text += fmt.Sprintf(" Your task: %s. Start with find_tool using a one-sentence description of it.", task)
		}
		return promptResult("Guide to discovering tools", text), nil
	})

	s.server.AddPrompt(mcp.NewPrompt("tool_execution_guide",
		mcp.WithPromptDescription("How to call a tool correctly"),
	), func(context.Context, mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		text := "Before calling a tool, fetch its schema with get_tool_schema and build arguments that satisfy it; " +
			"calls with invalid arguments are rejected before execution. Use call_tool for normal calls and " +
			"call_tool_summarized when the output may be large. Every result carries a status: SUCCESS, ERROR " +
			"or TIMEOUT. On ERROR read the error message; on a tool-not-found error check the suggestions list."
		return promptResult("Guide to executing tools", text), nil
	})

	s.server.AddPrompt(mcp.NewPrompt("workflow_planning",
		mcp.WithPromptDescription("How to plan a multi-tool workflow"),
		mcp.WithArgument("goal", mcp.ArgumentDescription("The end goal of the workflow")),
	), func(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		goal := req.Params.Arguments["goal"]
		text := "Break the goal into steps, then find one tool per step with find_tool. Read the " +
			"tools://categories resource to see what domains are covered. Verify each tool's schema before " +
			"wiring outputs of one step into inputs of the next, and prefer fewer, more capable tools over " +
			"long chains."
		if goal != "" {
			text += fmt.Sprintf(" Goal to plan for: %s.", goal)
		}
		return promptResult("Guide to planning workflows", text), nil
	})
}

// objectArg extracts a nested object argument as a map.
func objectArg(req mcp.CallToolRequest, key string) map[string]any {
	args := req.GetArguments()
	if args == nil {
		return nil
	}
	raw, ok := args[key]
	if !ok {
		return nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	return obj
}

// callErrorResult maps executor errors onto MCP error results, keeping
// suggestions visible to the caller.
func callErrorResult(err error) *mcp.CallToolResult {
	var notFound *executor.NotFoundError
	if errors.As(err, &notFound) && len(notFound.Suggestions) > 0 {
		return mcp.NewToolResultError(fmt.Sprintf(
			"%v. Did you mean: %s", notFound, strings.Join(notFound.Suggestions, ", "),
		))
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func jsonResourceContents(uri string, v any) ([]mcp.ResourceContents, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode resource: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: uri, MIMEType: "application/json", Text: string(raw)},
	}, nil
}

func promptResult(description, text string) *mcp.GetPromptResult {
	return mcp.NewGetPromptResult(description, []mcp.PromptMessage{
		mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text)),
	})
}
