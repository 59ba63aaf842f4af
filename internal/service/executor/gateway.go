package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/toolscout/toolscout/internal/config"
	"github.com/toolscout/toolscout/internal/model"
	"github.com/toolscout/toolscout/pkg/types"
)

// defaultGatewaySystemPrompt frames the model as the tool when no
// per-tool prompt is configured.
const defaultGatewaySystemPrompt = "You are executing a tool call on behalf of an AI agent. " +
	"Respond with the tool's result only, no preamble."

// gatewayBackend serves LLM_GATEWAY tools. Model-backed tools send
// the arguments to the gateway's chat completion API; gateway-hosted
// tools proxy through the gateway's MCP endpoint.
type gatewayBackend struct {
	cfg    config.GatewayConfig
	client *openai.Client
	mcp    *mcpBackend
}

func newGatewayBackend(cfg config.GatewayConfig, mcp *mcpBackend) *gatewayBackend {
	b := &gatewayBackend{cfg: cfg, mcp: mcp}
	if cfg.Enabled() {
		clientCfg := openai.DefaultConfig(cfg.APIKey)
		clientCfg.BaseURL = strings.TrimRight(cfg.URL, "/") + "/v1"
		b.client = openai.NewClientWithConfig(clientCfg)
	}
	return b
}

func (b *gatewayBackend) Execute(ctx context.Context, tool *model.Tool, args map[string]any) (any, error) {
	toolCfg, err := tool.GetLLMGatewayConfig()
	if err != nil {
		return nil, err
	}

	if toolCfg.ToolName != "" {
		serverURL := toolCfg.URL
		if serverURL == "" {
			if !b.cfg.Enabled() {
				return nil, fmt.Errorf("%w: no LLM gateway configured", ErrBackendUnavailable)
			}
			serverURL = strings.TrimRight(b.cfg.URL, "/") + "/mcp"
		}
		return b.mcp.callRemote(ctx, serverURL, b.cfg.APIKey, toolCfg.ToolName, args)
	}

	return b.complete(ctx, tool, toolCfg, args)
}

// complete sends the call arguments as a chat completion and returns
// the model's reply.
func (b *gatewayBackend) complete(
	ctx context.Context, tool *model.Tool, toolCfg *types.LLMGatewayConfig, args map[string]any,
) (any, error) {
	if b.client == nil {
		return nil, fmt.Errorf("%w: no LLM gateway configured", ErrBackendUnavailable)
	}

	payload, err := json.MarshalIndent(args, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode arguments: %w", err)
	}

	systemPrompt := toolCfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultGatewaySystemPrompt
	}
	modelName := toolCfg.Model
	if modelName == "" {
		modelName = b.cfg.Model
	}

	req := openai.ChatCompletionRequest{
		Model: modelName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("Tool: %s\nDescription: %s\nArguments:\n%s",
					tool.Name, tool.Description, payload),
			},
		},
	}
	if toolCfg.MaxTokens > 0 {
		req.MaxTokens = toolCfg.MaxTokens
	}
	if toolCfg.Temperature > 0 {
		req.Temperature = toolCfg.Temperature
	}

	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: gateway completion failed: %v", ErrBackendUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("gateway returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
