// Package executor routes tool calls to their backend: in-process
// callables, HTTP endpoints, upstream MCP servers, the LLM gateway,
// or child processes. Every call runs under a deadline and is
// recorded in the execution audit trail.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/toolscout/toolscout/internal/config"
	"github.com/toolscout/toolscout/internal/model"
	"github.com/toolscout/toolscout/internal/service/registry"
	"github.com/toolscout/toolscout/internal/service/retrieval"
	"github.com/toolscout/toolscout/internal/telemetry"
	"github.com/toolscout/toolscout/pkg/types"
	"github.com/xeipuuv/gojsonschema"
)

var (
	// ErrToolInactive means the tool exists but has been deactivated.
	ErrToolInactive = errors.New("tool is inactive")

	// ErrValidationFailed means the arguments did not satisfy the
	// tool's input schema.
	ErrValidationFailed = errors.New("argument validation failed")

	// ErrExecutorDisabled means the backend kind is switched off in
	// this deployment.
	ErrExecutorDisabled = errors.New("executor is disabled")

	// ErrBackendUnavailable means the backend could not be reached.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// NotFoundError reports an unknown tool name, carrying similarly
// named tools as suggestions.
type NotFoundError struct {
	Name        string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tool not found: %s", e.Name)
}

// Backend executes one tool kind. Implementations must honor ctx
// cancellation.
type Backend interface {
	Execute(ctx context.Context, tool *model.Tool, args map[string]any) (any, error)
}

// ServiceConfig is the configuration for creating an executor
// Service.
type ServiceConfig struct {
	Registry  *registry.Service
	Retrieval *retrieval.Service
	Config    config.ExecutionConfig
	Metrics   telemetry.CustomMetrics

	// Gateway backs LLM_GATEWAY tools.
	Gateway config.GatewayConfig

	// Callables is the in-process callable table. Nil means an empty
	// table.
	Callables *CallableTable
}

// Service resolves and dispatches tool calls.
type Service struct {
	registry  *registry.Service
	retrieval *retrieval.Service
	cfg       config.ExecutionConfig
	metrics   telemetry.CustomMetrics
	backends  map[types.ImplementationType]Backend
}

// NewToolExecutorService creates the executor with all five backends
// wired.
func NewToolExecutorService(c *ServiceConfig) (*Service, error) {
	if c.Registry == nil {
		return nil, errors.New("registry is required")
	}
	metrics := c.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopCustomMetrics()
	}
	callables := c.Callables
	if callables == nil {
		callables = NewCallableTable()
	}

	mcpBackend := newMCPBackend()
	backends := map[types.ImplementationType]Backend{
		types.ImplPythonCallable: newCallableBackend(callables, c.Config),
		types.ImplHTTPEndpoint:   newHTTPBackend(),
		types.ImplMCPServer:      mcpBackend,
		types.ImplLLMGateway:     newGatewayBackend(c.Gateway, mcpBackend),
		types.ImplCommandLine:    newCommandBackend(),
	}

	return &Service{
		registry:  c.Registry,
		retrieval: c.Retrieval,
		cfg:       c.Config,
		metrics:   metrics,
		backends:  backends,
	}, nil
}

// CallTool executes one tool call end to end: resolve, validate,
// dispatch under a deadline, record. The returned result carries the
// outcome; the error return is reserved for resolution and validation
// failures that never reached a backend.
func (s *Service) CallTool(ctx context.Context, req *types.CallToolRequest) (*types.CallToolResult, error) {
	tool, err := s.resolve(ctx, req.ToolName)
	if err != nil {
		return nil, err
	}
	if !tool.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrToolInactive, tool.Name)
	}
	if err := s.validateArgs(tool, req.Arguments); err != nil {
		return nil, err
	}

	timeout := s.timeoutFor(tool)
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	output, execErr := s.backends[tool.ImplementationType].Execute(callCtx, tool, req.Arguments)
	duration := time.Since(start)

	result := &types.CallToolResult{
		ToolName:   tool.Name,
		DurationMs: duration.Milliseconds(),
	}

	var outcome telemetry.ToolCallOutcome
	switch {
	case execErr == nil:
		result.Status = types.ExecutionStatusSuccess
		result.Output = marshalOutput(output)
		outcome = telemetry.ToolCallOutcomeSuccess
	case errors.Is(execErr, context.DeadlineExceeded) && callCtx.Err() != nil:
		result.Status = types.ExecutionStatusTimeout
		result.Error = fmt.Sprintf("tool execution timed out after %s", timeout)
		outcome = telemetry.ToolCallOutcomeTimeout
	default:
		result.Status = types.ExecutionStatusError
		result.Error = execErr.Error()
		outcome = telemetry.ToolCallOutcomeError
	}

	s.registry.RecordExecution(ctx, &registry.ExecutionParams{
		ToolID:     tool.ID,
		ToolName:   tool.Name,
		Status:     result.Status,
		DurationMs: result.DurationMs,
		Arguments:  req.Arguments,
		Output:     result.Output,
		Error:      result.Error,
		Metadata:   req.Metadata,
	})
	s.metrics.RecordToolCall(ctx, tool.Name, string(tool.ImplementationType), outcome, duration)

	if execErr != nil {
		log.Printf("[WARN] tool %s finished with status %s: %v\n", tool.Name, result.Status, execErr)
	}
	return result, nil
}

// resolve finds the tool by exact name; on a miss it gathers
// suggestions from the retrieval engine.
func (s *Service) resolve(ctx context.Context, name string) (*model.Tool, error) {
	tool, err := s.registry.GetToolByName(ctx, name)
	if err == nil {
		return tool, nil
	}
	if !errors.Is(err, registry.ErrToolNotFound) {
		return nil, err
	}
	return nil, &NotFoundError{Name: name, Suggestions: s.suggest(ctx, name)}
}

// suggest searches the catalog for names similar to the missing one.
// Best effort only: any failure yields no suggestions.
func (s *Service) suggest(ctx context.Context, name string) []string {
	if s.retrieval == nil {
		return nil
	}
	zero := 0.0
	resp, err := s.retrieval.FindTool(ctx, &types.FindToolRequest{
		Query:     name,
		Limit:     3,
		Threshold: &zero,
	})
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		names = append(names, r.Tool.Name)
	}
	return names
}

// validateArgs checks the payload size cap and the tool's input
// schema.
func (s *Service) validateArgs(tool *model.Tool, args map[string]any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("%w: arguments are not serializable: %v", ErrValidationFailed, err)
	}
	if s.cfg.MaxArgBytes > 0 && len(raw) > s.cfg.MaxArgBytes {
		return fmt.Errorf("%w: arguments exceed %d bytes", ErrValidationFailed, s.cfg.MaxArgBytes)
	}
	if len(tool.InputSchema) == 0 {
		return nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(tool.InputSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	if !result.Valid() {
		first := result.Errors()[0]
		return fmt.Errorf("%w: %s: %s", ErrValidationFailed, first.Field(), first.Description())
	}
	return nil
}

// timeoutFor resolves the per-call deadline: the tool's own timeout
// when set, clamped to the ceiling; otherwise the global default.
func (s *Service) timeoutFor(tool *model.Tool) time.Duration {
	timeout := s.cfg.DefaultTimeout
	if override := toolTimeout(tool); override > 0 {
		timeout = override
	}
	if s.cfg.TimeoutCeiling > 0 && timeout > s.cfg.TimeoutCeiling {
		timeout = s.cfg.TimeoutCeiling
	}
	return timeout
}

// toolTimeout extracts the per-tool timeout override in seconds from
// the implementation config, if any.
func toolTimeout(tool *model.Tool) time.Duration {
	var seconds float64
	switch tool.ImplementationType {
	case types.ImplHTTPEndpoint:
		if cfg, err := tool.GetHTTPEndpointConfig(); err == nil {
			seconds = cfg.Timeout
		}
	case types.ImplMCPServer:
		if cfg, err := tool.GetMCPServerConfig(); err == nil {
			seconds = cfg.Timeout
		}
	case types.ImplLLMGateway:
		if cfg, err := tool.GetLLMGatewayConfig(); err == nil {
			seconds = cfg.Timeout
		}
	case types.ImplCommandLine:
		if cfg, err := tool.GetCommandLineConfig(); err == nil {
			seconds = cfg.Timeout
		}
	}
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// marshalOutput renders a backend result as JSON. Plain text becomes
// a JSON string; unserializable output degrades to its string form.
func marshalOutput(output any) json.RawMessage {
	if output == nil {
		return nil
	}
	if raw, ok := output.(json.RawMessage); ok && json.Valid(raw) {
		return raw
	}
	raw, err := json.Marshal(output)
	if err != nil {
		raw, _ = json.Marshal(fmt.Sprintf("%v", output))
	}
	return raw
}
