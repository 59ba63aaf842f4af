// Package discovery mirrors the tool catalogs of upstream MCP servers
// into the local registry. Each configured source is reconciled
// independently: new upstream tools are registered, changed ones are
// updated, and tools that vanished upstream are deactivated, never
// deleted. Discovered tools are namespaced "{source}:{remote_name}".
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/toolscout/toolscout/internal/config"
	"github.com/toolscout/toolscout/internal/model"
	"github.com/toolscout/toolscout/internal/service/registry"
	"github.com/toolscout/toolscout/internal/store"
	"github.com/toolscout/toolscout/pkg/types"
	"github.com/toolscout/toolscout/pkg/version"
)

// ErrUnknownSource means the requested source name is not configured.
var ErrUnknownSource = errors.New("unknown discovery source")

// gatewaySourceName is the reserved source name for the LLM gateway's
// own tool catalog.
const gatewaySourceName = "gateway"

// listToolsMaxTries bounds the upstream tools/list retry loop.
const listToolsMaxTries = 3

// remoteTool is one tool as reported by an upstream catalog, already
// reduced to the fields reconciliation cares about.
type remoteTool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// ServiceConfig is the configuration for creating a discovery Service.
type ServiceConfig struct {
	Registry *registry.Service
	Store    *store.ToolStore
	Config   config.DiscoveryConfig

	// Gateway is used when the gateway catalog source is enabled.
	Gateway config.GatewayConfig
}

// Service reconciles upstream catalogs into the registry.
type Service struct {
	registry *registry.Service
	store    *store.ToolStore
	cfg      config.DiscoveryConfig
	gateway  config.GatewayConfig

	// fetch lists one source's tools. Swappable for tests.
	fetch func(ctx context.Context, source types.McpSource) ([]remoteTool, error)
}

// NewDiscoveryService creates the discovery service.
func NewDiscoveryService(c *ServiceConfig) (*Service, error) {
	if c.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if c.Store == nil {
		return nil, errors.New("store is required")
	}
	s := &Service{
		registry: c.Registry,
		store:    c.Store,
		cfg:      c.Config,
		gateway:  c.Gateway,
	}
	s.fetch = s.listRemoteTools
	return s, nil
}

// Sources returns the sources a sync run would process, including the
// implicit gateway source when enabled.
func (s *Service) Sources() []types.McpSource {
	sources := make([]types.McpSource, 0, len(s.cfg.Sources)+1)
	sources = append(sources, s.cfg.Sources...)
	if s.cfg.GatewayTools && s.gateway.Enabled() {
		sources = append(sources, types.McpSource{
			Name:        gatewaySourceName,
			URL:         strings.TrimRight(s.gateway.URL, "/") + "/mcp",
			Description: "LLM gateway tool catalog",
			BearerToken: s.gateway.APIKey,
		})
	}
	return sources
}

// SyncAll reconciles every configured source in order. A failing
// source never aborts the run; its summary carries the error.
func (s *Service) SyncAll(ctx context.Context) (*types.SyncResponse, error) {
	sources := s.Sources()
	resp := &types.SyncResponse{Summaries: make([]types.SourceSyncSummary, 0, len(sources))}
	for _, source := range sources {
		resp.Summaries = append(resp.Summaries, s.syncSource(ctx, source))
	}
	return resp, nil
}

// SyncSource reconciles a single source by name.
func (s *Service) SyncSource(ctx context.Context, name string) (*types.SourceSyncSummary, error) {
	for _, source := range s.Sources() {
		if source.Name == name {
			summary := s.syncSource(ctx, source)
			return &summary, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
}

// syncSource runs one source's reconciliation under its own deadline.
func (s *Service) syncSource(ctx context.Context, source types.McpSource) types.SourceSyncSummary {
	summary := types.SourceSyncSummary{Source: source.Name, Errors: []string{}}

	if s.cfg.SourceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.SourceTimeout)
		defer cancel()
	}

	remote, err := s.fetch(ctx, source)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("failed to list tools: %v", err))
		log.Printf("[ERROR] discovery: source %s unreachable: %v\n", source.Name, err)
		return summary
	}
	summary.Fetched = len(remote)

	existing, err := s.store.ListByPrefix(ctx, source.Name+":")
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("failed to list local tools: %v", err))
		return summary
	}
	byName := make(map[string]*model.Tool, len(existing))
	for i := range existing {
		byName[existing[i].Name] = &existing[i]
	}

	seen := make(map[string]bool, len(remote))
	for _, rt := range remote {
		if rt.Description == "" {
			rt.Description = fmt.Sprintf("Tool %s discovered from %s", rt.Name, source.Name)
		}
		name := source.Name + ":" + rt.Name
		if err := types.ValidateToolName(name); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("skipping %s: %v", rt.Name, err))
			continue
		}
		seen[name] = true

		current, ok := byName[name]
		if !ok {
			if err := s.create(ctx, source, rt, name); err != nil {
				summary.Errors = append(summary.Errors, fmt.Sprintf("failed to register %s: %v", name, err))
				continue
			}
			summary.Created++
			continue
		}

		changed, err := s.update(ctx, source, rt, current)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("failed to update %s: %v", name, err))
			continue
		}
		if changed {
			summary.Updated++
		}
	}

	// Anything we hold under this namespace that the upstream no longer
	// reports goes inactive. Already-inactive tools are not counted
	// again, keeping repeated runs idempotent.
	for _, t := range existing {
		if seen[t.Name] || !t.IsActive {
			continue
		}
		if _, err := s.registry.SetToolActive(ctx, t.ID, false); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("failed to deactivate %s: %v", t.Name, err))
			continue
		}
		summary.Deactivated++
	}

	log.Printf("[INFO] discovery: source %s: fetched=%d created=%d updated=%d deactivated=%d errors=%d\n",
		source.Name, summary.Fetched, summary.Created, summary.Updated, summary.Deactivated, len(summary.Errors))
	return summary
}

// create registers a newly discovered tool.
func (s *Service) create(ctx context.Context, source types.McpSource, rt remoteTool, name string) error {
	implType, implCode, err := s.implementationFor(source, rt)
	if err != nil {
		return err
	}
	_, err = s.registry.RegisterTool(ctx, &types.RegisterToolInput{
		Name:               name,
		Description:        rt.Description,
		ImplementationType: string(implType),
		ImplementationCode: implCode,
		InputSchema:        rt.InputSchema,
		Tags:               source.Tags,
		Category:           source.Category,
		Metadata:           map[string]any{"discovered_from": source.Name},
	})
	return err
}

// update reconciles one already-registered tool against its upstream
// counterpart. Returns true when anything changed: content, routing
// config, or a reactivation.
func (s *Service) update(ctx context.Context, source types.McpSource, rt remoteTool, current *model.Tool) (bool, error) {
	implType, implCode, err := s.implementationFor(source, rt)
	if err != nil {
		return false, err
	}

	desired, err := model.NewTool(&types.RegisterToolInput{
		Name:               current.Name,
		Description:        rt.Description,
		ImplementationType: string(implType),
		ImplementationCode: implCode,
		InputSchema:        rt.InputSchema,
		Tags:               source.Tags,
		Category:           source.Category,
	})
	if err != nil {
		return false, err
	}

	changed := false
	if desired.ContentHash() != current.ContentHash() || !sameJSON(implCode, json.RawMessage(current.ImplementationCode)) {
		implTypeStr := string(implType)
		if _, err := s.registry.UpdateTool(ctx, current.ID, &types.UpdateToolInput{
			Description:        &rt.Description,
			ImplementationType: &implTypeStr,
			ImplementationCode: implCode,
			InputSchema:        rt.InputSchema,
			Tags:               source.Tags,
			Category:           &source.Category,
		}); err != nil {
			return false, err
		}
		changed = true
	}
	if !current.IsActive {
		if _, err := s.registry.SetToolActive(ctx, current.ID, true); err != nil {
			return false, err
		}
		changed = true
	}
	return changed, nil
}

// implementationFor builds the routing config for a discovered tool.
// Gateway-catalog tools route through the LLM_GATEWAY backend; every
// other source yields an MCP_SERVER proxy.
func (s *Service) implementationFor(source types.McpSource, rt remoteTool) (types.ImplementationType, json.RawMessage, error) {
	if source.Name == gatewaySourceName && s.cfg.GatewayTools {
		code, err := json.Marshal(types.LLMGatewayConfig{ToolName: rt.Name, URL: source.URL})
		if err != nil {
			return "", nil, err
		}
		return types.ImplLLMGateway, code, nil
	}
	code, err := json.Marshal(types.MCPServerConfig{
		URL:         source.URL,
		ToolName:    rt.Name,
		BearerToken: source.BearerToken,
	})
	if err != nil {
		return "", nil, err
	}
	return types.ImplMCPServer, code, nil
}

// listRemoteTools fetches a source's full catalog over streamable
// HTTP, following list pagination and retrying transient failures.
func (s *Service) listRemoteTools(ctx context.Context, source types.McpSource) ([]remoteTool, error) {
	operation := func() ([]remoteTool, error) {
		tools, err := fetchCatalog(ctx, source)
		if err != nil && ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return tools, err
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 500 * time.Millisecond
	expBackoff.MaxInterval = 5 * time.Second

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(listToolsMaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Printf("[WARN] discovery: listing %s failed, retrying in %s: %v\n",
				source.Name, next.Round(time.Millisecond), err)
		}),
	)
}

// fetchCatalog opens one MCP session and drains tools/list.
func fetchCatalog(ctx context.Context, source types.McpSource) ([]remoteTool, error) {
	var opts []transport.StreamableHTTPCOption
	if source.BearerToken != "" {
		opts = append(opts, transport.WithHTTPHeaders(map[string]string{
			"Authorization": "Bearer " + source.BearerToken,
		}))
	}
	c, err := client.NewStreamableHttpClient(source.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}
	defer c.Close()

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    "toolscout",
		Version: version.Version,
	}
	if _, err := c.Initialize(ctx, initRequest); err != nil {
		return nil, fmt.Errorf("failed to initialize MCP session: %w", err)
	}

	var tools []remoteTool
	var cursor mcp.Cursor
	for {
		req := mcp.ListToolsRequest{}
		req.Params.Cursor = cursor
		page, err := c.ListTools(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("tools/list failed: %w", err)
		}
		for _, t := range page.Tools {
			schema, err := marshalInputSchema(t)
			if err != nil {
				return nil, fmt.Errorf("tool %s has an unusable input schema: %w", t.Name, err)
			}
			tools = append(tools, remoteTool{
				Name:        t.Name,
				Description: t.Description,
				InputSchema: schema,
			})
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	return tools, nil
}

func marshalInputSchema(t mcp.Tool) (json.RawMessage, error) {
	if len(t.RawInputSchema) > 0 {
		return json.RawMessage(t.RawInputSchema), nil
	}
	return json.Marshal(t.InputSchema)
}

// sameJSON compares two JSON documents structurally.
func sameJSON(a, b json.RawMessage) bool {
	var av, bv any
	if err := json.Unmarshal(a, &av); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return false
	}
	ar, err := json.Marshal(av)
	if err != nil {
		return false
	}
	br, err := json.Marshal(bv)
	if err != nil {
		return false
	}
	return string(ar) == string(br)
}
