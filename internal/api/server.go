// Package api provides the HTTP surface of the toolscout server: the
// MCP mounts, the REST discovery/execution endpoints, the admin API
// and the operational probes.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/toolscout/toolscout/internal/db"
	"github.com/toolscout/toolscout/internal/embedding"
	"github.com/toolscout/toolscout/internal/mcpserver"
	"github.com/toolscout/toolscout/internal/service/discovery"
	"github.com/toolscout/toolscout/internal/service/executor"
	"github.com/toolscout/toolscout/internal/service/registry"
	"github.com/toolscout/toolscout/internal/service/retrieval"
	"github.com/toolscout/toolscout/internal/service/summarizer"
	"github.com/toolscout/toolscout/internal/telemetry"
	"github.com/toolscout/toolscout/pkg/types"
	"github.com/toolscout/toolscout/pkg/version"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ServerOptions carries everything the HTTP server needs. All services
// are constructed by the composition root; the server only routes.
type ServerOptions struct {
	Port string

	DB       *gorm.DB
	Embedder *embedding.Service

	RegistryService   *registry.Service
	RetrievalService  *retrieval.Service
	ExecutorService   *executor.Service
	SummarizerService *summarizer.Service
	DiscoveryService  *discovery.Service

	// Facade is the MCP server mounted at /mcp (streamable HTTP) and
	// /sse + /message (SSE).
	Facade *mcpserver.Service

	// AdminAPIKey guards /admin. Empty leaves the admin API open, which
	// is only acceptable for local development.
	AdminAPIKey string

	CORSOrigins          []string
	CORSAllowCredentials bool

	// MaxBodyBytes caps request bodies. Zero means no explicit cap.
	MaxBodyBytes int64

	// SummaryMaxTokens is the default budget for call_tool_summarized.
	SummaryMaxTokens int

	OtelProviders *telemetry.Providers
	Logger        *zap.Logger
}

// Server is the toolscout HTTP server.
type Server struct {
	port   string
	router *gin.Engine
	http   *http.Server

	db       *gorm.DB
	embedder *embedding.Service

	registry   *registry.Service
	retrieval  *retrieval.Service
	executor   *executor.Service
	summarizer *summarizer.Service
	discovery  *discovery.Service

	facade *mcpserver.Service

	adminAPIKey          string
	corsOrigins          []string
	corsAllowCredentials bool
	maxBodyBytes         int64
	summaryMaxTokens     int

	otelProviders *telemetry.Providers
	logger        *zap.Logger
}

// NewServer initializes the Gin server and wires all routes.
func NewServer(opts *ServerOptions) (*Server, error) {
	if opts.RegistryService == nil || opts.RetrievalService == nil || opts.ExecutorService == nil {
		return nil, errors.New("registry, retrieval and executor services are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	summaryMaxTokens := opts.SummaryMaxTokens
	if summaryMaxTokens <= 0 {
		summaryMaxTokens = 1000
	}

	s := &Server{
		port:                 opts.Port,
		db:                   opts.DB,
		embedder:             opts.Embedder,
		registry:             opts.RegistryService,
		retrieval:            opts.RetrievalService,
		executor:             opts.ExecutorService,
		summarizer:           opts.SummarizerService,
		discovery:            opts.DiscoveryService,
		facade:               opts.Facade,
		adminAPIKey:          opts.AdminAPIKey,
		corsOrigins:          opts.CORSOrigins,
		corsAllowCredentials: opts.CORSAllowCredentials,
		maxBodyBytes:         opts.MaxBodyBytes,
		summaryMaxTokens:     summaryMaxTokens,
		otelProviders:        opts.OtelProviders,
		logger:               logger,
	}

	r, err := s.setupRouter()
	if err != nil {
		return nil, err
	}
	s.router = r
	return s, nil
}

// Start runs the HTTP server (blocking call). It returns nil after a
// clean Shutdown.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to run the server: %w", err)
	}
	return nil
}

// Shutdown stops accepting new connections and waits for in-flight
// requests up to the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter wires middleware, probes, the MCP mounts and the REST
// API groups.
func (s *Server) setupRouter() (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())
	r.Use(s.corsMiddleware())
	if s.maxBodyBytes > 0 {
		r.Use(s.bodySizeLimit())
	}

	if s.otelProviders != nil && s.otelProviders.IsEnabled() {
		r.Use(otelgin.Middleware(s.otelProviders.ServiceName))
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	r.GET("/health", s.healthHandler())
	r.GET("/ready", s.readyHandler())
	r.GET("/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "alive"})
	})
	r.GET("/metadata", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"name": "toolscout", "version": version.Version})
	})

	// MCP protocol mounts: streamable HTTP plus SSE for older clients.
	if s.facade != nil {
		streamableHTTPServer := server.NewStreamableHTTPServer(s.facade.Server())
		r.Any("/mcp", gin.WrapH(streamableHTTPServer))

		sseServer := server.NewSSEServer(s.facade.Server())
		r.Any("/sse", gin.WrapH(sseServer.SSEHandler()))
		r.Any("/message", gin.WrapH(sseServer.MessageHandler()))
	}

	// REST mirror of the MCP facade operations.
	mcpAPI := r.Group("/mcp")
	{
		mcpAPI.POST("/list_tools", s.listToolsHandler())
		mcpAPI.POST("/find_tool", s.findToolHandler())
		mcpAPI.POST("/call_tool", s.callToolHandler())
		mcpAPI.POST("/call_tool_summarized", s.callToolSummarizedHandler())
	}

	adminAPI := r.Group("/admin", s.requireAdminKey())
	{
		adminAPI.POST("/tools", s.registerToolHandler())
		adminAPI.GET("/tools", s.adminListToolsHandler())
		adminAPI.GET("/tools/:id", s.getToolHandler())
		adminAPI.PUT("/tools/:id", s.updateToolHandler())
		adminAPI.DELETE("/tools/:id", s.deleteToolHandler())
		adminAPI.POST("/tools/:id/activate", s.setToolActiveHandler(true))
		adminAPI.POST("/tools/:id/deactivate", s.setToolActiveHandler(false))
		adminAPI.POST("/tools/:id/reindex", s.reindexToolHandler())
		adminAPI.GET("/tools/:id/stats", s.toolStatsHandler())
		adminAPI.GET("/tools/:id/similar", s.similarToolsHandler())

		adminAPI.GET("/stats", s.registryStatsHandler())
		adminAPI.GET("/executions", s.listExecutionsHandler())

		adminAPI.POST("/mcp/sync", s.syncHandler())
	}

	return r, nil
}

// healthHandler reports per-subsystem health without failing the
// request: it is a diagnostic view, not a gate.
func (s *Server) healthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		dbStatus := "ok"
		if err := db.Ping(ctx, s.db); err != nil {
			dbStatus = "unreachable"
		}

		embeddingStatus := "not_configured"
		if s.embedder != nil && s.embedder.Configured() {
			embeddingStatus = "ok"
			if err := s.embedder.Health(ctx); err != nil {
				embeddingStatus = "unreachable"
			}
		}

		summarizerStatus := "disabled"
		if s.summarizer != nil && s.summarizer.Enabled() {
			summarizerStatus = "ok"
		}

		status := "ok"
		code := http.StatusOK
		if dbStatus != "ok" {
			status = "degraded"
		}
		c.JSON(code, gin.H{
			"status":     status,
			"version":    version.Version,
			"database":   dbStatus,
			"embedding":  embeddingStatus,
			"summarizer": summarizerStatus,
		})
	}
}

// readyHandler gates traffic on database reachability.
func (s *Server) readyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := db.Ping(ctx, s.db); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": "database unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

// syncHandler triggers catalog discovery, for all sources or one.
func (s *Server) syncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.discovery == nil {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "discovery is not configured"})
			return
		}
		var req types.SyncRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
				return
			}
		}

		if req.Source != "" {
			summary, err := s.discovery.SyncSource(c.Request.Context(), req.Source)
			if err != nil {
				if errors.Is(err, discovery.ErrUnknownSource) {
					c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
					return
				}
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, &types.SyncResponse{Summaries: []types.SourceSyncSummary{*summary}})
			return
		}

		resp, err := s.discovery.SyncAll(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}
