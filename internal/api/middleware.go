package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/toolscout/toolscout/internal"
	"go.uber.org/zap"
)

// correlationIDHeader carries the id that links a response to its
// server-side log lines.
const correlationIDHeader = "X-Correlation-ID"

// requestLogger logs one line per request with latency and status.
// Probe endpoints are skipped to keep the log readable.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/health" || path == "/ready" || path == "/live" {
			c.Next()
			return
		}

		correlationID := c.GetHeader(correlationIDHeader)
		if correlationID == "" {
			correlationID = internal.NewCorrelationID()
		}
		c.Header(correlationIDHeader, correlationID)

		start := time.Now()
		c.Next()

		s.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("correlation_id", correlationID),
		)
	}
}

// corsMiddleware implements the configured origin policy. The wildcard
// origin is never combined with credentials; config validation rejects
// that pairing at startup.
func (s *Server) corsMiddleware() gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]bool, len(s.corsOrigins))
	for _, origin := range s.corsOrigins {
		if origin == "*" {
			allowAll = true
			continue
		}
		allowed[origin] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowAll || allowed[origin]) {
			if allowAll {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
			if s.corsAllowCredentials {
				c.Header("Access-Control-Allow-Credentials", "true")
			}
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, "+correlationIDHeader)
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// bodySizeLimit caps request bodies so a single oversized payload
// cannot exhaust memory.
func (s *Server) bodySizeLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBodyBytes)
		c.Next()
	}
}

// requireAdminKey guards the admin API with a bearer key, compared in
// constant time. An empty configured key leaves the API open for local
// development.
func (s *Server) requireAdminKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.adminAPIKey == "" {
			c.Next()
			return
		}
		supplied := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if supplied == "" || !internal.SecureCompareKeys(supplied, s.adminAPIKey) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing admin API key"})
			c.Abort()
			return
		}
		c.Next()
	}
}
