package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/toolscout/toolscout/internal/service/registry"
	"github.com/toolscout/toolscout/pkg/types"
)

// toolIDParam parses the :id path parameter.
func toolIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tool id"})
		return 0, false
	}
	return uint(id), true
}

// renderRegistryError maps registry errors onto status codes.
func renderRegistryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, registry.ErrToolNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, registry.ErrNameConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, registry.ErrSchemaInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, registry.ErrEmbeddingFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// registerToolHandler creates a tool from a registration request.
func (s *Server) registerToolHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input types.RegisterToolInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
			return
		}
		tool, err := s.registry.RegisterTool(c.Request.Context(), &input)
		if err != nil {
			switch {
			case errors.Is(err, registry.ErrNameConflict),
				errors.Is(err, registry.ErrSchemaInvalid),
				errors.Is(err, registry.ErrEmbeddingFailed):
				renderRegistryError(c, err)
			default:
				// Anything else at registration time is bad input: an
				// invalid name, implementation type or config shape.
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			}
			return
		}
		c.JSON(http.StatusCreated, tool.APIType())
	}
}

// adminListToolsHandler lists tools with query-parameter filters.
func (s *Server) adminListToolsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		req := &types.ListToolsRequest{Category: c.Query("category")}
		if raw := c.Query("active_only"); raw != "" {
			active, err := strconv.ParseBool(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "active_only must be true or false"})
				return
			}
			req.ActiveOnly = &active
		}
		var err error
		if req.Limit, err = intQuery(c, "limit"); err != nil {
			return
		}
		if req.Offset, err = intQuery(c, "offset"); err != nil {
			return
		}

		resp, err := s.registry.ListTools(c.Request.Context(), req)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (s *Server) getToolHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := toolIDParam(c)
		if !ok {
			return
		}
		tool, err := s.registry.GetTool(c.Request.Context(), id)
		if err != nil {
			renderRegistryError(c, err)
			return
		}
		c.JSON(http.StatusOK, tool.APIType())
	}
}

func (s *Server) updateToolHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := toolIDParam(c)
		if !ok {
			return
		}
		var input types.UpdateToolInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
			return
		}
		tool, err := s.registry.UpdateTool(c.Request.Context(), id, &input)
		if err != nil {
			renderRegistryError(c, err)
			return
		}
		c.JSON(http.StatusOK, tool.APIType())
	}
}

func (s *Server) deleteToolHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := toolIDParam(c)
		if !ok {
			return
		}
		if err := s.registry.DeleteTool(c.Request.Context(), id); err != nil {
			renderRegistryError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": id})
	}
}

func (s *Server) setToolActiveHandler(active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := toolIDParam(c)
		if !ok {
			return
		}
		tool, err := s.registry.SetToolActive(c.Request.Context(), id, active)
		if err != nil {
			renderRegistryError(c, err)
			return
		}
		c.JSON(http.StatusOK, tool.APIType())
	}
}

func (s *Server) reindexToolHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := toolIDParam(c)
		if !ok {
			return
		}
		if err := s.registry.ReindexTool(c.Request.Context(), id); err != nil {
			renderRegistryError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"reindexed": id})
	}
}

func (s *Server) toolStatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := toolIDParam(c)
		if !ok {
			return
		}
		stats, err := s.registry.GetToolStats(c.Request.Context(), id)
		if err != nil {
			renderRegistryError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func (s *Server) similarToolsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := toolIDParam(c)
		if !ok {
			return
		}
		limit, err := intQuery(c, "limit")
		if err != nil {
			return
		}
		results, err := s.registry.FindSimilar(c.Request.Context(), id, limit)
		if err != nil {
			renderRegistryError(c, err)
			return
		}

		scored := make([]types.ScoredTool, 0, len(results))
		for i := range results {
			scored = append(scored, types.ScoredTool{
				Tool:          results[i].Tool.APIType(),
				Score:         results[i].Score,
				SemanticScore: results[i].SemanticScore,
				LexicalScore:  results[i].LexicalScore,
			})
		}
		c.JSON(http.StatusOK, gin.H{"results": scored, "count": len(scored)})
	}
}

func (s *Server) registryStatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := s.registry.Stats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

// listExecutionsHandler serves the execution audit trail, newest
// first, optionally filtered by tool.
func (s *Server) listExecutionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var toolID uint
		if raw := c.Query("tool_id"); raw != "" {
			parsed, err := strconv.ParseUint(raw, 10, 32)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "tool_id must be a positive integer"})
				return
			}
			toolID = uint(parsed)
		}
		limit, err := intQuery(c, "limit")
		if err != nil {
			return
		}
		offset, err := intQuery(c, "offset")
		if err != nil {
			return
		}

		records, err := s.registry.ListExecutions(c.Request.Context(), toolID, limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"executions": records, "count": len(records)})
	}
}

// intQuery parses an optional non-negative integer query parameter,
// writing the error response itself on failure.
func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		err = fmt.Errorf("%s must be a non-negative integer", name)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return 0, err
	}
	return val, nil
}
