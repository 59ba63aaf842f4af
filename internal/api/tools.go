package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/toolscout/toolscout/internal/service/executor"
	"github.com/toolscout/toolscout/internal/service/retrieval"
	"github.com/toolscout/toolscout/pkg/types"
)

// listToolsHandler serves the public paginated tool list.
func (s *Server) listToolsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.ListToolsRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
				return
			}
		}
		resp, err := s.registry.ListTools(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// findToolHandler serves natural-language tool discovery.
func (s *Server) findToolHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.FindToolRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
			return
		}
		resp, err := s.retrieval.FindTool(c.Request.Context(), &req)
		if err != nil {
			if errors.Is(err, retrieval.ErrInvalidQuery) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// callToolHandler executes a tool and returns the outcome. Resolution
// and validation failures map to 4xx; backend failures are carried in
// the result body with a 200.
func (s *Server) callToolHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.CallToolRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
			return
		}
		if req.ToolName == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "tool_name is required"})
			return
		}

		result, err := s.executor.CallTool(c.Request.Context(), &req)
		if err != nil {
			s.renderCallError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// callToolSummarizedHandler executes a tool and compacts oversized
// output, always reporting whether summarization happened.
func (s *Server) callToolSummarizedHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.CallToolSummarizedRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
			return
		}
		if req.ToolName == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "tool_name is required"})
			return
		}

		result, err := s.executor.CallTool(c.Request.Context(), &types.CallToolRequest{
			ToolName:  req.ToolName,
			Arguments: req.Arguments,
			Metadata:  req.Metadata,
		})
		if err != nil {
			s.renderCallError(c, err)
			return
		}

		summarized := &types.CallToolSummarizedResult{CallToolResult: *result}
		if result.Status == types.ExecutionStatusSuccess && s.summarizer != nil {
			maxTokens := req.MaxTokens
			if maxTokens <= 0 {
				maxTokens = s.summaryMaxTokens
			}
			text, wasSummarized := s.summarizer.SummarizeIfNeeded(
				c.Request.Context(), result.Output, maxTokens, req.Hint, req.ToolName,
			)
			summarized.WasSummarized = wasSummarized
			if wasSummarized {
				if raw, err := json.Marshal(text); err == nil {
					summarized.Output = raw
				}
			}
		}
		c.JSON(http.StatusOK, summarized)
	}
}

// renderCallError maps executor resolution/validation errors onto
// status codes.
func (s *Server) renderCallError(c *gin.Context, err error) {
	var notFound *executor.NotFoundError
	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":       notFound.Error(),
			"suggestions": notFound.Suggestions,
		})
	case errors.Is(err, executor.ErrToolInactive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, executor.ErrValidationFailed):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
