// Package retrieval serves find_tool: natural-language discovery over
// the catalog via semantic, lexical or hybrid ranking.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/toolscout/toolscout/internal/config"
	"github.com/toolscout/toolscout/internal/embedding"
	"github.com/toolscout/toolscout/internal/store"
	"github.com/toolscout/toolscout/internal/telemetry"
	"github.com/toolscout/toolscout/pkg/types"
)

// ErrInvalidQuery means the query was empty or too long after
// normalization.
var ErrInvalidQuery = errors.New("invalid query")

// maxQueryChars bounds the normalized query length.
const maxQueryChars = 2000

// Store is the slice of the tool store the service queries. Satisfied
// by *store.ToolStore.
type Store interface {
	SemanticSearchAvailable() bool
	CountIndexed(ctx context.Context, activeOnly bool) (int64, error)
	SemanticSearch(ctx context.Context, queryVec []float32, limit int, minSimilarity float64, f store.Filters) ([]store.ScoredResult, error)
	LexicalSearch(ctx context.Context, query string, limit int, f store.Filters) ([]store.ScoredResult, error)
	HybridSearch(ctx context.Context, query string, queryVec []float32, limit int, alpha, minSimilarity float64, f store.Filters) ([]store.ScoredResult, error)
}

// ServiceConfig is the configuration for creating a retrieval Service.
type ServiceConfig struct {
	Store    Store
	Embedder *embedding.Service
	Config   config.RetrievalConfig
	Metrics  telemetry.CustomMetrics
}

// Service ranks tools against natural-language queries.
type Service struct {
	store    Store
	embedder *embedding.Service
	cfg      config.RetrievalConfig
	metrics  telemetry.CustomMetrics
}

// NewRetrievalService creates the retrieval service.
func NewRetrievalService(c *ServiceConfig) (*Service, error) {
	if c.Store == nil || c.Embedder == nil {
		return nil, errors.New("store and embedder are required")
	}
	metrics := c.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopCustomMetrics()
	}
	return &Service{
		store:    c.Store,
		embedder: c.Embedder,
		cfg:      c.Config,
		metrics:  metrics,
	}, nil
}

// FindTool runs one discovery query. Semantic and hybrid ranking need
// an embedding backend and a vector-capable database; without either
// the service serves lexical results, flagging Degraded when the
// backend exists but failed.
func (s *Service) FindTool(ctx context.Context, req *types.FindToolRequest) (*types.FindToolResponse, error) {
	query, err := normalizeQuery(req.Query)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit > 100 {
		limit = 100
	}
	threshold := s.cfg.DefaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: threshold must be between 0 and 1", ErrInvalidQuery)
	}
	useHybrid := s.cfg.UseHybrid
	if req.UseHybrid != nil {
		useHybrid = *req.UseHybrid
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	filters := store.Filters{Category: req.Category, ActiveOnly: true}
	start := time.Now()

	resp, err := s.search(ctx, query, limit, threshold, useHybrid, filters)
	if err != nil {
		return nil, err
	}
	resp.Query = query
	resp.Count = len(resp.Results)
	s.metrics.RecordToolFind(ctx, resp.SearchMode, resp.Degraded, resp.Count, time.Since(start))
	return resp, nil
}

func (s *Service) search(
	ctx context.Context, query string, limit int, threshold float64, useHybrid bool,
	filters store.Filters,
) (*types.FindToolResponse, error) {
	if !s.store.SemanticSearchAvailable() || !s.embedder.Configured() {
		return s.lexical(ctx, query, limit, filters, false)
	}

	// With nothing indexed the semantic leg can only return nothing,
	// so lexical serves the whole query.
	indexed, err := s.store.CountIndexed(ctx, true)
	if err != nil {
		return nil, err
	}
	if indexed == 0 {
		return s.lexical(ctx, query, limit, filters, false)
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		log.Printf("[WARN] embedding lookup failed, serving lexical results: %v\n", err)
		return s.lexical(ctx, query, limit, filters, true)
	}

	var results []store.ScoredResult
	mode := types.SearchModeSemantic
	if useHybrid {
		mode = types.SearchModeHybrid
		results, err = s.store.HybridSearch(ctx, query, queryVec, limit, s.cfg.HybridAlpha, threshold, filters)
	} else {
		results, err = s.store.SemanticSearch(ctx, queryVec, limit, threshold, filters)
	}
	if err != nil {
		return nil, err
	}

	// The threshold always applies to the semantic component, blended
	// score included, so lexical-only noise cannot pass it.
	filtered := make([]store.ScoredResult, 0, len(results))
	for _, r := range results {
		if r.SemanticScore >= threshold {
			filtered = append(filtered, r)
		}
	}

	return &types.FindToolResponse{
		Results:    toScoredTools(filtered),
		SearchMode: mode,
	}, nil
}

func (s *Service) lexical(
	ctx context.Context, query string, limit int, filters store.Filters, degraded bool,
) (*types.FindToolResponse, error) {
	results, err := s.store.LexicalSearch(ctx, query, limit, filters)
	if err != nil {
		return nil, err
	}
	return &types.FindToolResponse{
		Results:    toScoredTools(results),
		SearchMode: types.SearchModeLexical,
		Degraded:   degraded,
	}, nil
}

func toScoredTools(results []store.ScoredResult) []types.ScoredTool {
	out := make([]types.ScoredTool, 0, len(results))
	for i := range results {
		out = append(out, types.ScoredTool{
			Tool:          results[i].Tool.APIType(),
			Score:         results[i].Score,
			SemanticScore: results[i].SemanticScore,
			LexicalScore:  results[i].LexicalScore,
		})
	}
	return out
}

// normalizeQuery trims, collapses internal whitespace and
// length-checks the query.
func normalizeQuery(query string) (string, error) {
	normalized := strings.Join(strings.Fields(query), " ")
	if normalized == "" {
		return "", fmt.Errorf("%w: query cannot be empty", ErrInvalidQuery)
	}
	if len(normalized) > maxQueryChars {
		return "", fmt.Errorf("%w: query cannot exceed %d characters", ErrInvalidQuery, maxQueryChars)
	}
	return normalized, nil
}
