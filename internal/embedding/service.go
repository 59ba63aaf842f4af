package embedding

import (
	"context"
	"time"

	"github.com/toolscout/toolscout/internal/telemetry"
)

// ServiceConfig configures the cached embedding service.
type ServiceConfig struct {
	// Client is the underlying backend client. Nil means no backend is
	// configured and every call returns ErrNotConfigured.
	Client Client

	// CacheSize bounds the LRU cache. Zero disables caching, which
	// changes cost but never correctness.
	CacheSize int

	Metrics telemetry.CustomMetrics
}

// Service wraps a backend Client with an LRU cache and metrics. It
// satisfies Client itself so callers never care whether a lookup was
// served from memory.
type Service struct {
	client  Client
	cache   *vectorCache
	metrics telemetry.CustomMetrics
}

// NewService creates the cached embedding service.
func NewService(cfg *ServiceConfig) (*Service, error) {
	cache, err := newVectorCache(cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopCustomMetrics()
	}
	return &Service{
		client:  cfg.Client,
		cache:   cache,
		metrics: metrics,
	}, nil
}

// Configured reports whether a backend client is wired in.
func (s *Service) Configured() bool {
	return s.client != nil
}

// Dimension is the configured vector length, or 0 without a backend.
func (s *Service) Dimension() int {
	if s.client == nil {
		return 0
	}
	return s.client.Dimension()
}

// Embed returns the vector for one text, from cache when possible.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.client == nil {
		return nil, ErrNotConfigured
	}
	start := time.Now()
	if vec, ok := s.cache.get(text); ok {
		s.metrics.RecordEmbeddingRequest(ctx, true, false, time.Since(start))
		return vec, nil
	}
	vec, err := s.client.Embed(ctx, text)
	s.metrics.RecordEmbeddingRequest(ctx, false, err != nil, time.Since(start))
	if err != nil {
		return nil, err
	}
	s.cache.add(text, vec)
	return vec, nil
}

// EmbedBatch returns one vector per text, in input order. Cached texts
// are served from memory; only the misses go to the backend, in one
// call.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if s.client == nil {
		return nil, ErrNotConfigured
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	start := time.Now()
	vecs := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		if vec, ok := s.cache.get(text); ok {
			vecs[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) > 0 {
		fetched, err := s.client.EmbedBatch(ctx, missTexts)
		s.metrics.RecordEmbeddingRequest(ctx, false, err != nil, time.Since(start))
		if err != nil {
			return nil, err
		}
		for j, vec := range fetched {
			vecs[missIdx[j]] = vec
			s.cache.add(missTexts[j], vec)
		}
	} else {
		s.metrics.RecordEmbeddingRequest(ctx, true, false, time.Since(start))
	}

	return vecs, nil
}

// Health checks the backend. Without a backend it reports
// ErrNotConfigured so probes can distinguish "off" from "down".
func (s *Service) Health(ctx context.Context) error {
	if s.client == nil {
		return ErrNotConfigured
	}
	return s.client.Health(ctx)
}

// CacheStats returns a snapshot of the cache counters.
func (s *Service) CacheStats() CacheStats {
	return s.cache.stats()
}
