// Package store persists tools and serves similarity and lexical
// queries over the catalog. Vector SQL is Postgres-only; SQLite
// deployments get a portable lexical fallback and no semantic search.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"github.com/toolscout/toolscout/internal/db"
	"github.com/toolscout/toolscout/internal/model"
	"github.com/toolscout/toolscout/pkg/types"
	"gorm.io/gorm"
)

// ErrVectorSearchUnavailable means the connected database has no
// vector support. Callers fall back to lexical search.
var ErrVectorSearchUnavailable = errors.New("vector search requires a postgres database with pgvector")

// Filters narrow catalog queries.
type Filters struct {
	Category   string
	ActiveOnly bool
}

// ScoredResult is one search hit with its ranking scores.
type ScoredResult struct {
	Tool model.Tool

	// Score is the final ranking score: blended in hybrid mode,
	// otherwise the single leg's score.
	Score         float64
	SemanticScore float64
	LexicalScore  float64
}

// ToolStore wraps the database with catalog and search operations.
type ToolStore struct {
	db        *gorm.DB
	dimension int
}

// NewToolStore creates a store. dimension is the expected embedding
// length, enforced on every vector write.
func NewToolStore(conn *gorm.DB, dimension int) *ToolStore {
	return &ToolStore{db: conn, dimension: dimension}
}

// WithTx returns a store bound to the given transaction handle,
// keeping the same dimension.
func (s *ToolStore) WithTx(tx *gorm.DB) *ToolStore {
	return &ToolStore{db: tx, dimension: s.dimension}
}

// SemanticSearchAvailable reports whether vector queries can run on
// the connected database.
func (s *ToolStore) SemanticSearchAvailable() bool {
	return db.IsPostgres(s.db)
}

// Create inserts a new tool row.
func (s *ToolStore) Create(ctx context.Context, t *model.Tool) error {
	return s.db.WithContext(ctx).Create(t).Error
}

// Save writes all fields of an existing tool row.
func (s *ToolStore) Save(ctx context.Context, t *model.Tool) error {
	return s.db.WithContext(ctx).Save(t).Error
}

// GetByID fetches one tool. Returns gorm.ErrRecordNotFound when the
// id does not exist.
func (s *ToolStore) GetByID(ctx context.Context, id uint) (*model.Tool, error) {
	var t model.Tool
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// GetByName fetches one tool by its unique name.
func (s *ToolStore) GetByName(ctx context.Context, name string) (*model.Tool, error) {
	var t model.Tool
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// List returns a page of tools plus the total row count for the same
// filters. Ordered by id ascending for stable pagination.
func (s *ToolStore) List(ctx context.Context, f Filters, limit, offset int) ([]model.Tool, int64, error) {
	q := s.applyFilters(s.db.WithContext(ctx).Model(&model.Tool{}), f)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tools []model.Tool
	if err := q.Order("id ASC").Limit(limit).Offset(offset).Find(&tools).Error; err != nil {
		return nil, 0, err
	}
	return tools, total, nil
}

// ListByPrefix returns all tools whose name starts with the given
// prefix, active or not. Used by discovery to load one source's
// namespace.
func (s *ToolStore) ListByPrefix(ctx context.Context, prefix string) ([]model.Tool, error) {
	var tools []model.Tool
	err := s.db.WithContext(ctx).
		Where("name LIKE ?", escapeLike(prefix)+"%").
		Order("id ASC").
		Find(&tools).Error
	if err != nil {
		return nil, err
	}
	return tools, nil
}

// SetEmbedding writes the vector column for one tool, validating the
// vector length against the configured dimension.
func (s *ToolStore) SetEmbedding(ctx context.Context, toolID uint, vec []float32) error {
	if len(vec) != s.dimension {
		return fmt.Errorf("embedding has dimension %d, expected %d", len(vec), s.dimension)
	}
	return s.db.WithContext(ctx).
		Model(&model.Tool{}).
		Where("id = ?", toolID).
		Update("embedding", model.NewNullableVector(vec)).Error
}

// ClearEmbedding nulls the vector column for one tool.
func (s *ToolStore) ClearEmbedding(ctx context.Context, toolID uint) error {
	return s.db.WithContext(ctx).
		Model(&model.Tool{}).
		Where("id = ?", toolID).
		Update("embedding", nil).Error
}

// CountIndexed counts tools that currently have an embedding.
func (s *ToolStore) CountIndexed(ctx context.Context, activeOnly bool) (int64, error) {
	q := s.db.WithContext(ctx).Model(&model.Tool{}).Where("embedding IS NOT NULL")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var count int64
	err := q.Count(&count).Error
	return count, err
}

// ListCategories returns the distinct non-empty categories of active
// tools, sorted.
func (s *ToolStore) ListCategories(ctx context.Context) ([]string, error) {
	var categories []string
	err := s.db.WithContext(ctx).
		Model(&model.Tool{}).
		Where("is_active = ? AND category <> ''", true).
		Distinct("category").
		Order("category ASC").
		Pluck("category", &categories).Error
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// Stats aggregates catalog totals by category and implementation type.
func (s *ToolStore) Stats(ctx context.Context) (*types.RegistryStats, error) {
	stats := &types.RegistryStats{
		ByCategory:           map[string]int64{},
		ByImplementationType: map[string]int64{},
	}

	conn := s.db.WithContext(ctx)
	if err := conn.Model(&model.Tool{}).Count(&stats.TotalTools).Error; err != nil {
		return nil, err
	}
	if err := conn.Model(&model.Tool{}).Where("is_active = ?", true).Count(&stats.ActiveTools).Error; err != nil {
		return nil, err
	}
	indexed, err := s.CountIndexed(ctx, false)
	if err != nil {
		return nil, err
	}
	stats.IndexedTools = indexed
	if err := conn.Model(&model.ToolExecution{}).Count(&stats.TotalExecutions).Error; err != nil {
		return nil, err
	}

	type bucket struct {
		Key   string
		Count int64
	}
	var byCategory []bucket
	err = conn.Model(&model.Tool{}).
		Select("category AS key, COUNT(*) AS count").
		Where("category <> ''").
		Group("category").
		Scan(&byCategory).Error
	if err != nil {
		return nil, err
	}
	for _, b := range byCategory {
		stats.ByCategory[b.Key] = b.Count
	}

	var byImpl []bucket
	err = conn.Model(&model.Tool{}).
		Select("implementation_type AS key, COUNT(*) AS count").
		Group("implementation_type").
		Scan(&byImpl).Error
	if err != nil {
		return nil, err
	}
	for _, b := range byImpl {
		stats.ByImplementationType[b.Key] = b.Count
	}

	return stats, nil
}

// FindSimilar runs a semantic search seeded by a stored tool's own
// embedding.
func (s *ToolStore) FindSimilar(ctx context.Context, toolID uint, limit int, excludeSelf bool) ([]ScoredResult, error) {
	if !s.SemanticSearchAvailable() {
		return nil, ErrVectorSearchUnavailable
	}
	t, err := s.GetByID(ctx, toolID)
	if err != nil {
		return nil, err
	}
	if !t.HasEmbedding() {
		return nil, fmt.Errorf("tool %d has no embedding", toolID)
	}

	fetch := limit
	if excludeSelf {
		fetch++
	}
	results, err := s.SemanticSearch(ctx, t.Embedding.Slice(), fetch, 0, Filters{ActiveOnly: true})
	if err != nil {
		return nil, err
	}

	out := make([]ScoredResult, 0, limit)
	for _, r := range results {
		if excludeSelf && r.Tool.ID == toolID {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// applyFilters adds the Filters conditions to a tools query.
func (s *ToolStore) applyFilters(q *gorm.DB, f Filters) *gorm.DB {
	if f.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	return q
}

// loadOrdered fetches tools for the given ids and returns them in the
// same order. Search SQL returns (id, score) pairs; the rows are
// hydrated in a second query to keep the raw SQL narrow.
func (s *ToolStore) loadOrdered(ctx context.Context, ids []uint) ([]model.Tool, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var tools []model.Tool
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&tools).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]model.Tool, len(tools))
	for _, t := range tools {
		byID[t.ID] = t
	}
	ordered := make([]model.Tool, 0, len(ids))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			ordered = append(ordered, t)
		}
	}
	return ordered, nil
}

func newVectorParam(vec []float32) pgvector.Vector {
	return pgvector.NewVector(vec)
}

// escapeLike escapes LIKE wildcards in a literal prefix.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
