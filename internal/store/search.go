package store

import (
	"context"
	"sort"
	"strings"
)

// lexicalDocumentSQL is the text the full-text rank is computed over:
// name, description, category and tags, concatenated. Identifiers are
// fixed; only values are bound as parameters.
const lexicalDocumentSQL = `to_tsvector('english',
	coalesce(name, '') || ' ' || coalesce(description, '') || ' ' ||
	coalesce(category, '') || ' ' || coalesce(tags::text, ''))`

// SemanticSearch ranks tools by vector similarity to the query vector.
// Score is 1 - cosine distance, clamped to [0, 1]; rows below
// minSimilarity are excluded. Ties break by id ascending.
func (s *ToolStore) SemanticSearch(
	ctx context.Context, queryVec []float32, limit int, minSimilarity float64, f Filters,
) ([]ScoredResult, error) {
	if !s.SemanticSearchAvailable() {
		return nil, ErrVectorSearchUnavailable
	}

	var sb strings.Builder
	sb.WriteString("SELECT id, 1 - (embedding <=> ?) AS score FROM tools")
	sb.WriteString(" WHERE deleted_at IS NULL AND embedding IS NOT NULL")
	args := []any{newVectorParam(queryVec)}

	if f.ActiveOnly {
		sb.WriteString(" AND is_active = true")
	}
	if f.Category != "" {
		sb.WriteString(" AND category = ?")
		args = append(args, f.Category)
	}
	if minSimilarity > 0 {
		sb.WriteString(" AND 1 - (embedding <=> ?) >= ?")
		args = append(args, newVectorParam(queryVec), minSimilarity)
	}
	sb.WriteString(" ORDER BY score DESC, id ASC LIMIT ?")
	args = append(args, limit)

	hits, err := s.scanScoredIDs(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, hits, func(r *ScoredResult, score float64) {
		r.SemanticScore = clampScore(score)
		r.Score = r.SemanticScore
	})
}

// LexicalSearch ranks tools by full-text match against the query. The
// returned score is a normalized rank in [0, 1]. On databases without
// full-text support a portable term-overlap fallback is used.
func (s *ToolStore) LexicalSearch(
	ctx context.Context, query string, limit int, f Filters,
) ([]ScoredResult, error) {
	if !s.SemanticSearchAvailable() {
		return s.lexicalSearchPortable(ctx, query, limit, f)
	}

	var sb strings.Builder
	// Normalization flag 32 maps ts_rank_cd into [0, 1).
	sb.WriteString("SELECT id, ts_rank_cd(" + lexicalDocumentSQL + ", plainto_tsquery('english', ?), 32) AS score")
	sb.WriteString(" FROM tools WHERE deleted_at IS NULL")
	sb.WriteString(" AND " + lexicalDocumentSQL + " @@ plainto_tsquery('english', ?)")
	args := []any{query, query}

	if f.ActiveOnly {
		sb.WriteString(" AND is_active = true")
	}
	if f.Category != "" {
		sb.WriteString(" AND category = ?")
		args = append(args, f.Category)
	}
	sb.WriteString(" ORDER BY score DESC, id ASC LIMIT ?")
	args = append(args, limit)

	hits, err := s.scanScoredIDs(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	return s.hydrate(ctx, hits, func(r *ScoredResult, score float64) {
		r.LexicalScore = clampScore(score)
		r.Score = r.LexicalScore
	})
}

// HybridSearch blends both legs: score = alpha*semantic +
// (1-alpha)*lexical. The candidate set is the union of the top results
// of each leg; minSimilarity prunes the semantic leg only. With alpha
// 1 the result equals SemanticSearch, with alpha 0 LexicalSearch.
func (s *ToolStore) HybridSearch(
	ctx context.Context, query string, queryVec []float32, limit int,
	alpha, minSimilarity float64, f Filters,
) ([]ScoredResult, error) {
	legLimit := limit * 2
	if legLimit < limit {
		legLimit = limit
	}

	semantic, err := s.SemanticSearch(ctx, queryVec, legLimit, minSimilarity, f)
	if err != nil {
		return nil, err
	}
	lexical, err := s.LexicalSearch(ctx, query, legLimit, f)
	if err != nil {
		return nil, err
	}

	return blendHybrid(semantic, lexical, alpha, limit), nil
}

// blendHybrid merges the two legs over the union of their candidates,
// weighting score = alpha*semantic + (1-alpha)*lexical. Order is score
// desc, id asc, truncated to limit.
func blendHybrid(semantic, lexical []ScoredResult, alpha float64, limit int) []ScoredResult {
	merged := make(map[uint]*ScoredResult, len(semantic)+len(lexical))
	for i := range semantic {
		r := semantic[i]
		merged[r.Tool.ID] = &r
	}
	for i := range lexical {
		if existing, ok := merged[lexical[i].Tool.ID]; ok {
			existing.LexicalScore = lexical[i].LexicalScore
		} else {
			r := lexical[i]
			merged[r.Tool.ID] = &r
		}
	}

	results := make([]ScoredResult, 0, len(merged))
	for _, r := range merged {
		r.Score = alpha*r.SemanticScore + (1-alpha)*r.LexicalScore
		results = append(results, *r)
	}
	sortScored(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// lexicalSearchPortable is the non-Postgres lexical ranking: the score
// is the fraction of distinct query terms found in the tool's text.
// Good enough for development databases; production runs Postgres.
func (s *ToolStore) lexicalSearchPortable(
	ctx context.Context, query string, limit int, f Filters,
) ([]ScoredResult, error) {
	terms := uniqueLowerTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	q := s.applyFilters(s.db.WithContext(ctx), f)
	var tools []struct {
		ID          uint
		Name        string
		Description string
		Category    string
		Tags        string
	}
	if err := q.Table("tools").Where("deleted_at IS NULL").
		Select("id, name, description, category, tags").
		Scan(&tools).Error; err != nil {
		return nil, err
	}

	var hits []scoredID
	for _, t := range tools {
		doc := strings.ToLower(t.Name + " " + t.Description + " " + t.Category + " " + t.Tags)
		matched := 0
		for _, term := range terms {
			if strings.Contains(doc, term) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		hits = append(hits, scoredID{ID: t.ID, Score: float64(matched) / float64(len(terms))})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return s.hydrate(ctx, hits, func(r *ScoredResult, score float64) {
		r.LexicalScore = clampScore(score)
		r.Score = r.LexicalScore
	})
}

type scoredID struct {
	ID    uint
	Score float64
}

func (s *ToolStore) scanScoredIDs(ctx context.Context, sql string, args ...any) ([]scoredID, error) {
	var hits []scoredID
	if err := s.db.WithContext(ctx).Raw(sql, args...).Scan(&hits).Error; err != nil {
		return nil, err
	}
	return hits, nil
}

// hydrate loads the tool rows for scored ids, preserving order, and
// lets assign place the score on the right field.
func (s *ToolStore) hydrate(
	ctx context.Context, hits []scoredID, assign func(*ScoredResult, float64),
) ([]ScoredResult, error) {
	ids := make([]uint, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	tools, err := s.loadOrdered(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]float64, len(hits))
	for _, h := range hits {
		byID[h.ID] = h.Score
	}

	results := make([]ScoredResult, 0, len(tools))
	for _, t := range tools {
		r := ScoredResult{Tool: t}
		assign(&r, byID[t.ID])
		results = append(results, r)
	}
	return results, nil
}

func sortScored(results []ScoredResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Tool.ID < results[j].Tool.ID
	})
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func uniqueLowerTerms(query string) []string {
	seen := map[string]bool{}
	var terms []string
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if !seen[term] {
			seen[term] = true
			terms = append(terms, term)
		}
	}
	return terms
}
