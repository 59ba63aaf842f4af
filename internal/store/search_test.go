package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toolscout/toolscout/internal/model"
	"gorm.io/gorm"
)

func legResult(id uint, semantic, lexical float64) ScoredResult {
	r := ScoredResult{
		Tool:          model.Tool{Model: gorm.Model{ID: id}},
		SemanticScore: semantic,
		LexicalScore:  lexical,
	}
	if semantic > 0 {
		r.Score = semantic
	} else {
		r.Score = lexical
	}
	return r
}

func resultIDs(results []ScoredResult) []uint {
	ids := make([]uint, len(results))
	for i := range results {
		ids[i] = results[i].Tool.ID
	}
	return ids
}

func TestBlendHybridAlphaOneMatchesSemanticRanking(t *testing.T) {
	semantic := []ScoredResult{
		legResult(1, 0.9, 0),
		legResult(2, 0.6, 0),
	}
	lexical := []ScoredResult{
		legResult(3, 0, 0.95),
		legResult(2, 0, 0.8),
	}

	results := blendHybrid(semantic, lexical, 1.0, 10)
	// Lexical-only candidates score zero, so semantic order leads.
	assert.Equal(t, []uint{1, 2, 3}, resultIDs(results))
	assert.Equal(t, 0.9, results[0].Score)
	assert.Equal(t, 0.0, results[2].Score)
}

func TestBlendHybridAlphaZeroMatchesLexicalRanking(t *testing.T) {
	semantic := []ScoredResult{
		legResult(1, 0.9, 0),
		legResult(2, 0.6, 0),
	}
	lexical := []ScoredResult{
		legResult(3, 0, 0.95),
		legResult(2, 0, 0.8),
	}

	results := blendHybrid(semantic, lexical, 0.0, 10)
	assert.Equal(t, []uint{3, 2, 1}, resultIDs(results))
	assert.Equal(t, 0.95, results[0].Score)
	assert.Equal(t, 0.8, results[1].Score)
}

func TestBlendHybridWeightsComponents(t *testing.T) {
	semantic := []ScoredResult{legResult(1, 0.8, 0)}
	lexical := []ScoredResult{legResult(1, 0, 0.4)}

	results := blendHybrid(semantic, lexical, 0.7, 10)
	require.Len(t, results, 1)
	assert.InDelta(t, 0.7*0.8+0.3*0.4, results[0].Score, 1e-9)
	assert.Equal(t, 0.8, results[0].SemanticScore)
	assert.Equal(t, 0.4, results[0].LexicalScore)
}

func TestBlendHybridUnionKeepsSingleLegCandidates(t *testing.T) {
	// A candidate present in only one leg keeps a zero score on the
	// missing component instead of being dropped.
	semantic := []ScoredResult{legResult(1, 0.9, 0)}
	lexical := []ScoredResult{legResult(2, 0, 0.9)}

	results := blendHybrid(semantic, lexical, 0.5, 10)
	require.Len(t, results, 2)
	assert.Equal(t, 0.0, results[0].LexicalScore)
	assert.Equal(t, 0.0, results[1].SemanticScore)
}

func TestBlendHybridTiesBreakByIDAscending(t *testing.T) {
	semantic := []ScoredResult{
		legResult(7, 0.5, 0),
		legResult(3, 0.5, 0),
		legResult(5, 0.5, 0),
	}

	results := blendHybrid(semantic, nil, 1.0, 10)
	assert.Equal(t, []uint{3, 5, 7}, resultIDs(results))
}

func TestBlendHybridTruncatesToLimit(t *testing.T) {
	semantic := []ScoredResult{
		legResult(1, 0.9, 0),
		legResult(2, 0.8, 0),
		legResult(3, 0.7, 0),
	}

	results := blendHybrid(semantic, nil, 1.0, 2)
	assert.Equal(t, []uint{1, 2}, resultIDs(results))
}
