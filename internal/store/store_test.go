package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toolscout/toolscout/internal/model"
	"github.com/toolscout/toolscout/pkg/testhelpers"
	"github.com/toolscout/toolscout/pkg/types"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) *ToolStore {
	t.Helper()
	return NewToolStore(testhelpers.SetupTestDB(t), testhelpers.TestEmbeddingDimension)
}

func mustCreateTool(t *testing.T, s *ToolStore, name, description, category string, tags []string) *model.Tool {
	t.Helper()
	tool, err := model.NewTool(&types.RegisterToolInput{
		Name:               name,
		Description:        description,
		Category:           category,
		Tags:               tags,
		ImplementationType: string(types.ImplPythonCallable),
		ImplementationCode: json.RawMessage(`"builtin.noop"`),
	})
	require.NoError(t, err)
	require.NoError(t, s.Create(context.Background(), tool))
	return tool
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := mustCreateTool(t, s, "calculator", "basic arithmetic", "math", []string{"add"})

	byID, err := s.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "calculator", byID.Name)

	byName, err := s.GetByName(ctx, "calculator")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)

	_, err = s.GetByName(ctx, "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestListFiltersAndPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateTool(t, s, "a", "first tool", "math", nil)
	mustCreateTool(t, s, "b", "second tool", "math", nil)
	inactive := mustCreateTool(t, s, "c", "third tool", "text", nil)
	inactive.IsActive = false
	require.NoError(t, s.Save(ctx, inactive))

	all, total, err := s.List(ctx, Filters{}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, all, 3)

	active, total, err := s.List(ctx, Filters{ActiveOnly: true}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, active, 2)

	math, total, err := s.List(ctx, Filters{Category: "math"}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, math, 2)

	page, total, err := s.List(ctx, Filters{}, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].Name)
}

func TestListByPrefix(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateTool(t, s, "github:create_issue", "create an issue", "", nil)
	mustCreateTool(t, s, "github:list_repos", "list repositories", "", nil)
	mustCreateTool(t, s, "jira:create_issue", "create a ticket", "", nil)

	tools, err := s.ListByPrefix(ctx, "github:")
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "github:create_issue", tools[0].Name)
}

func TestSetEmbeddingValidatesDimension(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tool := mustCreateTool(t, s, "calculator", "basic arithmetic", "math", nil)

	err := s.SetEmbedding(ctx, tool.ID, []float32{1, 2})
	assert.Error(t, err)

	vec := make([]float32, testhelpers.TestEmbeddingDimension)
	vec[0] = 1
	require.NoError(t, s.SetEmbedding(ctx, tool.ID, vec))

	stored, err := s.GetByID(ctx, tool.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasEmbedding())
	assert.Equal(t, vec, stored.Embedding.Slice())

	indexed, err := s.CountIndexed(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), indexed)

	require.NoError(t, s.ClearEmbedding(ctx, tool.ID))
	indexed, err = s.CountIndexed(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, int64(0), indexed)
}

func TestSemanticSearchUnavailableOnSQLite(t *testing.T) {
	s := newTestStore(t)
	assert.False(t, s.SemanticSearchAvailable())

	_, err := s.SemanticSearch(context.Background(), make([]float32, testhelpers.TestEmbeddingDimension), 5, 0, Filters{})
	assert.ErrorIs(t, err, ErrVectorSearchUnavailable)
}

func TestLexicalSearchPortable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateTool(t, s, "calculator", "add and subtract numbers", "math", []string{"arithmetic"})
	mustCreateTool(t, s, "weather", "current weather forecast", "data", nil)
	mustCreateTool(t, s, "adder", "add two numbers together", "math", nil)

	results, err := s.LexicalSearch(ctx, "add numbers", 10, Filters{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Both tools match both terms; ties break by id ascending.
	assert.Equal(t, "calculator", results[0].Tool.Name)
	assert.Equal(t, "adder", results[1].Tool.Name)
	for _, r := range results {
		assert.Equal(t, r.LexicalScore, r.Score)
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}

	none, err := s.LexicalSearch(ctx, "quantum chromodynamics", 10, Filters{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLexicalSearchCategoryFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateTool(t, s, "calculator", "add numbers", "math", nil)
	mustCreateTool(t, s, "tally", "add numbers to a tally", "text", nil)

	results, err := s.LexicalSearch(ctx, "add", 10, Filters{Category: "math"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "calculator", results[0].Tool.Name)
}

func TestListCategoriesAndStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateTool(t, s, "a", "tool a", "math", nil)
	mustCreateTool(t, s, "b", "tool b", "text", nil)
	inactive := mustCreateTool(t, s, "c", "tool c", "data", nil)
	inactive.IsActive = false
	require.NoError(t, s.Save(ctx, inactive))

	categories, err := s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"math", "text"}, categories)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalTools)
	assert.Equal(t, int64(2), stats.ActiveTools)
	assert.Equal(t, int64(0), stats.IndexedTools)
	assert.Equal(t, int64(1), stats.ByCategory["math"])
	assert.Equal(t, int64(3), stats.ByImplementationType[string(types.ImplPythonCallable)])
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.0, clampScore(-0.2))
	assert.Equal(t, 1.0, clampScore(1.7))
	assert.Equal(t, 0.5, clampScore(0.5))
}
