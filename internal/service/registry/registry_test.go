package registry

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toolscout/toolscout/internal/embedding"
	"github.com/toolscout/toolscout/internal/store"
	"github.com/toolscout/toolscout/pkg/testhelpers"
	"github.com/toolscout/toolscout/pkg/types"
	"gorm.io/gorm"
)

// countingEmbedder satisfies embedding.Client and counts calls.
type countingEmbedder struct {
	calls int
	fail  bool
}

func (f *countingEmbedder) Embed(context.Context, string) ([]float32, error) {
	f.calls++
	if f.fail {
		return nil, assert.AnError
	}
	return make([]float32, testhelpers.TestEmbeddingDimension), nil
}

func (f *countingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i := range texts {
		var err error
		if vecs[i], err = f.Embed(context.Background(), texts[i]); err != nil {
			return nil, err
		}
	}
	return vecs, nil
}

func (f *countingEmbedder) Health(context.Context) error { return nil }
func (f *countingEmbedder) Dimension() int               { return testhelpers.TestEmbeddingDimension }

func newTestService(t *testing.T) (*Service, *countingEmbedder, *gorm.DB) {
	t.Helper()
	db := testhelpers.SetupTestDB(t)
	client := &countingEmbedder{}
	embedder, err := embedding.NewService(&embedding.ServiceConfig{Client: client, CacheSize: 100})
	require.NoError(t, err)

	svc, err := NewToolRegistryService(&ServiceConfig{
		DB:       db,
		Store:    store.NewToolStore(db, testhelpers.TestEmbeddingDimension),
		Embedder: embedder,
	})
	require.NoError(t, err)
	return svc, client, db
}

func registerInput(name string) *types.RegisterToolInput {
	return &types.RegisterToolInput{
		Name:               name,
		Description:        "basic arithmetic over two numbers",
		Category:           "math",
		Tags:               []string{"math", "add"},
		ImplementationType: string(types.ImplPythonCallable),
		ImplementationCode: json.RawMessage(`"builtin.calculator"`),
		InputSchema:        json.RawMessage(`{"type":"object","properties":{"a":{"type":"number"}}}`),
	}
}

func TestRegisterTool(t *testing.T) {
	svc, client, _ := newTestService(t)
	ctx := context.Background()

	tool, err := svc.RegisterTool(ctx, registerInput("calculator"))
	require.NoError(t, err)
	assert.NotZero(t, tool.ID)
	assert.True(t, tool.IsActive)
	assert.True(t, tool.HasEmbedding())
	assert.Equal(t, 1, client.calls)

	_, err = svc.RegisterTool(ctx, registerInput("calculator"))
	assert.ErrorIs(t, err, ErrNameConflict)
}

func TestRegisterToolAutoEmbedOff(t *testing.T) {
	svc, client, _ := newTestService(t)

	off := false
	input := registerInput("calculator")
	input.AutoEmbed = &off
	tool, err := svc.RegisterTool(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, tool.HasEmbedding())
	assert.Equal(t, 0, client.calls)
}

func TestRegisterToolRollsBackOnEmbeddingFailure(t *testing.T) {
	svc, client, _ := newTestService(t)
	client.fail = true

	_, err := svc.RegisterTool(context.Background(), registerInput("calculator"))
	assert.ErrorIs(t, err, ErrEmbeddingFailed)

	// The transaction rolled back: no orphan row without a vector.
	_, err = svc.GetToolByName(context.Background(), "calculator")
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestRegisterToolRejectsBadSchema(t *testing.T) {
	svc, _, _ := newTestService(t)

	input := registerInput("broken")
	input.InputSchema = json.RawMessage(`{"type": 42}`)
	_, err := svc.RegisterTool(context.Background(), input)
	assert.ErrorIs(t, err, ErrSchemaInvalid)
}

func TestUpdateTool(t *testing.T) {
	svc, client, _ := newTestService(t)
	ctx := context.Background()

	tool, err := svc.RegisterTool(ctx, registerInput("calculator"))
	require.NoError(t, err)
	require.Equal(t, 1, client.calls)

	desc := "adds, subtracts and multiplies numbers"
	updated, err := svc.UpdateTool(ctx, tool.ID, &types.UpdateToolInput{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, desc, updated.Description)
	// The description feeds the embedding text, so it regenerated.
	assert.Equal(t, 2, client.calls)

	// Touching only the version leaves the embedding alone.
	version := "2.0.0"
	_, err = svc.UpdateTool(ctx, tool.ID, &types.UpdateToolInput{Version: &version})
	require.NoError(t, err)
	assert.Equal(t, 2, client.calls)

	_, err = svc.UpdateTool(ctx, 99999, &types.UpdateToolInput{Description: &desc})
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestReindexTool(t *testing.T) {
	svc, client, _ := newTestService(t)
	ctx := context.Background()

	off := false
	input := registerInput("calculator")
	input.AutoEmbed = &off
	tool, err := svc.RegisterTool(ctx, input)
	require.NoError(t, err)
	require.False(t, tool.HasEmbedding())

	require.NoError(t, svc.ReindexTool(ctx, tool.ID))
	assert.Equal(t, 1, client.calls)

	stored, err := svc.GetTool(ctx, tool.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasEmbedding())
}

func TestUpdateToolNameConflict(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RegisterTool(ctx, registerInput("calculator"))
	require.NoError(t, err)
	other, err := svc.RegisterTool(ctx, registerInput("other"))
	require.NoError(t, err)

	name := "calculator"
	_, err = svc.UpdateTool(ctx, other.ID, &types.UpdateToolInput{Name: &name})
	assert.ErrorIs(t, err, ErrNameConflict)
}

func TestSetToolActive(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tool, err := svc.RegisterTool(ctx, registerInput("calculator"))
	require.NoError(t, err)

	deactivated, err := svc.SetToolActive(ctx, tool.ID, false)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive)

	// Deactivation keeps the row resolvable by name.
	found, err := svc.GetToolByName(ctx, "calculator")
	require.NoError(t, err)
	assert.False(t, found.IsActive)

	reactivated, err := svc.SetToolActive(ctx, tool.ID, true)
	require.NoError(t, err)
	assert.True(t, reactivated.IsActive)
}

func TestDeleteToolRemovesHistory(t *testing.T) {
	svc, _, db := newTestService(t)
	ctx := context.Background()

	tool, err := svc.RegisterTool(ctx, registerInput("calculator"))
	require.NoError(t, err)

	svc.RecordExecution(ctx, &ExecutionParams{
		ToolID:   tool.ID,
		ToolName: tool.Name,
		Status:   types.ExecutionStatusSuccess,
	})

	require.NoError(t, svc.DeleteTool(ctx, tool.ID))

	_, err = svc.GetTool(ctx, tool.ID)
	assert.ErrorIs(t, err, ErrToolNotFound)

	var count int64
	require.NoError(t, db.Table("tool_executions").Where("tool_id = ?", tool.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count)

	assert.ErrorIs(t, svc.DeleteTool(ctx, tool.ID), ErrToolNotFound)
}

func TestListToolsDefaults(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		_, err := svc.RegisterTool(ctx, registerInput(name))
		require.NoError(t, err)
	}
	tool, err := svc.GetToolByName(ctx, "c")
	require.NoError(t, err)
	_, err = svc.SetToolActive(ctx, tool.ID, false)
	require.NoError(t, err)

	resp, err := svc.ListTools(ctx, &types.ListToolsRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Total)
	assert.Len(t, resp.Tools, 2)

	everything := false
	resp, err = svc.ListTools(ctx, &types.ListToolsRequest{ActiveOnly: &everything})
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.Total)
}

func TestExecutionStats(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tool, err := svc.RegisterTool(ctx, registerInput("calculator"))
	require.NoError(t, err)

	svc.RecordExecution(ctx, &ExecutionParams{
		ToolID: tool.ID, ToolName: tool.Name,
		Status: types.ExecutionStatusSuccess, DurationMs: 100,
	})
	svc.RecordExecution(ctx, &ExecutionParams{
		ToolID: tool.ID, ToolName: tool.Name,
		Status: types.ExecutionStatusError, DurationMs: 300, Error: "boom",
	})

	stats, err := svc.GetToolStats(ctx, tool.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalCalls)
	assert.Equal(t, int64(1), stats.SuccessCount)
	assert.Equal(t, int64(1), stats.ErrorCount)
	assert.Equal(t, int64(0), stats.TimeoutCount)
	assert.Equal(t, 200.0, stats.AvgDurationMs)
	assert.NotNil(t, stats.LastExecutedAt)

	records, err := svc.ListExecutions(ctx, tool.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	// Newest first.
	assert.Equal(t, types.ExecutionStatusError, records[0].Status)
}

func TestRecordExecutionTruncatesPayloads(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tool, err := svc.RegisterTool(ctx, registerInput("calculator"))
	require.NoError(t, err)

	huge := make([]byte, maxRecordedBytes*2)
	for i := range huge {
		huge[i] = 'x'
	}
	svc.RecordExecution(ctx, &ExecutionParams{
		ToolID:   tool.ID,
		ToolName: tool.Name,
		Status:   types.ExecutionStatusSuccess,
		Output:   json.RawMessage(`"` + string(huge) + `"`),
	})

	records, err := svc.ListExecutions(ctx, tool.ID, 1, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.LessOrEqual(t, len(records[0].Output), maxRecordedBytes+16)
	assert.True(t, json.Valid(records[0].Output))
}
