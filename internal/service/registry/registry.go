// Package registry owns the tool catalog: CRUD, embedding on write,
// and the execution audit trail.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/toolscout/toolscout/internal"
	"github.com/toolscout/toolscout/internal/embedding"
	"github.com/toolscout/toolscout/internal/model"
	"github.com/toolscout/toolscout/internal/store"
	"github.com/toolscout/toolscout/pkg/types"
	"github.com/xeipuuv/gojsonschema"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrToolNotFound means no tool matched the given id or name.
	ErrToolNotFound = errors.New("tool not found")

	// ErrNameConflict means another tool already holds the name.
	ErrNameConflict = errors.New("a tool with this name already exists")

	// ErrSchemaInvalid means the supplied input schema is not a valid
	// JSON Schema.
	ErrSchemaInvalid = errors.New("invalid input schema")

	// ErrEmbeddingFailed means the embedding backend could not produce
	// a vector. Registrations with auto-embed roll back on it.
	ErrEmbeddingFailed = errors.New("failed to generate embedding")
)

// maxRecordedBytes caps the arguments and output stored per execution
// row so one call cannot bloat the audit table.
const maxRecordedBytes = 10000

// ServiceConfig is the configuration for creating a registry Service.
type ServiceConfig struct {
	DB       *gorm.DB
	Store    *store.ToolStore
	Embedder *embedding.Service
}

// Service provides catalog operations over the tool store.
type Service struct {
	db       *gorm.DB
	store    *store.ToolStore
	embedder *embedding.Service
}

// NewToolRegistryService creates the registry service.
func NewToolRegistryService(c *ServiceConfig) (*Service, error) {
	if c.DB == nil || c.Store == nil {
		return nil, errors.New("db and store are required")
	}
	if c.Embedder == nil {
		return nil, errors.New("embedder is required (it may be unconfigured, but not nil)")
	}
	return &Service{db: c.DB, store: c.Store, embedder: c.Embedder}, nil
}

// embeddingEnabled reports whether this deployment can index tools.
// Storage works on every dialect; only searching the vectors needs
// Postgres.
func (s *Service) embeddingEnabled() bool {
	return s.embedder.Configured()
}

// RegisterTool validates and persists a new tool. With auto-embed on
// (the default) the embedding is generated inside the same
// transaction, so a failed embed leaves no orphan row.
func (s *Service) RegisterTool(ctx context.Context, input *types.RegisterToolInput) (*model.Tool, error) {
	if err := validateInputSchema(input.InputSchema); err != nil {
		return nil, err
	}
	tool, err := model.NewTool(input)
	if err != nil {
		return nil, err
	}

	autoEmbed := input.AutoEmbed == nil || *input.AutoEmbed

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txStore := s.store.WithTx(tx)

		if _, err := txStore.GetByName(ctx, tool.Name); err == nil {
			return fmt.Errorf("%w: %s", ErrNameConflict, tool.Name)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := txStore.Create(ctx, tool); err != nil {
			return fmt.Errorf("failed to create tool: %w", err)
		}

		if autoEmbed && s.embeddingEnabled() {
			if err := s.embedTool(ctx, txStore, tool); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tool, nil
}

// UpdateTool applies a partial update. When any field feeding the
// embedding text changes, the embedding is regenerated in the same
// transaction.
func (s *Service) UpdateTool(ctx context.Context, id uint, input *types.UpdateToolInput) (*model.Tool, error) {
	var updated *model.Tool

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txStore := s.store.WithTx(tx)

		tool, err := txStore.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: id %d", ErrToolNotFound, id)
			}
			return err
		}
		before := tool.EmbeddingText()

		if err := applyUpdate(tool, input); err != nil {
			return err
		}

		if input.Name != nil && *input.Name != "" {
			if existing, err := txStore.GetByName(ctx, tool.Name); err == nil && existing.ID != tool.ID {
				return fmt.Errorf("%w: %s", ErrNameConflict, tool.Name)
			} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		if err := txStore.Save(ctx, tool); err != nil {
			return fmt.Errorf("failed to update tool: %w", err)
		}

		if tool.EmbeddingText() != before && s.embeddingEnabled() {
			if err := s.embedTool(ctx, txStore, tool); err != nil {
				return err
			}
		}
		updated = tool
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ReindexTool regenerates the embedding for one tool.
func (s *Service) ReindexTool(ctx context.Context, id uint) error {
	if !s.embeddingEnabled() {
		return embedding.ErrNotConfigured
	}
	tool, err := s.GetTool(ctx, id)
	if err != nil {
		return err
	}
	return s.embedTool(ctx, s.store, tool)
}

// SetToolActive activates or deactivates a tool. Deactivation is the
// soft delete: the row and its history survive, discovery and
// execution refuse it.
func (s *Service) SetToolActive(ctx context.Context, id uint, active bool) (*model.Tool, error) {
	tool, err := s.GetTool(ctx, id)
	if err != nil {
		return nil, err
	}
	if tool.IsActive == active {
		return tool, nil
	}
	tool.IsActive = active
	if err := s.store.Save(ctx, tool); err != nil {
		return nil, err
	}
	return tool, nil
}

// DeleteTool removes a tool and its execution history permanently.
func (s *Service) DeleteTool(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tool model.Tool
		if err := tx.First(&tool, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: id %d", ErrToolNotFound, id)
			}
			return err
		}
		if err := tx.Unscoped().Where("tool_id = ?", id).Delete(&model.ToolExecution{}).Error; err != nil {
			return fmt.Errorf("failed to delete execution history: %w", err)
		}
		if err := tx.Unscoped().Delete(&tool).Error; err != nil {
			return fmt.Errorf("failed to delete tool: %w", err)
		}
		return nil
	})
}

// GetTool fetches one tool by id.
func (s *Service) GetTool(ctx context.Context, id uint) (*model.Tool, error) {
	tool, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrToolNotFound, id)
		}
		return nil, err
	}
	return tool, nil
}

// GetToolByName fetches one tool by its unique name.
func (s *Service) GetToolByName(ctx context.Context, name string) (*model.Tool, error) {
	tool, err := s.store.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
		}
		return nil, err
	}
	return tool, nil
}

// ListTools returns a page of the catalog. Limit defaults to 50 and
// caps at 200; active_only defaults to true.
func (s *Service) ListTools(ctx context.Context, req *types.ListToolsRequest) (*types.ListToolsResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}
	activeOnly := req.ActiveOnly == nil || *req.ActiveOnly

	tools, total, err := s.store.List(ctx, store.Filters{
		Category:   req.Category,
		ActiveOnly: activeOnly,
	}, limit, offset)
	if err != nil {
		return nil, err
	}

	out := make([]types.Tool, 0, len(tools))
	for i := range tools {
		out = append(out, tools[i].APIType())
	}
	return &types.ListToolsResponse{
		Tools:  out,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}, nil
}

// Stats aggregates catalog totals.
func (s *Service) Stats(ctx context.Context) (*types.RegistryStats, error) {
	return s.store.Stats(ctx)
}

// ListCategories returns the distinct categories with registered
// tools, sorted.
func (s *Service) ListCategories(ctx context.Context) ([]string, error) {
	return s.store.ListCategories(ctx)
}

// FindSimilar returns tools semantically close to the given one.
func (s *Service) FindSimilar(ctx context.Context, id uint, limit int) ([]store.ScoredResult, error) {
	if limit <= 0 {
		limit = 5
	}
	results, err := s.store.FindSimilar(ctx, id, limit, true)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrToolNotFound, id)
		}
		return nil, err
	}
	return results, nil
}

// embedTool generates and stores the embedding for a tool's canonical
// text.
func (s *Service) embedTool(ctx context.Context, st *store.ToolStore, tool *model.Tool) error {
	vec, err := s.embedder.Embed(ctx, tool.EmbeddingText())
	if err != nil {
		return fmt.Errorf("%w for tool %s: %v", ErrEmbeddingFailed, tool.Name, err)
	}
	if err := st.SetEmbedding(ctx, tool.ID, vec); err != nil {
		return fmt.Errorf("failed to store embedding for tool %s: %w", tool.Name, err)
	}
	tool.SetEmbedding(vec)
	return nil
}

// ExecutionParams is one finished call to record.
type ExecutionParams struct {
	ToolID     uint
	ToolName   string
	Status     types.ExecutionStatus
	DurationMs int64
	Arguments  map[string]any
	Output     json.RawMessage
	Error      string
	Metadata   map[string]any
}

// RecordExecution appends one row to the execution audit trail.
// Arguments and output are truncated; recording failures are logged
// and swallowed so they never fail the call itself.
func (s *Service) RecordExecution(ctx context.Context, p *ExecutionParams) {
	row := &model.ToolExecution{
		ToolID:     p.ToolID,
		ToolName:   p.ToolName,
		Status:     p.Status,
		DurationMs: p.DurationMs,
		Error:      internal.TruncateString(p.Error, 2000),
		Arguments:  truncateJSON(marshalLoose(p.Arguments)),
		Output:     truncateJSON(datatypes.JSON(p.Output)),
		Metadata:   marshalLoose(p.Metadata),
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		log.Printf("[ERROR] failed to record execution of tool %s: %v\n", p.ToolName, err)
	}
}

// GetToolStats aggregates the recorded executions of one tool.
func (s *Service) GetToolStats(ctx context.Context, id uint) (*types.ToolStats, error) {
	tool, err := s.GetTool(ctx, id)
	if err != nil {
		return nil, err
	}

	stats := &types.ToolStats{ToolID: tool.ID, ToolName: tool.Name}
	conn := s.db.WithContext(ctx).Model(&model.ToolExecution{}).Where("tool_id = ?", id)

	if err := conn.Count(&stats.TotalCalls).Error; err != nil {
		return nil, err
	}
	if stats.TotalCalls == 0 {
		return stats, nil
	}

	type row struct {
		Status types.ExecutionStatus
		Count  int64
	}
	var byStatus []row
	err = s.db.WithContext(ctx).Model(&model.ToolExecution{}).
		Select("status, COUNT(*) AS count").
		Where("tool_id = ?", id).
		Group("status").
		Scan(&byStatus).Error
	if err != nil {
		return nil, err
	}
	for _, r := range byStatus {
		switch r.Status {
		case types.ExecutionStatusSuccess:
			stats.SuccessCount = r.Count
		case types.ExecutionStatusError:
			stats.ErrorCount = r.Count
		case types.ExecutionStatusTimeout:
			stats.TimeoutCount = r.Count
		}
	}

	var avg float64
	err = s.db.WithContext(ctx).Model(&model.ToolExecution{}).
		Where("tool_id = ?", id).
		Select("AVG(duration_ms)").
		Scan(&avg).Error
	if err != nil {
		return nil, err
	}
	stats.AvgDurationMs = avg

	var last model.ToolExecution
	err = s.db.WithContext(ctx).
		Where("tool_id = ?", id).
		Order("created_at DESC").
		First(&last).Error
	if err == nil {
		stats.LastExecutedAt = &last.CreatedAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return stats, nil
}

// ListExecutions returns recent execution records, newest first. A
// zero toolID means all tools.
func (s *Service) ListExecutions(ctx context.Context, toolID uint, limit, offset int) ([]types.ExecutionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	q := s.db.WithContext(ctx).Model(&model.ToolExecution{})
	if toolID != 0 {
		q = q.Where("tool_id = ?", toolID)
	}
	var rows []model.ToolExecution
	if err := q.Order("id DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.ExecutionRecord, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].APIType())
	}
	return out, nil
}

// applyUpdate copies the non-nil fields of input onto the tool,
// re-validating everything that changes.
func applyUpdate(tool *model.Tool, input *types.UpdateToolInput) error {
	if input.Name != nil && *input.Name != tool.Name {
		if err := types.ValidateToolName(*input.Name); err != nil {
			return err
		}
		tool.Name = *input.Name
	}
	if input.Description != nil {
		if *input.Description == "" {
			return errors.New("description cannot be empty")
		}
		tool.Description = *input.Description
	}
	if input.Version != nil && *input.Version != "" {
		tool.Version = *input.Version
	}
	if input.Category != nil {
		tool.Category = *input.Category
	}
	if input.Tags != nil {
		if err := tool.SetTags(input.Tags); err != nil {
			return err
		}
	}
	if input.Metadata != nil {
		raw, err := json.Marshal(input.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
		tool.Metadata = raw
	}

	implType := tool.ImplementationType
	if input.ImplementationType != nil {
		validated, err := types.ValidateImplementationType(*input.ImplementationType)
		if err != nil {
			return err
		}
		implType = validated
	}
	if input.ImplementationType != nil || len(input.ImplementationCode) > 0 {
		code := json.RawMessage(tool.ImplementationCode)
		if len(input.ImplementationCode) > 0 {
			code = input.ImplementationCode
		}
		normalized, err := model.NormalizeImplementationCode(implType, code)
		if err != nil {
			return err
		}
		tool.ImplementationType = implType
		tool.ImplementationCode = normalized
	}

	if len(input.InputSchema) > 0 {
		if err := validateInputSchema(input.InputSchema); err != nil {
			return err
		}
		tool.InputSchema = datatypes.JSON(input.InputSchema)
	}
	return nil
}

// validateInputSchema checks that the given bytes compile as a JSON
// Schema. Empty input is fine; registration defaults it.
func validateInputSchema(schema json.RawMessage) error {
	if len(schema) == 0 {
		return nil
	}
	if _, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schema)); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
	}
	return nil
}

func marshalLoose(m map[string]any) datatypes.JSON {
	if m == nil {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return datatypes.JSON(`{}`)
	}
	return raw
}

// truncateJSON caps recorded JSON. Payloads over the cap are stored as
// a JSON string holding the truncated text, which keeps the column
// valid JSON.
func truncateJSON(raw datatypes.JSON) datatypes.JSON {
	if len(raw) <= maxRecordedBytes {
		return raw
	}
	truncated, err := json.Marshal(internal.TruncateString(string(raw), maxRecordedBytes))
	if err != nil {
		return nil
	}
	return truncated
}
