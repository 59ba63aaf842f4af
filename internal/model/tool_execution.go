package model

import (
	"encoding/json"

	"github.com/toolscout/toolscout/pkg/types"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ToolExecution is one recorded tool call. Rows are append-only: they
// are written once when the call finishes and never updated.
type ToolExecution struct {
	gorm.Model

	ToolID uint `json:"tool_id" gorm:"index;not null"`

	// ToolName is denormalized so history stays readable after the
	// tool row changes.
	ToolName string `json:"tool_name" gorm:"index;not null"`

	Status     types.ExecutionStatus `json:"status" gorm:"type:varchar(20);not null;index"`
	DurationMs int64                 `json:"duration_ms"`

	// Arguments and Output are truncated before recording so a single
	// call cannot bloat the history table.
	Arguments datatypes.JSON `json:"arguments" gorm:"type:jsonb"`
	Output    datatypes.JSON `json:"output" gorm:"type:jsonb"`

	Error    string         `json:"error"`
	Metadata datatypes.JSON `json:"metadata" gorm:"type:jsonb"`
}

// APIType converts the model into its wire representation.
func (e *ToolExecution) APIType() types.ExecutionRecord {
	return types.ExecutionRecord{
		ID:         e.ID,
		ToolID:     e.ToolID,
		ToolName:   e.ToolName,
		Status:     e.Status,
		DurationMs: e.DurationMs,
		Error:      e.Error,
		Arguments:  json.RawMessage(e.Arguments),
		Output:     json.RawMessage(e.Output),
		Metadata:   json.RawMessage(e.Metadata),
		CreatedAt:  e.CreatedAt,
	}
}
