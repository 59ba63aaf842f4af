package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/toolscout/toolscout/pkg/types"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Tool represents a tool registered in toolscout.
type Tool struct {
	gorm.Model

	Name        string `json:"name" gorm:"uniqueIndex;not null"`
	Description string `json:"description" gorm:"not null"`
	Version     string `json:"version" gorm:"type:varchar(50);not null;default:'1.0.0'"`

	ImplementationType types.ImplementationType `json:"implementation_type" gorm:"type:varchar(30);not null;index"`

	// ImplementationCode is the type-specific routing config. It holds
	// the JSON representation of one of the pkg/types config shapes,
	// or a JSON string (the module path) for PYTHON_CALLABLE tools.
	ImplementationCode datatypes.JSON `json:"implementation_code" gorm:"type:jsonb"`

	// InputSchema is the JSON Schema used to validate call arguments
	// before dispatch.
	InputSchema datatypes.JSON `json:"input_schema" gorm:"type:jsonb"`

	// Tags holds a JSON array of strings.
	Tags     datatypes.JSON `json:"tags" gorm:"type:jsonb"`
	Category string         `json:"category" gorm:"type:varchar(100);index"`

	// IsActive is the soft-delete flag. Inactive tools keep their row
	// and execution history but are hidden from discovery and refuse
	// execution.
	IsActive bool `json:"is_active" gorm:"not null;default:true;index"`

	Metadata datatypes.JSON `json:"metadata" gorm:"type:jsonb"`

	// Embedding is the dense vector used for semantic search. The
	// column is managed by migrations rather than AutoMigrate because
	// its dimension is configurable.
	Embedding NullableVector `json:"-" gorm:"column:embedding;type:vector;-:migration"`
}

// NewTool builds a Tool from a registration request, validating the
// name, implementation type and implementation code shape.
func NewTool(input *types.RegisterToolInput) (*Tool, error) {
	if err := types.ValidateToolName(input.Name); err != nil {
		return nil, err
	}
	if input.Description == "" {
		return nil, errors.New("description is required")
	}
	implType, err := types.ValidateImplementationType(input.ImplementationType)
	if err != nil {
		return nil, err
	}
	code, err := NormalizeImplementationCode(implType, input.ImplementationCode)
	if err != nil {
		return nil, err
	}

	version := input.Version
	if version == "" {
		version = "1.0.0"
	}

	schema := datatypes.JSON(input.InputSchema)
	if len(schema) == 0 {
		schema = datatypes.JSON(`{"type":"object"}`)
	}

	tags, err := marshalTags(input.Tags)
	if err != nil {
		return nil, err
	}

	metadata := datatypes.JSON(`{}`)
	if input.Metadata != nil {
		metadata, err = json.Marshal(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode metadata: %w", err)
		}
	}

	return &Tool{
		Name:               input.Name,
		Description:        input.Description,
		Version:            version,
		ImplementationType: implType,
		ImplementationCode: code,
		InputSchema:        schema,
		Tags:               tags,
		Category:           input.Category,
		IsActive:           true,
		Metadata:           metadata,
	}, nil
}

// NormalizeImplementationCode validates the implementation code
// against the expected shape for the given type and returns its
// canonical JSON form. PYTHON_CALLABLE accepts either a JSON string or
// a bare module path.
func NormalizeImplementationCode(implType types.ImplementationType, code json.RawMessage) (datatypes.JSON, error) {
	switch implType {
	case types.ImplPythonCallable:
		ref := strings.TrimSpace(string(code))
		if ref == "" {
			return nil, errors.New("callable module path is required for PYTHON_CALLABLE tools")
		}
		var s string
		if err := json.Unmarshal(code, &s); err != nil {
			// Bare module path, not JSON-quoted.
			s = ref
		}
		if s == "" {
			return nil, errors.New("callable module path is required for PYTHON_CALLABLE tools")
		}
		normalized, err := json.Marshal(s)
		if err != nil {
			return nil, err
		}
		return normalized, nil

	case types.ImplHTTPEndpoint:
		var cfg types.HTTPEndpointConfig
		if err := unmarshalConfig(code, &cfg); err != nil {
			return nil, err
		}
		if cfg.URL == "" {
			return nil, errors.New("url is required for HTTP_ENDPOINT tools")
		}
		return json.Marshal(cfg)

	case types.ImplMCPServer:
		var cfg types.MCPServerConfig
		if err := unmarshalConfig(code, &cfg); err != nil {
			return nil, err
		}
		if cfg.URL == "" {
			return nil, errors.New("url is required for MCP_SERVER tools")
		}
		if cfg.ToolName == "" {
			return nil, errors.New("tool_name is required for MCP_SERVER tools")
		}
		return json.Marshal(cfg)

	case types.ImplLLMGateway:
		var cfg types.LLMGatewayConfig
		if err := unmarshalConfig(code, &cfg); err != nil {
			return nil, err
		}
		if cfg.Model == "" && cfg.ToolName == "" {
			return nil, errors.New("model or tool_name is required for LLM_GATEWAY tools")
		}
		return json.Marshal(cfg)

	case types.ImplCommandLine:
		var cfg types.CommandLineConfig
		if err := unmarshalConfig(code, &cfg); err != nil {
			return nil, err
		}
		if cfg.Command == "" {
			return nil, errors.New("command is required for COMMAND_LINE tools")
		}
		return json.Marshal(cfg)

	default:
		return nil, fmt.Errorf("unknown implementation type: %s", implType)
	}
}

// unmarshalConfig decodes an implementation code object, unwrapping a
// JSON-string-encoded payload first if that is what the caller sent.
func unmarshalConfig(code json.RawMessage, dest any) error {
	if len(code) == 0 {
		return errors.New("implementation code is required")
	}
	raw := code
	var inner string
	if err := json.Unmarshal(code, &inner); err == nil {
		raw = json.RawMessage(inner)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("invalid implementation code: %w", err)
	}
	return nil
}

func marshalTags(tags []string) (datatypes.JSON, error) {
	if tags == nil {
		tags = []string{}
	}
	out, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}
	return out, nil
}

// GetPythonCallable returns the module path if this is a Python
// callable tool.
func (t *Tool) GetPythonCallable() (string, error) {
	if t.ImplementationType != types.ImplPythonCallable {
		return "", errors.New("tool is not a PYTHON_CALLABLE implementation type")
	}
	var ref string
	if err := json.Unmarshal(t.ImplementationCode, &ref); err != nil {
		return "", err
	}
	return ref, nil
}

// GetHTTPEndpointConfig returns the configuration if this is an HTTP
// endpoint tool.
func (t *Tool) GetHTTPEndpointConfig() (*types.HTTPEndpointConfig, error) {
	if t.ImplementationType != types.ImplHTTPEndpoint {
		return nil, errors.New("tool is not an HTTP_ENDPOINT implementation type")
	}
	var config types.HTTPEndpointConfig
	if err := json.Unmarshal(t.ImplementationCode, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// GetMCPServerConfig returns the configuration if this is an upstream
// MCP server tool.
func (t *Tool) GetMCPServerConfig() (*types.MCPServerConfig, error) {
	if t.ImplementationType != types.ImplMCPServer {
		return nil, errors.New("tool is not an MCP_SERVER implementation type")
	}
	var config types.MCPServerConfig
	if err := json.Unmarshal(t.ImplementationCode, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// GetLLMGatewayConfig returns the configuration if this is an LLM
// gateway tool.
func (t *Tool) GetLLMGatewayConfig() (*types.LLMGatewayConfig, error) {
	if t.ImplementationType != types.ImplLLMGateway {
		return nil, errors.New("tool is not an LLM_GATEWAY implementation type")
	}
	var config types.LLMGatewayConfig
	if err := json.Unmarshal(t.ImplementationCode, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// GetCommandLineConfig returns the configuration if this is a command
// line tool.
func (t *Tool) GetCommandLineConfig() (*types.CommandLineConfig, error) {
	if t.ImplementationType != types.ImplCommandLine {
		return nil, errors.New("tool is not a COMMAND_LINE implementation type")
	}
	var config types.CommandLineConfig
	if err := json.Unmarshal(t.ImplementationCode, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// GetTags returns the tool's tags as a string slice. A missing or
// malformed tags column yields an empty slice.
func (t *Tool) GetTags() []string {
	if len(t.Tags) == 0 {
		return []string{}
	}
	var tags []string
	if err := json.Unmarshal(t.Tags, &tags); err != nil {
		return []string{}
	}
	return tags
}

// SetTags replaces the tool's tags.
func (t *Tool) SetTags(tags []string) error {
	out, err := marshalTags(tags)
	if err != nil {
		return err
	}
	t.Tags = out
	return nil
}

// GetMetadata returns the tool's metadata as a map.
func (t *Tool) GetMetadata() map[string]any {
	if len(t.Metadata) == 0 {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(t.Metadata, &m); err != nil {
		return map[string]any{}
	}
	return m
}

// HasEmbedding reports whether the tool is indexed for semantic
// search.
func (t *Tool) HasEmbedding() bool {
	return t.Embedding.Valid
}

// SetEmbedding stores the given vector as the tool's embedding.
func (t *Tool) SetEmbedding(vec []float32) {
	t.Embedding = NewNullableVector(vec)
}

// ClearEmbedding drops the stored embedding, removing the tool from
// the semantic index until it is re-embedded.
func (t *Tool) ClearEmbedding() {
	t.Embedding = NullableVector{}
}

// EmbeddingText is the canonical text the embedding backend encodes
// for this tool. Changing any of its inputs requires a re-embed.
func (t *Tool) EmbeddingText() string {
	return fmt.Sprintf("%s\n%s\nCategory: %s\nTags: %s",
		t.Name, t.Description, t.Category, strings.Join(t.GetTags(), ", "))
}

// ContentHash fingerprints the fields discovery compares when
// reconciling upstream catalogs: description, input schema, tags and
// category. Identical hashes mean the upstream copy is unchanged.
func (t *Tool) ContentHash() string {
	h := sha256.New()
	h.Write([]byte(t.Description))
	h.Write([]byte{0})
	h.Write(canonicalJSON(t.InputSchema))
	h.Write([]byte{0})
	h.Write(canonicalJSON(t.Tags))
	h.Write([]byte{0})
	h.Write([]byte(t.Category))
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalJSON re-encodes raw JSON so that key order does not affect
// the hash. Unparseable input hashes as its raw bytes.
func canonicalJSON(raw datatypes.JSON) []byte {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return raw
	}
	out, err := json.Marshal(v)
	if err != nil {
		return raw
	}
	return out
}

// APIType converts the model into its wire representation.
func (t *Tool) APIType() types.Tool {
	return types.Tool{
		ID:                 t.ID,
		Name:               t.Name,
		Description:        t.Description,
		Version:            t.Version,
		ImplementationType: t.ImplementationType,
		ImplementationCode: json.RawMessage(t.ImplementationCode),
		InputSchema:        json.RawMessage(t.InputSchema),
		Tags:               t.GetTags(),
		Category:           t.Category,
		IsActive:           t.IsActive,
		Metadata:           t.GetMetadata(),
		HasEmbedding:       t.HasEmbedding(),
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}
