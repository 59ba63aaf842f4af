package executor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toolscout/toolscout/internal/model"
	"github.com/toolscout/toolscout/pkg/types"
)

func commandTool(t *testing.T, cfg string) *model.Tool {
	t.Helper()
	tool, err := model.NewTool(&types.RegisterToolInput{
		Name:               "cmd-tool",
		Description:        "command tool under test",
		ImplementationType: string(types.ImplCommandLine),
		ImplementationCode: json.RawMessage(cfg),
	})
	require.NoError(t, err)
	return tool
}

func TestExpandCommandTemplate(t *testing.T) {
	expanded, err := expandCommandTemplate("echo {message} {count}", map[string]any{
		"message": "hello",
		"count":   3,
	})
	require.NoError(t, err)
	assert.Equal(t, "echo hello 3", expanded)
}

func TestExpandCommandTemplateMissingArgument(t *testing.T) {
	_, err := expandCommandTemplate("echo {message}", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing argument")
}

func TestExpandCommandTemplateRejectsMetacharacters(t *testing.T) {
	for _, value := range []string{
		"hello; rm -rf /",
		"$(whoami)",
		"`id`",
		"a | b",
		"a && b",
		"sub > out",
	} {
		_, err := expandCommandTemplate("echo {v}", map[string]any{"v": value})
		assert.ErrorIs(t, err, ErrValidationFailed, "value %q should be rejected", value)
	}
}

func TestTokenizeCommand(t *testing.T) {
	tokens, err := tokenizeCommand(`grep "two words" file.txt`)
	require.NoError(t, err)
	assert.Equal(t, []string{"grep", "two words", "file.txt"}, tokens)

	tokens, err = tokenizeCommand("echo 'single quoted'   trailing")
	require.NoError(t, err)
	assert.Equal(t, []string{"echo", "single quoted", "trailing"}, tokens)

	_, err = tokenizeCommand(`echo "unterminated`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unterminated quote")
}

func TestCheckCommandAllowed(t *testing.T) {
	// An empty allow-list rejects everything.
	assert.Error(t, checkCommandAllowed("echo", nil))

	assert.NoError(t, checkCommandAllowed("echo", []string{"echo"}))
	assert.NoError(t, checkCommandAllowed("/bin/echo", []string{"echo"}))
	assert.NoError(t, checkCommandAllowed("echo", []string{"/usr/bin/echo"}))
	assert.Error(t, checkCommandAllowed("curl", []string{"echo", "date"}))
}

func TestCommandBackendRunsProcess(t *testing.T) {
	tool := commandTool(t, `{
		"command": "echo {message}",
		"allowed_commands": ["echo"]
	}`)

	backend := newCommandBackend()
	output, err := backend.Execute(context.Background(), tool, map[string]any{"message": "hello"})
	require.NoError(t, err)

	result, ok := output.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "hello\n", result["stdout"])
	assert.Equal(t, "", result["stderr"])
	assert.Equal(t, 0, result["return_code"])
}

func TestCommandBackendNonZeroExit(t *testing.T) {
	tool := commandTool(t, `{
		"command": "false",
		"allowed_commands": ["false"]
	}`)

	backend := newCommandBackend()
	output, err := backend.Execute(context.Background(), tool, nil)
	require.NoError(t, err)

	result := output.(map[string]any)
	assert.Equal(t, 1, result["return_code"])
}

func TestCommandBackendDisallowedExecutable(t *testing.T) {
	tool := commandTool(t, `{
		"command": "curl http://example.com",
		"allowed_commands": ["echo"]
	}`)

	backend := newCommandBackend()
	_, err := backend.Execute(context.Background(), tool, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not allowed")
}

func TestCommandBackendDeadline(t *testing.T) {
	tool := commandTool(t, `{
		"command": "sleep 10",
		"allowed_commands": ["sleep"]
	}`)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	backend := newCommandBackend()
	_, err := backend.Execute(ctx, tool, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
