package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/toolscout/toolscout/internal/model"
)

// shellMetachars rejects argument values that could change the
// command's meaning if the template ever reached a shell. Commands
// run without one, but defense stacks.
var shellMetachars = regexp.MustCompile("[;&|`$(){}\\[\\]<>\\\\'\"]")

// placeholderPattern matches {key} slots in command templates.
var placeholderPattern = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// commandBackend runs COMMAND_LINE tools as child processes, never
// through a shell. The template's placeholders are filled from the
// call arguments, the resolved executable is checked against the
// tool's allow-list, and the process is killed at the deadline.
type commandBackend struct{}

func newCommandBackend() *commandBackend {
	return &commandBackend{}
}

func (b *commandBackend) Execute(ctx context.Context, tool *model.Tool, args map[string]any) (any, error) {
	cfg, err := tool.GetCommandLineConfig()
	if err != nil {
		return nil, err
	}

	expanded, err := expandCommandTemplate(cfg.Command, args)
	if err != nil {
		return nil, err
	}
	tokens, err := tokenizeCommand(expanded)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, errors.New("command template expanded to nothing")
	}
	if err := checkCommandAllowed(tokens[0], cfg.AllowedCommands); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, tokens[0], tokens[1:]...)
	cmd.Dir = cfg.WorkingDir
	if len(cfg.Env) > 0 {
		cmd.Env = os.Environ()
		for key, value := range cfg.Env {
			cmd.Env = append(cmd.Env, key+"="+value)
		}
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return nil, context.DeadlineExceeded
	}

	returnCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			returnCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, runErr)
		}
	}

	return map[string]any{
		"stdout":      stdout.String(),
		"stderr":      stderr.String(),
		"return_code": returnCode,
	}, nil
}

// expandCommandTemplate replaces each {key} with the corresponding
// argument. Values carrying shell metacharacters are rejected
// outright, and unresolved placeholders are an error.
func expandCommandTemplate(template string, args map[string]any) (string, error) {
	var expandErr error
	expanded := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		key := match[1 : len(match)-1]
		value, ok := args[key]
		if !ok {
			if expandErr == nil {
				expandErr = fmt.Errorf("command template references missing argument %q", key)
			}
			return match
		}
		text := stringifyArg(value)
		if shellMetachars.MatchString(text) {
			if expandErr == nil {
				expandErr = fmt.Errorf("%w: argument %q contains shell metacharacters", ErrValidationFailed, key)
			}
			return match
		}
		return text
	})
	if expandErr != nil {
		return "", expandErr
	}
	return expanded, nil
}

// tokenizeCommand splits a command line on whitespace, honoring
// single and double quotes in the template itself.
func tokenizeCommand(line string) ([]string, error) {
	var tokens []string
	var current strings.Builder
	inToken := false
	var quote byte

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			} else {
				current.WriteByte(c)
			}
		case c == '\'' || c == '"':
			quote = c
			inToken = true
		case c == ' ' || c == '\t':
			if inToken {
				tokens = append(tokens, current.String())
				current.Reset()
				inToken = false
			}
		default:
			current.WriteByte(c)
			inToken = true
		}
	}
	if quote != 0 {
		return nil, errors.New("unterminated quote in command template")
	}
	if inToken {
		tokens = append(tokens, current.String())
	}
	return tokens, nil
}

// checkCommandAllowed verifies the executable against the tool's
// allow-list. Entries match the full path or the basename. An empty
// allow-list rejects everything: command tools must opt in
// explicitly.
func checkCommandAllowed(executable string, allowed []string) error {
	if len(allowed) == 0 {
		return fmt.Errorf("command %q is not allowed: the tool declares no allowed commands", executable)
	}
	base := filepath.Base(executable)
	for _, entry := range allowed {
		if executable == entry || base == entry || base == filepath.Base(entry) {
			return nil
		}
	}
	return fmt.Errorf("command %q is not allowed: it matches none of the allowed commands %v", executable, allowed)
}
