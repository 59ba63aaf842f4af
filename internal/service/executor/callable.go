package executor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/toolscout/toolscout/internal/config"
	"github.com/toolscout/toolscout/internal/model"
)

// Callable is an in-process tool implementation, addressed by module
// path.
type Callable func(ctx context.Context, args map[string]any) (any, error)

// deniedModulePrefixes can never be called regardless of the
// configured allow-list. Deny beats allow.
var deniedModulePrefixes = []string{
	"os.", "sys.", "subprocess.", "pickle.", "importlib.", "builtins.",
}

// CallableTable maps module paths to callables. Safe for concurrent
// use; registration normally happens once at startup.
type CallableTable struct {
	mu    sync.RWMutex
	funcs map[string]Callable
}

// NewCallableTable creates an empty table.
func NewCallableTable() *CallableTable {
	return &CallableTable{funcs: make(map[string]Callable)}
}

// Register adds a callable under the given module path, replacing any
// previous entry.
func (t *CallableTable) Register(path string, fn Callable) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.funcs[path] = fn
}

// Lookup returns the callable for a module path.
func (t *CallableTable) Lookup(path string) (Callable, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn, ok := t.funcs[path]
	return fn, ok
}

// Paths returns the registered module paths, for diagnostics.
func (t *CallableTable) Paths() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	paths := make([]string, 0, len(t.funcs))
	for p := range t.funcs {
		paths = append(paths, p)
	}
	return paths
}

// callableBackend runs PYTHON_CALLABLE tools from the in-process
// table, enforcing the module allow-list and the fixed deny-list.
type callableBackend struct {
	table *CallableTable
	cfg   config.ExecutionConfig
}

func newCallableBackend(table *CallableTable, cfg config.ExecutionConfig) *callableBackend {
	return &callableBackend{table: table, cfg: cfg}
}

func (b *callableBackend) Execute(ctx context.Context, tool *model.Tool, args map[string]any) (any, error) {
	if !b.cfg.PythonExecutorEnabled {
		return nil, fmt.Errorf("%w: callable execution is switched off", ErrExecutorDisabled)
	}
	path, err := tool.GetPythonCallable()
	if err != nil {
		return nil, err
	}
	if err := b.checkModuleAllowed(path); err != nil {
		return nil, err
	}
	fn, ok := b.table.Lookup(path)
	if !ok {
		return nil, fmt.Errorf("no callable registered for module path %q", path)
	}

	// The callable runs in its own goroutine so a stuck implementation
	// cannot outlive the call deadline from the caller's point of view.
	type callResult struct {
		output any
		err    error
	}
	done := make(chan callResult, 1)
	go func() {
		output, err := fn(ctx, args)
		done <- callResult{output, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.output, r.err
	}
}

// checkModuleAllowed enforces the deny-list first, then the
// configured allow-list of prefixes.
func (b *callableBackend) checkModuleAllowed(path string) error {
	for _, prefix := range deniedModulePrefixes {
		if strings.HasPrefix(path, prefix) || path == strings.TrimSuffix(prefix, ".") {
			return fmt.Errorf("module %q is not allowed: denied prefix %q", path, prefix)
		}
	}
	for _, prefix := range b.cfg.PythonAllowedModulePrefixes {
		if strings.HasPrefix(path, prefix) {
			return nil
		}
	}
	return fmt.Errorf(
		"module %q is not allowed: it matches none of the allowed prefixes %v",
		path, b.cfg.PythonAllowedModulePrefixes,
	)
}
