// Package builtin ships a small set of in-process tools so a fresh
// deployment has something to find and call before any external
// catalog is wired up. Each tool is a callable registered under a
// "builtin." module path, matching the default callable allow-list.
package builtin

import (
	"encoding/json"
	"fmt"

	"github.com/toolscout/toolscout/internal/service/executor"
	"github.com/toolscout/toolscout/pkg/types"
)

// definition couples a callable with its registration input.
type definition struct {
	modulePath string
	fn         executor.Callable
	input      types.RegisterToolInput
}

// RegisterAll adds every builtin callable to the table.
func RegisterAll(table *executor.CallableTable) {
	for _, d := range definitions() {
		table.Register(d.modulePath, d.fn)
	}
}

// SeedDefinitions returns the registration inputs for the builtin
// tools, in a stable order.
func SeedDefinitions() []types.RegisterToolInput {
	defs := definitions()
	inputs := make([]types.RegisterToolInput, 0, len(defs))
	for _, d := range defs {
		inputs = append(inputs, d.input)
	}
	return inputs
}

func definitions() []definition {
	return []definition{
		calculatorDefinition(),
		stringsDefinition(),
		datetimeDefinition(),
	}
}

func registration(name, modulePath, description, schema string, tags ...string) types.RegisterToolInput {
	return types.RegisterToolInput{
		Name:               name,
		Description:        description,
		ImplementationType: string(types.ImplPythonCallable),
		ImplementationCode: json.RawMessage(fmt.Sprintf("%q", modulePath)),
		InputSchema:        json.RawMessage(schema),
		Tags:               append([]string{"builtin"}, tags...),
		Category:           "utilities",
	}
}

// stringArg fetches a required string argument.
func stringArg(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing argument %q", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	return s, nil
}

// numberArg fetches a required numeric argument. JSON numbers decode
// as float64.
func numberArg(args map[string]any, key string) (float64, error) {
	raw, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("missing argument %q", key)
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	default:
		return 0, fmt.Errorf("argument %q must be a number", key)
	}
}
