package builtin

import (
	"context"
	"errors"
	"fmt"
	"math"
)

const calculatorSchema = `{
	"type": "object",
	"properties": {
		"operation": {
			"type": "string",
			"enum": ["add", "subtract", "multiply", "divide", "power"],
			"description": "Arithmetic operation to perform"
		},
		"a": {"type": "number", "description": "First operand"},
		"b": {"type": "number", "description": "Second operand"}
	},
	"required": ["operation", "a", "b"]
}`

func calculatorDefinition() definition {
	return definition{
		modulePath: "builtin.calculator",
		fn:         calculate,
		input: registration(
			"calculator",
			"builtin.calculator",
			"Performs basic arithmetic: add, subtract, multiply, divide and power on two numbers.",
			calculatorSchema,
			"math",
		),
	}
}

func calculate(_ context.Context, args map[string]any) (any, error) {
	operation, err := stringArg(args, "operation")
	if err != nil {
		return nil, err
	}
	a, err := numberArg(args, "a")
	if err != nil {
		return nil, err
	}
	b, err := numberArg(args, "b")
	if err != nil {
		return nil, err
	}

	var result float64
	switch operation {
	case "add":
		result = a + b
	case "subtract":
		result = a - b
	case "multiply":
		result = a * b
	case "divide":
		if b == 0 {
			return nil, errors.New("division by zero")
		}
		result = a / b
	case "power":
		result = math.Pow(a, b)
	default:
		return nil, fmt.Errorf("unknown operation %q", operation)
	}

	if math.IsInf(result, 0) || math.IsNaN(result) {
		return nil, fmt.Errorf("operation %s produced a non-finite result", operation)
	}
	return map[string]any{"result": result}, nil
}
