package builtin

import (
	"context"
	"fmt"
	"strings"
)

const stringsSchema = `{
	"type": "object",
	"properties": {
		"operation": {
			"type": "string",
			"enum": ["upper", "lower", "trim", "split", "join", "replace"],
			"description": "String operation to perform"
		},
		"text": {"type": "string", "description": "Input text (upper, lower, trim, split, replace)"},
		"parts": {
			"type": "array",
			"items": {"type": "string"},
			"description": "Strings to join (join only)"
		},
		"separator": {"type": "string", "description": "Separator for split and join, defaults to a single space"},
		"old": {"type": "string", "description": "Substring to replace (replace only)"},
		"new": {"type": "string", "description": "Replacement text (replace only)"}
	},
	"required": ["operation"]
}`

func stringsDefinition() definition {
	return definition{
		modulePath: "builtin.strings",
		fn:         transformString,
		input: registration(
			"string-utils",
			"builtin.strings",
			"Text utilities: uppercase, lowercase, trim, split, join and replace.",
			stringsSchema,
			"text",
		),
	}
}

func transformString(_ context.Context, args map[string]any) (any, error) {
	operation, err := stringArg(args, "operation")
	if err != nil {
		return nil, err
	}

	separator := " "
	if raw, ok := args["separator"]; ok {
		if s, ok := raw.(string); ok {
			separator = s
		}
	}

	switch operation {
	case "upper", "lower", "trim", "split", "replace":
		text, err := stringArg(args, "text")
		if err != nil {
			return nil, err
		}
		switch operation {
		case "upper":
			return map[string]any{"result": strings.ToUpper(text)}, nil
		case "lower":
			return map[string]any{"result": strings.ToLower(text)}, nil
		case "trim":
			return map[string]any{"result": strings.TrimSpace(text)}, nil
		case "split":
			return map[string]any{"result": strings.Split(text, separator)}, nil
		default:
			oldText, err := stringArg(args, "old")
			if err != nil {
				return nil, err
			}
			newText, err := stringArg(args, "new")
			if err != nil {
				return nil, err
			}
			return map[string]any{"result": strings.ReplaceAll(text, oldText, newText)}, nil
		}

	case "join":
		raw, ok := args["parts"]
		if !ok {
			return nil, fmt.Errorf("missing argument %q", "parts")
		}
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("argument %q must be an array of strings", "parts")
		}
		parts := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("argument %q must contain only strings", "parts")
			}
			parts = append(parts, s)
		}
		return map[string]any{"result": strings.Join(parts, separator)}, nil

	default:
		return nil, fmt.Errorf("unknown operation %q", operation)
	}
}
