package builtin

import (
	"context"
	"fmt"
	"time"
)

const datetimeSchema = `{
	"type": "object",
	"properties": {
		"operation": {
			"type": "string",
			"enum": ["now", "format", "parse", "diff"],
			"description": "Date/time operation to perform"
		},
		"timestamp": {"type": "string", "description": "RFC 3339 timestamp (format)"},
		"value": {"type": "string", "description": "Text to parse (parse)"},
		"layout": {"type": "string", "description": "Go reference layout, defaults to RFC 3339"},
		"start": {"type": "string", "description": "RFC 3339 start of the interval (diff)"},
		"end": {"type": "string", "description": "RFC 3339 end of the interval (diff)"}
	},
	"required": ["operation"]
}`

func datetimeDefinition() definition {
	return definition{
		modulePath: "builtin.datetime",
		fn:         datetimeOp,
		input: registration(
			"datetime",
			"builtin.datetime",
			"Date and time utilities: current time, formatting, parsing and interval arithmetic.",
			datetimeSchema,
			"time",
		),
	}
}

func datetimeOp(_ context.Context, args map[string]any) (any, error) {
	operation, err := stringArg(args, "operation")
	if err != nil {
		return nil, err
	}

	layout := time.RFC3339
	if raw, ok := args["layout"]; ok {
		if s, ok := raw.(string); ok && s != "" {
			layout = s
		}
	}

	switch operation {
	case "now":
		now := time.Now().UTC()
		return map[string]any{
			"iso":  now.Format(time.RFC3339),
			"unix": now.Unix(),
		}, nil

	case "format":
		raw, err := stringArg(args, "timestamp")
		if err != nil {
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp: %w", err)
		}
		return map[string]any{"result": ts.Format(layout)}, nil

	case "parse":
		raw, err := stringArg(args, "value")
		if err != nil {
			return nil, err
		}
		ts, err := time.Parse(layout, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %q with layout %q: %w", raw, layout, err)
		}
		return map[string]any{
			"iso":  ts.UTC().Format(time.RFC3339),
			"unix": ts.Unix(),
		}, nil

	case "diff":
		startRaw, err := stringArg(args, "start")
		if err != nil {
			return nil, err
		}
		endRaw, err := stringArg(args, "end")
		if err != nil {
			return nil, err
		}
		start, err := time.Parse(time.RFC3339, startRaw)
		if err != nil {
			return nil, fmt.Errorf("invalid start: %w", err)
		}
		end, err := time.Parse(time.RFC3339, endRaw)
		if err != nil {
			return nil, fmt.Errorf("invalid end: %w", err)
		}
		d := end.Sub(start)
		return map[string]any{
			"seconds": d.Seconds(),
			"human":   d.String(),
		}, nil

	default:
		return nil, fmt.Errorf("unknown operation %q", operation)
	}
}
