package tools

import (
	"context"
	"time"

	"github.com/Rorical/RoriAgent/internal/clock"
)

// CurrentTimeTool returns the current time
type CurrentTimeTool struct {
	clock clock.Clock
}

func NewCurrentTimeTool(clk clock.Clock) *CurrentTimeTool {
	if clk == nil {
		clk = clock.Real()
	}
	return &CurrentTimeTool{clock: clk}
}

func (c *CurrentTimeTool) Name() string {
	return "current_time"
}

func (c *CurrentTimeTool) Description() string {
	return "Get the current date and time"
}

func (c *CurrentTimeTool) Parameters() map[string]any {
	return map[string]any{
		"format": map[string]any{
			"type":        "string",
			"description": "One of 'iso' (default), 'human', 'date', 'time', 'unix', or a Go layout like '2006-01-02 15:04:05'",
		},
	}
}

func (c *CurrentTimeTool) RequiredParameters() []string {
	return []string{}
}

func (c *CurrentTimeTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	now := c.clock.Now()
	layout, _ := args["format"].(string)
	switch layout {
	case "iso", "":
		layout = time.RFC3339
	case "human":
		layout = "January 2, 2006 at 3:04 PM MST"
	case "date":
		layout = time.DateOnly
	case "time":
		layout = time.TimeOnly
	case "unix":
		return now.Unix(), nil
	}
	return now.Format(layout), nil
}
