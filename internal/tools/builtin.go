package tools

import (
	"go.uber.org/zap"

	"github.com/Rorical/RoriAgent/internal/clock"
)

// RegisterBuiltinTools registers the tools the agent ships with. File
// paths are resolved against root.
func RegisterBuiltinTools(registry *Registry, approver Approver, root string, clk clock.Clock, logger *zap.Logger) {
	registry.Register(NewShellTool(approver, root, logger))
	registry.Register(NewFileReadTool(root))
	registry.Register(NewFileWriteTool(approver, root))
	registry.Register(NewCurrentTimeTool(clk))
}
