package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/sashabaranov/go-openai"
)

// Tool represents a function that can be called by the model
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any // JSON schema properties
	RequiredParameters() []string
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// ToolCall represents a tool call request
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"arguments"`
}

// ToolResult represents the result of a tool execution
type ToolResult struct {
	CallID string `json:"call_id"`
	Name   string `json:"name"`
	Result any    `json:"result"`
	Error  string `json:"error,omitempty"`
}

// Registry manages available tools
type Registry struct {
	tools map[string]Tool
	mu    sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool, replacing any tool with the same name
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

func (r *Registry) GetTool(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, exists := r.tools[name]
	return tool, exists
}

// ListTools returns all registered tools sorted by name
func (r *Registry) ListTools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	return tools
}

// OpenAITools returns the function definitions sent with every completion
func (r *Registry) OpenAITools() []openai.Tool {
	tools := r.ListTools()
	specs := make([]openai.Tool, len(tools))
	for i, tool := range tools {
		specs[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters: map[string]any{
					"type":       "object",
					"properties": tool.Parameters(),
					"required":   tool.RequiredParameters(),
				},
			},
		}
	}
	return specs
}

// Execute runs a call synchronously. Unknown tools and tool errors are
// reported in the result, never returned.
func (r *Registry) Execute(ctx context.Context, call ToolCall) ToolResult {
	result := ToolResult{CallID: call.ID, Name: call.Name}
	tool, exists := r.GetTool(call.Name)
	if !exists {
		result.Error = fmt.Sprintf("tool '%s' not found", call.Name)
		return result
	}
	out, err := tool.Execute(ctx, call.Args)
	result.Result = out
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

// ExecuteAsync runs a call on its own goroutine and closes resultChan
// after sending the result.
func (r *Registry) ExecuteAsync(ctx context.Context, call ToolCall, resultChan chan<- ToolResult) {
	go func() {
		defer close(resultChan)
		resultChan <- r.Execute(ctx, call)
	}()
}

// ParseToolCall decodes the JSON arguments the model sent for a call
func ParseToolCall(id, name, arguments string) (ToolCall, error) {
	call := ToolCall{ID: id, Name: name, Args: map[string]any{}}
	if arguments == "" {
		return call, nil
	}
	if err := json.Unmarshal([]byte(arguments), &call.Args); err != nil {
		return call, fmt.Errorf("failed to parse arguments for %s: %w", name, err)
	}
	return call, nil
}

// Content renders the result as the tool message sent back to the model
func (tr ToolResult) Content() string {
	if tr.Error != "" {
		return "Error: " + tr.Error
	}
	data, err := json.MarshalIndent(tr.Result, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", tr.Result)
	}
	return string(data)
}

func stringArg(args map[string]any, name string) (string, error) {
	v, ok := args[name].(string)
	if !ok {
		return "", fmt.Errorf("%s parameter must be a string", name)
	}
	return v, nil
}

func numberArg(args map[string]any, name string, def float64) float64 {
	if v, ok := args[name].(float64); ok {
		return v
	}
	return def
}
