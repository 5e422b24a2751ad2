package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type echoTool struct{ name string }

func (e echoTool) Name() string                 { return e.name }
func (e echoTool) Description() string          { return "echo " + e.name }
func (e echoTool) Parameters() map[string]any   { return map[string]any{"text": map[string]any{"type": "string"}} }
func (e echoTool) RequiredParameters() []string { return []string{"text"} }

func (e echoTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	text, err := stringArg(args, "text")
	if err != nil {
		return nil, err
	}
	if text == "fail" {
		return nil, errors.New("asked to fail")
	}
	return map[string]any{"text": text}, nil
}

func TestRegistryListsToolsByName(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool{"zeta"})
	r.Register(echoTool{"alpha"})

	specs := r.OpenAITools()
	if len(specs) != 2 {
		t.Fatalf("got %d tools, want 2", len(specs))
	}
	if specs[0].Function.Name != "alpha" || specs[1].Function.Name != "zeta" {
		t.Fatalf("order = %s, %s", specs[0].Function.Name, specs[1].Function.Name)
	}
	params := specs[0].Function.Parameters.(map[string]any)
	if params["type"] != "object" {
		t.Fatalf("parameters type = %v", params["type"])
	}
	if req := params["required"].([]string); len(req) != 1 || req[0] != "text" {
		t.Fatalf("required = %v", req)
	}
}

func TestRegistryExecute(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool{"echo"})
	ctx := context.Background()

	res := r.Execute(ctx, ToolCall{ID: "1", Name: "echo", Args: map[string]any{"text": "hi"}})
	if res.Error != "" || res.CallID != "1" {
		t.Fatalf("result = %+v", res)
	}
	if !strings.Contains(res.Content(), `"text": "hi"`) {
		t.Fatalf("content = %s", res.Content())
	}

	res = r.Execute(ctx, ToolCall{ID: "2", Name: "echo", Args: map[string]any{"text": "fail"}})
	if res.Content() != "Error: asked to fail" {
		t.Fatalf("content = %q", res.Content())
	}

	res = r.Execute(ctx, ToolCall{ID: "3", Name: "missing"})
	if !strings.Contains(res.Error, "not found") {
		t.Fatalf("error = %q", res.Error)
	}
}

func TestExecuteAsyncClosesChannel(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool{"echo"})
	ch := make(chan ToolResult, 1)
	r.ExecuteAsync(context.Background(), ToolCall{ID: "a", Name: "echo", Args: map[string]any{"text": "x"}}, ch)

	res, ok := <-ch
	if !ok || res.CallID != "a" {
		t.Fatalf("first receive = %+v, %v", res, ok)
	}
	if _, ok := <-ch; ok {
		t.Fatal("channel not closed after result")
	}
}

func TestParseToolCall(t *testing.T) {
	call, err := ParseToolCall("c1", "shell", `{"command":"ls"}`)
	if err != nil || call.Args["command"] != "ls" {
		t.Fatalf("call = %+v, err = %v", call, err)
	}
	if call, err = ParseToolCall("c2", "current_time", ""); err != nil || len(call.Args) != 0 {
		t.Fatalf("empty arguments: %+v, %v", call, err)
	}
	if _, err := ParseToolCall("c3", "shell", `{"command":`); err == nil {
		t.Fatal("truncated JSON accepted")
	}
}
