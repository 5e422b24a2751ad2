package approval

import "testing"

func labels(opts []Option) []string {
	out := make([]string, len(opts))
	for i, o := range opts {
		out[i] = o.Label
	}
	return out
}

func TestOptionsFor(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want []string
	}{
		{"edit file", Request{Kind: KindTool, Payload: `{"tool":"editedExistingFile","path":"a.go"}`}, []string{"Save", "Reject"}},
		{"new file", Request{Kind: KindTool, Payload: `{"tool":"newFileCreated"}`}, []string{"Save", "Reject"}},
		{"other tool", Request{Kind: KindTool, Payload: `{"tool":"readFile"}`}, []string{"Approve", "Reject"}},
		{"tool payload not json", Request{Kind: KindTool, Payload: "x"}, []string{"Approve", "Reject"}},
		{"checkpoint", Request{Kind: KindCheckpointRestore}, []string{"Restore Checkpoint", "Cancel"}},
		{"command output", Request{Kind: KindCommandOutput}, []string{"Continue", "Abort"}},
		{"partial command", Request{Kind: KindCommand, Payload: "git st", Partial: true}, []string{"Run Command", "Reject"}},
		{"empty command", Request{Kind: KindCommand}, []string{"Run Command", "Reject"}},
		{"short command", Request{Kind: KindCommand, Payload: "ls"}, []string{"Run Command", "Always Run `ls`", "Reject"}},
		{"api failure", Request{Kind: KindAPIRequestFailed}, []string{"Retry", "Start New Task"}},
		{"mistake limit", Request{Kind: KindMistakeLimitReached}, []string{"Proceed Anyways", "Start New Task"}},
		{"resume", Request{Kind: KindResumeTask}, []string{"Resume Task", "Cancel"}},
		{"mcp", Request{Kind: KindUseMCPServer}, []string{"Approve", "Reject"}},
		{"unknown", Request{Kind: "something_new"}, []string{"Approve", "Reject"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := labels(OptionsFor(tt.req))
			if len(got) != len(tt.want) {
				t.Fatalf("labels = %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("labels = %q, want %q", got, tt.want)
				}
			}
		})
	}
}

func TestCommandOptionsKeysAndHotkeys(t *testing.T) {
	opts := OptionsFor(Request{Kind: KindCommand, Payload: "git status --short --branch"})
	if len(opts) != 5 {
		t.Fatalf("got %d options, want 5", len(opts))
	}

	seen := make(map[string]bool)
	for _, o := range opts {
		if seen[o.Key] {
			t.Fatalf("duplicate key %q", o.Key)
		}
		seen[o.Key] = true
	}

	want := []struct{ hotkey, color, pattern string }{
		{"y", "green", ""},
		{"1", "cyan", "git"},
		{"2", "cyan", "git status"},
		{"3", "cyan", "git status --short --branch"},
		{"n", "red", ""},
	}
	for i, w := range want {
		o := opts[i]
		if o.Hotkey != w.hotkey || o.Color != w.color || o.CommandPattern != w.pattern {
			t.Errorf("option %d = %+v, want hotkey %q color %q pattern %q", i, o, w.hotkey, w.color, w.pattern)
		}
	}
	if opts[2].Key != "approve_and_remember:git status" {
		t.Fatalf("key = %q", opts[2].Key)
	}
}
