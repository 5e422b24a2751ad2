package approval

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Option is one entry of the approval menu. Options are derived from the
// current request on every read and never stored.
type Option struct {
	Label          string
	Action         Action
	Hotkey         string
	Color          string
	CommandPattern string
	// Key is stable across recomputation so renderers can reconcile lists.
	Key string
}

const (
	colorApprove  = "green"
	colorReject   = "red"
	colorRemember = "cyan"
)

// Tool names that make the approve button read "Save".
const (
	ToolEditedExistingFile = "editedExistingFile"
	ToolNewFileCreated     = "newFileCreated"
)

func approveOption(label string) Option {
	return Option{Label: label, Action: ActionApprove, Hotkey: "y", Color: colorApprove, Key: string(ActionApprove)}
}

func rejectOption(label string) Option {
	return Option{Label: label, Action: ActionReject, Hotkey: "n", Color: colorReject, Key: string(ActionReject)}
}

func rememberOption(level int, pattern string) Option {
	return Option{
		Label:          "Always Run `" + pattern + "`",
		Action:         ActionApproveAndRemember,
		Hotkey:         strconv.Itoa(level),
		Color:          colorRemember,
		CommandPattern: pattern,
		Key:            string(ActionApproveAndRemember) + ":" + pattern,
	}
}

// OptionsFor derives the menu for req.
func OptionsFor(req Request) []Option {
	switch req.Kind {
	case KindTool:
		if isFileChange(req.Payload) {
			return []Option{approveOption("Save"), rejectOption("Reject")}
		}
		return []Option{approveOption("Approve"), rejectOption("Reject")}
	case KindCheckpointRestore:
		return []Option{approveOption("Restore Checkpoint"), rejectOption("Cancel")}
	case KindCommandOutput:
		return []Option{approveOption("Continue"), rejectOption("Abort")}
	case KindCommand:
		return commandOptions(req)
	case KindAPIRequestFailed:
		return []Option{approveOption("Retry"), rejectOption("Start New Task")}
	case KindMistakeLimitReached:
		return []Option{approveOption("Proceed Anyways"), rejectOption("Start New Task")}
	case KindResumeTask:
		return []Option{approveOption("Resume Task"), rejectOption("Cancel")}
	default:
		return []Option{approveOption("Approve"), rejectOption("Reject")}
	}
}

func commandOptions(req Request) []Option {
	command := strings.TrimSpace(req.Payload)
	if req.Partial || command == "" {
		return []Option{approveOption("Run Command"), rejectOption("Reject")}
	}
	opts := []Option{approveOption("Run Command")}
	for i, pattern := range CommandHierarchy(command) {
		opts = append(opts, rememberOption(i+1, pattern))
	}
	return append(opts, rejectOption("Reject"))
}

func isFileChange(payload string) bool {
	var p struct {
		Tool string `json:"tool"`
	}
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return false
	}
	return p.Tool == ToolEditedExistingFile || p.Tool == ToolNewFileCreated
}

// CommandHierarchy returns the patterns a command can be remembered by:
// its first word, its first two words, and the whole command, skipping
// levels that would repeat a shorter one.
func CommandHierarchy(command string) []string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil
	}
	levels := []string{fields[0]}
	if len(fields) >= 2 {
		levels = append(levels, fields[0]+" "+fields[1])
	}
	if len(fields) > 2 {
		levels = append(levels, strings.TrimSpace(command))
	}
	return levels
}
