package update

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Rorical/RoriAgent/internal/approval"
	"github.com/Rorical/RoriAgent/internal/bridge"
	"github.com/Rorical/RoriAgent/internal/eventbus"
	"github.com/Rorical/RoriAgent/internal/models"
	"github.com/Rorical/RoriAgent/internal/terminal"
)

// Sender delivers UI messages to the host.
type Sender interface {
	Send(ctx context.Context, msg bridge.Message) error
}

// Deps are what the handlers act on besides the model.
type Deps struct {
	Engine *approval.Engine
	Bridge Sender
	Keys   KeyMap
}

// CoreEventMsg wraps core events for Bubble Tea
type CoreEventMsg struct {
	Event eventbus.CoreEvent
}

func HandleUpdate(appModel *models.AppModel, msg tea.Msg, deps Deps) tea.Cmd {
	switch msg := msg.(type) {
	case terminal.KeyEvent:
		return HandleKeyEvent(appModel, msg, deps)
	case tea.WindowSizeMsg:
		HandleWindowSizeMsg(appModel, msg)
		return nil
	case spinner.TickMsg:
		return HandleTickMsg(appModel, msg, deps)
	case CoreEventMsg:
		return HandleCoreEvent(appModel, msg)
	}
	return nil
}

// HandleKeyEvent applies one decoded key. While a question is open the
// menu keys go to the approval engine first.
func HandleKeyEvent(appModel *models.AppModel, ev terminal.KeyEvent, deps Deps) tea.Cmd {
	keys := deps.Keys
	if key.Matches(ev, keys.Quit) {
		return tea.Quit
	}
	if ev.Paste {
		appModel.Input = append(appModel.Input, []rune(ev.Text())...)
		return nil
	}

	if deps.Engine != nil {
		shown := shownRequest(appModel.Approval)
		appModel.Approval = deps.Engine.Snapshot()
		if appModel.Approval.Phase == approval.Pending && handleApprovalKey(appModel, ev, shown, deps) {
			return nil
		}
	}

	switch {
	case key.Matches(ev, keys.Newline):
		appModel.Input = append(appModel.Input, '\n')
	case key.Matches(ev, keys.Submit):
		submit(appModel, deps)
	case key.Matches(ev, keys.Backspace):
		if n := len(appModel.Input); n > 0 {
			appModel.Input = appModel.Input[:n-1]
		}
	case key.Matches(ev, keys.ClearLine):
		appModel.Input = nil
	case key.Matches(ev, keys.Cancel):
		if appModel.Loading {
			send(appModel, deps, bridge.KindCancel, nil)
		}
	default:
		if text := ev.Text(); text != "" {
			appModel.Input = append(appModel.Input, []rune(text)...)
		}
	}
	return nil
}

// handleApprovalKey reports whether ev was consumed by the menu. Choices
// apply to request shown, the one on screen when the key was pressed.
// Enter and hotkeys only choose with an empty input so typing is not
// hijacked.
func handleApprovalKey(appModel *models.AppModel, ev terminal.KeyEvent, shown int64, deps Deps) bool {
	keys := deps.Keys
	var (
		d       approval.Decision
		decided bool
	)
	switch {
	case key.Matches(ev, keys.Up):
		deps.Engine.SelectPrevious()
	case key.Matches(ev, keys.Down):
		deps.Engine.SelectNext()
	case key.Matches(ev, keys.Submit):
		if len(appModel.Input) > 0 {
			appModel.Status = "Clear the input to choose an option"
			return true
		}
		d, decided = deps.Engine.ChooseSelected(shown)
	case len(appModel.Input) == 0 && ev.Plain() && hasHotkey(appModel.Approval, ev.Text()):
		d, decided = deps.Engine.ChooseHotkey(shown, ev.Text())
	default:
		return false
	}
	if decided {
		send(appModel, deps, bridge.KindApprovalResponse, d)
	}
	appModel.Approval = deps.Engine.Snapshot()
	return true
}

func shownRequest(snap approval.Snapshot) int64 {
	if snap.Pending == nil {
		return 0
	}
	return snap.Pending.ID
}

func hasHotkey(snap approval.Snapshot, text string) bool {
	if text == "" {
		return false
	}
	for _, opt := range snap.Options {
		if opt.Hotkey == text {
			return true
		}
	}
	return false
}

func submit(appModel *models.AppModel, deps Deps) {
	text := appModel.InputText()
	if strings.TrimSpace(text) == "" {
		return
	}
	kind := bridge.KindUserInput
	if !appModel.TaskSent {
		kind = bridge.KindTask
	}
	if !send(appModel, deps, kind, text) {
		return
	}
	appModel.Input = nil
	appModel.TaskSent = true
	if !appModel.HostReady {
		appModel.Status = "Queued until the agent is ready"
	}
}

func send(appModel *models.AppModel, deps Deps, kind bridge.MessageKind, payload any) bool {
	if deps.Bridge == nil {
		appModel.Status = "Agent not available"
		return false
	}
	if err := deps.Bridge.Send(context.Background(), bridge.Message{Kind: kind, Payload: payload}); err != nil {
		appModel.Status = "Error: " + err.Error()
		return false
	}
	return true
}

// HandleCoreEvent processes events from the core
func HandleCoreEvent(appModel *models.AppModel, coreEventMsg CoreEventMsg) tea.Cmd {
	switch event := coreEventMsg.Event.(type) {
	case eventbus.StateUpdateEvent:
		appModel.Messages = event.Messages
		appModel.Loading = event.IsProcessing

		if event.Error != nil {
			appModel.Status = "Error: " + event.Error.Error()
		} else if event.IsProcessing {
			appModel.Status = "Processing"
		} else if appModel.HostReady {
			appModel.Status = "Ready"
		}
	case eventbus.ApprovalEvent:
		// Events can arrive after a fresher snapshot was read on a key press.
		if event.Snapshot.Version >= appModel.Approval.Version {
			appModel.Approval = event.Snapshot
		}
	case eventbus.HostReadyEvent:
		appModel.HostReady = true
		switch {
		case event.Err != nil:
			appModel.Status = "Not configured: " + event.Err.Error()
		case event.Model != "":
			appModel.Status = "Ready (" + event.Model + ")"
		default:
			appModel.Status = "Ready"
		}
	}
	return nil
}

func HandleWindowSizeMsg(appModel *models.AppModel, sizeMsg tea.WindowSizeMsg) {
	appModel.Width = sizeMsg.Width
	appModel.Height = sizeMsg.Height
}

// HandleTickMsg animates the spinner and re-reads the approval menu in
// case an event was dropped on the way.
func HandleTickMsg(appModel *models.AppModel, tick spinner.TickMsg, deps Deps) tea.Cmd {
	if deps.Engine != nil {
		if snap := deps.Engine.Snapshot(); snap.Version > appModel.Approval.Version {
			appModel.Approval = snap
		}
	}
	var cmd tea.Cmd
	appModel.Spinner, cmd = appModel.Spinner.Update(tick)
	return cmd
}
