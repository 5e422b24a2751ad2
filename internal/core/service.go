package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/Rorical/RoriAgent/internal/approval"
	"github.com/Rorical/RoriAgent/internal/bridge"
	"github.com/Rorical/RoriAgent/internal/clock"
	"github.com/Rorical/RoriAgent/internal/config"
	"github.com/Rorical/RoriAgent/internal/eventbus"
	"github.com/Rorical/RoriAgent/internal/logging"
	"github.com/Rorical/RoriAgent/internal/metrics"
	"github.com/Rorical/RoriAgent/internal/permissions"
	"github.com/Rorical/RoriAgent/internal/tools"
)

var (
	ErrBusy          = errors.New("a turn is already running")
	ErrNotConfigured = errors.New("no API key configured for the active profile")
	ErrCanceled      = errors.New("turn canceled")
)

// ConfigUpdate is the payload of a config message. Empty fields are left
// unchanged.
type ConfigUpdate struct {
	Profile string
	Model   string
}

// Readier is told when the host can take messages.
type Readier interface {
	MarkReady(ctx context.Context)
}

type Options struct {
	Config *config.Config
	Bus    *eventbus.EventBus
	Engine *approval.Engine
	// Root is the directory tools work in.
	Root    string
	Clock   clock.Clock
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// ChatService is the agent host. It starts asynchronously, receives
// bridge messages through HandleMessage and asks the user through the
// approval engine before tools act.
type ChatService struct {
	config   *config.Config
	state    *ChatState
	eventBus *eventbus.EventBus
	engine   *approval.Engine
	registry *tools.Registry
	root     string
	clock    clock.Clock
	log      *zap.Logger
	metrics  *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	client     *openai.Client
	model      string
	perms      *permissions.Store
	turnCancel context.CancelFunc

	approvals approvals
}

func NewChatService(opts Options) (*ChatService, error) {
	if opts.Config == nil || opts.Bus == nil || opts.Engine == nil {
		return nil, errors.New("config, event bus and approval engine are required")
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	ctx, cancel := context.WithCancel(context.Background())
	cs := &ChatService{
		config:   opts.Config,
		state:    NewChatState(),
		eventBus: opts.Bus,
		engine:   opts.Engine,
		registry: tools.NewRegistry(),
		root:     opts.Root,
		clock:    clk,
		log:      logging.OrNop(opts.Logger).Named("host"),
		metrics:  metrics.OrNew(opts.Metrics),
		ctx:      ctx,
		cancel:   cancel,
	}
	cs.approvals.init(clk)

	tools.RegisterBuiltinTools(cs.registry, cs, cs.root, clk, cs.log)
	cs.engine.SetObserver(cs.publishApproval)
	cs.eventBus.SetErrorCallback(cs.eventDropped)
	cs.addWelcomeMessages()
	return cs, nil
}

// Start pushes the welcome screen, then initializes in the background
// and marks ready once messages can be handled.
func (cs *ChatService) Start(ready Readier) {
	cs.pushStateToUI()
	cs.wg.Add(1)
	go func() {
		defer cs.wg.Done()
		err := cs.init()
		cs.mu.Lock()
		ev := eventbus.HostReadyEvent{Profile: cs.config.ActiveProfile, Model: cs.model, Err: err}
		cs.mu.Unlock()
		cs.send(ev)
		if cs.ctx.Err() != nil {
			return
		}
		ready.MarkReady(cs.ctx)
	}()
}

func (cs *ChatService) init() error {
	if err := cs.openPermissions(); err != nil {
		cs.log.Warn("remembered commands unavailable", zap.Error(err))
		cs.state.AddProgramMessage("Remembered commands unavailable: " + err.Error())
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.model = cs.config.GetModel()
	if !cs.config.IsValid() {
		cs.log.Warn("starting without a model client", zap.String("profile", cs.config.ActiveProfile))
		return ErrNotConfigured
	}
	cs.client = cs.newClient()
	cs.log.Info("host ready", zap.String("profile", cs.config.ActiveProfile), zap.String("model", cs.model))
	return nil
}

func (cs *ChatService) newClient() *openai.Client {
	clientConfig := openai.DefaultConfig(cs.config.GetAPIKey())
	if baseURL := cs.config.GetBaseURL(); baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(clientConfig)
}

func (cs *ChatService) openPermissions() error {
	path := cs.config.Approval.PermissionsFile
	if path == "" {
		return nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(filepath.Dir(cs.config.Path()), path)
	}
	store, err := permissions.Open(path, cs.log)
	if err != nil {
		return err
	}
	cs.mu.Lock()
	cs.perms = store
	cs.mu.Unlock()

	cs.wg.Add(1)
	go func() {
		defer cs.wg.Done()
		if err := store.Watch(cs.ctx); err != nil && !errors.Is(err, context.Canceled) {
			cs.log.Warn("stopped watching remembered commands", zap.Error(err))
		}
	}()
	return nil
}

// Stop cancels the running turn and waits for background work.
func (cs *ChatService) Stop() {
	cs.cancel()
	cs.wg.Wait()
}

// HandleMessage is the bridge handler. It never blocks on a turn: turns
// run on their own goroutine so approval responses can reach them.
func (cs *ChatService) HandleMessage(ctx context.Context, msg bridge.Message) error {
	switch msg.Kind {
	case bridge.KindConfig:
		update, ok := msg.Payload.(ConfigUpdate)
		if !ok {
			return fmt.Errorf("config message carries %T", msg.Payload)
		}
		return cs.applyConfig(update)
	case bridge.KindTask, bridge.KindUserInput:
		text, ok := msg.Payload.(string)
		if !ok {
			return fmt.Errorf("%s message carries %T", msg.Kind, msg.Payload)
		}
		return cs.startTurn(text, msg.Kind == bridge.KindTask)
	case bridge.KindApprovalResponse:
		d, ok := msg.Payload.(approval.Decision)
		if !ok {
			return fmt.Errorf("approval response carries %T", msg.Payload)
		}
		cs.resolve(d)
		return nil
	case bridge.KindCancel:
		cs.cancelTurn()
		return nil
	default:
		return fmt.Errorf("unknown message kind %q", msg.Kind)
	}
}

func (cs *ChatService) applyConfig(update ConfigUpdate) error {
	cs.mu.Lock()
	if update.Profile != "" && update.Profile != cs.config.ActiveProfile {
		if err := cs.config.SwitchProfile(update.Profile); err != nil {
			cs.mu.Unlock()
			return fmt.Errorf("failed to switch profile: %w", err)
		}
		cs.model = cs.config.GetModel()
		cs.client = nil
		if cs.config.IsValid() {
			cs.client = cs.newClient()
		}
	}
	if update.Model != "" {
		cs.model = update.Model
	}
	profile, model := cs.config.ActiveProfile, cs.model
	cs.mu.Unlock()

	cs.log.Info("configuration updated", zap.String("profile", profile), zap.String("model", model))
	cs.state.AddProgramMessage(fmt.Sprintf("Profile %s, model %s", profile, model))
	cs.pushStateToUI()
	return nil
}

func (cs *ChatService) startTurn(text string, newTask bool) error {
	cs.mu.Lock()
	if cs.turnCancel != nil {
		cs.mu.Unlock()
		return ErrBusy
	}
	ctx, cancel := context.WithCancel(cs.ctx)
	cs.turnCancel = cancel
	cs.mu.Unlock()

	if newTask {
		cs.state.ResetConversation()
	}
	cs.state.StartProcessingWithUserMessage(text)
	cs.pushStateToUI()

	cs.wg.Add(1)
	go func() {
		defer cs.wg.Done()
		err := cs.runTurn(ctx)
		cs.endTurn()
		if err != nil {
			cs.state.FinishProcessingWithError(err)
		} else {
			cs.state.FinishProcessing()
		}
		cs.pushStateToUI()
	}()
	return nil
}

func (cs *ChatService) endTurn() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.turnCancel != nil {
		cs.turnCancel()
		cs.turnCancel = nil
	}
}

func (cs *ChatService) cancelTurn() {
	cs.mu.Lock()
	cancel := cs.turnCancel
	cs.mu.Unlock()
	if cancel != nil {
		cs.log.Info("canceling turn")
		cancel()
	}
}

// Busy reports whether a turn is running.
func (cs *ChatService) Busy() bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.turnCancel != nil
}

// runTurn alternates model requests and tool calls until the model
// answers without calling a tool.
func (cs *ChatService) runTurn(ctx context.Context) error {
	for {
		cs.mu.Lock()
		client, model := cs.client, cs.model
		cs.mu.Unlock()
		if client == nil {
			return ErrNotConfigured
		}
		if !cs.state.NextRound() {
			return errors.New("maximum tool call depth reached")
		}

		resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    model,
			Messages: cs.state.GetChatHistoryWithSystemPrompt(cs.systemPrompt()),
			Tools:    cs.registry.OpenAITools(),
		})
		if err != nil {
			if ctx.Err() != nil {
				return ErrCanceled
			}
			cs.log.Warn("model request failed", zap.Error(err))
			return fmt.Errorf("model request failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil
		}

		message := resp.Choices[0].Message
		if message.Content != "" || len(message.ToolCalls) > 0 {
			cs.state.AddAssistantMessageWithToolCalls(message.Content, message.ToolCalls)
			cs.pushStateToUI()
		}
		if len(message.ToolCalls) == 0 {
			return nil
		}

		for _, call := range message.ToolCalls {
			// Every call needs a result in the history, even after a cancel.
			cs.state.AddToolResultMessage(call.ID, cs.runTool(ctx, call))
			cs.pushStateToUI()
		}
		if ctx.Err() != nil {
			return ErrCanceled
		}
	}
}

func (cs *ChatService) runTool(ctx context.Context, call openai.ToolCall) string {
	if ctx.Err() != nil {
		return "Error: " + ErrCanceled.Error()
	}
	parsed, err := tools.ParseToolCall(call.ID, call.Function.Name, call.Function.Arguments)
	if err != nil {
		cs.metrics.ToolCalls.WithLabelValues(call.Function.Name, "bad_arguments").Inc()
		return "Error: " + err.Error()
	}

	resultChan := make(chan tools.ToolResult, 1)
	cs.registry.ExecuteAsync(ctx, parsed, resultChan)
	result := <-resultChan

	outcome := "ok"
	if result.Error != "" {
		outcome = "error"
		cs.log.Info("tool failed", zap.String("tool", result.Name), zap.String("error", result.Error))
	}
	cs.metrics.ToolCalls.WithLabelValues(result.Name, outcome).Inc()
	return result.Content()
}

func (cs *ChatService) systemPrompt() string {
	root := cs.root
	if root == "" {
		root = "the current directory"
	}
	return fmt.Sprintf("You are RoriAgent, a coding agent running in a terminal on %s. "+
		"You work in %s. Use the tools to inspect and change files and to run commands; "+
		"the user approves every command and file change and may reject it.", runtime.GOOS, root)
}

// State returns the conversation state.
func (cs *ChatService) State() *ChatState {
	return cs.state
}

func (cs *ChatService) pushStateToUI() {
	cs.send(eventbus.StateUpdateEvent{
		Messages:     cs.state.GetMessages(),
		IsProcessing: cs.state.IsProcessing(),
		Error:        cs.state.GetLastError(),
	})
}

func (cs *ChatService) publishApproval(snap approval.Snapshot) {
	cs.send(eventbus.ApprovalEvent{Snapshot: snap})
}

func (cs *ChatService) send(ev eventbus.CoreEvent) {
	if err := cs.eventBus.SendToUI(ev); err != nil {
		cs.log.Debug("host event dropped", zap.String("event", fmt.Sprintf("%T", ev)), zap.Error(err))
	}
}

// eventDropped counts events the bus refused while open. The UI catches
// up from the next state push or the approval engine snapshot.
func (cs *ChatService) eventDropped(eventbus.EventBusError) {
	cs.metrics.EventsDropped.Inc()
}

func (cs *ChatService) addWelcomeMessages() {
	cs.state.AddProgramMessage("-- RORIAGENT --")
	if cs.config.IsValid() {
		cs.state.AddProgramMessage(fmt.Sprintf("Active Profile: %s [OK]", cs.config.ActiveProfile))
		cs.state.AddProgramMessage("Type a task and press Enter. Shift+Enter or \\ then Enter adds a new line.")
	} else {
		cs.state.AddProgramMessage(fmt.Sprintf("Active Profile: %s [NOT CONFIGURED]", cs.config.ActiveProfile))
		cs.state.AddProgramMessage("Configure your profile to start:")
		cs.state.AddProgramMessage("• Run: roriagent profile add <name>")
		cs.state.AddProgramMessage("• Or edit: " + cs.config.Path())
	}
	cs.state.AddProgramMessage("Controls: Ctrl+C to exit, Esc to cancel a running turn")
}
