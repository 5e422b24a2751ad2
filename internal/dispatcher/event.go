package dispatcher

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/Rorical/RoriAgent/internal/eventbus"
	"github.com/Rorical/RoriAgent/internal/logging"
	"github.com/Rorical/RoriAgent/internal/terminal"
	"github.com/Rorical/RoriAgent/internal/update"
)

// Sender is the part of tea.Program the dispatcher needs.
type Sender interface {
	Send(msg tea.Msg)
}

// EventDispatcher moves host events and decoded keys into the UI loop.
type EventDispatcher struct {
	eventBus *eventbus.EventBus
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewEventDispatcher(eventBus *eventbus.EventBus, logger *zap.Logger) *EventDispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventDispatcher{
		eventBus: eventBus,
		log:      logging.OrNop(logger).Named("dispatcher"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start forwards host events to p until Stop or the bus closes.
func (ed *EventDispatcher) Start(p Sender) {
	ed.wg.Add(1)
	go func() {
		defer ed.wg.Done()
		events := ed.eventBus.CoreToUI()
		for {
			select {
			case <-ed.ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					ed.log.Debug("event bus closed")
					return
				}
				p.Send(update.CoreEventMsg{Event: ev})
			}
		}
	}()
}

// RunInput decodes raw input chunks and sends every key event to p. It
// returns when chunks is closed or the dispatcher stops.
func (ed *EventDispatcher) RunInput(dec *terminal.Decoder, chunks <-chan []byte, p Sender) error {
	ed.wg.Add(1)
	defer ed.wg.Done()
	return dec.Run(ed.ctx, chunks, func(ev terminal.KeyEvent) {
		p.Send(ev)
	})
}

func (ed *EventDispatcher) Stop() {
	ed.cancel()
	ed.wg.Wait()
}
