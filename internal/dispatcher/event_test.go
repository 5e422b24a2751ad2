package dispatcher

import (
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Rorical/RoriAgent/internal/clock"
	"github.com/Rorical/RoriAgent/internal/eventbus"
	"github.com/Rorical/RoriAgent/internal/terminal"
	"github.com/Rorical/RoriAgent/internal/update"
)

type recordingSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (s *recordingSender) Send(msg tea.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

func (s *recordingSender) snapshot() []tea.Msg {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tea.Msg(nil), s.msgs...)
}

func waitForMsgs(t *testing.T, s *recordingSender, n int) []tea.Msg {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if msgs := s.snapshot(); len(msgs) >= n {
			return msgs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("got %d messages, want %d", len(s.snapshot()), n)
	return nil
}

func TestForwardsCoreEvents(t *testing.T) {
	eb := eventbus.NewEventBus(eventbus.Options{})
	d := NewEventDispatcher(eb, nil)
	sender := &recordingSender{}
	d.Start(sender)
	defer d.Stop()

	if err := eb.SendToUI(eventbus.HostReadyEvent{Model: "gpt"}); err != nil {
		t.Fatal(err)
	}
	if err := eb.SendToUI(eventbus.StateUpdateEvent{IsProcessing: true}); err != nil {
		t.Fatal(err)
	}

	msgs := waitForMsgs(t, sender, 2)
	first, ok := msgs[0].(update.CoreEventMsg)
	if !ok {
		t.Fatalf("first message %T, want CoreEventMsg", msgs[0])
	}
	if ready, ok := first.Event.(eventbus.HostReadyEvent); !ok || ready.Model != "gpt" {
		t.Fatalf("first event = %#v", first.Event)
	}
	if _, ok := msgs[1].(update.CoreEventMsg).Event.(eventbus.StateUpdateEvent); !ok {
		t.Fatalf("second event = %#v", msgs[1])
	}
}

func TestStopsWhenBusCloses(t *testing.T) {
	eb := eventbus.NewEventBus(eventbus.Options{})
	d := NewEventDispatcher(eb, nil)
	d.Start(&recordingSender{})
	eb.Close()

	done := make(chan struct{})
	go func() {
		d.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestRunInputSendsKeys(t *testing.T) {
	d := NewEventDispatcher(eventbus.NewEventBus(eventbus.Options{}), nil)
	dec := terminal.NewDecoder(terminal.Options{Clock: clock.Fake(time.Unix(0, 0))})
	chunks := make(chan []byte, 2)
	chunks <- []byte("hi")
	chunks <- []byte("\r")
	close(chunks)

	sender := &recordingSender{}
	if err := d.RunInput(dec, chunks, sender); err != nil {
		t.Fatalf("RunInput: %v", err)
	}

	msgs := sender.snapshot()
	if len(msgs) != 3 {
		t.Fatalf("got %d keys, want 3: %#v", len(msgs), msgs)
	}
	if ev := msgs[0].(terminal.KeyEvent); ev.Text() != "h" {
		t.Fatalf("first key = %#v", ev)
	}
	if ev := msgs[2].(terminal.KeyEvent); !ev.IsEnter() {
		t.Fatalf("last key = %#v, want enter", ev)
	}
}
