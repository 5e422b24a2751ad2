package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Rorical/RoriAgent/internal/metrics"
)

type recorder struct {
	mu   sync.Mutex
	seen []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, s)
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func assertOrder(t *testing.T, got []string, want ...string) {
	t.Helper()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("delivered %v, want %v", got, want)
	}
}

func task(name string) Message {
	return Message{Kind: KindTask, Payload: name}
}

func newTestBridge(t *testing.T, h Handler) (*Bridge, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	b := New(h, Options{Logger: zaptest.NewLogger(t), Metrics: m})
	t.Cleanup(b.Close)
	return b, m
}

func TestQueuedMessagesDeliveredInOrder(t *testing.T) {
	rec := &recorder{}
	ctx := context.Background()
	b, m := newTestBridge(t, func(_ context.Context, msg Message) error {
		rec.add(msg.Payload.(string))
		return nil
	})

	if err := b.Send(ctx, task("A")); err != nil {
		t.Fatalf("Send A: %v", err)
	}
	if err := b.Send(ctx, task("B")); err != nil {
		t.Fatalf("Send B: %v", err)
	}
	if len(rec.got()) != 0 {
		t.Fatal("delivered before ready")
	}
	if b.Len() != 2 {
		t.Fatalf("Len = %d, want 2", b.Len())
	}

	b.MarkReady(ctx)
	assertOrder(t, rec.got(), "A", "B")
	if b.Len() != 0 {
		t.Fatalf("Len = %d after drain", b.Len())
	}
	if got := testutil.ToFloat64(m.BridgeQueued); got != 2 {
		t.Fatalf("queued counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.BridgeQueueDepth); got != 0 {
		t.Fatalf("queue depth = %v, want 0", got)
	}
}

func TestReentrantSendAppendsToTail(t *testing.T) {
	rec := &recorder{}
	ctx := context.Background()
	var b *Bridge
	b, _ = newTestBridge(t, func(ctx context.Context, msg Message) error {
		name := msg.Payload.(string)
		rec.add(name)
		if name == "A" {
			return b.Send(ctx, task("C"))
		}
		return nil
	})

	b.Send(ctx, task("A"))
	b.Send(ctx, task("B"))
	b.MarkReady(ctx)

	assertOrder(t, rec.got(), "A", "B", "C")
	if b.Len() != 0 {
		t.Fatalf("Len = %d after drain", b.Len())
	}
}

func TestReentrantSendWhileReady(t *testing.T) {
	rec := &recorder{}
	ctx := context.Background()
	var b *Bridge
	b, _ = newTestBridge(t, func(ctx context.Context, msg Message) error {
		name := msg.Payload.(string)
		rec.add(name)
		if name == "A" {
			b.Send(ctx, task("C"))
			rec.add("after C")
		}
		return nil
	})
	b.MarkReady(ctx)

	if err := b.Send(ctx, task("A")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	assertOrder(t, rec.got(), "A", "after C", "C")
}

func TestMarkReadyIdempotent(t *testing.T) {
	var calls atomic.Int32
	ctx := context.Background()
	b, _ := newTestBridge(t, func(context.Context, Message) error {
		calls.Add(1)
		return nil
	})

	b.Send(ctx, task("A"))
	b.MarkReady(ctx)
	b.MarkReady(ctx)
	if !b.Ready() {
		t.Fatal("Ready() = false")
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("handler called %d times, want 1", n)
	}
}

func TestSendWhenReadyReturnsHandlerError(t *testing.T) {
	boom := errors.New("boom")
	ctx := context.Background()
	b, m := newTestBridge(t, func(context.Context, Message) error { return boom })
	b.MarkReady(ctx)

	err := b.Send(ctx, task("A"))
	if !errors.Is(err, boom) {
		t.Fatalf("Send error = %v, want %v", err, boom)
	}
	if got := testutil.ToFloat64(m.BridgeFailures); got != 1 {
		t.Fatalf("failures = %v, want 1", got)
	}
}

func TestDrainContinuesPastFailures(t *testing.T) {
	rec := &recorder{}
	ctx := context.Background()
	b, m := newTestBridge(t, func(_ context.Context, msg Message) error {
		name := msg.Payload.(string)
		rec.add(name)
		if name == "A" {
			return errors.New("host rejected A")
		}
		return nil
	})

	b.Send(ctx, task("A"))
	b.Send(ctx, task("B"))
	b.MarkReady(ctx)

	assertOrder(t, rec.got(), "A", "B")
	if got := testutil.ToFloat64(m.BridgeFailures); got != 1 {
		t.Fatalf("failures = %v, want 1", got)
	}
}

func TestSendAssignsIDAndTime(t *testing.T) {
	var got Message
	ctx := context.Background()
	b, _ := newTestBridge(t, func(_ context.Context, msg Message) error {
		got = msg
		return nil
	})
	b.MarkReady(ctx)
	b.Send(ctx, Message{Kind: KindConfig})

	if got.ID == "" || got.QueuedAt.IsZero() {
		t.Fatalf("message not stamped: %+v", got)
	}
}

func TestSendAfterClose(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBridge(t, func(context.Context, Message) error { return nil })
	b.Send(ctx, task("A"))
	b.Close()

	if err := b.Send(ctx, task("B")); !errors.Is(err, ErrClosed) {
		t.Fatalf("Send after Close = %v, want ErrClosed", err)
	}
	if b.Len() != 0 {
		t.Fatalf("Len = %d after Close", b.Len())
	}
}

func TestConcurrentSendersExactlyOnce(t *testing.T) {
	const senders, perSender = 16, 50
	ctx := context.Background()

	var inHandler atomic.Bool
	var overlap atomic.Bool
	var mu sync.Mutex
	last := make(map[int]int)
	count := 0

	b, _ := newTestBridge(t, func(_ context.Context, msg Message) error {
		if !inHandler.CompareAndSwap(false, true) {
			overlap.Store(true)
		}
		defer inHandler.Store(false)

		p := msg.Payload.([2]int)
		mu.Lock()
		defer mu.Unlock()
		if prev, ok := last[p[0]]; ok && p[1] <= prev {
			t.Errorf("sender %d: %d delivered after %d", p[0], p[1], prev)
		}
		last[p[0]] = p[1]
		count++
		return nil
	})

	var wg sync.WaitGroup
	for s := 0; s < senders; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				if err := b.Send(ctx, Message{Kind: KindUserInput, Payload: [2]int{s, i}}); err != nil {
					t.Errorf("Send: %v", err)
				}
			}
		}(s)
	}
	// Readiness arrives while senders are still running.
	b.MarkReady(ctx)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if count != senders*perSender {
		t.Fatalf("delivered %d messages, want %d", count, senders*perSender)
	}
	if overlap.Load() {
		t.Fatal("handler invoked concurrently")
	}
}

func TestHandlerFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	b := New(func(context.Context, Message) error {
		return errors.New("no model")
	}, Options{Logger: zap.New(core), Metrics: metrics.New()})

	ctx := context.Background()
	b.Send(ctx, task("A"))
	b.MarkReady(ctx)

	entries := logs.FilterMessage("message handler failed").All()
	if len(entries) != 1 {
		t.Fatalf("got %d warnings, want 1", len(entries))
	}
	if kind := entries[0].ContextMap()["kind"]; kind != string(KindTask) {
		t.Fatalf("kind field = %v", kind)
	}
}
