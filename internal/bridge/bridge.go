// Package bridge carries commands from the CLI to the agent host. The
// host starts asynchronously, so anything sent before it reports ready
// is queued and delivered, in order, once it does.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Rorical/RoriAgent/internal/clock"
	"github.com/Rorical/RoriAgent/internal/logging"
	"github.com/Rorical/RoriAgent/internal/metrics"
)

var ErrClosed = errors.New("bridge closed")

type MessageKind string

const (
	KindConfig           MessageKind = "config"
	KindTask             MessageKind = "task"
	KindUserInput        MessageKind = "user_input"
	KindApprovalResponse MessageKind = "approval_response"
	KindCancel           MessageKind = "cancel"
)

type Message struct {
	ID       string
	Kind     MessageKind
	Payload  any
	QueuedAt time.Time
}

// Handler receives each message exactly once. Calls never overlap.
type Handler func(ctx context.Context, msg Message) error

type Options struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Clock   clock.Clock
}

// Bridge is a readiness-gated FIFO in front of a Handler.
type Bridge struct {
	handler Handler
	log     *zap.Logger
	metrics *metrics.Metrics
	clock   clock.Clock

	mu       sync.Mutex
	queue    []Message
	ready    bool
	draining bool
	closed   bool
}

func New(handler Handler, opts Options) *Bridge {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Bridge{
		handler: handler,
		log:     logging.OrNop(opts.Logger).Named("bridge"),
		metrics: metrics.OrNew(opts.Metrics),
		clock:   clk,
	}
}

// Send never waits for the host. Before MarkReady, or while another
// delivery is in progress, msg is queued and Send returns nil. Otherwise
// msg is delivered on the calling goroutine and the handler's error is
// returned.
func (b *Bridge) Send(ctx context.Context, msg Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.QueuedAt.IsZero() {
		msg.QueuedAt = b.clock.Now()
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	if !b.ready || b.draining {
		b.queue = append(b.queue, msg)
		depth := len(b.queue)
		b.mu.Unlock()

		b.metrics.BridgeQueued.Inc()
		b.metrics.BridgeQueueDepth.Set(float64(depth))
		b.log.Debug("queued message", zap.String("id", msg.ID),
			zap.String("kind", string(msg.Kind)), zap.Int("depth", depth))
		return nil
	}
	b.draining = true
	b.mu.Unlock()

	err := b.deliver(ctx, msg)
	// Anything a reentrant Send queued during delivery goes out now.
	b.drain(ctx)
	return err
}

// MarkReady flips the bridge to ready and delivers everything queued,
// including messages queued while the drain runs. Later calls do
// nothing.
func (b *Bridge) MarkReady(ctx context.Context) {
	b.mu.Lock()
	if b.ready || b.closed {
		b.mu.Unlock()
		return
	}
	b.ready = true
	b.draining = true
	queued := len(b.queue)
	b.mu.Unlock()

	b.log.Info("host ready", zap.Int("queued", queued))
	b.drain(ctx)
}

func (b *Bridge) drain(ctx context.Context) {
	for {
		b.mu.Lock()
		if len(b.queue) == 0 || b.closed {
			b.draining = false
			b.mu.Unlock()
			return
		}
		msg := b.queue[0]
		b.queue[0] = Message{}
		b.queue = b.queue[1:]
		depth := len(b.queue)
		b.mu.Unlock()

		b.metrics.BridgeQueueDepth.Set(float64(depth))
		_ = b.deliver(ctx, msg)
	}
}

func (b *Bridge) deliver(ctx context.Context, msg Message) error {
	b.metrics.BridgeDelivered.Inc()
	if err := b.handler(ctx, msg); err != nil {
		b.metrics.BridgeFailures.Inc()
		b.log.Warn("message handler failed", zap.String("id", msg.ID),
			zap.String("kind", string(msg.Kind)), zap.Error(err))
		return fmt.Errorf("deliver %s message: %w", msg.Kind, err)
	}
	return nil
}

func (b *Bridge) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

// Len reports how many messages are waiting.
func (b *Bridge) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Close rejects further sends and drops anything still queued.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	if n := len(b.queue); n > 0 {
		b.log.Warn("dropping undelivered messages", zap.Int("count", n))
	}
	b.queue = nil
	b.metrics.BridgeQueueDepth.Set(0)
}
