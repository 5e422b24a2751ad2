package eventbus

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Rorical/RoriAgent/internal/approval"
	"github.com/Rorical/RoriAgent/internal/clock"
	"github.com/Rorical/RoriAgent/internal/logging"
	"github.com/Rorical/RoriAgent/internal/models"
)

var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
	ErrFull        = errors.New("host to UI channel is full")
	ErrClosed      = errors.New("event bus closed")
)

// CoreEvent is sent from the host to the UI
type CoreEvent interface {
	CoreEvent()
}

// StateUpdateEvent carries the whole conversation so a dropped update
// is repaired by the next one.
type StateUpdateEvent struct {
	Messages     []models.Message
	IsProcessing bool
	Error        error
}

func (e StateUpdateEvent) CoreEvent() {}

// ApprovalEvent carries the approval menu after a transition
type ApprovalEvent struct {
	Snapshot approval.Snapshot
}

func (e ApprovalEvent) CoreEvent() {}

// HostReadyEvent reports that the host finished starting. Err is set
// when it started without a usable model client.
type HostReadyEvent struct {
	Profile string
	Model   string
	Err     error
}

func (e HostReadyEvent) CoreEvent() {}

// EventBusError represents errors in event processing
type EventBusError struct {
	Operation string
	Err       error
	Timestamp time.Time
}

func (e EventBusError) Error() string {
	return e.Operation + ": " + e.Err.Error()
}

func (e EventBusError) Unwrap() error {
	return e.Err
}

type CircuitBreakerState int

const (
	CircuitClosed CircuitBreakerState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker stops delivery after maxFailures consecutive failures
// and lets one attempt through once resetTimeout has passed.
type CircuitBreaker struct {
	maxFailures  int
	resetTimeout time.Duration
	clock        clock.Clock

	mu              sync.Mutex
	failureCount    int
	lastFailureTime time.Time
	state           CircuitBreakerState
}

func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration, clk clock.Clock) *CircuitBreaker {
	if clk == nil {
		clk = clock.Real()
	}
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		clock:        clk,
		state:        CircuitClosed,
	}
}

func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitOpen && cb.clock.Now().Sub(cb.lastFailureTime) > cb.resetTimeout {
		cb.state = CircuitHalfOpen
	}
	return cb.state == CircuitOpen
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failureCount = 0
	cb.state = CircuitClosed
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failureCount++
	cb.lastFailureTime = cb.clock.Now()
	if cb.failureCount >= cb.maxFailures {
		cb.state = CircuitOpen
	}
}

func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

type Options struct {
	Buffer       int
	MaxFailures  int
	ResetTimeout time.Duration
	Clock        clock.Clock
	Logger       *zap.Logger
}

// EventBus carries host events to the UI without ever blocking the
// host. Input flows the other way through the bridge.
type EventBus struct {
	coreToUI       chan CoreEvent
	circuitBreaker *CircuitBreaker
	clock          clock.Clock
	log            *zap.Logger

	mu     sync.RWMutex
	closed bool

	cbMu          sync.Mutex
	errorCallback func(EventBusError)
}

func NewEventBus(opts Options) *EventBus {
	if opts.Buffer <= 0 {
		opts.Buffer = 100
	}
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = 5
	}
	if opts.ResetTimeout <= 0 {
		opts.ResetTimeout = 5 * time.Second
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &EventBus{
		coreToUI:       make(chan CoreEvent, opts.Buffer),
		circuitBreaker: NewCircuitBreaker(opts.MaxFailures, opts.ResetTimeout, clk),
		clock:          clk,
		log:            logging.OrNop(opts.Logger).Named("eventbus"),
	}
}

func (eb *EventBus) SetErrorCallback(callback func(EventBusError)) {
	eb.cbMu.Lock()
	defer eb.cbMu.Unlock()
	eb.errorCallback = callback
}

func (eb *EventBus) reportError(operation string, err error) error {
	busError := EventBusError{
		Operation: operation,
		Err:       err,
		Timestamp: eb.clock.Now(),
	}
	eb.circuitBreaker.RecordFailure()
	eb.log.Warn("dropped event", zap.String("op", operation), zap.Error(err))

	eb.cbMu.Lock()
	callback := eb.errorCallback
	eb.cbMu.Unlock()
	if callback != nil {
		callback(busError)
	}
	return busError
}

// SendToUI queues event without blocking
func (eb *EventBus) SendToUI(event CoreEvent) error {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	if eb.closed {
		return ErrClosed
	}
	if eb.circuitBreaker.IsOpen() {
		return eb.reportError("SendToUI", ErrCircuitOpen)
	}

	select {
	case eb.coreToUI <- event:
		eb.circuitBreaker.RecordSuccess()
		return nil
	default:
		return eb.reportError("SendToUI", ErrFull)
	}
}

func (eb *EventBus) CoreToUI() <-chan CoreEvent {
	return eb.coreToUI
}

func (eb *EventBus) GetCircuitBreakerState() CircuitBreakerState {
	return eb.circuitBreaker.State()
}

// Close closes the event channel. Later sends return ErrClosed.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.closed {
		return
	}
	eb.closed = true
	close(eb.coreToUI)
}
