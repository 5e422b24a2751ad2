package approval

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Rorical/RoriAgent/internal/logging"
	"github.com/Rorical/RoriAgent/internal/metrics"
)

type EngineOptions struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	// OnChange is called after every transition that changed the state.
	// Snapshots carry increasing versions; calls from different
	// goroutines may arrive out of order.
	OnChange func(Snapshot)
}

// Engine serializes transitions on a State shared by the host, which
// pushes requests, and the UI, which moves the selection and decides.
type Engine struct {
	log     *zap.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	state    State
	version  uint64
	onChange func(Snapshot)
}

func NewEngine(opts EngineOptions) *Engine {
	return &Engine{
		log:      logging.OrNop(opts.Logger).Named("approval"),
		metrics:  metrics.OrNew(opts.Metrics),
		onChange: opts.OnChange,
	}
}

// SetObserver replaces the OnChange callback.
func (e *Engine) SetObserver(fn func(Snapshot)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onChange = fn
}

// commit stores next and notifies the observer outside the lock. Caller
// holds e.mu; commit releases it.
func (e *Engine) commit(next State) {
	e.state = next
	e.version++
	snap := next.Snapshot()
	snap.Version = e.version
	fn := e.onChange
	e.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

func (e *Engine) reject(op, reason string, fields ...zap.Field) {
	e.metrics.ApprovalTransitions.WithLabelValues(reason).Inc()
	e.log.Debug("ignored approval transition",
		append([]zap.Field{zap.String("op", op), zap.String("reason", reason)}, fields...)...)
}

func (e *Engine) SetPendingApproval(req Request) bool {
	e.mu.Lock()
	next, change, reason := e.state.setPending(req)
	if reason != "" {
		e.mu.Unlock()
		e.reject("set_pending", reason, zap.Int64("id", req.ID), zap.String("kind", string(req.Kind)))
		return false
	}
	e.metrics.ApprovalRequests.WithLabelValues(string(req.Kind), change).Inc()
	if change == changeNew {
		e.log.Info("approval requested", zap.Int64("id", req.ID),
			zap.String("kind", string(req.Kind)), zap.Bool("partial", req.Partial))
	}
	e.commit(next)
	return true
}

func (e *Engine) SelectNext() bool {
	return e.apply("select_next", State.SelectNext)
}

func (e *Engine) SelectPrevious() bool {
	return e.apply("select_previous", State.SelectPrevious)
}

func (e *Engine) Select(i int) bool {
	return e.apply("select", func(s State) (State, bool) { return s.Select(i) })
}

func (e *Engine) apply(op string, fn func(State) (State, bool)) bool {
	e.mu.Lock()
	next, ok := fn(e.state)
	if !ok {
		reason := reasonNoOptions
		if e.state.Phase() == Processing {
			reason = reasonProcessing
		}
		e.mu.Unlock()
		e.reject(op, reason)
		return false
	}
	e.commit(next)
	return true
}

// Choose decides request id with option index. It fails when id is no
// longer the pending request.
func (e *Engine) Choose(id int64, index int) (Decision, bool) {
	return e.decide("choose", id, func(State) (int, string) { return index, "" })
}

// ChooseSelected decides request id with the highlighted option.
func (e *Engine) ChooseSelected(id int64) (Decision, bool) {
	return e.decide("choose_selected", id, func(s State) (int, string) { return s.Selected(), "" })
}

// ChooseHotkey decides request id with the option bound to key, if any.
func (e *Engine) ChooseHotkey(id int64, key string) (Decision, bool) {
	return e.decide("choose_hotkey", id, func(s State) (int, string) {
		if i, ok := s.hotkey(key); ok {
			return i, ""
		}
		return 0, reasonNoHotkey
	})
}

// decide picks the option and commits it under one lock so the host
// cannot swap the request in between.
func (e *Engine) decide(op string, id int64, pick func(State) (int, string)) (Decision, bool) {
	e.mu.Lock()
	next, d, reason := e.state.chooseFor(id, pick)
	if reason != "" {
		e.mu.Unlock()
		e.reject(op, reason, zap.Int64("id", id))
		return Decision{}, false
	}
	e.metrics.ApprovalDecisions.WithLabelValues(string(d.Action)).Inc()
	e.log.Info("approval decided", zap.Int64("id", d.RequestID),
		zap.String("action", string(d.Action)), zap.String("pattern", d.CommandPattern))
	e.commit(next)
	return d, true
}

func (e *Engine) StartApprovalProcessing(op Operation) bool {
	e.mu.Lock()
	next, reason := e.state.start(op)
	if reason != "" {
		e.mu.Unlock()
		e.reject("start", reason)
		return false
	}
	e.commit(next)
	return true
}

// CompleteApprovalProcessing releases the lock taken for request id. It
// does nothing unless that request is the one being processed.
func (e *Engine) CompleteApprovalProcessing(id int64) bool {
	e.mu.Lock()
	next, reason := e.state.completeFor(id)
	if reason != "" {
		e.mu.Unlock()
		e.reject("complete", reason, zap.Int64("id", id))
		return false
	}
	e.commit(next)
	return true
}

// Dismiss withdraws an unanswered request; see State.Dismiss.
func (e *Engine) Dismiss(id int64) bool {
	e.mu.Lock()
	next, ok := e.state.Dismiss(id)
	if !ok {
		e.mu.Unlock()
		return false
	}
	e.log.Debug("approval dismissed", zap.Int64("id", id))
	e.commit(next)
	return true
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := e.state.Snapshot()
	snap.Version = e.version
	return snap
}
