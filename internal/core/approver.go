package core

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/Rorical/RoriAgent/internal/approval"
	"github.com/Rorical/RoriAgent/internal/clock"
	"github.com/Rorical/RoriAgent/internal/tools"
)

var ErrApprovalBusy = errors.New("approval menu is busy")

// approvals tracks the questions the host is waiting on, keyed by
// request id.
type approvals struct {
	clock clock.Clock

	// ask allows one outstanding question at a time.
	ask sync.Mutex

	mu      sync.Mutex
	lastID  int64
	waiters map[int64]chan approval.Decision
	streams map[int64]*outputStream
}

func (a *approvals) init(clk clock.Clock) {
	a.clock = clk
	a.waiters = make(map[int64]chan approval.Decision)
	a.streams = make(map[int64]*outputStream)
}

// nextID returns the current unix millisecond, bumped past the previous
// id when two requests land in the same millisecond.
func (a *approvals) nextID() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.clock.Now().UnixMilli()
	if id <= a.lastID {
		id = a.lastID + 1
	}
	a.lastID = id
	return id
}

var _ tools.Approver = (*ChatService)(nil)

// Approve shows a question in the approval menu and waits for the answer.
// Commands covered by a remembered pattern are approved without asking.
func (cs *ChatService) Approve(ctx context.Context, kind approval.Kind, payload string) (approval.Decision, error) {
	if kind == approval.KindCommand && cs.remembered(payload) {
		cs.log.Info("command approved by remembered pattern", zap.String("command", payload))
		return approval.Decision{Kind: kind, Action: approval.ActionApprove, Label: "Remembered"}, nil
	}

	a := &cs.approvals
	a.ask.Lock()
	defer a.ask.Unlock()

	id := a.nextID()
	ch := make(chan approval.Decision, 1)
	a.mu.Lock()
	a.waiters[id] = ch
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.waiters, id)
		a.mu.Unlock()
	}()

	if !cs.engine.SetPendingApproval(approval.Request{ID: id, Kind: kind, Payload: payload}) {
		return approval.Decision{}, ErrApprovalBusy
	}

	select {
	case d := <-ch:
		if d.Action == approval.ActionApproveAndRemember {
			cs.remember(d.CommandPattern)
		}
		return d, nil
	case <-ctx.Done():
		cs.engine.Dismiss(id)
		return approval.Decision{}, ctx.Err()
	}
}

// resolve hands a decision from the UI to whoever asked. The engine is
// unlocked first so the next question can be shown right away. Decisions
// for a request the engine is not processing are dropped.
func (cs *ChatService) resolve(d approval.Decision) {
	if !cs.engine.CompleteApprovalProcessing(d.RequestID) {
		cs.log.Warn("dropping decision for a request not being processed", zap.Int64("id", d.RequestID))
		return
	}

	a := &cs.approvals
	a.mu.Lock()
	ch, waiting := a.waiters[d.RequestID]
	stream, streaming := a.streams[d.RequestID]
	a.mu.Unlock()

	switch {
	case waiting:
		select {
		case ch <- d:
		default:
		}
	case streaming:
		stream.answer(d)
	default:
		cs.log.Debug("decision for a request nobody waits on", zap.Int64("id", d.RequestID))
	}
}

func (cs *ChatService) remembered(command string) bool {
	cs.mu.Lock()
	perms := cs.perms
	cs.mu.Unlock()
	return perms != nil && perms.Allows(command)
}

func (cs *ChatService) remember(pattern string) {
	cs.mu.Lock()
	perms := cs.perms
	cs.mu.Unlock()
	if perms == nil || pattern == "" {
		return
	}
	if err := perms.Remember(pattern); err != nil {
		cs.log.Warn("failed to remember command", zap.String("pattern", pattern), zap.Error(err))
	}
}

// StreamOutput shows command output as a command_output request. The
// request keeps one id for the whole command so the selection survives
// updates.
func (cs *ChatService) StreamOutput(ctx context.Context) tools.OutputStream {
	s := &outputStream{
		cs:      cs,
		id:      cs.approvals.nextID(),
		aborted: make(chan struct{}),
	}
	cs.approvals.mu.Lock()
	cs.approvals.streams[s.id] = s
	cs.approvals.mu.Unlock()
	return s
}

type outputStream struct {
	cs      *ChatService
	id      int64
	aborted chan struct{}

	mu       sync.Mutex
	answered bool
	closed   bool
}

func (s *outputStream) Update(output string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.answered || s.closed {
		return
	}
	s.cs.engine.SetPendingApproval(approval.Request{
		ID:      s.id,
		Kind:    approval.KindCommandOutput,
		Payload: output,
		Partial: true,
	})
}

func (s *outputStream) Aborted() <-chan struct{} {
	return s.aborted
}

func (s *outputStream) answer(d approval.Decision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.answered {
		return
	}
	s.answered = true
	if !d.Approved() {
		close(s.aborted)
	}
}

// Close withdraws the output view unless the user already answered it.
func (s *outputStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cs.approvals.mu.Lock()
	delete(s.cs.approvals.streams, s.id)
	s.cs.approvals.mu.Unlock()
	if !s.answered {
		s.cs.engine.Dismiss(s.id)
	}
}
