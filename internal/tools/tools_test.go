package tools

import (
	"context"
	"sync"

	"github.com/Rorical/RoriAgent/internal/approval"
)

type askCall struct {
	kind    approval.Kind
	payload string
}

// fakeApprover answers every question with action and records what the
// tools asked and streamed.
type fakeApprover struct {
	action approval.Action
	// abortOnOutput aborts the command on its first output update.
	abortOnOutput bool

	mu      sync.Mutex
	asked   []askCall
	streams []*fakeStream
}

func (a *fakeApprover) Approve(ctx context.Context, kind approval.Kind, payload string) (approval.Decision, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.asked = append(a.asked, askCall{kind, payload})
	return approval.Decision{Kind: kind, Action: a.action}, nil
}

func (a *fakeApprover) StreamOutput(ctx context.Context) OutputStream {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := &fakeStream{abortOnOutput: a.abortOnOutput, aborted: make(chan struct{})}
	a.streams = append(a.streams, s)
	return s
}

type fakeStream struct {
	abortOnOutput bool
	aborted       chan struct{}

	mu      sync.Mutex
	updates []string
	closed  bool
	once    sync.Once
}

func (s *fakeStream) Update(output string) {
	s.mu.Lock()
	s.updates = append(s.updates, output)
	s.mu.Unlock()
	if s.abortOnOutput {
		s.once.Do(func() { close(s.aborted) })
	}
}

func (s *fakeStream) Aborted() <-chan struct{} { return s.aborted }

func (s *fakeStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *fakeStream) state() ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.updates...), s.closed
}
