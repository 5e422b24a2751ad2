package approval

// State is the approval menu state. It is a value: every transition
// returns a new State and leaves the receiver untouched, so an Engine can
// swap states atomically and tests can compare before and after.
type State struct {
	pending    Request
	hasPending bool
	selected   int
	lock       ProcessingLock

	lastAnswered    int64
	hasLastAnswered bool
}

// Rejection reasons, also used as metric labels.
const (
	reasonProcessing      = "processing"
	reasonAnswered        = "answered"
	reasonAlreadyAnswered = "already_answered"
	reasonNoPending       = "no_pending"
	reasonLocked          = "locked"
	reasonNoOptions       = "no_options"
	reasonBadIndex        = "bad_index"
	reasonNoHotkey        = "no_hotkey"
	reasonStale           = "stale"
)

const (
	changeNew    = "new"
	changeUpdate = "update"
)

func (s State) Phase() Phase {
	switch {
	case s.lock.IsProcessing:
		return Processing
	case s.hasPending:
		return Pending
	default:
		return Idle
	}
}

// Pending returns the current request, if any.
func (s State) Pending() (Request, bool) {
	return s.pending, s.hasPending
}

func (s State) Lock() ProcessingLock {
	return s.lock
}

func (s State) Options() []Option {
	if !s.hasPending {
		return nil
	}
	return OptionsFor(s.pending)
}

// Selected is the highlighted option index, clamped to the current menu.
func (s State) Selected() int {
	n := len(s.Options())
	switch {
	case n == 0, s.selected < 0:
		return 0
	case s.selected >= n:
		return n - 1
	default:
		return s.selected
	}
}

// SetPendingApproval installs req as the current request. A new id
// resets the selection unless req streams (see NonBlocking); the same id
// refreshes the content in place. It is a no-op while a decision is
// being processed and for requests that were already answered.
func (s State) SetPendingApproval(req Request) (State, bool) {
	next, _, reason := s.setPending(req)
	return next, reason == ""
}

func (s State) setPending(req Request) (State, string, string) {
	switch {
	case s.lock.IsProcessing:
		return s, "", reasonProcessing
	case req.Answered:
		return s, "", reasonAnswered
	case s.hasLastAnswered && req.ID == s.lastAnswered:
		return s, "", reasonAlreadyAnswered
	}

	if s.hasPending && req.ID == s.pending.ID {
		s.pending = req
		return s, changeUpdate, ""
	}
	s.pending = req
	s.hasPending = true
	if !NonBlocking(req.Kind) {
		s.selected = 0
	}
	return s, changeNew, ""
}

func (s State) SelectNext() (State, bool) {
	return s.move(1)
}

func (s State) SelectPrevious() (State, bool) {
	return s.move(-1)
}

func (s State) move(delta int) (State, bool) {
	n := len(s.Options())
	if n == 0 || s.lock.IsProcessing {
		return s, false
	}
	s.selected = ((s.Selected()+delta)%n + n) % n
	return s, true
}

// Select highlights option i, clamped to the menu.
func (s State) Select(i int) (State, bool) {
	n := len(s.Options())
	if n == 0 || s.lock.IsProcessing {
		return s, false
	}
	s.selected = min(max(i, 0), n-1)
	return s, true
}

// StartApprovalProcessing locks the pending request for op. It fails,
// leaving the state unchanged, when nothing is pending or a lock is
// already held.
func (s State) StartApprovalProcessing(op Operation) (State, bool) {
	next, reason := s.start(op)
	return next, reason == ""
}

func (s State) start(op Operation) (State, string) {
	switch {
	case !s.hasPending:
		return s, reasonNoPending
	case s.lock.IsProcessing:
		return s, reasonLocked
	}
	s.lock = ProcessingLock{IsProcessing: true, RequestID: s.pending.ID, Operation: op}
	s.pending.Answered = true
	return s, ""
}

// CompleteApprovalProcessing clears the request, the selection and the
// lock together.
func (s State) CompleteApprovalProcessing() State {
	if s.lock.IsProcessing {
		s.lastAnswered = s.lock.RequestID
		s.hasLastAnswered = true
	}
	s.pending = Request{}
	s.hasPending = false
	s.selected = 0
	s.lock = ProcessingLock{}
	return s
}

// completeFor is CompleteApprovalProcessing limited to the lock held for
// request id.
func (s State) completeFor(id int64) (State, string) {
	switch {
	case !s.lock.IsProcessing:
		return s, reasonNoPending
	case s.lock.RequestID != id:
		return s, reasonStale
	}
	return s.CompleteApprovalProcessing(), ""
}

// Dismiss withdraws request id if it is still pending and unanswered,
// for example when a streamed command finishes before the user picks.
func (s State) Dismiss(id int64) (State, bool) {
	if !s.hasPending || s.pending.ID != id || s.lock.IsProcessing {
		return s, false
	}
	s.pending = Request{}
	s.hasPending = false
	s.selected = 0
	return s, true
}

// Choose commits option index and starts processing it.
func (s State) Choose(index int) (State, Decision, bool) {
	next, d, reason := s.choose(index)
	return next, d, reason == ""
}

// hotkey returns the index of the option bound to key.
func (s State) hotkey(key string) (int, bool) {
	for i, opt := range s.Options() {
		if opt.Hotkey == key {
			return i, true
		}
	}
	return 0, false
}

// chooseFor is choose guarded by the request id the caller saw. Another
// id means the menu changed since it was drawn.
func (s State) chooseFor(id int64, pick func(State) (int, string)) (State, Decision, string) {
	if !s.hasPending {
		return s, Decision{}, reasonNoPending
	}
	if s.pending.ID != id {
		return s, Decision{}, reasonStale
	}
	index, reason := pick(s)
	if reason != "" {
		return s, Decision{}, reason
	}
	return s.choose(index)
}

func (s State) choose(index int) (State, Decision, string) {
	opts := s.Options()
	switch {
	case len(opts) == 0:
		return s, Decision{}, reasonNoOptions
	case index < 0 || index >= len(opts):
		return s, Decision{}, reasonBadIndex
	}
	opt := opts[index]
	next, reason := s.start(OperationFor(opt.Action))
	if reason != "" {
		return s, Decision{}, reason
	}
	next.selected = index
	return next, Decision{
		RequestID:      s.pending.ID,
		Kind:           s.pending.Kind,
		Action:         opt.Action,
		CommandPattern: opt.CommandPattern,
		Label:          opt.Label,
	}, ""
}

// Snapshot is a read-only copy of a State for renderers.
type Snapshot struct {
	Version  uint64
	Phase    Phase
	Pending  *Request
	Options  []Option
	Selected int
	Lock     *ProcessingLock
}

func (s State) Snapshot() Snapshot {
	snap := Snapshot{
		Phase:    s.Phase(),
		Options:  s.Options(),
		Selected: s.Selected(),
	}
	if s.hasPending {
		req := s.pending
		snap.Pending = &req
	}
	if s.lock.IsProcessing {
		lock := s.lock
		snap.Lock = &lock
	}
	return snap
}
