package approval

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"

	"github.com/Rorical/RoriAgent/internal/metrics"
)

func TestEngineNotifiesObserver(t *testing.T) {
	var snaps []Snapshot
	m := metrics.New()
	e := NewEngine(EngineOptions{
		Logger:   zaptest.NewLogger(t),
		Metrics:  m,
		OnChange: func(s Snapshot) { snaps = append(snaps, s) },
	})

	e.SetPendingApproval(Request{ID: 1, Kind: KindCommand, Payload: "make test"})
	e.SelectNext()
	d, ok := e.ChooseSelected(1)
	if !ok {
		t.Fatal("ChooseSelected failed")
	}
	if d.Action != ActionApproveAndRemember || d.CommandPattern != "make" {
		t.Fatalf("decision = %+v", d)
	}
	if !e.CompleteApprovalProcessing(1) {
		t.Fatal("complete failed")
	}

	if len(snaps) != 4 {
		t.Fatalf("observer called %d times, want 4", len(snaps))
	}
	for i := 1; i < len(snaps); i++ {
		if snaps[i].Version <= snaps[i-1].Version {
			t.Fatalf("versions not increasing: %d then %d", snaps[i-1].Version, snaps[i].Version)
		}
	}
	if snaps[2].Phase != Processing || snaps[2].Lock == nil {
		t.Fatalf("snapshot after choose = %+v", snaps[2])
	}
	if snaps[3].Phase != Idle || snaps[3].Pending != nil {
		t.Fatalf("final snapshot = %+v", snaps[3])
	}
	if got := testutil.ToFloat64(m.ApprovalDecisions.WithLabelValues("approve_and_remember")); got != 1 {
		t.Fatalf("decisions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ApprovalRequests.WithLabelValues("command", "new")); got != 1 {
		t.Fatalf("requests = %v, want 1", got)
	}
}

func TestEngineRejectedTransitionsDoNotNotify(t *testing.T) {
	calls := 0
	m := metrics.New()
	e := NewEngine(EngineOptions{Metrics: m, OnChange: func(Snapshot) { calls++ }})

	if e.StartApprovalProcessing(OperationApprove) {
		t.Fatal("start succeeded with nothing pending")
	}
	if e.SelectNext() {
		t.Fatal("select succeeded with empty menu")
	}
	if e.CompleteApprovalProcessing(1) {
		t.Fatal("complete succeeded with nothing locked")
	}
	if calls != 0 {
		t.Fatalf("observer called %d times", calls)
	}
	if got := testutil.ToFloat64(m.ApprovalTransitions.WithLabelValues("no_pending")); got != 2 {
		t.Fatalf("no_pending rejections = %v, want 2", got)
	}
}

func TestEngineHotkeys(t *testing.T) {
	e := NewEngine(EngineOptions{})
	e.SetPendingApproval(Request{ID: 9, Kind: KindCommand, Payload: "rm -rf build"})

	if _, ok := e.ChooseHotkey(9, "x"); ok {
		t.Fatal("unbound hotkey chose something")
	}
	d, ok := e.ChooseHotkey(9, "n")
	if !ok || d.Action != ActionReject {
		t.Fatalf("decision = %+v, ok = %v", d, ok)
	}
	if lock := e.Snapshot().Lock; lock == nil || lock.Operation != OperationReject {
		t.Fatalf("lock = %+v", lock)
	}
	if e.StartApprovalProcessing(OperationApprove) {
		t.Fatal("second start succeeded")
	}
}

func TestEngineChooseRejectsReplacedRequest(t *testing.T) {
	m := metrics.New()
	e := NewEngine(EngineOptions{Logger: zaptest.NewLogger(t), Metrics: m})
	e.SetPendingApproval(Request{ID: 1, Kind: KindTool, Payload: `{"tool":"readFile"}`})
	shown := e.Snapshot()

	// The host withdraws the request and asks about a command before the
	// key press for the first menu is applied.
	if !e.Dismiss(1) {
		t.Fatal("dismiss failed")
	}
	e.SetPendingApproval(Request{ID: 2, Kind: KindCommand, Payload: "rm -rf build"})

	if d, ok := e.ChooseHotkey(shown.Pending.ID, "n"); ok {
		t.Fatalf("hotkey for request 1 decided %+v", d)
	}
	if d, ok := e.ChooseSelected(shown.Pending.ID); ok {
		t.Fatalf("enter for request 1 decided %+v", d)
	}
	if d, ok := e.Choose(shown.Pending.ID, 1); ok {
		t.Fatalf("choose for request 1 decided %+v", d)
	}

	snap := e.Snapshot()
	if snap.Phase != Pending || snap.Pending == nil || snap.Pending.ID != 2 || snap.Lock != nil {
		t.Fatalf("snapshot = %+v", snap)
	}
	if got := testutil.ToFloat64(m.ApprovalTransitions.WithLabelValues("stale")); got != 3 {
		t.Fatalf("stale rejections = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.ApprovalDecisions.WithLabelValues("approve_and_remember")); got != 0 {
		t.Fatalf("remember decisions = %v, want 0", got)
	}
}

func TestEngineCompleteNeedsMatchingLock(t *testing.T) {
	e := NewEngine(EngineOptions{})
	e.SetPendingApproval(Request{ID: 4, Kind: KindCommand, Payload: "make"})

	if e.CompleteApprovalProcessing(4) {
		t.Fatal("completed a request that was never chosen")
	}
	if snap := e.Snapshot(); snap.Phase != Pending || snap.Pending == nil {
		t.Fatalf("pending request cleared: %+v", snap)
	}

	if _, ok := e.Choose(4, 0); !ok {
		t.Fatal("choose failed")
	}
	if e.CompleteApprovalProcessing(3) {
		t.Fatal("completed with another request id")
	}
	if snap := e.Snapshot(); snap.Phase != Processing {
		t.Fatalf("phase = %v, want processing", snap.Phase)
	}
	if !e.CompleteApprovalProcessing(4) {
		t.Fatal("complete failed")
	}
	if snap := e.Snapshot(); snap.Phase != Idle {
		t.Fatalf("phase = %v, want idle", snap.Phase)
	}
}
