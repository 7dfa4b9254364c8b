package dht

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/mclock"
)

func newOperation(variant Variant, k, alpha int, dest Contact) *FindOperation {
	return NewFindOperation(1, contact(0xff, 0), dest, Measured, variant, 8, k, alpha, 0)
}

func TestFindOperationBudgetBounds(t *testing.T) {
	op := newOperation(Variant{}, 3, 3, contact(0, 0))
	op.Seed([]Contact{contact(1, 0), contact(2, 0), contact(3, 0), contact(4, 0), contact(5, 0)}, contact(0xff, 0).ID)

	if !equalIDs(op.ClosestSet(), 1, 2, 3) {
		t.Fatalf("closest set = %v, want [1 2 3]", ids(op.ClosestSet()))
	}

	for i := 0; i < 3; i++ {
		if _, ok := op.GetNeighbour(); !ok {
			t.Fatalf("GetNeighbour %d failed", i)
		}
	}
	if op.Available() != 0 {
		t.Fatalf("budget = %d, want 0", op.Available())
	}
	if _, ok := op.GetNeighbour(); ok {
		t.Errorf("GetNeighbour succeeded without budget")
	}

	for i := 0; i < 5; i++ {
		op.Refund()
	}
	if op.Available() != 3 {
		t.Errorf("budget = %d after refunds, want ALPHA=3", op.Available())
	}
	if !op.Converged() {
		t.Errorf("expected convergence: full budget, everyone visited")
	}
}

func TestUpdateClosestSet(t *testing.T) {
	self := contact(0xff, 0).ID
	op := newOperation(Variant{}, 2, 2, contact(0, 0))
	op.Seed([]Contact{contact(8, 0)}, self)
	op.GetNeighbour()

	res := op.UpdateClosestSet([]Contact{contact(4, 0), contact(8, 0), contact(0xff, 0), contact(1, 0)}, self)
	if res.Malformed() || res.Merged != 2 {
		t.Fatalf("result = %+v, want Ok(2)", res)
	}
	if !equalIDs(op.ClosestSet(), 1, 4) {
		t.Errorf("closest set = %v, want [1 4]", ids(op.ClosestSet()))
	}
	if op.Available() != 2 {
		t.Errorf("budget = %d, want 2 after the reply", op.Available())
	}
	if !op.Visited(contact(8, 0).ID) {
		t.Errorf("visited contact forgotten after leaving the closest set")
	}
}

func TestUpdateClosestSetMalformed(t *testing.T) {
	op := newOperation(Variant{}, 3, 1, contact(0, 0))
	op.Seed([]Contact{contact(2, 0)}, contact(0xff, 0).ID)
	op.GetNeighbour()

	for _, body := range []any{nil, "garbage", Handoff{}} {
		res := op.UpdateClosestSet(body, contact(0xff, 0).ID)
		if !res.Malformed() {
			t.Errorf("body %T accepted", body)
		}
	}
	if op.Available() != 0 {
		t.Errorf("malformed replies changed the budget to %d", op.Available())
	}
	if !equalIDs(op.ClosestSet(), 2) {
		t.Errorf("malformed replies changed the closest set: %v", ids(op.ClosestSet()))
	}
}

func TestFoundTargetIsMonotonic(t *testing.T) {
	dest := contact(6, 0)
	op := newOperation(Variant{}, 3, 1, dest)

	op.RecordResponse()
	if op.FoundTarget || op.ShortestNrHops != 1 {
		t.Fatalf("found=%v shortest=%d, want false/1", op.FoundTarget, op.ShortestNrHops)
	}

	op.Seed([]Contact{dest}, contact(0xff, 0).ID)
	op.RecordResponse()
	if !op.FoundTarget || op.ShortestNrHops != 1 {
		t.Fatalf("found=%v shortest=%d, want true/1", op.FoundTarget, op.ShortestNrHops)
	}

	op.closest = op.closest[:0]
	op.RecordResponse()
	if !op.FoundTarget || op.ShortestNrHops != 1 {
		t.Errorf("found flag cleared or estimate moved: found=%v shortest=%d", op.FoundTarget, op.ShortestNrHops)
	}
	if op.NrResponse != 3 {
		t.Errorf("NrResponse = %d, want 3", op.NrResponse)
	}
}

func TestShortestHopsCountsEveryAlphaResponses(t *testing.T) {
	op := newOperation(Variant{}, 3, 3, contact(6, 0))
	for i := 0; i < 7; i++ {
		op.RecordResponse()
	}
	if op.ShortestNrHops != 2 {
		t.Errorf("ShortestNrHops = %d after 7 replies with ALPHA=3, want 2", op.ShortestNrHops)
	}
}

func TestImprovedPrefersCorroboratedContacts(t *testing.T) {
	self := contact(0xff, 0).ID
	reports := [][]Contact{
		{contact(4, 0), contact(5, 0)},
		{contact(5, 0), contact(6, 0)},
	}

	pick := func(p Protocol) uint64 {
		op := newOperation(Variant{Protocol: p}, 3, 3, contact(0, 0))
		for _, r := range reports {
			op.UpdateClosestSet(r, self)
		}
		c, ok := op.GetNeighbour()
		if !ok {
			t.Fatalf("%v: no neighbour", p)
		}
		return c.ID.Uint64()
	}

	if got := pick(Naive); got != 4 {
		t.Errorf("naive picked %d, want the closest (4)", got)
	}
	if got := pick(Improved); got != 5 {
		t.Errorf("improved picked %d, want the most reported (5)", got)
	}
}

func TestImprovedStaysInClosestTier(t *testing.T) {
	op := newOperation(Variant{Protocol: Improved}, 3, 3, contact(0, 0))
	self := contact(0xff, 0).ID
	op.UpdateClosestSet([]Contact{contact(1, 0), contact(8, 0)}, self)
	op.UpdateClosestSet([]Contact{contact(8, 0)}, self)

	if c, _ := op.GetNeighbour(); c.ID.Uint64() != 1 {
		t.Errorf("picked %d from a farther tier, want 1", c.ID.Uint64())
	}
}

func TestImprovedIgnoresForeignDomains(t *testing.T) {
	op := newOperation(Variant{Protocol: Improved}, 3, 3, contact(0, 1))
	res := op.UpdateClosestSet([]Contact{contact(1, 0), contact(2, 1)}, contact(0xff, 1).ID)

	if res.Merged != 1 || !equalIDs(op.ClosestSet(), 2) {
		t.Errorf("closest set = %v, want only the same-domain contact", ids(op.ClosestSet()))
	}
}

func TestResultRecord(t *testing.T) {
	op := NewFindOperation(7, contact(1, 0), contact(2, 1), Measured, Variant{}, 8, 3, 3, mclock.AbsTime(time.Second))
	op.NrHops, op.NrMessages = 2, 5
	op.Seed([]Contact{contact(2, 1)}, contact(9, 1).ID)

	rec := op.Result().Record(mclock.AbsTime(3 * time.Second))
	if rec.Outcome != Success || rec.Scope != Inter {
		t.Errorf("record = %+v, want an inter-domain success", rec)
	}
	if rec.Hops != 2 || rec.Messages != 5 || rec.Latency != 2*time.Second {
		t.Errorf("record = %+v", rec)
	}
}

func TestSessionStore(t *testing.T) {
	s := NewSessionStore()
	first := newOperation(Variant{}, 3, 3, contact(1, 0))
	if err := s.Put(first); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(newOperation(Variant{}, 3, 3, contact(2, 0))); !errors.Is(err, ErrDuplicateOperation) {
		t.Errorf("duplicate operation id: err = %v", err)
	}
	if oldest, ok := s.Oldest(); !ok || oldest != first {
		t.Errorf("Oldest = %v", oldest)
	}
	if !s.Delete(1) || s.Len() != 0 {
		t.Errorf("Delete failed")
	}
	if _, ok := s.Get(1); ok {
		t.Errorf("deleted session still present")
	}
}

func TestRequestTracker(t *testing.T) {
	tr := NewRequestTracker()
	tr.Track(1, mclock.AbsTime(10))
	tr.Track(2, mclock.AbsTime(30))

	if late := tr.Overdue(mclock.AbsTime(20)); len(late) != 1 || late[0] != 1 {
		t.Errorf("Overdue = %v, want [1]", late)
	}
	if !tr.Resolve(1) {
		t.Errorf("Resolve(1) = false")
	}
	if tr.Resolve(1) {
		t.Errorf("second Resolve(1) = true")
	}
	if late := tr.Overdue(mclock.AbsTime(40)); len(late) != 1 || late[0] != 2 {
		t.Errorf("Overdue after Resolve(1) = %v, want [2]", late)
	}
	if tr.Len() != 1 {
		t.Errorf("Len = %d, want 1", tr.Len())
	}
}
