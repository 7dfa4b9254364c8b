package dht

import (
	"slices"

	"github.com/ethereum/go-ethereum/common/mclock"
)

// Purpose tells measured lookups apart from the self-lookups new nodes run to
// fill their routing tables.
type Purpose uint8

const (
	Measured Purpose = iota
	Bootstrap
)

type MergeStatus uint8

const (
	MergeOk MergeStatus = iota
	MergeMalformed
)

// MergeResult is the outcome of folding a response into the closest set.
type MergeResult struct {
	Status MergeStatus
	Merged int // contacts that entered the closest set
}

func (r MergeResult) Malformed() bool {
	return r.Status == MergeMalformed
}

// FindOperation is the state of one iterative lookup on the node running it.
//
// The closest set holds at most K contacts sorted by distance to Target.
// available is the concurrency budget: it starts at ALPHA, drops by one per
// request sent and comes back by one per reply or timeout.
type FindOperation struct {
	OperationID uint64
	Target      NodeID
	Source      Contact
	Destination Contact
	Purpose     Purpose
	Variant     Variant
	Started     mclock.AbsTime
	Ticket      uint64 // set when the source waits for this lookup from another domain

	NrMessages     int
	NrHops         int
	NrResponse     int
	ShortestNrHops int
	FoundTarget    bool // once set it stays set

	bits      int
	k         int
	alpha     int
	available int
	closest   []Contact
	visited   map[NodeID]struct{}
	reports   map[NodeID]int
}

func NewFindOperation(id uint64, source, destination Contact, purpose Purpose, variant Variant, bits, k, alpha int, started mclock.AbsTime) *FindOperation {
	return &FindOperation{
		OperationID: id,
		Target:      destination.ID,
		Source:      source,
		Destination: destination,
		Purpose:     purpose,
		Variant:     variant,
		Started:     started,
		bits:        bits,
		k:           k,
		alpha:       alpha,
		available:   alpha,
		closest:     make([]Contact, 0, k),
		visited:     make(map[NodeID]struct{}),
		reports:     make(map[NodeID]int),
	}
}

// Seed fills the closest set from the local routing table. It does not touch
// the budget.
func (op *FindOperation) Seed(contacts []Contact, self NodeID) int {
	return op.merge(contacts, self, false)
}

// UpdateClosestSet folds the body of a reply into the closest set. A
// well-formed reply gives its request's budget unit back; a malformed one
// merges nothing and leaves the refund to the caller.
func (op *FindOperation) UpdateClosestSet(body any, self NodeID) MergeResult {
	peers, ok := body.([]Contact)
	if !ok {
		return MergeResult{Status: MergeMalformed}
	}
	op.Refund()
	return MergeResult{Status: MergeOk, Merged: op.merge(peers, self, true)}
}

func (op *FindOperation) merge(peers []Contact, self NodeID, reported bool) int {
	merged := 0
	for _, c := range peers {
		if c.ID == self {
			continue
		}
		if op.Variant.Protocol == Improved && c.Domain != op.Destination.Domain {
			continue
		}
		if reported {
			op.reports[c.ID]++
		}
		if indexOf(op.closest, c.ID) != -1 {
			continue
		}

		i, _ := slices.BinarySearchFunc(op.closest, c, func(e, t Contact) int {
			return CompareDistance(e.ID, t.ID, op.Target)
		})
		if i >= op.k {
			continue
		}
		op.closest = slices.Insert(op.closest, i, c)
		if len(op.closest) > op.k {
			op.closest = op.closest[:op.k]
		}
		merged++
	}
	return merged
}

// Refund returns one unit of budget, never above ALPHA.
func (op *FindOperation) Refund() {
	if op.available < op.alpha {
		op.available++
	}
}

// GetNeighbour picks the next contact to query, marks it visited and
// consumes one unit of budget.
func (op *FindOperation) GetNeighbour() (Contact, bool) {
	if op.available <= 0 {
		return Contact{}, false
	}
	i := op.nextCandidate()
	if i == -1 {
		return Contact{}, false
	}

	c := op.closest[i]
	op.visited[c.ID] = struct{}{}
	op.available--
	return c, true
}

func (op *FindOperation) nextCandidate() int {
	first := -1
	for i, c := range op.closest {
		if !op.Visited(c.ID) {
			first = i
			break
		}
	}
	if first == -1 || op.Variant.Protocol == Naive {
		return first
	}

	// Improved: stay in the longest shared-prefix tier, favour the contact
	// most responders agreed on.
	tier := op.closest[first].ID.PrefixLen(op.Target, op.bits)
	best := first
	for i := first + 1; i < len(op.closest); i++ {
		c := op.closest[i]
		if c.ID.PrefixLen(op.Target, op.bits) != tier {
			break
		}
		if op.Visited(c.ID) {
			continue
		}
		if op.reports[c.ID] > op.reports[op.closest[best].ID] {
			best = i
		}
	}
	return best
}

func (op *FindOperation) HasUnqueried() bool {
	for _, c := range op.closest {
		if !op.Visited(c.ID) {
			return true
		}
	}
	return false
}

// Converged is true once nothing is in flight and nobody is left to ask.
func (op *FindOperation) Converged() bool {
	return op.available == op.alpha && !op.HasUnqueried()
}

// RecordResponse counts a reply and updates the shortest-hops estimate:
// every ALPHA replies without the destination in sight add one hop.
func (op *FindOperation) RecordResponse() {
	op.NrResponse++
	if op.Contains(op.Destination.ID) {
		op.FoundTarget = true
	}
	if op.NrResponse%op.alpha == 0 && !op.FoundTarget {
		op.ShortestNrHops++
	}
}

func (op *FindOperation) Contains(id NodeID) bool {
	return indexOf(op.closest, id) != -1
}

func (op *FindOperation) Visited(id NodeID) bool {
	_, seen := op.visited[id]
	return seen
}

func (op *FindOperation) Available() int {
	return op.available
}

func (op *FindOperation) ClosestSet() []Contact {
	return slices.Clone(op.closest)
}

func (op *FindOperation) Success() bool {
	return op.FoundTarget || op.Contains(op.Destination.ID)
}

// Result freezes the session into a value that can travel between nodes.
func (op *FindOperation) Result() LookupResult {
	return LookupResult{
		OperationID:  op.OperationID,
		Ticket:       op.Ticket,
		Source:       op.Source,
		Destination:  op.Destination,
		Started:      op.Started,
		Hops:         op.NrHops,
		ShortestHops: op.ShortestNrHops,
		Messages:     op.NrMessages,
		Success:      op.Success(),
		Closest:      op.ClosestSet(),
	}
}

// LookupResult is a finished lookup on its way back to the source.
type LookupResult struct {
	OperationID  uint64
	Ticket       uint64
	Source       Contact
	Destination  Contact
	Started      mclock.AbsTime
	Hops         int
	ShortestHops int
	Messages     int
	Success      bool
	Closest      []Contact
}

func (r LookupResult) Record(now mclock.AbsTime) LookupRecord {
	rec := LookupRecord{
		Outcome:      Failure,
		Scope:        Intra,
		Hops:         r.Hops,
		ShortestHops: r.ShortestHops,
		Messages:     r.Messages,
		Latency:      now.Sub(r.Started),
	}
	if r.Success {
		rec.Outcome = Success
	}
	if r.Source.Domain != r.Destination.Domain {
		rec.Scope = Inter
	}
	return rec
}
