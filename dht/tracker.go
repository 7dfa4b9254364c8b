package dht

import (
	"github.com/elliotchance/orderedmap/v2"
	"github.com/ethereum/go-ethereum/common/mclock"
)

// RequestTracker remembers which requests still wait for an answer, keyed by
// the request's message id (the ackId of its reply).
type RequestTracker struct {
	pending *orderedmap.OrderedMap[uint64, mclock.AbsTime]
}

func NewRequestTracker() *RequestTracker {
	return &RequestTracker{pending: orderedmap.NewOrderedMap[uint64, mclock.AbsTime]()}
}

func (t *RequestTracker) Track(ack uint64, deadline mclock.AbsTime) {
	t.pending.Set(ack, deadline)
}

// Resolve clears ack and reports whether it was still outstanding.
func (t *RequestTracker) Resolve(ack uint64) bool {
	return t.pending.Delete(ack)
}

func (t *RequestTracker) Len() int {
	return t.pending.Len()
}

// Overdue lists the requests whose deadline is before now.
func (t *RequestTracker) Overdue(now mclock.AbsTime) []uint64 {
	var late []uint64
	for el := t.pending.Front(); el != nil; el = el.Next() {
		if el.Value < now {
			late = append(late, el.Key)
		}
	}
	return late
}
