package dht

import (
	"time"

	"github.com/ethereum/go-ethereum/common/mclock"
)

// Scheduler is everything a node needs from the simulation around it. Nodes
// never call each other directly; they hand messages to the scheduler, which
// delivers them later in a single total order.
type Scheduler interface {
	Now() mclock.AbsTime
	// Schedule delivers msg to the node with the given id after delay. Messages
	// for nodes that are down at delivery time are dropped.
	Schedule(delay time.Duration, msg *Message, to NodeID)
	// Latency is the transport delay between two nodes.
	Latency(from, to Contact) time.Duration
}

type Outcome uint8

const (
	Failure Outcome = iota
	Success
)

func (o Outcome) String() string {
	if o == Success {
		return "success"
	}
	return "failure"
}

// LookupRecord describes one finished, measured lookup.
type LookupRecord struct {
	Outcome      Outcome
	Scope        Scope
	Hops         int
	ShortestHops int
	Messages     int
	Latency      time.Duration
}

// StatsSink receives finished lookups. Bootstrap lookups are never reported.
type StatsSink interface {
	Report(LookupRecord)
}

// Rand is the part of the simulation's seeded generator nodes draw from.
type Rand interface {
	Intn(n int) int
}
