package dht

import (
	"slices"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common/mclock"
)

type MessageType int

const (
	EMPTY MessageType = iota
	FIND_NODE // start a lookup at the receiving node
	ROUTE     // query one peer, or hand a lookup over to a bridge when NewLookup is set
	RESPONSE  // peers closest to the key, or a finished LookupResult

	TIMEOUT MessageType = 100 // deadline of an outstanding ROUTE or handoff, delivered to its sender
)

func (t MessageType) String() string {
	switch t {
	case EMPTY:
		return "EMPTY"
	case FIND_NODE:
		return "FIND_NODE"
	case ROUTE:
		return "ROUTE"
	case RESPONSE:
		return "RESPONSE"
	case TIMEOUT:
		return "TIMEOUT"
	}
	return "UNKNOWN"
}

// Message is the unit the scheduler delivers between nodes.
type Message struct {
	ID          uint64
	AckID       uint64 // ID of the request this message answers
	OperationID uint64
	Type        MessageType

	Source   Contact // node the lookup is for
	Target   Contact // owner of the key being looked up
	Sender   Contact
	Receiver Contact

	// Body is a traffic tag on FIND_NODE, a Handoff on a NewLookup ROUTE,
	// []Contact or a LookupResult on RESPONSE.
	Body      any
	NewLookup bool
	Timestamp mclock.AbsTime
}

// Handoff travels with a lookup passed across domains through bridge nodes.
// Ticket names the source's outstanding wait for the result.
type Handoff struct {
	Started  mclock.AbsTime
	Messages int
	Ticket   uint64
}

// Copy duplicates m under a fresh message id.
func (m *Message) Copy(ids *IDGenerator) *Message {
	dup := *m
	dup.ID = ids.Next()
	if peers, ok := m.Body.([]Contact); ok {
		dup.Body = slices.Clone(peers)
	}
	return &dup
}

// IDGenerator hands out message ids, unique and increasing within one
// simulation.
type IDGenerator struct {
	last atomic.Uint64
}

func (g *IDGenerator) Next() uint64 {
	return g.last.Add(1)
}

func (g *IDGenerator) NewMessage(typ MessageType, body any) *Message {
	return &Message{
		ID:   g.Next(),
		Type: typ,
		Body: body,
	}
}
