package dht

import (
	"fmt"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/kutluhann/bridged-kademlia-sim/constants"
)

// Config holds the protocol parameters every node of a simulation shares.
type Config struct {
	Bits           int
	K              int
	Alpha          int
	Variant        Variant
	RequestTimeout time.Duration
	LookupTimeout  time.Duration // how long a source waits for a lookup handed to another domain
}

func (c Config) withDefaults() Config {
	if c.Bits == 0 {
		c.Bits = constants.Bits
	}
	if c.K == 0 {
		c.K = constants.K
	}
	if c.Alpha == 0 {
		c.Alpha = constants.Alpha
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = constants.RequestTimeout
	}
	if c.LookupTimeout == 0 {
		c.LookupTimeout = constants.LookupTimeout
	}
	return c
}

// Env connects a node to the simulation it lives in.
type Env struct {
	Scheduler Scheduler
	Stats     StatsSink
	IDs       *IDGenerator
	Rand      Rand
}

// Node is one participant of a domain's ring. All of its state is touched only
// from Handle, one message at a time.
type Node struct {
	Self         Contact
	IsBridge     bool
	RoutingTable *RoutingTable

	cfg           Config
	env           Env
	sessions      *SessionStore
	tracker       *RequestTracker
	bridges       []Contact         // bridge nodes of our own domain
	remoteBridges map[int][]Contact // bridge nodes of the other domains, bridges only
	lastOperation uint64
	log           log.Logger
}

func NewNode(self Contact, cfg Config, env Env) *Node {
	cfg = cfg.withDefaults()
	return &Node{
		Self:          self,
		RoutingTable:  NewRoutingTable(self, cfg.Bits, cfg.K),
		cfg:           cfg,
		env:           env,
		sessions:      NewSessionStore(),
		tracker:       NewRequestTracker(),
		remoteBridges: make(map[int][]Contact),
		log:           log.New("node", self.ID.Short(), "domain", self.Domain),
	}
}

func (n *Node) SetBridges(bridges []Contact) {
	n.bridges = slices.Clone(bridges)
}

func (n *Node) Bridges() []Contact {
	return slices.Clone(n.bridges)
}

// SetRemoteBridges tells a bridge node which nodes bridge into domain.
func (n *Node) SetRemoteBridges(domain int, bridges []Contact) {
	n.remoteBridges[domain] = slices.Clone(bridges)
}

func (n *Node) Sessions() *SessionStore {
	return n.sessions
}

func (n *Node) Tracker() *RequestTracker {
	return n.tracker
}

func (n *Node) Config() Config {
	return n.cfg
}

// Handle dispatches a delivered message. Returned errors leave the node in a
// consistent state; the caller logs them and moves on to the next message.
func (n *Node) Handle(m *Message) error {
	n.log.Trace("Delivered", "type", m.Type, "id", m.ID, "op", m.OperationID, "from", m.Sender)

	switch m.Type {
	case FIND_NODE:
		return n.Request(m)
	case ROUTE:
		if m.NewLookup {
			return n.handleHandoff(m)
		}
		n.Respond(m)
		return nil
	case RESPONSE:
		if res, ok := m.Body.(LookupResult); ok {
			return n.handleResult(res)
		}
		return n.HandleResponse(m)
	case TIMEOUT:
		return n.HandleTimeout(m)
	case EMPTY:
		return nil
	}
	return fmt.Errorf("%w: %d", ErrUnknownMessage, m.Type)
}

// learn adds c to the routing table. Rings are per domain, so contacts from
// other domains are never stored.
func (n *Node) learn(c Contact) {
	if c.Domain != n.Self.Domain {
		return
	}
	n.RoutingTable.AddContact(c)
}

func (n *Node) send(m *Message) {
	n.env.Scheduler.Schedule(n.env.Scheduler.Latency(m.Sender, m.Receiver), m, m.Receiver.ID)
}

func (n *Node) report(res LookupResult) {
	rec := res.Record(n.env.Scheduler.Now())
	n.env.Stats.Report(rec)
	n.log.Debug("Lookup finished", "op", res.OperationID, "dest", res.Destination, "outcome", rec.Outcome,
		"scope", rec.Scope, "hops", rec.Hops, "messages", rec.Messages, "latency", rec.Latency)
}
