package dht

import (
	"sort"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/kutluhann/bridged-kademlia-sim/id_tools"
)

func contact(v uint64, domain int) Contact {
	return Contact{ID: id_tools.FromUint64(v), Domain: domain}
}

func ids(contacts []Contact) []uint64 {
	out := make([]uint64, len(contacts))
	for i, c := range contacts {
		out[i] = c.ID.Uint64()
	}
	return out
}

func equalIDs(got []Contact, want ...uint64) bool {
	g := ids(got)
	if len(g) != len(want) {
		return false
	}
	for i := range g {
		if g[i] != want[i] {
			return false
		}
	}
	return true
}

type recordingSink struct {
	records []LookupRecord
}

func (s *recordingSink) Report(r LookupRecord) {
	s.records = append(s.records, r)
}

// firstRand always picks the first element.
type firstRand struct{}

func (firstRand) Intn(int) int { return 0 }

type pending struct {
	at  mclock.AbsTime
	seq int
	msg *Message
	to  NodeID
}

// testNetwork is a minimal deterministic scheduler: constant latency,
// delivery in time order, then scheduling order.
type testNetwork struct {
	t       *testing.T
	now     mclock.AbsTime
	seq     int
	queue   []pending
	latency time.Duration
	nodes   map[NodeID]*Node
	down    map[NodeID]bool
	ids     IDGenerator
	stats   recordingSink
	errs    []error
	cfg     Config
}

func newTestNetwork(t *testing.T, cfg Config) *testNetwork {
	return &testNetwork{
		t:       t,
		latency: 100 * time.Millisecond,
		nodes:   make(map[NodeID]*Node),
		down:    make(map[NodeID]bool),
		cfg:     cfg,
	}
}

func (tn *testNetwork) Now() mclock.AbsTime { return tn.now }

func (tn *testNetwork) Latency(Contact, Contact) time.Duration { return tn.latency }

func (tn *testNetwork) Schedule(delay time.Duration, msg *Message, to NodeID) {
	p := pending{at: tn.now.Add(delay), seq: tn.seq, msg: msg, to: to}
	tn.seq++
	i := sort.Search(len(tn.queue), func(i int) bool { return tn.queue[i].at > p.at })
	tn.queue = append(tn.queue, pending{})
	copy(tn.queue[i+1:], tn.queue[i:])
	tn.queue[i] = p
}

func (tn *testNetwork) add(v uint64, domain int) *Node {
	n := NewNode(contact(v, domain), tn.cfg, Env{
		Scheduler: tn,
		Stats:     &tn.stats,
		IDs:       &tn.ids,
		Rand:      firstRand{},
	})
	tn.nodes[n.Self.ID] = n
	return n
}

// lookup delivers a FIND_NODE for dest to src right away.
func (tn *testNetwork) lookup(src *Node, dest Contact, body any) {
	m := tn.ids.NewMessage(FIND_NODE, body)
	m.Source = src.Self
	m.Target = dest
	m.Sender = src.Self
	m.Receiver = src.Self
	m.NewLookup = true
	m.Timestamp = tn.now
	tn.Schedule(0, m, src.Self.ID)
}

func (tn *testNetwork) run() {
	for steps := 0; len(tn.queue) > 0; steps++ {
		if steps > 10000 {
			tn.t.Fatalf("network did not settle")
		}
		p := tn.queue[0]
		tn.queue = tn.queue[1:]
		tn.now = p.at

		node, ok := tn.nodes[p.to]
		if !ok || tn.down[p.to] {
			continue
		}
		if err := node.Handle(p.msg); err != nil {
			tn.errs = append(tn.errs, err)
		}
	}
}
