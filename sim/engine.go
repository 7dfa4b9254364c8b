// Package sim drives a population of dht nodes through simulated time.
package sim

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/ethereum/go-ethereum/common/prque"
	"github.com/ethereum/go-ethereum/log"
	"github.com/kutluhann/bridged-kademlia-sim/dht"
	"golang.org/x/exp/rand"
)

// Recorder observes every delivered message.
type Recorder interface {
	Record(at mclock.AbsTime, m *dht.Message) error
}

type event struct {
	msg     *dht.Message
	to      dht.NodeID
	control func()
}

// slot holds every event due at one instant, in scheduling order.
type slot struct {
	at     mclock.AbsTime
	events []event
}

type peer struct {
	node *dht.Node
	up   bool
}

// Engine is a single-threaded discrete-event scheduler. Events are delivered
// in time order and, at equal times, in the order they were scheduled.
type Engine struct {
	now   mclock.AbsTime
	queue *prque.Prque[int64, *slot]
	slots map[mclock.AbsTime]*slot

	latencyMin time.Duration
	latencyMax time.Duration
	rng        *rand.Rand

	peers    map[dht.NodeID]*peer
	order    []dht.NodeID
	recorder Recorder

	delivered uint64
	dropped   uint64
	failures  map[string]int
}

func NewEngine(rng *rand.Rand, latencyMin, latencyMax time.Duration) *Engine {
	return &Engine{
		queue:      prque.New[int64, *slot](nil),
		slots:      make(map[mclock.AbsTime]*slot),
		latencyMin: latencyMin,
		latencyMax: latencyMax,
		rng:        rng,
		peers:      make(map[dht.NodeID]*peer),
		failures:   make(map[string]int),
	}
}

func (e *Engine) SetRecorder(r Recorder) {
	e.recorder = r
}

func (e *Engine) Now() mclock.AbsTime {
	return e.now
}

func (e *Engine) Schedule(delay time.Duration, msg *dht.Message, to dht.NodeID) {
	e.push(delay, event{msg: msg, to: to})
}

// Latency draws a uniform transport delay from the configured range.
func (e *Engine) Latency(from, to dht.Contact) time.Duration {
	span := int64(e.latencyMax - e.latencyMin)
	if span <= 0 {
		return e.latencyMin
	}
	return e.latencyMin + time.Duration(e.rng.Int63n(span+1))
}

// At runs fn once after delay.
func (e *Engine) At(delay time.Duration, fn func()) {
	e.push(delay, event{control: fn})
}

// Every runs fn each period, starting one period from now.
func (e *Engine) Every(period time.Duration, fn func()) {
	var tick func()
	tick = func() {
		fn()
		e.At(period, tick)
	}
	e.At(period, tick)
}

func (e *Engine) push(delay time.Duration, ev event) {
	if delay < 0 {
		delay = 0
	}
	at := e.now.Add(delay)
	s, ok := e.slots[at]
	if !ok {
		s = &slot{at: at}
		e.slots[at] = s
		e.queue.Push(s, -int64(at))
	}
	s.events = append(s.events, ev)
}

// Pending reports whether anything is still scheduled.
func (e *Engine) Pending() bool {
	return !e.queue.Empty()
}

// Step delivers every event of the earliest instant. It returns false when
// nothing is scheduled.
func (e *Engine) Step() bool {
	if !e.Pending() {
		return false
	}
	s, _ := e.queue.Pop()
	delete(e.slots, s.at)
	e.now = s.at

	for _, ev := range s.events {
		if ev.control != nil {
			ev.control()
			continue
		}
		e.deliver(ev)
	}
	return true
}

func (e *Engine) deliver(ev event) {
	p, ok := e.peers[ev.to]
	if !ok || !p.up {
		e.dropped++
		return
	}
	e.delivered++

	if e.recorder != nil {
		if err := e.recorder.Record(e.now, ev.msg); err != nil {
			log.Warn("Trace recording stopped", "err", err)
			e.recorder = nil
		}
	}
	if err := p.node.Handle(ev.msg); err != nil {
		e.fail(p.node, err)
	}
}

func (e *Engine) fail(n *dht.Node, err error) {
	switch {
	case errors.Is(err, dht.ErrMissingSession):
		e.failures["missing-session"]++
		log.Debug("Dropped message", "node", n.Self, "err", err)
	case errors.Is(err, dht.ErrNoBridgeNode):
		e.failures["no-bridge"]++
		log.Warn("Lookup lost", "node", n.Self, "err", err)
	default:
		e.failures["other"]++
		log.Error("Message handling failed", "node", n.Self, "err", err)
	}
}

// RunUntil delivers events up to and including deadline, then parks the clock
// at deadline.
func (e *Engine) RunUntil(ctx context.Context, deadline mclock.AbsTime) error {
	for steps := 0; e.Pending(); steps++ {
		if steps%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if _, prio := e.queue.Peek(); mclock.AbsTime(-prio) > deadline {
			break
		}
		e.Step()
	}
	if e.now < deadline {
		e.now = deadline
	}
	return nil
}

// Add registers n as up.
func (e *Engine) Add(n *dht.Node) {
	if _, ok := e.peers[n.Self.ID]; !ok {
		e.order = append(e.order, n.Self.ID)
	}
	e.peers[n.Self.ID] = &peer{node: n, up: true}
}

// SetUp marks a node up or down. Messages for down nodes are dropped; the node
// stays in everyone's routing tables.
func (e *Engine) SetUp(id dht.NodeID, up bool) {
	if p, ok := e.peers[id]; ok {
		p.up = up
	}
}

func (e *Engine) IsUp(id dht.NodeID) bool {
	p, ok := e.peers[id]
	return ok && p.up
}

func (e *Engine) Node(id dht.NodeID) (*dht.Node, bool) {
	p, ok := e.peers[id]
	if !ok {
		return nil, false
	}
	return p.node, true
}

// Nodes lists every node ever added, in the order they were added.
func (e *Engine) Nodes() []*dht.Node {
	nodes := make([]*dht.Node, len(e.order))
	for i, id := range e.order {
		nodes[i] = e.peers[id].node
	}
	return nodes
}

func (e *Engine) UpCount() int {
	up := 0
	for _, p := range e.peers {
		if p.up {
			up++
		}
	}
	return up
}

func (e *Engine) Delivered() uint64 { return e.delivered }
func (e *Engine) Dropped() uint64   { return e.dropped }

func (e *Engine) Failures() map[string]int {
	out := make(map[string]int, len(e.failures))
	for k, v := range e.failures {
		out[k] = v
	}
	return out
}
