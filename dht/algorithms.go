package dht

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/kutluhann/bridged-kademlia-sim/constants"
)

// Request starts the lookup a FIND_NODE asks for. Under the inter scope a
// lookup for a key of another domain is handed to a bridge instead.
func (n *Node) Request(m *Message) error {
	purpose := Measured
	if tag, _ := m.Body.(string); tag == constants.BootstrapTraffic {
		purpose = Bootstrap
	}

	if purpose == Measured && n.cfg.Variant.Scope == Inter && m.Target.Domain != n.Self.Domain {
		return n.passHandoff(m.Source, m.Target, n.awaitRemote(m.Target, m.Timestamp))
	}
	return n.startSession(m.Source, m.Target, purpose, Handoff{Started: m.Timestamp})
}

// awaitRemote opens the wait for a lookup about to leave this domain. Unless
// its result comes back within LookupTimeout, the lookup is counted as failed.
func (n *Node) awaitRemote(target Contact, started mclock.AbsTime) Handoff {
	h := Handoff{Started: started, Ticket: n.env.IDs.Next()}
	n.tracker.Track(h.Ticket, n.env.Scheduler.Now().Add(n.cfg.LookupTimeout))

	timeout := n.env.IDs.NewMessage(TIMEOUT, h)
	timeout.AckID = h.Ticket
	timeout.Source = n.Self
	timeout.Target = target
	timeout.Sender = n.Self
	timeout.Receiver = n.Self
	timeout.Timestamp = n.env.Scheduler.Now()
	n.env.Scheduler.Schedule(n.cfg.LookupTimeout, timeout, n.Self.ID)
	return h
}

func (n *Node) startSession(source, dest Contact, purpose Purpose, h Handoff) error {
	// 1. INITIALIZATION
	// Seed the closest set with what our own table knows about the key.
	n.lastOperation++
	op := NewFindOperation(n.lastOperation, source, dest, purpose, n.cfg.Variant, n.cfg.Bits, n.cfg.K, n.cfg.Alpha, h.Started)
	op.NrMessages = h.Messages
	op.Ticket = h.Ticket
	if dest.ID == n.Self.ID {
		op.FoundTarget = true
	}
	op.Seed(n.RoutingTable.FindClosest(dest.ID, source.ID), n.Self.ID)
	if err := n.sessions.Put(op); err != nil {
		return err
	}

	// 2. FIRST ROUND
	// Up to ALPHA parallel requests, counted as a single hop.
	sent := 0
	for {
		c, ok := op.GetNeighbour()
		if !ok {
			break
		}
		n.sendRequest(op, c)
		op.NrMessages++
		sent++
	}
	if sent > 0 {
		op.NrHops++
	}
	n.log.Debug("Lookup started", "op", op.OperationID, "dest", dest, "purpose", purpose, "queried", sent)

	// Nobody to ask at all
	if op.Converged() {
		return n.terminate(op)
	}
	return nil
}

func (n *Node) sendRequest(op *FindOperation, to Contact) {
	now := n.env.Scheduler.Now()

	req := n.env.IDs.NewMessage(ROUTE, nil)
	req.OperationID = op.OperationID
	req.Source = op.Source
	req.Target = op.Destination
	req.Sender = n.Self
	req.Receiver = to
	req.Timestamp = now

	n.tracker.Track(req.ID, now.Add(n.cfg.RequestTimeout))
	n.send(req)

	timeout := n.env.IDs.NewMessage(TIMEOUT, nil)
	timeout.AckID = req.ID
	timeout.OperationID = op.OperationID
	timeout.Source = op.Source
	timeout.Target = op.Destination
	timeout.Sender = to
	timeout.Receiver = n.Self
	timeout.Timestamp = now
	n.env.Scheduler.Schedule(n.cfg.RequestTimeout, timeout, n.Self.ID)
}

// Respond answers a ROUTE query with the K contacts closest to the key.
func (n *Node) Respond(m *Message) {
	n.learn(m.Sender)

	resp := n.env.IDs.NewMessage(RESPONSE, n.RoutingTable.FindClosest(m.Target.ID, m.Source.ID))
	resp.AckID = m.ID
	resp.OperationID = m.OperationID
	resp.Source = m.Source
	resp.Target = m.Target
	resp.Sender = n.Self
	resp.Receiver = m.Sender
	resp.Timestamp = n.env.Scheduler.Now()
	n.send(resp)
}

// HandleResponse folds a reply into its lookup and keeps the lookup moving.
func (n *Node) HandleResponse(m *Message) error {
	// 1. The request is answered
	tracked := n.tracker.Resolve(m.AckID)

	// 2. The responder is alive
	n.learn(m.Sender)

	// 3. Find the lookup
	op, ok := n.sessions.Get(m.OperationID)
	if !ok {
		return fmt.Errorf("%w: op %d, response %d from %s", ErrMissingSession, m.OperationID, m.ID, m.Sender)
	}

	// 4. Merge. A reply that arrives after its timeout already had its
	// budget unit returned by the timeout.
	if !tracked {
		if peers, ok := m.Body.([]Contact); ok {
			op.merge(peers, n.Self.ID, true)
		}
	} else if res := op.UpdateClosestSet(m.Body, n.Self.ID); res.Malformed() {
		n.log.Debug("Malformed response", "op", op.OperationID, "from", m.Sender, "body", fmt.Sprintf("%T", m.Body))
		op.Refund()
	}

	// 5. Counters and discovery
	op.RecordResponse()

	// 6. Next requests, or finish
	return n.continueLookup(op)
}

// HandleTimeout gives up on a request that was never answered, or on a lookup
// handed to another domain whose result never came back. Timeouts for
// requests that already got their reply are ignored.
func (n *Node) HandleTimeout(m *Message) error {
	if !n.tracker.Resolve(m.AckID) {
		return nil
	}
	if h, ok := m.Body.(Handoff); ok {
		n.log.Debug("Remote lookup timed out", "dest", m.Target, "ticket", h.Ticket)
		n.report(LookupResult{Source: n.Self, Destination: m.Target, Started: h.Started, Messages: 1, Ticket: h.Ticket})
		return nil
	}

	op, ok := n.sessions.Get(m.OperationID)
	if !ok {
		return fmt.Errorf("%w: op %d, timeout for request %d", ErrMissingSession, m.OperationID, m.AckID)
	}
	n.log.Trace("Request timed out", "op", op.OperationID, "peer", m.Sender)

	op.Refund()
	return n.continueLookup(op)
}

func (n *Node) continueLookup(op *FindOperation) error {
	for op.Available() > 0 {
		c, ok := op.GetNeighbour()
		if !ok {
			if op.Available() == n.cfg.Alpha {
				return n.terminate(op)
			}
			// Still waiting on outstanding replies
			return nil
		}
		n.sendRequest(op, c)
		op.NrMessages++
		op.NrHops++
	}
	return nil
}

func (n *Node) terminate(op *FindOperation) error {
	n.sessions.Delete(op.OperationID)

	if op.Purpose == Bootstrap {
		n.log.Debug("Bootstrap lookup finished", "op", op.OperationID, "known", n.RoutingTable.Size())
		return nil
	}

	res := op.Result()
	if op.Source.ID == n.Self.ID || n.cfg.Variant.Scope == Intra {
		n.report(res)
		return nil
	}
	return n.forwardResult(res)
}
