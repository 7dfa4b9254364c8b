package dht

import "fmt"

// pickBridge draws one bridge node uniformly from list.
func (n *Node) pickBridge(list []Contact) (Contact, error) {
	if len(list) == 0 {
		return Contact{}, ErrNoBridgeNode
	}
	return list[n.env.Rand.Intn(len(list))], nil
}

// forwardResult hands a lookup that finished away from its source to one of
// this domain's bridge nodes.
func (n *Node) forwardResult(res LookupResult) error {
	bridge, err := n.pickBridge(n.bridges)
	if err != nil {
		n.reportLost(res)
		return fmt.Errorf("%w: domain %d, op %d", err, n.Self.Domain, res.OperationID)
	}
	n.sendResult(res, bridge)
	return nil
}

// handleResult moves a finished lookup one step closer to its source: the
// source records it, a node of the source's domain delivers it directly, a
// bridge crosses into the source's domain, anyone else asks a local bridge.
func (n *Node) handleResult(res LookupResult) error {
	switch {
	case res.Source.ID == n.Self.ID:
		if res.Ticket != 0 && !n.tracker.Resolve(res.Ticket) {
			n.log.Debug("Dropped late lookup result", "op", res.OperationID, "ticket", res.Ticket)
			return nil
		}
		n.report(res)
		return nil
	case res.Source.Domain == n.Self.Domain:
		n.sendResult(res, res.Source)
		return nil
	case n.IsBridge:
		bridge, err := n.pickBridge(n.remoteBridges[res.Source.Domain])
		if err != nil {
			n.reportLost(res)
			return fmt.Errorf("%w: domain %d, op %d", err, res.Source.Domain, res.OperationID)
		}
		n.sendResult(res, bridge)
		return nil
	}
	return n.forwardResult(res)
}

func (n *Node) sendResult(res LookupResult, to Contact) {
	res.Messages++

	msg := n.env.IDs.NewMessage(RESPONSE, res)
	msg.OperationID = res.OperationID
	msg.Source = res.Source
	msg.Target = res.Destination
	msg.Sender = n.Self
	msg.Receiver = to
	msg.Timestamp = n.env.Scheduler.Now()
	n.send(msg)
}

// handleHandoff takes over a lookup passed along by another node. In the key's
// own domain the lookup starts here; elsewhere it moves on towards a bridge.
func (n *Node) handleHandoff(m *Message) error {
	h, ok := m.Body.(Handoff)
	if !ok {
		h = Handoff{Started: m.Timestamp}
	}
	if m.Target.Domain == n.Self.Domain {
		return n.startSession(m.Source, m.Target, Measured, h)
	}
	return n.passHandoff(m.Source, m.Target, h)
}

func (n *Node) passHandoff(source, target Contact, h Handoff) error {
	candidates := n.bridges
	if n.IsBridge {
		candidates = n.remoteBridges[target.Domain]
	}
	bridge, err := n.pickBridge(candidates)
	if err != nil {
		n.reportLost(LookupResult{Source: source, Destination: target, Started: h.Started, Messages: h.Messages, Ticket: h.Ticket})
		return fmt.Errorf("%w: handoff from domain %d to %d", err, n.Self.Domain, target.Domain)
	}

	h.Messages++
	msg := n.env.IDs.NewMessage(ROUTE, h)
	msg.NewLookup = true
	msg.Source = source
	msg.Target = target
	msg.Sender = n.Self
	msg.Receiver = bridge
	msg.Timestamp = n.env.Scheduler.Now()
	n.send(msg)
	return nil
}

// reportLost counts a lookup that cannot reach its source as failed. A lookup
// its source is waiting for is left to the source's timeout, so it is counted
// once.
func (n *Node) reportLost(res LookupResult) {
	if res.Ticket != 0 {
		if res.Source.ID != n.Self.ID {
			return
		}
		n.tracker.Resolve(res.Ticket)
	}
	res.Success = false
	n.report(res)
}
