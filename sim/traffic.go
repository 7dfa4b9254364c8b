package sim

import (
	"github.com/kutluhann/bridged-kademlia-sim/constants"
	"github.com/kutluhann/bridged-kademlia-sim/dht"
)

// Traffic starts one measured lookup per execution between two random live
// nodes. Under the intra scope both ends share a domain.
type Traffic struct {
	world *World
	scope dht.Scope

	Generated int
}

func NewTraffic(world *World, scope dht.Scope) *Traffic {
	return &Traffic{world: world, scope: scope}
}

func (t *Traffic) Execute() {
	src, ok := t.world.randomUp(-1)
	if !ok {
		return
	}
	domain := src.Self.Domain
	if t.scope == dht.Inter {
		domain = -1
	}
	dst, ok := t.world.randomUp(domain, src.Self.ID)
	if !ok {
		return
	}

	now := t.world.engine.Now()
	m := t.world.env.IDs.NewMessage(dht.FIND_NODE, constants.GeneratedTraffic)
	m.Source = src.Self
	m.Target = dst.Self
	m.Sender = src.Self
	m.Receiver = src.Self
	m.NewLookup = true
	m.Timestamp = now
	t.world.engine.Schedule(0, m, src.Self.ID)
	t.Generated++
}
