package sim

import (
	"fmt"
	"slices"
	"time"

	"github.com/kutluhann/bridged-kademlia-sim/constants"
	"github.com/kutluhann/bridged-kademlia-sim/dht"
	"github.com/kutluhann/bridged-kademlia-sim/id_tools"
	"golang.org/x/exp/rand"
)

// World owns the node population: who exists, in which domain, and which
// nodes bridge the domains together.
type World struct {
	engine  *Engine
	proto   dht.Config
	env     dht.Env
	rng     *rand.Rand
	seed    uint64
	names   int
	domains [][]dht.NodeID
	bridges [][]dht.Contact
}

func newWorld(engine *Engine, proto dht.Config, env dht.Env, rng *rand.Rand, seed uint64, domains int) *World {
	return &World{
		engine:  engine,
		proto:   proto,
		env:     env,
		rng:     rng,
		seed:    seed,
		domains: make([][]dht.NodeID, domains),
		bridges: make([][]dht.Contact, domains),
	}
}

// nodeName is the name a node's identifier is derived from. Names never
// repeat within a run and differ between seeds.
func nodeName(seed uint64, n int) string {
	return fmt.Sprintf("%d-%d", seed, n)
}

// spawn creates a node with a fresh identifier in domain and registers it
// with the engine.
func (w *World) spawn(domain int) (*dht.Node, error) {
	var id dht.NodeID
	for attempt := 0; ; attempt++ {
		if attempt == 16 {
			return nil, fmt.Errorf("sim: no free identifier in a %d-bit space", w.proto.Bits)
		}
		id = id_tools.FromName(nodeName(w.seed, w.names), w.proto.Bits)
		w.names++
		if _, taken := w.engine.Node(id); !taken {
			break
		}
	}

	n := dht.NewNode(dht.Contact{ID: id, Domain: domain}, w.proto, w.env)
	n.SetBridges(w.bridges[domain])
	w.engine.Add(n)
	w.domains[domain] = append(w.domains[domain], id)
	return n, nil
}

// populate creates the initial nodes round-robin over the domains, appoints
// bridges and fills every routing table with random and nearby peers of the
// same domain.
func (w *World) populate(nodes, bridgesPerDomain, seedNeighbours int) error {
	for i := 0; i < nodes; i++ {
		if _, err := w.spawn(i % len(w.domains)); err != nil {
			return err
		}
	}

	for d, members := range w.domains {
		for _, id := range members[:min(bridgesPerDomain, len(members))] {
			n, _ := w.engine.Node(id)
			n.IsBridge = true
			w.bridges[d] = append(w.bridges[d], n.Self)
		}
	}
	for d, members := range w.domains {
		for _, id := range members {
			n, _ := w.engine.Node(id)
			n.SetBridges(w.bridges[d])
			if !n.IsBridge {
				continue
			}
			for other := range w.domains {
				if other != d {
					n.SetRemoteBridges(other, w.bridges[other])
				}
			}
		}
	}

	for _, members := range w.domains {
		w.seedDomain(members, seedNeighbours)
	}
	return nil
}

func (w *World) seedDomain(members []dht.NodeID, seedNeighbours int) {
	for _, id := range members {
		n, _ := w.engine.Node(id)

		for _, i := range w.rng.Perm(len(members))[:min(seedNeighbours, len(members))] {
			n.RoutingTable.AddContact(w.contact(members[i]))
		}

		nearest := slices.Clone(members)
		slices.SortFunc(nearest, func(a, b dht.NodeID) int {
			return dht.CompareDistance(a, b, id)
		})
		for _, other := range nearest[:min(w.proto.K+1, len(nearest))] {
			n.RoutingTable.AddContact(w.contact(other))
		}
	}
}

func (w *World) contact(id dht.NodeID) dht.Contact {
	n, _ := w.engine.Node(id)
	return n.Self
}

// randomUp picks a random node that is up, from domain or from every domain
// when domain is negative, never returning one of exclude.
func (w *World) randomUp(domain int, exclude ...dht.NodeID) (*dht.Node, bool) {
	var candidates []dht.NodeID
	collect := func(members []dht.NodeID) {
		for _, id := range members {
			if w.engine.IsUp(id) && !slices.Contains(exclude, id) {
				candidates = append(candidates, id)
			}
		}
	}
	if domain < 0 {
		for _, members := range w.domains {
			collect(members)
		}
	} else {
		collect(w.domains[domain])
	}

	if len(candidates) == 0 {
		return nil, false
	}
	return w.engine.Node(candidates[w.rng.Intn(len(candidates))])
}

// bootstrap schedules the self-lookup a node runs to fill its routing table.
func (w *World) bootstrap(n *dht.Node, delay time.Duration) {
	m := w.env.IDs.NewMessage(dht.FIND_NODE, constants.BootstrapTraffic)
	m.Source = n.Self
	m.Target = n.Self
	m.Sender = n.Self
	m.Receiver = n.Self
	m.NewLookup = true
	m.Timestamp = w.engine.Now().Add(delay)
	w.engine.Schedule(delay, m, n.Self.ID)
}

func (w *World) Domains() int {
	return len(w.domains)
}
