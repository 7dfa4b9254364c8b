package sim

import (
	"github.com/ethereum/go-ethereum/log"
	"github.com/kutluhann/bridged-kademlia-sim/config"
	"golang.org/x/exp/rand"
)

// Turbulence adds and fails nodes while the simulation runs. Each execution
// idles, adds a node or fails one, with the configured probabilities and
// within the configured size range.
type Turbulence struct {
	world   *World
	rng     *rand.Rand
	pIdle   float64
	pAdd    float64
	minSize int
	maxSize int

	Added   int
	Removed int
}

func NewTurbulence(world *World, rng *rand.Rand, cfg *config.Config) *Turbulence {
	return &Turbulence{
		world:   world,
		rng:     rng,
		pIdle:   cfg.PIdle,
		pAdd:    cfg.PAdd,
		minSize: cfg.MinSize,
		maxSize: cfg.MaxSize,
	}
}

func (t *Turbulence) Execute() error {
	dice := t.rng.Float64()
	if dice < t.pIdle {
		return nil
	}

	size := t.world.engine.UpCount()
	if dice < t.pIdle+t.pAdd {
		if size >= t.maxSize {
			return nil
		}
		return t.add()
	}
	if size > t.minSize {
		t.remove()
	}
	return nil
}

func (t *Turbulence) add() error {
	domain := t.rng.Intn(t.world.Domains())
	n, err := t.world.spawn(domain)
	if err != nil {
		return err
	}
	t.Added++

	seed, ok := t.world.randomUp(domain, n.Self.ID)
	if !ok {
		log.Debug("Joined an empty domain", "node", n.Self)
		return nil
	}
	n.RoutingTable.AddContact(seed.Self)
	t.world.bootstrap(n, 0)
	log.Debug("Node joined", "node", n.Self, "bootstrap", seed.Self)
	return nil
}

func (t *Turbulence) remove() {
	victim, ok := t.world.randomUp(-1)
	if !ok {
		return
	}
	t.world.engine.SetUp(victim.Self.ID, false)
	t.Removed++
	log.Debug("Node failed", "node", victim.Self)
}
