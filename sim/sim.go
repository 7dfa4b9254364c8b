package sim

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/ethereum/go-ethereum/log"
	"github.com/kutluhann/bridged-kademlia-sim/config"
	"github.com/kutluhann/bridged-kademlia-sim/dht"
	"github.com/kutluhann/bridged-kademlia-sim/stats"
	"github.com/rs/xid"
	"golang.org/x/exp/rand"
)

// Simulation wires a configured population, its traffic, churn and
// statistics to one engine.
type Simulation struct {
	cfg   *config.Config
	runID string

	rng      *rand.Rand
	ids      dht.IDGenerator
	engine   *Engine
	stats    *stats.Collector
	world    *World
	churn    *Turbulence
	traffic  *Traffic
	observer *Observer

	status atomic.Pointer[Status]
}

type Option func(*Simulation)

func WithRecorder(r Recorder) Option {
	return func(s *Simulation) { s.engine.SetRecorder(r) }
}

func WithRunID(id string) Option {
	return func(s *Simulation) {
		s.runID = id
		s.stats = stats.NewCollector(id)
	}
}

func New(cfg *config.Config, opts ...Option) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runID := xid.New().String()
	rng := rand.New(rand.NewSource(cfg.Seed))
	s := &Simulation{
		cfg:    cfg,
		runID:  runID,
		rng:    rng,
		engine: NewEngine(rng, cfg.LatencyMin, cfg.LatencyMax),
		stats:  stats.NewCollector(runID),
	}
	for _, opt := range opts {
		opt(s)
	}

	env := dht.Env{Scheduler: s.engine, Stats: s.stats, IDs: &s.ids, Rand: rng}
	s.world = newWorld(s.engine, cfg.Protocol(), env, rng, cfg.Seed, cfg.Domains)
	if err := s.world.populate(cfg.Nodes, cfg.BridgesPerDomain, cfg.SeedNeighbours); err != nil {
		return nil, fmt.Errorf("sim: populate: %w", err)
	}
	s.churn = NewTurbulence(s.world, rng, cfg)
	s.traffic = NewTraffic(s.world, cfg.Variant().Scope)
	s.observer = &Observer{sim: s}

	status := s.buildStatus()
	s.status.Store(&status)
	return s, nil
}

// Run plays the simulation for the configured duration and returns the final
// statistics. Cancelling ctx stops the run early with ctx's error.
func (s *Simulation) Run(ctx context.Context) (stats.Snapshot, error) {
	log.Info("Starting simulation", "run", s.runID, "strategy", s.cfg.Variant(), "nodes", s.cfg.Nodes,
		"domains", s.cfg.Domains, "bits", s.cfg.Bits, "k", s.cfg.K, "alpha", s.cfg.Alpha, "seed", s.cfg.Seed)

	// Every initial node refreshes its table once, spread over the first
	// traffic period.
	for _, n := range s.engine.Nodes() {
		s.world.bootstrap(n, time.Duration(s.rng.Int63n(int64(s.cfg.TrafficPeriod))))
	}

	s.engine.Every(s.cfg.TrafficPeriod, s.traffic.Execute)
	if s.cfg.PIdle < 1 {
		s.engine.Every(s.cfg.ChurnPeriod, func() {
			if err := s.churn.Execute(); err != nil {
				log.Error("Churn step failed", "err", err)
			}
		})
	}
	s.engine.Every(s.cfg.ObserverPeriod, s.observer.Observe)

	err := s.engine.RunUntil(ctx, mclock.AbsTime(s.cfg.Duration))
	s.observer.Observe()
	if err != nil {
		return s.stats.Snapshot(), fmt.Errorf("sim: run %s interrupted: %w", s.runID, err)
	}
	return s.stats.Snapshot(), nil
}

func (s *Simulation) RunID() string {
	return s.runID
}

func (s *Simulation) Engine() *Engine {
	return s.engine
}

func (s *Simulation) Stats() *stats.Collector {
	return s.stats
}

func (s *Simulation) Traffic() *Traffic {
	return s.traffic
}

func (s *Simulation) Churn() *Turbulence {
	return s.churn
}

func (s *Simulation) Config() *config.Config {
	return s.cfg
}

// Status returns the most recently published status.
func (s *Simulation) Status() Status {
	return *s.status.Load()
}

func (s *Simulation) buildStatus() Status {
	st := Status{
		RunID:     s.runID,
		Strategy:  s.cfg.Variant().String(),
		SimTimeMs: time.Duration(s.engine.Now()).Milliseconds(),
		Delivered: s.engine.Delivered(),
		Dropped:   s.engine.Dropped(),
		Failures:  s.engine.Failures(),
		Joined:    s.churn.Added,
		Failed:    s.churn.Removed,
	}
	for _, n := range s.engine.Nodes() {
		ns := NodeStatus{
			ID:         n.Self.ID.String(),
			Domain:     n.Self.Domain,
			Up:         s.engine.IsUp(n.Self.ID),
			Bridge:     n.IsBridge,
			KnownPeers: n.RoutingTable.Size(),
			Bridges:    len(n.Bridges()),
			Lookups:    n.Sessions().Len(),
			Pending:    n.Tracker().Len(),
			Stalled:    len(n.Tracker().Overdue(s.engine.Now())),
			Buckets:    make(map[int]int),
		}
		if op, ok := n.Sessions().Oldest(); ok {
			ns.OldestMs = s.engine.Now().Sub(op.Started).Milliseconds()
		}
		for i, size := range n.RoutingTable.BucketSizes() {
			if size > 0 {
				ns.Buckets[i] = size
			}
		}
		st.NodesTotal++
		if ns.Up {
			st.NodesUp++
		}
		st.ActiveLookups += ns.Lookups
		st.Nodes = append(st.Nodes, ns)
	}
	return st
}
