package sim

import (
	"math"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/kutluhann/bridged-kademlia-sim/stats"
)

// Status is a point-in-time view of a run, safe to hand to other goroutines.
type Status struct {
	RunID         string         `json:"run_id"`
	Strategy      string         `json:"strategy"`
	SimTimeMs     int64          `json:"sim_time_ms"`
	NodesUp       int            `json:"nodes_up"`
	NodesTotal    int            `json:"nodes_total"`
	ActiveLookups int            `json:"active_lookups"`
	Delivered     uint64         `json:"delivered"`
	Dropped       uint64         `json:"dropped"`
	Failures      map[string]int `json:"failures"`
	Joined        int            `json:"joined"`
	Failed        int            `json:"failed"`
	Nodes         []NodeStatus   `json:"nodes"`
}

type NodeStatus struct {
	ID         string      `json:"id"`
	Domain     int         `json:"domain"`
	Up         bool        `json:"up"`
	Bridge     bool        `json:"bridge"`
	KnownPeers int         `json:"known_peers"`
	Bridges    int         `json:"bridges"` // bridge nodes of its domain the node can forward to
	Lookups    int         `json:"lookups"`
	OldestMs   int64       `json:"oldest_lookup_ms"`
	Pending    int         `json:"pending"`
	Stalled    int         `json:"stalled"` // past their deadline, e.g. timeouts lost while the node was down
	Buckets    map[int]int `json:"buckets"` // prefix length -> contacts, non-empty buckets only
}

// Observer periodically logs progress, publishes a Status and refreshes the
// results directory.
type Observer struct {
	sim *Simulation
}

func (o *Observer) Observe() {
	s := o.sim
	snap := s.stats.Snapshot()
	status := s.buildStatus()
	s.status.Store(&status)

	overall := snap.Overall
	log.Info("Lookup statistics",
		"time", time.Duration(status.SimTimeMs)*time.Millisecond,
		"up", status.NodesUp,
		"completed", overall.Completed(),
		"success", overall.Successes,
		"failure", overall.Failures,
		"ratio", overall.SuccessRatio(),
		"hops", overall.Hops.Average(),
		"shortest", overall.ShortestHops.Average(),
		"latency_min", overall.Latency.Min,
		"latency_avg", overall.Latency.Average(),
		"latency_max", overall.Latency.Max,
		"latency_sd", math.Sqrt(overall.Latency.Variance()),
		"intra", snap.Intra.Completed(),
		"inter", snap.Inter.Completed())

	if s.cfg.ResultsDir != "" {
		if err := stats.WriteResults(s.cfg.ResultsDir, snap); err != nil {
			log.Error("Failed to write results", "dir", s.cfg.ResultsDir, "err", err)
		}
	}
}
