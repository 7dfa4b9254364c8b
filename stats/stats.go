package stats

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/kutluhann/bridged-kademlia-sim/dht"
)

// IncrementalStats keeps running aggregates of a series without storing it.
type IncrementalStats struct {
	N      int     `json:"n"`
	Sum    float64 `json:"sum"`
	SqrSum float64 `json:"sqr_sum"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

func (s *IncrementalStats) Add(x float64) {
	if s.N == 0 || x < s.Min {
		s.Min = x
	}
	if s.N == 0 || x > s.Max {
		s.Max = x
	}
	s.N++
	s.Sum += x
	s.SqrSum += x * x
}

func (s IncrementalStats) Average() float64 {
	if s.N == 0 {
		return 0
	}
	return s.Sum / float64(s.N)
}

func (s IncrementalStats) Variance() float64 {
	if s.N < 2 {
		return 0
	}
	avg := s.Average()
	v := (s.SqrSum - float64(s.N)*avg*avg) / float64(s.N-1)
	return math.Max(v, 0)
}

func (s IncrementalStats) String() string {
	return fmt.Sprintf("%d %g %g %g", s.N, s.Min, s.Average(), s.Max)
}

// ScopeStats aggregates the lookups of one scope. Latency is in milliseconds.
type ScopeStats struct {
	Hops         IncrementalStats `json:"hops"`
	ShortestHops IncrementalStats `json:"shortest_hops"`
	Messages     IncrementalStats `json:"messages"`
	Latency      IncrementalStats `json:"latency_ms"`
	Successes    int              `json:"successes"`
	Failures     int              `json:"failures"`
}

func (s *ScopeStats) add(rec dht.LookupRecord) {
	s.Hops.Add(float64(rec.Hops))
	s.ShortestHops.Add(float64(rec.ShortestHops))
	s.Messages.Add(float64(rec.Messages))
	s.Latency.Add(float64(rec.Latency) / float64(time.Millisecond))
	if rec.Outcome == dht.Success {
		s.Successes++
	} else {
		s.Failures++
	}
}

func (s ScopeStats) Completed() int {
	return s.Successes + s.Failures
}

// SuccessRatio is successes over completed lookups, 0 before any completed.
func (s ScopeStats) SuccessRatio() float64 {
	if s.Completed() == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Completed())
}

type Snapshot struct {
	RunID   string     `json:"run_id"`
	Overall ScopeStats `json:"overall"`
	Intra   ScopeStats `json:"intra"`
	Inter   ScopeStats `json:"inter"`
}

// Collector is the simulation's statistics sink. Reports come from the
// simulation loop while the HTTP API may read snapshots concurrently.
type Collector struct {
	mu      sync.RWMutex
	runID   string
	overall ScopeStats
	intra   ScopeStats
	inter   ScopeStats
}

func NewCollector(runID string) *Collector {
	return &Collector{runID: runID}
}

func (c *Collector) Report(rec dht.LookupRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.overall.add(rec)
	if rec.Scope == dht.Inter {
		c.inter.add(rec)
	} else {
		c.intra.add(rec)
	}
}

func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		RunID:   c.runID,
		Overall: c.overall,
		Intra:   c.intra,
		Inter:   c.inter,
	}
}
