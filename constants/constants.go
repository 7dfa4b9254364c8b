package constants

import "time"

const (
	Salt         = "bridged-kademlia-sim"
	KeySizeBytes = 32 // SHA3-256
	MaxBits      = KeySizeBytes * 8

	Bits  = 160
	K     = 20
	Alpha = 3 // Concurrency parameter

	// Body tags carried by FIND_NODE messages
	BootstrapTraffic = "Bootstrap traffic"
	GeneratedTraffic = "Automatically Generated Traffic"

	ResultsDir = "results"
)

// Simulation defaults
const (
	Domains          = 2
	Nodes            = 200
	BridgesPerDomain = 2
	SeedNeighbours   = 2 * K

	Duration       = 10 * time.Minute
	LatencyMin     = 20 * time.Millisecond
	LatencyMax     = 120 * time.Millisecond
	RequestTimeout = 2 * time.Second
	LookupTimeout  = 30 * time.Second
	TrafficPeriod  = 500 * time.Millisecond
	ChurnPeriod    = 5 * time.Second
	ObserverPeriod = time.Minute
)
