package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/kutluhann/bridged-kademlia-sim/config"
	"github.com/kutluhann/bridged-kademlia-sim/sim"
	"github.com/kutluhann/bridged-kademlia-sim/stats"
	"golang.org/x/sync/errgroup"
)

// Launcher runs the same configuration under consecutive seeds, a few runs at
// a time, and writes each run's results to its own directory.
func main() {
	envFile := flag.String("env", "", "dotenv file shared by every run")
	runs := flag.Int("runs", 10, "how many runs to launch")
	parallel := flag.Int("parallel", 4, "runs executing at the same time")
	baseSeed := flag.Uint64("seed", 1, "seed of the first run, incremented per run")
	outDir := flag.String("out", "sim_data", "parent directory of the per-run results")
	flag.Parse()

	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, log.LevelInfo, true)))

	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	base, err := config.Load(files...)
	if err != nil {
		log.Crit("Invalid configuration", "err", err)
	}

	// Clean up previous sweep
	if err := os.RemoveAll(*outDir); err != nil {
		log.Crit("Failed to clean output directory", "dir", *outDir, "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snaps := make([]stats.Snapshot, *runs)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(*parallel)
	for i := 0; i < *runs; i++ {
		i := i
		cfg := *base
		cfg.Seed = *baseSeed + uint64(i)
		cfg.ResultsDir = filepath.Join(*outDir, fmt.Sprintf("run_%d", i))
		cfg.TraceFile = ""

		g.Go(func() error {
			s, err := sim.New(&cfg)
			if err != nil {
				return err
			}
			snap, err := s.Run(ctx)
			if err != nil {
				return err
			}
			snaps[i] = snap
			log.Info("Run finished", "run", i, "seed", cfg.Seed, "id", s.RunID(), "dir", cfg.ResultsDir,
				"completed", snap.Overall.Completed(), "ratio", snap.Overall.SuccessRatio())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Crit("Sweep failed", "err", err)
	}

	var ratio, hops stats.IncrementalStats
	for _, snap := range snaps {
		ratio.Add(snap.Overall.SuccessRatio())
		hops.Add(snap.Overall.Hops.Average())
	}
	log.Info("Sweep finished", "runs", *runs, "strategy", base.Strategy,
		"ratio", ratio.String(), "hops", hops.String())
}
