package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/kutluhann/bridged-kademlia-sim/api"
	"github.com/kutluhann/bridged-kademlia-sim/config"
	"github.com/kutluhann/bridged-kademlia-sim/sim"
	"github.com/kutluhann/bridged-kademlia-sim/trace"
)

func main() {
	envFile := flag.String("env", "", "dotenv file with the run configuration (default ./.env if present)")
	httpPort := flag.Int("http", 0, "HTTP API port, 0 to exit once the run finishes")
	verbosity := flag.Int("verbosity", 3, "log level: 0=crit 1=error 2=warn 3=info 4=debug 5=trace")
	traceFile := flag.String("trace", "", "write a compressed message trace to this file")
	strategy := flag.String("strategy", "", "lookup strategy, e.g. naive-intra or improved-inter")
	seed := flag.Uint64("seed", 0, "random seed, 0 keeps the configured one")
	flag.Parse()

	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, log.FromLegacyLevel(*verbosity), true)))

	if err := run(*envFile, *httpPort, *traceFile, *strategy, *seed); err != nil {
		log.Crit("Simulation failed", "err", err)
	}
}

func run(envFile string, httpPort int, traceFile, strategy string, seed uint64) error {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return err
	}

	// Flags win over the environment and the dotenv file.
	if strategy != "" {
		cfg.Strategy = strategy
	}
	if seed != 0 {
		cfg.Seed = seed
	}
	if traceFile != "" {
		cfg.TraceFile = traceFile
	}

	var opts []sim.Option
	if cfg.TraceFile != "" {
		f, err := os.Create(cfg.TraceFile)
		if err != nil {
			return fmt.Errorf("create trace file: %w", err)
		}
		defer f.Close()

		rec, err := trace.NewRecorder(f)
		if err != nil {
			return err
		}
		defer func() {
			if err := rec.Close(); err != nil {
				log.Error("Failed to flush trace", "file", cfg.TraceFile, "err", err)
				return
			}
			log.Info("Trace written", "file", cfg.TraceFile, "events", rec.Len())
		}()
		opts = append(opts, sim.WithRecorder(rec))
	}

	s, err := sim.New(cfg, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snap, err := s.Run(ctx)
	if err != nil {
		return err
	}
	log.Info("Simulation finished", "run", s.RunID(),
		"completed", snap.Overall.Completed(), "ratio", snap.Overall.SuccessRatio(),
		"intra", snap.Intra.Completed(), "inter", snap.Inter.Completed())

	if httpPort == 0 {
		return nil
	}
	server := api.NewHTTPServer(s, s.Stats(), httpPort)
	errc := make(chan error, 1)
	go func() { errc <- server.Start() }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return nil
	}
}
