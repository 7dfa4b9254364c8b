package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteResults stores a snapshot under dir, one small file per metric and
// scope plus a summary.json with everything.
func WriteResults(dir string, snap Snapshot) error {
	scopes := []struct {
		name  string
		stats ScopeStats
	}{
		{"OVERALL", snap.Overall},
		{"INTRA", snap.Intra},
		{"INTER", snap.Inter},
	}

	for _, s := range scopes {
		files := map[string]float64{
			filepath.Join("hops", "avgHops-"+s.name+".txt"):                 s.stats.Hops.Average(),
			filepath.Join("hops", "shortestHops-"+s.name+".txt"):            s.stats.ShortestHops.Average(),
			filepath.Join("latency", "avgLatency-"+s.name+".txt"):           s.stats.Latency.Average(),
			filepath.Join("messages", "avgMessages-"+s.name+".txt"):         s.stats.Messages.Average(),
			filepath.Join("successratio", "avgSR-"+s.name+".txt"):           s.stats.SuccessRatio(),
			filepath.Join("successratio", "completedLookups-"+s.name+".txt"): float64(s.stats.Completed()),
		}
		for name, value := range files {
			if err := writeValue(filepath.Join(dir, name), value); err != nil {
				return err
			}
		}
	}

	summary, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("stats: encode summary: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "summary.json"), summary, 0o644); err != nil {
		return fmt.Errorf("stats: write summary: %w", err)
	}
	return nil
}

func writeValue(path string, value float64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("stats: create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%g\n", value)), 0o644); err != nil {
		return fmt.Errorf("stats: write %s: %w", path, err)
	}
	return nil
}
