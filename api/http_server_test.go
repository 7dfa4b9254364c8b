package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kutluhann/bridged-kademlia-sim/dht"
	"github.com/kutluhann/bridged-kademlia-sim/sim"
	"github.com/kutluhann/bridged-kademlia-sim/stats"
)

type fixedStatus sim.Status

func (f fixedStatus) Status() sim.Status { return sim.Status(f) }

func newTestServer() *HTTPServer {
	collector := stats.NewCollector("run-1")
	collector.Report(dht.LookupRecord{Outcome: dht.Success, Scope: dht.Intra, Hops: 2, ShortestHops: 2, Messages: 4})
	collector.Report(dht.LookupRecord{Outcome: dht.Failure, Scope: dht.Inter})

	status := fixedStatus{
		RunID:      "run-1",
		Strategy:   "naive-inter",
		NodesUp:    2,
		NodesTotal: 3,
		Failures:   map[string]int{"no-bridge": 1},
		Nodes: []sim.NodeStatus{
			{ID: "ab01", Domain: 0, Up: true, Bridge: true, KnownPeers: 1, Buckets: map[int]int{3: 1}},
			{ID: "ab02", Domain: 1, Up: true, KnownPeers: 2, Buckets: map[int]int{1: 2}},
			{ID: "cd03", Domain: 1, KnownPeers: 0},
		},
	}
	return NewHTTPServer(status, collector, 0)
}

func get(t *testing.T, h http.Handler, target string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	if rec.Code == http.StatusOK && out != nil {
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("%s: content type %q", target, ct)
		}
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("%s: %v", target, err)
		}
	}
	return rec.Code
}

func TestStatusEndpoint(t *testing.T) {
	h := newTestServer().Handler()

	var resp StatusResponse
	if code := get(t, h, "/status", &resp); code != http.StatusOK {
		t.Fatalf("status code %d", code)
	}
	if resp.RunID != "run-1" || resp.NodesUp != 2 || resp.NodesTotal != 3 || resp.Failures["no-bridge"] != 1 {
		t.Errorf("unexpected status %+v", resp)
	}
}

func TestStatsEndpoint(t *testing.T) {
	h := newTestServer().Handler()

	var snap stats.Snapshot
	if code := get(t, h, "/stats", &snap); code != http.StatusOK {
		t.Fatalf("status code %d", code)
	}
	if snap.Overall.Completed() != 2 || snap.Intra.Successes != 1 || snap.Inter.Failures != 1 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestRoutingTableEndpoint(t *testing.T) {
	h := newTestServer().Handler()

	var all RoutingTableResponse
	if code := get(t, h, "/routing-table", &all); code != http.StatusOK || len(all.Nodes) != 3 {
		t.Fatalf("code %d, %d nodes", code, len(all.Nodes))
	}

	var some RoutingTableResponse
	if code := get(t, h, "/routing-table?node=AB", &some); code != http.StatusOK || len(some.Nodes) != 2 {
		t.Fatalf("code %d, %d nodes", code, len(some.Nodes))
	}
	if some.Nodes[0].Buckets[3] != 1 {
		t.Errorf("bucket sizes lost: %+v", some.Nodes[0])
	}

	if code := get(t, h, "/routing-table?node=ff", nil); code != http.StatusNotFound {
		t.Errorf("unknown node: code %d", code)
	}
}

func TestHealthAndMethods(t *testing.T) {
	h := newTestServer().Handler()

	var health map[string]string
	if code := get(t, h, "/health", &health); code != http.StatusOK || health["status"] != "healthy" {
		t.Errorf("health: code %d body %v", code, health)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/status", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /status: code %d", rec.Code)
	}
}
