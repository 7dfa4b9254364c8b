package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/kutluhann/bridged-kademlia-sim/sim"
	"github.com/kutluhann/bridged-kademlia-sim/stats"
)

// StatusSource publishes the latest status of a run
type StatusSource interface {
	Status() sim.Status
}

// StatusResponse summarises the run without the per-node detail
type StatusResponse struct {
	RunID         string         `json:"run_id"`
	Strategy      string         `json:"strategy"`
	SimTimeMs     int64          `json:"sim_time_ms"`
	NodesUp       int            `json:"nodes_up"`
	NodesTotal    int            `json:"nodes_total"`
	ActiveLookups int            `json:"active_lookups"`
	Delivered     uint64         `json:"delivered"`
	Dropped       uint64         `json:"dropped"`
	Failures      map[string]int `json:"failures"`
}

// RoutingTableResponse lists the routing table shape of the requested nodes
type RoutingTableResponse struct {
	Nodes []sim.NodeStatus `json:"nodes"`
}

// HTTPServer exposes a running simulation over read-only HTTP endpoints
type HTTPServer struct {
	Source StatusSource
	Stats  *stats.Collector
	Port   int
}

// NewHTTPServer creates a new HTTP server instance
func NewHTTPServer(source StatusSource, collector *stats.Collector, port int) *HTTPServer {
	return &HTTPServer{
		Source: source,
		Stats:  collector,
		Port:   port,
	}
}

// Handler returns the routes served by the API
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/routing-table", s.handleRoutingTable)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start begins listening for HTTP requests
func (s *HTTPServer) Start() error {
	addr := fmt.Sprintf(":%d", s.Port)
	log.Info("Starting HTTP server", "addr", addr,
		"endpoints", "/status /stats /routing-table /health")
	return http.ListenAndServe(addr, s.Handler())
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	st := s.Source.Status()
	writeJSON(w, StatusResponse{
		RunID:         st.RunID,
		Strategy:      st.Strategy,
		SimTimeMs:     st.SimTimeMs,
		NodesUp:       st.NodesUp,
		NodesTotal:    st.NodesTotal,
		ActiveLookups: st.ActiveLookups,
		Delivered:     st.Delivered,
		Dropped:       st.Dropped,
		Failures:      st.Failures,
	})
}

// handleStats returns the lookup statistics collected so far
func (s *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.Stats.Snapshot())
}

// handleRoutingTable lists every node, or only those whose hex ID starts with
// the node query parameter.
func (s *HTTPServer) handleRoutingTable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Enable CORS if a dashboard runs separately
	w.Header().Set("Access-Control-Allow-Origin", "*")

	prefix := strings.ToLower(r.URL.Query().Get("node"))
	resp := RoutingTableResponse{Nodes: []sim.NodeStatus{}}
	for _, n := range s.Source.Status().Nodes {
		if strings.HasPrefix(n.ID, prefix) {
			resp.Nodes = append(resp.Nodes, n)
		}
	}
	if prefix != "" && len(resp.Nodes) == 0 {
		http.Error(w, "Node not found", http.StatusNotFound)
		return
	}
	writeJSON(w, resp)
}

// handleHealth is a simple health check endpoint
func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]string{
		"status": "healthy",
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("Failed to write response", "err", err)
	}
}
