package bridge

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"
)

type peerStatus struct {
	Addr        string    `json:"addr"`
	ConnectedAt time.Time `json:"connected_at"`
}

type statusResponse struct {
	Version string       `json:"version,omitempty"`
	Clients int          `json:"clients"`
	Peers   []peerStatus `json:"peers"`
}

// statusHandler serves the HTTP side of the muxed listen port: a liveness
// check and a JSON snapshot of connected peers.
func (s *Server) statusHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		conns := s.reg.snapshot()
		peers := make([]peerStatus, 0, len(conns))
		for _, c := range conns {
			peers = append(peers, peerStatus{Addr: c.label, ConnectedAt: c.connectedAt})
		}
		sort.Slice(peers, func(i, j int) bool {
			return peers[i].ConnectedAt.Before(peers[j].ConnectedAt)
		})

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(statusResponse{
			Version: s.cfg.Version,
			Clients: len(peers),
			Peers:   peers,
		})
	})

	return mux
}
