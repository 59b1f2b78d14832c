package rpc

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chronodrachma/chrd/pkg/core/mainchain"
	"github.com/chronodrachma/chrd/pkg/core/mainchain/transport"
)

// Server exposes the main-chain sync core over HTTP: sync status, block
// lookups and Prometheus metrics. Transaction execution has no surface
// here; that remains out of scope for this node.
type Server struct {
	store     *mainchain.Store
	svc       *mainchain.Service
	transport *transport.Server
}

func NewServer(store *mainchain.Store, svc *mainchain.Service, t *transport.Server) *Server {
	return &Server{store: store, svc: svc, transport: t}
}

func (s *Server) Start(port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/block/height", s.handleBlockByHeight)
	mux.HandleFunc("/block/hash", s.handleBlockByHash)
	mux.Handle("/metrics", promhttp.Handler())

	return http.ListenAndServe(port, mux)
}

// GET /status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	tip := s.store.GetHeaviestBlock()
	height := uint64(0)
	tipHash := mainchain.Digest{}
	if tip != nil {
		height = tip.BlockNumber
		tipHash = tip.Hash
	}

	resp := struct {
		State          string `json:"state"`
		Height         uint64 `json:"height"`
		TipHash        string `json:"tip_hash"`
		PeerCount      int    `json:"peer_count"`
		HasMissingTips bool   `json:"has_missing_tips"`
	}{
		State:          s.svc.State().String(),
		Height:         height,
		TipHash:        tipHash.Hex(),
		PeerCount:      s.transport.PeerCount(),
		HasMissingTips: s.store.HasMissingBlocks(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GET /block/height?h=<uint64>
func (s *Server) handleBlockByHeight(w http.ResponseWriter, r *http.Request) {
	hStr := r.URL.Query().Get("h")
	if hStr == "" {
		http.Error(w, "missing height parameter", http.StatusBadRequest)
		return
	}

	height, err := strconv.ParseUint(hStr, 10, 64)
	if err != nil {
		http.Error(w, "invalid height", http.StatusBadRequest)
		return
	}

	// GetHeaviestChain walks back from the tip; ask for just enough blocks
	// to reach the requested height, then scan for it among them.
	tip := s.store.GetHeaviestBlock()
	if tip == nil || height > tip.BlockNumber {
		http.Error(w, "block not found", http.StatusNotFound)
		return
	}
	chain := s.store.GetHeaviestChain(tip.BlockNumber - height + 1)
	var found *mainchain.Block
	for _, b := range chain {
		if b.BlockNumber == height {
			found = b
			break
		}
	}
	if found == nil {
		http.Error(w, "block not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(found)
}

// GET /block/hash?id=<hex>
func (s *Server) handleBlockByHash(w http.ResponseWriter, r *http.Request) {
	idStr := r.URL.Query().Get("id")
	if idStr == "" {
		http.Error(w, "missing id parameter", http.StatusBadRequest)
		return
	}

	hash, err := mainchain.DigestFromHex(idStr)
	if err != nil {
		http.Error(w, "invalid hash format", http.StatusBadRequest)
		return
	}

	block, ok := s.store.GetBlock(hash)
	if !ok {
		http.Error(w, "block not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(block)
}
