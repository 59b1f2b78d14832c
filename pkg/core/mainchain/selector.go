package mainchain

import (
	"math/rand"
	"sync"
	"time"
)

// peerSelectorRNG is process-wide and shared across every Service
// instance in the node, mirroring the source's own file-static generator:
// peer selection is meant to spread load across restarts and instances,
// not to be individually seeded per caller. Seeded from wall-clock time so
// distinct node processes don't all draw the same peer order; tests that
// need determinism reseed it explicitly.
var (
	peerSelectorMu  sync.Mutex
	peerSelectorRNG = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// SeedSelector reseeds the process-wide peer selector RNG. Exposed for
// tests that need reproducible peer selection; production code should not
// call this.
func SeedSelector(seed int64) {
	peerSelectorMu.Lock()
	peerSelectorRNG = rand.New(rand.NewSource(seed))
	peerSelectorMu.Unlock()
}

// PeerLister reports the addresses currently reachable for RPC calls.
// transport.Server.PeerAddrs satisfies this.
type PeerLister interface {
	PeerAddrs() []string
}

// SelectRandomPeer returns a uniformly random address among peers' direct
// connections, or the empty string if there are none.
func SelectRandomPeer(peers PeerLister) string {
	addrs := peers.PeerAddrs()
	if len(addrs) == 0 {
		return ""
	}

	peerSelectorMu.Lock()
	idx := peerSelectorRNG.Intn(len(addrs))
	peerSelectorMu.Unlock()

	return addrs[idx]
}
