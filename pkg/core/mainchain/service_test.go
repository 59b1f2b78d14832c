package mainchain

import (
	"testing"
	"time"

	"github.com/chronodrachma/chrd/pkg/core/consensus"
	"github.com/chronodrachma/chrd/pkg/core/mainchain/transport"
)

func newTestService(t *testing.T, store *Store, srv *transport.Server) *Service {
	t.Helper()
	gossip := NewGossip(store, consensus.NewSHA256Hasher(), nil, PrivateNetwork, nil)
	return NewService(store, srv, nil, gossip, PrivateNetwork)
}

// waitForPeer polls until srv reports at least one connected peer, or fails
// the test after a short timeout.
func waitForPeer(t *testing.T, srv *transport.Server) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if srv.PeerCount() > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for peer connection")
}

// runUntil ticks svc until want is reached or attempts are exhausted.
func runUntil(t *testing.T, svc *Service, want State, attempts int) {
	t.Helper()
	for i := 0; i < attempts; i++ {
		svc.tick()
		if svc.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("service never reached state %s, stuck in %s", want, svc.State())
}

func TestInitialStateByMode(t *testing.T) {
	if got := InitialState(Standalone); got != Synchronised {
		t.Errorf("Standalone initial state = %s, want Synchronised", got)
	}
	if got := InitialState(PrivateNetwork); got != RequestHeaviestChain {
		t.Errorf("PrivateNetwork initial state = %s, want RequestHeaviestChain", got)
	}
}

func TestServicePullsHeaviestChainFromPeer(t *testing.T) {
	remoteStore := newTestStore(t)
	g := mustGenesis(t, remoteStore)
	b1 := child(g, 1, 0)
	b2 := child(b1, 2, 0)
	b3 := child(b2, 3, 0)
	remoteStore.AddBlock(b1)
	remoteStore.AddBlock(b2)
	remoteStore.AddBlock(b3)

	remoteSrv := transport.NewServer(transport.ServerConfig{ListenAddr: "127.0.0.1:0"})
	if err := remoteSrv.Start(); err != nil {
		t.Fatalf("remote Start: %v", err)
	}
	defer remoteSrv.Stop()
	NewProtocol(remoteStore).RegisterTransport(remoteSrv)

	localStore := newTestStore(t)
	localSrv := transport.NewServer(transport.ServerConfig{ListenAddr: "127.0.0.1:0"})
	if err := localSrv.Start(); err != nil {
		t.Fatalf("local Start: %v", err)
	}
	defer localSrv.Stop()

	localSrv.Connect(remoteSrv.Addr())
	waitForPeer(t, localSrv)
	waitForPeer(t, remoteSrv)

	svc := newTestService(t, localStore, localSrv)
	if svc.State() != RequestHeaviestChain {
		t.Fatalf("initial state = %s, want RequestHeaviestChain", svc.State())
	}

	runUntil(t, svc, Synchronised, 200)

	if localStore.GetHeaviestBlockHash() != b3.Hash {
		t.Errorf("local heaviest tip = %x, want b3", localStore.GetHeaviestBlockHash())
	}
	if localStore.HasMissingBlocks() {
		t.Error("local store should have no missing blocks once synchronised")
	}
}

func TestOnWaitFromTipClosesGap(t *testing.T) {
	s := newTestStore(t)
	g := mustGenesis(t, s)

	leftEdge := g
	for i := uint64(1); i <= 5; i++ {
		leftEdge = child(leftEdge, i, 0)
		s.AddBlock(leftEdge)
	}

	b6 := child(leftEdge, 6, 0)
	b7 := child(b6, 7, 0)
	b8 := child(b7, 8, 0)
	batch := []*Block{b6, b7, b8} // ascending, oldest first

	svc := newTestService(t, s, nil)
	svc.retrievalPhase = RequestFromTip
	svc.leftEdge = leftEdge
	svc.currentPeerAddr = "peer-1"
	svc.pendingDecode = DecodeHeaviestChainResponse
	svc.currentRequest = NewPromise()
	svc.currentRequest.Resolve(encodeBlockSlice(batch))

	svc.onWaitFromTip()

	if svc.State() != Synchronising {
		t.Fatalf("state after closed gap = %s, want Synchronising", svc.State())
	}
	if s.GetHeaviestBlockHash() != b8.Hash {
		t.Errorf("heaviest tip = %x, want b8", s.GetHeaviestBlockHash())
	}
	if svc.rightEdge != nil {
		t.Error("rightEdge should be cleared once the gap closes")
	}
}

func TestOnWaitFromTipPartialGapContinuesBackward(t *testing.T) {
	s := newTestStore(t)
	g := mustGenesis(t, s)

	leftEdge := g
	for i := uint64(1); i <= 5; i++ {
		leftEdge = child(leftEdge, i, 0)
		s.AddBlock(leftEdge)
	}

	// Batch covers blocks 7 and 8 only; block 6 (the actual glue point)
	// is still missing, so the gap should not close yet.
	b6 := child(leftEdge, 6, 0)
	b7 := child(b6, 7, 0)
	b8 := child(b7, 8, 0)
	batch := []*Block{b7, b8}

	svc := newTestService(t, s, nil)
	svc.retrievalPhase = RequestFromTip
	svc.leftEdge = leftEdge
	svc.currentPeerAddr = "peer-1"
	svc.pendingDecode = DecodeHeaviestChainResponse
	svc.currentRequest = NewPromise()
	svc.currentRequest.Resolve(encodeBlockSlice(batch))

	svc.onWaitFromTip()

	if svc.State() != FurtherFromTip {
		t.Fatalf("state after partial gap = %s, want FurtherFromTip", svc.State())
	}
	if svc.rightEdge == nil || svc.rightEdge.Hash != b7.Hash {
		t.Fatalf("rightEdge = %v, want b7", svc.rightEdge)
	}
	if svc.nextHashRequested != b7.PreviousHash {
		t.Errorf("nextHashRequested = %x, want b7.PreviousHash", svc.nextHashRequested)
	}
}

func TestOnWaitFromTipRejectsEdgeMismatch(t *testing.T) {
	s := newTestStore(t)
	g := mustGenesis(t, s)

	leftEdge := g
	for i := uint64(1); i <= 3; i++ {
		leftEdge = child(leftEdge, i, 0)
		s.AddBlock(leftEdge)
	}

	wrongRightEdge := child(leftEdge, 99, 0) // unrelated stray block, never added
	batch := []*Block{child(leftEdge, 4, 0)}

	svc := newTestService(t, s, nil)
	svc.retrievalPhase = FurtherFromTip
	svc.leftEdge = leftEdge
	svc.rightEdge = wrongRightEdge
	svc.currentPeerAddr = "peer-1"
	svc.pendingDecode = DecodeHeaviestChainResponse
	svc.currentRequest = NewPromise()
	svc.currentRequest.Resolve(encodeBlockSlice(batch))

	svc.onWaitFromTip()

	if svc.State() != FurtherFromTip {
		t.Fatalf("state after edge mismatch = %s, want FurtherFromTip (the retrieval phase)", svc.State())
	}
	if _, ok := s.GetBlock(batch[0].Hash); ok {
		t.Error("mismatched batch should not have been ingested")
	}
}

func TestIngestBatchRejectsGenesisMismatch(t *testing.T) {
	s := newTestStore(t)
	svc := newTestService(t, s, nil)

	alienGenesis := &Block{BlockNumber: 0, Hash: Digest{0xAB}}
	ok := svc.ingestBatch("peer-1", []*Block{alienGenesis})
	if ok {
		t.Error("ingestBatch should reject a batch whose genesis hash doesn't match")
	}
}

func TestOnSynchronisingPatchesMissingBlockViaCommonSubChain(t *testing.T) {
	remoteStore := newTestStore(t)
	g := mustGenesis(t, remoteStore)
	b1 := child(g, 1, 0)
	b2 := child(b1, 2, 0)
	remoteStore.AddBlock(b1)
	remoteStore.AddBlock(b2)
	remoteProtocol := NewProtocol(remoteStore)

	localStore := newTestStore(t)
	// b2 arrives loose: its parent b1 is unknown locally.
	if status := localStore.AddBlock(b2); status != Loose {
		t.Fatalf("AddBlock(b2) = %v, want Loose", status)
	}

	remoteSrv := transport.NewServer(transport.ServerConfig{ListenAddr: "127.0.0.1:0"})
	if err := remoteSrv.Start(); err != nil {
		t.Fatalf("remote Start: %v", err)
	}
	defer remoteSrv.Stop()
	remoteProtocol.RegisterTransport(remoteSrv)

	localSrv := transport.NewServer(transport.ServerConfig{ListenAddr: "127.0.0.1:0"})
	if err := localSrv.Start(); err != nil {
		t.Fatalf("local Start: %v", err)
	}
	defer localSrv.Stop()

	localSrv.Connect(remoteSrv.Addr())
	waitForPeer(t, localSrv)
	waitForPeer(t, remoteSrv)

	svc := newTestService(t, localStore, localSrv)
	svc.setState(Synchronising)

	runUntil(t, svc, Synchronised, 200)

	if localStore.HasMissingBlocks() {
		t.Error("local store should have patched its missing block")
	}
	if localStore.GetHeaviestBlockHash() != b2.Hash {
		t.Errorf("heaviest tip = %x, want b2", localStore.GetHeaviestBlockHash())
	}
}
