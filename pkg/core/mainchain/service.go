package mainchain

import (
	"log"
	"sync"
	"time"

	"github.com/chronodrachma/chrd/pkg/core/mainchain/transport"
	"github.com/chronodrachma/chrd/pkg/core/mainchain/trust"
	"github.com/chronodrachma/chrd/pkg/telemetry"
)

// MaxChainRequestSize bounds how many blocks a single HEAVIEST_CHAIN or
// forward TIME_TRAVEL request asks a peer for.
const MaxChainRequestSize = 10000

// MaxSubChainSize bounds how many blocks a single COMMON_SUB_CHAIN
// request asks a peer for.
const MaxSubChainSize = 1000

// State is a phase of the pull-sync state machine.
type State int

const (
	RequestHeaviestChain State = iota
	WaitForHeaviestChain
	RequestFromTip
	WaitFromTip
	FurtherFromTip
	Synchronising
	WaitingForResponse
	Synchronised
)

func (s State) String() string {
	switch s {
	case RequestHeaviestChain:
		return "RequestHeaviestChain"
	case WaitForHeaviestChain:
		return "WaitForHeaviestChain"
	case RequestFromTip:
		return "RequestFromTip"
	case WaitFromTip:
		return "WaitFromTip"
	case FurtherFromTip:
		return "FurtherFromTip"
	case Synchronising:
		return "Synchronising"
	case WaitingForResponse:
		return "WaitingForResponse"
	case Synchronised:
		return "Synchronised"
	default:
		return "Unknown"
	}
}

// InitialState picks the sync machine's starting state for mode: a
// standalone node has nobody to sync from and starts Synchronised;
// networked nodes always start by pulling the heaviest chain.
func InitialState(mode NetworkMode) State {
	if mode == Standalone {
		return Synchronised
	}
	return RequestHeaviestChain
}

// batchDecoder turns a raw RPC response payload into an ordered,
// oldest-first block batch. WaitFromTip uses one of these per pending
// request since it services two different request shapes (a plain
// heaviest-chain pull and a backward time-travel pull) through a single
// handler.
type batchDecoder func([]byte) ([]*Block, error)

// Service drives the pull-sync state machine: it requests the heaviest
// chain from peers, glues in whatever they return, and falls back to
// COMMON_SUB_CHAIN requests to patch any gaps gossip ingestion leaves
// behind.
type Service struct {
	store     *Store
	transport *transport.Server
	trust     trust.System
	gossip    *Gossip
	mode      NetworkMode

	stateMu sync.Mutex
	state   State

	currentPeerAddr     string
	currentRequest      *Promise
	pendingDecode       batchDecoder
	nextHashRequested   Digest
	leftEdge            *Block
	rightEdge           *Block
	currentMissingBlock Digest
	retrievalPhase      State

	quit chan struct{}
}

// NewService builds a Service in mode's initial state, reading and
// writing blocks through store, issuing RPC calls through srv, and
// reporting peer feedback through trustSys (which may be nil).
func NewService(store *Store, srv *transport.Server, trustSys trust.System, gossip *Gossip, mode NetworkMode) *Service {
	return &Service{
		store:             store,
		transport:         srv,
		trust:             trustSys,
		gossip:            gossip,
		mode:              mode,
		state:             InitialState(mode),
		nextHashRequested: GenesisDigest,
		quit:              make(chan struct{}),
	}
}

// State returns the service's current phase.
func (s *Service) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *Service) setState(next State) {
	s.stateMu.Lock()
	prev := s.state
	s.state = next
	s.stateMu.Unlock()
	if next != prev {
		log.Printf("mainchain: state change %s -> %s", prev, next)
	}
}

// Run drives the state machine until Stop is called. Each tick runs one
// state handler and sleeps for the delay it requests, the same
// cooperative scheduling shape the handlers below were ported from.
func (s *Service) Run() {
	for {
		select {
		case <-s.quit:
			return
		default:
		}

		if delay := s.tick(); delay > 0 {
			select {
			case <-time.After(delay):
			case <-s.quit:
				return
			}
		}
	}
}

// Stop ends a running Run loop.
func (s *Service) Stop() {
	close(s.quit)
}

func (s *Service) tick() time.Duration {
	switch s.State() {
	case RequestHeaviestChain:
		return s.onRequestHeaviestChain()
	case WaitForHeaviestChain:
		return s.onWaitForHeaviestChain()
	case RequestFromTip:
		return s.onRequestFromTip()
	case WaitFromTip:
		return s.onWaitFromTip()
	case FurtherFromTip:
		return s.onFurtherFromTip()
	case Synchronising:
		return s.onSynchronising()
	case WaitingForResponse:
		return s.onWaitingForResponse()
	case Synchronised:
		return s.onSynchronised()
	default:
		return 0
	}
}

// onRequestHeaviestChain requests the heaviest chain from a random peer,
// starting from nextHashRequested (genesis on the first pass) and
// walking forward.
func (s *Service) onRequestHeaviestChain() time.Duration {
	telemetry.StateRequestHeaviestTotal.Inc()

	next := RequestHeaviestChain
	if peer := SelectRandomPeer(s.transport); peer != "" {
		s.currentPeerAddr = peer
		s.currentRequest = s.callTimeTravel(peer, s.nextHashRequested, int64(MaxChainRequestSize))
		next = WaitForHeaviestChain
	}

	s.setState(next)
	return 500 * time.Millisecond
}

func (s *Service) onWaitForHeaviestChain() time.Duration {
	telemetry.StateWaitHeaviestTotal.Inc()

	if s.currentRequest == nil {
		s.setState(RequestHeaviestChain)
		return 0
	}

	switch s.currentRequest.State() {
	case Waiting:
		return 0

	case Failed:
		log.Printf("mainchain: heaviest chain request to %s failed", s.currentPeerAddr)
		s.setState(RequestHeaviestChain)
		return 0
	}

	next := RequestHeaviestChain
	payload, _ := s.currentRequest.Result()
	travelogue, err := DecodeTimeTravelResponse(payload)
	if err != nil {
		s.setState(next)
		return 0
	}

	if s.ingestBatch(s.currentPeerAddr, travelogue.Blocks) {
		switch {
		case travelogue.NextHash.IsEmpty():
			// The remote chain could not resolve the forward reference
			// unambiguously; switch strategy and pull from the peer's
			// tip backward instead.
			next = RequestFromTip
			s.nextHashRequested = Digest{}
			s.leftEdge = s.store.GetHeaviestBlock()

		case travelogue.NextHash == GenesisDigest:
			// Genesis as the next tip means the whole chain has arrived.
			next = Synchronising
			s.currentPeerAddr = ""
			s.currentMissingBlock = Digest{}

		default:
			s.nextHashRequested = travelogue.NextHash
		}
	}

	s.setState(next)
	return 0
}

// onRequestFromTip asks a random peer for its heaviest chain outright
// (no start hash needed, since the peer's actual tip is unknown to us),
// to glue onto leftEdge from the other side.
func (s *Service) onRequestFromTip() time.Duration {
	telemetry.StateRequestHeaviestTotal.Inc()
	s.retrievalPhase = RequestFromTip

	next := RequestFromTip
	if peer := SelectRandomPeer(s.transport); peer != "" {
		s.currentPeerAddr = peer
		s.currentRequest = s.callHeaviestChain(peer, uint64(MaxChainRequestSize))
		s.pendingDecode = DecodeHeaviestChainResponse
		next = WaitFromTip
	}

	s.setState(next)
	return 500 * time.Millisecond
}

func (s *Service) onWaitFromTip() time.Duration {
	telemetry.StateWaitHeaviestTotal.Inc()

	if s.currentRequest == nil {
		s.setState(s.retrievalPhase)
		return 0
	}

	switch s.currentRequest.State() {
	case Waiting:
		return 0
	case Failed:
		log.Printf("mainchain: chain request to %s failed", s.currentPeerAddr)
		s.setState(s.retrievalPhase)
		return 0
	}

	next := s.retrievalPhase
	payload, _ := s.currentRequest.Result()
	blocks, err := s.pendingDecode(payload)
	if err != nil || len(blocks) == 0 {
		s.setState(next)
		return 0
	}

	// blocks is ascending (oldest first); the newest entry is the one
	// that should abut rightEdge when we already have one.
	if s.rightEdge != nil {
		newest := blocks[len(blocks)-1]
		if s.rightEdge.BlockNumber != newest.BlockNumber+1 || s.rightEdge.PreviousHash != newest.Hash {
			log.Printf("mainchain: remote subchain from %s does not end at the expected block", s.currentPeerAddr)
			s.setState(next)
			return 0
		}
	}

	earliest := blocks[0]
	gapClosed := earliest.BlockNumber == s.leftEdge.BlockNumber+1
	if gapClosed && earliest.PreviousHash != s.leftEdge.Hash {
		log.Printf("mainchain: gluepoint mismatch at block %d from %s", earliest.BlockNumber, s.currentPeerAddr)
		s.setState(next)
		return 0
	}

	if !s.ingestBatch(s.currentPeerAddr, blocks) {
		s.setState(next)
		return 0
	}

	if gapClosed {
		next = Synchronising
		s.currentPeerAddr = ""
		s.currentMissingBlock = Digest{}
		s.rightEdge = nil
	} else {
		s.rightEdge, _ = s.store.GetBlock(earliest.Hash)
		s.nextHashRequested = earliest.PreviousHash
		next = FurtherFromTip
	}

	s.setState(next)
	return 0
}

// onFurtherFromTip continues the backward sweep from nextHashRequested,
// requesting exactly the remaining gap (capped at MaxChainRequestSize).
func (s *Service) onFurtherFromTip() time.Duration {
	telemetry.StateRequestHeaviestTotal.Inc()
	s.retrievalPhase = FurtherFromTip

	next := FurtherFromTip
	if peer := SelectRandomPeer(s.transport); peer != "" {
		s.currentPeerAddr = peer

		gapWidth := s.rightEdge.BlockNumber - s.leftEdge.BlockNumber - 1
		size := gapWidth
		if size > MaxChainRequestSize {
			size = MaxChainRequestSize
		}

		s.currentRequest = s.callTimeTravel(peer, s.nextHashRequested, -int64(size))
		s.pendingDecode = decodeAscendingTimeTravel
		next = WaitFromTip
	}

	s.setState(next)
	return 500 * time.Millisecond
}

// onSynchronising picks one missing tip and asks a random peer to supply
// the common sub-chain back to it.
func (s *Service) onSynchronising() time.Duration {
	telemetry.StateSynchronisingTotal.Inc()

	next := Synchronised
	missing := s.store.GetMissingTips()
	if len(missing) > 0 {
		for h := range missing {
			s.currentMissingBlock = h
			break
		}

		peer := SelectRandomPeer(s.transport)
		if peer == "" {
			// Nobody to trust yet; simply wait until we do.
			s.setState(Synchronising)
			return 0
		}

		s.currentPeerAddr = peer
		s.currentRequest = s.callCommonSubChain(peer, s.currentMissingBlock, s.store.GetHeaviestBlockHash(), uint64(MaxSubChainSize))
		next = WaitingForResponse
	}

	s.setState(next)
	return 0
}

func (s *Service) onWaitingForResponse() time.Duration {
	telemetry.StateWaitResponseTotal.Inc()

	if s.currentRequest == nil {
		s.setState(Synchronised)
		return 0
	}

	switch s.currentRequest.State() {
	case Waiting:
		return time.Second

	case Failed:
		log.Printf("mainchain: chain request to %s failed", s.currentPeerAddr)
		s.setState(RequestHeaviestChain)
		return time.Second
	}

	payload, _ := s.currentRequest.Result()
	if blocks, err := DecodeCommonSubChainResponse(payload); err == nil {
		s.ingestBatch(s.currentPeerAddr, blocks)
	}

	s.currentPeerAddr = ""
	s.currentMissingBlock = Digest{}
	s.setState(Synchronised)
	return 0
}

func (s *Service) onSynchronised() time.Duration {
	telemetry.StateSynchronisedTotal.Inc()

	if s.store.HasMissingBlocks() {
		log.Println("mainchain: synchronisation lost")
		s.setState(Synchronising)
		return 0
	}
	return 100 * time.Millisecond
}

// ingestBatch adds each block in blocks to the store, skipping a leading
// genesis entry (verifying its hash still matches GenesisDigest) and
// rejecting the whole batch if it doesn't. It updates telemetry per block,
// reports one trust feedback for peerAddr when no block in the batch was
// invalid, and returns false only when the batch as a whole must be
// discarded.
func (s *Service) ingestBatch(peerAddr string, blocks []*Block) bool {
	stats := map[BlockStatus]int{}

	for _, b := range blocks {
		telemetry.RecvBlockTotal.Inc()

		if b.IsGenesis() {
			if b.Hash != GenesisDigest {
				log.Printf("mainchain: genesis hash mismatch from %s, skipping alien chain", peerAddr)
				return false
			}
			continue
		}

		b.UpdateDigest()
		if !s.gossip.IsBlockValid(b) {
			stats[Invalid]++
			telemetry.RecvBlockInvalidTotal.Inc()
			continue
		}

		status := s.store.AddBlock(b)
		stats[status]++
		switch status {
		case Added:
			telemetry.RecvBlockValidTotal.Inc()
		case Loose:
			telemetry.RecvBlockLooseTotal.Inc()
		case Duplicate:
			telemetry.RecvBlockDuplicateTotal.Inc()
		case Invalid:
			telemetry.RecvBlockInvalidTotal.Inc()
		}
	}

	if s.trust != nil && stats[Invalid] == 0 {
		s.trust.AddFeedback(peerAddr, trust.SubjectBlock, trust.NewInformation)
	}

	log.Printf("mainchain: sync batch from %s: added=%d loose=%d duplicate=%d invalid=%d",
		peerAddr, stats[Added], stats[Loose], stats[Duplicate], stats[Invalid])
	return true
}

func (s *Service) callTimeTravel(peer string, start Digest, limit int64) *Promise {
	payload := EncodeTimeTravelRequest(TimeTravelRequest{Start: start, Limit: limit})
	return CallAsync(func() ([]byte, error) {
		return s.transport.Call(peer, EndpointTimeTravel, payload)
	})
}

func (s *Service) callHeaviestChain(peer string, maxSize uint64) *Promise {
	payload := EncodeHeaviestChainRequest(HeaviestChainRequest{MaxSize: maxSize})
	return CallAsync(func() ([]byte, error) {
		return s.transport.Call(peer, EndpointHeaviestChain, payload)
	})
}

func (s *Service) callCommonSubChain(peer string, start, lastSeen Digest, limit uint64) *Promise {
	payload := EncodeCommonSubChainRequest(CommonSubChainRequest{Start: start, LastSeen: lastSeen, Limit: limit})
	return CallAsync(func() ([]byte, error) {
		return s.transport.Call(peer, EndpointCommonSubChain, payload)
	})
}

// decodeAscendingTimeTravel adapts a backward TIME_TRAVEL response (which
// carries blocks newest-first) to the oldest-first order onWaitFromTip
// shares with HEAVIEST_CHAIN responses.
func decodeAscendingTimeTravel(b []byte) ([]*Block, error) {
	t, err := DecodeTimeTravelResponse(b)
	if err != nil {
		return nil, err
	}
	return reverseBlocks(t.Blocks), nil
}
