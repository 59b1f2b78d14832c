package mainchain

import (
	"bytes"
	"log"

	"github.com/chronodrachma/chrd/pkg/core/consensus"
	"github.com/chronodrachma/chrd/pkg/core/mainchain/trust"
	"github.com/chronodrachma/chrd/pkg/core/mainchain/wire"
	"github.com/chronodrachma/chrd/pkg/telemetry"
)

// NetworkMode controls miner-identity enforcement on gossiped blocks.
type NetworkMode int

const (
	Standalone NetworkMode = iota
	PrivateNetwork
	PublicNetwork
)

// MinerValidator reports whether a miner identity may produce blocks
// under PublicNetwork mode. A nil validator allows everything, which is
// also the implicit behaviour of Standalone and PrivateNetwork.
type MinerValidator func(miner Identity) bool

// Gossip ingests pushed blocks: it validates them, adds them to the
// store, reports trust feedback, and decides whether to rebroadcast.
type Gossip struct {
	store      *Store
	hasher     consensus.Hasher
	trust      trust.System
	mode       NetworkMode
	allowMiner MinerValidator
}

// NewGossip builds a Gossip handler over store. trustSys may be nil, in
// which case no trust feedback is reported. allowMiner only matters in
// PublicNetwork mode.
func NewGossip(store *Store, hasher consensus.Hasher, trustSys trust.System, mode NetworkMode, allowMiner MinerValidator) *Gossip {
	return &Gossip{
		store:      store,
		hasher:     hasher,
		trust:      trustSys,
		mode:       mode,
		allowMiner: allowMiner,
	}
}

// IsBlockValid reports whether block's proof of work checks out and, in
// PublicNetwork mode, whether its miner is on the allowed list.
func (g *Gossip) IsBlockValid(block *Block) bool {
	if g.mode == PublicNetwork && g.allowMiner != nil && !g.allowMiner(block.Miner) {
		return false
	}
	return block.Proof(g.hasher)
}

// OnNewBlock processes a block pushed by a peer. from identifies who we
// received it from; transmitter identifies who trust feedback is
// attributed to (they can differ once relaying through an intermediary
// is involved). It returns whether the caller should rebroadcast the
// block to its own peers.
func (g *Gossip) OnNewBlock(from string, block *Block, transmitter string) bool {
	telemetry.RecvBlockTotal.Inc()

	if !g.IsBlockValid(block) {
		telemetry.RecvBlockInvalidTotal.Inc()
		log.Printf("mainchain: invalid block recv 0x%s (from %s)", block.Hash.Hex(), from)
		return false
	}

	log.Printf("mainchain: recv block 0x%s (from peer %s, num txs %d)", block.Hash.Hex(), from, len(block.Body.Transactions))
	if g.trust != nil {
		g.trust.AddFeedback(transmitter, trust.SubjectBlock, trust.NewInformation)
	}

	switch status := g.store.AddBlock(block); status {
	case Added:
		telemetry.RecvBlockValidTotal.Inc()
		log.Printf("mainchain: added new block 0x%s", block.Hash.Hex())
		return true
	case Loose:
		telemetry.RecvBlockLooseTotal.Inc()
		log.Printf("mainchain: added loose block 0x%s", block.Hash.Hex())
		return true
	case Duplicate:
		telemetry.RecvBlockDuplicateTotal.Inc()
		log.Printf("mainchain: duplicate block 0x%s", block.Hash.Hex())
		return false
	case Invalid:
		telemetry.RecvBlockInvalidTotal.Inc()
		log.Printf("mainchain: attempted to add invalid block 0x%s", block.Hash.Hex())
		return false
	default:
		return false
	}
}

// BroadcastBlock wire-encodes block using a size-counting pre-pass so the
// real encode allocates its buffer exactly once, then hands the payload
// to broadcast.
func BroadcastBlock(block *Block, broadcast func(payload []byte)) error {
	var counter wire.CountingWriter
	if err := EncodeBlock(&counter, block); err != nil {
		return err
	}

	buf := bytes.NewBuffer(make([]byte, 0, counter.Size()))
	if err := EncodeBlock(buf, block); err != nil {
		return err
	}

	broadcast(buf.Bytes())
	return nil
}
