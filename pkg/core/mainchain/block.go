package mainchain

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"io"
	"time"

	"github.com/chronodrachma/chrd/pkg/core/consensus"
	"github.com/chronodrachma/chrd/pkg/core/mainchain/wire"
	"github.com/chronodrachma/chrd/pkg/core/types"
)

// Identity identifies a block's miner. Reuses the node's existing address
// type so mined and gossiped blocks interoperate with the rest of CHRD.
type Identity = types.Hash

// Body carries the block's transactions. Its internal shape is opaque to
// the chain store and sync machine; only BroadcastBlock/OnNewBlock ever
// need to encode or decode it.
type Body struct {
	Transactions []*types.Transaction
}

// Block is the unit of chain state: an identity hash, a link to its
// parent, its height, its miner, and a proof of work over its header
// fields.
type Block struct {
	Hash            Digest
	PreviousHash    Digest
	BlockNumber     uint64
	Miner           Identity
	Timestamp       time.Time
	ProofNonce      uint64
	ProofDifficulty uint64
	Body            Body
}

// IsGenesis reports whether this block is the chain root.
func (b *Block) IsGenesis() bool { return b.BlockNumber == 0 }

// headerBytes returns a deterministic encoding of every field that
// contributes to the block's identity and proof, excluding Hash itself.
// Field order: PreviousHash(32) || BlockNumber(8) || Miner(32) ||
// Timestamp(8) || ProofNonce(8) || ProofDifficulty(8) || MerkleRoot(32).
func (b *Block) headerBytes() []byte {
	buf := make([]byte, 0, 32+8+32+8+8+8+32)
	buf = append(buf, b.PreviousHash[:]...)
	var num [8]byte
	binary.BigEndian.PutUint64(num[:], b.BlockNumber)
	buf = append(buf, num[:]...)
	buf = append(buf, b.Miner[:]...)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(b.Timestamp.Unix()))
	buf = append(buf, ts[:]...)
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], b.ProofNonce)
	buf = append(buf, nonce[:]...)
	var diff [8]byte
	binary.BigEndian.PutUint64(diff[:], b.ProofDifficulty)
	buf = append(buf, diff[:]...)
	root := merkleRoot(b.Body.Transactions)
	buf = append(buf, root[:]...)
	return buf
}

// UpdateDigest recomputes Hash from the other fields. Callers must invoke
// this after mutating any header field and before AddBlock, exactly as
// the source recomputes digests on both the mining and gossip paths.
func (b *Block) UpdateDigest() {
	b.Hash = ComputeDigest(b.headerBytes())
}

// Proof re-derives the block's proof-of-work hash via hasher and checks
// it against ProofDifficulty. It never trusts a stored hash: this is the
// "verifier closure" of the data model, expressed as a method because Go
// closures cannot cross the wire.
func (b *Block) Proof(hasher consensus.Hasher) bool {
	powHash, err := hasher.Hash(b.headerBytes())
	if err != nil {
		return false
	}
	return consensus.MeetsDifficulty(powHash, b.ProofDifficulty)
}

func merkleRoot(txs []*types.Transaction) types.Hash {
	return types.ComputeMerkleRoot(txs)
}

// BlockStatus is the outcome of an AddBlock call.
type BlockStatus int

const (
	Added BlockStatus = iota
	Loose
	Duplicate
	Invalid
)

func (s BlockStatus) String() string {
	switch s {
	case Added:
		return "Added"
	case Loose:
		return "Loose"
	case Duplicate:
		return "Duplicate"
	case Invalid:
		return "Invalid"
	default:
		return "Unknown"
	}
}

// EncodeBlock writes b to w using the tagged-map wire format. Field keys,
// once assigned, must never be reordered: 1=Hash, 2=PreviousHash,
// 3=BlockNumber, 4=Miner, 5=Timestamp, 6=ProofNonce, 7=ProofDifficulty,
// 8=Body (opaque, gob-encoded).
func EncodeBlock(w io.Writer, b *Block) error {
	fw := wire.NewWriter(w)
	if err := fw.FixedBytes(b.Hash[:]); err != nil {
		return err
	}
	if err := fw.FixedBytes(b.PreviousHash[:]); err != nil {
		return err
	}
	if err := fw.Uint64(b.BlockNumber); err != nil {
		return err
	}
	if err := fw.FixedBytes(b.Miner[:]); err != nil {
		return err
	}
	if err := fw.Uint64(uint64(b.Timestamp.Unix())); err != nil {
		return err
	}
	if err := fw.Uint64(b.ProofNonce); err != nil {
		return err
	}
	if err := fw.Uint64(b.ProofDifficulty); err != nil {
		return err
	}
	var bodyBuf bytes.Buffer
	if err := gob.NewEncoder(&bodyBuf).Encode(b.Body); err != nil {
		return err
	}
	return fw.Bytes(bodyBuf.Bytes())
}

// DecodeBlock reads a Block previously written by EncodeBlock.
func DecodeBlock(r io.Reader) (*Block, error) {
	fr := wire.NewReader(r)
	b := &Block{}

	var hashBuf, prevBuf, minerBuf [DigestSize]byte
	if err := fr.FixedBytes(hashBuf[:]); err != nil {
		return nil, err
	}
	b.Hash = Digest(hashBuf)
	if err := fr.FixedBytes(prevBuf[:]); err != nil {
		return nil, err
	}
	b.PreviousHash = Digest(prevBuf)

	num, err := fr.Uint64()
	if err != nil {
		return nil, err
	}
	b.BlockNumber = num

	if err := fr.FixedBytes(minerBuf[:]); err != nil {
		return nil, err
	}
	copy(b.Miner[:], minerBuf[:])

	ts, err := fr.Uint64()
	if err != nil {
		return nil, err
	}
	b.Timestamp = time.Unix(int64(ts), 0).UTC()

	nonce, err := fr.Uint64()
	if err != nil {
		return nil, err
	}
	b.ProofNonce = nonce

	diff, err := fr.Uint64()
	if err != nil {
		return nil, err
	}
	b.ProofDifficulty = diff

	bodyBytes, err := fr.Bytes()
	if err != nil {
		return nil, err
	}
	var body Body
	if len(bodyBytes) > 0 {
		if err := gob.NewDecoder(bytes.NewReader(bodyBytes)).Decode(&body); err != nil {
			return nil, err
		}
	}
	b.Body = body

	return b, nil
}
