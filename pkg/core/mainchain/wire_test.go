package mainchain

import (
	"bytes"
	"testing"
	"time"

	"github.com/chronodrachma/chrd/pkg/core/mainchain/wire"
)

func sampleBlock(t *testing.T, n uint64) *Block {
	t.Helper()
	b := &Block{
		PreviousHash:    Digest{byte(n)},
		BlockNumber:     n,
		Miner:           Identity{0xAA, 0xBB},
		Timestamp:       time.Unix(1700000000+int64(n), 0).UTC(),
		ProofNonce:      n * 7,
		ProofDifficulty: 0,
	}
	b.UpdateDigest()
	return b
}

func TestBlockRoundTrip(t *testing.T) {
	want := sampleBlock(t, 1)

	var buf bytes.Buffer
	if err := EncodeBlock(&buf, want); err != nil {
		t.Fatalf("EncodeBlock: %v", err)
	}

	got, err := DecodeBlock(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("DecodeBlock: %v", err)
	}

	if got.Hash != want.Hash || got.PreviousHash != want.PreviousHash ||
		got.BlockNumber != want.BlockNumber || got.Miner != want.Miner ||
		!got.Timestamp.Equal(want.Timestamp) || got.ProofNonce != want.ProofNonce ||
		got.ProofDifficulty != want.ProofDifficulty {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}

	// Re-encoding the decoded value must reproduce the exact same bytes.
	var again bytes.Buffer
	if err := EncodeBlock(&again, got); err != nil {
		t.Fatalf("re-EncodeBlock: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), again.Bytes()) {
		t.Fatalf("re-encoded bytes differ from original")
	}
}

func TestTravelogueRoundTrip(t *testing.T) {
	want := &Travelogue{
		Blocks:   []*Block{sampleBlock(t, 1), sampleBlock(t, 2), sampleBlock(t, 3)},
		NextHash: Digest{0xCD},
		Proceed:  true,
	}

	var buf bytes.Buffer
	if err := EncodeTravelogue(&buf, want); err != nil {
		t.Fatalf("EncodeTravelogue: %v", err)
	}

	got, err := DecodeTravelogue(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("DecodeTravelogue: %v", err)
	}

	if len(got.Blocks) != len(want.Blocks) {
		t.Fatalf("got %d blocks, want %d", len(got.Blocks), len(want.Blocks))
	}
	for i := range want.Blocks {
		if got.Blocks[i].Hash != want.Blocks[i].Hash {
			t.Fatalf("block %d hash mismatch", i)
		}
	}
	if got.NextHash != want.NextHash {
		t.Fatalf("next hash mismatch: got %x, want %x", got.NextHash, want.NextHash)
	}
	if got.Proceed != want.Proceed {
		t.Fatalf("proceed mismatch")
	}
}

func TestCountingWriterMatchesActualSize(t *testing.T) {
	b := sampleBlock(t, 5)

	var buf bytes.Buffer
	if err := EncodeBlock(&buf, b); err != nil {
		t.Fatalf("EncodeBlock: %v", err)
	}

	var cw wire.CountingWriter
	if err := EncodeBlock(&cw, b); err != nil {
		t.Fatalf("EncodeBlock into counting writer: %v", err)
	}

	if cw.Size() != buf.Len() {
		t.Fatalf("counting writer reported %d bytes, actual encoding is %d", cw.Size(), buf.Len())
	}
}
