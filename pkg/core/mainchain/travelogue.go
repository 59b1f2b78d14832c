package mainchain

import (
	"io"

	"github.com/chronodrachma/chrd/pkg/core/mainchain/wire"
)

// Travelogue is the response envelope for TIME_TRAVEL: a batch of blocks,
// the hash to request next, and a reserved Proceed flag.
//
// Proceed is always true on the wire: the original protocol carried it on
// one response variant but not the other, and this implementation treats
// it as reserved rather than branching on it, per the open question it
// was left to resolve.
type Travelogue struct {
	Blocks   []*Block
	NextHash Digest
	Proceed  bool
}

// EncodeTravelogue writes t using the tagged-map wire format:
// 1=blocks, 2=next_hash, 3=proceed.
func EncodeTravelogue(w io.Writer, t *Travelogue) error {
	fw := wire.NewWriter(w)
	if err := fw.Slice(len(t.Blocks), func(i int, ew io.Writer) error {
		return EncodeBlock(ew, t.Blocks[i])
	}); err != nil {
		return err
	}
	if err := fw.FixedBytes(t.NextHash[:]); err != nil {
		return err
	}
	return fw.Bool(true)
}

// DecodeTravelogue reads a Travelogue previously written by EncodeTravelogue.
func DecodeTravelogue(r io.Reader) (*Travelogue, error) {
	fr := wire.NewReader(r)
	t := &Travelogue{}

	n, err := fr.Slice(func(i int, er io.Reader) error {
		b, err := DecodeBlock(er)
		if err != nil {
			return err
		}
		t.Blocks = append(t.Blocks, b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	_ = n

	var nextBuf [DigestSize]byte
	if err := fr.FixedBytes(nextBuf[:]); err != nil {
		return nil, err
	}
	t.NextHash = Digest(nextBuf)

	proceed, err := fr.Bool()
	if err != nil {
		return nil, err
	}
	t.Proceed = proceed

	return t, nil
}
