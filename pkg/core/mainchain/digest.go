package mainchain

import (
	"crypto/sha256"
	"encoding/hex"
)

// DigestSize is the length of every Digest in bytes.
const DigestSize = 32

// Digest is an opaque fixed-size block identity (hash). Equality is by
// byte value.
type Digest [DigestSize]byte

// GenesisDigest is the well-known identity of the genesis block. It is
// deliberately NOT the all-zero value: the zero Digest is reserved as the
// "empty" sentinel (ambiguous forward reference, unknown peer address,
// absent next_hash), and GenesisDigest must stay distinguishable from it
// wherever next_hash's tri-valued encoding is interpreted.
var GenesisDigest = Digest(sha256.Sum256([]byte("chrd-mainchain-genesis")))

// ComputeDigest hashes arbitrary bytes into a Digest.
func ComputeDigest(data []byte) Digest {
	return Digest(sha256.Sum256(data))
}

// DigestFromBytes copies b into a new Digest. Returns false if len(b) != DigestSize.
func DigestFromBytes(b []byte) (Digest, bool) {
	var d Digest
	if len(b) != DigestSize {
		return d, false
	}
	copy(d[:], b)
	return d, true
}

// DigestFromHex parses a hex string into a Digest.
func DigestFromHex(s string) (Digest, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Digest{}, err
	}
	d, ok := DigestFromBytes(b)
	if !ok {
		return Digest{}, hex.ErrLength
	}
	return d, nil
}

// Bytes returns the digest as a byte slice.
func (d Digest) Bytes() []byte { return d[:] }

// Hex returns the lowercase hex encoding of the digest.
func (d Digest) Hex() string { return hex.EncodeToString(d[:]) }

// String implements fmt.Stringer.
func (d Digest) String() string { return d.Hex() }

// IsEmpty reports whether d is the zero-value sentinel: "ambiguous
// forward reference" when returned as a TIME_TRAVEL next_hash, "unset"
// elsewhere.
func (d Digest) IsEmpty() bool { return d == Digest{} }

// IsGenesis reports whether d identifies the genesis block.
func (d Digest) IsGenesis() bool { return d == GenesisDigest }
