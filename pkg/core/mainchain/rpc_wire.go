package mainchain

import (
	"bytes"
	"io"

	"github.com/chronodrachma/chrd/pkg/core/mainchain/wire"
)

// This file wire-encodes the request and response of each of the three
// RPC endpoints, so service.go and protocol.go can hand transport.Server
// opaque []byte payloads without either side knowing about gob or net.Conn.

// HeaviestChainRequest is the EndpointHeaviestChain request: the maximum
// number of blocks the caller is willing to receive.
type HeaviestChainRequest struct {
	MaxSize uint64
}

func EncodeHeaviestChainRequest(req HeaviestChainRequest) []byte {
	var buf bytes.Buffer
	fw := wire.NewWriter(&buf)
	fw.Uint64(req.MaxSize)
	return buf.Bytes()
}

func DecodeHeaviestChainRequest(b []byte) (HeaviestChainRequest, error) {
	fr := wire.NewReader(bytes.NewReader(b))
	maxSize, err := fr.Uint64()
	if err != nil {
		return HeaviestChainRequest{}, err
	}
	return HeaviestChainRequest{MaxSize: maxSize}, nil
}

func encodeBlockSlice(blocks []*Block) []byte {
	var buf bytes.Buffer
	fw := wire.NewWriter(&buf)
	fw.Slice(len(blocks), func(i int, ew io.Writer) error {
		return EncodeBlock(ew, blocks[i])
	})
	return buf.Bytes()
}

func decodeBlockSlice(b []byte) ([]*Block, error) {
	fr := wire.NewReader(bytes.NewReader(b))
	var out []*Block
	_, err := fr.Slice(func(i int, er io.Reader) error {
		blk, err := DecodeBlock(er)
		if err != nil {
			return err
		}
		out = append(out, blk)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeHeaviestChainResponse and DecodeHeaviestChainResponse carry the
// EndpointHeaviestChain response: a block slice, genesis first.
func EncodeHeaviestChainResponse(blocks []*Block) []byte { return encodeBlockSlice(blocks) }

func DecodeHeaviestChainResponse(b []byte) ([]*Block, error) { return decodeBlockSlice(b) }

// CommonSubChainRequest is the EndpointCommonSubChain request.
type CommonSubChainRequest struct {
	Start    Digest
	LastSeen Digest
	Limit    uint64
}

func EncodeCommonSubChainRequest(req CommonSubChainRequest) []byte {
	var buf bytes.Buffer
	fw := wire.NewWriter(&buf)
	fw.FixedBytes(req.Start[:])
	fw.FixedBytes(req.LastSeen[:])
	fw.Uint64(req.Limit)
	return buf.Bytes()
}

func DecodeCommonSubChainRequest(b []byte) (CommonSubChainRequest, error) {
	fr := wire.NewReader(bytes.NewReader(b))
	var req CommonSubChainRequest
	var startBuf, lastSeenBuf [DigestSize]byte
	if err := fr.FixedBytes(startBuf[:]); err != nil {
		return req, err
	}
	if err := fr.FixedBytes(lastSeenBuf[:]); err != nil {
		return req, err
	}
	limit, err := fr.Uint64()
	if err != nil {
		return req, err
	}
	req.Start = Digest(startBuf)
	req.LastSeen = Digest(lastSeenBuf)
	req.Limit = limit
	return req, nil
}

// EncodeCommonSubChainResponse and DecodeCommonSubChainResponse carry the
// EndpointCommonSubChain response: a block slice, genesis-ward first.
func EncodeCommonSubChainResponse(blocks []*Block) []byte { return encodeBlockSlice(blocks) }

func DecodeCommonSubChainResponse(b []byte) ([]*Block, error) { return decodeBlockSlice(b) }

// TimeTravelRequest is the EndpointTimeTravel request.
type TimeTravelRequest struct {
	Start Digest
	Limit int64
}

func EncodeTimeTravelRequest(req TimeTravelRequest) []byte {
	var buf bytes.Buffer
	fw := wire.NewWriter(&buf)
	fw.FixedBytes(req.Start[:])
	fw.Uint64(uint64(req.Limit))
	return buf.Bytes()
}

func DecodeTimeTravelRequest(b []byte) (TimeTravelRequest, error) {
	fr := wire.NewReader(bytes.NewReader(b))
	var req TimeTravelRequest
	var startBuf [DigestSize]byte
	if err := fr.FixedBytes(startBuf[:]); err != nil {
		return req, err
	}
	limit, err := fr.Uint64()
	if err != nil {
		return req, err
	}
	req.Start = Digest(startBuf)
	req.Limit = int64(limit)
	return req, nil
}

// EncodeTimeTravelResponse and DecodeTimeTravelResponse carry the
// EndpointTimeTravel response: a Travelogue.
func EncodeTimeTravelResponse(t *Travelogue) []byte {
	var buf bytes.Buffer
	EncodeTravelogue(&buf, t)
	return buf.Bytes()
}

func DecodeTimeTravelResponse(b []byte) (*Travelogue, error) {
	return DecodeTravelogue(bytes.NewReader(b))
}
