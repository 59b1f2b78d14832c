package mainchain

import "github.com/chronodrachma/chrd/pkg/core/mainchain/transport"

// Protocol endpoint numbers, stable across the wire.
const (
	EndpointHeaviestChain  = 1
	EndpointTimeTravel     = 2
	EndpointCommonSubChain = 3
)

// Protocol answers the three main-chain RPC endpoints against a Store. Its
// methods are the server-side handlers a transport.Server registers by
// endpoint number; they never mutate the store, only read it.
type Protocol struct {
	store *Store
}

// NewProtocol builds a Protocol serving store.
func NewProtocol(store *Store) *Protocol {
	return &Protocol{store: store}
}

// GetHeaviestChain answers EndpointHeaviestChain: up to maxSize blocks of
// this node's heaviest chain. The store returns them tip-first; the wire
// contract puts them genesis-first (oldest first), so the order is
// reversed before returning.
func (p *Protocol) GetHeaviestChain(maxSize uint64) []*Block {
	return reverseBlocks(p.store.GetHeaviestChain(maxSize))
}

// GetCommonSubChain answers EndpointCommonSubChain: the path from start
// back to its common ancestor with lastSeen, reversed to genesis-first
// order for the wire. An unknown start yields an empty slice rather than
// an error, since the RPC has no channel to carry one.
func (p *Protocol) GetCommonSubChain(start, lastSeen Digest, limit uint64) []*Block {
	blocks, err := p.store.GetPathToCommonAncestor(start, lastSeen, limit)
	if err != nil {
		return nil
	}
	return reverseBlocks(blocks)
}

// TimeTravel answers EndpointTimeTravel: a Travelogue describing the
// blocks visited from start in the direction limit implies. Unlike the
// other two endpoints, the store's own order (oldest-of-the-batch-first
// going forward, newest-first going backward) already matches the wire
// contract, so no reversal happens here.
func (p *Protocol) TimeTravel(start Digest, limit int64) *Travelogue {
	blocks, next := p.store.TimeTravel(start, limit)
	return &Travelogue{
		Blocks:   blocks,
		NextHash: next,
		Proceed:  true,
	}
}

// RegisterTransport wires p's three endpoints into srv as transport
// Handlers, translating between srv's opaque byte payloads and p's typed
// methods.
func (p *Protocol) RegisterTransport(srv *transport.Server) {
	srv.Handle(EndpointHeaviestChain, func(payload []byte) ([]byte, error) {
		req, err := DecodeHeaviestChainRequest(payload)
		if err != nil {
			return nil, err
		}
		return EncodeHeaviestChainResponse(p.GetHeaviestChain(req.MaxSize)), nil
	})

	srv.Handle(EndpointCommonSubChain, func(payload []byte) ([]byte, error) {
		req, err := DecodeCommonSubChainRequest(payload)
		if err != nil {
			return nil, err
		}
		return EncodeCommonSubChainResponse(p.GetCommonSubChain(req.Start, req.LastSeen, req.Limit)), nil
	})

	srv.Handle(EndpointTimeTravel, func(payload []byte) ([]byte, error) {
		req, err := DecodeTimeTravelRequest(payload)
		if err != nil {
			return nil, err
		}
		return EncodeTimeTravelResponse(p.TimeTravel(req.Start, req.Limit)), nil
	})
}

func reverseBlocks(blocks []*Block) []*Block {
	out := make([]*Block, len(blocks))
	for i, b := range blocks {
		out[len(blocks)-1-i] = b
	}
	return out
}
