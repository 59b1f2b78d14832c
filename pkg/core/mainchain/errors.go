package mainchain

import "errors"

// Error kinds recognised by the sync core. All of them are recovered
// locally by the state machine (service.go) or answered with an empty
// wire result by the RPC protocol (protocol.go); none of them are meant
// to propagate to an embedder as an exception.
var (
	// ErrUnknownStart is returned by GetPathToCommonAncestor when start
	// does not identify a block in the store.
	ErrUnknownStart = errors.New("mainchain: unknown start block")

	// ErrChainMismatch signals that a peer's backward-sweep batch does not
	// glue to the chain segment already pulled (wrong tip, wrong gluepoint).
	ErrChainMismatch = errors.New("mainchain: peer chain does not glue to local chain")

	// ErrPeerUnavailable signals that no trusted peer was available to
	// issue a request to.
	ErrPeerUnavailable = errors.New("mainchain: no trusted peer available")

	// ErrRequestFailed signals a terminal RPC failure other than success.
	ErrRequestFailed = errors.New("mainchain: request failed")

	// ErrInvalidBlock signals a block failed its proof or miner whitelist
	// check during gossip ingestion.
	ErrInvalidBlock = errors.New("mainchain: invalid block")
)
