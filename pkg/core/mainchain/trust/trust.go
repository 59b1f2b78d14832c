// Package trust tracks a simple reputation score per peer address, fed by
// feedback from gossip ingestion and RPC outcomes. It has no notion of
// transport or chain state; callers report what happened and the system
// turns that into a score SelectRandomPeer-style callers can filter on.
package trust

import "sync"

// Subject names what kind of interaction feedback concerns.
type Subject int

const (
	SubjectBlock Subject = iota
	SubjectPeer
)

// Quality names the outcome of an interaction.
type Quality int

const (
	// NewInformation rewards a peer for being the first to deliver
	// something useful (a valid, previously-unseen block).
	NewInformation Quality = iota
	// Duplicate is neutral: the peer sent something we already had.
	Duplicate
	// Lied penalizes a peer for sending something that failed validation.
	Lied
	// BadConnection penalizes a peer for a failed or timed-out RPC.
	BadConnection
)

func (q Quality) delta() int {
	switch q {
	case NewInformation:
		return 2
	case Duplicate:
		return 0
	case Lied:
		return -5
	case BadConnection:
		return -1
	default:
		return 0
	}
}

// System is satisfied by any reputation tracker the sync core reports
// feedback to.
type System interface {
	AddFeedback(peer string, subject Subject, quality Quality)
	IsTrusted(peer string) bool
	Score(peer string) int
}

// Simple is an in-memory System: a running integer score per peer
// address, clamped at zero, with peers trusted once they clear a
// threshold. It is the only System this node ships; nothing here depends
// on persistence, since trust is meant to be rebuilt from fresh
// observation after every restart.
type Simple struct {
	mu        sync.Mutex
	scores    map[string]int
	threshold int
}

// NewSimple returns a Simple trust system. A peer becomes trusted once
// its score is >= threshold; a brand new, never-seen peer starts at zero
// and is trusted by default when threshold <= 0.
func NewSimple(threshold int) *Simple {
	return &Simple{
		scores:    make(map[string]int),
		threshold: threshold,
	}
}

// AddFeedback records an interaction outcome for peer.
func (s *Simple) AddFeedback(peer string, _ Subject, quality Quality) {
	s.mu.Lock()
	defer s.mu.Unlock()

	score := s.scores[peer] + quality.delta()
	if score < 0 {
		score = 0
	}
	s.scores[peer] = score
}

// IsTrusted reports whether peer currently meets the trust threshold.
func (s *Simple) IsTrusted(peer string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scores[peer] >= s.threshold
}

// Score returns peer's current reputation score.
func (s *Simple) Score(peer string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scores[peer]
}
