// Package telemetry holds the node's Prometheus counters, registered
// against the default registry so they are served by whatever handler
// the RPC server mounts at /metrics.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Block ingestion outcomes, incremented once per block the sync core
// sees, whether gossiped or pulled from a peer.
var (
	RecvBlockTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_mainchain_service_recv_block_total",
		Help: "The number of received blocks from the network",
	})
	RecvBlockValidTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_mainchain_service_recv_block_valid_total",
		Help: "The total number of valid blocks received",
	})
	RecvBlockLooseTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_mainchain_service_recv_block_loose_total",
		Help: "The total number of loose blocks received",
	})
	RecvBlockDuplicateTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_mainchain_service_recv_block_duplicate_total",
		Help: "The total number of duplicate blocks received from the network",
	})
	RecvBlockInvalidTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_mainchain_service_recv_block_invalid_total",
		Help: "The total number of invalid blocks received from the network",
	})
)

// Sync state machine tick counters, incremented once per pass through
// each named state.
var (
	StateRequestHeaviestTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_mainchain_service_state_request_heaviest_total",
		Help: "The number of times in the requested heaviest state",
	})
	StateWaitHeaviestTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_mainchain_service_state_wait_heaviest_total",
		Help: "The number of times in the wait heaviest state",
	})
	StateSynchronisingTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_mainchain_service_state_synchronising_total",
		Help: "The number of times in the synchronising state",
	})
	StateWaitResponseTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_mainchain_service_state_wait_response_total",
		Help: "The number of times in the wait response state",
	})
	StateSynchronisedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_mainchain_service_state_synchronised_total",
		Help: "The number of times in the synchronised state",
	})
)

func init() {
	prometheus.MustRegister(
		RecvBlockTotal,
		RecvBlockValidTotal,
		RecvBlockLooseTotal,
		RecvBlockDuplicateTotal,
		RecvBlockInvalidTotal,
		StateRequestHeaviestTotal,
		StateWaitHeaviestTotal,
		StateSynchronisingTotal,
		StateWaitResponseTotal,
		StateSynchronisedTotal,
	)
}
