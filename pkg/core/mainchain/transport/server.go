package transport

import (
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// ErrCallTimeout is returned by Call when no response arrives within
// ServerConfig.CallTimeout.
var ErrCallTimeout = errors.New("transport: call timed out")

// Handler answers one RPC endpoint given its wire-encoded request
// payload, returning the wire-encoded response payload.
type Handler func(payload []byte) ([]byte, error)

// GossipHandler processes an inbound pushed block payload and reports
// whether it should be rebroadcast to this node's own peers.
type GossipHandler func(payload []byte) (rebroadcast bool)

// ServerConfig configures a Server.
type ServerConfig struct {
	ListenAddr string
	SeedNodes  []string

	// CallTimeout bounds how long Call waits for a response. Defaults to
	// 10s when zero.
	CallTimeout time.Duration
}

// Server manages the peer-to-peer network: accepting and dialing
// connections, dispatching gossip to a GossipHandler, and answering
// addressed RPC requests through registered Handlers.
type Server struct {
	config ServerConfig

	handlers      map[uint8]Handler
	gossipHandler GossipHandler

	peerMu sync.RWMutex
	peers  map[string]*Peer

	pendingMu sync.Mutex
	pending   map[uint64]chan *MsgResponse
	nextReqID uint64

	listener net.Listener
	quit     chan struct{}
}

// NewServer constructs a Server. Call Handle/HandleGossip to register
// handlers, then Start to begin listening and dialing seeds.
func NewServer(config ServerConfig) *Server {
	if config.CallTimeout == 0 {
		config.CallTimeout = 10 * time.Second
	}
	return &Server{
		config:   config,
		handlers: make(map[uint8]Handler),
		peers:    make(map[string]*Peer),
		pending:  make(map[uint64]chan *MsgResponse),
		quit:     make(chan struct{}),
	}
}

// Handle registers the handler for an RPC endpoint number.
func (s *Server) Handle(endpoint uint8, h Handler) {
	s.handlers[endpoint] = h
}

// HandleGossip registers the handler for inbound pushed blocks.
func (s *Server) HandleGossip(h GossipHandler) {
	s.gossipHandler = h
}

// Start opens the listener, dials configured seed nodes, and begins
// accepting inbound connections.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return err
	}
	s.listener = l
	log.Printf("transport: listening on %s", s.config.ListenAddr)

	for _, seed := range s.config.SeedNodes {
		go s.Connect(seed)
	}
	go s.acceptLoop()
	return nil
}

// Addr returns the listener's actual local address, useful when
// ListenAddr used a ":0" ephemeral port.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Stop closes the listener and every connected peer.
func (s *Server) Stop() {
	close(s.quit)
	if s.listener != nil {
		s.listener.Close()
	}

	s.peerMu.Lock()
	peers := make([]*Peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.peerMu.Unlock()

	for _, p := range peers {
		p.Stop()
	}
}

// Connect dials addr and registers it as an outbound peer.
func (s *Server) Connect(addr string) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		log.Printf("transport: failed to connect to %s: %v", addr, err)
		return
	}
	s.addPeer(conn, true)
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				log.Printf("transport: accept error: %v", err)
				continue
			}
		}
		s.addPeer(conn, false)
	}
}

func (s *Server) addPeer(conn net.Conn, outbound bool) *Peer {
	s.peerMu.Lock()
	defer s.peerMu.Unlock()

	addr := conn.RemoteAddr().String()
	if existing, ok := s.peers[addr]; ok {
		conn.Close()
		return existing
	}

	p := NewPeer(conn, s, outbound)
	s.peers[addr] = p
	p.Start()
	log.Printf("transport: peer connected: %s (outbound=%v)", addr, outbound)
	return p
}

func (s *Server) removePeer(p *Peer) {
	s.peerMu.Lock()
	delete(s.peers, p.Addr)
	s.peerMu.Unlock()
	log.Printf("transport: peer disconnected: %s", p.Addr)
}

// PeerCount returns the number of currently connected peers.
func (s *Server) PeerCount() int {
	s.peerMu.RLock()
	defer s.peerMu.RUnlock()
	return len(s.peers)
}

// PeerAddrs returns the addresses of every currently connected peer, in
// no particular order.
func (s *Server) PeerAddrs() []string {
	s.peerMu.RLock()
	defer s.peerMu.RUnlock()
	out := make([]string, 0, len(s.peers))
	for addr := range s.peers {
		out = append(out, addr)
	}
	return out
}

// Broadcast pushes a gossip payload to every connected peer.
func (s *Server) Broadcast(payload []byte) {
	s.peerMu.RLock()
	defer s.peerMu.RUnlock()
	for _, p := range s.peers {
		go p.send(&MsgGossip{Payload: payload})
	}
}

// Call issues an addressed RPC request to the peer at addr and blocks
// until the matching response arrives or CallTimeout elapses.
func (s *Server) Call(addr string, endpoint uint8, payload []byte) ([]byte, error) {
	s.peerMu.RLock()
	p, ok := s.peers[addr]
	s.peerMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("transport: no connected peer %s", addr)
	}

	id := atomic.AddUint64(&s.nextReqID, 1)
	ch := make(chan *MsgResponse, 1)
	s.pendingMu.Lock()
	s.pending[id] = ch
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
	}()

	if err := p.send(&MsgRequest{RequestID: id, Endpoint: endpoint, Payload: payload}); err != nil {
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp.Err != "" {
			return nil, errors.New(resp.Err)
		}
		return resp.Payload, nil
	case <-time.After(s.config.CallTimeout):
		return nil, ErrCallTimeout
	}
}

func (s *Server) dispatch(p *Peer, msg Message) {
	switch m := msg.(type) {
	case *MsgVersion:
		log.Printf("transport: version from %s: v%d height=%d", p.Addr, m.Version, m.ChainHeight)

	case *MsgGossip:
		if s.gossipHandler == nil {
			return
		}
		if s.gossipHandler(m.Payload) {
			s.rebroadcastExcept(p.Addr, m.Payload)
		}

	case *MsgRequest:
		h, ok := s.handlers[m.Endpoint]
		if !ok {
			p.send(&MsgResponse{RequestID: m.RequestID, Err: fmt.Sprintf("transport: unknown endpoint %d", m.Endpoint)})
			return
		}
		resp, err := h(m.Payload)
		if err != nil {
			p.send(&MsgResponse{RequestID: m.RequestID, Err: err.Error()})
			return
		}
		p.send(&MsgResponse{RequestID: m.RequestID, Payload: resp})

	case *MsgResponse:
		s.pendingMu.Lock()
		ch, ok := s.pending[m.RequestID]
		s.pendingMu.Unlock()
		if ok {
			ch <- m
		}
	}
}

func (s *Server) rebroadcastExcept(exclude string, payload []byte) {
	s.peerMu.RLock()
	defer s.peerMu.RUnlock()
	for addr, p := range s.peers {
		if addr == exclude {
			continue
		}
		go p.send(&MsgGossip{Payload: payload})
	}
}
