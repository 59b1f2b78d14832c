package transport

import (
	"log"
	"net"
	"sync"
)

// Peer represents a connected remote node.
type Peer struct {
	Addr     string
	Conn     net.Conn
	Outbound bool // true if we initiated the connection

	server *Server
	wg     sync.WaitGroup
	quit   chan struct{}
}

// NewPeer wraps an established connection.
func NewPeer(conn net.Conn, server *Server, outbound bool) *Peer {
	return &Peer{
		Addr:     conn.RemoteAddr().String(),
		Conn:     conn,
		Outbound: outbound,
		server:   server,
		quit:     make(chan struct{}),
	}
}

// Start begins the peer's read loop.
func (p *Peer) Start() {
	p.wg.Add(1)
	go p.readLoop()
}

// Stop closes the connection and waits for the read loop to exit.
func (p *Peer) Stop() {
	close(p.quit)
	p.Conn.Close()
	p.wg.Wait()
}

func (p *Peer) readLoop() {
	defer p.wg.Done()
	defer p.server.removePeer(p)

	for {
		select {
		case <-p.quit:
			return
		default:
			msg, err := DecodeMessage(p.Conn)
			if err != nil {
				log.Printf("transport: read error from %s: %v", p.Addr, err)
				return
			}
			p.server.dispatch(p, msg)
		}
	}
}

func (p *Peer) send(msg Message) error {
	return EncodeMessage(p.Conn, msg)
}
