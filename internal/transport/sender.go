package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/mbward/oscpump/internal/osc"
)

// Sender serializes OSC packets to a fixed UDP peer. Safe for
// concurrent use.
type Sender struct {
	mu   sync.Mutex
	conn *net.UDPConn
}

// Dial connects a UDP socket to addr (host:port).
func Dial(addr string) (*Sender, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve peer address %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Sender{conn: conn}, nil
}

// Send encodes p and writes it as one datagram.
func (s *Sender) Send(p osc.Packet) error {
	data, err := osc.Encode(p)
	if err != nil {
		return fmt.Errorf("encode outbound packet: %w", err)
	}
	s.mu.Lock()
	_, err = s.conn.Write(data)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("send to %s: %w", s.conn.RemoteAddr(), err)
	}
	return nil
}

// Forward sends one due message to the peer. Its signature matches
// sched.Handler, so a Sender can terminate the scheduling pipeline
// directly.
func (s *Sender) Forward(_ context.Context, msg *osc.Message) error {
	return s.Send(msg)
}

// Close closes the socket.
func (s *Sender) Close() error { return s.conn.Close() }
