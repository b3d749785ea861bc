// Package transport moves OSC packets over UDP. The receiver decodes
// datagrams, fingerprints bundles for deduplication, and hands packets
// to the scheduler; the sender serializes outgoing packets to a fixed
// peer.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/mbward/oscpump/internal/osc"
	"github.com/mbward/oscpump/internal/sched"
)

// maxDatagram bounds a single inbound OSC datagram. Matches the common
// OSC-over-UDP MTU convention rather than a protocol limit.
const maxDatagram = 8192

// Receiver reads OSC datagrams from a UDP socket and submits them to a
// scheduler.
type Receiver struct {
	conn  *net.UDPConn
	sched *sched.Scheduler
	log   *slog.Logger
}

// Listen binds a UDP socket on addr (host:port) and returns a receiver
// feeding s.
func Listen(addr string, s *sched.Scheduler) (*Receiver, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve listen address %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return &Receiver{
		conn:  conn,
		sched: s,
		log:   slog.With("listen", conn.LocalAddr().String()),
	}, nil
}

// Addr returns the bound local address.
func (r *Receiver) Addr() net.Addr { return r.conn.LocalAddr() }

// Run reads datagrams until ctx is canceled. Malformed datagrams are
// logged and skipped; the loop only stops on socket closure.
func (r *Receiver) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		r.conn.Close()
	}()

	buf := make([]byte, maxDatagram)
	for {
		n, from, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return ctx.Err()
			}
			return fmt.Errorf("read datagram: %w", err)
		}

		pkt, err := osc.Decode(buf[:n])
		if err != nil {
			r.log.Warn("malformed datagram dropped", "from", from, "bytes", n, "error", err)
			continue
		}
		if b, ok := pkt.(*osc.Bundle); ok {
			stamp(b)
		}
		if err := r.sched.Submit(ctx, pkt); err != nil {
			r.log.Warn("packet rejected", "from", from, "error", err)
		}
	}
}

// stamp assigns content fingerprints as dedup identifiers, so the same
// bundle arriving twice (a sender retry, a duplicated datagram) carries
// the same ID both times. Nested bundles get their own fingerprints for
// the rescheduling path.
func stamp(b *osc.Bundle) {
	if b.ID == "" {
		if id, err := osc.Fingerprint(b); err == nil {
			b.ID = id
		}
	}
	for _, el := range b.Elements {
		if nested, ok := el.(*osc.Bundle); ok {
			stamp(nested)
		}
	}
}
