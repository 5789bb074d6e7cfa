package upstream

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/sync/semaphore"

	"github.com/fakeshadow/dns-proxy/internal/wire"
)

// maxInFlightUDP bounds concurrent ephemeral sockets opened against
// the UDP upstream.
const maxInFlightUDP = 64

// UDPUpstream forwards one datagram per request to a fixed upstream
// address, bounded to maxInFlightUDP concurrent exchanges.
type UDPUpstream struct {
	addr *net.UDPAddr
	sem  *semaphore.Weighted
}

// NewUDP resolves addr once at construction and returns an UDPUpstream
// ready to proxy requests to it.
func NewUDP(addr string) (*UDPUpstream, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("upstream: resolve udp addr %q: %w", addr, err)
	}
	return &UDPUpstream{
		addr: raddr,
		sem:  semaphore.NewWeighted(maxInFlightUDP),
	}, nil
}

// Proxy binds an ephemeral local socket, connects to the upstream,
// sends request, and returns whatever comes back (truncated to the
// bytes actually received).
func (u *UDPUpstream) Proxy(ctx context.Context, request []byte) ([]byte, error) {
	if err := u.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("upstream: acquire udp permit: %w", err)
	}
	defer u.sem.Release(1)

	conn, err := net.DialUDP("udp", nil, u.addr)
	if err != nil {
		return nil, fmt.Errorf("upstream: dial udp %s: %w", u.addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := conn.Write(request); err != nil {
		return nil, fmt.Errorf("upstream: send to %s: %w", u.addr, err)
	}

	buf := make([]byte, wire.MaxPacketSize)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("upstream: recv from %s: %w", u.addr, err)
	}
	return buf[:n], nil
}

// Close is a no-op: UDPUpstream holds no persistent connection.
func (u *UDPUpstream) Close() error { return nil }
