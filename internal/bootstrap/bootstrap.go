// Package bootstrap implements a minimal DNS-over-UDP client used to
// resolve the hostnames of DoT/DoH upstreams. It exists because the
// forwarder cannot use the standard library resolver to look up an
// upstream's hostname before it has a working upstream at all.
package bootstrap

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/fakeshadow/dns-proxy/internal/wire"
)

// ErrTimeout is returned when a bootstrap query receives no usable
// reply after the configured number of attempts.
var ErrTimeout = errors.New("bootstrap: timed out resolving upstream host")

const (
	retryTimeout = 2 * time.Second
	maxRetries   = 10
)

// Resolver issues A-record queries against a fixed bootstrap address
// (e.g. 1.1.1.1:53) over a fresh, single-use UDP socket per query.
type Resolver struct {
	BootstrapAddr string
}

// New returns a Resolver that queries bootstrapAddr for every lookup.
func New(bootstrapAddr string) *Resolver {
	return &Resolver{BootstrapAddr: bootstrapAddr}
}

// Resolve looks up host's A records against the bootstrap resolver and
// returns addr:port pairs for each answer, using port for all of them.
// It sends the same query up to 10 times in all, waiting up to 2
// seconds for a reply after each send, before giving up with
// ErrTimeout.
func (r *Resolver) Resolve(host string, port int) ([]netip.AddrPort, error) {
	query, err := buildQuery(host)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: build query for %q: %w", host, err)
	}

	raddr, err := net.ResolveUDPAddr("udp", r.BootstrapAddr)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: resolve bootstrap address %q: %w", r.BootstrapAddr, err)
	}

	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: dial %q: %w", r.BootstrapAddr, err)
	}
	defer conn.Close()

	for attempt := 0; attempt < maxRetries; attempt++ {
		if _, err := conn.Write(query); err != nil {
			return nil, fmt.Errorf("bootstrap: send query: %w", err)
		}

		if err := conn.SetReadDeadline(time.Now().Add(retryTimeout)); err != nil {
			return nil, fmt.Errorf("bootstrap: set deadline: %w", err)
		}

		buf := make([]byte, wire.MaxPacketSize)
		n, err := conn.Read(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return nil, fmt.Errorf("bootstrap: read reply: %w", err)
		}

		addrs, err := extractAddrs(buf[:n], port)
		if err != nil {
			return nil, err
		}
		if len(addrs) == 0 {
			continue
		}
		return addrs, nil
	}

	return nil, fmt.Errorf("%w: host=%s after %d attempts", ErrTimeout, host, maxRetries)
}

func buildQuery(host string) ([]byte, error) {
	p := wire.Packet{
		Header: wire.Header{
			ID:               1,
			RecursionDesired: true,
			Questions:        1,
		},
		Questions: []wire.Question{
			{Name: host, Type: wire.TypeA},
		},
	}
	return p.Write(nil)
}

func extractAddrs(resp []byte, port int) ([]netip.AddrPort, error) {
	p, err := wire.ReadPacket(resp)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: decode reply: %w", err)
	}

	out := make([]netip.AddrPort, 0, len(p.Answers))
	for _, rr := range p.Answers {
		switch data := rr.Data.(type) {
		case wire.ARecord:
			if ip, ok := netip.AddrFromSlice(data.Addr.To4()); ok {
				out = append(out, netip.AddrPortFrom(ip, uint16(port)))
			}
		case wire.AAAARecord:
			if ip, ok := netip.AddrFromSlice(data.Addr.To16()); ok {
				out = append(out, netip.AddrPortFrom(ip, uint16(port)))
			}
		}
	}
	return out, nil
}
