package server

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fakeshadow/dns-proxy/internal/cache"
	"github.com/fakeshadow/dns-proxy/internal/wire"
)

// fakeUpstream answers every query with a fixed A record and counts
// invocations, so tests can assert a cache hit never reaches it.
type fakeUpstream struct {
	calls atomic.Int32
	ip    net.IP
	ttl   uint32
}

func (f *fakeUpstream) Proxy(_ context.Context, request []byte) ([]byte, error) {
	f.calls.Add(1)
	q, err := wire.ReadPacket(request)
	if err != nil {
		return nil, err
	}
	resp := wire.Packet{
		Header: wire.Header{
			ID:                 q.Header.ID,
			Response:           true,
			RecursionAvailable: true,
			ResultCode:         wire.NoError,
			Questions:          uint16(len(q.Questions)),
			Answers:            1,
		},
		Questions: q.Questions,
		Answers: []wire.Record{
			{Domain: q.Questions[0].Name, TTL: f.ttl, Data: wire.ARecord{Addr: f.ip}},
		},
	}
	return resp.Write(nil)
}

func (f *fakeUpstream) Close() error { return nil }

func buildQueryBytes(t *testing.T, name string) []byte {
	t.Helper()
	p := wire.Packet{
		Header:    wire.Header{ID: 0x1234, RecursionDesired: true, Questions: 1},
		Questions: []wire.Question{{Name: name, Type: wire.TypeA}},
	}
	b, err := p.Write(nil)
	require.NoError(t, err)
	return b
}

func TestListenerCacheMissThenHit(t *testing.T) {
	c := cache.New(nil)
	defer c.Close()
	up := &fakeUpstream{ip: net.IPv4(93, 184, 216, 34), ttl: 300}

	l := &Listener{Cache: c, Upstream: up}

	clientConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer clientConn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	l.conns = []*net.UDPConn{serverConn}
	go l.recvLoop(ctx, serverConn)

	query := buildQueryBytes(t, "example.com")

	_, err = clientConn.WriteToUDP(query, serverConn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)

	buf := make([]byte, wire.MaxPacketSize)
	require.NoError(t, clientConn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := clientConn.ReadFromUDP(buf)
	require.NoError(t, err)

	resp, err := wire.ReadPacket(buf[:n])
	require.NoError(t, err)
	require.Equal(t, uint16(0x1234), resp.Header.ID)
	require.Len(t, resp.Answers, 1)
	require.EqualValues(t, 1, up.calls.Load())

	// handle calls Cache.Set before writing the reply, so the entry
	// should already be present; confirm it before the second query.
	require.Eventually(t, func() bool {
		_, ok := c.Get(query)
		return ok
	}, time.Second, 10*time.Millisecond)

	_, err = clientConn.WriteToUDP(query, serverConn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	require.NoError(t, clientConn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err = clientConn.ReadFromUDP(buf)
	require.NoError(t, err)
	_, err = wire.ReadPacket(buf[:n])
	require.NoError(t, err)

	require.EqualValues(t, 1, up.calls.Load(), "second query should be served from cache, not upstream")
}
