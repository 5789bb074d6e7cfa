package cache

import (
	"log/slog"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fakeshadow/dns-proxy/internal/wire"
)

// fakeClock lets tests control elapsed time without waiting on a real
// 1-second ticker.
type fakeClock struct{ t int64 }

func (f *fakeClock) Now() int64 { return f.t }

func newTestCache(c clock) *Cache {
	return &Cache{
		logger:  slog.Default(),
		clock:   c,
		entries: make(map[string]entry),
	}
}

func buildQuery(id uint16, name string) []byte {
	p := wire.Packet{
		Header:    wire.Header{ID: id, RecursionDesired: true, Questions: 1},
		Questions: []wire.Question{{Name: name, Type: wire.TypeA}},
	}
	out, err := p.Write(nil)
	if err != nil {
		panic(err)
	}
	return out
}

func buildResponse(id uint16, name string, ttl uint32, addr string) []byte {
	p := wire.Packet{
		Header: wire.Header{
			ID: id, Response: true, RecursionAvailable: true,
			Questions: 1, Answers: 1,
		},
		Questions: []wire.Question{{Name: name, Type: wire.TypeA}},
		Answers: []wire.Record{
			{Domain: name, TTL: ttl, Data: wire.ARecord{Addr: net.ParseIP(addr)}},
		},
	}
	out, err := p.Write(nil)
	if err != nil {
		panic(err)
	}
	return out
}

func TestCacheSetThenGetReturnsCachedAnswers(t *testing.T) {
	c := newTestCache(&fakeClock{t: 1000})
	c.Set(buildResponse(1, "example.com", 300, "93.184.216.34"))

	out, ok := c.Get(buildQuery(42, "example.com"))
	require.True(t, ok)

	resp, err := wire.ReadPacket(out)
	require.NoError(t, err)
	require.Len(t, resp.Answers, 1)
	require.True(t, resp.Header.Response)
	require.True(t, resp.Header.RecursionAvailable)
}

func TestCacheGetPreservesQueryID(t *testing.T) {
	c := newTestCache(&fakeClock{t: 1000})
	c.Set(buildResponse(1, "example.com", 300, "93.184.216.34"))

	out, ok := c.Get(buildQuery(0xBEEF, "example.com"))
	require.True(t, ok)

	resp, err := wire.ReadPacket(out)
	require.NoError(t, err)
	require.Equal(t, uint16(0xBEEF), resp.Header.ID)
}

func TestCacheExpiresOnMinTTL(t *testing.T) {
	fc := &fakeClock{t: 1000}
	c := newTestCache(fc)
	c.Set(buildResponse(1, "example.com", 1, "93.184.216.34"))

	fc.t += 2
	_, ok := c.Get(buildQuery(1, "example.com"))
	require.False(t, ok)
}

func TestCacheMissIsNoOp(t *testing.T) {
	c := newTestCache(&fakeClock{t: 1000})
	_, ok := c.Get(buildQuery(1, "nowhere.example"))
	require.False(t, ok)
}

func TestCacheSetOverwritesExistingEntry(t *testing.T) {
	fc := &fakeClock{t: 1000}
	c := newTestCache(fc)
	c.Set(buildResponse(1, "example.com", 300, "1.1.1.1"))
	c.Set(buildResponse(2, "example.com", 300, "2.2.2.2"))

	out, ok := c.Get(buildQuery(1, "example.com"))
	require.True(t, ok)
	resp, err := wire.ReadPacket(out)
	require.NoError(t, err)
	a := resp.Answers[0].Data.(wire.ARecord)
	require.True(t, a.Addr.Equal(net.ParseIP("2.2.2.2")))
}
