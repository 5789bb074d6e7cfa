package upstream

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// startEchoUDPServer replies to every datagram with its bytes reversed.
func startEchoUDPServer(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)

	go func() {
		buf := make([]byte, 1500)
		for {
			n, raddr, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			reply := reverseBytes(buf[:n])
			_, _ = conn.WriteToUDP(reply, raddr)
		}
	}()

	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestUDPProxyRoundTrip(t *testing.T) {
	srv := startEchoUDPServer(t)

	u, err := NewUDP(srv.LocalAddr().String())
	require.NoError(t, err)
	defer u.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := u.Proxy(ctx, []byte("query"))
	require.NoError(t, err)
	require.Equal(t, reverseBytes([]byte("query")), resp)
}

func TestUDPProxyBoundsConcurrency(t *testing.T) {
	srv := startEchoUDPServer(t)

	u, err := NewUDP(srv.LocalAddr().String())
	require.NoError(t, err)
	defer u.Close()

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			req := []byte{byte(i)}
			resp, err := u.Proxy(ctx, req)
			require.NoError(t, err)
			require.Equal(t, req, resp)
		}(i)
	}
	wg.Wait()
}

func TestUDPProxyContextCancelled(t *testing.T) {
	srv := startEchoUDPServer(t)

	u, err := NewUDP(srv.LocalAddr().String())
	require.NoError(t, err)
	defer u.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = u.Proxy(ctx, []byte("query"))
	require.Error(t, err)
}
