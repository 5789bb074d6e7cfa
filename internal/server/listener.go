// Package server implements the UDP-facing listener and dispatcher: it
// binds the configured client-facing address, consults the cache on
// every datagram, and falls through to the chosen upstream on a miss.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/fakeshadow/dns-proxy/internal/cache"
	"github.com/fakeshadow/dns-proxy/internal/pool"
	"github.com/fakeshadow/dns-proxy/internal/upstream"
	"github.com/fakeshadow/dns-proxy/internal/wire"
)

// recvBufferPool reduces allocation churn for the scratch buffer each
// recvLoop reads a datagram into before copying out the used prefix.
var recvBufferPool = pool.New(func() *[]byte {
	buf := make([]byte, wire.MaxPacketSize)
	return &buf
})

// Listener binds one or more SO_REUSEPORT UDP sockets (one per worker)
// to addr and dispatches every received datagram to a fresh goroutine,
// so the receive loop never blocks on upstream latency. This replaces
// the teacher's fixed-worker-pool-with-packet-dropping model: every
// request runs, none are dropped for want of a free worker.
type Listener struct {
	Logger   *slog.Logger
	Cache    *cache.Cache
	Upstream upstream.Upstream
	Workers  int // number of SO_REUSEPORT sockets; default 1

	conns []*net.UDPConn
}

// Run opens Workers SO_REUSEPORT sockets bound to addr and serves each
// with its own receive loop until ctx is cancelled.
func (l *Listener) Run(ctx context.Context, addr string) error {
	workers := l.Workers
	if workers <= 0 {
		workers = 1
	}
	if l.Logger == nil {
		l.Logger = slog.Default()
	}

	l.conns = make([]*net.UDPConn, 0, workers)
	for range workers {
		conn, err := listenReusePort(addr)
		if err != nil {
			for _, c := range l.conns {
				_ = c.Close()
			}
			return err
		}
		l.conns = append(l.conns, conn)
	}

	closeOnce := make(chan struct{})
	closeAll := func() {
		select {
		case <-closeOnce:
		default:
			close(closeOnce)
			for _, c := range l.conns {
				_ = c.Close()
			}
		}
	}
	go func() {
		<-ctx.Done()
		closeAll()
	}()

	// errs has capacity for every socket; a socket that sees a
	// non-transient I/O error reports it and stops, making that error
	// fatal for the whole listener.
	errs := make(chan error, workers)
	for _, conn := range l.conns {
		go func(c *net.UDPConn) {
			errs <- l.recvLoop(ctx, c)
		}(conn)
	}

	var fatal error
	for range l.conns {
		if err := <-errs; err != nil && fatal == nil {
			fatal = err
			closeAll()
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return fatal
}

// recvLoop reads datagrams from one socket and spawns a handler
// goroutine per datagram. It returns nil when the socket closes during
// shutdown (ctx done), and a non-nil error for any other I/O failure,
// which the caller treats as fatal for the whole listener.
func (l *Listener) recvLoop(ctx context.Context, conn *net.UDPConn) error {
	for {
		bufPtr := recvBufferPool.Get()
		n, peer, err := conn.ReadFromUDP(*bufPtr)
		if err != nil {
			recvBufferPool.Put(bufPtr)
			if ctx.Err() != nil {
				return nil
			}
			if isTransientUDPError(err) {
				continue
			}
			l.Logger.Error("listener: recv failed, stopping", "err", err)
			return err
		}

		query := make([]byte, n)
		copy(query, (*bufPtr)[:n])
		recvBufferPool.Put(bufPtr)
		go l.handle(ctx, conn, peer, query)
	}
}

// handle answers one query: cache hit replies immediately; a miss
// proxies upstream, caches a successful reply, and writes it back.
func (l *Listener) handle(ctx context.Context, conn *net.UDPConn, peer *net.UDPAddr, query []byte) {
	if resp, ok := l.Cache.Get(query); ok {
		_, _ = conn.WriteToUDP(resp, peer)
		return
	}

	resp, err := l.Upstream.Proxy(ctx, query)
	if err != nil {
		l.Logger.Warn("listener: upstream proxy failed", "peer", peer, "err", err)
		return
	}

	l.Cache.Set(resp)
	_, _ = conn.WriteToUDP(resp, peer)
}

// isTransientUDPError reports whether err is one of the connection
// errors that a UDP listen socket can observe from unrelated ICMP
// feedback, which should be ignored rather than terminate the loop.
func isTransientUDPError(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ECONNRESET)
}

// listenReusePort opens a UDP socket with SO_REUSEPORT set, so multiple
// workers can share one bound address with kernel-level load spreading.
func listenReusePort(addr string) (*net.UDPConn, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}

	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var ctlErr error
			if err := c.Control(func(fd uintptr) {
				ctlErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			}); err != nil {
				return err
			}
			return ctlErr
		},
	}

	pc, err := lc.ListenPacket(context.Background(), "udp", udpAddr.String())
	if err != nil {
		return nil, err
	}
	return pc.(*net.UDPConn), nil
}
