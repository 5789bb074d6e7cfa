package upstream

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/fakeshadow/dns-proxy/internal/bootstrap"
)

// addrResolver is the subset of *bootstrap.Resolver that connect needs,
// narrowed to a seam so tests can resolve a loopback address without a
// real bootstrap DNS round-trip.
type addrResolver interface {
	Resolve(host string, port int) ([]netip.AddrPort, error)
}

const (
	dotSubmitQueueSize = 256
	dotReconnectDelay  = time.Second
	dotLengthPrefix    = 2
)

// dotSubmission is one client request awaiting exactly one upstream
// reply. reply is buffered 1 so the engine's delivery never blocks on
// a slow or abandoned caller; it is closed without a send to signal
// ErrProxyClosed.
type dotSubmission struct {
	request []byte
	reply   chan []byte
}

// DoTUpstream is a single persistent DNS-over-TLS connection
// multiplexing many concurrent client queries with in-order response
// dispatch, owned by one supervisor goroutine that reconnects on
// failure.
//
// Go's crypto/tls.Conn exposes only blocking Read/Write, not the
// readiness/interest API the original engine was built against, so
// each connection "generation" is driven by a writer goroutine and a
// reader goroutine rather than one goroutine selecting on readiness.
// Exactly one of each runs at a time; they touch shared state (the
// pending-reply FIFO) only through a small mutex.
type DoTUpstream struct {
	host     string
	port     int
	resolver addrResolver
	tlsCfg   *tls.Config
	logger   *slog.Logger

	submit chan dotSubmission

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDoT starts the supervisor goroutine and returns once the first
// connection attempt has been kicked off (it does not block on the
// handshake completing; the first submission waits in the buffered
// submit channel until a generation is ready to drain it).
func NewDoT(host string, port int, resolver *bootstrap.Resolver, tlsCfg *tls.Config, logger *slog.Logger) *DoTUpstream {
	return newDoT(host, port, resolver, tlsCfg, logger)
}

// newDoT is the real constructor, taking the narrower addrResolver seam
// so tests can substitute a loopback resolver.
func newDoT(host string, port int, resolver addrResolver, tlsCfg *tls.Config, logger *slog.Logger) *DoTUpstream {
	if logger == nil {
		logger = slog.Default()
	}
	if tlsCfg == nil {
		tlsCfg = &tls.Config{ServerName: host}
	} else if tlsCfg.ServerName == "" {
		tlsCfg = tlsCfg.Clone()
		tlsCfg.ServerName = host
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &DoTUpstream{
		host:     host,
		port:     port,
		resolver: resolver,
		tlsCfg:   tlsCfg,
		logger:   logger,
		submit:   make(chan dotSubmission, dotSubmitQueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}

	d.wg.Add(1)
	go d.supervise()
	return d
}

// Proxy submits request to the engine and awaits exactly one reply.
func (d *DoTUpstream) Proxy(ctx context.Context, request []byte) ([]byte, error) {
	sink := make(chan []byte, 1)
	select {
	case d.submit <- dotSubmission{request: request, reply: sink}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-d.ctx.Done():
		return nil, ErrProxyClosed
	}

	select {
	case resp, ok := <-sink:
		if !ok {
			return nil, ErrProxyClosed
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close cancels the engine and waits for the supervisor to exit. The
// current connection is closed at once; replies still in flight are not
// drained, and every submission awaiting a reply, queued or already
// written, observes ErrProxyClosed.
func (d *DoTUpstream) Close() error {
	d.cancel()
	d.wg.Wait()
	return nil
}

// supervise owns the reconnect loop: resolve, dial, handshake, run one
// connection generation to completion, and repeat until the engine's
// context is cancelled.
func (d *DoTUpstream) supervise() {
	defer d.wg.Done()

	for {
		if d.ctx.Err() != nil {
			d.drainRemaining()
			return
		}

		conn, err := d.connect()
		if err != nil {
			d.logger.Warn("dot: connect failed, retrying", "host", d.host, "err", err)
			select {
			case <-time.After(dotReconnectDelay):
				continue
			case <-d.ctx.Done():
				d.drainRemaining()
				return
			}
		}

		d.runGeneration(conn)
	}
}

// drainRemaining empties any submissions already queued once the
// engine is shutting down for good, so callers observe ErrProxyClosed
// instead of blocking forever.
func (d *DoTUpstream) drainRemaining() {
	for {
		select {
		case sub := <-d.submit:
			close(sub.reply)
		default:
			return
		}
	}
}

// connect resolves the upstream via bootstrap, dials the first
// reachable address with TCP_NODELAY set, and completes the TLS
// handshake.
func (d *DoTUpstream) connect() (*tls.Conn, error) {
	addrs, err := d.resolver.Resolve(d.host, d.port)
	if err != nil {
		return nil, fmt.Errorf("upstream: dot bootstrap resolve %q: %w", d.host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("upstream: dot bootstrap resolve %q: no addresses", d.host)
	}

	dialer := net.Dialer{
		Timeout: 5 * time.Second,
		Control: func(_, _ string, c syscall.RawConn) error {
			var ctlErr error
			if err := c.Control(func(fd uintptr) {
				ctlErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
			}); err != nil {
				return err
			}
			return ctlErr
		},
	}

	var lastErr error
	for _, addr := range addrs {
		raw, err := dialer.Dial("tcp", addr.String())
		if err != nil {
			lastErr = err
			continue
		}
		tlsConn := tls.Client(raw, d.tlsCfg)
		hsCtx, cancel := context.WithTimeout(d.ctx, 5*time.Second)
		err = tlsConn.HandshakeContext(hsCtx)
		cancel()
		if err != nil {
			_ = raw.Close()
			lastErr = err
			continue
		}
		return tlsConn, nil
	}
	return nil, fmt.Errorf("upstream: dot dial %v: %w", addrs, lastErr)
}

// fifo is the in-order queue of pending reply sinks, shared by the
// writer and reader goroutines of one generation.
type fifo struct {
	mu    sync.Mutex
	sinks []chan []byte
}

func (f *fifo) push(sink chan []byte) {
	f.mu.Lock()
	f.sinks = append(f.sinks, sink)
	f.mu.Unlock()
}

func (f *fifo) pop() (chan []byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sinks) == 0 {
		return nil, false
	}
	sink := f.sinks[0]
	f.sinks = f.sinks[1:]
	return sink, true
}

func (f *fifo) drain() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sink := range f.sinks {
		close(sink)
	}
	f.sinks = nil
}

func (f *fifo) empty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sinks) == 0
}

// runGeneration drives one TLS connection from handshake to failure:
// a writer goroutine encodes submissions and flushes them, a reader
// goroutine decodes length-prefixed replies and delivers them in FIFO
// order, and a closer goroutine tears down the connection as soon as
// either one signals stop (or the engine's context is cancelled),
// which is what lets the reader's blocking conn.Read return instead of
// waiting forever on an idle peer. It returns once all three have
// exited, the connection closed, and any still-pending sinks released
// as ErrProxyClosed.
func (d *DoTUpstream) runGeneration(conn *tls.Conn) {
	q := &fifo{}
	var writerDone atomic.Bool
	stop := make(chan struct{})
	var stopOnce sync.Once
	signalStop := func() {
		stopOnce.Do(func() { close(stop) })
	}

	var wg sync.WaitGroup
	wg.Add(3)

	go func() { // closer: unblocks the reader's in-flight Read once the
		// generation is ending for any reason, mirroring the listener's
		// closeAll pattern. Without this, a reader blocked on conn.Read
		// with an idle peer never learns the engine is shutting down.
		defer wg.Done()
		select {
		case <-d.ctx.Done():
		case <-stop:
		}
		_ = conn.Close()
	}()

	go func() { // writer
		defer wg.Done()
		defer writerDone.Store(true)
		defer signalStop()
		for {
			select {
			case <-d.ctx.Done():
				return
			case <-stop:
				return
			case sub, ok := <-d.submit:
				if !ok {
					return
				}
				q.push(sub.reply)
				if err := writeFrame(conn, sub.request); err != nil {
					d.logger.Warn("dot: write failed", "err", err)
					signalStop()
					return
				}
			}
		}
	}()

	go func() { // reader
		defer wg.Done()
		defer signalStop()

		var readBuf []byte // bytes received but not yet consumed
		expectedLen := -1  // -1 means "waiting for a 2-byte length prefix"
		tmp := make([]byte, 4096)

		for {
			n, err := conn.Read(tmp)
			if n > 0 {
				readBuf = append(readBuf, tmp[:n]...)
			}
			if err != nil {
				return
			}

			for {
				if expectedLen < 0 {
					if len(readBuf) < dotLengthPrefix {
						break
					}
					expectedLen = int(binary.BigEndian.Uint16(readBuf[:dotLengthPrefix]))
					readBuf = readBuf[dotLengthPrefix:]
				}
				if len(readBuf) < expectedLen {
					break
				}
				msg := make([]byte, expectedLen)
				copy(msg, readBuf[:expectedLen])
				readBuf = readBuf[expectedLen:]
				expectedLen = -1

				if sink, ok := q.pop(); ok {
					sink <- msg
					close(sink)
				}
			}

			if writerDone.Load() && q.empty() {
				return
			}
		}
	}()

	wg.Wait()
	_ = conn.Close()
	q.drain()
}

// writeFrame writes the 2-byte big-endian length prefix followed by
// the payload.
func writeFrame(conn *tls.Conn, payload []byte) error {
	var prefix [dotLengthPrefix]byte
	binary.BigEndian.PutUint16(prefix[:], uint16(len(payload)))
	if _, err := conn.Write(prefix[:]); err != nil {
		return err
	}
	_, err := conn.Write(payload)
	return err
}
