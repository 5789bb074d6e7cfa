// Package cache implements the question-vector-keyed response cache:
// a readers-writer-locked map from a DNS question vector to its most
// recently seen answer set, with per-record TTL honored against a
// low-resolution clock.
package cache

import (
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/fakeshadow/dns-proxy/internal/wire"
)

// entry is one cached answer set and the instant it was stored.
type entry struct {
	answers  []wire.Record
	minTTL   uint32
	storedAt int64 // unix seconds, from the low-resolution clock
}

// expired reports whether the entry's age has reached its minimum TTL.
// This is the conservative "any answer expired" rule from the spec: a
// short-TTL record bundled with long-TTL records evicts the whole
// entry early. That is documented as-is, not a bug.
func (e entry) expired(now int64) bool {
	return now-e.storedAt >= int64(e.minTTL)
}

// key is the cache key: the question vector in wire order, each
// question reduced to its normalized name and type (class is never
// preserved on the wire, so it plays no part in the key either).
type key struct {
	name string
	typ  uint16
}

func keyFor(questions []wire.Question) []key {
	ks := make([]key, len(questions))
	for i, q := range questions {
		ks[i] = key{name: q.Name, typ: q.Type.Num()}
	}
	return ks
}

// clock is the time source a Cache reads from. *LowResClock implements
// it in production; tests substitute a fake to avoid waiting on real
// wall-clock ticks to exercise TTL expiry.
type clock interface {
	Now() int64
}

// Cache is a readers-writer-locked map from question vector to answer
// set, backed by a LowResClock so lookups never pay a syscall.
type Cache struct {
	logger *slog.Logger
	clock  clock
	owned  *LowResClock // non-nil iff this Cache started its own ticker

	mu      sync.RWMutex
	entries map[string]entry
}

// New constructs a Cache with its own background low-resolution clock
// ticker. Call Close when done to stop the ticker goroutine.
func New(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	lrc := NewLowResClock()
	return &Cache{
		logger:  logger,
		clock:   lrc,
		owned:   lrc,
		entries: make(map[string]entry),
	}
}

// Close stops the background clock ticker, if this Cache owns one.
func (c *Cache) Close() {
	if c.owned != nil {
		c.owned.Stop()
	}
}

// Get consults the cache for queryBytes, a raw DNS query datagram. On a
// hit it synthesizes a full response (header id carried through from
// the query, response=true, recursion_available=true, answer count
// from the cached entry) and returns its encoded bytes. On a miss, an
// expired entry, or any decode/encode failure it returns (nil, false)
// so the caller falls through to the upstream proxy.
func (c *Cache) Get(queryBytes []byte) ([]byte, bool) {
	query, err := wire.ReadPacket(queryBytes)
	if err != nil {
		return nil, false
	}
	if len(query.Questions) == 0 {
		return nil, false
	}

	k := mapKey(keyFor(query.Questions))

	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if e.expired(c.clock.Now()) {
		return nil, false
	}

	resp := wire.Packet{
		Header: wire.Header{
			ID:                 query.Header.ID,
			RecursionDesired:   query.Header.RecursionDesired,
			Response:           true,
			RecursionAvailable: true,
			ResultCode:         wire.NoError,
			Questions:          uint16(len(query.Questions)),
		},
		Questions: query.Questions,
		Answers:   e.answers,
	}

	out, err := resp.Write(c.logger)
	if err != nil {
		return nil, false
	}
	return out, true
}

// Set decodes responseBytes and, if successful, inserts
// questions -> answers, overwriting any existing entry for that
// question vector. Authorities and additionals are not cached. A
// decode failure is a silent no-op, and so is a response with no
// questions or no answers: it neither inserts nor replaces an entry.
func (c *Cache) Set(responseBytes []byte) {
	resp, err := wire.ReadPacket(responseBytes)
	if err != nil {
		return
	}
	if len(resp.Questions) == 0 || len(resp.Answers) == 0 {
		return
	}

	k := mapKey(keyFor(resp.Questions))
	e := entry{
		answers:  resp.Answers,
		minTTL:   minTTL(resp.Answers),
		storedAt: c.clock.Now(),
	}

	c.mu.Lock()
	c.entries[k] = e
	c.mu.Unlock()
}

func minTTL(answers []wire.Record) uint32 {
	min := answers[0].TTL
	for _, a := range answers[1:] {
		if a.TTL < min {
			min = a.TTL
		}
	}
	return min
}

// mapKey flattens a question vector's key slice into a single string
// safe for use as a Go map key, with a separator that cannot appear
// inside a normalized DNS name or decimal type number.
func mapKey(ks []key) string {
	var b strings.Builder
	for _, k := range ks {
		b.WriteString(k.name)
		b.WriteByte('|')
		b.WriteString(strconv.FormatUint(uint64(k.typ), 10))
		b.WriteByte(';')
	}
	return b.String()
}
