// Package upstream implements the three upstream proxy variants — UDP,
// DoH, and DoT — behind a single polymorphic capability, so the
// listener and cache never need to know which protocol an upstream
// speaks.
package upstream

import "context"

// Upstream is the capability every proxy variant exposes: send a raw
// DNS message to the configured upstream and return its raw reply.
// UDP and DoH are per-request (no held connection); DoT owns a
// persistent connection behind this same call.
type Upstream interface {
	Proxy(ctx context.Context, request []byte) ([]byte, error)
	Close() error
}
