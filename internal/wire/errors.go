// Package wire implements the DNS message wire format: a fixed 512-byte
// buffer with a cursor, the 12-byte header, questions, and resource
// records (RFC 1035 Section 4).
package wire

import "errors"

var (
	// ErrBufferOverflow is returned by any Buffer read or write that
	// would move the cursor past the 512-byte limit. Callers treat a
	// packet that trips this as not parseable and fall back to opaque
	// forwarding.
	ErrBufferOverflow = errors.New("wire: buffer overflow")

	// ErrInvalidLabel is returned when encoding a name whose label
	// exceeds 63 bytes.
	ErrInvalidLabel = errors.New("wire: invalid label")

	// ErrCompressionLoop is returned when decoding a name whose
	// compression pointers revisit an offset or exceed the maximum
	// jump depth.
	ErrCompressionLoop = errors.New("wire: compression pointer loop")
)
