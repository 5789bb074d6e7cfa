package wire

import (
	"fmt"
	"strings"
)

// maxCompressionDepth bounds the number of compression-pointer jumps
// followed while decoding a single name. Combined with the visited-
// offset set below, this rejects both runaway chains and pointer
// loops. The spec leaves this unbounded as an open question; this
// value resolves it the way the teacher's codec already does.
const maxCompressionDepth = 20

// maxEncodedNameLength is the wire-format cap on an encoded name,
// including length bytes and the terminating zero label.
const maxEncodedNameLength = 255

// maxLabelLength is the largest length byte a label may carry (RFC
// 1035: 6-bit length, top two bits reserved for compression pointers).
const maxLabelLength = 0x3F

// isPointer reports whether a label-length byte is actually the first
// byte of a compression pointer (top two bits set).
func isPointer(b byte) bool { return b&0xC0 == 0xC0 }

// readName decodes a (possibly compressed) domain name starting at the
// buffer's current cursor. On the first compression jump the buffer's
// own cursor is advanced exactly 2 bytes past the pointer and frozen
// there; all further movement happens on a local offset so that, from
// the caller's perspective, a pointer behaves like an inline name
// occupying exactly 2 bytes.
func readName(buf *Buffer) (string, error) {
	var labels []string
	jumped := false
	depth := 0
	visited := make(map[int]struct{})
	pos := buf.Pos()

	for {
		if depth > maxCompressionDepth {
			return "", fmt.Errorf("%w: too many compression jumps", ErrCompressionLoop)
		}

		lenByte, err := buf.PeekAt(pos)
		if err != nil {
			return "", err
		}

		if isPointer(lenByte) {
			second, err := buf.PeekAt(pos + 1)
			if err != nil {
				return "", err
			}
			ptr := int(lenByte&0x3F)<<8 | int(second)

			if !jumped {
				if err := buf.Seek(pos + 2); err != nil {
					return "", err
				}
				jumped = true
			}
			if _, seen := visited[ptr]; seen {
				return "", fmt.Errorf("%w: pointer revisits offset %d", ErrCompressionLoop, ptr)
			}
			visited[ptr] = struct{}{}
			pos = ptr
			depth++
			continue
		}

		pos++
		if lenByte == 0 {
			break
		}
		label := make([]byte, lenByte)
		for i := range label {
			c, err := buf.PeekAt(pos)
			if err != nil {
				return "", err
			}
			label[i] = c
			pos++
		}
		labels = append(labels, strings.ToLower(string(label)))
	}

	if !jumped {
		if err := buf.Seek(pos); err != nil {
			return "", err
		}
	}

	return strings.Join(labels, "."), nil
}

// writeName encodes domain as a sequence of length-prefixed labels
// terminated by a zero-length label. Compression is never performed on
// write, per spec.
func writeName(buf *Buffer, domain string) error {
	domain = strings.TrimSuffix(domain, ".")

	total := 0
	if domain != "" {
		for _, label := range strings.Split(domain, ".") {
			if len(label) > maxLabelLength {
				return fmt.Errorf("%w: label %q is %d bytes, max %d", ErrInvalidLabel, label, len(label), maxLabelLength)
			}
			if err := buf.WriteByte(byte(len(label))); err != nil {
				return err
			}
			if err := buf.WriteBytes([]byte(label)); err != nil {
				return err
			}
			total += 1 + len(label)
		}
	}
	total++ // terminating zero byte
	if total > maxEncodedNameLength {
		return fmt.Errorf("%w: encoded name is %d bytes, max %d", ErrInvalidLabel, total, maxEncodedNameLength)
	}
	return buf.WriteByte(0)
}
