package wire

import "fmt"

// MaxPacketSize is the hard ceiling on a DNS/UDP message this codec will
// ever read or write. Messages larger than this are out of scope (see
// Non-goals: UDP fragmentation / messages larger than 512 bytes).
const MaxPacketSize = 512

// Buffer is a mutable byte window of fixed maximum size 512 with a
// current cursor position. Every read or write that would move the
// cursor past MaxPacketSize fails with ErrBufferOverflow rather than
// growing the underlying array, mirroring the fixed-size datagram
// buffer a DNS/UDP implementation actually works against.
type Buffer struct {
	buf [MaxPacketSize]byte
	pos int
}

// NewBuffer returns an empty Buffer positioned at offset 0.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// NewBufferFrom copies data into a fresh Buffer positioned at offset 0.
// data longer than MaxPacketSize is truncated to MaxPacketSize, matching
// how a UDP datagram read is itself bounded by the receive buffer size.
func NewBufferFrom(data []byte) *Buffer {
	b := &Buffer{}
	n := copy(b.buf[:], data)
	_ = n
	return b
}

// Pos returns the current cursor position.
func (b *Buffer) Pos() int { return b.pos }

// Len returns the number of bytes written so far, i.e. the current
// cursor position. Used when producing the used prefix of a freshly
// encoded packet.
func (b *Buffer) Len() int { return b.pos }

// Bytes returns the used prefix of the buffer, [0:Pos()).
func (b *Buffer) Bytes() []byte {
	return b.buf[:b.pos]
}

// Seek moves the cursor to an absolute position without bounds-checking
// beyond MaxPacketSize, used by name decompression to jump to a pointer
// target and back.
func (b *Buffer) Seek(pos int) error {
	if pos < 0 || pos > MaxPacketSize {
		return fmt.Errorf("%w: seek to %d", ErrBufferOverflow, pos)
	}
	b.pos = pos
	return nil
}

// Step advances the cursor by n bytes.
func (b *Buffer) Step(n int) error {
	return b.Seek(b.pos + n)
}

// PeekAt reads a single byte at an absolute offset without moving the
// cursor.
func (b *Buffer) PeekAt(offset int) (byte, error) {
	if offset < 0 || offset >= MaxPacketSize {
		return 0, fmt.Errorf("%w: peek at %d", ErrBufferOverflow, offset)
	}
	return b.buf[offset], nil
}

// ReadByte reads and advances past one byte.
func (b *Buffer) ReadByte() (byte, error) {
	if b.pos >= MaxPacketSize {
		return 0, fmt.Errorf("%w: read byte at %d", ErrBufferOverflow, b.pos)
	}
	v := b.buf[b.pos]
	b.pos++
	return v, nil
}

// ReadU16 reads a big-endian 16-bit value and advances the cursor by 2.
func (b *Buffer) ReadU16() (uint16, error) {
	hi, err := b.ReadByte()
	if err != nil {
		return 0, err
	}
	lo, err := b.ReadByte()
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

// ReadU32 reads a big-endian 32-bit value and advances the cursor by 4.
func (b *Buffer) ReadU32() (uint32, error) {
	hi, err := b.ReadU16()
	if err != nil {
		return 0, err
	}
	lo, err := b.ReadU16()
	if err != nil {
		return 0, err
	}
	return uint32(hi)<<16 | uint32(lo), nil
}

// ReadRange returns a copy of len bytes starting at the cursor and
// advances past them.
func (b *Buffer) ReadRange(length int) ([]byte, error) {
	if length < 0 || b.pos+length > MaxPacketSize {
		return nil, fmt.Errorf("%w: read range len=%d at %d", ErrBufferOverflow, length, b.pos)
	}
	out := make([]byte, length)
	copy(out, b.buf[b.pos:b.pos+length])
	b.pos += length
	return out, nil
}

// WriteByte writes one byte and advances the cursor by 1.
func (b *Buffer) WriteByte(v byte) error {
	if b.pos >= MaxPacketSize {
		return fmt.Errorf("%w: write byte at %d", ErrBufferOverflow, b.pos)
	}
	b.buf[b.pos] = v
	b.pos++
	return nil
}

// WriteU16 writes a big-endian 16-bit value and advances by 2.
func (b *Buffer) WriteU16(v uint16) error {
	if err := b.WriteByte(byte(v >> 8)); err != nil {
		return err
	}
	return b.WriteByte(byte(v))
}

// WriteU32 writes a big-endian 32-bit value and advances by 4.
func (b *Buffer) WriteU32(v uint32) error {
	if err := b.WriteU16(uint16(v >> 16)); err != nil {
		return err
	}
	return b.WriteU16(uint16(v))
}

// WriteBytes writes raw bytes and advances the cursor accordingly.
func (b *Buffer) WriteBytes(data []byte) error {
	if b.pos+len(data) > MaxPacketSize {
		return fmt.Errorf("%w: write %d bytes at %d", ErrBufferOverflow, len(data), b.pos)
	}
	copy(b.buf[b.pos:], data)
	b.pos += len(data)
	return nil
}

// setU16At backfills a 16-bit value at an absolute offset, used to
// patch rdlength after writing a variable-length record payload.
func (b *Buffer) setU16At(offset int, v uint16) error {
	if offset < 0 || offset+2 > MaxPacketSize {
		return fmt.Errorf("%w: set u16 at %d", ErrBufferOverflow, offset)
	}
	b.buf[offset] = byte(v >> 8)
	b.buf[offset+1] = byte(v)
	return nil
}
