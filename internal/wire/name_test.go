package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadNameRoundTrip(t *testing.T) {
	buf := NewBuffer()
	require.NoError(t, writeName(buf, "www.Example.com"))
	require.NoError(t, buf.Seek(0))
	name, err := readName(buf)
	require.NoError(t, err)
	require.Equal(t, "www.example.com", name)
}

func TestWriteNameRejectsOversizedLabel(t *testing.T) {
	buf := NewBuffer()
	oversized := make([]byte, 64)
	for i := range oversized {
		oversized[i] = 'a'
	}
	err := writeName(buf, string(oversized)+".com")
	require.ErrorIs(t, err, ErrInvalidLabel)
}

func TestReadNameFollowsSingleCompressionPointer(t *testing.T) {
	buf := NewBuffer()
	// Offset 0: the real name "example.com".
	require.NoError(t, writeName(buf, "example.com"))
	afterReal := buf.Pos()

	// Offset afterReal: a pointer back to offset 0.
	require.NoError(t, buf.WriteByte(0xC0))
	require.NoError(t, buf.WriteByte(0x00))

	require.NoError(t, buf.Seek(afterReal))
	name, err := readName(buf)
	require.NoError(t, err)
	require.Equal(t, "example.com", name)
	// The outer cursor advances exactly 2 bytes past the pointer.
	require.Equal(t, afterReal+2, buf.Pos())
}

func TestReadNameFollowsChainedCompressionPointers(t *testing.T) {
	buf := NewBuffer()
	require.NoError(t, writeName(buf, "example.com"))
	afterReal := buf.Pos()

	require.NoError(t, buf.WriteByte(0xC0))
	require.NoError(t, buf.WriteByte(0x00))
	firstPointerOff := afterReal
	afterFirstPointer := buf.Pos()

	require.NoError(t, buf.WriteByte(0xC0))
	require.NoError(t, buf.WriteByte(byte(firstPointerOff)))

	require.NoError(t, buf.Seek(afterFirstPointer))
	name, err := readName(buf)
	require.NoError(t, err)
	require.Equal(t, "example.com", name)
}

func TestReadNameRejectsPointerLoop(t *testing.T) {
	buf := NewBuffer()
	// A pointer at offset 0 pointing to itself.
	require.NoError(t, buf.WriteByte(0xC0))
	require.NoError(t, buf.WriteByte(0x00))

	require.NoError(t, buf.Seek(0))
	_, err := readName(buf)
	require.ErrorIs(t, err, ErrCompressionLoop)
}
