package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufferReadWriteRoundTrip(t *testing.T) {
	buf := NewBuffer()
	require.NoError(t, buf.WriteU16(0xBEEF))
	require.NoError(t, buf.WriteU32(0xCAFEBABE))
	require.NoError(t, buf.WriteByte(0x42))

	require.NoError(t, buf.Seek(0))
	v16, err := buf.ReadU16()
	require.NoError(t, err)
	require.Equal(t, uint16(0xBEEF), v16)

	v32, err := buf.ReadU32()
	require.NoError(t, err)
	require.Equal(t, uint32(0xCAFEBABE), v32)

	b, err := buf.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte(0x42), b)
}

func TestBufferOverflow(t *testing.T) {
	buf := NewBuffer()
	require.NoError(t, buf.Seek(MaxPacketSize))
	_, err := buf.ReadByte()
	require.ErrorIs(t, err, ErrBufferOverflow)

	err = buf.WriteByte(1)
	require.ErrorIs(t, err, ErrBufferOverflow)

	_, err = buf.ReadRange(1)
	require.ErrorIs(t, err, ErrBufferOverflow)
}

func TestBufferPeekDoesNotMoveCursor(t *testing.T) {
	buf := NewBufferFrom([]byte{1, 2, 3})
	v, err := buf.PeekAt(2)
	require.NoError(t, err)
	require.Equal(t, byte(3), v)
	require.Equal(t, 0, buf.Pos())
}
