package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderFlagBitsRoundTrip(t *testing.T) {
	h := Header{
		ID:                  0xABCD,
		RecursionDesired:    true,
		Truncated:           false,
		AuthoritativeAnswer: true,
		Response:            true,
		Opcode:              2,
		ResultCode:          ServFail,
		CheckingDisabled:    true,
		AuthedData:          false,
		Z:                   false,
		RecursionAvailable:  true,
		Questions:           1,
		Answers:             2,
		Authorities:         3,
		Additionals:         4,
	}

	buf := NewBuffer()
	require.NoError(t, h.Write(buf))
	require.Equal(t, HeaderSize, buf.Pos())

	require.NoError(t, buf.Seek(0))
	var got Header
	require.NoError(t, got.Read(buf))
	require.Equal(t, h, got)
}

func TestResultCodeFromNumDefaultsUnknownToNoError(t *testing.T) {
	require.Equal(t, NoError, ResultCodeFromNum(9))
	require.Equal(t, Refused, ResultCodeFromNum(5))
}
