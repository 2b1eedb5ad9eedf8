package memprotogw

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildGetRequest(opcode Opcode, key string, opaque uint32) []byte {
	body := []byte(key)
	buf := make([]byte, HeaderSize+len(body))
	buf[0] = magicRequest
	buf[1] = byte(opcode)
	buf[2] = byte(len(key) >> 8)
	buf[3] = byte(len(key))
	buf[8] = byte(len(body) >> 24)
	buf[9] = byte(len(body) >> 16)
	buf[10] = byte(len(body) >> 8)
	buf[11] = byte(len(body))
	buf[12] = byte(opaque >> 24)
	buf[13] = byte(opaque >> 16)
	buf[14] = byte(opaque >> 8)
	buf[15] = byte(opaque)
	copy(buf[HeaderSize:], body)
	return buf
}

func TestFramerSingleFrame(t *testing.T) {
	raw := buildGetRequest(OpGet, "hello", 7)

	f := NewFramer(0)
	consumed, status, err := f.Execute(raw)
	require.NoError(t, err)
	require.Equal(t, FrameComplete, status)
	require.Equal(t, len(raw), consumed)

	frame := f.Current()
	require.Equal(t, OpGet, frame.Header.Opcode)
	require.Equal(t, uint32(7), frame.Header.Opaque)
	require.Equal(t, "hello", string(frame.Key))
	require.Empty(t, frame.Value)
}

func TestFramerByteAtATime(t *testing.T) {
	raw := buildGetRequest(OpGetK, "k", 1)
	f := NewFramer(0)

	var status FrameStatus
	var err error
	total := 0
	for total < len(raw) {
		var consumed int
		consumed, status, err = f.Execute(raw[total : total+1])
		require.NoError(t, err)
		total += consumed
		if status == FrameComplete {
			break
		}
		require.Equal(t, FrameNeedMore, status)
	}
	require.Equal(t, FrameComplete, status)
	require.Equal(t, len(raw), total)
	require.Equal(t, "k", string(f.Current().Key))
}

func TestFramerTwoFramesInOneChunk(t *testing.T) {
	a := buildGetRequest(OpGet, "a", 1)
	b := buildGetRequest(OpGet, "bb", 2)
	raw := append(append([]byte{}, a...), b...)

	f := NewFramer(0)
	consumed, status, err := f.Execute(raw)
	require.NoError(t, err)
	require.Equal(t, FrameComplete, status)
	require.Equal(t, len(a), consumed)
	require.Equal(t, "a", string(f.Current().Key))

	consumed2, status, err := f.Execute(raw[consumed:])
	require.NoError(t, err)
	require.Equal(t, FrameComplete, status)
	require.Equal(t, len(b), consumed2)
	require.Equal(t, "bb", string(f.Current().Key))
}

func TestFramerBadMagic(t *testing.T) {
	raw := buildGetRequest(OpGet, "x", 1)
	raw[0] = 0xFF

	f := NewFramer(0)
	_, status, err := f.Execute(raw)
	require.Equal(t, FrameError, status)
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestFramerUnknownOpcode(t *testing.T) {
	raw := buildGetRequest(Opcode(0x99), "x", 1)

	f := NewFramer(0)
	_, status, err := f.Execute(raw)
	require.Equal(t, FrameError, status)
	require.ErrorIs(t, err, ErrUnknownOpcode)
}

func TestFramerBodyTooLarge(t *testing.T) {
	raw := buildGetRequest(OpGet, "hello", 1)

	f := NewFramer(4)
	_, status, err := f.Execute(raw)
	require.Equal(t, FrameError, status)
	require.ErrorIs(t, err, ErrBodyTooLarge)
}
