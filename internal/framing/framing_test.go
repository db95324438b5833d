package framing

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// sliceXmit accepts n bytes per call (n==0 is a no-progress signal).
type sliceXmit struct {
	perCall  int
	refuseAt int // refuse (return 0) on every refuseAt'th call if >0
	calls    int
	out      []byte
}

func (s *sliceXmit) Xmit(p []byte) (int, error) {
	s.calls++
	if s.refuseAt > 0 && s.calls%s.refuseAt == 0 {
		return 0, nil
	}
	n := s.perCall
	if n <= 0 || n > len(p) {
		n = len(p)
	}
	s.out = append(s.out, p[:n]...)
	return n, nil
}

type alwaysRefuse struct{ calls int }

func (a *alwaysRefuse) Xmit(p []byte) (int, error) {
	a.calls++
	return 0, nil
}

func TestScenarioEncodeHelloWorld(t *testing.T) {
	m := New(Config{})
	tx := &sliceXmit{}
	require.True(t, m.SendMessage(tx, []byte("Hello world")))

	expected := []byte{0x02, 0x00, 0x00, 0x00, 0x0B}
	expected = append(expected, []byte("Hello world")...)
	expected = append(expected, 0x03)
	require.Equal(t, expected, tx.out)

	recv := New(Config{})
	require.True(t, recv.ProcessChunk(tx.out))
	require.Equal(t, 1, recv.MessageCount())
	msg := recv.GetMsg()
	require.Equal(t, "Hello world", string(msg.Body))
}

func TestMultiMessageInOrder(t *testing.T) {
	send := New(Config{})
	tx := &sliceXmit{}
	require.True(t, send.SendMessage(tx, []byte("Hello world")))
	require.True(t, send.SendMessage(tx, []byte("I'm a traveler of both time and space")))

	recv := New(Config{})
	require.True(t, recv.ProcessChunk(tx.out))
	require.Equal(t, 2, recv.MessageCount())
	require.Equal(t, "Hello world", string(recv.GetMsg().Body))
	require.Equal(t, "I'm a traveler of both time and space", string(recv.GetMsg().Body))
}

func TestCorruptSTXClearsBuffer(t *testing.T) {
	recv := New(Config{})
	frame := make([]byte, 220)
	frame[0] = 0x00 // should be STX
	binary.BigEndian.PutUint32(frame[1:5], 37)

	ok := recv.ProcessChunk(frame)
	require.False(t, ok)
	require.Equal(t, 0, recv.MessageCount())
}

func TestCorruptHeaderThenValidFrameResyncs(t *testing.T) {
	recv := New(Config{})
	garbage := []byte{0x00, 0x01, 0x02, 0x03, 0x04}
	recv.ProcessChunk(garbage)
	require.Equal(t, 0, recv.asm.Size())

	send := New(Config{})
	tx := &sliceXmit{}
	require.True(t, send.SendMessage(tx, []byte("valid frame")))
	require.True(t, recv.ProcessChunk(tx.out))
	require.Equal(t, "valid frame", string(recv.GetMsg().Body))
}

func TestRetryProgressLargeBody(t *testing.T) {
	m := New(Config{SendRetry: 100000})
	tx := &sliceXmit{perCall: 4, refuseAt: 5000}
	body := make([]byte, 1_000_000)
	for i := range body {
		body[i] = byte(i)
	}
	require.True(t, m.SendMessage(tx, body))

	recv := New(Config{})
	require.True(t, recv.ProcessChunk(tx.out))
	require.Equal(t, 1, recv.MessageCount())
	require.Equal(t, body, recv.GetMsg().Body)
}

func TestRetryExhaustion(t *testing.T) {
	m := New(Config{SendRetry: 5, SendRetryDelay: 1})
	tx := &alwaysRefuse{}
	require.False(t, m.SendMessage(tx, []byte("x")))
	require.Equal(t, 5, tx.calls)
}

func TestZeroLengthBodyPermitted(t *testing.T) {
	m := New(Config{})
	tx := &sliceXmit{}
	require.True(t, m.SendMessage(tx, nil))

	recv := New(Config{})
	require.True(t, recv.ProcessChunk(tx.out))
	require.Equal(t, 1, recv.MessageCount())
	require.Equal(t, 0, len(recv.GetMsg().Body))
}

func TestGetMsgSizeAndEmptySentinel(t *testing.T) {
	recv := New(Config{})
	require.Equal(t, uint32(0), recv.GetMsgSize())
	sentinel := recv.GetMsg()
	require.Nil(t, sentinel.Body)
}
