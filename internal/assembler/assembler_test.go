package assembler

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendAndPeekRoundTrip(t *testing.T) {
	a := New(nil)
	s := []byte("the quick brown fox jumps over the lazy dog")

	// split the append across several chunks to exercise cross-block peek
	chunks := [][]byte{s[:3], s[3:10], s[10:]}
	for _, c := range chunks {
		a.Append(c)
	}
	require.Equal(t, len(s), a.Size())

	dst := make([]byte, len(s))
	require.True(t, a.Peek(dst, len(s), 0))
	require.Equal(t, s, dst)

	// peek does not mutate state
	require.Equal(t, len(s), a.Size())
}

func TestSplitAppendPopEqualsSuffix(t *testing.T) {
	a := New(nil)
	full := []byte("0123456789ABCDEF")
	A, B := full[:6], full[6:]
	a.Append(A)
	a.Append(B)

	dst := make([]byte, len(A))
	require.True(t, a.Pop(dst, len(A)))
	require.Equal(t, A, dst)

	remaining := make([]byte, a.Size())
	require.True(t, a.Peek(remaining, a.Size(), 0))
	require.Equal(t, B, remaining)
}

func TestPeekSucceedsIffWithinBounds(t *testing.T) {
	a := New(nil)
	a.Append([]byte("hello world"))

	require.True(t, a.Peek(make([]byte, 5), 5, 0))
	require.True(t, a.Peek(make([]byte, 1), 1, 10))
	require.False(t, a.Peek(make([]byte, 1), 0, 0)) // count == 0
	require.False(t, a.Peek(make([]byte, 2), 2, 10)) // offset+count > size
}

func TestTrimReducesSizeByAtMostTotal(t *testing.T) {
	a := New(nil)
	a.Append([]byte("abcdefghij"))
	a.Trim(4)
	require.Equal(t, 6, a.Size())

	dst := make([]byte, 6)
	require.True(t, a.Peek(dst, 6, 0))
	require.Equal(t, []byte("efghij"), dst)

	a.Trim(1000)
	require.Equal(t, 0, a.Size())
}

func TestClearReleasesAllBlocks(t *testing.T) {
	a := New(nil)
	a.Append([]byte("one"))
	a.Append([]byte("two"))
	a.Clear()
	require.Equal(t, 0, a.Size())
	require.False(t, a.Peek(make([]byte, 1), 1, 0))
}

func TestCrossBlockPeekMiddleAndPrefix(t *testing.T) {
	a := New(nil)
	a.Append([]byte("AAAA")) // 0-3
	a.Append([]byte("BBBB")) // 4-7
	a.Append([]byte("CCCC")) // 8-11

	dst := make([]byte, 6)
	require.True(t, a.Peek(dst, 6, 2))
	require.True(t, bytes.Equal(dst, []byte("AABBBB")))
}
