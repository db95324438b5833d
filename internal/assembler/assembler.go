// Package assembler implements a FIFO byte-block buffer used to reassemble
// arbitrarily fragmented stream input: append-only on the write side,
// random-access peek and destructive pop/trim on the read side.
package assembler

import (
	"container/list"

	"github.com/aghoras/netprim/internal/bufpool"
)

// block owns a byte buffer and tracks the logical view (start, length)
// inside it, so head-trims never require copying the retained bytes.
type block struct {
	buf    []byte // owned backing allocation, returned to bufpool on release
	start  int
	length int
}

// Assembler is an ordered sequence of blocks plus a cached total size. It is
// not internally synchronized: callers drive it from a single owning
// goroutine, matching the Framed Messaging layer's threading contract.
type Assembler struct {
	blocks *list.List
	size   int
	pool   *bufpool.Pool
}

// New returns an empty Assembler backed by the given pool. A nil pool falls
// back to the package-level default pool.
func New(pool *bufpool.Pool) *Assembler {
	return &Assembler{blocks: list.New(), pool: pool}
}

func (a *Assembler) get(n int) []byte {
	if a.pool != nil {
		return a.pool.Get(n)
	}
	return bufpool.Get(n)
}

func (a *Assembler) put(buf []byte) {
	if a.pool != nil {
		a.pool.Put(buf)
		return
	}
	bufpool.Put(buf)
}

// Append copies data into a freshly owned buffer and enqueues it as a new
// block. The caller's slice may be reused or freed on return. Returns the
// new total size.
func (a *Assembler) Append(data []byte) int {
	if len(data) == 0 {
		return a.size
	}
	buf := a.get(len(data))
	copy(buf, data)
	a.blocks.PushBack(&block{buf: buf, start: 0, length: len(data)})
	a.size += len(data)
	return a.size
}

// Size returns the total number of buffered bytes.
func (a *Assembler) Size() int { return a.size }

// Peek copies count bytes starting at offset into dst without modifying
// assembler state. Fails (returns false, dst untouched) iff count == 0,
// offset is negative, offset+count exceeds the buffered size, or dst is
// shorter than count.
func (a *Assembler) Peek(dst []byte, count, offset int) bool {
	if count == 0 || offset < 0 || offset+count > a.size {
		return false
	}
	if len(dst) < count {
		return false
	}

	written := 0
	consumed := 0 // bytes of preceding blocks skipped so far
	for e := a.blocks.Front(); e != nil && written < count; e = e.Next() {
		b := e.Value.(*block)
		blockEnd := consumed + b.length
		if blockEnd <= offset {
			consumed = blockEnd
			continue
		}
		// region of this block that overlaps [offset, offset+count)
		regionStart := 0
		if offset > consumed {
			regionStart = offset - consumed
		}
		regionLen := b.length - regionStart
		remaining := count - written
		if regionLen > remaining {
			regionLen = remaining
		}
		copy(dst[written:written+regionLen], b.buf[b.start+regionStart:b.start+regionStart+regionLen])
		written += regionLen
		consumed = blockEnd
	}
	return written == count
}

// Pop is equivalent to Peek(dst, count, 0) followed, on success only, by
// Trim(count).
func (a *Assembler) Pop(dst []byte, count int) bool {
	if !a.Peek(dst, count, 0) {
		return false
	}
	a.Trim(count)
	return true
}

// Trim removes count bytes from the head. If count >= Size, the assembler
// is emptied. Fully consumed blocks are released back to the pool; a
// partially consumed block has its view advanced, retaining its buffer
// until emptied.
func (a *Assembler) Trim(count int) {
	if count <= 0 {
		return
	}
	if count >= a.size {
		a.Clear()
		return
	}
	remaining := count
	for remaining > 0 {
		e := a.blocks.Front()
		b := e.Value.(*block)
		if b.length <= remaining {
			remaining -= b.length
			a.blocks.Remove(e)
			a.put(b.buf)
			continue
		}
		b.start += remaining
		b.length -= remaining
		remaining = 0
	}
	a.size -= count
}

// Clear releases all blocks and resets the total size to zero.
func (a *Assembler) Clear() {
	for e := a.blocks.Front(); e != nil; e = e.Next() {
		a.put(e.Value.(*block).buf)
	}
	a.blocks.Init()
	a.size = 0
}
