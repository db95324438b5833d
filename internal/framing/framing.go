// Package framing implements a length-prefixed message codec layered atop
// any byte-stream transmit primitive: STX + big-endian length + body + ETX,
// with bounded-retry partial-send handling on the encode side and a
// chunk-assembler-backed decoder on the receive side.
package framing

import (
	"context"
	"encoding/binary"
	"log/slog"
	"time"

	"github.com/aghoras/netprim/internal/assembler"
	"github.com/aghoras/netprim/internal/bufpool"
	"github.com/aghoras/netprim/internal/errors"
	"github.com/aghoras/netprim/internal/hooks"
	"github.com/aghoras/netprim/internal/logger"
)

const (
	stx = 0x02
	etx = 0x03

	// HeaderSize is len(STX) + len(length field).
	HeaderSize = 5
	// TrailerSize is len(ETX).
	TrailerSize = 1

	defaultSendRetry      = 5
	defaultSendRetryDelay = 10 * time.Millisecond
)

// Message is an opaque byte buffer plus its length, produced by the receive
// decoder when a full frame is assembled. Ownership transfers to the caller
// on GetMsg; the caller is responsible for eventually releasing Body via
// bufpool.Put if it came from a pooled allocation (Body here is a plain
// slice, safe to let the GC reclaim if the caller does not pool it).
type Message struct {
	Body []byte
}

// Transmitter is the virtual xmit hook: the byte-stream transmit capability
// that sendMessage's retry loop is polymorphic over. Implementations return
// the number of bytes accepted (0 <= n <= len(p)); 0 means "try again
// later"; negative means a hard, unrecoverable error.
type Transmitter interface {
	Xmit(p []byte) (n int, err error)
}

// TransmitFunc adapts a function to a Transmitter.
type TransmitFunc func(p []byte) (int, error)

// Xmit implements Transmitter.
func (f TransmitFunc) Xmit(p []byte) (int, error) { return f(p) }

// Config overrides the messaging defaults (SEND_RETRY / SEND_RETRY_DELAY in
// spec terms).
type Config struct {
	SendRetry      int
	SendRetryDelay time.Duration
	Pool           *bufpool.Pool
	Log            *slog.Logger
	// HookManager, if set, receives frame_decoded and send_retry_exhausted
	// events. Optional: nil disables hook dispatch entirely.
	HookManager *hooks.Manager
	// ConnID tags hook events emitted by this Messaging instance.
	ConnID string
}

func (c Config) withDefaults() Config {
	if c.SendRetry <= 0 {
		c.SendRetry = defaultSendRetry
	}
	if c.SendRetryDelay <= 0 {
		c.SendRetryDelay = defaultSendRetryDelay
	}
	if c.Log == nil {
		c.Log = logger.Logger()
	}
	return c
}

// Messaging holds the receive-side assembler, the message queue, and the
// retry configuration used by SendMessage. It is not internally
// synchronized: ProcessChunk and GetMsg must not be called concurrently,
// matching the single-producer/single-consumer contract in spec.
type Messaging struct {
	cfg   Config
	asm   *assembler.Assembler
	queue []Message
}

// New constructs a Messaging instance with the given config (zero value
// picks up defaults). The Transmitter is passed per call to SendMessage.
func New(cfg Config) *Messaging {
	cfg = cfg.withDefaults()
	return &Messaging{
		cfg: cfg,
		asm: assembler.New(cfg.Pool),
	}
}

// xmitWithRetry drives the bounded-retry loop over a Transmitter: negative
// result fails immediately; zero result increments a retry counter that is
// reset to zero on any forward progress, failing only after SendRetry
// consecutive non-progressing attempts.
func xmitWithRetry(tx Transmitter, buf []byte, cfg Config) error {
	length := len(buf)
	bytesSent := 0
	retryCounter := 0
	for bytesSent < length {
		n, err := tx.Xmit(buf[bytesSent:])
		if err != nil || n < 0 {
			return errors.NewTransportError("xmit", err)
		}
		if n == 0 {
			retryCounter++
			if retryCounter >= cfg.SendRetry {
				if cfg.HookManager != nil {
					cfg.HookManager.TriggerEvent(context.Background(),
						*hooks.NewEvent(hooks.EventSendRetryExhausted).WithConnID(cfg.ConnID))
				}
				return errors.NewTransportError("xmit.retryExhausted", nil)
			}
			time.Sleep(cfg.SendRetryDelay)
			continue
		}
		bytesSent += n
		retryCounter = 0
	}
	return nil
}

// SendMessage transmits header, body, and trailer via tx, each through the
// bounded retry loop. Returns true iff all three segments were fully
// transmitted; never partially acknowledges to the caller (the receiver may
// still observe a truncated frame on the wire and must resynchronize).
func (m *Messaging) SendMessage(tx Transmitter, body []byte) bool {
	header := make([]byte, HeaderSize)
	header[0] = stx
	binary.BigEndian.PutUint32(header[1:5], uint32(len(body)))

	if err := xmitWithRetry(tx, header, m.cfg); err != nil {
		m.cfg.Log.Debug("send_message: header xmit failed", "error", err)
		return false
	}
	if err := xmitWithRetry(tx, body, m.cfg); err != nil {
		m.cfg.Log.Debug("send_message: body xmit failed", "error", err)
		return false
	}
	trailer := []byte{etx}
	if err := xmitWithRetry(tx, trailer, m.cfg); err != nil {
		m.cfg.Log.Debug("send_message: trailer xmit failed", "error", err)
		return false
	}
	return true
}

// ProcessChunk appends data to the receive assembler and extracts as many
// complete frames as are now present. Returns true iff at least one
// complete, validated frame was extracted during this call. Never blocks.
func (m *Messaging) ProcessChunk(data []byte) bool {
	m.asm.Append(data)

	produced := false
	header := make([]byte, HeaderSize)
	for {
		if m.asm.Size() < HeaderSize {
			return produced
		}
		if !m.asm.Peek(header, HeaderSize, 0) {
			return produced
		}
		if header[0] != stx {
			// no in-stream resync is safe without an escape sequence;
			// clear everything and force the peer to start a fresh frame.
			m.asm.Clear()
			return produced
		}
		msgLength := binary.BigEndian.Uint32(header[1:5])
		need := HeaderSize + int(msgLength) + TrailerSize
		if m.asm.Size() < need {
			return produced
		}

		m.asm.Trim(HeaderSize)
		body := make([]byte, msgLength)
		if msgLength > 0 {
			m.asm.Pop(body, int(msgLength))
		}
		trailer := make([]byte, TrailerSize)
		m.asm.Pop(trailer, TrailerSize)

		if trailer[0] != etx {
			// bad ETX drops only this frame (already trimmed off the
			// assembler), not the whole buffer; stop this call's
			// extraction, mirroring the original decoder's break.
			return produced
		}
		m.queue = append(m.queue, Message{Body: body})
		produced = true
		if m.cfg.HookManager != nil {
			m.cfg.HookManager.TriggerEvent(context.Background(),
				*hooks.NewEvent(hooks.EventFrameDecoded).WithConnID(m.cfg.ConnID).WithData("length", msgLength))
		}
	}
}

// GetMsgSize returns the length of the body of the next queued message; 0
// if none. 0 is also a valid body length, so callers needing to
// distinguish "empty" from "next message has an empty body" must use
// MessageCount.
func (m *Messaging) GetMsgSize() uint32 {
	if len(m.queue) == 0 {
		return 0
	}
	return uint32(len(m.queue[0].Body))
}

// GetMsg removes and returns the head of the queue. If the queue is empty,
// returns a zero-value sentinel Message.
func (m *Messaging) GetMsg() Message {
	if len(m.queue) == 0 {
		return Message{}
	}
	msg := m.queue[0]
	m.queue = m.queue[1:]
	return msg
}

// MessageCount returns the number of complete messages currently queued.
func (m *Messaging) MessageCount() int { return len(m.queue) }
