// Package tcp adapts the Framed Messaging codec to a real net.Conn
// transport: a per-connection read/write goroutine pair plus a server
// accept loop and a blocking client, following the teacher's connection
// lifecycle shape but driven by this repository's framing layer instead
// of an application protocol's handshake/chunking.
package tcp

import (
	"context"
	"fmt"
	stdErrors "errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aghoras/netprim/internal/errors"
	"github.com/aghoras/netprim/internal/framing"
	"github.com/aghoras/netprim/internal/hooks"
	"github.com/aghoras/netprim/internal/logger"
)

// Connection wraps an accepted or dialed net.Conn with the framing codec
// and a pair of read/write goroutines. Mirrors the teacher's
// conn.Connection shape (id, ctx/cancel/wg, outbound queue, onMessage
// callback), generalized off the RTMP handshake it originally performed.
type Connection struct {
	id         string
	netConn    net.Conn
	acceptedAt time.Time
	log        *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	messaging     *framing.Messaging
	outboundQueue chan []byte

	onMessage func(framing.Message)
}

// ID returns the connection's trace identity, a UUID distinct from any
// dense integer handle table (the timer/assembler/framing layers stay
// index-based per spec; only transport-level log correlation uses UUIDs).
func (c *Connection) ID() string { return c.id }

// NetConn exposes the underlying net.Conn.
func (c *Connection) NetConn() net.Conn { return c.netConn }

// SetMessageHandler installs a callback invoked by the read loop for every
// fully reassembled message. Must be called before Start().
func (c *Connection) SetMessageHandler(fn func(framing.Message)) { c.onMessage = fn }

// Start begins the read loop.
func (c *Connection) Start() { c.startReadLoop() }

// Send enqueues body for outbound framing and transmission, enforcing a
// short timeout for backpressure.
func (c *Connection) Send(body []byte) error {
	if c == nil || c.outboundQueue == nil {
		return errors.NewArgumentError("tcp.Send", nil)
	}
	deadline := time.NewTimer(200 * time.Millisecond)
	defer deadline.Stop()
	select {
	case <-c.ctx.Done():
		return context.Canceled
	case c.outboundQueue <- body:
		return nil
	case <-deadline.C:
		return errors.NewTimeoutError("tcp.Send", 200*time.Millisecond, nil)
	}
}

// Close cancels the connection's context, closes the net.Conn (unblocking
// the read/write goroutines), and waits for them to exit.
func (c *Connection) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	_ = c.netConn.Close()
	c.wg.Wait()
	return nil
}

// connTransmitter adapts a net.Conn as a framing.Transmitter: the xmit
// primitive contract (n >= 0 accepted, negative on hard error) maps onto
// net.Conn.Write, which either writes len(p) bytes or reports an error.
type connTransmitter struct{ nc net.Conn }

func (t connTransmitter) Xmit(p []byte) (int, error) {
	n, err := t.nc.Write(p)
	if err != nil {
		return -1, err
	}
	return n, nil
}

func (c *Connection) startReadLoop() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		buf := make([]byte, 64*1024)
		c.log.Debug("readLoop started")
		for {
			select {
			case <-c.ctx.Done():
				c.log.Debug("readLoop context cancelled")
				return
			default:
			}
			n, err := c.netConn.Read(buf)
			if n > 0 {
				c.messaging.ProcessChunk(buf[:n])
				for c.messaging.MessageCount() > 0 {
					msg := c.messaging.GetMsg()
					if c.onMessage != nil {
						c.onMessage(msg)
					}
				}
			}
			if err != nil {
				if stdErrors.Is(err, context.Canceled) || stdErrors.Is(err, net.ErrClosed) {
					return
				}
				if stdErrors.Is(err, io.EOF) {
					c.log.Debug("readLoop closed", "error", err)
				} else {
					c.log.Error("readLoop error", "error", err)
				}
				return
			}
		}
	}()
}

func (c *Connection) startWriteLoop() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		tx := connTransmitter{nc: c.netConn}
		c.log.Debug("writeLoop started")
		for {
			select {
			case <-c.ctx.Done():
				c.log.Debug("writeLoop context cancelled")
				return
			case body, ok := <-c.outboundQueue:
				if !ok {
					c.log.Debug("writeLoop queue closed")
					return
				}
				if !c.messaging.SendMessage(tx, body) {
					c.log.Error("writeLoop send failed")
					return
				}
			}
		}
	}()
}

// Accept performs a blocking Accept() on l and wraps the result as a
// Connection ready for SetMessageHandler + Start. hm is optional; pass nil
// to disable hook dispatch for frames on this connection.
func Accept(l net.Listener, hm *hooks.Manager) (*Connection, error) {
	if l == nil {
		return nil, fmt.Errorf("nil listener")
	}
	raw, err := l.Accept()
	if err != nil {
		return nil, err
	}
	return newConnection(raw, hm), nil
}

func newConnection(raw net.Conn, hm *hooks.Manager) *Connection {
	id := uuid.NewString()
	lgr := logger.WithConn(logger.Logger(), id, raw.RemoteAddr().String())
	lgr.Info("connection accepted")

	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:         id,
		netConn:    raw,
		acceptedAt: time.Now(),
		log:        lgr,
		ctx:        ctx,
		cancel:     cancel,
		messaging: framing.New(framing.Config{
			Log:         lgr,
			HookManager: hm,
			ConnID:      id,
		}),
		outboundQueue: make(chan []byte, 100),
	}
	c.startWriteLoop()
	return c
}
