package tcp

import (
	"fmt"
	"net"
	"time"

	"github.com/aghoras/netprim/internal/framing"
)

// DialTimeout bounds Connect's blocking dial, mirroring the teacher
// client's fixed dial timeout.
const DialTimeout = 5 * time.Second

// Client is a blocking TCP client driven by the framing codec: Connect
// dials, Send/ProcessChunk hand a body to the peer and reassemble inbound
// frames, Disconnect tears the socket down. Generalized off the teacher's
// client.Client (Connect/Publish/Play/Close), stripped of its RTMP
// handshake/command layer.
type Client struct {
	conn *Connection
}

// NewClient constructs an unconnected Client.
func NewClient() *Client { return &Client{} }

// Connect dials addr:port and starts the read loop with onMessage as the
// per-frame callback. Returns an error if already connected or the dial
// fails, matching spec.md §6's boolean connect contract translated to Go's
// idiomatic error return.
func (c *Client) Connect(addr string, port int, onMessage func(framing.Message)) error {
	if c.conn != nil {
		return fmt.Errorf("client already connected")
	}
	d := net.Dialer{Timeout: DialTimeout}
	raw, err := d.Dial("tcp", fmt.Sprintf("%s:%d", addr, port))
	if err != nil {
		return fmt.Errorf("dial %s:%d: %w", addr, port, err)
	}
	conn := newConnection(raw, nil)
	conn.SetMessageHandler(onMessage)
	conn.Start()
	c.conn = conn
	return nil
}

// Send frames and transmits body to the connected peer.
func (c *Client) Send(body []byte) error {
	if c.conn == nil {
		return fmt.Errorf("client not connected")
	}
	return c.conn.Send(body)
}

// Disconnect closes the underlying connection. Safe to call on an
// unconnected client.
func (c *Client) Disconnect() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// IsConnected reports whether Connect has succeeded and Disconnect has not
// yet been called.
func (c *Client) IsConnected() bool { return c.conn != nil }
