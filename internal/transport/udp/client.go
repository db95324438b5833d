package udp

import (
	"fmt"
	"net"
)

// Client sends datagrams to a fixed destination, grounded on
// original_source/src/UdpClient.h/.cpp's Send-to-fixed-address contract.
type Client struct {
	conn *net.UDPConn
}

// NewClient builds an unconnected Client.
func NewClient() *Client { return &Client{} }

// Connect resolves addr:port and opens a connected UDP socket, so
// subsequent Send calls need not repeat the destination.
func (c *Client) Connect(addr string, port int) error {
	if c.conn != nil {
		return fmt.Errorf("client already connected")
	}
	raddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", addr, port))
	if err != nil {
		return fmt.Errorf("resolve %s:%d: %w", addr, port, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return fmt.Errorf("dial udp %s:%d: %w", addr, port, err)
	}
	c.conn = conn
	return nil
}

// Send transmits data to the connected destination.
func (c *Client) Send(data []byte) (int, error) {
	if c.conn == nil {
		return -1, fmt.Errorf("client not connected")
	}
	return c.conn.Write(data)
}

// Disconnect closes the underlying socket. Safe on an unconnected client.
func (c *Client) Disconnect() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
