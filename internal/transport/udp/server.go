// Package udp implements the datagram transport collaborator: a server
// that listens (uni-directional) or is pinned to one peer (bi-directional)
// and a client that sends to a fixed destination. Grounded on
// original_source/src/udp_server.h/.cpp (UdpServer's two constructors,
// RegisterDataCallback, StartServerThread/StopServerThread, SendToClient)
// and UdpClient.h/.cpp (Send), translated from a pthread + boost::function
// callback into a goroutine + Go func callback.
package udp

import (
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/aghoras/netprim/internal/logger"
)

// DataCallback receives one datagram's payload and its source address,
// matching the original's incomingDataCallback contract. Server itself
// sends only to the fixed peer of a bi-directional server (SendToClient).
type DataCallback func(data []byte, addr *net.UDPAddr)

// Server wraps a net.UDPConn in either uni-directional (bound to a local
// port, accepts from any peer) or bi-directional (replies go to one fixed
// remote peer) mode, mirroring UdpServer's two constructors.
type Server struct {
	conn          *net.UDPConn
	cb            DataCallback
	bidirectional bool
	remoteAddr    *net.UDPAddr

	log *slog.Logger

	mu       sync.Mutex
	sourceID map[string]string
	started  bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewServer builds a uni-directional server listening on port, accepting
// datagrams from any source.
func NewServer(port int, cb DataCallback) (*Server, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, fmt.Errorf("listen udp :%d: %w", port, err)
	}
	return newServer(conn, false, nil, cb), nil
}

// NewBidirectionalServer builds a server pinned to one peer for replies:
// it listens on receivePort on all local interfaces, and SendToClient
// writes to peerAddr:sendPort. The socket is not connected, so datagrams
// from any source still reach the callback. Mirrors UdpServer's second
// constructor.
func NewBidirectionalServer(sendPort int, peerAddr string, receivePort int, cb DataCallback) (*Server, error) {
	remote, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", peerAddr, sendPort))
	if err != nil {
		return nil, fmt.Errorf("resolve peer %s:%d: %w", peerAddr, sendPort, err)
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: receivePort})
	if err != nil {
		return nil, fmt.Errorf("listen udp :%d: %w", receivePort, err)
	}
	return newServer(conn, true, remote, cb), nil
}

func newServer(conn *net.UDPConn, bidirectional bool, remote *net.UDPAddr, cb DataCallback) *Server {
	return &Server{
		conn:          conn,
		cb:            cb,
		bidirectional: bidirectional,
		remoteAddr:    remote,
		log:           logger.Logger().With("component", "udp_server"),
		sourceID:      make(map[string]string),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// SendToClient transmits data to the bi-directional peer. Returns an error
// if the server was not constructed in bi-directional mode.
func (s *Server) SendToClient(data []byte) (int, error) {
	if !s.bidirectional || s.remoteAddr == nil {
		return -1, fmt.Errorf("udp server is not bi-directional")
	}
	return s.conn.WriteToUDP(data, s.remoteAddr)
}

// StartServerThread starts the receive loop goroutine, the Go analog of
// the original's pthread-backed StartServerThread.
func (s *Server) StartServerThread() {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	go s.start()
}

func (s *Server) start() {
	defer close(s.doneCh)
	buf := make([]byte, 65507) // max UDP payload
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
			}
			s.log.Warn("udp read error", "error", err)
			return
		}
		if s.cb == nil || n == 0 {
			continue
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		s.log.Debug("udp datagram received", "conn_id", s.idFor(addr), "peer_addr", addr.String(), "length", n)
		s.cb(payload, addr)
	}
}

func (s *Server) idFor(addr *net.UDPAddr) string {
	key := addr.String()
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.sourceID[key]
	if !ok {
		id = uuid.NewString()
		s.sourceID[key] = id
	}
	return id
}

// StopServerThread stops the receive loop and closes the socket.
func (s *Server) StopServerThread() error {
	close(s.stopCh)
	err := s.conn.Close()
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		<-s.doneCh
	}
	return err
}

// LocalAddr returns the bound local address.
func (s *Server) LocalAddr() net.Addr { return s.conn.LocalAddr() }
