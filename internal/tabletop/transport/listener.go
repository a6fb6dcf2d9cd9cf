package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// DefaultUDPPort is the port frame datagrams are sent to by default.
const DefaultUDPPort = 5005

// maxDatagram bounds a single read; chunks are far smaller.
const maxDatagram = 65535

// UDPListenerConfig configures a UDPListener.
type UDPListenerConfig struct {
	Address string
	// RcvBuf is the socket receive buffer size; 0 leaves the OS default.
	RcvBuf  int
	Handler FrameHandler
	// SocketFactory defaults to NetSocketFactory.
	SocketFactory UDPSocketFactory
}

// UDPListener receives chunked frame datagrams and hands each complete
// frame to its handler.
type UDPListener struct {
	address string
	rcvBuf  int
	handler FrameHandler
	factory UDPSocketFactory
	reasm   *Reassembler

	connMu sync.RWMutex
	conn   UDPSocket
}

// NewUDPListener returns a listener; call Start to begin receiving.
func NewUDPListener(cfg UDPListenerConfig) *UDPListener {
	factory := cfg.SocketFactory
	if factory == nil {
		factory = NetSocketFactory{}
	}
	return &UDPListener{
		address: cfg.Address,
		rcvBuf:  cfg.RcvBuf,
		handler: cfg.Handler,
		factory: factory,
		reasm:   NewReassembler(),
	}
}

// Start binds the socket and reads until ctx is done or the socket is
// closed. It returns ctx.Err() on cancellation and nil after Close.
func (l *UDPListener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := l.factory.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	l.setConn(conn)
	defer conn.Close()

	if l.rcvBuf > 0 {
		if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
			opsf("failed to set UDP receive buffer to %d: %v", l.rcvBuf, err)
		}
	}
	diagf("UDP listener started on %s", l.address)

	buf := make([]byte, maxDatagram)
	var deadlineErrLogged bool
	for {
		if ctx.Err() != nil {
			diagf("UDP listener stopping: %v", ctx.Err())
			return ctx.Err()
		}
		if err := conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond)); err != nil && !deadlineErrLogged {
			opsf("failed to set read deadline: %v", err)
			deadlineErrLogged = true
		}

		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			opsf("UDP read error: %v", err)
			continue
		}
		if err := deliver(l.reasm, buf[:n], l.handler); err != nil {
			opsf("dropping datagram from %v: %v", from, err)
		}
	}
}

// Stats returns the reassembly counters.
func (l *UDPListener) Stats() ReassemblyStats { return l.reasm.Stats() }

// Close closes the socket, which ends Start.
func (l *UDPListener) Close() error {
	l.connMu.RLock()
	conn := l.conn
	l.connMu.RUnlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (l *UDPListener) setConn(conn UDPSocket) {
	l.connMu.Lock()
	l.conn = conn
	l.connMu.Unlock()
}

// SendDatagrams writes datagrams to addr over a fresh UDP socket.
func SendDatagrams(ctx context.Context, addr string, datagrams [][]byte) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	defer conn.Close()
	for i, b := range datagrams {
		if _, err := conn.Write(b); err != nil {
			return fmt.Errorf("datagram %d: %w", i, err)
		}
	}
	return nil
}
