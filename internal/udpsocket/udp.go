package udpsocket

import (
	"context"
	"fmt"
	"net"
)

// UDPSocket is a Socket backed by a real OS UDP endpoint.
type UDPSocket struct {
	conn *net.UDPConn
}

// ListenUDP binds a UDP socket at localAddr (host:port, or :port to bind
// all interfaces).
func ListenUDP(localAddr string) (*UDPSocket, error) {
	addr, err := net.ResolveUDPAddr("udp", localAddr)
	if err != nil {
		return nil, fmt.Errorf("udpsocket: resolve %s: %w", localAddr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("udpsocket: listen %s: %w", localAddr, err)
	}
	return &UDPSocket{conn: conn}, nil
}

// SendTo implements Socket.
func (s *UDPSocket) SendTo(ctx context.Context, buffers [][]byte, target string) error {
	addr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return fmt.Errorf("udpsocket: resolve target %s: %w", target, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetWriteDeadline(deadline)
	}
	if _, err := s.conn.WriteTo(flatten(buffers), addr); err != nil {
		return fmt.Errorf("udpsocket: write to %s: %w", target, err)
	}
	return nil
}

// RecvFrom implements Socket.
func (s *UDPSocket) RecvFrom(ctx context.Context, buf []byte) (int, string, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetReadDeadline(deadline)
	}
	n, addr, err := s.conn.ReadFrom(buf)
	if err != nil {
		return 0, "", fmt.Errorf("udpsocket: read: %w", err)
	}
	return n, addr.String(), nil
}

// LocalAddr implements Socket.
func (s *UDPSocket) LocalAddr() string {
	return s.conn.LocalAddr().String()
}

// Close implements Socket.
func (s *UDPSocket) Close() error {
	return s.conn.Close()
}
