package transport

import (
	"fmt"
	"net"
	"time"
)

// UDPConfig describes a datagram connection to an instrument.
type UDPConfig struct {
	// Addr is the instrument endpoint in host:port form.
	Addr string
	// Timeout bounds a single Receive. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// UDP is a Transport over a connected UDP socket. Commands and responses
// map one to one onto datagrams; any protocol framing belongs to the
// driver.
type UDP struct {
	cfg  UDPConfig
	conn net.Conn
}

// NewUDP creates an unopened UDP transport.
func NewUDP(cfg UDPConfig) *UDP {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &UDP{cfg: cfg}
}

func (u *UDP) Open() error {
	if u.conn != nil {
		return nil
	}
	if _, _, err := net.SplitHostPort(u.cfg.Addr); err != nil {
		return fmt.Errorf("invalid address %q: %v", u.cfg.Addr, err)
	}
	conn, err := net.Dial("udp", u.cfg.Addr)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", u.cfg.Addr, err)
	}
	u.conn = conn
	return nil
}

func (u *UDP) Send(cmd string) error {
	if u.conn == nil {
		return ErrNotOpen
	}
	if _, err := u.conn.Write([]byte(cmd)); err != nil {
		return fmt.Errorf("sending %q: %v", cmd, err)
	}
	return nil
}

func (u *UDP) Receive() (string, error) {
	if u.conn == nil {
		return "", ErrNotOpen
	}
	if err := u.conn.SetReadDeadline(time.Now().Add(u.cfg.Timeout)); err != nil {
		return "", err
	}
	buf := make([]byte, 4096)
	n, err := u.conn.Read(buf)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return "", fmt.Errorf("%w after %v", ErrTimeout, u.cfg.Timeout)
		}
		return "", err
	}
	return string(buf[:n]), nil
}

func (u *UDP) Close() error {
	if u.conn == nil {
		return nil
	}
	err := u.conn.Close()
	u.conn = nil
	return err
}
