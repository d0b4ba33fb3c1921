package transport

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// TCPConfig describes a raw socket connection to an instrument.
type TCPConfig struct {
	// Addr is the instrument endpoint in host:port form.
	Addr string
	// WriteTerm is appended to every outgoing command. Defaults to "\n".
	WriteTerm string
	// ReadTerm delimits incoming responses and is stripped from the
	// returned string. Defaults to "\n".
	ReadTerm string
	// Timeout bounds a single Receive. Defaults to DefaultTimeout.
	Timeout time.Duration
	// DialTimeout bounds Open. Defaults to 5s.
	DialTimeout time.Duration
}

// TCP is a Transport over a raw TCP socket, the common channel for SCPI
// instruments with an Ethernet port.
type TCP struct {
	cfg    TCPConfig
	conn   net.Conn
	reader *bufio.Reader
}

// NewTCP creates an unopened TCP transport.
func NewTCP(cfg TCPConfig) *TCP {
	if cfg.WriteTerm == "" {
		cfg.WriteTerm = "\n"
	}
	if cfg.ReadTerm == "" {
		cfg.ReadTerm = "\n"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	return &TCP{cfg: cfg}
}

func (t *TCP) Open() error {
	if t.conn != nil {
		return nil
	}
	if _, _, err := net.SplitHostPort(t.cfg.Addr); err != nil {
		return fmt.Errorf("invalid address %q: %v", t.cfg.Addr, err)
	}
	conn, err := net.DialTimeout("tcp", t.cfg.Addr, t.cfg.DialTimeout)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", t.cfg.Addr, err)
	}
	t.conn = conn
	t.reader = bufio.NewReader(conn)
	return nil
}

func (t *TCP) Send(cmd string) error {
	if t.conn == nil {
		return ErrNotOpen
	}
	if _, err := t.conn.Write([]byte(cmd + t.cfg.WriteTerm)); err != nil {
		return fmt.Errorf("sending %q: %v", cmd, err)
	}
	return nil
}

func (t *TCP) Receive() (string, error) {
	if t.conn == nil {
		return "", ErrNotOpen
	}
	if err := t.conn.SetReadDeadline(time.Now().Add(t.cfg.Timeout)); err != nil {
		return "", err
	}

	term := t.cfg.ReadTerm
	last := term[len(term)-1]
	var sb strings.Builder
	for {
		chunk, err := t.reader.ReadString(last)
		sb.WriteString(chunk)
		if err != nil {
			return "", t.readErr(err)
		}
		if strings.HasSuffix(sb.String(), term) {
			return strings.TrimSuffix(sb.String(), term), nil
		}
	}
}

// ReceiveBinary reads an IEEE 488.2 definite-length block: a '#', one
// digit giving the width of the length field, the decimal payload
// length and then the payload itself. Any line terminator trailing the
// block is consumed so the next Receive starts clean.
func (t *TCP) ReceiveBinary() ([]byte, error) {
	if t.conn == nil {
		return nil, ErrNotOpen
	}
	if err := t.conn.SetReadDeadline(time.Now().Add(t.cfg.Timeout)); err != nil {
		return nil, err
	}

	head := make([]byte, 2)
	if _, err := io.ReadFull(t.reader, head); err != nil {
		return nil, t.readErr(err)
	}
	if head[0] != '#' {
		return nil, fmt.Errorf("malformed block header, got %q", head[0])
	}
	digits := int(head[1] - '0')
	if digits < 1 || digits > 9 {
		return nil, fmt.Errorf("malformed block length digit %q", head[1])
	}
	field := make([]byte, digits)
	if _, err := io.ReadFull(t.reader, field); err != nil {
		return nil, t.readErr(err)
	}
	size, err := strconv.Atoi(string(field))
	if err != nil {
		return nil, fmt.Errorf("malformed block length %q: %v", field, err)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(t.reader, payload); err != nil {
		return nil, t.readErr(err)
	}
	for t.reader.Buffered() > 0 {
		b, _ := t.reader.ReadByte()
		if b != '\r' && b != '\n' {
			t.reader.UnreadByte()
			break
		}
	}
	return payload, nil
}

func (t *TCP) readErr(err error) error {
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return fmt.Errorf("%w after %v", ErrTimeout, t.cfg.Timeout)
	}
	return err
}

func (t *TCP) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	t.reader = nil
	return err
}
