package transport

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goburrow/serial"
)

// SerialConfig describes an RS-232 or USB-serial connection.
type SerialConfig struct {
	// Port is the device path, e.g. /dev/ttyUSB0.
	Port string
	// BaudRate defaults to 9600.
	BaudRate int
	// DataBits defaults to 8.
	DataBits int
	// StopBits defaults to 1.
	StopBits int
	// Parity is "N", "E" or "O". Defaults to "N".
	Parity string
	// WriteTerm is appended verbatim to every outgoing command. Leave
	// empty for instruments that take unterminated commands.
	WriteTerm string
	// ReadTerm delimits incoming responses and is stripped from the
	// returned string. Defaults to "\n".
	ReadTerm string
	// Timeout bounds a single Receive. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// Serial is a Transport over a local serial port.
type Serial struct {
	cfg  SerialConfig
	port serial.Port
}

// NewSerial creates an unopened serial transport.
func NewSerial(cfg SerialConfig) *Serial {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 9600
	}
	if cfg.DataBits == 0 {
		cfg.DataBits = 8
	}
	if cfg.StopBits == 0 {
		cfg.StopBits = 1
	}
	if cfg.Parity == "" {
		cfg.Parity = "N"
	}
	if cfg.ReadTerm == "" {
		cfg.ReadTerm = "\n"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Serial{cfg: cfg}
}

func (s *Serial) Open() error {
	if s.port != nil {
		return nil
	}
	if s.cfg.Port == "" {
		return errors.New("serial port path is empty")
	}
	port, err := serial.Open(&serial.Config{
		Address:  s.cfg.Port,
		BaudRate: s.cfg.BaudRate,
		DataBits: s.cfg.DataBits,
		StopBits: s.cfg.StopBits,
		Parity:   s.cfg.Parity,
		Timeout:  s.cfg.Timeout,
	})
	if err != nil {
		return fmt.Errorf("opening %s: %w", s.cfg.Port, err)
	}
	s.port = port
	return nil
}

func (s *Serial) Send(cmd string) error {
	if s.port == nil {
		return ErrNotOpen
	}
	if _, err := s.port.Write([]byte(cmd + s.cfg.WriteTerm)); err != nil {
		return fmt.Errorf("sending %q: %v", cmd, err)
	}
	return nil
}

// Receive reads byte-wise until the read terminator arrives. Lab
// instruments answer in short lines, so the byte loop is not a
// bottleneck at serial speeds.
func (s *Serial) Receive() (string, error) {
	if s.port == nil {
		return "", ErrNotOpen
	}
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := s.port.Read(buf)
		if err != nil {
			if errors.Is(err, serial.ErrTimeout) {
				return "", fmt.Errorf("%w after %v", ErrTimeout, s.cfg.Timeout)
			}
			return "", err
		}
		if n == 0 {
			continue
		}
		sb.WriteByte(buf[0])
		if strings.HasSuffix(sb.String(), s.cfg.ReadTerm) {
			return strings.TrimSuffix(sb.String(), s.cfg.ReadTerm), nil
		}
	}
}

func (s *Serial) Close() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}
