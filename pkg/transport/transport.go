// Package transport provides the communication channels the instrument
// drivers use to reach real hardware: TCP and UDP sockets, serial ports
// and a Prologix GPIB-Ethernet adapter.
//
// A Transport is owned by exactly one driver instance. Transports are not
// safe for concurrent use; callers serialize access.
package transport

import (
	"errors"
	"regexp"
	"time"
)

// Transport is a bidirectional text command channel to an instrument.
type Transport interface {
	// Open establishes the connection. A failed Open leaves the transport
	// closed so it can be retried.
	Open() error

	// Send transmits a single command, appending the configured write
	// terminator where the protocol has one.
	Send(cmd string) error

	// Receive returns the next response with its terminator stripped.
	// A missed deadline returns an error wrapping ErrTimeout.
	Receive() (string, error)

	// Close releases the connection. Closing a transport that is not open
	// is a no-op.
	Close() error
}

// BinaryReceiver is implemented by transports that can read an IEEE
// 488.2 definite-length block, the framing instruments use for bulk
// payloads such as screenshots and waveform records.
type BinaryReceiver interface {
	// ReceiveBinary returns the payload of the next block, with the
	// '#' header and any trailing terminator consumed.
	ReceiveBinary() ([]byte, error)
}

var (
	// ErrTimeout is returned by Receive when the instrument does not
	// answer within the configured timeout.
	ErrTimeout = errors.New("transport: timeout")

	// ErrNotOpen is returned when sending or receiving on a transport
	// that has not been opened.
	ErrNotOpen = errors.New("transport: not open")
)

// DefaultTimeout is the response deadline used when a config leaves the
// timeout unset.
const DefaultTimeout = 2 * time.Second

var ipv4Pattern = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){3}$`)

// IsIPv4 reports whether s looks like a dotted IPv4 address. Drivers use
// it to validate connection parameters before any I/O happens.
func IsIPv4(s string) bool {
	return ipv4Pattern.MatchString(s)
}
