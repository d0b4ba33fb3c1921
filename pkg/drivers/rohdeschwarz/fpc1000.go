// Package rohdeschwarz drives Rohde & Schwarz instruments: the FPC1000
// spectrum analyzer and the RTB2000 series oscilloscopes, both over
// their LAN SCPI sockets.
package rohdeschwarz

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"labdevices/pkg/device"
	"labdevices/pkg/transport"
)

// FPC1000 is a Rohde & Schwarz FPC1000 spectrum analyzer on its LAN
// port. USB is not supported.
type FPC1000 struct {
	host   string
	port   int
	logger log.FieldLogger
	tr     transport.Transport
}

// NewFPC1000 returns a driver for the analyzer at host:port.
func NewFPC1000(host string, port int) (*FPC1000, error) {
	if host == "" {
		return nil, fmt.Errorf("rohdeschwarz: host is required")
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("rohdeschwarz: port %d out of range", port)
	}
	return &FPC1000{
		host:   host,
		port:   port,
		logger: log.WithField("device", "rohdeschwarz.fpc1000"),
	}, nil
}

// Initialize opens the TCP connection. Calling it on a connected
// driver is a no-op.
func (d *FPC1000) Initialize() error {
	if d.tr != nil {
		return nil
	}

	tr := transport.NewTCP(transport.TCPConfig{
		Addr: net.JoinHostPort(d.host, strconv.Itoa(d.port)),
	})
	if err := tr.Open(); err != nil {
		return fmt.Errorf("failed to connect to FPC1000: %w", err)
	}
	d.tr = tr

	idn, err := d.IDN()
	if err != nil {
		tr.Close()
		d.tr = nil
		return fmt.Errorf("failed to identify FPC1000: %w", err)
	}
	d.logger.Infof("Connected to %s", idn)
	return nil
}

// Close drops the TCP connection. Closing a closed driver is a no-op.
func (d *FPC1000) Close() error {
	if d.tr == nil {
		return nil
	}
	err := d.tr.Close()
	d.tr = nil
	d.logger.Info("Connection closed")
	return err
}

// Write sends a command.
func (d *FPC1000) Write(cmd string) error {
	if d.tr == nil {
		return device.ErrNotConnected
	}
	return d.tr.Send(cmd)
}

// Query sends a command and returns the response.
func (d *FPC1000) Query(cmd string) (string, error) {
	if d.tr == nil {
		return "", device.ErrNotConnected
	}
	if err := d.tr.Send(cmd); err != nil {
		return "", err
	}
	return d.tr.Receive()
}

// IDN returns the instrument identification.
func (d *FPC1000) IDN() (string, error) {
	return d.Query("*IDN?")
}

// Trace reads the trace currently shown on the display, returning the
// frequency axis in hertz and the level in dBm. The first read after a
// sweep change can time out; retrying succeeds.
func (d *FPC1000) Trace() ([]float64, []float64, error) {
	raw, err := d.Query("TRACe:DATA? TRACE1")
	if err != nil {
		return nil, nil, err
	}
	levels, err := parseCSV(raw)
	if err != nil {
		return nil, nil, err
	}

	// The analyzer needs a moment between the trace transfer and the
	// frequency queries.
	time.Sleep(100 * time.Millisecond)
	start, err := d.queryFloat("FREQ:STAR?")
	if err != nil {
		return nil, nil, err
	}
	stop, err := d.queryFloat("FREQ:STOP?")
	if err != nil {
		return nil, nil, err
	}
	return linspace(start, stop, len(levels)), levels, nil
}

// Center reads the center frequency in hertz.
func (d *FPC1000) Center() (float64, error) {
	return d.queryFloat("FREQ:CENT?")
}

// SetCenter programs the center frequency in hertz.
func (d *FPC1000) SetCenter(hz float64) error {
	if hz < 0 {
		return fmt.Errorf("rohdeschwarz: center frequency %g must not be negative", hz)
	}
	return d.Write(fmt.Sprintf("FREQ:CENT %G", hz))
}

// Span reads the frequency span in hertz.
func (d *FPC1000) Span() (float64, error) {
	return d.queryFloat("FREQ:SPAN?")
}

// SetSpan programs the frequency span in hertz. A span of zero puts
// the analyzer into time domain display.
func (d *FPC1000) SetSpan(hz float64) error {
	if hz < 0 {
		return fmt.Errorf("rohdeschwarz: span %g must not be negative", hz)
	}
	return d.Write(fmt.Sprintf("FREQ:SPAN %G", hz))
}

// SystemAlarm returns the system alarms and clears the alarm buffer.
func (d *FPC1000) SystemAlarm() (string, error) {
	return d.Query("SYST:ERR:ALL?")
}

func (d *FPC1000) queryFloat(cmd string) (float64, error) {
	resp, err := d.Query(cmd)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(resp), 64)
	if err != nil {
		return 0, fmt.Errorf("malformed response %q: %v", resp, err)
	}
	return value, nil
}

// parseCSV parses a comma separated list of floats, tolerating spaces
// around the values.
func parseCSV(raw string) ([]float64, error) {
	fields := strings.Split(raw, ",")
	values := make([]float64, len(fields))
	for i, field := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, fmt.Errorf("malformed data point %q: %v", field, err)
		}
		values[i] = v
	}
	return values, nil
}

// linspace returns n evenly spaced values from start to stop
// inclusive.
func linspace(start, stop float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	values := make([]float64, n)
	if n == 1 {
		values[0] = start
		return values
	}
	step := (stop - start) / float64(n-1)
	for i := range values {
		values[i] = start + float64(i)*step
	}
	return values
}
