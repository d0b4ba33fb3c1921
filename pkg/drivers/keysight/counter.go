// Package keysight drives Keysight bench instruments: the 53220A
// universal frequency counter and the InfiniiVision 3000T X-Series
// oscilloscopes, both over their LAN SCPI sockets.
package keysight

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"labdevices/pkg/device"
	"labdevices/pkg/transport"
)

// triggerSources maps accepted trigger source spellings to the short
// form the instrument takes.
var triggerSources = map[string]string{
	"IMM":       "IMM",
	"IMMEDIATE": "IMM",
	"EXT":       "EXT",
	"EXTERNAL":  "EXT",
	"BUS":       "BUS",
}

// Counter is a Keysight 53220A universal frequency counter on its LAN
// port.
type Counter struct {
	host   string
	port   int
	logger log.FieldLogger
	tr     transport.Transport
}

// NewCounter returns a driver for the counter at host:port.
func NewCounter(host string, port int) (*Counter, error) {
	if host == "" {
		return nil, fmt.Errorf("keysight: host is required")
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("keysight: port %d out of range", port)
	}
	return &Counter{
		host:   host,
		port:   port,
		logger: log.WithField("device", "keysight.counter"),
	}, nil
}

// Initialize opens the TCP connection. Calling it on a connected
// driver is a no-op.
func (d *Counter) Initialize() error {
	if d.tr != nil {
		return nil
	}

	tr := transport.NewTCP(transport.TCPConfig{
		Addr: net.JoinHostPort(d.host, strconv.Itoa(d.port)),
	})
	if err := tr.Open(); err != nil {
		return fmt.Errorf("failed to connect to counter: %w", err)
	}
	d.tr = tr

	idn, err := d.IDN()
	if err != nil {
		tr.Close()
		d.tr = nil
		return fmt.Errorf("failed to identify counter: %w", err)
	}
	d.logger.Infof("Connected to %s", idn)
	return nil
}

// Close drops the TCP connection. Closing a closed driver is a no-op.
func (d *Counter) Close() error {
	if d.tr == nil {
		return nil
	}
	err := d.tr.Close()
	d.tr = nil
	d.logger.Info("Connection closed")
	return err
}

// Write sends a command.
func (d *Counter) Write(cmd string) error {
	if d.tr == nil {
		return device.ErrNotConnected
	}
	return d.tr.Send(cmd)
}

// Query sends a command and returns the response.
func (d *Counter) Query(cmd string) (string, error) {
	if d.tr == nil {
		return "", device.ErrNotConnected
	}
	if err := d.tr.Send(cmd); err != nil {
		return "", err
	}
	return d.tr.Receive()
}

// IDN returns the instrument identification.
func (d *Counter) IDN() (string, error) {
	return d.Query("*IDN?")
}

// GateTime reads the frequency gate time in seconds.
func (d *Counter) GateTime() (float64, error) {
	return d.queryFloat("FREQuency:GATE:TIME?")
}

// SetGateTime programs the frequency gate time in seconds.
func (d *Counter) SetGateTime(seconds float64) error {
	if seconds <= 0 {
		return fmt.Errorf("keysight: gate time %g must be positive", seconds)
	}
	return d.Write(fmt.Sprintf("FREQuency:GATE:TIME %g", seconds))
}

// TriggerMode reads the trigger source, IMM, EXT or BUS.
func (d *Counter) TriggerMode() (string, error) {
	return d.Query("TRIGger:SOURce?")
}

// SetTriggerMode programs the trigger source. Short and long spellings
// are accepted, case insensitively.
func (d *Counter) SetTriggerMode(mode string) error {
	src, ok := triggerSources[strings.ToUpper(mode)]
	if !ok {
		return fmt.Errorf("keysight: unknown trigger source %q", mode)
	}
	return d.Write("TRIGger:SOURce " + src)
}

// StartFrequencyMeasurement arms a frequency measurement with the
// configured gate time. The result is collected with
// ReadFrequencyMeasurement once the gate has elapsed.
func (d *Counter) StartFrequencyMeasurement() error {
	return d.Write("INIT")
}

// ReadFrequencyMeasurement returns the frequency of the armed
// measurement in hertz.
func (d *Counter) ReadFrequencyMeasurement() (float64, error) {
	return d.queryFloat("FETCH?")
}

// MeasureFrequency arms, gates and reads in a single exchange,
// returning the frequency in hertz.
func (d *Counter) MeasureFrequency() (float64, error) {
	return d.queryFloat("MEASure:FREQuency?")
}

func (d *Counter) queryFloat(cmd string) (float64, error) {
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
