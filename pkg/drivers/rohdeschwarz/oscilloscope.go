package rohdeschwarz

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"labdevices/pkg/device"
	"labdevices/pkg/transport"
)

// Preamble describes the axis layout of a waveform record.
type Preamble struct {
	// XStart and XStop bound the time axis in seconds.
	XStart float64
	XStop  float64
	// Points is the record length in samples.
	Points int
	// ValuesPerSample is usually 1.
	ValuesPerSample int
}

// Oscilloscope is a Rohde & Schwarz RTB2000 series oscilloscope on its
// LAN port. USB is not supported.
type Oscilloscope struct {
	host   string
	port   int
	logger log.FieldLogger
	tr     transport.Transport
}

// NewOscilloscope returns a driver for the oscilloscope at host:port.
// The host must be an IPv4 address.
func NewOscilloscope(host string, port int) (*Oscilloscope, error) {
	if !transport.IsIPv4(host) {
		return nil, fmt.Errorf("rohdeschwarz: host %q is not an IPv4 address", host)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("rohdeschwarz: port %d out of range", port)
	}
	return &Oscilloscope{
		host:   host,
		port:   port,
		logger: log.WithField("device", "rohdeschwarz.rtb2000"),
	}, nil
}

// Initialize opens the TCP connection. Calling it on a connected
// driver is a no-op.
func (d *Oscilloscope) Initialize() error {
	if d.tr != nil {
		return nil
	}

	tr := transport.NewTCP(transport.TCPConfig{
		Addr: net.JoinHostPort(d.host, strconv.Itoa(d.port)),
	})
	if err := tr.Open(); err != nil {
		return fmt.Errorf("failed to connect to oscilloscope: %w", err)
	}
	d.tr = tr

	idn, err := d.IDN()
	if err != nil {
		tr.Close()
		d.tr = nil
		return fmt.Errorf("failed to identify oscilloscope: %w", err)
	}
	d.logger.Infof("Connected to %s", idn)
	return nil
}

// Close drops the TCP connection. Closing a closed driver is a no-op.
func (d *Oscilloscope) Close() error {
	if d.tr == nil {
		return nil
	}
	err := d.tr.Close()
	d.tr = nil
	d.logger.Info("Connection closed")
	return err
}

// Write sends a command.
func (d *Oscilloscope) Write(cmd string) error {
	if d.tr == nil {
		return device.ErrNotConnected
	}
	return d.tr.Send(cmd)
}

// Query sends a command and returns the response.
func (d *Oscilloscope) Query(cmd string) (string, error) {
	if d.tr == nil {
		return "", device.ErrNotConnected
	}
	if err := d.tr.Send(cmd); err != nil {
		return "", err
	}
	return d.tr.Receive()
}

// IDN returns the instrument identification.
func (d *Oscilloscope) IDN() (string, error) {
	return d.Query("*IDN?")
}

// VoltAverage installs a screen measurement on a channel and returns
// the mean voltage.
func (d *Oscilloscope) VoltAverage(channel int) (float64, error) {
	return d.measure(channel, "MEAN")
}

// VoltMax installs a screen measurement on a channel and returns the
// upper peak voltage.
func (d *Oscilloscope) VoltMax(channel int) (float64, error) {
	return d.measure(channel, "UPEakvalue")
}

// VoltPeakPeak installs a screen measurement on a channel and returns
// the vertical peak-to-peak voltage.
func (d *Oscilloscope) VoltPeakPeak(channel int) (float64, error) {
	return d.measure(channel, "PEAK")
}

// Trace reads the waveform of a channel after a single trigger,
// returning the time axis in seconds and the trace in volts.
func (d *Oscilloscope) Trace(channel int) ([]float64, []float64, error) {
	if err := validChannel(channel); err != nil {
		return nil, nil, err
	}
	if err := d.Write(fmt.Sprintf("CHANnel%d:SINGle", channel)); err != nil {
		return nil, nil, err
	}
	raw, err := d.Query(fmt.Sprintf("FORMat ASC; CHANnel%d:DATA?", channel))
	if err != nil {
		return nil, nil, err
	}
	volts, err := parseCSV(raw)
	if err != nil {
		return nil, nil, err
	}
	pre, err := d.Preamble(channel)
	if err != nil {
		return nil, nil, err
	}
	return linspace(pre.XStart, pre.XStop, len(volts)), volts, nil
}

// Preamble reads the axis layout of a channel's waveform.
func (d *Oscilloscope) Preamble(channel int) (Preamble, error) {
	if err := validChannel(channel); err != nil {
		return Preamble{}, err
	}
	resp, err := d.Query(fmt.Sprintf("CHANnel%d:DATA:HEADer?", channel))
	if err != nil {
		return Preamble{}, err
	}
	fields := strings.Split(resp, ",")
	if len(fields) != 4 {
		return Preamble{}, fmt.Errorf("malformed data header %q", resp)
	}
	values, err := parseCSV(resp)
	if err != nil {
		return Preamble{}, err
	}
	return Preamble{
		XStart:          values[0],
		XStop:           values[1],
		Points:          int(values[2]),
		ValuesPerSample: int(values[3]),
	}, nil
}

// Screenshot grabs the current display as a PNG image.
func (d *Oscilloscope) Screenshot() ([]byte, error) {
	if err := d.Write("HCOPy:LANG PNG"); err != nil {
		return nil, err
	}
	if d.tr == nil {
		return nil, device.ErrNotConnected
	}
	br, ok := d.tr.(transport.BinaryReceiver)
	if !ok {
		return nil, fmt.Errorf("transport cannot read binary blocks")
	}
	if err := d.tr.Send("HCOPy:DATA?"); err != nil {
		return nil, err
	}
	return br.ReceiveBinary()
}

// SetTimeScale programs the horizontal scale in seconds per division.
func (d *Oscilloscope) SetTimeScale(scale float64) error {
	if scale <= 0 {
		return fmt.Errorf("rohdeschwarz: time scale %g must be positive", scale)
	}
	return d.Write(fmt.Sprintf(":TIMebase:SCALe %G", scale))
}

func (d *Oscilloscope) measure(channel int, kind string) (float64, error) {
	if err := validChannel(channel); err != nil {
		return 0, err
	}
	if err := d.Write(fmt.Sprintf("MEASurement:SOURce CH%d; MEASurement:MAIN %s", channel, kind)); err != nil {
		return 0, err
	}
	resp, err := d.Query("MEASurement:RESult?")
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(resp), 64)
	if err != nil {
		return 0, fmt.Errorf("malformed measurement %q: %v", resp, err)
	}
	return value, nil
}

func validChannel(channel int) error {
	if channel < 1 || channel > 4 {
		return fmt.Errorf("rohdeschwarz: channel %d out of range 1 to 4", channel)
	}
	return nil
}
