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

// Preamble describes the scaling of a waveform record: how raw sample
// values map to volts and sample indices to seconds.
type Preamble struct {
	Format     int
	Type       int
	Points     int
	Count      int
	XIncrement float64
	XOrigin    float64
	XReference int
	YIncrement float64
	YOrigin    float64
	YReference int
}

// Oscilloscope is a Keysight InfiniiVision 3000T X-Series oscilloscope
// on its LAN port.
type Oscilloscope struct {
	host   string
	port   int
	logger log.FieldLogger
	tr     transport.Transport
}

// NewOscilloscope returns a driver for the oscilloscope at host:port.
func NewOscilloscope(host string, port int) (*Oscilloscope, error) {
	if host == "" {
		return nil, fmt.Errorf("keysight: host is required")
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("keysight: port %d out of range", port)
	}
	return &Oscilloscope{
		host:   host,
		port:   port,
		logger: log.WithField("device", "keysight.oscilloscope"),
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

// VoltAverage measures the average voltage on a channel.
func (d *Oscilloscope) VoltAverage(channel int) (float64, error) {
	return d.measure(channel, ":MEASure:VAVerage?")
}

// VoltMax measures the maximum voltage on a channel.
func (d *Oscilloscope) VoltMax(channel int) (float64, error) {
	return d.measure(channel, ":MEASure:VMAX?")
}

// VoltPeakPeak measures the peak-to-peak voltage on a channel.
func (d *Oscilloscope) VoltPeakPeak(channel int) (float64, error) {
	return d.measure(channel, ":MEASure:VPP?")
}

// Screenshot grabs the current display as a PNG image.
func (d *Oscilloscope) Screenshot() ([]byte, error) {
	if err := d.Write(":HARDcopy:INKSaver OFF"); err != nil {
		return nil, err
	}
	return d.binaryQuery(":DISPlay:DATA? PNG, COLor")
}

// Preamble reads the waveform scaling of a channel.
func (d *Oscilloscope) Preamble(channel int) (Preamble, error) {
	if err := validChannel(channel); err != nil {
		return Preamble{}, err
	}
	if err := d.Write(fmt.Sprintf(":WAVeform:SOURce CHANnel%d", channel)); err != nil {
		return Preamble{}, err
	}
	return d.preamble()
}

// Trace reads the waveform record of a channel, returning the time
// axis in seconds and the trace in volts.
func (d *Oscilloscope) Trace(channel int) ([]float64, []float64, error) {
	if err := validChannel(channel); err != nil {
		return nil, nil, err
	}
	setup := []string{
		":ACQuire:TYPE NORMal",
		fmt.Sprintf(":WAVeform:SOURce CHANnel%d", channel),
		":WAVeform:POINts:MODE NORMal",
		":WAVeform:FORMat BYTE",
	}
	for _, cmd := range setup {
		if err := d.Write(cmd); err != nil {
			return nil, nil, err
		}
	}
	pre, err := d.preamble()
	if err != nil {
		return nil, nil, err
	}
	data, err := d.binaryQuery(":WAVeform:DATA?")
	if err != nil {
		return nil, nil, err
	}

	times := make([]float64, len(data))
	volts := make([]float64, len(data))
	for i, sample := range data {
		times[i] = pre.XOrigin + float64(i)*pre.XIncrement
		volts[i] = (float64(sample)-float64(pre.YReference))*pre.YIncrement + pre.YOrigin
	}
	return times, volts, nil
}

func (d *Oscilloscope) measure(channel int, cmd string) (float64, error) {
	if err := validChannel(channel); err != nil {
		return 0, err
	}
	if err := d.Write(fmt.Sprintf(":MEASure:SOURce CHANnel%d", channel)); err != nil {
		return 0, err
	}
	resp, err := d.Query(cmd)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(resp), 64)
	if err != nil {
		return 0, fmt.Errorf("malformed measurement %q: %v", resp, err)
	}
	return value, nil
}

func (d *Oscilloscope) preamble() (Preamble, error) {
	resp, err := d.Query(":WAVeform:PREamble?")
	if err != nil {
		return Preamble{}, err
	}
	return parsePreamble(resp)
}

// binaryQuery reads a bulk response framed as an IEEE 488.2 block.
func (d *Oscilloscope) binaryQuery(cmd string) ([]byte, error) {
	if d.tr == nil {
		return nil, device.ErrNotConnected
	}
	br, ok := d.tr.(transport.BinaryReceiver)
	if !ok {
		return nil, fmt.Errorf("transport cannot read binary blocks")
	}
	if err := d.tr.Send(cmd); err != nil {
		return nil, err
	}
	return br.ReceiveBinary()
}

func parsePreamble(resp string) (Preamble, error) {
	fields := strings.Split(resp, ",")
	if len(fields) != 10 {
		return Preamble{}, fmt.Errorf("malformed preamble %q", resp)
	}
	values := make([]float64, len(fields))
	for i, field := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return Preamble{}, fmt.Errorf("malformed preamble field %q: %v", field, err)
		}
		values[i] = v
	}
	return Preamble{
		Format:     int(values[0]),
		Type:       int(values[1]),
		Points:     int(values[2]),
		Count:      int(values[3]),
		XIncrement: values[4],
		XOrigin:    values[5],
		XReference: int(values[6]),
		YIncrement: values[7],
		YOrigin:    values[8],
		YReference: int(values[9]),
	}, nil
}

func validChannel(channel int) error {
	if channel < 1 || channel > 4 {
		return fmt.Errorf("keysight: channel %d out of range 1 to 4", channel)
	}
	return nil
}
