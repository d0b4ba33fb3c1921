// Package srs drives Stanford Research Systems instruments. The DG645
// digital delay generator is addressed over a TCP socket and times up
// to eight delay channels routed to five output BNCs.
package srs

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"labdevices/pkg/device"
	"labdevices/pkg/transport"
)

// Channel identifies one of the delay channels, T0 and T1 plus A
// through H.
type Channel int

const (
	ChannelT0 Channel = iota
	ChannelT1
	ChannelA
	ChannelB
	ChannelC
	ChannelD
	ChannelE
	ChannelF
	ChannelG
	ChannelH
)

var channelNames = map[string]Channel{
	"T0": ChannelT0,
	"T1": ChannelT1,
	"A":  ChannelA,
	"B":  ChannelB,
	"C":  ChannelC,
	"D":  ChannelD,
	"E":  ChannelE,
	"F":  ChannelF,
	"G":  ChannelG,
	"H":  ChannelH,
}

// ParseChannel resolves a front-panel channel name such as "A" or "T0".
func ParseChannel(name string) (Channel, error) {
	ch, ok := channelNames[strings.ToUpper(name)]
	if !ok {
		return 0, fmt.Errorf("srs: unknown channel %q", name)
	}
	return ch, nil
}

// Output identifies one of the output BNCs, T0 plus the four channel
// pairs.
type Output int

const (
	OutputT0 Output = iota
	OutputAB
	OutputCD
	OutputEF
	OutputGH
)

var outputNames = map[string]Output{
	"T0": OutputT0,
	"AB": OutputAB,
	"CD": OutputCD,
	"EF": OutputEF,
	"GH": OutputGH,
}

// ParseOutput resolves an output BNC name such as "AB".
func ParseOutput(name string) (Output, error) {
	out, ok := outputNames[strings.ToUpper(name)]
	if !ok {
		return 0, fmt.Errorf("srs: unknown output BNC %q", name)
	}
	return out, nil
}

// triggerSources decodes the TSRC setting.
var triggerSources = map[int]string{
	0: "Internal",
	1: "External rising edges",
	2: "External falling edges",
	3: "Single shot external rising edges",
	4: "Single shot external falling edges",
	5: "Single shot",
	6: "Line",
}

// DG645 is a Stanford Research Systems DG645 delay generator on its
// LAN port.
type DG645 struct {
	host   string
	port   int
	logger log.FieldLogger
	tr     transport.Transport
}

// NewDG645 returns a driver for the generator at host:port.
func NewDG645(host string, port int) (*DG645, error) {
	if host == "" {
		return nil, fmt.Errorf("srs: host is required")
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("srs: port %d out of range", port)
	}
	return &DG645{
		host:   host,
		port:   port,
		logger: log.WithField("device", "srs.dg645"),
	}, nil
}

// Initialize opens the TCP connection. Calling it on a connected
// driver is a no-op.
func (d *DG645) Initialize() error {
	if d.tr != nil {
		return nil
	}

	tr := transport.NewTCP(transport.TCPConfig{
		Addr:      net.JoinHostPort(d.host, strconv.Itoa(d.port)),
		WriteTerm: "\n",
		ReadTerm:  "\r\n",
	})
	if err := tr.Open(); err != nil {
		return fmt.Errorf("failed to connect to DG645: %w", err)
	}
	d.tr = tr

	idn, err := d.IDN()
	if err != nil {
		tr.Close()
		d.tr = nil
		return fmt.Errorf("failed to identify DG645: %w", err)
	}
	d.logger.Infof("Connected to %s", idn)
	return nil
}

// Close drops the TCP connection. Closing a closed driver is a no-op.
func (d *DG645) Close() error {
	if d.tr == nil {
		return nil
	}
	err := d.tr.Close()
	d.tr = nil
	d.logger.Info("Connection closed")
	return err
}

// Write sends a command.
func (d *DG645) Write(cmd string) error {
	if d.tr == nil {
		return device.ErrNotConnected
	}
	return d.tr.Send(cmd)
}

// Query sends a command and returns the response.
func (d *DG645) Query(cmd string) (string, error) {
	if d.tr == nil {
		return "", device.ErrNotConnected
	}
	if err := d.tr.Send(cmd); err != nil {
		return "", err
	}
	return d.tr.Receive()
}

// IDN returns the instrument identification.
func (d *DG645) IDN() (string, error) {
	return d.Query("*IDN?")
}

// SetDelay programs the delay of a channel with respect to a reference
// channel, in seconds.
func (d *DG645) SetDelay(channel Channel, delay float64, reference Channel) error {
	if err := validChannel(channel); err != nil {
		return err
	}
	if err := validChannel(reference); err != nil {
		return err
	}
	return d.Write(fmt.Sprintf("DLAY %d, %d, %g", channel, reference, delay))
}

// Delay reads a channel's delay, returning the reference channel it is
// timed against and the delay in seconds.
func (d *DG645) Delay(channel Channel) (Channel, float64, error) {
	if err := validChannel(channel); err != nil {
		return 0, 0, err
	}
	resp, err := d.Query(fmt.Sprintf("DLAY? %d", channel))
	if err != nil {
		return 0, 0, err
	}
	fields := strings.Split(resp, ",")
	if len(fields) < 2 {
		return 0, 0, fmt.Errorf("malformed delay response %q", resp)
	}
	ref, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed reference channel %q: %v", fields[0], err)
	}
	delay, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed delay %q: %v", fields[1], err)
	}
	return Channel(ref), delay, nil
}

// OutputLevel reads the output amplitude of a BNC in volts.
func (d *DG645) OutputLevel(output Output) (float64, error) {
	if output < OutputT0 || output > OutputGH {
		return 0, fmt.Errorf("srs: output BNC %d out of range", output)
	}
	resp, err := d.Query(fmt.Sprintf("LAMP? %d", output))
	if err != nil {
		return 0, err
	}
	level, err := strconv.ParseFloat(resp, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed output level %q: %v", resp, err)
	}
	return level, nil
}

// TriggerSource reads the trigger source setting.
func (d *DG645) TriggerSource() (string, error) {
	resp, err := d.Query("TSRC?")
	if err != nil {
		return "", err
	}
	code, err := strconv.Atoi(resp)
	if err != nil {
		return "", fmt.Errorf("malformed trigger source %q: %v", resp, err)
	}
	source, ok := triggerSources[code]
	if !ok {
		return "", fmt.Errorf("unknown trigger source %d", code)
	}
	return source, nil
}

// SetTriggerSource programs the trigger source setting, 0 to 6.
func (d *DG645) SetTriggerSource(source int) error {
	if _, ok := triggerSources[source]; !ok {
		return fmt.Errorf("srs: trigger source %d out of range", source)
	}
	return d.Write(fmt.Sprintf("TSRC %d", source))
}

func validChannel(ch Channel) error {
	if ch < ChannelT0 || ch > ChannelH {
		return fmt.Errorf("srs: channel %d out of range", ch)
	}
	return nil
}
