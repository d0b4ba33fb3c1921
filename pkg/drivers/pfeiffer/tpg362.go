// Package pfeiffer drives Pfeiffer Vacuum gauge controllers. The TPG362
// dual gauge speaks a mailbox protocol over RS-232: every command is
// acknowledged with ACK or NAK, and an ENQ control character fetches the
// data the last command prepared.
package pfeiffer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"labdevices/pkg/device"
	"labdevices/pkg/transport"
)

// Control characters of the TPG handshake.
const (
	etx = "\x03" // end of text, clears the input buffer
	ack = "\x06" // positive acknowledge
	enq = "\x05" // enquiry, requests data transmission
	nak = "\x15" // negative acknowledge
)

// errorMessages decodes the four-digit ERR response.
var errorMessages = map[string]string{
	"0000": "No error",
	"1000": "ERROR (see display)",
	"0100": "No hardware error!",
	"0010": "Inadmissible parameter error",
	"0001": "Syntax error",
}

// statusMessages decodes the measurement status that prefixes every
// pressure reading.
var statusMessages = map[int]string{
	0: "Measurement data okay",
	1: "Underrange",
	2: "Overrange",
	3: "Sensor error",
	4: "Sensor off (IKR, PKR, IMR, PBR)",
	5: "No sensor (output: 5,2.0000E-2 [mbar])",
	6: "Identification error",
}

// pressureUnits decodes the UNI response.
var pressureUnits = map[int]string{
	0: "mbar/bar",
	1: "Torr",
	2: "Pascal",
	3: "Micron",
	4: "hPascal",
	5: "Volt",
}

// Identity is the parsed AYT response.
type Identity struct {
	Type     string
	Model    string
	Serial   string
	Firmware string
	Hardware string
}

// Reading is one gauge measurement: the pressure in the controller's
// configured unit plus the measurement status that qualifies it.
type Reading struct {
	Pressure float64
	Status   int
	Message  string
}

// TPG362 is a Pfeiffer Vacuum TPG 362 dual gauge controller on its
// RS-232 port. Older dual gauge models speak the same protocol.
type TPG362 struct {
	port   string
	logger log.FieldLogger
	tr     transport.Transport
}

// NewTPG362 returns a driver for the controller on the given serial
// port.
func NewTPG362(port string) (*TPG362, error) {
	if port == "" {
		return nil, fmt.Errorf("pfeiffer: serial port is required")
	}
	return &TPG362{
		port:   port,
		logger: log.WithField("device", "pfeiffer.tpg362"),
	}, nil
}

// Initialize opens the serial connection. Calling it on a connected
// driver is a no-op.
func (d *TPG362) Initialize() error {
	if d.tr != nil {
		return nil
	}

	tr := transport.NewSerial(transport.SerialConfig{
		Port:      d.port,
		BaudRate:  9600,
		WriteTerm: "\r\n",
		ReadTerm:  "\r\n",
		Timeout:   500 * time.Millisecond,
	})
	if err := tr.Open(); err != nil {
		return fmt.Errorf("failed to connect to TPG362: %w", err)
	}
	d.tr = tr
	d.logger.Infof("Connected to gauge controller on %s", d.port)
	return nil
}

// Close drops the serial connection. Closing a closed driver is a
// no-op.
func (d *TPG362) Close() error {
	if d.tr == nil {
		return nil
	}
	err := d.tr.Close()
	d.tr = nil
	d.logger.Info("Connection closed")
	return err
}

// Write sends cmd and consumes the controller's acknowledge. A NAK or
// any other unexpected response is an error.
func (d *TPG362) Write(cmd string) error {
	if d.tr == nil {
		return device.ErrNotConnected
	}
	if err := d.tr.Send(cmd); err != nil {
		return err
	}
	recv, err := d.tr.Receive()
	if err != nil {
		return err
	}
	switch recv {
	case ack:
		return nil
	case nak:
		return fmt.Errorf("controller returned negative acknowledge for %q", cmd)
	default:
		return fmt.Errorf("controller returned unknown response %q for %q", recv, cmd)
	}
}

// Query sends cmd and fetches the prepared data with ENQ.
func (d *TPG362) Query(cmd string) (string, error) {
	if err := d.Write(cmd); err != nil {
		return "", err
	}
	if err := d.tr.Send(enq); err != nil {
		return "", err
	}
	return d.tr.Receive()
}

// IDN returns the raw AYT identification line.
func (d *TPG362) IDN() (string, error) {
	return d.Query("AYT")
}

// Identity returns the parsed AYT identification.
func (d *TPG362) Identity() (Identity, error) {
	resp, err := d.Query("AYT")
	if err != nil {
		return Identity{}, err
	}
	fields := strings.Split(resp, ",")
	if len(fields) < 5 {
		return Identity{}, fmt.Errorf("malformed AYT response %q", resp)
	}
	return Identity{
		Type:     fields[0],
		Model:    fields[1],
		Serial:   fields[2],
		Firmware: fields[3],
		Hardware: fields[4],
	}, nil
}

// ErrorStatus reads the error register, returning the four-digit code
// and its message.
func (d *TPG362) ErrorStatus() (string, string, error) {
	code, err := d.Query("ERR")
	if err != nil {
		return "", "", err
	}
	msg, ok := errorMessages[code]
	if !ok {
		return "", "", fmt.Errorf("unknown error status %q", code)
	}
	return code, msg, nil
}

// GaugePressure reads gauge 1 or 2.
func (d *TPG362) GaugePressure(gauge int) (Reading, error) {
	if gauge != 1 && gauge != 2 {
		return Reading{}, fmt.Errorf("gauge number must be 1 or 2, got %d", gauge)
	}
	resp, err := d.Query("PR" + strconv.Itoa(gauge))
	if err != nil {
		return Reading{}, err
	}
	fields := strings.Split(resp, ",")
	if len(fields) < 2 {
		return Reading{}, fmt.Errorf("malformed pressure response %q", resp)
	}
	return parseReading(fields[0], fields[1])
}

// PressureAll reads both gauges with one command. The reply is of the
// form x,sx.xxxxEsxx,y,sy.yyyyEsyy.
func (d *TPG362) PressureAll() (Reading, Reading, error) {
	resp, err := d.Query("PRX")
	if err != nil {
		return Reading{}, Reading{}, err
	}
	fields := strings.Split(resp, ",")
	if len(fields) < 4 {
		return Reading{}, Reading{}, fmt.Errorf("malformed PRX response %q", resp)
	}
	first, err := parseReading(fields[0], fields[1])
	if err != nil {
		return Reading{}, Reading{}, err
	}
	second, err := parseReading(fields[2], fields[3])
	if err != nil {
		return Reading{}, Reading{}, err
	}
	return first, second, nil
}

// PressureGauge1 returns the pressure value of gauge one.
func (d *TPG362) PressureGauge1() (float64, error) {
	r, err := d.GaugePressure(1)
	return r.Pressure, err
}

// PressureGauge2 returns the pressure value of gauge two.
func (d *TPG362) PressureGauge2() (float64, error) {
	r, err := d.GaugePressure(2)
	return r.Pressure, err
}

// PressureUnit returns the unit pressures are reported in.
func (d *TPG362) PressureUnit() (string, error) {
	resp, err := d.Query("UNI")
	if err != nil {
		return "", err
	}
	code, err := strconv.Atoi(resp)
	if err != nil {
		return "", fmt.Errorf("malformed unit response %q: %v", resp, err)
	}
	unit, ok := pressureUnits[code]
	if !ok {
		return "", fmt.Errorf("unknown pressure unit %d", code)
	}
	return unit, nil
}

// Temperature returns the inner temperature of the controller in
// degrees celsius, accurate to about two degrees.
func (d *TPG362) Temperature() (int, error) {
	resp, err := d.Query("TMP")
	if err != nil {
		return 0, err
	}
	temp, err := strconv.Atoi(resp)
	if err != nil {
		return 0, fmt.Errorf("malformed temperature response %q: %v", resp, err)
	}
	return temp, nil
}

func parseReading(status, value string) (Reading, error) {
	code, err := strconv.Atoi(status)
	if err != nil {
		return Reading{}, fmt.Errorf("malformed measurement status %q: %v", status, err)
	}
	msg, ok := statusMessages[code]
	if !ok {
		return Reading{}, fmt.Errorf("unknown measurement status %d", code)
	}
	pressure, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return Reading{}, fmt.Errorf("malformed pressure value %q: %v", value, err)
	}
	return Reading{Pressure: pressure, Status: code, Message: msg}, nil
}
