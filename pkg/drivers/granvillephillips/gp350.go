// Package granvillephillips drives Granville-Phillips gauge
// controllers. The Series 350 UHV controller reads an ion gauge over a
// slow RS-232 link with 7 data bits and 2 stop bits, and answers
// set commands with OK or INVALID.
package granvillephillips

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"labdevices/pkg/device"
	"labdevices/pkg/transport"
)

// The controller has no identification command; the model string is
// fixed.
const gp350Model = "Granville-Phillips Series 350 UHV Gauge Controller"

// GP350 is a Granville-Phillips 350 controller with an ion gauge
// attached.
type GP350 struct {
	port   string
	logger log.FieldLogger
	tr     transport.Transport
}

// NewGP350 returns a driver for the controller on the given serial
// port.
func NewGP350(port string) (*GP350, error) {
	if port == "" {
		return nil, fmt.Errorf("granvillephillips: serial port is required")
	}
	return &GP350{
		port:   port,
		logger: log.WithField("device", "granvillephillips.gp350"),
	}, nil
}

// Initialize opens the serial connection. Calling it on a connected
// driver is a no-op.
func (d *GP350) Initialize() error {
	if d.tr != nil {
		return nil
	}

	tr := transport.NewSerial(transport.SerialConfig{
		Port:      d.port,
		BaudRate:  300,
		DataBits:  7,
		StopBits:  2,
		WriteTerm: "\r\n",
		ReadTerm:  "\r\n",
		Timeout:   2 * time.Second,
	})
	if err := tr.Open(); err != nil {
		return fmt.Errorf("failed to connect to GP350: %w", err)
	}
	d.tr = tr
	d.logger.Infof("Connected to %s", gp350Model)
	return nil
}

// Close drops the serial connection. Closing a closed driver is a
// no-op.
func (d *GP350) Close() error {
	if d.tr == nil {
		return nil
	}
	err := d.tr.Close()
	d.tr = nil
	d.logger.Info("Connection closed")
	return err
}

// Write sends a command.
func (d *GP350) Write(cmd string) error {
	if d.tr == nil {
		return device.ErrNotConnected
	}
	return d.tr.Send(cmd)
}

// Query sends a command and returns the response.
func (d *GP350) Query(cmd string) (string, error) {
	if d.tr == nil {
		return "", device.ErrNotConnected
	}
	if err := d.tr.Send(cmd); err != nil {
		return "", err
	}
	return d.tr.Receive()
}

// IDN returns the fixed model string, since the controller has no
// identification command.
func (d *GP350) IDN() (string, error) {
	return gp350Model, nil
}

// Pressure reads the ion gauge in the controller's configured unit.
func (d *GP350) Pressure() (float64, error) {
	resp, err := d.Query("DS IG")
	if err != nil {
		return 0, err
	}
	pressure, err := strconv.ParseFloat(strings.TrimSpace(resp), 64)
	if err != nil {
		return 0, fmt.Errorf("malformed pressure %q: %v", resp, err)
	}
	return pressure, nil
}

// DegasStatus reads the degas state of the gauge.
func (d *GP350) DegasStatus() (string, error) {
	return d.Query("DGS")
}

// SetDegas switches gauge degassing on or off.
func (d *GP350) SetDegas(on bool) error {
	resp, err := d.Query("DG " + onOff(on))
	if err != nil {
		return err
	}
	return checkAck(resp)
}

// SetFilament switches filament 1 or 2 on or off.
func (d *GP350) SetFilament(which int, on bool) error {
	if which != 1 && which != 2 {
		return fmt.Errorf("granvillephillips: filament must be 1 or 2, got %d", which)
	}
	resp, err := d.Query(fmt.Sprintf("IG%d %s", which, onOff(on)))
	if err != nil {
		return err
	}
	return checkAck(resp)
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func checkAck(resp string) error {
	if resp != "OK" {
		return fmt.Errorf("controller rejected command: %q", resp)
	}
	return nil
}
