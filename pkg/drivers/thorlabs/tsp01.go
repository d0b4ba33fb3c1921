// Package thorlabs drives Thorlabs environment loggers. The TSP01
// carries a built-in temperature and humidity sensor plus two external
// temperature probes, and enumerates as a serial device over USB.
package thorlabs

import (
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"labdevices/pkg/device"
	"labdevices/pkg/transport"
)

// TSP01 is a Thorlabs TSP01 temperature and humidity logger.
type TSP01 struct {
	port   string
	logger log.FieldLogger
	tr     transport.Transport
}

// NewTSP01 returns a driver for the logger on the given serial port.
func NewTSP01(port string) (*TSP01, error) {
	if port == "" {
		return nil, fmt.Errorf("thorlabs: serial port is required")
	}
	return &TSP01{
		port:   port,
		logger: log.WithField("device", "thorlabs.tsp01"),
	}, nil
}

// Initialize opens the serial connection. Calling it on a connected
// driver is a no-op.
func (d *TSP01) Initialize() error {
	if d.tr != nil {
		return nil
	}

	tr := transport.NewSerial(transport.SerialConfig{
		Port:      d.port,
		BaudRate:  115200,
		WriteTerm: "\n",
		ReadTerm:  "\n",
	})
	if err := tr.Open(); err != nil {
		return fmt.Errorf("failed to connect to TSP01: %w", err)
	}
	d.tr = tr

	idn, err := d.IDN()
	if err != nil {
		tr.Close()
		d.tr = nil
		return fmt.Errorf("failed to identify TSP01: %w", err)
	}
	d.logger.Infof("Connected to %s", idn)
	return nil
}

// Close drops the serial connection. Closing a closed driver is a
// no-op.
func (d *TSP01) Close() error {
	if d.tr == nil {
		return nil
	}
	err := d.tr.Close()
	d.tr = nil
	d.logger.Info("Connection closed")
	return err
}

// Write sends a command.
func (d *TSP01) Write(cmd string) error {
	if d.tr == nil {
		return device.ErrNotConnected
	}
	return d.tr.Send(cmd)
}

// Query sends a command and returns the response.
func (d *TSP01) Query(cmd string) (string, error) {
	if d.tr == nil {
		return "", device.ErrNotConnected
	}
	if err := d.tr.Send(cmd); err != nil {
		return "", err
	}
	return d.tr.Receive()
}

// IDN returns the instrument identification.
func (d *TSP01) IDN() (string, error) {
	return d.Query("*IDN?")
}

// Temperature returns the logger's built-in temperature in degrees
// celsius.
func (d *TSP01) Temperature() (float64, error) {
	return d.queryValue(":READ?")
}

// Humidity returns the built-in relative humidity in percent.
func (d *TSP01) Humidity() (float64, error) {
	return d.queryValue(":SENSe2:HUMidity:DATA?")
}

// TemperatureProbe1 returns the temperature of external probe 1.
func (d *TSP01) TemperatureProbe1() (float64, error) {
	return d.queryValue(":SENSe3:TEMPerature:DATA?")
}

// TemperatureProbe2 returns the temperature of external probe 2.
func (d *TSP01) TemperatureProbe2() (float64, error) {
	return d.queryValue(":SENSe4:TEMPerature:DATA?")
}

// queryValue reads the first numeric field of a response.
func (d *TSP01) queryValue(cmd string) (float64, error) {
	resp, err := d.Query(cmd)
	if err != nil {
		return 0, err
	}
	first, _, _ := strings.Cut(resp, ",")
	value, err := strconv.ParseFloat(strings.TrimSpace(first), 64)
	if err != nil {
		return 0, fmt.Errorf("malformed response %q to %s: %v", resp, cmd, err)
	}
	return value, nil
}
