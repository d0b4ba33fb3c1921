// Package kuhneelectronic drives Kuhne Electronic signal sources. The
// MKU LO 8-13 PLL local oscillator takes fixed-format frequency digit
// commands over a USB-serial cable and acknowledges each one with "A".
// Set to 7.02 GHz, the main output yields the second harmonic at
// 14.04 GHz.
package kuhneelectronic

import (
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"labdevices/pkg/device"
	"labdevices/pkg/transport"
)

// The oscillator has no identification command; the model string is
// fixed.
const loModel = "MKU LO 8-13 PLL Oscillator"

// LocalOscillator is a Kuhne Electronic MKU LO 8-13 PLL oscillator.
// Other Kuhne oscillators speak the same digit protocol.
type LocalOscillator struct {
	port   string
	logger log.FieldLogger
	tr     transport.Transport
}

// NewLocalOscillator returns a driver for the oscillator on the given
// serial port.
func NewLocalOscillator(port string) (*LocalOscillator, error) {
	if port == "" {
		return nil, fmt.Errorf("kuhneelectronic: serial port is required")
	}
	return &LocalOscillator{
		port:   port,
		logger: log.WithField("device", "kuhneelectronic.mkulo"),
	}, nil
}

// Initialize opens the serial connection. Calling it on a connected
// driver is a no-op.
func (d *LocalOscillator) Initialize() error {
	if d.tr != nil {
		return nil
	}

	tr := transport.NewSerial(transport.SerialConfig{
		Port:     d.port,
		BaudRate: 115200,
		// Commands are unterminated; the trailing command letters
		// delimit them.
		WriteTerm: "",
		ReadTerm:  "\r\n",
	})
	if err := tr.Open(); err != nil {
		return fmt.Errorf("failed to connect to local oscillator: %w", err)
	}
	d.tr = tr
	d.logger.Infof("Connected to %s", loModel)
	return nil
}

// Close drops the serial connection. Closing a closed driver is a
// no-op.
func (d *LocalOscillator) Close() error {
	if d.tr == nil {
		return nil
	}
	err := d.tr.Close()
	d.tr = nil
	d.logger.Info("Connection closed")
	return err
}

// Write sends a command and consumes the acknowledge. The oscillator
// answers "A" for accepted commands; anything else is logged and
// dropped.
func (d *LocalOscillator) Write(cmd string) error {
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
	if recv != "A" {
		d.logger.Warnf("unexpected acknowledge %q for %q", recv, cmd)
	}
	return nil
}

// Query sends a command and returns the response.
func (d *LocalOscillator) Query(cmd string) (string, error) {
	if d.tr == nil {
		return "", device.ErrNotConnected
	}
	if err := d.tr.Send(cmd); err != nil {
		return "", err
	}
	return d.tr.Receive()
}

// IDN returns the fixed model string, since the oscillator has no
// identification command.
func (d *LocalOscillator) IDN() (string, error) {
	return loModel, nil
}

// Status reads the status of the oscillator module.
func (d *LocalOscillator) Status() (string, error) {
	return d.Query("sa")
}

// SetGigaHz sets the three gigahertz digits of the frequency, 0..999.
func (d *LocalOscillator) SetGigaHz(value int) error {
	return d.setDigits(value, "GF1")
}

// SetMegaHz sets the three megahertz digits of the frequency, 0..999.
func (d *LocalOscillator) SetMegaHz(value int) error {
	return d.setDigits(value, "MF1")
}

// SetKiloHz sets the three kilohertz digits of the frequency, 0..999.
func (d *LocalOscillator) SetKiloHz(value int) error {
	return d.setDigits(value, "kF1")
}

// SetHz sets the hertz digits of the frequency, 0..999.
func (d *LocalOscillator) SetHz(value int) error {
	return d.setDigits(value, "HF1")
}

// SetFrequency programs the full frequency in GHz, down to hertz
// precision, by writing the four digit groups in turn.
func (d *LocalOscillator) SetFrequency(value float64) error {
	if value < 0 {
		return fmt.Errorf("kuhneelectronic: frequency must not be negative, got %g", value)
	}
	ghz := int(value)
	mhz := int(math.Mod(value*1e3, 1e3))
	khz := int(math.Mod(value*1e6, 1e3))
	hertz := int(math.Mod(value*1e9, 1e3))

	steps := []struct {
		value  int
		suffix string
	}{
		{ghz, "GF1"},
		{mhz, "MF1"},
		{khz, "kF1"},
		{hertz, "HF1"},
	}
	for i, step := range steps {
		if err := d.setDigits(step.value, step.suffix); err != nil {
			return err
		}
		// The PLL needs a moment between digit groups.
		if i < len(steps)-1 {
			time.Sleep(10 * time.Millisecond)
		}
	}
	d.logger.Infof("Frequency set to %02d GHz, %03d MHz, %03d kHz, and %03d Hz", ghz, mhz, khz, hertz)
	return nil
}

func (d *LocalOscillator) setDigits(value int, suffix string) error {
	if value < 0 || value > 999 {
		return fmt.Errorf("kuhneelectronic: digit group %d out of range 0..999", value)
	}
	return d.Write(fmt.Sprintf("%03d%s", value, suffix))
}
