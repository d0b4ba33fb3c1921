// Package newport drives Newport motion controllers. The SMC100 is a
// single-axis stepper/DC controller addressed over RS-232; several
// controllers can share one link, distinguished by a controller number
// that prefixes every command.
package newport

import (
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"labdevices/pkg/device"
	"labdevices/pkg/transport"
)

// Controller states reported in the last two hex digits of the TS
// response (SMC100 manual, section "TS").
const (
	stateConfiguration    = 0x14
	stateMoving           = 0x28
	stateReadyFromHoming  = 0x32
	stateReadyFromMoving  = 0x33
	stateReadyFromDisable = 0x34
	stateReadyFromJogging = 0x35
)

// errorCodes maps the single-letter code returned by TE to the message
// from the SMC100 manual.
var errorCodes = map[string]string{
	"@": "No error",
	"A": "Unknown message code or floating point controller address",
	"B": "Controller address not correct",
	"C": "Parameter missing or out of range",
	"D": "Execution not allowed",
	"E": "Home sequence already started",
	"F": "ESP stage name unknown",
	"G": "Displacement out of limits",
	"H": "Execution not allowed in NOT REFERENCED state",
	"I": "Execution not allowed in CONFIGURATION state",
	"J": "Execution not allowed in DISABLE state",
	"K": "Execution not allowed in READY state",
	"L": "Execution not allowed in HOMING state",
	"M": "Execution not allowed in MOVING state",
	"N": "Current position out of software limit",
	"S": "Communication Time Out",
	"U": "Error during EEPROM access",
	"V": "Error during command execution",
	"W": "Command not allowed for SMC100PP version",
	"X": "Command not allowed for CC version",
}

// SMC100 is a Newport SMC100 motion controller with one translation
// stage attached.
type SMC100 struct {
	port       string
	controller int
	logger     log.FieldLogger
	tr         transport.Transport
}

// NewSMC100 returns a driver for the controller on the given serial
// port. The controller number is 1 unless several SMC100 are chained
// on one link.
func NewSMC100(port string, controller int) (*SMC100, error) {
	if port == "" {
		return nil, fmt.Errorf("newport: serial port is required")
	}
	if controller < 1 || controller > 31 {
		return nil, fmt.Errorf("newport: controller number %d out of range 1..31", controller)
	}
	return &SMC100{
		port:       port,
		controller: controller,
		logger:     log.WithField("device", "newport.smc100"),
	}, nil
}

// Initialize opens the serial connection. Calling it on a connected
// driver is a no-op.
func (d *SMC100) Initialize() error {
	if d.tr != nil {
		return nil
	}

	// The controller wants XON/XOFF flow control, which the serial
	// layer does not expose; the short replies never fill the buffers.
	tr := transport.NewSerial(transport.SerialConfig{
		Port:      d.port,
		BaudRate:  921600,
		WriteTerm: "\r\n",
		ReadTerm:  "\r\n",
		Timeout:   500 * time.Millisecond,
	})
	if err := tr.Open(); err != nil {
		return fmt.Errorf("failed to connect to SMC100: %w", err)
	}
	d.tr = tr

	idn, err := d.IDN()
	if err != nil {
		tr.Close()
		d.tr = nil
		return fmt.Errorf("failed to identify SMC100: %w", err)
	}
	d.logger.Infof("Connected to %s", idn)
	return nil
}

// Close drops the serial connection. Closing a closed driver is a
// no-op.
func (d *SMC100) Close() error {
	if d.tr == nil {
		return nil
	}
	err := d.tr.Close()
	d.tr = nil
	d.logger.Info("Connection closed")
	return err
}

// Write prefixes cmd with the controller number and sends it.
func (d *SMC100) Write(cmd string) error {
	if d.tr == nil {
		return device.ErrNotConnected
	}
	return d.tr.Send(fmt.Sprintf("%d%s", d.controller, cmd))
}

// Query sends cmd and returns the response with the echoed controller
// number and command letters stripped.
func (d *SMC100) Query(cmd string) (string, error) {
	if d.tr == nil {
		return "", device.ErrNotConnected
	}
	full := fmt.Sprintf("%d%s", d.controller, cmd)
	if err := d.tr.Send(full); err != nil {
		return "", err
	}
	resp, err := d.tr.Receive()
	if err != nil {
		return "", err
	}
	// Responses echo the controller number and the two command letters
	// ahead of the payload.
	echo := len(strconv.Itoa(d.controller)) + 2
	if len(resp) < echo {
		return "", fmt.Errorf("short response %q to %s", resp, cmd)
	}
	return resp[echo:], nil
}

// IDN returns the stage identifier.
func (d *SMC100) IDN() (string, error) {
	return d.Query("ID?")
}

// ErrorAndControllerStatus reads the TS register: four hex digits of
// positioner error flags and two hex digits of controller state. The
// read clears the error buffer.
func (d *SMC100) ErrorAndControllerStatus() (string, string, error) {
	resp, err := d.Query("TS")
	if err != nil {
		return "", "", err
	}
	if len(resp) < 6 {
		return "", "", fmt.Errorf("malformed TS response %q", resp)
	}
	return resp[0:4], resp[4:6], nil
}

// IsMoving reports whether the stage is executing a move.
func (d *SMC100) IsMoving() (bool, error) {
	_, state, err := d.ErrorAndControllerStatus()
	if err != nil {
		return false, err
	}
	code, err := strconv.ParseInt(state, 16, 32)
	if err != nil {
		return false, fmt.Errorf("malformed controller state %q: %v", state, err)
	}
	return code == stateMoving, nil
}

// WaitMoveFinish polls the controller state at the given interval
// until the stage stops moving.
func (d *SMC100) WaitMoveFinish(interval time.Duration) error {
	for {
		moving, err := d.IsMoving()
		if err != nil {
			return err
		}
		if !moving {
			d.logger.Info("Movement finished")
			return nil
		}
		time.Sleep(interval)
	}
}

// LastCommandError reads and clears the memorized command error,
// returning the message from the manual.
func (d *SMC100) LastCommandError() (string, error) {
	code, err := d.Query("TE")
	if err != nil {
		return "", err
	}
	if msg, ok := errorCodes[code]; ok {
		return msg, nil
	}
	return "", fmt.Errorf("unknown error code %q", code)
}

// MoveRel moves the stage by distance, in the stage's units.
func (d *SMC100) MoveRel(distance float64) error {
	return d.Write(fmt.Sprintf("PR%g", distance))
}

// MoveAbs moves the stage to position, in the stage's units.
func (d *SMC100) MoveAbs(position float64) error {
	return d.Write(fmt.Sprintf("PA%g", position))
}

// Position returns the current stage position.
func (d *SMC100) Position() (float64, error) {
	resp, err := d.Query("PA?")
	if err != nil {
		return 0, err
	}
	pos, err := strconv.ParseFloat(resp, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed position %q: %v", resp, err)
	}
	return pos, nil
}

// Home starts the homing sequence.
func (d *SMC100) Home() error {
	return d.Write("OR")
}

// Reset resets the controller. It comes back in NOT REFERENCED state.
func (d *SMC100) Reset() error {
	return d.Write("RS")
}

// Speed returns the constant moving speed.
func (d *SMC100) Speed() (float64, error) {
	resp, err := d.Query("VA?")
	if err != nil {
		return 0, err
	}
	speed, err := strconv.ParseFloat(resp, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed speed %q: %v", resp, err)
	}
	return speed, nil
}

// SetSpeed sets the constant moving speed.
func (d *SMC100) SetSpeed(value float64) error {
	return d.Write(fmt.Sprintf("VA%g", value))
}

// Acceleration returns the move acceleration and deceleration.
func (d *SMC100) Acceleration() (float64, error) {
	resp, err := d.Query("AC?")
	if err != nil {
		return 0, err
	}
	accel, err := strconv.ParseFloat(resp, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed acceleration %q: %v", resp, err)
	}
	return accel, nil
}

// SetAcceleration sets the move acceleration and deceleration.
func (d *SMC100) SetAcceleration(value float64) error {
	return d.Write(fmt.Sprintf("AC%g", value))
}
