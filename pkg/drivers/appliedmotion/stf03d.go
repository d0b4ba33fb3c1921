// Package appliedmotion drives Applied Motion Products stepper motor
// controllers. The STF03-D is addressed over UDP with a two byte frame
// header and speaks the vendor's SCL command set.
package appliedmotion

import (
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"labdevices/pkg/device"
	"labdevices/pkg/transport"
)

const (
	frameHeader = "\x00\x07"
	frameTail   = "\r"
)

var alarmNames = map[uint16]string{
	0x0000: "No alarms",
	0x0001: "Position Limit",
	0x0002: "CCW Limit",
	0x0004: "CW Limit",
	0x0008: "Over Temp",
	0x0010: "Internal Voltage",
	0x0020: "Over Voltage",
	0x0040: "Under Voltage",
	0x0080: "Over Current",
	0x0100: "Open Motor Winding",
	0x0200: "Bad Encoder",
	0x0400: "Comm Error",
	0x0800: "Bad Flash",
	0x1000: "No Move",
	0x2000: "(not used)",
	0x4000: "Blank Q Segment",
	0x8000: "(not used)",
}

var statusNames = map[uint16]string{
	0x0000: "Motor disabled",
	0x0001: "Motor enabled and in position",
	0x0002: "Sampling (for Quick Tuner)",
	0x0004: "Drive Fault (check Alarm Code)",
	0x0008: "In Position (motor is in position)",
	0x0010: "Moving (motor is moving)",
	0x0020: "Jogging (currently in jog mode)",
	0x0040: "Stopping (in the process of stopping from a stop command)",
	0x0080: "Waiting (for an input; executing a WI command)",
	0x0100: "Saving (parameter data is being saved)",
	0x0200: "Alarm present (check Alarm Code)",
	0x0400: "Homing (executing an SH command)",
	0x0800: "Waiting (for time; executing a WD or WT command)",
	0x1000: "Wizard running (Timing Wizard is running)",
	0x2000: "Checking encoder (Timing Wizard is running)",
	0x4000: "Q Program is running",
	0x8000: "Initializing (happens at power up)",
}

const statusMoving = 0x0010

// stepsPerTurn gives the steps for a full motor turn at each microstep
// resolution setting. Resolution 2 is not assignable on this drive.
var stepsPerTurn = map[int]int{
	0:  200,
	1:  400,
	3:  2000,
	4:  5000,
	5:  10000,
	6:  12800,
	7:  18000,
	8:  20000,
	9:  21600,
	10: 25000,
	11: 25400,
	12: 25600,
	13: 36000,
	14: 50000,
	15: 50800,
}

// STF03D is an Applied Motion Products STF03-D stepper motor
// controller on its UDP port, driving for example a rotary
// feedthrough.
//
// Positions and distances are expressed in calibrated units. The
// calibration defaults to one unit per motor turn; SetCalibration
// installs the mechanical conversion, such as 360/96 degrees for a
// worm wheel with a 1/96 gear ratio.
type STF03D struct {
	host         string
	port         int
	unitsPerTurn float64
	logger       log.FieldLogger
	tr           transport.Transport
}

// NewSTF03D returns a driver for the controller at host:port. The
// drive listens on UDP port 7775.
func NewSTF03D(host string, port int) (*STF03D, error) {
	if host == "" {
		return nil, fmt.Errorf("appliedmotion: host is required")
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("appliedmotion: port %d out of range", port)
	}
	return &STF03D{
		host:         host,
		port:         port,
		unitsPerTurn: 1,
		logger:       log.WithField("device", "appliedmotion.stf03d"),
	}, nil
}

// Initialize opens the UDP socket. Calling it on a connected driver is
// a no-op.
func (d *STF03D) Initialize() error {
	if d.tr != nil {
		return nil
	}

	tr := transport.NewUDP(transport.UDPConfig{
		Addr:    net.JoinHostPort(d.host, strconv.Itoa(d.port)),
		Timeout: 5 * time.Second,
	})
	if err := tr.Open(); err != nil {
		return fmt.Errorf("failed to connect to STF03D: %w", err)
	}
	d.tr = tr

	idn, err := d.IDN()
	if err != nil {
		tr.Close()
		d.tr = nil
		return fmt.Errorf("failed to identify STF03D: %w", err)
	}
	d.logger.Infof("Connected to %s", idn)
	return nil
}

// Close drops the UDP socket. Closing a closed driver is a no-op.
func (d *STF03D) Close() error {
	if d.tr == nil {
		return nil
	}
	err := d.tr.Close()
	d.tr = nil
	d.logger.Info("Connection closed")
	return err
}

// Write sends a command inside the controller's datagram frame.
func (d *STF03D) Write(cmd string) error {
	if d.tr == nil {
		return device.ErrNotConnected
	}
	return d.tr.Send(frameHeader + cmd + frameTail)
}

// Query sends a command and returns the response with its frame
// stripped.
func (d *STF03D) Query(cmd string) (string, error) {
	if err := d.Write(cmd); err != nil {
		return "", err
	}
	resp, err := d.tr.Receive()
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(resp, frameHeader) || !strings.HasSuffix(resp, frameTail) {
		return "", fmt.Errorf("malformed response %q", resp)
	}
	return strings.TrimSuffix(strings.TrimPrefix(resp, frameHeader), frameTail), nil
}

// IDN returns the drive's model and revision string.
func (d *STF03D) IDN() (string, error) {
	return d.Query("MV")
}

// SetCalibration installs the conversion between calibrated units and
// motor turns, for example degrees per turn or the lead of a screw.
func (d *STF03D) SetCalibration(unitsPerTurn float64) error {
	if unitsPerTurn <= 0 {
		return fmt.Errorf("appliedmotion: calibration %g must be positive", unitsPerTurn)
	}
	d.unitsPerTurn = unitsPerTurn
	return nil
}

// Alarms reads the alarm code register and resolves every raised bit
// to its message.
func (d *STF03D) Alarms() ([]string, error) {
	return d.flags("AL", alarmNames)
}

// Status reads the status code register and resolves every raised bit
// to its message.
func (d *STF03D) Status() ([]string, error) {
	return d.flags("SC", statusNames)
}

// IsMoving reports whether the motor is currently moving.
func (d *STF03D) IsMoving() (bool, error) {
	code, err := d.queryHex("SC")
	if err != nil {
		return false, err
	}
	return code&statusMoving != 0, nil
}

// Microstep reads the microstep resolution setting of the drive.
func (d *STF03D) Microstep() (int, error) {
	return d.queryInt("MR")
}

// SetMicrostep programs the microstep resolution setting, 0 to 15
// excluding 2. The standard value is 3.
func (d *STF03D) SetMicrostep(value int) error {
	if _, ok := stepsPerTurn[value]; !ok {
		return fmt.Errorf("appliedmotion: microstep resolution %d not assignable", value)
	}
	return d.ack(fmt.Sprintf("MR%d", value))
}

// MaxCurrent reads the maximum idle and change current limit in
// ampere.
func (d *STF03D) MaxCurrent() (float64, error) {
	return d.queryFloat("MC")
}

// SetMaxCurrent programs the maximum idle and change current limit.
// The drive takes at most 3 A.
func (d *STF03D) SetMaxCurrent(amps float64) error {
	if err := validCurrent(amps); err != nil {
		return err
	}
	return d.ack(fmt.Sprintf("MC%g", amps))
}

// IdleCurrent reads the current applied while standing still, in
// ampere.
func (d *STF03D) IdleCurrent() (float64, error) {
	return d.queryFloat("CI")
}

// SetIdleCurrent programs the current applied while standing still.
// 0.5 A is a reasonable value.
func (d *STF03D) SetIdleCurrent(amps float64) error {
	if err := validCurrent(amps); err != nil {
		return err
	}
	return d.ack(fmt.Sprintf("CI%g", amps))
}

// ChangeCurrent reads the current applied while moving, in ampere.
func (d *STF03D) ChangeCurrent() (float64, error) {
	return d.queryFloat("CC")
}

// SetChangeCurrent programs the current applied while moving. Keeping
// it at the 3 A maximum avoids missed steps.
func (d *STF03D) SetChangeCurrent(amps float64) error {
	if err := validCurrent(amps); err != nil {
		return err
	}
	return d.ack(fmt.Sprintf("CC%g", amps))
}

// Position returns the current motor position in calibrated units.
func (d *STF03D) Position() (float64, error) {
	steps, err := d.queryInt("SP")
	if err != nil {
		return 0, err
	}
	return d.stepToUnit(steps)
}

// ResetPosition declares the current motor position the new zero.
func (d *STF03D) ResetPosition() error {
	return d.ack("SP0")
}

// ImmediateStep returns the calculated trajectory position in motor
// steps, which is not always equal to the actual position. The
// register is a 32-bit two's complement step count.
func (d *STF03D) ImmediateStep() (int, error) {
	code, err := d.querySetting("IP")
	if err != nil {
		return 0, err
	}
	steps, err := strconv.ParseUint(code, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("malformed step count %q: %v", code, err)
	}
	return int(int32(steps)), nil
}

// Acceleration reads the acceleration used in point-to-point moves, in
// revolutions per second squared.
func (d *STF03D) Acceleration() (float64, error) {
	return d.queryFloat("AC")
}

// SetAcceleration programs the acceleration used in point-to-point
// moves. A standard value is 1 rps/s.
func (d *STF03D) SetAcceleration(rps2 float64) error {
	if rps2 <= 0 {
		return fmt.Errorf("appliedmotion: acceleration %g must be positive", rps2)
	}
	return d.ack(fmt.Sprintf("AC%g", rps2))
}

// Deceleration reads the deceleration used in point-to-point moves, in
// revolutions per second squared.
func (d *STF03D) Deceleration() (float64, error) {
	return d.queryFloat("DE")
}

// SetDeceleration programs the deceleration used in point-to-point
// moves.
func (d *STF03D) SetDeceleration(rps2 float64) error {
	if rps2 <= 0 {
		return fmt.Errorf("appliedmotion: deceleration %g must be positive", rps2)
	}
	return d.ack(fmt.Sprintf("DE%g", rps2))
}

// Speed reads the shaft speed for point-to-point moves, in revolutions
// per second.
func (d *STF03D) Speed() (float64, error) {
	return d.queryFloat("VE")
}

// SetSpeed programs the shaft speed for point-to-point moves. A
// standard value is 2 rps.
func (d *STF03D) SetSpeed(rps float64) error {
	if rps <= 0 {
		return fmt.Errorf("appliedmotion: speed %g must be positive", rps)
	}
	return d.ack(fmt.Sprintf("VE%g", rps))
}

// MoveTarget reads the distance or position the next move command will
// use, in calibrated units.
func (d *STF03D) MoveTarget() (float64, error) {
	steps, err := d.queryInt("DI")
	if err != nil {
		return 0, err
	}
	return d.stepToUnit(steps)
}

// MoveRelative moves the motor by a distance in calibrated units.
func (d *STF03D) MoveRelative(units float64) error {
	return d.move(units, "FL")
}

// MoveAbsolute moves the motor to a position in calibrated units.
func (d *STF03D) MoveAbsolute(units float64) error {
	return d.move(units, "FP")
}

func (d *STF03D) move(units float64, cmd string) error {
	steps, err := d.unitToStep(units)
	if err != nil {
		return err
	}
	if err := d.ack(fmt.Sprintf("DI%d", steps)); err != nil {
		return err
	}
	return d.ack(cmd)
}

// Stop halts the current move and discards anything the drive has
// queued.
func (d *STF03D) Stop() error {
	return d.ack("SK")
}

// ack sends a command and checks the drive's acknowledge character.
func (d *STF03D) ack(cmd string) error {
	resp, err := d.Query(cmd)
	if err != nil {
		return err
	}
	if resp != "%" && resp != "*" {
		return fmt.Errorf("drive rejected %q: %q", cmd, resp)
	}
	return nil
}

// flags reads a 16-bit register and resolves its raised bits in
// ascending order. A zero register resolves to its idle message.
func (d *STF03D) flags(cmd string, names map[uint16]string) ([]string, error) {
	code, err := d.queryHex(cmd)
	if err != nil {
		return nil, err
	}
	if code == 0 {
		return []string{names[0]}, nil
	}
	var raised []string
	for bit := 0; bit < 16; bit++ {
		mask := uint16(1) << bit
		if code&mask != 0 {
			raised = append(raised, names[mask])
		}
	}
	return raised, nil
}

// querySetting reads a register and strips the echoed "CMD=" prefix
// from the response.
func (d *STF03D) querySetting(cmd string) (string, error) {
	resp, err := d.Query(cmd)
	if err != nil {
		return "", err
	}
	prefix := cmd + "="
	if !strings.HasPrefix(resp, prefix) {
		return "", fmt.Errorf("malformed %s response %q", cmd, resp)
	}
	return strings.TrimPrefix(resp, prefix), nil
}

func (d *STF03D) queryFloat(cmd string) (float64, error) {
	setting, err := d.querySetting(cmd)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(setting, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed %s value %q: %v", cmd, setting, err)
	}
	return value, nil
}

func (d *STF03D) queryInt(cmd string) (int, error) {
	setting, err := d.querySetting(cmd)
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(setting)
	if err != nil {
		return 0, fmt.Errorf("malformed %s value %q: %v", cmd, setting, err)
	}
	return value, nil
}

func (d *STF03D) queryHex(cmd string) (uint16, error) {
	setting, err := d.querySetting(cmd)
	if err != nil {
		return 0, err
	}
	code, err := strconv.ParseUint(setting, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("malformed %s code %q: %v", cmd, setting, err)
	}
	return uint16(code), nil
}

// conversionFactor yields the live steps per calibrated unit ratio,
// which depends on the drive's microstep resolution setting.
func (d *STF03D) conversionFactor() (float64, error) {
	resolution, err := d.Microstep()
	if err != nil {
		return 0, err
	}
	steps, ok := stepsPerTurn[resolution]
	if !ok {
		return 0, fmt.Errorf("appliedmotion: unknown microstep resolution %d", resolution)
	}
	return float64(steps) / d.unitsPerTurn, nil
}

func (d *STF03D) stepToUnit(steps int) (float64, error) {
	factor, err := d.conversionFactor()
	if err != nil {
		return 0, err
	}
	return float64(steps) / factor, nil
}

func (d *STF03D) unitToStep(units float64) (int, error) {
	factor, err := d.conversionFactor()
	if err != nil {
		return 0, err
	}
	return int(math.Round(units * factor)), nil
}

func validCurrent(amps float64) error {
	if amps <= 0 || amps > 3 {
		return fmt.Errorf("appliedmotion: current %g A out of range, the drive takes at most 3 A", amps)
	}
	return nil
}
