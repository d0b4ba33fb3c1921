package appliedmotion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labdevices/pkg/device"
	"labdevices/pkg/sim"
)

func newConnectedDummy(t *testing.T) *STF03DDummy {
	t.Helper()
	d, err := NewSTF03DDummy("10.0.0.103", 7775)
	require.NoError(t, err)
	require.NoError(t, d.Initialize())
	t.Cleanup(func() { assert.NoError(t, d.Close()) })
	return d
}

func TestNewSTF03DValidation(t *testing.T) {
	_, err := NewSTF03D("10.0.0.103", 7775)
	assert.NoError(t, err)

	_, err = NewSTF03D("", 7775)
	assert.Error(t, err)

	_, err = NewSTF03D("10.0.0.103", 0)
	assert.Error(t, err)
}

func TestSTF03DNotConnected(t *testing.T) {
	d, err := NewSTF03D("10.0.0.103", 7775)
	require.NoError(t, err)

	_, err = d.Position()
	assert.ErrorIs(t, err, device.ErrNotConnected)
	assert.ErrorIs(t, d.MoveRelative(90), device.ErrNotConnected)
}

func TestSTF03DIdentity(t *testing.T) {
	d := newConnectedDummy(t)

	idn, err := d.IDN()
	require.NoError(t, err)
	assert.Equal(t, "100H179M", idn)
}

func TestSTF03DAlarms(t *testing.T) {
	d := newConnectedDummy(t)

	alarms, err := d.Alarms()
	require.NoError(t, err)
	assert.Equal(t, []string{"Open Motor Winding"}, alarms)
}

func TestSTF03DStatus(t *testing.T) {
	d := newConnectedDummy(t)

	status, err := d.Status()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Drive Fault (check Alarm Code)",
		"In Position (motor is in position)",
		"Alarm present (check Alarm Code)",
	}, status)

	moving, err := d.IsMoving()
	require.NoError(t, err)
	assert.False(t, moving)
}

func TestSTF03DSettings(t *testing.T) {
	d := newConnectedDummy(t)

	tests := []struct {
		name     string
		read     func() (float64, error)
		expected float64
	}{
		{"max current", d.MaxCurrent, 1},
		{"idle current", d.IdleCurrent, 0.6},
		{"change current", d.ChangeCurrent, 1},
		{"acceleration", d.Acceleration, 25},
		{"deceleration", d.Deceleration, 25},
		{"speed", d.Speed, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			value, err := tc.read()
			require.NoError(t, err)
			assert.Equal(t, tc.expected, value)
		})
	}

	resolution, err := d.Microstep()
	require.NoError(t, err)
	assert.Equal(t, 8, resolution)
}

func TestSTF03DPositionReadings(t *testing.T) {
	d := newConnectedDummy(t)

	position, err := d.Position()
	require.NoError(t, err)
	assert.Equal(t, 0.0, position)

	steps, err := d.ImmediateStep()
	require.NoError(t, err)
	assert.Equal(t, 0, steps)

	// With the default calibration one motor turn is one unit, and the
	// canned DI register holds exactly one turn at resolution 8.
	target, err := d.MoveTarget()
	require.NoError(t, err)
	assert.Equal(t, 1.0, target)

	require.NoError(t, d.SetCalibration(360.0/96))
	target, err = d.MoveTarget()
	require.NoError(t, err)
	assert.Equal(t, 3.75, target)
}

func TestSTF03DMoveCommands(t *testing.T) {
	d := newConnectedDummy(t)
	require.NoError(t, d.SetCalibration(360.0/96))

	require.NoError(t, d.MoveRelative(90))
	assert.Equal(t, []string{
		"\x00\x07MV\r",
		"\x00\x07MR\r",
		"\x00\x07DI480000\r",
		"\x00\x07FL\r",
	}, d.tr.(*sim.Transport).Journal())

	require.NoError(t, d.MoveAbsolute(-7.5))
	journal := d.tr.(*sim.Transport).Journal()
	assert.Contains(t, journal, "\x00\x07DI-40000\r")
	assert.Contains(t, journal, "\x00\x07FP\r")

	require.NoError(t, d.Stop())
	assert.Contains(t, d.tr.(*sim.Transport).Journal(), "\x00\x07SK\r")
}

func TestSTF03DRejectedCommand(t *testing.T) {
	d := newConnectedDummy(t)
	d.tr = sim.NewTransport(sim.Profile{
		Responses: map[string]string{
			"\x00\x07MR\r": "\x00\x07MR=8\r",
		},
		Rules: []sim.Rule{
			{Contains: "FL", Response: "\x00\x07?\r"},
			{Contains: frameHeader, Response: "\x00\x07%\r"},
		},
	})

	err := d.MoveRelative(1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
}

func TestSTF03DValidationErrors(t *testing.T) {
	d := newConnectedDummy(t)

	assert.Error(t, d.SetCalibration(0))
	assert.Error(t, d.SetCalibration(-3.75))
	assert.Error(t, d.SetMicrostep(2))
	assert.Error(t, d.SetMicrostep(16))
	assert.NoError(t, d.SetMicrostep(3))
	assert.Error(t, d.SetMaxCurrent(0))
	assert.Error(t, d.SetMaxCurrent(3.5))
	assert.NoError(t, d.SetMaxCurrent(3))
	assert.Error(t, d.SetSpeed(-1))
	assert.NoError(t, d.ResetPosition())
}

func TestSTF03DContractCheck(t *testing.T) {
	d, err := NewSTF03DDummy("10.0.0.103", 7775)
	require.NoError(t, err)

	result := device.VerifyInstance(d)
	assert.Empty(t, result.Violations)
	assert.Empty(t, result.Skipped)
	// The placeholder value is not an assignable microstep resolution,
	// which the check tolerates.
	assert.Contains(t, result.Tolerated, "SetMicrostep")
}
