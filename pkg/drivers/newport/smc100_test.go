package newport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labdevices/pkg/device"
	"labdevices/pkg/sim"
)

func newConnectedDummy(t *testing.T) *SMC100Dummy {
	t.Helper()
	d, err := NewSMC100Dummy("/dev/ttyUSB0", 1)
	require.NoError(t, err)
	require.NoError(t, d.Initialize())
	t.Cleanup(func() { assert.NoError(t, d.Close()) })
	return d
}

func journal(t *testing.T, d *SMC100Dummy) []string {
	t.Helper()
	tr, ok := d.tr.(*sim.Transport)
	require.True(t, ok)
	return tr.Journal()
}

func TestNewSMC100Validation(t *testing.T) {
	tests := []struct {
		name        string
		port        string
		controller  int
		expectError bool
	}{
		{"valid", "/dev/ttyUSB0", 1, false},
		{"empty port", "", 1, true},
		{"controller too low", "/dev/ttyUSB0", 0, true},
		{"controller too high", "/dev/ttyUSB0", 32, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSMC100(tc.port, tc.controller)
			if tc.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSMC100NotConnected(t *testing.T) {
	d, err := NewSMC100("/dev/ttyUSB0", 1)
	require.NoError(t, err)

	_, err = d.IDN()
	assert.ErrorIs(t, err, device.ErrNotConnected)
	assert.ErrorIs(t, d.Write("OR"), device.ErrNotConnected)
}

func TestSMC100Identity(t *testing.T) {
	d := newConnectedDummy(t)

	idn, err := d.IDN()
	require.NoError(t, err)
	assert.Equal(t, "TRA25CC_PN:B183906_UD:18114", idn)
}

func TestSMC100Status(t *testing.T) {
	d := newConnectedDummy(t)

	errs, state, err := d.ErrorAndControllerStatus()
	require.NoError(t, err)
	assert.Equal(t, "0100", errs)
	assert.Equal(t, "0A", state)

	moving, err := d.IsMoving()
	require.NoError(t, err)
	assert.False(t, moving)

	msg, err := d.LastCommandError()
	require.NoError(t, err)
	assert.Equal(t, "No error", msg)
}

func TestSMC100MotionReadbacks(t *testing.T) {
	d := newConnectedDummy(t)

	pos, err := d.Position()
	require.NoError(t, err)
	assert.Equal(t, 0.0, pos)

	speed, err := d.Speed()
	require.NoError(t, err)
	assert.Equal(t, 0.4, speed)

	accel, err := d.Acceleration()
	require.NoError(t, err)
	assert.Equal(t, 1.6, accel)
}

func TestSMC100CommandFormat(t *testing.T) {
	d := newConnectedDummy(t)

	require.NoError(t, d.MoveAbs(10.5))
	require.NoError(t, d.MoveRel(-0.25))
	require.NoError(t, d.SetSpeed(0.4))
	require.NoError(t, d.SetAcceleration(1.6))
	require.NoError(t, d.Home())
	require.NoError(t, d.Reset())

	// Initialize already queried the identity.
	assert.Equal(t, []string{
		"1ID?", "1PA10.5", "1PR-0.25", "1VA0.4", "1AC1.6", "1OR", "1RS",
	}, journal(t, d))
}

func TestSMC100WaitMoveFinish(t *testing.T) {
	d := newConnectedDummy(t)
	assert.NoError(t, d.WaitMoveFinish(time.Millisecond))
}

func TestSMC100ContractCheck(t *testing.T) {
	d, err := NewSMC100Dummy("/dev/ttyUSB0", 1)
	require.NoError(t, err)

	result := device.VerifyInstance(d)
	assert.Empty(t, result.Violations)
	assert.Empty(t, result.Skipped)
	assert.Empty(t, result.Tolerated)
}
