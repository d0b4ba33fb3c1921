package granvillephillips

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labdevices/pkg/device"
	"labdevices/pkg/sim"
)

func newConnectedDummy(t *testing.T) *GP350Dummy {
	t.Helper()
	d, err := NewGP350Dummy("/dev/ttyUSB0")
	require.NoError(t, err)
	require.NoError(t, d.Initialize())
	t.Cleanup(func() { assert.NoError(t, d.Close()) })
	return d
}

func TestNewGP350RequiresPort(t *testing.T) {
	_, err := NewGP350("")
	assert.Error(t, err)
}

func TestGP350NotConnected(t *testing.T) {
	d, err := NewGP350("/dev/ttyUSB0")
	require.NoError(t, err)

	_, err = d.Pressure()
	assert.ErrorIs(t, err, device.ErrNotConnected)
	assert.ErrorIs(t, d.Write("DG ON"), device.ErrNotConnected)
}

func TestGP350Identity(t *testing.T) {
	d := newConnectedDummy(t)

	idn, err := d.IDN()
	require.NoError(t, err)
	assert.Equal(t, "Granville-Phillips Series 350 UHV Gauge Controller", idn)
}

func TestGP350Pressure(t *testing.T) {
	d := newConnectedDummy(t)

	pressure, err := d.Pressure()
	require.NoError(t, err)
	assert.Equal(t, 4.02e-09, pressure)
}

func TestGP350Degas(t *testing.T) {
	d := newConnectedDummy(t)

	status, err := d.DegasStatus()
	require.NoError(t, err)
	assert.Equal(t, "OFF", status)

	assert.NoError(t, d.SetDegas(true))
	assert.NoError(t, d.SetDegas(false))
}

func TestGP350Filament(t *testing.T) {
	d := newConnectedDummy(t)

	require.NoError(t, d.SetFilament(1, true))
	require.NoError(t, d.SetFilament(2, false))

	assert.Error(t, d.SetFilament(3, true))

	tr := d.tr.(*sim.Transport)
	assert.Equal(t, []string{"IG1 ON", "IG2 OFF"}, tr.Journal())
}

func TestGP350RejectedCommand(t *testing.T) {
	d, err := NewGP350("/dev/ttyUSB0")
	require.NoError(t, err)
	d.tr = sim.NewTransport(sim.Profile{
		Responses: map[string]string{"IG1 ON": "INVALID"},
	})

	assert.ErrorContains(t, d.SetFilament(1, true), "INVALID")
}

func TestGP350ContractCheck(t *testing.T) {
	d, err := NewGP350Dummy("/dev/ttyUSB0")
	require.NoError(t, err)

	result := device.VerifyInstance(d)
	assert.Empty(t, result.Violations)
	assert.Empty(t, result.Skipped)
	// Probing SetFilament with the placeholder filament number trips
	// its argument validation, which the check tolerates.
	assert.Contains(t, result.Tolerated, "SetFilament")
}
