package keysight

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labdevices/pkg/device"
	"labdevices/pkg/sim"
)

func newConnectedScope(t *testing.T) *OscilloscopeDummy {
	t.Helper()
	d, err := NewOscilloscopeDummy("1.1.1.1", 5025)
	require.NoError(t, err)
	require.NoError(t, d.Initialize())
	t.Cleanup(func() { assert.NoError(t, d.Close()) })
	return d
}

func TestNewOscilloscopeValidation(t *testing.T) {
	_, err := NewOscilloscope("10.0.0.84", 5025)
	assert.NoError(t, err)

	_, err = NewOscilloscope("", 5025)
	assert.Error(t, err)

	_, err = NewOscilloscope("10.0.0.84", -1)
	assert.Error(t, err)
}

func TestOscilloscopeNotConnected(t *testing.T) {
	d, err := NewOscilloscope("10.0.0.84", 5025)
	require.NoError(t, err)

	_, err = d.VoltAverage(1)
	assert.ErrorIs(t, err, device.ErrNotConnected)
	_, err = d.Screenshot()
	assert.ErrorIs(t, err, device.ErrNotConnected)
}

func TestOscilloscopeMeasurements(t *testing.T) {
	d := newConnectedScope(t)

	tests := []struct {
		name string
		read func(int) (float64, error)
	}{
		{"average", d.VoltAverage},
		{"max", d.VoltMax},
		{"peak to peak", d.VoltPeakPeak},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			value, err := tc.read(1)
			require.NoError(t, err)
			assert.Equal(t, 0.1, value)
		})
	}

	assert.Contains(t, d.tr.(*sim.Transport).Journal(), ":MEASure:SOURce CHANnel1")
}

func TestOscilloscopeChannelValidation(t *testing.T) {
	d := newConnectedScope(t)

	_, err := d.VoltAverage(0)
	assert.Error(t, err)
	_, err = d.VoltMax(5)
	assert.Error(t, err)
	_, _, err = d.Trace(0)
	assert.Error(t, err)
	_, err = d.Preamble(5)
	assert.Error(t, err)
}

func TestOscilloscopePreamble(t *testing.T) {
	d := newConnectedScope(t)

	pre, err := d.Preamble(1)
	require.NoError(t, err)
	assert.Equal(t, Preamble{
		Format:     0,
		Type:       0,
		Points:     64516,
		Count:      1,
		XIncrement: 1.55000309e-05,
		XOrigin:    -0.5,
		XReference: 0,
		YIncrement: 1.60804e-04,
		YOrigin:    0,
		YReference: 128,
	}, pre)
}

func TestOscilloscopeTrace(t *testing.T) {
	d := newConnectedScope(t)

	times, volts, err := d.Trace(1)
	require.NoError(t, err)
	require.Len(t, times, 10)
	require.Len(t, volts, 10)

	// Samples at the 128 midcode read zero volts.
	assert.Equal(t, 0.0, volts[1])
	assert.InDelta(t, -0.001286432, volts[0], 1e-12)
	assert.InDelta(t, 0.005145728, volts[5], 1e-12)
	assert.Equal(t, -0.5, times[0])
	assert.InDelta(t, 1.55000309e-05, times[1]-times[0], 1e-12)

	assert.Equal(t, []string{
		"*IDN?",
		":ACQuire:TYPE NORMal",
		":WAVeform:SOURce CHANnel1",
		":WAVeform:POINts:MODE NORMal",
		":WAVeform:FORMat BYTE",
		":WAVeform:PREamble?",
		":WAVeform:DATA?",
	}, d.tr.(*sim.Transport).Journal())
}

func TestOscilloscopeScreenshot(t *testing.T) {
	d := newConnectedScope(t)

	img, err := d.Screenshot()
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, []byte("\x89PNG")))

	assert.Equal(t, []string{
		"*IDN?",
		":HARDcopy:INKSaver OFF",
		":DISPlay:DATA? PNG, COLor",
	}, d.tr.(*sim.Transport).Journal())
}

func TestOscilloscopeContractCheck(t *testing.T) {
	d, err := NewOscilloscopeDummy("1.1.1.1", 5025)
	require.NoError(t, err)

	result := device.VerifyInstance(d)
	assert.Empty(t, result.Violations)
	assert.Empty(t, result.Skipped)
	// The placeholder channel is out of range for the per-channel
	// readers, which the check tolerates.
	assert.Contains(t, result.Tolerated, "VoltAverage")
	assert.Contains(t, result.Tolerated, "Trace")
	assert.Contains(t, result.Tolerated, "Preamble")
}
