package rohdeschwarz

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
	tests := []struct {
		name        string
		host        string
		port        int
		expectError bool
	}{
		{
			name: "ip address",
			host: "10.0.0.81",
			port: 5025,
		},
		{
			name:        "hostname",
			host:        "scope.local",
			port:        5025,
			expectError: true,
		},
		{
			name:        "visa usb resource",
			host:        "USB0::0x0AAD::0x01D6::INSTR",
			port:        5025,
			expectError: true,
		},
		{
			name:        "bad port",
			host:        "10.0.0.81",
			port:        -5,
			expectError: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewOscilloscope(tc.host, tc.port)
			if tc.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOscilloscopeNotConnected(t *testing.T) {
	d, err := NewOscilloscope("10.0.0.81", 5025)
	require.NoError(t, err)

	_, err = d.VoltAverage(1)
	assert.ErrorIs(t, err, device.ErrNotConnected)
	_, err = d.Screenshot()
	assert.ErrorIs(t, err, device.ErrNotConnected)
}

func TestOscilloscopeMeasurements(t *testing.T) {
	d := newConnectedScope(t)

	tests := []struct {
		name    string
		read    func(int) (float64, error)
		install string
	}{
		{
			name:    "average",
			read:    d.VoltAverage,
			install: "MEASurement:SOURce CH1; MEASurement:MAIN MEAN",
		},
		{
			name:    "max",
			read:    d.VoltMax,
			install: "MEASurement:SOURce CH1; MEASurement:MAIN UPEakvalue",
		},
		{
			name:    "peak to peak",
			read:    d.VoltPeakPeak,
			install: "MEASurement:SOURce CH1; MEASurement:MAIN PEAK",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			value, err := tc.read(1)
			require.NoError(t, err)
			assert.Equal(t, 0.1, value)
			assert.Contains(t, d.tr.(*sim.Transport).Journal(), tc.install)
		})
	}
}

func TestOscilloscopePreamble(t *testing.T) {
	d := newConnectedScope(t)

	pre, err := d.Preamble(1)
	require.NoError(t, err)
	assert.Equal(t, Preamble{
		XStart:          -3e-08,
		XStop:           2.995e-08,
		Points:          1200,
		ValuesPerSample: 1,
	}, pre)
}

func TestOscilloscopeTrace(t *testing.T) {
	d := newConnectedScope(t)

	times, volts, err := d.Trace(1)
	require.NoError(t, err)
	require.Len(t, times, 12)
	require.Len(t, volts, 12)

	assert.Equal(t, 0.5, volts[4])
	assert.Equal(t, -3e-08, times[0])
	assert.InDelta(t, 2.995e-08, times[11], 1e-15)

	assert.Equal(t, []string{
		"*IDN?",
		"CHANnel1:SINGle",
		"FORMat ASC; CHANnel1:DATA?",
		"CHANnel1:DATA:HEADer?",
	}, d.tr.(*sim.Transport).Journal())
}

func TestOscilloscopeChannelValidation(t *testing.T) {
	d := newConnectedScope(t)

	_, err := d.VoltAverage(0)
	assert.Error(t, err)
	_, _, err = d.Trace(5)
	assert.Error(t, err)
	_, err = d.Preamble(99)
	assert.Error(t, err)
}

func TestOscilloscopeScreenshot(t *testing.T) {
	d := newConnectedScope(t)

	img, err := d.Screenshot()
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, []byte("\x89PNG")))

	assert.Equal(t, []string{
		"*IDN?",
		"HCOPy:LANG PNG",
		"HCOPy:DATA?",
	}, d.tr.(*sim.Transport).Journal())
}

func TestOscilloscopeSetTimeScale(t *testing.T) {
	d := newConnectedScope(t)

	require.NoError(t, d.SetTimeScale(1e-9))
	assert.Contains(t, d.tr.(*sim.Transport).Journal(), ":TIMebase:SCALe 1E-09")

	assert.Error(t, d.SetTimeScale(0))
	assert.Error(t, d.SetTimeScale(-1e-3))
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
