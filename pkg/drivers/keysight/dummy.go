package keysight

import (
	"labdevices/pkg/device"
	"labdevices/pkg/registry"
	"labdevices/pkg/sim"
)

// dummyScreenshot carries the PNG signature so callers can recognize
// the image format.
const dummyScreenshot = "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"

// dummyTrace is a raw BYTE-format waveform ramping around the 128
// midcode.
const dummyTrace = "\x78\x80\x88\x90\x98\xa0\x98\x90\x88\x80"

// dummyPreamble scales dummyTrace: BYTE format, 15.5 us per sample
// starting half a second early, 160.804 uV per count around midcode.
const dummyPreamble = "+0,+0,+64516,+1,+1.55000309E-005,-5.00000000E-001," +
	"+0,+1.60804000E-004,+0.0E+000,+128"

var counterProfile = sim.Profile{
	Responses: map[string]string{
		"*IDN?":                "Keysight dummy",
		"FREQuency:GATE:TIME?": "0.1",
		"TRIGger:SOURce?":      "IMM",
		"FETCH?":               "300000.314776433",
	},
	Rules: []sim.Rule{
		{Contains: "MEASure:FREQuency?", Response: "10"},
	},
}

var oscilloscopeProfile = sim.Profile{
	Responses: map[string]string{
		"*IDN?":                     "Keysight dummy",
		":MEASure:VAVerage?":        "0.1",
		":MEASure:VMAX?":            "0.1",
		":MEASure:VPP?":             "0.1",
		":WAVeform:PREamble?":       dummyPreamble,
		":DISPlay:DATA? PNG, COLor": dummyScreenshot,
		":WAVeform:DATA?":           dummyTrace,
	},
}

// CounterDummy is a Counter that answers from canned responses instead
// of a socket.
type CounterDummy struct {
	Counter
}

// NewCounterDummy returns a hardware-free Counter.
func NewCounterDummy(host string, port int) (*CounterDummy, error) {
	d, err := NewCounter(host, port)
	if err != nil {
		return nil, err
	}
	return &CounterDummy{Counter: *d}, nil
}

// Initialize wires the driver to the canned profile.
func (d *CounterDummy) Initialize() error {
	if d.tr != nil {
		return nil
	}
	d.tr = sim.NewTransport(counterProfile)
	idn, err := d.IDN()
	if err != nil {
		d.tr = nil
		return err
	}
	d.logger.Infof("Connected to %s", idn)
	return nil
}

// OscilloscopeDummy is an Oscilloscope that answers from canned
// responses instead of a socket.
type OscilloscopeDummy struct {
	Oscilloscope
}

// NewOscilloscopeDummy returns a hardware-free Oscilloscope.
func NewOscilloscopeDummy(host string, port int) (*OscilloscopeDummy, error) {
	d, err := NewOscilloscope(host, port)
	if err != nil {
		return nil, err
	}
	return &OscilloscopeDummy{Oscilloscope: *d}, nil
}

// Initialize wires the driver to the canned profile.
func (d *OscilloscopeDummy) Initialize() error {
	if d.tr != nil {
		return nil
	}
	d.tr = sim.NewTransport(oscilloscopeProfile)
	idn, err := d.IDN()
	if err != nil {
		d.tr = nil
		return err
	}
	d.logger.Infof("Connected to %s", idn)
	return nil
}

func init() {
	registry.MustRegister(registry.Definition{
		Name:   "keysight.counter",
		Vendor: "Keysight",
		Model:  "53220A",
		New: func(p registry.Params) (device.Device, error) {
			return NewCounter(p.Address, p.Port)
		},
		NewDummy: func(p registry.Params) (device.Device, error) {
			return NewCounterDummy(p.Address, p.Port)
		},
		Example: registry.Params{Address: "10.0.0.120", Port: 5025},
	})
	registry.MustRegister(registry.Definition{
		Name:   "keysight.oscilloscope",
		Vendor: "Keysight",
		Model:  "InfiniiVision 3000T X-Series",
		New: func(p registry.Params) (device.Device, error) {
			return NewOscilloscope(p.Address, p.Port)
		},
		NewDummy: func(p registry.Params) (device.Device, error) {
			return NewOscilloscopeDummy(p.Address, p.Port)
		},
		Example: registry.Params{Address: "10.0.0.84", Port: 5025},
	})
}
