package rohdeschwarz

import (
	"labdevices/pkg/device"
	"labdevices/pkg/registry"
	"labdevices/pkg/sim"
)

// dummyScreenshot carries the PNG signature so callers can recognize
// the image format.
const dummyScreenshot = "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"

// dummySpectrum is a level trace with a single peak, in dBm.
const dummySpectrum = "-85.43,-84.91,-83.20,-79.83,-65.10,-52.47," +
	"-64.98,-79.55,-83.07,-84.88,-85.39"

// dummyWaveform is one period of a stepped triangle, in volts.
const dummyWaveform = "0.000,0.125,0.250,0.375,0.500,0.375," +
	"0.250,0.125,0.000,-0.125,-0.250,-0.125"

var fpc1000Profile = sim.Profile{
	Responses: map[string]string{
		"*IDN?":              "Rohde&Schwarz dummy",
		"SYST:ERR:ALL?":      "0,'No error'",
		"FREQ:STAR?":         "181000000.000000",
		"FREQ:STOP?":         "281000000.000000",
		"FREQ:CENT?":         "231000000.000000",
		"FREQ:SPAN?":         "100000000.000000",
		"TRACe:DATA? TRACE1": dummySpectrum,
	},
}

var rtb2000Profile = sim.Profile{
	Responses: map[string]string{
		"*IDN?":               "Rohde&Schwarz dummy",
		"MEASurement:RESult?": "0.1",
		"HCOPy:DATA?":         dummyScreenshot,
	},
	Rules: []sim.Rule{
		{Contains: "FORMat ASC; CHANnel", Response: dummyWaveform},
		{Contains: ":DATA:HEADer?", Response: "-3.00000E-08, 2.99500E-08, 1200, 1"},
	},
}

// FPC1000Dummy is an FPC1000 that answers from canned responses
// instead of a socket.
type FPC1000Dummy struct {
	FPC1000
}

// NewFPC1000Dummy returns a hardware-free FPC1000.
func NewFPC1000Dummy(host string, port int) (*FPC1000Dummy, error) {
	d, err := NewFPC1000(host, port)
	if err != nil {
		return nil, err
	}
	return &FPC1000Dummy{FPC1000: *d}, nil
}

// Initialize wires the driver to the canned profile.
func (d *FPC1000Dummy) Initialize() error {
	if d.tr != nil {
		return nil
	}
	d.tr = sim.NewTransport(fpc1000Profile)
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
	d.tr = sim.NewTransport(rtb2000Profile)
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
		Name:   "rohdeschwarz.fpc1000",
		Vendor: "Rohde & Schwarz",
		Model:  "FPC1000",
		New: func(p registry.Params) (device.Device, error) {
			return NewFPC1000(p.Address, p.Port)
		},
		NewDummy: func(p registry.Params) (device.Device, error) {
			return NewFPC1000Dummy(p.Address, p.Port)
		},
		Example: registry.Params{Address: "10.0.0.91", Port: 5555},
	})
	registry.MustRegister(registry.Definition{
		Name:   "rohdeschwarz.rtb2000",
		Vendor: "Rohde & Schwarz",
		Model:  "RTB2000",
		New: func(p registry.Params) (device.Device, error) {
			return NewOscilloscope(p.Address, p.Port)
		},
		NewDummy: func(p registry.Params) (device.Device, error) {
			return NewOscilloscopeDummy(p.Address, p.Port)
		},
		Example: registry.Params{Address: "10.0.0.81", Port: 5025},
	})
}
