package ando

import (
	"labdevices/pkg/device"
	"labdevices/pkg/registry"
	"labdevices/pkg/sim"
)

// spectrumAnalyzerProfile mirrors an analyzer that swept a pulsed
// source around 410 nm: 501 trace points, analysis done, sweep
// finished. Trace chunks answer the same twenty points for any
// requested range.
var spectrumAnalyzerProfile = sim.Profile{
	Responses: map[string]string{
		"*IDN?":  "ANDO dummy",
		"SWEEP?": "0",
		"SMPL?":  " 501",
		"ANA?":   " 490.808,  94.958, 19",
		"CTRWL?": "1050.00",
		"SPAN?":  "1300.0",
		"CWPLS?": "1",
		"PLMOD?": "   38",
	},
	Rules: []sim.Rule{
		{Contains: "LDATA", Response: "  20,-210.00,-210.00,-210.00,-210.00,-75.28,-210.00,-210.00,-210.00," +
			"-210.00,-210.00,-210.00,-210.00,-210.00,-210.00,-210.00, -78.57, -70.96," +
			" -75.37,-210.00,-210.00"},
		{Contains: "WDATA", Response: "  20, 400.000, 401.300, 402.600, 403.900, 405.200, 406.500, 407.800," +
			" 409.100, 410.400, 411.700, 413.000, 414.300, 415.600, 416.900, 418.200," +
			" 419.500, 420.800, 422.100, 423.400, 424.700"},
	},
}

// SpectrumAnalyzerDummy is a SpectrumAnalyzer that answers from canned
// responses instead of a GPIB adapter.
type SpectrumAnalyzerDummy struct {
	SpectrumAnalyzer
}

// NewSpectrumAnalyzerDummy returns a hardware-free SpectrumAnalyzer.
func NewSpectrumAnalyzerDummy(host string, gpib int) (*SpectrumAnalyzerDummy, error) {
	d, err := NewSpectrumAnalyzer(host, gpib)
	if err != nil {
		return nil, err
	}
	return &SpectrumAnalyzerDummy{SpectrumAnalyzer: *d}, nil
}

// Initialize wires the driver to the canned profile.
func (d *SpectrumAnalyzerDummy) Initialize() error {
	if d.tr != nil {
		return nil
	}
	d.tr = sim.NewTransport(spectrumAnalyzerProfile)
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
		Name:   "ando.spectrumanalyzer",
		Vendor: "ANDO",
		Model:  "Spectrum Analyzer",
		New: func(p registry.Params) (device.Device, error) {
			return NewSpectrumAnalyzer(p.Address, p.Port)
		},
		NewDummy: func(p registry.Params) (device.Device, error) {
			return NewSpectrumAnalyzerDummy(p.Address, p.Port)
		},
		Example: registry.Params{Address: "10.0.0.40", Port: 1},
	})
}
