package kuhneelectronic

import (
	"labdevices/pkg/device"
	"labdevices/pkg/registry"
	"labdevices/pkg/sim"
)

// loProfile acknowledges every digit command with "A", the way the
// oscillator does on the wire.
var loProfile = sim.Profile{
	Responses: map[string]string{
		"sa": "???",
	},
	Rules: []sim.Rule{
		{Contains: "GF1", Response: "A"},
		{Contains: "MF1", Response: "A"},
		{Contains: "kF1", Response: "A"},
		{Contains: "HF1", Response: "A"},
	},
}

// LocalOscillatorDummy is a LocalOscillator that answers from canned
// responses instead of a serial port.
type LocalOscillatorDummy struct {
	LocalOscillator
}

// NewLocalOscillatorDummy returns a hardware-free LocalOscillator.
func NewLocalOscillatorDummy(port string) (*LocalOscillatorDummy, error) {
	d, err := NewLocalOscillator(port)
	if err != nil {
		return nil, err
	}
	return &LocalOscillatorDummy{LocalOscillator: *d}, nil
}

// Initialize wires the driver to the canned profile.
func (d *LocalOscillatorDummy) Initialize() error {
	if d.tr != nil {
		return nil
	}
	d.tr = sim.NewTransport(loProfile)
	d.logger.Infof("Connected to %s", loModel)
	return nil
}

func init() {
	registry.MustRegister(registry.Definition{
		Name:   "kuhneelectronic.mkulo",
		Vendor: "Kuhne Electronic",
		Model:  "MKU LO 8-13 PLL",
		New: func(p registry.Params) (device.Device, error) {
			return NewLocalOscillator(p.Address)
		},
		NewDummy: func(p registry.Params) (device.Device, error) {
			return NewLocalOscillatorDummy(p.Address)
		},
		Example: registry.Params{Address: "/dev/ttyUSB0"},
	})
}
