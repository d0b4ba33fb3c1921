package granvillephillips

import (
	"labdevices/pkg/device"
	"labdevices/pkg/registry"
	"labdevices/pkg/sim"
)

// gp350Profile mirrors a Series 350 holding a chamber in the
// low 10⁻⁹ range with degassing off.
var gp350Profile = sim.Profile{
	Responses: map[string]string{
		"DS IG":   "4.02E-09",
		"DGS":     "OFF",
		"DG ON":   "OK",
		"DG OFF":  "OK",
		"IG1 ON":  "OK",
		"IG1 OFF": "OK",
		"IG2 ON":  "OK",
		"IG2 OFF": "OK",
	},
}

// GP350Dummy is a GP350 that answers from canned responses instead of
// a serial port.
type GP350Dummy struct {
	GP350
}

// NewGP350Dummy returns a hardware-free GP350.
func NewGP350Dummy(port string) (*GP350Dummy, error) {
	d, err := NewGP350(port)
	if err != nil {
		return nil, err
	}
	return &GP350Dummy{GP350: *d}, nil
}

// Initialize wires the driver to the canned profile.
func (d *GP350Dummy) Initialize() error {
	if d.tr != nil {
		return nil
	}
	d.tr = sim.NewTransport(gp350Profile)
	d.logger.Infof("Connected to %s", gp350Model)
	return nil
}

func init() {
	registry.MustRegister(registry.Definition{
		Name:   "granvillephillips.gp350",
		Vendor: "Granville-Phillips",
		Model:  "Series 350",
		New: func(p registry.Params) (device.Device, error) {
			return NewGP350(p.Address)
		},
		NewDummy: func(p registry.Params) (device.Device, error) {
			return NewGP350Dummy(p.Address)
		},
		Example: registry.Params{Address: "/dev/ttyUSB0"},
	})
}
