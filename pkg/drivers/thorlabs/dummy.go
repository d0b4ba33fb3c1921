package thorlabs

import (
	"labdevices/pkg/device"
	"labdevices/pkg/registry"
	"labdevices/pkg/sim"
)

// tsp01Profile mirrors a TSP01 logging a lab at room temperature with
// both external probes plugged in.
var tsp01Profile = sim.Profile{
	Responses: map[string]string{
		"*IDN?":                     "Thorlabs,TSP01,M00416749,1.2.0",
		":READ?":                    "23.973883",
		":SENSe2:HUMidity:DATA?":    "25.24333",
		":SENSe3:TEMPerature:DATA?": "21.78577",
		":SENSe4:TEMPerature:DATA?": "21.43771",
	},
}

// TSP01Dummy is a TSP01 that answers from canned responses instead of
// a serial port.
type TSP01Dummy struct {
	TSP01
}

// NewTSP01Dummy returns a hardware-free TSP01.
func NewTSP01Dummy(port string) (*TSP01Dummy, error) {
	d, err := NewTSP01(port)
	if err != nil {
		return nil, err
	}
	return &TSP01Dummy{TSP01: *d}, nil
}

// Initialize wires the driver to the canned profile.
func (d *TSP01Dummy) Initialize() error {
	if d.tr != nil {
		return nil
	}
	d.tr = sim.NewTransport(tsp01Profile)
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
		Name:   "thorlabs.tsp01",
		Vendor: "Thorlabs",
		Model:  "TSP01",
		New: func(p registry.Params) (device.Device, error) {
			return NewTSP01(p.Address)
		},
		NewDummy: func(p registry.Params) (device.Device, error) {
			return NewTSP01Dummy(p.Address)
		},
		Example: registry.Params{Address: "/dev/ttyUSB0"},
	})
}
