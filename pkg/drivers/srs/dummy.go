package srs

import (
	"labdevices/pkg/device"
	"labdevices/pkg/registry"
	"labdevices/pkg/sim"
)

// dg645Profile answers like a DG645 with channel A delayed 1 ms from
// T0 and all outputs at 0.5 V. The rules match the parameterized query
// forms for any channel.
var dg645Profile = sim.Profile{
	Responses: map[string]string{
		"*IDN?": "Stanford Research Systems dummy",
		"TSRC?": "1",
	},
	Rules: []sim.Rule{
		{Contains: "DLAY?", Response: "2,+0.001000000000"},
		{Contains: "LAMP?", Response: "+0.5"},
	},
}

// DG645Dummy is a DG645 that answers from canned responses instead of
// a socket.
type DG645Dummy struct {
	DG645
}

// NewDG645Dummy returns a hardware-free DG645.
func NewDG645Dummy(host string, port int) (*DG645Dummy, error) {
	d, err := NewDG645(host, port)
	if err != nil {
		return nil, err
	}
	return &DG645Dummy{DG645: *d}, nil
}

// Initialize wires the driver to the canned profile.
func (d *DG645Dummy) Initialize() error {
	if d.tr != nil {
		return nil
	}
	d.tr = sim.NewTransport(dg645Profile)
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
		Name:   "srs.dg645",
		Vendor: "Stanford Research Systems",
		Model:  "DG645",
		New: func(p registry.Params) (device.Device, error) {
			return NewDG645(p.Address, p.Port)
		},
		NewDummy: func(p registry.Params) (device.Device, error) {
			return NewDG645Dummy(p.Address, p.Port)
		},
		Example: registry.Params{Address: "10.0.0.34", Port: 5025},
	})
}
