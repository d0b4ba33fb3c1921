package newport

import (
	"labdevices/pkg/device"
	"labdevices/pkg/registry"
	"labdevices/pkg/sim"
)

// smc100Profile mirrors an SMC100 with one TRA25CC actuator attached,
// idle at the home position. Responses carry the controller-number and
// command echo exactly as the wire does.
var smc100Profile = sim.Profile{
	Responses: map[string]string{
		"1ID?": "1IDTRA25CC_PN:B183906_UD:18114",
		"1TS":  "1TS01000A",
		"1TE":  "1TE@",
		"1PA?": "1PA0",
		"1VA?": "1VA0.4",
		"1AC?": "1AC1.6",
	},
}

// SMC100Dummy is an SMC100 that answers from canned responses instead
// of a serial port.
type SMC100Dummy struct {
	SMC100
}

// NewSMC100Dummy returns a hardware-free SMC100.
func NewSMC100Dummy(port string, controller int) (*SMC100Dummy, error) {
	d, err := NewSMC100(port, controller)
	if err != nil {
		return nil, err
	}
	return &SMC100Dummy{SMC100: *d}, nil
}

// Initialize wires the driver to the canned profile.
func (d *SMC100Dummy) Initialize() error {
	if d.tr != nil {
		return nil
	}
	d.tr = sim.NewTransport(smc100Profile)
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
		Name:   "newport.smc100",
		Vendor: "Newport",
		Model:  "SMC100",
		New: func(p registry.Params) (device.Device, error) {
			return NewSMC100(p.Address, p.Controller)
		},
		NewDummy: func(p registry.Params) (device.Device, error) {
			return NewSMC100Dummy(p.Address, p.Controller)
		},
		Example: registry.Params{Address: "/dev/ttyUSB0", Controller: 1},
	})
}
