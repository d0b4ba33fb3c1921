package pfeiffer

import (
	"labdevices/pkg/device"
	"labdevices/pkg/registry"
	"labdevices/pkg/sim"
)

// tpg362Profile mirrors a TPG 362 with no sensors attached, reporting
// in hPascal. The profile handshakes like the wire does: commands are
// acknowledged with ACK and the data waits for ENQ.
var tpg362Profile = sim.Profile{
	Responses: map[string]string{
		"AYT": "TPG362,PTG28290,44998061,010300,010100",
		"ERR": "0000",
		"PR1": "5,+0.0000E+00",
		"PR2": "5,+0.0000E+00",
		"PRX": "5,+0.0000E+00,5,+0.0000E+00",
		"UNI": "4",
		"TMP": "23",
	},
	Ack: ack,
	Enq: enq,
}

// TPG362Dummy is a TPG362 that answers from canned responses instead
// of a serial port.
type TPG362Dummy struct {
	TPG362
}

// NewTPG362Dummy returns a hardware-free TPG362.
func NewTPG362Dummy(port string) (*TPG362Dummy, error) {
	d, err := NewTPG362(port)
	if err != nil {
		return nil, err
	}
	return &TPG362Dummy{TPG362: *d}, nil
}

// Initialize wires the driver to the canned profile.
func (d *TPG362Dummy) Initialize() error {
	if d.tr != nil {
		return nil
	}
	d.tr = sim.NewTransport(tpg362Profile)
	d.logger.Info("Connected to simulated gauge controller")
	return nil
}

func init() {
	registry.MustRegister(registry.Definition{
		Name:   "pfeiffer.tpg362",
		Vendor: "Pfeiffer Vacuum",
		Model:  "TPG 362",
		New: func(p registry.Params) (device.Device, error) {
			return NewTPG362(p.Address)
		},
		NewDummy: func(p registry.Params) (device.Device, error) {
			return NewTPG362Dummy(p.Address)
		},
		Example: registry.Params{Address: "/dev/ttyUSB0"},
	})
}
