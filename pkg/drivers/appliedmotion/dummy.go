package appliedmotion

import (
	"labdevices/pkg/device"
	"labdevices/pkg/registry"
	"labdevices/pkg/sim"
)

// stf03dProfile answers like a drive at microstep resolution 8 with a
// drive fault latched. Keys carry the datagram frame, as the wire
// does.
var stf03dProfile = sim.Profile{
	Responses: map[string]string{
		"\x00\x07MV\r":  "\x00\x07100H179M\r",
		"\x00\x07AL\r":  "\x00\x07AL=0100\r",
		"\x00\x07SC\r":  "\x00\x07SC=020C\r",
		"\x00\x07MR\r":  "\x00\x07MR=8\r",
		"\x00\x07MC\r":  "\x00\x07MC=1\r",
		"\x00\x07CI\r":  "\x00\x07CI=0.6\r",
		"\x00\x07CC\r":  "\x00\x07CC=1\r",
		"\x00\x07SP\r":  "\x00\x07SP=0\r",
		"\x00\x07SP0\r": "\x00\x07%\r",
		"\x00\x07IP\r":  "\x00\x07IP=00000000\r",
		"\x00\x07AC\r":  "\x00\x07AC=25\r",
		"\x00\x07DE\r":  "\x00\x07DE=25\r",
		"\x00\x07VE\r":  "\x00\x07VE=10\r",
		"\x00\x07DI\r":  "\x00\x07DI=20000\r",
	},
	Rules: []sim.Rule{
		// Every other framed command is a set, which the drive
		// acknowledges with %.
		{Contains: frameHeader, Response: "\x00\x07%\r"},
	},
}

// STF03DDummy is an STF03D that answers from canned responses instead
// of a socket.
type STF03DDummy struct {
	STF03D
}

// NewSTF03DDummy returns a hardware-free STF03D.
func NewSTF03DDummy(host string, port int) (*STF03DDummy, error) {
	d, err := NewSTF03D(host, port)
	if err != nil {
		return nil, err
	}
	return &STF03DDummy{STF03D: *d}, nil
}

// Initialize wires the driver to the canned profile.
func (d *STF03DDummy) Initialize() error {
	if d.tr != nil {
		return nil
	}
	d.tr = sim.NewTransport(stf03dProfile)
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
		Name:   "appliedmotion.stf03d",
		Vendor: "Applied Motion Products",
		Model:  "STF03-D",
		New: func(p registry.Params) (device.Device, error) {
			return NewSTF03D(p.Address, p.Port)
		},
		NewDummy: func(p registry.Params) (device.Device, error) {
			return NewSTF03DDummy(p.Address, p.Port)
		},
		Example: registry.Params{Address: "10.0.0.103", Port: 7775},
	})
}
