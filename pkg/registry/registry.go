// Package registry tracks every known driver/dummy pair. Family packages
// register themselves at load time; registration derives both device
// descriptors, validates them against the capability contract and checks
// the pair for structural parity, so a driver authoring bug (a missing
// or renamed member) fails the process at startup instead of leaving a
// silent test gap.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"labdevices/pkg/device"
)

// DummySuffix appended to a device name selects the dummy sibling.
const DummySuffix = "-dummy"

// ErrUnknown is returned by Open for names no family registered.
var ErrUnknown = errors.New("registry: unknown device")

// Params carries the connection parameters shared by all families. Which
// fields a family reads is documented on its constructor.
type Params struct {
	// Address is a host, a serial port path or a VISA-style resource,
	// depending on the family.
	Address string `json:"address,omitempty" yaml:"address,omitempty"`
	// Port is the TCP/UDP port, or the GPIB bus address for instruments
	// behind a GPIB-Ethernet adapter.
	Port int `json:"port,omitempty" yaml:"port,omitempty"`
	// Controller selects the controller number for families with several
	// controllers on one bus.
	Controller int `json:"controller,omitempty" yaml:"controller,omitempty"`
}

// Definition describes one registered device model.
type Definition struct {
	// Name is the selection name, "<family>.<model>".
	Name   string
	Vendor string
	Model  string
	// New builds the real driver. The constructor validates parameters
	// and performs no I/O; the transport opens on Initialize.
	New func(Params) (device.Device, error)
	// NewDummy builds the hardware-free sibling.
	NewDummy func(Params) (device.Device, error)
	// Example holds connection parameters that construct successfully,
	// used for hermetic construction by the contract check.
	Example Params

	desc device.Descriptor
}

// Descriptor returns the device surface derived at registration. Driver
// and dummy share it by construction.
func (d Definition) Descriptor() device.Descriptor {
	return d.desc
}

// Dummy builds the dummy sibling with the registered example parameters.
func (d Definition) Dummy() (device.Device, error) {
	return d.NewDummy(d.Example)
}

// Family is the part of the name before the first dot.
func (d Definition) Family() string {
	family, _, _ := strings.Cut(d.Name, ".")
	return family
}

var (
	mu   sync.RWMutex
	defs = map[string]Definition{}
)

// MustRegister records a definition and panics on any problem. It is
// called from family package inits: a contract violation or a
// driver/dummy descriptor mismatch aborts the process at load time.
func MustRegister(def Definition) {
	if err := register(def); err != nil {
		panic(fmt.Sprintf("registry: registering %s: %v", def.Name, err))
	}
}

func register(def Definition) error {
	if def.Name == "" {
		return errors.New("definition has no name")
	}
	if def.New == nil || def.NewDummy == nil {
		return errors.New("definition needs both a driver and a dummy constructor")
	}

	real, err := def.New(def.Example)
	if err != nil {
		return fmt.Errorf("constructing driver with example parameters: %v", err)
	}
	dummy, err := def.NewDummy(def.Example)
	if err != nil {
		return fmt.Errorf("constructing dummy with example parameters: %v", err)
	}

	realDesc, err := device.Describe(real)
	if err != nil {
		return err
	}
	dummyDesc, err := device.Describe(dummy)
	if err != nil {
		return err
	}

	var problems []string
	for _, v := range device.Verify(real) {
		problems = append(problems, v.String())
	}
	for _, v := range device.Verify(dummy) {
		problems = append(problems, v.String())
	}
	for _, d := range realDesc.Diff(dummyDesc) {
		problems = append(problems, "driver/dummy surface mismatch: "+d)
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}

	def.desc = dummyDesc

	mu.Lock()
	defer mu.Unlock()
	if _, dup := defs[def.Name]; dup {
		return fmt.Errorf("name already registered")
	}
	defs[def.Name] = def
	return nil
}

// Get returns the definition registered under name (without any dummy
// suffix).
func Get(name string) (Definition, bool) {
	mu.RLock()
	defer mu.RUnlock()
	def, ok := defs[name]
	return def, ok
}

// Open builds a device by selection name: "<family>.<model>" is the real
// driver, "<family>.<model>-dummy" its dummy sibling. Both expose the
// identical call surface, so callers can be written against either.
func Open(name string, p Params) (device.Device, error) {
	base, dummy := strings.CutSuffix(name, DummySuffix)
	def, ok := Get(base)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknown, name)
	}
	if dummy {
		return def.NewDummy(p)
	}
	return def.New(p)
}

// Names returns every registered selection name, sorted. Dummy variants
// are implied and not listed separately.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Match returns the definitions whose family or full name matches the
// filter, sorted by name. An empty filter matches everything.
func Match(filter string) []Definition {
	mu.RLock()
	defer mu.RUnlock()
	matched := make([]Definition, 0, len(defs))
	for _, def := range defs {
		if filter == "" || def.Name == filter || def.Family() == filter {
			matched = append(matched, def)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	return matched
}
