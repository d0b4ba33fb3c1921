package registry_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labdevices/pkg/device"
	"labdevices/pkg/registry"
	"labdevices/pkg/sim"
	"labdevices/pkg/transport"
)

// widget is a minimal conforming driver family for registry tests.
type widget struct {
	addr string
	tr   transport.Transport
}

func newWidget(p registry.Params) (*widget, error) {
	if p.Address == "" {
		return nil, fmt.Errorf("widget needs an address")
	}
	return &widget{addr: p.Address}, nil
}

func (w *widget) Initialize() error {
	tr := transport.NewTCP(transport.TCPConfig{Addr: w.addr})
	if err := tr.Open(); err != nil {
		return err
	}
	w.tr = tr
	return nil
}

func (w *widget) Close() error {
	if w.tr == nil {
		return nil
	}
	err := w.tr.Close()
	w.tr = nil
	return err
}

func (w *widget) Write(cmd string) error {
	if w.tr == nil {
		return device.ErrNotConnected
	}
	return w.tr.Send(cmd)
}

func (w *widget) Query(cmd string) (string, error) {
	if w.tr == nil {
		return "", device.ErrNotConnected
	}
	if err := w.tr.Send(cmd); err != nil {
		return "", err
	}
	return w.tr.Receive()
}

func (w *widget) IDN() (string, error) { return w.Query("*IDN?") }

type widgetDummy struct{ widget }

func newWidgetDummy(p registry.Params) (*widgetDummy, error) {
	inner, err := newWidget(p)
	if err != nil {
		return nil, err
	}
	return &widgetDummy{widget: *inner}, nil
}

func (w *widgetDummy) Initialize() error {
	w.tr = sim.NewTransport(sim.Profile{
		Responses: map[string]string{"*IDN?": "ACME,WIDGET,1,1.0"},
	})
	return nil
}

func widgetDefinition(name string) registry.Definition {
	return registry.Definition{
		Name:   name,
		Vendor: "ACME",
		Model:  "WIDGET",
		New: func(p registry.Params) (device.Device, error) {
			return newWidget(p)
		},
		NewDummy: func(p registry.Params) (device.Device, error) {
			return newWidgetDummy(p)
		},
		Example: registry.Params{Address: "1.1.1.1:5025"},
	}
}

func TestRegisterAndOpen(t *testing.T) {
	registry.MustRegister(widgetDefinition("acme.widget"))

	real, err := registry.Open("acme.widget", registry.Params{Address: "10.0.0.9:5025"})
	require.NoError(t, err)
	_, ok := real.(*widget)
	assert.True(t, ok, "expected the real driver, got %T", real)

	dummy, err := registry.Open("acme.widget-dummy", registry.Params{Address: "10.0.0.9:5025"})
	require.NoError(t, err)
	_, ok = dummy.(*widgetDummy)
	assert.True(t, ok, "expected the dummy sibling, got %T", dummy)
}

func TestOpenUnknownName(t *testing.T) {
	_, err := registry.Open("nobody.nothing", registry.Params{})
	assert.ErrorIs(t, err, registry.ErrUnknown)
}

func TestDefinitionAccessors(t *testing.T) {
	registry.MustRegister(widgetDefinition("acme.accessor"))

	def, ok := registry.Get("acme.accessor")
	require.True(t, ok)
	assert.Equal(t, "acme", def.Family())

	desc := def.Descriptor()
	_, hasQuery := desc.Member("Query")
	assert.True(t, hasQuery)

	dummy, err := def.Dummy()
	require.NoError(t, err)
	res := device.VerifyInstance(dummy)
	assert.Empty(t, res.Violations)
}

func TestNamesAndMatch(t *testing.T) {
	registry.MustRegister(widgetDefinition("acme.listed"))

	assert.Contains(t, registry.Names(), "acme.listed")

	matched := registry.Match("acme")
	found := false
	for _, def := range matched {
		if def.Name == "acme.listed" {
			found = true
		}
	}
	assert.True(t, found)

	assert.NotEmpty(t, registry.Match(""))
	assert.Empty(t, registry.Match("nobody"))
}

func TestRegisterPanicsOnBadExampleParams(t *testing.T) {
	def := widgetDefinition("acme.badexample")
	def.Example = registry.Params{}

	assert.Panics(t, func() { registry.MustRegister(def) },
		"an empty example address must fail construction at load time")
}

func TestRegisterPanicsOnSurfaceMismatch(t *testing.T) {
	def := widgetDefinition("acme.mismatch")
	def.NewDummy = func(p registry.Params) (device.Device, error) {
		return &stretchedDummy{}, nil
	}

	assert.Panics(t, func() { registry.MustRegister(def) })
}

// stretchedDummy drifts from the widget surface by an extra member, the
// hazard hand-written dummies used to have.
type stretchedDummy struct{ widgetDummy }

func (s *stretchedDummy) Sparkle() (bool, error) { return true, nil }

func TestRegisterPanicsOnDuplicate(t *testing.T) {
	registry.MustRegister(widgetDefinition("acme.dup"))
	assert.Panics(t, func() {
		registry.MustRegister(widgetDefinition("acme.dup"))
	})
}

func TestRegisterPanicsWithoutConstructors(t *testing.T) {
	assert.Panics(t, func() {
		registry.MustRegister(registry.Definition{Name: "acme.hollow"})
	})
}
