package device_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labdevices/pkg/device"
	"labdevices/pkg/sim"
	"labdevices/pkg/transport"
)

// thermometer is a minimal complete driver used as a test fixture: the
// contract surface plus one family property.
type thermometer struct {
	addr string
	tr   transport.Transport
}

func newThermometer(addr string) (*thermometer, error) {
	if addr == "" {
		return nil, fmt.Errorf("thermometer needs an address")
	}
	return &thermometer{addr: addr}, nil
}

func (t *thermometer) Initialize() error {
	tr := transport.NewTCP(transport.TCPConfig{Addr: t.addr})
	if err := tr.Open(); err != nil {
		return err
	}
	t.tr = tr
	return nil
}

func (t *thermometer) Close() error {
	if t.tr == nil {
		return nil
	}
	err := t.tr.Close()
	t.tr = nil
	return err
}

func (t *thermometer) Write(cmd string) error {
	if t.tr == nil {
		return device.ErrNotConnected
	}
	return t.tr.Send(cmd)
}

func (t *thermometer) Query(cmd string) (string, error) {
	if t.tr == nil {
		return "", device.ErrNotConnected
	}
	if err := t.tr.Send(cmd); err != nil {
		return "", err
	}
	return t.tr.Receive()
}

func (t *thermometer) IDN() (string, error) {
	return t.Query("*IDN?")
}

func (t *thermometer) Temperature() (float64, error) {
	resp, err := t.Query(":READ?")
	if err != nil {
		return 0, err
	}
	var v float64
	if _, err := fmt.Sscanf(resp, "%g", &v); err != nil {
		return 0, err
	}
	return v, nil
}

var thermometerProfile = sim.Profile{
	Responses: map[string]string{
		"*IDN?":  "ACME,THERMO-1,0042,1.0",
		":READ?": "23.0",
	},
}

// thermometerDummy is the dummy sibling: same surface by embedding, with
// Initialize overridden to install the simulated transport.
type thermometerDummy struct {
	thermometer
}

func newThermometerDummy(addr string) (*thermometerDummy, error) {
	inner, err := newThermometer(addr)
	if err != nil {
		return nil, err
	}
	return &thermometerDummy{thermometer: *inner}, nil
}

func (t *thermometerDummy) Initialize() error {
	t.tr = sim.NewTransport(thermometerProfile)
	return nil
}

func TestDescribeMembers(t *testing.T) {
	dev, err := newThermometer("127.0.0.1:5025")
	require.NoError(t, err)

	desc, err := device.Describe(dev)
	require.NoError(t, err)

	assert.Equal(t, "*device_test.thermometer", desc.Type)

	names := make([]string, 0, len(desc.Members))
	for _, m := range desc.Members {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"Close", "IDN", "Initialize", "Query", "Temperature", "Write"}, names)
}

func TestDescribeKindsAndSignatures(t *testing.T) {
	dev, _ := newThermometer("127.0.0.1:5025")
	desc, err := device.Describe(dev)
	require.NoError(t, err)

	tests := []struct {
		name     string
		member   string
		kind     device.Kind
		expected string
	}{
		{
			name:     "query is a method",
			member:   "Query",
			kind:     device.KindMethod,
			expected: "Query(string) (string, error)",
		},
		{
			name:     "idn is a property",
			member:   "IDN",
			kind:     device.KindProperty,
			expected: "IDN() (string, error)",
		},
		{
			name:     "temperature is a property",
			member:   "Temperature",
			kind:     device.KindProperty,
			expected: "Temperature() (float64, error)",
		},
		{
			name:     "initialize is a method",
			member:   "Initialize",
			kind:     device.KindMethod,
			expected: "Initialize() error",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, ok := desc.Member(tc.member)
			require.True(t, ok)
			assert.Equal(t, tc.kind, m.Kind)
			assert.Equal(t, tc.expected, m.Signature())
		})
	}
}

func TestDescribeCachesPerType(t *testing.T) {
	a, _ := newThermometer("127.0.0.1:5025")
	b, _ := newThermometer("127.0.0.1:5026")

	descA, err := device.Describe(a)
	require.NoError(t, err)
	descB, err := device.Describe(b)
	require.NoError(t, err)

	assert.Equal(t, descA, descB)
}

func TestDescribeNil(t *testing.T) {
	_, err := device.Describe(nil)
	assert.Error(t, err)
}

func TestDummySurfaceMatchesDriver(t *testing.T) {
	dev, err := newThermometer("127.0.0.1:5025")
	require.NoError(t, err)
	dummy, err := newThermometerDummy("127.0.0.1:5025")
	require.NoError(t, err)

	devDesc, err := device.Describe(dev)
	require.NoError(t, err)
	dummyDesc, err := device.Describe(dummy)
	require.NoError(t, err)

	assert.Empty(t, devDesc.Diff(dummyDesc))
}

func TestDescriptorDiff(t *testing.T) {
	full, err := device.Describe(&thermometer{})
	require.NoError(t, err)
	broken, err := device.Describe(&missingQuery{})
	require.NoError(t, err)

	diffs := full.Diff(broken)
	require.NotEmpty(t, diffs)
	assert.Contains(t, diffs[0], "Query")
}
