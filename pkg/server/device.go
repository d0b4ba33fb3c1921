package server

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"labdevices/pkg/device"
	"labdevices/pkg/registry"
)

// Summary is the device list entry of the HTTP API.
type Summary struct {
	Name      string `json:"name"`
	Vendor    string `json:"vendor"`
	Model     string `json:"model"`
	ID        string `json:"id"`
	Connected bool   `json:"connected"`
}

// ManagedDevice pairs one opened device with its definition and a
// per-instance ID. net/http serves requests concurrently and the
// drivers are not safe for that, so every device access goes through
// the mutex.
type ManagedDevice struct {
	mu        sync.Mutex
	name      string
	def       registry.Definition
	dev       device.Device
	id        uuid.UUID
	connected bool
}

// NewManagedDevice opens a device by registry name. A -dummy name
// serves the full API without hardware.
func NewManagedDevice(name string, p registry.Params) (*ManagedDevice, error) {
	def, ok := registry.Get(strings.TrimSuffix(name, registry.DummySuffix))
	if !ok {
		return nil, fmt.Errorf("%w: %s", registry.ErrUnknown, name)
	}

	dev, err := registry.Open(name, p)
	if err != nil {
		return nil, err
	}

	return &ManagedDevice{
		name: name,
		def:  def,
		dev:  dev,
		id:   uuid.New(),
	}, nil
}

func (m *ManagedDevice) Name() string { return m.name }

func (m *ManagedDevice) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Summary{
		Name:      m.name,
		Vendor:    m.def.Vendor,
		Model:     m.def.Model,
		ID:        m.id.String(),
		Connected: m.connected,
	}
}

// Descriptor returns the device surface shared by the driver and its
// dummy.
func (m *ManagedDevice) Descriptor() device.Descriptor {
	return m.def.Descriptor()
}

func (m *ManagedDevice) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.dev.Initialize(); err != nil {
		return err
	}
	m.connected = true
	return nil
}

func (m *ManagedDevice) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.dev.Close(); err != nil {
		return err
	}
	m.connected = false
	return nil
}

func (m *ManagedDevice) IDN() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dev.IDN()
}

func (m *ManagedDevice) Query(cmd string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dev.Query(cmd)
}
