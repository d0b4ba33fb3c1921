// Package monitor polls laboratory devices on a fixed interval and
// publishes every reading to MQTT, one topic per device and reading
// key: <root>/<device>/<key>. Pointing a device entry at a dummy name
// runs the same loop without hardware.
package monitor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"labdevices/pkg/device"
	"labdevices/pkg/registry"
)

// Monitor polls the configured devices from a single goroutine, so the
// devices need no locking.
type Monitor struct {
	cfg    Config
	pub    Publisher
	logger log.FieldLogger
}

func New(cfg Config, pub Publisher, logger log.FieldLogger) *Monitor {
	return &Monitor{
		cfg:    cfg,
		pub:    pub,
		logger: logger.WithField("component", "monitor"),
	}
}

// Run opens and initializes every configured device, polls them once
// immediately and then on every tick until the context is cancelled.
// The devices are closed on the way out.
func (m *Monitor) Run(ctx context.Context) error {
	devices := make([]device.Device, 0, len(m.cfg.Devices))
	defer func() {
		for i, dev := range devices {
			if err := dev.Close(); err != nil {
				m.logger.Errorf("Failed to close %s: %v", m.cfg.Devices[i].Name, err)
			}
		}
	}()

	for _, dc := range m.cfg.Devices {
		dev, err := registry.Open(dc.Name, dc.Params)
		if err != nil {
			return err
		}
		devices = append(devices, dev)

		if err := dev.Initialize(); err != nil {
			return fmt.Errorf("initializing %s: %v", dc.Name, err)
		}
	}

	m.logger.Infof("Polling %d devices every %v", len(devices), m.cfg.interval())
	m.pollAll(devices)

	ticker := time.NewTicker(m.cfg.interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.pollAll(devices)
		}
	}
}

func (m *Monitor) pollAll(devices []device.Device) {
	for i, dev := range devices {
		m.poll(m.cfg.Devices[i], dev)
	}
}

// poll takes every configured reading from one device. A failed reading
// is logged and skipped; one flaky instrument must not stall the rest.
func (m *Monitor) poll(dc DeviceConfig, dev device.Device) {
	for _, key := range sortedKeys(dc.Readings) {
		resp, err := dev.Query(dc.Readings[key])
		if err != nil {
			m.logger.Errorf("Reading %s from %s failed: %v", key, dc.Name, err)
			continue
		}

		topic := m.cfg.TopicRoot + "/" + dc.Name + "/" + key
		if err := m.pub.Publish(topic, strings.TrimSpace(resp)); err != nil {
			m.logger.Errorf("Publishing %s failed: %v", topic, err)
		}
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
