package monitor

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"labdevices/pkg/registry"
)

const (
	defaultClientID  = "labmon"
	defaultTopicRoot = "labdevices"
	defaultInterval  = 10
)

// DeviceConfig names one device to poll. Reading keys become the last
// topic segment; reading values are the raw commands sent through
// Query.
type DeviceConfig struct {
	Name     string            `yaml:"name"`
	Params   registry.Params   `yaml:"params"`
	Readings map[string]string `yaml:"readings"`
}

// Config is the monitor configuration file.
type Config struct {
	Broker    string `yaml:"broker"`
	ClientID  string `yaml:"client_id"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	TopicRoot string `yaml:"topic_root"`
	// Interval is the poll period in seconds.
	Interval int            `yaml:"interval"`
	Devices  []DeviceConfig `yaml:"devices"`
}

// LoadConfig reads, parses and validates a YAML monitor configuration.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return ParseConfig(data)
}

// ParseConfig parses a YAML monitor configuration, filling defaults for
// the client ID, the topic root and the poll interval.
func ParseConfig(data []byte) (Config, error) {
	cfg := Config{
		ClientID:  defaultClientID,
		TopicRoot: defaultTopicRoot,
		Interval:  defaultInterval,
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing monitor config: %v", err)
	}

	if cfg.Broker == "" {
		return Config{}, fmt.Errorf("monitor config names no broker")
	}
	if cfg.Interval <= 0 {
		return Config{}, fmt.Errorf("poll interval must be positive, got %d", cfg.Interval)
	}
	if len(cfg.Devices) == 0 {
		return Config{}, fmt.Errorf("monitor config names no devices")
	}
	for i, dev := range cfg.Devices {
		if dev.Name == "" {
			return Config{}, fmt.Errorf("device %d has no name", i)
		}
		if len(dev.Readings) == 0 {
			return Config{}, fmt.Errorf("device %s has no readings", dev.Name)
		}
	}

	return cfg, nil
}

func (c Config) interval() time.Duration {
	return time.Duration(c.Interval) * time.Second
}
