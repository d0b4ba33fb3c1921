package monitor

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher sends one reading to a topic. Run takes it as an interface
// so tests capture readings without a broker.
type Publisher interface {
	Publish(topic, payload string) error
}

// MQTTPublisher publishes readings to an MQTT broker.
type MQTTPublisher struct {
	client mqtt.Client
}

// NewMQTTPublisher connects to the broker named by the configuration.
func NewMQTTPublisher(cfg Config) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.SetClientID(cfg.ClientID)
	opts.AddBroker(cfg.Broker)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %v", token.Error())
	}

	return &MQTTPublisher{client: client}, nil
}

// Publish sends one reading at QoS 0, unretained.
func (p *MQTTPublisher) Publish(topic, payload string) error {
	if token := p.client.Publish(topic, 0, false, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %v", topic, token.Error())
	}
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(100)
}
