package notification

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/oceansense/edna-go/internal/conf"
	"github.com/oceansense/edna-go/internal/logging"
)

const (
	mqttConnectTimeout = 10 * time.Second
	mqttPublishTimeout = 10 * time.Second
)

// MQTTPublisher mirrors pipeline events to an MQTT broker. Publish
// failures are logged, never propagated, keeping delivery best-effort.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
	logger *slog.Logger
}

// NewMQTTPublisher connects to the configured broker and returns a
// publisher mirroring events under "<topic>/events/<type>".
func NewMQTTPublisher(settings *conf.Settings) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(settings.MQTT.Broker)
	opts.SetClientID(fmt.Sprintf("%s-%d", settings.Main.Name, time.Now().Unix()))
	if settings.MQTT.Username != "" {
		opts.SetUsername(settings.MQTT.Username)
		opts.SetPassword(settings.MQTT.Password)
	}
	opts.SetConnectTimeout(mqttConnectTimeout)
	opts.SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("timeout connecting to MQTT broker %s", settings.MQTT.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to MQTT broker %s: %w", settings.MQTT.Broker, err)
	}

	return &MQTTPublisher{
		client: client,
		topic:  settings.MQTT.Topic,
		logger: logging.ForService("mqtt"),
	}, nil
}

// Publish sends the event to the broker as JSON.
func (p *MQTTPublisher) Publish(event *Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal event for MQTT", "error", err)
		return
	}

	topic := fmt.Sprintf("%s/events/%s", p.topic, event.Type)
	token := p.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		p.logger.Warn("MQTT publish timeout", "topic", topic)
		return
	}
	if err := token.Error(); err != nil {
		p.logger.Warn("MQTT publish failed", "topic", topic, "error", err)
	}
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
