package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"example.com/backstage/services/simulator/config"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// MQTTPublisher publishes generated access events to a broker, one topic
// per device, the way the real controller firmware would. Optional
// infrastructure: the service runs without it.
type MQTTPublisher struct {
	config config.MQTTConfig
	client mqtt.Client
	logger *logrus.Logger
}

// NewMQTTPublisher creates a publisher; Connect must be called before use.
func NewMQTTPublisher(cfg config.MQTTConfig, logger *logrus.Logger) (*MQTTPublisher, error) {
	if cfg.BrokerURL == "" {
		return nil, fmt.Errorf("MQTT broker URL is required")
	}

	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("simulator-%d", time.Now().UnixNano())
	}

	return &MQTTPublisher{
		config: cfg,
		logger: logger,
	}, nil
}

// Connect establishes the broker connection.
func (p *MQTTPublisher) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.config.BrokerURL)
	opts.SetClientID(p.config.ClientID)

	if p.config.Username != "" {
		opts.SetUsername(p.config.Username)
	}
	if p.config.Password != "" {
		opts.SetPassword(p.config.Password)
	}

	opts.SetKeepAlive(p.config.KeepAlive)
	opts.SetConnectTimeout(p.config.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(p.config.MaxReconnectDelay)

	opts.SetOnConnectHandler(func(mqtt.Client) {
		p.logger.WithField("broker", p.config.BrokerURL).Info("Connected to MQTT broker")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.logger.WithError(err).Warn("MQTT connection lost")
	})

	p.client = mqtt.NewClient(opts)

	if token := p.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return nil
}

// Name identifies this sink in logs and metrics.
func (p *MQTTPublisher) Name() string { return "mqtt" }

// Publish sends one message on the given topic. The context deadline, if
// any, bounds the wait for broker acknowledgement.
func (p *MQTTPublisher) Publish(ctx context.Context, topic string, message interface{}) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	token := p.client.Publish(topic, p.config.QoS, false, data)

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects from the broker, allowing in-flight publishes 250ms
// to drain.
func (p *MQTTPublisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
