package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/d21d3q/goweatherboard/internal/config"
)

// publisher is the slice of mqtt.Client the sink uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type MQTTSink struct {
	client publisher
	topic  string
	qos    byte
	retain bool
	log    *logrus.Entry
}

// NewMQTTSink connects to the broker and waits up to the connect timeout.
func NewMQTTSink(cfg config.MQTTConfig, log *logrus.Entry) (*MQTTSink, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetAutoReconnect(true).
		SetKeepAlive(cfg.KeepAlive).
		SetConnectTimeout(timeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warnf("mqtt connection lost: %v", err)
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if ok := token.WaitTimeout(timeout); !ok {
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect to %s: timed out after %s", cfg.Broker, timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.Broker, err)
	}
	log.Infof("mqtt connected to %s, publishing on %s", cfg.Broker, cfg.Topic)
	return newMQTTSink(client, cfg, log), nil
}

func newMQTTSink(client publisher, cfg config.MQTTConfig, log *logrus.Entry) *MQTTSink {
	return &MQTTSink{
		client: client,
		topic:  cfg.Topic,
		qos:    cfg.QoS,
		retain: cfg.Retain,
		log:    log,
	}
}

func (s *MQTTSink) Name() string { return "mqtt" }

// Publish waits for the broker to acknowledge or ctx to end.
func (s *MQTTSink) Publish(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	tok := s.client.Publish(s.topic, s.qos, s.retain, body)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-tok.Done():
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", s.topic, err)
	}
	s.log.Debugf("published %s to %s", msg.ID, s.topic)
	return nil
}

func (s *MQTTSink) Close() error {
	s.client.Disconnect(250)
	return nil
}
