package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
)

// ErrNotConnected is returned by Publish before Connect succeeds or after
// the broker connection is lost.
var ErrNotConnected = errors.New("mqtt not connected")

// FrameHandler receives each decoded input cloud.
type FrameHandler func(cloud l1cloud.Cloud)

// Publisher sends one payload to one topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// MQTTConfig configures an MQTTClient.
type MQTTConfig struct {
	// Broker is host:port; tcp:// is prepended.
	Broker     string
	ClientID   string
	InputTopic string
	QoS        byte
}

// MQTTStats are connection and traffic counters.
type MQTTStats struct {
	Connected     bool
	Received      uint64
	DecodeErrors  uint64
	Published     map[string]uint64
	PublishErrors uint64
}

// MQTTClient subscribes to raw clouds and publishes pipeline outputs.
type MQTTClient struct {
	cfg    MQTTConfig
	client mqtt.Client

	mu            sync.RWMutex
	connected     bool
	received      uint64
	decodeErrors  uint64
	published     map[string]uint64
	publishErrors uint64
}

// NewMQTTClient returns an unconnected client.
func NewMQTTClient(cfg MQTTConfig) *MQTTClient {
	return &MQTTClient{
		cfg:       cfg,
		published: make(map[string]uint64),
	}
}

// Connect dials the broker. The paho client reconnects on its own after
// a lost connection.
func (c *MQTTClient) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", c.cfg.Broker))
	opts.SetClientID(c.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		c.setConnected(true)
		diagf("mqtt connected to %s as %s", c.cfg.Broker, c.cfg.ClientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		c.setConnected(false)
		opsf("mqtt connection to %s lost, reconnecting: %v", c.cfg.Broker, err)
	}

	c.client = mqtt.NewClient(opts)
	diagf("connecting to mqtt broker %s", c.cfg.Broker)

	token := c.client.Connect()
	if err := waitToken(ctx, token, 5*time.Second); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	c.setConnected(true)
	return nil
}

// Subscribe routes messages on the input topic to handler. Payloads that
// fail to decode are counted and dropped.
func (c *MQTTClient) Subscribe(ctx context.Context, handler FrameHandler) error {
	if c.client == nil {
		return ErrNotConnected
	}
	token := c.client.Subscribe(c.cfg.InputTopic, c.cfg.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		c.handleMessage(msg, handler)
	})
	if err := waitToken(ctx, token, 5*time.Second); err != nil {
		return fmt.Errorf("mqtt subscribe to %s failed: %w", c.cfg.InputTopic, err)
	}
	diagf("subscribed to %s (qos %d)", c.cfg.InputTopic, c.cfg.QoS)
	return nil
}

func (c *MQTTClient) handleMessage(msg mqtt.Message, handler FrameHandler) {
	cloud, err := l1cloud.DecodeCloud(msg.Payload())
	c.mu.Lock()
	if err != nil {
		c.decodeErrors++
	} else {
		c.received++
	}
	c.mu.Unlock()
	if err != nil {
		opsf("dropping message on %s: %v", msg.Topic(), err)
		return
	}
	tracef("cloud on %s: %d points", msg.Topic(), len(cloud))
	handler(cloud)
}

// Publish sends payload to topic and waits up to two seconds for the
// broker to accept it.
func (c *MQTTClient) Publish(topic string, payload []byte) error {
	if !c.isConnected() {
		c.countPublishError()
		return ErrNotConnected
	}
	token := c.client.Publish(topic, c.cfg.QoS, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		c.countPublishError()
		return fmt.Errorf("publish to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		c.countPublishError()
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	c.mu.Lock()
	c.published[topic]++
	c.mu.Unlock()
	return nil
}

// Disconnect closes the broker connection with a short grace period.
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
		diagf("mqtt disconnected")
	}
	c.setConnected(false)
}

// Stats returns a snapshot of the counters.
func (c *MQTTClient) Stats() MQTTStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	published := make(map[string]uint64, len(c.published))
	for k, v := range c.published {
		published[k] = v
	}
	return MQTTStats{
		Connected:     c.connected,
		Received:      c.received,
		DecodeErrors:  c.decodeErrors,
		Published:     published,
		PublishErrors: c.publishErrors,
	}
}

func (c *MQTTClient) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

func (c *MQTTClient) isConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *MQTTClient) countPublishError() {
	c.mu.Lock()
	c.publishErrors++
	c.mu.Unlock()
}

// waitToken waits for token to complete, for timeout to pass, or for ctx
// to be done, whichever comes first.
func waitToken(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return errors.New("timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
}
