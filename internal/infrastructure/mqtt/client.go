package mqtt

import (
	"context"
	"fmt"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-overrides/internal/infrastructure/config"
)

// Client is the overrides service's connection to the host bus.
//
// It answers export and import service calls, publishes their results and
// the core notifications and events, and announces the service on the system
// status topic. Service-call subscriptions survive reconnects.
//
// All methods are safe for concurrent use.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	logger Logger

	subs      subscriptionSet
	connected atomic.Bool
}

// Logger is the logging surface the client needs. logging.Logger satisfies it.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MessageHandler receives a service-call message. paho runs handlers on its
// own goroutines; a returned error is logged and the message is still
// acknowledged.
type MessageHandler func(topic string, payload []byte) error

// Connect dials the broker described by cfg and waits for the first CONNACK.
//
// The client registers a Last Will on the system status topic, reconnects
// with backoff, and on every (re)connect restores subscriptions and
// publishes an online status. A nil logger discards log output.
//
// Returns ErrConnectionFailed when the broker rejects the connection or does
// not answer within the connect timeout.
func Connect(cfg config.MQTTConfig, logger Logger) (*Client, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	c := &Client{cfg: cfg, logger: logger}
	c.subs.init()

	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.onConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.connected.Store(false)
		c.logger.Warn("mqtt connection lost", "broker", cfg.Broker.Host, "error", err)
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: no answer from %s:%d within %v",
			ErrConnectionFailed, cfg.Broker.Host, cfg.Broker.Port, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The connect handler runs on its own goroutine and may lag the token.
	c.connected.Store(true)
	return c, nil
}

// onConnect runs after every successful (re)connect.
func (c *Client) onConnect() {
	c.connected.Store(true)
	c.logger.Info("mqtt connected", "broker", c.cfg.Broker.Host, "client_id", c.cfg.Broker.ClientID)

	for _, sub := range c.subs.snapshot() {
		token := c.client.Subscribe(sub.topic, sub.qos, c.dispatch(sub.handler))
		if !token.WaitTimeout(defaultPublishTimeout) {
			c.logger.Warn("restoring subscription timed out", "topic", sub.topic)
			continue
		}
		if err := token.Error(); err != nil {
			c.logger.Error("restoring subscription failed", "topic", sub.topic, "error", err)
		}
	}

	c.publishStatus(buildOnlinePayload(c.cfg.Broker.ClientID))
}

func (c *Client) publishStatus(payload string) {
	token := c.client.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true, payload)
	if token.WaitTimeout(defaultPublishTimeout) && token.Error() != nil {
		c.logger.Warn("publishing service status failed", "error", token.Error())
	}
}

// Close publishes a graceful offline status and disconnects. Closing a client
// that never connected is a no-op.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	if c.IsConnected() {
		c.publishStatus(buildOfflinePayload(c.cfg.Broker.ClientID))
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
	c.connected.Store(false)
	return nil
}

// HealthCheck reports ErrNotConnected while the broker connection is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports the last known connection state.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.connected.Load() && c.client.IsConnected()
}

// QoS returns the configured QoS for service traffic.
func (c *Client) QoS() byte {
	return byte(c.cfg.QoS)
}

// dispatch adapts a MessageHandler to paho, recovering panics so one bad
// service call cannot take down the router goroutine.
func (c *Client) dispatch(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("mqtt handler panicked", "topic", msg.Topic(), "panic", r)
			}
		}()
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.logger.Warn("mqtt handler failed", "topic", msg.Topic(), "error", err)
		}
	}
}
