package bus

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/soham10i/stf-hw/internal/config"
	"github.com/soham10i/stf-hw/internal/metrics"
)

// Client is the MQTT implementation of Bus. It survives broker disconnects:
// publishes issued while offline are buffered up to a bounded queue and
// flushed in order on reconnect; overflow drops the oldest message with a
// logged warning. Subscriptions are replayed on every reconnect.
type Client struct {
	conn    mqtt.Client
	schemas *SchemaRegistry
	logger  *zap.Logger

	mu      sync.Mutex
	subs    []subscription
	pending []outbound
	maxBuf  int

	dropped uint64
}

type subscription struct {
	filter  string
	handler Handler
}

type outbound struct {
	topic   string
	payload []byte
}

func NewClient(cfg config.BusConfig, schemas *SchemaRegistry, logger *zap.Logger) (*Client, error) {
	c := &Client{
		schemas: schemas,
		logger:  logger,
		maxBuf:  cfg.BufferSize,
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(cfg.ConnTimeout).
		SetOrderMatters(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("bus connection lost", zap.Error(err))
		}).
		SetOnConnectHandler(func(_ mqtt.Client) {
			logger.Info("bus connected", zap.String("broker", cfg.BrokerURL))
			c.resubscribe()
			c.flush()
		})

	c.conn = mqtt.NewClient(opts)

	token := c.conn.Connect()
	if !token.WaitTimeout(cfg.ConnTimeout) || token.Error() != nil {
		// Connect retry keeps going in the background; buffered publishes
		// flush once the broker comes up.
		logger.Warn("bus not yet connected, buffering", zap.Error(token.Error()))
	}
	return c, nil
}

// Publish marshals and sends. While disconnected, the message is queued.
func (c *Client) Publish(topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %s: %w", topic, err)
	}

	if !c.conn.IsConnectionOpen() {
		c.buffer(topic, data)
		return nil
	}

	token := c.conn.Publish(topic, 0, false, data)
	if !token.WaitTimeout(2*time.Second) || token.Error() != nil {
		c.buffer(topic, data)
		return nil
	}
	metrics.BusPublished.Inc()
	return nil
}

func (c *Client) buffer(topic string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) >= c.maxBuf {
		c.pending = c.pending[1:]
		c.dropped++
		metrics.BusBufferDropped.Inc()
		c.logger.Warn("bus buffer overflow, dropped oldest message",
			zap.Uint64("dropped_total", c.dropped))
	}
	c.pending = append(c.pending, outbound{topic: topic, payload: data})
}

func (c *Client) flush() {
	c.mu.Lock()
	queued := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, m := range queued {
		token := c.conn.Publish(m.topic, 0, false, m.payload)
		token.WaitTimeout(2 * time.Second)
	}
	if len(queued) > 0 {
		c.logger.Info("bus buffer flushed", zap.Int("messages", len(queued)))
	}
}

// Subscribe registers a handler. Payloads failing schema validation are
// dropped and logged; they never reach the handler.
func (c *Client) Subscribe(filter string, handler Handler) error {
	c.mu.Lock()
	c.subs = append(c.subs, subscription{filter: filter, handler: handler})
	c.mu.Unlock()

	token := c.conn.Subscribe(filter, 0, c.wrap(handler))
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("failed to subscribe %s: %w", filter, token.Error())
	}
	return nil
}

func (c *Client) wrap(handler Handler) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		if err := c.schemas.Validate(msg.Topic(), msg.Payload()); err != nil {
			c.logger.Warn("dropping invalid bus message",
				zap.String("topic", msg.Topic()),
				zap.Error(err))
			return
		}
		handler(msg.Topic(), msg.Payload())
	}
}

func (c *Client) resubscribe() {
	c.mu.Lock()
	subs := make([]subscription, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, s := range subs {
		token := c.conn.Subscribe(s.filter, 0, c.wrap(s.handler))
		token.WaitTimeout(2 * time.Second)
	}
}

// Connected reports broker reachability, used by the health endpoint.
func (c *Client) Connected() bool {
	return c.conn.IsConnectionOpen()
}

func (c *Client) Close() {
	c.conn.Disconnect(250)
}
