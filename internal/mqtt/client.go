package mqtt

import (
	"log"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/RepairWorkshop/internal/events"
)

const defaultBroker = "tcp://localhost:1883"

// Client wraps the Paho MQTT client. Subscriptions are restored after a reconnect.
type Client struct {
	client paho.Client
	broker string
	mu     sync.Mutex
	subs   map[string]paho.MessageHandler
}

// BrokerURL returns the MQTT broker URL: MQTT_URL from the environment, else
// configured, else tcp://localhost:1883.
func BrokerURL(configured string) string {
	if url := os.Getenv("MQTT_URL"); url != "" {
		return url
	}
	if configured != "" {
		return configured
	}
	return defaultBroker
}

// NewClient creates a new MQTT client but does not connect.
func NewClient(broker, clientID string) *Client {
	c := &Client{
		broker: broker,
		subs:   make(map[string]paho.MessageHandler),
	}
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			events.Emit("warning", "mqtt.disconnected", err.Error(), map[string]interface{}{
				"broker": broker,
			})
		})

	c.client = paho.NewClient(opts)
	return c
}

// onConnect re-establishes subscriptions made before a reconnect.
func (c *Client) onConnect(pc paho.Client) {
	c.mu.Lock()
	subs := make(map[string]paho.MessageHandler, len(c.subs))
	for topic, h := range c.subs {
		subs[topic] = h
	}
	c.mu.Unlock()

	for topic, h := range subs {
		pc.Subscribe(topic, 1, h)
	}
	events.Emit("info", "mqtt.connected", "", map[string]interface{}{
		"broker":        c.broker,
		"subscriptions": len(subs),
	})
}

// Connect attempts to connect to the broker.
// Returns an error if connection fails, but does not block indefinitely.
func (c *Client) Connect() error {
	token := c.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return &ConnectTimeoutError{}
	}
	if err := token.Error(); err != nil {
		return err
	}
	return nil
}

// Subscribe subscribes to a topic with the given handler.
func (c *Client) Subscribe(topic string, handler paho.MessageHandler) error {
	c.mu.Lock()
	c.subs[topic] = handler
	c.mu.Unlock()

	token := c.client.Subscribe(topic, 1, handler)
	if !token.WaitTimeout(10 * time.Second) {
		return &SubscribeTimeoutError{Topic: topic}
	}
	return token.Error()
}

// Publish sends payload to topic at QoS 0.
func (c *Client) Publish(topic string, payload []byte) error {
	token := c.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return &PublishTimeoutError{Topic: topic}
	}
	return token.Error()
}

// Disconnect cleanly disconnects from the broker.
func (c *Client) Disconnect() {
	c.client.Disconnect(1000)
}

// IsConnected returns true if the client is connected.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// ConnectTimeoutError indicates connection timed out.
type ConnectTimeoutError struct{}

func (e *ConnectTimeoutError) Error() string {
	return "mqtt connect timeout"
}

// SubscribeTimeoutError indicates subscription timed out.
type SubscribeTimeoutError struct {
	Topic string
}

func (e *SubscribeTimeoutError) Error() string {
	return "mqtt subscribe timeout: " + e.Topic
}

// PublishTimeoutError indicates a publish was not acknowledged in time.
type PublishTimeoutError struct {
	Topic string
}

func (e *PublishTimeoutError) Error() string {
	return "mqtt publish timeout: " + e.Topic
}

// StartWithRetry attempts to connect and subscribe, logging errors but not crashing.
// Returns true if connected, false otherwise. The subscription is remembered
// either way and made once a background retry connects.
func (c *Client) StartWithRetry(topic string, handler paho.MessageHandler) bool {
	c.mu.Lock()
	c.subs[topic] = handler
	c.mu.Unlock()

	if err := c.Connect(); err != nil {
		log.Printf("mqtt: failed to connect to %s: %v", c.broker, err)
		return false
	}

	if err := c.Subscribe(topic, handler); err != nil {
		log.Printf("mqtt: failed to subscribe to %s: %v", topic, err)
		return false
	}

	log.Printf("mqtt: connected and subscribed to %s", topic)
	return true
}
