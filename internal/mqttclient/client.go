// Package mqttclient publishes domain events to an MQTT broker.
package mqttclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/snarg/mockprep/internal/metrics"
)

const publishTimeout = 5 * time.Second

// ErrNotConnected is returned by PublishEvent while the broker is unreachable.
var ErrNotConnected = errors.New("mqtt not connected")

// Event is the JSON envelope published for every domain event.
type Event struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

type Client struct {
	conn      mqtt.Client
	prefix    string
	connected atomic.Bool
	log       zerolog.Logger
}

type Options struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	Log         zerolog.Logger
}

func Connect(opts Options) (*Client, error) {
	c := &Client{
		prefix: strings.Trim(opts.TopicPrefix, "/"),
		log:    opts.Log,
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}

	c.conn = mqtt.NewClient(clientOpts)
	token := c.conn.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}
	c.connected.Store(c.conn.IsConnected())

	return c, nil
}

func (c *Client) onConnect(_ mqtt.Client) {
	c.connected.Store(true)
	c.log.Info().Str("prefix", c.prefix).Msg("mqtt connected")
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	c.connected.Store(false)
	c.log.Warn().Err(err).Msg("mqtt connection lost, will auto-reconnect")
}

// Topic returns the topic an event is published on.
func (c *Client) Topic(event string) string {
	if c.prefix == "" {
		return event
	}
	return c.prefix + "/" + event
}

// PublishEvent sends payload wrapped in an Event envelope with QoS 1.
// A nil client drops the event.
func (c *Client) PublishEvent(event string, payload any) error {
	if c == nil {
		return nil
	}
	if !c.connected.Load() {
		metrics.MQTTPublishTotal.WithLabelValues(event, "disconnected").Inc()
		return ErrNotConnected
	}

	body, err := json.Marshal(Event{Event: event, Timestamp: time.Now().UTC(), Data: payload})
	if err != nil {
		metrics.MQTTPublishTotal.WithLabelValues(event, "error").Inc()
		return fmt.Errorf("marshal %s: %w", event, err)
	}

	topic := c.Topic(event)
	token := c.conn.Publish(topic, 1, false, body)
	if !token.WaitTimeout(publishTimeout) {
		metrics.MQTTPublishTotal.WithLabelValues(event, "timeout").Inc()
		return fmt.Errorf("publish %s: timed out after %s", topic, publishTimeout)
	}
	if err := token.Error(); err != nil {
		metrics.MQTTPublishTotal.WithLabelValues(event, "error").Inc()
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	metrics.MQTTPublishTotal.WithLabelValues(event, "ok").Inc()
	c.log.Debug().Str("topic", topic).Int("bytes", len(body)).Msg("event published")
	return nil
}

func (c *Client) IsConnected() bool {
	return c != nil && c.connected.Load()
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	c.log.Info().Msg("disconnecting mqtt client")
	c.conn.Disconnect(1000)
}
