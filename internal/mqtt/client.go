// Package mqtt implements an optional ingest source that subscribes to a
// broker topic and feeds published events into the correlation pipeline.
package mqtt

import (
	"context"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/tkarvo/sentinel-go/internal/conf"
	"github.com/tkarvo/sentinel-go/internal/datastore/entities"
	"github.com/tkarvo/sentinel-go/internal/logger"
)

const (
	connectTimeout = 10 * time.Second
	ingestTimeout  = 30 * time.Second
	subscribeQoS   = 1
)

// Sink receives decoded events. Satisfied by the correlation ingestor.
type Sink interface {
	Ingest(ctx context.Context, event *entities.Event) ([]*entities.Alert, error)
}

// Client subscribes to the configured topic and ingests each message.
// The paho client reconnects automatically; the subscription is restored
// in the connect handler.
type Client struct {
	settings conf.MQTTSettings
	client   paho.Client
	sink     Sink
	log      logger.Logger
}

// NewClient creates an MQTT ingest client. Connect must be called before
// messages flow.
func NewClient(settings conf.MQTTSettings, sink Sink, log logger.Logger) *Client {
	c := &Client{
		settings: settings,
		sink:     sink,
		log:      log.With(logger.String("component", "mqtt")),
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(settings.Broker)
	opts.SetClientID(settings.ClientID)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	if settings.Username != "" {
		opts.SetUsername(settings.Username)
		opts.SetPassword(settings.Password)
	}
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		c.log.Warn("broker connection lost", logger.Error(err))
	})

	c.client = paho.NewClient(opts)
	return c
}

// Connect dials the broker and blocks until connected or the context or
// connect timeout expires.
func (c *Client) Connect(ctx context.Context) error {
	token := c.client.Connect()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to broker %s: %w", c.settings.Broker, err)
	}
	return nil
}

// Disconnect closes the broker connection.
func (c *Client) Disconnect() {
	c.client.Disconnect(250)
	c.log.Info("disconnected from broker")
}

// onConnect (re)subscribes after every successful connection, including
// automatic reconnects.
func (c *Client) onConnect(client paho.Client) {
	c.log.Info("connected to broker",
		logger.String("broker", c.settings.Broker),
		logger.String("topic", c.settings.Topic))
	token := client.Subscribe(c.settings.Topic, subscribeQoS, c.handleMessage)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			c.log.Error("failed to subscribe", logger.Error(err))
		}
	}()
}

// handleMessage decodes and ingests one published event. Malformed
// payloads are logged and dropped; the stream keeps flowing.
func (c *Client) handleMessage(_ paho.Client, msg paho.Message) {
	event, err := decodeEvent(msg.Payload())
	if err != nil {
		c.log.Warn("dropping malformed event",
			logger.String("topic", msg.Topic()),
			logger.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	alerts, err := c.sink.Ingest(ctx, event)
	if err != nil {
		c.log.Error("failed to ingest event from broker", logger.Error(err))
		return
	}
	c.log.Debug("event ingested from broker",
		logger.Uint64("event_id", uint64(event.ID)),
		logger.Int("alerts", len(alerts)))
}
