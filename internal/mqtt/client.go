// Package mqtt subscribes to an MQTT topic and turns every publication into a syslog
// record for the forwarding pipeline.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ibs-source/syslog-forwarder/internal/config"
	"github.com/ibs-source/syslog-forwarder/internal/log"
	"github.com/ibs-source/syslog-forwarder/internal/message"
)

// ErrClosed is returned by ReadBatch once the client is closed
var ErrClosed = errors.New("mqtt source closed")

// Client is a record source fed by an MQTT subscription
type Client struct {
	client            mqtt.Client
	topic             string
	qos               byte
	subscribeTimeout  time.Duration
	disconnectTimeout uint
	batchSize         int
	records           chan message.Record
	subscribed        atomic.Bool
	invalid           atomic.Uint64
	done              chan struct{}
	closeOnce         sync.Once
	log               *log.Logger
}

// NewClient connects to the broker. Records are buffered up to bufferCapacity and
// handed out in batches of at most batchSize.
func NewClient(cfg *config.MQTTConfig, bufferCapacity, batchSize int, logger *log.Logger) (*Client, error) {
	c := newClient(cfg, bufferCapacity, batchSize, logger)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(cfg.MaxReconnectInterval)

	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetMessageChannelDepth(uint(bufferCapacity)) // #nosec G115 - validated positive
	opts.SetOrderMatters(false)

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		if err != nil {
			logger.Error("MQTT connection lost: %v", err)
		}
	})

	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		logger.Info("MQTT reconnecting...")
	})

	// A clean session drops subscriptions, so they are renewed on every reconnect
	opts.SetOnConnectHandler(func(cl mqtt.Client) {
		logger.Info("MQTT connected successfully")
		if c.subscribed.Load() {
			go c.resubscribe(cl)
		}
	})

	if cfg.TLSEnabled {
		tlsConfig, err := newTLSConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts.SetTLSConfig(tlsConfig)
	}

	client := mqtt.NewClient(opts)
	if err := connect(client, cfg.ConnectTimeout); err != nil {
		return nil, err
	}
	c.client = client
	return c, nil
}

// connect waits for the first connection and tears the client down when it fails,
// stopping any connect attempt still running in the background
func connect(client mqtt.Client, timeout time.Duration) error {
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		client.Disconnect(0)
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return fmt.Errorf("failed to connect to MQTT: %w", err)
	}
	return nil
}

func newClient(cfg *config.MQTTConfig, bufferCapacity, batchSize int, logger *log.Logger) *Client {
	if bufferCapacity < 1 {
		bufferCapacity = 1
	}
	if batchSize < 1 {
		batchSize = 1
	}
	return &Client{
		topic:             cfg.Topic,
		qos:               cfg.QoS,
		subscribeTimeout:  cfg.SubscribeTimeout,
		disconnectTimeout: cfg.DisconnectTimeout,
		batchSize:         batchSize,
		records:           make(chan message.Record, bufferCapacity),
		done:              make(chan struct{}),
		log:               logger,
	}
}

// newTLSConfig creates a TLS configuration from MQTT config
func newTLSConfig(cfg *config.MQTTConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkip, // #nosec G402 - configurable for testing environments
		MinVersion:         tls.VersionTLS12,
	}

	if cfg.CACert != "" {
		caCert, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA cert: %w", err)
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA cert")
		}
		tlsConfig.RootCAs = caCertPool
	}

	if cfg.ClientCert != "" && cfg.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load client cert/key: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// Subscribe starts receiving records from the configured topic
func (c *Client) Subscribe() error {
	token := c.client.Subscribe(c.topic, c.qos, func(_ mqtt.Client, msg mqtt.Message) {
		c.handleMessage(msg.Payload())
	})

	if !token.WaitTimeout(c.subscribeTimeout) {
		return fmt.Errorf("mqtt subscription timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", c.topic, err)
	}

	c.subscribed.Store(true)
	c.log.Info("Subscribed to MQTT topic %s (QoS %d)", c.topic, c.qos)
	return nil
}

func (c *Client) resubscribe(cl mqtt.Client) {
	token := cl.Subscribe(c.topic, c.qos, func(_ mqtt.Client, msg mqtt.Message) {
		c.handleMessage(msg.Payload())
	})
	if !token.WaitTimeout(c.subscribeTimeout) {
		c.log.Error("MQTT resubscription to %s timed out", c.topic)
		return
	}
	if err := token.Error(); err != nil {
		c.log.Error("MQTT resubscription to %s failed: %v", c.topic, err)
	}
}

// handleMessage decodes one publication and queues it. It blocks while the buffer is
// full so the broker sees backpressure instead of losing records.
func (c *Client) handleMessage(payload []byte) {
	rec, err := message.FromJSON(payload)
	if err != nil {
		c.invalid.Add(1)
		c.log.Warn("Skipping invalid MQTT payload: %v", err)
		return
	}

	select {
	case c.records <- rec:
	case <-c.done:
	}
}

// Invalid returns how many publications could not be decoded
func (c *Client) Invalid() uint64 {
	return c.invalid.Load()
}

// ReadBatch waits for at least one record and returns everything already buffered,
// up to the batch size
func (c *Client) ReadBatch(ctx context.Context) (message.Batch, error) {
	var first message.Record
	select {
	case <-ctx.Done():
		return message.Batch{}, ctx.Err()
	case <-c.done:
		return message.Batch{}, ErrClosed
	case first = <-c.records:
	}

	items := make([]message.Record, 1, c.batchSize)
	items[0] = first
	for len(items) < c.batchSize {
		select {
		case rec := <-c.records:
			items = append(items, rec)
		default:
			return message.Batch{Items: items}, nil
		}
	}
	return message.Batch{Items: items}, nil
}

// Ack is a no-op: the broker acknowledgement happens when the record is queued
func (c *Client) Ack(_ context.Context, _ message.Record) error {
	return nil
}

// Close disconnects from the broker and releases blocked readers and handlers
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.client != nil && c.client.IsConnected() {
			c.client.Disconnect(c.disconnectTimeout)
		}
	})
	return nil
}
