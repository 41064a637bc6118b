package mqtt

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/ibs-source/syslog-forwarder/internal/config"
	"github.com/ibs-source/syslog-forwarder/internal/log"
)

// setupIntegrationConfig points at MQTT_TEST_BROKER; the test is skipped when unset
func setupIntegrationConfig(t *testing.T) *config.MQTTConfig {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping MQTT integration test in short mode")
	}
	broker := os.Getenv("MQTT_TEST_BROKER")
	if broker == "" {
		t.Skip("MQTT_TEST_BROKER not set")
	}

	return &config.MQTTConfig{
		Broker:               broker,
		ClientID:             fmt.Sprintf("forwarder-it-%d", time.Now().UnixNano()),
		Topic:                fmt.Sprintf("syslog-forwarder/it/%d", time.Now().UnixNano()),
		QoS:                  1,
		ConnectTimeout:       5 * time.Second,
		SubscribeTimeout:     5 * time.Second,
		MaxReconnectInterval: time.Second,
		DisconnectTimeout:    250,
	}
}

func connectPublisher(t *testing.T, cfg *config.MQTTConfig) paho.Client {
	t.Helper()
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID + "-pub")
	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) || token.Error() != nil {
		t.Fatalf("Failed to connect publisher: %v", token.Error())
	}
	t.Cleanup(func() { client.Disconnect(100) })
	return client
}

func TestIntegration_SubscribeAndRead(t *testing.T) {
	cfg := setupIntegrationConfig(t)

	client, err := NewClient(cfg, 100, 10, log.Discard())
	if err != nil {
		t.Fatalf("Failed to create MQTT client: %v", err)
	}
	defer func() { _ = client.Close() }()

	if err := client.Subscribe(); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	pub := connectPublisher(t, cfg)
	for i := 0; i < 3; i++ {
		payload := fmt.Sprintf(`{"hostname":"it-host","message":"line %d","severity":"info"}`, i)
		token := pub.Publish(cfg.Topic, cfg.QoS, false, payload)
		if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
			t.Fatalf("Publish %d failed: %v", i, token.Error())
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	received := 0
	for received < 3 {
		batch, err := client.ReadBatch(ctx)
		if err != nil {
			t.Fatalf("ReadBatch failed after %d records: %v", received, err)
		}
		for i := range batch.Items {
			if batch.Items[i].Hostname() != "it-host" {
				t.Errorf("unexpected hostname %s", batch.Items[i].Hostname())
			}
		}
		received += len(batch.Items)
	}
}

func TestIntegration_ConnectFailure(t *testing.T) {
	cfg := setupIntegrationConfig(t)
	cfg.Broker = "tcp://127.0.0.1:1"
	cfg.ConnectTimeout = 500 * time.Millisecond

	if _, err := NewClient(cfg, 1, 1, log.Discard()); err == nil {
		t.Error("expected a connection error")
	}
}
