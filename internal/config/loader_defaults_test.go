package config

import (
	"testing"
	"time"
)

func TestDefaultRedisConfig(t *testing.T) {
	cfg := defaultRedisConfig()

	if cfg.Address != testRedisAddr {
		t.Errorf("Address = %s; want %s", cfg.Address, testRedisAddr)
	}
	if cfg.Consumer != "forwarder-1" {
		t.Errorf("Consumer = %s; want forwarder-1", cfg.Consumer)
	}
	if cfg.ClaimIdle != 30*time.Second {
		t.Errorf("ClaimIdle = %v; want 30s", cfg.ClaimIdle)
	}
	if cfg.ConsumerIdleTimeout != 5*time.Minute {
		t.Errorf("ConsumerIdleTimeout = %v; want 5m", cfg.ConsumerIdleTimeout)
	}
}

func TestDefaultMQTTConfig(t *testing.T) {
	cfg := defaultMQTTConfig()

	if cfg.Topic != "syslog/remote/messages" {
		t.Errorf("Topic = %s; want syslog/remote/messages", cfg.Topic)
	}
	if cfg.QoS != 1 {
		t.Errorf("QoS = %d; want 1", cfg.QoS)
	}
	if cfg.TLSEnabled {
		t.Error("TLSEnabled = true; want false")
	}
}

func TestDefaultPipelineConfig(t *testing.T) {
	cfg := defaultPipelineConfig()

	tests := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"ShutdownTimeout", cfg.ShutdownTimeout, 30 * time.Second},
		{"ErrorBackoff", cfg.ErrorBackoff, time.Second},
		{"ResumeInterval", cfg.ResumeInterval, 5 * time.Second},
		{"AckTimeout", cfg.AckTimeout, 5 * time.Second},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v; want %v", tt.name, tt.got, tt.want)
		}
	}
	if cfg.BufferCapacity != 10000 {
		t.Errorf("BufferCapacity = %d; want 10000", cfg.BufferCapacity)
	}
}

func TestDefaultConfig_IsValid(t *testing.T) {
	if err := Validate(defaultConfig()); err != nil {
		t.Errorf("Validate(defaultConfig()) = %v; want nil", err)
	}
	if defaultMetricsConfig().Address != "" {
		t.Error("metrics endpoint should be disabled by default")
	}
}
