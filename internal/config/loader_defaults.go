package config

import "time"

// defaultRedisConfig returns the default Redis configuration
func defaultRedisConfig() RedisConfig {
	return RedisConfig{
		Address:             "localhost:6379",
		Stream:              "syslog-stream",
		Consumer:            "forwarder-1",
		BatchSize:           500,
		BlockTimeout:        5 * time.Second,
		ClaimIdle:           30 * time.Second,
		ConsumerIdleTimeout: 5 * time.Minute,
		CleanupInterval:     1 * time.Minute,
		DialTimeout:         10 * time.Second,
		ReadTimeout:         10 * time.Second,
		WriteTimeout:        5 * time.Second,
		PingTimeout:         5 * time.Second,
	}
}

// defaultMQTTConfig returns the default MQTT configuration
func defaultMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Broker:               "tcp://localhost:1883",
		ClientID:             "syslog-forwarder",
		Topic:                "syslog/remote/messages",
		QoS:                  1,
		ConnectTimeout:       10 * time.Second,
		SubscribeTimeout:     10 * time.Second,
		MaxReconnectInterval: 10 * time.Second,
		DisconnectTimeout:    1000,
	}
}

// defaultPipelineConfig returns the default pipeline configuration
func defaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		BufferCapacity:  10000,
		Workers:         4,
		ShutdownTimeout: 30 * time.Second,
		ErrorBackoff:    1 * time.Second,
		ResumeInterval:  5 * time.Second,
		AckTimeout:      5 * time.Second,
	}
}

// defaultMetricsConfig returns the default metrics configuration (disabled)
func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Address: "",
		Path:    "/metrics",
	}
}

// defaultConfig returns a complete configuration with all default values
func defaultConfig() *Config {
	return &Config{
		Source:      SourceRedis,
		ActionsFile: "/etc/syslog-forwarder/actions.yaml",
		LogLevel:    "",
		Redis:       defaultRedisConfig(),
		MQTT:        defaultMQTTConfig(),
		Pipeline:    defaultPipelineConfig(),
		Metrics:     defaultMetricsConfig(),
	}
}
