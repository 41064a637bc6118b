package config

import (
	"os"
	"strconv"
	"time"
)

// loadGeneralFromEnv loads top-level settings from environment variables
func loadGeneralFromEnv(cfg *Config) {
	if v := getEnvString("FORWARDER_SOURCE"); v != "" {
		cfg.Source = v
	}
	if v := getEnvString("FORWARDER_ACTIONS_FILE"); v != "" {
		cfg.ActionsFile = v
	}
	if v := getEnvString("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// loadRedisFromEnv loads Redis configuration from environment variables
func loadRedisFromEnv(cfg *RedisConfig) {
	if v := getEnvString("REDIS_ADDRESS"); v != "" {
		cfg.Address = v
	}
	if v := getEnvString("REDIS_STREAM"); v != "" {
		cfg.Stream = v
	}
	if v := getEnvString("REDIS_CONSUMER"); v != "" {
		cfg.Consumer = v
	}
	if v := getEnvInt("REDIS_BATCH_SIZE"); v != 0 {
		cfg.BatchSize = v
	}
	loadRedisTimeouts(cfg)
}

func loadRedisTimeouts(cfg *RedisConfig) {
	durations := map[string]*time.Duration{
		"REDIS_BLOCK_TIMEOUT":         &cfg.BlockTimeout,
		"REDIS_CLAIM_IDLE":            &cfg.ClaimIdle,
		"REDIS_CONSUMER_IDLE_TIMEOUT": &cfg.ConsumerIdleTimeout,
		"REDIS_CLEANUP_INTERVAL":      &cfg.CleanupInterval,
		"REDIS_DIAL_TIMEOUT":          &cfg.DialTimeout,
		"REDIS_READ_TIMEOUT":          &cfg.ReadTimeout,
		"REDIS_WRITE_TIMEOUT":         &cfg.WriteTimeout,
		"REDIS_PING_TIMEOUT":          &cfg.PingTimeout,
	}
	for key, dst := range durations {
		if v := getEnvDuration(key); v != 0 {
			*dst = v
		}
	}
}

// loadMQTTFromEnv loads MQTT configuration from environment variables
func loadMQTTFromEnv(cfg *MQTTConfig) {
	if v := getEnvString("MQTT_BROKER"); v != "" {
		cfg.Broker = v
	}
	if v := getEnvString("MQTT_CLIENT_ID"); v != "" {
		cfg.ClientID = v
	}
	if v := getEnvString("MQTT_TOPIC"); v != "" {
		cfg.Topic = v
	}
	if v, ok := lookupEnvInt("MQTT_QOS"); ok && v >= 0 && v <= 2 {
		cfg.QoS = byte(v) // #nosec G115 - validated range 0-2
	}
	if v := getEnvInt("MQTT_DISCONNECT_TIMEOUT"); v > 0 {
		cfg.DisconnectTimeout = uint(v) // #nosec G115 - positive
	}
	if v := getEnvDuration("MQTT_CONNECT_TIMEOUT"); v != 0 {
		cfg.ConnectTimeout = v
	}
	if v := getEnvDuration("MQTT_SUBSCRIBE_TIMEOUT"); v != 0 {
		cfg.SubscribeTimeout = v
	}
	if v := getEnvDuration("MQTT_MAX_RECONNECT_INTERVAL"); v != 0 {
		cfg.MaxReconnectInterval = v
	}
	loadMQTTTLS(cfg)
}

func loadMQTTTLS(cfg *MQTTConfig) {
	if v := getEnvString("MQTT_CA_CERT"); v != "" {
		cfg.CACert = v
	}
	if v := getEnvString("MQTT_CLIENT_CERT"); v != "" {
		cfg.ClientCert = v
	}
	if v := getEnvString("MQTT_CLIENT_KEY"); v != "" {
		cfg.ClientKey = v
	}
	if getEnvBool("MQTT_TLS_ENABLED") {
		cfg.TLSEnabled = true
	}
	if getEnvBool("MQTT_TLS_INSECURE_SKIP") {
		cfg.InsecureSkip = true
	}
	if getEnvBool("MQTT_USE_CERT_CN_PREFIX") {
		cfg.UseCertCNPrefix = true
	}
}

// loadPipelineFromEnv loads Pipeline configuration from environment variables
func loadPipelineFromEnv(cfg *PipelineConfig) {
	if v := getEnvInt("PIPELINE_BUFFER_CAPACITY"); v != 0 {
		cfg.BufferCapacity = v
	}
	if v := getEnvInt("PIPELINE_WORKERS"); v != 0 {
		cfg.Workers = v
	}
	if v := getEnvDuration("PIPELINE_SHUTDOWN_TIMEOUT"); v != 0 {
		cfg.ShutdownTimeout = v
	}
	if v := getEnvDuration("PIPELINE_ERROR_BACKOFF"); v != 0 {
		cfg.ErrorBackoff = v
	}
	if v := getEnvDuration("PIPELINE_RESUME_INTERVAL"); v != 0 {
		cfg.ResumeInterval = v
	}
	if v := getEnvDuration("PIPELINE_ACK_TIMEOUT"); v != 0 {
		cfg.AckTimeout = v
	}
}

// loadMetricsFromEnv loads metrics configuration from environment variables
func loadMetricsFromEnv(cfg *MetricsConfig) {
	if v := getEnvString("METRICS_ADDRESS"); v != "" {
		cfg.Address = v
	}
	if v := getEnvString("METRICS_PATH"); v != "" {
		cfg.Path = v
	}
}

// Helper functions for reading environment variables

func getEnvString(key string) string {
	return os.Getenv(key)
}

func getEnvInt(key string) int {
	v, _ := lookupEnvInt(key)
	return v
}

// lookupEnvInt distinguishes an explicit "0" from an unset or malformed value
func lookupEnvInt(key string) (int, bool) {
	value := os.Getenv(key)
	if value == "" {
		return 0, false
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return intValue, true
}

func getEnvDuration(key string) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return 0
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return duration
}

func getEnvBool(key string) bool {
	return os.Getenv(key) == "true"
}
