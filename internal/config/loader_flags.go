package config

import (
	"flag"
	"time"
)

// Command line flags (have precedence over environment variables)
var (
	flagSource      *string
	flagActionsFile *string
	flagLogLevel    *string

	flagRedisAddress         *string
	flagRedisStream          *string
	flagRedisConsumer        *string
	flagRedisBatchSize       *int
	flagRedisBlockTimeout    *time.Duration
	flagRedisClaimIdle       *time.Duration
	flagRedisConsumerIdle    *time.Duration
	flagRedisCleanupInterval *time.Duration

	flagMQTTBroker          *string
	flagMQTTClientID        *string
	flagMQTTTopic           *string
	flagMQTTQoS             *int
	flagMQTTConnectTimeout  *time.Duration
	flagMQTTTLSEnabled      *bool
	flagMQTTCACert          *string
	flagMQTTClientCert      *string
	flagMQTTClientKey       *string
	flagMQTTTLSInsecureSkip *bool
	flagMQTTUseCertCNPrefix *bool

	flagPipelineBufferCapacity  *int
	flagPipelineWorkers         *int
	flagPipelineShutdownTimeout *time.Duration
	flagPipelineErrorBackoff    *time.Duration
	flagPipelineResumeInterval  *time.Duration

	flagMetricsAddress *string
	flagMetricsPath    *string
)

func init() {
	registerFlags(flag.CommandLine)
}

// registerFlags defines every configuration flag on fs
func registerFlags(fs *flag.FlagSet) {
	flagSource = fs.String("source", "", "Record source: redis or mqtt")
	flagActionsFile = fs.String("actions", "", "Path of the YAML file with module directives, templates and actions")
	flagLogLevel = fs.String("log-level", "", "Log level (trace, debug, info, warn, error)")

	flagRedisAddress = fs.String("redis-address", "", "Redis address")
	flagRedisStream = fs.String("redis-stream", "", "Redis stream name (empty for multi-stream mode)")
	flagRedisConsumer = fs.String("redis-consumer", "", "Redis consumer name ('auto' generates one)")
	flagRedisBatchSize = fs.Int("redis-batch-size", 0, "Redis batch size")
	flagRedisBlockTimeout = fs.Duration("redis-block-timeout", 0, "Redis block timeout")
	flagRedisClaimIdle = fs.Duration("redis-claim-idle", 0, "Redis claim idle time")
	flagRedisConsumerIdle = fs.Duration("redis-consumer-idle-timeout", 0, "Redis consumer idle timeout")
	flagRedisCleanupInterval = fs.Duration("redis-cleanup-interval", 0, "Redis cleanup interval")

	flagMQTTBroker = fs.String("mqtt-broker", "", "MQTT broker URL")
	flagMQTTClientID = fs.String("mqtt-client-id", "", "MQTT client ID")
	flagMQTTTopic = fs.String("mqtt-topic", "", "MQTT topic to read records from")
	flagMQTTQoS = fs.Int("mqtt-qos", -1, "MQTT QoS (0, 1, or 2)")
	flagMQTTConnectTimeout = fs.Duration("mqtt-connect-timeout", 0, "MQTT connect timeout")
	flagMQTTTLSEnabled = fs.Bool("mqtt-tls-enabled", false, "Enable MQTT TLS")
	flagMQTTCACert = fs.String("mqtt-ca-cert", "", "MQTT CA certificate path")
	flagMQTTClientCert = fs.String("mqtt-client-cert", "", "MQTT client certificate path")
	flagMQTTClientKey = fs.String("mqtt-client-key", "", "MQTT client key path")
	flagMQTTTLSInsecureSkip = fs.Bool("mqtt-tls-insecure-skip", false, "Skip MQTT TLS verification")
	flagMQTTUseCertCNPrefix = fs.Bool("mqtt-use-cert-cn-prefix", false, "Prefix the topic with client cert CN")

	flagPipelineBufferCapacity = fs.Int("pipeline-buffer-capacity", 0, "Pipeline buffer capacity")
	flagPipelineWorkers = fs.Int("pipeline-workers", 0, "Number of concurrent publish workers")
	flagPipelineShutdownTimeout = fs.Duration("pipeline-shutdown-timeout", 0, "Pipeline shutdown timeout")
	flagPipelineErrorBackoff = fs.Duration("pipeline-error-backoff", 0, "Pipeline error backoff")
	flagPipelineResumeInterval = fs.Duration("pipeline-resume-interval", 0, "Delay between resume attempts of a suspended action")

	flagMetricsAddress = fs.String("metrics-address", "", "Listen address of the Prometheus endpoint (empty disables)")
	flagMetricsPath = fs.String("metrics-path", "", "HTTP path of the Prometheus endpoint")
}

func applyGeneralFlags(cfg *Config) {
	if *flagSource != "" {
		cfg.Source = *flagSource
	}
	if *flagActionsFile != "" {
		cfg.ActionsFile = *flagActionsFile
	}
	if *flagLogLevel != "" {
		cfg.LogLevel = *flagLogLevel
	}
}

// applyRedisFlags applies command line flags to Redis configuration
func applyRedisFlags(cfg *RedisConfig) {
	if *flagRedisAddress != "" {
		cfg.Address = *flagRedisAddress
	}
	if *flagRedisStream != "" {
		cfg.Stream = *flagRedisStream
	}
	if *flagRedisConsumer != "" {
		cfg.Consumer = *flagRedisConsumer
	}
	if *flagRedisBatchSize != 0 {
		cfg.BatchSize = *flagRedisBatchSize
	}
	if *flagRedisBlockTimeout != 0 {
		cfg.BlockTimeout = *flagRedisBlockTimeout
	}
	if *flagRedisClaimIdle != 0 {
		cfg.ClaimIdle = *flagRedisClaimIdle
	}
	if *flagRedisConsumerIdle != 0 {
		cfg.ConsumerIdleTimeout = *flagRedisConsumerIdle
	}
	if *flagRedisCleanupInterval != 0 {
		cfg.CleanupInterval = *flagRedisCleanupInterval
	}
}

// applyMQTTFlags applies command line flags to MQTT configuration
func applyMQTTFlags(cfg *MQTTConfig) {
	if *flagMQTTBroker != "" {
		cfg.Broker = *flagMQTTBroker
	}
	if *flagMQTTClientID != "" {
		cfg.ClientID = *flagMQTTClientID
	}
	if *flagMQTTTopic != "" {
		cfg.Topic = *flagMQTTTopic
	}
	if *flagMQTTQoS >= 0 && *flagMQTTQoS <= 2 {
		cfg.QoS = byte(*flagMQTTQoS) // #nosec G115 - validated range 0-2
	}
	if *flagMQTTConnectTimeout != 0 {
		cfg.ConnectTimeout = *flagMQTTConnectTimeout
	}
	if *flagMQTTCACert != "" {
		cfg.CACert = *flagMQTTCACert
	}
	if *flagMQTTClientCert != "" {
		cfg.ClientCert = *flagMQTTClientCert
	}
	if *flagMQTTClientKey != "" {
		cfg.ClientKey = *flagMQTTClientKey
	}
	// Bool flags only override when given explicitly
	if isFlagSet("mqtt-tls-enabled") {
		cfg.TLSEnabled = *flagMQTTTLSEnabled
	}
	if isFlagSet("mqtt-tls-insecure-skip") {
		cfg.InsecureSkip = *flagMQTTTLSInsecureSkip
	}
	if isFlagSet("mqtt-use-cert-cn-prefix") {
		cfg.UseCertCNPrefix = *flagMQTTUseCertCNPrefix
	}
}

// applyPipelineFlags applies command line flags to Pipeline configuration
func applyPipelineFlags(cfg *PipelineConfig) {
	if *flagPipelineBufferCapacity != 0 {
		cfg.BufferCapacity = *flagPipelineBufferCapacity
	}
	if *flagPipelineWorkers != 0 {
		cfg.Workers = *flagPipelineWorkers
	}
	if *flagPipelineShutdownTimeout != 0 {
		cfg.ShutdownTimeout = *flagPipelineShutdownTimeout
	}
	if *flagPipelineErrorBackoff != 0 {
		cfg.ErrorBackoff = *flagPipelineErrorBackoff
	}
	if *flagPipelineResumeInterval != 0 {
		cfg.ResumeInterval = *flagPipelineResumeInterval
	}
}

func applyMetricsFlags(cfg *MetricsConfig) {
	if *flagMetricsAddress != "" {
		cfg.Address = *flagMetricsAddress
	}
	if *flagMetricsPath != "" {
		cfg.Path = *flagMetricsPath
	}
}

// isFlagSet checks if a flag was explicitly set on the command line
func isFlagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
