// Package config provides daemon configuration from defaults, environment variables and
// command line flags, plus the directive model of the forwarding actions.
package config

import "time"

// Record sources
const (
	SourceRedis = "redis"
	SourceMQTT  = "mqtt"
)

// Config holds the complete daemon configuration
type Config struct {
	// Source selects where records are read from: "redis" or "mqtt"
	Source string
	// ActionsFile is the YAML file with module directives, templates and actions
	ActionsFile string
	LogLevel    string
	Redis       RedisConfig
	MQTT        MQTTConfig
	Pipeline    PipelineConfig
	Metrics     MetricsConfig
}

// RedisConfig holds Redis stream consumer configuration
type RedisConfig struct {
	Address             string
	Stream              string
	Consumer            string
	BatchSize           int
	BlockTimeout        time.Duration
	ClaimIdle           time.Duration
	ConsumerIdleTimeout time.Duration
	CleanupInterval     time.Duration
	DialTimeout         time.Duration
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	PingTimeout         time.Duration
}

// MQTTConfig holds the MQTT subscription source configuration
type MQTTConfig struct {
	Broker               string
	ClientID             string
	Topic                string
	QoS                  byte
	ConnectTimeout       time.Duration
	SubscribeTimeout     time.Duration
	MaxReconnectInterval time.Duration
	DisconnectTimeout    uint // Milliseconds for graceful disconnect
	// TLS Configuration
	TLSEnabled      bool
	CACert          string
	ClientCert      string
	ClientKey       string
	InsecureSkip    bool
	UseCertCNPrefix bool // If true, prefix the topic with cert CN for ACL constraints
}

// PipelineConfig holds host pipeline settings
type PipelineConfig struct {
	BufferCapacity  int
	Workers         int
	ShutdownTimeout time.Duration
	ErrorBackoff    time.Duration // Backoff after a failed source read
	ResumeInterval  time.Duration // Delay between resume attempts of a suspended action
	AckTimeout      time.Duration
}

// MetricsConfig holds the Prometheus endpoint settings. An empty Address disables it.
type MetricsConfig struct {
	Address string
	Path    string
}
