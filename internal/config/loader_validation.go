package config

import "fmt"

// Validate checks configuration constraints
func Validate(cfg *Config) error {
	if cfg.ActionsFile == "" {
		return fmt.Errorf("actions file cannot be empty")
	}
	switch cfg.Source {
	case SourceRedis:
		if err := validateRedis(&cfg.Redis); err != nil {
			return err
		}
	case SourceMQTT:
		if err := validateMQTT(&cfg.MQTT); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown source %q (want %s or %s)", cfg.Source, SourceRedis, SourceMQTT)
	}
	if err := validatePipeline(&cfg.Pipeline); err != nil {
		return err
	}
	return validateMetrics(&cfg.Metrics)
}

// validateRedis validates Redis configuration
func validateRedis(cfg *RedisConfig) error {
	if cfg.Address == "" {
		return fmt.Errorf("redis address cannot be empty")
	}
	if cfg.Consumer == "" {
		return fmt.Errorf("redis consumer name cannot be empty")
	}
	if cfg.BatchSize < 1 {
		return fmt.Errorf("redis batch size must be positive")
	}
	if cfg.ClaimIdle <= 0 {
		return fmt.Errorf("redis claim idle must be positive")
	}
	if cfg.CleanupInterval <= 0 {
		return fmt.Errorf("redis cleanup interval must be positive")
	}
	return nil
}

// validateMQTT validates MQTT configuration
func validateMQTT(cfg *MQTTConfig) error {
	if cfg.Broker == "" {
		return fmt.Errorf("mqtt broker cannot be empty")
	}
	if cfg.ClientID == "" {
		return fmt.Errorf("mqtt client ID cannot be empty")
	}
	if cfg.Topic == "" {
		return fmt.Errorf("mqtt topic cannot be empty")
	}
	if cfg.QoS > 2 {
		return fmt.Errorf("mqtt qos must be 0, 1 or 2")
	}
	return nil
}

// validatePipeline validates Pipeline configuration
func validatePipeline(cfg *PipelineConfig) error {
	if cfg.BufferCapacity < 1 {
		return fmt.Errorf("pipeline buffer capacity must be positive")
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("pipeline workers must be positive")
	}
	if cfg.ResumeInterval <= 0 {
		return fmt.Errorf("pipeline resume interval must be positive")
	}
	return nil
}

func validateMetrics(cfg *MetricsConfig) error {
	if cfg.Address != "" && cfg.Path == "" {
		return fmt.Errorf("metrics path cannot be empty")
	}
	return nil
}
