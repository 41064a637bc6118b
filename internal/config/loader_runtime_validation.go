package config

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// AutoConsumer asks for a generated, process-unique Redis consumer name
const AutoConsumer = "auto"

// applyRuntimeValidation resolves values that depend on the host or the filesystem
func applyRuntimeValidation(cfg *Config) error {
	if cfg.ActionsFile != "" {
		abs, err := filepath.Abs(cfg.ActionsFile)
		if err != nil {
			return fmt.Errorf("failed to resolve actions file: %w", err)
		}
		cfg.ActionsFile = abs
	}
	if cfg.Redis.Consumer == AutoConsumer {
		cfg.Redis.Consumer = generateConsumerName()
	}
	return applyTopicPrefix(cfg)
}

// generateConsumerName builds "<hostname>-<random>" so that restarted processes
// never collide with their own idle predecessors in the consumer group
func generateConsumerName() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "forwarder"
	}
	return hostname + "-" + uuid.NewString()[:8]
}

// applyTopicPrefix prefixes the MQTT subscription topic with the client certificate CN
func applyTopicPrefix(cfg *Config) error {
	if !cfg.MQTT.UseCertCNPrefix || cfg.MQTT.ClientCert == "" {
		return nil
	}
	cn, err := commonName(cfg.MQTT.ClientCert)
	if err != nil {
		return fmt.Errorf("failed to extract CN from certificate: %w", err)
	}
	cfg.MQTT.Topic = cn + "/" + cfg.MQTT.Topic
	return nil
}

// commonName returns the subject CN of a PEM certificate file
func commonName(certPath string) (string, error) {
	certPEM, err := os.ReadFile(certPath) // #nosec G304 - certPath is from config, not user input
	if err != nil {
		return "", fmt.Errorf("failed to read certificate: %w", err)
	}
	block, _ := pem.Decode(certPEM)
	if block == nil {
		return "", fmt.Errorf("failed to decode PEM certificate")
	}
	parsed, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return "", fmt.Errorf("failed to parse certificate: %w", err)
	}
	if parsed.Subject.CommonName == "" {
		return "", fmt.Errorf("certificate has no CN")
	}
	return parsed.Subject.CommonName, nil
}
