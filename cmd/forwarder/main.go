// Package main starts the syslog forwarder binary.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ibs-source/syslog-forwarder/internal/auth"
	"github.com/ibs-source/syslog-forwarder/internal/cert"
	"github.com/ibs-source/syslog-forwarder/internal/config"
	"github.com/ibs-source/syslog-forwarder/internal/log"
	"github.com/ibs-source/syslog-forwarder/internal/metrics"
	"github.com/ibs-source/syslog-forwarder/internal/mqtt"
	"github.com/ibs-source/syslog-forwarder/internal/pipeline"
	"github.com/ibs-source/syslog-forwarder/internal/publisher"
	"github.com/ibs-source/syslog-forwarder/internal/redis"
	"github.com/ibs-source/syslog-forwarder/internal/template"
	"github.com/ibs-source/syslog-forwarder/internal/transport/zmq"
)

var keygenPath = flag.String("keygen", "", "Write a new CURVE certificate pair to this path and exit")

// source is a pipeline source owning a connection
type source interface {
	pipeline.Source
	Close() error
}

type services struct {
	module        *publisher.Module
	authenticator *auth.Authenticator
	source        source
	pipeline      *pipeline.Pipeline
	metrics       *metrics.Metrics
	metricsServer *metrics.Server
}

func run() int {
	logger := log.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration: %v", err)
		return 1
	}
	if cfg.LogLevel != "" {
		logger.SetLevel(cfg.LogLevel)
	}

	if *keygenPath != "" {
		return generateCertificate(*keygenPath, logger)
	}

	logger.Info("Starting syslog forwarder")
	logConfig(cfg, logger)

	svc, err := initializeServices(cfg, logger)
	if err != nil {
		logger.Error("%v", err)
		return 1
	}
	defer closeServices(svc, logger)

	return runMainLoop(svc, cfg, logger)
}

func generateCertificate(path string, logger *log.Logger) int {
	c, err := cert.Generate()
	if err != nil {
		logger.Error("Failed to generate certificate: %v", err)
		return 1
	}
	if host, err := os.Hostname(); err == nil {
		c.Metadata["hostname"] = host
	}
	if err := c.Save(path); err != nil {
		logger.Error("Failed to save certificate: %v", err)
		return 1
	}
	logger.Info("Wrote %s and %s%s (public key %s)", path, path, cert.SecretSuffix, c.PublicText())
	return 0
}

func logConfig(cfg *config.Config, logger *log.Logger) {
	logger.Info("Configuration loaded successfully")
	switch cfg.Source {
	case config.SourceRedis:
		logger.Info("Source: Redis %s, Stream: %s (dynamic groups: group-{stream})", cfg.Redis.Address, cfg.Redis.Stream)
	case config.SourceMQTT:
		logger.Info("Source: MQTT %s, Topic: %s", cfg.MQTT.Broker, cfg.MQTT.Topic)
	}
	logger.Info("Actions: %s", cfg.ActionsFile)
	logger.Info("Pipeline: Buffer=%d Workers=%d Resume=%s",
		cfg.Pipeline.BufferCapacity, cfg.Pipeline.Workers, cfg.Pipeline.ResumeInterval)
}

func initializeServices(cfg *config.Config, logger *log.Logger) (*services, error) {
	fw, err := config.LoadForwarding(cfg.ActionsFile)
	if err != nil {
		return nil, err
	}

	renderer, err := template.New(fw.Templates)
	if err != nil {
		return nil, err
	}
	for _, a := range fw.Actions {
		if err := renderer.Check(a.TemplateNames()...); err != nil {
			return nil, err
		}
	}

	svc := &services{metrics: metrics.New()}
	if cfg.Metrics.Address != "" {
		svc.metricsServer = metrics.NewServer(cfg.Metrics.Address, cfg.Metrics.Path, svc.metrics, logger)
		if err := svc.metricsServer.Start(); err != nil {
			return nil, err
		}
	}

	svc.authenticator = auth.New(&zmq.ZapBackend{Verbose: cfg.LogLevel == "debug" || cfg.LogLevel == "trace"}, logger)
	svc.module = publisher.NewModule(fw.Security, zmq.NewFactory(), svc.authenticator, logger)
	if err := svc.module.Activate(); err != nil {
		closeServices(svc, logger)
		return nil, err
	}

	actions := make([]pipeline.Action, 0, len(fw.Actions))
	for _, a := range fw.Actions {
		action, err := svc.module.NewAction(a)
		if err != nil {
			closeServices(svc, logger)
			return nil, err
		}
		actions = append(actions, action)
	}
	logger.Info("Configured %d actions (security %s)", len(actions), fw.Security.Mode)

	svc.source, err = openSource(cfg, logger)
	if err != nil {
		closeServices(svc, logger)
		return nil, err
	}

	svc.pipeline = pipeline.New(svc.source, actions, renderer, cfg, svc.metrics, logger)
	return svc, nil
}

func openSource(cfg *config.Config, logger *log.Logger) (source, error) {
	if cfg.Source == config.SourceMQTT {
		// The read batch size is shared with the Redis reader
		client, err := mqtt.NewClient(&cfg.MQTT, cfg.Pipeline.BufferCapacity, cfg.Redis.BatchSize, logger)
		if err != nil {
			return nil, err
		}
		if err := client.Subscribe(); err != nil {
			_ = client.Close()
			return nil, err
		}
		logger.Info("Connected to MQTT broker")
		return client, nil
	}

	client, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Connected to Redis")
	return client, nil
}

func closeServices(svc *services, logger *log.Logger) {
	if svc.source != nil {
		if err := svc.source.Close(); err != nil {
			logger.Error("Error closing source: %v", err)
		}
	}
	if svc.module != nil {
		svc.module.Teardown()
	}
	if svc.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := svc.metricsServer.Stop(ctx); err != nil {
			logger.Error("Error stopping metrics server: %v", err)
		}
	}
}

func runMainLoop(svc *services, cfg *config.Config, logger *log.Logger) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	done := make(chan error, 1)
	go func() {
		done <- svc.pipeline.Run(ctx)
	}()

	logger.Info("Pipeline started")

	for {
		select {
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				reloadAuthenticator(svc, logger)
				continue
			}
			logger.Info("Received signal %v, initiating graceful shutdown", sig)
			cancel()
			return handleGracefulShutdown(done, cfg, logger)

		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Pipeline error: %v", err)
				return 1
			}
			return 0
		}
	}
}

func reloadAuthenticator(svc *services, logger *log.Logger) {
	if !svc.authenticator.Running() {
		logger.Info("SIGHUP ignored: authenticator not running")
		return
	}
	if err := svc.authenticator.Reload(); err != nil {
		svc.metrics.AuthReloads.WithLabelValues("failed").Inc()
		logger.Error("Authenticator reload failed: %v", err)
		return
	}
	svc.metrics.AuthReloads.WithLabelValues("ok").Inc()
	logger.Info("Authenticator certificates reloaded")
}

func handleGracefulShutdown(done <-chan error, cfg *config.Config, logger *log.Logger) int {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Pipeline.ShutdownTimeout)
	defer shutdownCancel()

	select {
	case <-done:
		logger.Info("Graceful shutdown completed")
		logger.Info("Forwarder stopped")
		return 0
	case <-shutdownCtx.Done():
		logger.Error("Shutdown timeout exceeded")
		return 1
	}
}

func main() {
	// Keep main minimal to ensure defers in run() execute correctly.
	os.Exit(run())
}
