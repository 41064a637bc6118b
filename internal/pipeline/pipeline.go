// Package pipeline moves records from a source through the template renderer into the
// publishing actions, suspending and resuming actions whose transport fails.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ibs-source/syslog-forwarder/internal/config"
	"github.com/ibs-source/syslog-forwarder/internal/fault"
	"github.com/ibs-source/syslog-forwarder/internal/log"
	"github.com/ibs-source/syslog-forwarder/internal/message"
	"github.com/ibs-source/syslog-forwarder/internal/metrics"
)

// Source delivers records and takes them back once every action accepted them
type Source interface {
	ReadBatch(ctx context.Context) (message.Batch, error)
	Ack(ctx context.Context, rec message.Record) error
}

// Reclaimer is implemented by sources that keep unacknowledged records pending
type Reclaimer interface {
	ClaimIdle(ctx context.Context) (message.Batch, error)
	CleanupDeadConsumers(ctx context.Context, idleTimeout time.Duration) error
	RefreshStreams(ctx context.Context) (int, error)
}

// Action is one publishing destination
type Action interface {
	Name() string
	Config() *config.Action
	Publish(rendered []string) error
	Resume() error
}

// Renderer turns a record into the strings an action publishes
type Renderer interface {
	RenderAll(names []string, rec *message.Record) ([]string, error)
}

type target struct {
	action    Action
	templates []string
	suspended atomic.Bool
	disabled  atomic.Bool
}

// Pipeline orchestrates fetch, publish, resume and (for reclaiming sources) claim,
// cleanup and refresh loops
type Pipeline struct {
	source     Source
	sourceName string
	targets    []*target
	renderer   Renderer
	metrics    *metrics.Metrics
	records    chan message.Record
	fatal      chan error

	workers             int
	errorBackoff        time.Duration
	resumeInterval      time.Duration
	ackTimeout          time.Duration
	claimInterval       time.Duration
	cleanupInterval     time.Duration
	consumerIdleTimeout time.Duration
	log                 *log.Logger
}

// New creates a pipeline over source and actions
func New(
	source Source, actions []Action, renderer Renderer, cfg *config.Config, m *metrics.Metrics, logger *log.Logger,
) *Pipeline {
	targets := make([]*target, len(actions))
	for i, a := range actions {
		targets[i] = &target{action: a, templates: a.Config().TemplateNames()}
	}
	workers := cfg.Pipeline.Workers
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		source:              source,
		sourceName:          cfg.Source,
		targets:             targets,
		renderer:            renderer,
		metrics:             m,
		records:             make(chan message.Record, cfg.Pipeline.BufferCapacity),
		fatal:               make(chan error, 1),
		workers:             workers,
		errorBackoff:        cfg.Pipeline.ErrorBackoff,
		resumeInterval:      cfg.Pipeline.ResumeInterval,
		ackTimeout:          cfg.Pipeline.AckTimeout,
		claimInterval:       cfg.Redis.ClaimIdle,
		cleanupInterval:     cfg.Redis.CleanupInterval,
		consumerIdleTimeout: cfg.Redis.ConsumerIdleTimeout,
		log:                 logger,
	}
}

// startLoop starts a loop goroutine and reports non-canceled errors
func (p *Pipeline) startLoop(
	ctx context.Context,
	wg *sync.WaitGroup,
	name string,
	loop func(context.Context) error,
	errCh chan<- error,
) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := loop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("%s loop error: %w", name, err)
		}
	}()
}

// Run blocks until ctx is cancelled, a loop fails or an action is disabled by a fatal
// publish error
func (p *Pipeline) Run(ctx context.Context) error {
	p.log.Info("Starting pipeline with %d actions and %d workers", len(p.targets), p.workers)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 5+p.workers)

	p.startLoop(ctx, &wg, "fetch", p.fetchLoop, errCh)
	p.startLoop(ctx, &wg, "resume", p.resumeLoop, errCh)
	if r, ok := p.source.(Reclaimer); ok {
		p.startLoop(ctx, &wg, "claim", func(ctx context.Context) error { return p.claimLoop(ctx, r) }, errCh)
		p.startLoop(ctx, &wg, "cleanup", func(ctx context.Context) error { return p.cleanupLoop(ctx, r) }, errCh)
		p.startLoop(ctx, &wg, "refresh", func(ctx context.Context) error { return p.refreshLoop(ctx, r) }, errCh)
	}
	for i := 0; i < p.workers; i++ {
		p.startLoop(ctx, &wg, fmt.Sprintf("publish-%d", i), p.publishLoop, errCh)
	}

	var err error
	select {
	case <-ctx.Done():
		p.log.Info("Shutting down pipeline")
		err = ctx.Err()
	case err = <-errCh:
		p.log.Error("Pipeline error: %v", err)
	case err = <-p.fatal:
		p.log.Error("Stopping pipeline: %v", err)
	}
	cancel()
	wg.Wait()
	return err
}

// fetchLoop continuously reads batches from the source
func (p *Pipeline) fetchLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := p.source.ReadBatch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.log.Error("Failed to read batch from %s: %v", p.sourceName, err)
			if err := sleep(ctx, p.errorBackoff); err != nil {
				return err
			}
			continue
		}

		if len(batch.Items) == 0 {
			continue
		}

		p.log.Debug("Fetched %d records from %s", len(batch.Items), p.sourceName)
		p.metrics.RecordsReceived.WithLabelValues(p.sourceName).Add(float64(len(batch.Items)))
		if err := p.enqueue(ctx, batch); err != nil {
			return err
		}
	}
}

func (p *Pipeline) enqueue(ctx context.Context, batch message.Batch) error {
	for i := range batch.Items {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p.records <- batch.Items[i]:
		}
	}
	return nil
}

// publishLoop hands every queued record to each action
func (p *Pipeline) publishLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec := <-p.records:
			p.process(&rec)
		}
	}
}

// process delivers rec to every action and acknowledges it when none is suspended
func (p *Pipeline) process(rec *message.Record) {
	delivered := true
	for _, t := range p.targets {
		if !p.deliver(t, rec) {
			delivered = false
		}
	}
	if !delivered {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.ackTimeout)
	defer cancel()
	if err := p.source.Ack(ctx, *rec); err != nil {
		p.log.Error("Failed to acknowledge record %s from %s: %v", rec.ID, rec.Stream, err)
		return
	}
	p.metrics.RecordsAcked.Inc()
}

// deliver reports false when the record must stay with the source for a retry
func (p *Pipeline) deliver(t *target, rec *message.Record) bool {
	name := t.action.Name()
	if t.disabled.Load() {
		p.metrics.RecordsDropped.WithLabelValues(name, "disabled").Inc()
		return false
	}
	if t.suspended.Load() {
		p.metrics.RecordsDropped.WithLabelValues(name, "suspended").Inc()
		return false
	}

	rendered, err := p.renderer.RenderAll(t.templates, rec)
	if err != nil {
		p.metrics.RenderFailures.WithLabelValues(name).Inc()
		p.metrics.RecordsDropped.WithLabelValues(name, "render").Inc()
		p.log.WarnWithFields(log.Fields{"action": name, "id": rec.ID}, "Failed to render record: %v", err)
		return true
	}

	start := time.Now()
	err = t.action.Publish(rendered)
	p.metrics.PublishDurations.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err == nil {
		p.metrics.MessagesSent.WithLabelValues(name).Inc()
		return true
	}

	kind := fault.KindOf(err)
	p.metrics.PublishFailures.WithLabelValues(name, kind.String()).Inc()
	if kind == fault.ConfigError {
		p.metrics.RecordsDropped.WithLabelValues(name, "rejected").Inc()
		p.log.ErrorWithFields(log.Fields{"action": name, "id": rec.ID}, "Record rejected: %v", err)
		return true
	}
	if fault.IsFatal(err) {
		p.disable(t, err)
		return false
	}

	p.suspend(t, err)
	return false
}

// disable takes t out of service for good; its records stay with the source
func (p *Pipeline) disable(t *target, err error) {
	if t.disabled.Swap(true) {
		return
	}
	name := t.action.Name()
	p.metrics.ActionSuspended.WithLabelValues(name).Set(1)
	p.log.ErrorWithFields(log.Fields{"action": name}, "Action disabled, no retry: %v", err)
	select {
	case p.fatal <- fmt.Errorf("action %s disabled: %w", name, err):
	default:
	}
}

func (p *Pipeline) suspend(t *target, err error) {
	if t.suspended.Swap(true) {
		return
	}
	p.metrics.ActionSuspended.WithLabelValues(t.action.Name()).Set(1)
	p.log.WarnWithFields(log.Fields{"action": t.action.Name()},
		"Action suspended, retrying every %s: %v", p.resumeInterval, err)
}

// resumeLoop periodically rebuilds the sockets of suspended actions
func (p *Pipeline) resumeLoop(ctx context.Context) error {
	ticker := time.NewTicker(p.resumeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.resumeSuspended()
		}
	}
}

func (p *Pipeline) resumeSuspended() {
	for _, t := range p.targets {
		if !t.suspended.Load() || t.disabled.Load() {
			continue
		}
		name := t.action.Name()
		if err := t.action.Resume(); err != nil {
			p.metrics.ResumeAttempts.WithLabelValues(name, "failed").Inc()
			p.log.Debug("Action %s still suspended: %v", name, err)
			continue
		}
		p.metrics.ResumeAttempts.WithLabelValues(name, "ok").Inc()
		p.metrics.ActionSuspended.WithLabelValues(name).Set(0)
		t.suspended.Store(false)
		p.log.Info("Action %s resumed", name)
	}
}

// Suspended lists the names of the actions currently suspended
func (p *Pipeline) Suspended() []string {
	var names []string
	for _, t := range p.targets {
		if t.suspended.Load() {
			names = append(names, t.action.Name())
		}
	}
	return names
}

// Disabled lists the names of the actions stopped by a fatal error
func (p *Pipeline) Disabled() []string {
	var names []string
	for _, t := range p.targets {
		if t.disabled.Load() {
			names = append(names, t.action.Name())
		}
	}
	return names
}

// claimLoop periodically takes over records left pending by dead or suspended readers
func (p *Pipeline) claimLoop(ctx context.Context, r Reclaimer) error {
	ticker := time.NewTicker(p.claimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if len(p.Suspended()) > 0 || len(p.Disabled()) > 0 {
				continue
			}
			batch, err := r.ClaimIdle(ctx)
			if err != nil {
				p.log.Error("Failed to claim idle records: %v", err)
				continue
			}
			if len(batch.Items) == 0 {
				continue
			}
			p.log.Info("Claimed %d idle records", len(batch.Items))
			if err := p.enqueue(ctx, batch); err != nil {
				return err
			}
		}
	}
}

// cleanupLoop periodically removes dead consumers from the consumer groups
func (p *Pipeline) cleanupLoop(ctx context.Context, r Reclaimer) error {
	ticker := time.NewTicker(p.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.CleanupDeadConsumers(ctx, p.consumerIdleTimeout); err != nil {
				p.log.Error("Failed to cleanup dead consumers: %v", err)
			}
		}
	}
}

// refreshLoop periodically picks up new streams; shares the cleanup interval
func (p *Pipeline) refreshLoop(ctx context.Context, r Reclaimer) error {
	ticker := time.NewTicker(p.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			newCount, err := r.RefreshStreams(ctx)
			if err != nil {
				p.log.Error("Failed to refresh streams: %v", err)
				continue
			}
			if newCount > 0 {
				p.log.Info("Stream refresh discovered %d new streams", newCount)
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
