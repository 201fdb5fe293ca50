// Package nats feeds the dispatcher from NATS subjects carrying inbound
// chat messages. When a queue group is configured, multiple daemon
// instances share one subscription for horizontal scaling.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/c360/cmdtree/command"
	"github.com/c360/cmdtree/config"
	"github.com/c360/cmdtree/errors"
	"github.com/c360/cmdtree/input"
	"github.com/c360/cmdtree/metric"
	"github.com/c360/cmdtree/natsclient"
	"github.com/c360/cmdtree/pkg/retry"
	"github.com/c360/cmdtree/service"
)

// Source subscribes to the inbound message subject and submits decoded
// invocations to the dispatcher. Replies ride the request's reply subject
// when one is set, so both fire-and-forget publishes and request/reply
// round trips work over the same subscription.
type Source struct {
	*service.BaseService

	cfg     config.NATSSourceConfig
	client  *natsclient.Client
	sink    input.Submitter
	logger  *slog.Logger
	metrics *sourceMetrics

	subscribed atomic.Bool
}

// Deps holds runtime dependencies for the NATS source.
type Deps struct {
	Config          config.NATSSourceConfig
	Client          *natsclient.Client
	Submitter       input.Submitter
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// New creates a NATS source. The subject falls back to the config
// package default so callers can pass the section as-is.
func New(deps Deps) (*Source, error) {
	if deps.Client == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("nats client is required"),
			"nats_source", "New", "validate dependencies")
	}
	if deps.Submitter == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("submitter is required"),
			"nats_source", "New", "validate dependencies")
	}

	cfg := deps.Config
	if cfg.Subject == "" {
		cfg.Subject = "cmdtree.messages.>"
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "nats_source")
	}

	metrics, err := newSourceMetrics(deps.MetricsRegistry)
	if err != nil {
		logger.Error("Failed to initialize NATS source metrics", "error", err)
		metrics = nil // Continue without metrics
	}

	s := &Source{
		BaseService: service.NewBaseServiceWithOptions("nats-source", nil,
			service.WithNATS(deps.Client),
			service.WithMetrics(deps.MetricsRegistry),
			service.WithLogger(logger)),
		cfg:     cfg,
		client:  deps.Client,
		sink:    deps.Submitter,
		logger:  logger,
		metrics: metrics,
	}
	s.SetHealthCheck(s.healthCheck)

	return s, nil
}

// Start subscribes to the configured subject. The subscription is retried
// briefly so the source survives the narrow window where the daemon
// starts before the NATS connection settles.
func (s *Source) Start(ctx context.Context) error {
	if err := s.BaseService.Start(ctx); err != nil {
		return err
	}

	err := retry.Do(ctx, retry.Quick(), func() error {
		return s.client.QueueSubscribe(ctx, s.cfg.Subject, s.cfg.Queue, s.handle)
	})
	if err != nil {
		return errors.WrapTransient(err, "nats_source", "Start", "subscribe to subject")
	}
	s.subscribed.Store(true)

	s.logger.Info("NATS source started",
		"subject", s.cfg.Subject,
		"queue", s.cfg.Queue)
	return nil
}

// Stop stops accepting messages and shuts the service down. The
// subscription itself is drained when the shared client closes.
func (s *Source) Stop(timeout time.Duration) error {
	s.subscribed.Store(false)

	if err := s.BaseService.Stop(timeout); err != nil {
		return err
	}

	s.logger.Info("NATS source stopped")
	return nil
}

// handle decodes one inbound message and submits it. Malformed payloads
// and refused submissions are dropped here; crashing the subscription
// over one bad message would take every client on the subject with it.
func (s *Source) handle(_ context.Context, data []byte, reply string) {
	if s.Status() != service.StatusRunning {
		return
	}

	msg, err := input.ParseMessage(data)
	if err != nil {
		s.metrics.recordRejected(reasonParse)
		s.logger.Debug("Discarding malformed message", "error", err)
		return
	}

	var replier command.Replier
	if reply != "" {
		replier = &natsReplier{client: s.client, subject: reply, metrics: s.metrics}
	}

	inv := msg.Invocation(replier)
	if err := s.sink.Submit(inv); err != nil {
		switch {
		case errors.IsState(err):
			// Rate-limited clients and a stopped dispatcher refuse cleanly.
			s.metrics.recordRejected(reasonRefused)
			s.logger.Debug("Invocation refused",
				"invocation", inv.ID, "client", inv.Client, "error", err)
		case errors.IsTransient(err):
			s.metrics.recordRejected(reasonDropped)
			s.logger.Warn("Invocation dropped, dispatcher queue full",
				"invocation", inv.ID, "client", inv.Client)
		default:
			s.metrics.recordRejected(reasonError)
			s.logger.Error("Invocation submit failed",
				"invocation", inv.ID, "client", inv.Client, "error", err)
		}
		return
	}

	s.metrics.recordAccepted()
	s.RecordProcessed()
}

// healthCheck reports unhealthy until the subscription is established.
// The embedded service adds the NATS connection check on top.
func (s *Source) healthCheck() error {
	if !s.subscribed.Load() {
		return errors.ErrNotStarted
	}
	return nil
}

// publisher is the slice of the NATS client the replier needs. Tests
// substitute an in-memory transport.
type publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// natsReplier publishes command responses to the reply subject of the
// originating request.
type natsReplier struct {
	client  publisher
	subject string
	metrics *sourceMetrics
}

func (r *natsReplier) Reply(ctx context.Context, text string) error {
	if err := r.client.Publish(ctx, r.subject, []byte(text)); err != nil {
		return errors.WrapTransient(err, "nats_source", "Reply", "publish reply")
	}
	r.metrics.recordReply()
	return nil
}
