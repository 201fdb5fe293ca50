package dispatch

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/c360/cmdtree/command"
	"github.com/c360/cmdtree/config"
	"github.com/c360/cmdtree/errors"
	"github.com/c360/cmdtree/metric"
	"github.com/c360/cmdtree/pkg/worker"
	"github.com/c360/cmdtree/registry"
	"github.com/c360/cmdtree/service"
)

// Execution outcome labels. Failure outcomes reuse FailureReason strings.
const (
	outcomeSuccess = "success"
	outcomeUnknown = "unknown"
	outcomeEmpty   = "empty"
)

// Dispatcher runs the invocation pipeline: tokenize the message, resolve
// the signature at the client's root, gate on enablement and context
// checks, descend into sub-commands, then execute on a bounded worker
// pool. One panicking command never takes a worker down.
type Dispatcher struct {
	*service.BaseService

	directory *registry.Directory
	cfg       config.DispatcherConfig
	logger    *slog.Logger
	metrics   *dispatchMetrics

	// Worker pool (fresh instance per Start)
	mu   sync.RWMutex
	pool *worker.Pool[*command.Invocation]

	// Per-client rate limiters, created on first use
	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

// Deps holds runtime dependencies for the dispatcher.
type Deps struct {
	Config          config.DispatcherConfig
	Directory       *registry.Directory
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// New creates a dispatcher. Zero config values fall back to the defaults
// from the config package so callers can pass the section as-is.
func New(deps Deps) (*Dispatcher, error) {
	if deps.Directory == nil {
		return nil, errors.WrapInvalid(errors.ErrNilRegistry, "dispatch", "New", "directory required")
	}

	cfg := deps.Config
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.ExecTimeout <= 0 {
		cfg.ExecTimeout = 30 * time.Second
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "dispatch")
	}

	metrics, err := newDispatchMetrics(deps.MetricsRegistry)
	if err != nil {
		logger.Error("Failed to initialize dispatch metrics", "error", err)
		metrics = nil // Continue without metrics
	}

	d := &Dispatcher{
		BaseService: service.NewBaseServiceWithOptions("dispatcher", nil,
			service.WithMetrics(deps.MetricsRegistry),
			service.WithLogger(logger)),
		directory: deps.Directory,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
		limiters:  make(map[string]*rate.Limiter),
	}
	d.SetHealthCheck(d.healthCheck)

	return d, nil
}

// Start brings up the worker pool and begins accepting invocations.
func (d *Dispatcher) Start(ctx context.Context) error {
	if err := d.BaseService.Start(ctx); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pool != nil {
		return errors.WrapState(errors.ErrAlreadyStarted, "dispatch", "Start", "worker pool running")
	}

	pool := worker.NewPool(d.cfg.Workers, d.cfg.QueueSize, d.process)
	if err := pool.Start(ctx); err != nil {
		return errors.WrapFatal(err, "dispatch", "Start", "worker pool startup")
	}
	d.pool = pool

	d.logger.Info("Dispatcher started",
		"workers", d.cfg.Workers,
		"queue_size", d.cfg.QueueSize,
		"exec_timeout", d.cfg.ExecTimeout)
	return nil
}

// Stop drains the worker pool and stops the service.
func (d *Dispatcher) Stop(timeout time.Duration) error {
	d.mu.Lock()
	pool := d.pool
	d.pool = nil
	d.mu.Unlock()

	if pool != nil {
		if err := pool.Stop(timeout); err != nil {
			d.logger.Warn("Worker pool stop timeout", "error", err, "timeout", timeout)
		}
	}

	if err := d.BaseService.Stop(timeout); err != nil {
		return err
	}

	d.logger.Info("Dispatcher stopped")
	return nil
}

// Submit enqueues one invocation for processing. The dispatcher assigns
// the ID and timestamp when the source left them empty. Submission is
// non-blocking: a full queue or a rate-limited client rejects the
// invocation instead of stalling the transport.
func (d *Dispatcher) Submit(inv *command.Invocation) error {
	const op = "Submit"

	if inv == nil {
		return errors.WrapInvalid(fmt.Errorf("invocation is nil"), "dispatch", op, "validate invocation")
	}

	d.mu.RLock()
	pool := d.pool
	d.mu.RUnlock()
	if pool == nil {
		return errors.WrapState(errors.ErrNotStarted, "dispatch", op, "enqueue invocation")
	}

	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.At.IsZero() {
		inv.At = time.Now()
	}

	if d.cfg.RateLimit.Enabled && !d.limiter(inv.Client).Allow() {
		d.metrics.recordRateLimited()
		d.logger.Debug("Invocation rate limited", "invocation", inv.ID, "client", inv.Client)
		return errors.WrapState(errors.ErrRateLimited, "dispatch", op,
			fmt.Sprintf("client %s", inv.Client))
	}

	if err := pool.Submit(inv); err != nil {
		if stderrors.Is(err, worker.ErrQueueFull) {
			d.metrics.recordDropped()
			d.logger.Debug("Worker queue full, invocation dropped",
				"invocation", inv.ID, "client", inv.Client)
		}
		return errors.WrapTransient(err, "dispatch", op, "enqueue invocation")
	}

	d.metrics.recordReceived(pool.Stats().QueueDepth)
	return nil
}

// Stats returns a snapshot of the worker pool counters, or the zero value
// when the dispatcher is not running.
func (d *Dispatcher) Stats() worker.PoolStats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.pool == nil {
		return worker.PoolStats{}
	}
	return d.pool.Stats()
}

// limiter returns the client's rate limiter, creating it on first use.
func (d *Dispatcher) limiter(client string) *rate.Limiter {
	d.limiterMu.Lock()
	defer d.limiterMu.Unlock()

	l := d.limiters[client]
	if l == nil {
		l = rate.NewLimiter(rate.Limit(d.cfg.RateLimit.Rate), d.cfg.RateLimit.Burst)
		d.limiters[client] = l
	}
	return l
}

// process runs the pipeline for one invocation on a pool worker. A nil
// return means the invocation was handled, even when the handling was a
// refusal; only handler errors and panics count as processing failures.
func (d *Dispatcher) process(ctx context.Context, inv *command.Invocation) error {
	start := time.Now()
	outcome := outcomeUnknown
	defer func() {
		d.metrics.recordExecution(outcome, time.Since(start))
		d.RecordProcessed()
	}()

	fields := strings.Fields(inv.Content)
	if len(fields) == 0 {
		outcome = outcomeEmpty
		d.logger.Debug("Invocation has no content", "invocation", inv.ID, "client", inv.Client)
		return nil
	}
	inv.Signature = fields[0]
	inv.Args = fields[1:]

	root := d.directory.Registry(inv.Client)
	cmd, ok := root.Resolve(inv.Signature)
	if !ok {
		d.logger.Debug("No command matches signature",
			"invocation", inv.ID, "client", inv.Client, "signature", inv.Signature)
		return nil
	}

	// Gates walk the owner chain of the matched command, not the root.
	owner, _ := cmd.Owner().(*registry.Node)

	if !cmd.Enabled() || (owner != nil && !owner.EffectivelyEnabled()) {
		outcome = command.FailureDisabled.String()
		d.notifyFailure(ctx, cmd, inv, command.FailureDisabled)
		d.logger.Debug("Command disabled",
			"invocation", inv.ID, "command", cmd.Name(), "signature", inv.Signature)
		return nil
	}

	if owner != nil && !owner.ContextCheck(inv) {
		outcome = command.FailureContextDenied.String()
		d.notifyFailure(ctx, cmd, inv, command.FailureContextDenied)
		d.logger.Debug("Context check denied invocation",
			"invocation", inv.ID, "command", cmd.Name(), "author", inv.Author)
		return nil
	}

	// Descend into sub-commands, consuming one argument token per level.
	for len(inv.Args) > 0 {
		sub := command.SubCommandByAlias(cmd, inv.Args[0])
		if sub == nil {
			break
		}
		inv.Args = inv.Args[1:]
		cmd = sub
		if !cmd.Enabled() {
			outcome = command.FailureDisabled.String()
			d.notifyFailure(ctx, cmd, inv, command.FailureDisabled)
			d.logger.Debug("Sub-command disabled", "invocation", inv.ID, "command", cmd.Name())
			return nil
		}
	}

	execCtx, cancel := context.WithTimeout(ctx, d.cfg.ExecTimeout)
	defer cancel()

	panicked, execErr := runCommand(execCtx, cmd, inv)

	switch {
	case panicked:
		outcome = command.FailurePanic.String()
		d.notifyFailure(ctx, cmd, inv, command.FailurePanic)
		d.logger.Error("Command panicked",
			"invocation", inv.ID, "command", cmd.Name(), "error", execErr)
		return execErr
	case execErr != nil:
		outcome = command.FailureHandlerError.String()
		d.notifyFailure(ctx, cmd, inv, command.FailureHandlerError)
		d.logger.Error("Command failed",
			"invocation", inv.ID, "command", cmd.Name(), "error", execErr)
		return execErr
	}

	outcome = outcomeSuccess
	d.notifySuccess(ctx, cmd, inv)
	d.logger.Debug("Command executed",
		"invocation", inv.ID, "command", cmd.Name(), "duration", time.Since(start))
	return nil
}

// runCommand executes cmd and converts a panic into an error.
func runCommand(ctx context.Context, cmd command.Command, inv *command.Invocation) (panicked bool, execErr error) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			execErr = fmt.Errorf("command %s panicked: %v", cmd.Name(), r)
		}
	}()
	return false, cmd.Execute(ctx, inv)
}

// Hooks get the worker context rather than the execution deadline, so a
// failure reply can still go out after a timed-out Execute. Hook panics
// are contained here.

func (d *Dispatcher) notifySuccess(ctx context.Context, cmd command.Command, inv *command.Invocation) {
	h, ok := cmd.(command.SuccessHandler)
	if !ok {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Success hook panicked",
				"invocation", inv.ID, "command", cmd.Name(), "panic", r)
		}
	}()
	h.OnSuccess(ctx, inv)
}

func (d *Dispatcher) notifyFailure(
	ctx context.Context, cmd command.Command, inv *command.Invocation, reason command.FailureReason,
) {
	h, ok := cmd.(command.FailureHandler)
	if !ok {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Failure hook panicked",
				"invocation", inv.ID, "command", cmd.Name(), "panic", r)
		}
	}()
	h.OnFailure(ctx, inv, reason)
}

// healthCheck reports unhealthy while the worker pool is down.
func (d *Dispatcher) healthCheck() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.pool == nil {
		return errors.ErrNotStarted
	}
	return nil
}
