package tasks_service

import (
	"context"
	"errors"
	"sync"
	"time"

	"ess-loan-gateway/internal/pkg/consts"
	"ess-loan-gateway/internal/pkg/log_messages"
	"ess-loan-gateway/internal/pkg/logger"
	"ess-loan-gateway/internal/pkg/metrics"
	"ess-loan-gateway/internal/pkg/otel"
	"ess-loan-gateway/internal/pkg/store/models"
	"ess-loan-gateway/internal/pkg/worker"
	"ess-loan-gateway/internal/service/interfaces"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler runs one task. A returned error schedules a retry.
type Handler func(ctx context.Context, task *models.Task) error

// DeadHandler is told when a task has spent its attempts.
type DeadHandler func(ctx context.Context, task *models.Task, cause error)

type Config struct {
	PollInterval  time.Duration
	ClaimBatch    int
	LockDuration  time.Duration
	LeaseDuration time.Duration
	BaseBackoff   time.Duration
	MaxBackoff    time.Duration
}

// Dispatcher drains the durable task queue into a worker pool. Work on one application is serialised
// by its lease; callbacks do not take the lease.
type Dispatcher struct {
	queue    interfaces.TaskQueueInterface
	leases   interfaces.ApplicationLeaseInterface
	pool     *worker.WorkerPool
	metrics  *metrics.Metrics
	cfg      Config
	owner    string
	handlers map[consts.TaskKind]Handler
	onDead   map[consts.TaskKind]DeadHandler
	inflight sync.WaitGroup
}

func NewDispatcher(
	queue interfaces.TaskQueueInterface,
	leases interfaces.ApplicationLeaseInterface,
	pool *worker.WorkerPool,
	m *metrics.Metrics,
	cfg Config,
) *Dispatcher {
	if cfg.ClaimBatch < 1 {
		cfg.ClaimBatch = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Dispatcher{
		queue:    queue,
		leases:   leases,
		pool:     pool,
		metrics:  m,
		cfg:      cfg,
		owner:    uuid.NewString(),
		handlers: make(map[consts.TaskKind]Handler),
		onDead:   make(map[consts.TaskKind]DeadHandler),
	}
}

func (d *Dispatcher) Register(kind consts.TaskKind, h Handler) {
	d.handlers[kind] = h
}

func (d *Dispatcher) OnDead(kind consts.TaskKind, h DeadHandler) {
	d.onDead[kind] = h
}

// Start polls until ctx is done, then waits for in-flight tasks.
func (d *Dispatcher) Start(ctx context.Context) {
	logger.CtxInfo(ctx, "Task dispatcher started", zap.String("owner", d.owner))
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		d.drain(ctx)
		select {
		case <-ctx.Done():
			d.inflight.Wait()
			logger.Info("Task dispatcher stopped")
			return
		case <-ticker.C:
		}
	}
}

// drain claims up to one batch and hands it to the pool.
func (d *Dispatcher) drain(ctx context.Context) {
	for i := 0; i < d.cfg.ClaimBatch; i++ {
		if ctx.Err() != nil {
			return
		}
		task, err := d.queue.Claim(ctx, d.owner, d.cfg.LockDuration)
		if err != nil {
			logger.CtxError(ctx, "Failed to claim task", err)
			return
		}
		if task == nil {
			return
		}

		d.inflight.Add(1)
		submitted := d.pool.Submit(ctx, func() {
			defer d.inflight.Done()
			d.Process(context.WithoutCancel(ctx), task)
		})
		if !submitted {
			d.inflight.Done()
			// The claim lock expires and another poll picks the task up.
			return
		}
	}
}

// Process runs a claimed task and records its outcome.
func (d *Dispatcher) Process(ctx context.Context, task *models.Task) {
	ctx = logger.WithRequestID(ctx, task.TaskID)
	ctx, span := otel.StartSpan(ctx, "task.run",
		otel.TaskKindKey.String(string(task.Kind)), otel.ApplicationIDKey.String(task.ApplicationID))
	defer span.End()
	fields := []zap.Field{
		zap.String("task_id", task.TaskID),
		zap.String("kind", string(task.Kind)),
		zap.String("application_id", task.ApplicationID),
		zap.Int("attempt", task.Attempts),
	}

	handler, ok := d.handlers[task.Kind]
	if !ok {
		logger.CtxWarn(ctx, log_messages.TaskNoHandler, fields...)
		d.finish(ctx, task, errors.New("no handler for "+string(task.Kind)), fields)
		return
	}

	if task.Kind != consts.TaskDeliverCallback && d.leases != nil {
		acquired, err := d.leases.AcquireLease(ctx, task.ApplicationID, d.owner, d.cfg.LeaseDuration)
		if err != nil {
			d.finish(ctx, task, err, fields)
			return
		}
		if !acquired {
			logger.CtxInfo(ctx, log_messages.TaskLeaseBusy, fields...)
			if err := d.queue.Postpone(ctx, task, d.cfg.BaseBackoff); err != nil {
				logger.CtxError(ctx, "Failed to postpone task", err, fields...)
			}
			d.metrics.ObserveTask(string(task.Kind), "postponed")
			return
		}
		defer func() {
			if err := d.leases.ReleaseLease(ctx, task.ApplicationID, d.owner); err != nil {
				logger.CtxWarn(ctx, "Failed to release application lease", append(fields, zap.Error(err))...)
			}
		}()
	}

	err := d.run(WithAttempt(ctx, task.Attempts, task.MaxAttempts), handler, task)
	otel.Fail(span, err)
	d.finish(ctx, task, err, fields)
}

func (d *Dispatcher) run(ctx context.Context, handler Handler, task *models.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return handler(ctx, task)
}

func (d *Dispatcher) finish(ctx context.Context, task *models.Task, err error, fields []zap.Field) {
	if err == nil {
		if cerr := d.queue.Complete(ctx, task.TaskID); cerr != nil {
			logger.CtxError(ctx, "Failed to complete task", cerr, fields...)
		}
		d.metrics.ObserveTask(string(task.Kind), "done")
		return
	}

	logger.CtxWarn(ctx, log_messages.TaskFailed, append(fields, zap.Error(err))...)
	dead, ferr := d.queue.Fail(ctx, task, err, d.cfg.BaseBackoff, d.cfg.MaxBackoff)
	if ferr != nil {
		return
	}
	if !dead {
		d.metrics.ObserveTask(string(task.Kind), "retry")
		return
	}

	logger.CtxError(ctx, log_messages.TaskDead, err, fields...)
	d.metrics.ObserveTask(string(task.Kind), "dead")
	if h, ok := d.onDead[task.Kind]; ok {
		h(ctx, task, err)
	}
}
