package runtime

import (
	"context"
	"time"

	"ess-loan-gateway/internal/pkg/consts"
	"ess-loan-gateway/internal/pkg/logger"
	"ess-loan-gateway/internal/pkg/metrics"
	"ess-loan-gateway/internal/pkg/store/models"
	"ess-loan-gateway/internal/service/saga"
	tasks_service "ess-loan-gateway/internal/service/tasks"

	"go.uber.org/zap"
)

type taskRegistrar interface {
	Register(kind consts.TaskKind, h tasks_service.Handler)
	OnDead(kind consts.TaskKind, h tasks_service.DeadHandler)
}

type sagaSteps interface {
	DecideAndNotify(ctx context.Context, applicationID string) error
	FinalizeApproval(ctx context.Context, applicationID string) error
	ResumeAfterLiquidation(ctx context.Context, applicationID string) error
}

type callbackDelivery interface {
	Deliver(ctx context.Context, task *models.Task) error
	OnDead(ctx context.Context, task *models.Task, cause error)
}

type reconciler interface {
	Reconcile(ctx context.Context) (saga.ReconcileResult, error)
}

type applicationCounter interface {
	CountByStatus(ctx context.Context, status consts.ApplicationStatus) (int64, error)
}

type taskCounter interface {
	CountByStatus(ctx context.Context, status consts.TaskStatus) (int64, error)
}

func registerTaskHandlers(d taskRegistrar, s sagaSteps, c callbackDelivery) {
	byApplication := func(step func(context.Context, string) error) tasks_service.Handler {
		return func(ctx context.Context, task *models.Task) error {
			return step(ctx, task.ApplicationID)
		}
	}
	d.Register(consts.TaskDecideOffer, byApplication(s.DecideAndNotify))
	d.Register(consts.TaskFinalizeApproval, byApplication(s.FinalizeApproval))
	d.Register(consts.TaskResumeLiquidation, byApplication(s.ResumeAfterLiquidation))
	d.Register(consts.TaskDeliverCallback, c.Deliver)
	d.OnDead(consts.TaskDeliverCallback, c.OnDead)
}

// runEvery calls fn on each tick until ctx ends. A non-positive interval disables the loop.
func runEvery(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func reconcileOnce(ctx context.Context, r reconciler) {
	result, err := r.Reconcile(ctx)
	if err != nil {
		logger.CtxError(ctx, "Reconcile pass failed", err)
		return
	}
	if result.Skipped {
		logger.CtxDebug(ctx, "Reconcile pass skipped, another instance holds the lock")
		return
	}
	logger.CtxInfo(ctx, "Reconcile pass finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("completed", result.Completed),
		zap.Int("failed", result.Failed))
}

var backlogStatuses = []consts.ApplicationStatus{
	consts.StatusInitialOffer,
	consts.StatusInitialApprovalSent,
	consts.StatusApproved,
	consts.StatusWaitingForLiquidation,
	consts.StatusFinalApprovalReceived,
	consts.StatusClientCreated,
	consts.StatusLoanCreated,
	consts.StatusDisbursed,
	consts.StatusRestructured,
}

var taskStatuses = []consts.TaskStatus{consts.TaskPending, consts.TaskRunning, consts.TaskDead}

// refreshBacklog publishes how many applications and tasks sit in each open status.
func refreshBacklog(ctx context.Context, apps applicationCounter, tasks taskCounter, m *metrics.Metrics) {
	for _, status := range backlogStatuses {
		n, err := apps.CountByStatus(ctx, status)
		if err != nil {
			logger.CtxWarn(ctx, "Failed to count applications", zap.String("status", string(status)), zap.Error(err))
			continue
		}
		m.SetApplications(string(status), n)
	}
	for _, status := range taskStatuses {
		n, err := tasks.CountByStatus(ctx, status)
		if err != nil {
			logger.CtxWarn(ctx, "Failed to count tasks", zap.String("status", string(status)), zap.Error(err))
			continue
		}
		m.SetTasks(string(status), n)
	}
}
