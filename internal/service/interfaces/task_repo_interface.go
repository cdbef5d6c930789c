package interfaces

import (
	"context"
	"time"

	"ess-loan-gateway/internal/pkg/consts"
	"ess-loan-gateway/internal/pkg/store/models"
)

type TaskEnqueuerInterface interface {
	Enqueue(
		ctx context.Context,
		kind consts.TaskKind,
		applicationID, dedupeKey string,
		payload models.TaskPayload,
		maxAttempts int,
	) (bool, error)
	Rearm(ctx context.Context, dedupeKey string) (bool, error)
}

type TaskQueueInterface interface {
	Claim(ctx context.Context, owner string, lockFor time.Duration) (*models.Task, error)
	Complete(ctx context.Context, taskID string) error
	Fail(ctx context.Context, task *models.Task, cause error, baseBackoff, maxBackoff time.Duration) (bool, error)
	Postpone(ctx context.Context, task *models.Task, delay time.Duration) error
}

type TaskAdminInterface interface {
	Requeue(ctx context.Context, applicationID string, kind consts.TaskKind) (int64, error)
	ListByApplication(ctx context.Context, applicationID string) ([]models.Task, error)
}
