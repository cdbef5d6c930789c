package tasks

import (
	"context"
	"errors"
	"math"
	"time"

	"ess-loan-gateway/internal/pkg/consts"
	mongodb "ess-loan-gateway/internal/pkg/db/mongo"
	"ess-loan-gateway/internal/pkg/logger"
	"ess-loan-gateway/internal/pkg/store/models"
	"ess-loan-gateway/internal/pkg/store/repository"
	"ess-loan-gateway/internal/service/interfaces"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type TaskRepository struct {
	repo interfaces.TaskStoreInterface
	now  func() time.Time
}

func NewTaskRepository(client *mongodb.MongoClient) *TaskRepository {
	collection := client.Database.Collection(consts.SagaTasksCollection)
	return NewTaskRepositoryWithInterface(repository.NewMongoRepository[models.Task](collection))
}

func NewTaskRepositoryWithInterface(repo interfaces.TaskStoreInterface) *TaskRepository {
	return &TaskRepository{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Enqueue inserts a PENDING task due now. A task with the same dedupe key already queued is not an error.
func (r *TaskRepository) Enqueue(
	ctx context.Context,
	kind consts.TaskKind,
	applicationID, dedupeKey string,
	payload models.TaskPayload,
	maxAttempts int,
) (bool, error) {
	now := r.now()
	task := models.Task{
		TaskID:        uuid.NewString(),
		Kind:          kind,
		ApplicationID: applicationID,
		DedupeKey:     dedupeKey,
		Payload:       payload,
		Status:        consts.TaskPending,
		MaxAttempts:   maxAttempts,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if _, err := r.repo.Create(ctx, task); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			logger.CtxDebug(ctx, "Task already queued", zap.String("dedupe_key", dedupeKey))
			return false, nil
		}
		logger.CtxError(ctx, "Failed to enqueue task", err,
			zap.String("kind", string(kind)), zap.String("application_id", applicationID))
		return false, err
	}
	return true, nil
}

// Claim locks the oldest due task: PENDING with nextAttemptAt passed, or RUNNING with an expired lock.
// Returns nil when nothing is due.
func (r *TaskRepository) Claim(ctx context.Context, owner string, lockFor time.Duration) (*models.Task, error) {
	now := r.now()
	filter := bson.M{
		"$or": bson.A{
			bson.M{"status": consts.TaskPending, "nextAttemptAt": bson.M{"$lte": now}},
			bson.M{"status": consts.TaskRunning, "lockedUntil": bson.M{"$lt": now}},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"status":      consts.TaskRunning,
			"lockedUntil": now.Add(lockFor),
			"lockedBy":    owner,
			"updatedAt":   now,
		},
		"$inc": bson.M{"attempts": 1},
	}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "nextAttemptAt", Value: 1}}).
		SetReturnDocument(options.After)

	task, err := r.repo.FindOneAndUpdate(ctx, filter, update, opts)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) Complete(ctx context.Context, taskID string) error {
	_, err := r.repo.ApplyUpdate(ctx,
		bson.M{"taskId": taskID},
		bson.M{
			"$set":   bson.M{"status": consts.TaskDone, "updatedAt": r.now()},
			"$unset": bson.M{"lockedUntil": "", "lockedBy": ""},
		},
	)
	return err
}

// Fail puts the task back to PENDING with exponential backoff, or marks it DEAD once attempts are spent.
// dead reports which of the two happened.
func (r *TaskRepository) Fail(ctx context.Context, task *models.Task, cause error, baseBackoff, maxBackoff time.Duration) (bool, error) {
	now := r.now()
	dead := task.Attempts >= task.MaxAttempts

	set := bson.M{"lastError": cause.Error(), "updatedAt": now}
	if dead {
		set["status"] = consts.TaskDead
	} else {
		set["status"] = consts.TaskPending
		set["nextAttemptAt"] = now.Add(Backoff(task.Attempts, baseBackoff, maxBackoff))
	}

	_, err := r.repo.ApplyUpdate(ctx,
		bson.M{"taskId": task.TaskID},
		bson.M{"$set": set, "$unset": bson.M{"lockedUntil": "", "lockedBy": ""}},
	)
	if err != nil {
		logger.CtxError(ctx, "Failed to record task failure", err, zap.String("task_id", task.TaskID))
		return dead, err
	}
	return dead, nil
}

// Postpone releases a claimed task without counting the attempt, e.g. when the application lease is held.
func (r *TaskRepository) Postpone(ctx context.Context, task *models.Task, delay time.Duration) error {
	now := r.now()
	_, err := r.repo.ApplyUpdate(ctx,
		bson.M{"taskId": task.TaskID, "status": consts.TaskRunning},
		bson.M{
			"$set":   bson.M{"status": consts.TaskPending, "nextAttemptAt": now.Add(delay), "updatedAt": now},
			"$inc":   bson.M{"attempts": -1},
			"$unset": bson.M{"lockedUntil": "", "lockedBy": ""},
		},
	)
	return err
}

// Requeue revives the DEAD tasks of a kind for an application with a fresh attempt budget.
func (r *TaskRepository) Requeue(ctx context.Context, applicationID string, kind consts.TaskKind) (int64, error) {
	var revived int64
	for {
		now := r.now()
		res, err := r.repo.ApplyUpdate(ctx,
			bson.M{"applicationId": applicationID, "kind": kind, "status": consts.TaskDead},
			bson.M{"$set": bson.M{
				"status":        consts.TaskPending,
				"attempts":      0,
				"nextAttemptAt": now,
				"updatedAt":     now,
			}},
		)
		if err != nil {
			return revived, err
		}
		if res.ModifiedCount == 0 {
			return revived, nil
		}
		revived += res.ModifiedCount
	}
}

// Rearm makes a finished (DONE or DEAD) task due again. Pending or running tasks are left alone.
func (r *TaskRepository) Rearm(ctx context.Context, dedupeKey string) (bool, error) {
	now := r.now()
	res, err := r.repo.ApplyUpdate(ctx,
		bson.M{"dedupeKey": dedupeKey, "status": bson.M{"$in": bson.A{consts.TaskDone, consts.TaskDead}}},
		bson.M{"$set": bson.M{
			"status":        consts.TaskPending,
			"attempts":      0,
			"nextAttemptAt": now,
			"updatedAt":     now,
		}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (r *TaskRepository) ListByApplication(ctx context.Context, applicationID string) ([]models.Task, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	return r.repo.Find(ctx, bson.M{"applicationId": applicationID}, opts)
}

func (r *TaskRepository) CountByStatus(ctx context.Context, status consts.TaskStatus) (int64, error) {
	return r.repo.CountDocuments(ctx, bson.M{"status": status})
}

// Backoff is base * 2^(attempt-1), capped at max.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(base) * math.Pow(2, float64(attempt-1))
	if d > float64(max) {
		return max
	}
	return time.Duration(d)
}
