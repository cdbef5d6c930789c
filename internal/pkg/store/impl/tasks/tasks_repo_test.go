package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"ess-loan-gateway/internal/pkg/consts"
	"ess-loan-gateway/internal/pkg/store/models"
	"ess-loan-gateway/internal/pkg/store/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func newRepo(mt *mtest.T) *TaskRepository {
	return NewTaskRepositoryWithInterface(repository.NewMongoRepository[models.Task](mt.Coll))
}

func taskDoc(t *testing.T, task models.Task) bson.D {
	t.Helper()
	raw, err := bson.Marshal(task)
	require.NoError(t, err)
	var doc bson.D
	require.NoError(t, bson.Unmarshal(raw, &doc))
	return doc
}

func TestEnqueue(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("inserted", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		inserted, err := newRepo(mt).Enqueue(context.Background(), consts.TaskDecideOffer, "APP-1",
			"DECIDE_OFFER:APP-1", models.TaskPayload{SourceMsgID: "m-1"}, 5)
		require.NoError(t, err)
		assert.True(t, inserted)
	})

	mt.Run("duplicate dedupe key is ignored", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "E11000 duplicate key error",
		}))
		inserted, err := newRepo(mt).Enqueue(context.Background(), consts.TaskDecideOffer, "APP-1",
			"DECIDE_OFFER:APP-1", models.TaskPayload{}, 5)
		require.NoError(t, err)
		assert.False(t, inserted)
	})

	mt.Run("other write errors surface", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 91, Message: "shutdown in progress"}))
		_, err := newRepo(mt).Enqueue(context.Background(), consts.TaskDecideOffer, "APP-1", "k", models.TaskPayload{}, 5)
		assert.Error(t, err)
	})
}

func TestClaim(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("due task is returned locked", func(mt *mtest.T) {
		until := time.Now().Add(time.Minute).UTC().Truncate(time.Millisecond)
		doc := taskDoc(t, models.Task{
			TaskID:        "t-1",
			Kind:          consts.TaskFinalizeApproval,
			ApplicationID: "APP-1",
			Status:        consts.TaskRunning,
			Attempts:      1,
			LockedUntil:   &until,
			LockedBy:      "worker-a",
		})
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: doc}})

		task, err := newRepo(mt).Claim(context.Background(), "worker-a", time.Minute)
		require.NoError(t, err)
		require.NotNil(t, task)
		assert.Equal(t, "t-1", task.TaskID)
		assert.Equal(t, consts.TaskRunning, task.Status)
		assert.Equal(t, 1, task.Attempts)
	})

	mt.Run("nothing due", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: nil}})
		task, err := newRepo(mt).Claim(context.Background(), "worker-a", time.Minute)
		require.NoError(t, err)
		assert.Nil(t, task)
	})
}

func TestFail(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("retries remain", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))
		dead, err := newRepo(mt).Fail(context.Background(),
			&models.Task{TaskID: "t-1", Attempts: 2, MaxAttempts: 5}, errors.New("ledger timeout"),
			time.Second, time.Minute)
		require.NoError(t, err)
		assert.False(t, dead)
	})

	mt.Run("attempts spent", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))
		dead, err := newRepo(mt).Fail(context.Background(),
			&models.Task{TaskID: "t-1", Attempts: 5, MaxAttempts: 5}, errors.New("ledger timeout"),
			time.Second, time.Minute)
		require.NoError(t, err)
		assert.True(t, dead)
	})
}

func TestRequeue_RevivesUntilNoneLeft(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("two dead tasks", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
		)
		n, err := newRepo(mt).Requeue(context.Background(), "APP-1", consts.TaskDeliverCallback)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})
}

func TestRearm(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("finished task made due", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))
		rearmed, err := newRepo(mt).Rearm(context.Background(), "callback:APP-1:LOAN_INITIAL_APPROVAL_NOTIFICATION")
		require.NoError(t, err)
		assert.True(t, rearmed)
	})

	mt.Run("still pending", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))
		rearmed, err := newRepo(mt).Rearm(context.Background(), "callback:APP-1:LOAN_INITIAL_APPROVAL_NOTIFICATION")
		require.NoError(t, err)
		assert.False(t, rearmed)
	})
}

func TestListByApplication(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("returns tasks", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		first := mtest.CreateCursorResponse(1, ns, mtest.FirstBatch,
			taskDoc(t, models.Task{TaskID: "t-1", Kind: consts.TaskDecideOffer}),
			taskDoc(t, models.Task{TaskID: "t-2", Kind: consts.TaskDeliverCallback}),
		)
		end := mtest.CreateCursorResponse(0, ns, mtest.NextBatch)
		mt.AddMockResponses(first, end)

		tasks, err := newRepo(mt).ListByApplication(context.Background(), "APP-1")
		require.NoError(t, err)
		require.Len(t, tasks, 2)
		assert.Equal(t, consts.TaskDeliverCallback, tasks[1].Kind)
	})
}

func TestBackoff(t *testing.T) {
	base, max := time.Second, 30*time.Second
	assert.Equal(t, time.Second, Backoff(0, base, max))
	assert.Equal(t, time.Second, Backoff(1, base, max))
	assert.Equal(t, 4*time.Second, Backoff(3, base, max))
	assert.Equal(t, max, Backoff(10, base, max))
}
