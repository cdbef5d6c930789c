package runtime

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"ess-loan-gateway/internal/pkg/consts"
	"ess-loan-gateway/internal/pkg/metrics"
	"ess-loan-gateway/internal/pkg/store/models"
	"ess-loan-gateway/internal/service/saga"
	tasks_service "ess-loan-gateway/internal/service/tasks"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeRegistrar struct {
	handlers map[consts.TaskKind]tasks_service.Handler
	dead     map[consts.TaskKind]tasks_service.DeadHandler
}

func (f *fakeRegistrar) Register(kind consts.TaskKind, h tasks_service.Handler) { f.handlers[kind] = h }

func (f *fakeRegistrar) OnDead(kind consts.TaskKind, h tasks_service.DeadHandler) { f.dead[kind] = h }

type mockSteps struct{ mock.Mock }

func (m *mockSteps) DecideAndNotify(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockSteps) FinalizeApproval(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockSteps) ResumeAfterLiquidation(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockSteps) Reconcile(ctx context.Context) (saga.ReconcileResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(saga.ReconcileResult), args.Error(1)
}

type mockDelivery struct{ mock.Mock }

func (m *mockDelivery) Deliver(ctx context.Context, task *models.Task) error {
	return m.Called(ctx, task).Error(0)
}

func (m *mockDelivery) OnDead(ctx context.Context, task *models.Task, cause error) {
	m.Called(ctx, task, cause)
}

type mockCounters struct{ mock.Mock }

func (m *mockCounters) CountByStatus(ctx context.Context, status consts.ApplicationStatus) (int64, error) {
	args := m.Called(ctx, string(status))
	return args.Get(0).(int64), args.Error(1)
}

type mockTaskCounters struct{ mock.Mock }

func (m *mockTaskCounters) CountByStatus(ctx context.Context, status consts.TaskStatus) (int64, error) {
	args := m.Called(ctx, string(status))
	return args.Get(0).(int64), args.Error(1)
}

func TestRegisterTaskHandlers(t *testing.T) {
	ctx := context.Background()
	reg := &fakeRegistrar{
		handlers: map[consts.TaskKind]tasks_service.Handler{},
		dead:     map[consts.TaskKind]tasks_service.DeadHandler{},
	}
	steps := &mockSteps{}
	delivery := &mockDelivery{}
	registerTaskHandlers(reg, steps, delivery)

	require.Len(t, reg.handlers, 4)
	require.Len(t, reg.dead, 1)

	steps.On("DecideAndNotify", mock.Anything, "APP-1").Return(nil).Once()
	steps.On("FinalizeApproval", mock.Anything, "APP-2").Return(errors.New("ledger down")).Once()
	steps.On("ResumeAfterLiquidation", mock.Anything, "APP-3").Return(nil).Once()

	assert.NoError(t, reg.handlers[consts.TaskDecideOffer](ctx, &models.Task{ApplicationID: "APP-1"}))
	assert.EqualError(t, reg.handlers[consts.TaskFinalizeApproval](ctx, &models.Task{ApplicationID: "APP-2"}), "ledger down")
	assert.NoError(t, reg.handlers[consts.TaskResumeLiquidation](ctx, &models.Task{ApplicationID: "APP-3"}))

	task := &models.Task{TaskID: "t1", ApplicationID: "APP-4", Kind: consts.TaskDeliverCallback}
	cause := errors.New("portal unreachable")
	delivery.On("Deliver", mock.Anything, task).Return(nil).Once()
	delivery.On("OnDead", mock.Anything, task, cause).Once()

	assert.NoError(t, reg.handlers[consts.TaskDeliverCallback](ctx, task))
	reg.dead[consts.TaskDeliverCallback](ctx, task, cause)

	steps.AssertExpectations(t)
	delivery.AssertExpectations(t)
}

func TestRunEvery(t *testing.T) {
	t.Run("ticks until cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		var calls atomic.Int32
		done := make(chan struct{})
		go func() {
			runEvery(ctx, 5*time.Millisecond, func(context.Context) { calls.Add(1) })
			close(done)
		}()

		assert.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("loop did not stop")
		}
	})

	t.Run("disabled interval returns at once", func(t *testing.T) {
		called := false
		runEvery(context.Background(), 0, func(context.Context) { called = true })
		assert.False(t, called)
	})
}

func TestReconcileOnce(t *testing.T) {
	steps := &mockSteps{}
	steps.On("Reconcile", mock.Anything).Return(saga.ReconcileResult{Scanned: 2, Completed: 1}, nil).Once()
	steps.On("Reconcile", mock.Anything).Return(saga.ReconcileResult{Skipped: true}, nil).Once()
	steps.On("Reconcile", mock.Anything).Return(saga.ReconcileResult{}, errors.New("mongo down")).Once()

	for i := 0; i < 3; i++ {
		assert.NotPanics(t, func() { reconcileOnce(context.Background(), steps) })
	}
	steps.AssertExpectations(t)
}

func TestRefreshBacklog(t *testing.T) {
	ctx := context.Background()
	apps := &mockCounters{}
	apps.On("CountByStatus", mock.Anything, string(consts.StatusInitialOffer)).Return(int64(4), nil)
	apps.On("CountByStatus", mock.Anything, string(consts.StatusDisbursed)).Return(int64(0), errors.New("timeout"))
	apps.On("CountByStatus", mock.Anything, mock.Anything).Return(int64(1), nil)
	taskCounts := &mockTaskCounters{}
	taskCounts.On("CountByStatus", mock.Anything, string(consts.TaskDead)).Return(int64(3), nil)
	taskCounts.On("CountByStatus", mock.Anything, mock.Anything).Return(int64(0), nil)
	m := metrics.New()

	refreshBacklog(ctx, apps, taskCounts, m)

	assert.Equal(t, float64(4), testutil.ToFloat64(m.ApplicationBacklog.WithLabelValues(string(consts.StatusInitialOffer))))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ApplicationBacklog.WithLabelValues(string(consts.StatusApproved))))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.TaskBacklog.WithLabelValues(string(consts.TaskDead))))
	assert.Equal(t, len(backlogStatuses)-1, testutil.CollectAndCount(m.ApplicationBacklog), "failed count leaves its gauge unset")
	assert.Equal(t, len(taskStatuses), testutil.CollectAndCount(m.TaskBacklog))
}
