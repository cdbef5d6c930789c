package pubsub_service

import (
	"context"
	"errors"
	"testing"

	"ess-loan-gateway/internal/pkg/error_handling"
	"ess-loan-gateway/internal/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSaga struct {
	mock.Mock
}

func (m *mockSaga) HandleLedgerEvent(ctx context.Context, event *models.LedgerEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

const disburseEvent = `{"eventId":"e-1","type":"DISBURSE","loanId":"77"}`

func TestHandleLedgerEventMessage(t *testing.T) {
	cases := []struct {
		name       string
		body       string
		sagaErr    error
		callsSaga  bool
		wantErr    bool
		wantIgnore bool
	}{
		{name: "applied", body: disburseEvent, callsSaga: true},
		{name: "garbage is dropped", body: `{not json`},
		{name: "unknown type is dropped", body: `{"type":"WRITE_OFF","loanId":"77"}`},
		{name: "missing loan id is dropped", body: `{"type":"APPROVE"}`},
		{
			name: "loan not linked yet is redelivered", body: disburseEvent, callsSaga: true,
			sagaErr: &error_handling.NotFoundError{Resource: "application", ID: "77"}, wantErr: true, wantIgnore: true,
		},
		{
			name: "state mismatch is acked", body: disburseEvent, callsSaga: true,
			sagaErr: &error_handling.StateError{ApplicationID: "APP-1", Status: "CANCELLED"},
		},
		{name: "store failure is nacked", body: disburseEvent, callsSaga: true, sagaErr: errors.New("mongo down"), wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			saga := &mockSaga{}
			if tc.callsSaga {
				saga.On("HandleLedgerEvent", mock.Anything, mock.MatchedBy(func(e *models.LedgerEvent) bool {
					return e.LoanID == "77" && e.Type == models.LedgerEventDisburse
				})).Return(tc.sagaErr)
			}

			err := NewLedgerEventConsumer(saga).HandleLedgerEventMessage(context.Background(), []byte(tc.body))
			if !tc.wantErr {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				var ignore *MessageIgnoreError
				assert.Equal(t, tc.wantIgnore, errors.As(err, &ignore))
			}
			saga.AssertExpectations(t)
		})
	}
}

func TestLedgerEventFailed(t *testing.T) {
	no := false
	assert.True(t, (&models.LedgerEvent{Success: &no}).Failed())
	assert.False(t, (&models.LedgerEvent{}).Failed())
}
