package callbacks_service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ess-loan-gateway/internal/pkg/consts"
	"ess-loan-gateway/internal/pkg/error_handling"
	"ess-loan-gateway/internal/pkg/gcs"
	"ess-loan-gateway/internal/pkg/metrics"
	eventmodels "ess-loan-gateway/internal/pkg/models"
	"ess-loan-gateway/internal/pkg/protocol"
	"ess-loan-gateway/internal/pkg/store/models"
	"ess-loan-gateway/internal/service/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type stubSigner struct{}

func (stubSigner) Sign(fragment []byte) (string, error) { return "c2lnbmVk", nil }
func (stubSigner) Verify(fragment []byte, signature string) (bool, error) { return true, nil }

type recordingSender struct {
	sent [][]byte
	err  error
}

func (s *recordingSender) Send(ctx context.Context, signedXML []byte) error {
	s.sent = append(s.sent, signedXML)
	return s.err
}

type recordingArchive struct {
	docs []gcs.ArchivedDocument
}

func (a *recordingArchive) Archive(ctx context.Context, doc gcs.ArchivedDocument) error {
	a.docs = append(a.docs, doc)
	return errors.New("bucket unavailable")
}

type mockDeadLetters struct{ mock.Mock }

func (m *mockDeadLetters) PublishDeadLetter(ctx context.Context, letter eventmodels.CallbackDeadLetter) error {
	return m.Called(ctx, letter).Error(0)
}

type mockApps struct{ mock.Mock }

func (m *mockApps) FindByApplicationID(ctx context.Context, id string) (*models.LoanApplication, error) {
	args := m.Called(ctx, id)
	app, _ := args.Get(0).(*models.LoanApplication)
	return app, args.Error(1)
}
func (m *mockApps) FindByLoanAlias(ctx context.Context, alias string) (*models.LoanApplication, error) {
	return nil, nil
}
func (m *mockApps) FindByLedgerLoanID(ctx context.Context, loanID string) (*models.LoanApplication, error) {
	return nil, nil
}
func (m *mockApps) Admit(ctx context.Context, app *models.LoanApplication) (*models.LoanApplication, bool, error) {
	return nil, false, nil
}
func (m *mockApps) MergeOfferTerms(ctx context.Context, id string, terms models.LoanTerms) (bool, error) {
	return false, nil
}
func (m *mockApps) Transition(ctx context.Context, id string, from []consts.ApplicationStatus, to consts.ApplicationStatus, set bson.M) (*models.LoanApplication, error) {
	return nil, nil
}
func (m *mockApps) SetOnce(ctx context.Context, id, field string, value interface{}) (bool, error) {
	return false, nil
}
func (m *mockApps) SetFields(ctx context.Context, id string, set bson.M) error { return nil }
func (m *mockApps) AppendError(ctx context.Context, id, stage string, cause error) error {
	return m.Called(ctx, id, stage, cause).Error(0)
}
func (m *mockApps) ListByStatus(ctx context.Context, statuses []consts.ApplicationStatus, after primitive.ObjectID, limit int64) ([]models.LoanApplication, error) {
	return nil, nil
}

type stubAdmin struct {
	revived int64
}

func (s *stubAdmin) Requeue(ctx context.Context, applicationID string, kind consts.TaskKind) (int64, error) {
	return s.revived, nil
}
func (s *stubAdmin) ListByApplication(ctx context.Context, applicationID string) ([]models.Task, error) {
	return nil, nil
}

func callbackTask(t *testing.T) *models.Task {
	details, err := protocol.MarshalDetails(&protocol.DisbursementFailureNotification{ApplicationNumber: "APP-1", Reason: "ledger down"})
	require.NoError(t, err)
	return &models.Task{
		TaskID:        "task-1",
		Kind:          consts.TaskDeliverCallback,
		ApplicationID: "APP-1",
		Attempts:      1,
		Payload: models.TaskPayload{
			SourceMsgID: "cb-msg-1",
			MessageType: consts.MessageTypeDisbursementFailureNotification,
			DetailsXML:  string(details),
		},
	}
}

func newService(
	sender *recordingSender,
	archive interfaces.ArchiverInterface,
	dl interfaces.DeadLetterPublisherInterface,
	apps interfaces.ApplicationRepositoryInterface,
	admin interfaces.TaskAdminInterface,
) *CallbackService {
	return NewCallbackService(
		Identity{SenderName: "FSP-BANK", PortalName: "ESS_UTUMISHI", FSPCode: "FL001"},
		stubSigner{}, sender, archive, dl, apps, admin, metrics.New(),
	)
}

func TestDeliverSignsWithStableMsgID(t *testing.T) {
	sender, archive := &recordingSender{}, &recordingArchive{}
	svc := newService(sender, archive, nil, nil, nil)
	task := callbackTask(t)

	require.NoError(t, svc.Deliver(context.Background(), task))
	require.NoError(t, svc.Deliver(context.Background(), task))

	require.Len(t, sender.sent, 2)
	assert.Equal(t, sender.sent[0], sender.sent[1])
	body := string(sender.sent[0])
	assert.Contains(t, body, "<MsgId>cb-msg-1</MsgId>")
	assert.Contains(t, body, "<MessageType>LOAN_DISBURSEMENT_FAILURE_NOTIFICATION</MessageType>")
	assert.Contains(t, body, "<Signature>c2lnbmVk</Signature>")
	assert.True(t, strings.Contains(body, "<Reason>ledger down</Reason>"))

	// archive failures do not block delivery
	require.Len(t, archive.docs, 2)
	assert.Equal(t, gcs.Outbound, archive.docs[0].Direction)
}

func TestDeliverReturnsSendError(t *testing.T) {
	sender := &recordingSender{err: errors.New("503")}
	svc := newService(sender, nil, nil, nil, nil)

	assert.Error(t, svc.Deliver(context.Background(), callbackTask(t)))
}

func TestDeliverEmptyPayload(t *testing.T) {
	svc := newService(&recordingSender{}, nil, nil, nil, nil)
	err := svc.Deliver(context.Background(), &models.Task{TaskID: "t"})
	assert.ErrorIs(t, err, ErrEmptyPayload)
}

func TestOnDeadPublishesAndRecords(t *testing.T) {
	dl, apps := &mockDeadLetters{}, &mockApps{}
	cause := errors.New("portal rejected")
	apps.On("AppendError", mock.Anything, "APP-1", consts.StageCallback, cause).Return(nil)
	dl.On("PublishDeadLetter", mock.Anything, mock.MatchedBy(func(l eventmodels.CallbackDeadLetter) bool {
		return l.ApplicationID == "APP-1" && l.MsgID == "cb-msg-1" && l.LastError == "portal rejected"
	})).Return(nil)

	svc := newService(&recordingSender{}, nil, dl, apps, nil)
	svc.now = func() time.Time { return time.Unix(0, 0) }
	svc.OnDead(context.Background(), callbackTask(t), cause)

	dl.AssertExpectations(t)
	apps.AssertExpectations(t)
}

func TestResend(t *testing.T) {
	apps := &mockApps{}
	apps.On("FindByApplicationID", mock.Anything, "APP-1").Return(&models.LoanApplication{ApplicationID: "APP-1"}, nil)
	apps.On("FindByApplicationID", mock.Anything, "nope").Return(nil, &error_handling.NotFoundError{Resource: "application", ID: "nope"})

	svc := newService(&recordingSender{}, nil, nil, apps, &stubAdmin{revived: 2})

	n, err := svc.Resend(context.Background(), "APP-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = svc.Resend(context.Background(), "nope")
	var notFound *error_handling.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}
