package saga

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ess-loan-gateway/internal/pkg/consts"
	"ess-loan-gateway/internal/pkg/downstream/ledger"
	"ess-loan-gateway/internal/pkg/error_handling"
	"ess-loan-gateway/internal/pkg/log_messages"
	"ess-loan-gateway/internal/pkg/logger"
	"ess-loan-gateway/internal/pkg/metrics"
	eventmodels "ess-loan-gateway/internal/pkg/models"
	"ess-loan-gateway/internal/pkg/protocol"
	"ess-loan-gateway/internal/pkg/store/models"
	"ess-loan-gateway/internal/service/interfaces"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

type Config struct {
	FSPCode             string
	LedgerTimeout       time.Duration
	TaskMaxAttempts     int
	CallbackMaxAttempts int
	ReconcilePageSize   int
	ReconcileLockTTL    time.Duration
}

// Saga drives loan applications through their lifecycle. Every status change is a compare-and-swap
// at the store, so concurrent deliveries of the same work converge on one outcome.
type Saga struct {
	apps     interfaces.ApplicationRepositoryInterface
	products interfaces.ProductCatalogInterface
	ledger   ledger.Client
	tasks    interfaces.TaskEnqueuerInterface
	events   interfaces.StatusEventPublisherInterface
	locks    interfaces.RedisStoreOperations
	metrics  *metrics.Metrics
	cfg      Config
	now      func() time.Time
	newID    func() string
}

func NewSaga(
	apps interfaces.ApplicationRepositoryInterface,
	products interfaces.ProductCatalogInterface,
	ledgerClient ledger.Client,
	tasks interfaces.TaskEnqueuerInterface,
	events interfaces.StatusEventPublisherInterface,
	locks interfaces.RedisStoreOperations,
	m *metrics.Metrics,
	cfg Config,
) *Saga {
	return &Saga{
		apps:     apps,
		products: products,
		ledger:   ledgerClient,
		tasks:    tasks,
		events:   events,
		locks:    locks,
		metrics:  m,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// advance moves app to `to` when its stored status is one of from and announces the change.
func (s *Saga) advance(
	ctx context.Context,
	app *models.LoanApplication,
	from []consts.ApplicationStatus,
	to consts.ApplicationStatus,
	set bson.M,
) (*models.LoanApplication, error) {
	updated, err := s.apps.Transition(ctx, app.ApplicationID, from, to, set)
	if err != nil {
		return nil, err
	}
	s.announce(ctx, app.Status, updated)
	return updated, nil
}

// announce records a transition in metrics and on the status stream. Publishing is best effort.
func (s *Saga) announce(ctx context.Context, from consts.ApplicationStatus, app *models.LoanApplication) {
	s.metrics.ObserveTransition(string(from), string(app.Status))
	if s.events == nil {
		return
	}

	event := eventmodels.StatusChangedEvent{
		EventID:        s.newID(),
		ApplicationID:  app.ApplicationID,
		Kind:           string(app.Kind),
		FromStatus:     string(from),
		ToStatus:       string(app.Status),
		LedgerLoanID:   app.LedgerRefs.LoanID,
		IdempotencyKey: app.ApplicationID + ":" + string(app.Status),
		OccurredAt:     s.now(),
	}
	if app.ActorTrail != nil {
		event.Actor = string(app.ActorTrail.Actor)
		event.Reason = app.ActorTrail.Reason
	}
	if err := s.events.PublishStatusChanged(ctx, event); err != nil {
		logger.CtxWarn(ctx, log_messages.SagaEventPublishFailed,
			zap.String("application_id", app.ApplicationID), zap.Error(err))
	}
}

func (s *Saga) actorTrail(actor consts.Actor, reason string) models.ActorTrail {
	return models.ActorTrail{Actor: actor, Reason: reason, At: s.now()}
}

func (s *Saga) enqueue(ctx context.Context, kind consts.TaskKind, applicationID, msgID string) error {
	key := fmt.Sprintf("%s:%s:%s", kind, applicationID, msgID)
	_, err := s.tasks.Enqueue(ctx, kind, applicationID, key, models.TaskPayload{SourceMsgID: msgID}, s.cfg.TaskMaxAttempts)
	return err
}

// CallbackDedupeKey identifies the one callback of a message type an application ever gets.
func CallbackDedupeKey(applicationID, messageType string) string {
	return "callback:" + applicationID + ":" + messageType
}

// emit queues an outbound callback. With resend a callback that was already delivered is queued again.
func (s *Saga) emit(ctx context.Context, applicationID string, details protocol.Details, resend bool) error {
	detailsXML, err := protocol.MarshalDetails(details)
	if err != nil {
		return err
	}

	key := CallbackDedupeKey(applicationID, details.MessageType())
	payload := models.TaskPayload{
		SourceMsgID: s.newID(),
		MessageType: details.MessageType(),
		DetailsXML:  string(detailsXML),
	}
	inserted, err := s.tasks.Enqueue(ctx, consts.TaskDeliverCallback, applicationID, key, payload, s.cfg.CallbackMaxAttempts)
	if err != nil {
		return err
	}
	if !inserted && resend {
		if _, err := s.tasks.Rearm(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// ledgerCtx bounds one ledger call.
func (s *Saga) ledgerCtx(ctx context.Context, op string) (context.Context, func()) {
	return ledger.CallContext(ctx, op, s.cfg.LedgerTimeout)
}

func (s *Saga) newReference(prefix string) string {
	id := strings.ToUpper(strings.ReplaceAll(s.newID(), "-", ""))
	return prefix + id[:12]
}

// currentStatus extracts the stored status from a transition conflict.
func currentStatus(err error) (consts.ApplicationStatus, bool) {
	var stateErr *error_handling.StateError
	if errors.As(err, &stateErr) {
		return consts.ApplicationStatus(stateErr.Status), true
	}
	return "", false
}

func containsStatus(statuses []consts.ApplicationStatus, s consts.ApplicationStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func (s *Saga) loanNumber(app *models.LoanApplication) string {
	if app.ExternalRefs.ESSLoanAlias != "" {
		return app.ExternalRefs.ESSLoanAlias
	}
	if app.RestructureLink != nil {
		return app.RestructureLink.PriorLoanNumber
	}
	return ""
}
