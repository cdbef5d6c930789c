package callbacks_service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ess-loan-gateway/internal/pkg/consts"
	"ess-loan-gateway/internal/pkg/downstream/callback"
	"ess-loan-gateway/internal/pkg/gcs"
	"ess-loan-gateway/internal/pkg/log_messages"
	"ess-loan-gateway/internal/pkg/logger"
	"ess-loan-gateway/internal/pkg/metrics"
	eventmodels "ess-loan-gateway/internal/pkg/models"
	"ess-loan-gateway/internal/pkg/protocol"
	"ess-loan-gateway/internal/pkg/signer"
	"ess-loan-gateway/internal/pkg/store/models"
	"ess-loan-gateway/internal/service/interfaces"

	"go.uber.org/zap"
)

// ErrEmptyPayload is a callback task queued without rendered details.
var ErrEmptyPayload = errors.New("callback task has no message details")

type Identity struct {
	SenderName string
	PortalName string
	FSPCode    string
}

// CallbackService signs and posts queued callbacks to the portal.
type CallbackService struct {
	identity    Identity
	signer      signer.Signer
	sender      callback.Sender
	archive     interfaces.ArchiverInterface
	deadLetters interfaces.DeadLetterPublisherInterface
	apps        interfaces.ApplicationRepositoryInterface
	admin       interfaces.TaskAdminInterface
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewCallbackService(
	identity Identity,
	s signer.Signer,
	sender callback.Sender,
	archive interfaces.ArchiverInterface,
	deadLetters interfaces.DeadLetterPublisherInterface,
	apps interfaces.ApplicationRepositoryInterface,
	admin interfaces.TaskAdminInterface,
	m *metrics.Metrics,
) *CallbackService {
	return &CallbackService{
		identity:    identity,
		signer:      s,
		sender:      sender,
		archive:     archive,
		deadLetters: deadLetters,
		apps:        apps,
		admin:       admin,
		metrics:     m,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Deliver is the DELIVER_CALLBACK task handler. The msgId was fixed when the callback was queued,
// so every retry carries the same one.
func (c *CallbackService) Deliver(ctx context.Context, task *models.Task) error {
	payload := task.Payload
	if payload.DetailsXML == "" || payload.MessageType == "" {
		return ErrEmptyPayload
	}

	header := protocol.Header{
		Sender:      c.identity.SenderName,
		Receiver:    c.identity.PortalName,
		FSPCode:     c.identity.FSPCode,
		MsgID:       payload.SourceMsgID,
		MessageType: payload.MessageType,
	}
	fragment, err := protocol.BuildData(header, []byte(payload.DetailsXML))
	if err != nil {
		return err
	}
	signed, err := protocol.SignDocument(c.signer, fragment)
	if err != nil {
		return fmt.Errorf("sign callback: %w", err)
	}

	c.archiveDocument(ctx, task.ApplicationID, header, signed)

	fields := []zap.Field{
		zap.String("application_id", task.ApplicationID),
		zap.String("message_type", payload.MessageType),
		zap.String("msg_id", payload.SourceMsgID),
		zap.Int("attempt", task.Attempts),
	}
	if err := c.sender.Send(ctx, signed); err != nil {
		logger.CtxWarn(ctx, log_messages.CallbackDeliveryFailed, append(fields, zap.Error(err))...)
		c.metrics.ObserveCallback(payload.MessageType, "failed")
		return err
	}
	logger.CtxInfo(ctx, log_messages.CallbackDelivered, fields...)
	c.metrics.ObserveCallback(payload.MessageType, "delivered")
	return nil
}

func (c *CallbackService) archiveDocument(ctx context.Context, applicationID string, header protocol.Header, body []byte) {
	if c.archive == nil {
		return
	}
	err := c.archive.Archive(ctx, gcs.ArchivedDocument{
		ApplicationID: applicationID,
		MsgID:         header.MsgID,
		MessageType:   header.MessageType,
		Direction:     gcs.Outbound,
		Body:          body,
		At:            c.now(),
	})
	if err != nil {
		logger.CtxWarn(ctx, "Failed to archive callback", zap.String("msg_id", header.MsgID), zap.Error(err))
	}
}

// OnDead dead-letters a callback that spent its attempts and records it on the application.
func (c *CallbackService) OnDead(ctx context.Context, task *models.Task, cause error) {
	logger.CtxError(ctx, log_messages.CallbackDeadLettered, cause,
		zap.String("application_id", task.ApplicationID),
		zap.String("message_type", task.Payload.MessageType),
	)
	c.metrics.ObserveCallback(task.Payload.MessageType, "dead")

	if c.apps != nil {
		if err := c.apps.AppendError(ctx, task.ApplicationID, consts.StageCallback, cause); err != nil {
			logger.CtxWarn(ctx, "Failed to record dead callback", zap.Error(err))
		}
	}
	if c.deadLetters == nil {
		return
	}
	letter := eventmodels.CallbackDeadLetter{
		ApplicationID: task.ApplicationID,
		TaskID:        task.TaskID,
		MessageType:   task.Payload.MessageType,
		MsgID:         task.Payload.SourceMsgID,
		Attempts:      task.Attempts,
		LastError:     cause.Error(),
		DeadAt:        c.now(),
	}
	if err := c.deadLetters.PublishDeadLetter(ctx, letter); err != nil {
		logger.CtxError(ctx, "Failed to publish callback dead letter", err, zap.String("task_id", task.TaskID))
	}
}

// Resend puts every dead callback of an application back on the queue.
func (c *CallbackService) Resend(ctx context.Context, applicationID string) (int64, error) {
	if _, err := c.apps.FindByApplicationID(ctx, applicationID); err != nil {
		return 0, err
	}
	revived, err := c.admin.Requeue(ctx, applicationID, consts.TaskDeliverCallback)
	if err != nil {
		return 0, err
	}
	logger.CtxInfo(ctx, "Dead callbacks requeued",
		zap.String("application_id", applicationID), zap.Int64("count", revived))
	return revived, nil
}
