package gateway_service

import (
	"context"
	"strings"
	"time"

	"ess-loan-gateway/internal/pkg/consts"
	"ess-loan-gateway/internal/pkg/downstream/ledger"
	"ess-loan-gateway/internal/pkg/error_handling"
	"ess-loan-gateway/internal/pkg/gcs"
	"ess-loan-gateway/internal/pkg/log_messages"
	"ess-loan-gateway/internal/pkg/logger"
	"ess-loan-gateway/internal/pkg/metrics"
	"ess-loan-gateway/internal/pkg/otel"
	"ess-loan-gateway/internal/pkg/protocol"
	"ess-loan-gateway/internal/pkg/signer"
	"ess-loan-gateway/internal/pkg/store/models"
	"ess-loan-gateway/internal/service/interfaces"
	"ess-loan-gateway/internal/service/saga"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	replaySeparator       = "|"
	inProgressDescription = "Request already in progress"
)

// SagaCommands is the synchronous phase of every state-changing message.
type SagaCommands interface {
	AdmitOffer(ctx context.Context, offer saga.Offer) (*models.LoanApplication, error)
	AcceptFinalApproval(ctx context.Context, in saga.FinalApprovalInput) error
	Cancel(ctx context.Context, applicationID, reason string) error
	ConfirmPayoff(ctx context.Context, in saga.PayoffConfirmation) error
}

type Config struct {
	FSPCode               string
	SenderName            string
	PortalName            string
	DedupeTTL             time.Duration
	PendingDedupeTTL      time.Duration
	SettlementAccount     string
	SettlementAccountName string
	SettlementSwiftCode   string
	LedgerTimeout         time.Duration
}

// GatewayService answers one signed portal document with one signed document.
type GatewayService struct {
	signer   signer.Signer
	saga     SagaCommands
	apps     interfaces.ApplicationReaderInterface
	products interfaces.ProductCatalogInterface
	ledger   ledger.Client
	dedupe   interfaces.RedisStoreOperations
	archive  interfaces.ArchiverInterface
	metrics  *metrics.Metrics
	cfg      Config
	now      func() time.Time
	newID    func() string
}

func NewGatewayService(
	s signer.Signer,
	commands SagaCommands,
	apps interfaces.ApplicationReaderInterface,
	products interfaces.ProductCatalogInterface,
	ledgerClient ledger.Client,
	dedupe interfaces.RedisStoreOperations,
	archive interfaces.ArchiverInterface,
	m *metrics.Metrics,
	cfg Config,
) *GatewayService {
	return &GatewayService{
		signer:   s,
		saga:     commands,
		apps:     apps,
		products: products,
		ledger:   ledgerClient,
		dedupe:   dedupe,
		archive:  archive,
		metrics:  m,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// HandleInbound always produces a signed document. The error is non-nil only when even the error
// response could not be signed.
func (g *GatewayService) HandleInbound(ctx context.Context, raw []byte) ([]byte, error) {
	ctx, span := otel.StartSpan(ctx, "gateway.inbound")
	defer span.End()

	env, err := protocol.Parse(raw)
	if err != nil {
		return g.respondError(ctx, "", err)
	}
	if err := env.Verify(g.signer); err != nil {
		logger.CtxWarn(ctx, log_messages.SignatureRejected, zap.String("msg_id", env.Header.MsgID))
		return g.respondError(ctx, env.Header.MessageType, err)
	}
	msg, err := protocol.Decode(env)
	if err != nil {
		return g.respondError(ctx, env.Header.MessageType, err)
	}

	header := msg.Header
	span.SetAttributes(otel.MessageTypeKey.String(header.MessageType))
	ctx = withMsgID(logger.WithTraceID(ctx, header.MsgID), header.MsgID)
	g.archiveAsync(ctx, applicationNumber(msg.Details), header, gcs.Inbound, raw)
	logger.CtxInfo(ctx, log_messages.InboundReceived,
		zap.String("message_type", header.MessageType), zap.String("msg_id", header.MsgID))

	if !protocol.IsCommand(header.MessageType) {
		details, err := g.answerQuery(ctx, msg.Details)
		if err != nil {
			return g.respondError(ctx, header.MessageType, err)
		}
		return g.respond(ctx, header.MessageType, consts.ResponseCodeSuccess, details)
	}

	key := models.MsgIDKeyBuilder(header.MsgID)
	tracked, replay := g.claimMsgID(ctx, key)
	if replay != nil {
		return g.respond(ctx, header.MessageType, replay.ResponseCode, replay)
	}

	err = g.execute(ctx, msg.Details)
	code, description := error_handling.ResponseCodeFor(err)
	switch {
	case err == nil:
		logger.CtxInfo(ctx, log_messages.InboundAccepted, zap.String("message_type", header.MessageType))
	case code == consts.ResponseCodeMalformed:
		logger.CtxError(ctx, log_messages.UnexpectedError, err, zap.String("msg_id", header.MsgID))
	default:
		logger.CtxWarn(ctx, log_messages.InboundRejected, zap.String("response_code", code), zap.Error(err))
	}
	if tracked {
		g.settleMsgID(ctx, key, code, description)
	}
	return g.respond(ctx, header.MessageType, code, &protocol.ResponseDetails{ResponseCode: code, Description: description})
}

// claimMsgID marks a command msgId as in flight. tracked reports whether the marker is ours to settle;
// a non-nil replay is the answer to repeat for a duplicate.
func (g *GatewayService) claimMsgID(ctx context.Context, key string) (tracked bool, replay *protocol.ResponseDetails) {
	if g.dedupe == nil {
		return false, nil
	}
	acquired, err := g.dedupe.SetNX(ctx, key, models.MsgIDPendingMarker, g.cfg.PendingDedupeTTL)
	if err != nil {
		logger.CtxWarn(ctx, log_messages.DedupeStoreUnavailable, zap.Error(err))
		return false, nil
	}
	if acquired {
		return true, nil
	}

	inFlight := &protocol.ResponseDetails{ResponseCode: consts.ResponseCodeSuccess, Description: inProgressDescription}
	stored, err := g.dedupe.Get(ctx, key)
	if err != nil || stored == models.MsgIDPendingMarker {
		logger.CtxInfo(ctx, log_messages.DuplicateMsgIDInFlight, zap.String("key", key))
		return false, inFlight
	}
	code, description, ok := strings.Cut(stored, replaySeparator)
	if !ok {
		return false, inFlight
	}
	logger.CtxInfo(ctx, log_messages.DuplicateMsgIDReplayed, zap.String("key", key), zap.String("response_code", code))
	return false, &protocol.ResponseDetails{ResponseCode: code, Description: description}
}

// settleMsgID stores the final answer for replay, or frees the msgId so the portal can retry.
func (g *GatewayService) settleMsgID(ctx context.Context, key, code, description string) {
	var err error
	if code == consts.ResponseCodeMalformed {
		err = g.dedupe.Delete(ctx, key)
	} else {
		err = g.dedupe.Set(ctx, key, code+replaySeparator+description, g.cfg.DedupeTTL)
	}
	if err != nil {
		logger.CtxWarn(ctx, log_messages.DedupeStoreUnavailable, zap.String("key", key), zap.Error(err))
	}
}

func (g *GatewayService) execute(ctx context.Context, details protocol.Details) error {
	switch d := details.(type) {
	case *protocol.LoanOfferRequest:
		offer, err := offerFromFields(d.OfferFields, consts.KindNew)
		if err != nil {
			return err
		}
		return g.admit(ctx, offer)
	case *protocol.TopUpOfferRequest:
		offer, err := offerFromFields(d.OfferFields, consts.KindTopUp)
		if err != nil {
			return err
		}
		offer.Snapshot.PriorLoanNumber = d.LoanNumber
		if offer.Snapshot.SettlementAmount, err = parseAmount("SettlementAmount", d.SettlementAmount); err != nil {
			return err
		}
		return g.admit(ctx, offer)
	case *protocol.TakeoverOfferRequest:
		offer, err := offerFromFields(d.OfferFields, consts.KindTakeover)
		if err != nil {
			return err
		}
		balance, err := parseAmount("TakeOverBalance", d.TakeOverBalance)
		if err != nil {
			return err
		}
		offer.Takeover = &models.TakeoverDetails{
			PriorFSPCode:    d.FSP1Code,
			PriorLoanNumber: d.FSP1LoanNumber,
			TakeoverBalance: balance,
		}
		return g.admit(ctx, offer)
	case *protocol.RestructuringRequest:
		offer, err := restructureOffer(d)
		if err != nil {
			return err
		}
		return g.admit(ctx, offer)
	case *protocol.FinalApprovalNotification:
		return g.saga.AcceptFinalApproval(ctx, saga.FinalApprovalInput{
			ApplicationID:      d.ApplicationNumber,
			Approval:           strings.ToUpper(strings.TrimSpace(d.Approval)),
			Reason:             d.Reason,
			FSPReferenceNumber: d.FSPReferenceNumber,
			LoanNumber:         d.LoanNumber,
			MsgID:              msgIDFrom(ctx),
		})
	case *protocol.CancellationNotification:
		return g.saga.Cancel(ctx, d.ApplicationNumber, d.Reason)
	case *protocol.TakeoverPaymentNotification:
		amount, err := parseAmount("Amount", d.Amount)
		if err != nil {
			return err
		}
		return g.saga.ConfirmPayoff(ctx, saga.PayoffConfirmation{
			ApplicationID:    d.ApplicationNumber,
			PaymentReference: d.PaymentReference,
			Amount:           amount,
			MsgID:            msgIDFrom(ctx),
		})
	case *protocol.LoanChargesRequest, *protocol.TopUpPayOffBalanceRequest, *protocol.TakeoverPayOffBalanceRequest:
		return error_handling.NewMalformedError("Query sent as command", nil)
	default:
		return error_handling.NewMalformedError("Unsupported message type "+details.MessageType(), nil)
	}
}

func (g *GatewayService) admit(ctx context.Context, offer saga.Offer) error {
	offer.MsgID = msgIDFrom(ctx)
	_, err := g.saga.AdmitOffer(ctx, offer)
	return err
}

func (g *GatewayService) respondError(ctx context.Context, messageType string, err error) ([]byte, error) {
	code, description := error_handling.ResponseCodeFor(err)
	logger.CtxWarn(ctx, log_messages.InboundRejected,
		zap.String("message_type", messageType), zap.String("response_code", code), zap.Error(err))
	return g.respond(ctx, messageType, code, &protocol.ResponseDetails{ResponseCode: code, Description: description})
}

func (g *GatewayService) respond(ctx context.Context, inboundType, code string, details protocol.Details) ([]byte, error) {
	g.metrics.ObserveResponse(inboundType, code)
	header := protocol.Header{
		Sender:      g.cfg.SenderName,
		Receiver:    g.cfg.PortalName,
		FSPCode:     g.cfg.FSPCode,
		MsgID:       g.newID(),
		MessageType: details.MessageType(),
	}
	signed, err := protocol.Render(g.signer, header, details)
	if err != nil {
		logger.CtxError(ctx, "Failed to sign response", err, zap.String("message_type", header.MessageType))
		return nil, err
	}
	g.archiveAsync(ctx, "", header, gcs.Outbound, signed)
	return signed, nil
}

func (g *GatewayService) archiveAsync(ctx context.Context, applicationID string, header protocol.Header, direction gcs.Direction, body []byte) {
	if g.archive == nil {
		return
	}
	doc := gcs.ArchivedDocument{
		ApplicationID: applicationID,
		MsgID:         header.MsgID,
		MessageType:   header.MessageType,
		Direction:     direction,
		Body:          body,
		At:            g.now(),
	}
	detached := context.WithoutCancel(ctx)
	go func() {
		if err := g.archive.Archive(detached, doc); err != nil {
			logger.CtxWarn(detached, "Failed to archive document", zap.String("msg_id", doc.MsgID), zap.Error(err))
		}
	}()
}

type msgIDKey struct{}

func withMsgID(ctx context.Context, msgID string) context.Context {
	return context.WithValue(ctx, msgIDKey{}, msgID)
}

func msgIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(msgIDKey{}).(string); ok {
		return v
	}
	return ""
}

func applicationNumber(details protocol.Details) string {
	switch d := details.(type) {
	case *protocol.LoanOfferRequest:
		return d.ApplicationNumber
	case *protocol.TopUpOfferRequest:
		return d.ApplicationNumber
	case *protocol.TakeoverOfferRequest:
		return d.ApplicationNumber
	case *protocol.RestructuringRequest:
		return d.ApplicationNumber
	case *protocol.FinalApprovalNotification:
		return d.ApplicationNumber
	case *protocol.CancellationNotification:
		return d.ApplicationNumber
	case *protocol.TakeoverPaymentNotification:
		return d.ApplicationNumber
	}
	return ""
}

