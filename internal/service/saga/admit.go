package saga

import (
	"context"

	"ess-loan-gateway/internal/pkg/consts"
	"ess-loan-gateway/internal/pkg/error_handling"
	"ess-loan-gateway/internal/pkg/logger"
	"ess-loan-gateway/internal/pkg/store/models"

	"go.uber.org/zap"
)

// Offer is an offer-class command after parsing.
type Offer struct {
	MsgID         string
	ApplicationID string
	Kind          consts.ApplicationKind
	Terms         models.LoanTerms
	Snapshot      models.ApplicantSnapshot
	Takeover      *models.TakeoverDetails
	Restructure   *RestructureRequest
}

type RestructureRequest struct {
	LoanNumber      string
	NewTenureMonths int
	Reason          string
}

// AdmitOffer is the synchronous phase of an offer: one record per applicationId, then a DECIDE_OFFER task.
// A restructure must name a loan alias we issued whose application is DISBURSED.
func (s *Saga) AdmitOffer(ctx context.Context, offer Offer) (*models.LoanApplication, error) {
	app := &models.LoanApplication{
		ApplicationID: offer.ApplicationID,
		SubjectID:     offer.Snapshot.CheckNumber,
		Kind:          offer.Kind,
		DeclaredKind:  offer.Kind,
		Terms:         offer.Terms,
		Snapshot:      offer.Snapshot,
		Takeover:      offer.Takeover,
		LastMsgID:     offer.MsgID,
	}

	if offer.Kind == consts.KindRestructure {
		if err := s.linkRestructure(ctx, app, offer); err != nil {
			return nil, err
		}
	} else if _, err := s.products.FindByCode(ctx, offer.Terms.ProductCode); err != nil {
		return nil, err
	}

	stored, created, err := s.apps.Admit(ctx, app)
	if err != nil {
		return nil, err
	}

	if created {
		s.announce(ctx, "", stored)
	} else if stored.Status == consts.StatusInitialOffer && stored.Kind != consts.KindRestructure {
		if _, err := s.apps.MergeOfferTerms(ctx, stored.ApplicationID, offer.Terms); err != nil {
			return nil, err
		}
		stored.Terms = offer.Terms
	}
	logger.CtxInfo(ctx, "Offer admitted",
		zap.String("application_id", stored.ApplicationID),
		zap.String("kind", string(stored.Kind)),
		zap.Bool("created", created),
	)

	if err := s.enqueue(ctx, consts.TaskDecideOffer, stored.ApplicationID, offer.MsgID); err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *Saga) linkRestructure(ctx context.Context, app *models.LoanApplication, offer Offer) error {
	req := offer.Restructure
	if req == nil {
		return error_handling.NewMissingFieldsError([]string{"LoanNumber", "NewTenure"})
	}

	// A re-submitted restructure keeps its original link; the prior loan has usually moved on by then.
	if existing, err := s.apps.FindByApplicationID(ctx, offer.ApplicationID); err == nil && existing.RestructureLink != nil {
		app.Snapshot = existing.Snapshot
		app.SubjectID = existing.SubjectID
		app.Terms = existing.Terms
		app.RestructureLink = existing.RestructureLink
		return nil
	}

	prior, err := s.apps.FindByLoanAlias(ctx, req.LoanNumber)
	if err != nil {
		return err
	}
	if prior.Snapshot.CheckNumber != offer.Snapshot.CheckNumber {
		return &error_handling.NotFoundError{Resource: "loan", ID: req.LoanNumber}
	}
	if prior.Status != consts.StatusDisbursed {
		return &error_handling.StateError{
			ApplicationID: prior.ApplicationID,
			Status:        string(prior.Status),
			Action:        "restructure",
		}
	}

	snapshot := prior.Snapshot
	if offer.Snapshot.BasicSalary > 0 {
		snapshot.BasicSalary = offer.Snapshot.BasicSalary
		snapshot.TotalEmployeeDeduction = offer.Snapshot.TotalEmployeeDeduction
	}
	app.Snapshot = snapshot
	app.SubjectID = snapshot.CheckNumber
	app.Terms = models.LoanTerms{ProductCode: prior.Terms.ProductCode, TenureMonths: req.NewTenureMonths}
	app.RestructureLink = &models.RestructureLink{
		PriorApplicationID: prior.ApplicationID,
		PriorLoanNumber:    req.LoanNumber,
		NewTenureMonths:    req.NewTenureMonths,
		Reason:             req.Reason,
	}
	return nil
}
