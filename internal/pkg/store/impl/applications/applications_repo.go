package applications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ess-loan-gateway/internal/pkg/consts"
	mongodb "ess-loan-gateway/internal/pkg/db/mongo"
	"ess-loan-gateway/internal/pkg/error_handling"
	"ess-loan-gateway/internal/pkg/logger"
	"ess-loan-gateway/internal/pkg/store/models"
	"ess-loan-gateway/internal/pkg/store/repository"
	"ess-loan-gateway/internal/service/interfaces"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const resourceApplication = "application"

type ApplicationRepository struct {
	repo interfaces.ApplicationStoreInterface
	now  func() time.Time
}

func NewApplicationRepository(client *mongodb.MongoClient) *ApplicationRepository {
	collection := client.Database.Collection(consts.LoanApplicationsCollection)
	return NewApplicationRepositoryWithInterface(repository.NewMongoRepository[models.LoanApplication](collection))
}

func NewApplicationRepositoryWithInterface(repo interfaces.ApplicationStoreInterface) *ApplicationRepository {
	return &ApplicationRepository{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Admit inserts app unless a non-terminal record with the same applicationId exists.
// created is false when the record already existed; a terminal duplicate is a StateError.
func (r *ApplicationRepository) Admit(ctx context.Context, app *models.LoanApplication) (*models.LoanApplication, bool, error) {
	now := r.now()
	app.CreatedAt = now
	app.UpdatedAt = now
	app.Status = consts.StatusInitialOffer
	app.StageTimestamps.Offered = &now

	onInsert, err := toInsertDocument(app, "applicationId", "updatedAt", "lastMsgId")
	if err != nil {
		return nil, false, err
	}

	filter := bson.M{
		"applicationId": app.ApplicationID,
		"status":        bson.M{"$nin": consts.TerminalStatuses},
	}
	update := bson.M{
		"$setOnInsert": onInsert,
		"$set":         bson.M{"updatedAt": now, "lastMsgId": app.LastMsgID},
	}

	result, err := r.repo.ApplyUpdate(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			existing, findErr := r.FindByApplicationID(ctx, app.ApplicationID)
			if findErr != nil {
				return nil, false, findErr
			}
			return nil, false, &error_handling.StateError{
				ApplicationID: app.ApplicationID,
				Status:        string(existing.Status),
				Action:        "re-submit",
			}
		}
		logger.CtxError(ctx, "Failed to admit application", err, zap.String("application_id", app.ApplicationID))
		return nil, false, err
	}

	stored, err := r.FindByApplicationID(ctx, app.ApplicationID)
	if err != nil {
		return nil, false, err
	}
	return stored, result.UpsertedCount > 0, nil
}

// MergeOfferTerms refreshes the requested terms of a record still at INITIAL_OFFER.
func (r *ApplicationRepository) MergeOfferTerms(ctx context.Context, applicationID string, terms models.LoanTerms) (bool, error) {
	res, err := r.repo.ApplyUpdate(ctx,
		bson.M{"applicationId": applicationID, "status": consts.StatusInitialOffer},
		bson.M{"$set": bson.M{"terms": terms, "updatedAt": r.now()}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (r *ApplicationRepository) FindByApplicationID(ctx context.Context, applicationID string) (*models.LoanApplication, error) {
	return r.findOne(ctx, bson.M{"applicationId": applicationID}, applicationID)
}

// FindByLoanAlias resolves the portal-facing loan number.
func (r *ApplicationRepository) FindByLoanAlias(ctx context.Context, alias string) (*models.LoanApplication, error) {
	return r.findOne(ctx, bson.M{"externalRefs.essLoanAlias": alias}, alias)
}

func (r *ApplicationRepository) FindByLedgerLoanID(ctx context.Context, loanID string) (*models.LoanApplication, error) {
	return r.findOne(ctx, bson.M{"ledgerRefs.loanId": loanID}, loanID)
}

func (r *ApplicationRepository) findOne(ctx context.Context, filter bson.M, id string) (*models.LoanApplication, error) {
	app, err := r.repo.FindOne(ctx, filter, options.FindOne())
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &error_handling.NotFoundError{Resource: resourceApplication, ID: id}
		}
		logger.CtxError(ctx, "Error finding application", err, zap.String("id", id))
		return nil, err
	}
	return &app, nil
}

// Transition moves an application to status `to` iff its current status is in from. The status change
// and any extra fields are applied in one atomic update. A mismatch is a StateError carrying the
// status actually stored.
func (r *ApplicationRepository) Transition(
	ctx context.Context,
	applicationID string,
	from []consts.ApplicationStatus,
	to consts.ApplicationStatus,
	set bson.M,
) (*models.LoanApplication, error) {
	now := r.now()
	fields := bson.M{"status": to, "updatedAt": now}
	if field := models.StageTimestampField(to); field != "" {
		fields[field] = now
	}
	for k, v := range set {
		fields[k] = v
	}

	app, err := r.repo.FindOneAndUpdate(ctx,
		bson.M{"applicationId": applicationID, "status": bson.M{"$in": from}},
		bson.M{"$set": fields},
	)
	if err == nil {
		logger.CtxInfo(ctx, "Application transitioned",
			zap.String("application_id", applicationID),
			zap.String("to", string(to)),
		)
		return &app, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		logger.CtxError(ctx, "Failed to transition application", err, zap.String("application_id", applicationID))
		return nil, err
	}

	current, findErr := r.FindByApplicationID(ctx, applicationID)
	if findErr != nil {
		return nil, findErr
	}
	return nil, &error_handling.StateError{
		ApplicationID: applicationID,
		Status:        string(current.Status),
		Action:        "move to " + string(to) + " from",
	}
}

// SetOnce writes field only when it is absent, so ledger and external refs never change once stored.
func (r *ApplicationRepository) SetOnce(ctx context.Context, applicationID, field string, value interface{}) (bool, error) {
	res, err := r.repo.ApplyUpdate(ctx,
		bson.M{"applicationId": applicationID, field: bson.M{"$exists": false}},
		bson.M{"$set": bson.M{field: value, "updatedAt": r.now()}},
	)
	if err != nil {
		logger.CtxError(ctx, "Failed to set write-once field", err,
			zap.String("application_id", applicationID), zap.String("field", field))
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// SetFields updates mutable, non-status fields.
func (r *ApplicationRepository) SetFields(ctx context.Context, applicationID string, set bson.M) error {
	fields := bson.M{"updatedAt": r.now()}
	for k, v := range set {
		fields[k] = v
	}
	_, err := r.repo.ApplyUpdate(ctx, bson.M{"applicationId": applicationID}, bson.M{"$set": fields})
	return err
}

// AppendError pushes to the append-only error log.
func (r *ApplicationRepository) AppendError(ctx context.Context, applicationID, stage string, cause error) error {
	entry := models.ErrorEntry{Stage: stage, Error: cause.Error(), At: r.now()}
	_, err := r.repo.ApplyUpdate(ctx,
		bson.M{"applicationId": applicationID},
		bson.M{"$push": bson.M{"errorLog": entry}},
	)
	if err != nil {
		logger.CtxError(ctx, "Failed to append application error", err, zap.String("application_id", applicationID))
	}
	return err
}

// AcquireLease takes the per-application processing lease when it is free, expired or already ours.
func (r *ApplicationRepository) AcquireLease(ctx context.Context, applicationID, owner string, ttl time.Duration) (bool, error) {
	now := r.now()
	filter := bson.M{
		"applicationId": applicationID,
		"$or": bson.A{
			bson.M{"lease": bson.M{"$exists": false}},
			bson.M{"lease": nil},
			bson.M{"lease.until": bson.M{"$lt": now}},
			bson.M{"lease.owner": owner},
		},
	}
	update := bson.M{"$set": bson.M{"lease": models.Lease{Owner: owner, Until: now.Add(ttl)}}}

	_, err := r.repo.FindOneAndUpdate(ctx, filter, update)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *ApplicationRepository) ReleaseLease(ctx context.Context, applicationID, owner string) error {
	_, err := r.repo.ApplyUpdate(ctx,
		bson.M{"applicationId": applicationID, "lease.owner": owner},
		bson.M{"$unset": bson.M{"lease": ""}},
	)
	return err
}

// ListByStatus pages through applications in the given statuses ordered by _id.
func (r *ApplicationRepository) ListByStatus(
	ctx context.Context,
	statuses []consts.ApplicationStatus,
	after primitive.ObjectID,
	limit int64,
) ([]models.LoanApplication, error) {
	filter := bson.M{"status": bson.M{"$in": statuses}}
	if !after.IsZero() {
		filter["_id"] = bson.M{"$gt": after}
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetLimit(limit)
	return r.repo.Find(ctx, filter, opts)
}

func (r *ApplicationRepository) CountByStatus(ctx context.Context, status consts.ApplicationStatus) (int64, error) {
	return r.repo.CountDocuments(ctx, bson.M{"status": status})
}

func toInsertDocument(v interface{}, omit ...string) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal application: %w", err)
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal application: %w", err)
	}
	delete(doc, "_id")
	for _, k := range omit {
		delete(doc, k)
	}
	return doc, nil
}
