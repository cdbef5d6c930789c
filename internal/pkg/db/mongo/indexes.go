package mongo

import (
	"context"
	"fmt"

	"ess-loan-gateway/internal/pkg/consts"
	"ess-loan-gateway/internal/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// CollectionIndexes maps a collection to the indexes it must carry.
var CollectionIndexes = map[string][]mongo.IndexModel{
	consts.LoanApplicationsCollection: {
		{Keys: bson.D{{Key: "applicationId", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_application_id")},
		{Keys: bson.D{{Key: "subjectId", Value: 1}}, Options: options.Index().SetName("idx_subject_id")},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "updatedAt", Value: 1}}, Options: options.Index().SetName("idx_status_updated")},
		{Keys: bson.D{{Key: "externalRefs.essLoanAlias", Value: 1}}, Options: options.Index().SetName("idx_loan_alias").SetSparse(true)},
		{Keys: bson.D{{Key: "ledgerRefs.loanId", Value: 1}}, Options: options.Index().SetName("idx_ledger_loan_id").SetSparse(true)},
		{Keys: bson.D{{Key: "actorTrail.actor", Value: 1}}, Options: options.Index().SetName("idx_actor").SetSparse(true)},
	},
	consts.SagaTasksCollection: {
		{Keys: bson.D{{Key: "dedupeKey", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_dedupe_key")},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "nextAttemptAt", Value: 1}}, Options: options.Index().SetName("idx_status_next_attempt")},
		{Keys: bson.D{{Key: "applicationId", Value: 1}, {Key: "kind", Value: 1}}, Options: options.Index().SetName("idx_application_kind")},
	},
	consts.LoanProductsCollection: {
		{Keys: bson.D{{Key: "productCode", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_product_code")},
	},
}

// EnsureIndexes creates every index in CollectionIndexes; createIndexes is a no-op for existing ones.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for collection, models := range CollectionIndexes {
		names, err := db.Collection(collection).Indexes().CreateMany(ctx, models)
		if err != nil {
			logger.CtxError(ctx, "Failed to create indexes", err, zap.String("collection", collection))
			return fmt.Errorf("create indexes on %s: %w", collection, err)
		}
		logger.CtxDebug(ctx, "Indexes ensured", zap.String("collection", collection), zap.Strings("indexes", names))
	}
	return nil
}
