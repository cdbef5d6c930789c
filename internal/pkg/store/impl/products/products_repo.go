package products

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ess-loan-gateway/internal/pkg/consts"
	mongodb "ess-loan-gateway/internal/pkg/db/mongo"
	"ess-loan-gateway/internal/pkg/error_handling"
	"ess-loan-gateway/internal/pkg/logger"
	"ess-loan-gateway/internal/pkg/store/models"
	"ess-loan-gateway/internal/pkg/store/repository"
	"ess-loan-gateway/internal/service/interfaces"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// ProductRepository reads the loan product catalog through a Redis cache.
type ProductRepository struct {
	repo     interfaces.ProductStoreInterface
	cache    interfaces.RedisStoreOperations
	cacheTTL time.Duration
}

func NewProductRepository(client *mongodb.MongoClient, cache interfaces.RedisStoreOperations, cacheTTL time.Duration) *ProductRepository {
	collection := client.Database.Collection(consts.LoanProductsCollection)
	return NewProductRepositoryWithInterface(repository.NewMongoRepository[models.LoanProduct](collection), cache, cacheTTL)
}

func NewProductRepositoryWithInterface(
	repo interfaces.ProductStoreInterface,
	cache interfaces.RedisStoreOperations,
	cacheTTL time.Duration,
) *ProductRepository {
	return &ProductRepository{repo: repo, cache: cache, cacheTTL: cacheTTL}
}

// FindByCode returns an active product. Cache misses and cache errors fall through to Mongo.
func (r *ProductRepository) FindByCode(ctx context.Context, productCode string) (*models.LoanProduct, error) {
	key := models.ProductKeyBuilder(productCode)

	if cached, err := r.cache.Get(ctx, key); err == nil {
		var product models.LoanProduct
		if jsonErr := json.Unmarshal([]byte(cached), &product); jsonErr == nil {
			return &product, nil
		}
		logger.CtxWarn(ctx, "Discarding unreadable cached product", zap.String("product_code", productCode))
	} else if !errors.Is(err, redis.Nil) {
		logger.CtxWarn(ctx, "Product cache unavailable", zap.String("product_code", productCode), zap.Error(err))
	}

	product, err := r.repo.FindOne(ctx, bson.M{"productCode": productCode, "active": true}, options.FindOne())
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &error_handling.NotFoundError{Resource: "product", ID: productCode}
		}
		logger.CtxError(ctx, "Error finding loan product", err, zap.String("product_code", productCode))
		return nil, err
	}

	if payload, err := json.Marshal(product); err == nil {
		if err := r.cache.Set(ctx, key, payload, r.cacheTTL); err != nil {
			logger.CtxWarn(ctx, "Failed to cache product", zap.String("product_code", productCode), zap.Error(err))
		}
	}
	return &product, nil
}

// Save upserts a product by code and drops its cache entry.
func (r *ProductRepository) Save(ctx context.Context, product models.LoanProduct) error {
	_, err := r.repo.ApplyUpdate(ctx,
		bson.M{"productCode": product.ProductCode},
		bson.M{"$set": bson.M{
			"name":             product.Name,
			"minPrincipal":     product.MinPrincipal,
			"maxPrincipal":     product.MaxPrincipal,
			"minTenure":        product.MinTenure,
			"maxTenure":        product.MaxTenure,
			"annualRatePct":    product.AnnualRatePct,
			"processingFeePct": product.ProcessingFeePct,
			"insurancePct":     product.InsurancePct,
			"otherCharges":     product.OtherCharges,
			"ledgerProductId":  product.LedgerProductID,
			"active":           product.Active,
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		logger.CtxError(ctx, "Failed to save loan product", err, zap.String("product_code", product.ProductCode))
		return err
	}

	if err := r.cache.Delete(ctx, models.ProductKeyBuilder(product.ProductCode)); err != nil {
		logger.CtxWarn(ctx, "Failed to evict cached product", zap.String("product_code", product.ProductCode), zap.Error(err))
	}
	return nil
}

func (r *ProductRepository) ListActive(ctx context.Context) ([]models.LoanProduct, error) {
	return r.repo.Find(ctx, bson.M{"active": true}, options.Find().SetSort(bson.D{{Key: "productCode", Value: 1}}))
}
