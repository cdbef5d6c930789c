package cleanup

import (
	"context"

	mongodb "ess-loan-gateway/internal/pkg/db/mongo"
	redisdb "ess-loan-gateway/internal/pkg/db/redis"
	"ess-loan-gateway/internal/pkg/log_messages"
	"ess-loan-gateway/internal/pkg/logger"

	"go.uber.org/zap"
)

// Closer is any client with a plain Close.
type Closer interface {
	Close() error
}

// Resources are the long-lived clients released on shutdown. Nil entries are skipped.
type Resources struct {
	Mongo  *mongodb.MongoClient
	Redis  *redisdb.RedisClient
	Others map[string]Closer
	// Flush runs first so buffered spans and archive writes go out before connections close.
	Flush []func(ctx context.Context) error
}

func CleanupResources(ctx context.Context, res Resources) {
	logger.CtxInfo(ctx, log_messages.CleanupStarted)

	for _, flush := range res.Flush {
		if flush == nil {
			continue
		}
		if err := flush(ctx); err != nil {
			logger.CtxError(ctx, "Failed to flush on shutdown", err)
		}
	}
	for name, closer := range res.Others {
		if closer == nil {
			continue
		}
		if err := closer.Close(); err != nil {
			logger.CtxError(ctx, "Failed to close client", err, zap.String("client", name))
		}
	}
	if res.Mongo != nil && res.Mongo.Client != nil {
		if err := mongodb.Disconnect(res.Mongo.Client); err != nil {
			logger.CtxError(ctx, "Failed to disconnect from MongoDB", err)
		}
	}
	if res.Redis != nil && res.Redis.Client != nil {
		if err := redisdb.Disconnect(res.Redis.Client); err != nil {
			logger.CtxError(ctx, "Failed to disconnect from Redis", err)
		}
	}

	logger.CtxInfo(ctx, log_messages.CleanupCompleted)
}
