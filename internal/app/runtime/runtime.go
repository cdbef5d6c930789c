package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"ess-loan-gateway/internal/app/handlers"
	"ess-loan-gateway/internal/app/router"
	"ess-loan-gateway/internal/pkg/cleanup"
	"ess-loan-gateway/internal/pkg/config"
	mongodb "ess-loan-gateway/internal/pkg/db/mongo"
	redisdb "ess-loan-gateway/internal/pkg/db/redis"
	"ess-loan-gateway/internal/pkg/downstream/callback"
	"ess-loan-gateway/internal/pkg/downstream/ledger"
	"ess-loan-gateway/internal/pkg/gcs"
	"ess-loan-gateway/internal/pkg/kafka"
	"ess-loan-gateway/internal/pkg/log_messages"
	"ess-loan-gateway/internal/pkg/logger"
	"ess-loan-gateway/internal/pkg/metrics"
	"ess-loan-gateway/internal/pkg/otel"
	"ess-loan-gateway/internal/pkg/pubsub"
	"ess-loan-gateway/internal/pkg/signer"
	"ess-loan-gateway/internal/pkg/store/impl/applications"
	"ess-loan-gateway/internal/pkg/store/impl/products"
	"ess-loan-gateway/internal/pkg/store/impl/tasks"
	"ess-loan-gateway/internal/pkg/store/repository"
	"ess-loan-gateway/internal/pkg/worker"
	callbacks_service "ess-loan-gateway/internal/service/callbacks"
	gateway_service "ess-loan-gateway/internal/service/gateway"
	"ess-loan-gateway/internal/service/interfaces"
	pubsub_service "ess-loan-gateway/internal/service/pubsub"
	"ess-loan-gateway/internal/service/saga"
	tasks_service "ess-loan-gateway/internal/service/tasks"

	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// App is the wired gateway process: HTTP surface, task dispatcher, ledger event consumer and reconciler.
type App struct {
	cfg        *config.AppConfig
	server     *http.Server
	pool       *worker.WorkerPool
	dispatcher *tasks_service.Dispatcher
	saga       *saga.Saga
	apps       *applications.ApplicationRepository
	tasks      *tasks.TaskRepository
	metrics    *metrics.Metrics

	consumer     *pubsub.PubSubConsumer
	ledgerEvents *pubsub_service.LedgerEventConsumer

	resources cleanup.Resources
}

// New connects every backing client and wires the services. On error, whatever was opened is released.
func New(ctx context.Context, cfg *config.AppConfig) (app *App, err error) {
	res := cleanup.Resources{Others: map[string]cleanup.Closer{}}
	defer func() {
		if err != nil {
			cleanup.CleanupResources(ctx, res)
		}
	}()

	if cfg.Otel.Enabled {
		shutdown, err := otel.Setup(ctx, cfg.Otel.ServiceName, cfg.Otel.URL)
		if err != nil {
			return nil, fmt.Errorf("otel setup: %w", err)
		}
		res.Flush = append(res.Flush, shutdown)
	}

	mongoClient, err := mongodb.ConnectToMongoDB(ctx, cfg.Mongo)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	res.Mongo = mongoClient
	if err := mongodb.EnsureIndexes(ctx, mongoClient.Database); err != nil {
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}

	redisClient, err := redisdb.ConnectToRedis(ctx, cfg.Redis, nil)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	res.Redis = redisClient

	rsaSigner, err := signer.LoadRSASigner(cfg.ESS.PrivateKeyPath, cfg.ESS.PortalKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load signing keys: %w", err)
	}

	var events interfaces.StatusEventPublisherInterface
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewKafkaProducer(cfg.Kafka)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		res.Others["kafka"] = producer
		events = producer
	}

	var deadLetters interfaces.DeadLetterPublisherInterface
	var consumer *pubsub.PubSubConsumer
	if cfg.PubSub.Enabled {
		publisher, err := pubsub.NewPubSubPublisher(ctx, cfg.PubSub.ProjectID, cfg.PubSub.DeadLetterTopic)
		if err != nil {
			return nil, fmt.Errorf("pubsub publisher: %w", err)
		}
		res.Others["pubsub-publisher"] = publisher
		deadLetters = publisher

		consumer, err = pubsub.NewPubSubConsumer(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("pubsub consumer: %w", err)
		}
		consumer.MaxOutstanding = cfg.PubSub.MaxOutstandingMessages
		res.Others["pubsub-consumer"] = consumer
	}

	var archive interfaces.ArchiverInterface
	if cfg.GCS.Enabled {
		gcsArchive, err := gcs.NewGCSClient(ctx, cfg.GCS.Bucket, cfg.GCS.ArchivePrefix)
		if err != nil {
			return nil, fmt.Errorf("gcs archive: %w", err)
		}
		res.Flush = append(res.Flush, func(ctx context.Context) error {
			gcsArchive.Close(ctx)
			return nil
		})
		archive = gcsArchive
	}

	m := metrics.New()
	store := repository.NewRedisStoreAdapter(redisClient.Client)
	appRepo := applications.NewApplicationRepository(mongoClient)
	taskRepo := tasks.NewTaskRepository(mongoClient)
	productRepo := products.NewProductRepository(mongoClient, store, cfg.Products.CacheTTL)
	ledgerClient := ledger.NewRESTClient(cfg.Ledger)

	s := saga.NewSaga(appRepo, productRepo, ledgerClient, taskRepo, events, store, m, saga.Config{
		FSPCode:             cfg.ESS.FSPCode,
		LedgerTimeout:       cfg.Ledger.Timeout,
		TaskMaxAttempts:     cfg.Tasks.MaxAttempts,
		CallbackMaxAttempts: cfg.Tasks.CallbackMaxAttempts,
		ReconcilePageSize:   cfg.Reconcile.PageSize,
		ReconcileLockTTL:    cfg.Reconcile.LockTTL,
	})

	callbacks := callbacks_service.NewCallbackService(
		callbacks_service.Identity{
			SenderName: cfg.ESS.SenderName,
			PortalName: cfg.ESS.PortalName,
			FSPCode:    cfg.ESS.FSPCode,
		},
		rsaSigner, callback.NewHTTPSender(cfg.ESS), archive, deadLetters, appRepo, taskRepo, m,
	)

	gateway := gateway_service.NewGatewayService(rsaSigner, s, appRepo, productRepo, ledgerClient, store, archive, m,
		gateway_service.Config{
			FSPCode:               cfg.ESS.FSPCode,
			SenderName:            cfg.ESS.SenderName,
			PortalName:            cfg.ESS.PortalName,
			DedupeTTL:             cfg.ESS.DedupeTTL,
			PendingDedupeTTL:      cfg.ESS.PendingDedupeTTL,
			SettlementAccount:     cfg.ESS.SettlementAccount,
			SettlementAccountName: cfg.ESS.SettlementAccountName,
			SettlementSwiftCode:   cfg.ESS.SettlementSwiftCode,
			LedgerTimeout:         cfg.Ledger.Timeout,
		})

	pool := worker.NewWorkerPool(cfg.Tasks.Workers)
	dispatcher := tasks_service.NewDispatcher(taskRepo, appRepo, pool, m, tasks_service.Config{
		PollInterval:  cfg.Tasks.PollInterval,
		ClaimBatch:    cfg.Tasks.ClaimBatch,
		LockDuration:  cfg.Tasks.LockDuration,
		LeaseDuration: cfg.Tasks.LeaseDuration,
		BaseBackoff:   cfg.Tasks.BaseBackoff,
		MaxBackoff:    cfg.Tasks.MaxBackoff,
	})
	registerTaskHandlers(dispatcher, s, callbacks)

	engine := router.SetupRouter(cfg.Otel.ServiceName, router.Handlers{
		Ess:    handlers.NewEssHandler(gateway, cfg.ESS.MaxBodyBytes),
		Ledger: handlers.NewLedgerWebhookHandler(s),
		Ops:    handlers.NewOpsHandler(appRepo, taskRepo, callbacks, s, productRepo),
		Health: handlers.NewHealthCheckHandler(map[string]handlers.Check{
			"mongo": func(ctx context.Context) error { return mongoClient.Client.Ping(ctx, readpref.Primary()) },
			"redis": func(ctx context.Context) error { return redisClient.Client.Ping(ctx).Err() },
		}),
		Metrics: m.Handler(),
	})

	return &App{
		cfg: cfg,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      engine,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		pool:         pool,
		dispatcher:   dispatcher,
		saga:         s,
		apps:         appRepo,
		tasks:        taskRepo,
		metrics:      m,
		consumer:     consumer,
		ledgerEvents: pubsub_service.NewLedgerEventConsumer(s),
		resources:    res,
	}, nil
}

// Run serves until ctx is cancelled or the listener fails, then drains in-flight work.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.dispatcher.Start(ctx)
	}()

	if a.consumer != nil {
		a.consumer.StartConsumer(a.cfg.PubSub.LedgerEventsSubscription, a.ledgerEvents.HandleLedgerEventMessage)
	}

	if a.cfg.Reconcile.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runEvery(ctx, a.cfg.Reconcile.Interval, func(ctx context.Context) {
				reconcileOnce(ctx, a.saga)
				refreshBacklog(ctx, a.apps, a.tasks, a.metrics)
			})
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info(log_messages.ServerShutdown)
	case err := <-serveErr:
		logger.Error(fmt.Sprintf(log_messages.ServerStartFailure, err), err)
		runErr = err
	}

	shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
	defer stop()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		logger.Error(fmt.Sprintf(log_messages.ServerForcedShutdown, err), err)
	}

	cancel()
	wg.Wait()
	a.pool.Stop()
	logger.Info(log_messages.ServerExiting)
	return runErr
}

// Shutdown releases the clients opened by New.
func (a *App) Shutdown(ctx context.Context) {
	cleanup.CleanupResources(ctx, a.resources)
}
