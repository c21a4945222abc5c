package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/butchers-select/api/internal/handlers"
	"github.com/butchers-select/api/internal/platform/auth"
	"github.com/butchers-select/api/internal/platform/config"
	pfirestore "github.com/butchers-select/api/internal/platform/firestore"
	"github.com/butchers-select/api/internal/platform/jobs"
	"github.com/butchers-select/api/internal/platform/localcache"
	"github.com/butchers-select/api/internal/platform/observability"
	"github.com/butchers-select/api/internal/platform/secrets"
	platformstorage "github.com/butchers-select/api/internal/platform/storage"
	firestoreRepo "github.com/butchers-select/api/internal/repositories/firestore"
	"github.com/butchers-select/api/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	remittance, err := resolveRemittance(ctx, logger, cfg)
	if err != nil {
		logger.Fatal("failed to resolve remittance details", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	storageClient, err := cloudstorage.NewClient(ctx)
	if err != nil {
		logger.Fatal("failed to initialise storage client", zap.Error(err))
	}
	defer func() {
		if err := storageClient.Close(); err != nil {
			logger.Warn("storage close error", zap.Error(err))
		}
	}()

	if strings.TrimSpace(cfg.Storage.Bucket) == "" {
		logger.Fatal("storage bucket is required")
	}
	uploader, err := platformstorage.NewUploader(storageClient, cfg.Storage.Bucket,
		platformstorage.WithPublicBaseURL(cfg.Storage.PublicBaseURL),
	)
	if err != nil {
		logger.Fatal("failed to initialise storage uploader", zap.Error(err))
	}

	publisher, closePublisher, err := newOrderPublisher(ctx, logger, cfg.Jobs)
	if err != nil {
		logger.Fatal("failed to initialise order publisher", zap.Error(err))
	}
	defer closePublisher()

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier)

	cache := newSnapshotCache(logger, cfg.Cache)

	productRepo, err := firestoreRepo.NewProductRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise product repository", zap.Error(err))
	}
	orderRepo, err := firestoreRepo.NewOrderRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise order repository", zap.Error(err))
	}
	announcementRepo, err := firestoreRepo.NewAnnouncementRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise announcement repository", zap.Error(err))
	}
	settingsRepo, err := firestoreRepo.NewShippingSettingsRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise shipping settings repository", zap.Error(err))
	}

	eventLogger := observability.EventLogger()
	newID := func() string { return ulid.Make().String() }

	catalogService, err := services.NewCatalogService(services.CatalogServiceDeps{
		Repository:  productRepo,
		Cache:       cache,
		Uploader:    uploader,
		Clock:       time.Now,
		IDGenerator: newID,
		Logger:      eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise catalog service", zap.Error(err))
	}

	announcementService, err := services.NewAnnouncementService(services.AnnouncementServiceDeps{
		Repository: announcementRepo,
		Cache:      cache,
		Logger:     eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise announcement service", zap.Error(err))
	}

	shippingService, err := services.NewShippingService(services.ShippingServiceDeps{
		Repository: settingsRepo,
		Cache:      cache,
		Logger:     eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise shipping service", zap.Error(err))
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Repository: orderRepo,
		Uploader:   uploader,
		Clock:      time.Now,
		Logger:     eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	// The cart engine is stateful per identity, so each request gets a fresh engine
	// over the shared snapshot cache instead of one long-lived instance.
	cartFactory := handlers.CartFactory(func() (services.CartService, error) {
		return services.NewCartService(services.CartServiceDeps{
			Cache:  cache,
			Logger: eventLogger,
		})
	})
	checkoutFactory := handlers.CheckoutFactory(func(cart services.CartService) (services.CheckoutService, error) {
		return services.NewCheckoutService(services.CheckoutServiceDeps{
			Orders:      orderRepo,
			Cart:        cart,
			Shipping:    shippingService,
			Uploader:    uploader,
			Publisher:   publisher,
			Clock:       time.Now,
			IDGenerator: newID,
			Logger:      eventLogger,
		})
	})

	publicHandlers := handlers.NewPublicHandlers(catalogService, announcementService, shippingService,
		handlers.WithRemittanceInfo(remittance),
	)
	cartHandlers := handlers.NewCartHandlers(cartFactory, shippingService)
	orderHandlers := handlers.NewOrderHandlers(orderService, cartFactory, checkoutFactory)
	adminHandlers := handlers.NewAdminHandlers(catalogService, orderService, announcementService, shippingService)

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthVersion(buildVersion()),
		handlers.WithReadinessCheck("firestore", firestoreCheck(firestoreClient)),
	)

	opts := []handlers.Option{
		handlers.WithMiddlewares(
			observability.RequestLogger(logger.Named("http")),
			observability.TraceMiddleware(),
			authenticator.Middleware(),
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithPublicRoutes(publicHandlers.Routes),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithAdminRoutes(adminHandlers.Routes),
	}

	if endpoint := strings.TrimSpace(cfg.StoreLookup.EndpointURL); endpoint != "" {
		storeLookup, err := services.NewStoreLookupService(services.StoreLookupDeps{
			Endpoint: endpoint,
			Debounce: cfg.StoreLookup.Debounce,
			Logger:   eventLogger,
		})
		if err != nil {
			logger.Fatal("failed to initialise store lookup service", zap.Error(err))
		}
		storeHandlers := handlers.NewStoreHandlers(storeLookup)
		opts = append(opts, handlers.WithStoreRoutes(storeHandlers.Routes))
	} else {
		logger.Warn("store lookup endpoint not configured; store search disabled")
	}

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("butchers-select api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// resolveRemittance resolves any secret:// references in the bank transfer details.
// When no field is a reference the secret manager client is never created.
func resolveRemittance(ctx context.Context, logger *zap.Logger, cfg config.Config) (handlers.RemittanceInfo, error) {
	info := handlers.RemittanceInfo{
		BankName:      cfg.Remittance.BankName,
		BankCode:      cfg.Remittance.BankCode,
		AccountNumber: cfg.Remittance.AccountNumber,
		AccountName:   cfg.Remittance.AccountName,
	}

	refs := []*string{&info.BankName, &info.BankCode, &info.AccountNumber, &info.AccountName}
	hasRef := false
	for _, ref := range refs {
		if strings.HasPrefix(strings.TrimSpace(*ref), "secret://") {
			hasRef = true
			break
		}
	}
	if !hasRef {
		return info, nil
	}

	projectID := strings.TrimSpace(cfg.Firebase.ProjectID)
	if projectID == "" {
		return info, errors.New("remittance secrets require a firebase project id")
	}

	var clientOpts []option.ClientOption
	if cfg.Firebase.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.Firebase.CredentialsFile))
	}
	fetcher, err := secrets.NewFetcher(ctx, projectID, logger.Named("secrets"), clientOpts...)
	if err != nil {
		return info, err
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	for _, ref := range refs {
		resolved, err := fetcher.Resolve(ctx, *ref)
		if err != nil {
			return info, err
		}
		*ref = resolved
	}
	return info, nil
}

// newOrderPublisher wires the Pub/Sub topic for order notification jobs. Publishing
// is optional: when disabled or unconfigured, submissions simply skip the notify step.
func newOrderPublisher(ctx context.Context, logger *zap.Logger, cfg config.JobsConfig) (jobs.OrderPublisher, func(), error) {
	noop := func() {}
	if cfg.PublishDisabled || strings.TrimSpace(cfg.OrderTopic) == "" {
		logger.Info("order notification publishing disabled")
		return nil, noop, nil
	}
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, noop, errors.New("jobs project id is required when publishing is enabled")
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, noop, fmt.Errorf("initialise pubsub client: %w", err)
	}
	topic := client.Topic(cfg.OrderTopic)

	publisher, err := jobs.NewPubSubOrderPublisher(topic)
	if err != nil {
		_ = client.Close()
		return nil, noop, err
	}

	cleanup := func() {
		topic.Stop()
		if err := client.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}
	return publisher, cleanup, nil
}

// newSnapshotCache prefers the directory-backed cache so snapshots survive restarts,
// falling back to memory when the directory cannot be created.
func newSnapshotCache(logger *zap.Logger, cfg config.CacheConfig) localcache.Cache {
	dir, err := localcache.NewDir(cfg.Dir)
	if err != nil {
		logger.Warn("cache directory unavailable; using in-memory cache", zap.Error(err))
		return localcache.NewMemory()
	}
	return dir
}

func buildVersion() string {
	if version := strings.TrimSpace(os.Getenv("BUILD_VERSION")); version != "" {
		return version
	}
	return "dev"
}

func firestoreCheck(client *firestore.Client) handlers.ReadinessCheck {
	return func(ctx context.Context) error {
		checkCtx, cancel := context.WithTimeout(ctx, 1500*time.Millisecond)
		defer cancel()
		iter := client.Collections(checkCtx)
		if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
			return err
		}
		return nil
	}
}
