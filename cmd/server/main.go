package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"bahon/internal/app"
	"bahon/internal/config"
	"bahon/internal/events"
	"bahon/internal/geocode"
	"bahon/internal/handler"
	"bahon/internal/logging"
	internalRedis "bahon/internal/redis"
	"bahon/internal/repository/postgres"
	"bahon/internal/service"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Log.Level)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic first so the database driver can be instrumented.
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		var err error
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize New Relic")
		} else {
			logger.WithField("app", cfg.NewRelic.AppName).Info("New Relic enabled")
		}
	}

	location, err := time.LoadLocation(cfg.Fare.TimeZone)
	if err != nil {
		logger.WithError(err).WithField("time_zone", cfg.Fare.TimeZone).Fatal("Invalid fare time zone")
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to redis")
	}
	defer redisClient.Close()
	logger.Info("Connected to Redis")

	var producer *events.Producer
	if cfg.NSQ.Enabled {
		producer, err = events.NewProducer(cfg.NSQ.NSQDAddr, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to NSQ")
		}
		defer producer.Stop()
	}

	svc := wireServices(db, redisClient, producer, location, cfg, logger)
	server := newServer(svc, redisClient, nrApp, cfg, logger)

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		logger.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.NSQ.Enabled {
		consumers, err := startConsumers(svc, nrApp, cfg.NSQ, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to start NSQ consumers")
		}
		g.Go(func() error {
			<-gctx.Done()
			for _, c := range consumers {
				c.Stop()
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("Server stopped with error")
		return
	}

	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}
	logger.Info("Server exited")
}

// services holds the wired application services.
type services struct {
	ledger   *service.LedgerService
	identity *service.IdentityService
	journeys *service.JourneyService
	fares    *service.FareService
	boarding *service.BoardingService
	scans    *service.ScanProcessor
}

// wireServices wires stores, repositories and services.
func wireServices(
	db *sql.DB,
	redisClient *redis.Client,
	producer *events.Producer,
	location *time.Location,
	cfg *config.Config,
	logger *logrus.Logger,
) *services {
	// Initialize Redis stores.
	boardingStore := internalRedis.NewBoardingStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	dedupeStore := internalRedis.NewDedupeStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)

	// Initialize repositories.
	ledgerRepo := postgres.NewLedgerRepository(db)
	accountRepo := postgres.NewAccountRepository(db)
	journeyRepo := postgres.NewJourneyRepository(db)
	fareRepo := postgres.NewFareRepository(db)
	txManager := postgres.NewTxManager(db)

	// A nil *Producer must not reach the interface.
	var publisher service.EventPublisher
	if producer != nil {
		publisher = producer
	}

	// Initialize services.
	ledgerService := service.NewLedgerService(cfg.Vehicle.ID, cfg.Ledger, ledgerRepo, dedupeStore, logger)
	identityService := service.NewIdentityService(accountRepo, cfg.Ledger.StoreTimeout)
	boardingService := service.NewBoardingService(ledgerService, boardingStore, lockStore, accountRepo, cfg.Ledger, logger)
	journeyService := service.NewJourneyService(ledgerService, journeyRepo, cfg.Ledger.StoreTimeout, logger)
	fareService := service.NewFareService(fareRepo, cacheStore, cfg.Fare, cfg.Ledger.StoreTimeout, logger)
	settlementService := service.NewSettlementService(txManager, fareService, cfg.Ledger, location, logger)
	notificationService := service.NewNotificationService(publisher, cfg.NSQ.SettlementFailedTopic, logger)
	geocoder := geocode.NewClient(cfg.Geocoder, cacheStore, logger)

	scanProcessor := service.NewScanProcessor(service.ScanProcessorDeps{
		VehicleID:   cfg.Vehicle.ID,
		Identity:    identityService,
		Ledger:      ledgerService,
		Boarding:    boardingService,
		Journeys:    journeyService,
		Settlement:  settlementService,
		Geocoder:    geocoder,
		Notifier:    notificationService,
		DedupeStore: dedupeStore,
		DedupeTTL:   cfg.Ledger.DedupeTTL,
		Logger:      logger,
	})

	return &services{
		ledger:   ledgerService,
		identity: identityService,
		journeys: journeyService,
		fares:    fareService,
		boarding: boardingService,
		scans:    scanProcessor,
	}
}

// newServer builds the HTTP server.
func newServer(svc *services, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config, logger *logrus.Logger) *http.Server {
	router := app.NewRouter(app.RouterDeps{
		VehicleHandler: handler.NewVehicleHandler(svc.ledger, svc.scans),
		RiderHandler:   handler.NewRiderHandler(svc.identity, svc.journeys, svc.boarding),
		FareHandler:    handler.NewFareHandler(svc.fares),
		RedisClient:    redisClient,
		NewRelicApp:    nrApp,
		Logger:         logger,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

// startConsumers subscribes to the location and scan topics.
func startConsumers(svc *services, nrApp *newrelic.Application, cfg config.NSQConfig, logger *logrus.Logger) ([]*events.Consumer, error) {
	subscriptions := []struct {
		topic   string
		handler events.MessageHandler
	}{
		{topic: cfg.LocationTopic, handler: events.LocationHandler(svc.ledger, logger)},
		{topic: cfg.ScanTopic, handler: events.ScanHandler(svc.scans, logger)},
	}

	consumers := make([]*events.Consumer, 0, len(subscriptions))
	for _, sub := range subscriptions {
		consumer, err := events.NewConsumer(events.ConsumerConfig{
			Topic:    sub.topic,
			Channel:  cfg.Channel,
			NewRelic: nrApp,
			Logger:   logger,
		}, sub.handler)
		if err != nil {
			return nil, err
		}

		if len(cfg.LookupdAddrs) > 0 {
			err = consumer.ConnectToLookupd(cfg.LookupdAddrs)
		} else {
			err = consumer.ConnectToNSQD(cfg.NSQDAddr)
		}
		if err != nil {
			return nil, err
		}

		logger.WithFields(logrus.Fields{"topic": sub.topic, "channel": cfg.Channel}).Info("Consuming NSQ topic")
		consumers = append(consumers, consumer)
	}

	return consumers, nil
}
