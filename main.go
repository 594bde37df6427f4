package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/epeers/fintel/config"
	"github.com/epeers/fintel/docs"
	"github.com/epeers/fintel/internal/alphavantage"
	"github.com/epeers/fintel/internal/cache"
	"github.com/epeers/fintel/internal/database"
	"github.com/epeers/fintel/internal/handlers"
	"github.com/epeers/fintel/internal/lease"
	"github.com/epeers/fintel/internal/metrics"
	"github.com/epeers/fintel/internal/middleware"
	"github.com/epeers/fintel/internal/models"
	"github.com/epeers/fintel/internal/predictor"
	"github.com/epeers/fintel/internal/providers"
	"github.com/epeers/fintel/internal/repository"
	"github.com/epeers/fintel/internal/repository/memory"
	"github.com/epeers/fintel/internal/services"
	"github.com/epeers/fintel/internal/yahoo"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// stores groups the repository implementations selected by STORE_BACKEND
type stores struct {
	assets      repository.AssetStore
	prices      repository.PriceStore
	models      repository.ModelStore
	predictions repository.PredictionStore
	close       func()
}

// @title Fintel API
// @version 1.0
// @description Tracks financial assets, ingests daily price history and serves it with model predictions.
// @BasePath /
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	setupLogging(cfg)

	ctx := context.Background()

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.close()

	locker, closeLocker, err := openLocker(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create lease backend: %v", err)
	}
	defer closeLocker()

	adapter, err := buildAdapter(cfg)
	if err != nil {
		log.Fatalf("Failed to configure providers: %v", err)
	}

	recorder := metrics.New()
	seriesCache := cache.NewSeriesCache(cfg.SeriesCacheTTL)
	model := predictor.NewAutoregressive()
	priority := adapter.Priority()

	// Initialize services
	assetSvc := services.NewAssetService(st.assets, seriesCache)
	ingestionSvc := services.NewIngestionService(st.assets, st.prices, adapter, locker, seriesCache, recorder, services.IngestionConfig{
		MinHistoryDays:        cfg.MinHistoryDays,
		HistoryYears:          cfg.HistoryYears,
		MaxAttempts:           cfg.FetchMaxAttempts,
		BackoffInitial:        cfg.BackoffInitial,
		BackoffMax:            cfg.BackoffMax,
		PendingRetryDelay:     cfg.PendingRetryDelay,
		FailureAlertThreshold: cfg.FailureAlertThreshold,
	})
	trainingSvc := services.NewTrainingService(st.assets, st.prices, st.models, model, locker, recorder, priority, services.TrainingConfig{
		MaxModelAge: cfg.MaxModelAge,
		Window:      cfg.TrainingWindow,
	})
	predictionSvc := services.NewPredictionService(st.assets, st.models, st.predictions, model, seriesCache, recorder, cfg.PredictionHorizon)
	querySvc := services.NewQueryService(st.assets, st.prices, st.models, st.predictions, trainingSvc, seriesCache, priority)

	pipeline := services.NewPipeline(st.assets, ingestionSvc, trainingSvc, predictionSvc, recorder, services.PipelineConfig{
		Workers:            cfg.Workers,
		QueueSize:          cfg.QueueSize,
		RefreshSchedule:    cfg.RefreshSchedule,
		PendingSchedule:    cfg.PendingSchedule,
		PredictionSchedule: cfg.PredictionSchedule,
	})
	assetSvc.SetScheduler(pipeline)

	// Initialize handlers
	assetHandler := handlers.NewAssetHandler(assetSvc, querySvc)
	seriesHandler := handlers.NewSeriesHandler(querySvc)

	// Setup Gin router
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(log.StandardLogger()))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(recorder.Handler()))
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Asset routes
	router.POST("/assets", assetHandler.RequestAssets)
	router.GET("/symbols", assetHandler.ListSymbols)
	router.GET("/assets/:symbol", assetHandler.Get)
	router.DELETE("/assets/:symbol", assetHandler.Delete)

	// Series routes
	router.GET("/assets/:symbol/series", seriesHandler.GetSeries)
	router.POST("/data", seriesHandler.PostData)

	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()
	if err := pipeline.Start(runCtx); err != nil {
		log.Fatalf("Failed to start pipeline: %v", err)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Give outstanding requests 5 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}
	pipeline.Stop()

	log.Info("Server exited")
}

func setupLogging(cfg *config.Config) {
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.StoreBackend == config.StoreBackendMemory {
		log.Warn("using the in-memory store, data is lost on exit")
		s := memory.NewStore()
		return &stores{assets: s, prices: s, models: s, predictions: s, close: func() {}}, nil
	}

	db, err := database.New(ctx, cfg.PGURL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &stores{
		assets:      repository.NewAssetRepository(db.Pool),
		prices:      repository.NewPriceRepository(db.Pool),
		models:      repository.NewModelRepository(db.Pool),
		predictions: repository.NewPredictionRepository(db.Pool),
		close:       db.Close,
	}, nil
}

func openLocker(ctx context.Context, cfg *config.Config) (lease.Locker, func(), error) {
	if cfg.LeaseBackend != config.LeaseBackendRedis {
		return lease.NewLocalLocker(), func() {}, nil
	}
	locker, err := lease.NewRedisLocker(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.LeaseTTL)
	if err != nil {
		return nil, nil, err
	}
	return locker, func() {
		if err := locker.Close(); err != nil {
			log.WithError(err).Warn("failed to close redis client")
		}
	}, nil
}

func buildAdapter(cfg *config.Config) (*providers.Adapter, error) {
	var list []providers.Provider
	for _, name := range cfg.ProviderList() {
		switch models.Source(name) {
		case models.SourceYahooFinance:
			if cfg.YahooBaseURL != "" {
				list = append(list, yahoo.NewClientWithBaseURL(cfg.YahooBaseURL, cfg.YahooRatePerSec))
			} else {
				list = append(list, yahoo.NewClient(cfg.YahooRatePerSec))
			}
		case models.SourceAlphaVantage:
			if cfg.AVKey == "" {
				log.Warn("AV_KEY is not set, alpha_vantage provider disabled")
				continue
			}
			if cfg.AVBaseURL != "" {
				list = append(list, alphavantage.NewClientWithBaseURL(cfg.AVKey, cfg.AVBaseURL, float64(cfg.AVRatePerMin)))
			} else {
				list = append(list, alphavantage.NewClient(cfg.AVKey, float64(cfg.AVRatePerMin)))
			}
		}
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("no usable providers in %q", cfg.ProviderList())
	}
	return providers.NewAdapter(list...), nil
}
