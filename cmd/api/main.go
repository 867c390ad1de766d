package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kakitori/kakitori-api/internal/api"
	"github.com/kakitori/kakitori-api/internal/core/ports"
	"github.com/kakitori/kakitori-api/internal/core/service"
	"github.com/kakitori/kakitori-api/internal/infrastructure/config"
	"github.com/kakitori/kakitori-api/internal/infrastructure/db/memory"
	"github.com/kakitori/kakitori-api/internal/infrastructure/db/mongo"
	"github.com/kakitori/kakitori-api/internal/infrastructure/db/redis"
	"github.com/kakitori/kakitori-api/internal/infrastructure/db/repository"
	httpserver "github.com/kakitori/kakitori-api/internal/infrastructure/http"
	"github.com/kakitori/kakitori-api/internal/infrastructure/http/handlers"
	"github.com/kakitori/kakitori-api/internal/infrastructure/model"
	"github.com/kakitori/kakitori-api/internal/infrastructure/queue"
	"github.com/kakitori/kakitori-api/internal/infrastructure/storage/s3"
	"github.com/kakitori/kakitori-api/pkg/logger"
)

// @title                       Kakitori API
// @version                     1.0
// @description                 Handwritten character recognition and practice progress tracking.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Session token as "Bearer <token>". The token cookie is accepted as well.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	envErr := godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.Production(),
		Service: "kakitori-api",
	})
	if envErr != nil {
		log.Warn().Msg("no .env file found, using environment variables")
	}

	readiness := map[string]handlers.Pinger{}

	// --- Document store ---
	var store ports.DocumentStore
	switch cfg.StoreDriver {
	case config.StoreMongo:
		client, db, err := mongo.Connect(ctx, mongo.Config{
			URI:           cfg.Mongo.URI,
			Database:      cfg.Mongo.Database,
			EnsureIndexes: true,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Warn().Err(err).Msg("mongo disconnect failed")
			}
		}()
		store = mongo.NewStore(db)
	default:
		log.Warn().Msg("using in-memory store, data is lost on restart")
		store = memory.NewStore()
	}
	readiness["store"] = store

	// --- Progress cache (optional) ---
	var cache ports.ProgressCache
	if cfg.Redis.Addr != "" {
		rdb, err := redis.Connect(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer rdb.Close()
		cache = redis.NewProgressCache(rdb, cfg.Redis.TTL)
		readiness["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}

	// --- Model ---
	classifierModel, err := model.Load(ctx, model.Config{URL: cfg.Model.URL, Timeout: cfg.Model.Timeout}, logger.Component("model"))
	if err != nil {
		return err
	}
	readiness["model"] = classifierModel

	// --- Image archive (optional) ---
	var archive ports.ImageArchive
	if cfg.S3.Bucket != "" {
		a, err := s3.New(ctx, s3.Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
		if err != nil {
			return err
		}
		archive = a
	}

	// --- Services ---
	dispatcher := queue.NewDispatcher(cfg.UpsertWorkers, logger.Component("dispatcher"))

	users := repository.NewUserRepository(store)
	predictions := repository.NewPredictionRepository(store)
	tokens := service.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)

	authService := service.NewAuthService(users, tokens, logger.Component("auth"))
	progressService := service.NewProgressService(predictions, cache, logger.Component("progress"))
	classifier := service.NewClassificationService(classifierModel, logger.Component("classifier"))
	predictionService := service.NewPredictionService(
		predictions, classifier, progressService, archive, dispatcher, logger.Component("predictions"),
	)

	e := api.NewRouter(api.Deps{
		Auth:          authService,
		Tokens:        tokens,
		Predictions:   predictionService,
		Progress:      progressService,
		Readiness:     readiness,
		Log:           logger.Component("http"),
		SecureCookie:  cfg.Production(),
		TokenTTL:      cfg.TokenTTL,
		AuthRateLimit: cfg.AuthRateLimit,
	})

	log.Info().
		Str("env", cfg.Env).
		Str("store", cfg.StoreDriver).
		Bool("progress_cache", cache != nil).
		Bool("image_archive", archive != nil).
		Msg("starting kakitori api")

	return serve(ctx, httpserver.NewServer(e, cfg.Port, logger.Component("server")), dispatcher)
}

// serve runs srv until ctx ends and the drain completes. The dispatcher has
// its own lifetime so requests still in flight during the drain can upsert.
func serve(ctx context.Context, srv *httpserver.Server, dispatcher *queue.Dispatcher) error {
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	dispatcher.Start(workerCtx)

	return srv.Run(ctx)
}
