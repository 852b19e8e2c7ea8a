package main

import (
	"context"
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/MalyadriLakshmiNarasimha/herbtounge/internal/classifier"
	v1 "github.com/MalyadriLakshmiNarasimha/herbtounge/internal/controller/http/v1"
	"github.com/MalyadriLakshmiNarasimha/herbtounge/internal/domain/entity"
	"github.com/MalyadriLakshmiNarasimha/herbtounge/internal/domain/usecase"
	psqlRepo "github.com/MalyadriLakshmiNarasimha/herbtounge/internal/repository/psql"
	redisRepo "github.com/MalyadriLakshmiNarasimha/herbtounge/internal/repository/redis"
	"github.com/MalyadriLakshmiNarasimha/herbtounge/internal/repository/rabbitmq"
	s3Repo "github.com/MalyadriLakshmiNarasimha/herbtounge/internal/repository/s3"
	"github.com/MalyadriLakshmiNarasimha/herbtounge/pkg/apperrors"
	"github.com/MalyadriLakshmiNarasimha/herbtounge/pkg/cache"
	"github.com/MalyadriLakshmiNarasimha/herbtounge/pkg/client/psql"
	redisClient "github.com/MalyadriLakshmiNarasimha/herbtounge/pkg/client/redis"
	s3Client "github.com/MalyadriLakshmiNarasimha/herbtounge/pkg/client/s3"
	"github.com/MalyadriLakshmiNarasimha/herbtounge/pkg/middleware"
)

type Config struct {
	RedisAddr string
	RedisDB   int

	PSQLHost     string
	PSQLPort     int
	PSQLUser     string
	PSQLPassword string
	PSQLDBName   string
	PSQLSSLMode  string

	S3Host      string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string

	RabbitMQURL string

	ModelArtifactKey    string
	DetectorArtifactKey string

	CacheTTL  time.Duration
	JWTSecret string
	Debug     bool
}

func main() {
	cfg := loadConfig()

	logger := newLogger(cfg.Debug)
	defer logger.Sync()

	ctx := context.Background()

	redisConn, err := redisClient.NewRedisClient(ctx, redisClient.Config{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err != nil {
		logger.Fatal("redis connection failed", zap.Error(err))
	}

	db, err := psql.NewPostgresDB(psql.Config{
		Host:     cfg.PSQLHost,
		User:     cfg.PSQLUser,
		Password: cfg.PSQLPassword,
		DBName:   cfg.PSQLDBName,
		Port:     cfg.PSQLPort,
		SslMode:  cfg.PSQLSSLMode,
	})
	if err != nil {
		logger.Fatal("postgres connection failed", zap.Error(err))
	}
	if err := db.AutoMigrate(&entity.StoredResult{}, &entity.Task{}); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	storage, err := s3Client.NewS3Client(cfg.S3Host, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, false)
	if err != nil {
		logger.Fatal("s3 client init failed", zap.Error(err))
	}
	objectRepo := s3Repo.NewRepo(storage)

	pipeline := buildPipeline(ctx, objectRepo, cfg, logger)

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq connection failed", zap.Error(err))
	}
	defer conn.Close()

	publisher, err := rabbitmq.NewTaskPublisher(conn, "tasks.exchange", "tasks.submitted")
	if err != nil {
		logger.Fatal("publisher init failed", zap.Error(err))
	}

	cacheRepo := redisRepo.NewRepo(redisConn)
	resultRepo := psqlRepo.NewResultRepo(db)
	taskRepo := psqlRepo.NewTaskRepo(db)

	classifyUC := usecase.NewClassifyUseCase(
		cache.New(cacheRepo, logger),
		pipeline,
		resultRepo,
		cfg.CacheTTL,
		logger,
	)
	taskUC := usecase.NewTaskUseCase(taskRepo, cacheRepo, publisher, objectRepo, logger)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	r.Use(middleware.JWTAuthMiddleware([]byte(cfg.JWTSecret)))
	r.Use(middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RedisClient: redisConn,
		Limit:       10,
		Window:      time.Second,
		KeyPrefix:   "rl:",
	}))

	handler := v1.NewHandler(classifyUC, taskUC)
	handler.RegisterRoutes(r.Group("/api/v1"))

	logger.Info("gateway started", zap.Bool("model_backed", pipeline.ModelBacked()))
	if err := r.Run(":8080"); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

// buildPipeline selects the variant once for the process lifetime: both
// artifacts present selects the model-backed pipeline, absence selects the
// rule-based fallback, anything else is a fatal configuration error.
func buildPipeline(ctx context.Context, artifacts *s3Repo.Repo, cfg Config, logger *zap.Logger) *classifier.Pipeline {
	modelData, err := artifacts.FetchArtifact(ctx, cfg.ModelArtifactKey)
	if errors.Is(err, apperrors.ErrArtifactNotFound) {
		logger.Warn("model artifacts absent, using fallback pipeline")
		return classifier.NewFallback()
	}
	if err != nil {
		logger.Fatal("fetch classifier artifact", zap.Error(err))
	}

	detectorData, err := artifacts.FetchArtifact(ctx, cfg.DetectorArtifactKey)
	if err != nil {
		logger.Fatal("fetch detector artifact", zap.Error(err))
	}

	oracle, err := classifier.LoadCentroidModel(modelData)
	if err != nil {
		logger.Fatal("load classifier artifact", zap.Error(err))
	}
	detector, err := classifier.LoadLogisticDetector(detectorData)
	if err != nil {
		logger.Fatal("load detector artifact", zap.Error(err))
	}

	pipeline, err := classifier.NewModelBacked(oracle, detector)
	if err != nil {
		logger.Fatal("pipeline init failed", zap.Error(err))
	}
	logger.Info("model-backed pipeline loaded",
		zap.String("classifier", cfg.ModelArtifactKey),
		zap.String("detector", cfg.DetectorArtifactKey))
	return pipeline
}

func newLogger(debug bool) *zap.Logger {
	var logger *zap.Logger
	var err error
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	return logger
}

func loadConfig() Config {
	if err := godotenv.Load("./.env.local"); err != nil {
		log.Println("No .env file found. Falling back to OS environment variables.")
	}
	mustGetEnv := func(key string) string {
		val := os.Getenv(key)
		if val == "" {
			log.Fatalf("Environment variable %s is not set", key)
		}
		return val
	}
	getEnv := func(key, fallback string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		return fallback
	}

	// REDIS
	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		log.Fatalf("Invalid REDIS_DB value: %v", err)
	}

	// PSQL
	psqlPort, err := strconv.Atoi(mustGetEnv("PSQL_PORT"))
	if err != nil {
		log.Fatalf("Invalid PSQL_PORT value: %v", err)
	}

	// RABBITMQ
	rabbitMQURL := "amqp://" + mustGetEnv("RABBITMQ_USER") + ":" + mustGetEnv("RABBITMQ_PASSWORD") +
		"@" + mustGetEnv("RABBITMQ_HOST") + ":" + mustGetEnv("RABBITMQ_PORT") + "/"

	cacheTTLSec, err := strconv.Atoi(getEnv("CACHE_TTL_SECONDS", "300"))
	if err != nil {
		log.Fatalf("Invalid CACHE_TTL_SECONDS value: %v", err)
	}

	return Config{
		RedisAddr: mustGetEnv("REDIS_HOST") + ":" + mustGetEnv("REDIS_PORT"),
		RedisDB:   redisDB,

		PSQLHost:     mustGetEnv("PSQL_HOST"),
		PSQLPort:     psqlPort,
		PSQLUser:     mustGetEnv("PSQL_USER"),
		PSQLPassword: mustGetEnv("PSQL_PASSWORD"),
		PSQLDBName:   mustGetEnv("PSQL_DB"),
		PSQLSSLMode:  mustGetEnv("PSQL_SSLMODE"),

		S3Host:      mustGetEnv("S3_HOST") + ":" + mustGetEnv("S3_PORT"),
		S3Bucket:    mustGetEnv("S3_BUCKET"),
		S3AccessKey: mustGetEnv("S3_ACCESS_KEY"),
		S3SecretKey: mustGetEnv("S3_SECRET_KEY"),

		RabbitMQURL: rabbitMQURL,

		ModelArtifactKey:    getEnv("MODEL_ARTIFACT_KEY", "models/herb_classifier.json"),
		DetectorArtifactKey: getEnv("DETECTOR_ARTIFACT_KEY", "models/adulteration_detector.json"),

		CacheTTL:  time.Duration(cacheTTLSec) * time.Second,
		JWTSecret: mustGetEnv("JWT_SECRET"),
		Debug:     os.Getenv("DEBUG") == "true",
	}
}
