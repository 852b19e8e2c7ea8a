package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/MalyadriLakshmiNarasimha/herbtounge/internal/classifier"
	"github.com/MalyadriLakshmiNarasimha/herbtounge/internal/domain/usecase"
	psqlRepo "github.com/MalyadriLakshmiNarasimha/herbtounge/internal/repository/psql"
	redisRepo "github.com/MalyadriLakshmiNarasimha/herbtounge/internal/repository/redis"
	"github.com/MalyadriLakshmiNarasimha/herbtounge/internal/repository/rabbitmq"
	s3Repo "github.com/MalyadriLakshmiNarasimha/herbtounge/internal/repository/s3"
	"github.com/MalyadriLakshmiNarasimha/herbtounge/pkg/apperrors"
	"github.com/MalyadriLakshmiNarasimha/herbtounge/pkg/client/psql"
	redisClient "github.com/MalyadriLakshmiNarasimha/herbtounge/pkg/client/redis"
	s3Client "github.com/MalyadriLakshmiNarasimha/herbtounge/pkg/client/s3"
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

	Debug bool
}

func main() {
	cfg := loadConfig()

	logger := newLogger(cfg.Debug)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

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

	workerUC := usecase.NewWorkerUseCase(
		pipeline,
		psqlRepo.NewResultRepo(db),
		psqlRepo.NewTaskRepo(db),
		redisRepo.NewRepo(redisConn),
		objectRepo,
		logger,
	)

	consumer, err := rabbitmq.NewTaskConsumer(conn, "tasks.exchange", "tasks.submitted", "tasks.submitted.q", workerUC, logger)
	if err != nil {
		logger.Fatal("consumer init failed", zap.Error(err))
	}

	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.Fatal("consumer stopped", zap.Error(err))
		}
	}()

	logger.Info("worker started", zap.Bool("model_backed", pipeline.ModelBacked()))
	<-sigCh
	logger.Info("shutting down worker")
	cancel()
	time.Sleep(time.Second)
}

// buildPipeline mirrors the gateway's startup selection so both processes
// always score with the same variant.
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

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		log.Fatalf("Invalid REDIS_DB value: %v", err)
	}

	psqlPort, err := strconv.Atoi(mustGetEnv("PSQL_PORT"))
	if err != nil {
		log.Fatalf("Invalid PSQL_PORT value: %v", err)
	}

	rabbitMQURL := "amqp://" + mustGetEnv("RABBITMQ_USER") + ":" + mustGetEnv("RABBITMQ_PASSWORD") +
		"@" + mustGetEnv("RABBITMQ_HOST") + ":" + mustGetEnv("RABBITMQ_PORT") + "/"

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

		Debug: os.Getenv("DEBUG") == "true",
	}
}
