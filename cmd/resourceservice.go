package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/astghikaramyan/resource-service/internal/blob"
	"github.com/astghikaramyan/resource-service/internal/breaker"
	"github.com/astghikaramyan/resource-service/internal/catalog"
	"github.com/astghikaramyan/resource-service/internal/database"
	outboxEventRepository "github.com/astghikaramyan/resource-service/internal/database/repository/outboxevent"
	outboxEventPgxRepository "github.com/astghikaramyan/resource-service/internal/database/repository/outboxevent/pgx"
	outboxEventSqliteRepository "github.com/astghikaramyan/resource-service/internal/database/repository/outboxevent/sqlite"
	resourceRepository "github.com/astghikaramyan/resource-service/internal/database/repository/resource"
	resourcePgxRepository "github.com/astghikaramyan/resource-service/internal/database/repository/resource/pgx"
	resourceSqliteRepository "github.com/astghikaramyan/resource-service/internal/database/repository/resource/sqlite"
	"github.com/astghikaramyan/resource-service/internal/directory"
	"github.com/astghikaramyan/resource-service/internal/events"
	prometheusEventsMiddleware "github.com/astghikaramyan/resource-service/internal/events/middlewares/prometheus"
	"github.com/astghikaramyan/resource-service/internal/migration"
	"github.com/astghikaramyan/resource-service/internal/outbox"
	"github.com/astghikaramyan/resource-service/internal/resource"
	"github.com/astghikaramyan/resource-service/internal/server"
	"github.com/astghikaramyan/resource-service/internal/settings"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"
)

const subcommandServe = "serve"

func main() {
	var programLevel = new(slog.LevelVar)
	programLevel.Set(slog.LevelDebug)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     programLevel,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()
	if len(os.Args) < 2 {
		slog.Info(fmt.Sprintf("Usage: %s %s [options]\n", os.Args[0], subcommandServe))
		os.Exit(1)
	}

	subcommand := os.Args[1]
	switch subcommand {
	case subcommandServe:
		serve(ctx)
	default:
		slog.Error(fmt.Sprintf("Invalid subcommand: %s. Expected '%s'.\n", subcommand, subcommandServe))
		os.Exit(1)
	}
}

func openDatabase(s *settings.Settings) (database.Database, resourceRepository.Repository, outboxEventRepository.Repository, error) {
	switch s.DatabaseDriver() {
	case "sqlite":
		db, err := database.OpenSqliteDatabase(s.DatabasePath())
		if err != nil {
			return nil, nil, nil, err
		}
		resources, err := resourceSqliteRepository.NewRepository()
		if err != nil {
			return nil, nil, nil, err
		}
		outboxEvents, err := outboxEventSqliteRepository.NewRepository()
		if err != nil {
			return nil, nil, nil, err
		}
		return db, resources, outboxEvents, nil
	case "postgres":
		db, err := database.OpenPostgresDatabase(s.DatabaseDsn())
		if err != nil {
			return nil, nil, nil, err
		}
		resources, err := resourcePgxRepository.NewRepository()
		if err != nil {
			return nil, nil, nil, err
		}
		outboxEvents, err := outboxEventPgxRepository.NewRepository()
		if err != nil {
			return nil, nil, nil, err
		}
		return db, resources, outboxEvents, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown database driver: %s", s.DatabaseDriver())
}

func createS3Client(ctx context.Context, s *settings.Settings) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(s.Region()),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(s.AccessKeyId(), s.SecretAccessKey(), "")))
	if err != nil {
		return nil, err
	}
	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String(s.S3Endpoint())
	})
	return s3Client, nil
}

func createDirectoryClient(httpClient *http.Client, s *settings.Settings) *directory.Client {
	breakerStateGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "resourceservice",
		Subsystem: "directory",
		Name:      "circuit_breaker_state",
		Help:      "Current state of the storage directory circuit breaker (0 closed, 1 open, 2 half-open).",
	})
	err := prometheus.DefaultRegisterer.Register(breakerStateGauge)
	if err != nil {
		slog.Warn(fmt.Sprint("Could not register circuit breaker state gauge: ", err))
	}
	circuit := breaker.New(breaker.DefaultConfig(), breaker.WithStateChangeListener(func(from breaker.State, to breaker.State) {
		slog.Info(fmt.Sprintf("Storage directory circuit breaker transitioned from %v to %v", from, to))
		breakerStateGauge.Set(float64(to))
	}))
	fallback := directory.StaticFallback(s.PermanentBucket(), s.S3Endpoint(), s.StagingBucket(), s.S3Endpoint())
	return directory.NewClient(httpClient, s.StorageDirectoryUrl(), circuit, fallback)
}

func serve(ctx context.Context) {
	settings, err := settings.LoadSettings(os.Args[2:])
	if err != nil {
		slog.Error(fmt.Sprint("Error while loading settings: ", err))
		os.Exit(1)
	}

	db, resources, outboxEvents, err := openDatabase(settings)
	if err != nil {
		slog.Error(fmt.Sprint("Couldn't open database: ", err))
		os.Exit(1)
	}
	defer func() {
		err := db.Close()
		if err != nil {
			slog.Error(fmt.Sprint("Couldn't close database: ", err))
		}
	}()

	s3Client, err := createS3Client(ctx, settings)
	if err != nil {
		slog.Error(fmt.Sprint("Couldn't create s3 client: ", err))
		os.Exit(1)
	}
	blobGateway := blob.NewS3Gateway(s3Client)

	httpClient := &http.Client{
		Timeout: time.Duration(settings.HttpClientTimeoutSeconds()) * time.Second,
	}
	directoryClient := createDirectoryClient(httpClient, settings)
	songCatalog := catalog.NewClient(httpClient, settings.SongServiceUrl())

	amqpConnection, err := amqp.Dial(settings.AmqpUrl())
	if err != nil {
		slog.Error(fmt.Sprint("Couldn't connect to the message broker: ", err))
		os.Exit(1)
	}
	defer amqpConnection.Close()

	publishChannel, err := amqpConnection.Channel()
	if err != nil {
		slog.Error(fmt.Sprint("Couldn't open a channel on the message broker: ", err))
		os.Exit(1)
	}
	err = events.DeclareTopics(publishChannel)
	if err != nil {
		slog.Error(fmt.Sprint("Couldn't declare topics on the message broker: ", err))
		os.Exit(1)
	}
	publisher := events.NewAMQPPublisher(publishChannel)
	publisher, err = prometheusEventsMiddleware.NewPublisherMiddleware(publisher, prometheus.DefaultRegisterer)
	if err != nil {
		slog.Error(fmt.Sprint("Couldn't create prometheus publisher middleware: ", err))
		os.Exit(1)
	}

	outboxProcessor, err := outbox.NewProcessor(db, outboxEvents, publisher, time.Duration(settings.OutboxIntervalSeconds())*time.Second)
	if err != nil {
		slog.Error(fmt.Sprint("Couldn't create outbox processor: ", err))
		os.Exit(1)
	}
	err = outboxProcessor.Start()
	if err != nil {
		slog.Error(fmt.Sprint("Couldn't start outbox processor: ", err))
		os.Exit(1)
	}
	defer func() {
		err := outboxProcessor.Stop()
		if err != nil {
			slog.Error(fmt.Sprint("Couldn't stop outbox processor: ", err))
		}
	}()

	orchestrator := resource.NewOrchestrator(db, resources, outboxEvents, blobGateway, directoryClient, songCatalog, publisher,
		resource.WithOutboxNotifier(outboxProcessor.Notify))

	consumeChannel, err := amqpConnection.Channel()
	if err != nil {
		slog.Error(fmt.Sprint("Couldn't open a channel on the message broker: ", err))
		os.Exit(1)
	}
	tierMigrationConsumer, err := migration.NewConsumer(consumeChannel, db, resources, blobGateway, directoryClient)
	if err != nil {
		slog.Error(fmt.Sprint("Couldn't create tier migration consumer: ", err))
		os.Exit(1)
	}
	err = tierMigrationConsumer.Start()
	if err != nil {
		slog.Error(fmt.Sprint("Couldn't start tier migration consumer: ", err))
		os.Exit(1)
	}
	defer func() {
		consumeChannel.Close()
		err := tierMigrationConsumer.Stop()
		if err != nil {
			slog.Error(fmt.Sprint("Couldn't stop tier migration consumer: ", err))
		}
	}()

	handler := server.SetupServer(orchestrator)
	addr := fmt.Sprintf("%v:%v", settings.BindAddress(), settings.Port())
	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	if settings.MonitoringPortEnabled() {
		monitoringHandler := server.SetupMonitoringServer([]database.Database{db})
		monitoringAddr := fmt.Sprintf("%v:%v", settings.BindAddress(), settings.MonitoringPort())
		httpMonitoringServer := &http.Server{
			Addr:    monitoringAddr,
			Handler: monitoringHandler,
		}
		go func() {
			slog.Info(fmt.Sprintf("Listening with monitoring api on http://%v\n", monitoringAddr))
			httpMonitoringServer.ListenAndServe()
		}()
	}

	slog.Info(fmt.Sprintf("Listening with resource api on http://%v\n", addr))
	err = httpServer.ListenAndServe()
	if err != nil {
		slog.Error(fmt.Sprintf("Error while starting http server: %s", err))
		os.Exit(1)
	}
}
