package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/cmu-study-buddy/course-crawler/config"
	"github.com/cmu-study-buddy/course-crawler/internal/broker"
	"github.com/cmu-study-buddy/course-crawler/internal/persistence"
	"github.com/cmu-study-buddy/course-crawler/internal/record"
	"github.com/cmu-study-buddy/course-crawler/internal/storage"
	"github.com/cmu-study-buddy/course-crawler/internal/telemetry"
	"github.com/cmu-study-buddy/course-crawler/internal/worker"
	_ "github.com/lib/pq"
	"github.com/lmittmann/tint"
	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"
)

var (
	cfg          *config.Config
	db           *sql.DB
	store        storage.ArtifactStore
	metadataRepo persistence.MetadataStorage
	notifier     *broker.ArtifactNotifier
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	limit := pflag.Int("limit", 0, "limit number of courses to scrape")
	course := pflag.String("course", "", "scrape a single course code (e.g. 15-213)")
	dataDir := pflag.String("data-dir", "", "path to the data directory")
	schedule := pflag.Bool("schedule", false, "keep running and scrape on the configured cron schedule")
	pflag.Parse()

	cfg = config.MustLoad()
	setupLogger()
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	slog.Info("starting course crawler.", slog.String("env", cfg.Env),
		slog.String("data_dir", cfg.DataDir))

	metrics := telemetry.SetupMetrics(context.Background(), cfg)
	defer metrics.Close()

	if cfg.DbSettings.Enabled {
		db = setupDatabase()
		defer closeDatabase()
		metadataRepo = persistence.NewMetadataRepository(db)
	}
	if cfg.KafkaSettings.Enabled {
		notifier = broker.NewArtifactNotifier(cfg.ServiceName, cfg.KafkaSettings)
		defer notifier.Close()
	}
	store = setupArtifactStore()

	scrapeWorker := &worker.ScrapeWorker{
		Cfg:           cfg,
		Records:       record.NewCourseStore(cfg.DataDir),
		Store:         store,
		Db:            metadataRepo,
		Notifier:      notifier,
		Metrics:       metrics.AppMetrics,
		HttpTransport: getHttpTransport(),
	}

	// Per-course failures are reported in the run summary, never through
	// the exit code, so scheduled runs don't die in a retry loop.
	switch {
	case *course != "":
		if err := scrapeWorker.RunOne(*course); err != nil {
			slog.Error("single course scrape failed.", slog.String("err", err.Error()))
		}
	case *schedule:
		runScheduled(ctx, scrapeWorker, *limit)
	default:
		scrapeWorker.RunAll(*limit)
	}
}

func runScheduled(ctx context.Context, scrapeWorker *worker.ScrapeWorker, limit int) {
	c := cron.New()
	_, err := c.AddFunc(cfg.SchedulerSettings.CronSpec, func() {
		slog.Info("starting scheduled course scrape...")
		scrapeWorker.RunAll(limit)
	})
	if err != nil {
		slog.Error("invalid cron spec.", slog.String("cron", cfg.SchedulerSettings.CronSpec),
			slog.String("err", err.Error()))
		os.Exit(1)
	}

	c.Start()
	slog.Info("scheduler started.", slog.String("cron", cfg.SchedulerSettings.CronSpec))

	<-ctx.Done()
	slog.Info("stopping scheduler...")
	<-c.Stop().Done()
	slog.Info("scheduler stopped.")
}

func setupLogger() *slog.Logger {
	envLogLevel := strings.ToLower(cfg.LogLevel)
	var slogLevel slog.Level
	err := slogLevel.UnmarshalText([]byte(envLogLevel))
	if err != nil {
		log.Printf("encountenred log level: '%s'. The package does not support custom log levels", envLogLevel)
		slogLevel = slog.LevelDebug
	}
	log.Printf("slog level overwritten to '%v'", slogLevel)
	slog.SetLogLoggerLevel(slogLevel)

	replaceAttrs := func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.SourceKey {
			source := a.Value.Any().(*slog.Source)
			source.File = filepath.Base(source.File)
		}
		return a
	}

	var logger *slog.Logger
	if strings.ToLower(cfg.LogType) == "json" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			AddSource:   true,
			Level:       slogLevel,
			ReplaceAttr: replaceAttrs}))
	} else {
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			AddSource:   true,
			Level:       slogLevel,
			ReplaceAttr: replaceAttrs,
			NoColor: func() bool {
				if cfg.Env == "local" {
					return false
				}
				return true
			}()}))
	}

	slog.SetDefault(logger)
	logger.Debug("debug messages are enabled.")

	return logger
}

func setupDatabase() *sql.DB {
	slog.Info("connecting to the database...")
	connStr := fmt.Sprintf("user=%s password=%s host=%s port=%s dbname=%s sslmode=disable",
		cfg.DbSettings.User,
		cfg.DbSettings.Password,
		cfg.DbSettings.Host,
		cfg.DbSettings.Port,
		cfg.DbSettings.Name,
	)
	database, err := sql.Open("postgres", connStr)
	if err != nil {
		slog.Error("failed to establish database connection.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	database.SetConnMaxLifetime(cfg.DbSettings.ConnMaxLifetime)
	database.SetMaxOpenConns(cfg.DbSettings.MaxOpenConns)
	database.SetMaxIdleConns(cfg.DbSettings.MaxIdleConns)

	maxRetry := 6
	for i := 1; i <= maxRetry; i++ {
		slog.Info("ping the database.", slog.String("attempt", fmt.Sprintf("%d/%d", i, maxRetry)))
		pingErr := database.Ping()
		if pingErr != nil {
			slog.Error("not responding.", slog.String("err", pingErr.Error()))
			if i == maxRetry {
				slog.Error("failed to establish database connection.")
				os.Exit(1)
			}
			slog.Info(fmt.Sprintf("wait %d seconds", 5*i))
			time.Sleep(time.Duration(5*i) * time.Second)
		} else {
			break
		}
	}
	slog.Info("connected to the database!")

	return database
}

func closeDatabase() {
	slog.Info("closing database connection.")
	err := db.Close()
	if err != nil {
		slog.Error("failed to close database connection.", slog.String("err", err.Error()))
	}
}

func setupArtifactStore() storage.ArtifactStore {
	if cfg.S3Settings.Enabled {
		return storage.NewS3Store(cfg)
	}

	fsStore, err := storage.NewFSStore(filepath.Join(cfg.DataDir, "books"))
	if err != nil {
		slog.Error("failed to create the content store directory.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	return fsStore
}

func getHttpTransport() *http.Transport {
	return &http.Transport{
		MaxIdleConns:        cfg.HttpClientSettings.MaxIdleConnections,
		MaxIdleConnsPerHost: cfg.HttpClientSettings.MaxIdleConnectionsPerHost,
		MaxConnsPerHost:     cfg.HttpClientSettings.MaxConnectionsPerHost,
		IdleConnTimeout:     cfg.HttpClientSettings.IdleConnectionTimeout,
		TLSHandshakeTimeout: cfg.HttpClientSettings.TlsHandshakeTimeout,
		DialContext: (&net.Dialer{
			Timeout:   cfg.HttpClientSettings.DialTimeout,
			KeepAlive: cfg.HttpClientSettings.DialKeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.HttpClientSettings.TlsInsecureSkipVerify,
		},
	}
}
