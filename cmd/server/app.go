package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/scry-notes/internal/config"
	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/generation"
	"github.com/phrazzld/scry-notes/internal/notify"
	"github.com/phrazzld/scry-notes/internal/platform/gemini"
	"github.com/phrazzld/scry-notes/internal/platform/metrics"
	"github.com/phrazzld/scry-notes/internal/platform/postgres"
	"github.com/phrazzld/scry-notes/internal/platform/redisbroker"
	"github.com/phrazzld/scry-notes/internal/redact"
	"github.com/phrazzld/scry-notes/internal/reminder"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// shutdownTimeout bounds how long Run waits for components to stop.
const shutdownTimeout = 15 * time.Second

// openDatabase is replaced in tests.
var openDatabase = setupDatabase

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	db       *sql.DB
	redis    *redis.Client
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	service  *reminder.Service
	poller   *reminder.Poller
	consumer *reminder.Consumer
}

// newApplication connects to every backing service and wires the reminder pipeline.
// Connections opened before a failure are closed before returning.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (app *application, err error) {
	app = &application{
		config:   cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	defer func() {
		if err != nil && app != nil {
			app.cleanup()
			app = nil
		}
	}()

	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = metrics.New(app.registry)

	app.db, err = openDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return app, err
	}

	app.redis, err = redisbroker.NewClient(ctx, cfg.Redis)
	if err != nil {
		return app, err
	}
	logger.Info("Redis connection established")

	llm, err := gemini.NewClient(ctx, cfg.LLM, logger)
	if err != nil {
		return app, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	generator, err := generation.NewGenerator(llm, generation.ConfigFromLLM(cfg.LLM), logger,
		generation.WithMetrics(app.metrics))
	if err != nil {
		return app, fmt.Errorf("failed to initialize question generator: %w", err)
	}
	logger.Info("Question generator initialized", slog.String("model", cfg.LLM.ModelName))

	queue := redisbroker.NewDelayedQueue(app.redis, cfg.Redis.QueueKey, cfg.Redis.OperationTimeout, logger)
	notifier := notify.NewPubSubNotifier(redisbroker.NewPubSub(app.redis, logger), logger, app.metrics)
	notes := postgres.NewPostgresNoteStore(app.db, logger)

	scheduler, err := reminder.NewScheduler(queue, generator, logger, reminder.WithMetrics(app.metrics))
	if err != nil {
		return app, fmt.Errorf("failed to create reminder scheduler: %w", err)
	}

	app.service, err = reminder.NewService(notes, generator, notifier, scheduler,
		reminderPolicy(cfg.Reminder), logger, reminder.WithMetrics(app.metrics))
	if err != nil {
		return app, fmt.Errorf("failed to create reminder service: %w", err)
	}

	app.poller, err = reminder.NewPoller(notes, app.service, reminder.PollerConfigFrom(cfg.Reminder), logger,
		reminder.WithMetrics(app.metrics))
	if err != nil {
		return app, fmt.Errorf("failed to create reminder poller: %w", err)
	}

	app.consumer, err = reminder.NewConsumer(queue, app.service,
		reminder.ConsumerConfigFrom(cfg.Redis, cfg.Reminder), logger, reminder.WithMetrics(app.metrics))
	if err != nil {
		return app, fmt.Errorf("failed to create reminder consumer: %w", err)
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// reminderPolicy builds the state-machine policy from configuration.
func reminderPolicy(cfg config.ReminderConfig) domain.ReminderPolicy {
	return domain.ReminderPolicy{
		MaxReminders: cfg.MaxReminders,
		Backoff:      append([]time.Duration(nil), cfg.Backoff...),
	}
}

// Run starts the poller, the broker consumer and the ops HTTP server, then
// blocks until ctx is done or the server fails.
func (app *application) Run(ctx context.Context) error {
	if err := app.poller.Start(ctx); err != nil {
		return fmt.Errorf("failed to start poller: %w", err)
	}
	if err := app.consumer.Start(ctx); err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(fmt.Errorf("failed to start consumer: %w", err), app.poller.Stop(stopCtx))
	}

	router := newRouter(app.logger, app.registry, map[string]healthCheck{
		"database": app.db.PingContext,
		"redis": func(ctx context.Context) error {
			return app.redis.Ping(ctx).Err()
		},
	})

	serverErr := app.startHTTPServer(ctx, router)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return errors.Join(
		serverErr,
		app.poller.Stop(shutdownCtx),
		app.consumer.Stop(shutdownCtx),
	)
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("Error closing Redis connection", redact.ErrorAttr(err))
		}
		app.redis = nil
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", redact.ErrorAttr(err))
		}
		app.db = nil
	}

	app.logger.Info("Application shutdown completed")
}
