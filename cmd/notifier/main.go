// Command notifier runs the notification delivery pipeline: queue worker,
// weekly summary scheduler and the ops HTTP server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/notifykit/migrations"
	"github.com/dmitrymomot/notifykit/pkg/broadcast"
	"github.com/dmitrymomot/notifykit/pkg/config"
	"github.com/dmitrymomot/notifykit/pkg/email"
	"github.com/dmitrymomot/notifykit/pkg/httpserver"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/notifications/postgres"
	"github.com/dmitrymomot/notifykit/pkg/pg"
	"github.com/dmitrymomot/notifykit/pkg/queue"
	"github.com/dmitrymomot/notifykit/pkg/redis"
	"github.com/dmitrymomot/notifykit/pkg/sms"
)

type appConfig struct {
	Env         string `env:"ENV" envDefault:"development"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"notifier"`
	UsersTable  string `env:"NOTIFY_USERS_TABLE" envDefault:"users"`
}

// settings groups every env-loaded config block.
type settings struct {
	app    appConfig
	pg     pg.Config
	redis  redis.Config
	queue  queue.Config
	email  email.Config
	sms    sms.Config
	notify notifications.Config
	http   httpserver.Config
}

func main() {
	var cfg settings
	config.MustLoad(&cfg.app)
	config.MustLoad(&cfg.pg)
	config.MustLoad(&cfg.redis)
	config.MustLoad(&cfg.queue)
	config.MustLoad(&cfg.email)
	config.MustLoad(&cfg.sms)
	config.MustLoad(&cfg.notify)
	config.MustLoad(&cfg.http)

	log := logger.New(logger.WithEnvironment(cfg.app.Env, cfg.app.ServiceName))
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log, cfg); err != nil {
		log.LogAttrs(ctx, slog.LevelError, "notifier stopped with error", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger, cfg settings) error {
	pool, err := pg.Connect(ctx, cfg.pg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, cfg.pg, migrations.FS, log); err != nil {
		return err
	}

	redisClient, err := redis.Connect(ctx, cfg.redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	realtime := broadcast.NewRedisBroadcaster[notifications.Notification](redisClient,
		broadcast.WithChannelPrefix(cfg.app.ServiceName+":"),
		broadcast.WithBufferSize(cfg.notify.RealtimeBufferSize),
		broadcast.WithLogger(log),
	)
	defer realtime.Close()

	// Queue
	queueStorage, err := queue.NewPostgresStorage(pool, queue.WithRetryBackoff(cfg.queue.RetryBackoff))
	if err != nil {
		return err
	}
	enqueuer, err := queue.NewEnqueuer(queueStorage, queue.WithDefaultQueue(cfg.notify.Queue))
	if err != nil {
		return err
	}
	worker, err := queue.NewWorker(queueStorage,
		queue.WithQueues(cfg.notify.Queue),
		queue.WithPullInterval(cfg.queue.PollInterval),
		queue.WithLockTimeout(cfg.queue.LockTimeout),
		queue.WithMaxConcurrentTasks(cfg.queue.MaxConcurrentTasks),
		queue.WithWorkerLogger(log),
	)
	if err != nil {
		return err
	}
	scheduler, err := queue.NewScheduler(queueStorage,
		queue.WithCheckInterval(cfg.queue.CheckInterval),
		queue.WithSchedulerLogger(log),
	)
	if err != nil {
		return err
	}

	// Channel backends
	mailer, err := email.New(cfg.email)
	if err != nil {
		return err
	}
	texter, err := sms.New(cfg.sms, log)
	if err != nil {
		return err
	}
	backends, err := notifications.NewBackends(
		notifications.NewInAppBackend(
			notifications.WithRealtime(realtime),
			notifications.WithInAppLogger(log),
		),
		notifications.NewEmailBackend(mailer),
		notifications.NewSMSBackend(texter),
	)
	if err != nil {
		return err
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := notifications.NewMetrics(registry)
	if err != nil {
		return err
	}

	// Notification services
	storage, err := postgres.NewStorage(pool)
	if err != nil {
		return err
	}
	directory, err := postgres.NewUserDirectory(pool, postgres.WithUsersTable(cfg.app.UsersTable))
	if err != nil {
		return err
	}
	templates, err := notifications.NewTemplates(storage, notifications.WithTemplatesLogger(log))
	if err != nil {
		return err
	}
	preferences := notifications.NewPreferences(storage, notifications.WithPreferencesLogger(log))
	eventTypes := notifications.NewEventTypes(storage, directory, notifications.WithEventTypesLogger(log))
	taskQueue := notifications.NewQueueTaskQueue(enqueuer, cfg.notify.Queue)

	dispatcher, err := notifications.NewDispatcher(storage, directory, preferences, templates, taskQueue,
		notifications.WithDispatcherLogger(log),
		notifications.WithDispatcherMetrics(metrics),
	)
	if err != nil {
		return err
	}
	deliveryWorker, err := notifications.NewDeliveryWorker(storage, directory, templates, backends, taskQueue,
		notifications.WithWorkerConfig(cfg.notify),
		notifications.WithWorkerMetrics(metrics),
		notifications.WithWorkerLogger(log),
	)
	if err != nil {
		return err
	}

	seeded, err := eventTypes.SeedDefaults(ctx)
	if err != nil {
		return err
	}
	created, err := templates.SeedDefaults(ctx, seeded...)
	if err != nil {
		return err
	}
	log.LogAttrs(ctx, slog.LevelInfo, "defaults seeded",
		slog.Int("event_types", len(seeded)),
		slog.Int("templates_created", created),
	)

	if err := notifications.RegisterDeliveryHandler(worker, deliveryWorker); err != nil {
		return err
	}
	summary := notifications.NewWeeklySummaryJob(directory, storage, dispatcher,
		notifications.WithSummaryWindow(cfg.notify.WeeklySummaryWindow),
		notifications.WithSummaryLogger(log),
	)
	if err := notifications.RegisterWeeklySummary(scheduler, worker, summary,
		queue.WeeklyOn(time.Weekday(cfg.notify.WeeklySummaryWeekday), cfg.notify.WeeklySummaryHour, 0),
		queue.WithTaskQueue(cfg.notify.Queue),
	); err != nil {
		return err
	}

	// Ops HTTP
	router := httpserver.NewRouter(httpserver.RouterOptions{
		Logger:       log,
		CheckTimeout: cfg.http.CheckTimeout,
		Checks: []httpserver.Check{
			{Name: "postgres", Fn: pg.Healthcheck(pool)},
			{Name: "redis", Fn: redis.Healthcheck(redisClient)},
		},
		Metrics: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	})
	server := httpserver.NewFromConfig(cfg.http, httpserver.WithLogger(log))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(worker.Run(ctx))
	g.Go(scheduler.Run(ctx))
	g.Go(func() error { return server.Run(ctx, router) })

	log.LogAttrs(ctx, slog.LevelInfo, "notifier started",
		slog.String("queue", cfg.notify.Queue),
		slog.String("http_addr", cfg.http.Addr),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
