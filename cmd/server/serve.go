package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/iliyamo/castscheduler/internal/config"
	"github.com/iliyamo/castscheduler/internal/database"
	"github.com/iliyamo/castscheduler/internal/handler"
	"github.com/iliyamo/castscheduler/internal/metrics"
	"github.com/iliyamo/castscheduler/internal/middleware"
	"github.com/iliyamo/castscheduler/internal/neynar"
	"github.com/iliyamo/castscheduler/internal/queue"
	"github.com/iliyamo/castscheduler/internal/router"
	"github.com/iliyamo/castscheduler/internal/scheduler"
	"github.com/iliyamo/castscheduler/internal/service"
	"github.com/iliyamo/castscheduler/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API, the job dispatcher and the publish worker",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return serve(cmd.Context())
	},
}

func serve(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	a, err := newApp(ctx, metrics.New(prometheus.DefaultRegisterer))
	if err != nil {
		return err
	}
	defer a.Close()
	cfg, log := a.cfg, a.log

	rl, err := config.LoadRateLimitConfig()
	if err != nil {
		return err
	}
	cc, err := config.LoadCacheConfig()
	if err != nil {
		return err
	}

	images, err := storage.New(ctx, storage.Options{
		Endpoint:      cfg.S3Endpoint,
		Region:        cfg.S3Region,
		Bucket:        cfg.S3Bucket,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		PublicBaseURL: cfg.S3PublicBaseURL,
	})
	if err != nil {
		return err
	}
	nc := neynar.New(cfg.NeynarBaseURL, cfg.NeynarAPIKey, cfg.NeynarTimeout)

	casts := a.casts()
	publisher := service.NewPublisher(a.db, a.repos, images, nc, log.With("component", "publisher"), a.metrics)
	identity := service.NewIdentityService(database.SQLTransactor{DB: a.db}, a.repos, nc, log.With("component", "identity"))
	profiles := service.NewProfileService(a.db, a.repos)

	// due jobs go Redis -> RabbitMQ -> publisher
	broker := queue.NewPublisher(cfg.RabbitURL, log.With("component", "broker"))
	defer broker.Close()
	dispatcher := scheduler.NewDispatcher(a.sched, scheduler.SinkFunc(func(ctx context.Context, job scheduler.Job) error {
		return broker.Publish(ctx, queue.CastDueEvent{CastID: job.CastID, JobID: job.ID, DueAt: job.DueAt})
	}), cfg.SchedulerPollInterval, cfg.SchedulerBatchSize, log.With("component", "dispatcher"), a.metrics)
	consumer := &queue.Consumer{
		URL:           cfg.RabbitURL,
		HandleTimeout: cfg.PublishTimeout,
		Handle: func(ctx context.Context, ev queue.CastDueEvent) error {
			return publisher.Publish(ctx, ev.CastID, ev.JobID)
		},
		Log: log.With("component", "consumer"),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log, a.metrics))

	h := router.Handlers{
		Auth:     handler.NewAuthHandler(cfg, identity, a.repos.Users(a.db), a.repos.Tokens(a.db), log),
		Casts:    handler.NewCastHandler(casts, log),
		Profiles: handler.NewProfileHandler(profiles, log),
		Uploads:  handler.NewUploadHandler(images, log),
		Ready: handler.Ready(map[string]handler.Check{
			"mysql": a.db.PingContext,
			"redis": func(ctx context.Context) error { return a.rdb.Ping(ctx).Err() },
		}),
		Metrics: promhttp.Handler(),
	}
	router.RegisterRoutes(e, h)
	router.RegisterAPI(e, h, router.Options{
		JWTSecret: cfg.JWTSecret,
		RateLimit: middleware.NewTokenBucket(rl, a.rdb, log),
		Cache:     middleware.NewRedisCache(cc, a.rdb),
	})

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error(name+" stopped", "err", err)
			}
		}()
	}
	run("dispatcher", dispatcher.Run)
	run("consumer", consumer.Run)
	run("reconcile", func(ctx context.Context) error {
		reconcileLoop(ctx, casts, cfg.ReconcileInterval, a)
		return nil
	})

	srvErr := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", ":"+cfg.Port, "env", cfg.Env)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	select {
	case <-ctx.Done():
	case err = <-srvErr:
	}

	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := e.Shutdown(shutdownCtx); serr != nil {
		log.Warn("http shutdown", "err", serr)
	}
	wg.Wait()
	log.Info("server stopped")
	return err
}
