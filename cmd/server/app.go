package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/castscheduler/internal/config"
	"github.com/iliyamo/castscheduler/internal/database"
	"github.com/iliyamo/castscheduler/internal/logging"
	"github.com/iliyamo/castscheduler/internal/metrics"
	"github.com/iliyamo/castscheduler/internal/repository"
	"github.com/iliyamo/castscheduler/internal/scheduler"
	"github.com/iliyamo/castscheduler/internal/service"
	"github.com/iliyamo/castscheduler/internal/utils"
)

// app holds the long lived dependencies shared by the subcommands.
type app struct {
	cfg     config.Config
	log     logging.Logger
	db      *sql.DB
	rdb     *redis.Client
	repos   repository.Manager
	sched   *scheduler.RedisScheduler
	metrics metrics.Metrics
}

// loadConfig reads the configuration and builds the logger.
func loadConfig() (config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat), nil
}

func openDB(cfg config.Config) (*sql.DB, error) {
	db, err := database.Open(database.Options{
		User: cfg.DBUser,
		Pass: cfg.DBPass,
		Host: cfg.DBHost,
		Port: cfg.DBPort,
		Name: cfg.DBName,
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	return db, nil
}

// newApp connects MySQL and Redis and applies pending migrations.
func newApp(ctx context.Context, m metrics.Metrics) (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	mctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := database.Migrate(mctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	rdb, err := config.NewRedisClient()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	key, err := cfg.SecretKey()
	if err != nil {
		_ = db.Close()
		_ = rdb.Close()
		return nil, err
	}
	return &app{
		cfg:     cfg,
		log:     log,
		db:      db,
		rdb:     rdb,
		repos:   repository.NewMySQLManager(utils.NewSealer(key)),
		sched:   scheduler.NewRedisScheduler(rdb, cfg.SchedulerPrefix),
		metrics: m,
	}, nil
}

func (a *app) casts() *service.CastService {
	return service.NewCastService(a.db, database.SQLTransactor{DB: a.db}, a.repos, a.sched, a.log.With("component", "casts"), a.metrics)
}

func (a *app) Close() {
	_ = a.rdb.Close()
	_ = a.db.Close()
}
