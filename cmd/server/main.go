package main // Entry point package

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/database"
	"github.com/iliyamo/event-ticketing/internal/handler"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/queue"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/router"
	"github.com/iliyamo/event-ticketing/internal/service"
)

func main() {
	envFiles := pflag.StringSlice("env-file", []string{".env"}, "dotenv files to load before reading the environment")
	migrate := pflag.Bool("migrate", true, "apply pending schema migrations at startup")
	workerOnly := pflag.Bool("worker", false, "run only the background workers (sweeper, event consumer)")
	pflag.Parse()

	config.LoadEnvFiles(*envFiles...)
	cfg := config.Load()
	qcfg := config.LoadQueueConfig()

	log := newLogger(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.OpenStore(cfg.DBDriver, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.SQLitePath)
	if err != nil {
		log.Error("open database", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	if *migrate {
		applied, err := database.Migrate(ctx, store.DB, store.Dialect)
		if err != nil {
			log.Error("migrate database", "err", err)
			os.Exit(1)
		}
		log.Info("schema up to date", "dialect", store.Dialect.Name(), "applied", applied)
	}

	var events service.EventPublisher = service.NopPublisher{}
	if qcfg.EventsEnabled {
		events = service.NewAMQPPublisher(qcfg.AMQPURL, log)
	}
	reservations := service.NewReservationService(store, events, log, cfg.HoldMaxMin)
	registry := service.NewSeatRegistry(store, log)

	if qcfg.ConsumerEnabled {
		go func() {
			if err := queue.StartReservationConsumer(ctx, qcfg.AMQPURL, qcfg.ConsumerLog, log); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("reservation consumer stopped", "err", err)
			}
		}()
	}

	if qcfg.SweeperEnabled || *workerOnly {
		sweeper, err := queue.StartSweeper(config.AsynqRedisOpt(), queue.SweeperOptions{
			Cron:    qcfg.SweeperCron,
			Batch:   qcfg.SweeperBatch,
			Timeout: qcfg.SweeperTimeout,
		}, reservations, log)
		if err != nil {
			log.Error("start hold sweeper", "err", err)
			os.Exit(1)
		}
		defer sweeper.Shutdown()
		log.Info("hold sweeper started", "cron", qcfg.SweeperCron, "batch", qcfg.SweeperBatch)
	}

	if *workerOnly {
		<-ctx.Done()
		log.Info("worker shutting down")
		return
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable; cache and rate limiting disabled")
	} else {
		defer rdb.Close()
	}

	e := newServer(cfg, store, registry, reservations, rdb)

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", "addr", addr, "env", cfg.Env, "db", store.Dialect.Name())
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "err", err)
	}
	log.Info("server stopped")
}

func newServer(cfg config.Config, store *database.Store, registry *service.SeatRegistry, reservations *service.ReservationService, rdb *redis.Client) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	holdLimiter := middleware.NewTokenBucket(config.LoadHoldRateLimitConfig(), rdb)

	router.RegisterRoutes(e, store.DB)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, repository.NewUserRepo(store), repository.NewTokenRepo(store)), cfg.JWTSecret)
	router.RegisterShows(e, handler.NewShowHandler(registry), cfg.JWTSecret, cache)
	router.RegisterReservations(e, handler.NewReservationHandler(reservations, cfg.HoldDefaultMin), cfg.JWTSecret, holdLimiter)
	return e
}

// newLogger logs text in development and JSON elsewhere.
func newLogger(env string) *slog.Logger {
	if env == "dev" || env == "development" || env == "local" {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
