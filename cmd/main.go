package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	httpapi "github.com/immxrtalbeast/axenix_signal/internal/api/http"
	"github.com/immxrtalbeast/axenix_signal/internal/app"
	"github.com/immxrtalbeast/axenix_signal/internal/config"
	"github.com/immxrtalbeast/axenix_signal/internal/media"
	"github.com/immxrtalbeast/axenix_signal/internal/metrics"
	"github.com/immxrtalbeast/axenix_signal/internal/registry"
	"github.com/immxrtalbeast/axenix_signal/internal/repository"
	"github.com/immxrtalbeast/axenix_signal/internal/service"
	"github.com/immxrtalbeast/axenix_signal/internal/transport"
	"github.com/immxrtalbeast/axenix_signal/lib/logger/sl"
	"github.com/immxrtalbeast/axenix_signal/lib/logger/slogpretty"
	"github.com/joho/godotenv"
	"github.com/pion/webrtc/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	journal, err := setupJournal(ctx, cfg.Database)
	if err != nil {
		log.Error("failed to set up room journal", sl.Err(err))
		os.Exit(1)
	}

	engine, err := media.NewPionEngine(media.Config{
		ICEServers:    []webrtc.ICEServer{{URLs: cfg.WebRTC.STUNServers}},
		QueueSize:     cfg.WebRTC.EngineQueueSize,
		CallTimeout:   cfg.WebRTC.CallTimeout,
		GatherTimeout: cfg.WebRTC.GatherTimeout,
	}, log)
	if err != nil {
		log.Error("failed to create media engine", sl.Err(err))
		os.Exit(1)
	}
	// the engine outlives ctx so a shutdown signal is not taken for a crash
	engineCtx, stopEngine := context.WithCancel(context.Background())
	defer stopEngine()
	engine.Start(engineCtx)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promRegistry)

	connections := registry.New(nil, log)
	rooms := service.NewRoomManager(cfg.Signaling.RoomCapacity, log)
	signaling := service.NewSignaling(service.Config{
		PendingJoinTimeout: cfg.Signaling.PendingJoinTimeout,
		CleanupTimeout:     cfg.WebRTC.CallTimeout,
	}, connections, rooms, engine, journal, m, log)

	roomController := httpapi.NewRoomController(signaling, journal, log)
	signalingController := httpapi.NewSignalingController(signaling, transport.PeerConfig{
		WriteWait:         cfg.Signaling.WriteWait,
		PongWait:          cfg.Signaling.PongWait,
		MaxMessageBytes:   cfg.Signaling.MaxMessageBytes,
		QueueSize:         cfg.Signaling.QueueSize,
		MessagesPerSecond: cfg.Signaling.MessagesPerSecond,
		Burst:             cfg.Signaling.Burst,
	}, m, log)

	router := httpapi.SetupRouter(httpapi.RouterConfig{
		AllowOrigins: cfg.HTTP.AllowOrigins,
		Health:       engine,
		Gatherer:     promRegistry,
	}, roomController, signalingController)

	log.Info("starting application", slog.String("addr", cfg.HTTP.Address), slog.String("env", cfg.Env))
	application := app.New(log, router, cfg.HTTP.Address, engine, m, cfg.HTTP.ShutdownTimeout)
	if err := application.Run(ctx); err != nil {
		if errors.Is(err, app.ErrEngineDied) {
			log.Error("exiting after media engine failure", sl.Err(err))
		} else {
			log.Error("application stopped", sl.Err(err))
		}
		os.Exit(1)
	}
	log.Info("application stopped")
}

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = setupPrettySlog()
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

// setupJournal picks the journal backend from the DSN: empty keeps it in
// memory, sqlite:// opens a local file, anything else is handed to postgres.
func setupJournal(ctx context.Context, cfg config.DatabaseConfig) (repository.EventJournal, error) {
	if cfg.DSN == "" {
		return repository.NewInMemoryEventJournal(), nil
	}

	db, err := connectDatabase(cfg.DSN)
	if err != nil {
		return nil, err
	}
	journal := repository.NewGormEventJournal(db)
	if err := journal.Migrate(ctx); err != nil {
		return nil, err
	}
	return journal, nil
}

func connectDatabase(dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if path, ok := strings.CutPrefix(dsn, "sqlite://"); ok {
		dialector = sqlite.Open(path)
	} else {
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}
