package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"uniconnect-chat/internal/chat"
	"uniconnect-chat/internal/config"
	"uniconnect-chat/internal/database"
	"uniconnect-chat/internal/engine"
	"uniconnect-chat/internal/handlers"
	"uniconnect-chat/internal/middleware"
	"uniconnect-chat/internal/notify"
	"uniconnect-chat/internal/presence"
	"uniconnect-chat/internal/utils"
	"uniconnect-chat/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/sirupsen/logrus"
)

// App holds the running components so they can be shut down in order
type App struct {
	System  *actor.ActorSystem
	Store   database.RoomStore
	Engine  *engine.Engine
	Hub     *websocket.Hub
	Fanout  *notify.Fanout
	Tracker *actor.PID
	Server  *handlers.Server

	log *logrus.Logger
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if cfg.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open room store")
	}

	app := NewApp(cfg, store, logger)
	go func() {
		if err := app.Fanout.Run(ctx); err != nil {
			logger.WithError(err).Error("Notification fanout stopped")
		}
	}()

	// Start server
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: app.Server.Routes(),
	}
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":  httpServer.Addr,
			"store": cfg.Database.Type,
		}).Info("Starting server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP server shutdown incomplete")
	}
	app.Close(shutdownCtx)
}

// NewApp wires the engine, realtime hub, presence tracker and notification fanout
// around an opened store.
func NewApp(cfg *config.Config, store database.RoomStore, logger *logrus.Logger) *App {
	metrics := utils.NewMetricsCollector()
	system := actor.NewActorSystem()

	eng := engine.NewEngine(system, store, metrics, logger, engine.Options{
		RequestTimeout:   cfg.Server.RequestTimeout,
		MaxContentLength: cfg.Server.MaxContentLength,
		RoomListLimit:    cfg.Server.RoomListLimit,
	})

	hub := websocket.NewHub(logger)
	tracker := system.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return presence.NewTracker(eng, hub, logger, cfg.Server.RequestTimeout)
	}))
	hub.SetPresenceSink(presence.NewSink(system.Root, tracker))

	fanout := notify.NewFanout(eng, hub, logger, cfg.Server.NotifyBufferSize, cfg.Server.RequestTimeout)
	service := chat.NewService(eng, hub, fanout, metrics, logger)

	auth := middleware.NewAuthenticator(cfg.JWTSecret, logger)
	server := handlers.NewServer(eng, hub, service, auth, middleware.DefaultCORSConfig(cfg.AllowedOrigins), metrics, cfg.Database.Type, logger)
	server.RequestTimeout = cfg.Server.RequestTimeout
	server.FrameLimit = websocket.FrameLimit(cfg.Server.MaxContentLength)

	return &App{
		System:  system,
		Store:   store,
		Engine:  eng,
		Hub:     hub,
		Fanout:  fanout,
		Tracker: tracker,
		Server:  server,
		log:     logger,
	}
}

// Close stops the actors before the store they write to.
func (a *App) Close(ctx context.Context) {
	a.System.Root.Stop(a.Tracker)
	a.Engine.Stop()
	if err := a.Store.Close(ctx); err != nil {
		a.log.WithError(err).Warn("Failed to close room store")
	}
	a.log.WithFields(logrus.Fields{
		"notifications_dropped": a.Fanout.Dropped(),
		"notifications_missed":  a.Fanout.Missed(),
	}).Info("Shutdown complete")
}

func openStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (database.RoomStore, error) {
	switch cfg.Database.Type {
	case database.StoreMongo:
		return database.NewMongoDB(cfg.Database.MongoURI, cfg.Database.MongoDatabase, logger)
	case database.StorePostgres:
		db, err := database.NewPostgresDB(cfg.Database.URI, logger)
		if err != nil {
			return nil, err
		}
		if err := db.InitializeTables(ctx); err != nil {
			db.Close(ctx)
			return nil, fmt.Errorf("failed to initialize tables: %w", err)
		}
		return db, nil
	case database.StoreMemory:
		logger.Warn("Using in-memory room store; conversations are lost on restart")
		return database.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store type %q", cfg.Database.Type)
	}
}
