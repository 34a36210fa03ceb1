package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"room-chat/internal/chat"
	"room-chat/internal/config"
	"room-chat/internal/db"
	grpcserver "room-chat/internal/grpc"
	"room-chat/internal/handlers"
	"room-chat/internal/middleware"
	"room-chat/internal/observability"
	"room-chat/internal/rabbitmq"
	"room-chat/internal/repositories"
	"room-chat/internal/telemetry"
	"room-chat/internal/ws"
)

const serviceName = "room-chat"

type messageStore interface {
	repositories.MessageRepository
	repositories.ReactionLedger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, serviceName, cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init tracer")
	}

	var (
		store   messageStore
		rooms   *repositories.RoomRepo
		pinger  grpcserver.Pinger
		closers []func() error
	)
	switch cfg.StoreDriver {
	case config.StoreBadger:
		bdb, err := db.OpenBadger(cfg.BadgerPath, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open badger")
		}
		closers = append(closers, bdb.Close)
		store = repositories.NewBadgerMessageRepo(bdb)
	default:
		database, err := db.Connect(cfg.DBDSN, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to db")
		}
		closers = append(closers, database.Close)
		store = repositories.NewMessageRepo(database)
		pinger = database
		if cfg.RequireKnownRooms {
			rooms = repositories.NewRoomRepo(database)
		}
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	closers = append(closers, publisher.Close)
	logger.Info().
		Str("mode", rabbitmq.PublisherMode(publisher)).
		Str("reason", rabbitmq.PublisherNoopReason(publisher)).
		Msg("event publisher ready")
	audit := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, serviceName, cfg.Environment, logger)

	hub := ws.NewHub(ws.NewTracker(), logger)
	chatCfg := chat.Config{MaxContentLength: cfg.MaxContentLength}
	wsCfg := ws.HandlerConfig{
		SendBuffer:    cfg.WSSendBuffer,
		ActionTimeout: cfg.ActionTimeout,
	}
	if rooms != nil {
		chatCfg.Rooms = rooms
		wsCfg.Rooms = rooms
	}
	svc := chat.NewService(store, store, hub, logger, chatCfg)

	wsHandler := ws.NewHandler(hub, svc, audit, publisher, logger, wsCfg)
	messageHandler := handlers.NewMessageHandler(svc, audit)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		gin.Recovery(),
		otelgin.Middleware(serviceName),
		middleware.RequestID(),
		middleware.Logger(logger),
		observability.HTTPMetricsMiddleware(),
	)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", healthz(pinger))

	authed := router.Group("/", middleware.AuthMiddleware(middleware.NewTokenVerifier(cfg.JWTSecret)))
	authed.GET("/ws", wsHandler.Handle)
	messageHandler.Register(authed)
	if rooms != nil {
		authed.GET("/rooms/:room_id", handlers.NewRoomHandler(rooms).GetRoom)
	}
	handlers.RegisterDebugRoutes(authed, audit, hub, cfg.DebugRoutes)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	health := grpcserver.NewHealthServer(pinger, logger)
	health.Refresh(ctx)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		logger.Fatal().Err(err).Str("port", cfg.GRPCPort).Msg("failed to listen for grpc")
	}
	go func() {
		if err := health.Serve(lis); err != nil {
			logger.Error().Err(err).Msg("grpc server stopped")
		}
	}()
	go refreshHealth(ctx, health)

	go func() {
		logger.Info().Str("addr", srv.Addr).Str("store", cfg.StoreDriver).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	hub.Close()
	health.Shutdown()
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			logger.Warn().Err(err).Msg("close")
		}
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("tracer shutdown")
	}
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Str("service", serviceName).Logger()
}

func healthz(pinger grpcserver.Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if pinger != nil {
			if err := pinger.PingContext(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func refreshHealth(ctx context.Context, health *grpcserver.HealthServer) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			health.Refresh(ctx)
		}
	}
}

var _ grpcserver.Pinger = (*sqlx.DB)(nil)
