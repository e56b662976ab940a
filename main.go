package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"widget-chat-service/internal/autoreply"
	"widget-chat-service/internal/config"
	"widget-chat-service/internal/conversations"
	"widget-chat-service/internal/db"
	"widget-chat-service/internal/handlers"
	"widget-chat-service/internal/logger"
	"widget-chat-service/internal/middleware"
	"widget-chat-service/internal/observability"
	"widget-chat-service/internal/rabbitmq"
	"widget-chat-service/internal/realtime"
	"widget-chat-service/internal/repositories"
	"widget-chat-service/internal/session"
	"widget-chat-service/internal/telemetry"
	"widget-chat-service/internal/ws"
)

const auditRoutingKey = "audit.widget_chat"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	appLogger, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init logger")
	}

	if err := run(cfg, appLogger); err != nil {
		appLogger.Fatal().Err(err).Msg("service stopped")
	}
}

func run(cfg *config.Config, appLogger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.ServiceName, cfg.Environment, cfg.OTLPEndpoint, appLogger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	database, err := db.Connect(cfg.DatabaseDSN, appLogger)
	if err != nil {
		return err
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, appLogger)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	audit := telemetry.NewAuditEmitter(publisher, auditRoutingKey, cfg.ServiceName, cfg.Environment, appLogger)
	appLogger.Info().Str("mode", rabbitmq.PublisherMode(publisher)).Msg("event publisher ready")

	widgetRepo := repositories.NewWidgetRepo(database)
	ruleRepo := repositories.NewRuleRepo(database)
	chatRepo := repositories.NewChatRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	outcomeRepo := repositories.NewOutcomeRepo(database)

	local := realtime.NewLocalBus(cfg.SubscriberBuffer, appLogger)
	var (
		bus          realtime.Bus = local
		sessionStore session.Store
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		client := redis.NewClient(opts)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return err
		}
		redisBus, err := realtime.NewRedisBus(ctx, client, local, appLogger)
		if err != nil {
			return err
		}
		bus = redisBus
		sessionStore = session.NewRedisStore(client, cfg.SessionTTL)
		appLogger.Info().Msg("realtime bus and sessions backed by redis")
	} else {
		sessionStore = session.NewMemoryStore()
		appLogger.Warn().Msg("REDIS_URL not set, realtime bus and sessions are process-local")
	}
	defer bus.Close()
	channel := realtime.NewChannel(bus)

	ruleCache, err := autoreply.NewRuleCache(ruleRepo, cfg.RuleCacheSize, cfg.RuleCacheTTL, appLogger)
	if err != nil {
		return err
	}
	ruleCache.Watch(channel)
	ruleService := autoreply.NewRuleService(ruleRepo, ruleCache, channel, audit, cfg.PreviewThreshold, appLogger)
	dispatcher := autoreply.NewDispatcher(ruleCache, messageRepo, outcomeRepo, channel, audit, cfg.AutoReplyTimeout, appLogger)

	sweeper := autoreply.NewSweeper(outcomeRepo, cfg.UnrepliedGrace, appLogger)
	if err := sweeper.Start(cfg.UnrepliedSweepSchedule); err != nil {
		return err
	}
	defer sweeper.Stop()

	sessions := session.NewManager(sessionStore, chatRepo, channel, cfg.IdentifyPromptThreshold, appLogger)
	conversationService := conversations.NewService(widgetRepo, chatRepo, messageRepo, sessions, channel, dispatcher, appLogger)

	hub := ws.NewHub(channel, appLogger)
	widgetHandler := handlers.NewWidgetHandler(widgetRepo, audit)
	ruleHandler := handlers.NewRuleHandler(widgetRepo, ruleService)
	visitorHandler := handlers.NewVisitorHandler(conversationService)
	dashboardHandler := handlers.NewDashboardHandler(conversationService)
	conversationWS := ws.NewConversationWebSocketHandler(hub, channel, conversationService)

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.RequestID())
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		if err := database.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, audit, cfg.Environment == "development")

	router.GET("/widgets/:widget_id", widgetHandler.GetPublicWidget)
	router.POST("/widgets/:widget_id/session", visitorHandler.StartSession)
	router.GET("/widgets/:widget_id/messages", visitorHandler.GetMessages)
	router.POST("/widgets/:widget_id/messages", visitorHandler.PostMessage)
	router.POST("/widgets/:widget_id/identify", visitorHandler.Identify)
	router.POST("/widgets/:widget_id/typing", visitorHandler.Typing)
	router.GET("/ws/widgets/:widget_id/conversation", conversationWS.HandleVisitor)

	dashboard := router.Group("/dashboard", middleware.AccountMiddleware())
	dashboard.GET("/widget", widgetHandler.GetDashboardWidget)
	dashboard.PUT("/widget", widgetHandler.UpdateDashboardWidget)
	dashboard.GET("/rules", ruleHandler.ListRules)
	dashboard.POST("/rules", ruleHandler.CreateRule)
	dashboard.DELETE("/rules/:rule_id", ruleHandler.DeleteRule)
	dashboard.POST("/rules/preview", ruleHandler.PreviewRule)
	dashboard.GET("/conversations", dashboardHandler.ListConversations)
	dashboard.GET("/conversations/:chat_id/messages", dashboardHandler.GetMessages)
	dashboard.POST("/conversations/:chat_id/messages", dashboardHandler.PostMessage)
	dashboard.POST("/conversations/:chat_id/typing", dashboardHandler.Typing)

	dashboardWS := router.Group("/ws/dashboard", middleware.AccountMiddleware())
	dashboardWS.GET("/conversations", conversationWS.HandleDashboardChatList)
	dashboardWS.GET("/conversations/:chat_id", conversationWS.HandleDashboardConversation)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		appLogger.Info().Msg("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
