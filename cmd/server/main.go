// Package main runs the calendar HTTP API with WebSocket updates and graceful shutdown.
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
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/calendint/backend/config"
	"github.com/calendint/backend/internal/access"
	"github.com/calendint/backend/internal/auth"
	"github.com/calendint/backend/internal/events"
	"github.com/calendint/backend/internal/groups"
	"github.com/calendint/backend/internal/links"
	"github.com/calendint/backend/internal/middleware"
	"github.com/calendint/backend/internal/notifications"
	"github.com/calendint/backend/internal/organizations"
	"github.com/calendint/backend/internal/realtime"
	"github.com/calendint/backend/internal/subscriptions"
	"github.com/calendint/backend/internal/tags"
	"github.com/calendint/backend/internal/telemetry"
	"github.com/calendint/backend/internal/uploads"
	"github.com/calendint/backend/pkg/database"
	"github.com/calendint/backend/pkg/queue"
	"github.com/calendint/backend/pkg/redis"
	"github.com/calendint/backend/pkg/response"
	"github.com/calendint/backend/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := newLogger(cfg.IsProduction())
	defer logger.Sync()
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.PostersBucket != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			Endpoint:             cfg.AWS.Endpoint,
			PostersBucket:        cfg.AWS.PostersBucket,
			PublicBaseURL:        cfg.AWS.PublicBaseURL,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("poster uploads disabled", zap.Error(err))
		}
	}

	if cfg.Metrics.Port != "" {
		go telemetry.Serve(ctx, ":"+cfg.Metrics.Port, logger)
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours, cfg.JWT.Issuer)

	// Realtime: changes go through Redis so every instance's hub delivers them.
	pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, pubsub)
	if err := hub.Run(ctx, pubsub); err != nil {
		logger.Fatal("realtime subscribe", zap.Error(err))
	}

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)
	actors := auth.NewActorLoader(authRepo)

	// Events
	jobQueue := queue.NewQueue(rdb.Client, logger)
	eventSvc := events.NewService(events.NewRepository(pool), logger,
		events.WithNotifier(notifications.NewQueueNotifier(jobQueue)),
		events.WithPublisher(hub),
	)
	eventHandler := events.NewHandler(eventSvc, logger)
	notificationHandler := notifications.NewHandler(notifications.NewRepository(pool), eventSvc, logger)

	orgHandler := organizations.NewHandler(organizations.NewRepository(pool), logger)
	groupHandler := groups.NewHandler(groups.NewRepository(pool), logger)
	tagHandler := tags.NewHandler(tags.NewRepository(pool), logger)
	linkHandler := links.NewHandler(links.NewRepository(pool), eventSvc, logger)
	subscriptionHandler := subscriptions.NewHandler(subscriptions.NewRepository(pool), logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.Metrics())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins()))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})

	authGroup := router.Group("/auth")
	authGroup.Use(middleware.RateLimit(rdb.Limiter(), cfg.RateLimit.AuthPerMinute, logger))
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Public reads: anonymous callers see approved events only.
	public := router.Group("")
	public.Use(middleware.OptionalJWT(jwtService), middleware.Actor(actors, logger))
	{
		public.GET("/events", eventHandler.List)
		public.GET("/events/:id", eventHandler.Get)
		public.GET("/events/:id/overlaps", eventHandler.Overlaps)
		public.GET("/events/:id/reactions", eventHandler.ReactionSummary)
		public.GET("/events/:id/links", linkHandler.EventLinks)
		public.GET("/organizations", orgHandler.List)
		public.GET("/organizations/:id", orgHandler.Get)
		public.GET("/organizations/:id/links", linkHandler.OrganizationLinks)
		public.GET("/tags", tagHandler.List)
	}

	api := router.Group("")
	api.Use(middleware.JWT(jwtService), middleware.Actor(actors, logger))
	{
		api.GET("/auth/me", authHandler.Me)

		api.GET("/me/events", eventHandler.ListMine)
		api.GET("/me/drafts", eventHandler.ListDrafts)
		api.POST("/events", eventHandler.Create)
		api.PUT("/events/:id", eventHandler.Update)
		api.DELETE("/events/:id", eventHandler.Delete)
		api.POST("/events/:id/submit", eventHandler.Submit)
		api.POST("/events/:id/reset-status", eventHandler.ResetStatus)
		api.POST("/events/:id/approve", eventHandler.Approve)
		api.POST("/events/:id/reject", eventHandler.Reject)
		api.POST("/events/:id/reactions", eventHandler.React)
		api.GET("/events/:id/reactions/details", eventHandler.ListReactions)
		api.DELETE("/events/:id/reactions/:userId", eventHandler.DeleteReaction)
		api.GET("/events/:id/notifications", notificationHandler.ListByEvent)
		api.PUT("/events/:id/links", linkHandler.ReplaceEventLinks)
		if s3Client != nil {
			uploadHandler := uploads.NewHandler(eventSvc, s3Client, logger)
			api.POST("/events/:id/poster", uploadHandler.Poster)
		}

		api.GET("/moderation/pending", eventHandler.ListPending)
		api.GET("/moderation/processed", eventHandler.ListProcessed)

		api.GET("/me/organizations", orgHandler.ListMine)
		api.GET("/organizations/:id/members", orgHandler.ListMembers)
		api.PUT("/organizations/:id/members", orgHandler.SetMember)
		api.DELETE("/organizations/:id/members/:userId", orgHandler.RemoveMember)
		api.POST("/organizations/:id/links", linkHandler.CreateOrganizationLink)
		api.PUT("/organization-links/:id", linkHandler.UpdateOrganizationLink)
		api.DELETE("/organization-links/:id", linkHandler.DeleteOrganizationLink)

		api.GET("/organizations/:id/groups", groupHandler.List)
		api.POST("/organizations/:id/groups", groupHandler.Create)
		api.DELETE("/organizations/:id/groups/:groupId", groupHandler.Delete)
		api.GET("/organizations/:id/groups/:groupId/members", groupHandler.Members)
		api.POST("/organizations/:id/groups/:groupId/members", groupHandler.AddMember)
		api.DELETE("/organizations/:id/groups/:groupId/members/:userId", groupHandler.RemoveMember)

		api.POST("/tags", tagHandler.Create)
		api.PUT("/tags/:id", tagHandler.Update)
		api.DELETE("/tags/:id", tagHandler.Delete)

		api.GET("/me/subscriptions", subscriptionHandler.Mine)
		api.POST("/me/subscriptions/all", subscriptionHandler.SubscribeAll)
		api.DELETE("/me/subscriptions/all", subscriptionHandler.UnsubscribeAll)
		api.POST("/me/subscriptions/organizations/:id", subscriptionHandler.SubscribeOrganization)
		api.DELETE("/me/subscriptions/organizations/:id", subscriptionHandler.UnsubscribeOrganization)
		api.POST("/me/subscriptions/tags/:id", subscriptionHandler.SubscribeTag)
		api.DELETE("/me/subscriptions/tags/:id", subscriptionHandler.UnsubscribeTag)
	}

	admin := api.Group("")
	admin.Use(middleware.RequireSuperadmin())
	{
		admin.GET("/users", authHandler.List)
		admin.PUT("/users/:id/active", authHandler.SetActive)
		admin.PUT("/users/:id/superadmin", authHandler.SetSuperadmin)
		admin.POST("/organizations", orgHandler.Create)
		admin.PUT("/tags/:id/auto-approve", tagHandler.SetAutoApproved)
	}

	// WebSocket (token in query; anonymous connections receive approved events only)
	authenticate := func(ctx context.Context, token string) (*access.Actor, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return nil, err
		}
		return actors.Load(ctx, claims.UserID)
	}
	router.GET("/ws", realtime.ServeWs(hub, logger, authenticate, cfg.Server.AllowedOrigins()))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger(production bool) *zap.Logger {
	config := zap.NewProductionConfig()
	if !production {
		config = zap.NewDevelopmentConfig()
	}
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
