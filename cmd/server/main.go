// Package main runs the business-management HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/opsledger/backend/config"
	"github.com/opsledger/backend/internal/auth"
	"github.com/opsledger/backend/internal/billing"
	"github.com/opsledger/backend/internal/clients"
	"github.com/opsledger/backend/internal/emaillogs"
	"github.com/opsledger/backend/internal/inventory"
	"github.com/opsledger/backend/internal/invoices"
	"github.com/opsledger/backend/internal/middleware"
	"github.com/opsledger/backend/internal/models"
	"github.com/opsledger/backend/internal/organizations"
	"github.com/opsledger/backend/internal/projects"
	"github.com/opsledger/backend/internal/quotes"
	"github.com/opsledger/backend/internal/realtime"
	"github.com/opsledger/backend/internal/workspace"
	"github.com/opsledger/backend/pkg/database"
	"github.com/opsledger/backend/pkg/queue"
	"github.com/opsledger/backend/pkg/redis"
	"github.com/opsledger/backend/pkg/response"
	"github.com/opsledger/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			DocumentsBucket:      cfg.AWS.DocumentsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Organizations and billing
	orgRepo := organizations.NewRepository(pool)
	billingRepo := billing.NewRepository(pool)
	billingGuard := billing.NewGuard(billingRepo, logger)
	billingHandler := billing.NewHandler(billingRepo, cfg.Billing.WebhookSecret, logger)
	orgHandler := organizations.NewHandler(orgRepo, billingRepo, hub, cfg.Billing.TrialDays, logger)

	// Workspace resolution
	workspaceSvc := workspace.NewService(orgRepo, authRepo, logger)
	workspaceSvc.SetProvisioner(organizations.NewProvisioner(orgRepo, billingRepo, cfg.Billing.TrialDays, logger))
	workspaceHandler := workspace.NewHandler(workspaceSvc, logger, cfg.Server.DebugEndpoints)
	scopeGuard := workspace.NewGuard(logger)

	// Business features
	clientRepo := clients.NewRepository(pool)
	clientHandler := clients.NewHandler(clientRepo, billingGuard, scopeGuard)

	projectRepo := projects.NewRepository(pool)
	projectHandler := projects.NewHandler(projectRepo, billingGuard, scopeGuard)

	emailLogRepo := emaillogs.NewRepository(pool)
	emailLogHandler := emaillogs.NewHandler(emailLogRepo)

	invoiceRepo := invoices.NewRepository(pool)
	invoiceHandler := invoices.NewHandler(invoiceRepo, clientRepo, emailLogRepo, jobQueue, s3Client, hub, billingGuard, scopeGuard, logger)

	quoteRepo := quotes.NewRepository(pool)
	quoteHandler := quotes.NewHandler(quoteRepo, clientRepo, invoiceRepo, emailLogRepo, jobQueue, hub, billingGuard, scopeGuard, logger)

	inventoryRepo := inventory.NewRepository(pool)
	inventoryHandler := inventory.NewHandler(inventoryRepo, billingGuard, scopeGuard)

	jwtValidate := func(token string) (userID, role string, err error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", "", err
		}
		return claims.UserID.String(), claims.Role, nil
	}
	resolveOrg := func(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error) {
		res, err := workspaceSvc.Resolve(ctx, userID, nil)
		if err != nil {
			return nil, err
		}
		return res.ActiveOrgID, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Webhooks (no JWT; validated via shared secret in handler)
	router.POST("/webhooks/billing", billingHandler.Webhook)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/auth/me", authHandler.Me)
		api.GET("/users", middleware.RequireGlobalRole(string(models.GlobalRoleSuperadmin)), authHandler.List)

		// Workspace resolution and switching
		api.GET("/workspace", workspaceHandler.Get)
		api.POST("/workspace/switch", workspaceHandler.Switch)
		api.POST("/workspace/bridge", middleware.RequireGlobalRole(string(models.GlobalRoleSuperadmin)), workspaceHandler.Bridge)
		api.GET("/debug/workspace", workspaceHandler.Debug)

		// Organizations (membership management does not need an active scope)
		api.GET("/organizations", orgHandler.ListMine)
		api.POST("/organizations", orgHandler.Create)
		api.POST("/organizations/join", orgHandler.Join)
		api.GET("/organizations/:id/members", orgHandler.ListMembers)
		api.POST("/organizations/:id/members/:userId/approve", orgHandler.ApproveMember)
		api.PATCH("/organizations/:id/members/:userId/role", orgHandler.UpdateMemberRole)
		api.DELETE("/organizations/:id/members/:userId", orgHandler.RemoveMember)
		api.POST("/organizations/:id/leave", orgHandler.Leave)

		// Everything below requires a resolved active organization
		scoped := api.Group("")
		scoped.Use(workspace.RequireScope(workspaceSvc))
		{
			scoped.GET("/billing/subscription", billingHandler.GetSubscription)

			scoped.GET("/clients", clientHandler.List)
			scoped.POST("/clients", clientHandler.Create)
			scoped.GET("/clients/:id", clientHandler.Get)
			scoped.PATCH("/clients/:id", clientHandler.Update)
			scoped.DELETE("/clients/:id", clientHandler.Delete)

			scoped.GET("/projects", projectHandler.List)
			scoped.POST("/projects", projectHandler.Create)
			scoped.GET("/projects/:id", projectHandler.Get)
			scoped.PATCH("/projects/:id", projectHandler.Update)
			scoped.DELETE("/projects/:id", projectHandler.Delete)
			scoped.POST("/projects/:id/tasks", projectHandler.CreateTask)
			scoped.GET("/projects/:id/tasks", projectHandler.ListTasks)
			scoped.PATCH("/tasks/:id/done", projectHandler.SetTaskDone)

			scoped.GET("/quotes", quoteHandler.List)
			scoped.POST("/quotes", quoteHandler.Create)
			scoped.GET("/quotes/:id", quoteHandler.Get)
			scoped.POST("/quotes/:id/send", quoteHandler.Send)
			scoped.POST("/quotes/:id/accept", quoteHandler.Accept)
			scoped.POST("/quotes/:id/decline", quoteHandler.Decline)

			scoped.GET("/inventory", inventoryHandler.List)
			scoped.POST("/inventory", inventoryHandler.Create)
			scoped.GET("/inventory/:id", inventoryHandler.Get)
			scoped.PATCH("/inventory/:id", inventoryHandler.Update)
			scoped.POST("/inventory/:id/adjust", inventoryHandler.Adjust)
			scoped.DELETE("/inventory/:id", inventoryHandler.Delete)

			scoped.GET("/invoices", invoiceHandler.List)
			scoped.POST("/invoices", invoiceHandler.Create)
			scoped.GET("/invoices/:id", invoiceHandler.Get)
			scoped.POST("/invoices/:id/send", invoiceHandler.Send)
			scoped.POST("/invoices/:id/paid", invoiceHandler.MarkPaid)
			scoped.POST("/invoices/:id/void", invoiceHandler.Void)
			scoped.GET("/invoices/:id/document", invoiceHandler.DocumentURL)

			scoped.GET("/emails", emailLogHandler.List)
		}
	}

	// WebSocket (token in query; room is the caller's resolved organization)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtValidate, resolveOrg))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
