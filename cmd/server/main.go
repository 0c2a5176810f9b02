package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/EgehanKilicarslan/medassist/backend-go/internal/ai"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/api"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/config"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database/repository"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database/service"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/extractor"
	internalgrpc "github.com/EgehanKilicarslan/medassist/backend-go/internal/grpc"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/handler"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/logger"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/mailer"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/middleware"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/worker"
)

const (
	shutdownTimeout     = 15 * time.Second
	healthProbeInterval = 10 * time.Second
	tokenCleanupPeriod  = time.Hour
)

func main() {
	// 1. Config
	cfg := config.LoadConfig()

	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		os.Exit(healthcheck(cfg))
	}

	// 2. Logger
	appLogger := logger.New(cfg)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	appLogger.Info("🚀 [Go] Starting MedAssist API...",
		"environment", cfg.AppEnv,
		"ai_provider", cfg.AIProvider,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLogger); err != nil {
		appLogger.Error("❌ Server stopped with error", "error", err)
		os.Exit(1)
	}
	appLogger.Info("👋 [Go] Shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, appLogger *slog.Logger) error {
	// 3. Connect to Database
	pool, err := database.Connect(ctx, cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	db := pool.DB()

	// 4. Initialize Repositories
	userRepo := repository.NewUserRepository(db)
	resetRepo := repository.NewPasswordResetRepository(db)
	reportRepo := repository.NewReportRepository(db)
	chatRepo := repository.NewChatRepository(db)

	// 5. Redis: history cache and rate limiter share one client
	var historyCache database.ChatHistoryStore
	var rateLimiter middleware.RateLimiter
	redisClient, err := database.NewRedisClient(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Warn("⚠️ Failed to connect to Redis", "error", err)
		appLogger.Info("💡 Chat history will only use Postgres and rate limiting is disabled")
		rateLimiter = middleware.NewNoOpRateLimiter(appLogger)
	} else {
		defer redisClient.Close()
		historyCache = redisClient
		rateLimiter = middleware.NewRateLimiter(redisClient.Client(), appLogger)
	}

	// 6. Background workers
	workers := worker.NewPool(appLogger)
	defer workers.Shutdown(shutdownTimeout)

	// 7. AI client and text extraction
	aiClient := ai.NewClient(ctx, cfg, appLogger)
	if closer, ok := aiClient.(io.Closer); ok {
		defer closer.Close()
	}

	textExtractor := extractor.New(
		extractor.NewOCRSpaceClient(cfg.OCRAPIURL, cfg.OCRAPIKey, cfg.OCRTimeoutDuration(), appLogger),
		extractor.NewDocconvPDFParser(),
		appLogger,
	)

	// 8. Initialize Services
	authService := service.NewAuthService(userRepo, resetRepo, mailer.New(cfg, appLogger), workers, cfg, appLogger)
	analysisService := service.NewAnalysisService(reportRepo, aiClient, cfg, appLogger)
	reportService := service.NewReportService(reportRepo, textExtractor, analysisService, cfg, appLogger)
	chatService := service.NewChatService(chatRepo, reportRepo, aiClient, historyCache, cfg, appLogger)
	historyService := service.NewHistoryService(chatRepo, historyCache, cfg, appLogger)

	// 9. Initialize Handlers & Middleware
	authHandler := handler.NewAuthHandler(authService, cfg, appLogger)
	reportHandler := handler.NewReportHandler(reportService, cfg, appLogger)
	chatHandler := handler.NewChatHandler(chatService, historyService, rateLimiter, cfg, appLogger)
	authMiddleware := middleware.NewAuthMiddleware(authService, appLogger)

	r := api.SetupRouter(cfg, authHandler, reportHandler, chatHandler, authMiddleware)

	// 10. gRPC health server
	healthServer := internalgrpc.NewHealthServer(pool, appLogger)
	grpcServer := grpc.NewServer()
	healthServer.Register(grpcServer)

	workers.Every(healthProbeInterval, healthServer.Probe)
	workers.Every(tokenCleanupPeriod, func(ctx context.Context) {
		removed, err := resetRepo.DeleteExpired(ctx)
		if err != nil {
			if ctx.Err() == nil {
				appLogger.Warn("⚠️ [Worker] Failed to purge expired reset tokens", "error", err)
			}
			return
		}
		if removed > 0 {
			appLogger.Info("🧹 [Worker] Purged expired reset tokens", "count", removed)
		}
	})

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.ApiGrpcPort))
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC: %w", err)
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ApiServicePort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 11. Serve until a signal arrives or a server fails
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		appLogger.Info("🔌 [Go] gRPC health server running...", "port", cfg.ApiGrpcPort)
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		appLogger.Info("🌍 [Go] HTTP Server running...", "port", cfg.ApiServicePort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("🛑 [Go] Shutting down servers...")

		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := httpServer.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		return err
	})

	return g.Wait()
}

// healthcheck queries the local gRPC health service and returns an exit code
func healthcheck(cfg *config.Config) int {
	client, err := internalgrpc.NewClient(fmt.Sprintf("127.0.0.1:%s", cfg.ApiGrpcPort))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Check(ctx, internalgrpc.ServiceName); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
