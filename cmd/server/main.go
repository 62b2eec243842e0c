package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	echoapi "github.com/helioslabs/userhub/api/echo"
	"github.com/helioslabs/userhub/config"
	"github.com/helioslabs/userhub/internal/billing"
	"github.com/helioslabs/userhub/internal/clerk"
	"github.com/helioslabs/userhub/internal/server"
	"github.com/helioslabs/userhub/internal/webhook"
	"github.com/helioslabs/userhub/log"
	"github.com/helioslabs/userhub/mongodb"
	"github.com/helioslabs/userhub/services"
	"github.com/helioslabs/userhub/tracing"
)

var (
	appLogger      log.Logger
	httpServer     *http.Server
	tracerProvider *sdktrace.TracerProvider
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		bootLogger := zerolog.New(os.Stdout).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logLevel, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
	}
	appLogger = log.NewZerologAdapter(logLevel, cfg.LogPretty)
	ctx := context.Background()
	appLogger.Info(ctx, "Starting userhub server...", map[string]interface{}{
		"http_port":     cfg.HTTPPort,
		"mongo_db_name": cfg.MongoDBName,
		"log_level":     logLevel.String(),
	})

	tp, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize TracerProvider", err, nil)
	}
	tracerProvider = tp

	stores, err := mongodb.NewStores(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize MongoDB stores", err, nil)
	}

	verifier, err := webhook.NewVerifier(cfg.ClerkWebhookSecret)
	if err != nil {
		appLogger.Fatal(ctx, "Invalid webhook signing secret", err, nil)
	}

	var clerkClient *clerk.Client
	if cfg.ClerkSecretKey != "" {
		clerkClient = clerk.NewClient(cfg.ClerkAPIBase, cfg.ClerkSecretKey,
			time.Duration(cfg.DirectoryCacheTTLSec)*time.Second)
	} else {
		appLogger.Warn(ctx, "CLERK_SECRET_KEY not set: metadata sync and directory merge disabled")
	}

	activitySink := services.NewActivitySink(stores.Activity)

	var metadata services.MetadataSyncer
	var directory services.DirectoryProvider
	if clerkClient != nil {
		metadata = clerkClient
		directory = clerkClient
	}

	reconciler := services.NewReconciler(stores.Users, activitySink, metadata)
	router := webhook.NewRouter(reconciler)
	userService := services.NewUserService(stores.Users, directory)

	var billingProc *billing.Processor
	if cfg.StripeWebhookSecret != "" {
		billingProc = billing.NewProcessor(cfg.StripeWebhookSecret, stores.Users, activitySink)
	} else {
		appLogger.Warn(ctx, "STRIPE_WEBHOOK_SECRET not set: billing webhooks disabled")
	}

	api := echoapi.NewAPI(verifier, router, billingProc, userService, mongodb.Ping)
	httpServer = server.NewHTTPServer(cfg, appLogger, api)

	go func() {
		appLogger.Info(ctx, "HTTP server listening", map[string]interface{}{"addr": httpServer.Addr})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal(ctx, "HTTP server failed", err, nil)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info(ctx, "Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "HTTP server shutdown failed", err, nil)
	}
	if clerkClient != nil {
		clerkClient.Close()
	}
	if err := stores.Close(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "MongoDB disconnect failed", err, nil)
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "TracerProvider shutdown failed", err, nil)
	}
	appLogger.Info(ctx, "Shutdown complete.")
}
