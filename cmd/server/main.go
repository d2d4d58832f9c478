package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aglago/g-clients-sub000/internal/api"
	"github.com/aglago/g-clients-sub000/internal/config"
	"github.com/aglago/g-clients-sub000/internal/core"
	"github.com/aglago/g-clients-sub000/internal/crypto"
	"github.com/aglago/g-clients-sub000/internal/db"
	"github.com/aglago/g-clients-sub000/internal/logger"
	"github.com/aglago/g-clients-sub000/internal/middleware"
	"github.com/aglago/g-clients-sub000/pkg/cache"
	"github.com/aglago/g-clients-sub000/pkg/mailer"
	"github.com/aglago/g-clients-sub000/pkg/messagequeue"
)

func main() {
	// --- 1. Load Application Configuration ---
	appConfig, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to load application configuration: %v", err)
	}

	// --- 2. Initialize Logger (Zap) ---
	zapLogger, err := logger.Init(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer zapLogger.Sync()
	zapLogger.Info("Application configuration loaded", zap.String("env", appConfig.AppEnv), zap.String("store", appConfig.StoreBackend))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- 3. Storage ---
	store, closeStore, err := openStore(rootCtx, appConfig, zapLogger)
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize store", zap.Error(err))
	}
	defer closeStore()

	// --- 4. Catalog cache ---
	var catalogCache cache.Cache = cache.NewMemory()
	if appConfig.RedisAddr != "" {
		redisCache, err := cache.NewRedisCache(rootCtx, cache.RedisConfig{
			Address:  appConfig.RedisAddr,
			Password: appConfig.RedisPassword,
			DB:       appConfig.RedisDB,
		}, zapLogger)
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to connect to Redis", zap.Error(err))
		}
		defer redisCache.Close()
		catalogCache = redisCache
	} else {
		zapLogger.Warn("REDIS_ADDR not set, using in-process catalog cache")
	}

	// --- 5. Notification queue ---
	var queue messagequeue.MessageQueue = messagequeue.NewLocal(256)
	if appConfig.AMQPURL != "" {
		rabbit, err := messagequeue.NewRabbitMQService(messagequeue.RabbitMQConfig{URL: appConfig.AMQPURL}, zapLogger)
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to connect to RabbitMQ", zap.Error(err))
		}
		queue = rabbit
	} else {
		zapLogger.Warn("AMQP_URL not set, using in-process notification queue")
	}
	defer queue.Close()

	// --- 6. Mail delivery ---
	var mail mailer.Mailer
	if appConfig.MailEnabled() {
		mail = mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     appConfig.SMTPHost,
			Port:     appConfig.SMTPPort,
			Username: appConfig.SMTPUsername,
			Password: appConfig.SMTPPassword,
			From:     appConfig.MailFrom,
		}, zapLogger)
	} else {
		zapLogger.Warn("SMTP_HOST not set, emails will only be logged")
		mail = mailer.NewLogMailer(zapLogger)
	}

	// --- 7. Services ---
	key, err := appConfig.PaymentDetailsKeyBytes()
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Invalid payment details key", zap.Error(err))
	}
	sealer, err := crypto.NewSealer(key)
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize payment details sealer", zap.Error(err))
	}
	if !sealer.Enabled() {
		zapLogger.Warn("PAYMENT_DETAILS_KEY not set, payment details are stored unencrypted")
	}

	tokens, err := core.NewTokenService(appConfig.JWTSecret, nil)
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize token service", zap.Error(err))
	}

	auditService := core.NewAuditService(store.Audit, zapLogger)
	notifier := core.NewNotificationService(store.Outbox, queue, appConfig.NotificationQueue, appConfig.ClientURL, zapLogger)
	enrollmentService := core.NewEnrollmentService(store.Enrollments, zapLogger)
	trackService := core.NewTrackService(store.Tracks, store.Courses, catalogCache, appConfig.CatalogCacheTTL, auditService, zapLogger)
	invoiceService := core.NewInvoiceService(store, enrollmentService, sealer, auditService, zapLogger)
	checkoutService := core.NewCheckoutService(core.CheckoutDeps{
		Store:       store,
		Tracks:      trackService,
		Enrollments: enrollmentService,
		Invoices:    invoiceService,
		Notifier:    notifier,
		Tokens:      tokens,
		Sealer:      sealer,
		Audit:       auditService,
	}, core.CheckoutConfig{AutoVerify: appConfig.CheckoutAutoVerify}, zapLogger)

	services := api.Services{
		Auth:        core.NewAuthService(store.Users, tokens, notifier, appConfig.AdminSignupCode, zapLogger),
		Users:       core.NewUserService(store.Users, store.Enrollments, auditService, zapLogger),
		Tracks:      trackService,
		Courses:     core.NewCourseService(store.Courses, store.Tracks, catalogCache, auditService),
		Enrollments: enrollmentService,
		Invoices:    invoiceService,
		Checkout:    checkoutService,
		Dashboard:   core.NewDashboardService(store),
		Tokens:      tokens,
	}
	zapLogger.Info("Core services initialized successfully.")

	// --- 8. Notification dispatcher ---
	dispatcher := core.NewDispatcher(store.Outbox, mail, queue, checkoutService, core.DispatcherConfig{
		QueueName:    appConfig.NotificationQueue,
		PollInterval: appConfig.OutboxPollInterval,
		MaxAttempts:  appConfig.OutboxMaxAttempts,
	}, zapLogger)
	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		if err := dispatcher.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("notification dispatcher stopped", zap.Error(err))
		}
	}()

	// --- 9. Setup Gin HTTP Engine ---
	if strings.ToLower(appConfig.GinMode) == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger(zapLogger))
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	router.Use(middleware.CORSMiddleware(appConfig.ClientURL))
	zapLogger.Info("CORS Middleware enabled", zap.String("clientURL", appConfig.ClientURL))

	api.SetupRoutes(router, services, zapLogger)

	// --- 10. Configure and Start HTTP Server ---
	serverAddr := fmt.Sprintf(":%s", appConfig.Port)
	httpServer := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zapLogger.Info("Starting HTTP server", zap.String("address", serverAddr), zap.String("ginMode", gin.Mode()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// --- 11. Graceful Shutdown Handling ---
	<-rootCtx.Done()
	stop()
	zapLogger.Info("Received shutdown signal")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), appConfig.ShutdownTimeout)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	select {
	case <-dispatcherDone:
	case <-shutdownCtx.Done():
		zapLogger.Warn("notification dispatcher did not stop before the shutdown timeout")
	}

	zapLogger.Info("Server exiting gracefully.")
}

// openStore returns the configured persistence backend and a function that releases it.
func openStore(ctx context.Context, appConfig *config.Config, zapLogger *zap.Logger) (*db.Store, func(), error) {
	if appConfig.StoreBackend == config.BackendMemory {
		zapLogger.Warn("using in-memory store, data is lost on restart")
		return db.NewMemoryStore(), func() {}, nil
	}

	initCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	client, err := db.InitFirestore(initCtx, appConfig, zapLogger)
	if err != nil {
		return nil, nil, err
	}
	zapLogger.Info("Firestore client initialized", zap.String("projectId", appConfig.FirebaseProjectID))
	return db.NewFirestoreStore(client), func() {
		if err := client.Close(); err != nil {
			zapLogger.Warn("failed to close Firestore client", zap.Error(err))
		}
	}, nil
}
