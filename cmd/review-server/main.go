package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"orgreview/internal/common/aws"
	"orgreview/internal/common/config"
	"orgreview/internal/common/database"
	"orgreview/internal/common/logger"
	"orgreview/internal/review"
	transport "orgreview/internal/transport/http"
)

// retryWithBackoff attempts to execute a function with exponential backoff.
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("starting review server",
		zap.String("environment", cfg.App.Environment),
		zap.String("listen", cfg.Server.ListenAddress),
	)

	ctx := context.Background()

	// --- Postgres with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return pg.Ping(pingCtx)
	}, 10, 2*time.Second, zapLog, "postgres connection")
	if err != nil {
		zapLog.Fatal("postgres unavailable", zap.Error(err))
	}
	defer pg.Close()

	// --- Redis (resolver cache, optional) ---
	var redisClient *database.RedisClient
	redisClient, err = database.NewRedis(cfg.Database.Redis)
	if err == nil {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if pingErr := redisClient.Ping(pingCtx); pingErr != nil {
			zapLog.Warn("redis unavailable, resolver cache disabled", zap.Error(pingErr))
			redisClient = nil
		}
		cancel()
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// --- SES email channel (optional) ---
	var email review.EmailSender
	if cfg.Notifications.Email.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.Email.Region)
		if err != nil {
			zapLog.Warn("ses init failed, email channel disabled", zap.Error(err))
		} else {
			email = sesClient
		}
	}

	db := pg.GetDB()
	resolver := review.NewOrganizationResolver(db, redisClient, log)
	store := review.NewSubmissionStore(db, log)
	applier := review.NewSectionApplier(log)
	collab := review.NewCollaborationCoordinator(db, log)
	dispatcher := review.NewNotificationDispatcher(db, email, cfg.Notifications.Email.FromEmail, log)
	machine := review.NewApprovalStateMachine(db, store, applier, collab, dispatcher,
		resolver, cfg.Notifications.CollaboratorNotice, log)
	bulk := review.NewBulkOperationRunner(machine, store, log)
	svc := review.NewService(resolver, store, machine, bulk, dispatcher,
		cfg.Notifications.CollaboratorNotice, log)

	apiServer := &http.Server{
		Addr:    cfg.Server.ListenAddress,
		Handler: transport.NewServer(svc, log).Router(),
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    cfg.Server.MetricsAddress,
		Handler: metricsMux,
	}

	go func() {
		zapLog.Info("metrics listening", zap.String("address", cfg.Server.MetricsAddress))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		zapLog.Info("api listening", zap.String("address", cfg.Server.ListenAddress))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("api server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	zapLog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)
}
