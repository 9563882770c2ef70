// Package main is the entry point for the engagement worker.
//
// The worker owns the background half of the engagement core:
//   - scanning quiet streaks and scheduling break-risk reminders
//   - breaking streaks that outlived their grace window
//   - opening and expiring recovery windows
//   - keeping the profile cache and streak leaderboards coherent
//
// The foreground half (action reporting, profile and risk queries) is a
// library consumed by whatever API surface the product embeds it in.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/finpulse/engagement-core/config"
	"github.com/finpulse/engagement-core/internal/application/command"
	"github.com/finpulse/engagement-core/internal/application/eventhandler"
	"github.com/finpulse/engagement-core/internal/domain/notification"
	"github.com/finpulse/engagement-core/internal/domain/shared"
	"github.com/finpulse/engagement-core/internal/domain/streak"
	"github.com/finpulse/engagement-core/internal/infrastructure/messaging"
	"github.com/finpulse/engagement-core/internal/infrastructure/persistence/postgres"
	"github.com/finpulse/engagement-core/internal/infrastructure/persistence/redis"
	"github.com/finpulse/engagement-core/internal/infrastructure/scheduler"
	"github.com/finpulse/engagement-core/internal/infrastructure/scheduler/jobs"
	"github.com/finpulse/engagement-core/internal/infrastructure/service"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting engagement worker",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required for the worker")
	}

	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Redis.Disabled {
		return errors.New("the worker requires Redis for reminder cooldowns and leaderboards")
	}

	log.Info("connecting to Redis...")
	redisCache, err := redis.NewCache(redisConfigFrom(cfg))
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer redisCache.Close()

	profileCache := redis.NewProfileCache(redisCache)
	reminderTracker := redis.NewReminderTracker(redisCache)
	leaderboard := redis.NewStreakLeaderboard(redisCache)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	localBusConfig := messaging.DefaultInMemoryEventBusConfig()
	localBusConfig.Logger = log
	localBusConfig.AsyncMode = cfg.EventBus.Async
	localBusConfig.WorkerPoolSize = cfg.EventBus.WorkerPoolSize
	localBusConfig.HandlerTimeout = cfg.EventBus.HandlerTimeout

	var eventBus shared.EventBus
	switch cfg.EventBus.Mode {
	case "redis":
		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         redisCache.Client(),
			ChannelName:    cfg.EventBus.Channel,
			LocalBusConfig: localBusConfig,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("failed to create redis event bus: %w", err)
		}
		eventBus = redisBus
	default:
		eventBus = messaging.NewInMemoryEventBus(localBusConfig)
	}
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 6. REPOSITORIES AND DOMAIN SERVICES
	// ─────────────────────────────────────────────────────────────────────────
	streakRepo := postgres.NewStreakRepository(dbConn)
	recoveryRepo := postgres.NewRecoveryRepository(dbConn)
	profileRepo := postgres.NewProfileRepository(dbConn)
	achievementRepo := postgres.NewAchievementRepository(dbConn)
	historyRepo := postgres.NewHistoryRepository(dbConn)

	assessor := streak.NewAssessor(streak.AssessorConfig{
		ReminderCooldown: cfg.Engagement.ReminderCooldown,
		Policies:         streak.DefaultPolicyTable(),
	})

	// Reminder and celebration delivery is a transport concern; the worker
	// ships with the no-op scheduler until a push channel is plugged in.
	// The circuit breaker guard stays in place so swapping in a real
	// delivery gateway does not change the scan job's failure behaviour.
	notifier := notification.Scheduler(service.NewGuardedScheduler(notification.NewNoopScheduler(), log))

	// ─────────────────────────────────────────────────────────────────────────
	// 7. COMMAND HANDLERS AND EVENT HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	initiateRecovery := command.NewInitiateStreakRecoveryHandler(
		streakRepo,
		recoveryRepo,
		eventBus,
		cfg.Engagement.RecoveryRequiredActions,
		cfg.Engagement.RecoveryWindow,
	)

	handlers := []shared.EventHandler{
		eventhandler.NewOnPointsAwardedHandler(profileCache, log),
		eventhandler.NewOnMilestoneReachedHandler(streakRepo, notifier, log),
	}
	if cfg.Features.IsEnabled(config.FeatureStreakRecovery, nil) {
		handlers = append(handlers, eventhandler.NewOnStreakBrokenHandler(initiateRecovery, log))
	}
	for _, h := range handlers {
		if err := eventBus.Subscribe(h); err != nil {
			return fmt.Errorf("failed to subscribe event handler: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. METRICS
	// ─────────────────────────────────────────────────────────────────────────
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	jobMetrics := jobs.NewMetrics(registry)

	deleteUserData := command.NewDeleteUserDataHandler(
		profileRepo, historyRepo, achievementRepo,
		streakRepo, recoveryRepo, leaderboard, profileCache, eventBus,
	)

	var metricsSrv *http.Server
	if cfg.Observability.MetricsEnabled {
		metricsSrv = startOpsServer(cfg, registry, dbConn, deleteUserData, log)
		defer shutdownOpsServer(metricsSrv, cfg.App.ShutdownTimeout, log)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(scheduler.Config{
		Logger:   log,
		Timezone: cfg.App.Location,
	})

	if cfg.Features.IsEnabled(config.FeatureStreakReminders, nil) {
		scanJob := jobs.NewScanStreakRisksJob(
			streakRepo,
			assessor,
			reminderTracker,
			notifier,
			eventBus,
			log,
			jobMetrics,
			jobs.ScanStreakRisksConfig{
				BatchSize:          cfg.Scheduler.RiskScanBatchSize,
				ReminderCooldown:   cfg.Engagement.ReminderCooldown,
				RemindersPerSecond: cfg.Engagement.RemindersPerSecond,
				Timeout:            cfg.Scheduler.JobTimeout,
			},
		)
		if err := sched.Register(scanJob, scheduler.NewIntervalSchedule(cfg.Scheduler.RiskScanInterval)); err != nil {
			return fmt.Errorf("failed to register risk scan job: %w", err)
		}
	}

	expireJob := jobs.NewExpireRecoveriesJob(
		recoveryRepo,
		eventBus,
		log,
		jobMetrics,
		jobs.ExpireRecoveriesConfig{
			BatchSize: cfg.Scheduler.RecoveryExpiryBatchSize,
			Timeout:   cfg.Scheduler.JobTimeout,
		},
	)
	if err := sched.Register(expireJob, scheduler.NewIntervalSchedule(cfg.Scheduler.RecoveryExpiryInterval)); err != nil {
		return fmt.Errorf("failed to register recovery expiry job: %w", err)
	}

	if cfg.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			log.Info("stopping scheduler...")
			_ = sched.Stop()
		}()
	} else {
		log.Warn("scheduler is disabled, worker will only serve metrics")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("engagement worker is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		log.Info("context cancelled")
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger configures structured logging per the observability config.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Observability.LogLevel),
	}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// redisConfigFrom maps the application config onto the Redis client config.
func redisConfigFrom(cfg *config.Config) redis.Config {
	rc := redis.DefaultConfig()
	rc.Host = cfg.Redis.Host
	rc.Port = cfg.Redis.Port
	rc.Password = cfg.Redis.Password
	rc.DB = cfg.Redis.DB
	rc.PoolSize = cfg.Redis.PoolSize
	rc.MinIdleConns = cfg.Redis.MinIdleConns
	rc.DialTimeout = cfg.Redis.DialTimeout
	rc.ReadTimeout = cfg.Redis.ReadTimeout
	rc.WriteTimeout = cfg.Redis.WriteTimeout
	return rc
}

// startOpsServer serves Prometheus metrics, a health endpoint and the
// operational user-data purge endpoint (GDPR/PIPEDA erasure requests).
func startOpsServer(cfg *config.Config, registry *prometheus.Registry, dbConn *postgres.Connection, deleteUserData *command.DeleteUserDataHandler, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		health, err := dbConn.Health(r.Context())
		if err != nil || !health.Healthy {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/admin/purge", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		userID := r.URL.Query().Get("user_id")
		result, err := deleteUserData.Handle(r.Context(), command.DeleteUserDataCommand{UserID: userID})
		if err != nil {
			if errors.Is(err, shared.ErrInvalidID) {
				http.Error(w, "invalid user_id", http.StatusBadRequest)
				return
			}
			log.Error("user data purge failed", "user_id", userID, "error", err)
			http.Error(w, "purge failed", http.StatusInternalServerError)
			return
		}
		log.Info("user data purged", "user_id", result.UserID)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("purged"))
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Observability.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("metrics server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "error", err)
		}
	}()

	return srv
}

func shutdownOpsServer(srv *http.Server, timeout time.Duration, log *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("metrics server shutdown failed", "error", err)
	}
}
