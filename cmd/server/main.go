// Package main is the entry point for the ClassPulse backend server.
//
// The process serves two clients: the recognition process pushing detection
// batches over the ingestion API, and the dashboard frontend reading session
// state, roster data, and attendance reports.
//
// The architecture follows Clean Architecture and DDD:
// - Domain: session lifecycle and record invariants, no external dependencies
// - Application: use case orchestration (Commands/Queries/Event handlers)
// - Infrastructure: Postgres and Redis persistence, event bus
// - Interface: HTTP endpoints
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/classpulse/classpulse-backend/config"
	"github.com/classpulse/classpulse-backend/internal/application/command"
	"github.com/classpulse/classpulse-backend/internal/application/eventhandler"
	"github.com/classpulse/classpulse-backend/internal/application/query"
	"github.com/classpulse/classpulse-backend/internal/domain/monitoring"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/internal/infrastructure/messaging"
	"github.com/classpulse/classpulse-backend/internal/infrastructure/persistence/postgres"
	"github.com/classpulse/classpulse-backend/internal/infrastructure/persistence/redis"
	httpserver "github.com/classpulse/classpulse-backend/internal/interface/http"
	"github.com/classpulse/classpulse-backend/internal/interface/http/handlers"
	"github.com/classpulse/classpulse-backend/pkg/logger"
	"github.com/classpulse/classpulse-backend/pkg/retry"
	"github.com/classpulse/classpulse-backend/pkg/timeutil"
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

	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting ClassPulse backend",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.Bool("debug", cfg.App.Debug),
	)

	// Session dates and report boundaries follow the configured timezone.
	timeutil.SetLocation(cfg.App.Location)
	log.Info("using timezone", logger.String("timezone", cfg.App.Timezone))

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database")

	var dbConn *postgres.Connection
	err = retry.StartupRetrier().Do(ctx, func(ctx context.Context) error {
		var connErr error
		dbConn, connErr = postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
		if connErr != nil {
			return connErr
		}
		return dbConn.Ping(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection")
		dbConn.Close()
	}()
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. MIGRATIONS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("running database migrations")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	status, err := migrator.Status(ctx)
	if err != nil {
		log.Warn("failed to get migration status", logger.Err(err))
	} else {
		applied := 0
		for _, m := range status {
			if m.IsApplied {
				applied++
			}
		}
		log.Info("migrations completed",
			logger.Int("applied", applied),
			logger.Int("total", len(status)),
		)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var cache *redis.Cache
	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis")

		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		err = retry.CacheRetrier().Do(ctx, func(ctx context.Context) error {
			var cacheErr error
			cache, cacheErr = redis.NewCache(redisCfg)
			return cacheErr
		})
		if err != nil {
			// Presence tracking and dashboard caching degrade gracefully
			// without Redis; core ingestion and reporting do not need it.
			log.Warn("failed to connect to Redis, running without cache", logger.Err(err))
			cache = nil
		} else {
			defer cache.Close()
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. REPOSITORIES
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories")
	studentRepo := postgres.NewStudentRepository(dbConn)
	courseRepo := postgres.NewCourseRepository(dbConn)
	recordRepo := postgres.NewRecordRepository(dbConn)
	reportRepo := postgres.NewReportRepository(dbConn)

	var presenceTracker monitoring.PresenceTracker
	var presenceChecker query.PresenceChecker
	var statsCache query.StatsCache
	if cache != nil {
		tracker := redis.NewPresenceTracker(cache)
		presenceTracker = tracker
		presenceChecker = tracker
		statsCache = cache

		// Reads filter the presence set by score, so the sweep only
		// reclaims memory from long-gone members.
		go presenceJanitor(ctx, tracker, cfg.Monitor.PresenceTTL, log)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. EVENT BUS & DISPATCHER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus")

	localBusCfg := messaging.DefaultInMemoryEventBusConfig()
	localBusCfg.Logger = log

	var eventBus shared.EventBus
	if cache != nil {
		redisBus, busErr := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         messaging.NewCacheRedisClient(cache),
			LocalBusConfig: localBusCfg,
			Logger:         log,
		})
		if busErr != nil {
			return fmt.Errorf("failed to create event bus: %w", busErr)
		}
		eventBus = redisBus
	} else {
		eventBus = messaging.NewInMemoryEventBus(localBusCfg)
	}
	defer func() {
		log.Info("closing event bus")
		_ = eventBus.Close()
	}()

	dispatcherCfg := messaging.DefaultDispatcherConfig(eventBus)
	dispatcherCfg.Logger = log
	dispatcher := messaging.NewDispatcher(dispatcherCfg)
	dispatcher.Use(messaging.RecoveryMiddleware(log))
	dispatcher.Use(messaging.LoggingMiddleware(log))
	defer func() { _ = dispatcher.Stop() }()

	if cache != nil {
		lifecycle := eventhandler.NewSessionLifecycleHandler(cache, log)
		roster := eventhandler.NewRosterChangedHandler(cache, log)
		ingestion := eventhandler.NewIngestionActivityHandler(cache, log)

		registrations := []struct {
			event   shared.EventType
			name    string
			handler shared.EventHandler
		}{
			{shared.EventSessionStarted, "session-lifecycle", lifecycle.OnSessionStarted},
			{shared.EventSessionStopped, "session-lifecycle", lifecycle.OnSessionStopped},
			{shared.EventSessionExpired, "session-lifecycle", lifecycle.OnSessionExpired},
			{shared.EventStudentEnrolled, "roster-changed", roster.Handle},
			{shared.EventStudentRemoved, "roster-changed", roster.Handle},
			{shared.EventFrameProcessed, "ingestion-activity", ingestion.Handle},
			{shared.EventEngagementRecorded, "ingestion-activity", ingestion.Handle},
		}
		for _, reg := range registrations {
			if err := dispatcher.Register(reg.event, reg.name, reg.handler); err != nil {
				return fmt.Errorf("failed to register event handler %s: %w", reg.name, err)
			}
		}
	}

	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("failed to start event dispatcher: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. APPLICATION LAYER (Commands & Queries)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing application layer")

	sessions := monitoring.NewManager(courseRepo)
	sessions.SetExpiryHook(func(snap monitoring.Snapshot) {
		if snap.CourseSessionID == 0 {
			return
		}
		_ = eventBus.Publish(shared.SessionExpiredEvent{
			BaseEvent:       shared.NewBaseEvent(shared.EventSessionExpired, strconv.FormatInt(snap.CourseSessionID, 10)),
			CourseID:        snap.CourseID,
			CourseSessionID: snap.CourseSessionID,
		})
	})

	startSession := command.NewStartSessionHandler(sessions, eventBus, log,
		command.StartSessionHandlerConfig{
			DefaultDurationMinutes: cfg.Monitor.DefaultSessionMinutes,
		})
	stopSession := command.NewStopSessionHandler(sessions, eventBus, log)
	processFrame := command.NewProcessFrameHandler(sessions, recordRepo, presenceTracker, eventBus, log,
		command.ProcessFrameHandlerConfig{
			StoreTimeout: cfg.Monitor.StoreTimeout,
			PresenceTTL:  cfg.Monitor.PresenceTTL,
		})
	recordEngagement := command.NewRecordEngagementHandler(sessions, recordRepo, eventBus, log,
		command.RecordEngagementHandlerConfig{
			StoreTimeout: cfg.Monitor.StoreTimeout,
		})
	recordAttendance := command.NewRecordAttendanceHandler(recordRepo, log,
		command.RecordAttendanceHandlerConfig{
			StoreTimeout: cfg.Monitor.StoreTimeout,
		})
	enrollStudent := command.NewEnrollStudentHandler(studentRepo, eventBus, log)
	removeStudent := command.NewRemoveStudentHandler(studentRepo, eventBus, log)
	createCourse := command.NewCreateCourseHandler(courseRepo, log)

	sessionStatus := query.NewSessionStatusHandler(sessions)
	engagementHistory := query.NewEngagementHistoryHandler(recordRepo)
	attendanceLog := query.NewAttendanceHandler(recordRepo)
	studentReport := query.NewStudentReportHandler(studentRepo, recordRepo, reportRepo, presenceChecker)
	rosterQuery := query.NewRosterHandler(studentRepo)
	courseCatalog := query.NewCourseCatalogHandler(courseRepo)
	dailyReport := query.NewDailyReportHandler(reportRepo)
	weeklyReport := query.NewWeeklyReportHandler(reportRepo)
	overallReport := query.NewOverallReportHandler(reportRepo)
	courseReport := query.NewCourseReportHandler(courseRepo, reportRepo)
	occurrenceReport := query.NewOccurrenceReportHandler(courseRepo, reportRepo)
	dashboard := query.NewDashboardHandler(reportRepo, presenceTracker, sessions, statsCache, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 9. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing HTTP server")

	healthChecker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	healthChecker.AddCheck("database", handlers.NewDatabaseCheck(dbConn))
	if cache != nil {
		healthChecker.AddCheck("cache", handlers.NewCacheCheck(cache))
	}

	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.MaxBodyBytes = cfg.HTTP.MaxBodyBytes
	httpConfig.EnableCORS = cfg.HTTP.EnableCORS
	httpConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	httpConfig.APIKeyHeader = cfg.HTTP.APIKeyHeader
	httpConfig.APIKeys = cfg.HTTP.APIKeys

	httpServer := httpserver.NewServer(httpConfig, httpserver.Dependencies{
		StartSession:     startSession,
		StopSession:      stopSession,
		ProcessFrame:     processFrame,
		RecordEngagement: recordEngagement,
		RecordAttendance: recordAttendance,
		EnrollStudent:    enrollStudent,
		RemoveStudent:    removeStudent,
		CreateCourse:     createCourse,

		SessionStatus:     sessionStatus,
		EngagementHistory: engagementHistory,
		Attendance:        attendanceLog,
		StudentReport:     studentReport,
		Roster:            rosterQuery,
		CourseCatalog:     courseCatalog,
		DailyReport:       dailyReport,
		WeeklyReport:      weeklyReport,
		OverallReport:     overallReport,
		CourseReport:      courseReport,
		OccurrenceReport:  occurrenceReport,
		Dashboard:         dashboard,

		Logger:        log,
		HealthChecker: healthChecker,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 10. START & GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	errCh := make(chan error, 1)

	go func() {
		log.Info("starting HTTP server", logger.String("address", httpServer.Address()))
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	log.Info("ClassPulse backend is running",
		logger.String("http_address", httpServer.Address()),
		logger.Bool("redis_enabled", cache != nil),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("service error", logger.Err(err))
		return err
	}

	log.Info("starting graceful shutdown", logger.String("timeout", cfg.App.ShutdownTimeout.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", logger.Err(err))
		return err
	}

	// Event bus, dispatcher, cache, and database close via defers.
	log.Info("shutdown completed")
	return nil
}

// presenceJanitor periodically trims expired members out of the live
// presence set until the context is cancelled.
func presenceJanitor(ctx context.Context, tracker *redis.PresenceTracker, interval time.Duration, log *logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := tracker.CleanupExpired(ctx)
			if err != nil {
				log.Warn("presence cleanup failed", logger.Err(err))
				continue
			}
			if removed > 0 {
				log.Debug("presence set trimmed", logger.Int("removed", int(removed)))
			}
		}
	}
}

// setupLogger builds the process logger from configuration.
func setupLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()

	switch cfg.Observability.LogLevel {
	case "debug":
		opts.Level = logger.LevelDebug
	case "warn":
		opts.Level = logger.LevelWarn
	case "error":
		opts.Level = logger.LevelError
	default:
		opts.Level = logger.LevelInfo
	}
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}

	return logger.New(opts)
}
