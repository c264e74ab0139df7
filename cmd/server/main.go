package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/smarttest/smarttest-backend/internal/config"
	"github.com/smarttest/smarttest-backend/internal/database"
	"github.com/smarttest/smarttest-backend/internal/handler"
	"github.com/smarttest/smarttest-backend/internal/logger"
	"github.com/smarttest/smarttest-backend/internal/middleware"
	"github.com/smarttest/smarttest-backend/internal/queue"
	"github.com/smarttest/smarttest-backend/internal/repository"
	"github.com/smarttest/smarttest-backend/internal/router"
	"github.com/smarttest/smarttest-backend/internal/service"
	"github.com/smarttest/smarttest-backend/internal/validator"
	"github.com/smarttest/smarttest-backend/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Int("question_limit", cfg.Session.QuestionLimit).
		Msg("Starting SmartTest Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	txManager := repository.NewTxManager(pool)
	progressRepo := repository.NewProgressRepository(pool)
	retakeRepo := repository.NewRetakeRepository(pool)
	resultRepo := repository.NewResultRepository(pool)
	durationRepo := repository.NewDurationRepository(pool)
	studentRepo := repository.NewStudentRepository(pool)
	adminRepo := repository.NewAdminRepository(pool)
	subjectRepo := repository.NewSubjectRepository(pool)
	leaderboardRepo := repository.NewLeaderboardRepository(pool)
	questionBank := repository.NewCachedQuestionBank(
		repository.NewQuestionBankRepository(pool), rdb, cfg.QuestionCacheTTL, log,
	)
	redisQueue := queue.NewRedisQueue(rdb)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb, studentRepo, adminRepo)
	sessionService := service.NewTestSessionService(
		txManager, questionBank, durationRepo, redisQueue, redisQueue, cfg.Session, log,
	)
	lobbyService := service.NewLobbyService(subjectRepo, progressRepo, retakeRepo)
	retakeService := service.NewRetakeService(txManager, retakeRepo, log)
	adminService := service.NewAdminService(durationRepo, resultRepo, leaderboardRepo)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:  handler.NewAuthHandler(authService, log),
		Test:  handler.NewTestHandler(sessionService, lobbyService, log),
		Admin: handler.NewAdminHandler(authService, retakeService, adminService, log),
		WS:    handler.NewWSHandler(sessionService, cfg.Session.TickInterval, log, cfg.AllowedOrigins),
		System: handler.NewSystemHandler(map[string]handler.Pinger{
			"postgres": pool.Ping,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}, log),
	}

	loginLimiter := middleware.NewRateLimiter(rdb, cfg.LoginRateLimit, time.Minute, config.CacheKey.LoginAttemptsKey, log)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, loginLimiter, handlers, cfg, log)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Run Server and Background Workers ────────────────────────────
	// Workers run on their own context, cancelled after the HTTP server stops.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	autosaveWorker := worker.NewAutosaveWorker(sessionService, rdb, service.IsPermanent, log)
	leaderboardWorker := worker.NewLeaderboardWorker(pool, rdb, log)

	var workers errgroup.Group
	workers.Go(func() error { autosaveWorker.Start(workerCtx); return nil })
	workers.Go(func() error { leaderboardWorker.Start(workerCtx); return nil })

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down gracefully...")
	case err := <-serverErr:
		log.Error().Err(err).Msg("Server error")
	}

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	_ = workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
