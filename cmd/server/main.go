package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"doc-chat/cmd/internal/logger"
	"doc-chat/cmd/server/quota"
	"doc-chat/cmd/server/router"
	"doc-chat/cmd/server/services"
	"doc-chat/config"
	"doc-chat/db"
	"doc-chat/repositories"
)

func main() {
	config.InitApp()
	cfg := config.GetConfig()
	logger.Init(cfg.Logging.Level)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := run(context.Background(), cfg.Server, sigChan); err != nil {
		logger.Log.Errorf("%v", err)
		os.Exit(1)
	}
}

// stores 는 선택된 세션 저장소와 (mongo 일 때만) AI 로그 저장소를 묶는다.
type stores struct {
	sessions repositories.SessionRepository
	aiLogs   services.AILogWriter
	close    func()
}

func openStores(ctx context.Context, cfg config.ServerConfig) (stores, error) {
	switch cfg.SessionStore {
	case "mongo":
		if err := db.Init(ctx, cfg); err != nil {
			return stores{}, fmt.Errorf("failed to initialize MongoDB: %w", err)
		}
		logger.InfoWithFields("MongoDB connected and indexes ensured", logger.Fields{"database": db.Database().Name()})
		return stores{
			sessions: repositories.NewMongoSessionRepository(db.Database()),
			aiLogs:   repositories.NewAILogRepository(db.Database()),
			close: func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := db.Disconnect(ctx); err != nil {
					logger.Log.Warnf("mongo disconnect error: %v", err)
				}
			},
		}, nil
	case "", "memory":
		return stores{
			sessions: repositories.NewMemorySessionRepository(),
			close:    func() {},
		}, nil
	default:
		return stores{}, fmt.Errorf("unknown session_store: %s", cfg.SessionStore)
	}
}

// run 은 stop 에 신호가 오거나 서버가 실패할 때까지 블록한다.
// 반환 전에 열린 저장소는 항상 닫힌다.
func run(ctx context.Context, cfg config.ServerConfig, stop <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	model, err := services.NewChatModel(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to create chat model: %w", err)
	}

	quotaLimiter := quota.NewChatQuotaLimiterFromConfig(cfg)
	sessionSvc := services.NewSessionService(st.sessions, model, quotaLimiter, st.aiLogs)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router.Handler(router.New(sessionSvc, cfg)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.InfoWithFields("starting doc-chat server", logger.Fields{
			"addr":          cfg.Addr,
			"session_store": cfg.SessionStore,
			"llm_provider":  model.Provider(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-stop:
		logger.Log.Info("received shutdown signal, shutting down server...")
	case serveErr = <-errCh:
		serveErr = fmt.Errorf("server error: %w", serveErr)
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorf("server shutdown error: %v", err)
	}

	logger.Log.Info("server stopped")
	return serveErr
}
