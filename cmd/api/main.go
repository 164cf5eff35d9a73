package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"flyer-agent/internal/app"
	"flyer-agent/internal/config"
	apihttp "flyer-agent/internal/http"
	"flyer-agent/internal/service"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	repo, closeStore, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer closeStore()

	backend, err := app.NewBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("llm backend", zap.Error(err))
	}

	coord := app.NewCoordination(ctx, cfg, logger)
	defer coord.Close()

	turnSvc, err := app.NewTurnService(cfg, repo, backend, coord.Locker, logger)
	if err != nil {
		logger.Fatal("turn service", zap.Error(err))
	}
	historySvc := service.NewHistoryService(repo)
	sessionSvc := service.NewSessionService(repo, logger)
	verifier := app.NewIdentityVerifier(cfg, logger)

	chatHandler := apihttp.NewChatHandler(logger, turnSvc, historySvc, sessionSvc, coord.Limiter, repo)
	router := apihttp.NewRouter(logger, chatHandler, verifier, cfg.CORSOrigins)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server",
			zap.String("port", cfg.HTTPPort),
			zap.String("store", cfg.StoreDriver),
			zap.String("llm_provider", cfg.LLMProvider),
			zap.String("llm_model", cfg.LLMModel),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Los turnos en curso tienen hasta LLM_TIMEOUT para terminar y persistir.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.LLMTimeout+10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
