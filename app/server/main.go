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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/clipscribe/clipscribe/internal/api/handlers"
	"github.com/clipscribe/clipscribe/internal/api/middleware"
	"github.com/clipscribe/clipscribe/internal/api/routes"
	"github.com/clipscribe/clipscribe/internal/config"
	"github.com/clipscribe/clipscribe/internal/logger"
	"github.com/clipscribe/clipscribe/internal/queue"
	"github.com/clipscribe/clipscribe/internal/services"
	"github.com/clipscribe/clipscribe/internal/store"
	"github.com/clipscribe/clipscribe/internal/stt"
	"github.com/clipscribe/clipscribe/internal/workers"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()
	cfg := config.Load()

	st, err := store.New(cfg.UploadDir, cfg.TranscriptDir)
	if err != nil {
		log.WithError(err).Fatal("storage init failed")
	}

	locks := store.NewLockManager(st.LockDir())
	if err := locks.ClearAll(); err != nil {
		log.WithError(err).Fatal("startup lock clear failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := buildProvider(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("transcriber init failed")
	}
	defer provider.Close()

	q := queue.New()
	worker := workers.NewPipelineWorker(st, locks, q, provider, log, workers.Options{
		SessionGap:   cfg.SessionGap,
		PopWait:      cfg.QueuePopWait,
		StaleLockAge: cfg.StaleLockAge,
	})

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(ctx)
	}()

	publisher := services.NewPublisher(st, locks, q, log)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	r.MaxMultipartMemory = cfg.MaxUploadBytes

	routes.RegisterRoutes(r, routes.Deps{
		Upload: handlers.NewUploadHandler(publisher),
		Status: handlers.NewStatusHandler(worker, st),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: r,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server failed")
		}
	}()
	log.WithField("port", cfg.Port).Info("clipscribe listening")

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}

	// The worker finishes (or abandons) its current clip, then locks are
	// cleared so a clean exit never strands a claim.
	<-workerDone
	if err := locks.ClearAll(); err != nil {
		log.WithError(err).Warn("shutdown lock clear failed")
	}
	log.Info("shutdown complete")
}

func buildProvider(ctx context.Context, cfg config.Config) (stt.Provider, error) {
	switch cfg.STTProvider {
	case "google":
		return stt.NewGoogleSpeech(ctx, cfg.STTLanguage)
	case "openai", "":
		return stt.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.STTModel, cfg.STTLanguage), nil
	default:
		return nil, fmt.Errorf("unknown STT_PROVIDER %q", cfg.STTProvider)
	}
}
