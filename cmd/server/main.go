package main

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"casebrief-backend/config"
	"casebrief-backend/handlers"
	"casebrief-backend/llm"
	"casebrief-backend/observability"
	"casebrief-backend/repository"
	"casebrief-backend/service"
	"casebrief-backend/storage"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.OTLPEndpoint)
	if err != nil {
		log.Printf("Warning: Failed to initialize tracing: %v", err)
		shutdownTracer = func(context.Context) {}
	}
	defer shutdownTracer(context.Background())

	// Initialize store
	store, err := repository.Open(ctx, cfg.StoreType, cfg.DatabaseURL, cfg.BadgerPath)
	if err != nil {
		log.Fatalf("Failed to initialize %s store: %v", cfg.StoreType, err)
	}
	defer store.Close()
	log.Printf("Store initialized (%s)", cfg.StoreType)

	// Initialize storage
	fileStorage, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	log.Println("Storage initialized")

	// Initialize completion client
	client, err := llm.New(ctx, cfg.LLM())
	if err != nil {
		log.Fatalf("Failed to initialize %s client: %v", cfg.LLMBackend, err)
	}
	if closer, ok := client.(io.Closer); ok {
		defer closer.Close()
	}
	log.Printf("Completion client initialized (%s)", cfg.LLMBackend)

	// Initialize services
	p := cfg.Pipeline
	settings := service.CompletionSettings{
		Temperature:       p.Temperature,
		BriefMaxTokens:    p.BriefMaxTokens,
		DetailedMaxTokens: p.DetailedMaxTokens,
		VerifyMaxTokens:   p.VerifyMaxTokens,
		Timeout:           p.CompletionTimeout,
	}

	briefService := service.NewBriefService(
		service.BriefWithCaseStore(store),
		service.BriefWithGenerator(service.NewBriefGenerator(client, settings)),
		service.BriefWithVerifier(service.NewBriefVerifier(client, settings)),
		service.BriefWithMaxAttempts(p.MaxAttempts),
		service.BriefWithWriteTimeout(p.WriteTimeout),
		service.BriefWithCorrections(p.ApplyCorrections),
	)

	caseService := service.NewCaseService(
		service.WithCaseStore(store),
		service.WithFavoriteStore(store),
	)

	jobService := service.NewResolutionJobService(
		service.JobsWithJobStore(store),
		service.JobsWithCaseStore(store),
		service.JobsWithBriefService(briefService),
	)

	if p.SweepSchedule != "" {
		sweeper := service.NewSweeper(
			service.SweepWithCaseStore(store),
			service.SweepWithBriefService(briefService),
			service.SweepWithBatch(p.SweepBatch),
		)
		scheduler, err := sweeper.Schedule(ctx, p.SweepSchedule)
		if err != nil {
			log.Fatalf("Failed to schedule sweep: %v", err)
		}
		defer func() { <-scheduler.Stop().Done() }()
		log.Printf("Unverified brief sweep scheduled (%s)", p.SweepSchedule)
	}

	// Setup Gin router
	r := gin.Default()
	r.Use(otelgin.Middleware(observability.ServiceName))

	handlers.RegisterRoutes(r, handlers.Handlers{
		Cases:     handlers.NewCaseHandler(caseService),
		Briefs:    handlers.NewBriefHandler(briefService, jobService),
		Favorites: handlers.NewFavoriteHandler(caseService),
		Files:     handlers.NewFileHandler(store, caseService, fileStorage),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: Server shutdown: %v", err)
	}
	jobService.Wait()
}
