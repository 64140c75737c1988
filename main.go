package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/config"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/db"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/gelf"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/handler"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/metrics"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/repository"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/repository/memory"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/router"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/service"
	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// GELF UDP logging
	if cfg.GelfAddr != "" {
		gelfWriter, err := gelf.New(cfg.GelfAddr, cfg.ServiceName)
		if err != nil {
			log.Printf("Warning: GELF init failed: %v", err)
		} else {
			defer gelfWriter.Close()
			log.SetOutput(io.MultiWriter(os.Stderr, gelfWriter))
			log.Printf("GELF logging: enabled (%s)", cfg.GelfAddr)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(cfg.ServiceName)

	var (
		subs   service.SubmissionStore
		evals  service.EvaluationStore
		health *handler.HealthHandler
		admin  *handler.AdminHandler
	)
	switch cfg.DB.Driver {
	case config.DBDriverMemory:
		log.Printf("Warning: using in-memory store, data is lost on restart")
		subs = memory.NewSubmissionRepo()
		evals = memory.NewEvaluationRepo()
		health = handler.NewHealthHandler(nil)
	default:
		database, err := db.Connect(ctx, cfg.DB.URI, cfg.DB.Database, cfg.DB.ConnectTimeout)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			database.Close(closeCtx)
		}()

		subRepo := repository.NewSubmissionRepo(database)
		evalRepo := repository.NewEvaluationRepo(database)
		subs, evals = subRepo, evalRepo
		health = handler.NewHealthHandler(database)
		admin = handler.NewAdminHandler(map[string]handler.IndexLister{
			repository.SubmissionsCollection: subRepo,
			repository.EvaluationsCollection: evalRepo,
		})

		// Index builds can be slow on large collections; serve meanwhile.
		go func() {
			log.Printf("Background init: creating submission indexes...")
			start := time.Now()
			if err := subRepo.EnsureIndexes(ctx); err != nil {
				log.Printf("Warning: submission index creation failed: %v", err)
			} else {
				log.Printf("Background init: submission indexes ready (%s)", time.Since(start).Round(time.Millisecond))
			}
			log.Printf("Background init: creating evaluation indexes...")
			start = time.Now()
			if err := evalRepo.EnsureIndexes(ctx); err != nil {
				log.Printf("Warning: evaluation index creation failed: %v", err)
			} else {
				log.Printf("Background init: evaluation indexes ready (%s)", time.Since(start).Round(time.Millisecond))
			}
			log.Printf("Background init: all done")
		}()
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialise object storage: %v", err)
	}
	filesDir := ""
	if fs, ok := store.(*storage.FS); ok {
		filesDir = fs.Dir()
	}

	// Services
	subSvc := service.NewSubmissionService(subs, store, service.SubmissionOptionsFrom(cfg), m)
	evalSvc := service.NewEvaluationService(subs, evals, m)

	// Router
	r := router.New(router.Handlers{
		Submissions: handler.NewSubmissionHandler(subSvc, cfg.Upload.MaxBytes),
		Evaluations: handler.NewEvaluationHandler(evalSvc),
		Dashboard:   handler.NewDashboardHandler(evalSvc),
		Health:      health,
		Admin:       admin,
	}, router.Options{
		CORSOrigins: cfg.CORSOrigins,
		Metrics:     m,
		FilesDir:    filesDir,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("%s server starting on %s (%s)", cfg.ServiceName, cfg.HTTPAddr, cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutting down (timeout %s)", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: graceful shutdown failed: %v", err)
	}
	log.Printf("Server stopped")
}
