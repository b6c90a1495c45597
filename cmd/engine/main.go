package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"jobfeed-engine/internal/config"
	"jobfeed-engine/internal/dedup"
	"jobfeed-engine/internal/events"
	"jobfeed-engine/internal/httpapi"
	"jobfeed-engine/internal/orchestrator"
	"jobfeed-engine/internal/scheduler"
	"jobfeed-engine/internal/store"
)

func main() {
	dataDir := os.Getenv("JOBFEED_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatal(err)
	}

	// sqlite has one writer; one engine per data dir
	lock := flock.New(filepath.Join(dataDir, "engine.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		log.Fatalf("lock data dir: %v", err)
	}
	if !locked {
		log.Fatalf("another engine instance owns %s", dataDir)
	}
	defer func() { _ = lock.Unlock() }()

	defaultCfgPath := filepath.Join("config", "config.yml")
	userCfgPath, err := config.EnsureUserConfig(dataDir, defaultCfgPath)
	if err != nil {
		log.Fatalf("config bootstrap failed: %v", err)
	}

	cfg, err := config.Load(userCfgPath)
	if err != nil {
		log.Fatalf("config load failed (%s): %v", userCfgPath, err)
	}
	cfg, validation := config.NormalizeAndValidate(cfg)
	for _, warn := range validation.Warnings {
		log.Printf("[config] warning: %s", warn)
	}
	if !validation.OK() {
		for _, e := range validation.Errors {
			log.Printf("[config] error: %s", e)
		}
		log.Fatalf("config invalid (%s)", userCfgPath)
	}

	dbPath := filepath.Join(dataDir, "jobfeed.db")
	db, err := store.Open(dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := store.Migrate(db); err != nil {
		log.Fatal(err)
	}
	st := store.New(db)

	hub := events.NewHub()

	ded := dedup.New(st, dedup.Config{
		Threshold: cfg.Dedup.SimilarityThreshold,
		Window:    cfg.CandidateWindow(),
	})

	orch := orchestrator.New(orchestrator.Options{
		Sources:        buildSources(cfg),
		Dedup:          ded,
		Runs:           st,
		Hub:            hub,
		MaxConcurrency: cfg.Scheduler.MaxConcurrency,
		RunTimeout:     cfg.RunTimeout(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go scheduler.Every(ctx, cfg.Interval(), "ingest", func(ctx context.Context) error {
		_, err := orch.RunNow(ctx, nil)
		if errors.Is(err, orchestrator.ErrRunActive) {
			log.Printf("[ingest] scheduled trigger skipped: run already active")
			return nil
		}
		return err
	})

	mux := httpapi.NewMux(httpapi.Deps{Store: st, Hub: hub, Orch: orch})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.App.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatal(err)
	}

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	log.Printf("engine listening on http://%s (db=%s)", addr, dbPath)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
