package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"blueprint/api/internal/app"
	"blueprint/api/internal/config"
	"blueprint/api/internal/export"
	"blueprint/api/internal/realtime"
	"blueprint/api/internal/schema"
	"blueprint/api/internal/search"
	"blueprint/api/internal/session"
	"blueprint/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	snapshots, ping, closeStore, err := openSnapshotStore(ctx, cfg)
	if err != nil {
		log.Fatalf("snapshot store setup failed: %v", err)
	}
	defer closeStore()

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewMemory())

	registry := session.NewRegistry(cfg.UndoDepth)
	hub := realtime.NewHub(registry)

	service := app.NewService(app.ServiceOptions{
		Registry:  registry,
		Publisher: hub,
		Schemas:   schema.NewLoader(cfg.TemplatesDir),
		Snapshots: snapshots,
		Search:    searchService,
		Exporter:  export.NewService(),
		Ping:      ping,
	})

	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	defer stopCleanup()
	go cleanupLoop(cleanupCtx, service, cfg.IdleTimeout)

	httpServer := app.NewHTTPServer(service, realtime.NewHandler(hub), cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Blueprint API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// openSnapshotStore picks the persistence backend: Postgres when
// DATABASE_URL is set, then Redis, then in-memory for local runs.
func openSnapshotStore(ctx context.Context, cfg config.Config) (store.SnapshotStore, func(context.Context) error, func(), error) {
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		log.Printf("Using PostgreSQL for project snapshots")
		return store.NewPostgresStore(db), db.PingContext, func() { db.Close() }, nil
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := store.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
		log.Printf("Using Redis for project snapshots")
		return redisStore, redisStore.Ping, func() { redisStore.Close() }, nil
	}

	log.Printf("WARNING: no DATABASE_URL or REDIS_URL set, project snapshots are in-memory only")
	memStore := store.NewMemoryStore()
	return memStore, nil, func() {}, nil
}

// cleanupLoop evicts idle sessions once an hour.
func cleanupLoop(ctx context.Context, service *app.Service, maxIdle time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			service.Cleanup(maxIdle)
		}
	}
}
