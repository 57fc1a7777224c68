package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/wallet-gnn/internal/api"
	"github.com/rawblock/wallet-gnn/internal/batch"
	"github.com/rawblock/wallet-gnn/internal/config"
	"github.com/rawblock/wallet-gnn/internal/graph"
	"github.com/rawblock/wallet-gnn/internal/scoring"
)

func main() {
	log.Println("Starting Wallet GNN Risk Engine...")

	// ─── Environment ────────────────────────────────────────────────────
	// All settings come from environment variables (or a local .env).
	// DATABASE_URL or DATA_DIR must be set.
	// ────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	txStore, dbConn, err := cfg.OpenStore()
	if err != nil {
		log.Fatalf("FATAL: no transaction store available: %v", err)
	}
	if dbConn != nil {
		defer dbConn.Close()
	}

	builder := graph.NewBuilder(txStore, cfg.BuilderOptions())

	handle := scoring.NewModelHandle(scoring.FileLoader(cfg.ModelPath, cfg.Device))
	service := scoring.NewService(builder, handle)

	// Setup WebSocket Hub
	wsHub := api.NewHub()
	go wsHub.Run()

	routerCfg := api.Config{
		Service:        service,
		Hub:            wsHub,
		AuthToken:      cfg.APIAuthToken,
		AllowedOrigins: cfg.AllowedOrigins,
		ReleaseMode:    cfg.IsProduction(),
	}

	// Batch scorer with real-time WebSocket alert broadcasting
	var sink batch.ResultSink
	if dbConn != nil {
		sink = dbConn
		routerCfg.Results = dbConn
		routerCfg.Labels = dbConn
		routerCfg.Health = dbConn
	}
	scorer := batch.NewScorer(service, sink, api.BroadcastRiskAlert(wsHub), cfg.BatchChunkSize)
	routerCfg.Batch = scorer

	limiter := api.NewRateLimiter(cfg.RateLimitPerMin, cfg.RateLimitBurst)
	defer limiter.Close()
	routerCfg.Limiter = limiter

	r := api.SetupRouter(routerCfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Engine running on :%s (model %s on %s)", cfg.Port, cfg.ModelPath, cfg.Device)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: graceful shutdown failed: %v", err)
	}
	scorer.Stop()
}
