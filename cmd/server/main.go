// Package main is the entry point for the gridstudy server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gridstudy/internal/config"
	"gridstudy/internal/gateway"
	"gridstudy/internal/logger"
	"gridstudy/internal/observability"
	"gridstudy/internal/orchestrator"
	"gridstudy/internal/pending"
	"gridstudy/internal/server"
	"gridstudy/internal/store/postgres"
)

const gatewayTimeout = 30 * time.Second

func main() {
	// Parse flags
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	slogger := logger.New()

	// Setup Database
	ctx := context.Background()
	st, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer st.Close()

	// Run migrations if requested
	if *migrateFlag {
		log.Println("Running database migrations...")
		if err := postgres.Migrate(st.DB()); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations completed successfully")
	}

	// Tracing
	shutdownTracer, err := observability.InitTracing(ctx, "gridstudy-server", cfg.OTELEndpoint)
	if err != nil {
		log.Fatalf("Failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("Failed to shutdown tracer: %v", err)
		}
	}()

	// Metrics, including the running-computations gauge backed by the store.
	shutdownMetrics, err := observability.InitMetrics(st)
	if err != nil {
		log.Fatalf("Failed to init metrics: %v", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Printf("Failed to shutdown metrics: %v", err)
		}
	}()

	// Remote service gateways
	gw := gateway.Gateways{
		Case:         gateway.NewHTTPCaseGateway(cfg.CaseServerURL, gatewayTimeout),
		Conversion:   gateway.NewHTTPConversionGateway(cfg.ConversionServerURL, cfg.CreationTimeout),
		Modification: gateway.NewHTTPModificationGateway(cfg.ConversionServerURL, gatewayTimeout),
		LoadFlow:     gateway.NewHTTPLoadFlowGateway(cfg.LoadFlowServerURL, cfg.ComputationTimeout),
		Security:     gateway.NewHTTPSecurityAnalysisGateway(cfg.SecurityServerURL, cfg.ActionsServerURL, cfg.ComputationTimeout),
	}

	orcCfg := orchestrator.Config{
		CreationTimeout:                    cfg.CreationTimeout,
		ComputationTimeout:                 cfg.ComputationTimeout,
		RunningTTL:                         cfg.ComputationTTL,
		ReconcileInterval:                  cfg.ReconcileInterval,
		InvalidateSecurityAnalysisOnChange: cfg.InvalidateSecurityAnalysisOnChange,
	}
	orc := orchestrator.New(st, pending.New(st), gw, slogger, orcCfg)

	// Background reclamation of orphaned computation gates
	reconcilerCtx, stopReconciler := context.WithCancel(ctx)
	defer stopReconciler()
	reconciler := orchestrator.NewReconciler(st, orcCfg, slogger)
	go reconciler.Run(reconcilerCtx)

	// Start Server
	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	srv := server.New(addr, orc, server.Options{
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	go func() {
		log.Printf("gridstudy server starting on %s", addr)
		if err := srv.Run(ctx); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	stopReconciler()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// Let in-flight imports and computations finish persisting.
	orc.Wait()
	log.Println("Server exited properly")
}
