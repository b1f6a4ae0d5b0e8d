package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentoracle/platform/pkg/agents"
	"github.com/agentoracle/platform/pkg/common/config"
	"github.com/agentoracle/platform/pkg/common/database"
	"github.com/agentoracle/platform/pkg/common/httpclient"
	"github.com/agentoracle/platform/pkg/common/kafka"
	"github.com/agentoracle/platform/pkg/common/logger"
	"github.com/agentoracle/platform/pkg/common/middleware"
	"github.com/agentoracle/platform/pkg/observability/metrics"
	"github.com/agentoracle/platform/pkg/oracle"
	"github.com/gorilla/mux"
)

func main() {
	logger.Init()
	cfg := config.Load()

	var store oracle.Store
	if cfg.StoreBackend == "memory" {
		store = oracle.NewMemoryStore()
		logger.Log.Warn("using in-memory request store, data will not survive restarts")
	} else {
		db, err := database.GetPostgres()
		if err != nil {
			logger.Log.WithError(err).Fatal("failed to connect to postgres")
		}
		repo := oracle.NewRepository(db)
		if err := repo.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Fatal("failed to migrate oracle tables")
		}
		store = repo
	}

	fleet, err := agents.LoadFleet(cfg.AgentsConfigPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load agent fleet config")
	}

	client := httpclient.New(cfg.SourceTimeout + time.Second)
	identities, err := agents.BuildIdentities(fleet, client, cfg.FetchCacheTTL, cfg.SourceTimeout)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to build agent fleet")
	}

	coordinator := oracle.NewCoordinator(store, identities)
	if err := coordinator.SeedAgents(context.Background()); err != nil {
		logger.Log.WithError(err).Fatal("failed to seed agent registry")
	}

	var producer, dlqProducer oracle.Publisher
	if cfg.DispatchMode == oracle.DispatchModeQueue {
		p := kafka.NewProducer(cfg.OracleRequestTopic)
		defer p.Close()
		producer = p

		if cfg.OracleDLQTopic != "" {
			dlq := kafka.NewProducer(cfg.OracleDLQTopic)
			defer dlq.Close()
			dlqProducer = dlq
		}
	}

	svc := oracle.NewService(oracle.NewValidator(), store, coordinator, producer, dlqProducer, database.GetRedis(), oracle.ServiceOptions{
		DispatchMode: cfg.DispatchMode,
		StatsTTL:     cfg.StatsCacheTTL,
		ActiveAgents: len(identities),
	})
	handler := oracle.NewHTTPHandler(svc, cfg.MaxRequestBody)

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging, middleware.CORS)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	handler.Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":   cfg.ServerHost,
			"port":   cfg.ServerPort,
			"agents": len(identities),
			"mode":   cfg.DispatchMode,
		}).Info("Oracle Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Oracle Service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	// Let inline dispatches settle before the process exits.
	svc.Wait()

	logger.Log.Info("Oracle Service stopped")
}
