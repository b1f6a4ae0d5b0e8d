package main

import (
	"context"
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
	"github.com/agentoracle/platform/pkg/common/models"
	"github.com/agentoracle/platform/pkg/oracle"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	repo := oracle.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate oracle tables")
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

	coordinator := oracle.NewCoordinator(repo, identities)
	if err := coordinator.SeedAgents(context.Background()); err != nil {
		logger.Log.WithError(err).Fatal("failed to seed agent registry")
	}

	consumer := kafka.NewConsumer(cfg.OracleRequestTopic, cfg.KafkaGroupID)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"topic":  cfg.OracleRequestTopic,
			"agents": len(identities),
		}).Info("Oracle Worker started")

		err := consumer.Consume(ctx, func(ctx context.Context, event models.Event) error {
			if event.Type != oracle.EventRequestCreated {
				logger.Log.WithField("event_type", event.Type).Warn("skipping unexpected event")
				return nil
			}
			requestID, _ := event.Data["request_id"].(string)
			if requestID == "" {
				logger.Log.WithField("event_id", event.ID).Warn("event without request_id")
				return nil
			}
			return coordinator.Process(ctx, requestID)
		})
		if err != nil && err != context.Canceled {
			logger.Log.WithError(err).Error("consumer stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Oracle Worker...")
	cancel()

	if err := database.ClosePostgres(); err != nil {
		logger.Log.WithError(err).Error("failed to close postgres")
	}

	logger.Log.Info("Oracle Worker stopped")
}
