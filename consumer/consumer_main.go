package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tnqbao/gau-account-service/config"
	"github.com/tnqbao/gau-account-service/consumer/worker"
	infraPkg "github.com/tnqbao/gau-account-service/infra"
	"github.com/tnqbao/gau-account-service/repository"
	"github.com/tnqbao/gau-account-service/workflow"
)

func main() {
	err := godotenv.Load("../staging.env")
	if err != nil {
		log.Println("No .env file found, continuing with environment variables")
	}

	cfg := config.NewConfig()
	infra := infraPkg.InitInfra(cfg)
	repo := repository.InitRepository(infra)

	locker := workflow.NewRedisAccountLocker(infra.Redis)
	reauth := workflow.NewReAuthVerifier(repo.AccountRepo)
	snapshots := workflow.NewMinioSnapshotCoordinator(
		infra.Minio,
		repo,
		cfg.EnvConfig.Deletion.SnapshotBucket,
		cfg.EnvConfig.Deletion.SnapshotURLTTL,
	)

	machine := workflow.NewStateMachine(
		repo.DeletionJobRepo,
		locker,
		reauth,
		infra.AuthorizationService,
		snapshots,
		infra.Produce.DeletionService,
		infra.Logger,
		cfg.EnvConfig.Deletion.JobTTL,
	)

	orchestrator := workflow.NewCleanupOrchestrator(
		repo,
		infra.Minio,
		infra.IntegrationService,
		infra.Redis,
		infra.Logger,
		cfg.EnvConfig.Deletion.SnapshotBucket,
		cfg.EnvConfig.Deletion.SnapshotRetainAll,
	)

	// Initialize context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start Deletion Consumer
	deletionConsumer := worker.NewDeletionConsumer(
		infra.RabbitMQ.Channel,
		infra.Logger,
		machine,
		orchestrator,
		cfg.EnvConfig.Deletion.CleanupRetries,
	)
	if err := deletionConsumer.Start(ctx); err != nil {
		infra.Logger.ErrorWithContextf(ctx, err, "Failed to start Deletion consumer: %v", err)
		log.Fatalf("Failed to start Deletion consumer: %v", err)
	}

	// Start abandoned-job sweeper
	sweeper := worker.NewSweeper(infra.Logger, machine, time.Hour)
	sweeper.Start(ctx)

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	infra.Logger.InfoWithContextf(ctx, "Shutting down consumer...")
	cancel() // Cancel context to stop consumers

	infra.Logger.Shutdown(context.Background())
	infra.Logger.InfoWithContextf(ctx, "Consumer exited properly")
}
