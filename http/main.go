package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/tnqbao/gau-account-service/config"
	"github.com/tnqbao/gau-account-service/http/controller"
	routes "github.com/tnqbao/gau-account-service/http/route"
	infraPkg "github.com/tnqbao/gau-account-service/infra"
	"github.com/tnqbao/gau-account-service/repository"
	"github.com/tnqbao/gau-account-service/workflow"
)

func main() {
	err := godotenv.Load("staging.env")
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

	ctrl := controller.NewController(cfg, infra, repo, machine)

	router := routes.SetupRouter(ctrl)

	log.Println("HTTP Server started on :8080")
	if err := router.Run(":8080"); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
