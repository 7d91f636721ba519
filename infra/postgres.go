package infra

import (
	"fmt"
	"log"

	"github.com/tnqbao/gau-account-service/config"
	"github.com/tnqbao/gau-account-service/entity"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type PostgresClient struct {
	DB *gorm.DB
}

func InitPostgresClient(cfg *config.EnvConfig) *PostgresClient {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		cfg.Postgres.HOST,
		cfg.Postgres.Username,
		cfg.Postgres.Password,
		cfg.Postgres.Database,
		cfg.Postgres.Port,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("Postgres connection failed: %v", err)
	}

	err = db.AutoMigrate(
		&entity.Account{},
		&entity.DeletionJob{},
		&entity.APIKey{},
		&entity.WebhookRegistration{},
		&entity.LinkedAccount{},
	)
	if err != nil {
		log.Fatalf("Postgres migration failed: %v", err)
	}

	// At most one non-terminal deletion job per account, enforced at the
	// database level.
	err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS udx_deletion_jobs_active_account
		ON deletion_jobs (account_id)
		WHERE status NOT IN ('completed', 'failed')`).Error
	if err != nil {
		log.Fatalf("Postgres migration failed: %v", err)
	}

	log.Println("Connected to Postgres:", cfg.Postgres.HOST+":"+cfg.Postgres.Port)

	return &PostgresClient{DB: db}
}
