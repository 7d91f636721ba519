package repository

import (
	"github.com/tnqbao/gau-account-service/infra"
	"gorm.io/gorm"
)

type Repository struct {
	DeletionJobRepo *DeletionJobRepository
	AccountRepo     *AccountRepository
	IntegrationRepo *IntegrationRepository
}

var repository *Repository

func InitRepository(infra *infra.Infra) *Repository {
	repository = &Repository{
		DeletionJobRepo: NewDeletionJobRepository(infra.Postgres.DB),
		AccountRepo:     NewAccountRepository(infra.Postgres.DB),
		IntegrationRepo: NewIntegrationRepository(infra.Postgres.DB),
	}
	return repository
}

func GetRepository() *Repository {
	if repository == nil {
		panic("repository not initialized")
	}
	return repository
}

func (r *Repository) BeginTransaction(db *gorm.DB) *gorm.DB {
	return db.Begin()
}

func (r *Repository) WithTransaction(tx *gorm.DB) *Repository {
	return &Repository{
		DeletionJobRepo: NewDeletionJobRepository(tx),
		AccountRepo:     NewAccountRepository(tx),
		IntegrationRepo: NewIntegrationRepository(tx),
	}
}
