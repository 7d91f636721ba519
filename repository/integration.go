package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-account-service/entity"
	"gorm.io/gorm"
)

// IntegrationRepository holds the rows the cleanup phases feed on: API keys,
// webhook registrations and linked provider identities.
type IntegrationRepository struct {
	db *gorm.DB
}

func NewIntegrationRepository(db *gorm.DB) *IntegrationRepository {
	return &IntegrationRepository{db: db}
}

func (r *IntegrationRepository) ListAPIKeys(ctx context.Context, accountID uuid.UUID) ([]entity.APIKey, error) {
	var keys []entity.APIKey
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Find(&keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *IntegrationRepository) ListWebhooks(ctx context.Context, accountID uuid.UUID) ([]entity.WebhookRegistration, error) {
	var hooks []entity.WebhookRegistration
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Find(&hooks).Error
	if err != nil {
		return nil, err
	}
	return hooks, nil
}

func (r *IntegrationRepository) ListLinkedAccounts(ctx context.Context, accountID uuid.UUID) ([]entity.LinkedAccount, error) {
	var links []entity.LinkedAccount
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Find(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}

// PurgeAccountData removes every local integration row for the account in
// one transaction. Runs only after the external phase has finished, since
// the external teardown needs these rows as input.
func (r *IntegrationRepository) PurgeAccountData(ctx context.Context, accountID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", accountID).Delete(&entity.APIKey{}).Error; err != nil {
			return err
		}
		if err := tx.Where("account_id = ?", accountID).Delete(&entity.WebhookRegistration{}).Error; err != nil {
			return err
		}
		if err := tx.Where("account_id = ?", accountID).Delete(&entity.LinkedAccount{}).Error; err != nil {
			return err
		}
		return nil
	})
}
