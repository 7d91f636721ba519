package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-account-service/entity"
	"gorm.io/gorm"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// GetAccount returns the account or nil when no row exists
func (r *AccountRepository) GetAccount(ctx context.Context, id uuid.UUID) (*entity.Account, error) {
	var account entity.Account
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// GetCredentialHash returns the actor's stored password hash. An empty
// string means the actor does not exist.
func (r *AccountRepository) GetCredentialHash(ctx context.Context, id uuid.UUID) (string, error) {
	account, err := r.GetAccount(ctx, id)
	if err != nil {
		return "", err
	}
	if account == nil {
		return "", nil
	}
	return account.PasswordHash, nil
}

// MarkAccountDeleted stamps the deletion marker during the local cleanup
// phase. Idempotent: an already-marked account is left untouched.
func (r *AccountRepository) MarkAccountDeleted(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&entity.Account{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", &now).Error
}
