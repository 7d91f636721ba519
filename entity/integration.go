package entity

import (
	"time"

	"github.com/google/uuid"
)

// APIKey maps an account to a storage service account. The access key is
// required to tear down the external side, so these rows must survive until
// the external cleanup phase has finished.
type APIKey struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	AccountID uuid.UUID `json:"account_id" gorm:"type:uuid;not null;index"`
	AccessKey string    `json:"access_key" gorm:"type:varchar(128);uniqueIndex;not null"`
	Label     string    `json:"label" gorm:"type:varchar(128)"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;autoCreateTime"`
}

// WebhookRegistration is a callback endpoint registered with the integration
// service on behalf of the account.
type WebhookRegistration struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	AccountID  uuid.UUID `json:"account_id" gorm:"type:uuid;not null;index"`
	ExternalID string    `json:"external_id" gorm:"type:varchar(128);not null"`
	TargetURL  string    `json:"target_url" gorm:"type:varchar(1024);not null"`
	CreatedAt  time.Time `json:"created_at" gorm:"not null;autoCreateTime"`
}

// LinkedAccount is a third-party provider identity linked to the account.
type LinkedAccount struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	AccountID  uuid.UUID `json:"account_id" gorm:"type:uuid;not null;index"`
	Provider   string    `json:"provider" gorm:"type:varchar(64);not null"`
	ExternalID string    `json:"external_id" gorm:"type:varchar(128);not null"`
	CreatedAt  time.Time `json:"created_at" gorm:"not null;autoCreateTime"`
}
