package entity

import (
	"time"

	"github.com/google/uuid"
)

type Account struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Email        string     `json:"email" binding:"required,email" gorm:"uniqueIndex;not null"`
	DisplayName  string     `json:"display_name" gorm:"type:varchar(128)"`
	PasswordHash string     `json:"-" gorm:"type:varchar(128);not null"`
	Role         string     `json:"role" binding:"oneof=user admin" gorm:"type:varchar(32);not null;default:'user';index"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty" gorm:"index"`
	CreatedAt    time.Time  `json:"created_at" gorm:"not null;autoCreateTime"`
	UpdatedAt    time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}
