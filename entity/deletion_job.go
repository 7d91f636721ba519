package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DeletionJobStatus represents the stage of an account deletion job
type DeletionJobStatus string

const (
	DeletionStatusPending         DeletionJobStatus = "pending"
	DeletionStatusSnapshot        DeletionJobStatus = "snapshot"
	DeletionStatusSnapshotReady   DeletionJobStatus = "snapshot_ready"
	DeletionStatusExternalCleanup DeletionJobStatus = "external_cleanup"
	DeletionStatusLocalCleanup    DeletionJobStatus = "local_cleanup"
	DeletionStatusCompleted       DeletionJobStatus = "completed"
	DeletionStatusFailed          DeletionJobStatus = "failed"
)

// IsTerminal reports whether no further transition is possible from the status
func (s DeletionJobStatus) IsTerminal() bool {
	return s == DeletionStatusCompleted || s == DeletionStatusFailed
}

// DataHandling is the holder's choice for their exported data
type DataHandling string

const (
	DataHandlingDownloadSnapshot DataHandling = "download_snapshot"
	DataHandlingDeleteAll        DataHandling = "delete_all"
)

// DeletionJob is one account deletion attempt. Terminal jobs are never
// deleted; they stay as an audit record.
type DeletionJob struct {
	ID                    uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	AccountID             uuid.UUID         `json:"account_id" gorm:"type:uuid;not null;index"`
	RequestedBy           uuid.UUID         `json:"requested_by" gorm:"type:uuid;not null;index"`
	Status                DeletionJobStatus `json:"status" gorm:"type:varchar(32);not null;index"`
	DataHandling          DataHandling      `json:"data_handling" gorm:"type:varchar(32);not null"`
	SnapshotObjectKey     string            `json:"snapshot_object_key,omitempty" gorm:"type:varchar(512)"`
	SnapshotManifest      datatypes.JSON    `json:"snapshot_manifest,omitempty" gorm:"type:jsonb"`
	SnapshotReadyAt       *time.Time        `json:"snapshot_ready_at,omitempty"`
	SnapshotDownloadedAt  *time.Time        `json:"snapshot_downloaded_at,omitempty"`
	SnapshotDownloadCount int               `json:"snapshot_download_count" gorm:"not null;default:0"`
	SnapshotAckedAt       *time.Time        `json:"snapshot_acknowledged_at,omitempty"`
	FailureReason         string            `json:"failure_reason,omitempty" gorm:"type:text"`
	CreatedAt             time.Time         `json:"created_at" gorm:"not null;autoCreateTime"`
	UpdatedAt             time.Time         `json:"updated_at" gorm:"autoUpdateTime"`
}
