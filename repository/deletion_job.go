package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-account-service/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DeletionJobRepository struct {
	db *gorm.DB
}

func NewDeletionJobRepository(db *gorm.DB) *DeletionJobRepository {
	return &DeletionJobRepository{db: db}
}

// CreateJobIfVacant inserts the job unless the account already has a
// non-terminal one, reporting whether the insert happened. The check and the
// insert run in one transaction with the existing row locked FOR UPDATE; the
// partial unique index on active jobs backstops the insert-insert race two
// transactions can still hit when neither sees a row to lock.
func (r *DeletionJobRepository) CreateJobIfVacant(ctx context.Context, job *entity.DeletionJob) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing entity.DeletionJob
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("account_id = ? AND status NOT IN ?", job.AccountID,
				[]entity.DeletionJobStatus{entity.DeletionStatusCompleted, entity.DeletionStatusFailed}).
			First(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := tx.Create(job).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, err
	}
	return created, nil
}

// GetJob returns the job or nil when no row exists
func (r *DeletionJobRepository) GetJob(ctx context.Context, id uuid.UUID) (*entity.DeletionJob, error) {
	var job entity.DeletionJob
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

func (r *DeletionJobRepository) UpdateJob(ctx context.Context, job *entity.DeletionJob) error {
	return r.db.WithContext(ctx).Save(job).Error
}

func (r *DeletionJobRepository) ListJobs(ctx context.Context) ([]entity.DeletionJob, error) {
	var jobs []entity.DeletionJob
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// ListAbandonedJobs returns unconfirmed jobs created before the cutoff. Only
// the pre-confirmation stages qualify; cleanup stages are never swept.
func (r *DeletionJobRepository) ListAbandonedJobs(ctx context.Context, before time.Time) ([]entity.DeletionJob, error) {
	var jobs []entity.DeletionJob
	err := r.db.WithContext(ctx).
		Where("status IN ? AND created_at < ?",
			[]entity.DeletionJobStatus{entity.DeletionStatusPending, entity.DeletionStatusSnapshot, entity.DeletionStatusSnapshotReady},
			before).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}
