package workflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-account-service/entity"
	"github.com/tnqbao/gau-account-service/infra"
	"github.com/tnqbao/gau-account-service/repository"
)

// CleanupOrchestrator executes the two cleanup phases. The external phase
// must finish before the local one: API key and webhook rows are the input
// for severing the external side, so purging them first would orphan live
// external state.
type CleanupOrchestrator struct {
	repo           *repository.Repository
	minio          *infra.MinioClient
	integrations   *infra.IntegrationService
	redis          *infra.RedisClient
	logger         Logger
	snapshotBucket string
	retainAll      bool
}

func NewCleanupOrchestrator(
	repo *repository.Repository,
	minio *infra.MinioClient,
	integrations *infra.IntegrationService,
	redis *infra.RedisClient,
	logger Logger,
	snapshotBucket string,
	retainAll bool,
) *CleanupOrchestrator {
	return &CleanupOrchestrator{
		repo:           repo,
		minio:          minio,
		integrations:   integrations,
		redis:          redis,
		logger:         logger,
		snapshotBucket: snapshotBucket,
		retainAll:      retainAll,
	}
}

// RunExternalPhase tears down everything the account holds outside local
// storage: storage service accounts, registered webhooks and provider links.
// Already-removed remote state is treated as success, which keeps the phase
// idempotent under redelivery.
func (o *CleanupOrchestrator) RunExternalPhase(ctx context.Context, accountID uuid.UUID) error {
	keys, err := o.repo.IntegrationRepo.ListAPIKeys(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to list API keys: %w", err)
	}

	for _, key := range keys {
		if err := o.minio.DeleteIAMUser(ctx, key.AccessKey); err != nil {
			// Redelivery may race an earlier attempt: the delete fails
			// only if the user still exists.
			user, lookupErr := o.minio.GetIAMUser(ctx, key.AccessKey)
			if lookupErr != nil || user != nil {
				return fmt.Errorf("failed to remove service account %s: %w", key.AccessKey, err)
			}
		}
		policyName := key.AccessKey + "-s3-policy"
		if err := o.minio.DeletePolicy(ctx, policyName); err != nil {
			o.logger.WarningWithContextf(ctx, "[Cleanup] Failed to delete policy %s: %v", policyName, err)
		}
	}

	hooks, err := o.repo.IntegrationRepo.ListWebhooks(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to list webhooks: %w", err)
	}
	for _, hook := range hooks {
		if err := o.integrations.DeregisterWebhook(accountID, hook.ExternalID); err != nil {
			return fmt.Errorf("failed to deregister webhook %s: %w", hook.ExternalID, err)
		}
	}

	links, err := o.repo.IntegrationRepo.ListLinkedAccounts(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to list linked accounts: %w", err)
	}
	for _, link := range links {
		if err := o.integrations.UnlinkProvider(accountID, link.Provider, link.ExternalID); err != nil {
			return fmt.Errorf("failed to unlink provider %s: %w", link.Provider, err)
		}
	}

	return nil
}

// RunLocalPhase purges the account's local data. Runs only after the
// external phase has fully succeeded.
func (o *CleanupOrchestrator) RunLocalPhase(ctx context.Context, job *entity.DeletionJob) error {
	if err := o.repo.IntegrationRepo.PurgeAccountData(ctx, job.AccountID); err != nil {
		return fmt.Errorf("failed to purge integration rows: %w", err)
	}

	sessionKeys, err := o.redis.Keys(ctx, "session:"+job.AccountID.String()+":*")
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(sessionKeys) > 0 {
		if err := o.redis.Delete(ctx, sessionKeys...); err != nil {
			return fmt.Errorf("failed to delete sessions: %w", err)
		}
	}

	if err := o.repo.AccountRepo.MarkAccountDeleted(ctx, job.AccountID); err != nil {
		return fmt.Errorf("failed to mark account deleted: %w", err)
	}

	if job.DataHandling == entity.DataHandlingDeleteAll && !o.retainAll && job.SnapshotObjectKey != "" {
		if err := o.minio.RemoveObject(ctx, o.snapshotBucket, job.SnapshotObjectKey); err != nil {
			o.logger.WarningWithContextf(ctx, "[Cleanup] Failed to remove snapshot artifact %s: %v", job.SnapshotObjectKey, err)
		}
	}

	return nil
}
