package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-account-service/entity"
	"github.com/tnqbao/gau-account-service/infra"
	"github.com/tnqbao/gau-account-service/repository"
)

// MinioSnapshotCoordinator builds the account data export and stores it as a
// JSON artifact in the snapshot bucket.
type MinioSnapshotCoordinator struct {
	minio  *infra.MinioClient
	repo   *repository.Repository
	bucket string
	urlTTL time.Duration
}

func NewMinioSnapshotCoordinator(minio *infra.MinioClient, repo *repository.Repository, bucket string, urlTTL time.Duration) *MinioSnapshotCoordinator {
	return &MinioSnapshotCoordinator{
		minio:  minio,
		repo:   repo,
		bucket: bucket,
		urlTTL: urlTTL,
	}
}

// accountExport is the artifact layout. Everything the local cleanup phase
// will destroy is represented here, so the holder can review exactly what
// they are about to lose.
type accountExport struct {
	Account        *entity.Account              `json:"account"`
	APIKeys        []entity.APIKey              `json:"api_keys"`
	Webhooks       []entity.WebhookRegistration `json:"webhooks"`
	LinkedAccounts []entity.LinkedAccount       `json:"linked_accounts"`
	ExportedAt     time.Time                    `json:"exported_at"`
}

type snapshotManifest struct {
	ObjectKey      string `json:"object_key"`
	SizeBytes      int    `json:"size_bytes"`
	APIKeys        int    `json:"api_keys"`
	Webhooks       int    `json:"webhooks"`
	LinkedAccounts int    `json:"linked_accounts"`
}

func (c *MinioSnapshotCoordinator) Generate(ctx context.Context, accountID, jobID uuid.UUID) (*SnapshotResult, error) {
	account, err := c.repo.AccountRepo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("account %s not found", accountID)
	}

	keys, err := c.repo.IntegrationRepo.ListAPIKeys(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load API keys: %w", err)
	}
	hooks, err := c.repo.IntegrationRepo.ListWebhooks(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load webhooks: %w", err)
	}
	links, err := c.repo.IntegrationRepo.ListLinkedAccounts(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load linked accounts: %w", err)
	}

	export := accountExport{
		Account:        account,
		APIKeys:        keys,
		Webhooks:       hooks,
		LinkedAccounts: links,
		ExportedAt:     time.Now(),
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export: %w", err)
	}

	if err := c.minio.EnsureBucket(ctx, c.bucket); err != nil {
		return nil, err
	}

	objectKey := fmt.Sprintf("%s/%s.json", accountID, jobID)
	if err := c.minio.PutJSONObject(ctx, c.bucket, objectKey, data); err != nil {
		return nil, err
	}

	manifest, err := json.Marshal(snapshotManifest{
		ObjectKey:      objectKey,
		SizeBytes:      len(data),
		APIKeys:        len(keys),
		Webhooks:       len(hooks),
		LinkedAccounts: len(links),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}

	return &SnapshotResult{ObjectKey: objectKey, Manifest: manifest}, nil
}

func (c *MinioSnapshotCoordinator) PresignDownload(ctx context.Context, objectKey string) (string, error) {
	if objectKey == "" {
		return "", fmt.Errorf("snapshot artifact key is empty")
	}
	return c.minio.PresignGetURL(ctx, c.bucket, objectKey, c.urlTTL)
}
