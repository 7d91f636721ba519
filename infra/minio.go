package infra

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/madmin-go/v3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/tnqbao/gau-account-service/config"
)

type MinioClient struct {
	Admin    *madmin.AdminClient
	Client   *minio.Client
	Endpoint string
}

func InitMinioClient(cfg *config.EnvConfig) *MinioClient {
	endpoint := cfg.Minio.Endpoint
	if endpoint == "" {
		panic("MinIO endpoint is not configured")
	}

	rootUser := cfg.Minio.RootUser
	if rootUser == "" {
		panic("MinIO root user is not configured")
	}

	rootPassword := cfg.Minio.RootPassword
	if rootPassword == "" {
		panic("MinIO root password is not configured")
	}

	madminClient, err := madmin.New(endpoint, rootUser, rootPassword, false)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize MinIO admin client: %v", err))
	}

	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(rootUser, rootPassword, ""),
		Secure: false,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize MinIO client: %v", err))
	}

	return &MinioClient{
		Admin:    madminClient,
		Client:   minioClient,
		Endpoint: endpoint,
	}
}

// EnsureBucket creates the bucket if it does not exist yet
func (m *MinioClient) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := m.Client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.Client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return nil
}

// PutJSONObject uploads a JSON document to the given bucket/key
func (m *MinioClient) PutJSONObject(ctx context.Context, bucket, key string, data []byte) error {
	_, err := m.Client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// PresignGetURL issues a time-limited download URL for an object
func (m *MinioClient) PresignGetURL(ctx context.Context, bucket, key string, expire time.Duration) (string, error) {
	reqParams := make(url.Values)
	presigned, err := m.Client.PresignedGetObject(ctx, bucket, key, expire, reqParams)
	if err != nil {
		return "", fmt.Errorf("failed to presign object %s/%s: %w", bucket, key, err)
	}
	return presigned.String(), nil
}

// RemoveObject deletes an object, ignoring missing keys
func (m *MinioClient) RemoveObject(ctx context.Context, bucket, key string) error {
	err := m.Client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to remove object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// DeleteIAMUser deletes an IAM user from MinIO
func (m *MinioClient) DeleteIAMUser(ctx context.Context, accessKey string) error {
	if accessKey == "" {
		return fmt.Errorf("accessKey cannot be empty")
	}

	err := m.Admin.RemoveUser(ctx, accessKey)
	if err != nil {
		return fmt.Errorf("failed to delete MinIO IAM user: %w", err)
	}

	return nil
}

// GetIAMUser fetches IAM user info; returns nil without error when the user
// does not exist
func (m *MinioClient) GetIAMUser(ctx context.Context, accessKey string) (*madmin.UserInfo, error) {
	if accessKey == "" {
		return nil, fmt.Errorf("accessKey cannot be empty")
	}

	userInfo, err := m.Admin.GetUserInfo(ctx, accessKey)
	if err != nil {
		if isAdminNotFound(err, "XMinioAdminNoSuchUser") {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get MinIO IAM user info: %w", err)
	}

	return &userInfo, nil
}

// DeletePolicy removes a policy from MinIO. An already-absent policy is not
// an error.
func (m *MinioClient) DeletePolicy(ctx context.Context, policyName string) error {
	if policyName == "" {
		return fmt.Errorf("policyName cannot be empty")
	}

	err := m.Admin.RemoveCannedPolicy(ctx, policyName)
	if err != nil {
		if isAdminNotFound(err, "XMinioAdminNoSuchPolicy") {
			return nil
		}
		return fmt.Errorf("failed to delete policy: %w", err)
	}

	return nil
}

// isAdminNotFound matches the admin API's typed error responses by code,
// including wrapped ones.
func isAdminNotFound(err error, code string) bool {
	var resp madmin.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == code
	}
	return false
}
