package infra

import (
	"errors"
	"fmt"
	"testing"

	"github.com/minio/madmin-go/v3"
	"github.com/stretchr/testify/assert"
)

func TestIsAdminNotFound(t *testing.T) {
	noSuchUser := madmin.ErrorResponse{Code: "XMinioAdminNoSuchUser", Message: "user does not exist"}

	assert.True(t, isAdminNotFound(noSuchUser, "XMinioAdminNoSuchUser"))
	assert.True(t, isAdminNotFound(fmt.Errorf("failed to delete MinIO IAM user: %w", noSuchUser), "XMinioAdminNoSuchUser"),
		"wrapped admin errors must still match")

	assert.False(t, isAdminNotFound(noSuchUser, "XMinioAdminNoSuchPolicy"), "codes must not cross-match")
	assert.False(t, isAdminNotFound(errors.New("user does not exist"), "XMinioAdminNoSuchUser"),
		"untyped errors never count as not-found")
	assert.False(t, isAdminNotFound(nil, "XMinioAdminNoSuchUser"))
}
