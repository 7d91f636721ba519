package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type staticCredentials struct {
	hashes map[uuid.UUID]string
	err    error
}

func (c *staticCredentials) GetCredentialHash(_ context.Context, actorID uuid.UUID) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return c.hashes[actorID], nil
}

func TestReAuthVerify(t *testing.T) {
	actorID := uuid.New()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2!"), bcrypt.MinCost)
	require.NoError(t, err)

	verifier := NewReAuthVerifier(&staticCredentials{
		hashes: map[uuid.UUID]string{actorID: string(hash)},
	})
	ctx := context.Background()

	ok, err := verifier.Verify(ctx, actorID, "hunter2!")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = verifier.Verify(ctx, actorID, "hunter3!")
	require.NoError(t, err, "a mismatch is not an error")
	assert.False(t, ok)

	ok, err = verifier.Verify(ctx, uuid.New(), "hunter2!")
	require.NoError(t, err, "an unknown actor is indistinguishable from a mismatch")
	assert.False(t, ok)
}

func TestReAuthVerifyStoreError(t *testing.T) {
	storeErr := errors.New("credential store unavailable")
	verifier := NewReAuthVerifier(&staticCredentials{err: storeErr})

	ok, err := verifier.Verify(context.Background(), uuid.New(), "whatever")
	assert.ErrorIs(t, err, storeErr)
	assert.False(t, ok)
}
