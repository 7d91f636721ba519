package workflow

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// CredentialStore exposes the stored password hash of an actor. An empty
// hash means the actor does not exist.
type CredentialStore interface {
	GetCredentialHash(ctx context.Context, actorID uuid.UUID) (string, error)
}

// dummyHash is compared against when the actor is unknown, so a missing
// actor costs the same as a wrong secret.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// ReAuthVerifier checks a supplied secret against the acting actor's stored
// credential, independent of session validity. When a delegate confirms a
// deletion, the delegate's own credential is checked: the delegate is the
// one proving present intent.
type ReAuthVerifier struct {
	credentials CredentialStore
}

func NewReAuthVerifier(credentials CredentialStore) *ReAuthVerifier {
	return &ReAuthVerifier{credentials: credentials}
}

// Verify reports whether the secret matches the actor's stored credential.
// A failed attempt is not an error: callers may let the user retry.
func (v *ReAuthVerifier) Verify(ctx context.Context, actorID uuid.UUID, secret string) (bool, error) {
	hash, err := v.credentials.GetCredentialHash(ctx, actorID)
	if err != nil {
		return false, err
	}

	if hash == "" {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(secret))
		return false, nil
	}

	err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}
