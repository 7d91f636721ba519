package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tnqbao/gau-account-service/entity"
)

var (
	// ErrPermissionDenied means the actor is neither the account owner nor
	// a holder of the force-delete capability.
	ErrPermissionDenied = errors.New("actor is not allowed to delete this account")

	// ErrConflict means a non-terminal job already exists for the account,
	// or a stale transition was attempted. Callers should re-fetch status
	// instead of retrying the same call.
	ErrConflict = errors.New("conflicting deletion job state")

	// ErrAuthenticationFailed means the re-auth secret did not verify.
	ErrAuthenticationFailed = errors.New("re-authentication failed")

	// ErrJobNotFound means no deletion job exists with the given ID.
	ErrJobNotFound = errors.New("deletion job not found")
)

// Confirmation gate names, reported verbatim inside PreconditionError so the
// client can direct the user to the remaining step.
const (
	GateSnapshotReady      = "snapshot_not_ready"
	GateSnapshotDownloaded = "snapshot_not_downloaded"
	GateSnapshotAcked      = "snapshot_not_acknowledged"
)

// PreconditionError reports which confirmation gates are still unmet.
type PreconditionError struct {
	Gates []string
}

func (e *PreconditionError) Error() string {
	return "precondition failed: " + strings.Join(e.Gates, ", ")
}

// TransitionError reports an edge that is not part of the job lifecycle
// graph. It unwraps to ErrConflict.
type TransitionError struct {
	From entity.DeletionJobStatus
	To   entity.DeletionJobStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrConflict
}

// SnapshotError wraps a snapshot generation failure; the job has already been
// moved to failed when this is returned.
type SnapshotError struct {
	Reason string
}

func (e *SnapshotError) Error() string {
	return "snapshot generation failed: " + e.Reason
}

// CleanupError wraps a cleanup dispatch or phase failure recorded on the job.
type CleanupError struct {
	Phase  string
	Reason string
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("%s cleanup failed: %s", e.Phase, e.Reason)
}
