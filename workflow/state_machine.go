package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-account-service/entity"
)

// JobStore persists deletion jobs. Get methods return nil without error when
// no row matches. CreateJobIfVacant must be atomic: the has-active-job check
// and the insert happen in one transaction.
type JobStore interface {
	CreateJobIfVacant(ctx context.Context, job *entity.DeletionJob) (bool, error)
	GetJob(ctx context.Context, id uuid.UUID) (*entity.DeletionJob, error)
	UpdateJob(ctx context.Context, job *entity.DeletionJob) error
	ListJobs(ctx context.Context) ([]entity.DeletionJob, error)
	ListAbandonedJobs(ctx context.Context, before time.Time) ([]entity.DeletionJob, error)
}

// PermissionChecker answers whether an actor may delete an account they do
// not own.
type PermissionChecker interface {
	HasForceDeleteCapability(actorID, accountID uuid.UUID) (bool, error)
}

// SnapshotResult is what the coordinator reports back after producing an
// export artifact.
type SnapshotResult struct {
	ObjectKey string
	Manifest  []byte
}

// SnapshotCoordinator produces and serves the downloadable export artifact.
type SnapshotCoordinator interface {
	Generate(ctx context.Context, accountID, jobID uuid.UUID) (*SnapshotResult, error)
	PresignDownload(ctx context.Context, objectKey string) (string, error)
}

// CleanupDispatcher hands a cleanup phase off to the background worker.
type CleanupDispatcher interface {
	PublishExternalCleanup(ctx context.Context, jobID, accountID string) error
	PublishLocalCleanup(ctx context.Context, jobID, accountID string) error
}

// AccountLocker serializes all mutating operations per account. Lock returns
// ErrConflict-compatible failure when the account is already being worked on.
type AccountLocker interface {
	LockAccount(ctx context.Context, accountID uuid.UUID) (func(), error)
}

// Logger is the subset of the infra logger the workflow needs.
type Logger interface {
	InfoWithContextf(ctx context.Context, format string, args ...interface{})
	WarningWithContextf(ctx context.Context, format string, args ...interface{})
	ErrorWithContextf(ctx context.Context, err error, format string, args ...interface{})
}

// transitions is the full lifecycle graph. Every status change goes through
// advance, so nothing can skip a stage or move backward.
var transitions = map[entity.DeletionJobStatus][]entity.DeletionJobStatus{
	entity.DeletionStatusPending:         {entity.DeletionStatusSnapshot, entity.DeletionStatusFailed},
	entity.DeletionStatusSnapshot:        {entity.DeletionStatusSnapshotReady, entity.DeletionStatusFailed},
	entity.DeletionStatusSnapshotReady:   {entity.DeletionStatusExternalCleanup, entity.DeletionStatusFailed},
	entity.DeletionStatusExternalCleanup: {entity.DeletionStatusLocalCleanup, entity.DeletionStatusFailed},
	entity.DeletionStatusLocalCleanup:    {entity.DeletionStatusCompleted, entity.DeletionStatusFailed},
}

func canTransition(from, to entity.DeletionJobStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StateMachine owns the deletion job lifecycle. All transitions are validated
// here before any collaborator is invoked; clients never mutate jobs directly.
type StateMachine struct {
	jobs       JobStore
	locker     AccountLocker
	reauth     *ReAuthVerifier
	perms      PermissionChecker
	snapshots  SnapshotCoordinator
	dispatcher CleanupDispatcher
	logger     Logger
	jobTTL     time.Duration
}

func NewStateMachine(
	jobs JobStore,
	locker AccountLocker,
	reauth *ReAuthVerifier,
	perms PermissionChecker,
	snapshots SnapshotCoordinator,
	dispatcher CleanupDispatcher,
	logger Logger,
	jobTTL time.Duration,
) *StateMachine {
	return &StateMachine{
		jobs:       jobs,
		locker:     locker,
		reauth:     reauth,
		perms:      perms,
		snapshots:  snapshots,
		dispatcher: dispatcher,
		logger:     logger,
		jobTTL:     jobTTL,
	}
}

// advance moves the job along one lifecycle edge and persists it.
func (m *StateMachine) advance(ctx context.Context, job *entity.DeletionJob, to entity.DeletionJobStatus) error {
	if !canTransition(job.Status, to) {
		return &TransitionError{From: job.Status, To: to}
	}
	job.Status = to
	return m.jobs.UpdateJob(ctx, job)
}

// RequestDeletion creates a new deletion job for the account. At most one
// non-terminal job may exist per account.
func (m *StateMachine) RequestDeletion(ctx context.Context, accountID, actorID uuid.UUID, preference entity.DataHandling) (*entity.DeletionJob, error) {
	if preference == "" {
		preference = entity.DataHandlingDownloadSnapshot
	}

	if actorID != accountID {
		allowed, err := m.perms.HasForceDeleteCapability(actorID, accountID)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, ErrPermissionDenied
		}
	}

	release, err := m.locker.LockAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer release()

	job := &entity.DeletionJob{
		ID:           uuid.New(),
		AccountID:    accountID,
		RequestedBy:  actorID,
		Status:       entity.DeletionStatusPending,
		DataHandling: preference,
	}

	created, err := m.jobs.CreateJobIfVacant(ctx, job)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, ErrConflict
	}

	m.logger.InfoWithContextf(ctx, "[Deletion] Job %s created for account %s by actor %s", job.ID, accountID, actorID)
	return job, nil
}

// GenerateSnapshot produces the export artifact. Idempotent: a job already in
// snapshot_ready is returned unchanged without invoking the coordinator.
func (m *StateMachine) GenerateSnapshot(ctx context.Context, jobID uuid.UUID) (*entity.DeletionJob, error) {
	job, err := m.lockedJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	defer job.release()

	if job.Status == entity.DeletionStatusSnapshotReady {
		return job.DeletionJob, nil
	}
	if job.Status != entity.DeletionStatusPending && job.Status != entity.DeletionStatusSnapshot {
		return nil, &TransitionError{From: job.Status, To: entity.DeletionStatusSnapshotReady}
	}

	if job.Status == entity.DeletionStatusPending {
		if err := m.advance(ctx, job.DeletionJob, entity.DeletionStatusSnapshot); err != nil {
			return nil, err
		}
	}

	result, err := m.snapshots.Generate(ctx, job.AccountID, job.ID)
	if err != nil {
		m.logger.ErrorWithContextf(ctx, err, "[Deletion] Snapshot generation failed for job %s: %v", job.ID, err)
		job.FailureReason = "snapshot generation failed: " + err.Error()
		if advErr := m.advance(ctx, job.DeletionJob, entity.DeletionStatusFailed); advErr != nil {
			return nil, advErr
		}
		return nil, &SnapshotError{Reason: err.Error()}
	}

	now := time.Now()
	job.SnapshotObjectKey = result.ObjectKey
	job.SnapshotManifest = result.Manifest
	job.SnapshotReadyAt = &now
	if err := m.advance(ctx, job.DeletionJob, entity.DeletionStatusSnapshotReady); err != nil {
		return nil, err
	}

	m.logger.InfoWithContextf(ctx, "[Deletion] Snapshot ready for job %s at %s", job.ID, result.ObjectKey)
	return job.DeletionJob, nil
}

// RecordDownload counts a snapshot download. The first download timestamp is
// preserved; later downloads only bump the counter.
func (m *StateMachine) RecordDownload(ctx context.Context, jobID uuid.UUID) (*entity.DeletionJob, error) {
	job, err := m.lockedJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	defer job.release()

	if job.Status.IsTerminal() {
		return nil, ErrConflict
	}
	switch job.Status {
	case entity.DeletionStatusSnapshotReady, entity.DeletionStatusExternalCleanup, entity.DeletionStatusLocalCleanup:
	default:
		return nil, &PreconditionError{Gates: []string{GateSnapshotReady}}
	}

	job.SnapshotDownloadCount++
	if job.SnapshotDownloadedAt == nil {
		now := time.Now()
		job.SnapshotDownloadedAt = &now
	}
	if err := m.jobs.UpdateJob(ctx, job.DeletionJob); err != nil {
		return nil, err
	}
	return job.DeletionJob, nil
}

// PresignSnapshotDownload issues a fresh download URL for the artifact.
func (m *StateMachine) PresignSnapshotDownload(ctx context.Context, job *entity.DeletionJob) (string, error) {
	return m.snapshots.PresignDownload(ctx, job.SnapshotObjectKey)
}

// AcknowledgeSnapshot records explicit consent that the export was reviewed.
// consent=false is a no-op, not a revocation; the timestamp is first-write-wins.
func (m *StateMachine) AcknowledgeSnapshot(ctx context.Context, jobID uuid.UUID, consent bool) (*entity.DeletionJob, error) {
	job, err := m.lockedJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	defer job.release()

	if job.Status != entity.DeletionStatusSnapshotReady {
		if job.Status.IsTerminal() {
			return nil, ErrConflict
		}
		return nil, &PreconditionError{Gates: []string{GateSnapshotReady}}
	}

	if !consent || job.SnapshotAckedAt != nil {
		return job.DeletionJob, nil
	}

	now := time.Now()
	job.SnapshotAckedAt = &now
	if err := m.jobs.UpdateJob(ctx, job.DeletionJob); err != nil {
		return nil, err
	}
	return job.DeletionJob, nil
}

// ConfirmDeletion is the point of no return. All three gates are checked
// before the credential store is touched; re-auth is performed fresh for
// every confirmation attempt. On success the job is persisted in
// external_cleanup and the phase is dispatched to the background worker.
func (m *StateMachine) ConfirmDeletion(ctx context.Context, jobID, actorID uuid.UUID, secret string) (*entity.DeletionJob, error) {
	job, err := m.lockedJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	defer job.release()

	if job.Status != entity.DeletionStatusSnapshotReady &&
		job.Status != entity.DeletionStatusPending &&
		job.Status != entity.DeletionStatusSnapshot {
		// Already confirmed or terminal: a second confirm must not succeed.
		return nil, ErrConflict
	}

	var gates []string
	if job.Status != entity.DeletionStatusSnapshotReady {
		gates = append(gates, GateSnapshotReady)
	}
	if job.SnapshotDownloadedAt == nil {
		gates = append(gates, GateSnapshotDownloaded)
	}
	if job.SnapshotAckedAt == nil {
		gates = append(gates, GateSnapshotAcked)
	}
	if len(gates) > 0 {
		return nil, &PreconditionError{Gates: gates}
	}

	ok, err := m.reauth.Verify(ctx, actorID, secret)
	if err != nil {
		return nil, err
	}
	if !ok {
		m.logger.WarningWithContextf(ctx, "[Deletion] Re-authentication failed for job %s, actor %s", job.ID, actorID)
		return nil, ErrAuthenticationFailed
	}

	if err := m.advance(ctx, job.DeletionJob, entity.DeletionStatusExternalCleanup); err != nil {
		return nil, err
	}

	if err := m.dispatcher.PublishExternalCleanup(ctx, job.ID.String(), job.AccountID.String()); err != nil {
		m.logger.ErrorWithContextf(ctx, err, "[Deletion] Failed to dispatch external cleanup for job %s: %v", job.ID, err)
		job.FailureReason = "failed to dispatch external cleanup: " + err.Error()
		if advErr := m.advance(ctx, job.DeletionJob, entity.DeletionStatusFailed); advErr != nil {
			return nil, advErr
		}
		return nil, &CleanupError{Phase: "external", Reason: err.Error()}
	}

	m.logger.InfoWithContextf(ctx, "[Deletion] Job %s confirmed by actor %s, external cleanup dispatched", job.ID, actorID)
	return job.DeletionJob, nil
}

// CompleteExternalPhase records external cleanup success and dispatches the
// local phase. A job already past external_cleanup is returned unchanged so
// duplicate worker dispatch stays harmless.
func (m *StateMachine) CompleteExternalPhase(ctx context.Context, jobID uuid.UUID) (*entity.DeletionJob, error) {
	job, err := m.lockedJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	defer job.release()

	switch job.Status {
	case entity.DeletionStatusLocalCleanup, entity.DeletionStatusCompleted:
		return job.DeletionJob, nil
	case entity.DeletionStatusExternalCleanup:
	default:
		return nil, &TransitionError{From: job.Status, To: entity.DeletionStatusLocalCleanup}
	}

	if err := m.advance(ctx, job.DeletionJob, entity.DeletionStatusLocalCleanup); err != nil {
		return nil, err
	}

	if err := m.dispatcher.PublishLocalCleanup(ctx, job.ID.String(), job.AccountID.String()); err != nil {
		m.logger.ErrorWithContextf(ctx, err, "[Deletion] Failed to dispatch local cleanup for job %s: %v", job.ID, err)
		job.FailureReason = "failed to dispatch local cleanup: " + err.Error()
		if advErr := m.advance(ctx, job.DeletionJob, entity.DeletionStatusFailed); advErr != nil {
			return nil, advErr
		}
		return nil, &CleanupError{Phase: "local", Reason: err.Error()}
	}

	return job.DeletionJob, nil
}

// CompleteLocalPhase records local cleanup success, finishing the job.
func (m *StateMachine) CompleteLocalPhase(ctx context.Context, jobID uuid.UUID) (*entity.DeletionJob, error) {
	job, err := m.lockedJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	defer job.release()

	if job.Status == entity.DeletionStatusCompleted {
		return job.DeletionJob, nil
	}
	if err := m.advance(ctx, job.DeletionJob, entity.DeletionStatusCompleted); err != nil {
		return nil, err
	}

	m.logger.InfoWithContextf(ctx, "[Deletion] Job %s completed for account %s", job.ID, job.AccountID)
	return job.DeletionJob, nil
}

// FailJob moves a non-terminal job to failed with the given reason. Terminal
// jobs are immutable; failing one is a no-op.
func (m *StateMachine) FailJob(ctx context.Context, jobID uuid.UUID, reason string) error {
	job, err := m.lockedJob(ctx, jobID)
	if err != nil {
		return err
	}
	defer job.release()

	if job.Status.IsTerminal() {
		return nil
	}

	job.FailureReason = reason
	if err := m.advance(ctx, job.DeletionJob, entity.DeletionStatusFailed); err != nil {
		return err
	}

	m.logger.WarningWithContextf(ctx, "[Deletion] Job %s failed: %s", job.ID, reason)
	return nil
}

// GetStatus is the pure read path for pollers. Safe at any frequency.
func (m *StateMachine) GetStatus(ctx context.Context, jobID uuid.UUID) (*entity.DeletionJob, error) {
	job, err := m.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// ListJobs aggregates every job for the operator view.
func (m *StateMachine) ListJobs(ctx context.Context) ([]entity.DeletionJob, error) {
	return m.jobs.ListJobs(ctx)
}

// SweepAbandoned fails unconfirmed jobs older than the configured TTL,
// freeing the one-job-per-account slot. Returns the number of jobs swept.
func (m *StateMachine) SweepAbandoned(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-m.jobTTL)
	jobs, err := m.jobs.ListAbandonedJobs(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	swept := 0
	for i := range jobs {
		if err := m.FailJob(ctx, jobs[i].ID, "abandoned: deletion job exceeded its time-to-live"); err != nil {
			m.logger.ErrorWithContextf(ctx, err, "[Deletion] Failed to sweep job %s: %v", jobs[i].ID, err)
			continue
		}
		swept++
	}
	return swept, nil
}

// lockedJob loads a job and takes its account lock, re-reading the record
// under the lock so concurrent callers observe each other's transitions.
type lockedJob struct {
	*entity.DeletionJob
	release func()
}

func (m *StateMachine) lockedJob(ctx context.Context, jobID uuid.UUID) (*lockedJob, error) {
	job, err := m.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}

	release, err := m.locker.LockAccount(ctx, job.AccountID)
	if err != nil {
		return nil, err
	}

	job, err = m.jobs.GetJob(ctx, jobID)
	if err != nil {
		release()
		return nil, err
	}
	if job == nil {
		release()
		return nil, ErrJobNotFound
	}

	return &lockedJob{DeletionJob: job, release: release}, nil
}
