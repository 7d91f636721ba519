package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tnqbao/gau-account-service/entity"
	"github.com/tnqbao/gau-account-service/infra/produce"
	"github.com/tnqbao/gau-account-service/workflow"
)

type fakeAcknowledger struct {
	mu      sync.Mutex
	acked   bool
	nacked  bool
	requeue bool
}

func (a *fakeAcknowledger) Ack(_ uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = true
	return nil
}

func (a *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked = true
	a.requeue = requeue
	return nil
}

func (a *fakeAcknowledger) Reject(_ uint64, requeue bool) error {
	return a.Nack(0, false, requeue)
}

type fakeMachine struct {
	jobs          map[uuid.UUID]*entity.DeletionJob
	externalDone  int
	localDone     int
	failedReasons map[uuid.UUID]string
}

func newFakeMachine(job *entity.DeletionJob) *fakeMachine {
	return &fakeMachine{
		jobs:          map[uuid.UUID]*entity.DeletionJob{job.ID: job},
		failedReasons: map[uuid.UUID]string{},
	}
}

func (m *fakeMachine) GetStatus(_ context.Context, jobID uuid.UUID) (*entity.DeletionJob, error) {
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, workflow.ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

func (m *fakeMachine) CompleteExternalPhase(_ context.Context, jobID uuid.UUID) (*entity.DeletionJob, error) {
	m.externalDone++
	m.jobs[jobID].Status = entity.DeletionStatusLocalCleanup
	return m.jobs[jobID], nil
}

func (m *fakeMachine) CompleteLocalPhase(_ context.Context, jobID uuid.UUID) (*entity.DeletionJob, error) {
	m.localDone++
	m.jobs[jobID].Status = entity.DeletionStatusCompleted
	return m.jobs[jobID], nil
}

func (m *fakeMachine) FailJob(_ context.Context, jobID uuid.UUID, reason string) error {
	m.jobs[jobID].Status = entity.DeletionStatusFailed
	m.failedReasons[jobID] = reason
	return nil
}

func (m *fakeMachine) SweepAbandoned(context.Context) (int, error) {
	return 0, nil
}

type fakeRunner struct {
	externalErr   error
	localErr      error
	externalCalls int
	localCalls    int
}

func (r *fakeRunner) RunExternalPhase(_ context.Context, _ uuid.UUID) error {
	r.externalCalls++
	return r.externalErr
}

func (r *fakeRunner) RunLocalPhase(_ context.Context, _ *entity.DeletionJob) error {
	r.localCalls++
	return r.localErr
}

type nopLogger struct{}

func (nopLogger) InfoWithContextf(context.Context, string, ...interface{})         {}
func (nopLogger) WarningWithContextf(context.Context, string, ...interface{})      {}
func (nopLogger) ErrorWithContextf(context.Context, error, string, ...interface{}) {}

func newTestConsumer(machine StateMachine, runner PhaseRunner) *DeletionConsumer {
	return &DeletionConsumer{
		logger:     nopLogger{},
		machine:    machine,
		runner:     runner,
		maxRetries: 3,
		retryDelay: 0,
	}
}

func phaseDelivery(t *testing.T, job *entity.DeletionJob, ack *fakeAcknowledger) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(produce.CleanupPhaseMessage{
		JobID:     job.ID.String(),
		AccountID: job.AccountID.String(),
		Timestamp: time.Now().Unix(),
	})
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, Body: body}
}

func testJob(status entity.DeletionJobStatus) *entity.DeletionJob {
	return &entity.DeletionJob{
		ID:           uuid.New(),
		AccountID:    uuid.New(),
		RequestedBy:  uuid.New(),
		Status:       status,
		DataHandling: entity.DataHandlingDownloadSnapshot,
	}
}

func TestExternalCleanupSuccess(t *testing.T) {
	job := testJob(entity.DeletionStatusExternalCleanup)
	machine := newFakeMachine(job)
	runner := &fakeRunner{}
	consumer := newTestConsumer(machine, runner)
	ack := &fakeAcknowledger{}

	consumer.handleExternalCleanup(context.Background(), phaseDelivery(t, job, ack))

	assert.Equal(t, 1, runner.externalCalls)
	assert.Equal(t, 1, machine.externalDone)
	assert.True(t, ack.acked)
	assert.False(t, ack.nacked)
	assert.Equal(t, entity.DeletionStatusLocalCleanup, machine.jobs[job.ID].Status)
}

func TestExternalCleanupRetryBudgetExhausted(t *testing.T) {
	job := testJob(entity.DeletionStatusExternalCleanup)
	machine := newFakeMachine(job)
	runner := &fakeRunner{externalErr: errors.New("iam backend down")}
	consumer := newTestConsumer(machine, runner)
	ack := &fakeAcknowledger{}

	consumer.handleExternalCleanup(context.Background(), phaseDelivery(t, job, ack))

	assert.Equal(t, consumer.maxRetries, runner.externalCalls)
	assert.Zero(t, machine.externalDone, "phase must not be recorded as complete")
	assert.Zero(t, runner.localCalls, "local phase never starts after external failure")
	assert.Equal(t, entity.DeletionStatusFailed, machine.jobs[job.ID].Status)
	assert.Contains(t, machine.failedReasons[job.ID], "iam backend down")
	assert.True(t, ack.acked, "a failed job is acked, not requeued")
	assert.False(t, ack.nacked)
}

func TestExternalCleanupRecoversOnRetry(t *testing.T) {
	job := testJob(entity.DeletionStatusExternalCleanup)
	machine := newFakeMachine(job)
	runner := &fakeRunner{externalErr: errors.New("transient")}
	consumer := newTestConsumer(machine, runner)
	ack := &fakeAcknowledger{}

	// flip to success after the first attempt
	recovering := &recoveringRunner{inner: runner, failuresLeft: 1}
	consumer.runner = recovering

	consumer.handleExternalCleanup(context.Background(), phaseDelivery(t, job, ack))

	assert.Equal(t, 2, recovering.calls)
	assert.Equal(t, 1, machine.externalDone)
	assert.True(t, ack.acked)
	assert.Empty(t, machine.failedReasons)
}

type recoveringRunner struct {
	inner        *fakeRunner
	failuresLeft int
	calls        int
}

func (r *recoveringRunner) RunExternalPhase(_ context.Context, _ uuid.UUID) error {
	r.calls++
	if r.failuresLeft > 0 {
		r.failuresLeft--
		return errors.New("transient")
	}
	return nil
}

func (r *recoveringRunner) RunLocalPhase(ctx context.Context, job *entity.DeletionJob) error {
	return r.inner.RunLocalPhase(ctx, job)
}

func TestExternalCleanupSkipsWrongStatus(t *testing.T) {
	for _, status := range []entity.DeletionJobStatus{
		entity.DeletionStatusLocalCleanup,
		entity.DeletionStatusCompleted,
		entity.DeletionStatusFailed,
	} {
		t.Run(string(status), func(t *testing.T) {
			job := testJob(status)
			machine := newFakeMachine(job)
			runner := &fakeRunner{}
			consumer := newTestConsumer(machine, runner)
			ack := &fakeAcknowledger{}

			consumer.handleExternalCleanup(context.Background(), phaseDelivery(t, job, ack))

			assert.Zero(t, runner.externalCalls, "duplicate dispatch must not rerun the phase")
			assert.True(t, ack.acked)
			assert.Equal(t, status, machine.jobs[job.ID].Status)
		})
	}
}

func TestLocalCleanupSuccess(t *testing.T) {
	job := testJob(entity.DeletionStatusLocalCleanup)
	machine := newFakeMachine(job)
	runner := &fakeRunner{}
	consumer := newTestConsumer(machine, runner)
	ack := &fakeAcknowledger{}

	consumer.handleLocalCleanup(context.Background(), phaseDelivery(t, job, ack))

	assert.Equal(t, 1, runner.localCalls)
	assert.Equal(t, 1, machine.localDone)
	assert.True(t, ack.acked)
	assert.Equal(t, entity.DeletionStatusCompleted, machine.jobs[job.ID].Status)
}

func TestLocalCleanupRetryBudgetExhausted(t *testing.T) {
	job := testJob(entity.DeletionStatusLocalCleanup)
	machine := newFakeMachine(job)
	runner := &fakeRunner{localErr: errors.New("purge failed")}
	consumer := newTestConsumer(machine, runner)
	ack := &fakeAcknowledger{}

	consumer.handleLocalCleanup(context.Background(), phaseDelivery(t, job, ack))

	assert.Equal(t, consumer.maxRetries, runner.localCalls)
	assert.Equal(t, entity.DeletionStatusFailed, machine.jobs[job.ID].Status)
	assert.Contains(t, machine.failedReasons[job.ID], "purge failed")
	assert.True(t, ack.acked)
}

func TestLocalCleanupSkipsCompletedJob(t *testing.T) {
	job := testJob(entity.DeletionStatusCompleted)
	machine := newFakeMachine(job)
	runner := &fakeRunner{}
	consumer := newTestConsumer(machine, runner)
	ack := &fakeAcknowledger{}

	consumer.handleLocalCleanup(context.Background(), phaseDelivery(t, job, ack))

	assert.Zero(t, runner.localCalls)
	assert.Zero(t, machine.localDone)
	assert.True(t, ack.acked)
}

func TestBackoffAbortsOnShutdown(t *testing.T) {
	job := testJob(entity.DeletionStatusExternalCleanup)
	machine := newFakeMachine(job)
	runner := &fakeRunner{externalErr: errors.New("iam backend down")}
	consumer := newTestConsumer(machine, runner)
	consumer.retryDelay = time.Hour
	ack := &fakeAcknowledger{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		consumer.handleExternalCleanup(ctx, phaseDelivery(t, job, ack))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("handler kept sleeping through context cancellation")
	}

	assert.Equal(t, 1, runner.externalCalls, "no further attempts after shutdown")
	assert.True(t, ack.nacked)
	assert.True(t, ack.requeue, "an interrupted message goes back to the queue")
	assert.NotEqual(t, entity.DeletionStatusFailed, machine.jobs[job.ID].Status,
		"shutdown must not burn the retry budget")
}

func TestMalformedMessageIsDropped(t *testing.T) {
	job := testJob(entity.DeletionStatusExternalCleanup)
	machine := newFakeMachine(job)
	runner := &fakeRunner{}
	consumer := newTestConsumer(machine, runner)
	ack := &fakeAcknowledger{}

	consumer.handleExternalCleanup(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		Body:         []byte("not json"),
	})

	assert.True(t, ack.nacked)
	assert.False(t, ack.requeue, "a malformed message is never requeued")
	assert.Zero(t, runner.externalCalls)
}
