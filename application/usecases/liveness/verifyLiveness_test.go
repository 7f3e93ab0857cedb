package liveness_usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gateman.io/infrastructure/biometric/liveness"
	"gateman.io/infrastructure/biometric/types"
	queue_tasks "gateman.io/infrastructure/message_queue/tasks"
	mq_types "gateman.io/infrastructure/message_queue/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	result *types.SessionResult
	err    error
	calls  int
}

func (f *fakeRunner) RunSession(context.Context, types.FrameSource, types.EventSink) (*types.SessionResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeLockouts struct {
	locked   time.Duration
	strikes  int64
	locks    []string
	cleared  int
	lockTTL  time.Duration
	lockFail bool
}

func (f *fakeLockouts) LockedFor(context.Context, string) time.Duration { return f.locked }

func (f *fakeLockouts) Lock(_ context.Context, _ string, reason string, ttl time.Duration) bool {
	if f.lockFail {
		return false
	}
	f.locks = append(f.locks, reason)
	f.lockTTL = ttl
	return true
}

func (f *fakeLockouts) AddStrike(context.Context, string, time.Duration) int64 {
	f.strikes++
	return f.strikes
}

func (f *fakeLockouts) ClearStrikes(context.Context, string) bool {
	f.cleared++
	f.strikes = 0
	return true
}

type fakeQueue struct {
	tasks []mq_types.QueueTask
	err   error
}

func (f *fakeQueue) Start(context.Context) error { return nil }
func (f *fakeQueue) Close() error                { return nil }

func (f *fakeQueue) Enqueue(task mq_types.QueueTask) error {
	f.tasks = append(f.tasks, task)
	return f.err
}

func failed(kind liveness.FailureKind, score float64) (*types.SessionResult, error) {
	reason := string(kind)
	result := &types.SessionResult{
		SessionID:      "sess-" + string(kind),
		FailureKind:    string(kind),
		FailureReason:  &reason,
		TotalRiskScore: score,
	}
	return result, &liveness.SessionError{Kind: kind, Score: score}
}

func newUseCase(runner *fakeRunner, lockouts *fakeLockouts, queue *fakeQueue) *VerifyLivenessUseCase {
	uc := &VerifyLivenessUseCase{Runner: runner, Policy: DefaultPolicy()}
	if lockouts != nil {
		uc.Lockouts = lockouts
	}
	if queue != nil {
		uc.Queue = queue
	}
	return uc
}

func TestExecutePassClearsStrikes(t *testing.T) {
	runner := &fakeRunner{result: &types.SessionResult{SessionID: "ok", Passed: true}}
	lockouts := &fakeLockouts{strikes: 2}
	queue := &fakeQueue{}

	result, err := newUseCase(runner, lockouts, queue).Execute(context.Background(), "user-1", nil, nil)

	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.Equal(t, 1, lockouts.cleared)
	assert.Zero(t, lockouts.strikes)
	assert.Empty(t, queue.tasks, "passing sessions are not audited")
}

func TestExecuteRejectsLockedSubject(t *testing.T) {
	runner := &fakeRunner{}
	lockouts := &fakeLockouts{locked: 90 * time.Second}

	result, err := newUseCase(runner, lockouts, nil).Execute(context.Background(), "user-1", nil, nil)

	require.ErrorIs(t, err, ErrSubjectLocked)
	assert.Contains(t, err.Error(), "retry in 1m30s")
	assert.Nil(t, result)
	assert.Zero(t, runner.calls)
}

func TestExecuteHighConfidenceLocksImmediately(t *testing.T) {
	result, sessionErr := failed(liveness.FailureHighConfidenceSpoof, 40)
	runner := &fakeRunner{result: result, err: sessionErr}
	lockouts := &fakeLockouts{}
	queue := &fakeQueue{}

	got, err := newUseCase(runner, lockouts, queue).Execute(context.Background(), "user-1", nil, nil)

	require.ErrorIs(t, err, liveness.ErrHighConfidenceSpoofDetected)
	assert.Same(t, result, got)
	assert.Equal(t, []string{string(liveness.FailureHighConfidenceSpoof)}, lockouts.locks)
	assert.Equal(t, 15*time.Minute, lockouts.lockTTL)
	assert.Zero(t, lockouts.strikes)
}

func TestExecuteCumulativeRiskStrikes(t *testing.T) {
	lockouts := &fakeLockouts{}
	uc := newUseCase(&fakeRunner{}, lockouts, nil)

	for attempt := 1; attempt <= 3; attempt++ {
		result, sessionErr := failed(liveness.FailureCumulativeRisk, 65)
		uc.Runner = &fakeRunner{result: result, err: sessionErr}

		_, err := uc.Execute(context.Background(), "user-1", nil, nil)
		require.ErrorIs(t, err, liveness.ErrCumulativeRiskExceeded)

		if attempt < 3 {
			assert.Empty(t, lockouts.locks, "attempt %d", attempt)
			assert.Equal(t, int64(attempt), lockouts.strikes)
		}
	}
	assert.Equal(t, []string{string(liveness.FailureCumulativeRisk)}, lockouts.locks)
	assert.Zero(t, lockouts.strikes, "strikes reset once the subject is locked")
}

func TestExecuteRetryableFailuresDoNotLock(t *testing.T) {
	for _, kind := range []liveness.FailureKind{
		liveness.FailureSequenceTimeout,
		liveness.FailureCancelled,
		liveness.FailureFrameSourceUnavailable,
	} {
		t.Run(string(kind), func(t *testing.T) {
			result, sessionErr := failed(kind, 0)
			lockouts := &fakeLockouts{}
			queue := &fakeQueue{}

			_, err := newUseCase(&fakeRunner{result: result, err: sessionErr}, lockouts, queue).
				Execute(context.Background(), "user-1", nil, nil)

			require.Error(t, err)
			assert.Empty(t, lockouts.locks)
			assert.Zero(t, lockouts.strikes)
			assert.Len(t, queue.tasks, 1)
		})
	}
}

func TestExecutePublishesAudit(t *testing.T) {
	result, sessionErr := failed(liveness.FailureHighConfidenceSpoof, 50)
	queue := &fakeQueue{}

	_, err := newUseCase(&fakeRunner{result: result, err: sessionErr}, nil, queue).
		Execute(context.Background(), "user-1", nil, nil)
	require.Error(t, err)

	require.Len(t, queue.tasks, 1)
	task := queue.tasks[0]
	assert.Equal(t, queue_tasks.HandleLivenessAuditTaskName, task.Name)

	var payload queue_tasks.LivenessAuditPayload
	require.NoError(t, json.Unmarshal(task.Payload, &payload))
	assert.Equal(t, "user-1", payload.SubjectID)
	assert.Equal(t, result.SessionID, payload.Result.SessionID)
	assert.Equal(t, 50.0, payload.Result.TotalRiskScore)
	assert.False(t, payload.RecordedAt.IsZero())
}

func TestExecuteSurvivesQueueAndLockFailures(t *testing.T) {
	result, sessionErr := failed(liveness.FailureHighConfidenceSpoof, 40)
	lockouts := &fakeLockouts{lockFail: true}
	queue := &fakeQueue{err: errors.New("redis down")}

	got, err := newUseCase(&fakeRunner{result: result, err: sessionErr}, lockouts, queue).
		Execute(context.Background(), "user-1", nil, nil)

	require.ErrorIs(t, err, liveness.ErrHighConfidenceSpoofDetected)
	assert.Same(t, result, got)
	assert.Len(t, queue.tasks, 1)
}

func TestExecuteWithoutSubjectSkipsLockouts(t *testing.T) {
	result, sessionErr := failed(liveness.FailureHighConfidenceSpoof, 40)
	lockouts := &fakeLockouts{locked: time.Hour}

	_, err := newUseCase(&fakeRunner{result: result, err: sessionErr}, lockouts, nil).
		Execute(context.Background(), "", nil, nil)

	require.ErrorIs(t, err, liveness.ErrHighConfidenceSpoofDetected)
	assert.Empty(t, lockouts.locks)
}

func TestExecuteRejectsInvalidPolicy(t *testing.T) {
	runner := &fakeRunner{}
	uc := newUseCase(runner, nil, nil)
	uc.Policy.MaxStrikes = 0

	_, err := uc.Execute(context.Background(), "user-1", nil, nil)

	require.ErrorIs(t, err, liveness.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "MaxStrikes")
	assert.Zero(t, runner.calls)
}
