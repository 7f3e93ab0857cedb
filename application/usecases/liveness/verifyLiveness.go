package liveness_usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gateman.io/infrastructure/biometric/liveness"
	"gateman.io/infrastructure/biometric/types"
	"gateman.io/infrastructure/logger"
	queue_tasks "gateman.io/infrastructure/message_queue/tasks"
	mq_types "gateman.io/infrastructure/message_queue/types"
	"gateman.io/infrastructure/validator"
)

var ErrSubjectLocked = errors.New("subject is locked out after a spoof attempt")

type SessionRunner interface {
	RunSession(ctx context.Context, source types.FrameSource, sink types.EventSink) (*types.SessionResult, error)
}

type LockoutRepository interface {
	LockedFor(ctx context.Context, subject string) time.Duration
	Lock(ctx context.Context, subject string, reason string, ttl time.Duration) bool
	AddStrike(ctx context.Context, subject string, window time.Duration) int64
	ClearStrikes(ctx context.Context, subject string) bool
}

// Policy decides how failed sessions lock a subject out.
type Policy struct {
	LockoutTTL   time.Duration `env:"LIVENESS_LOCKOUT_TTL" validate:"gt=0"`
	StrikeWindow time.Duration `env:"LIVENESS_STRIKE_WINDOW" validate:"gt=0"`
	// Cumulative risk failures inside StrikeWindow that trigger a lockout.
	MaxStrikes int64 `env:"LIVENESS_MAX_STRIKES" validate:"gte=1"`
}

func DefaultPolicy() Policy {
	return Policy{
		LockoutTTL:   15 * time.Minute,
		StrikeWindow: time.Hour,
		MaxStrikes:   3,
	}
}

type VerifyLivenessUseCase struct {
	Runner SessionRunner
	// Lockouts and Queue are optional.
	Lockouts LockoutRepository
	Queue    mq_types.TaskQueueBroker
	Policy   Policy
}

// Execute runs one liveness session for subjectID unless the subject is locked out.
// Failed sessions are published for audit and may lock the subject out.
func (uc *VerifyLivenessUseCase) Execute(ctx context.Context, subjectID string, source types.FrameSource, sink types.EventSink) (*types.SessionResult, error) {
	if errs := validator.ValidatorInstance.ValidateStruct(uc.Policy); errs != nil {
		return nil, fmt.Errorf("%w: %w", liveness.ErrInvalidConfig, errors.Join(*errs...))
	}
	if uc.Lockouts != nil && subjectID != "" {
		if remaining := uc.Lockouts.LockedFor(ctx, subjectID); remaining > 0 {
			logger.Warning("liveness attempt rejected, subject locked out", logger.LoggerOptions{
				Key:  "subject",
				Data: subjectID,
			}, logger.LoggerOptions{
				Key:  "remaining",
				Data: remaining.String(),
			})
			return nil, fmt.Errorf("%w: retry in %s", ErrSubjectLocked, remaining.Round(time.Second))
		}
	}

	result, err := uc.Runner.RunSession(ctx, source, sink)
	if err == nil {
		if uc.Lockouts != nil && subjectID != "" {
			uc.Lockouts.ClearStrikes(ctx, subjectID)
		}
		return result, nil
	}

	uc.applyLockout(ctx, subjectID, err)
	uc.publishAudit(subjectID, result)
	return result, err
}

func (uc *VerifyLivenessUseCase) applyLockout(ctx context.Context, subjectID string, err error) {
	if uc.Lockouts == nil || subjectID == "" {
		return
	}
	switch {
	case errors.Is(err, liveness.ErrHighConfidenceSpoofDetected):
		uc.lock(ctx, subjectID, string(liveness.FailureHighConfidenceSpoof))
	case errors.Is(err, liveness.ErrCumulativeRiskExceeded):
		strikes := uc.Lockouts.AddStrike(ctx, subjectID, uc.Policy.StrikeWindow)
		if strikes >= uc.Policy.MaxStrikes {
			uc.lock(ctx, subjectID, string(liveness.FailureCumulativeRisk))
			uc.Lockouts.ClearStrikes(ctx, subjectID)
		}
	}
}

func (uc *VerifyLivenessUseCase) lock(ctx context.Context, subjectID string, reason string) {
	if !uc.Lockouts.Lock(ctx, subjectID, reason, uc.Policy.LockoutTTL) {
		logger.Error("failed to lock out subject", logger.LoggerOptions{
			Key:  "subject",
			Data: subjectID,
		})
		return
	}
	logger.Info("subject locked out", logger.LoggerOptions{
		Key:  "subject",
		Data: subjectID,
	}, logger.LoggerOptions{
		Key:  "reason",
		Data: reason,
	})
}

func (uc *VerifyLivenessUseCase) publishAudit(subjectID string, result *types.SessionResult) {
	if uc.Queue == nil || result == nil {
		return
	}
	task, err := queue_tasks.NewLivenessAuditTask(queue_tasks.LivenessAuditPayload{
		SubjectID:  subjectID,
		Result:     *result,
		RecordedAt: time.Now().UTC(),
	})
	if err != nil {
		logger.Error("an error occured while building liveness audit task", logger.LoggerOptions{
			Key:  "error",
			Data: err,
		})
		return
	}
	if err := uc.Queue.Enqueue(task); err != nil {
		logger.Error("an error occured while publishing liveness audit", logger.LoggerOptions{
			Key:  "error",
			Data: err,
		}, logger.LoggerOptions{
			Key:  "session_id",
			Data: result.SessionID,
		})
	}
}
