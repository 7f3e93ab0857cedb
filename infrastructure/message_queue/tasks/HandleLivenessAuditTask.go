package queue_tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gateman.io/infrastructure/biometric/types"
	"gateman.io/infrastructure/database/repository/cache"
	"gateman.io/infrastructure/logger"
	mq_types "gateman.io/infrastructure/message_queue/types"
	"github.com/hibiken/asynq"
)

var HandleLivenessAuditTaskName mq_types.Queues = "liveness_audit"

const auditRetention = 30 * 24 * time.Hour

type LivenessAuditPayload struct {
	SubjectID  string              `json:"subjectID"`
	Result     types.SessionResult `json:"result"`
	RecordedAt time.Time           `json:"recordedAt"`
}

type AuditRecorder interface {
	CreateEntry(ctx context.Context, key string, payload interface{}, ttl time.Duration) bool
}

var auditRecorder AuditRecorder = &cache.RedisRepository{}

func NewLivenessAuditTask(payload LivenessAuditPayload) (mq_types.QueueTask, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return mq_types.QueueTask{}, err
	}
	return mq_types.QueueTask{
		Name:     HandleLivenessAuditTaskName,
		Payload:  data,
		Priority: mq_types.Low,
		TimeOut:  30,
		MaxRetry: 5,
	}, nil
}

func auditKey(payload LivenessAuditPayload) string {
	return fmt.Sprintf("liveness:audit:%s:%s", payload.SubjectID, payload.Result.SessionID)
}

func HandleLivenessAuditTask(ctx context.Context, t *asynq.Task) error {
	var payload LivenessAuditPayload
	err := json.Unmarshal(t.Payload(), &payload)
	if err != nil {
		logger.Error("an error occured while unmarshalling liveness audit payload", logger.LoggerOptions{
			Key:  "error",
			Data: err,
		})
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	logger.Info("liveness audit received", logger.LoggerOptions{
		Key:  "subject",
		Data: payload.SubjectID,
	}, logger.LoggerOptions{
		Key:  "session_id",
		Data: payload.Result.SessionID,
	}, logger.LoggerOptions{
		Key:  "failure_kind",
		Data: payload.Result.FailureKind,
	}, logger.LoggerOptions{
		Key:  "risk_score",
		Data: payload.Result.TotalRiskScore,
	})
	if !auditRecorder.CreateEntry(ctx, auditKey(payload), t.Payload(), auditRetention) {
		return fmt.Errorf("could not store liveness audit for session %s", payload.Result.SessionID)
	}
	return nil
}
