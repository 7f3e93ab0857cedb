package liveness

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSequenceTimeout means no face or an incomplete action sequence within the time budget.
	// Callers may retry.
	ErrSequenceTimeout = errors.New("liveness sequence timed out")
	// ErrHighConfidenceSpoofDetected means a fail-fast indicator (texture or device presentation) fired.
	ErrHighConfidenceSpoofDetected = errors.New("high confidence spoof detected")
	// ErrCumulativeRiskExceeded means the accumulated risk score reached the block threshold.
	ErrCumulativeRiskExceeded = errors.New("cumulative spoof risk exceeded")
	ErrSessionCancelled       = errors.New("liveness session cancelled")
	ErrFrameSourceUnavailable = errors.New("frame source unavailable")
	ErrInvalidConfig          = errors.New("invalid liveness config")
	ErrInvalidActionPool      = errors.New("invalid challenge action pool")
)

type FailureKind string

const (
	FailureSequenceTimeout        FailureKind = "sequence_timeout"
	FailureHighConfidenceSpoof    FailureKind = "high_confidence_spoof"
	FailureCumulativeRisk         FailureKind = "cumulative_risk_exceeded"
	FailureCancelled              FailureKind = "cancelled"
	FailureFrameSourceUnavailable FailureKind = "frame_source_unavailable"
	FailureInvalidConfig          FailureKind = "invalid_config"
)

var kindSentinels = map[FailureKind]error{
	FailureSequenceTimeout:        ErrSequenceTimeout,
	FailureHighConfidenceSpoof:    ErrHighConfidenceSpoofDetected,
	FailureCumulativeRisk:         ErrCumulativeRiskExceeded,
	FailureCancelled:              ErrSessionCancelled,
	FailureFrameSourceUnavailable: ErrFrameSourceUnavailable,
	FailureInvalidConfig:          ErrInvalidConfig,
}

// SessionError carries the failure kind plus the evidence that produced it.
// errors.Is matches it against the sentinel for its kind.
type SessionError struct {
	Kind         FailureKind
	Indicator    Indicator
	Score        float64
	Contributors []string
	Cause        error
}

func (e *SessionError) Error() string {
	sentinel := kindSentinels[e.Kind]
	if e.Cause != nil && errors.Is(e.Cause, sentinel) {
		return e.Cause.Error()
	}
	var b strings.Builder
	b.WriteString(sentinel.Error())
	if e.Indicator != "" {
		fmt.Fprintf(&b, " (indicator %s)", e.Indicator)
	}
	if e.Kind == FailureCumulativeRisk || e.Kind == FailureHighConfidenceSpoof {
		fmt.Fprintf(&b, " score=%.1f", e.Score)
	}
	if len(e.Contributors) > 0 {
		fmt.Fprintf(&b, " contributors=%s", strings.Join(e.Contributors, ","))
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *SessionError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

func (e *SessionError) Unwrap() error {
	return e.Cause
}
