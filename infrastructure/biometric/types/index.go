package types

import (
	"context"
	"time"
)

// RGB is a single 8-bit pixel.
type RGB struct {
	R uint8
	G uint8
	B uint8
}

// Luminance returns the Rec. 601 luma of the pixel on a 0-255 scale.
func (p RGB) Luminance() float64 {
	return 0.299*float64(p.R) + 0.587*float64(p.G) + 0.114*float64(p.B)
}

// FrameBuffer is a read-only pixel grid addressed by (x, y) with the origin at the top left.
// Out of range coordinates are clamped to the nearest edge pixel.
type FrameBuffer interface {
	Width() int
	Height() int
	Pixel(x, y int) RGB
}

type Frame struct {
	Buffer    FrameBuffer
	Timestamp time.Time
}

// FrameSource hands out camera frames for the lifetime of one session.
// Open acquires the device, Close releases it and must be safe to call after a failed Open.
type FrameSource interface {
	Open(ctx context.Context) error
	Next(ctx context.Context) (*Frame, error)
	Close() error
}

// LandmarkProvider runs face detection on a frame.
// A nil detection with a nil error means no face was found.
type LandmarkProvider interface {
	Detect(ctx context.Context, frame *Frame) (*Detection, error)
}

type ActionKey string

const (
	ActionTurnLeft      ActionKey = "turn_left"
	ActionTurnRight     ActionKey = "turn_right"
	ActionSmile         ActionKey = "smile"
	ActionOpenMouth     ActionKey = "open_mouth"
	ActionRaiseEyebrows ActionKey = "raise_eyebrows"
	ActionNod           ActionKey = "nod"
)

type ChallengeAction struct {
	Key   ActionKey `json:"key"`
	Label string    `json:"label"`
	Icon  string    `json:"icon"`
}

// EventSink receives progress while a session runs. Implementations must not block.
type EventSink interface {
	OnStepChange(stepIndex int, sequence []ChallengeAction)
	OnLog(message string)
	OnStatusChange(message string)
}

type IndicatorDiagnostic struct {
	Runs          int                `json:"runs"`
	Failures      int                `json:"failures"`
	FailFast      bool               `json:"fail_fast"`
	WeightApplied float64            `json:"weight_applied"`
	LastIsReal    bool               `json:"last_is_real"`
	LastMetrics   map[string]float64 `json:"last_metrics,omitempty"`
}

// SessionResult is the terminal verdict of a liveness session.
type SessionResult struct {
	SessionID       string                         `json:"session_id"`
	Passed          bool                           `json:"passed"`
	Indicators      map[string]IndicatorDiagnostic `json:"indicators"`
	TotalRiskScore  float64                        `json:"total_risk_score"`
	DurationMs      int64                          `json:"duration_ms"`
	FailureKind     string                         `json:"failure_kind,omitempty"`
	FailureReason   *string                        `json:"failure_reason"`
	Contributors    []string                       `json:"contributors,omitempty"`
	Sequence        []ChallengeAction              `json:"sequence"`
	CompletedSteps  int                            `json:"completed_steps"`
	FramesProcessed int                            `json:"frames_processed"`
}
