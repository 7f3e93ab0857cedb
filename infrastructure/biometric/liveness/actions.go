package liveness

import (
	"math"

	"gateman.io/infrastructure/biometric/types"
)

type nodPhase int

const (
	nodUncalibrated nodPhase = iota
	nodAwaitingDown
	nodAwaitingReturn
	nodDone
)

// ActionState accumulates evidence for the action currently demanded.
// It is cleared on every transition; session-wide history lives in sessionState.
type ActionState struct {
	Frames             int
	HorizontalMovement float64
	VerticalMovement   float64

	lastNose    types.Point
	hasLastNose bool
	nod         nodPhase
	nodBaseline float64
}

// Observe folds one detected frame into the counters before the action is evaluated.
func (s *ActionState) Observe(det *types.Detection) {
	s.Frames++
	nose := det.NoseTip()
	if s.hasLastNose {
		s.HorizontalMovement += math.Abs(nose.X - s.lastNose.X)
		s.VerticalMovement += math.Abs(nose.Y - s.lastNose.Y)
	}
	s.lastNose = nose
	s.hasLastNose = true
}

func (s *ActionState) Reset() {
	*s = ActionState{}
}

// NodCalibrated reports whether the nod baseline has been captured.
func (s *ActionState) NodCalibrated() bool {
	return s.nod != nodUncalibrated
}

type Verifier struct {
	thresholds ActionThresholds
}

func NewVerifier(thresholds ActionThresholds) *Verifier {
	return &Verifier{thresholds: thresholds}
}

// Evaluate reports whether det satisfies action given the accumulated state.
// Only the nod rule mutates state (its phase machine).
func (v *Verifier) Evaluate(action types.ActionKey, det *types.Detection, state *ActionState) bool {
	if det == nil || state == nil {
		return false
	}
	switch action {
	case types.ActionTurnLeft:
		return v.turn(det, state, 1)
	case types.ActionTurnRight:
		return v.turn(det, state, -1)
	case types.ActionSmile:
		return v.smile(det)
	case types.ActionOpenMouth:
		return v.openMouth(det, state)
	case types.ActionRaiseEyebrows:
		return v.raiseEyebrows(det, state)
	case types.ActionNod:
		return v.nod(det, state)
	}
	return false
}

// Yaw is the nose offset from the box center normalised by box width.
// Positive means the nose moved toward the right of the image, which is the
// subject's left on an unmirrored camera.
func Yaw(det *types.Detection) float64 {
	if det.Box.Width <= 0 {
		return 0
	}
	return (det.NoseTip().X - det.Box.Center().X) / det.Box.Width
}

func (v *Verifier) turn(det *types.Detection, state *ActionState, direction float64) bool {
	if det.Box.Width <= 0 {
		return false
	}
	yaw := Yaw(det) * direction
	movement := state.HorizontalMovement / det.Box.Width
	return yaw > v.thresholds.TurnYaw &&
		movement > v.thresholds.TurnMovement &&
		state.Frames >= v.thresholds.TurnMinFrames
}

// SmileScore is happy probability plus the mouth aspect (width over height).
func SmileScore(det *types.Detection) float64 {
	width, height := det.MouthSize()
	if height <= 0 {
		return det.Expression(types.ExpressionHappy)
	}
	return det.Expression(types.ExpressionHappy) + width/height
}

func (v *Verifier) smile(det *types.Detection) bool {
	return SmileScore(det) > v.thresholds.SmileScore
}

// MouthOpenRatio is mouth height over mouth width.
func MouthOpenRatio(det *types.Detection) float64 {
	width, height := det.MouthSize()
	if width <= 0 {
		return 0
	}
	return height / width
}

func (v *Verifier) openMouth(det *types.Detection, state *ActionState) bool {
	return MouthOpenRatio(det) > v.thresholds.OpenMouthRatio &&
		state.Frames >= v.thresholds.OpenMouthMinFrames
}

// NormalizedEyeOpening averages both eyes' lid distance relative to box height.
func NormalizedEyeOpening(det *types.Detection) float64 {
	if det.Box.Height <= 0 {
		return 0
	}
	avg := (types.EyeOpening(det.LeftEye) + types.EyeOpening(det.RightEye)) / 2
	return avg / det.Box.Height
}

func (v *Verifier) raiseEyebrows(det *types.Detection, state *ActionState) bool {
	return det.Expression(types.ExpressionSurprised) > v.thresholds.SurprisedProbability &&
		NormalizedEyeOpening(det) > v.thresholds.EyeOpening &&
		state.Frames >= v.thresholds.EyebrowMinFrames
}

// nod calibrates on its first frame, waits for the nose to drop past NodDown,
// then succeeds once when it comes back near the baseline with enough total travel.
func (v *Verifier) nod(det *types.Detection, state *ActionState) bool {
	if det.Box.Height <= 0 {
		return false
	}
	noseY := det.NoseTip().Y
	offset := (noseY - state.nodBaseline) / det.Box.Height

	switch state.nod {
	case nodUncalibrated:
		state.nodBaseline = noseY
		state.nod = nodAwaitingDown
		return false
	case nodAwaitingDown:
		if offset > v.thresholds.NodDown {
			state.nod = nodAwaitingReturn
		}
		return false
	case nodAwaitingReturn:
		travel := state.VerticalMovement / det.Box.Height
		if offset < v.thresholds.NodReturn && travel > v.thresholds.NodMovement {
			state.nod = nodDone
			return true
		}
		return false
	}
	return false
}
