package liveness

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"gateman.io/application/utils"
	"gateman.io/infrastructure/biometric/types"
	"gateman.io/infrastructure/logger"
	"gateman.io/infrastructure/metrics"
	"golang.org/x/sync/errgroup"
)

type SessionStatus string

const (
	StatusAwaitingFace     SessionStatus = "awaiting_face"
	StatusActionInProgress SessionStatus = "action_in_progress"
	StatusActionTransition SessionStatus = "action_transition"
	StatusFinalChecks      SessionStatus = "final_checks"
	StatusPassed           SessionStatus = "passed"
	StatusFailed           SessionStatus = "failed"
)

const maxFinalFrameAttempts = 5

type Option func(*Engine)

// WithActionPool replaces DefaultActionPool.
func WithActionPool(pool []types.ChallengeAction) Option {
	return func(e *Engine) {
		e.pool = pool
	}
}

// WithSeed makes every session draw its challenge sequence from the same seed.
func WithSeed(seed uint64) Option {
	return func(e *Engine) {
		e.newRand = func() *rand.Rand { return NewSeededRand(seed) }
	}
}

// Engine runs liveness sessions. It holds no per-session state and may be reused,
// including from several goroutines, each call to RunSession owning its own state.
type Engine struct {
	config   Config
	detector types.LandmarkProvider
	verifier *Verifier
	pool     []types.ChallengeAction
	newRand  func() *rand.Rand
}

func NewEngine(detector types.LandmarkProvider, config Config, opts ...Option) *Engine {
	e := &Engine{
		config:   config,
		detector: detector,
		verifier: NewVerifier(config.Actions),
		pool:     DefaultActionPool,
		newRand:  NewChallengeRand,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunLivenessSession is a one-shot helper around NewEngine(...).RunSession.
func RunLivenessSession(ctx context.Context, source types.FrameSource, detector types.LandmarkProvider, config Config, sink types.EventSink) (*types.SessionResult, error) {
	return NewEngine(detector, config).RunSession(ctx, source, sink)
}

type sessionState struct {
	id        string
	status    SessionStatus
	sequence  *ChallengeSequence
	action    ActionState
	frames    int
	rgb       []RGBSample
	noses     []types.Point
	risk      *Aggregator
	diag      map[Indicator]*types.IndicatorDiagnostic
	eyeChecks int
	eyeFails  int
	frameErrs int
	notify    notifier
}

// RunSession blocks until the subject passes, fails or the session times out.
// The result is never nil; the error is nil exactly when the session passed and is
// otherwise a *SessionError. The frame source is closed on every return path.
func (e *Engine) RunSession(ctx context.Context, source types.FrameSource, sink types.EventSink) (*types.SessionResult, error) {
	start := time.Now()
	if sink == nil {
		sink = NopSink{}
	}
	st := &sessionState{
		id:   utils.GenerateUULDString(),
		risk: NewAggregator(e.config.BlockThreshold),
		diag: make(map[Indicator]*types.IndicatorDiagnostic),
	}
	st.notify = notifier{sink: sink, sessionID: st.id}

	if err := e.config.Validate(); err != nil {
		return e.finish(st, &SessionError{Kind: FailureInvalidConfig, Cause: err}, start)
	}
	if e.detector == nil || source == nil {
		return e.finish(st, &SessionError{Kind: FailureInvalidConfig, Cause: fmt.Errorf("frame source and landmark provider are required")}, start)
	}
	seq, err := GenerateSequence(e.pool, e.config.ActionCount, e.newRand())
	if err != nil {
		return e.finish(st, &SessionError{Kind: FailureInvalidConfig, Cause: err}, start)
	}
	st.sequence = seq

	logger.Info("liveness session started", logger.LoggerOptions{
		Key:  "session_id",
		Data: st.id,
	}, logger.LoggerOptions{
		Key:  "sequence",
		Data: seq.Actions(),
	})

	if err := source.Open(ctx); err != nil {
		closeSource(st.id, source)
		return e.finish(st, &SessionError{Kind: FailureFrameSourceUnavailable, Cause: err}, start)
	}
	defer closeSource(st.id, source)

	st.status = StatusAwaitingFace
	st.notify.status("Position your face in the frame")
	st.notify.stepChange(0, seq.Actions())

	loopCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	outcome := e.loop(ctx, loopCtx, source, st)
	if outcome == nil {
		outcome = e.finalChecks(ctx, source, st)
	}
	return e.finish(st, outcome, start)
}

// loop returns nil once every action has been performed.
func (e *Engine) loop(ctx, loopCtx context.Context, source types.FrameSource, st *sessionState) *SessionError {
	for {
		if ctx.Err() != nil {
			return &SessionError{Kind: FailureCancelled, Cause: ctx.Err()}
		}
		if loopCtx.Err() != nil {
			return &SessionError{Kind: FailureSequenceTimeout, Cause: fmt.Errorf("completed %d of %d actions in %s", st.sequence.Cursor(), st.sequence.Len(), e.config.Timeout)}
		}

		frame, err := nextFrame(loopCtx, source)
		if err != nil {
			if loopCtx.Err() != nil {
				continue
			}
			st.frameErrs++
			logger.Warning("frame acquisition failed", logger.LoggerOptions{
				Key:  "session_id",
				Data: st.id,
			}, logger.LoggerOptions{
				Key:  "error",
				Data: err,
			})
			if st.frameErrs >= e.config.MaxFrameErrors {
				return &SessionError{Kind: FailureFrameSourceUnavailable, Cause: err}
			}
			sleep(loopCtx, e.config.PollInterval)
			continue
		}
		st.frameErrs = 0

		det, err := e.detect(loopCtx, frame)
		if err != nil {
			logger.Warning("face detection failed", logger.LoggerOptions{
				Key:  "session_id",
				Data: st.id,
			}, logger.LoggerOptions{
				Key:  "error",
				Data: err,
			})
		}
		if det == nil {
			st.notify.log("Searching for face...")
			sleep(loopCtx, e.config.PollInterval)
			continue
		}

		current, _ := st.sequence.Current()
		if st.status == StatusAwaitingFace {
			st.status = StatusActionInProgress
			st.notify.status(current.Label)
		}

		st.observe(frame, det, e.config.Extractors.Movement.Window)
		if out := e.runScheduled(st, frame, det); out != nil {
			return out
		}

		if e.verifier.Evaluate(current.Key, det, &st.action) {
			st.status = StatusActionTransition
			st.sequence.advance()
			st.action.Reset()
			st.notify.log(fmt.Sprintf("Action %s completed", current.Key))
			st.notify.stepChange(st.sequence.Cursor(), st.sequence.Actions())
			logger.Info("liveness action completed", logger.LoggerOptions{
				Key:  "session_id",
				Data: st.id,
			}, logger.LoggerOptions{
				Key:  "action",
				Data: current.Key,
			}, logger.LoggerOptions{
				Key:  "frame",
				Data: st.frames,
			})
			next, ok := st.sequence.Current()
			if !ok {
				return nil
			}
			st.status = StatusActionInProgress
			st.notify.status(next.Label)
		}

		sleep(loopCtx, e.config.PollInterval)
	}
}

func (st *sessionState) observe(frame *types.Frame, det *types.Detection, window int) {
	st.frames++
	st.action.Observe(det)
	if sample, ok := sampleRGB(frame, det.Box); ok {
		st.rgb = append(st.rgb, sample)
	}
	st.noses = append(st.noses, det.NoseTip())
	if len(st.noses) > window {
		st.noses = st.noses[len(st.noses)-window:]
	}
}

func sampleRGB(frame *types.Frame, box types.BoundingBox) (sample RGBSample, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			ok = false
		}
	}()
	r, g, b, ok := meanRGB(frame.Buffer, box)
	return RGBSample{R: r, G: g, B: b, Timestamp: frame.Timestamp}, ok
}

// runScheduled runs every extractor due on this frame concurrently, then applies the
// readings in a fixed order so fail-fast indicators are always judged first.
func (e *Engine) runScheduled(st *sessionState, frame *types.Frame, det *types.Detection) *SessionError {
	n := st.frames
	sched := e.config.Schedule
	th := e.config.Extractors
	buf, box := frame.Buffer, det.Box

	var tasks []func() Reading
	if slices.Contains(sched.TextureFrames, n) {
		tasks = append(tasks, func() Reading { return AnalyzeTexture(buf, box, th.Texture) })
	}
	if n == sched.DeviceFrame {
		tasks = append(tasks, func() Reading { return AnalyzeDevicePresentation(buf, box, th.Device) })
	}
	if n == sched.BorderFrame {
		tasks = append(tasks, func() Reading { return AnalyzeBorder(buf, box, th.Border) })
	}
	if n%sched.EyeReflectionEvery == 0 {
		tasks = append(tasks, func() Reading { return AnalyzeEyeReflection(buf, det, th.Reflection) })
	}
	if n%sched.MicroMovementEvery == 0 && len(st.noses) >= th.Movement.Window {
		noses := slices.Clone(st.noses)
		tasks = append(tasks, func() Reading { return AnalyzeMicroMovement(noses, th.Movement) })
	}
	return e.applyAll(st, runConcurrently(tasks))
}

func runConcurrently(tasks []func() Reading) []Reading {
	readings := make([]Reading, len(tasks))
	var g errgroup.Group
	for i, task := range tasks {
		g.Go(func() error {
			readings[i] = task()
			return nil
		})
	}
	_ = g.Wait()
	return readings
}

func (e *Engine) applyAll(st *sessionState, readings []Reading) *SessionError {
	for _, r := range readings {
		if out := e.apply(st, r); out != nil {
			return out
		}
	}
	return nil
}

func failFast(ind Indicator) bool {
	return ind == IndicatorTexture || ind == IndicatorDevice
}

func (e *Engine) weight(ind Indicator) float64 {
	w := e.config.Weights
	switch ind {
	case IndicatorTexture:
		return w.Texture
	case IndicatorDevice:
		return w.Device
	case IndicatorBorder:
		return w.Border
	case IndicatorEyeReflection:
		return w.EyeReflection
	case IndicatorEyeReflectionRate:
		return w.EyeReflectionRate
	case IndicatorPulse:
		return w.Pulse
	case IndicatorMicroMovement:
		return w.MicroMovement
	}
	return 0
}

func (st *sessionState) diagnostic(ind Indicator) *types.IndicatorDiagnostic {
	d, ok := st.diag[ind]
	if !ok {
		d = &types.IndicatorDiagnostic{FailFast: failFast(ind)}
		st.diag[ind] = d
	}
	return d
}

// apply folds one reading into the session. Texture and device readings terminate on
// their first failure; micro-movement only counts once it has failed RepeatFailures times;
// everything else adds its weight on each failure.
func (e *Engine) apply(st *sessionState, r Reading) *SessionError {
	d := st.diagnostic(r.Indicator)
	d.Runs++
	d.LastIsReal = r.IsReal
	d.LastMetrics = r.Metrics
	if r.Indicator == IndicatorEyeReflection {
		st.eyeChecks++
		if !r.IsReal {
			st.eyeFails++
		}
	}
	if r.IsReal {
		return nil
	}

	d.Failures++
	metrics.ObserveIndicatorFailure(string(r.Indicator))
	st.notify.log(fmt.Sprintf("Check %s flagged a possible spoof", r.Indicator))
	logger.Warning("liveness indicator failed", logger.LoggerOptions{
		Key:  "session_id",
		Data: st.id,
	}, logger.LoggerOptions{
		Key:  "indicator",
		Data: r.Indicator,
	}, logger.LoggerOptions{
		Key:  "metrics",
		Data: r.Metrics,
	})

	if r.Indicator == IndicatorMicroMovement && d.Failures != e.config.Extractors.Movement.RepeatFailures {
		return nil
	}
	w := e.weight(r.Indicator)
	st.risk.Add(r.Indicator, w)
	d.WeightApplied += w

	if failFast(r.Indicator) {
		return &SessionError{Kind: FailureHighConfidenceSpoof, Indicator: r.Indicator}
	}
	if st.risk.Blocked() {
		return &SessionError{Kind: FailureCumulativeRisk, Indicator: r.Indicator}
	}
	return nil
}

// finalChecks runs once the whole sequence is done: pulse over the full colour history,
// the eye reflection anomaly rate, then texture and device checks on a freshly detected frame.
func (e *Engine) finalChecks(ctx context.Context, source types.FrameSource, st *sessionState) *SessionError {
	st.status = StatusFinalChecks
	st.notify.status("Running final checks")
	th := e.config.Extractors

	if out := e.applyAll(st, []Reading{
		AnalyzePulse(st.rgb, th.Pulse),
		EyeReflectionAnomalyRate(st.eyeChecks, st.eyeFails, th.Reflection),
	}); out != nil {
		return out
	}

	fctx, cancel := context.WithTimeout(ctx, e.config.FinalCheckTimeout)
	defer cancel()
	for attempt := 0; attempt < maxFinalFrameAttempts; attempt++ {
		if ctx.Err() != nil {
			return &SessionError{Kind: FailureCancelled, Cause: ctx.Err()}
		}
		if fctx.Err() != nil {
			break
		}
		frame, err := nextFrame(fctx, source)
		if err != nil {
			continue
		}
		det, err := e.detect(fctx, frame)
		if err != nil || det == nil {
			sleep(fctx, e.config.PollInterval)
			continue
		}
		buf, box := frame.Buffer, det.Box
		return e.applyAll(st, runConcurrently([]func() Reading{
			func() Reading { return AnalyzeTexture(buf, box, th.Texture) },
			func() Reading { return AnalyzeDevicePresentation(buf, box, th.Device) },
		}))
	}
	st.notify.log("No face for the final frame checks, skipping them")
	logger.Warning("final frame checks skipped", logger.LoggerOptions{
		Key:  "session_id",
		Data: st.id,
	})
	return nil
}

func (e *Engine) finish(st *sessionState, out *SessionError, start time.Time) (*types.SessionResult, error) {
	elapsed := time.Since(start)
	result := &types.SessionResult{
		SessionID:       st.id,
		Passed:          out == nil,
		Indicators:      make(map[string]types.IndicatorDiagnostic, len(st.diag)),
		TotalRiskScore:  st.risk.Score(),
		DurationMs:      elapsed.Milliseconds(),
		Contributors:    st.risk.Contributors(),
		FramesProcessed: st.frames,
	}
	for ind, d := range st.diag {
		result.Indicators[string(ind)] = *d
	}
	if st.sequence != nil {
		result.Sequence = st.sequence.Actions()
		result.CompletedSteps = st.sequence.Cursor()
	}

	verdict := string(StatusPassed)
	if out != nil {
		out.Score = result.TotalRiskScore
		out.Contributors = result.Contributors
		result.FailureKind = string(out.Kind)
		result.FailureReason = utils.GetStringPointer(out.Error())
		verdict = string(out.Kind)
		st.status = StatusFailed
		st.notify.status("Verification failed")
		logger.Warning("liveness session failed", logger.LoggerOptions{
			Key:  "session_id",
			Data: st.id,
		}, logger.LoggerOptions{
			Key:  "reason",
			Data: out.Error(),
		})
	} else {
		st.status = StatusPassed
		st.notify.status("Verification passed")
		logger.Info("liveness session passed", logger.LoggerOptions{
			Key:  "session_id",
			Data: st.id,
		}, logger.LoggerOptions{
			Key:  "risk_score",
			Data: result.TotalRiskScore,
		})
	}
	metrics.ObserveSession(verdict, elapsed, result.TotalRiskScore)

	if out != nil {
		return result, out
	}
	return result, nil
}

func (e *Engine) detect(ctx context.Context, frame *types.Frame) (det *types.Detection, err error) {
	defer recoverAs(&err, "landmark provider")
	return e.detector.Detect(ctx, frame)
}

func nextFrame(ctx context.Context, source types.FrameSource) (frame *types.Frame, err error) {
	defer recoverAs(&err, "frame source")
	frame, err = source.Next(ctx)
	if err == nil && (frame == nil || frame.Buffer == nil) {
		err = fmt.Errorf("frame source returned an empty frame")
	}
	return frame, err
}

func recoverAs(err *error, what string) {
	if rec := recover(); rec != nil {
		*err = fmt.Errorf("%s panicked: %v", what, rec)
	}
}

func closeSource(sessionID string, source types.FrameSource) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("frame source close panicked", logger.LoggerOptions{
				Key:  "session_id",
				Data: sessionID,
			}, logger.LoggerOptions{
				Key:  "panic",
				Data: rec,
			})
		}
	}()
	if err := source.Close(); err != nil {
		logger.Error("error releasing frame source", logger.LoggerOptions{
			Key:  "session_id",
			Data: sessionID,
		}, logger.LoggerOptions{
			Key:  "error",
			Data: err,
		})
	}
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
