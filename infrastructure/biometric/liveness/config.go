package liveness

import (
	"errors"
	"fmt"
	"time"

	"gateman.io/infrastructure/env"
	"gateman.io/infrastructure/validator"
)

type ActionThresholds struct {
	// Nose offset from the box center as a fraction of box width.
	TurnYaw float64 `env:"LIVENESS_TURN_YAW" validate:"gt=0,lt=1"`
	// Accumulated horizontal nose travel as a fraction of box width.
	TurnMovement  float64 `env:"LIVENESS_TURN_MOVEMENT" validate:"gte=0"`
	TurnMinFrames int     `env:"LIVENESS_TURN_MIN_FRAMES" validate:"gte=0"`

	SmileScore float64 `env:"LIVENESS_SMILE_SCORE" validate:"gt=0"`

	OpenMouthRatio     float64 `env:"LIVENESS_OPEN_MOUTH_RATIO" validate:"gt=0"`
	OpenMouthMinFrames int     `env:"LIVENESS_OPEN_MOUTH_MIN_FRAMES" validate:"gte=0"`

	SurprisedProbability float64 `env:"LIVENESS_SURPRISED_PROBABILITY" validate:"ratio"`
	// Mean eye lid distance as a fraction of box height.
	EyeOpening       float64 `env:"LIVENESS_EYE_OPENING" validate:"gt=0,lt=1"`
	EyebrowMinFrames int     `env:"LIVENESS_EYEBROW_MIN_FRAMES" validate:"gte=0"`

	// Nod distances are fractions of box height.
	NodDown     float64 `env:"LIVENESS_NOD_DOWN" validate:"gt=0"`
	NodReturn   float64 `env:"LIVENESS_NOD_RETURN" validate:"gt=0,ltfield=NodDown"`
	NodMovement float64 `env:"LIVENESS_NOD_MOVEMENT" validate:"gt=0"`
}

type TextureThresholds struct {
	BlockSize       int     `env:"LIVENESS_TEXTURE_BLOCK_SIZE" validate:"gte=2"`
	CropFraction    float64 `env:"LIVENESS_TEXTURE_CROP" validate:"gt=0,lte=1"`
	MinVariance     float64 `env:"LIVENESS_TEXTURE_MIN_VARIANCE" validate:"gte=0"`
	MinIrregularity float64 `env:"LIVENESS_TEXTURE_MIN_IRREGULARITY" validate:"gte=0"`
}

type PulseThresholds struct {
	MinSamples      int     `env:"LIVENESS_PULSE_MIN_SAMPLES" validate:"gte=3"`
	MinStdDev       float64 `env:"LIVENESS_PULSE_MIN_STDDEV" validate:"gte=0"`
	MinCrossingRate float64 `env:"LIVENESS_PULSE_MIN_CROSSING_RATE" validate:"gte=0"`
	MaxCrossingRate float64 `env:"LIVENESS_PULSE_MAX_CROSSING_RATE" validate:"gtfield=MinCrossingRate"`
}

type BorderThresholds struct {
	SamplesPerEdge int     `env:"LIVENESS_BORDER_SAMPLES" validate:"gte=1"`
	Offset         int     `env:"LIVENESS_BORDER_OFFSET" validate:"gte=1"`
	MaxStdDev      float64 `env:"LIVENESS_BORDER_MAX_STDDEV" validate:"gte=0"`
	MinMean        float64 `env:"LIVENESS_BORDER_MIN_MEAN" validate:"gte=0"`
}

type ReflectionThresholds struct {
	Padding                int     `env:"LIVENESS_EYE_PADDING" validate:"gte=0"`
	SaturationLevel        float64 `env:"LIVENESS_EYE_SATURATION_LEVEL" validate:"gt=0,lte=255"`
	ReflectionPeak         float64 `env:"LIVENESS_EYE_REFLECTION_PEAK" validate:"gt=0,lte=255"`
	MaxPeakAsymmetry       float64 `env:"LIVENESS_EYE_MAX_PEAK_ASYMMETRY" validate:"gte=0"`
	MaxSaturationAsymmetry float64 `env:"LIVENESS_EYE_MAX_SATURATION_ASYMMETRY" validate:"ratio"`
	// Final pass adds the aggregate weight when failures/checks reaches this rate.
	MaxAnomalyRate float64 `env:"LIVENESS_EYE_MAX_ANOMALY_RATE" validate:"ratio"`
	MinRateSamples int     `env:"LIVENESS_EYE_MIN_RATE_SAMPLES" validate:"gte=1"`
}

type MovementThresholds struct {
	Window          int     `env:"LIVENESS_MOVEMENT_WINDOW" validate:"gte=2"`
	MinDisplacement float64 `env:"LIVENESS_MOVEMENT_MIN_DISPLACEMENT" validate:"gte=0"`
	// Failures needed before the indicator contributes weight.
	RepeatFailures int `env:"LIVENESS_MOVEMENT_REPEAT_FAILURES" validate:"gte=1"`
}

type DeviceThresholds struct {
	Cutoff float64 `env:"LIVENESS_DEVICE_CUTOFF" validate:"gte=0,lte=100"`
	// Width of the bezel band around the face box as a fraction of box width.
	BezelMargin    float64 `env:"LIVENESS_DEVICE_BEZEL_MARGIN" validate:"gt=0,lte=1"`
	BezelLuminance float64 `env:"LIVENESS_DEVICE_BEZEL_LUMINANCE" validate:"gte=0,lte=255"`
	// Width of the outer frame band searched for fingers as a fraction of frame width.
	EdgeBand      float64 `env:"LIVENESS_DEVICE_EDGE_BAND" validate:"gt=0,lt=0.5"`
	MinFaceRatio  float64 `env:"LIVENESS_DEVICE_MIN_FACE_RATIO" validate:"ratio"`
	MaxFaceRatio  float64 `env:"LIVENESS_DEVICE_MAX_FACE_RATIO" validate:"ratio,gtfield=MinFaceRatio"`
	UniformStdDev float64 `env:"LIVENESS_DEVICE_UNIFORM_STDDEV" validate:"gt=0"`
	EdgeGradient  float64 `env:"LIVENESS_DEVICE_EDGE_GRADIENT" validate:"gt=0"`
	EdgeLineRatio float64 `env:"LIVENESS_DEVICE_EDGE_LINE_RATIO" validate:"ratio"`
}

type ExtractorThresholds struct {
	Texture    TextureThresholds
	Pulse      PulseThresholds
	Border     BorderThresholds
	Reflection ReflectionThresholds
	Movement   MovementThresholds
	Device     DeviceThresholds
}

type Weights struct {
	Texture           float64 `env:"LIVENESS_WEIGHT_TEXTURE" validate:"gte=0"`
	Device            float64 `env:"LIVENESS_WEIGHT_DEVICE" validate:"gte=0"`
	Border            float64 `env:"LIVENESS_WEIGHT_BORDER" validate:"gte=0"`
	EyeReflection     float64 `env:"LIVENESS_WEIGHT_EYE_REFLECTION" validate:"gte=0"`
	EyeReflectionRate float64 `env:"LIVENESS_WEIGHT_EYE_REFLECTION_RATE" validate:"gte=0"`
	Pulse             float64 `env:"LIVENESS_WEIGHT_PULSE" validate:"gte=0"`
	MicroMovement     float64 `env:"LIVENESS_WEIGHT_MICRO_MOVEMENT" validate:"gte=0"`
}

// Schedule positions extractor runs on the face frame counter (1-based).
type Schedule struct {
	TextureFrames      []int `env:"LIVENESS_TEXTURE_FRAMES" envSeparator:"," validate:"dive,gte=1"`
	BorderFrame        int   `env:"LIVENESS_BORDER_FRAME" validate:"gte=1"`
	DeviceFrame        int   `env:"LIVENESS_DEVICE_FRAME" validate:"gte=1"`
	EyeReflectionEvery int   `env:"LIVENESS_EYE_REFLECTION_EVERY" validate:"gte=1"`
	MicroMovementEvery int   `env:"LIVENESS_MICRO_MOVEMENT_EVERY" validate:"gte=1"`
}

type Config struct {
	// Timeout bounds face search and the action sequence only. Once every action is done
	// the final checks run under FinalCheckTimeout, so a session can last up to
	// Timeout+FinalCheckTimeout.
	Timeout      time.Duration `env:"LIVENESS_TIMEOUT" validate:"gt=0"`
	PollInterval time.Duration `env:"LIVENESS_POLL_INTERVAL" validate:"gte=0"`
	// Budget for the fresh frame used by the final texture and device checks.
	FinalCheckTimeout time.Duration `env:"LIVENESS_FINAL_CHECK_TIMEOUT" validate:"gt=0"`
	ActionCount       int           `env:"LIVENESS_ACTION_COUNT" validate:"gte=1"`
	BlockThreshold    float64       `env:"LIVENESS_BLOCK_THRESHOLD" validate:"gt=0"`
	// Consecutive frame source errors tolerated before the session fails.
	MaxFrameErrors int `env:"LIVENESS_MAX_FRAME_ERRORS" validate:"gte=1"`

	Actions    ActionThresholds
	Extractors ExtractorThresholds
	Weights    Weights
	Schedule   Schedule
}

func DefaultConfig() Config {
	return Config{
		Timeout:           60 * time.Second,
		PollInterval:      100 * time.Millisecond,
		FinalCheckTimeout: 2 * time.Second,
		ActionCount:       3,
		BlockThreshold:    60,
		MaxFrameErrors:    10,
		Actions: ActionThresholds{
			TurnYaw:              0.15,
			TurnMovement:         0.10,
			TurnMinFrames:        3,
			SmileScore:           2.2,
			OpenMouthRatio:       0.75,
			OpenMouthMinFrames:   5,
			SurprisedProbability: 0.5,
			EyeOpening:           0.045,
			EyebrowMinFrames:     3,
			NodDown:              0.06,
			NodReturn:            0.03,
			NodMovement:          0.15,
		},
		Extractors: ExtractorThresholds{
			Texture: TextureThresholds{
				BlockSize:       8,
				CropFraction:    0.5,
				MinVariance:     20,
				MinIrregularity: 0.35,
			},
			Pulse: PulseThresholds{
				MinSamples:      30,
				MinStdDev:       0.05,
				MinCrossingRate: 0.5,
				MaxCrossingRate: 8,
			},
			Border: BorderThresholds{
				SamplesPerEdge: 12,
				Offset:         6,
				MaxStdDev:      8,
				MinMean:        35,
			},
			Reflection: ReflectionThresholds{
				Padding:                2,
				SaturationLevel:        240,
				ReflectionPeak:         220,
				MaxPeakAsymmetry:       60,
				MaxSaturationAsymmetry: 0.15,
				MaxAnomalyRate:         0.5,
				MinRateSamples:         2,
			},
			Movement: MovementThresholds{
				Window:          10,
				MinDisplacement: 0.3,
				RepeatFailures:  3,
			},
			Device: DeviceThresholds{
				Cutoff:         50,
				BezelMargin:    0.25,
				BezelLuminance: 40,
				EdgeBand:       0.08,
				MinFaceRatio:   0.03,
				MaxFaceRatio:   0.6,
				UniformStdDev:  6,
				EdgeGradient:   50,
				EdgeLineRatio:  0.7,
			},
		},
		Weights: Weights{
			Texture:           40,
			Device:            40,
			Border:            25,
			EyeReflection:     10,
			EyeReflectionRate: 20,
			Pulse:             30,
			MicroMovement:     25,
		},
		Schedule: Schedule{
			TextureFrames:      []int{5, 40},
			BorderFrame:        10,
			DeviceFrame:        15,
			EyeReflectionEvery: 10,
			MicroMovementEvery: 5,
		},
	}
}

// ConfigFromEnv starts from DefaultConfig and applies any LIVENESS_* overrides.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := env.ParseInto(&cfg); err != nil {
		return cfg, errors.Join(ErrInvalidConfig, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	errs := validator.ValidatorInstance.ValidateStruct(c)
	if errs == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(*errs...))
}
