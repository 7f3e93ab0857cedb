package liveness

import (
	"math"

	"gateman.io/infrastructure/biometric/types"
)

type eyeHighlight struct {
	peak       float64
	saturation float64
	ok         bool
}

func measureEye(buf types.FrameBuffer, eye []types.Point, th ReflectionThresholds) eyeHighlight {
	if len(eye) < 6 {
		return eyeHighlight{}
	}
	x0, y0, x1, y1 := types.EyeBounds(eye, th.Padding)
	region := rect{x0: x0, y0: y0, x1: x1 + 1, y1: y1 + 1}.clip(buf)
	if region.empty() {
		return eyeHighlight{}
	}
	var peak float64
	saturated := 0
	for y := region.y0; y < region.y1; y++ {
		for x := region.x0; x < region.x1; x++ {
			l := luminanceAt(buf, x, y)
			peak = math.Max(peak, l)
			if l >= th.SaturationLevel {
				saturated++
			}
		}
	}
	return eyeHighlight{
		peak:       peak,
		saturation: float64(saturated) / float64(region.area()),
		ok:         true,
	}
}

func (h eyeHighlight) hasReflection(th ReflectionThresholds) bool {
	return h.saturation > 0 || h.peak >= th.ReflectionPeak
}

// AnalyzeEyeReflection compares the specular highlights of both eyes. A live eye pair
// catches the same light sources; a flat replay tends to lose or unbalance them.
func AnalyzeEyeReflection(buf types.FrameBuffer, det *types.Detection, th ReflectionThresholds) Reading {
	return safeExtract(IndicatorEyeReflection, func() Reading {
		left := measureEye(buf, det.LeftEye, th)
		right := measureEye(buf, det.RightEye, th)
		if !left.ok || !right.ok {
			return realReading(IndicatorEyeReflection, map[string]float64{"eyes_missing": 1})
		}

		peakAsym := math.Abs(left.peak - right.peak)
		satAsym := math.Abs(left.saturation - right.saturation)
		noReflection := !left.hasReflection(th) && !right.hasReflection(th)
		anomalous := peakAsym > th.MaxPeakAsymmetry || satAsym > th.MaxSaturationAsymmetry || noReflection

		return Reading{
			IsReal: !anomalous,
			Metrics: map[string]float64{
				"left_peak":            left.peak,
				"right_peak":           right.peak,
				"left_saturation":      left.saturation,
				"right_saturation":     right.saturation,
				"peak_asymmetry":       peakAsym,
				"saturation_asymmetry": satAsym,
			},
		}
	})
}

// EyeReflectionAnomalyRate turns the in-loop eye checks into one final reading.
func EyeReflectionAnomalyRate(checks, failures int, th ReflectionThresholds) Reading {
	return safeExtract(IndicatorEyeReflectionRate, func() Reading {
		if checks < th.MinRateSamples {
			return realReading(IndicatorEyeReflectionRate, map[string]float64{"checks": float64(checks), "insufficient": 1})
		}
		rate := float64(failures) / float64(checks)
		return Reading{
			IsReal: rate < th.MaxAnomalyRate,
			Metrics: map[string]float64{
				"checks":       float64(checks),
				"failures":     float64(failures),
				"anomaly_rate": rate,
			},
		}
	})
}
