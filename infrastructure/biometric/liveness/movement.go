package liveness

import "gateman.io/infrastructure/biometric/types"

// AnalyzeMicroMovement checks the most recent nose positions for natural tremor.
// A mean frame-to-frame displacement under the floor means the head is unnaturally still.
func AnalyzeMicroMovement(positions []types.Point, th MovementThresholds) Reading {
	return safeExtract(IndicatorMicroMovement, func() Reading {
		if len(positions) < th.Window {
			return realReading(IndicatorMicroMovement, map[string]float64{
				"positions":    float64(len(positions)),
				"insufficient": 1,
			})
		}
		window := positions[len(positions)-th.Window:]
		total := 0.0
		for i := 1; i < len(window); i++ {
			total += window[i].DistanceTo(window[i-1])
		}
		mean := total / float64(len(window)-1)
		return Reading{
			IsReal: mean >= th.MinDisplacement,
			Metrics: map[string]float64{
				"positions":         float64(len(window)),
				"mean_displacement": mean,
			},
		}
	})
}
