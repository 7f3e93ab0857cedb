package liveness

import "time"

// RGBSample is the mean face colour of one frame.
type RGBSample struct {
	R, G, B   float64
	Timestamp time.Time
}

// AnalyzePulse looks for a blood-volume signal in the green channel of the session history.
// It differentiates the series, then requires enough variation and a mean-crossing rate
// inside the band a natural heart rate produces at the polling frequency.
func AnalyzePulse(history []RGBSample, th PulseThresholds) Reading {
	return safeExtract(IndicatorPulse, func() Reading {
		n := len(history)
		if n < th.MinSamples || n < 3 {
			return realReading(IndicatorPulse, map[string]float64{
				"samples":      float64(n),
				"insufficient": 1,
			})
		}

		diffs := make([]float64, n-1)
		for i := 1; i < n; i++ {
			diffs[i-1] = history[i].G - history[i-1].G
		}
		mean, std := meanStd(diffs)

		crossings := 0
		above := diffs[0] >= mean
		for _, d := range diffs[1:] {
			now := d >= mean
			if now != above {
				crossings++
			}
			above = now
		}

		seconds := history[n-1].Timestamp.Sub(history[0].Timestamp).Seconds()
		if seconds <= 0 {
			return realReading(IndicatorPulse, map[string]float64{
				"samples":      float64(n),
				"std_dev":      std,
				"insufficient": 1,
			})
		}
		rate := float64(crossings) / seconds

		isReal := std >= th.MinStdDev && rate >= th.MinCrossingRate && rate <= th.MaxCrossingRate
		return Reading{
			IsReal: isReal,
			Metrics: map[string]float64{
				"samples":       float64(n),
				"std_dev":       std,
				"crossings":     float64(crossings),
				"crossing_rate": rate,
				"duration_s":    seconds,
			},
		}
	})
}
