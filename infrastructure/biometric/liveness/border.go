package liveness

import (
	"math"

	"gateman.io/infrastructure/biometric/types"
)

// AnalyzeBorder compares luminance just inside and just outside the face box at evenly
// spaced points on all four edges. A face cut out of a print or pasted onto a screen gives
// transitions that are both sharp (high mean difference) and uniform (low spread).
func AnalyzeBorder(buf types.FrameBuffer, box types.BoundingBox, th BorderThresholds) Reading {
	return safeExtract(IndicatorBorder, func() Reading {
		frame := rect{x1: buf.Width(), y1: buf.Height()}
		off := float64(th.Offset)
		diffs := make([]float64, 0, 4*th.SamplesPerEdge)

		sample := func(inX, inY, outX, outY float64) {
			ix, iy := int(math.Round(inX)), int(math.Round(inY))
			ox, oy := int(math.Round(outX)), int(math.Round(outY))
			if !frame.contains(ix, iy) || !frame.contains(ox, oy) {
				return
			}
			diffs = append(diffs, math.Abs(luminanceAt(buf, ix, iy)-luminanceAt(buf, ox, oy)))
		}

		left, top := box.X, box.Y
		right, bottom := box.X+box.Width, box.Y+box.Height
		for i := 1; i <= th.SamplesPerEdge; i++ {
			t := float64(i) / float64(th.SamplesPerEdge+1)
			x := left + t*box.Width
			y := top + t*box.Height
			sample(x, top+off, x, top-off)
			sample(x, bottom-off, x, bottom+off)
			sample(left+off, y, left-off, y)
			sample(right-off, y, right+off, y)
		}

		if len(diffs) < 4 {
			return realReading(IndicatorBorder, map[string]float64{"samples": float64(len(diffs))})
		}
		mean, std := meanStd(diffs)
		artificial := std < th.MaxStdDev && mean > th.MinMean
		return Reading{
			IsReal: !artificial,
			Metrics: map[string]float64{
				"samples":   float64(len(diffs)),
				"mean_diff": mean,
				"std_diff":  std,
			},
		}
	})
}
