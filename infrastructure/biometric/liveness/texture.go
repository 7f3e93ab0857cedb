package liveness

import "gateman.io/infrastructure/biometric/types"

// AnalyzeTexture measures luminance variance in fixed-size blocks of the central face crop.
// Screens and prints give flat, evenly textured blocks; skin gives busy, uneven ones.
// The reading is non-real only when both the mean block variance and its irregularity
// (coefficient of variation across blocks) sit under their floors.
func AnalyzeTexture(buf types.FrameBuffer, box types.BoundingBox, th TextureThresholds) Reading {
	return safeExtract(IndicatorTexture, func() Reading {
		region := centralCrop(box, th.CropFraction).clip(buf)
		size := th.BlockSize
		if region.empty() || region.x1-region.x0 < size || region.y1-region.y0 < size {
			return realReading(IndicatorTexture, map[string]float64{"blocks": 0})
		}

		variances := make([]float64, 0, region.area()/(size*size))
		block := make([]float64, 0, size*size)
		for by := region.y0; by+size <= region.y1; by += size {
			for bx := region.x0; bx+size <= region.x1; bx += size {
				block = block[:0]
				for y := by; y < by+size; y++ {
					for x := bx; x < bx+size; x++ {
						block = append(block, luminanceAt(buf, x, y))
					}
				}
				_, std := meanStd(block)
				variances = append(variances, std*std)
			}
		}

		meanVariance, stdVariance := meanStd(variances)
		irregularity := 0.0
		if meanVariance > 0 {
			irregularity = stdVariance / meanVariance
		}
		flat := meanVariance < th.MinVariance && irregularity < th.MinIrregularity
		return Reading{
			IsReal: !flat,
			Metrics: map[string]float64{
				"blocks":        float64(len(variances)),
				"mean_variance": meanVariance,
				"irregularity":  irregularity,
			},
		}
	})
}
