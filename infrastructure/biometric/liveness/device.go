package liveness

import (
	"math"

	"gateman.io/infrastructure/biometric/types"
)

// Sub-score ceilings; they sum to 100.
const (
	deviceBezelWeight      = 30.0
	deviceSkinWeight       = 20.0
	deviceFaceRatioWeight  = 15.0
	deviceBackgroundWeight = 15.0
	deviceEdgeWeight       = 20.0
)

func isSkin(p types.RGB) bool {
	r, g, b := int(p.R), int(p.G), int(p.B)
	hi := max(r, g, b)
	lo := min(r, g, b)
	diff := r - g
	if diff < 0 {
		diff = -diff
	}
	return r > 95 && g > 40 && b > 20 && hi-lo > 15 && diff > 15 && r > g && r > b
}

// ratioIn returns the share of sampled pixels in region (minus exclude) matching pred.
func ratioIn(buf types.FrameBuffer, region, exclude rect, step int, pred func(types.RGB) bool) (float64, int) {
	region = region.clip(buf)
	hits, total := 0, 0
	for y := region.y0; y < region.y1; y += step {
		for x := region.x0; x < region.x1; x += step {
			if exclude.contains(x, y) {
				continue
			}
			total++
			if pred(buf.Pixel(x, y)) {
				hits++
			}
		}
	}
	if total == 0 {
		return 0, 0
	}
	return float64(hits) / float64(total), total
}

func grow(r rect, by int) rect {
	return rect{x0: r.x0 - by, y0: r.y0 - by, x1: r.x1 + by, y1: r.y1 + by}
}

// AnalyzeDevicePresentation scores how likely the face is shown on a phone or tablet held
// up to the camera. Five cues add up to a 0-100 confidence: dark bezel around the face,
// skin (fingers) at the frame edges, implausible face-to-frame size, a suspiciously uniform
// surround and long straight edges parallel to the face box.
func AnalyzeDevicePresentation(buf types.FrameBuffer, box types.BoundingBox, th DeviceThresholds) Reading {
	return safeExtract(IndicatorDevice, func() Reading {
		w, h := buf.Width(), buf.Height()
		if w == 0 || h == 0 || box.Width <= 0 || box.Height <= 0 {
			return realReading(IndicatorDevice, map[string]float64{"confidence": 0})
		}
		face := boxRect(box)
		margin := max(int(math.Round(box.Width*th.BezelMargin)), 1)
		step := max(min(w, h)/160, 1)

		// Bezel: dark pixels in the band hugging the face box.
		bezelRatio, _ := ratioIn(buf, grow(face, margin), face, step, func(p types.RGB) bool {
			return p.Luminance() < th.BezelLuminance
		})
		bezelScore := deviceBezelWeight * clamp01((bezelRatio-0.25)/0.35)

		// Fingers: skin along the left, right and bottom frame edges.
		band := max(int(math.Round(float64(w)*th.EdgeBand)), 1)
		skinHits, skinTotal := 0.0, 0
		for _, strip := range []rect{
			{x0: 0, y0: 0, x1: band, y1: h},
			{x0: w - band, y0: 0, x1: w, y1: h},
			{x0: band, y0: h - band, x1: w - band, y1: h},
		} {
			ratio, n := ratioIn(buf, strip, face, step, isSkin)
			skinHits += ratio * float64(n)
			skinTotal += n
		}
		skinRatio := 0.0
		if skinTotal > 0 {
			skinRatio = skinHits / float64(skinTotal)
		}
		skinScore := deviceSkinWeight * clamp01((skinRatio-0.05)/0.20)

		// Scale: a face that is tiny or fills the frame.
		faceRatio := box.Area() / float64(w*h)
		faceScore := 0.0
		if faceRatio < th.MinFaceRatio || faceRatio > th.MaxFaceRatio {
			faceScore = deviceFaceRatioWeight
		}

		// Surround: luminance spread in the ring outside the bezel band.
		inner := grow(face, margin)
		outer := grow(face, 2*margin).clip(buf)
		var ring []float64
		for y := outer.y0; y < outer.y1; y += step {
			for x := outer.x0; x < outer.x1; x += step {
				if !inner.contains(x, y) {
					ring = append(ring, luminanceAt(buf, x, y))
				}
			}
		}
		backgroundStd := math.NaN()
		backgroundScore := 0.0
		if len(ring) >= 16 {
			_, backgroundStd = meanStd(ring)
			backgroundScore = deviceBackgroundWeight * clamp01((th.UniformStdDev-backgroundStd)/th.UniformStdDev)
		}

		lines := countStraightEdges(buf, face, margin, th)
		edgeScore := deviceEdgeWeight * float64(lines) / 4

		confidence := bezelScore + skinScore + faceScore + backgroundScore + edgeScore
		metrics := map[string]float64{
			"confidence":       confidence,
			"bezel_ratio":      bezelRatio,
			"bezel_score":      bezelScore,
			"skin_edge_ratio":  skinRatio,
			"skin_score":       skinScore,
			"face_ratio":       faceRatio,
			"face_ratio_score": faceScore,
			"background_score": backgroundScore,
			"straight_edges":   float64(lines),
			"edge_score":       edgeScore,
		}
		if !math.IsNaN(backgroundStd) {
			metrics["background_std"] = backgroundStd
		}
		return Reading{IsReal: confidence <= th.Cutoff, Metrics: metrics}
	})
}

// countStraightEdges counts the sides of the face box that have a strong, continuous
// luminance step running parallel to them within 1.5 bezel margins.
func countStraightEdges(buf types.FrameBuffer, face rect, margin int, th DeviceThresholds) int {
	w, h := buf.Width(), buf.Height()
	reach := margin + margin/2 + 1
	grad := func(ax, ay, bx, by int) float64 {
		return math.Abs(luminanceAt(buf, ax, ay) - luminanceAt(buf, bx, by))
	}
	strong := func(hits, total int) bool {
		return total > 0 && float64(hits)/float64(total) >= th.EdgeLineRatio
	}

	lines := 0
	// Vertical lines left and right of the box.
	for _, dir := range []int{-1, 1} {
		for d := 1; d <= reach; d++ {
			x := face.x0 - d
			if dir > 0 {
				x = face.x1 - 1 + d
			}
			if x-1 < 0 || x+1 >= w {
				break
			}
			hits, total := 0, 0
			for y := max(face.y0, 0); y < min(face.y1, h); y++ {
				total++
				if grad(x-1, y, x+1, y) > th.EdgeGradient {
					hits++
				}
			}
			if strong(hits, total) {
				lines++
				break
			}
		}
	}
	// Horizontal lines above and below the box.
	for _, dir := range []int{-1, 1} {
		for d := 1; d <= reach; d++ {
			y := face.y0 - d
			if dir > 0 {
				y = face.y1 - 1 + d
			}
			if y-1 < 0 || y+1 >= h {
				break
			}
			hits, total := 0, 0
			for x := max(face.x0, 0); x < min(face.x1, w); x++ {
				total++
				if grad(x, y-1, x, y+1) > th.EdgeGradient {
					hits++
				}
			}
			if strong(hits, total) {
				lines++
				break
			}
		}
	}
	return lines
}
