package liveness

import (
	"fmt"
	"math"

	"gateman.io/infrastructure/biometric/types"
	"gateman.io/infrastructure/logger"
)

type Indicator string

const (
	IndicatorTexture           Indicator = "texture"
	IndicatorPulse             Indicator = "blood_pulse"
	IndicatorBorder            Indicator = "border_artifact"
	IndicatorEyeReflection     Indicator = "eye_reflection"
	IndicatorEyeReflectionRate Indicator = "eye_reflection_rate"
	IndicatorMicroMovement     Indicator = "micro_movement"
	IndicatorDevice            Indicator = "device_presentation"
)

// Reading is the output of one extractor run.
type Reading struct {
	Indicator Indicator
	IsReal    bool
	Metrics   map[string]float64
	Err       error
}

func realReading(ind Indicator, metrics map[string]float64) Reading {
	return Reading{Indicator: ind, IsReal: true, Metrics: metrics}
}

// safeExtract runs fn and maps a panic (bad pixel access, degenerate geometry)
// to a neutral real reading.
func safeExtract(ind Indicator, fn func() Reading) (r Reading) {
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("%s extractor panicked: %v", ind, rec)
			logger.Warning("signal extractor failed, assuming real", logger.LoggerOptions{
				Key:  "indicator",
				Data: ind,
			}, logger.LoggerOptions{
				Key:  "error",
				Data: err,
			})
			r = Reading{Indicator: ind, IsReal: true, Metrics: map[string]float64{"error": 1}, Err: err}
		}
	}()
	r = fn()
	r.Indicator = ind
	return r
}

func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	for _, v := range values {
		d := v - mean
		std += d * d
	}
	std = math.Sqrt(std / float64(len(values)))
	return mean, std
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// rect is a half-open pixel rectangle [x0,x1) x [y0,y1).
type rect struct {
	x0, y0, x1, y1 int
}

func (r rect) empty() bool {
	return r.x1 <= r.x0 || r.y1 <= r.y0
}

func (r rect) area() int {
	if r.empty() {
		return 0
	}
	return (r.x1 - r.x0) * (r.y1 - r.y0)
}

func (r rect) contains(x, y int) bool {
	return x >= r.x0 && x < r.x1 && y >= r.y0 && y < r.y1
}

func (r rect) clip(buf types.FrameBuffer) rect {
	return rect{
		x0: max(r.x0, 0),
		y0: max(r.y0, 0),
		x1: min(r.x1, buf.Width()),
		y1: min(r.y1, buf.Height()),
	}
}

func boxRect(box types.BoundingBox) rect {
	return rect{
		x0: int(math.Floor(box.X)),
		y0: int(math.Floor(box.Y)),
		x1: int(math.Ceil(box.X + box.Width)),
		y1: int(math.Ceil(box.Y + box.Height)),
	}
}

// centralCrop keeps the middle fraction of the box on both axes.
func centralCrop(box types.BoundingBox, fraction float64) rect {
	c := box.Center()
	w, h := box.Width*fraction, box.Height*fraction
	return rect{
		x0: int(math.Round(c.X - w/2)),
		y0: int(math.Round(c.Y - h/2)),
		x1: int(math.Round(c.X + w/2)),
		y1: int(math.Round(c.Y + h/2)),
	}
}

func luminanceAt(buf types.FrameBuffer, x, y int) float64 {
	return buf.Pixel(x, y).Luminance()
}

// meanRGB averages the central face region, sampling every other pixel.
func meanRGB(buf types.FrameBuffer, box types.BoundingBox) (r, g, b float64, ok bool) {
	region := centralCrop(box, 0.6).clip(buf)
	if region.empty() {
		return 0, 0, 0, false
	}
	n := 0
	for y := region.y0; y < region.y1; y += 2 {
		for x := region.x0; x < region.x1; x += 2 {
			p := buf.Pixel(x, y)
			r += float64(p.R)
			g += float64(p.G)
			b += float64(p.B)
			n++
		}
	}
	if n == 0 {
		return 0, 0, 0, false
	}
	return r / float64(n), g / float64(n), b / float64(n), true
}
