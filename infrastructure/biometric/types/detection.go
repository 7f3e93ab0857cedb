package types

import "math"

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) DistanceTo(o Point) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (b BoundingBox) Center() Point {
	return Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

func (b BoundingBox) Area() float64 {
	return b.Width * b.Height
}

const (
	ExpressionHappy     = "happy"
	ExpressionSurprised = "surprised"
)

// Detection is one face as reported by a LandmarkProvider.
// Eye contours are six points each in the order outer corner, two upper lid points,
// inner corner, two lower lid points.
type Detection struct {
	Box         BoundingBox        `json:"box"`
	Nose        []Point            `json:"nose"`
	Mouth       []Point            `json:"mouth"`
	LeftEye     []Point            `json:"left_eye"`
	RightEye    []Point            `json:"right_eye"`
	Expressions map[string]float64 `json:"expressions,omitempty"`
}

// Expression returns the probability for name, zero when the provider did not report it.
func (d *Detection) Expression(name string) float64 {
	if d.Expressions == nil {
		return 0
	}
	return d.Expressions[name]
}

// NoseTip picks the tip from a 68-point style nose run (bridge first, tip at index 3).
// Shorter runs fall back to the last point.
func (d *Detection) NoseTip() Point {
	switch {
	case len(d.Nose) > 3:
		return d.Nose[3]
	case len(d.Nose) > 0:
		return d.Nose[len(d.Nose)-1]
	}
	return d.Box.Center()
}

// MouthSize returns the horizontal and vertical extent of the mouth contour.
func (d *Detection) MouthSize() (width, height float64) {
	if len(d.Mouth) == 0 {
		return 0, 0
	}
	minX, maxX := d.Mouth[0].X, d.Mouth[0].X
	minY, maxY := d.Mouth[0].Y, d.Mouth[0].Y
	for _, p := range d.Mouth[1:] {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	return maxX - minX, maxY - minY
}

// EyeOpening is the mean vertical lid distance of a six point eye contour.
func EyeOpening(eye []Point) float64 {
	if len(eye) < 6 {
		return 0
	}
	return (eye[1].DistanceTo(eye[5]) + eye[2].DistanceTo(eye[4])) / 2
}

// EyeBounds returns the integer bounding rectangle of an eye contour grown by pad pixels.
func EyeBounds(eye []Point, pad int) (x0, y0, x1, y1 int) {
	if len(eye) == 0 {
		return 0, 0, 0, 0
	}
	minX, maxX := eye[0].X, eye[0].X
	minY, maxY := eye[0].Y, eye[0].Y
	for _, p := range eye[1:] {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	return int(math.Floor(minX)) - pad, int(math.Floor(minY)) - pad, int(math.Ceil(maxX)) + pad, int(math.Ceil(maxY)) + pad
}
