package liveness

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"gateman.io/infrastructure/biometric/frames"
	"gateman.io/infrastructure/biometric/types"
)

const (
	frameW = 320
	frameH = 240
)

var faceBox = types.BoundingBox{X: 100, Y: 60, Width: 120, Height: 120}

var (
	skinTone = color.RGBA{R: 200, G: 150, B: 120, A: 255}
	black    = color.RGBA{A: 255}
	white    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// noiseImage fills the frame with grey values in [60,200]: busy texture, no skin, no dark bezel.
func noiseImage(seed uint64) *image.RGBA {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	img := image.NewRGBA(image.Rect(0, 0, frameW, frameH))
	for y := 0; y < frameH; y++ {
		for x := 0; x < frameW; x++ {
			v := uint8(60 + rng.IntN(141))
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func flatImage(v uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, frameW, frameH))
	fill(img, img.Bounds(), color.RGBA{R: v, G: v, B: v, A: 255})
	return img
}

func fill(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func faceRect() image.Rectangle {
	return image.Rect(int(faceBox.X), int(faceBox.Y), int(faceBox.X+faceBox.Width), int(faceBox.Y+faceBox.Height))
}

// deviceImage is a noisy face framed by a black bezel, with skin coloured fingers on the
// left, right and bottom edges of the frame.
func deviceImage(seed uint64) *image.RGBA {
	img := noiseImage(seed)
	face := faceRect()
	bezel := face.Inset(-30)
	inner := image.NewRGBA(face)
	for y := face.Min.Y; y < face.Max.Y; y++ {
		for x := face.Min.X; x < face.Max.X; x++ {
			inner.SetRGBA(x, y, img.RGBAAt(x, y))
		}
	}
	fill(img, bezel, black)
	for y := face.Min.Y; y < face.Max.Y; y++ {
		for x := face.Min.X; x < face.Max.X; x++ {
			img.SetRGBA(x, y, inner.RGBAAt(x, y))
		}
	}
	band := 26
	fill(img, image.Rect(0, 0, band, frameH), skinTone)
	fill(img, image.Rect(frameW-band, 0, frameW, frameH), skinTone)
	fill(img, image.Rect(band, frameH-band, frameW-band, frameH), skinTone)
	return img
}

func eyeContour(cx, cy float64) []types.Point {
	return []types.Point{
		{X: cx - 10, Y: cy},
		{X: cx - 5, Y: cy - 3},
		{X: cx + 5, Y: cy - 3},
		{X: cx + 10, Y: cy},
		{X: cx + 5, Y: cy + 3},
		{X: cx - 5, Y: cy + 3},
	}
}

// withCatchlights paints the same small specular highlight into both eyes.
func withCatchlights(img *image.RGBA) *image.RGBA {
	fill(img, image.Rect(139, 99, 142, 102), white)
	fill(img, image.Rect(179, 99, 182, 102), white)
	return img
}

// mouthContour places 12 points on an ellipse whose extents are exactly width x height.
func mouthContour(width, height float64) []types.Point {
	cx, cy := 160.0, 150.0
	pts := make([]types.Point, 12)
	for i := range pts {
		a := float64(i) * math.Pi / 6
		pts[i] = types.Point{X: cx + width/2*math.Cos(a), Y: cy + height/2*math.Sin(a)}
	}
	return pts
}

func noseAt(x, y float64) []types.Point {
	return []types.Point{{X: x, Y: y - 30}, {X: x, Y: y - 20}, {X: x, Y: y - 10}, {X: x, Y: y}}
}

// neutralDetection is a centred face with a closed mouth and no expression.
func neutralDetection() *types.Detection {
	return &types.Detection{
		Box:         faceBox,
		Nose:        noseAt(160, 120),
		Mouth:       mouthContour(60, 6),
		LeftEye:     eyeContour(140, 100),
		RightEye:    eyeContour(180, 100),
		Expressions: map[string]float64{},
	}
}

func smilingDetection() *types.Detection {
	d := neutralDetection()
	d.Mouth = mouthContour(60, 10)
	d.Expressions[types.ExpressionHappy] = 0.9
	return d
}

func smilingSurprisedDetection() *types.Detection {
	d := smilingDetection()
	d.Expressions[types.ExpressionSurprised] = 0.8
	return d
}

// providerFunc adapts a function to types.LandmarkProvider.
type providerFunc func(ctx context.Context, frame *types.Frame) (*types.Detection, error)

func (f providerFunc) Detect(ctx context.Context, frame *types.Frame) (*types.Detection, error) {
	return f(ctx, frame)
}

func always(det *types.Detection) providerFunc {
	return func(context.Context, *types.Frame) (*types.Detection, error) {
		clone := *det
		return &clone, nil
	}
}

// countingSource wraps a frame source and records lifecycle calls.
type countingSource struct {
	types.FrameSource
	mu     sync.Mutex
	opens  int
	closes int
}

func (s *countingSource) Open(ctx context.Context) error {
	s.mu.Lock()
	s.opens++
	s.mu.Unlock()
	return s.FrameSource.Open(ctx)
}

func (s *countingSource) Close() error {
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()
	return s.FrameSource.Close()
}

func (s *countingSource) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens, s.closes
}

func loopingSource(imgs ...image.Image) *countingSource {
	return &countingSource{FrameSource: frames.NewSliceSource(imgs, 100*time.Millisecond, true)}
}

var errCamera = errors.New("camera unplugged")

// brokenSource opens fine and fails every read.
type brokenSource struct {
	openErr error
}

func (b brokenSource) Open(context.Context) error { return b.openErr }
func (b brokenSource) Close() error               { return nil }
func (b brokenSource) Next(context.Context) (*types.Frame, error) {
	return nil, errCamera
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PollInterval = 0
	cfg.Timeout = 5 * time.Second
	return cfg
}
