package frames

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gateman.io/infrastructure/biometric/types"
	"gateman.io/infrastructure/logger"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var (
	ErrSourceExhausted = errors.New("frame source exhausted")
	ErrSourceClosed    = errors.New("frame source closed")
	ErrSourceNotOpen   = errors.New("frame source not open")
)

var supportedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".webp": true,
}

// ReplaySource plays back a fixed list of frames with synthetic, evenly spaced timestamps.
type ReplaySource struct {
	Loop     bool
	Interval time.Duration

	load   func() ([]image.Image, error)
	frames []image.Image
	cursor int
	start  time.Time
	open   bool
	mu     sync.Mutex
}

// NewSliceSource replays in-memory images.
func NewSliceSource(images []image.Image, interval time.Duration, loop bool) *ReplaySource {
	return &ReplaySource{
		Loop:     loop,
		Interval: interval,
		load: func() ([]image.Image, error) {
			return images, nil
		},
	}
}

// NewDirectorySource replays every supported image in dir in lexical file name order.
func NewDirectorySource(dir string, interval time.Duration, loop bool) *ReplaySource {
	return &ReplaySource{
		Loop:     loop,
		Interval: interval,
		load: func() ([]image.Image, error) {
			return loadDirectory(dir)
		},
	}
}

func (s *ReplaySource) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	frames, err := s.load()
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return ErrSourceExhausted
	}
	s.frames = frames
	s.cursor = 0
	s.start = time.Now()
	s.open = true
	return nil
}

func (s *ReplaySource) Next(ctx context.Context) (*types.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil, ErrSourceNotOpen
	}
	if s.cursor >= len(s.frames) {
		if !s.Loop {
			return nil, ErrSourceExhausted
		}
	}
	img := s.frames[s.cursor%len(s.frames)]
	ts := s.start.Add(time.Duration(s.cursor) * s.Interval)
	s.cursor++
	return &types.Frame{Buffer: NewImageBuffer(img), Timestamp: ts}, nil
}

func (s *ReplaySource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	s.frames = nil
	return nil
}

func loadDirectory(dir string) ([]image.Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !supportedExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	images := make([]image.Image, 0, len(names))
	for _, name := range names {
		img, err := decodeFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warning("skipping undecodable frame", logger.LoggerOptions{
				Key:  "file",
				Data: name,
			}, logger.LoggerOptions{
				Key:  "error",
				Data: err,
			})
			continue
		}
		images = append(images, img)
	}
	return images, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

// ChannelSource reads frames pushed by a capture loop owned by the host.
// release runs exactly once when the session closes the source.
type ChannelSource struct {
	frames  <-chan image.Image
	release func() error
	once    sync.Once
	closed  chan struct{}
}

func NewChannelSource(frames <-chan image.Image, release func() error) *ChannelSource {
	return &ChannelSource{frames: frames, release: release, closed: make(chan struct{})}
}

func (s *ChannelSource) Open(ctx context.Context) error {
	return ctx.Err()
}

func (s *ChannelSource) Next(ctx context.Context) (*types.Frame, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closed:
		return nil, ErrSourceClosed
	case img, ok := <-s.frames:
		if !ok {
			return nil, ErrSourceExhausted
		}
		return &types.Frame{Buffer: NewImageBuffer(img), Timestamp: time.Now()}, nil
	}
}

func (s *ChannelSource) Close() error {
	var err error
	s.once.Do(func() {
		close(s.closed)
		if s.release != nil {
			err = s.release()
		}
	})
	return err
}
