package frames

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestSliceSourceReplaysInOrder(t *testing.T) {
	red := solid(4, 4, color.RGBA{R: 255, A: 255})
	blue := solid(4, 4, color.RGBA{B: 255, A: 255})
	src := NewSliceSource([]image.Image{red, blue}, 50*time.Millisecond, false)
	ctx := context.Background()

	_, err := src.Next(ctx)
	assert.ErrorIs(t, err, ErrSourceNotOpen)

	require.NoError(t, src.Open(ctx))
	first, err := src.Next(ctx)
	require.NoError(t, err)
	second, err := src.Next(ctx)
	require.NoError(t, err)
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, ErrSourceExhausted)

	assert.Equal(t, uint8(255), first.Buffer.Pixel(0, 0).R)
	assert.Equal(t, uint8(255), second.Buffer.Pixel(0, 0).B)
	assert.Equal(t, 50*time.Millisecond, second.Timestamp.Sub(first.Timestamp))

	require.NoError(t, src.Close())
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, ErrSourceNotOpen)
}

func TestSliceSourceLoops(t *testing.T) {
	src := NewSliceSource([]image.Image{solid(2, 2, color.RGBA{G: 9, A: 255})}, time.Millisecond, true)
	ctx := context.Background()
	require.NoError(t, src.Open(ctx))
	for i := 0; i < 5; i++ {
		f, err := src.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint8(9), f.Buffer.Pixel(1, 1).G)
	}
}

func TestSliceSourceRejectsEmpty(t *testing.T) {
	assert.ErrorIs(t, NewSliceSource(nil, time.Millisecond, true).Open(context.Background()), ErrSourceExhausted)
}

func TestDirectorySource(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "002.png"), solid(3, 3, color.RGBA{B: 200, A: 255}))
	writePNG(t, filepath.Join(dir, "001.png"), solid(3, 3, color.RGBA{R: 200, A: 255}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "003.png"), []byte("not a png"), 0o600))

	src := NewDirectorySource(dir, 10*time.Millisecond, false)
	ctx := context.Background()
	require.NoError(t, src.Open(ctx))
	defer src.Close()

	first, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint8(200), first.Buffer.Pixel(0, 0).R)
	second, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint8(200), second.Buffer.Pixel(0, 0).B)
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, ErrSourceExhausted, "undecodable file is skipped")
}

func TestDirectorySourceMissingDir(t *testing.T) {
	err := NewDirectorySource(filepath.Join(t.TempDir(), "nope"), time.Millisecond, false).Open(context.Background())
	assert.Error(t, err)
}

func TestChannelSource(t *testing.T) {
	frames := make(chan image.Image, 1)
	releases := 0
	src := NewChannelSource(frames, func() error {
		releases++
		return nil
	})
	ctx := context.Background()
	require.NoError(t, src.Open(ctx))

	frames <- solid(2, 2, color.RGBA{R: 7, A: 255})
	f, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint8(7), f.Buffer.Pixel(0, 0).R)
	assert.False(t, f.Timestamp.IsZero())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = src.Next(cancelled)
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())
	assert.Equal(t, 1, releases)
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, ErrSourceClosed)
}

func TestChannelSourceDrained(t *testing.T) {
	frames := make(chan image.Image)
	close(frames)
	src := NewChannelSource(frames, nil)
	_, err := src.Next(context.Background())
	assert.ErrorIs(t, err, ErrSourceExhausted)
}
