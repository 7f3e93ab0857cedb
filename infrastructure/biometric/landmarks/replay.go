package landmarks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"gateman.io/infrastructure/biometric/types"
)

// ReplayProvider returns pre-recorded detections, one per Detect call, in order.
// A null entry in the recording means no face on that frame.
type ReplayProvider struct {
	detections []*types.Detection
	loop       bool
	cursor     int
	mu         sync.Mutex
}

func NewReplayProvider(detections []*types.Detection, loop bool) *ReplayProvider {
	return &ReplayProvider{detections: detections, loop: loop}
}

// LoadReplayFile reads a JSON array of detections.
func LoadReplayFile(path string, loop bool) (*ReplayProvider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read landmark recording: %w", err)
	}
	var detections []*types.Detection
	if err := json.Unmarshal(raw, &detections); err != nil {
		return nil, fmt.Errorf("decode landmark recording: %w", err)
	}
	return NewReplayProvider(detections, loop), nil
}

func (p *ReplayProvider) Detect(ctx context.Context, frame *types.Frame) (*types.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.detections) == 0 {
		return nil, nil
	}
	idx := p.cursor
	if idx >= len(p.detections) {
		if !p.loop {
			return nil, nil
		}
		idx %= len(p.detections)
	}
	p.cursor++
	d := p.detections[idx]
	if d == nil {
		return nil, nil
	}
	clone := *d
	return &clone, nil
}
