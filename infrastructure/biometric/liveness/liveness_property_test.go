//go:build property
// +build property

package liveness

import (
	"testing"

	"gateman.io/infrastructure/biometric/types"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestGeneratedSequenceProperties checks every generated sequence has the requested length,
// never repeats an action, only uses pool actions and depends on nothing but the seed.
func TestGeneratedSequenceProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("sequences are distinct draws from the pool", prop.ForAll(
		func(seed uint64, count int) bool {
			seq, err := GenerateSequence(DefaultActionPool, count, NewSeededRand(seed))
			if err != nil || seq.Len() != count {
				return false
			}
			seen := map[types.ActionKey]bool{}
			for _, a := range seq.Actions() {
				if seen[a.Key] {
					return false
				}
				seen[a.Key] = true
				found := false
				for _, p := range DefaultActionPool {
					found = found || p == a
				}
				if !found {
					return false
				}
			}
			again, err := GenerateSequence(DefaultActionPool, count, NewSeededRand(seed))
			if err != nil {
				return false
			}
			a, b := seq.Actions(), again.Actions()
			for i := range a {
				if a[i] != b[i] {
					return false
				}
			}
			return true
		},
		gen.UInt64(),
		gen.IntRange(1, len(DefaultActionPool)),
	))

	properties.Property("counts outside the pool are rejected", prop.ForAll(
		func(seed uint64, count int) bool {
			_, err := GenerateSequence(DefaultActionPool, count, NewSeededRand(seed))
			return err != nil
		},
		gen.UInt64(),
		gen.OneGenOf(gen.IntRange(-5, 0), gen.IntRange(len(DefaultActionPool)+1, 20)),
	))

	properties.TestingRun(t)
}

// TestOpenMouthBoundary checks open_mouth only passes above the ratio and with enough frames.
func TestOpenMouthBoundary(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)
	th := DefaultConfig().Actions
	v := NewVerifier(th)

	properties.Property("open_mouth matches ratio > threshold and frames >= minimum", prop.ForAll(
		func(height float64, frames int) bool {
			det := neutralDetection()
			det.Mouth = mouthContour(60, height)
			state := &ActionState{Frames: frames}
			want := MouthOpenRatio(det) > th.OpenMouthRatio && frames >= th.OpenMouthMinFrames
			return v.Evaluate(types.ActionOpenMouth, det, state) == want
		},
		gen.Float64Range(1, 90),
		gen.IntRange(0, 12),
	))

	properties.TestingRun(t)
}
