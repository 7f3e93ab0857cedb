package liveness

import (
	"testing"

	"gateman.io/infrastructure/biometric/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSequence(t *testing.T) {
	tests := []struct {
		name    string
		pool    []types.ChallengeAction
		count   int
		wantErr bool
		wantLen int
	}{
		{name: "three of six", pool: DefaultActionPool, count: 3, wantLen: 3},
		{name: "whole pool", pool: DefaultActionPool, count: 6, wantLen: 6},
		{name: "single action", pool: DefaultActionPool[:1], count: 1, wantLen: 1},
		{name: "count above pool", pool: DefaultActionPool[:2], count: 3, wantErr: true},
		{name: "zero count", pool: DefaultActionPool, count: 0, wantErr: true},
		{name: "empty pool", pool: nil, count: 1, wantErr: true},
		{
			name:    "duplicates collapse",
			pool:    []types.ChallengeAction{DefaultActionPool[0], DefaultActionPool[0], DefaultActionPool[1]},
			count:   3,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq, err := GenerateSequence(tt.pool, tt.count, NewSeededRand(7))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidActionPool)
				assert.Nil(t, seq)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLen, seq.Len())

			seen := map[types.ActionKey]bool{}
			for _, a := range seq.Actions() {
				assert.False(t, seen[a.Key], "repeated action %s", a.Key)
				seen[a.Key] = true
				assert.Contains(t, tt.pool, a)
			}
		})
	}
}

func TestGenerateSequenceIsReproducibleForASeed(t *testing.T) {
	a, err := GenerateSequence(DefaultActionPool, 3, NewSeededRand(42))
	require.NoError(t, err)
	b, err := GenerateSequence(DefaultActionPool, 3, NewSeededRand(42))
	require.NoError(t, err)
	assert.Equal(t, a.Actions(), b.Actions())
}

func TestGenerateSequenceDoesNotMutatePool(t *testing.T) {
	pool := append([]types.ChallengeAction(nil), DefaultActionPool...)
	_, err := GenerateSequence(pool, 6, NewSeededRand(3))
	require.NoError(t, err)
	assert.Equal(t, DefaultActionPool, pool)
}

func TestGenerateSequenceWithoutRand(t *testing.T) {
	seq, err := GenerateSequence(DefaultActionPool, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, seq.Len())
}

func TestChallengeSequenceCursor(t *testing.T) {
	seq, err := GenerateSequence(DefaultActionPool, 2, NewSeededRand(1))
	require.NoError(t, err)
	actions := seq.Actions()

	current, ok := seq.Current()
	require.True(t, ok)
	assert.Equal(t, actions[0], current)
	assert.False(t, seq.Complete())

	seq.advance()
	current, ok = seq.Current()
	require.True(t, ok)
	assert.Equal(t, actions[1], current)

	seq.advance()
	assert.True(t, seq.Complete())
	_, ok = seq.Current()
	assert.False(t, ok)

	seq.advance()
	assert.Equal(t, 2, seq.Cursor())
}

func TestActionsReturnsACopy(t *testing.T) {
	seq, err := GenerateSequence(DefaultActionPool, 2, NewSeededRand(1))
	require.NoError(t, err)
	out := seq.Actions()
	out[0] = types.ChallengeAction{Key: "tampered"}
	assert.NotEqual(t, types.ActionKey("tampered"), seq.Actions()[0].Key)
}
