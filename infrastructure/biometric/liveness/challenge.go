package liveness

import (
	crand "crypto/rand"
	"fmt"
	"math/rand/v2"

	"gateman.io/infrastructure/biometric/types"
)

// DefaultActionPool is the catalog sessions draw their challenges from.
var DefaultActionPool = []types.ChallengeAction{
	{Key: types.ActionTurnLeft, Label: "Turn your head left", Icon: "⬅️"},
	{Key: types.ActionTurnRight, Label: "Turn your head right", Icon: "➡️"},
	{Key: types.ActionSmile, Label: "Smile", Icon: "😄"},
	{Key: types.ActionOpenMouth, Label: "Open your mouth", Icon: "😮"},
	{Key: types.ActionRaiseEyebrows, Label: "Raise your eyebrows", Icon: "🤨"},
	{Key: types.ActionNod, Label: "Nod your head", Icon: "↕️"},
}

// ChallengeSequence is the ordered list of actions for one session.
// The cursor only moves forward.
type ChallengeSequence struct {
	actions []types.ChallengeAction
	cursor  int
}

func (s *ChallengeSequence) Actions() []types.ChallengeAction {
	out := make([]types.ChallengeAction, len(s.actions))
	copy(out, s.actions)
	return out
}

func (s *ChallengeSequence) Len() int    { return len(s.actions) }
func (s *ChallengeSequence) Cursor() int { return s.cursor }

func (s *ChallengeSequence) Complete() bool {
	return s.cursor >= len(s.actions)
}

// Current returns the action the subject is asked to perform, false once the sequence is done.
func (s *ChallengeSequence) Current() (types.ChallengeAction, bool) {
	if s.Complete() {
		return types.ChallengeAction{}, false
	}
	return s.actions[s.cursor], true
}

func (s *ChallengeSequence) advance() {
	if !s.Complete() {
		s.cursor++
	}
}

// GenerateSequence shuffles the pool and keeps the first count actions.
// Duplicate keys in the pool are collapsed first so the result never repeats an action.
func GenerateSequence(pool []types.ChallengeAction, count int, rng *rand.Rand) (*ChallengeSequence, error) {
	seen := make(map[types.ActionKey]bool, len(pool))
	distinct := make([]types.ChallengeAction, 0, len(pool))
	for _, a := range pool {
		if a.Key == "" || seen[a.Key] {
			continue
		}
		seen[a.Key] = true
		distinct = append(distinct, a)
	}
	if count < 1 || count > len(distinct) {
		return nil, fmt.Errorf("%w: need %d distinct actions, pool has %d", ErrInvalidActionPool, count, len(distinct))
	}
	if rng == nil {
		rng = NewChallengeRand()
	}
	rng.Shuffle(len(distinct), func(i, j int) {
		distinct[i], distinct[j] = distinct[j], distinct[i]
	})
	return &ChallengeSequence{actions: distinct[:count:count]}, nil
}

// NewChallengeRand returns a generator seeded from the OS entropy source.
func NewChallengeRand() *rand.Rand {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewChaCha8(seed))
}

// NewSeededRand returns a reproducible generator, mainly for tests and replays.
func NewSeededRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
