// Package policy holds the coaching decision seam. A trained agent plugs in
// behind the same one-method interface the built-in policies implement.
package policy

import (
	"math/rand"

	"github.com/claude/rehabcoach/internal/session"
)

// Policy chooses the next coaching action from the session's state vector.
type Policy interface {
	Action(state []float64) session.Action
}

// State vector indices the rule-based coach reads.
const (
	idxConsistency = 10
	idxFatigue     = 11
	idxSuccessRate = 17
)

// Coach is a deterministic rule-based policy: rest a fatigued user, back off
// after repeated misses, push a consistent performer, otherwise hold steady.
type Coach struct{}

// NewCoach returns the rule-based coaching policy.
func NewCoach() *Coach { return &Coach{} }

// Action implements Policy.
func (c *Coach) Action(state []float64) session.Action {
	fatigue := state[idxFatigue]
	successRate := state[idxSuccessRate]
	consistency := state[idxConsistency]

	switch {
	case fatigue >= 0.7:
		return session.ActionRest
	case successRate < 0.3:
		return session.ActionDecreaseDifficulty
	case fatigue >= 0.5:
		return session.ActionEncourage
	case successRate > 0.8 && consistency > 0.6:
		return session.ActionIncreaseDifficulty
	default:
		return session.ActionMaintain
	}
}

// Random samples actions uniformly; useful for smoke-testing the
// environment the way the original random-rollout harness did.
type Random struct {
	rng *rand.Rand
}

// NewRandom returns a uniform random policy seeded with seed.
func NewRandom(seed int64) *Random {
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

// Action implements Policy.
func (r *Random) Action(_ []float64) session.Action {
	return session.Action(r.rng.Intn(5))
}
