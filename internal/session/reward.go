package session

import "math"

// Reward table. These constants are the training signal: changing any of
// them changes what a policy learns, so treat them as fixed tuning, not
// refactorable magic numbers.
const (
	rewardAttempt          = 5.0
	rewardPerfectForm      = 20.0
	rewardGoodForm         = 10.0
	penaltyMissedTarget    = -10.0
	rewardStreakBonus      = 50.0
	rewardPersonalBest     = 100.0
	penaltyTooEasy         = -5.0
	penaltyUnreachable     = -5.0
	rewardRest             = 5.0
	rewardSessionComplete  = 100.0
	penaltyFatigueQuit     = -50.0
	penaltyFrustrationQuit = -30.0
)

// Form tolerances in degrees.
const (
	perfectFormToleranceDeg = 3.0
	goodFormToleranceDeg    = 10.0
	unreachableToleranceDeg = 20.0
	tooEasyMarginDeg        = 15.0
	streakBonusLength       = 5
)

// repReward scores one observed rep and updates the success/failure streaks
// and the session personal best.
func (e *Env) repReward(achieved float64) float64 {
	reward := rewardAttempt

	errDeg := math.Abs(achieved - e.currentTarget)
	switch {
	case errDeg <= perfectFormToleranceDeg:
		reward += rewardPerfectForm
		e.consecutiveSuccesses++
		e.consecutiveFailures = 0
	case errDeg <= goodFormToleranceDeg:
		reward += rewardGoodForm
		e.consecutiveSuccesses++
		e.consecutiveFailures = 0
	default:
		reward += penaltyMissedTarget
		e.consecutiveSuccesses = 0
		e.consecutiveFailures++
	}

	// One bonus per full streak; the counter restarts from zero so the
	// bonus is never awarded twice for overlapping runs.
	if e.consecutiveSuccesses >= streakBonusLength {
		reward += rewardStreakBonus
		e.consecutiveSuccesses = 0
	}

	// Smaller achieved angle counts as a new personal best.
	if achieved < e.personalBest {
		e.personalBest = achieved
		reward += rewardPersonalBest
	}

	// Target drifted far above the user's ability: not challenging.
	if e.currentTarget > e.userBaseline+tooEasyMarginDeg {
		reward += penaltyTooEasy
	}

	// Target far out of reach: the user is struggling.
	if errDeg > unreachableToleranceDeg {
		reward += penaltyUnreachable
	}

	return reward
}
