package session

import "math/rand"

// RepView is the slice of session state a rep source may observe.
type RepView struct {
	BaselineDeg float64
	TargetDeg   float64
	Fatigue     float64
}

// RepSource produces one repetition's outcome. The built-in implementation
// simulates the user; a live deployment substitutes real sensor readings
// scored by the quality estimator.
type RepSource interface {
	Rep(view RepView) (achievedDeg, quality float64)
}

// simulatedReps models a user attempting a rep: baseline ability with
// gaussian noise, degraded by fatigue, and pulled off-target in proportion
// to how far the target sits from the baseline.
type simulatedReps struct {
	rng *rand.Rand
}

func (s *simulatedReps) Rep(view RepView) (float64, float64) {
	noise := s.rng.NormFloat64() * 5
	fatiguePenalty := view.Fatigue * 10
	difficulty := view.TargetDeg - view.BaselineDeg
	if difficulty < 0 {
		difficulty = -difficulty
	}

	achieved := view.BaselineDeg - noise + fatiguePenalty + difficulty*0.3
	achieved = clamp(achieved, MinAngleDeg, MaxAngleDeg)

	// Quality falls off linearly with distance from the target, reaching
	// zero at a 20° miss.
	errDeg := achieved - view.TargetDeg
	if errDeg < 0 {
		errDeg = -errDeg
	}
	quality := 1.0 - errDeg/unreachableToleranceDeg
	if quality < 0 {
		quality = 0
	}

	return achieved, quality
}
