package session

import "math"

// StateSize is the length of the state vector handed to a policy.
const StateSize = 20

// State vector layout. Fixed: trained policies depend on the order.
//
//	 0–9  last 10 achieved angles / 180, oldest first, zero-padded at the end
//	10    consistency: 1 − min(std(last 10)/30, 1); 0.5 with fewer than 3 reps
//	11    fatigue
//	12    session duration / 3600
//	13    current target / 180
//	14    user baseline / 180
//	15    streak days / 100
//	16    reps completed / 50
//	17    success rate over last 10 reps (within ±10° of target); 0.5 when empty
//	18    mean quality this session; 0.5 when empty
//	19    rest timer / 600
func (e *Env) stateVector() []float64 {
	state := make([]float64, StateSize)

	recent := lastN(e.repHistory, 10)
	for i, angle := range recent {
		state[i] = angle / 180.0
	}

	if len(e.repHistory) >= 3 {
		state[10] = 1.0 - math.Min(stddev(recent)/30.0, 1.0)
	} else {
		state[10] = 0.5
	}

	state[11] = e.fatigue
	state[12] = e.sessionDuration / 3600.0
	state[13] = e.currentTarget / 180.0
	state[14] = e.userBaseline / 180.0
	state[15] = float64(e.streakDays) / 100.0
	state[16] = float64(e.repsCompleted) / 50.0

	if len(recent) > 0 {
		hits := 0
		for _, angle := range recent {
			if math.Abs(angle-e.currentTarget) <= goodFormToleranceDeg {
				hits++
			}
		}
		state[17] = float64(hits) / float64(len(recent))
	} else {
		state[17] = 0.5
	}

	if len(e.sessionQuality) > 0 {
		state[18] = mean(e.sessionQuality)
	} else {
		state[18] = 0.5
	}

	state[19] = e.restTimer / 600.0

	return state
}

// lastN returns up to the last n elements of xs without copying.
func lastN(xs []float64, n int) []float64 {
	if len(xs) <= n {
		return xs
	}
	return xs[len(xs)-n:]
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the population standard deviation of xs.
func stddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
