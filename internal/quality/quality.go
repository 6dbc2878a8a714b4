// Package quality defines the contract with the movement quality estimator
// and the caller-side checks that guard it. The estimator itself (a trained
// sequence model) is an external collaborator; this package never loads or
// runs one.
package quality

import (
	"errors"
	"fmt"
	"math"
)

// KinectAngleFeatures is the number of joint-angle columns the estimator is
// trained on.
const KinectAngleFeatures = 18

// MinTimesteps is the shortest rep sequence the estimator accepts.
const MinTimesteps = 3

var (
	// ErrShortSequence is returned for a rep with fewer than MinTimesteps samples.
	ErrShortSequence = errors.New("quality: sequence too short")
	// ErrFeatureCount is returned when a timestep's width does not match the
	// training configuration.
	ErrFeatureCount = errors.New("quality: feature count mismatch")
	// ErrNonFinite is returned when a sample is NaN or infinite.
	ErrNonFinite = errors.New("quality: non-finite sample")
)

// Estimator scores one repetition's joint-angle sequence. It returns a
// quality score in [0, 1] and the rep's range of motion in degrees.
type Estimator interface {
	Score(seq [][]float64) (quality, romDeg float64, err error)
}

// ValidateSequence rejects malformed rep sequences before they reach the
// estimator or the personalizer: too few timesteps, a row whose width does
// not match wantFeatures, or any non-finite sample.
func ValidateSequence(seq [][]float64, wantFeatures int) error {
	if len(seq) < MinTimesteps {
		return fmt.Errorf("%w: %d timesteps, need at least %d", ErrShortSequence, len(seq), MinTimesteps)
	}
	for t, row := range seq {
		if len(row) != wantFeatures {
			return fmt.Errorf("%w: timestep %d has %d features, want %d", ErrFeatureCount, t, len(row), wantFeatures)
		}
		for f, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: timestep %d feature %d", ErrNonFinite, t, f)
			}
		}
	}
	return nil
}

// RepROM computes the range of motion for a repetition: the maximum absolute
// joint angle across all timesteps and features, in degrees.
func RepROM(seq [][]float64) float64 {
	var rom float64
	for _, row := range seq {
		for _, v := range row {
			if a := math.Abs(v); a > rom {
				rom = a
			}
		}
	}
	return rom
}
