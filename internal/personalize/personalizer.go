// Package personalize maintains per-user rehabilitation profiles and adapts
// each user's target range of motion rep by rep.
//
// Strategy: establish a baseline from the first few reps, start the target a
// small increment above it, then nudge the target up or down following an
// exponential moving average of movement quality. The target never regresses
// below the proven baseline, never chases far beyond the user's best ROM,
// and never exceeds the dataset-validated global maximum.
package personalize

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
)

var (
	// ErrInvalidROM is returned for a negative or non-finite rep ROM.
	ErrInvalidROM = errors.New("personalize: invalid rep ROM")
	// ErrInvalidQuality is returned for a quality score outside [0, 1].
	ErrInvalidQuality = errors.New("personalize: quality score out of range")
)

// Config configures a Personalizer. GlobalMaxROM is required; zero values
// elsewhere fall back to defaults.
type Config struct {
	GlobalMaxROM  float64 // maximum ROM observed in training data (degrees), required
	BaseIncrement float64 // initial increment above baseline (degrees), zero → 5
	MaxExtra      float64 // max increment above the user's best ROM (degrees), zero → 30
	EMAAlpha      float64 // quality smoothing weight in (0, 1], zero → 0.3
	BaselineReps  int     // reps used to establish the baseline, zero → 5
}

func (c *Config) normalize() error {
	if c.GlobalMaxROM <= 0 || math.IsInf(c.GlobalMaxROM, 0) || math.IsNaN(c.GlobalMaxROM) {
		return errors.New("personalize: global max ROM must be a positive number of degrees")
	}
	if c.BaseIncrement == 0 {
		c.BaseIncrement = 5.0
	}
	if c.MaxExtra == 0 {
		c.MaxExtra = 30.0
	}
	if c.EMAAlpha == 0 {
		c.EMAAlpha = 0.3
	}
	if c.EMAAlpha < 0 || c.EMAAlpha > 1 {
		return errors.New("personalize: ema alpha must be in (0, 1]")
	}
	if c.BaselineReps == 0 {
		c.BaselineReps = 5
	}
	if c.BaselineReps < 1 {
		return errors.New("personalize: baseline reps must be at least 1")
	}
	return nil
}

// profile is one user's adaptive state. BaselineROM and TargetROM are
// pointers so a genuine 0.0 can never be mistaken for "not yet established".
type profile struct {
	mu          sync.Mutex
	baselineROM *float64
	bestROM     float64
	emaQuality  float64
	repCount    int
	targetROM   *float64
	romHistory  []float64 // only used while establishing the baseline
}

// UserStats is a snapshot of one user's profile.
type UserStats struct {
	BaselineROMDeg *float64 `json:"baseline_rom_deg,omitempty"`
	BestROMDeg     float64  `json:"best_rom_deg"`
	EMAQuality     float64  `json:"ema_quality"`
	RepCount       int      `json:"rep_count"`
	TargetROMDeg   *float64 `json:"target_rom_deg,omitempty"`
}

// Personalizer owns the per-user profile map. Calls for the same user are
// serialized on the profile; calls for different users proceed concurrently.
// Profiles live in process memory only.
type Personalizer struct {
	cfg Config
	log *slog.Logger

	mu       sync.Mutex
	profiles map[string]*profile
}

// New creates a Personalizer. A nil logger disables logging.
func New(cfg Config, log *slog.Logger) (*Personalizer, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Personalizer{
		cfg:      cfg,
		log:      log,
		profiles: make(map[string]*profile),
	}, nil
}

func (p *Personalizer) profileFor(userID string) *profile {
	p.mu.Lock()
	defer p.mu.Unlock()
	prof, ok := p.profiles[userID]
	if !ok {
		prof = &profile{}
		p.profiles[userID] = prof
	}
	return prof
}

// UpdateAndGetTarget records one rep for the user and returns the target ROM
// for the next rep. Each call advances the profile by exactly one rep; never
// call it twice for the same rep.
func (p *Personalizer) UpdateAndGetTarget(userID string, repROM, quality float64) (float64, error) {
	if repROM < 0 || math.IsNaN(repROM) || math.IsInf(repROM, 0) {
		return 0, ErrInvalidROM
	}
	if quality < 0 || quality > 1 || math.IsNaN(quality) {
		return 0, ErrInvalidQuality
	}

	prof := p.profileFor(userID)
	prof.mu.Lock()
	defer prof.mu.Unlock()

	prof.repCount++
	if repROM > prof.bestROM {
		prof.bestROM = repROM
	}

	if prof.repCount == 1 {
		// No prior to blend against on the very first rep.
		prof.emaQuality = quality
	} else {
		prof.emaQuality = p.cfg.EMAAlpha*quality + (1-p.cfg.EMAAlpha)*prof.emaQuality
	}

	if prof.baselineROM == nil {
		prof.romHistory = append(prof.romHistory, repROM)
		if len(prof.romHistory) < p.cfg.BaselineReps {
			// Still collecting baseline samples: return a conservative
			// estimate keyed to this rep alone.
			return math.Min(repROM+p.cfg.BaseIncrement, p.cfg.GlobalMaxROM), nil
		}

		baseline := meanOf(prof.romHistory)
		target := math.Min(baseline+p.cfg.BaseIncrement, p.cfg.GlobalMaxROM)
		prof.baselineROM = &baseline
		prof.targetROM = &target
		prof.romHistory = nil

		p.log.Info("baseline ROM established",
			"user", userID,
			"baseline_deg", baseline,
			"target_deg", target)
		return target, nil
	}

	target := *prof.targetROM + adjustment(prof.emaQuality)

	// Clamp order matters: baseline floor, then best-relative ceiling,
	// then the global ceiling.
	target = math.Max(target, *prof.baselineROM)
	target = math.Min(target, prof.bestROM+p.cfg.MaxExtra)
	target = math.Min(target, p.cfg.GlobalMaxROM)

	prof.targetROM = &target
	return target, nil
}

// adjustment maps smoothed quality to a per-rep target change in degrees.
func adjustment(emaQuality float64) float64 {
	switch {
	case emaQuality > 0.8:
		return 2.0
	case emaQuality > 0.6:
		return 1.0
	case emaQuality > 0.4:
		return 0.0
	default:
		return -2.0
	}
}

// Stats returns a snapshot of the user's profile, or false if the user has
// never been seen.
func (p *Personalizer) Stats(userID string) (UserStats, bool) {
	p.mu.Lock()
	prof, ok := p.profiles[userID]
	p.mu.Unlock()
	if !ok {
		return UserStats{}, false
	}

	prof.mu.Lock()
	defer prof.mu.Unlock()
	stats := UserStats{
		BestROMDeg: prof.bestROM,
		EMAQuality: prof.emaQuality,
		RepCount:   prof.repCount,
	}
	if prof.baselineROM != nil {
		v := *prof.baselineROM
		stats.BaselineROMDeg = &v
	}
	if prof.targetROM != nil {
		v := *prof.targetROM
		stats.TargetROMDeg = &v
	}
	return stats, true
}

// ResetUser discards the user's profile, if any.
func (p *Personalizer) ResetUser(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.profiles, userID)
}

func meanOf(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
