package session

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Action is a discrete coaching decision applied to the session.
type Action int

const (
	// ActionDecreaseDifficulty raises the target angle by 5° (easier: a
	// higher target is closer to where a resting joint sits).
	ActionDecreaseDifficulty Action = iota
	// ActionMaintain leaves the target unchanged.
	ActionMaintain
	// ActionIncreaseDifficulty lowers the target angle by 5° (harder).
	ActionIncreaseDifficulty
	// ActionRest skips the rep and lets the user recover.
	ActionRest
	// ActionEncourage slightly reduces fatigue without skipping the rep.
	ActionEncourage

	numActions = 5
)

// Name returns the wire name of the action.
func (a Action) Name() string {
	switch a {
	case ActionDecreaseDifficulty:
		return "decrease_difficulty"
	case ActionMaintain:
		return "maintain_difficulty"
	case ActionIncreaseDifficulty:
		return "increase_difficulty"
	case ActionRest:
		return "rest_break"
	case ActionEncourage:
		return "encouragement"
	}
	return "unknown"
}

// Termination reasons reported in Info when a session ends.
const (
	TermSessionComplete = "session_complete"
	TermFatigueQuit     = "fatigue_quit"
	TermFrustrationQuit = "frustration_quit"
)

// Physiological angle bounds in degrees. All targets and achieved angles
// are clamped to this range before use.
const (
	MinAngleDeg = 60.0
	MaxAngleDeg = 120.0

	targetStepDeg = 5.0
)

// Config configures an Env. Zero values produce the standard session rules.
type Config struct {
	MaxReps                int       // zero → 20
	FatigueQuitThreshold   float64   // zero → 0.9
	MaxConsecutiveFailures int       // zero → 5
	Source                 RepSource // nil → built-in noise model
	Seed                   int64     // zero → time-based
}

// Env is the exercise session environment: a single-session state machine
// that applies coaching actions, observes (or simulates) reps, and produces
// rewards for a policy learner. One Env instance owns exactly one active
// session; it is not safe for concurrent use.
type Env struct {
	maxReps     int
	fatigueQuit float64
	maxFailures int
	source      RepSource
	rng         *rand.Rand

	sessionID            uuid.UUID
	userBaseline         float64
	currentTarget        float64
	repHistory           []float64
	sessionQuality       []float64
	repsCompleted        int
	sessionDuration      float64
	fatigue              float64
	consecutiveSuccesses int
	consecutiveFailures  int
	restTimer            float64
	streakDays           int

	// personalBest tracks the best achieved angle this session. A smaller
	// angle counts as a new best in this movement's convention.
	personalBest float64
}

// Info carries per-step diagnostics alongside the state vector.
type Info struct {
	SessionID   string
	Action      string
	AchievedDeg float64
	Quality     float64
	RepReward   float64
	Termination string
	TargetDeg   float64
	Fatigue     float64
	Successes   int
}

// StepResult is the outcome of a single environment step.
type StepResult struct {
	State      []float64
	Reward     float64
	Terminated bool
	Truncated  bool
	Info       Info
}

// New creates an Env from the given config, filling zero-value fields with
// the standard session rules.
func New(cfg Config) *Env {
	maxReps := cfg.MaxReps
	if maxReps == 0 {
		maxReps = 20
	}
	fatigueQuit := cfg.FatigueQuitThreshold
	if fatigueQuit == 0 {
		fatigueQuit = 0.9
	}
	maxFailures := cfg.MaxConsecutiveFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	e := &Env{
		maxReps:     maxReps,
		fatigueQuit: fatigueQuit,
		maxFailures: maxFailures,
		rng:         rand.New(rand.NewSource(seed)),
	}
	if cfg.Source != nil {
		e.source = cfg.Source
	} else {
		e.source = &simulatedReps{rng: e.rng}
	}
	return e
}

// Reset starts a fresh session: a new randomized baseline, a slightly
// challenging initial target, and zeroed counters. It may be called any
// number of times; no state carries over between sessions.
func (e *Env) Reset() ([]float64, Info) {
	e.sessionID = uuid.New()
	e.userBaseline = 80 + e.rng.Float64()*30 // innate ability, uniform [80, 110]
	e.currentTarget = e.userBaseline + targetStepDeg
	e.repHistory = nil
	e.sessionQuality = nil
	e.repsCompleted = 0
	e.sessionDuration = 0
	e.fatigue = 0
	e.consecutiveSuccesses = 0
	e.consecutiveFailures = 0
	e.restTimer = 0
	e.streakDays = 0
	e.personalBest = e.userBaseline

	return e.stateVector(), Info{
		SessionID: e.sessionID.String(),
		TargetDeg: e.currentTarget,
	}
}

// ResetSeeded reseeds the environment's RNG and then resets, for
// reproducible sessions.
func (e *Env) ResetSeeded(seed int64) ([]float64, Info) {
	e.rng.Seed(seed)
	return e.Reset()
}

// SetStreakDays records how many consecutive days the user has exercised.
// The value is surfaced to the policy through the state vector; it is the
// caller's job to carry it across sessions.
func (e *Env) SetStreakDays(days int) {
	if days < 0 {
		days = 0
	}
	e.streakDays = days
}

// Step applies one coaching action, observes one rep unless the action is a
// rest break, and returns the new state, the accumulated reward, and
// termination flags. An out-of-range action is a contract violation and
// returns ErrInvalidAction without touching session state.
func (e *Env) Step(action Action) (StepResult, error) {
	if action < 0 || action >= numActions {
		return StepResult{}, ErrInvalidAction
	}

	var reward float64
	info := Info{
		SessionID: e.sessionID.String(),
		Action:    action.Name(),
	}

	e.applyAction(action)

	if action != ActionRest {
		achieved, quality := e.source.Rep(RepView{
			BaselineDeg: e.userBaseline,
			TargetDeg:   e.currentTarget,
			Fatigue:     e.fatigue,
		})
		achieved = clamp(achieved, MinAngleDeg, MaxAngleDeg)
		quality = clamp(quality, 0, 1)

		e.repHistory = append(e.repHistory, achieved)
		e.sessionQuality = append(e.sessionQuality, quality)
		e.repsCompleted++
		e.restTimer += 10 // seconds per rep

		repReward := e.repReward(achieved)
		reward += repReward

		info.AchievedDeg = achieved
		info.Quality = quality
		info.RepReward = repReward

		e.updateFatigue()
	} else {
		e.fatigue = clamp(e.fatigue-0.2, 0, 1)
		e.restTimer = 0
		reward += rewardRest
	}

	var terminated bool
	switch {
	case e.repsCompleted >= e.maxReps:
		terminated = true
		reward += rewardSessionComplete
		info.Termination = TermSessionComplete
	case e.fatigue >= e.fatigueQuit:
		terminated = true
		reward += penaltyFatigueQuit
		info.Termination = TermFatigueQuit
	case e.consecutiveFailures >= e.maxFailures:
		terminated = true
		reward += penaltyFrustrationQuit
		info.Termination = TermFrustrationQuit
	}

	e.sessionDuration += 10

	info.TargetDeg = e.currentTarget
	info.Fatigue = e.fatigue
	info.Successes = e.consecutiveSuccesses

	return StepResult{
		State:      e.stateVector(),
		Reward:     reward,
		Terminated: terminated,
		Info:       info,
	}, nil
}

func (e *Env) applyAction(action Action) {
	switch action {
	case ActionDecreaseDifficulty:
		e.currentTarget = clamp(e.currentTarget+targetStepDeg, MinAngleDeg, MaxAngleDeg)
	case ActionIncreaseDifficulty:
		e.currentTarget = clamp(e.currentTarget-targetStepDeg, MinAngleDeg, MaxAngleDeg)
	case ActionEncourage:
		e.fatigue = clamp(e.fatigue-0.05, 0, 1)
	}
}

func (e *Env) updateFatigue() {
	e.fatigue += 0.02

	// Poor recent form tires the user out faster.
	if len(e.sessionQuality) > 0 && mean(lastN(e.sessionQuality, 5)) < 0.5 {
		e.fatigue += 0.03
	}

	// More than two minutes without a rest break.
	if e.restTimer > 120 {
		e.fatigue += 0.05
	}

	e.fatigue = clamp(e.fatigue, 0, 1)
}
