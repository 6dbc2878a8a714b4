// Command rehabcoach-sim runs simulated rehabilitation sessions under a
// chosen coaching policy, feeds each rep through the personalization engine,
// and optionally records episode outcomes for later comparison.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/rehabcoach/internal/config"
	"github.com/claude/rehabcoach/internal/episodes"
	"github.com/claude/rehabcoach/internal/personalize"
	"github.com/claude/rehabcoach/internal/policy"
	"github.com/claude/rehabcoach/internal/session"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// maxStepsPerEpisode caps an episode in case a policy rests forever.
const maxStepsPerEpisode = 200

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	episodeCount := flag.Int("episodes", 0, "episodes to run (overrides config)")
	policyName := flag.String("policy", "", "coaching policy: coach or random (overrides config)")
	seed := flag.Int64("seed", 0, "RNG seed (overrides config)")
	dbDir := flag.String("db", "", "directory for the episode database (overrides config)")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("rehabcoach-sim starting", "version", Version)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *episodeCount > 0 {
		cfg.Simulator.Episodes = *episodeCount
	}
	if *policyName != "" {
		cfg.Simulator.Policy = *policyName
	}
	if *seed != 0 {
		cfg.Simulator.Seed = *seed
	}
	if *dbDir != "" {
		cfg.Simulator.DatabaseDir = *dbDir
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	var pol policy.Policy
	switch cfg.Simulator.Policy {
	case "random":
		pol = policy.NewRandom(cfg.Simulator.Seed)
	default:
		pol = policy.NewCoach()
	}

	env := session.New(session.Config{
		MaxReps:                cfg.Session.MaxReps,
		FatigueQuitThreshold:   cfg.Session.FatigueQuitThreshold,
		MaxConsecutiveFailures: cfg.Session.MaxConsecutiveFailures,
		Seed:                   cfg.Simulator.Seed,
	})

	personalizer, err := personalize.New(personalize.Config{
		GlobalMaxROM:  cfg.Personalizer.GlobalMaxROMDeg,
		BaseIncrement: cfg.Personalizer.BaseIncrementDeg,
		MaxExtra:      cfg.Personalizer.MaxExtraDeg,
		EMAAlpha:      cfg.Personalizer.EMAAlpha,
		BaselineReps:  cfg.Personalizer.BaselineReps,
	}, log)
	if err != nil {
		log.Error("failed to create personalizer", "error", err)
		os.Exit(1)
	}

	var store *episodes.Store
	if cfg.Simulator.DatabaseDir != "" {
		store, err = episodes.Open(cfg.Simulator.DatabaseDir)
		if err != nil {
			log.Error("failed to open episode store", "error", err)
			os.Exit(1)
		}
		defer store.Close()
	}

	const userID = "sim-user"
	var totalReward float64
	completed := 0

	for i := 0; i < cfg.Simulator.Episodes; i++ {
		ep, err := runEpisode(env, pol, personalizer, userID, cfg.Simulator.Policy)
		if err != nil {
			log.Error("episode failed", "episode", i+1, "error", err)
			os.Exit(1)
		}

		log.Info("episode finished",
			"episode", i+1,
			"session", ep.SessionID,
			"steps", ep.Steps,
			"reps", ep.Reps,
			"reward", fmt.Sprintf("%.1f", ep.TotalReward),
			"mean_quality", fmt.Sprintf("%.2f", ep.MeanQuality),
			"termination", ep.Termination)

		totalReward += ep.TotalReward
		if ep.Termination == session.TermSessionComplete {
			completed++
		}
		if store != nil {
			if err := store.Record(ep); err != nil {
				log.Error("failed to record episode", "error", err)
				os.Exit(1)
			}
		}
	}

	if stats, ok := personalizer.Stats(userID); ok {
		attrs := []any{
			"reps", stats.RepCount,
			"best_rom_deg", fmt.Sprintf("%.1f", stats.BestROMDeg),
			"ema_quality", fmt.Sprintf("%.2f", stats.EMAQuality),
		}
		if stats.TargetROMDeg != nil {
			attrs = append(attrs, "target_rom_deg", fmt.Sprintf("%.1f", *stats.TargetROMDeg))
		}
		log.Info("personalizer profile", attrs...)
	}

	log.Info("simulation complete",
		"episodes", cfg.Simulator.Episodes,
		"completed", completed,
		"mean_reward", fmt.Sprintf("%.1f", totalReward/float64(cfg.Simulator.Episodes)))
}

// runEpisode steps one session to termination, routing every simulated rep
// through the personalizer the way a live deployment routes estimator
// output.
func runEpisode(env *session.Env, pol policy.Policy, personalizer *personalize.Personalizer, userID, policyName string) (episodes.Episode, error) {
	state, info := env.Reset()
	ep := episodes.Episode{
		SessionID: info.SessionID,
		Policy:    policyName,
	}

	var qualitySum float64
	for ep.Steps < maxStepsPerEpisode {
		result, err := env.Step(pol.Action(state))
		if err != nil {
			return episodes.Episode{}, fmt.Errorf("stepping session: %w", err)
		}
		ep.Steps++
		ep.TotalReward += result.Reward
		state = result.State

		if result.Info.AchievedDeg > 0 {
			ep.Reps++
			qualitySum += result.Info.Quality
			if _, err := personalizer.UpdateAndGetTarget(userID, result.Info.AchievedDeg, result.Info.Quality); err != nil {
				return episodes.Episode{}, fmt.Errorf("updating personalizer: %w", err)
			}
		}

		if result.Terminated {
			ep.Termination = result.Info.Termination
			break
		}
	}
	if ep.Termination == "" {
		ep.Termination = "step_limit"
	}
	if ep.Reps > 0 {
		ep.MeanQuality = qualitySum / float64(ep.Reps)
	}
	return ep, nil
}
