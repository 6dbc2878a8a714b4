package personalize

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"
)

func newTestPersonalizer(t *testing.T, cfg Config) *Personalizer {
	t.Helper()
	if cfg.GlobalMaxROM == 0 {
		cfg.GlobalMaxROM = 150
	}
	p, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

// TestConfigValidation verifies that a missing global max ROM and
// out-of-range smoothing weights are rejected at construction.
func TestConfigValidation(t *testing.T) {
	if _, err := New(Config{}, nil); err == nil {
		t.Error("expected error for missing global max ROM")
	}
	if _, err := New(Config{GlobalMaxROM: 150, EMAAlpha: 1.5}, nil); err == nil {
		t.Error("expected error for ema alpha > 1")
	}
	if _, err := New(Config{GlobalMaxROM: 150, BaselineReps: -1}, nil); err == nil {
		t.Error("expected error for negative baseline reps")
	}
}

// TestBaselineEstablishment verifies the baseline is the mean of the first
// five ROMs and the initial target sits one increment above it.
func TestBaselineEstablishment(t *testing.T) {
	p := newTestPersonalizer(t, Config{})
	roms := []float64{80, 82, 85, 83, 87}

	var target float64
	for _, rom := range roms {
		var err error
		target, err = p.UpdateAndGetTarget("u1", rom, 0.6)
		if err != nil {
			t.Fatalf("update: %v", err)
		}
	}

	stats, ok := p.Stats("u1")
	if !ok {
		t.Fatal("missing profile")
	}
	if stats.BaselineROMDeg == nil || math.Abs(*stats.BaselineROMDeg-83.4) > 1e-9 {
		t.Fatalf("baseline = %v, want 83.4", stats.BaselineROMDeg)
	}
	if math.Abs(target-88.4) > 1e-9 {
		t.Errorf("initial target = %v, want 88.4", target)
	}
	if stats.TargetROMDeg == nil || *stats.TargetROMDeg != target {
		t.Errorf("stats target = %v, want %v", stats.TargetROMDeg, target)
	}
}

// TestBaselinePhaseReturnsConservativeEstimate verifies that while the
// baseline is still forming, each call returns the rep's own ROM plus the
// base increment, capped at the global max, and the profile target stays
// unset.
func TestBaselinePhaseReturnsConservativeEstimate(t *testing.T) {
	p := newTestPersonalizer(t, Config{GlobalMaxROM: 90})

	for i, rom := range []float64{80, 88, 82, 85} {
		target, err := p.UpdateAndGetTarget("u1", rom, 0.9)
		if err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
		want := math.Min(rom+5, 90)
		if math.Abs(target-want) > 1e-9 {
			t.Errorf("rep %d: target = %v, want %v", i+1, target, want)
		}
	}

	stats, _ := p.Stats("u1")
	if stats.TargetROMDeg != nil {
		t.Errorf("target set to %v during baseline phase, want unset", *stats.TargetROMDeg)
	}
	if stats.BaselineROMDeg != nil {
		t.Errorf("baseline set to %v after 4 reps, want unset", *stats.BaselineROMDeg)
	}
}

// TestFirstRepEMATakesQualityDirectly verifies there is no blending against
// an arbitrary prior on the very first rep.
func TestFirstRepEMATakesQualityDirectly(t *testing.T) {
	p := newTestPersonalizer(t, Config{})
	if _, err := p.UpdateAndGetTarget("u1", 80, 0.9); err != nil {
		t.Fatal(err)
	}
	stats, _ := p.Stats("u1")
	if stats.EMAQuality != 0.9 {
		t.Errorf("ema after first rep = %v, want 0.9 exactly", stats.EMAQuality)
	}

	// Second rep blends with alpha 0.3: 0.3*0.5 + 0.7*0.9.
	if _, err := p.UpdateAndGetTarget("u1", 80, 0.5); err != nil {
		t.Fatal(err)
	}
	stats, _ = p.Stats("u1")
	want := 0.3*0.5 + 0.7*0.9
	if math.Abs(stats.EMAQuality-want) > 1e-12 {
		t.Errorf("ema after second rep = %v, want %v", stats.EMAQuality, want)
	}
}

// TestHighQualityRaisesTarget verifies the post-baseline adjustment: with a
// high quality EMA the target climbs 2° per rep until a ceiling stops it.
func TestHighQualityRaisesTarget(t *testing.T) {
	p := newTestPersonalizer(t, Config{})

	var prev float64
	for i := 0; i < 5; i++ {
		var err error
		prev, err = p.UpdateAndGetTarget("u1", 80, 0.95)
		if err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 3; i++ {
		target, err := p.UpdateAndGetTarget("u1", 80, 0.95)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(target-(prev+2)) > 1e-9 {
			t.Errorf("rep %d: target = %v, want %v", i+6, target, prev+2)
		}
		prev = target
	}
}

// TestLowQualityNeverDropsBelowBaseline verifies the baseline floor: a long
// run of poor reps walks the target down to the baseline and no further.
func TestLowQualityNeverDropsBelowBaseline(t *testing.T) {
	p := newTestPersonalizer(t, Config{})

	for i := 0; i < 5; i++ {
		if _, err := p.UpdateAndGetTarget("u1", 80, 0.2); err != nil {
			t.Fatal(err)
		}
	}
	var target float64
	for i := 0; i < 20; i++ {
		var err error
		target, err = p.UpdateAndGetTarget("u1", 80, 0.1)
		if err != nil {
			t.Fatal(err)
		}
	}
	if math.Abs(target-80) > 1e-9 {
		t.Errorf("target = %v after sustained poor quality, want baseline 80", target)
	}
}

// TestTargetCeilings verifies the best-relative and global ceilings: high
// quality cannot push the target past best ROM + max extra, nor past the
// global max.
func TestTargetCeilings(t *testing.T) {
	p := newTestPersonalizer(t, Config{GlobalMaxROM: 150})

	var target float64
	for i := 0; i < 60; i++ {
		var err error
		target, err = p.UpdateAndGetTarget("u1", 80, 0.95)
		if err != nil {
			t.Fatal(err)
		}
	}
	// Best ROM stays 80, so the ceiling is 80 + 30.
	if math.Abs(target-110) > 1e-9 {
		t.Errorf("target = %v, want best-relative ceiling 110", target)
	}

	p2 := newTestPersonalizer(t, Config{GlobalMaxROM: 95})
	for i := 0; i < 60; i++ {
		var err error
		target, err = p2.UpdateAndGetTarget("u1", 80, 0.95)
		if err != nil {
			t.Fatal(err)
		}
	}
	if math.Abs(target-95) > 1e-9 {
		t.Errorf("target = %v, want global ceiling 95", target)
	}
}

// TestTargetBoundsProperty drives random (rom, quality) sequences and checks
// the spec invariant: once set, the target never leaves
// [baseline, min(best+30, globalMax)].
func TestTargetBoundsProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	p := newTestPersonalizer(t, Config{GlobalMaxROM: 150})

	for i := 0; i < 2000; i++ {
		rom := 40 + rng.Float64()*120
		q := rng.Float64()
		if _, err := p.UpdateAndGetTarget("u1", rom, q); err != nil {
			t.Fatal(err)
		}
		stats, _ := p.Stats("u1")
		if stats.TargetROMDeg == nil {
			continue
		}
		target := *stats.TargetROMDeg
		if target < *stats.BaselineROMDeg-1e-9 {
			t.Fatalf("rep %d: target %v below baseline %v", i, target, *stats.BaselineROMDeg)
		}
		ceiling := math.Min(stats.BestROMDeg+30, 150)
		if target > ceiling+1e-9 {
			t.Fatalf("rep %d: target %v above ceiling %v", i, target, ceiling)
		}
	}
}

// TestInterleavedUsersIndependent verifies no cross-contamination: updating
// two users turn by turn yields exactly the targets each would get alone.
func TestInterleavedUsersIndependent(t *testing.T) {
	seqA := [][2]float64{{80, 0.5}, {85, 0.7}, {90, 0.9}, {88, 0.8}, {92, 0.85}, {95, 0.9}, {97, 0.95}}
	seqB := [][2]float64{{60, 0.3}, {62, 0.4}, {65, 0.5}, {63, 0.45}, {66, 0.6}, {70, 0.7}, {72, 0.75}}

	solo := newTestPersonalizer(t, Config{})
	var soloA, soloB []float64
	for _, r := range seqA {
		target, err := solo.UpdateAndGetTarget("a", r[0], r[1])
		if err != nil {
			t.Fatal(err)
		}
		soloA = append(soloA, target)
	}
	for _, r := range seqB {
		target, err := solo.UpdateAndGetTarget("b", r[0], r[1])
		if err != nil {
			t.Fatal(err)
		}
		soloB = append(soloB, target)
	}

	mixed := newTestPersonalizer(t, Config{})
	for i := range seqA {
		gotA, err := mixed.UpdateAndGetTarget("a", seqA[i][0], seqA[i][1])
		if err != nil {
			t.Fatal(err)
		}
		gotB, err := mixed.UpdateAndGetTarget("b", seqB[i][0], seqB[i][1])
		if err != nil {
			t.Fatal(err)
		}
		if gotA != soloA[i] {
			t.Errorf("rep %d user a: interleaved %v, solo %v", i+1, gotA, soloA[i])
		}
		if gotB != soloB[i] {
			t.Errorf("rep %d user b: interleaved %v, solo %v", i+1, gotB, soloB[i])
		}
	}
}

// TestConcurrentDistinctUsers verifies that concurrent updates for different
// users are safe and each profile ends with its own rep count.
func TestConcurrentDistinctUsers(t *testing.T) {
	p := newTestPersonalizer(t, Config{})
	users := []string{"a", "b", "c", "d"}
	const reps = 200

	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			for i := 0; i < reps; i++ {
				if _, err := p.UpdateAndGetTarget(userID, 80+float64(i%10), 0.7); err != nil {
					t.Errorf("%s: %v", userID, err)
					return
				}
			}
		}(u)
	}
	wg.Wait()

	for _, u := range users {
		stats, ok := p.Stats(u)
		if !ok || stats.RepCount != reps {
			t.Errorf("%s: rep count = %d, want %d", u, stats.RepCount, reps)
		}
	}
}

// TestStatsSnapshotMatchesReturn verifies the round-trip property: the stats
// target immediately after an update equals the value that update returned.
func TestStatsSnapshotMatchesReturn(t *testing.T) {
	p := newTestPersonalizer(t, Config{})
	for i := 0; i < 10; i++ {
		target, err := p.UpdateAndGetTarget("u1", 80+float64(i), 0.7)
		if err != nil {
			t.Fatal(err)
		}
		stats, ok := p.Stats("u1")
		if !ok {
			t.Fatal("missing profile")
		}
		if stats.TargetROMDeg != nil && *stats.TargetROMDeg != target {
			t.Errorf("rep %d: stats target %v != returned %v", i+1, *stats.TargetROMDeg, target)
		}
	}
}

// TestResetUserDiscardsProfile verifies a reset user starts over from the
// baseline phase.
func TestResetUserDiscardsProfile(t *testing.T) {
	p := newTestPersonalizer(t, Config{})
	for i := 0; i < 6; i++ {
		if _, err := p.UpdateAndGetTarget("u1", 85, 0.7); err != nil {
			t.Fatal(err)
		}
	}
	p.ResetUser("u1")
	if _, ok := p.Stats("u1"); ok {
		t.Fatal("profile survived reset")
	}

	target, err := p.UpdateAndGetTarget("u1", 70, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(target-75) > 1e-9 {
		t.Errorf("post-reset target = %v, want conservative 75", target)
	}
}

// TestInvalidInputsRejected verifies boundary rejection of malformed reps:
// out-of-range quality and non-finite or negative ROM never touch the
// profile.
func TestInvalidInputsRejected(t *testing.T) {
	p := newTestPersonalizer(t, Config{})

	cases := []struct {
		name    string
		rom     float64
		quality float64
		want    error
	}{
		{"negative rom", -1, 0.5, ErrInvalidROM},
		{"nan rom", math.NaN(), 0.5, ErrInvalidROM},
		{"inf rom", math.Inf(1), 0.5, ErrInvalidROM},
		{"quality above one", 80, 1.5, ErrInvalidQuality},
		{"negative quality", 80, -0.1, ErrInvalidQuality},
		{"nan quality", 80, math.NaN(), ErrInvalidQuality},
	}
	for _, tc := range cases {
		if _, err := p.UpdateAndGetTarget("u1", tc.rom, tc.quality); !errors.Is(err, tc.want) {
			t.Errorf("%s: error = %v, want %v", tc.name, err, tc.want)
		}
	}
	if _, ok := p.Stats("u1"); ok {
		t.Error("rejected updates created a profile with recorded reps")
	}
}
