// Package feedback turns sensor feature values and an opaque classifier
// verdict into specific, prioritized form corrections. The classifier itself
// is an external collaborator; only its (correct, probability) output enters
// here.
package feedback

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
)

// Issue identifies a detected form problem.
type Issue string

const (
	IssueAsymmetry        Issue = "asymmetry"
	IssueKneeValgus       Issue = "knee_valgus"
	IssueForwardLean      Issue = "forward_lean"
	IssueHipRotation      Issue = "hip_rotation"
	IssueTorsoLean        Issue = "torso_lean"
	IssueFastDescent      Issue = "fast_descent"
	IssueTooFast          Issue = "too_fast"
	IssueShallowDepth     Issue = "shallow_depth"
	IssueInsufficientLift Issue = "insufficient_lift"
	IssueHipCompensation  Issue = "hip_compensation"
	IssueGeneralForm      Issue = "general_form_issue"
)

// Detection thresholds tuned against the training data.
const (
	asymmetryMax     = 0.15  // left/right imbalance ratio
	highAccelMean    = 15.0  // g-force mean indicating a rushed movement
	highGyroStd      = 100.0 // deg/s spread indicating rotation or twisting
	lowMotionStd     = 1.0   // variance floor below which range of motion is lacking
	forwardLeanAccel = 5.0   // squat accel_x mean indicating forward lean
	torsoLeanGyro    = 80.0  // hip-exercise thigh rotation indicating torso lean
	hipCompAccel     = 8.0   // knee-exercise thigh movement indicating hip takeover
)

// issuePriority orders corrections from safety concerns down to
// effectiveness tweaks; lower is more urgent.
var issuePriority = map[Issue]int{
	IssueAsymmetry:        0,
	IssueKneeValgus:       1,
	IssueForwardLean:      2,
	IssueHipRotation:      3,
	IssueTorsoLean:        4,
	IssueFastDescent:      5,
	IssueTooFast:          6,
	IssueShallowDepth:     7,
	IssueInsufficientLift: 8,
	IssueHipCompensation:  9,
	IssueGeneralForm:      10,
}

// exerciseMessages holds positive feedback and per-issue corrections for one
// exercise.
type exerciseMessages struct {
	correct     []string
	corrections map[Issue]string
}

var messagesByExercise = map[string]exerciseMessages{
	"squat": {
		correct: []string{
			"Great depth! Keep knees aligned over toes.",
			"Perfect form! Chest up, core engaged.",
			"Excellent! Controlled descent and rise.",
		},
		corrections: map[Issue]string{
			IssueKneeValgus:   "Knees caving inward - push knees outward",
			IssueForwardLean:  "Leaning too far forward - keep chest up",
			IssueAsymmetry:    "Weight shifted to one side - balance evenly",
			IssueFastDescent:  "Descending too quickly - slow and controlled",
			IssueShallowDepth: "Not deep enough - aim for thighs parallel to ground",
		},
	},
	"hip_abduction_left": {
		correct: []string{
			"Perfect! Controlled leg lift.",
			"Great form! Keep hips stable.",
			"Excellent! Full range of motion.",
		},
		corrections: map[Issue]string{
			IssueHipRotation:      "Hip rotating - keep pelvis stable",
			IssueTorsoLean:        "Leaning sideways - keep torso upright",
			IssueTooFast:          "Moving too quickly - slow and controlled",
			IssueInsufficientLift: "Not lifting high enough - aim for 45 degrees",
		},
	},
	"hip_adduction_right": {
		correct: []string{
			"Perfect! Controlled movement.",
			"Great form! Stable pelvis.",
			"Excellent! Good range of motion.",
		},
		corrections: map[Issue]string{
			IssueHipRotation: "Hip rotating - stabilize pelvis",
			IssueTorsoLean:   "Leaning - keep torso straight",
			IssueTooFast:     "Too fast - slow it down",
		},
	},
	"knee_flexion_left": {
		correct: []string{
			"Perfect! Smooth knee bend.",
			"Great! Full flexion achieved.",
			"Excellent! Controlled movement.",
		},
		corrections: map[Issue]string{
			IssueHipCompensation: "Hip bending too much - isolate knee",
			IssueTooFast:         "Jerky movement - smooth and controlled",
		},
	},
	"knee_flexion_right": {
		correct: []string{
			"Perfect! Good knee isolation.",
			"Great! Full range achieved.",
			"Excellent! Smooth motion.",
		},
		corrections: map[Issue]string{
			IssueHipCompensation: "Too much hip movement - focus on knee",
			IssueTooFast:         "Too jerky - move smoothly",
		},
	},
}

// Report is the analysis of one repetition's form.
type Report struct {
	Correct     bool     `json:"is_correct"`
	FormQuality float64  `json:"correct_probability"`
	Feedback    []string `json:"feedback"`
	Issues      []Issue  `json:"issues_detected,omitempty"`
	Corrections []string `json:"corrections"`
}

// Generator produces form reports. The RNG only varies which positive
// message a correct rep receives.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator returns a Generator seeded with seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Analyze combines the classifier verdict with rule-based issue detection.
// At most the three most urgent corrections are reported.
func (g *Generator) Analyze(correct bool, probability float64, features map[string]float64, exercise string) Report {
	report := Report{
		Correct:     correct,
		FormQuality: probability,
	}

	msgs := messagesByExercise[exercise]

	if correct {
		positive := "Good form!"
		if len(msgs.correct) > 0 {
			positive = msgs.correct[g.rng.Intn(len(msgs.correct))]
		}
		report.Feedback = []string{positive}
		report.Corrections = []string{"Keep it up! Maintain this form."}
		return report
	}

	issues := DetectIssues(features, exercise)
	report.Issues = issues

	for _, issue := range issues {
		if len(report.Corrections) == 3 {
			break
		}
		if msg, ok := msgs.corrections[issue]; ok {
			report.Corrections = append(report.Corrections, msg)
		} else {
			report.Corrections = append(report.Corrections, fmt.Sprintf("Form issue: %s", issue))
		}
	}
	if len(report.Corrections) == 0 {
		report.Corrections = []string{"Form needs improvement - check alignment and control"}
	}
	report.Feedback = report.Corrections
	return report
}

// DetectIssues applies the threshold rules to named feature values and
// returns the detected issues ordered most urgent first.
func DetectIssues(features map[string]float64, exercise string) []Issue {
	var issues []Issue

	if asymmetryRatio(features) > asymmetryMax {
		issues = append(issues, IssueAsymmetry)
	}

	if maxMatching(features, "accel", "mean") > highAccelMean {
		if strings.Contains(exercise, "squat") {
			issues = append(issues, IssueFastDescent)
		} else {
			issues = append(issues, IssueTooFast)
		}
	}

	if maxMatching(features, "gyro", "std") > highGyroStd {
		if strings.Contains(exercise, "hip") {
			issues = append(issues, IssueHipRotation)
		} else if strings.Contains(exercise, "squat") {
			issues = append(issues, IssueKneeValgus)
		}
	}

	if avg, ok := meanMatching(features, "std"); ok && avg < lowMotionStd {
		if strings.Contains(exercise, "squat") {
			issues = append(issues, IssueShallowDepth)
		} else if strings.Contains(exercise, "hip") {
			issues = append(issues, IssueInsufficientLift)
		}
	}

	switch {
	case strings.Contains(exercise, "squat"):
		if maxMatching(features, "accel_x", "mean") > forwardLeanAccel {
			issues = append(issues, IssueForwardLean)
		}
	case strings.Contains(exercise, "hip"):
		if maxMatching(features, "thigh", "gyro") > torsoLeanGyro {
			issues = append(issues, IssueTorsoLean)
		}
	case strings.Contains(exercise, "knee"):
		if maxMatching(features, "thigh", "accel") > hipCompAccel {
			issues = append(issues, IssueHipCompensation)
		}
	}

	if len(issues) == 0 {
		issues = append(issues, IssueGeneralForm)
	}

	sort.SliceStable(issues, func(i, j int) bool {
		return issuePriority[issues[i]] < issuePriority[issues[j]]
	})
	return issues
}

// asymmetryRatio compares mean absolute magnitude between left-side and
// right-side features. Returns 0 when either side has no features or no
// signal.
func asymmetryRatio(features map[string]float64) float64 {
	var leftSum, rightSum float64
	var leftN, rightN int
	for name, v := range features {
		lower := strings.ToLower(name)
		switch {
		case strings.Contains(lower, "left") || strings.Contains(lower, "lshin") || strings.Contains(lower, "lthigh"):
			leftSum += math.Abs(v)
			leftN++
		case strings.Contains(lower, "right") || strings.Contains(lower, "rshin") || strings.Contains(lower, "rthigh"):
			rightSum += math.Abs(v)
			rightN++
		}
	}
	if leftN == 0 || rightN == 0 {
		return 0
	}
	leftMean := leftSum / float64(leftN)
	rightMean := rightSum / float64(rightN)
	if leftMean <= 0 || rightMean <= 0 {
		return 0
	}
	return math.Abs(leftMean-rightMean) / math.Max(leftMean, rightMean)
}

// maxMatching returns the largest absolute value among features whose
// lowercased name contains every substring, or 0 when none match.
func maxMatching(features map[string]float64, substrings ...string) float64 {
	var maxVal float64
	for name, v := range features {
		lower := strings.ToLower(name)
		matched := true
		for _, sub := range substrings {
			if !strings.Contains(lower, sub) {
				matched = false
				break
			}
		}
		if matched {
			if a := math.Abs(v); a > maxVal {
				maxVal = a
			}
		}
	}
	return maxVal
}

// meanMatching averages raw values of features whose lowercased name
// contains every substring. The second return is false when none match.
func meanMatching(features map[string]float64, substrings ...string) (float64, bool) {
	var sum float64
	var n int
	for name, v := range features {
		lower := strings.ToLower(name)
		matched := true
		for _, sub := range substrings {
			if !strings.Contains(lower, sub) {
				matched = false
				break
			}
		}
		if matched {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
