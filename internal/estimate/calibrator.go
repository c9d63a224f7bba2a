// Package estimate maps the 1–10 complexity scale used during refinement to
// story points and expected velocity, optionally calibrated from historical
// sprint throughput.
package estimate

import (
	"fmt"
	"math"
	"sort"
)

// pointScale maps complexity 1–10 onto the familiar fibonacci-ish point
// ladder. Values outside the scale clamp to its ends.
var pointScale = [11]int{0, 1, 2, 3, 5, 5, 8, 8, 13, 13, 21}

// SprintOutcome is one completed sprint's throughput record.
type SprintOutcome struct {
	CommittedPoints int
	CompletedPoints int
	DurationDays    int
}

// Calibrator converts complexity to points, adjusted by a throughput ratio
// learned from history. The zero value is uncalibrated (ratio 1.0).
type Calibrator struct {
	ratio float64
}

// NewCalibrator returns an uncalibrated calibrator (identity ratio).
func NewCalibrator() *Calibrator {
	return &Calibrator{ratio: 1.0}
}

// Points converts a 1–10 complexity rating to story points. Ratings are
// clamped into range, then scaled by the calibration ratio and rounded.
func (c *Calibrator) Points(complexity int) int {
	if complexity < 1 {
		complexity = 1
	}
	if complexity > 10 {
		complexity = 10
	}
	ratio := c.ratio
	if ratio <= 0 {
		ratio = 1.0
	}
	return int(math.Round(float64(pointScale[complexity]) * ratio))
}

// Ratio returns the current calibration ratio (1.0 when uncalibrated).
func (c *Calibrator) Ratio() float64 {
	if c.ratio <= 0 {
		return 1.0
	}
	return c.ratio
}

// Calibrate learns a completion ratio from historical sprint outcomes:
// completed points over committed points, after dropping outlier sprints
// whose completions fall outside [0.5, 2.0] times the median. A ratio above
// 1.0 means the team routinely beats its estimates, so the scale tightens;
// below 1.0 it loosens. The learned ratio is clamped into [0.5, 2.0] so one
// pathological window cannot blow up the point scale. Requires at least two
// usable sprints.
func (c *Calibrator) Calibrate(history []SprintOutcome) error {
	usable := FilterOutliers(history)
	if len(usable) < 2 {
		return fmt.Errorf("estimate: need at least 2 usable sprints to calibrate, have %d", len(usable))
	}

	committed, completed := 0, 0
	for _, s := range usable {
		committed += s.CommittedPoints
		completed += s.CompletedPoints
	}
	if committed == 0 || completed == 0 {
		return fmt.Errorf("estimate: history has no usable point totals")
	}

	// completed/committed > 1 means estimates run high: scale points down.
	ratio := float64(committed) / float64(completed)
	if ratio < 0.5 {
		ratio = 0.5
	}
	if ratio > 2.0 {
		ratio = 2.0
	}
	c.ratio = ratio
	return nil
}

// FilterOutliers drops sprints whose completed points fall outside 0.5x–2x
// the median completion, the same guard capacity auto-velocity applies.
// Sprints with zero completion are always dropped.
func FilterOutliers(history []SprintOutcome) []SprintOutcome {
	completions := make([]int, 0, len(history))
	for _, s := range history {
		if s.CompletedPoints > 0 {
			completions = append(completions, s.CompletedPoints)
		}
	}
	if len(completions) == 0 {
		return nil
	}

	sort.Ints(completions)
	median := float64(completions[len(completions)/2])
	if len(completions)%2 == 0 {
		median = (float64(completions[len(completions)/2-1]) + float64(completions[len(completions)/2])) / 2
	}

	usable := make([]SprintOutcome, 0, len(history))
	for _, s := range history {
		if s.CompletedPoints <= 0 {
			continue
		}
		ratio := float64(s.CompletedPoints) / median
		if ratio < 0.5 || ratio > 2.0 {
			continue
		}
		usable = append(usable, s)
	}
	return usable
}

// Velocity estimates sustainable points per sprint from history using the
// outlier-filtered rolling average of completions. Returns 0 when history is
// empty after filtering.
func Velocity(history []SprintOutcome) float64 {
	usable := FilterOutliers(history)
	if len(usable) == 0 {
		return 0
	}
	total := 0
	for _, s := range usable {
		total += s.CompletedPoints
	}
	return float64(total) / float64(len(usable))
}
