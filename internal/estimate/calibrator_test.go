package estimate

import (
	"math"
	"testing"
)

func TestPoints_MonotonicAndClamped(t *testing.T) {
	c := NewCalibrator()

	prev := 0
	for complexity := 1; complexity <= 10; complexity++ {
		pts := c.Points(complexity)
		if pts < prev {
			t.Fatalf("Points(%d) = %d decreased below %d", complexity, pts, prev)
		}
		prev = pts
	}

	if c.Points(0) != c.Points(1) {
		t.Error("complexity below scale should clamp to 1")
	}
	if c.Points(99) != c.Points(10) {
		t.Error("complexity above scale should clamp to 10")
	}
}

func TestPoints_KnownAnchors(t *testing.T) {
	c := NewCalibrator()
	anchors := map[int]int{1: 1, 3: 3, 5: 5, 8: 13, 10: 21}
	for complexity, want := range anchors {
		if got := c.Points(complexity); got != want {
			t.Errorf("Points(%d) = %d, want %d", complexity, got, want)
		}
	}
}

func TestCalibrate_IdentityWhenBalanced(t *testing.T) {
	c := NewCalibrator()
	history := []SprintOutcome{
		{CommittedPoints: 20, CompletedPoints: 20, DurationDays: 14},
		{CommittedPoints: 22, CompletedPoints: 22, DurationDays: 14},
	}
	if err := c.Calibrate(history); err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	if math.Abs(c.Ratio()-1.0) > 1e-9 {
		t.Fatalf("balanced history should keep ratio 1.0, got %v", c.Ratio())
	}
}

func TestCalibrate_OverdeliveryTightensScale(t *testing.T) {
	c := NewCalibrator()
	history := []SprintOutcome{
		{CommittedPoints: 20, CompletedPoints: 25},
		{CommittedPoints: 20, CompletedPoints: 25},
	}
	if err := c.Calibrate(history); err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	if c.Ratio() >= 1.0 {
		t.Fatalf("overdelivery should lower the ratio, got %v", c.Ratio())
	}
	if got := c.Points(10); got >= 21 {
		t.Fatalf("calibrated Points(10) = %d, want below uncalibrated 21", got)
	}
}

func TestCalibrate_RatioClamped(t *testing.T) {
	c := NewCalibrator()
	history := []SprintOutcome{
		{CommittedPoints: 100, CompletedPoints: 10},
		{CommittedPoints: 100, CompletedPoints: 10},
	}
	if err := c.Calibrate(history); err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	if c.Ratio() != 2.0 {
		t.Fatalf("extreme underdelivery should clamp the ratio to 2.0, got %v", c.Ratio())
	}
	if got := c.Points(10); got != 42 {
		t.Fatalf("clamped Points(10) = %d, want 42", got)
	}
}

func TestCalibrate_InsufficientHistory(t *testing.T) {
	c := NewCalibrator()
	if err := c.Calibrate([]SprintOutcome{{CommittedPoints: 10, CompletedPoints: 10}}); err == nil {
		t.Fatal("expected error for single-sprint history")
	}
	if c.Ratio() != 1.0 {
		t.Fatalf("failed calibration must not change the ratio, got %v", c.Ratio())
	}
}

func TestFilterOutliers(t *testing.T) {
	history := []SprintOutcome{
		{CompletedPoints: 20},
		{CompletedPoints: 22},
		{CompletedPoints: 21},
		{CompletedPoints: 90}, // >2x median, dropped
		{CompletedPoints: 5},  // <0.5x median, dropped
		{CompletedPoints: 0},  // empty sprint, dropped
	}
	usable := FilterOutliers(history)
	if len(usable) != 3 {
		t.Fatalf("expected 3 usable sprints, got %d (%v)", len(usable), usable)
	}
}

func TestVelocity_RollingAverage(t *testing.T) {
	history := []SprintOutcome{
		{CompletedPoints: 18},
		{CompletedPoints: 22},
		{CompletedPoints: 20},
	}
	if got := Velocity(history); math.Abs(got-20.0) > 1e-9 {
		t.Fatalf("Velocity = %v, want 20", got)
	}
	if got := Velocity(nil); got != 0 {
		t.Fatalf("Velocity(nil) = %v, want 0", got)
	}
}
