// Package capacity converts velocity, sprint duration, and team availability
// into a recommended point budget with a sustainability buffer.
package capacity

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/backlog"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/confidence"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/estimate"
)

// DefaultBufferPercentage is withheld from raw capacity unless configured.
const DefaultBufferPercentage = 0.2

// VelocityAuto asks the analyzer to derive velocity from sprint history
// instead of using a supplied value.
const VelocityAuto = 0.0

// MemberAvailability is the per-member slice of the overall availability.
type MemberAvailability struct {
	MemberID     string  `json:"member_id"`
	Name         string  `json:"name,omitempty"`
	Availability float64 `json:"availability"`
}

// SprintCapacity is the point budget for one planning cycle.
type SprintCapacity struct {
	// TotalPoints is the raw budget implied by velocity.
	TotalPoints float64 `json:"total_points"`
	// RecommendedLoad = TotalPoints x availability x (1 - buffer).
	RecommendedLoad float64 `json:"recommended_load"`
	// Availability is the aggregate team availability fraction.
	Availability float64 `json:"availability"`
	// Members is the per-member availability breakdown.
	Members []MemberAvailability `json:"members,omitempty"`
	// BufferPercentage and its rationale explain the withheld margin.
	BufferPercentage float64 `json:"buffer_percentage"`
	BufferRationale  string  `json:"buffer_rationale"`
	// SprintDurationDays is carried through for reporting.
	SprintDurationDays int `json:"sprint_duration_days"`
	// VelocitySource records whether velocity was supplied or derived.
	VelocitySource string `json:"velocity_source"`
	// Confidence qualifies how much signal backed this budget.
	Confidence confidence.Section `json:"confidence"`
}

// Analyzer computes sprint capacity. Pure given its inputs.
type Analyzer struct {
	buffer float64
	scorer *confidence.Scorer
	logger *slog.Logger
}

// NewAnalyzer creates a capacity analyzer. A zero buffer falls back to the
// default 20%.
func NewAnalyzer(bufferPercentage float64, scorer *confidence.Scorer, logger *slog.Logger) *Analyzer {
	if bufferPercentage <= 0 || bufferPercentage >= 1 {
		bufferPercentage = DefaultBufferPercentage
	}
	if scorer == nil {
		scorer = confidence.NewScorer(confidence.DefaultThresholds())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{buffer: bufferPercentage, scorer: scorer, logger: logger}
}

// Calculate produces the sprint capacity budget. Pass VelocityAuto to derive
// velocity from the outlier-filtered rolling average of historical sprint
// completions; supplying velocity <= 0 without history is an input error.
func (a *Analyzer) Calculate(velocity float64, sprintDurationDays int, team []backlog.TeamMember, history []estimate.SprintOutcome) (SprintCapacity, error) {
	if sprintDurationDays <= 0 {
		return SprintCapacity{}, fmt.Errorf("%w: sprint duration must be positive, got %d",
			backlog.ErrInvalidItem, sprintDurationDays)
	}
	if err := backlog.ValidateTeam(team); err != nil {
		return SprintCapacity{}, err
	}

	source := "explicit"
	if velocity <= VelocityAuto {
		derived := estimate.Velocity(history)
		if derived <= 0 {
			return SprintCapacity{}, fmt.Errorf("%w: auto velocity requires usable sprint history",
				backlog.ErrInvalidItem)
		}
		velocity = derived
		source = "historical"
	}

	availability, members := teamAvailability(team)
	recommended := velocity * availability * (1 - a.buffer)

	budget := SprintCapacity{
		TotalPoints:        round2(velocity),
		RecommendedLoad:    round2(recommended),
		Availability:       round2(availability),
		Members:            members,
		BufferPercentage:   a.buffer,
		SprintDurationDays: sprintDurationDays,
		VelocitySource:     source,
		BufferRationale: fmt.Sprintf(
			"%.0f%% withheld for interruptions, review cycles, and unplanned work; sustainable pace over %d days",
			a.buffer*100, sprintDurationDays),
	}
	budget.Confidence = a.confidence(budget, source, len(estimate.FilterOutliers(history)), len(team))

	a.logger.Debug("capacity calculated",
		"velocity", budget.TotalPoints,
		"availability", budget.Availability,
		"recommended_load", budget.RecommendedLoad,
		"velocity_source", source)
	return budget, nil
}

// teamAvailability averages member availability fractions. With no team
// records the whole team is assumed fully available.
func teamAvailability(team []backlog.TeamMember) (float64, []MemberAvailability) {
	if len(team) == 0 {
		return 1.0, nil
	}
	members := make([]MemberAvailability, 0, len(team))
	total := 0.0
	for _, m := range team {
		total += m.Availability
		members = append(members, MemberAvailability{
			MemberID:     m.ID,
			Name:         m.Name,
			Availability: m.Availability,
		})
	}
	return total / float64(len(team)), members
}

// confidence rates the budget: explicit velocity is trusted most; derived
// velocity is trusted in proportion to how much usable history backed it.
func (a *Analyzer) confidence(budget SprintCapacity, source string, usableSprints, teamSize int) confidence.Section {
	self := 0.9
	if source == "historical" {
		self = 0.6
		if usableSprints >= 3 {
			self = 0.8
		}
	}
	return a.scorer.Score(confidence.Params{
		SectionID:      "sprint-capacity",
		SectionName:    "Sprint Capacity",
		Input:          confidence.Input{Examples: usableSprints, Requirements: teamSize, Description: budget.BufferRationale},
		SelfAssessment: self,
		Reasoning: fmt.Sprintf("velocity %s (%.1f points), %d team members, %d usable historical sprints",
			source, budget.TotalPoints, teamSize, usableSprints),
	})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
