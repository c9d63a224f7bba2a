// Package sprint composes sprint suggestions: capacity budget, prioritized
// backlog, greedy selection under the budget and dependency constraints, and
// a risk assessment of the selected subset.
package sprint

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/backlog"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/capacity"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/confidence"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/estimate"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/prioritize"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/risk"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/store"
)

// Request carries everything one suggestion call needs.
type Request struct {
	Items []backlog.Item
	// Velocity in points per sprint; capacity.VelocityAuto derives it from
	// History.
	Velocity           float64
	SprintDurationDays int
	Team               []backlog.TeamMember
	Goals              []string
	RiskTolerance      string
	History            []store.SprintRecord
}

// Exclusion records why a backlog item was left out of the suggestion.
type Exclusion struct {
	ItemID string `json:"item_id"`
	Title  string `json:"title"`
	Points int    `json:"points"`
	Tier   string `json:"tier"`
	Reason string `json:"reason"`
}

// Suggestion is a proposed sprint composition.
type Suggestion struct {
	ID          string            `json:"id"`
	Items       []prioritize.Item `json:"items"`
	TotalPoints int               `json:"total_points"`
	// Utilization is TotalPoints over the recommended load.
	Utilization float64                 `json:"utilization"`
	Capacity    capacity.SprintCapacity `json:"capacity"`
	Exclusions  []Exclusion             `json:"exclusions,omitempty"`
	Risks       risk.Assessment         `json:"risks"`
	Reasoning   string                  `json:"reasoning"`
	Tradeoffs   []string                `json:"tradeoffs,omitempty"`
	Degraded    bool                    `json:"degraded"`
	Confidence  confidence.Overall      `json:"confidence"`
}

// Planner runs the full suggestion pipeline.
type Planner struct {
	analyzer    *capacity.Analyzer
	prioritizer *prioritize.Prioritizer
	assessor    *risk.Assessor
	scorer      *confidence.Scorer
	logger      *slog.Logger
}

// NewPlanner wires the pipeline stages together.
func NewPlanner(analyzer *capacity.Analyzer, prioritizer *prioritize.Prioritizer, assessor *risk.Assessor, scorer *confidence.Scorer, logger *slog.Logger) *Planner {
	if scorer == nil {
		scorer = confidence.NewScorer(confidence.DefaultThresholds())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		analyzer:    analyzer,
		prioritizer: prioritizer,
		assessor:    assessor,
		scorer:      scorer,
		logger:      logger,
	}
}

// Suggest proposes a sprint composition for the request. Input validation
// errors raise to the caller; reasoner trouble never does, it only degrades
// the result.
func (p *Planner) Suggest(ctx context.Context, req Request) (Suggestion, error) {
	if err := backlog.ValidateItems(req.Items); err != nil {
		return Suggestion{}, err
	}

	outcomes := make([]estimate.SprintOutcome, 0, len(req.History))
	for _, record := range req.History {
		outcomes = append(outcomes, record.Outcome())
	}

	if len(req.Items) == 0 {
		// No candidates means nothing to decide; report full confidence.
		budget, err := p.analyzer.Calculate(req.Velocity, req.SprintDurationDays, req.Team, outcomes)
		if err != nil {
			return Suggestion{}, err
		}
		return Suggestion{
			ID:       uuid.NewString(),
			Items:    []prioritize.Item{},
			Capacity: budget,
			Risks: risk.Assessment{
				Risks:   []risk.SprintRisk{},
				Level:   risk.RatingLow,
				Summary: "no notable delivery risks identified",
			},
			Reasoning:  "backlog is empty; nothing to plan",
			Confidence: p.scorer.Aggregate(nil),
		}, nil
	}

	budget, err := p.analyzer.Calculate(req.Velocity, req.SprintDurationDays, req.Team, outcomes)
	if err != nil {
		return Suggestion{}, err
	}

	ranked, err := p.prioritizer.Prioritize(ctx, req.Items, budget, req.Goals, req.RiskTolerance)
	if err != nil {
		return Suggestion{}, err
	}

	selected, exclusions := selectGreedy(ranked.Items, req.Items, budget.RecommendedLoad)

	totalPoints := 0
	selectedIDs := make(map[string]bool, len(selected))
	for _, item := range selected {
		totalPoints += item.Points
		selectedIDs[item.ItemID] = true
	}
	utilization := 0.0
	if budget.RecommendedLoad > 0 {
		utilization = float64(totalPoints) / budget.RecommendedLoad
	}

	var selectedItems []backlog.Item
	for _, item := range req.Items {
		if selectedIDs[item.ID] {
			selectedItems = append(selectedItems, item)
		}
	}
	assessment := p.assessor.AssessRisks(ctx, selectedItems, budget, req.History)

	suggestion := Suggestion{
		ID:          uuid.NewString(),
		Items:       selected,
		TotalPoints: totalPoints,
		Utilization: utilization,
		Capacity:    budget,
		Exclusions:  exclusions,
		Risks:       assessment,
		Reasoning:   p.reasoning(selected, exclusions, totalPoints, utilization, budget, req.Goals),
		Tradeoffs:   ranked.Tradeoffs,
		Degraded:    ranked.Degraded || assessment.Degraded,
	}
	suggestion.Confidence = p.confidence(budget, ranked, utilization, len(selected))

	p.logger.Info("sprint composition suggested",
		"selected", len(selected),
		"excluded", len(exclusions),
		"total_points", totalPoints,
		"utilization", utilization,
		"risk_level", assessment.Level,
		"confidence", suggestion.Confidence.Score)
	return suggestion, nil
}

// selectGreedy walks the ranked items in descending score order and includes
// an item only if it fits the remaining budget and every explicit dependency
// is already selected or absent from the backlog (externally satisfied).
func selectGreedy(ranked []prioritize.Item, items []backlog.Item, load float64) ([]prioritize.Item, []Exclusion) {
	byID := make(map[string]backlog.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	selected := make([]prioritize.Item, 0, len(ranked))
	var exclusions []Exclusion
	selectedIDs := make(map[string]bool, len(ranked))
	remaining := load

	for _, candidate := range ranked {
		source := byID[candidate.ItemID]

		if blocker := unmetDependency(source, byID, selectedIDs); blocker != "" {
			exclusions = append(exclusions, exclusion(candidate,
				fmt.Sprintf("depends on %s, which is not selected", blocker)))
			continue
		}
		if float64(candidate.Points) > remaining {
			exclusions = append(exclusions, exclusion(candidate,
				fmt.Sprintf("%d points exceed the remaining budget of %.1f", candidate.Points, remaining)))
			continue
		}

		selected = append(selected, candidate)
		selectedIDs[candidate.ItemID] = true
		remaining -= float64(candidate.Points)
	}
	return selected, exclusions
}

// unmetDependency returns the first in-backlog dependency that is not yet
// selected, or "" when the item is free to go. Dependencies on IDs outside
// the backlog are treated as externally satisfied.
func unmetDependency(item backlog.Item, byID map[string]backlog.Item, selectedIDs map[string]bool) string {
	for _, dep := range item.Dependencies {
		if _, inBacklog := byID[dep]; inBacklog && !selectedIDs[dep] {
			return dep
		}
	}
	return ""
}

func exclusion(item prioritize.Item, reason string) Exclusion {
	return Exclusion{
		ItemID: item.ItemID,
		Title:  item.Title,
		Points: item.Points,
		Tier:   item.Tier,
		Reason: reason,
	}
}

// reasoning renders the human-readable account of the composition.
func (p *Planner) reasoning(selected []prioritize.Item, exclusions []Exclusion, totalPoints int, utilization float64, budget capacity.SprintCapacity, goals []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Selected %d item(s) totaling %d points against a recommended load of %.1f (%.0f%% utilization).",
		len(selected), totalPoints, budget.RecommendedLoad, utilization*100)

	if len(selected) > 0 {
		tiers := map[string]int{}
		order := make([]string, 0, len(selected))
		for _, item := range selected {
			if tiers[item.Tier] == 0 {
				order = append(order, item.Tier)
			}
			tiers[item.Tier]++
		}
		mix := make([]string, 0, len(order))
		for _, tier := range order {
			mix = append(mix, fmt.Sprintf("%d %s", tiers[tier], tier))
		}
		fmt.Fprintf(&b, " Priority mix: %s.", strings.Join(mix, ", "))

		names := make([]string, 0, len(selected))
		for _, item := range selected {
			names = append(names, item.ItemID)
		}
		fmt.Fprintf(&b, " Order of value: %s.", strings.Join(names, ", "))
	}

	if len(goals) > 0 {
		fmt.Fprintf(&b, " Prioritization weighed %d stated goal(s).", len(goals))
	}

	for _, excluded := range exclusions {
		if excluded.Tier == "critical" || excluded.Tier == "high" {
			fmt.Fprintf(&b, " Notable exclusion: %s (%s priority) because %s.",
				excluded.ItemID, excluded.Tier, excluded.Reason)
		}
	}
	return b.String()
}

// confidence blends the capacity and prioritization sections with a
// composition section whose pattern match tracks utilization health. A
// healthy margin below 85% reads better than near-100% or over-capacity.
func (p *Planner) confidence(budget capacity.SprintCapacity, ranked prioritize.Result, utilization float64, selectedCount int) confidence.Overall {
	pattern := 0.9
	switch {
	case utilization > 1.0:
		pattern = 0.4
	case utilization > 0.85:
		pattern = 0.7
	}

	composition := p.scorer.Score(confidence.Params{
		SectionID:      "sprint-composition",
		SectionName:    "Sprint Composition",
		Input:          confidence.Input{Requirements: selectedCount, Description: budget.BufferRationale},
		SelfAssessment: 0.8,
		PatternMatch:   &pattern,
		Reasoning:      fmt.Sprintf("utilization %.0f%% with %d selected item(s)", utilization*100, selectedCount),
	})
	return p.scorer.Aggregate([]confidence.Section{budget.Confidence, ranked.Confidence, composition})
}
