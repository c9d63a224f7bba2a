package risk

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/backlog"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/capacity"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/reason"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/resilience"
)

func newTestAssessor(t *testing.T, r reason.Reasoner) *Assessor {
	t.Helper()
	exec := resilience.NewExecutor(resilience.Config{
		MaxRetries: 2,
		Timeout:    time.Second,
		RetryDelay: time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return NewAssessor(r, exec, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func riskByCategory(assessment Assessment, category string) (SprintRisk, bool) {
	for _, r := range assessment.Risks {
		if r.Category == category {
			return r, true
		}
	}
	return SprintRisk{}, false
}

func TestBatteryOvercommitment(t *testing.T) {
	tests := []struct {
		name            string
		points          int
		wantProbability string
	}{
		{"moderate overrun", 11, RatingMedium},
		{"severe overrun", 14, RatingHigh},
	}
	budget := capacity.SprintCapacity{RecommendedLoad: 10}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			risks := checkBattery([]backlog.Item{{ID: "A", Points: tt.points}}, budget)
			var capRisk *SprintRisk
			for i := range risks {
				if risks[i].Category == CategoryCapacity {
					capRisk = &risks[i]
				}
			}
			if capRisk == nil {
				t.Fatal("expected a capacity risk")
			}
			if capRisk.Probability != tt.wantProbability {
				t.Errorf("probability = %q, want %q", capRisk.Probability, tt.wantProbability)
			}
			if capRisk.Impact != RatingHigh {
				t.Errorf("impact = %q, want high", capRisk.Impact)
			}
		})
	}
}

func TestBatteryMinimalBuffer(t *testing.T) {
	budget := capacity.SprintCapacity{RecommendedLoad: 10}
	risks := checkBattery([]backlog.Item{{ID: "A", Points: 5}, {ID: "B", Points: 5}}, budget)

	capRisk, ok := riskByCategory(Assessment{Risks: risks}, CategoryCapacity)
	if !ok {
		t.Fatal("expected a minimal-buffer capacity risk at 100% utilization")
	}
	if !strings.Contains(capRisk.Description, "buffer") {
		t.Errorf("description %q should mention the buffer", capRisk.Description)
	}
	if capRisk.Probability != RatingMedium || capRisk.Impact != RatingMedium {
		t.Errorf("ratings = %s/%s, want medium/medium", capRisk.Probability, capRisk.Impact)
	}
}

func TestBatteryHealthyUtilizationNoCapacityRisk(t *testing.T) {
	budget := capacity.SprintCapacity{RecommendedLoad: 10}
	risks := checkBattery([]backlog.Item{{ID: "A", Points: 5}}, budget)
	if _, ok := riskByCategory(Assessment{Risks: risks}, CategoryCapacity); ok {
		t.Error("50% utilization should not raise a capacity risk")
	}
}

func TestBatteryComplexityConcentration(t *testing.T) {
	budget := capacity.SprintCapacity{RecommendedLoad: 100}
	items := []backlog.Item{
		{ID: "A", Points: 8, Description: strings.Repeat("a", 30)},
		{ID: "B", Points: 13, Description: strings.Repeat("b", 30)},
		{ID: "C", Points: 8, Description: strings.Repeat("c", 30)},
		{ID: "D", Points: 2, Description: strings.Repeat("d", 30)},
	}
	risks := checkBattery(items, budget)

	tech, ok := riskByCategory(Assessment{Risks: risks}, CategoryTechnical)
	if !ok {
		t.Fatal("expected a technical risk for three 8+ point items")
	}
	if tech.Probability != RatingHigh {
		t.Errorf("probability = %q, want high with 3 large items", tech.Probability)
	}
	if len(tech.RelatedItemIDs) != 3 {
		t.Errorf("related items = %v, want the three large items", tech.RelatedItemIDs)
	}
}

func TestBatteryDependencyConcentration(t *testing.T) {
	budget := capacity.SprintCapacity{RecommendedLoad: 100}
	long := strings.Repeat("x", 30)
	items := []backlog.Item{
		{ID: "A", Points: 3, Description: long},
		{ID: "B", Points: 3, Description: long, Dependencies: []string{"A"}},
		{ID: "C", Points: 3, Description: long, Dependencies: []string{"B"}},
	}
	risks := checkBattery(items, budget)

	if _, ok := riskByCategory(Assessment{Risks: risks}, CategoryDependency); !ok {
		t.Error("2 of 3 items with dependencies should raise a dependency risk")
	}

	// The same ratio with only two items stays quiet.
	risks = checkBattery(items[:2], budget)
	if _, ok := riskByCategory(Assessment{Risks: risks}, CategoryDependency); ok {
		t.Error("dependency check needs more than 2 items")
	}
}

func TestBatteryUnclearScope(t *testing.T) {
	budget := capacity.SprintCapacity{RecommendedLoad: 100}
	long := strings.Repeat("x", 30)
	items := []backlog.Item{
		{ID: "A", Points: 3, Description: "tbd"},
		{ID: "B", Points: 3, Description: long},
		{ID: "C", Points: 3, Description: long},
	}
	risks := checkBattery(items, budget)

	scope, ok := riskByCategory(Assessment{Risks: risks}, CategoryScope)
	if !ok {
		t.Fatal("1 of 3 underdescribed items should raise a scope risk")
	}
	if len(scope.RelatedItemIDs) != 1 || scope.RelatedItemIDs[0] != "A" {
		t.Errorf("related items = %v, want [A]", scope.RelatedItemIDs)
	}
}

func TestScoreAndLevel(t *testing.T) {
	tests := []struct {
		name      string
		risks     []SprintRisk
		wantScore int
		wantLevel string
	}{
		{"no risks", nil, 0, RatingLow},
		{"one low/low", []SprintRisk{{Probability: RatingLow, Impact: RatingLow}}, 11, RatingLow},
		{"one medium/high", []SprintRisk{{Probability: RatingMedium, Impact: RatingHigh}}, 67, RatingHigh},
		{"one high/high", []SprintRisk{{Probability: RatingHigh, Impact: RatingHigh}}, 100, RatingHigh},
		{
			"capped",
			[]SprintRisk{
				{Probability: RatingHigh, Impact: RatingHigh},
				{Probability: RatingHigh, Impact: RatingHigh},
			},
			100, RatingHigh,
		},
		{"one medium/medium", []SprintRisk{{Probability: RatingMedium, Impact: RatingMedium}}, 44, RatingMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scoreRisks(tt.risks)
			if got != tt.wantScore {
				t.Errorf("score = %d, want %d", got, tt.wantScore)
			}
			if level := levelFor(got); level != tt.wantLevel {
				t.Errorf("level = %q, want %q", level, tt.wantLevel)
			}
		})
	}
}

func TestAssessRisksFallsBackWhenUnavailable(t *testing.T) {
	fake := &reason.Fake{Unavailable: true}
	a := newTestAssessor(t, fake)

	assessment := a.AssessRisks(context.Background(),
		[]backlog.Item{{ID: "A", Points: 13}},
		capacity.SprintCapacity{RecommendedLoad: 8}, nil)

	if !assessment.Degraded {
		t.Error("expected a degraded assessment")
	}
	if fake.Calls() != 0 {
		t.Errorf("reasoner called %d times, want 0", fake.Calls())
	}
	if _, ok := riskByCategory(assessment, CategoryCapacity); !ok {
		t.Error("battery should flag the 163% utilization")
	}
	if !strings.Contains(assessment.Summary, "reasoner unavailable") {
		t.Errorf("summary %q should note the degradation", assessment.Summary)
	}
}

func TestAssessRisksUsesReasonerResponse(t *testing.T) {
	fake := &reason.Fake{Responses: []json.RawMessage{json.RawMessage(
		`{"risks": [{
			"category": "external",
			"title": "API migration mid-sprint",
			"description": "third-party API migration lands mid-sprint",
			"probability": "medium",
			"impact": "high",
			"related_item_ids": ["A"],
			"mitigation": {"strategy": "transfer", "description": "pin the old API version", "effort": "low", "effectiveness": 0.9}
		}]}`)}}
	a := newTestAssessor(t, fake)

	assessment := a.AssessRisks(context.Background(),
		[]backlog.Item{{ID: "A", Points: 3, Description: strings.Repeat("x", 30)}},
		capacity.SprintCapacity{RecommendedLoad: 10}, nil)

	if assessment.Degraded {
		t.Fatal("reasoner path should not be degraded")
	}
	if len(assessment.Risks) != 1 {
		t.Fatalf("risks = %d, want 1", len(assessment.Risks))
	}
	r := assessment.Risks[0]
	if r.Category != CategoryExternal || r.Mitigation.Strategy != StrategyTransfer {
		t.Errorf("unexpected risk %+v", r)
	}
	if r.Title != "API migration mid-sprint" || r.Mitigation.Effort != RatingLow {
		t.Errorf("title/effort not carried through: %+v", r)
	}
	if r.ID == "" {
		t.Error("risk should get an identifier")
	}
	if assessment.Score != 67 || assessment.Level != RatingHigh {
		t.Errorf("score/level = %d/%s, want 67/high", assessment.Score, assessment.Level)
	}
}

func TestAssessRisksRejectsBadCategories(t *testing.T) {
	fake := &reason.Fake{Responses: []json.RawMessage{json.RawMessage(
		`{"risks": [{"category": "weather", "description": "rain", "probability": "high", "impact": "high",
			"mitigation": {"strategy": "mitigate", "description": "umbrella", "effectiveness": 0.5}}]}`)}}
	a := newTestAssessor(t, fake)

	assessment := a.AssessRisks(context.Background(),
		[]backlog.Item{{ID: "A", Points: 13}},
		capacity.SprintCapacity{RecommendedLoad: 8}, nil)

	if !assessment.Degraded {
		t.Error("an unusable response must degrade to the battery")
	}
	if _, ok := riskByCategory(assessment, CategoryCapacity); !ok {
		t.Error("battery output expected after rejection")
	}
}
