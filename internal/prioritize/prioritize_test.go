package prioritize

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

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fastExecutor keeps retry delays out of test runtime.
func fastExecutor(t *testing.T) *resilience.Executor {
	t.Helper()
	return resilience.NewExecutor(resilience.Config{
		MaxRetries: 2,
		Timeout:    time.Second,
		RetryDelay: time.Millisecond,
	}, testLogger())
}

func newTestPrioritizer(t *testing.T, r reason.Reasoner) *Prioritizer {
	t.Helper()
	return NewPrioritizer(r, fastExecutor(t), nil, Options{}, testLogger())
}

func findItem(t *testing.T, result Result, id string) Item {
	t.Helper()
	for _, item := range result.Items {
		if item.ItemID == id {
			return item
		}
	}
	t.Fatalf("item %s not in result", id)
	return Item{}
}

func TestPrioritizeEmptyBacklog(t *testing.T) {
	p := newTestPrioritizer(t, &reason.Fake{})

	result, err := p.Prioritize(context.Background(), nil, capacity.SprintCapacity{}, nil, "")
	if err != nil {
		t.Fatalf("Prioritize: %v", err)
	}
	if len(result.Items) != 0 {
		t.Fatalf("expected no items, got %d", len(result.Items))
	}
	if result.Degraded {
		t.Error("empty backlog should not be degraded")
	}
	if result.Confidence.Score != 100 {
		t.Errorf("confidence score = %d, want 100", result.Confidence.Score)
	}
	if result.Confidence.Tier != "high" {
		t.Errorf("confidence tier = %q, want high", result.Confidence.Tier)
	}
}

func TestPrioritizeFallbackValuesFromPriorityLabels(t *testing.T) {
	fake := &reason.Fake{Unavailable: true}
	p := newTestPrioritizer(t, fake)
	items := []backlog.Item{
		{ID: "A", Title: "Checkout", Points: 5, Priority: "high"},
		{ID: "B", Title: "Search", Points: 3, Priority: "medium"},
		{ID: "C", Title: "Footer polish", Points: 2, Priority: "low"},
	}

	result, err := p.Prioritize(context.Background(), items, capacity.SprintCapacity{RecommendedLoad: 8}, nil, "medium")
	if err != nil {
		t.Fatalf("Prioritize: %v", err)
	}

	if !result.Degraded {
		t.Error("expected degraded result with unavailable reasoner")
	}
	if fake.Calls() != 0 {
		t.Errorf("reasoner called %d times, want 0 when unavailable", fake.Calls())
	}

	want := map[string]float64{"A": 0.75, "B": 0.5, "C": 0.25}
	for id, value := range want {
		got := findItem(t, result, id).Factors.BusinessValue
		if got != value {
			t.Errorf("item %s business value = %v, want %v", id, got, value)
		}
	}

	mentioned := false
	for _, tradeoff := range result.Tradeoffs {
		if strings.Contains(tradeoff, "fallback") || strings.Contains(tradeoff, "unavailable") {
			mentioned = true
		}
	}
	if !mentioned {
		t.Errorf("tradeoffs %v should mention the fallback", result.Tradeoffs)
	}
}

func TestPrioritizeUsesReasonerValues(t *testing.T) {
	fake := &reason.Fake{Responses: []json.RawMessage{json.RawMessage(
		`{"items": [
			{"id": "A", "score": 0.9, "rationale": "unblocks revenue"},
			{"id": "B", "score": 0.2, "rationale": "cosmetic"}
		]}`)}}
	p := newTestPrioritizer(t, fake)
	items := []backlog.Item{
		{ID: "A", Title: "Billing", Points: 5, Priority: "low"},
		{ID: "B", Title: "Theme", Points: 5, Priority: "critical"},
	}

	result, err := p.Prioritize(context.Background(), items, capacity.SprintCapacity{RecommendedLoad: 20}, []string{"grow revenue"}, "medium")
	if err != nil {
		t.Fatalf("Prioritize: %v", err)
	}
	if result.Degraded {
		t.Fatalf("unexpected degradation: %v", result.Tradeoffs)
	}

	a := findItem(t, result, "A")
	if a.Factors.BusinessValue != 0.9 {
		t.Errorf("A business value = %v, want reasoner's 0.9", a.Factors.BusinessValue)
	}
	if !strings.Contains(a.Reasoning, "unblocks revenue") {
		t.Errorf("A reasoning %q should carry the rationale", a.Reasoning)
	}
	if b := findItem(t, result, "B"); b.Factors.BusinessValue != 0.2 {
		t.Errorf("B business value = %v, want reasoner's 0.2 over the priority label", b.Factors.BusinessValue)
	}
}

func TestPrioritizeRejectsOutOfRangeScores(t *testing.T) {
	fake := &reason.Fake{Responses: []json.RawMessage{json.RawMessage(
		`{"items": [{"id": "A", "score": 7, "rationale": "scale confusion"}]}`)}}
	p := newTestPrioritizer(t, fake)
	items := []backlog.Item{{ID: "A", Title: "Billing", Points: 5, Priority: "high"}}

	result, err := p.Prioritize(context.Background(), items, capacity.SprintCapacity{RecommendedLoad: 8}, nil, "")
	if err != nil {
		t.Fatalf("Prioritize: %v", err)
	}
	if !result.Degraded {
		t.Fatal("out-of-range score must degrade to the label fallback")
	}
	if got := findItem(t, result, "A").Factors.BusinessValue; got != 0.75 {
		t.Errorf("A business value = %v, want fallback 0.75", got)
	}
	if fake.Calls() < 2 {
		t.Errorf("rejected responses should be retried, got %d call(s)", fake.Calls())
	}
}

func TestPrioritizeFillsMissingAssessments(t *testing.T) {
	fake := &reason.Fake{Responses: []json.RawMessage{json.RawMessage(
		`{"items": [{"id": "A", "score": 0.8, "rationale": "key feature"}]}`)}}
	p := newTestPrioritizer(t, fake)
	items := []backlog.Item{
		{ID: "A", Title: "Billing", Points: 5, Priority: "high"},
		{ID: "B", Title: "Search", Points: 3, Priority: "low"},
	}

	result, err := p.Prioritize(context.Background(), items, capacity.SprintCapacity{RecommendedLoad: 8}, nil, "")
	if err != nil {
		t.Fatalf("Prioritize: %v", err)
	}
	if result.Degraded {
		t.Fatal("a partially answered assessment is not a degradation")
	}
	if got := findItem(t, result, "B").Factors.BusinessValue; got != 0.25 {
		t.Errorf("B business value = %v, want label fallback 0.25", got)
	}
	found := false
	for _, tradeoff := range result.Tradeoffs {
		if strings.Contains(tradeoff, "B") && strings.Contains(tradeoff, "fallback") {
			found = true
		}
	}
	if !found {
		t.Errorf("tradeoffs %v should flag the skipped item", result.Tradeoffs)
	}
}

func TestPrioritizeOrdersByCompositeScore(t *testing.T) {
	p := newTestPrioritizer(t, &reason.Fake{Unavailable: true})
	items := []backlog.Item{
		{ID: "low", Title: "Footer polish", Points: 2, Priority: "low"},
		{ID: "crit", Title: "Checkout outage", Points: 2, Priority: "critical"},
	}

	result, err := p.Prioritize(context.Background(), items, capacity.SprintCapacity{RecommendedLoad: 10}, nil, "medium")
	if err != nil {
		t.Fatalf("Prioritize: %v", err)
	}
	if result.Items[0].ItemID != "crit" {
		t.Errorf("first item = %s, want crit ranked above low", result.Items[0].ItemID)
	}
	for i := 1; i < len(result.Items); i++ {
		if result.Items[i].Score > result.Items[i-1].Score {
			t.Errorf("items not sorted descending at index %d", i)
		}
	}
	if got := result.Items[0].Tier; got != findItem(t, result, "crit").Tier {
		t.Errorf("tier lookup mismatch: %q", got)
	}
}

func TestPrioritizeCyclesLowerConfidence(t *testing.T) {
	p := newTestPrioritizer(t, &reason.Fake{Unavailable: true})
	clean := []backlog.Item{
		{ID: "A", Title: "One", Points: 3, Priority: "high"},
		{ID: "B", Title: "Two", Points: 3, Priority: "high"},
	}
	cyclic := []backlog.Item{
		{ID: "A", Title: "One", Points: 3, Priority: "high", Dependencies: []string{"B"}},
		{ID: "B", Title: "Two", Points: 3, Priority: "high", Dependencies: []string{"A"}},
	}
	budget := capacity.SprintCapacity{RecommendedLoad: 10}

	before, err := p.Prioritize(context.Background(), clean, budget, nil, "")
	if err != nil {
		t.Fatalf("Prioritize clean: %v", err)
	}
	after, err := p.Prioritize(context.Background(), cyclic, budget, nil, "")
	if err != nil {
		t.Fatalf("Prioritize cyclic: %v", err)
	}

	if !after.Analysis.HasCycles() {
		t.Fatal("expected the cyclic backlog to report a cycle")
	}
	if after.Confidence.Score >= before.Confidence.Score {
		t.Errorf("cyclic confidence %d should be below clean confidence %d",
			after.Confidence.Score, before.Confidence.Score)
	}
}

func TestPrioritizeImplicitDependencyTradeoff(t *testing.T) {
	p := NewPrioritizer(&reason.Fake{Unavailable: true}, fastExecutor(t), nil, Options{
		InferDependencies:   true,
		SimilarityThreshold: 0.5,
	}, testLogger())
	items := []backlog.Item{
		{ID: "A", Title: "Build payment gateway integration layer", Points: 5, Priority: "high"},
		{ID: "B", Title: "Build payment gateway integration tests", Points: 3, Priority: "medium"},
	}

	result, err := p.Prioritize(context.Background(), items, capacity.SprintCapacity{RecommendedLoad: 8}, nil, "")
	if err != nil {
		t.Fatalf("Prioritize: %v", err)
	}
	found := false
	for _, tradeoff := range result.Tradeoffs {
		if strings.Contains(tradeoff, "implicit") {
			found = true
		}
	}
	if !found {
		t.Errorf("tradeoffs %v should mention inferred dependencies", result.Tradeoffs)
	}
}

func TestPrioritizeWeightsShiftOrdering(t *testing.T) {
	items := []backlog.Item{
		{ID: "H", Title: "Checkout rewrite", Points: 13, Priority: "critical"},
		{ID: "L", Title: "Copy tweak", Points: 2, Priority: "low"},
	}
	budget := capacity.SprintCapacity{RecommendedLoad: 20}
	fake := &reason.Fake{Unavailable: true}

	base, err := newTestPrioritizer(t, fake).Prioritize(context.Background(), items, budget, nil, "medium")
	if err != nil {
		t.Fatalf("Prioritize: %v", err)
	}
	if base.Items[0].ItemID != "H" {
		t.Fatalf("default weights should rank the critical item first, got %s", base.Items[0].ItemID)
	}

	effortHeavy := NewPrioritizer(fake, fastExecutor(t), nil, Options{
		Weights: Weights{BusinessValue: 0.15, Dependency: 0.15, Risk: 0.2, EffortFit: 0.5},
	}, testLogger())
	shifted, err := effortHeavy.Prioritize(context.Background(), items, budget, nil, "medium")
	if err != nil {
		t.Fatalf("Prioritize: %v", err)
	}
	if shifted.Items[0].ItemID != "L" {
		t.Fatalf("effort-heavy weights should rank the small item first, got %s", shifted.Items[0].ItemID)
	}

	// Reweighting changes the blend, never the underlying factors.
	if findItem(t, base, "H").Factors != findItem(t, shifted, "H").Factors {
		t.Errorf("factors drifted across weight configurations: %+v vs %+v",
			findItem(t, base, "H").Factors, findItem(t, shifted, "H").Factors)
	}
}
