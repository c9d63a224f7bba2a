// Package prioritize combines reasoner-assessed business value, dependency
// graph position, delivery risk, and capacity fit into a single composite
// score and priority tier per backlog item.
package prioritize

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/backlog"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/capacity"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/confidence"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/graph"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/reason"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/resilience"
)

// Weights blend the four factors into the composite score. They must sum to
// 1.0; NewPrioritizer falls back to the documented defaults otherwise.
type Weights struct {
	BusinessValue float64
	Dependency    float64
	Risk          float64
	EffortFit     float64
}

// DefaultWeights returns the documented factor weights.
func DefaultWeights() Weights {
	return Weights{BusinessValue: 0.4, Dependency: 0.25, Risk: 0.2, EffortFit: 0.15}
}

func (w Weights) sum() float64 {
	return w.BusinessValue + w.Dependency + w.Risk + w.EffortFit
}

// Item is one scored backlog item.
type Item struct {
	ItemID    string  `json:"item_id"`
	Title     string  `json:"title"`
	Points    int     `json:"points"`
	Tier      string  `json:"tier"`
	Score     int     `json:"score"`
	Factors   Factors `json:"factors"`
	Reasoning string  `json:"reasoning"`
}

// Result is the full prioritization output.
type Result struct {
	Items []Item `json:"items"`
	// Tradeoffs records choices and degradations a reviewer should know
	// about, e.g. business value taken from priority labels.
	Tradeoffs []string `json:"tradeoffs,omitempty"`
	// Analysis is the dependency-graph analysis the scores were based on.
	Analysis graph.Analysis `json:"analysis"`
	// Degraded is true when the reasoner path did not succeed.
	Degraded   bool               `json:"degraded"`
	Confidence confidence.Section `json:"confidence"`
}

// Options tune a Prioritizer beyond its required collaborators.
type Options struct {
	Weights Weights
	// SimilarityThreshold gates implicit dependency inference; zero uses the
	// graph default.
	SimilarityThreshold float64
	// InferDependencies enables best-effort implicit edge detection.
	InferDependencies bool
}

// Prioritizer scores backlog items. All reasoner access goes through the
// resilience executor; the prioritizer never calls the reasoner directly.
type Prioritizer struct {
	weights  Weights
	opts     Options
	reasoner reason.Reasoner
	exec     *resilience.Executor
	scorer   *confidence.Scorer
	logger   *slog.Logger
}

// NewPrioritizer wires a prioritizer. The reasoner may be nil or unavailable;
// scoring then falls back to priority labels and says so in the tradeoffs.
func NewPrioritizer(reasoner reason.Reasoner, exec *resilience.Executor, scorer *confidence.Scorer, opts Options, logger *slog.Logger) *Prioritizer {
	weights := opts.Weights
	if math.Abs(weights.sum()-1.0) > 1e-6 {
		weights = DefaultWeights()
	}
	if exec == nil {
		exec = resilience.NewExecutor(resilience.DefaultConfig(), logger)
	}
	if scorer == nil {
		scorer = confidence.NewScorer(confidence.DefaultThresholds())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prioritizer{
		weights:  weights,
		opts:     opts,
		reasoner: reasoner,
		exec:     exec,
		scorer:   scorer,
		logger:   logger,
	}
}

// valueAssessment is the structured response shape for business value.
type valueAssessment struct {
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
}

type valueResponse struct {
	Items []struct {
		ID        string  `json:"id"`
		Score     float64 `json:"score"`
		Rationale string  `json:"rationale"`
	} `json:"items"`
}

// Prioritize scores every backlog item and returns them sorted descending by
// composite score, ties broken by stable input order. A planning call never
// aborts on reasoner trouble; the worst case is a degraded, low-confidence
// result with the reasons spelled out.
func (p *Prioritizer) Prioritize(ctx context.Context, items []backlog.Item, budget capacity.SprintCapacity, goals []string, riskTolerance string) (Result, error) {
	if len(items) == 0 {
		// Nothing to rank means nothing is ambiguous.
		return Result{
			Items:      []Item{},
			Analysis:   graph.Analysis{ExecutionOrder: []string{}},
			Confidence: confidence.Section{ID: "prioritization", Name: "Backlog Prioritization", Score: 100, Tier: p.scorer.TierFor(100)},
		}, nil
	}

	g := graph.New()
	if err := g.AddItems(items); err != nil {
		return Result{}, err
	}

	var tradeoffs []string
	if p.opts.InferDependencies {
		if added := g.DetectImplicitDependencies(p.opts.SimilarityThreshold); added > 0 {
			tradeoffs = append(tradeoffs, fmt.Sprintf(
				"inferred %d implicit dependency edge(s) from textual similarity (best-effort; explicit edges untouched)", added))
		}
	}
	analysis := g.Analyze()

	values, valueTradeoffs, degraded := p.businessValues(ctx, items, goals, riskTolerance)
	tradeoffs = append(tradeoffs, valueTradeoffs...)

	scored := make([]Item, 0, len(items))
	for _, input := range items {
		assessment := values[input.ID]
		factors := Factors{
			BusinessValue: clamp01(assessment.Score),
			Dependency:    dependencyScore(input.ID, analysis),
			Risk:          riskScore(input, riskTolerance),
			EffortFit:     effortFit(input.Points, budget.RecommendedLoad),
		}
		composite := p.weights.BusinessValue*factors.BusinessValue +
			p.weights.Dependency*factors.Dependency +
			p.weights.Risk*factors.Risk +
			p.weights.EffortFit*factors.EffortFit
		score := int(math.Round(composite * 100))

		scored = append(scored, Item{
			ItemID:    input.ID,
			Title:     input.Title,
			Points:    input.Points,
			Tier:      tierFor(score),
			Score:     score,
			Factors:   factors,
			Reasoning: itemReasoning(input, factors, assessment.Rationale, analysis),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	result := Result{
		Items:     scored,
		Tradeoffs: tradeoffs,
		Analysis:  analysis,
		Degraded:  degraded,
	}
	result.Confidence = p.confidence(items, analysis, degraded)

	p.logger.Info("backlog prioritized",
		"items", len(scored),
		"cycles", len(analysis.Cycles),
		"degraded", degraded,
		"confidence", result.Confidence.Score)
	return result, nil
}

// businessValues obtains a [0,1] business value per item, preferring a
// reasoner call under the resilience policy and falling back to priority
// labels on any degradation.
func (p *Prioritizer) businessValues(ctx context.Context, items []backlog.Item, goals []string, riskTolerance string) (map[string]valueAssessment, []string, bool) {
	fallback := make(map[string]valueAssessment, len(items))
	for _, item := range items {
		fallback[item.ID] = valueAssessment{
			Score:     fallbackBusinessValue(item.Priority),
			Rationale: fmt.Sprintf("mapped from %q priority label", backlog.NormalizePriority(item.Priority)),
		}
	}

	if p.reasoner == nil || !p.reasoner.IsAvailable() {
		return fallback, []string{"business value taken from priority-label fallback: reasoner unavailable"}, true
	}

	op := func(ctx context.Context) (map[string]valueAssessment, error) {
		raw, err := p.reasoner.GenerateStructured(ctx,
			valueSystemPrompt, valueUserPrompt(items, goals, riskTolerance), valueSchemaHint, 0.3)
		if err != nil {
			return nil, err
		}
		decoded := reason.Decode[valueResponse](raw)
		if decoded.Ok() {
			for _, entry := range decoded.Value.Items {
				if entry.Score < 0 || entry.Score > 1 {
					decoded = decoded.Invalid("item %s score %v out of [0,1]", entry.ID, entry.Score)
				}
			}
		}
		if !decoded.Ok() {
			return nil, fmt.Errorf("value assessment response rejected: %s", strings.Join(decoded.Errors, "; "))
		}

		values := make(map[string]valueAssessment, len(decoded.Value.Items))
		for _, entry := range decoded.Value.Items {
			values[entry.ID] = valueAssessment{Score: entry.Score, Rationale: entry.Rationale}
		}
		return values, nil
	}

	outcome := resilience.Execute(ctx, p.exec, "value-assessment", op, nil)
	if outcome.Degraded {
		return fallback, []string{fmt.Sprintf("business value taken from priority-label fallback: %s", outcome.Message)}, true
	}

	// Items the reasoner skipped keep their label-derived value.
	var tradeoffs []string
	for _, item := range items {
		if _, ok := outcome.Value[item.ID]; !ok {
			outcome.Value[item.ID] = fallback[item.ID]
			tradeoffs = append(tradeoffs, fmt.Sprintf("item %s missing from value assessment; using priority-label fallback", item.ID))
		}
	}
	return outcome.Value, tradeoffs, false
}

// confidence derives the result confidence from input completeness, whether
// the reasoner path succeeded, and graph health (cycles cut pattern match).
func (p *Prioritizer) confidence(items []backlog.Item, analysis graph.Analysis, degraded bool) confidence.Section {
	described, withDeps := 0, 0
	var descriptions []string
	for _, item := range items {
		if len(strings.TrimSpace(item.Description)) >= 20 {
			described++
		}
		if len(item.Dependencies) > 0 {
			withDeps++
		}
		descriptions = append(descriptions, item.Description)
	}

	self := 0.85
	if degraded {
		self = 0.55
	}
	patternMatch := 0.8
	if analysis.HasCycles() {
		patternMatch = 0.5
	}

	return p.scorer.Score(confidence.Params{
		SectionID:   "prioritization",
		SectionName: "Backlog Prioritization",
		Input: confidence.Input{
			Description:  strings.Join(descriptions, " "),
			Examples:     described,
			Constraints:  withDeps,
			Requirements: len(items),
		},
		SelfAssessment: self,
		PatternMatch:   &patternMatch,
		Reasoning: fmt.Sprintf("%d/%d items described, %d with dependencies, %d cycle(s), reasoner degraded=%t",
			described, len(items), withDeps, len(analysis.Cycles), degraded),
	})
}

// itemReasoning renders the human-readable justification for one score.
func itemReasoning(item backlog.Item, factors Factors, valueRationale string, analysis graph.Analysis) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("business value %.2f (%s)", factors.BusinessValue, valueRationale))

	switch {
	case factors.Dependency >= 1.0:
		parts = append(parts, "no unresolved blockers")
	case analysis.OnCriticalPath(item.ID):
		parts = append(parts, "on the critical path")
	default:
		parts = append(parts, fmt.Sprintf("dependency position %.2f", factors.Dependency))
	}

	parts = append(parts, fmt.Sprintf("risk %.2f for %d points", factors.Risk, item.Points))
	parts = append(parts, fmt.Sprintf("capacity fit %.2f", factors.EffortFit))
	return strings.Join(parts, "; ")
}

const valueSystemPrompt = "You are a product planning assistant. Rate the business value of each backlog item " +
	"between 0 and 1, considering stated goals, user impact, and risk tolerance. Be consistent across items."

const valueSchemaHint = `{"items": [{"id": "<item id>", "score": <0..1>, "rationale": "<one sentence>"}]}`

func valueUserPrompt(items []backlog.Item, goals []string, riskTolerance string) string {
	var b strings.Builder
	if len(goals) > 0 {
		fmt.Fprintf(&b, "Business goals: %s\n", strings.Join(goals, "; "))
	}
	if riskTolerance != "" {
		fmt.Fprintf(&b, "Risk tolerance: %s\n", riskTolerance)
	}
	b.WriteString("Backlog items:\n")
	for _, item := range items {
		fmt.Fprintf(&b, "- id=%s title=%q points=%d priority=%s", item.ID, item.Title, item.Points, backlog.NormalizePriority(item.Priority))
		if item.Description != "" {
			fmt.Fprintf(&b, " description=%q", item.Description)
		}
		if len(item.Labels) > 0 {
			fmt.Fprintf(&b, " labels=%s", strings.Join(item.Labels, ","))
		}
		b.WriteString("\n")
	}
	return b.String()
}
