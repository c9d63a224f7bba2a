// Package risk identifies sprint-level delivery risks for a selected set of
// backlog items: overcommitment, complexity concentration, dependency
// concentration, and unclear scope. The preferred path asks the reasoner for
// structured risks; a deterministic check battery covers every degradation.
package risk

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/backlog"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/capacity"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/reason"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/resilience"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/store"
)

// Risk categories.
const (
	CategoryCapacity   = "capacity"
	CategoryDependency = "dependency"
	CategoryTechnical  = "technical"
	CategoryScope      = "scope"
	CategoryExternal   = "external"
)

// Probability and impact ratings.
const (
	RatingHigh   = "high"
	RatingMedium = "medium"
	RatingLow    = "low"
)

// Mitigation strategies.
const (
	StrategyAvoid    = "avoid"
	StrategyMitigate = "mitigate"
	StrategyTransfer = "transfer"
	StrategyAccept   = "accept"
)

// ratingWeight maps a probability or impact rating to its numeric weight.
func ratingWeight(rating string) int {
	switch rating {
	case RatingHigh:
		return 3
	case RatingMedium:
		return 2
	default:
		return 1
	}
}

// Mitigation is a suggested response to one identified risk.
type Mitigation struct {
	Strategy    string `json:"strategy"`
	Description string `json:"description"`
	// Effort is the cost of applying the mitigation, rated high/medium/low.
	Effort string `json:"effort"`
	// Effectiveness estimates how much of the risk the mitigation removes,
	// in [0,1].
	Effectiveness float64 `json:"effectiveness"`
}

// SprintRisk is one identified risk with its rating and mitigation.
type SprintRisk struct {
	ID             string     `json:"id"`
	Category       string     `json:"category"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Probability    string     `json:"probability"`
	Impact         string     `json:"impact"`
	RelatedItemIDs []string   `json:"related_item_ids,omitempty"`
	Mitigation     Mitigation `json:"mitigation"`
}

// Assessment is the full risk verdict for a sprint composition.
type Assessment struct {
	Risks []SprintRisk `json:"risks"`
	// Score is the normalized probability-times-impact sum, capped at 100.
	Score int    `json:"score"`
	Level string `json:"level"`
	// Degraded is true when the deterministic battery produced the risks
	// because the reasoner path failed.
	Degraded bool   `json:"degraded"`
	Summary  string `json:"summary,omitempty"`
}

// Assessor evaluates sprint compositions for delivery risk.
type Assessor struct {
	reasoner reason.Reasoner
	exec     *resilience.Executor
	logger   *slog.Logger
}

// NewAssessor wires an assessor. A nil or unavailable reasoner is fine; the
// deterministic battery then handles every call.
func NewAssessor(reasoner reason.Reasoner, exec *resilience.Executor, logger *slog.Logger) *Assessor {
	if exec == nil {
		exec = resilience.NewExecutor(resilience.DefaultConfig(), logger)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assessor{reasoner: reasoner, exec: exec, logger: logger}
}

// AssessRisks evaluates the given sprint items against the capacity budget.
// History, when present, gives the reasoner past completion ratios for
// context. The call never fails on reasoner trouble; the worst case is a
// degraded assessment from the deterministic battery.
func (a *Assessor) AssessRisks(ctx context.Context, items []backlog.Item, budget capacity.SprintCapacity, history []store.SprintRecord) Assessment {
	risks, degraded := a.reasonedRisks(ctx, items, budget, history)
	if degraded {
		risks = checkBattery(items, budget)
	}

	score := scoreRisks(risks)
	assessment := Assessment{
		Risks:    risks,
		Score:    score,
		Level:    levelFor(score),
		Degraded: degraded,
		Summary:  summarize(risks, degraded),
	}

	a.logger.Info("sprint risks assessed",
		"items", len(items),
		"risks", len(risks),
		"score", score,
		"level", assessment.Level,
		"degraded", degraded)
	return assessment
}

// riskResponse is the structured response shape for the reasoner path.
type riskResponse struct {
	Risks []struct {
		Category    string   `json:"category"`
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Probability string   `json:"probability"`
		Impact      string   `json:"impact"`
		RelatedIDs  []string `json:"related_item_ids"`
		Mitigation  struct {
			Strategy      string  `json:"strategy"`
			Description   string  `json:"description"`
			Effort        string  `json:"effort"`
			Effectiveness float64 `json:"effectiveness"`
		} `json:"mitigation"`
	} `json:"risks"`
}

var (
	validCategories = map[string]bool{
		CategoryCapacity: true, CategoryDependency: true, CategoryTechnical: true,
		CategoryScope: true, CategoryExternal: true,
	}
	validRatings    = map[string]bool{RatingHigh: true, RatingMedium: true, RatingLow: true}
	validStrategies = map[string]bool{
		StrategyAvoid: true, StrategyMitigate: true, StrategyTransfer: true, StrategyAccept: true,
	}
)

func (a *Assessor) reasonedRisks(ctx context.Context, items []backlog.Item, budget capacity.SprintCapacity, history []store.SprintRecord) ([]SprintRisk, bool) {
	if a.reasoner == nil || !a.reasoner.IsAvailable() {
		return nil, true
	}

	op := func(ctx context.Context) ([]SprintRisk, error) {
		raw, err := a.reasoner.GenerateStructured(ctx,
			riskSystemPrompt, riskUserPrompt(items, budget, history), riskSchemaHint, 0.2)
		if err != nil {
			return nil, err
		}
		decoded := reason.Decode[riskResponse](raw)
		if decoded.Ok() {
			for i, r := range decoded.Value.Risks {
				if !validCategories[r.Category] {
					decoded = decoded.Invalid("risk %d: unknown category %q", i, r.Category)
				}
				if !validRatings[r.Probability] || !validRatings[r.Impact] {
					decoded = decoded.Invalid("risk %d: bad rating %q/%q", i, r.Probability, r.Impact)
				}
				if !validStrategies[r.Mitigation.Strategy] {
					decoded = decoded.Invalid("risk %d: unknown strategy %q", i, r.Mitigation.Strategy)
				}
				if r.Mitigation.Effort != "" && !validRatings[r.Mitigation.Effort] {
					decoded = decoded.Invalid("risk %d: bad mitigation effort %q", i, r.Mitigation.Effort)
				}
				if r.Mitigation.Effectiveness < 0 || r.Mitigation.Effectiveness > 1 {
					decoded = decoded.Invalid("risk %d: effectiveness %v out of [0,1]", i, r.Mitigation.Effectiveness)
				}
			}
		}
		if !decoded.Ok() {
			return nil, fmt.Errorf("risk response rejected: %s", strings.Join(decoded.Errors, "; "))
		}

		risks := make([]SprintRisk, 0, len(decoded.Value.Risks))
		for _, r := range decoded.Value.Risks {
			effort := r.Mitigation.Effort
			if effort == "" {
				effort = RatingMedium
			}
			risks = append(risks, SprintRisk{
				ID:             uuid.NewString(),
				Category:       r.Category,
				Title:          r.Title,
				Description:    r.Description,
				Probability:    r.Probability,
				Impact:         r.Impact,
				RelatedItemIDs: r.RelatedIDs,
				Mitigation: Mitigation{
					Strategy:      r.Mitigation.Strategy,
					Description:   r.Mitigation.Description,
					Effort:        effort,
					Effectiveness: r.Mitigation.Effectiveness,
				},
			})
		}
		return risks, nil
	}

	outcome := resilience.Execute(ctx, a.exec, "risk-assessment", op, nil)
	if outcome.Degraded {
		a.logger.Warn("risk reasoner path degraded", "reason", outcome.Message)
		return nil, true
	}
	return outcome.Value, false
}

// checkBattery runs the deterministic checks. Each check produces at most one
// risk, so the battery yields between zero and five risks.
func checkBattery(items []backlog.Item, budget capacity.SprintCapacity) []SprintRisk {
	var risks []SprintRisk

	totalPoints := 0
	for _, item := range items {
		totalPoints += item.Points
	}
	utilization := math.Inf(1)
	if budget.RecommendedLoad > 0 {
		utilization = float64(totalPoints) / budget.RecommendedLoad
	}
	if totalPoints == 0 {
		utilization = 0
	}

	switch {
	case utilization > 1.0:
		probability := RatingMedium
		if utilization > 1.3 {
			probability = RatingHigh
		}
		risks = append(risks, SprintRisk{
			ID:          uuid.NewString(),
			Category:    CategoryCapacity,
			Title:       "Sprint overcommitted",
			Description: fmt.Sprintf("committed %d points against a recommended load of %.1f (%.0f%% utilization)", totalPoints, budget.RecommendedLoad, utilization*100),
			Probability: probability,
			Impact:      RatingHigh,
			Mitigation: Mitigation{
				Strategy:      StrategyMitigate,
				Description:   "descope the lowest-priority items until utilization drops below 100%",
				Effort:        RatingLow,
				Effectiveness: 0.8,
			},
		})
	case utilization > 0.9:
		risks = append(risks, SprintRisk{
			ID:          uuid.NewString(),
			Category:    CategoryCapacity,
			Title:       "Minimal capacity buffer",
			Description: fmt.Sprintf("utilization of %.0f%% leaves minimal buffer for unplanned work", utilization*100),
			Probability: RatingMedium,
			Impact:      RatingMedium,
			Mitigation: Mitigation{
				Strategy:      StrategyAccept,
				Description:   "designate the last-ranked item as a stretch goal that can be dropped",
				Effort:        RatingLow,
				Effectiveness: 0.6,
			},
		})
	}

	var large []string
	for _, item := range items {
		if item.Points >= 8 {
			large = append(large, item.ID)
		}
	}
	if len(large) > 0 {
		probability := RatingMedium
		if len(large) >= 3 {
			probability = RatingHigh
		}
		risks = append(risks, SprintRisk{
			ID:             uuid.NewString(),
			Category:       CategoryTechnical,
			Title:          "Complexity concentration",
			Description:    fmt.Sprintf("%d item(s) estimated at 8+ points concentrate complexity", len(large)),
			Probability:    probability,
			Impact:         RatingMedium,
			RelatedItemIDs: large,
			Mitigation: Mitigation{
				Strategy:      StrategyMitigate,
				Description:   "split large items into independently deliverable slices",
				Effort:        RatingMedium,
				Effectiveness: 0.7,
			},
		})
	}

	if len(items) > 2 {
		var withDeps []string
		for _, item := range items {
			if len(item.Dependencies) > 0 {
				withDeps = append(withDeps, item.ID)
			}
		}
		if float64(len(withDeps)) >= 0.5*float64(len(items)) {
			risks = append(risks, SprintRisk{
				ID:             uuid.NewString(),
				Category:       CategoryDependency,
				Title:          "Dependency concentration",
				Description:    fmt.Sprintf("%d of %d items carry dependencies; a single slip can cascade", len(withDeps), len(items)),
				Probability:    RatingMedium,
				Impact:         RatingHigh,
				RelatedItemIDs: withDeps,
				Mitigation: Mitigation{
					Strategy:      StrategyMitigate,
					Description:   "sequence dependency roots in the first days of the sprint",
					Effort:        RatingMedium,
					Effectiveness: 0.6,
				},
			})
		}

		var unclear []string
		for _, item := range items {
			if len(strings.TrimSpace(item.Description)) < 20 {
				unclear = append(unclear, item.ID)
			}
		}
		if float64(len(unclear)) >= 0.3*float64(len(items)) {
			risks = append(risks, SprintRisk{
				ID:             uuid.NewString(),
				Category:       CategoryScope,
				Title:          "Underspecified scope",
				Description:    fmt.Sprintf("%d of %d items lack a substantive description", len(unclear), len(items)),
				Probability:    RatingMedium,
				Impact:         RatingMedium,
				RelatedItemIDs: unclear,
				Mitigation: Mitigation{
					Strategy:      StrategyAvoid,
					Description:   "refine unclear items with acceptance criteria before the sprint starts",
					Effort:        RatingLow,
					Effectiveness: 0.65,
				},
			})
		}
	}

	return risks
}

// scoreRisks sums probability-weight times impact-weight per risk, normalizes
// each against the 3x3 worst case, and caps at 100.
func scoreRisks(risks []SprintRisk) int {
	sum := 0
	for _, r := range risks {
		sum += ratingWeight(r.Probability) * ratingWeight(r.Impact)
	}
	score := int(math.Round(float64(sum) * 100 / 9))
	if score > 100 {
		score = 100
	}
	return score
}

func levelFor(score int) string {
	switch {
	case score >= 60:
		return RatingHigh
	case score >= 30:
		return RatingMedium
	default:
		return RatingLow
	}
}

func summarize(risks []SprintRisk, degraded bool) string {
	if len(risks) == 0 {
		return "no notable delivery risks identified"
	}
	counts := map[string]int{}
	for _, r := range risks {
		counts[r.Category]++
	}
	var parts []string
	for _, category := range []string{CategoryCapacity, CategoryDependency, CategoryTechnical, CategoryScope, CategoryExternal} {
		if n := counts[category]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, category))
		}
	}
	summary := fmt.Sprintf("%d risk(s): %s", len(risks), strings.Join(parts, ", "))
	if degraded {
		summary += " (deterministic checks; reasoner unavailable)"
	}
	return summary
}

const riskSystemPrompt = "You are a delivery risk analyst. Identify sprint-level risks for the proposed " +
	"sprint composition. Use only the categories capacity, dependency, technical, scope, external and the " +
	"ratings high, medium, low. Suggest one mitigation per risk."

const riskSchemaHint = `{"risks": [{"category": "capacity|dependency|technical|scope|external", ` +
	`"title": "<short name>", "description": "<one sentence>", "probability": "high|medium|low", ` +
	`"impact": "high|medium|low", "related_item_ids": ["<id>"], ` +
	`"mitigation": {"strategy": "avoid|mitigate|transfer|accept", "description": "<one sentence>", ` +
	`"effort": "high|medium|low", "effectiveness": <0..1>}}]}`

func riskUserPrompt(items []backlog.Item, budget capacity.SprintCapacity, history []store.SprintRecord) string {
	var b strings.Builder
	totalPoints := 0
	for _, item := range items {
		totalPoints += item.Points
	}
	fmt.Fprintf(&b, "Sprint: %d items, %d points committed, recommended load %.1f points.\n",
		len(items), totalPoints, budget.RecommendedLoad)
	if len(history) > 0 {
		b.WriteString("Past completion ratios:")
		for _, record := range history {
			outcome := record.Outcome()
			if outcome.CommittedPoints > 0 {
				fmt.Fprintf(&b, " %.2f", float64(outcome.CompletedPoints)/float64(outcome.CommittedPoints))
			}
		}
		b.WriteString("\n")
	}
	b.WriteString("Items:\n")
	for _, item := range items {
		fmt.Fprintf(&b, "- id=%s title=%q points=%d priority=%s deps=%d desc_len=%d\n",
			item.ID, item.Title, item.Points, backlog.NormalizePriority(item.Priority),
			len(item.Dependencies), len(strings.TrimSpace(item.Description)))
	}
	return b.String()
}
