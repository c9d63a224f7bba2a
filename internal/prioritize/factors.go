package prioritize

import (
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/backlog"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/graph"
)

// Factors are the four weighted inputs behind a priority score, each in [0,1].
type Factors struct {
	BusinessValue float64 `json:"business_value"`
	Dependency    float64 `json:"dependency"`
	Risk          float64 `json:"risk"`
	EffortFit     float64 `json:"effort_fit"`
}

// Priority tiers assigned from the composite score.
const (
	TierCritical = "critical"
	TierHigh     = "high"
	TierMedium   = "medium"
	TierLow      = "low"
)

// tierFor buckets a 0–100 composite score.
func tierFor(score int) string {
	switch {
	case score >= 80:
		return TierCritical
	case score >= 60:
		return TierHigh
	case score >= 40:
		return TierMedium
	default:
		return TierLow
	}
}

// fallbackBusinessValue maps a priority label to a fixed business value when
// the reasoner path is degraded.
func fallbackBusinessValue(priority string) float64 {
	switch backlog.NormalizePriority(priority) {
	case backlog.PriorityCritical:
		return 1.0
	case backlog.PriorityHigh:
		return 0.75
	case backlog.PriorityLow:
		return 0.25
	default:
		return 0.5
	}
}

// dependencyScore rates an item's structural position: orphans are free to
// start (1.0), critical-path items gate everything behind them (0.85), and
// everything else scores by execution-order position, earlier = higher,
// scaled into [0.5, 0.8]. Cycle-affected items sit at the floor.
func dependencyScore(id string, analysis graph.Analysis) float64 {
	for _, orphan := range analysis.Orphans {
		if orphan == id {
			return 1.0
		}
	}
	if analysis.OnCriticalPath(id) {
		return 0.85
	}

	n := len(analysis.ExecutionOrder)
	for i, ordered := range analysis.ExecutionOrder {
		if ordered != id {
			continue
		}
		if n <= 1 {
			return 0.8
		}
		return 0.8 - 0.3*float64(i)/float64(n-1)
	}
	// Not in execution order: the item is tangled in a cycle.
	return 0.5
}

// riskScore rates delivery risk from effort size and priority pressure, then
// applies the caller's risk tolerance: the raw risk-complement is multiplied
// by 0.8, 1.0, or 1.2 for low, medium, or high tolerance.
func riskScore(item backlog.Item, riskTolerance string) float64 {
	raw := 0.0
	switch {
	case item.Points >= 13:
		raw = 0.8
	case item.Points >= 8:
		raw = 0.6
	case item.Points >= 5:
		raw = 0.4
	default:
		raw = 0.2
	}
	switch backlog.NormalizePriority(item.Priority) {
	case backlog.PriorityCritical:
		raw += 0.2
	case backlog.PriorityHigh:
		raw += 0.1
	}
	if raw > 1 {
		raw = 1
	}

	multiplier := 1.0
	switch backlog.NormalizePriority(riskTolerance) {
	case backlog.PriorityLow:
		multiplier = 0.8
	case backlog.PriorityHigh:
		multiplier = 1.2
	}
	return clamp01((1 - raw) * multiplier)
}

// effortFit rates how comfortably an item fits the remaining capacity with a
// monotonically decreasing step function over points/capacity.
func effortFit(points int, remainingCapacity float64) float64 {
	if points <= 0 {
		return 1.0
	}
	if remainingCapacity <= 0 {
		return 0.3
	}
	ratio := float64(points) / remainingCapacity
	switch {
	case ratio <= 0.2:
		return 1.0
	case ratio <= 0.35:
		return 0.8
	case ratio <= 0.5:
		return 0.6
	case ratio <= 0.7:
		return 0.45
	default:
		return 0.3
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
