// Package confidence computes 0–100 confidence scores for generated planning
// artifacts from three weighted factors: input completeness, reasoner
// self-assessment, and pattern match. It is pure and deterministic: identical
// input always yields identical output, and no I/O happens here.
package confidence

import (
	"math"
	"strings"
)

// Tier buckets a continuous confidence score.
const (
	TierHigh   = "high"
	TierMedium = "medium"
	TierLow    = "low"
)

// Factor weights for the composite score. They sum to 1.0.
const (
	weightCompleteness   = 0.3
	weightSelfAssessment = 0.4
	weightPatternMatch   = 0.3
)

// Thresholds divide scores into tiers: >= Warning is high, >= Error is
// medium, anything lower is low. Scores below Warning also set NeedsReview.
type Thresholds struct {
	Warning int
	Error   int
}

// DefaultThresholds returns the documented default tier boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{Warning: 70, Error: 50}
}

// Factors are the three weighted inputs behind a confidence score, each in [0,1].
type Factors struct {
	Completeness   float64 `json:"completeness"`
	SelfAssessment float64 `json:"self_assessment"`
	PatternMatch   float64 `json:"pattern_match"`
}

// Input describes how much material backed a generated section. Counts and
// lengths are capped by the rubric, so precision beyond "roughly how much"
// does not matter.
type Input struct {
	Description  string
	Examples     int
	Constraints  int
	Context      string
	Requirements int
}

// Section is the confidence verdict for one generated section.
type Section struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Score               int      `json:"score"`
	Tier                string   `json:"tier"`
	Factors             Factors  `json:"factors"`
	Reasoning           string   `json:"reasoning,omitempty"`
	ClarifyingQuestions []string `json:"clarifying_questions,omitempty"`
	NeedsReview         bool     `json:"needs_review"`
}

// Overall aggregates per-section confidence into a single verdict.
type Overall struct {
	Score       int       `json:"score"`
	Tier        string    `json:"tier"`
	Sections    []Section `json:"sections,omitempty"`
	NeedsReview []Section `json:"needs_review,omitempty"`
}

// Params carries everything Score needs for one section. PatternMatch, when
// non-nil, overrides the section-name keyword heuristic.
type Params struct {
	SectionID           string
	SectionName         string
	Input               Input
	SelfAssessment      float64
	PatternMatch        *float64
	Reasoning           string
	ClarifyingQuestions []string
}

// Scorer computes section and aggregate confidence under fixed thresholds.
type Scorer struct {
	thresholds Thresholds
}

// NewScorer returns a scorer using the given tier thresholds. Zero or
// inverted thresholds fall back to the defaults.
func NewScorer(thresholds Thresholds) *Scorer {
	if thresholds.Warning <= 0 || thresholds.Error <= 0 || thresholds.Error > thresholds.Warning {
		thresholds = DefaultThresholds()
	}
	return &Scorer{thresholds: thresholds}
}

// Score computes the confidence for one generated section.
func (s *Scorer) Score(p Params) Section {
	factors := Factors{
		Completeness:   Completeness(p.Input),
		SelfAssessment: clamp01(p.SelfAssessment),
		PatternMatch:   patternMatchHeuristic(p.SectionName),
	}
	if p.PatternMatch != nil {
		factors.PatternMatch = clamp01(*p.PatternMatch)
	}

	weighted := weightCompleteness*factors.Completeness +
		weightSelfAssessment*factors.SelfAssessment +
		weightPatternMatch*factors.PatternMatch
	score := int(math.Round(weighted * 100))

	return Section{
		ID:                  p.SectionID,
		Name:                p.SectionName,
		Score:               score,
		Tier:                s.TierFor(score),
		Factors:             factors,
		Reasoning:           p.Reasoning,
		ClarifyingQuestions: p.ClarifyingQuestions,
		NeedsReview:         score < s.thresholds.Warning,
	}
}

// Aggregate averages section scores, recomputes the tier, and collects the
// sections flagged for review. No sections means nothing was ambiguous, which
// reports as full confidence.
func (s *Scorer) Aggregate(sections []Section) Overall {
	if len(sections) == 0 {
		return Overall{Score: 100, Tier: TierHigh}
	}

	total := 0
	var review []Section
	for _, sec := range sections {
		total += sec.Score
		if sec.NeedsReview {
			review = append(review, sec)
		}
	}
	score := int(math.Round(float64(total) / float64(len(sections))))

	return Overall{
		Score:       score,
		Tier:        s.TierFor(score),
		Sections:    sections,
		NeedsReview: review,
	}
}

// TierFor maps a 0–100 score onto a tier under the scorer's thresholds.
func (s *Scorer) TierFor(score int) string {
	switch {
	case score >= s.thresholds.Warning:
		return TierHigh
	case score >= s.thresholds.Error:
		return TierMedium
	default:
		return TierLow
	}
}

// Warning exposes the review threshold so callers can explain NeedsReview.
func (s *Scorer) Warning() int { return s.thresholds.Warning }

// Completeness scores how much material backed a section on a fixed rubric.
// Each dimension is capped, weighted, and summed into [0,1]:
//
//	description length  (cap 200 chars)  0.30
//	example count       (cap 3)          0.20
//	constraint count    (cap 3)          0.20
//	context length      (cap 200 chars)  0.15
//	requirement count   (cap 5)          0.15
func Completeness(in Input) float64 {
	score := 0.30*capRatio(len(strings.TrimSpace(in.Description)), 200) +
		0.20*capRatio(in.Examples, 3) +
		0.20*capRatio(in.Constraints, 3) +
		0.15*capRatio(len(strings.TrimSpace(in.Context)), 200) +
		0.15*capRatio(in.Requirements, 5)
	return clamp01(score)
}

// patternMatchHeuristic scores how closely a section name matches the
// planning vocabulary the engine knows how to reason about. Recognized
// keywords raise the score from a neutral base; unknown names stay neutral.
func patternMatchHeuristic(name string) float64 {
	lower := strings.ToLower(name)
	score := 0.5
	for _, keyword := range sectionKeywords {
		if strings.Contains(lower, keyword) {
			score += 0.1
		}
	}
	if score > 0.9 {
		score = 0.9
	}
	return score
}

var sectionKeywords = []string{
	"overview", "requirement", "scope", "risk", "capacity",
	"dependen", "priorit", "sprint", "estimate", "api", "test",
}

func capRatio(value, limit int) float64 {
	if value <= 0 {
		return 0
	}
	if value >= limit {
		return 1
	}
	return float64(value) / float64(limit)
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
