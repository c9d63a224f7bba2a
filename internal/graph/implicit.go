package graph

import "strings"

// DetectImplicitDependencies adds edges inferred from textual similarity
// between item titles and descriptions. Two items with Jaccard word-set
// similarity >= threshold gain an edge from the later-ingested item to the
// earlier one. This is best-effort: it is strictly additive (explicit edges
// are never removed or reclassified), it never adds an edge whose reverse
// already exists, and it skips pairs already connected. Returns the number of
// edges added.
func (g *Graph) DetectImplicitDependencies(threshold float64) int {
	if g == nil || len(g.order) < 2 {
		return 0
	}
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}

	tokens := make(map[string]map[string]struct{}, len(g.order))
	for _, id := range g.order {
		item := g.nodes[id]
		tokens[id] = wordSet(item.Title + " " + item.Description)
	}

	added := 0
	for i := 1; i < len(g.order); i++ {
		later := g.order[i]
		for j := 0; j < i; j++ {
			earlier := g.order[j]
			if g.hasEdge(later, earlier) || g.hasEdge(earlier, later) {
				continue
			}
			if jaccard(tokens[later], tokens[earlier]) >= threshold {
				g.addEdge(later, earlier, false)
				added++
			}
		}
	}
	return added
}

// wordSet lowercases and splits text into a set of words, dropping short
// stop-ish tokens that inflate similarity between unrelated items.
func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?()[]{}\"'")
		if len(word) < 3 {
			continue
		}
		set[word] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	intersection := 0
	for word := range small {
		if _, ok := large[word]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
