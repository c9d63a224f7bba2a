package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/capacity"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/confidence"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/graph"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/prioritize"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/risk"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/sprint"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/store"
)

var (
	titleColor   = color.New(color.FgMagenta, color.Bold)
	successColor = color.New(color.FgGreen, color.Bold)
	warnColor    = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
)

func printTitle(format string, args ...any) {
	titleColor.Printf("== "+format+" ==\n", args...)
}

func printInfo(format string, args ...any) {
	infoColor.Printf(format+"\n", args...)
}

func printWarn(format string, args ...any) {
	warnColor.Printf("! "+format+"\n", args...)
}

func printError(format string, args ...any) {
	errorColor.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}

// emitJSON writes the result as indented JSON to stdout.
func emitJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func tierColor(tier string) *color.Color {
	switch tier {
	case "critical", "high":
		return successColor
	case "medium":
		return warnColor
	default:
		return infoColor
	}
}

func levelColor(level string) *color.Color {
	switch level {
	case risk.RatingHigh:
		return errorColor
	case risk.RatingMedium:
		return warnColor
	default:
		return successColor
	}
}

func renderConfidenceSection(section confidence.Section) {
	c := tierColor(section.Tier)
	c.Printf("confidence: %d (%s)", section.Score, section.Tier)
	if section.NeedsReview {
		warnColor.Printf("  needs review")
	}
	fmt.Println()
	if section.Reasoning != "" {
		printInfo("  %s", section.Reasoning)
	}
}

func renderConfidenceOverall(overall confidence.Overall) {
	c := tierColor(overall.Tier)
	c.Printf("confidence: %d (%s)\n", overall.Score, overall.Tier)
	for _, section := range overall.Sections {
		marker := " "
		if section.NeedsReview {
			marker = "!"
		}
		printInfo("  %s %-24s %3d (%s)", marker, section.Name, section.Score, section.Tier)
	}
}

func renderCapacity(budget capacity.SprintCapacity) {
	printTitle("Sprint Capacity")
	printInfo("velocity:         %.1f points (%s)", budget.TotalPoints, budget.VelocitySource)
	printInfo("availability:     %.0f%%", budget.Availability*100)
	printInfo("buffer:           %.0f%% (%s)", budget.BufferPercentage*100, budget.BufferRationale)
	successColor.Printf("recommended load: %.1f points over %d days\n",
		budget.RecommendedLoad, budget.SprintDurationDays)
	for _, member := range budget.Members {
		name := member.Name
		if name == "" {
			name = member.MemberID
		}
		printInfo("  %-20s %.0f%%", name, member.Availability*100)
	}
	renderConfidenceSection(budget.Confidence)
}

func renderPrioritization(result prioritize.Result) {
	printTitle("Prioritized Backlog")
	for rank, item := range result.Items {
		tierColor(item.Tier).Printf("%2d. [%3d %-8s] %s (%s, %d pts)\n",
			rank+1, item.Score, item.Tier, item.Title, item.ItemID, item.Points)
		printInfo("    %s", item.Reasoning)
	}
	renderGraphWarnings(result.Analysis)
	renderTradeoffs(result.Tradeoffs, result.Degraded)
	renderConfidenceSection(result.Confidence)
}

func renderGraphAnalysis(analysis graph.Analysis) {
	printTitle("Dependency Graph")
	if len(analysis.Cycles) > 0 {
		for _, cycle := range analysis.Cycles {
			errorColor.Printf("cycle: %s\n", strings.Join(cycle, " -> "))
		}
	} else {
		successColor.Println("no cycles")
	}
	printInfo("execution order: %s", strings.Join(analysis.ExecutionOrder, ", "))
	if len(analysis.CriticalPath) > 0 {
		printInfo("critical path:   %s (%d pts)",
			strings.Join(analysis.CriticalPath, " -> "), analysis.CriticalPathPoints)
	}
	if len(analysis.Orphans) > 0 {
		printInfo("unblocked items: %s", strings.Join(analysis.Orphans, ", "))
	}
	for _, warning := range analysis.Warnings {
		printWarn("%s", warning)
	}
}

func renderGraphWarnings(analysis graph.Analysis) {
	for _, cycle := range analysis.Cycles {
		errorColor.Printf("cycle: %s\n", strings.Join(cycle, " -> "))
	}
	for _, warning := range analysis.Warnings {
		printWarn("%s", warning)
	}
}

func renderRisks(assessment risk.Assessment) {
	printTitle("Sprint Risks")
	levelColor(assessment.Level).Printf("risk score %d (%s)\n", assessment.Score, assessment.Level)
	if assessment.Summary != "" {
		printInfo("%s", assessment.Summary)
	}
	for _, r := range assessment.Risks {
		name := r.Title
		if name == "" {
			name = r.Description
		}
		levelColor(r.Impact).Printf("- [%s] %s (probability %s, impact %s)\n",
			r.Category, name, r.Probability, r.Impact)
		if r.Title != "" && r.Description != "" {
			printInfo("    %s", r.Description)
		}
		if len(r.RelatedItemIDs) > 0 {
			printInfo("    items: %s", strings.Join(r.RelatedItemIDs, ", "))
		}
		printInfo("    %s: %s (%s effort, effectiveness %.0f%%)",
			r.Mitigation.Strategy, r.Mitigation.Description, r.Mitigation.Effort, r.Mitigation.Effectiveness*100)
	}
}

func renderTradeoffs(tradeoffs []string, degraded bool) {
	if degraded {
		printWarn("degraded: reasoner path unavailable; deterministic fallbacks used")
	}
	for _, tradeoff := range tradeoffs {
		printWarn("%s", tradeoff)
	}
}

func renderSuggestion(suggestion sprint.Suggestion) {
	printTitle("Sprint Suggestion")
	successColor.Printf("%d item(s), %d points, %.0f%% utilization\n",
		len(suggestion.Items), suggestion.TotalPoints, suggestion.Utilization*100)
	for _, item := range suggestion.Items {
		tierColor(item.Tier).Printf("  + [%3d %-8s] %s (%s, %d pts)\n",
			item.Score, item.Tier, item.Title, item.ItemID, item.Points)
	}
	for _, excluded := range suggestion.Exclusions {
		printInfo("  - %s (%s, %d pts): %s", excluded.Title, excluded.ItemID, excluded.Points, excluded.Reason)
	}
	fmt.Println()
	printInfo("%s", suggestion.Reasoning)
	renderTradeoffs(suggestion.Tradeoffs, suggestion.Degraded)
	fmt.Println()
	renderRisks(suggestion.Risks)
	fmt.Println()
	renderConfidenceOverall(suggestion.Confidence)
}

func renderHistory(records []store.SprintRecord) {
	printTitle("Sprint History")
	if len(records) == 0 {
		printInfo("no recorded sprints")
		return
	}
	for _, rec := range records {
		completion := 0.0
		if rec.CommittedPoints > 0 {
			completion = float64(rec.CompletedPoints) / float64(rec.CommittedPoints) * 100
		}
		printInfo("%-16s %3d/%3d pts (%.0f%%)  %d days, %d people, ended %s",
			rec.ID, rec.CompletedPoints, rec.CommittedPoints, completion,
			rec.DurationDays, rec.TeamSize, rec.EndedAt.Format("2006-01-02"))
	}
}
