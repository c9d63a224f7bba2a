package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/backlog"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/estimate"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/graph"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/sprint"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/store"
)

// planFlags are the inputs shared by suggest, prioritize, risks, and capacity.
type planFlags struct {
	backlogPath   string
	teamPath      string
	velocity      float64
	durationDays  int
	goals         []string
	riskTolerance string
	historyLimit  int
}

func (f *planFlags) register(cmd *cobra.Command, needsBacklog bool) {
	if needsBacklog {
		cmd.Flags().StringVarP(&f.backlogPath, "backlog", "b", "", "backlog JSON file (array of items, or {items, team, goals})")
		cmd.MarkFlagRequired("backlog")
		cmd.Flags().StringSliceVarP(&f.goals, "goal", "g", nil, "business goal (repeatable)")
		cmd.Flags().StringVar(&f.riskTolerance, "risk-tolerance", "medium", "risk tolerance: low, medium, or high")
	}
	cmd.Flags().StringVarP(&f.teamPath, "team", "t", "", "team JSON file (array of members)")
	cmd.Flags().Float64VarP(&f.velocity, "velocity", "v", 0, "points per sprint; 0 derives it from history")
	cmd.Flags().IntVarP(&f.durationDays, "duration", "d", 14, "sprint duration in days")
	cmd.Flags().IntVar(&f.historyLimit, "history", 10, "how many recent sprints to consider")
}

// resolve loads the backlog and team documents behind the flags.
func (f *planFlags) resolve() (backlogDocument, error) {
	var doc backlogDocument
	if f.backlogPath != "" {
		var err error
		doc, err = loadBacklog(f.backlogPath)
		if err != nil {
			return backlogDocument{}, err
		}
	}
	if f.teamPath != "" {
		team, err := loadTeam(f.teamPath)
		if err != nil {
			return backlogDocument{}, err
		}
		doc.Team = team
	}
	doc.Goals = append(doc.Goals, f.goals...)
	return doc, nil
}

func newSuggestCmd() *cobra.Command {
	var flags planFlags
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Compose a sprint suggestion from a backlog",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			doc, err := flags.resolve()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			suggestion, err := a.planner().Suggest(ctx, sprint.Request{
				Items:              doc.Items,
				Velocity:           flags.velocity,
				SprintDurationDays: flags.durationDays,
				Team:               doc.Team,
				Goals:              doc.Goals,
				RiskTolerance:      flags.riskTolerance,
				History:            a.loadHistory(ctx, flags.historyLimit),
			})
			if err != nil {
				return err
			}
			if jsonOutput {
				return emitJSON(suggestion)
			}
			renderSuggestion(suggestion)
			return nil
		},
	}
	flags.register(cmd, true)
	return cmd
}

func newPrioritizeCmd() *cobra.Command {
	var flags planFlags
	cmd := &cobra.Command{
		Use:   "prioritize",
		Short: "Score and rank backlog items",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			doc, err := flags.resolve()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			outcomes := outcomesOf(a.loadHistory(ctx, flags.historyLimit))
			budget, err := a.analyzer().Calculate(flags.velocity, flags.durationDays, doc.Team, outcomes)
			if err != nil {
				return err
			}
			result, err := a.prioritizer().Prioritize(ctx, doc.Items, budget, doc.Goals, flags.riskTolerance)
			if err != nil {
				return err
			}
			if jsonOutput {
				return emitJSON(result)
			}
			renderPrioritization(result)
			return nil
		},
	}
	flags.register(cmd, true)
	return cmd
}

func newCapacityCmd() *cobra.Command {
	var flags planFlags
	cmd := &cobra.Command{
		Use:   "capacity",
		Short: "Calculate the sprint capacity budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			var team []backlog.TeamMember
			if flags.teamPath != "" {
				team, err = loadTeam(flags.teamPath)
				if err != nil {
					return err
				}
			}
			ctx := cmd.Context()

			outcomes := outcomesOf(a.loadHistory(ctx, flags.historyLimit))
			budget, err := a.analyzer().Calculate(flags.velocity, flags.durationDays, team, outcomes)
			if err != nil {
				return err
			}
			if jsonOutput {
				return emitJSON(budget)
			}
			renderCapacity(budget)
			return nil
		},
	}
	flags.register(cmd, false)
	return cmd
}

func newRisksCmd() *cobra.Command {
	var flags planFlags
	cmd := &cobra.Command{
		Use:   "risks",
		Short: "Assess delivery risks for a sprint composition",
		Long:  "Treats the backlog file as the proposed sprint contents and assesses its delivery risks against the capacity budget.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			doc, err := flags.resolve()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			history := a.loadHistory(ctx, flags.historyLimit)
			budget, err := a.analyzer().Calculate(flags.velocity, flags.durationDays, doc.Team, outcomesOf(history))
			if err != nil {
				return err
			}
			assessment := a.assessor().AssessRisks(ctx, doc.Items, budget, history)
			if jsonOutput {
				return emitJSON(assessment)
			}
			renderRisks(assessment)
			return nil
		},
	}
	flags.register(cmd, true)
	return cmd
}

func newGraphCmd() *cobra.Command {
	var backlogPath string
	var infer bool
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Analyze backlog dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			doc, err := loadBacklog(backlogPath)
			if err != nil {
				return err
			}

			g := graph.New()
			if err := g.AddItems(doc.Items); err != nil {
				return err
			}
			if infer {
				if added := g.DetectImplicitDependencies(a.cfg.Graph.SimilarityThreshold); added > 0 {
					a.logger.Info("implicit dependencies inferred", "edges", added)
				}
			}
			analysis := g.Analyze()
			if jsonOutput {
				return emitJSON(analysis)
			}
			renderGraphAnalysis(analysis)
			return nil
		},
	}
	cmd.Flags().StringVarP(&backlogPath, "backlog", "b", "", "backlog JSON file")
	cmd.MarkFlagRequired("backlog")
	cmd.Flags().BoolVar(&infer, "infer", false, "infer implicit dependencies from textual similarity")
	return cmd
}

func newEstimateCmd() *cobra.Command {
	var complexity int
	var historyLimit int
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Convert a 1-10 complexity rating to story points",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if complexity < 1 || complexity > 10 {
				return fmt.Errorf("complexity must be between 1 and 10, got %d", complexity)
			}
			ctx := cmd.Context()

			calibrator := estimate.NewCalibrator()
			calibrated := false
			if outcomes := outcomesOf(a.loadHistory(ctx, historyLimit)); len(outcomes) > 0 {
				if err := calibrator.Calibrate(outcomes); err != nil {
					a.logger.Debug("calibration skipped", "error", err)
				} else {
					calibrated = true
				}
			}

			points := calibrator.Points(complexity)
			if jsonOutput {
				return emitJSON(map[string]any{
					"complexity": complexity,
					"points":     points,
					"calibrated": calibrated,
					"ratio":      calibrator.Ratio(),
				})
			}
			printTitle("Estimate")
			successColor.Printf("complexity %d -> %d points\n", complexity, points)
			if calibrated {
				printInfo("calibration ratio %.2f from sprint history", calibrator.Ratio())
			} else {
				printInfo("uncalibrated scale (no usable sprint history)")
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&complexity, "complexity", "x", 0, "complexity rating from 1 (trivial) to 10 (unknown territory)")
	cmd.MarkFlagRequired("complexity")
	cmd.Flags().IntVar(&historyLimit, "history", 10, "how many recent sprints to calibrate against")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Record and inspect completed sprints",
	}
	cmd.AddCommand(newHistoryAddCmd(), newHistoryListCmd())
	return cmd
}

func newHistoryAddCmd() *cobra.Command {
	var rec store.SprintRecord
	var ended string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a completed sprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if ended != "" {
				rec.EndedAt, err = time.Parse("2006-01-02", ended)
				if err != nil {
					return fmt.Errorf("parsing --ended: %w", err)
				}
			}
			ctx := cmd.Context()

			s, err := a.openHistory(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.SaveSprintRecord(ctx, rec); err != nil {
				return err
			}
			successColor.Printf("recorded sprint %s: %d/%d points\n",
				rec.ID, rec.CompletedPoints, rec.CommittedPoints)
			return nil
		},
	}
	cmd.Flags().StringVar(&rec.ID, "id", "", "sprint identifier")
	cmd.MarkFlagRequired("id")
	cmd.Flags().IntVar(&rec.CommittedPoints, "committed", 0, "points committed at sprint start")
	cmd.Flags().IntVar(&rec.CompletedPoints, "completed", 0, "points completed by sprint end")
	cmd.Flags().IntVar(&rec.DurationDays, "duration", 14, "sprint duration in days")
	cmd.Flags().IntVar(&rec.TeamSize, "team-size", 0, "number of team members")
	cmd.Flags().StringVar(&ended, "ended", "", "end date as YYYY-MM-DD (default today)")
	return cmd
}

func newHistoryListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent sprints",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			s, err := a.openHistory(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			records, err := s.RecentSprints(ctx, limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return emitJSON(records)
			}
			renderHistory(records)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum sprints to list")
	return cmd
}

// outcomesOf converts persisted sprint records into calibrator outcomes.
func outcomesOf(records []store.SprintRecord) []estimate.SprintOutcome {
	outcomes := make([]estimate.SprintOutcome, 0, len(records))
	for _, record := range records {
		outcomes = append(outcomes, record.Outcome())
	}
	return outcomes
}
