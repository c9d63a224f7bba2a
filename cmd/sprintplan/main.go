// sprintplan is the command-line surface over the planning engine: sprint
// suggestions, backlog prioritization, capacity budgets, risk assessments,
// dependency graph analysis, and the sprint history ledger.
package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/capacity"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/confidence"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/config"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/prioritize"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/reason"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/resilience"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/risk"
	"github.com/kunwarVivek/mcp-github-project-manager-sub003/internal/sprint"
)

const defaultConfigPath = "sprintplan.toml"

var (
	configPath string
	devLogs    bool
	jsonOutput bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "sprintplan",
		Short:         "AI-assisted sprint planning with deterministic fallbacks",
		Long:          "sprintplan scores backlogs, budgets sprint capacity, and composes sprint suggestions.\nReasoner access is optional: without OPENAI_API_KEY every command still works on deterministic fallbacks.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to TOML config file")
	rootCmd.PersistentFlags().BoolVar(&devLogs, "dev", false, "use text log format (default is JSON)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit results as JSON instead of a rendered report")

	rootCmd.AddCommand(
		newSuggestCmd(),
		newPrioritizeCmd(),
		newCapacityCmd(),
		newRisksCmd(),
		newGraphCmd(),
		newEstimateCmd(),
		newHistoryCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

// app bundles the configuration and the wired engine components each command
// builds from. One executor serves the whole process so circuit breaker state
// is shared across pipeline stages.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	exec     *resilience.Executor
	reasoner reason.Reasoner
	scorer   *confidence.Scorer
}

// newApp loads configuration and configures logging. A missing file at the
// default path is not an error; the documented defaults apply.
func newApp() (*app, error) {
	var cfg *config.Config
	if _, err := os.Stat(configPath); os.IsNotExist(err) && configPath == defaultConfigPath {
		cfg = config.Default()
	} else {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return nil, err
		}
	}

	logger := configureLogger(cfg.General.LogLevel, devLogs)
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger}
	a.scorer = confidence.NewScorer(confidence.Thresholds{
		Warning: cfg.Confidence.WarningThreshold,
		Error:   cfg.Confidence.ErrorThreshold,
	})
	a.exec = resilience.NewExecutor(resilience.Config{
		MaxRetries: cfg.Resilience.MaxRetries,
		Timeout:    cfg.Resilience.Timeout.Duration,
		RetryDelay: cfg.Resilience.RetryDelay.Duration,
		Breaker: resilience.BreakerConfig{
			ConsecutiveFailures: cfg.Resilience.ConsecutiveFailures,
			Cooldown:            cfg.Resilience.Cooldown.Duration,
		},
	}, logger)
	// Without OPENAI_API_KEY the reasoner reports unavailable and every
	// command degrades to its deterministic path.
	a.reasoner = reason.NewOpenAIReasoner(
		os.Getenv("OPENAI_API_KEY"),
		cfg.Reasoner.Model,
		float32(cfg.Reasoner.Temperature),
		logger,
	)
	return a, nil
}

func configureLogger(logLevel string, useDev bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if useDev {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func (a *app) analyzer() *capacity.Analyzer {
	return capacity.NewAnalyzer(a.cfg.Capacity.BufferPercentage, a.scorer, a.logger)
}

func (a *app) prioritizer() *prioritize.Prioritizer {
	return prioritize.NewPrioritizer(a.reasoner, a.exec, a.scorer, prioritize.Options{
		Weights: prioritize.Weights{
			BusinessValue: a.cfg.Weights.BusinessValue,
			Dependency:    a.cfg.Weights.Dependency,
			Risk:          a.cfg.Weights.Risk,
			EffortFit:     a.cfg.Weights.EffortFit,
		},
		SimilarityThreshold: a.cfg.Graph.SimilarityThreshold,
		InferDependencies:   true,
	}, a.logger)
}

func (a *app) assessor() *risk.Assessor {
	return risk.NewAssessor(a.reasoner, a.exec, a.logger)
}

func (a *app) planner() *sprint.Planner {
	return sprint.NewPlanner(a.analyzer(), a.prioritizer(), a.assessor(), a.scorer, a.logger)
}
