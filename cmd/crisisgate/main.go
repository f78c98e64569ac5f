package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zen-systems/crisisgate/pkg/adapter"
	"github.com/zen-systems/crisisgate/pkg/config"
	"github.com/zen-systems/crisisgate/pkg/engine"
	"github.com/zen-systems/crisisgate/pkg/ensemble"
	"github.com/zen-systems/crisisgate/pkg/learning"
	"github.com/zen-systems/crisisgate/pkg/thresholds"
	"github.com/zen-systems/crisisgate/pkg/triage"
	"github.com/zen-systems/crisisgate/pkg/vote"
)

var (
	thresholdsFile string
	modeFlag       string
	debugFlag      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "crisisgate",
		Short: "Crisis ensemble decision engine for moderated communities",
		Long: `Crisisgate combines the votes of several independent text classifiers
	into one crisis-severity decision, detects disagreement between models,
	and decides whether a human moderator must review the case. Sensitivity
	is recalibrated from human feedback within hard safety bounds.`,
	}

	rootCmd.PersistentFlags().StringVar(&thresholdsFile, "thresholds", "", "path to thresholds config file")
	rootCmd.PersistentFlags().StringVar(&modeFlag, "mode", "", "ensemble mode (consensus, majority, weighted)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")

	rootCmd.AddCommand(assessCmd())
	rootCmd.AddCommand(feedbackCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(modesCmd())
	rootCmd.AddCommand(stateCmd())
	rootCmd.AddCommand(modelsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func assessCmd() *cobra.Command {
	var votesFile string
	var strategyFlag string
	var mockFlag bool

	cmd := &cobra.Command{
		Use:   "assess [message]",
		Short: "Assess a message and print the decision document",
		Long: `Scores the message on every configured classifier backend, combines
	the votes, and prints the resulting decision as JSON.

	Use --votes to assess a captured vote set offline instead of calling
	any classifier. Use --mock to run against deterministic mock backends.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			eng, closer, err := buildEngine(cfg, strategyFlag, mockFlag)
			if err != nil {
				return err
			}
			defer closer()

			var decision *engine.Decision
			if votesFile != "" {
				votes, err := readVotes(votesFile)
				if err != nil {
					return err
				}
				decision, err = eng.AssessVotes(votes)
				if err != nil {
					return err
				}
			} else {
				if len(args) == 0 {
					return fmt.Errorf("a message argument or --votes file is required")
				}
				decision, err = eng.Assess(cmd.Context(), args[0])
				if err != nil {
					return err
				}
			}

			return printJSON(decision)
		},
	}

	cmd.Flags().StringVar(&votesFile, "votes", "", "assess a captured vote set from a JSON file")
	cmd.Flags().StringVar(&strategyFlag, "strategy", "", "voting strategy (majority, weighted, unanimous)")
	cmd.Flags().BoolVar(&mockFlag, "mock", false, "use deterministic mock classifiers")
	return cmd
}

func feedbackCmd() *cobra.Command {
	var severity float64
	var levelFlag string
	var message string

	cmd := &cobra.Command{
		Use:   "feedback [false_positive|false_negative]",
		Short: "Apply a human review outcome to the learning controller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			fbType, err := learning.ParseFeedbackType(args[0])
			if err != nil {
				return err
			}
			level, err := triage.ParseLevel(levelFlag)
			if err != nil {
				return err
			}

			learner, closer, err := buildLearner(cfg)
			if err != nil {
				return err
			}
			defer closer()

			result, err := learner.Apply(learning.Feedback{
				Type:        fbType,
				Severity:    severity,
				CrisisLevel: level,
				Message:     message,
			})
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	cmd.Flags().Float64Var(&severity, "severity", 0.5, "severity score of the reviewed case (0..1)")
	cmd.Flags().StringVar(&levelFlag, "level", "medium", "crisis level of the reviewed case")
	cmd.Flags().StringVar(&message, "message", "", "message text, enables phrase-level calibration")
	return cmd
}

func validateCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a thresholds document",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := thresholdsPath()
			if err != nil {
				return err
			}
			if path == "" {
				fmt.Println("no thresholds file configured; built-in defaults are always valid")
				return nil
			}

			store, err := thresholds.LoadFile(path, envOverrides(),
				thresholds.WithStrict(strict), thresholds.WithDebug(debugFlag))
			if err != nil {
				return err
			}
			return printJSON(store.Validate())
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "abort on any validation error")
	return cmd
}

func modesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "modes",
		Short: "List the active threshold set for every mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadThresholds()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MODE\tCRISIS>HIGH\tCRISIS>MED\tMILD>LOW\tNEG>LOW\tUNK>LOW\tGAP")
			for _, mode := range store.ActiveModes() {
				s := store.Set(mode)
				fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\n",
					s.Mode, s.CrisisToHigh, s.CrisisToMedium, s.MildCrisisToLow,
					s.NegativeToLow, s.UnknownToLow, s.GapThreshold)
			}
			return w.Flush()
		},
	}
}

func stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the current learning state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			learner, closer, err := buildLearner(cfg)
			if err != nil {
				return err
			}
			defer closer()

			state := learner.Snapshot()
			fmt.Printf("schema:                 %s\n", state.Schema)
			fmt.Printf("global sensitivity:     %.4f\n", state.GlobalSensitivity)
			fmt.Printf("phrase adjustments:     %d\n", len(state.PhraseAdjustments))
			fmt.Printf("history entries:        %d\n", len(state.History))
			fmt.Printf("adjustments today:      %d (since %s)\n", state.DailyAdjustmentCount, state.LastResetDate)
			return nil
		},
	}
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List configured classifier backends and their models",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			adapters, err := buildAdapters(cfg, true)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ADAPTER\tCONFIGURED\tMODELS")
			for _, a := range adapters {
				configured := "yes"
				if a.Name() == "mock" {
					configured = "fallback"
				}
				fmt.Fprintf(w, "%s\t%s\t%v\n", a.Name(), configured, a.Models())
			}
			return w.Flush()
		},
	}
}

// buildAdapters creates every configured backend. With allowMock, a mock
// backend stands in when nothing is configured.
func buildAdapters(cfg *config.Config, allowMock bool) ([]adapter.Adapter, error) {
	var adapters []adapter.Adapter

	if cfg.HasAdapter("anthropic") {
		a, err := adapter.NewAnthropicAdapter(cfg.AnthropicAPIKey)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	if cfg.HasAdapter("openai") {
		a, err := adapter.NewOpenAIAdapter(cfg.OpenAIAPIKey)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	if cfg.HasAdapter("google") {
		a, err := adapter.NewGoogleAdapter(cfg.GoogleAPIKey)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	if cfg.HasAdapter("local") {
		a, err := adapter.NewLocalAdapter(cfg.LocalBaseURL, cfg.LocalAPIKey, nil)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}

	if len(adapters) == 0 {
		if !allowMock {
			return nil, fmt.Errorf("no classifier backend configured; set at least one API key or use --mock")
		}
		adapters = append(adapters, adapter.NewMockAdapter("mock"))
	}
	return adapters, nil
}

func buildEngine(cfg *config.Config, strategyFlag string, mock bool) (*engine.Engine, func(), error) {
	var adapters []adapter.Adapter
	if mock {
		adapters = []adapter.Adapter{
			adapter.NewMockAdapter("mock-a"),
			adapter.NewMockAdapter("mock-b"),
			adapter.NewMockAdapter("mock-c"),
		}
	} else {
		var err error
		adapters, err = buildAdapters(cfg, false)
		if err != nil {
			return nil, nil, err
		}
	}

	classifiers := make([]engine.Classifier, 0, len(adapters))
	for _, a := range adapters {
		classifiers = append(classifiers, engine.Classifier{
			ID:      a.Name(),
			Adapter: a,
			Model:   a.Models()[0],
			Weight:  1.0,
		})
	}

	store, err := loadThresholds()
	if err != nil {
		return nil, nil, err
	}

	learner, closer, err := buildLearner(cfg)
	if err != nil {
		return nil, nil, err
	}

	opts := []engine.Option{
		engine.WithMode(activeMode(cfg)),
		engine.WithLearner(learner),
		engine.WithDebug(debugFlag),
	}
	if strategyFlag != "" {
		strategy, err := ensemble.ParseStrategy(strategyFlag)
		if err != nil {
			closer()
			return nil, nil, err
		}
		opts = append(opts, engine.WithStrategy(strategy))
	}

	eng, err := engine.New(classifiers, store, opts...)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return eng, closer, nil
}

func buildLearner(cfg *config.Config) (*learning.Controller, func(), error) {
	params := learning.DefaultParameters()

	var store learning.Store
	closer := func() {}
	switch cfg.LearningBackend {
	case "sqlite":
		s, err := learning.NewSQLiteStore(cfg.LearningPath, params.HistoryCap)
		if err != nil {
			return nil, nil, err
		}
		store = s
		closer = func() { s.Close() }
	default:
		s, err := learning.NewFileStore(cfg.LearningPath)
		if err != nil {
			return nil, nil, err
		}
		store = s
	}

	learner, err := learning.NewController(store, params,
		learning.WithControllerDebug(debugFlag))
	if err != nil {
		closer()
		return nil, nil, err
	}
	return learner, closer, nil
}

func thresholdsPath() (string, error) {
	if thresholdsFile != "" {
		return thresholdsFile, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	return cfg.ThresholdsPath, nil
}

func loadThresholds() (*thresholds.Store, error) {
	path, err := thresholdsPath()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return thresholds.New(thresholds.WithDebug(debugFlag)), nil
	}
	return thresholds.LoadFile(path, envOverrides(), thresholds.WithDebug(debugFlag))
}

func activeMode(cfg *config.Config) string {
	if modeFlag != "" {
		return modeFlag
	}
	return cfg.Mode
}

// envOverrides exposes CRISISGATE_<MODE>_<FIELD> environment variables as
// the external override source for the thresholds store.
func envOverrides() thresholds.Overrides {
	return func(key string) (string, bool) {
		return os.LookupEnv("CRISISGATE_" + key)
	}
}

func readVotes(path string) ([]vote.ModelVote, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read votes file: %w", err)
	}
	var votes []vote.ModelVote
	if err := json.Unmarshal(data, &votes); err != nil {
		return nil, fmt.Errorf("parse votes file: %w", err)
	}
	return votes, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
