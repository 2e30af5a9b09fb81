package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/ai/gemini"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/applicant"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/council"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/dispatch"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/intake"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/logger"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/memory"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/panel"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/pipeline"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/reflector"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/report"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/secrets"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/toolgw"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/triage"
)

const (
	PromptAccept          = "Accept the plan"
	PromptQuit            = "Quit"
	PromptRefineWeights   = "Refine weights and re-rank"
	PromptReportByCompany = "Report by company"
	PromptPlanToFile      = "Dump plan to file"
)

var errExit = errors.New("exit requested")

var planPrompt = promptui.Select{
	Label: "Proceed?",
	Items: []string{PromptAccept, PromptQuit, PromptRefineWeights, PromptReportByCompany, PromptPlanToFile},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Score a batch of postings and build the action plan",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("postings", "p", "", "directory with raw postings (.txt or .md)")
	runCmd.Flags().BoolP("auto-approve", "y", false, "accept the plan without interactive confirmation")

	viper.BindPFlag("postings", runCmd.Flags().Lookup("postings"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	log, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		log.Fatal("getting a config", zap.Error(err))
	}

	log.Info("starting the decision-orchestrator", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	log.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config == nil {
		log.Fatal("config is required")
	}
	if config.Profile == nil || len(config.Profile.Skills) == 0 {
		log.Fatal("an applicant profile with skills is required under the profile key")
	}

	postingsDir := strings.TrimSpace(viper.GetString("postings"))
	if postingsDir == "" {
		postingsDir = config.Postings
	}
	if postingsDir == "" {
		log.Fatal("postings directory is required",
			zap.String("hint", "set the postings key or the --postings flag"),
		)
	}

	sources, err := intake.LoadDir(postingsDir)
	if err != nil {
		log.Fatal("loading postings", zap.Error(err))
	}
	log.Info("loaded postings", zap.Int("count", len(sources)))

	store, err := memory.Open(memoryPath(config))
	if err != nil {
		log.Fatal("opening memory store", zap.Error(err))
	}
	defer store.Close()

	roster, err := loadRoster(config, log)
	if err != nil {
		log.Fatal("loading expert roster", zap.Error(err))
	}

	assessor, err := newAssessor(ctx, config, log)
	if err != nil {
		log.Fatal("building expert assessor", zap.Error(err))
	}

	autoApprove := cmd.Flag("auto-approve").Value.String() == "true"
	if !autoApprove && !confirmProfile(config.Profile, log) {
		log.Info("exiting", zap.String("reason", "profile rejected at confirmation"))
		return
	}

	weights := reflector.DefaultWeights()
	if config.Weights != nil {
		weights = *config.Weights
	}
	thresholds := dispatch.DefaultThresholds()
	if config.Thresholds != nil {
		thresholds = *config.Thresholds
	}

	dispatcher, err := dispatch.New(thresholds, log)
	if err != nil {
		log.Fatal("building dispatcher", zap.Error(err))
	}

	p, err := pipeline.New(pipeline.Deps{
		Normalizer:  intake.NewNormalizer(log),
		Gateway:     toolgw.New(toolgw.DefaultTools(), -1, log),
		Gate:        triage.NewGate(triage.DefaultConstraints(), log),
		Roster:      roster,
		Panel:       panel.New(assessor, store, roster, log),
		History:     store,
		Reflector:   reflector.New(weights, log),
		Dispatcher:  dispatcher,
		Profile:     *config.Profile,
		Parallelism: config.Parallelism,
		Logger:      log,
	})
	if err != nil {
		log.Fatal("building pipeline", zap.Error(err))
	}

	result, err := p.Run(ctx, sources)
	if err != nil {
		log.Fatal("pipeline run failed", zap.Error(err))
	}

	artifacts := report.Build(result)
	fmt.Print(artifacts.Summary())

	action := PromptAccept
	for {
		if !autoApprove {
			var err error
			_, action, err = planPrompt.Run()
			if err != nil {
				log.Fatal("exiting", zap.Error(err))
			}
		}

		err := handleAction(ctx, action, handleDeps{
			log:        log,
			store:      store,
			dispatcher: dispatcher,
			reflector:  reflector.New(weights, log),
			result:     result,
			artifacts:  &artifacts,
		})
		if err != nil {
			if errors.Is(err, errExit) {
				return
			}
			log.Fatal("exiting", zap.Error(err))
		}

		if autoApprove {
			return
		}
	}
}

type handleDeps struct {
	log        *zap.Logger
	store      *memory.Store
	dispatcher *dispatch.Dispatcher
	reflector  *reflector.Reflector
	result     *pipeline.Result
	artifacts  **report.Artifacts
}

func handleAction(ctx context.Context, action string, deps handleDeps) error {
	switch action {
	case PromptAccept:
		return acceptPlan(ctx, deps)
	case PromptQuit:
		deps.log.Info("exiting", zap.String("reason", "got quit from prompt"))
		return errExit
	case PromptRefineWeights:
		return refinePlan(deps)
	case PromptReportByCompany:
		pretty, _ := json.MarshalIndent(deps.result.Batch.ReportByCompany(), "", "  ")
		deps.log.Info(string(pretty), zap.Int("dossier count", deps.result.Batch.Len()))
		return nil
	case PromptPlanToFile:
		filename, err := (*deps.artifacts).DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump plan to file: %w", err)
		}
		deps.log.Info("dumped plan to file", zap.String("filename", filename))
		return nil
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

// acceptPlan records every advisory as a pending application in the history
// ledger, so the next run scores these companies history-aware.
func acceptPlan(ctx context.Context, deps handleDeps) error {
	recorded := 0
	for _, entry := range (*deps.artifacts).Entries {
		if entry.Kind != dispatch.KindAdvisory {
			continue
		}

		// Store the posting's text, not its ID: history search matches future
		// postings by token overlap.
		posting := entry.DossierID
		if d := deps.result.Batch.FindByID(entry.DossierID); d != nil {
			var text strings.Builder
			text.WriteString(d.Role)
			for _, req := range d.Requirements {
				text.WriteString(" ")
				text.WriteString(req.Text)
			}
			posting = text.String()
		}

		id, err := deps.store.AppendHistory(ctx, memory.HistoryRecord{
			Company: entry.Company,
			Role:    entry.Role,
			Posting: posting,
		})
		if err != nil {
			return fmt.Errorf("record accepted advisory: %w", err)
		}
		recorded++

		deps.log.Info("recorded planned application",
			zap.String("record_id", id),
			zap.String("company", entry.Company),
			zap.String("role", entry.Role),
		)
	}

	deps.log.Info("plan accepted", zap.Int("applications planned", recorded))
	return errExit
}

// refinePlan asks for new weights, re-ranks the already-assessed batch and
// replaces the displayed plan. The expensive stages are not re-run.
func refinePlan(deps handleDeps) error {
	weights, err := promptWeights(deps.reflector.Weights())
	if err != nil {
		return err
	}

	ranked, err := deps.reflector.Refine(weights, deps.result.Inputs)
	if err != nil {
		return fmt.Errorf("re-rank batch: %w", err)
	}

	actions, err := deps.dispatcher.Dispatch(ranked)
	if err != nil {
		return err
	}

	deps.result.Ranked = ranked
	deps.result.Actions = actions
	*deps.artifacts = report.Build(deps.result)

	fmt.Print((*deps.artifacts).Summary())
	return nil
}

func promptWeights(current reflector.Weights) (reflector.Weights, error) {
	ask := func(label string, value float64) (float64, error) {
		prompt := promptui.Prompt{
			Label:   label,
			Default: strconv.FormatFloat(value, 'f', -1, 64),
			Validate: func(input string) error {
				_, err := strconv.ParseFloat(strings.TrimSpace(input), 64)
				return err
			},
		}
		raw, err := prompt.Run()
		if err != nil {
			return 0, err
		}
		return strconv.ParseFloat(strings.TrimSpace(raw), 64)
	}

	var err error
	if current.Match, err = ask("Match weight", current.Match); err != nil {
		return current, err
	}
	if current.Effort, err = ask("Effort weight", current.Effort); err != nil {
		return current, err
	}
	if current.History, err = ask("History weight", current.History); err != nil {
		return current, err
	}

	return current, nil
}

func confirmProfile(profile *applicant.Profile, log *zap.Logger) bool {
	label := fmt.Sprintf("Run for %s (%d skills, sponsorship needed: %t)?",
		profile.Name, len(profile.Skills), profile.NeedsSponsorship)

	prompt := promptui.Select{
		Label: label,
		Items: []string{"Yes", "No"},
	}

	_, answer, err := prompt.Run()
	if err != nil {
		log.Warn("profile confirmation failed", zap.Error(err))
		return false
	}

	return answer == "Yes"
}

func loadRoster(config *Config, log *zap.Logger) (*council.Roster, error) {
	if strings.TrimSpace(config.RosterFile) == "" {
		return council.DefaultRoster(log), nil
	}
	return council.LoadRoster(config.RosterFile, log)
}

// newAssessor picks the panel backend: Gemini when configured, otherwise the
// deterministic lexical assessor.
func newAssessor(ctx context.Context, config *Config, log *zap.Logger) (panel.Assessor, error) {
	if config.AI == nil || !config.AI.Enabled {
		log.Info("ai backend disabled, using the lexical assessor")
		return &panel.LexicalAssessor{Profile: *config.Profile}, nil
	}

	provider := strings.TrimSpace(strings.ToLower(config.AI.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", config.AI.Provider)
	}

	if config.AI.Gemini == nil {
		return nil, fmt.Errorf("gemini configuration is required when the ai backend is enabled")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: config.AI.Gemini.APIKeyFile,
		Env:  "GEMINI_API_KEY_FILE",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, config.AI.Gemini.Model)
	if err != nil {
		return nil, err
	}

	assessorLogger := logger.WithFields(log, logger.StringFields(
		logger.StringField{Key: logger.FieldProvider, Value: "gemini"},
		logger.StringField{Key: logger.FieldModel, Value: generator.Model()},
	)...)

	return gemini.NewAssessor(generator, assessorLogger, config.AI.Gemini.MaxRetries), nil
}

func memoryPath(config *Config) string {
	if path := strings.TrimSpace(viper.GetString("memory-path")); path != "" {
		return path
	}
	if strings.TrimSpace(config.MemoryPath) != "" {
		return config.MemoryPath
	}
	return defaultMemoryPath
}

func fatalf(format string, args ...any) {
	log.Fatalf(format, args...)
}
