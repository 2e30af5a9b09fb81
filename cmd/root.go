package cmd

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/applicant"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/dispatch"
	"github.com/WangWeiCheng-TJ/Local-LLM-Decision-Orchestrator/internal/reflector"
)

const (
	app = "decision-orchestrator"

	defaultMemoryPath = app + ".db"
)

type Config struct {
	Postings    string `mapstructure:"postings"`
	MemoryPath  string `mapstructure:"memory-path"`
	RosterFile  string `mapstructure:"roster-file"`
	Parallelism int    `mapstructure:"parallelism"`

	Profile    *applicant.Profile   `mapstructure:"profile"`
	Weights    *reflector.Weights   `mapstructure:"weights"`
	Thresholds *dispatch.Thresholds `mapstructure:"thresholds"`
	AI         *AIConfig            `mapstructure:"ai"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max-retries"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "decision-orchestrator turns a batch of job postings into a ranked, resourced action plan",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("memory-path", "ORCHESTRATOR_MEMORY_PATH"); err != nil {
		log.Fatalf("binding ORCHESTRATOR_MEMORY_PATH environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is "+app+".yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config is needed only for the run command. Without it we can skip
	// initialization.
	if runCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return config, err
	}

	return config, nil
}
