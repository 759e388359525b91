package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/framewise/internal/logging"
	"github.com/ppiankov/framewise/internal/metrics"
	"github.com/ppiankov/framewise/internal/model"
	"github.com/ppiankov/framewise/internal/pipeline"
)

// Version is set at build time
var Version = "v0.1.0"

var envKeyReplacer = strings.NewReplacer(".", "_")

var (
	cfgFile   string
	verbose   bool
	sessionID string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "framewise",
	Short: "Framewise - framing-aware content generation",
	Long: `Framewise generates articles, briefs, op-eds and speeches about AI policy
with a language model, then steers the text toward constructive frames.

Every run is analyzed for the frames and metaphors it uses. Interrupted
generations are checkpointed and can be resumed, mixed frames are surfaced
as conflicts you resolve, and citations are validated before they are kept.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("framewise %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.framewise/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "session ID (default: new session for generate, last session otherwise)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".framewise"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// FRAMEWISE_GENERATION_TEMPERATURE overrides generation.temperature
	viper.SetEnvPrefix("FRAMEWISE")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	if err := registerDefaults(viper.GetViper(), model.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering config defaults: %v\n", err)
	}

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig merges defaults, the config file, FRAMEWISE_* variables and the
// provider key variables, then resolves state paths under ~/.framewise
func loadConfig() (model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	envOverride(&cfg.Providers.GeminiAPIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	envOverride(&cfg.Providers.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverride(&cfg.Providers.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.Providers.OllamaBaseURL, "OLLAMA_BASE_URL")

	home, err := stateDir()
	if err != nil {
		return cfg, err
	}
	if cfg.Recovery.Dir == "" {
		cfg.Recovery.Dir = filepath.Join(home, "sessions")
	}
	if cfg.References.DBPath == "" {
		cfg.References.DBPath = filepath.Join(home, "references.db")
	}

	return cfg, nil
}

// envOverride sets *dst from the first non-empty variable
func envOverride(dst *string, names ...string) {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			*dst = v
			return
		}
	}
}

func stateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("find home directory: %w", err)
	}
	return filepath.Join(home, ".framewise"), nil
}

// app bundles what every pipeline command needs
type app struct {
	cfg      model.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	pipeline *pipeline.Pipeline
}

// newApp builds the pipeline. Offline apps have no model providers and
// need no credentials.
func newApp(ctx context.Context, offline bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(verbose)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	var p *pipeline.Pipeline
	if offline {
		p, err = pipeline.OfflineFromConfig(cfg, logger, m)
	} else {
		p, err = pipeline.FromConfig(ctx, cfg, logger, m)
	}
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("create pipeline: %w", err)
	}

	return &app{cfg: cfg, logger: logger, registry: registry, pipeline: p}, nil
}

func (a *app) Close() {
	if err := a.pipeline.Close(); err != nil {
		a.logger.Warn("closing pipeline", zap.Error(err))
	}
	_ = a.logger.Sync()
}
